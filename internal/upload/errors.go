package upload

import (
	"errors"
	"fmt"

	"github.com/bazarteer/bazaar/internal/api"
)

// Stage names the step of an upload that failed.
type Stage string

const (
	StageRequestURL Stage = "request-url"
	StageRead       Stage = "read"
	StageTransfer   Stage = "transfer"
)

// Error is a failed upload of one media unit. Status and Body are set when
// the failure was an HTTP response.
type Error struct {
	Stage  Stage
	Path   string
	Status int
	Body   string
	Err    error
}

func (e *Error) Error() string {
	switch e.Stage {
	case StageRequestURL:
		return fmt.Sprintf("failed to get upload URL for %s: %v", e.Path, e.Err)
	case StageRead:
		return fmt.Sprintf("failed to read %s: %v", e.Path, e.Err)
	default:
		return fmt.Sprintf("upload of %s failed: %v", e.Path, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(stage Stage, path string, err error) *Error {
	e := &Error{Stage: stage, Path: path, Err: err}
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		e.Status = apiErr.Status
		e.Body = apiErr.Body
	}
	return e
}
