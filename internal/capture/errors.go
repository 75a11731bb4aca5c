package capture

import (
	"errors"
	"fmt"
)

// ErrPermissionDenied is wrapped by a DeviceError when the camera,
// microphone or a picked file cannot be accessed.
var ErrPermissionDenied = errors.New("permission denied")

// DeviceError is a camera or file-access failure. Op names the step that
// failed, e.g. "snapshot" or "camera permission".
type DeviceError struct {
	Op  string
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}
