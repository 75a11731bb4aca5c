package api

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

// ErrNotAuthenticated is returned, without sending anything, when an
// authenticated endpoint is called with no active session.
var ErrNotAuthenticated = errors.New("not logged in: run 'bazaar login' first")

// Error is a non-2xx response from the API or object storage.
type Error struct {
	Endpoint string
	Status   int
	Message  string // server-provided message, if any
	Body     string // raw response body
}

func (e *Error) Error() string {
	detail := e.Message
	if detail == "" {
		detail = truncate(strings.TrimSpace(e.Body), 200)
	}
	if detail == "" {
		return fmt.Sprintf("%s: HTTP %d", e.Endpoint, e.Status)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Endpoint, e.Status, detail)
}

func newError(endpoint string, status int, body []byte) *Error {
	return &Error{
		Endpoint: endpoint,
		Status:   status,
		Message:  ServerMessage(body),
		Body:     string(body),
	}
}

// ServerMessage extracts the human-readable message from an error body,
// looking at the "error" field first and then "message". It returns "" when
// the body is not JSON or carries neither field.
func ServerMessage(body []byte) string {
	if !gjson.ValidBytes(body) {
		return ""
	}
	for _, key := range []string{"error", "message"} {
		if r := gjson.GetBytes(body, key); r.Exists() && r.Type == gjson.String && r.String() != "" {
			return r.String()
		}
	}
	return ""
}

// MessageOr returns the server message carried by err, or fallback when there
// is none.
func MessageOr(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

// HasErrorField reports whether err is an API error whose body carried a
// non-empty "error" field.
func HasErrorField(err error) bool {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return false
	}
	body := []byte(apiErr.Body)
	if !gjson.ValidBytes(body) {
		return false
	}
	r := gjson.GetBytes(body, "error")
	return r.Exists() && r.String() != ""
}

// truncate shortens s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
