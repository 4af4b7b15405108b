package endpoint

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUnsupportedType is returned for an unknown client type
var ErrUnsupportedType = errors.New("unsupported client type")

// StatusError is a non-success response from the endpoint
type StatusError struct {
	Code int
	Body string
	Err  error
}

func (e *StatusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("endpoint returned status %d: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("endpoint returned status %d", e.Code)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// StatusCode returns the response status
func (e *StatusError) StatusCode() int {
	return e.Code
}

// StatusCode extracts the status from err, or 0 when it carries none
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// IsRateLimited reports whether err is an HTTP 429 response
func IsRateLimited(err error) bool {
	return StatusCode(err) == http.StatusTooManyRequests
}

// ResponseBody returns the error response payload if err carries one
func ResponseBody(err error) string {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Body
	}
	return ""
}
