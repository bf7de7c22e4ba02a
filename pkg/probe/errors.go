package probe

import (
	"errors"
	"fmt"
	"net/http"
)

// Class is the closed set of probe failure classes (spec.md §4.1, §7).
type Class string

const (
	ClassTimeout    Class = "TIMEOUT"
	ClassConnection Class = "CONNECTION"
	ClassAuth       Class = "AUTH"
	ClassConfig     Class = "CONFIG"
	ClassHTTP       Class = "HTTP"
)

// Error is a classified probe failure. Only TIMEOUT, CONNECTION, and
// retryable HTTP errors (5xx, 429) are retryable.
type Error struct {
	Class      Class
	StatusCode int // set when Class == ClassHTTP
	Vessel     string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("probe %s: %s (http %d): %v", e.Vessel, e.Class, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("probe %s: %s: %v", e.Vessel, e.Class, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether this error class should trigger a retry.
func (e *Error) Retryable() bool {
	switch e.Class {
	case ClassTimeout, ClassConnection:
		return true
	case ClassHTTP:
		return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
	default:
		return false
	}
}

// newError wraps err as a classified probe Error for the given vessel.
func newError(vessel string, class Class, err error) *Error {
	return &Error{Vessel: vessel, Class: class, Err: err}
}

func newHTTPError(vessel string, status int, err error) *Error {
	return &Error{Vessel: vessel, Class: ClassHTTP, StatusCode: status, Err: err}
}

// IsRetryable reports whether err (or an error it wraps) is a retryable
// probe.Error.
func IsRetryable(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Retryable()
	}
	return false
}
