package remote

import (
	"errors"
	"fmt"
	"net/http"
)

// Failure classes returned by the client. Match them with errors.Is.
var (
	ErrNoCredential   = errors.New("no bearer credential available")
	ErrNetworkFailure = errors.New("network failure")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrNotFound       = errors.New("not found")
	ErrServerError    = errors.New("server error")
	ErrRejected       = errors.New("request rejected")
	ErrDecode         = errors.New("malformed response")
)

// APIError describes a failed remote call.
type APIError struct {
	Op     string // e.g. "create", "update"
	Status int    // HTTP status, 0 when no response was received
	Err    error  // one of the Err* sentinels, possibly wrapping the cause
	cause  error
}

func (e *APIError) Error() string {
	switch {
	case e.Status != 0 && e.cause != nil:
		return fmt.Sprintf("%s: %v (status %d): %v", e.Op, e.Err, e.Status, e.cause)
	case e.Status != 0:
		return fmt.Sprintf("%s: %v (status %d)", e.Op, e.Err, e.Status)
	case e.cause != nil:
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Err, e.cause)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap exposes both the failure class and the underlying cause.
func (e *APIError) Unwrap() []error {
	if e.cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.cause}
}

// IsTransient reports whether err is worth retrying as-is: network failures
// and 5xx responses.
func IsTransient(err error) bool {
	return errors.Is(err, ErrNetworkFailure) || errors.Is(err, ErrServerError)
}

func classifyStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrUnauthorized
	case status == http.StatusNotFound:
		return ErrNotFound
	case status >= 500:
		return ErrServerError
	case status >= 400:
		return ErrRejected
	}
	return nil
}
