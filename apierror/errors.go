// Package apierror defines the error shapes surfaced by the API client.
// Every failed request resolves to either an *APIError carrying the
// backend's status and message, or a transport error with no status.
package apierror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrSessionExpired marks a terminal 401: the refresh token was
	// missing, rejected, or the retried request failed again. Check with
	// errors.Is so callers can prompt for re-authentication instead of
	// showing a generic failure.
	ErrSessionExpired = errors.New("session expired")

	// ErrNoRefreshToken is returned by the refresh coordinator when no
	// refresh token exists; no network call is made in that case.
	ErrNoRefreshToken = errors.New("no refresh token available")
)

// APIError is the normalized form of any non-2xx backend response.
type APIError struct {
	StatusCode int             // HTTP status returned by the backend
	Message    string          // backend-provided message, or the status text
	Details    json.RawMessage // optional structured validation details
	Err        error           // wrapped sentinel or cause, may be nil
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api error (status %d)", e.StatusCode)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// SessionExpired builds the terminal 401 error raised on forced expiry.
// It always carries status 401 and matches ErrSessionExpired.
func SessionExpired() *APIError {
	return &APIError{
		StatusCode: http.StatusUnauthorized,
		Message:    "session expired",
		Err:        ErrSessionExpired,
	}
}

// FromResponse normalizes a backend error payload into an *APIError.
// message may be empty, in which case the standard status text is used.
func FromResponse(statusCode int, message string, details json.RawMessage) *APIError {
	if message == "" {
		message = http.StatusText(statusCode)
	}
	return &APIError{
		StatusCode: statusCode,
		Message:    message,
		Details:    details,
	}
}

// StatusOf returns the HTTP status carried by err, or 0 for transport
// failures and other errors with no backend status.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// IsSessionExpired reports whether err is a terminal session-expiry error.
func IsSessionExpired(err error) bool {
	return errors.Is(err, ErrSessionExpired)
}
