package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrNoSecret = errors.New("session secret is not configured")
	ErrDecrypt  = errors.New("token blob could not be decrypted")

	ErrCookiesReadOnly = errors.New("cookies can't be written in this context")
	ErrClaimDecode     = errors.New("token payload could not be decoded")

	ErrNoRefreshToken  = errors.New("refresh token not found")
	ErrRefreshRejected = errors.New("refresh token rejected by backend")
	ErrRefreshFailed   = errors.New("session refresh failed")

	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Kind classifies failed backend calls
type Kind string

const (
	KindNetwork      Kind = "network"
	KindTimeout      Kind = "timeout"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindClient       Kind = "client"
	KindServer       Kind = "server"
)

// APIError is returned by the API client for every call that did not end with a successful response.
//
// AuthFailure is set when the session can't be used anymore (refresh failed, 401 after retry, 403).
// Callers are expected to force logout on it, see IsAuthError.
type APIError struct {
	Kind   Kind
	Status int // zero if no response received
	Method string
	Path   string

	// Raw response body, if any
	Body []byte

	AuthFailure bool
	Err         error
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s %s: %s error: %v", e.Method, e.Path, e.Kind, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %s error, status %d: %v", e.Method, e.Path, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s %s: %s error, status %d", e.Method, e.Path, e.Kind, e.Status)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// IsAuthError reports whether err carries an auth failure that has to end the session
func IsAuthError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.AuthFailure
	}
	return false
}

// IsKind reports whether err is an APIError of the given kind
func IsKind(err error, kind Kind) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind == kind
	}
	return false
}
