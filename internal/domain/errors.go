package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials means an empty mio ID or password was supplied
	// locally; nothing was sent to the network.
	ErrInvalidCredentials = errors.New("mio ID and password must not be empty")

	// ErrMissingCredentials means the refresh credential chain was exhausted
	// with nothing usable; the caller must prompt for input.
	ErrMissingCredentials = errors.New("no usable credentials")

	// ErrCredentialNotFound is returned by credential stores when nothing is
	// saved under the portal's scope.
	ErrCredentialNotFound = errors.New("stored credential not found")

	// ErrNoActiveSession means a call asked to reuse the current session but
	// the client holds none.
	ErrNoActiveSession = errors.New("no active session to reuse")
)

// AuthenticationError is a login rejected by the backend, or a session-expired
// signal whose single re-login retry also failed.
type AuthenticationError struct {
	Code string
}

func (e *AuthenticationError) Error() string {
	if e.Code == "" {
		return "authentication failed"
	}
	return fmt.Sprintf("authentication failed: backend code %s", e.Code)
}

// HTTPError is a non-2xx response not otherwise classified as
// authentication-related.
type HTTPError struct {
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("unexpected HTTP status %d", e.StatusCode)
}

// BackendAPIError is an HTTP 200 whose JSON body carried a non-null error
// envelope.
type BackendAPIError struct {
	Code string
}

func (e *BackendAPIError) Error() string {
	return fmt.Sprintf("backend returned error code %s", e.Code)
}

// ParseError means an HTML page did not contain the expected structural
// markers.
type ParseError struct {
	Page string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("page %q did not match the expected markup", e.Page)
}

// NetworkError is a timeout or transport failure. It is never retried
// automatically by this layer.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network failure: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsAuthentication reports whether err is an authentication-classified
// failure, including a locally rejected empty credential.
func IsAuthentication(err error) bool {
	var authErr *AuthenticationError
	return errors.As(err, &authErr) || errors.Is(err, ErrInvalidCredentials)
}
