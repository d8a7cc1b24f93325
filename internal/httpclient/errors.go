package httpclient

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNoRefreshToken fails a refresh attempt, and every request queued
	// behind it, when the token store holds no refresh token.
	ErrNoRefreshToken = errors.New("no refresh token available")

	errRefreshAborted = errors.New("token refresh aborted")
)

// Error is a response the API answered with a failure: a status >= 400, or
// an authentication failure signalled through the message of a 2xx body.
type Error struct {
	StatusCode int
	Message    string
	Method     string
	URL        string
	Body       []byte
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.StatusCode)
}

// IsAuthFailure reports whether the server rejected the credentials.
func (e *Error) IsAuthFailure() bool {
	return e.StatusCode == http.StatusUnauthorized || isAuthMessage(e.Message)
}

// RefreshError wraps the failure of the credential refresh call.
type RefreshError struct {
	Err error
}

func (e *RefreshError) Error() string {
	return "token refresh failed: " + e.Err.Error()
}

func (e *RefreshError) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status carried by err, or 0 when err did not
// come from an API response.
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// ServerMessage returns the API message carried by err, if any.
func ServerMessage(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}

func newError(resp *Response) *Error {
	return &Error{
		StatusCode: resp.StatusCode,
		Message:    resp.Message(),
		Method:     resp.method,
		URL:        resp.url,
		Body:       resp.Body,
	}
}
