package conversation

import (
	"errors"
	"fmt"
)

// Sentinel errors for the conversation package.
var (
	// ErrMissingAPIKey indicates the API key was not provided.
	ErrMissingAPIKey = errors.New("conversation: API key is required")

	// ErrNotConnected indicates the session is not open.
	ErrNotConnected = errors.New("conversation: not connected")

	// ErrAlreadyConnected indicates Connect was called on an open session.
	ErrAlreadyConnected = errors.New("conversation: already connected")

	// ErrConnectionClosed indicates the server ended the session.
	ErrConnectionClosed = errors.New("conversation: connection closed")
)

// APIError is an error event reported by the server.
type APIError struct {
	StatusCode int
	Code       string
	Type       string
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	switch {
	case e.Code != "":
		return fmt.Sprintf("conversation: API error [%s]: %s", e.Code, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("conversation: API error (HTTP %d): %s", e.StatusCode, e.Message)
	default:
		return "conversation: API error: " + e.Message
	}
}

// IsRetryable reports whether the request can be retried.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500 || e.Code == "rate_limit_exceeded"
}

// ConnectionError is a websocket transport failure.
type ConnectionError struct {
	Op        string
	Cause     error
	Retryable bool
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("conversation: %s: %v", e.Op, e.Cause)
	}
	return "conversation: " + e.Op
}

// Unwrap returns the underlying cause.
func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

func connError(op string, cause error, retryable bool) *ConnectionError {
	return &ConnectionError{Op: op, Cause: cause, Retryable: retryable}
}

// IsNotConnected reports whether err means there is no open session.
func IsNotConnected(err error) bool {
	return errors.Is(err, ErrNotConnected) || errors.Is(err, ErrConnectionClosed)
}

// IsRetryable reports whether err is worth retrying.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsRetryable()
	}
	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return connErr.Retryable
	}
	return false
}
