// Package domain contains domain errors used throughout the application.
package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel errors for common error conditions.
var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrNotConnected     = errors.New("realtime connection is not established")
	ErrAlreadyClosed    = errors.New("already closed")
	ErrLoginInProgress  = errors.New("login already in progress")
	ErrLoginCancelled   = errors.New("login cancelled by logout")
	ErrNoSession        = errors.New("no active session")
	ErrEmptyInput       = errors.New("input cannot be empty")
	ErrStreamInProgress = errors.New("a streamed response is still in progress")
	ErrHubNotRunning    = errors.New("event hub is not running")
	ErrSubscriberClosed = errors.New("subscriber is closed")
)

// NetworkError is returned when a request never reached the server
// (DNS failure, refused connection, timeout, cancelled context).
type NetworkError struct {
	Op  string // Operation that failed, e.g. "POST /ai/ask"
	Err error  // Underlying transport error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError creates a new NetworkError.
func NewNetworkError(op string, err error) *NetworkError {
	return &NetworkError{
		Op:  op,
		Err: err,
	}
}

// HTTPError is returned when the server answered with a non-2xx status.
type HTTPError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("%s: HTTP %d %s", e.Op, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.StatusCode, body)
}

// Is makes a 401 response match ErrUnauthorized.
func (e *HTTPError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// NewHTTPError creates a new HTTPError.
func NewHTTPError(op string, statusCode int, body string) *HTTPError {
	return &HTTPError{
		Op:         op,
		StatusCode: statusCode,
		Body:       body,
	}
}

// ValidationError represents a client-side validation failure. No request
// is issued when one is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// IsAuthError reports whether err is a missing or rejected credential.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsNetworkError reports whether err is (or wraps) a NetworkError.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode
	}
	return 0
}
