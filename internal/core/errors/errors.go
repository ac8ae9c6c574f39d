package errors

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	// Identity
	ErrIdentityUnresolved = errors.New("caller identity could not be resolved")
	ErrUnauthorized       = errors.New("unauthorized")

	// Directory
	ErrUserNotFound = errors.New("user not found")

	// Trust store
	ErrTrustStoreUnavailable = errors.New("trust store unavailable")
	ErrInvalidTrustMaterial  = errors.New("invalid trust material")
	ErrEmptyTrustStore       = errors.New("trust store contains no certificates")

	// Outbound invocation
	ErrEndpointRequired = errors.New("invoker endpoint is required")

	// Generic
	ErrNotFound         = errors.New("resource not found")
	ErrMethodNotAllowed = errors.New("method not allowed")
	ErrInternal         = errors.New("internal server error")
	ErrRateLimited      = errors.New("rate limit exceeded")
)

// AppError wraps errors with additional context for HTTP responses
type AppError struct {
	Err        error  // The underlying error
	Message    string // User-friendly message
	Code       string // Machine-readable error code
	StatusCode int    // HTTP status code
	Details    map[string]interface{}
}

func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Error constructors for common cases
func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Err:        ErrUnauthorized,
		Message:    message,
		Code:       "UNAUTHORIZED",
		StatusCode: 401,
	}
}

func NewNotFoundError(err error, message string) *AppError {
	return &AppError{
		Err:        err,
		Message:    message,
		Code:       "NOT_FOUND",
		StatusCode: 404,
	}
}

func NewMethodNotAllowedError(method string) *AppError {
	return &AppError{
		Err:        ErrMethodNotAllowed,
		Message:    fmt.Sprintf("Method %s not allowed", method),
		Code:       "METHOD_NOT_ALLOWED",
		StatusCode: 405,
	}
}

func NewRateLimitError() *AppError {
	return &AppError{
		Err:        ErrRateLimited,
		Message:    "Too many requests. Please try again later.",
		Code:       "RATE_LIMITED",
		StatusCode: 429,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Err:        err,
		Message:    "An unexpected error occurred",
		Code:       "INTERNAL_ERROR",
		StatusCode: 500,
	}
}

// NewServerError exposes the underlying failure message to the caller.
// Used where the response contract requires the cause in the body.
func NewServerError(err error) *AppError {
	return &AppError{
		Err:        err,
		Message:    fmt.Sprintf("Server error: %s", err.Error()),
		Code:       "SERVER_ERROR",
		StatusCode: 500,
	}
}
