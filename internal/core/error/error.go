package errx

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// SQLErrorMessage describes SQL store failures.
	SQLErrorMessage = "session database operation failed"
	// SessionUnavailableMessage is returned when conversation state cannot be read or written.
	SessionUnavailableMessage = "conversation state is temporarily unavailable, please retry"
	// BadRequestMessage describes malformed caller input.
	BadRequestMessage = "invalid request"
)

// AppError wraps an underlying error with an HTTP status and safe message.
type AppError struct {
	Err       error
	Status    int
	Message   string
	Retryable bool
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the provided information.
func New(err error, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Status:  status,
		Message: message,
	}
}

// WrapRedis wraps a Redis error with a consistent status code and message.
func WrapRedis(err error) error {
	if err == nil {
		return nil
	}
	return &AppError{
		Err:       err,
		Status:    http.StatusBadGateway,
		Message:   RedisErrorMessage,
		Retryable: true,
	}
}

// WrapSQL wraps a database/sql error with a consistent status code and message.
func WrapSQL(err error) error {
	if err == nil {
		return nil
	}
	return &AppError{
		Err:       err,
		Status:    http.StatusBadGateway,
		Message:   SQLErrorMessage,
		Retryable: true,
	}
}

// SessionUnavailable marks a turn as failed because the session store could not be used.
func SessionUnavailable(err error) error {
	if err == nil {
		return nil
	}
	return &AppError{
		Err:       err,
		Status:    http.StatusServiceUnavailable,
		Message:   SessionUnavailableMessage,
		Retryable: true,
	}
}

// BadRequest wraps a caller input problem.
func BadRequest(msg string) error {
	return &AppError{
		Status:  http.StatusBadRequest,
		Message: fmt.Sprintf("%s: %s", BadRequestMessage, msg),
	}
}

// IsRetryable reports whether any AppError in the chain is marked retryable.
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}

// StatusOf returns the HTTP status carried by err, or 500.
func StatusOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Status != 0 {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

// Is reports whether the target matches the underlying error or the AppError itself.
func (e *AppError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// As allows casting to AppError or the wrapped error in a chain.
func (e *AppError) As(target any) bool {
	if errors.As(e.Err, target) {
		return true
	}
	if t, ok := target.(**AppError); ok {
		*t = e
		return true
	}
	return false
}
