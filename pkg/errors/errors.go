package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error. An expired deadline anywhere
// in the chain surfaces as the retryable database-unavailable error instead
// of a generic internal failure, whatever code the caller asked for.
func Wrap(err error, code string, status int, message string) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Code: ErrDatabaseUnavailable.Code, Status: ErrDatabaseUnavailable.Status, Message: ErrDatabaseUnavailable.Message, Err: err}
	}
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")

	// ErrInvalidTransition rejects report status changes that would move the
	// lifecycle backwards or edit a row whose status no longer permits it.
	ErrInvalidTransition = New("INVALID_STATE_TRANSITION", http.StatusConflict, "status does not permit this action")

	// ErrDatabaseUnavailable is retryable by the caller with backoff.
	ErrDatabaseUnavailable = New("DATABASE_UNAVAILABLE", http.StatusServiceUnavailable, "database unavailable")

	// ErrStreamReferenced blocks stream deletion while courses point at it.
	ErrStreamReferenced = New("STREAM_REFERENCED", http.StatusConflict, "stream is referenced by existing courses")

	// ErrCacheMiss signals a cache-aside lookup found nothing.
	ErrCacheMiss = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
