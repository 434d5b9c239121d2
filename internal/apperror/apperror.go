// Package apperror defines the domain error taxonomy shared by every layer.
//
// Services return *AppError values that wrap one of the sentinel errors below.
// Callers classify them with errors.Is (the sentinel) and read the
// human-readable Message for display; the HTTP layer maps sentinels to status
// codes in handler.writeError.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("Validation Error")
	ErrConflict        = errors.New("conflict")
	ErrForbidden       = errors.New("forbidden")
	ErrUnauthenticated = errors.New("unauthenticated")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

// Missing is NotFound with a caller-chosen message, e.g. "Template not found".
func Missing(message string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: message,
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Duplicate is Conflict with a caller-chosen message, e.g. "Email already subscribed".
func Duplicate(message string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: message,
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized is the ownership failure: the caller is known but does not own
// the resource. It shares ErrForbidden with Forbidden.
func Unauthorized() *AppError {
	return Forbidden("Not authorized")
}

// Unauthenticated is returned before any store access when a mutation has no
// resolved caller identity. HTTP handlers map this to 401.
func Unauthenticated() *AppError {
	return &AppError{
		Err:     ErrUnauthenticated,
		Message: "Not authenticated",
	}
}
