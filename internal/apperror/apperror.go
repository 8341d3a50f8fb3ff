// Package apperror defines the error vocabulary shared by every layer.
//
// Each AppError wraps one of the sentinel errors below, so callers classify
// failures with errors.Is while still getting a human-readable Message:
//
//	if errors.Is(err, apperror.ErrIntegrity) {
//	    // duplicate username, missing required column, ...
//	}
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")
	ErrForbidden  = errors.New("forbidden")

	// ErrIntegrity marks a write the store rejected because it would break a
	// uniqueness, NOT NULL, foreign-key or CHECK constraint. The transaction
	// it happened in has been rolled back by the time the caller sees it.
	ErrIntegrity = errors.New("integrity violation")

	// ErrUnauthorized marks a protected operation called without a valid
	// caller identity.
	ErrUnauthorized = errors.New("unauthorized")
)

type AppError struct {
	Err     error  // sentinel, one of the Err* values above
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

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Integrity returns an AppError for a rejected constraint. field names the
// offending column when the driver reports it ("username", "email"), and is
// empty otherwise.
func Integrity(field, message string) *AppError {
	return &AppError{
		Err:     ErrIntegrity,
		Message: message,
		Field:   field,
	}
}

// Unauthorized returns an AppError for a missing or invalid caller identity.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}
