// Package common defines shared constants and sentinel errors used across
// the server layers of gophsocial. Callers should use errors.Is to match
// these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrorConflict = errors.New("already exists")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorForbidden    = errors.New("forbidden")
	ErrorValidation   = errors.New("validation error")

	// Credential errors. Both wrap ErrorUnauthorized.
	ErrInvalidCredentials = fmt.Errorf("invalid credentials: %w", ErrorUnauthorized)
	ErrInvalidTOTP        = fmt.Errorf("invalid 2fa token: %w", ErrorUnauthorized)

	// Bearer token errors. All wrap ErrorUnauthorized.
	ErrTokenMissing = fmt.Errorf("token missing: %w", ErrorUnauthorized)
	ErrInvalidToken = fmt.Errorf("invalid token: %w", ErrorUnauthorized)
	ErrTokenExpired = fmt.Errorf("token expired: %w", ErrorUnauthorized)
)

// ValidationError carries a human-readable message for a rejected input.
// It matches ErrorValidation with errors.Is.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Is(target error) bool { return target == ErrorValidation }

// NewValidationError returns a ValidationError with the given message.
func NewValidationError(msg string) error {
	return &ValidationError{Message: msg}
}

// MessageError pairs a sentinel kind (ErrorNotFound, ErrorForbidden, ...)
// with a message that is safe to return to API clients.
type MessageError struct {
	Kind    error
	Message string
}

func (e *MessageError) Error() string { return e.Message }

func (e *MessageError) Unwrap() error { return e.Kind }

// WithMessage returns a MessageError of the given kind.
func WithMessage(kind error, msg string) error {
	return &MessageError{Kind: kind, Message: msg}
}
