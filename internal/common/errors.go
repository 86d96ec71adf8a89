// Package common defines shared constants and sentinel errors used across
// the fieldsync server, its transports and the device client. Callers should
// use errors.Is to match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrVersionConflict = errors.New("version conflict")
	ErrorStorage       = errors.New("storage unavailable")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrUnknownEntity  = errors.New("unknown entity")

	// Validation errors. Mutations failing validation are rejected individually,
	// a bad pull parameter fails the whole call.
	ErrorValidation = errors.New("validation error")

	// ErrInvalidCursor means the client must restart a full sync with since=null.
	ErrInvalidCursor = errors.New("invalid cursor")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// ValidationError carries a human-readable reason for rejecting input.
// It matches ErrorValidation with errors.Is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrorValidation
}

// Invalid is a shorthand for building a *ValidationError.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsRejection reports whether err should turn a single mutation into a
// rejected result instead of failing the whole push.
func IsRejection(err error) bool {
	return errors.Is(err, ErrorValidation) || errors.Is(err, ErrorNotFound)
}
