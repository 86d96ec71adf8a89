package common

import (
	"context"
	"errors"
)

// Wire error codes shared by the HTTP and gRPC transports.
const (
	CodeInvalidCursor   = "INVALID_CURSOR"
	CodeValidation      = "VALIDATION_ERROR"
	CodeUnknownEntity   = "UNKNOWN_ENTITY"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeStorage         = "STORAGE_ERROR"
	CodeInternal        = "INTERNAL_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeRequestCanceled = "CANCELED"
)

// ErrorCode classifies err into one of the wire error codes.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidCursor):
		return CodeInvalidCursor
	case errors.Is(err, ErrorValidation):
		return CodeValidation
	case errors.Is(err, ErrUnknownEntity):
		return CodeUnknownEntity
	case errors.Is(err, ErrorUnauthorized), errors.Is(err, ErrInvalidToken), errors.Is(err, ErrTokenExpired):
		return CodeUnauthorized
	case errors.Is(err, ErrorStorage):
		return CodeStorage
	case errors.Is(err, ErrorNotFound):
		return CodeNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return CodeRequestCanceled
	}
	return CodeInternal
}

// ErrorFromCode maps a wire code back to its sentinel so callers on the
// device side can keep using errors.Is.
func ErrorFromCode(code string) error {
	switch code {
	case CodeInvalidCursor:
		return ErrInvalidCursor
	case CodeValidation:
		return ErrorValidation
	case CodeUnknownEntity:
		return ErrUnknownEntity
	case CodeUnauthorized:
		return ErrorUnauthorized
	case CodeStorage:
		return ErrorStorage
	case CodeNotFound:
		return ErrorNotFound
	case CodeRequestCanceled:
		return context.Canceled
	}
	return ErrorInternal
}
