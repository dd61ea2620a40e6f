package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrValidation   = errors.New("validation failed")
	ErrDatabase     = errors.New("database error")
	ErrConfig       = errors.New("configuration error")

	// ErrNoUniqueRule is returned by the rule catalog when zero or more than
	// one billing rule matches a key tuple. Catalog misconfiguration, never
	// resolved by picking one silently.
	ErrNoUniqueRule = errors.New("no unique billing rule")

	// ErrStaleRead is returned when a reconciliation or evaluation reads a
	// ledger that is being rebuilt by a concurrent import.
	ErrStaleRead = errors.New("ledger rebuild in progress")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
