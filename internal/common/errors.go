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
	ErrExtraction   = errors.New("extraction failed")
	ErrPersistence  = errors.New("persistence failed")
	ErrConfig       = errors.New("invalid configuration")
	ErrQueueClosed  = errors.New("queue is closed")
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

// PersistenceError marks err as a fatal result-store failure.
func PersistenceError(message string, err error) error {
	return NewAppError("PERSISTENCE", message, errors.Join(ErrPersistence, err))
}

// IsFatal reports whether err must abort a benchmark pass.
func IsFatal(err error) bool {
	return errors.Is(err, ErrPersistence)
}
