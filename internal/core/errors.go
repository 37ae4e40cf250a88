package core

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrValidation   = errors.New("validation failed")

	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidCurrency = errors.New("invalid currency")
)

// ValidationError carries a message that is safe to show to the caller.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid builds a ValidationError.
func Invalid(msg string) error {
	return &ValidationError{Message: msg}
}

// ConflictError is a unique-constraint violation with a user-facing message.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

func (e *ConflictError) Unwrap() error { return ErrConflict }

func Conflict(msg string) error {
	return &ConflictError{Message: msg}
}

// ConversionError reports a missing exchange rate.
type ConversionError struct {
	From string
	To   string
	Err  error
}

func (e *ConversionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("no exchange rate from %s to %s: %v", e.From, e.To, e.Err)
	}
	return fmt.Sprintf("no exchange rate from %s to %s", e.From, e.To)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// PartialFailure summarizes instances of a series that could not be created.
type PartialFailure struct {
	Failed int
	Errs   []error
}

func (e *PartialFailure) Error() string {
	return fmt.Sprintf("%d instance(s) failed: %v", e.Failed, errors.Join(e.Errs...))
}

func (e *PartialFailure) Unwrap() []error { return e.Errs }
