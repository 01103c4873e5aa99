package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a task, execution, member or household does not resolve.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when a non-owner runs an owner-only operation.
	ErrForbidden = errors.New("forbidden")
	// ErrDuplicateCompletion is returned on a second counting completion of a recurring task in one week.
	ErrDuplicateCompletion = errors.New("task already completed this week")
)

// ValidationError names the offending field of a rejected input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError is a shorthand used by the validation chains.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr)
}
