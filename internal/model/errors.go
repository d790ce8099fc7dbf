package model

import (
	"errors"
	"fmt"
)

// Error classes. Callers match them with errors.Is.
var (
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")
	ErrNotFound   = errors.New("not found")
)

// Consumption state errors.
var (
	ErrAlreadyExecuted = fmt.Errorf("%w: consumption already executed for date", ErrConflict)
	ErrNotExecuted     = fmt.Errorf("%w: no consumption recorded for date", ErrNotFound)
)

// Invalidf returns an error wrapping ErrValidation.
func Invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Conflictf returns an error wrapping ErrConflict.
func Conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// NotFoundf returns an error wrapping ErrNotFound.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}
