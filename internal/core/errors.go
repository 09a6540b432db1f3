package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrDayLocked  = errors.New("attendance day already locked")
	ErrBadLogin   = errors.New("invalid username or password")
)

// ValidationError lists the request fields that failed validation.
type ValidationError struct {
	Fields []string
}

func NewValidationError(fields ...string) *ValidationError {
	return &ValidationError{Fields: fields}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 1 {
		return "Missing required field: " + e.Fields[0]
	}
	return "Missing required fields: " + strings.Join(e.Fields, ", ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NotFound wraps ErrNotFound with the missing entity description.
func NotFound(what string, id string) error {
	return fmt.Errorf("%s %s %w", what, id, ErrNotFound)
}

// IsValidation reports whether err is a validation failure of any kind.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidStatus)
}
