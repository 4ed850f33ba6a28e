package models

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by services and handlers. Callers wrap these with
// fmt.Errorf("...: %w") and match with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
)

// TransitionError reports a status change that the entity's transition table
// does not allow. It unwraps to ErrConflict.
type TransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: invalid transition %s -> %s", e.Entity, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrConflict
}

func invalidTransition(entity string, from, to fmt.Stringer) error {
	return &TransitionError{Entity: entity, From: from.String(), To: to.String()}
}

// ValidationError wraps ErrValidation with the offending field
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

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError builds a ValidationError for field
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
