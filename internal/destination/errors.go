package destination

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned when no city or season matches the given id.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a write would break a uniqueness constraint.
	ErrConflict = errors.New("conflict")

	// ErrPreconditionFailed is returned when an If-Match token no longer matches
	// the stored resource.
	ErrPreconditionFailed = errors.New("precondition failed")
)

// FieldError describes one invalid field using its JSON name.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every problem found in a payload.
type ValidationError struct {
	Fields []FieldError
}

// NewValidationError builds a ValidationError holding a single field problem.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
