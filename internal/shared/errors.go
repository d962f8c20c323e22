package shared

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound indicates a referenced record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates a malformed or rejected request.
	ErrValidation = errors.New("validation failed")
	// ErrQuotaExceeded indicates the company package invoice limit is reached.
	ErrQuotaExceeded = errors.New("invoice quota exceeded")
	// ErrConflict indicates a retryable write conflict, e.g. an invoice
	// number race that survived all retries.
	ErrConflict = errors.New("write conflict")
	// ErrConsistency indicates an internal invariant was broken. Treated as
	// a bug: logged, transaction aborted.
	ErrConsistency = errors.New("consistency violation")
)

// FieldViolation is a single field-level validation failure.
type FieldViolation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries field-level violations and unwraps to ErrValidation.
type ValidationError struct {
	Violations []FieldViolation
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return ErrValidation.Error()
	}
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, fmt.Sprintf("%s: %s", v.Field, v.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError builds a ValidationError from violations.
func NewValidationError(violations ...FieldViolation) error {
	return &ValidationError{Violations: violations}
}

// Violationf builds a formatted violation for field.
func Violationf(field, format string, args ...any) FieldViolation {
	return FieldViolation{Field: field, Message: fmt.Sprintf(format, args...)}
}
