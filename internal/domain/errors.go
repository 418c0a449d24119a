package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by every layer. Wrap them with fmt.Errorf("...: %w")
// and test with errors.Is.
var (
	// ErrProviderUnavailable means the AI backend has no credential or
	// configuration and was never called.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrProviderFailed means the AI backend call itself failed or returned
	// content that could not be used (empty, unparseable).
	ErrProviderFailed = errors.New("provider error")

	// ErrDimensionMismatch means two vectors of different length were compared
	// or an embedding of the wrong size was about to be stored.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrNotFound is returned by repository lookups that match nothing.
	ErrNotFound = errors.New("not found")
)

// ValidationError reports a missing or malformed request field.
type ValidationError struct {
	// Field is the request field name as the caller spelled it (e.g. "question").
	Field string
	// Message is a short human-readable explanation.
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

// NewValidationError returns a *ValidationError for field.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// AsValidation unwraps err into a *ValidationError if it carries one.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// IsProviderFailure reports whether err is one of the AI backend failure
// kinds that callers are expected to degrade on.
func IsProviderFailure(err error) bool {
	return errors.Is(err, ErrProviderUnavailable) || errors.Is(err, ErrProviderFailed)
}
