package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrInvalidArgument = errors.New("invalid argument")

	// AI runtime error kinds. The Ollama adapter classifies every transport
	// failure into exactly one of these; callers switch over kinds instead of
	// re-inspecting raw HTTP errors.
	ErrAIUnavailable     = errors.New("ai runtime unavailable")
	ErrModelNotFound     = errors.New("model not found")
	ErrRequestTimeout    = errors.New("ai request timed out")
	ErrAICallFailed      = errors.New("ai call failed")
	ErrNoModelsAvailable = errors.New("no models available")

	// ErrGenerationInProgress is returned when a session already has an
	// in-flight completion task holding the generation lock.
	ErrGenerationInProgress = errors.New("a response is already being generated for this session")
)

// ValidationError carries user-facing copy for an invalid input. It unwraps to
// ErrInvalidArgument so callers can branch on the kind without losing the
// field-specific message.
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

func (e *ValidationError) Unwrap() error { return ErrInvalidArgument }

// NewValidationError builds a ValidationError for the given field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation reports whether err is (or wraps) a validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}
