// Package errors provides domain-specific error types and sentinel errors
// for improved error handling across the application.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common scenarios.
// Use errors.Is() to check these errors in your code.
var (
	// ErrNotFound indicates a requested resource was not found
	// (no student record, no schedule row, no staff account).
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates user provided invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrPortalAuth indicates the LMS portal rejected the supplied credentials.
	ErrPortalAuth = errors.New("portal authentication failed")

	// ErrTimeout indicates an operation ran out of time, retries included.
	ErrTimeout = errors.New("operation timed out")
)

// ValidationError represents input validation failures.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// Unwrap ties every validation failure to the ErrInvalidInput sentinel, so
// callers can branch on errors.Is without naming the concrete type.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NewValidationError creates a new validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// CollaboratorError represents a failure in an external collaborator
// (storage, LMS portal, delivery sink). Handlers catch it at the boundary,
// log it, and render a user-visible failure message without breaking the
// conversation state machine.
type CollaboratorError struct {
	Collaborator string // "storage", "portal", "delivery"
	Op           string // operation being performed (e.g., "get_student", "login")
	Err          error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Collaborator, e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

// NewCollaboratorError creates a new collaborator error.
// Returns nil if err is nil.
func NewCollaboratorError(collaborator, op string, err error) error {
	if err == nil {
		return nil
	}
	return &CollaboratorError{
		Collaborator: collaborator,
		Op:           op,
		Err:          err,
	}
}

// IsCollaborator reports whether err is (or wraps) a CollaboratorError.
func IsCollaborator(err error) bool {
	var ce *CollaboratorError
	return errors.As(err, &ce)
}
