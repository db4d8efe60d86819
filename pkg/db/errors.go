package db

import (
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

var (
	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned for integrity violations that a caller may retry.
	ErrConflict = errors.New("conflict")
	// ErrValidation marks malformed input rejected before reaching storage.
	ErrValidation = errors.New("validation error")
	// ErrInvalidTransition is returned for a disallowed document status change.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrDocumentFailed is returned when writing occurrences for a failed document.
	ErrDocumentFailed = errors.New("document is failed")
)

// ValidationError describes a single rejected field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError creates a ValidationError for field.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// ConflictError wraps a unique or primary key violation.
type ConflictError struct {
	Op  string
	Err error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: conflict: %v", e.Op, e.Err)
}

func (e *ConflictError) Unwrap() error { return e.Err }

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// TransitionError reports a rejected document status change.
type TransitionError struct {
	From, To DocumentStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move document from %s to %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// IsRetryable reports whether err is a conflict the caller may retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict)
}

// isUniqueConstraintErr returns true when the error is a sqlite unique or
// primary key violation.
func isUniqueConstraintErr(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
		se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

// wrapWriteErr converts constraint violations into a ConflictError.
func wrapWriteErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if isUniqueConstraintErr(err) {
		return &ConflictError{Op: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}
