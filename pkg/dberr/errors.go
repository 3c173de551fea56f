// Package dberr defines the error taxonomy for the database layer and
// classifies raw driver errors into it.
//
// Two categories are safe to surface verbatim to end users: validation
// errors and constraint violations (whose text is rewritten into fixed
// vendor-neutral templates). Everything else is wrapped into a sanitized
// generic message with the original error attached as an unexported cause,
// so connection strings and internal schema details never leak.
package dberr

import (
	"errors"
	"fmt"
	"time"
)

// ErrStreamCancelled is returned by a row stream after the caller cancels
// it. It is safe to show to end users.
var ErrStreamCancelled = errors.New("stream cancelled by caller")

// ValidationError reports invalid caller input (bad identifier, malformed
// WHERE condition, missing operator value). It is raised before any
// network call and is always safe to surface.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return "validation failed: " + e.Message
}

// Validationf builds a ValidationError with a formatted message.
func Validationf(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ConstraintKind identifies the category of a constraint violation.
type ConstraintKind string

// Constraint violation categories.
const (
	ConstraintUnique     ConstraintKind = "unique"
	ConstraintForeignKey ConstraintKind = "foreign_key"
	ConstraintNotNull    ConstraintKind = "not_null"
	ConstraintCheck      ConstraintKind = "check"
)

// ConstraintViolationError is a classified constraint failure. The message
// is a fixed safe template per kind; the raw driver error stays in the
// unexported cause for server-side logs.
type ConstraintViolationError struct {
	Kind       ConstraintKind
	Constraint string // constraint or column name when the driver reports one
	// CascadeHint is set for foreign-key violations raised by a DELETE,
	// suggesting dependent rows block the operation.
	CascadeHint bool

	cause error
}

// Error implements the error interface.
func (e *ConstraintViolationError) Error() string {
	var msg string
	switch e.Kind {
	case ConstraintUnique:
		msg = "a record with the same unique value already exists"
	case ConstraintForeignKey:
		msg = "the operation references a record that does not exist or is still referenced"
		if e.CascadeHint {
			msg = "the record cannot be deleted because other records still reference it"
		}
	case ConstraintNotNull:
		msg = "a required value is missing"
	case ConstraintCheck:
		msg = "a value violates a table constraint"
	default:
		msg = "a database constraint was violated"
	}
	if e.Constraint != "" {
		return fmt.Sprintf("%s (constraint %s)", msg, e.Constraint)
	}
	return msg
}

// Unwrap returns the underlying driver error.
func (e *ConstraintViolationError) Unwrap() error { return e.cause }

// TimeoutError reports that a transaction or stream exceeded its budget.
// The message includes the configured duration and is safe to surface.
type TimeoutError struct {
	Op      string
	Timeout time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Op, e.Timeout)
}

// ConnectionError reports a failed connect or health check. The safe text
// says only that the database is unavailable; the raw driver error stays
// in the cause.
type ConnectionError struct {
	cause error
}

// NewConnectionError wraps a raw driver connect failure.
func NewConnectionError(cause error) *ConnectionError {
	return &ConnectionError{cause: cause}
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	return "database is unavailable"
}

// Unwrap returns the underlying driver error.
func (e *ConnectionError) Unwrap() error { return e.cause }

// DatabaseError is the sanitized wrapper for every driver error that does
// not classify into a more specific category.
type DatabaseError struct {
	cause error
}

// Error implements the error interface.
func (e *DatabaseError) Error() string {
	return "query failed, see logs for details"
}

// Unwrap returns the underlying driver error.
func (e *DatabaseError) Unwrap() error { return e.cause }
