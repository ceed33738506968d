// Package errors provides the error taxonomy shared by the FinTrack core.
// Storage failures are split by direction: read failures are recovered where
// they happen, write failures travel back to the caller of an action.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors for common conditions.
var (
	ErrStorageUnavailable  = errors.New("storage unavailable")
	ErrReadFailure         = errors.New("read failure")
	ErrPermissionDenied    = errors.New("notification permission denied")
	ErrMalformedLegacyData = errors.New("malformed legacy data")
	ErrNotBooted           = errors.New("application state not booted")
	ErrShutdown            = errors.New("application state shut down")
	ErrNotFound            = errors.New("not found")
	ErrInvalidTime         = errors.New("invalid time of day")
	ErrInvalidDate         = errors.New("invalid date")
	ErrInvalidAmount       = errors.New("invalid amount")
)

// UserError represents an error that the user can fix.
// Examples: invalid input, missing required arguments, incorrect format.
type UserError struct {
	Message    string // What happened
	Suggestion string // How to fix it
	Field      string // The field/input that caused the error (optional)
	Value      string // The invalid value (optional)
}

func (e *UserError) Error() string {
	msg := e.Message
	if e.Field != "" && e.Value != "" {
		msg = fmt.Sprintf("%s: '%s'", e.Message, e.Value)
	}
	return msg
}

// NewUserError creates a new UserError.
func NewUserError(message, suggestion string) *UserError {
	return &UserError{
		Message:    message,
		Suggestion: suggestion,
	}
}

// NewUserErrorWithField creates a new UserError with field context.
func NewUserErrorWithField(field, value, message, suggestion string) *UserError {
	return &UserError{
		Message:    message,
		Field:      field,
		Value:      value,
		Suggestion: suggestion,
	}
}

// SystemError represents a system-level error that the user cannot directly fix.
type SystemError struct {
	Message string // What happened
	Cause   error  // The underlying error
	Op      string // The operation that failed (optional)
}

func (e *SystemError) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = fmt.Sprintf("%s during %s", e.Message, e.Op)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *SystemError) Unwrap() error {
	return e.Cause
}

// NewSystemError creates a new SystemError.
func NewSystemError(message string, cause error) *SystemError {
	return &SystemError{
		Message: message,
		Cause:   cause,
	}
}

// NewSystemErrorWithOp creates a new SystemError with operation context.
func NewSystemErrorWithOp(op, message string, cause error) *SystemError {
	return &SystemError{
		Message: message,
		Cause:   cause,
		Op:      op,
	}
}

// WriteError is returned when a durable write fails. The in-memory state is
// never updated for a write that produced one.
type WriteError struct {
	Op     string // upsert, delete, set
	Entity string // transaction, note, setting, notification
	ID     string // Entity id or key
	Cause  error
}

func (e *WriteError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("write failed: %s %s %q: %v", e.Op, e.Entity, e.ID, e.Cause)
	}
	return fmt.Sprintf("write failed: %s %s: %v", e.Op, e.Entity, e.Cause)
}

func (e *WriteError) Unwrap() error {
	return e.Cause
}

// NewWriteError creates a new WriteError.
func NewWriteError(op, entity, id string, cause error) *WriteError {
	return &WriteError{
		Op:     op,
		Entity: entity,
		ID:     id,
		Cause:  cause,
	}
}

// IsUserError checks if an error is a UserError.
func IsUserError(err error) bool {
	var ue *UserError
	return errors.As(err, &ue)
}

// IsSystemError checks if an error is a SystemError.
func IsSystemError(err error) bool {
	var se *SystemError
	return errors.As(err, &se)
}

// IsWriteError checks if an error is a WriteError.
func IsWriteError(err error) bool {
	var we *WriteError
	return errors.As(err, &we)
}

// AsUserError extracts a UserError from an error chain.
func AsUserError(err error) (*UserError, bool) {
	var ue *UserError
	ok := errors.As(err, &ue)
	return ue, ok
}

// AsWriteError extracts a WriteError from an error chain.
func AsWriteError(err error) (*WriteError, bool) {
	var we *WriteError
	ok := errors.As(err, &we)
	return we, ok
}

// Is is re-exported from the standard errors package for convenience.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is re-exported from the standard errors package for convenience.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Join is re-exported from the standard errors package for convenience.
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted additional context.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
