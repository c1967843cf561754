package queue

import (
	"errors"
	"fmt"
)

// ErrNoJobs is returned by Dequeue when no visible Pending job exists.
var ErrNoJobs = errors.New("no jobs available")

// ValidationError marks a missing or malformed payload. Jobs failing with
// a ValidationError are never retried: they go straight to Failed.
type ValidationError struct {
	Reason string
}

// NewValidationError creates a ValidationError with the given reason.
func NewValidationError(reason string) *ValidationError {
	return &ValidationError{Reason: reason}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return "validation failure: " + e.Reason
}

// UnknownKindError marks a job whose kind has no registered handler or
// decoder. Treated as an immediate terminal failure.
type UnknownKindError struct {
	Kind Kind
}

// Error implements the error interface.
func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("unknown job kind %q", e.Kind)
}

// IsValidationError reports whether err is or wraps a ValidationError.
func IsValidationError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsUnknownKindError reports whether err is or wraps an UnknownKindError.
func IsUnknownKindError(err error) bool {
	var u *UnknownKindError
	return errors.As(err, &u)
}

// IsTerminalFailure reports whether err must end the job immediately,
// without consuming retries. Everything else is treated as transient and
// retried per the retry policy.
func IsTerminalFailure(err error) bool {
	return IsValidationError(err) || IsUnknownKindError(err)
}
