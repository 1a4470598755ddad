package errorx

import (
	"fmt"
)

// GENERAL ERROR:

// GeneralError - General App Error.
type GeneralError struct {
	message string
	err     error
}

// NewGeneralError - GeneralError constructor.
func NewGeneralError(msg string, args ...any) *GeneralError {
	return &GeneralError{message: fmt.Sprintf(msg, args...), err: nil}
}

// NewGeneralErrorWrapper - GeneralError constructor for wrapper of another error.
func NewGeneralErrorWrapper(err error, msg string, args ...any) *GeneralError {
	return &GeneralError{message: fmt.Sprintf(msg, args...), err: err}
}

// Error - return the error string.
func (ge *GeneralError) Error() string {
	if ge.err != nil {
		return fmt.Errorf("%s # Error wrap: %w", ge.message, ge.err).Error()
	}

	return ge.message
}

// Unwrap - return the wrapped error, if any.
func (ge *GeneralError) Unwrap() error {
	return ge.err
}

// DATABASE ERROR

// DatabaseError - error raised by the underlying database connection.
type DatabaseError struct {
	message string
	err     error
}

// NewDatabaseError - DatabaseError constructor.
func NewDatabaseError(msg string, args ...any) *DatabaseError {
	return &DatabaseError{message: fmt.Sprintf(msg, args...), err: nil}
}

// NewDatabaseErrorWrapper - DatabaseError constructor for wrapper of another error.
func NewDatabaseErrorWrapper(err error, msg string, args ...any) *DatabaseError {
	return &DatabaseError{message: fmt.Sprintf(msg, args...), err: err}
}

// Error - return the error string.
func (ge *DatabaseError) Error() string {
	if ge.err != nil {
		return fmt.Errorf("%s: %w", ge.message, ge.err).Error()
	}

	return ge.message
}

// Unwrap - return the wrapped error, if any.
func (ge *DatabaseError) Unwrap() error {
	return ge.err
}

// USAGE ERROR

// UsageError - the caller used an API in a way it does not allow, e.g. committing a
// transaction twice. Usage errors are reported, never panicked.
type UsageError struct {
	message string
	err     error
}

// NewUsageError - UsageError constructor.
func NewUsageError(msg string, args ...any) *UsageError {
	return &UsageError{message: fmt.Sprintf(msg, args...), err: nil}
}

// NewUsageErrorWrapper - UsageError constructor for wrapper of another error.
func NewUsageErrorWrapper(err error, msg string, args ...any) *UsageError {
	return &UsageError{message: fmt.Sprintf(msg, args...), err: err}
}

// Error - return the error string.
func (ue *UsageError) Error() string {
	if ue.err != nil {
		return fmt.Errorf("%s: %w", ue.message, ue.err).Error()
	}

	return ue.message
}

// Unwrap - return the wrapped error, if any.
func (ue *UsageError) Unwrap() error {
	return ue.err
}
