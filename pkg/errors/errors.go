package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrProtectedKey indicates an attempt to set a protected config key
	// (owner, path or callbacks) through the generic context-put path
	ErrProtectedKey = errors.New("protected config key")

	// ErrKeyNotFound indicates a context lookup miss on a non-protected key
	ErrKeyNotFound = errors.New("config key not found")

	// ErrMissingDependency indicates that an integration's required external
	// service or client is not configured
	ErrMissingDependency = errors.New("missing optional dependency")

	// ErrAlreadyRegistered indicates that a unit is already registered under
	// the requested lookup key
	ErrAlreadyRegistered = errors.New("unit already registered")

	// ErrNoProcess indicates that no live unit could be resolved
	ErrNoProcess = errors.New("no process found")

	// ErrTimeout indicates that an await operation timed out
	ErrTimeout = errors.New("operation timed out")

	// ErrTerminateTimeout indicates that a unit did not report termination
	// within the bounded wait
	ErrTerminateTimeout = errors.New("termination timed out")

	// ErrNilConfig indicates that a config was required but absent
	ErrNilConfig = errors.New("config cannot be nil")
)

// Error represents a structured library error
type Error struct {
	// Code is a machine-readable error code
	Code string

	// Message is a human-readable error message
	Message string

	// Err is the underlying error, if any
	Err error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new structured error
func NewError(code, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsTimeout checks if an error is a timeout error
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsMissingDependency checks if an error reports an absent integration dependency
func IsMissingDependency(err error) bool {
	return errors.Is(err, ErrMissingDependency)
}

// IsProtectedKey checks if an error reports a write to a protected config key
func IsProtectedKey(err error) bool {
	return errors.Is(err, ErrProtectedKey)
}

// IsKeyNotFound checks if an error reports a config context lookup miss
func IsKeyNotFound(err error) bool {
	return errors.Is(err, ErrKeyNotFound)
}
