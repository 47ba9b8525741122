package optimization

import (
	"errors"
	"fmt"
)

// Error represents an engine error with context that can be wrapped with
// additional information.
type Error struct {
	// Message describes the error that occurred.
	Message string
	// Op is the operation that caused the error.
	Op string
	// Component is the component where the error occurred.
	Component string
	// Err is the underlying error that triggered this one, if any.
	Err error
}

// Error returns the string representation of the error.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var prefix string
	if e.Component != "" && e.Op != "" {
		prefix = fmt.Sprintf("%s: %s", e.Component, e.Op)
	} else if e.Component != "" {
		prefix = e.Component
	} else if e.Op != "" {
		prefix = e.Op
	}

	if e.Err != nil {
		if prefix != "" {
			return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	if prefix != "" {
		return fmt.Sprintf("%s: %s", prefix, e.Message)
	}
	return e.Message
}

// Unwrap returns the underlying error, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// WithOperation adds operation context to the error.
func (e *Error) WithOperation(op string) *Error {
	e.Op = op
	return e
}

// WithComponent adds component context to the error.
func (e *Error) WithComponent(component string) *Error {
	e.Component = component
	return e
}

// NewError creates a new engine error with the given message.
func NewError(message string) *Error {
	return &Error{Message: message}
}

// NewErrorf creates a new engine error with a formatted message.
func NewErrorf(format string, args ...interface{}) *Error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// WrapError wraps an existing error with additional context.
// If err is nil, WrapError returns nil.
func WrapError(err error, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Message: message, Err: err}
}

// WrapErrorf wraps an existing error with additional formatted context.
// If err is nil, WrapErrorf returns nil.
func WrapErrorf(err error, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return &Error{Message: fmt.Sprintf(format, args...), Err: err}
}

// InvalidDimensionError reports a malformed search-space schema. It is raised
// once at construction and is never retried.
type InvalidDimensionError struct {
	Dimension string
	Reason    string
}

func (e *InvalidDimensionError) Error() string {
	if e.Dimension == "" {
		return "invalid dimension: " + e.Reason
	}
	return fmt.Sprintf("invalid dimension %q: %s", e.Dimension, e.Reason)
}

// InvalidWarmStartError reports a warm-start configuration that does not
// address a point of the discretized grid.
type InvalidWarmStartError struct {
	Parameter string
	Value     interface{}
	Reason    string
}

func (e *InvalidWarmStartError) Error() string {
	if e.Parameter == "" {
		return "invalid warm start: " + e.Reason
	}
	return fmt.Sprintf("invalid warm start %s=%v: %s", e.Parameter, e.Value, e.Reason)
}

// EvaluationError reports that the scorer failed for a specific position.
// It is fatal to the job that raised it.
type EvaluationError struct {
	Position Position
	Cause    error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluation failed at position %s: %v", e.Position, e.Cause)
}

func (e *EvaluationError) Unwrap() error { return e.Cause }

// JobFailure wraps the error or crash of one search job at coordinator level.
type JobFailure struct {
	JobID int
	Cause error
}

func (e *JobFailure) Error() string {
	return fmt.Sprintf("job %d failed: %v", e.JobID, e.Cause)
}

func (e *JobFailure) Unwrap() error { return e.Cause }

// IsOptimizationError checks if an error chain contains an *Error.
func IsOptimizationError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
