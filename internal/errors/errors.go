// Package errors turns recovered panics into errors that keep the stack of
// the panicking goroutine. Search jobs and HTTP handlers both recover through
// it so a crash is reported instead of taking the process down.
package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"strings"
)

// Error is a recovered panic with context and stack trace.
type Error struct {
	// Err is the panic value as an error.
	Err error
	// Message describes the failure.
	Message string
	// Operation is what was running when the panic happened.
	Operation string
	// Component is the package or subsystem that recovered.
	Component string
	// Stack starts at the frame that panicked.
	Stack []string
}

// Error renders "component: operation: message: cause", skipping empty parts.
func (e *Error) Error() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{e.Component, e.Operation, e.Message} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	return strings.Join(parts, ": ")
}

// Unwrap returns the panic value when it was an error.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithOperation sets the operation.
func (e *Error) WithOperation(op string) *Error {
	e.Operation = op
	return e
}

// WithComponent sets the component.
func (e *Error) WithComponent(component string) *Error {
	e.Component = component
	return e
}

// StackTrace returns the stack trace, innermost frame first.
func (e *Error) StackTrace() []string {
	return e.Stack
}

// Origin returns the innermost frame of the stack, or "" when unknown.
func (e *Error) Origin() string {
	if len(e.Stack) == 0 {
		return ""
	}
	return e.Stack[0]
}

// FromPanic converts a recovered panic value into an error. It must be called
// from the deferred function that recovered so the stack still holds the
// panicking frames.
func FromPanic(rec interface{}) *Error {
	e := &Error{
		Message: "panic",
		Stack:   panicStack(),
	}
	switch v := rec.(type) {
	case error:
		e.Err = v
	default:
		e.Err = fmt.Errorf("%v", v)
	}
	return e
}

// Recover runs fn and returns the panic it raised, if any, as an *Error.
func Recover(fn func()) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = FromPanic(rec)
		}
	}()
	fn()
	return nil
}

// panicStack returns the frames below runtime.gopanic, so the first entry is
// the function that panicked. Without a panic frame the whole stack minus
// this package is returned.
func panicStack() []string {
	const depth = 64
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	if n == 0 {
		return nil
	}

	var (
		all, afterPanic []string
		inPanic         bool
	)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		switch {
		case frame.Function == "runtime.gopanic":
			inPanic = true
			afterPanic = afterPanic[:0]
		case strings.HasPrefix(frame.Function, "runtime."):
		default:
			line := fmt.Sprintf("%s\n\t%s:%d", frame.Function, frame.File, frame.Line)
			if !strings.Contains(frame.File, "internal/errors/errors.go") {
				all = append(all, line)
			}
			if inPanic {
				afterPanic = append(afterPanic, line)
			}
		}
		if !more {
			break
		}
	}
	if inPanic && len(afterPanic) > 0 {
		return afterPanic
	}
	return all
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool { return stderrors.As(err, target) }
