package eval

import (
	"errors"
	"fmt"
)

// Sentinel errors for error classification.
var (
	// ErrNotReady indicates the evaluator has not finished initializing.
	ErrNotReady = errors.New("evaluator not ready")

	// ErrCompile classifies compile-time evaluation faults.
	ErrCompile = errors.New("compile error")

	// ErrRuntime classifies runtime evaluation faults.
	ErrRuntime = errors.New("runtime error")
)

// CompileError represents a fault raised while parsing or compiling a
// snippet. It includes optional source location information for diagnostics.
type CompileError struct {
	// Message describes the error.
	Message string

	// Line is the 1-based line number where the error occurred.
	// Zero indicates the line is unknown.
	Line int

	// Column is the 1-based column number where the error occurred.
	// Zero indicates the column is unknown.
	Column int

	// Err is the underlying error, if any.
	Err error
}

// Error returns the error message, including line and column if available.
func (e *CompileError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s (line %d, col %d)", e.Message, e.Line, e.Column)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is and errors.As.
func (e *CompileError) Unwrap() error {
	return e.Err
}

// Is reports whether this error matches the target.
// CompileError matches ErrCompile to allow sentinel-style error checking.
func (e *CompileError) Is(target error) bool {
	return target == ErrCompile
}

// RuntimeError represents a fault raised while a compiled snippet was
// running. Cause is the value the snippet failed with; Stack holds one
// rendered frame per entry, innermost first.
type RuntimeError struct {
	// Message describes the error.
	Message string

	// Cause is the underlying failure, if any. Wrapper chains are
	// unwrapped to the innermost cause when rendered.
	Cause error

	// Stack holds the rendered stack frames, one per entry.
	Stack []string
}

// Error returns the error message.
func (e *RuntimeError) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause for use with errors.Is and errors.As.
func (e *RuntimeError) Unwrap() error {
	return e.Cause
}

// Is reports whether this error matches the target.
// RuntimeError matches ErrRuntime to allow sentinel-style error checking.
func (e *RuntimeError) Is(target error) bool {
	return target == ErrRuntime
}

// RootCause follows the Unwrap chain of err to its innermost error. Wrapper
// errors that merely relay another failure are skipped so callers report the
// original fault.
func RootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}
