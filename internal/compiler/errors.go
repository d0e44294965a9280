package compiler

import (
	"errors"
	"fmt"

	"cuelang.org/go/cue/token"
)

// CompileError reports a lambda that cannot be compiled. It is returned before
// any instruction of the lambda runs.
type CompileError struct {
	// Code identifies the failure category.
	Code CompileErrorCode

	// Path locates the offending node from the lambda root, e.g.
	// "body.exprs[1].target".
	Path string

	// Message is a human-readable description.
	Message string

	// Pos is the source position when the lambda came from a CUE file.
	Pos token.Pos
}

// CompileErrorCode categorizes compile errors.
type CompileErrorCode string

const (
	// ErrCodeNotAssignable indicates a target with no addressing mode: a
	// constant, a temporary struct, a property result or a read-only property.
	ErrCodeNotAssignable CompileErrorCode = "NOT_ASSIGNABLE"

	// ErrCodeNotSupported indicates a well-typed node combination the
	// emitter does not handle: nested lambdas, parameters out of scope.
	ErrCodeNotSupported CompileErrorCode = "NOT_SUPPORTED"

	// ErrCodeStackImbalance indicates an emitter defect caught by the
	// symbolic stack-depth tracker.
	ErrCodeStackImbalance CompileErrorCode = "STACK_IMBALANCE"
)

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s: %s: %s: %s", e.Code, e.Pos, e.Path, e.Message)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Path, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func isCode(err error, code CompileErrorCode) bool {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}

// IsNotAssignable returns true if err is or wraps a NOT_ASSIGNABLE CompileError.
func IsNotAssignable(err error) bool { return isCode(err, ErrCodeNotAssignable) }

// IsNotSupported returns true if err is or wraps a NOT_SUPPORTED CompileError.
func IsNotSupported(err error) bool { return isCode(err, ErrCodeNotSupported) }

// IsStackImbalance returns true if err is or wraps a STACK_IMBALANCE CompileError.
func IsStackImbalance(err error) bool { return isCode(err, ErrCodeStackImbalance) }

func notAssignable(path, format string, args ...any) *CompileError {
	return &CompileError{Code: ErrCodeNotAssignable, Path: path, Message: fmt.Sprintf(format, args...)}
}

func notSupported(path, format string, args ...any) *CompileError {
	return &CompileError{Code: ErrCodeNotSupported, Path: path, Message: fmt.Sprintf(format, args...)}
}

func stackImbalance(path, format string, args ...any) *CompileError {
	return &CompileError{Code: ErrCodeStackImbalance, Path: path, Message: fmt.Sprintf(format, args...)}
}
