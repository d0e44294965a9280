package vm

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected while a compiled lambda runs.
//
// Runtime errors include:
//   - Null reference: a member of a null class reference was read or written
//   - Divide by zero: integer div or rem with a zero divisor
//   - Signature mismatch: Invoke was called with arguments that do not fit
//     the lambda's parameters
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Func names the lambda that failed.
	Func string

	// PC is the failing instruction, -1 when the failure precedes execution.
	PC int
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeNullReference indicates a member access through a null reference.
	ErrCodeNullReference RuntimeErrorCode = "NULL_REFERENCE"

	// ErrCodeDivideByZero indicates an integer division by zero.
	ErrCodeDivideByZero RuntimeErrorCode = "DIVIDE_BY_ZERO"

	// ErrCodeSignatureMismatch indicates arguments that do not fit the signature.
	ErrCodeSignatureMismatch RuntimeErrorCode = "SIGNATURE_MISMATCH"

	// ErrCodeInvalidProgram indicates an instruction sequence the emitter
	// never produces, such as taking the address of a temporary.
	ErrCodeInvalidProgram RuntimeErrorCode = "INVALID_PROGRAM"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.PC >= 0 {
		return fmt.Sprintf("%s: %s (func=%s, pc=%d)", e.Code, e.Message, e.Func, e.PC)
	}
	return fmt.Sprintf("%s: %s (func=%s)", e.Code, e.Message, e.Func)
}

func isCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsNullReference returns true if err is a null reference error.
// Uses errors.As to handle wrapped errors.
func IsNullReference(err error) bool { return isCode(err, ErrCodeNullReference) }

// IsDivideByZero returns true if err is a division by zero error.
func IsDivideByZero(err error) bool { return isCode(err, ErrCodeDivideByZero) }

// IsSignatureMismatch returns true if err is a signature mismatch error.
func IsSignatureMismatch(err error) bool { return isCode(err, ErrCodeSignatureMismatch) }

func signatureMismatch(fn, format string, args ...any) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeSignatureMismatch,
		Message: fmt.Sprintf(format, args...),
		Func:    fn,
		PC:      -1,
	}
}
