package ir

import (
	"errors"
	"fmt"
)

// TypeMismatchError reports a malformed tree detected while it was built.
// It is the only error tree construction returns.
type TypeMismatchError struct {
	// Node names the constructor that rejected its operands ("Assign", "MemberAccess", ...).
	Node string

	// Message is a human-readable description.
	Message string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("TYPE_MISMATCH: %s: %s", e.Node, e.Message)
}

// IsTypeMismatch returns true if err is or wraps a *TypeMismatchError.
func IsTypeMismatch(err error) bool {
	var tm *TypeMismatchError
	return errors.As(err, &tm)
}

func mismatch(node, format string, args ...any) *TypeMismatchError {
	return &TypeMismatchError{Node: node, Message: fmt.Sprintf(format, args...)}
}
