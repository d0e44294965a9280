package source

import (
	"fmt"

	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// Error reports a malformed source file with its position.
type Error struct {
	// Field is the CUE path of the offending value, e.g.
	// "lambdas.SetHealth.body.assign.target".
	Field   string
	Message string
	Pos     token.Pos

	// Err is the underlying error, if any (a *ir.TypeMismatchError for
	// ill-typed trees).
	Err error
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// formatCUEError extracts position info from CUE errors.
func formatCUEError(field string, err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &Error{Field: field, Message: err.Error(), Err: err}
	}
	first := errs[0]
	e := &Error{Field: field, Message: first.Error(), Err: err}
	if positions := errors.Positions(first); len(positions) > 0 {
		e.Pos = positions[0]
	}
	return e
}
