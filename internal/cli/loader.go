package cli

import (
	"errors"
	"fmt"
	"os"

	"cuelang.org/go/cue/token"

	"github.com/roach88/exprjit/internal/compiler"
	"github.com/roach88/exprjit/internal/ir"
	"github.com/roach88/exprjit/internal/source"
)

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load or build failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeNoLambdas   = "E006" // Source declares no lambdas
	ErrCodeStoreFailed = "E007" // Database open/read/write error
	ErrCodeBadArgs     = "E008" // --args does not match the signature

	// Source errors
	ErrCodeInvalidSource = "E101" // Malformed type or lambda declaration
	ErrCodeTypeMismatch  = "E102" // Ill-typed expression tree

	// Compile errors (validation codes E2xx come from compiler.Validate)
	ErrCodeNotAssignable  = "E301"
	ErrCodeNotSupported   = "E302"
	ErrCodeStackImbalance = "E303"
)

// LoadError represents an error that occurred while loading a source dir.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LambdaError ties an error to the lambda it was raised for.
type LambdaError struct {
	Lambda string
	Err    error
}

func (e *LambdaError) Error() string { return e.Lambda + ": " + e.Err.Error() }

func (e *LambdaError) Unwrap() error { return e.Err }

// LoadModule loads the CUE source in dir. A nil module means nothing usable
// was loaded and errs[0] is a *LoadError. Otherwise errs holds the lambdas
// that failed to parse; the module carries every lambda that did.
func LoadModule(dir string) (*source.Module, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("source directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing source directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	files, err := source.FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(files) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	m, errs := source.LoadDir(dir)
	if m == nil {
		code, message := parseCompileError(errs[0])
		var se *source.Error
		if errors.As(errs[0], &se) && se.Field == "cue" {
			code = ErrCodeLoadFailed
		}
		return nil, []error{&LoadError{Code: code, Message: message, Pos: errorPos(errs[0])}}
	}
	if len(m.Lambdas) == 0 && len(errs) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoLambdas, Message: fmt.Sprintf("no lambdas found in %s", dir)}}
	}
	return m, errs
}

// lookupLambda finds name in m or returns a command error.
func lookupLambda(m *source.Module, name string) (*ir.Lambda, error) {
	lam, ok := m.Lambda(name)
	if !ok {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("lambda %q not found", name)}
	}
	return lam, nil
}

// MapCompileErrorCode maps a compiler error code to a CLI error code.
func MapCompileErrorCode(code compiler.CompileErrorCode) string {
	switch code {
	case compiler.ErrCodeNotAssignable:
		return ErrCodeNotAssignable
	case compiler.ErrCodeNotSupported:
		return ErrCodeNotSupported
	case compiler.ErrCodeStackImbalance:
		return ErrCodeStackImbalance
	default:
		return ErrCodeGeneric
	}
}

// parseCompileError extracts error code and message from an error.
func parseCompileError(err error) (string, string) {
	prefix := ""
	var le *LambdaError
	if errors.As(err, &le) {
		prefix = le.Lambda + ": "
	}

	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return MapCompileErrorCode(compileErr.Code), fmt.Sprintf("%s%s: %s", prefix, compileErr.Path, compileErr.Message)
	}
	var srcErr *source.Error
	if errors.As(err, &srcErr) {
		code := ErrCodeInvalidSource
		if ir.IsTypeMismatch(err) {
			code = ErrCodeTypeMismatch
		}
		return code, fmt.Sprintf("%s%s: %s", prefix, srcErr.Field, srcErr.Message)
	}
	if ir.IsTypeMismatch(err) {
		return ErrCodeTypeMismatch, prefix + err.Error()
	}
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	return ErrCodeGeneric, err.Error()
}

// errorPos returns the source position carried by err, if any.
func errorPos(err error) token.Pos {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return compileErr.Pos
	}
	var srcErr *source.Error
	if errors.As(err, &srcErr) {
		return srcErr.Pos
	}
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Pos
	}
	return token.NoPos
}

// lineOf extracts the line number from a token.Pos.
func lineOf(pos token.Pos) int {
	if pos.IsValid() {
		return pos.Line()
	}
	return 0
}
