package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/exprjit/internal/compiler"
	"github.com/roach88/exprjit/internal/source"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <source-dir>",
		Short: "Validate lambdas without compiling them",
		Long: `Validate the CUE types and lambdas in a source directory.

Reports every problem at once: malformed declarations, ill-typed trees,
targets that cannot be assigned, read-only properties and parameters used
out of scope. Faster than compile for development feedback.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	m, loadErrors := LoadModule(dir)
	if m == nil {
		code, message := parseCompileError(loadErrors[0])
		return outputValidateError(formatter, code, message, nil)
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", m.FileCount, dir)

	validationErrors := validateAll(m, loadErrors, formatter)
	if len(validationErrors) > 0 {
		return outputValidationErrors(formatter, validationErrors)
	}
	return outputValidateSuccess(formatter, len(m.Lambdas))
}

// validateAll converts source errors to validation errors and runs
// compiler.Validate over every parsed lambda. Fields are prefixed with the
// lambda's CUE path so diagnostics from different lambdas stay apart.
func validateAll(m *source.Module, loadErrors []error, formatter *OutputFormatter) []compiler.ValidationError {
	var all []compiler.ValidationError
	for _, err := range loadErrors {
		code, message := parseCompileError(err)
		all = append(all, compiler.ValidationError{
			Field:   "load",
			Message: message,
			Code:    code,
			Line:    lineOf(errorPos(err)),
		})
	}

	for _, lam := range m.Lambdas {
		formatter.VerboseLog("Validating lambda: %s", lam.Name())
		for _, ve := range compiler.Validate(lam) {
			ve.Line = lineOf(m.Pos(lam, ve.Field))
			ve.Field = "lambdas." + lam.Name() + "." + ve.Field
			all = append(all, ve)
		}
	}
	return all
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, lambdas int) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true})
	}

	fmt.Fprintf(formatter.Writer, "✓ All %d lambda(s) valid\n", lambdas)
	return nil
}

// outputValidateError outputs a single validation error.
func outputValidateError(formatter *OutputFormatter, code, message string, details any) error {
	_ = formatter.Error(code, message, details)
	// A source dir that cannot be loaded is a command-level error (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	if formatter.Format == "json" {
		if err := formatter.JSON(CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
				Line:    errs[0].Line,
			},
		}); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}

	// Validation failures = exit code 1
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}

// ValidateDir validates all lambdas in a directory. The error is non-nil
// only when the directory could not be loaded at all.
func ValidateDir(dir string) ([]compiler.ValidationError, error) {
	m, loadErrors := LoadModule(dir)
	if m == nil {
		return nil, loadErrors[0]
	}
	silent := &OutputFormatter{Format: "text"}
	return validateAll(m, loadErrors, silent), nil
}
