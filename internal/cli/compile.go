package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/exprjit/internal/compiler"
	"github.com/roach88/exprjit/internal/ir"
	"github.com/roach88/exprjit/internal/runner"
	"github.com/roach88/exprjit/internal/source"
	"github.com/roach88/exprjit/internal/store"
	"github.com/roach88/exprjit/internal/vm"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Listing  bool   // include the disassembly of every program
	Database string // record programs in this SQLite log
}

// CompiledLambda summarizes one compiled program.
type CompiledLambda struct {
	Name      string   `json:"name"`
	Signature string   `json:"signature"`
	Hash      string   `json:"hash"`
	MaxStack  int      `json:"max_stack"`
	Opcodes   []string `json:"opcodes"`
	Listing   string   `json:"listing,omitempty"`
}

// CompilationResult holds the compiled lambdas in declaration order.
type CompilationResult struct {
	Lambdas  []CompiledLambda `json:"lambdas"`
	Database string           `json:"database,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <source-dir>",
		Short: "Compile every lambda in a CUE source dir",
		Long: `Compile every lambda declared in a CUE source directory to a
stack-machine program.

Lambdas are compiled concurrently. Every failure is reported, with its
source position when known. With --db, each program is recorded in the
SQLite log under its content hash.

Examples:
  exprjit compile ./lambdas
  exprjit compile ./lambdas --listing
  exprjit compile ./lambdas --db ./exprjit.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Listing, "listing", false, "include the disassembly of each program")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record programs in this SQLite database")

	return cmd
}

func runCompile(ctx context.Context, opts *CompileOptions, dir string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)

	m, loadErrors := LoadModule(dir)
	if m == nil {
		return outputCommandError(formatter, loadErrors[0])
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", m.FileCount, dir)

	r, closeStore, err := newRunner(ctx, opts.Database, opts.Logger(formatter.GetErrWriter()))
	if err != nil {
		return outputCommandError(formatter, err)
	}
	defer closeStore()

	result, compileErrors, err := compileAll(ctx, r, m, opts.Listing, formatter)
	if err != nil {
		return outputCommandError(formatter, err)
	}

	if errs := append(loadErrors, compileErrors...); len(errs) > 0 {
		return outputCompileErrors(formatter, errs)
	}
	result.Database = opts.Database
	return outputCompileSuccess(formatter, result)
}

// newRunner builds a runner, recording to the SQLite log at path when path is
// set. The clock resumes after the log's last seq.
func newRunner(ctx context.Context, path string, logger *slog.Logger) (*runner.Runner, func(), error) {
	if path == "" {
		return runner.New(runner.WithLogger(logger)), func() {}, nil
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, nil, &LoadError{Code: ErrCodeStoreFailed, Message: fmt.Sprintf("failed to open database: %v", err)}
	}
	last, err := st.LastSeq(ctx)
	if err != nil {
		st.Close()
		return nil, nil, &LoadError{Code: ErrCodeStoreFailed, Message: fmt.Sprintf("failed to read database: %v", err)}
	}
	r := runner.New(
		runner.WithStore(st),
		runner.WithClock(runner.NewClockAt(last)),
		runner.WithLogger(logger),
	)
	return r, func() { st.Close() }, nil
}

// compileAll compiles every lambda of m concurrently. Compile errors are
// collected per lambda; a store failure aborts the whole run.
func compileAll(ctx context.Context, r *runner.Runner, m *source.Module, listing bool, formatter *OutputFormatter) (*CompilationResult, []error, error) {
	compiled := make([]*runner.Compiled, len(m.Lambdas))
	failures := make([]error, len(m.Lambdas))

	g, gctx := errgroup.WithContext(ctx)
	for i, lam := range m.Lambdas {
		formatter.VerboseLog("Compiling lambda: %s", lam.Name())
		g.Go(func() error {
			c, err := r.Compile(gctx, lam)
			switch {
			case err == nil:
				compiled[i] = c
			case isCompileFailure(err):
				failures[i] = &LambdaError{Lambda: lam.Name(), Err: m.Annotate(lam, err)}
			default:
				return &LoadError{Code: ErrCodeStoreFailed, Message: fmt.Sprintf("%s: %v", lam.Name(), err)}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	result := &CompilationResult{Lambdas: []CompiledLambda{}}
	var errs []error
	for i := range m.Lambdas {
		if failures[i] != nil {
			errs = append(errs, failures[i])
			continue
		}
		result.Lambdas = append(result.Lambdas, summarize(compiled[i], listing))
	}
	return result, errs, nil
}

func summarize(c *runner.Compiled, listing bool) CompiledLambda {
	prog := c.Func.Program()
	out := CompiledLambda{
		Name:      prog.Name,
		Signature: prog.Signature.String(),
		Hash:      c.Hash,
		MaxStack:  prog.MaxStack,
		Opcodes:   prog.Mnemonics(),
	}
	if listing {
		out.Listing = vm.Disassemble(prog)
	}
	return out
}

// isCompileFailure reports whether err is about the lambda itself rather
// than the store.
func isCompileFailure(err error) bool {
	var ce *compiler.CompileError
	return errors.As(err, &ce) || ir.IsTypeMismatch(err)
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %d lambda(s)\n\n", len(result.Lambdas))
	for _, l := range result.Lambdas {
		fmt.Fprintf(w, "  %s %s [%s] max_stack=%d, %d instruction(s)\n",
			l.Name, l.Signature, shortHash(l.Hash), l.MaxStack, len(l.Opcodes))
		if l.Listing != "" {
			fmt.Fprintln(w)
			fmt.Fprintln(w, indent(l.Listing, "    "))
			fmt.Fprintln(w)
		}
	}
	if result.Database != "" {
		fmt.Fprintf(w, "\nRecorded program(s) in %s\n", result.Database)
	}
	return nil
}

// outputCommandError outputs a single command-level error (exit code 2).
func outputCommandError(formatter *OutputFormatter, err error) error {
	code, message := parseCompileError(err)
	_ = formatter.Error(code, message, nil)
	return WrapExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message), nil)
}

// outputCompileErrors outputs every lambda that failed to load or compile.
func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	if formatter.Format == "json" {
		cliErrors := make([]CLIError, len(errs))
		for i, err := range errs {
			code, message := parseCompileError(err)
			cliErrors[i] = CLIError{Code: code, Message: message, Line: lineOf(errorPos(err))}
		}
		if err := formatter.JSON(CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   cliErrors,
		}); err != nil {
			return err
		}
		return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
	fmt.Fprintln(formatter.Writer)
	for _, err := range errs {
		code, message := parseCompileError(err)
		if pos := errorPos(err); pos.IsValid() {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n", pos.Filename(), pos.Line(), pos.Column())
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", code, message)
	}
	return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
}
