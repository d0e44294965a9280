package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/exprjit/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run scenario files",
		Long: `Run YAML scenarios: each names a CUE source, seeds argument slots,
invokes lambdas in order and checks opcodes, compile errors, the trace,
final slot state and equivalence with the reference evaluator.

When <scenarios-dir>/golden exists (or --update is set) every passing
scenario is also compared with its golden snapshot.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  exprjit test ./scenarios
  exprjit test ./scenarios --filter "update_*"
  exprjit test ./scenarios --update
  exprjit test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(ctx context.Context, opts *TestOptions, dir string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return outputCommandError(formatter, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("scenarios directory not found: %s", dir)})
	}
	if _, err := filepath.Match(opts.Filter, ""); err != nil {
		return outputCommandError(formatter, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("invalid filter pattern: %v", err)})
	}

	suiteOpts := harness.SuiteOptions{Update: opts.Update, Filter: opts.Filter}
	golden := filepath.Join(dir, "golden")
	if info, err := os.Stat(golden); (err == nil && info.IsDir()) || opts.Update {
		if err := os.MkdirAll(golden, 0755); err != nil {
			return outputCommandError(formatter, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("failed to create golden directory: %v", err)})
		}
		suiteOpts.GoldenDir = golden
		formatter.VerboseLog("Comparing against golden files in %s", golden)
	}

	result, err := harness.RunSuite(ctx, dir, suiteOpts)
	if err != nil {
		return outputCommandError(formatter, err)
	}

	if opts.Format == "json" {
		status := "ok"
		if result.Failed > 0 {
			status = "error"
		}
		if err := formatter.JSON(CLIResponse{Status: status, Data: result}); err != nil {
			return err
		}
	} else {
		outputTestText(formatter, result, opts.Update)
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// outputTestText outputs the suite result as text.
func outputTestText(formatter *OutputFormatter, result *harness.SuiteResult, updated bool) {
	w := formatter.Writer
	if result.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return
	}

	for _, s := range result.Scenarios {
		if s.Pass {
			if updated {
				fmt.Fprintf(w, "✓ %s (golden updated)\n", s.Scenario)
			} else {
				fmt.Fprintf(w, "✓ %s\n", s.Scenario)
			}
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", s.Scenario)
		for _, e := range s.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
}
