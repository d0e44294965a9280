package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/exprjit/internal/ir"
	"github.com/roach88/exprjit/internal/vm"
)

// InvokeOptions holds flags for the invoke command.
type InvokeOptions struct {
	*RootOptions
	Args     string // JSON array, one element per parameter
	Database string
}

// InvokeResult is the outcome of one call: the return value and every
// argument as the caller sees it afterwards.
type InvokeResult struct {
	Lambda string    `json:"lambda"`
	ID     string    `json:"id,omitempty"`
	Seq    int64     `json:"seq,omitempty"`
	Result any       `json:"result"`
	Args   []any     `json:"args_after"`
	Error  *CLIError `json:"error,omitempty"`
}

// NewInvokeCommand creates the invoke command.
func NewInvokeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InvokeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "invoke <source-dir> <lambda>",
		Short: "Compile a lambda and call it once",
		Long: `Compile a lambda and call it with arguments decoded from JSON.

--args is a JSON array with one element per parameter. Objects populate
class and struct fields by name; null is a null class reference. A
by-reference argument gets its own slot, so writes through it show up in
args_after. With --db the program and the call are recorded in the log.

Exit codes:
  0 - The call returned
  1 - The call faulted (null reference, divide by zero, signature mismatch)
  2 - Command error (bad source, lambda does not compile, bad --args)

Examples:
  exprjit invoke ./lambdas Update --args '["", 0, {"Health": 10, "Name": "Ann"}]'
  exprjit invoke ./lambdas Div --args '[7, 0]' --db ./exprjit.db`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInvoke(cmd.Context(), opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Args, "args", "[]", "arguments as a JSON array")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record the program and call in this SQLite database")

	return cmd
}

func runInvoke(ctx context.Context, opts *InvokeOptions, dir, name string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)

	var raw []any
	if err := json.Unmarshal([]byte(opts.Args), &raw); err != nil {
		return outputCommandError(formatter, &LoadError{Code: ErrCodeBadArgs, Message: fmt.Sprintf("invalid --args JSON: %v", err)})
	}

	m, loadErrors := LoadModule(dir)
	if m == nil {
		return outputCommandError(formatter, loadErrors[0])
	}
	lam, err := lookupLambda(m, name)
	if err != nil {
		return outputCommandError(formatter, err)
	}

	args, slots, err := decodeArgs(lam, raw)
	if err != nil {
		return outputCommandError(formatter, err)
	}

	r, closeStore, err := newRunner(ctx, opts.Database, opts.Logger(formatter.GetErrWriter()))
	if err != nil {
		return outputCommandError(formatter, err)
	}
	defer closeStore()

	c, err := r.Compile(ctx, lam)
	if err != nil {
		if isCompileFailure(err) {
			return outputCompileErrors(formatter, []error{&LambdaError{Lambda: name, Err: m.Annotate(lam, err)}})
		}
		return outputCommandError(formatter, &LoadError{Code: ErrCodeStoreFailed, Message: err.Error()})
	}
	formatter.VerboseLog("Compiled %s [%s]", name, shortHash(c.Hash))

	inv, callErr := r.Invoke(ctx, c, args...)
	result := InvokeResult{
		Lambda: name,
		ID:     inv.ID,
		Seq:    inv.Seq,
		Result: ir.Export(inv.Value),
		Args:   make([]any, len(slots)),
	}
	for i, slot := range slots {
		result.Args[i] = ir.Export(*slot)
	}

	var re *vm.RuntimeError
	if errors.As(callErr, &re) {
		result.Error = &CLIError{Code: string(re.Code), Message: re.Message}
		return outputInvokeFailure(formatter, result)
	}
	if callErr != nil {
		return outputCommandError(formatter, &LoadError{Code: ErrCodeStoreFailed, Message: callErr.Error()})
	}
	return outputInvokeSuccess(formatter, result)
}

// decodeArgs converts decoded JSON to values of lam's parameter types. Each
// argument lives in its own slot; a by-reference parameter receives a
// pointer to that slot. Fewer arguments than parameters are passed through
// so the call reports the signature mismatch.
func decodeArgs(lam *ir.Lambda, raw []any) ([]ir.Value, []*ir.Value, error) {
	params := lam.Params()
	if len(raw) > len(params) {
		return nil, nil, &LoadError{Code: ErrCodeBadArgs,
			Message: fmt.Sprintf("%s takes %d argument(s), got %d", lam.Name(), len(params), len(raw))}
	}
	args := make([]ir.Value, len(raw))
	slots := make([]*ir.Value, len(raw))
	for i, x := range raw {
		p := params[i]
		v, err := ir.FromGo(p.Type(), x)
		if err != nil {
			return nil, nil, &LoadError{Code: ErrCodeBadArgs,
				Message: fmt.Sprintf("argument %d (%s): %v", i, p.Name(), err)}
		}
		slots[i] = &v
		if p.ByRef() {
			args[i] = ir.PointerTo(slots[i])
		} else {
			args[i] = v
		}
	}
	return args, slots, nil
}

func outputInvokeSuccess(formatter *OutputFormatter, result InvokeResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	writeInvokeText(formatter, result)
	return nil
}

// outputInvokeFailure reports a runtime fault. The arguments are still shown:
// writes made before the fault are visible to the caller.
func outputInvokeFailure(formatter *OutputFormatter, result InvokeResult) error {
	msg := fmt.Sprintf("%s: %s", result.Error.Code, result.Error.Message)
	if formatter.Format == "json" {
		if err := formatter.JSON(CLIResponse{Status: "error", Data: result, Error: result.Error}); err != nil {
			return err
		}
		return NewExitError(ExitFailure, msg)
	}
	writeInvokeText(formatter, result)
	return NewExitError(ExitFailure, msg)
}

func writeInvokeText(formatter *OutputFormatter, result InvokeResult) {
	w := formatter.Writer
	if result.Error != nil {
		fmt.Fprintf(w, "✗ %s faulted: %s: %s\n", result.Lambda, result.Error.Code, result.Error.Message)
	} else {
		fmt.Fprintf(w, "✓ %s returned %s\n", result.Lambda, formatValue(result.Result))
	}
	for i, a := range result.Args {
		fmt.Fprintf(w, "  arg %d: %s\n", i, formatValue(a))
	}
	if result.ID != "" {
		fmt.Fprintf(w, "  recorded as %s (seq %d)\n", result.ID, result.Seq)
	}
}
