package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/exprjit/internal/compiler"
	"github.com/roach88/exprjit/internal/ir"
	"github.com/roach88/exprjit/internal/vm"
)

// DisasmResult is one lambda rendered as pseudo-source and as a listing.
type DisasmResult struct {
	Lambda       string   `json:"lambda"`
	Signature    string   `json:"signature"`
	Source       string   `json:"source"`
	Listing      string   `json:"listing"`
	Instructions []string `json:"instructions"`
	MaxStack     int      `json:"max_stack"`
	Locals       int      `json:"locals"`
}

// NewDisasmCommand creates the disasm command.
func NewDisasmCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "disasm <source-dir> <lambda>",
		Short: "Show the compiled program for one lambda",
		Long: `Compile one lambda and print its tree as pseudo-source next to the
instruction listing the compiler produced for it.

Example:
  exprjit disasm ./lambdas Update`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDisasm(rootOpts, args[0], args[1], cmd)
		},
	}

	return cmd
}

func runDisasm(opts *RootOptions, dir, name string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	m, loadErrors := LoadModule(dir)
	if m == nil {
		return outputCommandError(formatter, loadErrors[0])
	}
	lam, err := lookupLambda(m, name)
	if err != nil {
		for _, le := range loadErrors {
			formatter.VerboseLog("%v", le)
		}
		return outputCommandError(formatter, err)
	}

	prog, err := compiler.CompileProgram(lam, compiler.WithLogger(opts.Logger(formatter.GetErrWriter())))
	if err != nil {
		return outputCompileErrors(formatter, []error{&LambdaError{Lambda: name, Err: m.Annotate(lam, err)}})
	}

	result := DisasmResult{
		Lambda:       name,
		Signature:    prog.Signature.String(),
		Source:       ir.Format(lam),
		Listing:      vm.Disassemble(prog),
		Instructions: prog.Mnemonics(),
		MaxStack:     prog.MaxStack,
		Locals:       len(prog.Locals),
	}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintln(w, result.Source)
	fmt.Fprintln(w)
	fmt.Fprint(w, result.Listing)
	return nil
}
