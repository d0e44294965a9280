package compiler

import (
	"log/slog"

	"github.com/roach88/exprjit/internal/ir"
	"github.com/roach88/exprjit/internal/vm"
)

// Option configures a compilation.
type Option func(*config)

type config struct {
	logger *slog.Logger
}

// WithLogger routes compile diagnostics to logger. Without it they are
// discarded.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func newConfig(opts []Option) config {
	cfg := config{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Compile lowers lam to a stack-machine program and wraps it in a callable
// with lam's signature.
//
// Compile is a pure function of the tree: it keeps no state between calls and
// may run concurrently on distinct or shared trees. Failures are
// *CompileError values (NOT_ASSIGNABLE, NOT_SUPPORTED, STACK_IMBALANCE).
func Compile(lam *ir.Lambda, opts ...Option) (*vm.Func, error) {
	prog, err := CompileProgram(lam, opts...)
	if err != nil {
		return nil, err
	}
	return vm.NewFunc(prog), nil
}

// CompileProgram is Compile without the callable wrapper, for listings and
// inspection of the emitted instructions.
func CompileProgram(lam *ir.Lambda, opts ...Option) (*vm.Program, error) {
	cfg := newConfig(opts)
	if lam == nil {
		return nil, notSupported("", "nil lambda")
	}

	e := newEmitter()
	if err := e.lambda(lam); err != nil {
		cfg.logger.Debug("compile failed", "lambda", lam.Name(), "error", err)
		return nil, err
	}

	prog := &vm.Program{
		Name:      lam.Name(),
		Signature: lam.Signature(),
		Code:      e.code,
		Consts:    e.pool.values,
		Locals:    e.locals,
		MaxStack:  e.maxDepth,
	}
	cfg.logger.Debug("lambda compiled",
		"lambda", prog.Name,
		"instructions", len(prog.Code),
		"consts", len(prog.Consts),
		"locals", len(prog.Locals),
		"max_stack", prog.MaxStack,
	)
	return prog, nil
}
