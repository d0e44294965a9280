package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/exprjit/internal/compiler"
	"github.com/roach88/exprjit/internal/ir"
	"github.com/roach88/exprjit/internal/store"
	"github.com/roach88/exprjit/internal/vm"
)

// Runner compiles and invokes lambdas, optionally logging both to a store.
type Runner struct {
	store  *store.Store
	clock  Clock
	ids    IDGenerator
	logger *slog.Logger
	cache  *compiler.Cache
	hashes sync.Map // *ir.Lambda -> string
}

// Option configures a Runner.
type Option func(*Runner)

// WithStore records programs and invocations in s. Without a store the
// runner only compiles and invokes.
func WithStore(s *store.Store) Option {
	return func(r *Runner) {
		r.store = s
	}
}

// WithClock sets the logical clock. Default: NewClock().
func WithClock(c Clock) Option {
	return func(r *Runner) {
		r.clock = c
	}
}

// WithIDGenerator sets the invocation ID source. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(r *Runner) {
		r.ids = g
	}
}

// WithLogger sets the logger for the runner and its compiler. Without it
// logs are discarded.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a Runner.
func New(opts ...Option) *Runner {
	r := &Runner{
		clock:  NewClock(),
		ids:    UUIDv7Generator{},
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.cache = compiler.NewCache(compiler.WithLogger(r.logger))
	return r
}

// Compiled is a compiled lambda with its content address.
type Compiled struct {
	Lambda *ir.Lambda
	Func   *vm.Func
	Hash   string
}

// Invocation is the outcome of one call.
type Invocation struct {
	// ID is empty when the runner has no store.
	ID    string
	Seq   int64
	Value ir.Value
}

// Compile compiles lam (at most once per tree) and records the program.
func (r *Runner) Compile(ctx context.Context, lam *ir.Lambda) (*Compiled, error) {
	fn, err := r.cache.Get(lam)
	if err != nil {
		return nil, err
	}
	hash, err := r.hash(lam)
	if err != nil {
		return nil, err
	}
	c := &Compiled{Lambda: lam, Func: fn, Hash: hash}

	if r.store == nil {
		return c, nil
	}
	prog := fn.Program()
	inserted, err := r.store.WriteProgram(ctx, store.Program{
		Hash:            hash,
		Name:            prog.Name,
		Signature:       prog.Signature.String(),
		Listing:         vm.Disassemble(prog),
		Opcodes:         prog.Mnemonics(),
		MaxStack:        prog.MaxStack,
		Seq:             r.clock.Next(),
		IRVersion:       ir.IRVersion,
		CompilerVersion: ir.CompilerVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("record program %s: %w", lam.Name(), err)
	}
	if inserted {
		r.logger.Info("program recorded", "lambda", lam.Name(), "hash", hash)
	}
	return c, nil
}

func (r *Runner) hash(lam *ir.Lambda) (string, error) {
	if h, ok := r.hashes.Load(lam); ok {
		return h.(string), nil
	}
	h, err := ir.TreeHash(lam)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", lam.Name(), err)
	}
	r.hashes.Store(lam, h)
	return h, nil
}

// Invoke calls c with args and records the call. A runtime fault is returned
// as the *vm.RuntimeError from the call; it is recorded like any other call.
func (r *Runner) Invoke(ctx context.Context, c *Compiled, args ...ir.Value) (Invocation, error) {
	if r.store == nil {
		v, err := c.Func.Invoke(args...)
		return Invocation{Value: v}, err
	}

	before, err := store.MarshalValues(args)
	if err != nil {
		return Invocation{}, fmt.Errorf("record invocation: %w", err)
	}
	v, callErr := c.Func.Invoke(args...)

	rec := store.Invocation{
		ID:          r.ids.Generate(),
		ProgramHash: c.Hash,
		Args:        before,
		Seq:         r.clock.Next(),
	}
	if rec.ArgsAfter, err = store.MarshalValues(args); err != nil {
		return Invocation{}, fmt.Errorf("record invocation: %w", err)
	}
	if rec.Result, err = store.MarshalValue(v); err != nil {
		return Invocation{}, fmt.Errorf("record invocation: %w", err)
	}
	var re *vm.RuntimeError
	if errors.As(callErr, &re) {
		rec.ErrorCode = string(re.Code)
		rec.ErrorMessage = re.Message
	}
	if err := r.store.WriteInvocation(ctx, rec); err != nil {
		return Invocation{}, errors.Join(callErr, err)
	}

	if callErr != nil {
		r.logger.Debug("invocation failed", "lambda", c.Lambda.Name(), "id", rec.ID, "error", callErr)
	}
	return Invocation{ID: rec.ID, Seq: rec.Seq, Value: v}, callErr
}

// Run compiles lam and invokes it once.
func (r *Runner) Run(ctx context.Context, lam *ir.Lambda, args ...ir.Value) (Invocation, error) {
	c, err := r.Compile(ctx, lam)
	if err != nil {
		return Invocation{}, err
	}
	return r.Invoke(ctx, c, args...)
}

// Compiles reports how many compilations the runner's cache performed.
func (r *Runner) Compiles() int64 { return r.cache.Compiles() }
