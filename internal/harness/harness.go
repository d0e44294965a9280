package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"

	"github.com/roach88/exprjit/internal/compiler"
	"github.com/roach88/exprjit/internal/ir"
	"github.com/roach88/exprjit/internal/oracle"
	"github.com/roach88/exprjit/internal/runner"
	"github.com/roach88/exprjit/internal/source"
	"github.com/roach88/exprjit/internal/store"
	"github.com/roach88/exprjit/internal/testutil"
	"github.com/roach88/exprjit/internal/vm"
)

// Harness is the test execution engine.
// It runs scenarios with a deterministic clock and invocation IDs, so the
// recorded trace is identical across runs.
type Harness struct {
	store    *store.Store
	runner   *runner.Runner
	module   *source.Module
	logger   *slog.Logger
	compiled map[string]*runner.Compiled

	// world holds the slots seen by compiled programs; shadow holds an
	// independent copy driven through the reference evaluator.
	world  *world
	shadow *world
	oracle map[string]bool
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Deterministic helpers ensure reproducible results.
//
// Execution flow:
// 1. Parse the CUE source
// 2. Build the slots (twice: compiled and reference)
// 3. Execute flow steps with expect validation
// 4. Read the trace back from the store
// 5. Evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	mod, err := loadModule(scenario)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	h := &Harness{
		store:  st,
		module: mod,
		logger: logger,
		runner: runner.New(
			runner.WithStore(st),
			runner.WithClock(testutil.NewDeterministicClock()),
			runner.WithIDGenerator(testutil.NewSequentialIDGenerator("inv")),
			runner.WithLogger(logger),
		),
		compiled: make(map[string]*runner.Compiled),
		oracle:   make(map[string]bool),
	}
	if h.world, err = newWorld(mod, scenario); err != nil {
		return nil, err
	}
	if h.shadow, err = newWorld(mod, scenario); err != nil {
		return nil, err
	}
	for _, a := range scenario.Assertions {
		if a.Type == AssertOracleEquivalent {
			h.oracle[a.Lambda] = true
		}
	}

	result := NewResult()
	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	// Lambdas named only by assertions are compiled after the flow so they
	// do not shift the seq of flow invocations.
	for _, a := range scenario.Assertions {
		if a.Lambda != "" {
			if _, ok := mod.Lambda(a.Lambda); ok {
				if _, err := h.compile(ctx, a.Lambda, result); err != nil && !isCompileError(err) {
					return nil, err
				}
			}
		}
	}

	for _, name := range scenario.SlotNames() {
		result.State[name] = ir.Export(*h.world.slots[name])
	}
	if err := h.readTrace(ctx, result); err != nil {
		return nil, err
	}

	for _, msg := range evaluateAssertions(result, scenario.Assertions, h.world) {
		result.AddError(msg)
	}
	return result, nil
}

func loadModule(s *Scenario) (*source.Module, error) {
	var (
		mod  *source.Module
		errs []error
	)
	if s.CUE != "" {
		mod, errs = source.ParseBytes(s.Name+".cue", []byte(s.CUE))
	} else {
		mod, errs = source.ParseFile(s.Source)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("failed to load source: %w", errors.Join(errs...))
	}
	return mod, nil
}

// compile compiles a lambda once and records its listing or compile error.
func (h *Harness) compile(ctx context.Context, name string, result *Result) (*runner.Compiled, error) {
	if c, ok := h.compiled[name]; ok {
		return c, nil
	}
	if err, ok := result.compileErrs[name]; ok {
		return nil, err
	}
	lam, ok := h.module.Lambda(name)
	if !ok {
		return nil, fmt.Errorf("unknown lambda %q", name)
	}

	c, err := h.runner.Compile(ctx, lam)
	if err != nil {
		err = h.module.Annotate(lam, err)
		if isCompileError(err) {
			result.compileErrs[name] = err
		}
		return nil, err
	}
	h.compiled[name] = c
	prog := c.Func.Program()
	result.Listings = append(result.Listings, Listing{
		Lambda:  name,
		Opcodes: prog.Mnemonics(),
		Text:    vm.Disassemble(prog),
	})
	return c, nil
}

// executeFlow runs all flow steps and validates expect clauses.
//
// Each step:
// 1. Compiles the lambda on first use (recording the program)
// 2. Builds arguments from the slots
// 3. Invokes through the runner (recording the invocation)
// 4. Validates the expect clause
// 5. Replays the step through the reference evaluator when requested
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) error {
	for i, step := range flow {
		lam, ok := h.module.Lambda(step.Invoke)
		if !ok {
			result.AddError(fmt.Sprintf("flow[%d]: unknown lambda %q", i, step.Invoke))
			continue
		}

		c, err := h.compile(ctx, step.Invoke, result)
		if err != nil {
			if !isCompileError(err) {
				return fmt.Errorf("flow step %d: %w", i, err)
			}
			h.checkExpect(i, step, errorCode(err), ir.Value{}, result)
			continue
		}

		args, err := h.world.args(lam, step.Args)
		if err != nil {
			result.AddError(fmt.Sprintf("flow[%d]: %v", i, err))
			continue
		}
		inv, callErr := h.runner.Invoke(ctx, c, args...)
		if callErr != nil && !isRuntimeError(callErr) {
			return fmt.Errorf("flow step %d: %w", i, callErr)
		}
		code := errorCode(callErr)
		h.checkExpect(i, step, code, inv.Value, result)

		if h.oracle[step.Invoke] {
			if err := h.compareOracle(i, lam, step, code, inv.Value, result); err != nil {
				return fmt.Errorf("flow step %d: %w", i, err)
			}
		}

		h.logger.Info("flow step completed",
			"step", i,
			"lambda", step.Invoke,
			"invocation_id", inv.ID,
			"error", code,
		)
	}
	return nil
}

func (h *Harness) checkExpect(i int, step FlowStep, code string, got ir.Value, result *Result) {
	want := ""
	if step.Expect != nil {
		want = step.Expect.Error
	}
	if code != want {
		result.AddError(fmt.Sprintf("flow[%d] %s: expected error %q, got %q", i, step.Invoke, want, code))
		return
	}
	if code != "" || step.Expect == nil || step.Expect.Result.Kind == 0 {
		return
	}

	var expected any
	if err := step.Expect.Result.Decode(&expected); err != nil {
		result.AddError(fmt.Sprintf("flow[%d] %s: decode expected result: %v", i, step.Invoke, err))
		return
	}
	actual := ir.Export(got)
	if !valuesEqual(actual, normalize(expected)) {
		result.AddError(fmt.Sprintf("flow[%d] %s: expected result %v, got %v", i, step.Invoke, normalize(expected), actual))
	}
}

// compareOracle replays the step on the shadow slots and records any
// difference in outcome, return value or slot state.
func (h *Harness) compareOracle(i int, lam *ir.Lambda, step FlowStep, code string, got ir.Value, result *Result) error {
	args, err := h.shadow.args(lam, step.Args)
	if err != nil {
		return err
	}
	want, err := oracle.Eval(lam, args...)
	if err != nil && !isRuntimeError(err) {
		return err
	}

	var diffs []string
	if oc := errorCode(err); oc != code {
		diffs = append(diffs, fmt.Sprintf("error: compiled %q, reference %q", code, oc))
	} else if code == "" && !valuesEqual(ir.Export(got), ir.Export(want)) {
		diffs = append(diffs, fmt.Sprintf("result: compiled %v, reference %v", ir.Export(got), ir.Export(want)))
	}
	for _, name := range h.world.names {
		a, b := ir.Export(*h.world.slots[name]), ir.Export(*h.shadow.slots[name])
		if !valuesEqual(a, b) {
			diffs = append(diffs, fmt.Sprintf("slot %s: compiled %v, reference %v", name, a, b))
		}
	}
	for _, d := range diffs {
		result.Divergences[lam.Name()] = append(result.Divergences[lam.Name()], fmt.Sprintf("flow[%d]: %s", i, d))
	}
	return nil
}

// readTrace loads the recorded invocations in seq order.
func (h *Harness) readTrace(ctx context.Context, result *Result) error {
	programs, err := h.store.ReadPrograms(ctx)
	if err != nil {
		return fmt.Errorf("read programs: %w", err)
	}
	names := make(map[string]string, len(programs))
	for _, p := range programs {
		names[p.Hash] = p.Name
	}

	invs, err := h.store.ReadInvocations(ctx, "")
	if err != nil {
		return fmt.Errorf("read invocations: %w", err)
	}
	for _, inv := range invs {
		result.Trace = append(result.Trace, TraceEvent{
			ID:        inv.ID,
			Seq:       inv.Seq,
			Lambda:    names[inv.ProgramHash],
			Args:      inv.Args,
			ArgsAfter: inv.ArgsAfter,
			Result:    inv.Result,
			Error:     inv.ErrorCode,
		})
	}
	return nil
}

// world is one set of caller slots.
type world struct {
	names []string
	slots map[string]*ir.Value
}

func newWorld(mod *source.Module, s *Scenario) (*world, error) {
	w := &world{names: s.SlotNames(), slots: make(map[string]*ir.Value, len(s.Slots))}
	for _, name := range w.names {
		decl := s.Slots[name]
		t, ok := mod.Type(decl.Type)
		if !ok {
			return nil, fmt.Errorf("slots.%s: unknown type %q", name, decl.Type)
		}
		v, err := ir.FromGo(t, decl.Value)
		if err != nil {
			return nil, fmt.Errorf("slots.%s: %w", name, err)
		}
		w.slots[name] = &v
	}
	return w, nil
}

// args builds the argument list for lam. By-ref parameters receive a
// pointer to the slot; by-value parameters receive its current value.
// Fewer args than parameters are passed through so the call reports the
// signature mismatch.
func (w *world) args(lam *ir.Lambda, args []Arg) ([]ir.Value, error) {
	params := lam.Params()
	if len(args) > len(params) {
		return nil, fmt.Errorf("%s takes %d arguments, got %d", lam.Name(), len(params), len(args))
	}
	out := make([]ir.Value, 0, len(args))
	for i, a := range args {
		p := params[i]
		if a.Slot != "" {
			slot := w.slots[a.Slot]
			if p.ByRef() {
				out = append(out, ir.PointerTo(slot))
			} else {
				out = append(out, *slot)
			}
			continue
		}
		v, err := ir.FromGo(p.Type(), a.Value)
		if err != nil {
			return nil, fmt.Errorf("args[%d] (%s): %w", i, p.Name(), err)
		}
		if p.ByRef() {
			tmp := v
			out = append(out, ir.PointerTo(&tmp))
		} else {
			out = append(out, v)
		}
	}
	return out, nil
}

func isCompileError(err error) bool {
	var ce *compiler.CompileError
	return errors.As(err, &ce)
}

func isRuntimeError(err error) bool {
	var re *vm.RuntimeError
	return errors.As(err, &re)
}

// errorCode returns the compile or runtime error code of err, or "".
func errorCode(err error) string {
	var ce *compiler.CompileError
	if errors.As(err, &ce) {
		return string(ce.Code)
	}
	var re *vm.RuntimeError
	if errors.As(err, &re) {
		return string(re.Code)
	}
	return ""
}

// normalize converts YAML-decoded data to the shapes ir.Export produces:
// int64 for integers and map[string]any for mappings.
func normalize(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case uint64:
		return int64(x)
	case float64:
		if x == float64(int64(x)) {
			return int64(x)
		}
		return x
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = normalize(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalize(e)
		}
		return out
	default:
		return v
	}
}

// valuesEqual compares two exported values for equality.
func valuesEqual(actual, expected any) bool {
	if actual == nil && expected == nil {
		return true
	}
	if actual == nil || expected == nil {
		return false
	}
	return reflect.DeepEqual(actual, expected)
}
