package harness

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/exprjit/internal/compiler"
	"github.com/roach88/exprjit/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s", i+1, event.Lambda, event.Args)
			if event.Error != "" {
				fmt.Fprintf(&buf, " -> %s", event.Error)
			}
			buf.WriteString("\n")
		}
	}
	return buf.String()
}

// assertOpcodes checks the exact mnemonic sequence of a compiled lambda.
func assertOpcodes(result *Result, a Assertion) error {
	l, ok := result.listing(a.Lambda)
	if !ok {
		return &AssertionError{
			Type:     AssertOpcodes,
			Expected: fmt.Sprintf("%s compiles", a.Lambda),
			Actual:   describeCompileFailure(result, a.Lambda),
		}
	}
	if strings.Join(l.Opcodes, " ") != strings.Join(a.Opcodes, " ") {
		return &AssertionError{
			Type:     AssertOpcodes,
			Expected: strings.Join(a.Opcodes, " "),
			Actual:   strings.Join(l.Opcodes, " "),
		}
	}
	return nil
}

// assertCompileError checks that a lambda failed to compile with the given
// code, and at the given node path when one is set.
func assertCompileError(result *Result, a Assertion) error {
	err, ok := result.compileErrs[a.Lambda]
	if !ok {
		return &AssertionError{
			Type:     AssertCompileError,
			Expected: fmt.Sprintf("%s fails with %s", a.Lambda, a.Code),
			Actual:   "compiled successfully (or was never compiled)",
		}
	}
	var ce *compiler.CompileError
	if !errors.As(err, &ce) {
		return &AssertionError{Type: AssertCompileError, Expected: a.Code, Actual: err.Error()}
	}
	if string(ce.Code) != a.Code || (a.Path != "" && ce.Path != a.Path) {
		return &AssertionError{
			Type:     AssertCompileError,
			Expected: fmt.Sprintf("%s at %q", a.Code, a.Path),
			Actual:   fmt.Sprintf("%s at %q", ce.Code, ce.Path),
		}
	}
	return nil
}

// assertOracleEquivalent checks that every step of a lambda matched the
// reference evaluator.
func assertOracleEquivalent(result *Result, a Assertion) error {
	diffs := result.Divergences[a.Lambda]
	if len(diffs) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertOracleEquivalent,
		Expected: fmt.Sprintf("%s matches the reference evaluator", a.Lambda),
		Actual:   strings.Join(diffs, "; "),
		Trace:    result.Trace,
	}
}

// assertTraceCount checks that the lambda was invoked exactly Count times.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Lambda == a.Lambda {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d invocations of %s", a.Count, a.Lambda),
			Actual:   fmt.Sprintf("%d invocations", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertTraceOrder checks that lambdas were first invoked in the given
// order. Intervening invocations are allowed.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		if positions[event.Lambda] == 0 {
			positions[event.Lambda] = i + 1 // 1-indexed for readability
		}
	}

	for _, name := range a.Lambdas {
		if positions[name] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all lambdas invoked: %v", a.Lambdas),
				Actual:   fmt.Sprintf("missing lambda: %s", name),
				Trace:    trace,
			}
		}
	}
	for i := 1; i < len(a.Lambdas); i++ {
		prev, curr := a.Lambdas[i-1], a.Lambdas[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("lambdas in order: %v", a.Lambdas),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertFinalState compares a slot's final value with the expectation.
// Objects are compared with subset semantics, recursively.
func assertFinalState(w *world, a Assertion) error {
	var expected any
	if err := a.Expect.Decode(&expected); err != nil {
		return fmt.Errorf("final_state %s: decode expect: %w", a.Slot, err)
	}
	expected = normalize(expected)

	slot, ok := w.slots[a.Slot]
	if !ok {
		return fmt.Errorf("final_state: unknown slot %q", a.Slot)
	}
	actual := ir.Export(*slot)
	if path, ok := matchSubset(actual, expected, a.Slot); !ok {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s = %v", path, lookupPath(expected, path, a.Slot)),
			Actual:   fmt.Sprintf("%s = %v", path, lookupPath(actual, path, a.Slot)),
		}
	}
	return nil
}

// matchSubset reports whether actual contains expected. Maps match when
// every expected key matches; other values must be equal. On mismatch it
// returns the dotted path of the first difference.
func matchSubset(actual, expected any, path string) (string, bool) {
	em, ok := expected.(map[string]any)
	if !ok {
		return path, valuesEqual(actual, expected)
	}
	am, ok := actual.(map[string]any)
	if !ok {
		return path, false
	}
	for _, key := range sortedKeys(em) {
		av, exists := am[key]
		if !exists {
			return path + "." + key, false
		}
		if p, ok := matchSubset(av, em[key], path+"."+key); !ok {
			return p, false
		}
	}
	return "", true
}

// lookupPath follows a dotted path produced by matchSubset.
func lookupPath(v any, path, root string) any {
	rest := strings.TrimPrefix(strings.TrimPrefix(path, root), ".")
	if rest == "" {
		return v
	}
	for _, key := range strings.Split(rest, ".") {
		m, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		v = m[key]
	}
	return v
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func describeCompileFailure(result *Result, lambda string) string {
	if err, ok := result.compileErrs[lambda]; ok {
		return err.Error()
	}
	return "not compiled"
}

// evaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func evaluateAssertions(result *Result, assertions []Assertion, w *world) []string {
	var errs []string

	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertOpcodes:
			err = assertOpcodes(result, a)
		case AssertCompileError:
			err = assertCompileError(result, a)
		case AssertOracleEquivalent:
			err = assertOracleEquivalent(result, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertFinalState:
			if w == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires slots", i)
			} else {
				err = assertFinalState(w, a)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}
