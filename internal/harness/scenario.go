package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
// A scenario declares caller-side slots, invokes compiled lambdas against
// them, and asserts on the results, the listings and the final slot state.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Source is a CUE file with the types and lambdas under test.
	// Relative paths are resolved against the scenario file's directory.
	Source string `yaml:"source,omitempty"`

	// CUE is inline CUE source, used instead of Source.
	CUE string `yaml:"cue,omitempty"`

	// Slots are the caller's variables. Flow steps pass them by reference
	// or by value, and mutations stay visible to later steps.
	Slots map[string]SlotDecl `yaml:"slots,omitempty"`

	// Flow contains the invocations, executed in order.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate listings, compile errors, the trace and the
	// final slot state.
	Assertions []Assertion `yaml:"assertions"`
}

// SlotDecl declares a named caller slot with its initial value.
type SlotDecl struct {
	// Type is a builtin or source-declared type name.
	Type string `yaml:"type"`

	// Value is decoded with ir.FromGo; absent means the zero value.
	Value any `yaml:"value,omitempty"`
}

// FlowStep invokes one lambda.
type FlowStep struct {
	// Invoke names the lambda.
	Invoke string `yaml:"invoke"`

	// Args are passed positionally.
	Args []Arg `yaml:"args"`

	// Expect specifies the expected outcome; nil means the call must not fail.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// Arg is either a reference to a slot or a literal value. A literal passed
// to a by-ref parameter gets a fresh slot that is discarded after the call.
type Arg struct {
	Slot  string `yaml:"slot,omitempty"`
	Value any    `yaml:"value,omitempty"`
}

// ExpectClause specifies the expected outcome of a flow step.
type ExpectClause struct {
	// Error is the expected compile or runtime error code, e.g.
	// NULL_REFERENCE. Empty means the call succeeds.
	Error string `yaml:"error,omitempty"`

	// Result is the expected return value. Unset means not checked.
	Result yaml.Node `yaml:"result,omitempty"`
}

// Assertion validates a property of the run.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Lambda names the lambda (opcodes, compile_error, oracle_equivalent,
	// trace_count).
	Lambda string `yaml:"lambda,omitempty"`

	// Opcodes is the exact expected mnemonic sequence (opcodes).
	Opcodes []string `yaml:"opcodes,omitempty"`

	// Code and Path describe the expected compile error (compile_error).
	// Path is optional.
	Code string `yaml:"code,omitempty"`
	Path string `yaml:"path,omitempty"`

	// Count is the expected number of invocations (trace_count).
	Count int `yaml:"count,omitempty"`

	// Lambdas is the expected invocation order (trace_order).
	Lambdas []string `yaml:"lambdas,omitempty"`

	// Slot and Expect check a slot's final value (final_state). When both
	// the slot and Expect are objects only the listed fields are compared.
	Slot   string    `yaml:"slot,omitempty"`
	Expect yaml.Node `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertOpcodes          = "opcodes"
	AssertCompileError     = "compile_error"
	AssertOracleEquivalent = "oracle_equivalent"
	AssertTraceCount       = "trace_count"
	AssertTraceOrder       = "trace_order"
	AssertFinalState       = "final_state"
)

// LoadScenario reads and parses a scenario YAML file, resolving Source
// relative to the file's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving Source relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Source != "" && !filepath.IsAbs(scenario.Source) && basePath != "" {
		scenario.Source = filepath.Join(basePath, scenario.Source)
	}
	if scenario.Source != "" {
		if _, err := os.Stat(scenario.Source); os.IsNotExist(err) {
			return nil, fmt.Errorf("invalid scenario: source file not found: %s", scenario.Source)
		}
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML without touching the filesystem.
func ParseScenario(data []byte) (*Scenario, error) {
	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// SlotNames returns the slot names in sorted order.
func (s *Scenario) SlotNames() []string {
	names := make([]string, 0, len(s.Slots))
	for name := range s.Slots {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if (s.Source == "") == (s.CUE == "") {
		return fmt.Errorf("exactly one of source or cue is required")
	}
	if len(s.Flow) == 0 && len(s.Assertions) == 0 {
		return fmt.Errorf("flow or assertions must be non-empty")
	}

	for _, name := range s.SlotNames() {
		if s.Slots[name].Type == "" {
			return fmt.Errorf("slots.%s: type is required", name)
		}
	}

	for i, step := range s.Flow {
		if step.Invoke == "" {
			return fmt.Errorf("flow[%d]: invoke is required", i)
		}
		for j, arg := range step.Args {
			if arg.Slot != "" {
				if arg.Value != nil {
					return fmt.Errorf("flow[%d].args[%d]: slot and value are exclusive", i, j)
				}
				if _, ok := s.Slots[arg.Slot]; !ok {
					return fmt.Errorf("flow[%d].args[%d]: unknown slot %q", i, j, arg.Slot)
				}
			}
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i], s); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, s *Scenario) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertOpcodes:
		if a.Lambda == "" {
			return fmt.Errorf("assertions[%d]: lambda is required for opcodes", index)
		}
		if len(a.Opcodes) == 0 {
			return fmt.Errorf("assertions[%d]: opcodes list is required for opcodes", index)
		}
	case AssertCompileError:
		if a.Lambda == "" || a.Code == "" {
			return fmt.Errorf("assertions[%d]: lambda and code are required for compile_error", index)
		}
	case AssertOracleEquivalent:
		if a.Lambda == "" {
			return fmt.Errorf("assertions[%d]: lambda is required for oracle_equivalent", index)
		}
	case AssertTraceCount:
		if a.Lambda == "" {
			return fmt.Errorf("assertions[%d]: lambda is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertTraceOrder:
		if len(a.Lambdas) == 0 {
			return fmt.Errorf("assertions[%d]: lambdas list is required for trace_order", index)
		}
	case AssertFinalState:
		if a.Slot == "" {
			return fmt.Errorf("assertions[%d]: slot is required for final_state", index)
		}
		if _, ok := s.Slots[a.Slot]; !ok {
			return fmt.Errorf("assertions[%d]: unknown slot %q", index, a.Slot)
		}
		if a.Expect.Kind == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
