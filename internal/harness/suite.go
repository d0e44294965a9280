package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SuiteResult summarizes a directory of scenarios.
type SuiteResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Total     int              `json:"total"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
}

// ScenarioResult is the outcome of one scenario file.
type ScenarioResult struct {
	Scenario string   `json:"scenario"`
	Path     string   `json:"path"`
	Pass     bool     `json:"pass"`
	Errors   []string `json:"errors,omitempty"`
}

// Failures returns the scenarios that did not pass, in run order.
func (r *SuiteResult) Failures() []ScenarioResult {
	var out []ScenarioResult
	for _, s := range r.Scenarios {
		if !s.Pass {
			out = append(out, s)
		}
	}
	return out
}

// SuiteOptions controls RunSuite.
type SuiteOptions struct {
	// GoldenDir, when set, holds {name}.golden snapshots to compare with.
	GoldenDir string

	// Update rewrites golden files instead of comparing.
	Update bool

	// Filter is a glob matched against the file name without extension.
	Filter string
}

// FindScenarios returns the .yaml and .yml files in dir, sorted.
func FindScenarios(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read scenario dir: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// RunSuite loads and runs every scenario in dir. Scenario failures are
// collected in the result; only an unreadable dir returns an error.
func RunSuite(ctx context.Context, dir string, opts SuiteOptions) (*SuiteResult, error) {
	paths, err := FindScenarios(dir)
	if err != nil {
		return nil, err
	}

	result := &SuiteResult{Scenarios: []ScenarioResult{}}
	for _, path := range paths {
		if opts.Filter != "" {
			base := filepath.Base(path)
			matched, err := filepath.Match(opts.Filter, strings.TrimSuffix(base, filepath.Ext(base)))
			if err != nil {
				return nil, fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				continue
			}
		}

		result.Total++
		fail := func(name string, errs ...string) {
			result.Failed++
			result.Scenarios = append(result.Scenarios, ScenarioResult{Scenario: name, Path: path, Errors: errs})
		}

		scenario, err := LoadScenario(path)
		if err != nil {
			fail(filepath.Base(path), fmt.Sprintf("failed to load scenario: %v", err))
			continue
		}
		run, err := RunContext(ctx, scenario)
		if err != nil {
			fail(scenario.Name, fmt.Sprintf("scenario execution failed: %v", err))
			continue
		}
		if !run.Pass {
			fail(scenario.Name, run.Errors...)
			continue
		}
		if opts.GoldenDir != "" {
			golden := filepath.Join(opts.GoldenDir, scenario.Name+".golden")
			if err := CheckGolden(golden, Snapshot(scenario.Name, run), opts.Update); err != nil {
				fail(scenario.Name, err.Error())
				continue
			}
		}
		result.Passed++
		result.Scenarios = append(result.Scenarios, ScenarioResult{Scenario: scenario.Name, Path: path, Pass: true})
	}
	return result, nil
}
