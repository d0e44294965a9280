package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot renders the listings and the recorded trace of a run as stable
// text: listings in compile order, then one entry per invocation.
func Snapshot(name string, result *Result) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "# scenario %s\n", name)
	for _, l := range result.Listings {
		b.WriteString("\n")
		b.WriteString(l.Text)
	}
	b.WriteString("\n# trace\n")
	for _, e := range result.Trace {
		fmt.Fprintf(&b, "%d %s %s\n", e.Seq, e.ID, e.Lambda)
		fmt.Fprintf(&b, "  args   %s\n", e.Args)
		fmt.Fprintf(&b, "  after  %s\n", e.ArgsAfter)
		if e.Error != "" {
			fmt.Fprintf(&b, "  error  %s\n", e.Error)
		} else {
			fmt.Fprintf(&b, "  result %s\n", e.Result)
		}
	}
	return []byte(b.String())
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, Snapshot(scenarioName, result))
}

// GoldenMismatchError reports a snapshot that differs from its golden file.
type GoldenMismatchError struct {
	Path string
}

func (e *GoldenMismatchError) Error() string {
	return fmt.Sprintf("snapshot differs from %s (rerun with --update to accept)", e.Path)
}

// CheckGolden compares snapshot with the file at path outside of tests.
// With update set the file is (re)written instead. A missing golden file is
// written on first run.
func CheckGolden(path string, snapshot []byte, update bool) error {
	want, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read golden file: %w", err)
	}
	if update || os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("create golden dir: %w", err)
		}
		if err := os.WriteFile(path, snapshot, 0o644); err != nil {
			return fmt.Errorf("write golden file: %w", err)
		}
		return nil
	}
	if !bytes.Equal(want, snapshot) {
		return &GoldenMismatchError{Path: path}
	}
	return nil
}
