package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordedLog invokes AddHealth twice and Div once into a fresh database.
func recordedLog(t *testing.T) string {
	t.Helper()
	dir := peopleDir(t)
	db := filepath.Join(t.TempDir(), "log.db")
	_, err := execute(t, "invoke", dir, "AddHealth", "--args", `[{"Health": 1}]`, "--db", db)
	require.NoError(t, err)
	_, err = execute(t, "invoke", dir, "AddHealth", "--args", `[{"Health": 2}]`, "--db", db)
	require.NoError(t, err)
	_, err = execute(t, "invoke", dir, "Div", "--args", `[1, 0]`, "--db", db)
	require.Error(t, err)
	return db
}

func TestTrace_Timeline(t *testing.T) {
	db := recordedLog(t)

	out, err := execute(t, "trace", "--db", db, "--format", "json")
	require.NoError(t, err)

	var result TraceResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, TraceStats{Programs: 2, Invocations: 3, Failed: 1}, result.Stats)

	var kinds, lambdas []string
	for i, ev := range result.Timeline {
		kinds = append(kinds, ev.Type)
		lambdas = append(lambdas, ev.Lambda)
		if i > 0 {
			assert.Greater(t, ev.Seq, result.Timeline[i-1].Seq)
		}
	}
	assert.Equal(t, []string{"program", "invocation", "invocation", "program", "invocation"}, kinds)
	assert.Equal(t, []string{"AddHealth", "AddHealth", "AddHealth", "Div", "Div"}, lambdas)

	second := result.Timeline[2]
	assert.Equal(t, []any{map[string]any{"Friend": nil, "Health": float64(2), "Name": ""}}, second.Args)
	assert.Equal(t, []any{map[string]any{"Friend": nil, "Health": float64(7), "Name": ""}}, second.ArgsAfter)
	assert.Contains(t, result.Timeline[4].Error, "DIVIDE_BY_ZERO")
}

func TestTrace_Text(t *testing.T) {
	db := recordedLog(t)

	out, err := execute(t, "trace", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "=== Timeline ===")
	assert.Contains(t, out, "COMPILE AddHealth func(ref value Person)")
	assert.Contains(t, out, "CALL Div [1, 0]")
	assert.Contains(t, out, "Error: DIVIDE_BY_ZERO")
	assert.Contains(t, out, "Invocations: 3")
	assert.NotContains(t, out, "After:", "details only with --verbose")

	out, err = execute(t, "trace", "--db", db, "--verbose")
	require.NoError(t, err)
	assert.Contains(t, out, "After: [{Friend=null, Health=6, Name=\"\"}]")
}

func TestTrace_ProgramFilter(t *testing.T) {
	db := recordedLog(t)

	out, err := execute(t, "trace", "--db", db, "--format", "json")
	require.NoError(t, err)
	var all TraceResult
	decodeResponse(t, out, &all)
	divHash := all.Timeline[3].ID

	out, err = execute(t, "trace", "--db", db, "--program", divHash[:10], "--format", "json")
	require.NoError(t, err)
	var result TraceResult
	decodeResponse(t, out, &result)
	assert.Equal(t, divHash, result.Program)
	assert.Equal(t, TraceStats{Programs: 1, Invocations: 1, Failed: 1}, result.Stats)
	require.Len(t, result.Timeline, 2)
	assert.Equal(t, "Div", result.Timeline[1].Lambda)

	out, err = execute(t, "trace", "--db", db, "--program", "zzzz")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, `no program matches "zzzz"`)
}

func TestTrace_EmptyLog(t *testing.T) {
	db := filepath.Join(t.TempDir(), "log.db")
	_, err := execute(t, "compile", peopleDir(t), "--db", db)
	require.NoError(t, err)

	out, err := execute(t, "trace", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Programs:    4")
	assert.Contains(t, out, "Invocations: 0")
}

func TestTrace_Errors(t *testing.T) {
	_, err := execute(t, "trace")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "db" not set`)

	out, err := execute(t, "trace", "--db", filepath.Join(t.TempDir(), "missing.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "database not found")
}
