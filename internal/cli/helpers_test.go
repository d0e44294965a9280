package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const typesCUE = `package test

types: {
	Person: {
		kind: "class"
		fields: {Health: "int", Name: "string", Friend: "Person"}
		properties: {
			Title: {field: "Name"}
			Tag: {field: "Name", readonly: true}
		}
	}
	Vec: {
		kind: "struct"
		fields: {X: "int", Y: "int"}
	}
}
`

const lambdasCUE = `package test

lambdas: {
	Update: {
		params: [
			{name: "params", type: "bytes"},
			{name: "offset", type: "int", ref: true},
			{name: "value", type: "Person", ref: true},
		]
		body: block: exprs: [
			{assign: {target: member: {of: param: "value", name: "Health"}, value: const: 5}},
			{assign: {target: member: {of: param: "value", name: "Name"}, value: const: "Bob"}},
		]
	}
	AddHealth: {
		params: [{name: "value", type: "Person", ref: true}]
		body: compound: {op: "+", target: member: {of: param: "value", name: "Health"}, value: const: 5}
	}
	Shift: {
		params: [{name: "v", type: "Vec"}]
		returns: "int"
		body: block: exprs: [
			{assign: {target: member: {of: param: "v", name: "X"}, value: const: 10}},
			{member: {of: param: "v", name: "X"}},
		]
	}
	Div: {
		params: [{name: "a", type: "int"}, {name: "b", type: "int"}]
		returns: "int"
		body: binary: {op: "div", left: param: "a", right: param: "b"}
	}
}
`

// badCUE holds two lambdas that parse but do not compile.
const badCUE = `package test

lambdas: {
	Good: {
		params: [{name: "p", type: "Person"}]
		returns: "int"
		body: member: {of: param: "p", name: "Health"}
	}
	ConstTarget: {
		params: [{name: "n", type: "int"}]
		body: assign: {target: const: 1, value: param: "n"}
	}
	ReadOnly: {
		params: [{name: "p", type: "Person"}]
		body: assign: {target: member: {of: param: "p", name: "Tag"}, value: const: "x"}
	}
}
`

// writeSource creates a source dir holding the given files.
func writeSource(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

func peopleDir(t *testing.T) string {
	return writeSource(t, map[string]string{"types.cue": typesCUE, "lambdas.cue": lambdasCUE})
}

func badDir(t *testing.T) string {
	return writeSource(t, map[string]string{"types.cue": typesCUE, "lambdas.cue": badCUE})
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// decodeResponse parses a JSON CLIResponse and re-decodes its data into data.
func decodeResponse(t *testing.T, out string, data any) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	if data != nil && resp.Data != nil {
		raw, err := json.Marshal(resp.Data)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, data))
	}
	return resp
}
