package store

import (
	"path/filepath"
	"testing"
)

// createTestStore creates a new store in a temp dir for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestProgram creates a program with minimal required fields.
func createTestProgram(hash, name string, seq int64) Program {
	return Program{
		Hash:            hash,
		Name:            name,
		Signature:       "func() void",
		Listing:         "== " + name + " ==\n0000  ret\n",
		Opcodes:         []string{"ret"},
		MaxStack:        0,
		Seq:             seq,
		IRVersion:       "1",
		CompilerVersion: "0.1.0",
	}
}

// createTestInvocation creates an invocation of programHash with empty args.
func createTestInvocation(id, programHash string, seq int64) Invocation {
	return Invocation{
		ID:          id,
		ProgramHash: programHash,
		Args:        "[]",
		ArgsAfter:   "[]",
		Result:      "null",
		Seq:         seq,
	}
}
