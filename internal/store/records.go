package store

// Program is a compiled lambda as recorded in the log.
type Program struct {
	// Hash is ir.TreeHash of the lambda; it identifies the program.
	Hash            string
	Name            string
	Signature       string
	Listing         string
	Opcodes         []string
	MaxStack        int
	Seq             int64
	IRVersion       string
	CompilerVersion string
}

// Invocation is one call of a program. Args, ArgsAfter and Result hold
// canonical JSON (see MarshalValues); Result is "null" for void lambdas and
// failed calls.
type Invocation struct {
	ID           string
	ProgramHash  string
	Args         string
	ArgsAfter    string
	Result       string
	ErrorCode    string
	ErrorMessage string
	Seq          int64
}

// Failed reports whether the call ended in a runtime error.
func (inv Invocation) Failed() bool { return inv.ErrorCode != "" }
