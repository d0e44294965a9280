package ir

// Version constants for the IR encoding and the compiler.
const (
	// IRVersion is the canonical tree encoding version. Bump it when the
	// encoding in canonical.go changes so stored tree hashes are not mixed.
	IRVersion = "1"

	// CompilerVersion is the exprjit compiler version recorded with programs.
	CompilerVersion = "0.1.0"
)
