package ir

import "fmt"

// BinaryOp is an arithmetic, bitwise or logical operator.
type BinaryOp uint8

const (
	OpAdd BinaryOp = iota + 1
	OpSub
	OpMul
	OpDiv
	OpRem
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
)

var binaryOpNames = map[BinaryOp]string{
	OpAdd: "add",
	OpSub: "sub",
	OpMul: "mul",
	OpDiv: "div",
	OpRem: "rem",
	OpAnd: "and",
	OpOr:  "or",
	OpXor: "xor",
	OpShl: "shl",
	OpShr: "shr",
}

var binaryOpSymbols = map[BinaryOp]string{
	OpAdd: "+",
	OpSub: "-",
	OpMul: "*",
	OpDiv: "/",
	OpRem: "%",
	OpAnd: "&",
	OpOr:  "|",
	OpXor: "^",
	OpShl: "<<",
	OpShr: ">>",
}

func (op BinaryOp) String() string {
	if s, ok := binaryOpNames[op]; ok {
		return s
	}
	return fmt.Sprintf("BinaryOp(%d)", op)
}

// Symbol returns the operator's infix spelling.
func (op BinaryOp) Symbol() string { return binaryOpSymbols[op] }

// ParseBinaryOp maps an operator name ("add", "sub", ...) or symbol ("+", "-", ...)
// to a BinaryOp.
func ParseBinaryOp(s string) (BinaryOp, error) {
	for op, name := range binaryOpNames {
		if name == s || binaryOpSymbols[op] == s {
			return op, nil
		}
	}
	return 0, fmt.Errorf("unknown operator %q", s)
}

// ResultType returns the static type of l <op> r, or false when the operator
// is not defined for those operand types.
func (op BinaryOp) ResultType(l, r *Type) (*Type, bool) {
	if l != r {
		return nil, false
	}
	switch l {
	case Int:
		return Int, true
	case Bool:
		switch op {
		case OpAnd, OpOr, OpXor:
			return Bool, true
		}
	case String:
		if op == OpAdd {
			return String, true
		}
	}
	return nil, false
}
