package vm

import (
	"fmt"

	"github.com/roach88/exprjit/internal/ir"
)

// Opcode identifies one stack-machine instruction.
type Opcode uint8

const (
	OpLdArg   Opcode = iota + 1 // push argument slot Arg
	OpLdArgA                    // push address of argument slot Arg
	OpStArg                     // pop into argument slot Arg
	OpLdLoc                     // push local slot Arg
	OpLdLocA                    // push address of local slot Arg
	OpStLoc                     // pop into local slot Arg
	OpLdInd                     // pop address, push the value it refers to
	OpStInd                     // pop value, pop address, store through address
	OpLdFld                     // pop receiver, push field Member
	OpLdFldA                    // pop receiver, push address of field Member
	OpStFld                     // pop value, pop receiver, store field Member
	OpCallGet                   // pop receiver, push property Member
	OpCallSet                   // pop value, pop receiver, set property Member
	OpLdInt                     // push int immediate Arg
	OpLdBool                    // push bool immediate Arg (0 or 1)
	OpLdNull                    // push null reference
	OpLdStr                     // push string constant Consts[Arg]
	OpLdConst                   // push constant Consts[Arg]
	OpDup
	OpPop
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpRem
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
	OpRet
)

var opcodeNames = [...]string{
	OpLdArg:   "ldarg",
	OpLdArgA:  "ldarga",
	OpStArg:   "starg",
	OpLdLoc:   "ldloc",
	OpLdLocA:  "ldloca",
	OpStLoc:   "stloc",
	OpLdInd:   "ldind",
	OpStInd:   "stind",
	OpLdFld:   "ldfld",
	OpLdFldA:  "ldflda",
	OpStFld:   "stfld",
	OpCallGet: "callget",
	OpCallSet: "callset",
	OpLdInt:   "ldint",
	OpLdBool:  "ldbool",
	OpLdNull:  "ldnull",
	OpLdStr:   "ldstr",
	OpLdConst: "ldconst",
	OpDup:     "dup",
	OpPop:     "pop",
	OpAdd:     "add",
	OpSub:     "sub",
	OpMul:     "mul",
	OpDiv:     "div",
	OpRem:     "rem",
	OpAnd:     "and",
	OpOr:      "or",
	OpXor:     "xor",
	OpShl:     "shl",
	OpShr:     "shr",
	OpRet:     "ret",
}

func (op Opcode) String() string {
	if int(op) < len(opcodeNames) && opcodeNames[op] != "" {
		return opcodeNames[op]
	}
	return fmt.Sprintf("Opcode(%d)", op)
}

// ParseOpcode maps a mnemonic back to its opcode.
func ParseOpcode(name string) (Opcode, error) {
	for op, n := range opcodeNames {
		if n != "" && n == name {
			return Opcode(op), nil
		}
	}
	return 0, fmt.Errorf("unknown opcode %q", name)
}

// StackEffect returns how many values op pops and pushes. ret is reported as
// (0, 0); its pop depends on the program's return type.
func (op Opcode) StackEffect() (pops, pushes int) {
	switch op {
	case OpLdArg, OpLdArgA, OpLdLoc, OpLdLocA, OpLdInt, OpLdBool, OpLdNull, OpLdStr, OpLdConst:
		return 0, 1
	case OpStArg, OpStLoc, OpPop:
		return 1, 0
	case OpLdInd, OpLdFld, OpLdFldA, OpCallGet:
		return 1, 1
	case OpStInd, OpStFld, OpCallSet:
		return 2, 0
	case OpDup:
		return 1, 2
	case OpAdd, OpSub, OpMul, OpDiv, OpRem, OpAnd, OpOr, OpXor, OpShl, OpShr:
		return 2, 1
	default:
		return 0, 0
	}
}

var binaryOpcodes = map[ir.BinaryOp]Opcode{
	ir.OpAdd: OpAdd,
	ir.OpSub: OpSub,
	ir.OpMul: OpMul,
	ir.OpDiv: OpDiv,
	ir.OpRem: OpRem,
	ir.OpAnd: OpAnd,
	ir.OpOr:  OpOr,
	ir.OpXor: OpXor,
	ir.OpShl: OpShl,
	ir.OpShr: OpShr,
}

// BinaryOpcode returns the instruction implementing op.
func BinaryOpcode(op ir.BinaryOp) (Opcode, bool) {
	code, ok := binaryOpcodes[op]
	return code, ok
}

// usesMember reports whether op's operand is a member descriptor.
func (op Opcode) usesMember() bool {
	switch op {
	case OpLdFld, OpLdFldA, OpStFld, OpCallGet, OpCallSet:
		return true
	}
	return false
}

// usesArg reports whether op carries an integer operand.
func (op Opcode) usesArg() bool {
	switch op {
	case OpLdArg, OpLdArgA, OpStArg, OpLdLoc, OpLdLocA, OpStLoc, OpLdInt, OpLdBool, OpLdStr, OpLdConst:
		return true
	}
	return false
}
