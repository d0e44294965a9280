package vm

import "github.com/roach88/exprjit/internal/ir"

// Instr is one instruction. Arg is the slot index, immediate or constant-pool
// index; Member is the field or property descriptor of member instructions.
type Instr struct {
	Op     Opcode
	Arg    int64
	Member *ir.Member
}

// Program is the output of compiling one lambda.
type Program struct {
	Name      string
	Signature ir.Signature
	Code      []Instr
	Consts    []ir.Value
	Locals    []*ir.Type
	MaxStack  int
}

// Instructions returns the instruction list. Callers must not modify it.
func (p *Program) Instructions() []Instr { return p.Code }

// Opcodes returns the opcode sequence, the shape tests compare against.
func (p *Program) Opcodes() []Opcode {
	ops := make([]Opcode, len(p.Code))
	for i, in := range p.Code {
		ops[i] = in.Op
	}
	return ops
}

// Mnemonics returns the opcode sequence as mnemonics.
func (p *Program) Mnemonics() []string {
	names := make([]string, len(p.Code))
	for i, in := range p.Code {
		names[i] = in.Op.String()
	}
	return names
}
