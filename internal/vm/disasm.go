package vm

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable listing of p:
//
//	== SetHealth ==
//	func(ref value Person)
//	0000  ldarg    0
//	0001  ldint    5
//	0002  stfld    Person.Health
//	0003  ret
//
// followed by the local slot types and the constant pool when non-empty.
// Listings are stable for a given program and are used as golden files.
func Disassemble(p *Program) string {
	var b strings.Builder
	fmt.Fprintf(&b, "== %s ==\n", p.Name)
	fmt.Fprintf(&b, "%s\n", p.Signature)
	for pc, in := range p.Code {
		disassembleInstruction(&b, p, pc, in)
	}
	fmt.Fprintf(&b, "maxstack %d\n", p.MaxStack)
	if len(p.Locals) > 0 {
		b.WriteString("locals\n")
		for i, t := range p.Locals {
			fmt.Fprintf(&b, "  %d  %s\n", i, t)
		}
	}
	if len(p.Consts) > 0 {
		b.WriteString("consts\n")
		for i, c := range p.Consts {
			fmt.Fprintf(&b, "  %d  %s\n", i, constantString(c))
		}
	}
	return b.String()
}

func disassembleInstruction(b *strings.Builder, p *Program, pc int, in Instr) {
	fmt.Fprintf(b, "%04d  ", pc)
	switch {
	case in.Op.usesMember():
		fmt.Fprintf(b, "%-8s %s\n", in.Op, in.Member)
	case in.Op == OpLdStr || in.Op == OpLdConst:
		comment := "?"
		if in.Arg >= 0 && int(in.Arg) < len(p.Consts) {
			comment = constantString(p.Consts[in.Arg])
		}
		fmt.Fprintf(b, "%-8s %d  ; %s\n", in.Op, in.Arg, comment)
	case in.Op.usesArg():
		fmt.Fprintf(b, "%-8s %d\n", in.Op, in.Arg)
	default:
		fmt.Fprintf(b, "%s\n", in.Op)
	}
}

// constantString renders a pool entry without pointer addresses so listings
// stay deterministic.
func constantString(v interface{ String() string }) string {
	s := v.String()
	if i := strings.Index(s, "@0x"); i >= 0 {
		return s[:i]
	}
	return s
}
