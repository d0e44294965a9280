package ir

import (
	"fmt"
	"strings"
)

// Format renders a tree as Go-like pseudo source for diagnostics. The output
// is stable for a given tree and is not meant to be parsed back.
func Format(n Node) string {
	var buf strings.Builder
	f := &formatter{buf: &buf}
	f.node(n, 0)
	return buf.String()
}

type formatter struct {
	buf *strings.Builder
}

func (f *formatter) indent(depth int) {
	for i := 0; i < depth; i++ {
		f.buf.WriteByte('\t')
	}
}

func (f *formatter) node(n Node, depth int) {
	switch v := n.(type) {
	case *Lambda:
		fmt.Fprintf(f.buf, "func %s(", v.name)
		for i, p := range v.params {
			if i > 0 {
				f.buf.WriteString(", ")
			}
			if p.byRef {
				f.buf.WriteString("ref ")
			}
			fmt.Fprintf(f.buf, "%s %s", p.name, p.typ.name)
		}
		f.buf.WriteString(")")
		if v.ret != Void {
			fmt.Fprintf(f.buf, " %s", v.ret.name)
		}
		f.buf.WriteString(" {\n")
		f.statements(v.body, v.ret != Void, depth+1)
		f.buf.WriteString("}")
	case *Block:
		f.buf.WriteString("{\n")
		f.statements(v, false, depth+1)
		f.indent(depth)
		f.buf.WriteString("}")
	case *Parameter:
		f.buf.WriteString(v.name)
	case *Constant:
		f.buf.WriteString(formatConstant(v.value))
	case *MemberAccess:
		f.operand(v.target, depth)
		f.buf.WriteByte('.')
		f.buf.WriteString(v.member.name)
	case *Assign:
		f.node(v.target, depth)
		f.buf.WriteString(" = ")
		f.node(v.value, depth)
	case *CompoundAssign:
		f.node(v.target, depth)
		fmt.Fprintf(f.buf, " %s= ", v.op.Symbol())
		f.node(v.value, depth)
	case *Binary:
		f.operand(v.left, depth)
		fmt.Fprintf(f.buf, " %s ", v.op.Symbol())
		f.operand(v.right, depth)
	default:
		fmt.Fprintf(f.buf, "<%T>", n)
	}
}

// operand parenthesizes compound expressions used as receivers or operands.
func (f *formatter) operand(n Node, depth int) {
	switch n.(type) {
	case *Parameter, *Constant, *MemberAccess:
		f.node(n, depth)
	default:
		f.buf.WriteByte('(')
		f.node(n, depth)
		f.buf.WriteByte(')')
	}
}

// statements writes a block body one expression per line. A block used as the
// whole body is flattened into the enclosing braces.
func (f *formatter) statements(n Node, returns bool, depth int) {
	blk, ok := n.(*Block)
	if !ok {
		f.indent(depth)
		if returns {
			f.buf.WriteString("return ")
		}
		f.node(n, depth)
		f.buf.WriteByte('\n')
		return
	}
	for _, v := range blk.vars {
		f.indent(depth)
		fmt.Fprintf(f.buf, "var %s %s\n", v.name, v.typ.name)
	}
	for i, e := range blk.exprs {
		f.indent(depth)
		if returns && i == len(blk.exprs)-1 {
			f.buf.WriteString("return ")
		}
		f.node(e, depth)
		f.buf.WriteByte('\n')
	}
}

func formatConstant(v Value) string {
	switch v.kind {
	case KindClass:
		if v.obj == nil {
			return "nil"
		}
		return fmt.Sprintf("&%s{...}", v.typ.name)
	case KindStruct:
		parts := make([]string, 0, len(v.fields))
		for _, m := range v.typ.members {
			if m.kind == MemberField {
				parts = append(parts, fmt.Sprintf("%s: %s", m.name, formatConstant(v.fields[m.offset])))
			}
		}
		return fmt.Sprintf("%s{%s}", v.typ.name, strings.Join(parts, ", "))
	case KindBytes:
		return fmt.Sprintf("[]byte(%q)", v.raw)
	default:
		return v.String()
	}
}
