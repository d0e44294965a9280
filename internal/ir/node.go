package ir

// Node is a sealed interface over the closed set of tree variants:
// *Parameter, *Constant, *MemberAccess, *Assign, *CompoundAssign, *Binary,
// *Block and *Lambda. Adding a variant means updating every type switch in
// the resolver, the emitter, the oracle and the renderer.
type Node interface {
	// Type returns the static type of the expression.
	Type() *Type

	node() // Sealed - only the variants below implement it
}

// Parameter is a lambda parameter or a block-local variable.
// Identity is pointer identity: two parameters with the same name are
// different slots.
type Parameter struct {
	name  string
	typ   *Type
	byRef bool
}

func (*Parameter) node() {}

func (p *Parameter) Type() *Type { return p.typ }
func (p *Parameter) Name() string { return p.name }

// ByRef reports whether the caller passes an indirection to its own storage.
func (p *Parameter) ByRef() bool { return p.byRef }

// Constant is a typed literal.
type Constant struct {
	value Value
	typ   *Type
}

func (*Constant) node() {}

func (c *Constant) Type() *Type { return c.typ }
func (c *Constant) Value() Value { return c.value }

// MemberAccess reads (or, as an assignment target, locates) a field or
// property of its target.
type MemberAccess struct {
	target Node
	member *Member
}

func (*MemberAccess) node() {}

func (m *MemberAccess) Type() *Type { return m.member.typ }
func (m *MemberAccess) Target() Node { return m.target }
func (m *MemberAccess) Member() *Member { return m.member }

// Assign stores value into target and evaluates to the stored value.
type Assign struct {
	target Node
	value  Node
}

func (*Assign) node() {}

func (a *Assign) Type() *Type { return a.target.Type() }
func (a *Assign) Target() Node { return a.target }
func (a *Assign) Value() Node { return a.value }

// CompoundAssign is target = target <op> value with target's address
// computed once.
type CompoundAssign struct {
	target Node
	op     BinaryOp
	value  Node
}

func (*CompoundAssign) node() {}

func (c *CompoundAssign) Type() *Type { return c.target.Type() }
func (c *CompoundAssign) Target() Node { return c.target }
func (c *CompoundAssign) Op() BinaryOp { return c.op }
func (c *CompoundAssign) Value() Node { return c.value }

// Binary applies an operator to two operands evaluated left to right.
type Binary struct {
	op    BinaryOp
	left  Node
	right Node
	typ   *Type
}

func (*Binary) node() {}

func (b *Binary) Type() *Type { return b.typ }
func (b *Binary) Op() BinaryOp { return b.op }
func (b *Binary) Left() Node { return b.left }
func (b *Binary) Right() Node { return b.right }

// Block declares locals and evaluates expressions in order. Its value is the
// value of the last expression.
type Block struct {
	vars  []*Parameter
	exprs []Node
}

func (*Block) node() {}

func (b *Block) Type() *Type { return b.exprs[len(b.exprs)-1].Type() }
func (b *Block) Vars() []*Parameter { return b.vars }
func (b *Block) Exprs() []Node { return b.exprs }

// Lambda is the unit of compilation.
type Lambda struct {
	name   string
	params []*Parameter
	body   Node
	ret    *Type
}

func (*Lambda) node() {}

// Type returns the declared return type.
func (l *Lambda) Type() *Type { return l.ret }
func (l *Lambda) Name() string { return l.name }
func (l *Lambda) Params() []*Parameter { return l.params }
func (l *Lambda) Body() Node { return l.body }

// Signature returns the delegate signature the compiled callable exposes.
func (l *Lambda) Signature() Signature {
	sig := Signature{Params: make([]Param, len(l.params)), Return: l.ret}
	for i, p := range l.params {
		sig.Params[i] = Param{Name: p.name, Type: p.typ, ByRef: p.byRef}
	}
	return sig
}
