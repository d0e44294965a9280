package ir

// NewParameter creates a lambda parameter. byRef marks a parameter through
// which the caller passes its own storage.
func NewParameter(name string, typ *Type, byRef bool) (*Parameter, error) {
	if name == "" {
		return nil, mismatch("Parameter", "parameter name is required")
	}
	if typ == nil || typ.kind == KindVoid || typ.kind == KindInvalid {
		return nil, mismatch("Parameter", "parameter %s needs a non-void type", name)
	}
	return &Parameter{name: name, typ: typ, byRef: byRef}, nil
}

// NewVariable creates a block-local variable.
func NewVariable(name string, typ *Type) (*Parameter, error) {
	return NewParameter(name, typ, false)
}

// NewConstant creates a typed literal. The value must inhabit typ.
func NewConstant(v Value, typ *Type) (*Constant, error) {
	if typ == nil {
		typ = staticTypeOf(v)
		if typ == nil {
			return nil, mismatch("Constant", "cannot infer the type of %s; pass it explicitly", v)
		}
	}
	if !v.AssignableTo(typ) {
		return nil, mismatch("Constant", "value %s is not a %s", v, typ)
	}
	return &Constant{value: v.Clone(), typ: typ}, nil
}

func staticTypeOf(v Value) *Type {
	switch v.kind {
	case KindInt:
		return Int
	case KindBool:
		return Bool
	case KindString:
		return String
	case KindBytes:
		return Bytes
	case KindClass, KindStruct:
		return v.typ
	default:
		return nil
	}
}

// NewMemberAccess resolves member on target's static type.
func NewMemberAccess(target Node, member *Member) (*MemberAccess, error) {
	if target == nil || member == nil {
		return nil, mismatch("MemberAccess", "target and member are required")
	}
	t := target.Type()
	if t == nil || !t.IsComposite() {
		return nil, mismatch("MemberAccess", "%s has no members", t)
	}
	if member.owner != t {
		return nil, mismatch("MemberAccess", "%s does not declare %s", t, member)
	}
	return &MemberAccess{target: target, member: member}, nil
}

// NewMemberAccessByName looks name up on target's static type. This is the
// only name-based lookup; the resulting node refers to the member descriptor.
func NewMemberAccessByName(target Node, name string) (*MemberAccess, error) {
	if target == nil {
		return nil, mismatch("MemberAccess", "target is required")
	}
	t := target.Type()
	if t == nil || !t.IsComposite() {
		return nil, mismatch("MemberAccess", "%s has no members", t)
	}
	m, ok := t.Member(name)
	if !ok {
		return nil, mismatch("MemberAccess", "%s has no member %q", t, name)
	}
	return NewMemberAccess(target, m)
}

// NewAssign creates target = value. Assignability of target is a compile-time
// concern; only static types are checked here.
func NewAssign(target, value Node) (*Assign, error) {
	if target == nil || value == nil {
		return nil, mismatch("Assign", "target and value are required")
	}
	if err := checkAssignable("Assign", target.Type(), value); err != nil {
		return nil, err
	}
	return &Assign{target: target, value: value}, nil
}

// NewCompoundAssign creates target <op>= value.
func NewCompoundAssign(target Node, op BinaryOp, value Node) (*CompoundAssign, error) {
	if target == nil || value == nil {
		return nil, mismatch("CompoundAssign", "target and value are required")
	}
	rt, ok := op.ResultType(target.Type(), value.Type())
	if !ok {
		return nil, mismatch("CompoundAssign", "operator %s is not defined for %s and %s", op, target.Type(), value.Type())
	}
	if rt != target.Type() {
		return nil, mismatch("CompoundAssign", "result %s of %s is not assignable to %s", rt, op, target.Type())
	}
	return &CompoundAssign{target: target, op: op, value: value}, nil
}

// NewBinary creates left <op> right.
func NewBinary(op BinaryOp, left, right Node) (*Binary, error) {
	if left == nil || right == nil {
		return nil, mismatch("Binary", "both operands are required")
	}
	rt, ok := op.ResultType(left.Type(), right.Type())
	if !ok {
		return nil, mismatch("Binary", "operator %s is not defined for %s and %s", op, left.Type(), right.Type())
	}
	return &Binary{op: op, left: left, right: right, typ: rt}, nil
}

// NewBlock creates a block declaring vars and evaluating exprs in order.
func NewBlock(vars []*Parameter, exprs ...Node) (*Block, error) {
	if len(exprs) == 0 {
		return nil, mismatch("Block", "a block needs at least one expression")
	}
	for _, v := range vars {
		if v == nil {
			return nil, mismatch("Block", "nil variable")
		}
		if v.byRef {
			return nil, mismatch("Block", "local %s cannot be by-reference", v.name)
		}
	}
	for i, e := range exprs {
		if e == nil {
			return nil, mismatch("Block", "expression %d is nil", i)
		}
		if _, ok := e.(*Lambda); ok {
			return nil, mismatch("Block", "expression %d is a lambda", i)
		}
	}
	return &Block{
		vars:  append([]*Parameter(nil), vars...),
		exprs: append([]Node(nil), exprs...),
	}, nil
}

// NewLambda creates the unit of compilation. A void return type discards the
// body's value; any other return type must match the body.
func NewLambda(name string, ret *Type, body Node, params ...*Parameter) (*Lambda, error) {
	if body == nil {
		return nil, mismatch("Lambda", "body is required")
	}
	if ret == nil {
		ret = Void
	}
	if ret != Void && body.Type() != ret {
		return nil, mismatch("Lambda", "body type %s does not match return type %s", body.Type(), ret)
	}
	seen := make(map[string]bool, len(params))
	for _, p := range params {
		if p == nil {
			return nil, mismatch("Lambda", "nil parameter")
		}
		if seen[p.name] {
			return nil, mismatch("Lambda", "duplicate parameter %q", p.name)
		}
		seen[p.name] = true
	}
	return &Lambda{
		name:   name,
		params: append([]*Parameter(nil), params...),
		body:   body,
		ret:    ret,
	}, nil
}

func checkAssignable(node string, target *Type, value Node) error {
	vt := value.Type()
	if vt == target {
		return nil
	}
	// A null constant typed as another class is still a null reference.
	if c, ok := value.(*Constant); ok && c.value.IsNil() && target.kind == KindClass {
		return nil
	}
	return mismatch(node, "%s is not assignable to %s", vt, target)
}
