package oracle

import (
	"errors"
	"fmt"

	"github.com/roach88/exprjit/internal/ir"
	"github.com/roach88/exprjit/internal/vm"
)

// ErrNotAssignable is returned for a store into a temporary, a constant or a
// read-only property.
var ErrNotAssignable = errors.New("target is not assignable")

// Eval runs lam with args, following the same calling convention as
// vm.Func.Invoke: by-reference parameters take ir.PointerTo(&slot) and
// by-value arguments are copied.
func Eval(lam *ir.Lambda, args ...ir.Value) (ir.Value, error) {
	if lam == nil {
		return ir.Value{}, errors.New("oracle: nil lambda")
	}
	params := lam.Params()
	if len(args) != len(params) {
		return ir.Value{}, mismatch(lam, "expected %d arguments, got %d", len(params), len(args))
	}

	e := &evaluator{lam: lam, slots: make(map[*ir.Parameter]*ir.Value, len(params))}
	for i, p := range params {
		a := args[i]
		if p.ByRef() {
			if a.Kind() != ir.KindPointer || a.Elem() == nil || !a.Elem().AssignableTo(p.Type()) {
				return ir.Value{}, mismatch(lam, "argument %d (%s) needs a pointer to a %s slot", i, p.Name(), p.Type())
			}
			e.slots[p] = a.Elem()
			continue
		}
		if !a.AssignableTo(p.Type()) {
			return ir.Value{}, mismatch(lam, "argument %d (%s): got %s, want %s", i, p.Name(), a.Kind(), p.Type())
		}
		v := a.Clone()
		e.slots[p] = &v
	}

	v, err := e.eval(lam.Body())
	if err != nil {
		return ir.Value{}, err
	}
	if lam.Type() == ir.Void {
		return ir.VoidValue(), nil
	}
	return v, nil
}

type evaluator struct {
	lam   *ir.Lambda
	slots map[*ir.Parameter]*ir.Value
}

// place is a storage location: a slot, or a property bound to its receiver.
// temp marks storage that only lives for the current expression. A member
// of a null reference is a place too; the fault is raised when it is loaded
// or stored, which is when the vm raises it.
type place struct {
	slot   *ir.Value
	prop   *ir.Member
	recv   ir.Value
	temp   bool
	nullOf *ir.Member
}

func (e *evaluator) load(pl place) (ir.Value, error) {
	if pl.nullOf != nil {
		return ir.Value{}, e.nullReference(pl.nullOf)
	}
	if pl.prop != nil {
		return pl.prop.Accessor().Get(pl.recv).Clone(), nil
	}
	return pl.slot.Clone(), nil
}

func (e *evaluator) store(pl place, v ir.Value) error {
	if pl.nullOf != nil {
		return e.nullReference(pl.nullOf)
	}
	if pl.prop != nil {
		pl.prop.Accessor().Set(pl.recv, v.Clone())
		return nil
	}
	pl.slot.Set(v)
	return nil
}

func (e *evaluator) eval(n ir.Node) (ir.Value, error) {
	switch x := n.(type) {
	case *ir.Parameter:
		slot, err := e.slot(x)
		if err != nil {
			return ir.Value{}, err
		}
		return slot.Clone(), nil

	case *ir.Constant:
		return x.Value().Clone(), nil

	case *ir.MemberAccess:
		pl, err := e.locate(x)
		if err != nil {
			return ir.Value{}, err
		}
		return e.load(pl)

	case *ir.Assign:
		pl, err := e.target(x.Target())
		if err != nil {
			return ir.Value{}, err
		}
		v, err := e.eval(x.Value())
		if err != nil {
			return ir.Value{}, err
		}
		if err := e.store(pl, v); err != nil {
			return ir.Value{}, err
		}
		return v, nil

	case *ir.CompoundAssign:
		pl, err := e.target(x.Target())
		if err != nil {
			return ir.Value{}, err
		}
		cur, err := e.load(pl)
		if err != nil {
			return ir.Value{}, err
		}
		rhs, err := e.eval(x.Value())
		if err != nil {
			return ir.Value{}, err
		}
		v, err := e.binary(x.Op(), cur, rhs)
		if err != nil {
			return ir.Value{}, err
		}
		if err := e.store(pl, v); err != nil {
			return ir.Value{}, err
		}
		return v, nil

	case *ir.Binary:
		l, err := e.eval(x.Left())
		if err != nil {
			return ir.Value{}, err
		}
		r, err := e.eval(x.Right())
		if err != nil {
			return ir.Value{}, err
		}
		return e.binary(x.Op(), l, r)

	case *ir.Block:
		for _, v := range x.Vars() {
			z := ir.Zero(v.Type())
			e.slots[v] = &z
		}
		defer func() {
			for _, v := range x.Vars() {
				delete(e.slots, v)
			}
		}()
		var last ir.Value
		for _, sub := range x.Exprs() {
			v, err := e.eval(sub)
			if err != nil {
				return ir.Value{}, err
			}
			last = v
		}
		return last, nil

	default:
		return ir.Value{}, fmt.Errorf("oracle: cannot evaluate %T", n)
	}
}

func (e *evaluator) slot(p *ir.Parameter) (*ir.Value, error) {
	slot, ok := e.slots[p]
	if !ok {
		return nil, fmt.Errorf("oracle: parameter %q is not in scope", p.Name())
	}
	return slot, nil
}

// target locates an assignment target and rejects temporaries.
func (e *evaluator) target(n ir.Node) (place, error) {
	switch n.(type) {
	case *ir.Parameter, *ir.MemberAccess:
	default:
		return place{}, fmt.Errorf("%w: %T", ErrNotAssignable, n)
	}
	pl, err := e.locate(n)
	if err != nil {
		return place{}, err
	}
	if pl.temp {
		return place{}, fmt.Errorf("%w: member of a temporary struct", ErrNotAssignable)
	}
	if pl.prop != nil && pl.prop.Accessor().Set == nil {
		return place{}, fmt.Errorf("%w: property %s is read-only", ErrNotAssignable, pl.prop)
	}
	return pl, nil
}

// locate finds the storage n denotes, evaluating any receiver once.
func (e *evaluator) locate(n ir.Node) (place, error) {
	switch x := n.(type) {
	case *ir.Parameter:
		slot, err := e.slot(x)
		if err != nil {
			return place{}, err
		}
		return place{slot: slot}, nil

	case *ir.MemberAccess:
		m := x.Member()
		if m.Owner().IsReference() {
			recv, err := e.eval(x.Target())
			if err != nil {
				return place{}, err
			}
			if recv.IsNil() {
				return place{nullOf: m}, nil
			}
			if m.IsField() {
				return place{slot: recv.Object().Slot(m.Offset())}, nil
			}
			return place{prop: m, recv: recv}, nil
		}

		storage, temp, err := e.structStorage(x.Target())
		if err != nil {
			return place{}, err
		}
		if m.IsField() {
			return place{slot: storage.Slot(m.Offset()), temp: temp}, nil
		}
		return place{prop: m, recv: ir.PointerTo(storage), temp: temp}, nil

	default:
		v, err := e.eval(n)
		if err != nil {
			return place{}, err
		}
		return place{slot: &v, temp: true}, nil
	}
}

// structStorage returns the storage of a struct-typed expression. Values
// without a home (block results, property results) are copied to a temporary.
func (e *evaluator) structStorage(n ir.Node) (*ir.Value, bool, error) {
	pl, err := e.locate(n)
	if err != nil {
		return nil, false, err
	}
	if pl.nullOf != nil {
		return nil, false, e.nullReference(pl.nullOf)
	}
	if pl.prop != nil {
		v, err := e.load(pl)
		if err != nil {
			return nil, false, err
		}
		return &v, true, nil
	}
	return pl.slot, pl.temp, nil
}

func (e *evaluator) binary(op ir.BinaryOp, l, r ir.Value) (ir.Value, error) {
	switch l.Kind() {
	case ir.KindInt:
		a, b := l.Int(), r.Int()
		switch op {
		case ir.OpAdd:
			return ir.IntValue(a + b), nil
		case ir.OpSub:
			return ir.IntValue(a - b), nil
		case ir.OpMul:
			return ir.IntValue(a * b), nil
		case ir.OpDiv:
			if b == 0 {
				return ir.Value{}, e.divideByZero()
			}
			return ir.IntValue(a / b), nil
		case ir.OpRem:
			if b == 0 {
				return ir.Value{}, e.divideByZero()
			}
			return ir.IntValue(a % b), nil
		case ir.OpAnd:
			return ir.IntValue(a & b), nil
		case ir.OpOr:
			return ir.IntValue(a | b), nil
		case ir.OpXor:
			return ir.IntValue(a ^ b), nil
		case ir.OpShl:
			return ir.IntValue(a << (uint64(b) % 64)), nil
		case ir.OpShr:
			return ir.IntValue(a >> (uint64(b) % 64)), nil
		}
	case ir.KindBool:
		a, b := l.Bool(), r.Bool()
		switch op {
		case ir.OpAnd:
			return ir.BoolValue(a && b), nil
		case ir.OpOr:
			return ir.BoolValue(a || b), nil
		case ir.OpXor:
			return ir.BoolValue(a != b), nil
		}
	case ir.KindString:
		if op == ir.OpAdd {
			return ir.StringValue(l.Str() + r.Str()), nil
		}
	}
	return ir.Value{}, fmt.Errorf("oracle: %s is not defined for %s", op, l.Kind())
}

func (e *evaluator) nullReference(m *ir.Member) error {
	return &vm.RuntimeError{
		Code:    vm.ErrCodeNullReference,
		Message: fmt.Sprintf("access to %s through a null reference", m),
		Func:    e.lam.Name(),
		PC:      -1,
	}
}

func (e *evaluator) divideByZero() error {
	return &vm.RuntimeError{
		Code:    vm.ErrCodeDivideByZero,
		Message: "integer division by zero",
		Func:    e.lam.Name(),
		PC:      -1,
	}
}

func mismatch(lam *ir.Lambda, format string, args ...any) error {
	return &vm.RuntimeError{
		Code:    vm.ErrCodeSignatureMismatch,
		Message: fmt.Sprintf(format, args...),
		Func:    lam.Name(),
		PC:      -1,
	}
}
