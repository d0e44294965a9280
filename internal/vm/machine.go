package vm

import (
	"fmt"

	"github.com/roach88/exprjit/internal/ir"
)

// frame is the per-invocation state: argument slots, local slots and the
// evaluation stack.
type frame struct {
	args   []ir.Value
	locals []ir.Value
	stack  []ir.Value
}

func (fr *frame) push(v ir.Value) { fr.stack = append(fr.stack, v) }

func (fr *frame) pop() ir.Value {
	v := fr.stack[len(fr.stack)-1]
	fr.stack = fr.stack[:len(fr.stack)-1]
	return v
}

// reset drops every reference the frame holds so pooled frames do not keep
// caller objects alive.
func (fr *frame) reset() {
	clear(fr.args)
	clear(fr.locals)
	clear(fr.stack[:cap(fr.stack)])
	fr.args = fr.args[:0]
	fr.locals = fr.locals[:0]
	fr.stack = fr.stack[:0]
}

// execute runs p to its ret instruction.
func execute(p *Program, fr *frame) (ir.Value, error) {
	for pc := 0; pc < len(p.Code); pc++ {
		in := p.Code[pc]
		switch in.Op {
		case OpLdArg:
			fr.push(fr.args[in.Arg].Clone())
		case OpLdArgA:
			fr.push(ir.PointerTo(&fr.args[in.Arg]))
		case OpStArg:
			fr.args[in.Arg].Set(fr.pop())
		case OpLdLoc:
			fr.push(fr.locals[in.Arg].Clone())
		case OpLdLocA:
			fr.push(ir.PointerTo(&fr.locals[in.Arg]))
		case OpStLoc:
			fr.locals[in.Arg].Set(fr.pop())
		case OpLdInd:
			fr.push(fr.pop().Elem().Clone())
		case OpStInd:
			v := fr.pop()
			fr.pop().Elem().Set(v)
		case OpLdFld:
			slot, err := fieldSlot(p, pc, fr.pop(), in.Member)
			if err != nil {
				return ir.Value{}, err
			}
			fr.push(slot.Clone())
		case OpLdFldA:
			recv := fr.pop()
			if recv.Kind() == ir.KindStruct {
				return ir.Value{}, invalidProgram(p, pc, "address of a field of a temporary %s", in.Member)
			}
			slot, err := fieldSlot(p, pc, recv, in.Member)
			if err != nil {
				return ir.Value{}, err
			}
			fr.push(ir.PointerTo(slot))
		case OpStFld:
			v := fr.pop()
			recv := fr.pop()
			if recv.Kind() == ir.KindStruct {
				return ir.Value{}, invalidProgram(p, pc, "store into a field of a temporary %s", in.Member)
			}
			slot, err := fieldSlot(p, pc, recv, in.Member)
			if err != nil {
				return ir.Value{}, err
			}
			slot.Set(v)
		case OpCallGet:
			recv, err := propertyReceiver(p, pc, fr.pop(), in.Member)
			if err != nil {
				return ir.Value{}, err
			}
			fr.push(in.Member.Accessor().Get(recv).Clone())
		case OpCallSet:
			v := fr.pop()
			recv, err := propertyReceiver(p, pc, fr.pop(), in.Member)
			if err != nil {
				return ir.Value{}, err
			}
			set := in.Member.Accessor().Set
			if set == nil {
				return ir.Value{}, invalidProgram(p, pc, "%s is read-only", in.Member)
			}
			set(recv, v.Clone())
		case OpLdInt:
			fr.push(ir.IntValue(in.Arg))
		case OpLdBool:
			fr.push(ir.BoolValue(in.Arg != 0))
		case OpLdNull:
			fr.push(ir.Nil(nil))
		case OpLdStr, OpLdConst:
			fr.push(p.Consts[in.Arg].Clone())
		case OpDup:
			top := fr.stack[len(fr.stack)-1]
			fr.push(top.Clone())
		case OpPop:
			fr.pop()
		case OpAdd, OpSub, OpMul, OpDiv, OpRem, OpAnd, OpOr, OpXor, OpShl, OpShr:
			r := fr.pop()
			l := fr.pop()
			v, err := arith(p, pc, in.Op, l, r)
			if err != nil {
				return ir.Value{}, err
			}
			fr.push(v)
		case OpRet:
			if p.Signature.Return == nil || p.Signature.Return.Kind() == ir.KindVoid {
				return ir.VoidValue(), nil
			}
			return fr.pop(), nil
		default:
			return ir.Value{}, invalidProgram(p, pc, "unknown opcode %s", in.Op)
		}
	}
	return ir.Value{}, invalidProgram(p, len(p.Code), "missing ret")
}

// fieldSlot locates the storage of m on a receiver that is a class
// reference, a struct value or a managed pointer to a struct.
func fieldSlot(p *Program, pc int, recv ir.Value, m *ir.Member) (*ir.Value, error) {
	switch recv.Kind() {
	case ir.KindClass:
		if recv.IsNil() {
			return nil, nullReference(p, pc, m)
		}
		return recv.Object().Slot(m.Offset()), nil
	case ir.KindPointer:
		target := recv.Elem()
		if target.Kind() == ir.KindClass {
			// by-ref class parameter read without ldind
			if target.IsNil() {
				return nil, nullReference(p, pc, m)
			}
			return target.Object().Slot(m.Offset()), nil
		}
		return target.Slot(m.Offset()), nil
	case ir.KindStruct:
		return recv.Slot(m.Offset()), nil
	default:
		return nil, invalidProgram(p, pc, "%s on a %s receiver", m, recv.Kind())
	}
}

// propertyReceiver adapts the receiver to the accessor's convention: the
// reference for class owners, a pointer to the storage for struct owners.
func propertyReceiver(p *Program, pc int, recv ir.Value, m *ir.Member) (ir.Value, error) {
	switch recv.Kind() {
	case ir.KindClass:
		if recv.IsNil() {
			return ir.Value{}, nullReference(p, pc, m)
		}
		return recv, nil
	case ir.KindPointer:
		return recv, nil
	case ir.KindStruct:
		tmp := recv
		return ir.PointerTo(&tmp), nil
	default:
		return ir.Value{}, invalidProgram(p, pc, "%s on a %s receiver", m, recv.Kind())
	}
}

func arith(p *Program, pc int, op Opcode, l, r ir.Value) (ir.Value, error) {
	switch l.Kind() {
	case ir.KindInt:
		a, b := l.Int(), r.Int()
		switch op {
		case OpAdd:
			return ir.IntValue(a + b), nil
		case OpSub:
			return ir.IntValue(a - b), nil
		case OpMul:
			return ir.IntValue(a * b), nil
		case OpDiv, OpRem:
			if b == 0 {
				return ir.Value{}, &RuntimeError{Code: ErrCodeDivideByZero, Message: "integer division by zero", Func: p.Name, PC: pc}
			}
			if op == OpDiv {
				return ir.IntValue(a / b), nil
			}
			return ir.IntValue(a % b), nil
		case OpAnd:
			return ir.IntValue(a & b), nil
		case OpOr:
			return ir.IntValue(a | b), nil
		case OpXor:
			return ir.IntValue(a ^ b), nil
		case OpShl:
			return ir.IntValue(a << (uint64(b) & 63)), nil
		case OpShr:
			return ir.IntValue(a >> (uint64(b) & 63)), nil
		}
	case ir.KindBool:
		a, b := l.Bool(), r.Bool()
		switch op {
		case OpAnd:
			return ir.BoolValue(a && b), nil
		case OpOr:
			return ir.BoolValue(a || b), nil
		case OpXor:
			return ir.BoolValue(a != b), nil
		}
	case ir.KindString:
		if op == OpAdd {
			return ir.StringValue(l.Str() + r.Str()), nil
		}
	}
	return ir.Value{}, invalidProgram(p, pc, "%s is not defined for %s", op, l.Kind())
}

func nullReference(p *Program, pc int, m *ir.Member) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeNullReference,
		Message: fmt.Sprintf("access to %s through a null reference", m),
		Func:    p.Name,
		PC:      pc,
	}
}

func invalidProgram(p *Program, pc int, format string, args ...any) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeInvalidProgram,
		Message: fmt.Sprintf(format, args...),
		Func:    p.Name,
		PC:      pc,
	}
}
