package compiler

import (
	"fmt"
	"math"

	"github.com/roach88/exprjit/internal/ir"
	"github.com/roach88/exprjit/internal/vm"
)

type slotKind uint8

const (
	slotArg slotKind = iota + 1
	slotLocal
)

type slot struct {
	kind  slotKind
	index int64
	byRef bool
}

// emitter lowers one lambda. All of its state is local to a single
// compilation.
type emitter struct {
	code     []vm.Instr
	depth    int
	maxDepth int
	pool     *constPool
	locals   []*ir.Type
	scope    map[*ir.Parameter]slot
	err      error
}

func newEmitter() *emitter {
	return &emitter{
		pool:  newConstPool(),
		scope: make(map[*ir.Parameter]slot),
	}
}

// op appends an instruction and applies its stack effect.
func (e *emitter) op(path string, code vm.Opcode, arg int64, m *ir.Member) {
	pops, pushes := code.StackEffect()
	if e.depth < pops {
		if e.err == nil {
			e.err = stackImbalance(path, "%s needs %d operands, stack has %d", code, pops, e.depth)
		}
		return
	}
	e.depth += pushes - pops
	if e.depth > e.maxDepth {
		e.maxDepth = e.depth
	}
	e.code = append(e.code, vm.Instr{Op: code, Arg: arg, Member: m})
}

func (e *emitter) emitOp(path string, code vm.Opcode) { e.op(path, code, 0, nil) }

func (e *emitter) emitArg(path string, code vm.Opcode, arg int64) { e.op(path, code, arg, nil) }

func (e *emitter) emitMember(path string, code vm.Opcode, m *ir.Member) { e.op(path, code, 0, m) }

func (e *emitter) newLocal(t *ir.Type) int64 {
	e.locals = append(e.locals, t)
	return int64(len(e.locals) - 1)
}

func (e *emitter) lookup(p *ir.Parameter, path string) (slot, error) {
	s, ok := e.scope[p]
	if !ok {
		return slot{}, notSupported(path, "parameter %q is not in scope", p.Name())
	}
	return s, nil
}

func (e *emitter) declare(p *ir.Parameter, s slot, path string) error {
	if _, dup := e.scope[p]; dup {
		return notSupported(path, "parameter %q is declared twice", p.Name())
	}
	e.scope[p] = s
	return nil
}

// lambda emits the body followed by ret.
func (e *emitter) lambda(lam *ir.Lambda) error {
	for i, p := range lam.Params() {
		if err := e.declare(p, slot{kind: slotArg, index: int64(i), byRef: p.ByRef()}, fmt.Sprintf("params[%d]", i)); err != nil {
			return err
		}
	}
	returns := lam.Type() != ir.Void
	if err := e.emit(lam.Body(), returns, "body"); err != nil {
		return err
	}
	want := 0
	if returns {
		want = 1
	}
	if e.err != nil {
		return e.err
	}
	if e.depth != want {
		return stackImbalance("body", "stack depth %d at ret, want %d", e.depth, want)
	}
	e.code = append(e.code, vm.Instr{Op: vm.OpRet})
	return nil
}

// emit lowers n. When want is set exactly one value is left on the stack,
// otherwise none. Sub-expressions are evaluated once, left to right.
func (e *emitter) emit(n ir.Node, want bool, path string) error {
	switch v := n.(type) {
	case *ir.Parameter:
		if !want {
			_, err := e.lookup(v, path)
			return err
		}
		return e.loadSlot(v, path)

	case *ir.Constant:
		if want {
			e.constant(v.Value(), path)
		}
		return nil

	case *ir.MemberAccess:
		if err := e.readMember(v, path); err != nil {
			return err
		}
		if !want {
			e.emitOp(path, vm.OpPop)
		}
		return e.err

	case *ir.Assign:
		return e.assign(v, want, path)

	case *ir.CompoundAssign:
		return e.compound(v, want, path)

	case *ir.Binary:
		code, ok := vm.BinaryOpcode(v.Op())
		if !ok {
			return notSupported(path, "operator %s", v.Op())
		}
		if err := e.emit(v.Left(), true, path+".left"); err != nil {
			return err
		}
		if err := e.emit(v.Right(), true, path+".right"); err != nil {
			return err
		}
		e.emitOp(path, code)
		if !want {
			e.emitOp(path, vm.OpPop)
		}
		return e.err

	case *ir.Block:
		return e.block(v, want, path)

	case *ir.Lambda:
		return notSupported(path, "nested lambda %q", v.Name())

	default:
		return notSupported(path, "unknown node %T", n)
	}
}

func (e *emitter) block(b *ir.Block, want bool, path string) error {
	for i, p := range b.Vars() {
		if err := e.declare(p, slot{kind: slotLocal, index: e.newLocal(p.Type())}, fmt.Sprintf("%s.vars[%d]", path, i)); err != nil {
			return err
		}
	}
	exprs := b.Exprs()
	for i, x := range exprs {
		last := i == len(exprs)-1
		if err := e.emit(x, want && last, fmt.Sprintf("%s.exprs[%d]", path, i)); err != nil {
			return err
		}
	}
	// Locals go out of scope; their slots are not reused.
	for _, p := range b.Vars() {
		delete(e.scope, p)
	}
	return nil
}

// loadSlot pushes the value of a parameter or local.
func (e *emitter) loadSlot(p *ir.Parameter, path string) error {
	s, err := e.lookup(p, path)
	if err != nil {
		return err
	}
	switch s.kind {
	case slotArg:
		e.emitArg(path, vm.OpLdArg, s.index)
		if s.byRef {
			e.emitOp(path, vm.OpLdInd)
		}
	case slotLocal:
		e.emitArg(path, vm.OpLdLoc, s.index)
	}
	return e.err
}

// slotAddress pushes a pointer to the storage of a parameter or local. For a
// by-ref parameter the argument already is that pointer.
func (e *emitter) slotAddress(p *ir.Parameter, path string) error {
	s, err := e.lookup(p, path)
	if err != nil {
		return err
	}
	switch {
	case s.kind == slotArg && s.byRef:
		e.emitArg(path, vm.OpLdArg, s.index)
	case s.kind == slotArg:
		e.emitArg(path, vm.OpLdArgA, s.index)
	default:
		e.emitArg(path, vm.OpLdLocA, s.index)
	}
	return e.err
}

// storeSlot pops into a direct slot.
func (e *emitter) storeSlot(p *ir.Parameter, path string) error {
	s, err := e.lookup(p, path)
	if err != nil {
		return err
	}
	if s.kind == slotArg {
		e.emitArg(path, vm.OpStArg, s.index)
	} else {
		e.emitArg(path, vm.OpStLoc, s.index)
	}
	return e.err
}

// address pushes a pointer to addressable struct storage.
func (e *emitter) address(n ir.Node, path string) error {
	switch v := n.(type) {
	case *ir.Parameter:
		return e.slotAddress(v, path)
	case *ir.MemberAccess:
		recv := v.Target()
		if recv.Type().IsReference() {
			if err := e.emit(recv, true, path+".of"); err != nil {
				return err
			}
		} else if err := e.address(recv, path+".of"); err != nil {
			return err
		}
		e.emitMember(path, vm.OpLdFldA, v.Member())
		return e.err
	default:
		return notSupported(path, "address of %s", nodeKind(n))
	}
}

// receiver pushes what a member instruction on m expects: the reference for
// a class receiver, a pointer to storage for an addressable struct receiver.
// A temporary struct is a value for fields and is spilled to a local for
// properties, whose accessors take a pointer.
func (e *emitter) receiver(recv ir.Node, m *ir.Member, path string) error {
	if recv.Type().IsReference() || !addressable(recv) {
		if err := e.emit(recv, true, path); err != nil {
			return err
		}
		if !recv.Type().IsReference() && !m.IsField() {
			tmp := e.newLocal(recv.Type())
			e.emitArg(path, vm.OpStLoc, tmp)
			e.emitArg(path, vm.OpLdLocA, tmp)
		}
		return e.err
	}
	return e.address(recv, path)
}

func (e *emitter) readMember(v *ir.MemberAccess, path string) error {
	if err := e.receiver(v.Target(), v.Member(), path+".of"); err != nil {
		return err
	}
	e.emitMember(path, loadOp(v.Member()), v.Member())
	return e.err
}

// base pushes the anchor of a member location: the receiver reference of a
// heap member or the address of the root slot, then walks the struct chain.
func (e *emitter) base(loc Location, path string) error {
	switch loc.Mode {
	case ModeHeapMember:
		if err := e.emit(loc.Receiver, true, path+".of"); err != nil {
			return err
		}
	case ModeDirectSlot, ModeIndirectSlot:
		if err := e.slotAddress(loc.Root, path); err != nil {
			return err
		}
	}
	for _, f := range loc.Chain {
		e.emitMember(path, vm.OpLdFldA, f)
	}
	return e.err
}

func (e *emitter) assign(a *ir.Assign, want bool, path string) error {
	loc, err := resolve(a.Target(), path+".target")
	if err != nil {
		return err
	}
	valuePath := path + ".value"

	if loc.Member == nil && loc.Mode == ModeDirectSlot {
		if err := e.emit(a.Value(), true, valuePath); err != nil {
			return err
		}
		if want {
			e.emitOp(path, vm.OpDup)
		}
		return e.storeSlot(loc.Root, path)
	}

	if loc.Member == nil {
		if err := e.slotAddress(loc.Root, path); err != nil {
			return err
		}
	} else if err := e.base(loc, path+".target"); err != nil {
		return err
	}
	if err := e.emit(a.Value(), true, valuePath); err != nil {
		return err
	}
	return e.store(loc, a.Type(), want, path)
}

func (e *emitter) compound(c *ir.CompoundAssign, want bool, path string) error {
	code, ok := vm.BinaryOpcode(c.Op())
	if !ok {
		return notSupported(path, "operator %s", c.Op())
	}
	loc, err := resolve(c.Target(), path+".target")
	if err != nil {
		return err
	}
	valuePath := path + ".value"

	if loc.Member == nil && loc.Mode == ModeDirectSlot {
		if err := e.loadSlot(loc.Root, path); err != nil {
			return err
		}
		if err := e.emit(c.Value(), true, valuePath); err != nil {
			return err
		}
		e.emitOp(path, code)
		if want {
			e.emitOp(path, vm.OpDup)
		}
		return e.storeSlot(loc.Root, path)
	}

	// The address is computed once and duplicated for the read.
	if loc.Member == nil {
		if err := e.slotAddress(loc.Root, path); err != nil {
			return err
		}
		e.emitOp(path, vm.OpDup)
		e.emitOp(path, vm.OpLdInd)
	} else {
		if err := e.base(loc, path+".target"); err != nil {
			return err
		}
		e.emitOp(path, vm.OpDup)
		e.emitMember(path, loadOp(loc.Member), loc.Member)
	}
	if err := e.emit(c.Value(), true, valuePath); err != nil {
		return err
	}
	e.emitOp(path, code)
	return e.store(loc, c.Type(), want, path)
}

// store consumes the address pushed for loc and the value above it. When the
// assignment is used as a value a copy survives in a temporary local.
func (e *emitter) store(loc Location, t *ir.Type, want bool, path string) error {
	var tmp int64
	if want {
		tmp = e.newLocal(t)
		e.emitOp(path, vm.OpDup)
		e.emitArg(path, vm.OpStLoc, tmp)
	}
	switch {
	case loc.Member == nil:
		e.emitOp(path, vm.OpStInd)
	case loc.Member.IsField():
		e.emitMember(path, vm.OpStFld, loc.Member)
	default:
		e.emitMember(path, vm.OpCallSet, loc.Member)
	}
	if want {
		e.emitArg(path, vm.OpLdLoc, tmp)
	}
	return e.err
}

func loadOp(m *ir.Member) vm.Opcode {
	if m.IsField() {
		return vm.OpLdFld
	}
	return vm.OpCallGet
}

// constant pushes a literal using the cheapest instruction for its kind.
func (e *emitter) constant(v ir.Value, path string) {
	switch v.Kind() {
	case ir.KindInt:
		if n := v.Int(); n >= math.MinInt32 && n <= math.MaxInt32 {
			e.emitArg(path, vm.OpLdInt, n)
		} else {
			e.emitArg(path, vm.OpLdConst, int64(e.pool.addInt(n)))
		}
	case ir.KindBool:
		var b int64
		if v.Bool() {
			b = 1
		}
		e.emitArg(path, vm.OpLdBool, b)
	case ir.KindString:
		e.emitArg(path, vm.OpLdStr, int64(e.pool.addString(v.Str())))
	case ir.KindClass:
		if v.IsNil() {
			e.emitOp(path, vm.OpLdNull)
			return
		}
		e.emitArg(path, vm.OpLdConst, int64(e.pool.add(v)))
	default:
		e.emitArg(path, vm.OpLdConst, int64(e.pool.add(v)))
	}
}
