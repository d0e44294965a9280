package vm

import (
	"sync"

	"github.com/roach88/exprjit/internal/ir"
)

// Func is a compiled lambda bound to its declared signature. It is immutable
// after construction and safe for concurrent invocation.
type Func struct {
	prog   *Program
	frames sync.Pool
}

// NewFunc wraps a program in a callable.
func NewFunc(p *Program) *Func {
	f := &Func{prog: p}
	f.frames.New = func() any {
		return &frame{
			args:   make([]ir.Value, 0, len(p.Signature.Params)),
			locals: make([]ir.Value, 0, len(p.Locals)),
			stack:  make([]ir.Value, 0, p.MaxStack),
		}
	}
	return f
}

// Program returns the compiled program.
func (f *Func) Program() *Program { return f.prog }

// Signature returns the delegate signature.
func (f *Func) Signature() ir.Signature { return f.prog.Signature }

// Name returns the lambda name.
func (f *Func) Name() string { return f.prog.Name }

// Invoke runs the lambda.
//
// For a by-reference parameter the argument must be ir.PointerTo(&slot) where
// slot holds a value of the parameter type; stores through the parameter are
// visible in slot when Invoke returns. By-value arguments are copied, so
// struct arguments are never mutated. A void lambda returns ir.VoidValue().
func (f *Func) Invoke(args ...ir.Value) (ir.Value, error) {
	p := f.prog
	if err := checkArgs(p, args); err != nil {
		return ir.Value{}, err
	}

	fr := f.frames.Get().(*frame)
	defer func() {
		fr.reset()
		f.frames.Put(fr)
	}()

	for i, a := range args {
		if p.Signature.Params[i].ByRef {
			fr.args = append(fr.args, a)
		} else {
			fr.args = append(fr.args, a.Clone())
		}
	}
	for _, t := range p.Locals {
		fr.locals = append(fr.locals, ir.Zero(t))
	}
	return execute(p, fr)
}

func checkArgs(p *Program, args []ir.Value) error {
	params := p.Signature.Params
	if len(args) != len(params) {
		return signatureMismatch(p.Name, "expected %d arguments, got %d", len(params), len(args))
	}
	for i, param := range params {
		a := args[i]
		if param.ByRef {
			if a.Kind() != ir.KindPointer || a.Elem() == nil {
				return signatureMismatch(p.Name, "argument %d (%s) is by-reference and needs ir.PointerTo", i, param.Name)
			}
			if !a.Elem().AssignableTo(param.Type) {
				return signatureMismatch(p.Name, "argument %d (%s): slot holds %s, want %s", i, param.Name, a.Elem().Kind(), param.Type)
			}
			continue
		}
		if !a.AssignableTo(param.Type) {
			return signatureMismatch(p.Name, "argument %d (%s): got %s, want %s", i, param.Name, a.Kind(), param.Type)
		}
	}
	return nil
}
