package compiler

import "github.com/roach88/exprjit/internal/ir"

// Mode is the addressing mode of an assignment target. The three modes have
// different mutation-visibility contracts and are kept distinct all the way
// to emission.
type Mode uint8

const (
	// ModeDirectSlot addresses the storage of a by-value parameter or a
	// local. Writes are invisible to the caller.
	ModeDirectSlot Mode = iota + 1

	// ModeIndirectSlot addresses caller storage through a by-reference
	// parameter. Writes are visible to the caller.
	ModeIndirectSlot

	// ModeHeapMember addresses a member of a class instance. Writes are
	// visible to every holder of the reference.
	ModeHeapMember
)

func (m Mode) String() string {
	switch m {
	case ModeDirectSlot:
		return "direct-slot"
	case ModeIndirectSlot:
		return "indirect-slot"
	case ModeHeapMember:
		return "heap-member"
	default:
		return "invalid"
	}
}

// Location is the resolved address of an assignment target.
//
// Root is the parameter or local whose slot anchors a direct or indirect
// location. Receiver is the expression producing the class reference of a
// heap location. Chain lists the struct-typed fields walked from the anchor
// to the owner of Member. Member is nil when the target is the slot itself.
type Location struct {
	Mode     Mode
	Root     *ir.Parameter
	Receiver ir.Node
	Chain    []*ir.Member
	Member   *ir.Member
}

// resolve computes the location of an assignment target bottom-up. A member of
// a class-typed receiver is a heap member; a member of a struct-typed receiver
// inherits the receiver's own mode, so a struct nested in a by-ref parameter
// stays indirect and one nested in a by-value parameter stays direct.
func resolve(target ir.Node, path string) (Location, error) {
	switch t := target.(type) {
	case *ir.Parameter:
		if t.ByRef() {
			return Location{Mode: ModeIndirectSlot, Root: t}, nil
		}
		return Location{Mode: ModeDirectSlot, Root: t}, nil

	case *ir.MemberAccess:
		m := t.Member()
		if !m.Writable() {
			return Location{}, notAssignable(path, "property %s is read-only", m)
		}
		recv := t.Target()
		if recv.Type().IsReference() {
			return Location{Mode: ModeHeapMember, Receiver: recv, Member: m}, nil
		}
		base, err := resolveStructReceiver(recv, path+".of")
		if err != nil {
			return Location{}, err
		}
		loc := base
		loc.Chain = nil
		if base.Member != nil {
			loc.Chain = append(append([]*ir.Member(nil), base.Chain...), base.Member)
		}
		loc.Member = m
		return loc, nil

	case *ir.Constant, *ir.Binary, *ir.Block, *ir.Assign, *ir.CompoundAssign, *ir.Lambda:
		return Location{}, notAssignable(path, "%s is not an assignable expression", nodeKind(target))

	default:
		return Location{}, notSupported(path, "unknown node %T", target)
	}
}

// resolveStructReceiver locates a struct-typed receiver. Only storage can be
// mutated in place: a parameter, a local, or a field reached from one.
func resolveStructReceiver(recv ir.Node, path string) (Location, error) {
	switch r := recv.(type) {
	case *ir.Parameter:
		return resolve(r, path)
	case *ir.MemberAccess:
		if !r.Member().IsField() {
			return Location{}, notAssignable(path, "struct returned by property %s is a temporary", r.Member())
		}
		return resolve(r, path)
	default:
		return Location{}, notAssignable(path, "struct receiver %s is a temporary", nodeKind(recv))
	}
}

// addressable reports whether n denotes struct storage whose address can be
// taken, so member reads need not copy the whole struct.
func addressable(n ir.Node) bool {
	switch v := n.(type) {
	case *ir.Parameter:
		return true
	case *ir.MemberAccess:
		if !v.Member().IsField() {
			return false
		}
		recv := v.Target()
		return recv.Type().IsReference() || addressable(recv)
	default:
		return false
	}
}

func nodeKind(n ir.Node) string {
	switch n.(type) {
	case *ir.Parameter:
		return "parameter"
	case *ir.Constant:
		return "constant"
	case *ir.MemberAccess:
		return "member access"
	case *ir.Assign:
		return "assignment"
	case *ir.CompoundAssign:
		return "compound assignment"
	case *ir.Binary:
		return "binary expression"
	case *ir.Block:
		return "block"
	case *ir.Lambda:
		return "lambda"
	default:
		return "node"
	}
}
