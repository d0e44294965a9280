package compiler

import (
	"fmt"

	"github.com/roach88/exprjit/internal/ir"
)

// Validation error codes (E200-E299)
const (
	ErrUnsupportedNode     = "E200" // node outside the closed variant set
	ErrTargetNotAssignable = "E201" // assignment target has no addressing mode
	ErrReadOnlyProperty    = "E202" // assignment to a property without a setter
	ErrUnboundParameter    = "E203" // parameter used outside its declaring scope
	ErrNestedLambda        = "E204" // lambda inside a lambda body
	ErrDuplicateDecl       = "E205" // the same parameter declared twice
	ErrAnonymousLambda     = "E206" // lambda without a name
)

// ValidationError is one problem found by Validate.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate reports every reason lam would fail to compile. Compile stops at
// the first failure; Validate walks the whole tree (does not fail-fast) so
// tooling can show all diagnostics at once. Field holds the node path.
func Validate(lam *ir.Lambda) []ValidationError {
	if lam == nil {
		return []ValidationError{{Field: "lambda", Message: "lambda is nil", Code: ErrUnsupportedNode}}
	}
	v := &validator{scope: make(map[*ir.Parameter]bool), seen: make(map[*ir.Parameter]bool)}
	if lam.Name() == "" {
		v.add("name", ErrAnonymousLambda, "lambda name is required")
	}
	for i, p := range lam.Params() {
		v.declare(p, fmt.Sprintf("params[%d]", i))
	}
	v.walk(lam.Body(), "body")
	return v.errs
}

type validator struct {
	scope map[*ir.Parameter]bool
	seen  map[*ir.Parameter]bool
	errs  []ValidationError
}

func (v *validator) add(field, code, format string, args ...any) {
	v.errs = append(v.errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...), Code: code})
}

func (v *validator) declare(p *ir.Parameter, path string) {
	if v.seen[p] {
		v.add(path, ErrDuplicateDecl, "parameter %q is declared twice", p.Name())
	}
	v.seen[p] = true
	v.scope[p] = true
}

func (v *validator) walk(n ir.Node, path string) {
	switch x := n.(type) {
	case *ir.Parameter:
		if !v.scope[x] {
			v.add(path, ErrUnboundParameter, "parameter %q is not in scope", x.Name())
		}
	case *ir.Constant:
	case *ir.MemberAccess:
		v.walk(x.Target(), path+".of")
	case *ir.Assign:
		v.target(x.Target(), path+".target")
		v.walk(x.Value(), path+".value")
	case *ir.CompoundAssign:
		v.target(x.Target(), path+".target")
		v.walk(x.Value(), path+".value")
	case *ir.Binary:
		v.walk(x.Left(), path+".left")
		v.walk(x.Right(), path+".right")
	case *ir.Block:
		for i, p := range x.Vars() {
			v.declare(p, fmt.Sprintf("%s.vars[%d]", path, i))
		}
		for i, e := range x.Exprs() {
			v.walk(e, fmt.Sprintf("%s.exprs[%d]", path, i))
		}
		for _, p := range x.Vars() {
			delete(v.scope, p)
		}
	case *ir.Lambda:
		v.add(path, ErrNestedLambda, "nested lambda %q is not supported", x.Name())
	default:
		v.add(path, ErrUnsupportedNode, "unknown node %T", n)
	}
}

// target checks addressability and then validates the target's operands.
func (v *validator) target(n ir.Node, path string) {
	if _, err := resolve(n, path); err != nil {
		code := ErrTargetNotAssignable
		if m, ok := n.(*ir.MemberAccess); ok && !m.Member().Writable() {
			code = ErrReadOnlyProperty
		}
		ce := err.(*CompileError)
		v.add(ce.Path, code, "%s", ce.Message)
	}
	v.walk(n, path)
}
