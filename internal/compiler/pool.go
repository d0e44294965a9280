package compiler

import "github.com/roach88/exprjit/internal/ir"

// constPool collects the literals of one compilation. Strings and ints are
// interned; other values (bytes, structs, object references) get one entry
// per occurrence because they are not comparable by key.
type constPool struct {
	values  []ir.Value
	strings map[string]int
	ints    map[int64]int
}

func newConstPool() *constPool {
	return &constPool{
		strings: make(map[string]int),
		ints:    make(map[int64]int),
	}
}

func (p *constPool) addString(s string) int {
	if idx, ok := p.strings[s]; ok {
		return idx
	}
	idx := p.add(ir.StringValue(s))
	p.strings[s] = idx
	return idx
}

func (p *constPool) addInt(n int64) int {
	if idx, ok := p.ints[n]; ok {
		return idx
	}
	idx := p.add(ir.IntValue(n))
	p.ints[n] = idx
	return idx
}

func (p *constPool) add(v ir.Value) int {
	p.values = append(p.values, v.Clone())
	return len(p.values) - 1
}
