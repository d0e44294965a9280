package source

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/exprjit/internal/compiler"
	"github.com/roach88/exprjit/internal/ir"
)

// Module is the parsed content of a source file or directory.
type Module struct {
	// Types and Lambdas are in declaration order.
	Types   []*ir.Type
	Lambdas []*ir.Lambda

	// FileCount is the number of CUE files loaded (LoadDir only).
	FileCount int

	types     map[string]*ir.Type
	lambdas   map[string]*ir.Lambda
	positions map[*ir.Lambda]map[string]token.Pos
}

func newModule() *Module {
	return &Module{
		types:     make(map[string]*ir.Type),
		lambdas:   make(map[string]*ir.Lambda),
		positions: make(map[*ir.Lambda]map[string]token.Pos),
	}
}

// Type returns a declared or builtin type by name.
func (m *Module) Type(name string) (*ir.Type, bool) {
	if t, ok := ir.Builtins[name]; ok {
		return t, true
	}
	t, ok := m.types[name]
	return t, ok
}

// Lambda returns a lambda by name.
func (m *Module) Lambda(name string) (*ir.Lambda, bool) {
	lam, ok := m.lambdas[name]
	return lam, ok
}

// Pos returns the source position of the node at path ("body",
// "body.exprs[1].target", ...) inside lam, or the zero Pos.
func (m *Module) Pos(lam *ir.Lambda, path string) token.Pos {
	return m.positions[lam][path]
}

// Annotate fills in the source position of a *compiler.CompileError raised
// while compiling lam. Other errors are returned unchanged.
func (m *Module) Annotate(lam *ir.Lambda, err error) error {
	var ce *compiler.CompileError
	if errors.As(err, &ce) && !ce.Pos.IsValid() {
		ce.Pos = m.Pos(lam, ce.Path)
	}
	return err
}

// ParseBytes compiles a single CUE document and parses it.
func ParseBytes(filename string, data []byte) (*Module, []error) {
	v := cuecontext.New().CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, []error{formatCUEError("cue", err)}
	}
	return Parse(v)
}

// ParseFile reads and parses a single CUE file.
func ParseFile(path string) (*Module, []error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, []error{fmt.Errorf("read %s: %w", path, err)}
	}
	return ParseBytes(path, data)
}

// LoadDir loads the CUE package in dir and parses it.
func LoadDir(dir string) (*Module, []error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, []error{fmt.Errorf("source directory %s: %w", dir, err)}
	}
	if !info.IsDir() {
		return nil, []error{fmt.Errorf("not a directory: %s", dir)}
	}
	files, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{fmt.Errorf("scanning %s: %w", dir, err)}
	}
	if len(files) == 0 {
		return nil, []error{fmt.Errorf("no CUE files found in %s", dir)}
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{errors.New("no CUE instances loaded")}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{formatCUEError("cue", inst.Err)}
	}
	v := cuecontext.New().BuildInstance(inst)
	if err := v.Err(); err != nil {
		return nil, []error{formatCUEError("cue", err)}
	}

	m, errs := Parse(v)
	if m != nil {
		m.FileCount = len(files)
	}
	return m, errs
}

// FindCUEFiles walks dir and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// Parse reads types and lambdas from v. A bad type declaration stops the
// parse (nil module); bad lambdas are reported individually and skipped, so
// the returned module holds every lambda that parsed.
func Parse(v cue.Value) (*Module, []error) {
	m := newModule()
	if err := m.parseTypes(v.LookupPath(cue.ParsePath("types"))); err != nil {
		return nil, []error{err}
	}

	lambdasVal := v.LookupPath(cue.ParsePath("lambdas"))
	if !lambdasVal.Exists() {
		return m, nil
	}
	iter, err := lambdasVal.Fields()
	if err != nil {
		return m, []error{formatCUEError("lambdas", err)}
	}
	var errs []error
	for iter.Next() {
		name := iter.Selector().Unquoted()
		p := newLambdaParser(m, "lambdas."+name)
		lam, err := p.lambda(name, iter.Value())
		if err != nil {
			errs = append(errs, err)
			continue
		}
		m.Lambdas = append(m.Lambdas, lam)
		m.lambdas[name] = lam
		m.positions[lam] = p.positions
	}
	return m, errs
}
