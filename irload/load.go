// Package irload builds ir.Programs from YAML program descriptions.
//
// A description lists entry methods and classes. Method bodies are written
// one statement per line in a small Jimple-like syntax:
//
//	x = new T            x = new T[]          x = "text"       x = T.class
//	x = y                x = (T) y
//	x = y.f              y.f = x              x = C.f          C.f = x
//	x = y[*]             y[*] = x
//	r = y.m(a, b)        r = C.m(a)           r = special y.<C: m(T)>(a)
//	r = dynamic h.invokeExact(a) catch e
//	return x             throw x
//
// Short member references (y.f, y.m(a)) are resolved by name (and arity);
// the explicit forms y.<C: f> and y.<C: m(T)>(a) bypass that resolution.
package irload

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	yaml "gopkg.in/yaml.v3"

	"github.com/BarrensZeppelin/pta/ir"
)

//go:embed prelude.yaml
var prelude []byte

// ProgramFile is the YAML schema of a program description.
type ProgramFile struct {
	// Signatures of the entry methods. When empty, every static method
	// named "main" is an entry.
	Entries []string    `yaml:"entries,omitempty"`
	Classes []ClassDecl `yaml:"classes"`
}

type ClassDecl struct {
	Name       string       `yaml:"name"`
	Extends    string       `yaml:"extends,omitempty"`
	Implements []string     `yaml:"implements,omitempty"`
	Interface  bool         `yaml:"interface,omitempty"`
	Abstract   bool         `yaml:"abstract,omitempty"`
	Primitive  bool         `yaml:"primitive,omitempty"`
	Fields     []string     `yaml:"fields,omitempty"`
	Methods    []MethodDecl `yaml:"methods,omitempty"`
}

type MethodDecl struct {
	// "[static] [abstract] [native] name(T1 p1, T2 p2)"
	Sig  string `yaml:"sig"`
	Body string `yaml:"body,omitempty"`
}

// Config controls program loading.
type Config struct {
	// Do not load the runtime library prelude.
	NoPrelude bool
}

// LoadProgramFromSource loads a program from a single YAML description,
// together with the runtime prelude.
func LoadProgramFromSource(source string) (*ir.Program, error) {
	return LoadProgramWithConfig(&Config{}, []byte(source))
}

// LoadProgramFile loads a program from YAML files on disk.
func LoadProgramFile(paths ...string) (*ir.Program, error) {
	sources := make([][]byte, len(paths))
	for i, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		sources[i] = data
	}
	return LoadProgramWithConfig(&Config{}, sources...)
}

// LoadProgramWithConfig loads and links the classes of all sources into one
// program. The entries of all sources are concatenated.
func LoadProgramWithConfig(config *Config, sources ...[]byte) (*ir.Program, error) {
	var files []*ProgramFile
	if !config.NoPrelude {
		sources = append([][]byte{prelude}, sources...)
	}

	for i, src := range sources {
		pf := &ProgramFile{}
		if err := yaml.Unmarshal(src, pf); err != nil {
			return nil, fmt.Errorf("source %d: %w", i, err)
		}
		files = append(files, pf)
	}

	l := &loader{prog: ir.NewProgram()}
	if err := l.load(files); err != nil {
		return nil, err
	}
	return l.prog, nil
}

type loader struct {
	prog *ir.Program
}

type pendingBody struct {
	method *ir.Method
	body   string
}

func (l *loader) load(files []*ProgramFile) error {
	// Declare all classes before linking, so that declaration order does
	// not matter.
	for _, pf := range files {
		for _, cd := range pf.Classes {
			c := ir.NewClass(cd.Name)
			c.Interface = cd.Interface
			c.Abstract = cd.Abstract || cd.Interface
			c.Primitive = cd.Primitive
			if err := l.prog.AddClass(c); err != nil {
				return err
			}
		}
	}

	var bodies []pendingBody
	for _, pf := range files {
		for _, cd := range pf.Classes {
			c := l.prog.Class(cd.Name)
			if err := l.link(c, &cd); err != nil {
				return err
			}

			for _, fd := range cd.Fields {
				if err := l.declareField(c, fd); err != nil {
					return fmt.Errorf("%s: %w", c.Name, err)
				}
			}

			for _, md := range cd.Methods {
				m, err := l.declareMethod(c, md.Sig)
				if err != nil {
					return fmt.Errorf("%s: %w", c.Name, err)
				}
				if m.HasBody() {
					bodies = append(bodies, pendingBody{m, md.Body})
				} else if strings.TrimSpace(md.Body) != "" {
					return fmt.Errorf("%w: %s has a body but is abstract or native",
						ir.ErrMalformedIR, m)
				}
			}
		}
	}

	// Body parsing walks superclass chains, which must be finite.
	if err := l.prog.CheckHierarchy(); err != nil {
		return err
	}

	for _, pb := range bodies {
		p := &bodyParser{loader: l, method: pb.method}
		if err := p.parse(pb.body); err != nil {
			return err
		}
	}

	if err := l.resolveEntries(files); err != nil {
		return err
	}

	return l.prog.Finalize()
}

func (l *loader) link(c *ir.Class, cd *ClassDecl) error {
	if cd.Extends != "" {
		super := l.prog.Class(cd.Extends)
		if super == nil {
			return fmt.Errorf("%w: superclass %s of %s", ir.ErrUnresolvedSignature, cd.Extends, c.Name)
		}
		c.Super = super
	} else if !c.Interface && !c.Primitive && c.Name != ir.ObjectClass {
		c.Super = l.prog.Class(ir.ObjectClass)
	}

	for _, name := range cd.Implements {
		i := l.prog.Class(name)
		if i == nil {
			return fmt.Errorf("%w: interface %s of %s", ir.ErrUnresolvedSignature, name, c.Name)
		}
		c.Interfaces = append(c.Interfaces, i)
	}
	return nil
}

var identRe = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

func (l *loader) declareField(c *ir.Class, decl string) error {
	fs := strings.Fields(decl)
	static := false
	if len(fs) > 0 && fs[0] == "static" {
		static = true
		fs = fs[1:]
	}
	if len(fs) != 2 || !identRe.MatchString(fs[1]) {
		return fmt.Errorf("%w: invalid field declaration %q", ir.ErrMalformedIR, decl)
	}

	typ, err := l.parseType(fs[0])
	if err != nil {
		return err
	}
	_, err = c.AddField(fs[1], typ, static)
	return err
}

var methodSigRe = regexp.MustCompile(`^((?:(?:static|abstract|native)\s+)*)(<?[A-Za-z_$][A-Za-z0-9_$]*>?)\s*\(([^)]*)\)$`)

func (l *loader) declareMethod(c *ir.Class, sig string) (*ir.Method, error) {
	match := methodSigRe.FindStringSubmatch(strings.TrimSpace(sig))
	if match == nil {
		return nil, fmt.Errorf("%w: invalid method declaration %q", ir.ErrMalformedIR, sig)
	}

	mods := strings.Fields(match[1])
	static := false
	abstract := false
	native := false
	for _, mod := range mods {
		switch mod {
		case "static":
			static = true
		case "abstract":
			abstract = true
		case "native":
			native = true
		}
	}

	var params []ir.Type
	var names []string
	if ps := strings.TrimSpace(match[3]); ps != "" {
		for _, p := range strings.Split(ps, ",") {
			fs := strings.Fields(p)
			if len(fs) == 0 || len(fs) > 2 {
				return nil, fmt.Errorf("%w: invalid parameter %q in %q", ir.ErrMalformedIR, p, sig)
			}

			typ, err := l.parseType(fs[0])
			if err != nil {
				return nil, err
			}
			params = append(params, typ)

			name := ""
			if len(fs) == 2 {
				if !identRe.MatchString(fs[1]) {
					return nil, fmt.Errorf("%w: invalid parameter name %q", ir.ErrMalformedIR, fs[1])
				}
				name = fs[1]
			}
			names = append(names, name)
		}
	}

	m := ir.NewMethod(match[2], params, names, static)
	m.Abstract = abstract || (c.Interface && !static)
	m.Native = native
	if err := c.AddMethod(m); err != nil {
		return nil, err
	}
	return m, nil
}

// parseType parses a type name with optional array suffixes, e.g. "A[][]".
func (l *loader) parseType(s string) (ir.Type, error) {
	dims := 0
	for strings.HasSuffix(s, "[]") {
		s = s[:len(s)-2]
		dims++
	}

	c := l.prog.Class(s)
	if c == nil {
		return ir.Type{}, fmt.Errorf("%w: unknown type %s", ir.ErrUnresolvedSignature, s)
	}
	return ir.Type{Class: c, Dims: dims}, nil
}

func (l *loader) resolveEntries(files []*ProgramFile) error {
	var errs []error
	for _, pf := range files {
		for _, sig := range pf.Entries {
			m := l.prog.Method(sig)
			if m == nil {
				errs = append(errs, fmt.Errorf("%w: entry %s", ir.ErrUnresolvedSignature, sig))
				continue
			}
			l.prog.Entries = append(l.prog.Entries, m)
		}
	}

	if len(l.prog.Entries) == 0 && len(errs) == 0 {
		for _, c := range l.prog.Classes() {
			for _, m := range c.Methods() {
				if m.Static && m.Name == "main" && m.HasBody() {
					l.prog.Entries = append(l.prog.Entries, m)
				}
			}
		}
	}

	return errors.Join(errs...)
}
