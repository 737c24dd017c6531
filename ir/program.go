package ir

import (
	"errors"
	"fmt"
	"sync"
)

// Program is a whole program: its classes, objects and entry methods.
type Program struct {
	classes []*Class
	byName  map[string]*Class
	consts  map[any]*Obj

	// Guards objs, which grows with mock objects while analyses run.
	mu   sync.Mutex
	objs []*Obj

	Entries []*Method
}

func NewProgram() *Program {
	return &Program{
		byName: make(map[string]*Class),
		consts: make(map[any]*Obj),
	}
}

// AddClass adds a class declaration to the program.
func (p *Program) AddClass(c *Class) error {
	if _, found := p.byName[c.Name]; found {
		return fmt.Errorf("%w: duplicate class %s", ErrMalformedIR, c.Name)
	}
	p.byName[c.Name] = c
	p.classes = append(p.classes, c)
	return nil
}

// Class returns the class with the given name, or nil.
func (p *Program) Class(name string) *Class { return p.byName[name] }

// Classes returns the classes in declaration order.
func (p *Program) Classes() []*Class { return p.classes }

// Method returns the method with the given signature, or nil.
func (p *Program) Method(sig string) *Method {
	class, sub, err := SplitSignature(sig)
	if err != nil {
		return nil
	}
	if c := p.byName[class]; c != nil {
		return c.DeclaredMethod(sub)
	}
	return nil
}

// Objects returns the abstract objects allocated in the program.
func (p *Program) Objects() []*Obj {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.objs
}

// NewObj registers the abstract object allocated by a New statement.
func (p *Program) NewObj(m *Method, typ Type) *Obj {
	o := &Obj{ID: len(p.objs), Kind: NewObj, Type: typ, Method: m}
	p.objs = append(p.objs, o)
	return o
}

// ConstObj returns the unique constant object for the given value, which
// must be a string or a ClassLiteral.
func (p *Program) ConstObj(value any) (*Obj, error) {
	if o, found := p.consts[value]; found {
		return o, nil
	}

	var typ Type
	switch value.(type) {
	case string:
		typ = p.builtinType(StringClass)
	case ClassLiteral:
		typ = p.builtinType(ClassClass)
	default:
		return nil, fmt.Errorf("%w: unsupported constant %v (%T)", ErrMalformedIR, value, value)
	}
	if typ.IsZero() {
		return nil, fmt.Errorf("%w: constant %v requires a declaration of its class", ErrUnresolvedSignature, value)
	}

	o := &Obj{ID: len(p.objs), Kind: ConstObj, Type: typ, Value: value}
	p.objs = append(p.objs, o)
	p.consts[value] = o
	return o, nil
}

func (p *Program) builtinType(name string) Type {
	if c := p.byName[name]; c != nil {
		return ClassType(c)
	}
	return Type{}
}

// Finalize validates the program structure: inheritance must be acyclic,
// implemented types must be interfaces and entries must have bodies.
func (p *Program) Finalize() error {
	errs := []error{p.CheckHierarchy()}

	for _, e := range p.Entries {
		if e == nil || !e.HasBody() {
			errs = append(errs, fmt.Errorf("%w: entry method without body", ErrMalformedIR))
		}
	}

	return errors.Join(errs...)
}

// CheckHierarchy reports cyclic inheritance and classes implementing
// non-interface types.
func (p *Program) CheckHierarchy() error {
	var errs []error
	for _, c := range p.classes {
		seen := map[*Class]bool{}
		for k := c; k != nil; k = k.Super {
			if seen[k] {
				errs = append(errs, fmt.Errorf("%w: cyclic inheritance through %s", ErrMalformedIR, c.Name))
				break
			}
			seen[k] = true
		}

		for _, i := range c.Interfaces {
			if !i.Interface {
				errs = append(errs, fmt.Errorf("%w: %s implements non-interface %s", ErrMalformedIR, c.Name, i.Name))
			}
		}
	}
	return errors.Join(errs...)
}

// NewMockObj registers an object created by an analysis model rather than by
// a statement of the program. It may be called by concurrent analyses of
// the same program.
func (p *Program) NewMockObj(desc string, value any, typ Type, m *Method) *Obj {
	p.mu.Lock()
	defer p.mu.Unlock()
	o := &Obj{ID: len(p.objs), Kind: MockObj, Type: typ, Method: m, Value: value, Desc: desc}
	p.objs = append(p.objs, o)
	return o
}
