package ir

import "fmt"

// Class is a class or interface declaration.
type Class struct {
	Name       string
	Super      *Class
	Interfaces []*Class
	Interface  bool
	Abstract   bool
	// Primitive classes denote non-reference types such as int.
	Primitive bool

	fields  map[string]*Field
	methods map[Subsignature]*Method
	// Declaration order, used for deterministic iteration.
	fieldList  []*Field
	methodList []*Method
}

// NewClass creates an empty class declaration. Use Program.AddClass to make
// it part of a program.
func NewClass(name string) *Class {
	return &Class{
		Name:    name,
		fields:  make(map[string]*Field),
		methods: make(map[Subsignature]*Method),
	}
}

func (c *Class) String() string { return c.Name }

// AddField declares a field on the class.
func (c *Class) AddField(name string, typ Type, static bool) (*Field, error) {
	if _, found := c.fields[name]; found {
		return nil, fmt.Errorf("%w: duplicate field %s in %s", ErrMalformedIR, name, c.Name)
	}

	f := &Field{Name: name, Type: typ, Class: c, Static: static}
	c.fields[name] = f
	c.fieldList = append(c.fieldList, f)
	return f, nil
}

// Field returns the field declared in c with the given name, or nil.
func (c *Class) Field(name string) *Field { return c.fields[name] }

// LookupField finds a field by name in c or its superclasses.
func (c *Class) LookupField(name string) *Field {
	for k := c; k != nil; k = k.Super {
		if f := k.fields[name]; f != nil {
			return f
		}
	}
	return nil
}

func (c *Class) Fields() []*Field { return c.fieldList }

// AddMethod declares m in c.
func (c *Class) AddMethod(m *Method) error {
	if _, found := c.methods[m.Sub]; found {
		return fmt.Errorf("%w: duplicate method %s in %s", ErrMalformedIR, m.Sub, c.Name)
	}

	m.Class = c
	c.methods[m.Sub] = m
	c.methodList = append(c.methodList, m)
	return nil
}

// DeclaredMethod returns the method declared directly in c with the given
// subsignature, or nil.
func (c *Class) DeclaredMethod(sub Subsignature) *Method { return c.methods[sub] }

func (c *Class) Methods() []*Method { return c.methodList }

// Supertypes returns the direct supertypes of c (superclass first).
func (c *Class) Supertypes() []*Class {
	var res []*Class
	if c.Super != nil {
		res = append(res, c.Super)
	}
	return append(res, c.Interfaces...)
}

// Field is a (static or instance) field declaration.
type Field struct {
	Name   string
	Type   Type
	Class  *Class
	Static bool
}

func (f *Field) String() string {
	return fmt.Sprintf("<%s: %s %s>", f.Class.Name, f.Type, f.Name)
}
