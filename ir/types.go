package ir

import "strings"

// Type is the static type of a value in the analysed program. A Type with
// Dims == 0 is a class type, otherwise it denotes an array with Dims
// dimensions whose innermost element type is Class.
// The zero Type denotes the absence of a type.
type Type struct {
	Class *Class
	Dims  int
}

// ClassType returns the (non-array) type of instances of c.
func ClassType(c *Class) Type { return Type{Class: c} }

// ArrayOf returns the type of arrays with elements of type t.
func ArrayOf(t Type) Type { return Type{Class: t.Class, Dims: t.Dims + 1} }

// IsZero reports whether t is the absent type.
func (t Type) IsZero() bool { return t.Class == nil }

func (t Type) IsArray() bool { return t.Dims > 0 }

// Elem returns the element type of an array type.
func (t Type) Elem() Type {
	if t.Dims == 0 {
		panic("Elem of non-array type " + t.String())
	}
	return Type{Class: t.Class, Dims: t.Dims - 1}
}

func (t Type) String() string {
	if t.Class == nil {
		return "<none>"
	}
	return t.Class.Name + strings.Repeat("[]", t.Dims)
}
