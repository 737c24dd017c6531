package ir

import "fmt"

// ObjKind tells how an abstract object came to be.
type ObjKind uint8

const (
	// Allocated by a New statement.
	NewObj ObjKind = iota
	// A constant (string literal or class literal), shared by all sites
	// mentioning the same value.
	ConstObj
	// Created by an analysis plugin to model library behaviour.
	MockObj
)

// Obj denotes an abstract heap object: a finite stand-in for all run-time
// instances created at one allocation site.
type Obj struct {
	ID   int
	Kind ObjKind
	Type Type
	// Method containing the allocation site, if any.
	Method *Method
	// Allocation statement for NewObj.
	Site *New
	// Constant value: a string for string literals, a Type for class
	// literals, or a plugin-defined payload for mock objects.
	Value any
	// Description of mock objects.
	Desc string
}

// ClassLiteral is the value of a class literal constant object.
type ClassLiteral struct{ Type Type }

// Label returns the textual form of the allocation.
func (o *Obj) Label() string {
	switch o.Kind {
	case NewObj:
		return "new " + o.Type.String()
	case ConstObj:
		switch v := o.Value.(type) {
		case string:
			return fmt.Sprintf("%q", v)
		case ClassLiteral:
			return v.Type.String() + ".class"
		}
		return fmt.Sprintf("const %v", o.Value)
	default:
		return fmt.Sprintf("%s{%v}", o.Desc, o.Value)
	}
}

func (o *Obj) String() string {
	if o.Kind == NewObj && o.Method != nil && o.Site != nil {
		return fmt.Sprintf("%s/%s#%d", o.Method.Signature(), o.Label(), o.Site.Index)
	}
	return o.Label()
}

// StringValue returns the contents of a string constant object.
func (o *Obj) StringValue() (string, bool) {
	if o.Kind != ConstObj {
		return "", false
	}
	s, ok := o.Value.(string)
	return s, ok
}

// ClassValue returns the class denoted by a class literal constant object.
func (o *Obj) ClassValue() (*Class, bool) {
	if o.Kind != ConstObj {
		return nil, false
	}
	if lit, ok := o.Value.(ClassLiteral); ok && lit.Type.Dims == 0 {
		return lit.Type.Class, true
	}
	return nil, false
}

// DispatchClass returns the class whose methods are looked up when the object
// is a receiver of a virtual call. Arrays dispatch on the root class.
func (o *Obj) DispatchClass(root *Class) *Class {
	if o.Type.IsArray() {
		return root
	}
	return o.Type.Class
}
