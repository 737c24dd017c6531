package ir

import (
	"fmt"
	"strings"
)

// Subsignature identifies a method within a class hierarchy independently of
// its declaring class: "name(T1,T2)".
type Subsignature string

// MakeSubsignature builds the subsignature of a method with the given name
// and parameter types.
func MakeSubsignature(name string, params []Type) Subsignature {
	ps := make([]string, len(params))
	for i, p := range params {
		ps[i] = p.String()
	}
	return Subsignature(name + "(" + strings.Join(ps, ",") + ")")
}

// Name returns the method name part of the subsignature.
func (s Subsignature) Name() string {
	if i := strings.IndexByte(string(s), '('); i >= 0 {
		return string(s[:i])
	}
	return string(s)
}

// Arity returns the number of parameters encoded in the subsignature.
func (s Subsignature) Arity() int {
	str := string(s)
	i := strings.IndexByte(str, '(')
	if i < 0 || str[i+1:] == ")" {
		return 0
	}
	return strings.Count(str[i:], ",") + 1
}

// MethodRef is a symbolic reference to a method, as found in call statements.
type MethodRef struct {
	Class *Class
	Sub   Subsignature
}

func (r MethodRef) String() string {
	if r.Class == nil {
		return "<?: " + string(r.Sub) + ">"
	}
	return Signature(r.Class.Name, r.Sub)
}

// Method is a method declaration together with its body.
type Method struct {
	Class  *Class
	Name   string
	Sub    Subsignature
	Params []Type

	Static   bool
	Abstract bool
	Native   bool

	// This is nil for static methods.
	This       *Var
	ParamVars  []*Var
	ReturnVars []*Var
	// Exception receives the objects thrown out of the method.
	Exception *Var

	Stmts []Stmt

	vars    []*Var
	varsByN map[string]*Var
	invokes []*Invoke
}

// NewMethod creates a method with the given name and parameter types. The
// receiver, parameter and exception variables are created eagerly.
func NewMethod(name string, params []Type, paramNames []string, static bool) *Method {
	m := &Method{
		Name:    name,
		Sub:     MakeSubsignature(name, params),
		Params:  params,
		Static:  static,
		varsByN: make(map[string]*Var),
	}

	if !static {
		m.This = m.Var("this")
	}
	for i, p := range params {
		name := fmt.Sprintf("@param%d", i)
		if i < len(paramNames) && paramNames[i] != "" {
			name = paramNames[i]
		}
		v := m.Var(name)
		v.Type = p
		m.ParamVars = append(m.ParamVars, v)
	}
	m.Exception = m.Var("$exc")
	return m
}

// Signature returns the full signature "<Class: name(T1,T2)>".
func (m *Method) Signature() string {
	if m.Class == nil {
		return "<?: " + string(m.Sub) + ">"
	}
	return Signature(m.Class.Name, m.Sub)
}

func (m *Method) String() string { return m.Signature() }

// Var returns the local variable with the given name, creating it if needed.
func (m *Method) Var(name string) *Var {
	if v, found := m.varsByN[name]; found {
		return v
	}

	v := &Var{Name: name, Method: m, Index: len(m.vars)}
	m.vars = append(m.vars, v)
	m.varsByN[name] = v
	return v
}

// LookupVar returns the variable with the given name, or nil.
func (m *Method) LookupVar(name string) *Var { return m.varsByN[name] }

func (m *Method) Vars() []*Var { return m.vars }

// Invokes returns the call statements of the method in program order.
func (m *Method) Invokes() []*Invoke { return m.invokes }

// HasBody reports whether the method has statements that can be analysed.
func (m *Method) HasBody() bool { return !m.Abstract && !m.Native }

// Append adds a statement at the end of the method body and registers it
// with the variables it uses.
func (m *Method) Append(s Stmt) {
	idx := len(m.Stmts)
	m.Stmts = append(m.Stmts, s)

	switch s := s.(type) {
	case *New:
		s.Index = idx
	case *Assign:
		s.Index = idx
	case *Cast:
		s.Index = idx
	case *InstanceLoad:
		s.Index = idx
		s.Base.LoadFields = append(s.Base.LoadFields, s)
	case *InstanceStore:
		s.Index = idx
		s.Base.StoreFields = append(s.Base.StoreFields, s)
	case *StaticLoad:
		s.Index = idx
	case *StaticStore:
		s.Index = idx
	case *ArrayLoad:
		s.Index = idx
		s.Base.LoadArrays = append(s.Base.LoadArrays, s)
	case *ArrayStore:
		s.Index = idx
		s.Base.StoreArrays = append(s.Base.StoreArrays, s)
	case *Invoke:
		s.Index = idx
		s.Container = m
		m.invokes = append(m.invokes, s)
		if s.Base != nil {
			s.Base.Invokes = append(s.Base.Invokes, s)
		}
	case *Return:
		s.Index = idx
		if s.Value != nil && !containsVar(m.ReturnVars, s.Value) {
			m.ReturnVars = append(m.ReturnVars, s.Value)
		}
	case *Throw:
		s.Index = idx
	}
}

func containsVar(vs []*Var, v *Var) bool {
	for _, w := range vs {
		if w == v {
			return true
		}
	}
	return false
}

// Var is a local variable (or parameter) of a method.
type Var struct {
	Name   string
	Method *Method
	// Declared type, if known.
	Type  Type
	Index int

	// Statements using the variable as base.
	LoadFields  []*InstanceLoad
	StoreFields []*InstanceStore
	LoadArrays  []*ArrayLoad
	StoreArrays []*ArrayStore
	Invokes     []*Invoke
}

func (v *Var) String() string {
	return v.Method.Signature() + "/" + v.Name
}
