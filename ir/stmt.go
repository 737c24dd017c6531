package ir

import (
	"fmt"
	"strings"
)

// Stmt is a statement of a method body. The set of statements is closed:
// New, Assign, Cast, InstanceLoad, InstanceStore, StaticLoad, StaticStore,
// ArrayLoad, ArrayStore, Invoke, Return and Throw.
type Stmt interface {
	// method used to tag statement constructors
	stmtTag()
	fmt.Stringer
}

type stag struct{}

func (stag) stmtTag() {}

// New allocates a fresh object: LValue = new T.
// Constant objects (string and class literals) are also introduced by New.
type New struct {
	stag
	Index  int
	LValue *Var
	Obj    *Obj
}

func (s *New) String() string {
	return fmt.Sprintf("%s = %s", s.LValue.Name, s.Obj.Label())
}

// Assign copies a local: LValue = RValue.
type Assign struct {
	stag
	Index          int
	LValue, RValue *Var
}

func (s *Assign) String() string { return s.LValue.Name + " = " + s.RValue.Name }

// Cast is a checked cast: LValue = (Type) RValue.
type Cast struct {
	stag
	Index          int
	LValue, RValue *Var
	Type           Type
}

func (s *Cast) String() string {
	return fmt.Sprintf("%s = (%s) %s", s.LValue.Name, s.Type, s.RValue.Name)
}

// InstanceLoad reads an instance field: LValue = Base.Field.
type InstanceLoad struct {
	stag
	Index        int
	LValue, Base *Var
	Field        *Field
}

func (s *InstanceLoad) String() string {
	return fmt.Sprintf("%s = %s.%s", s.LValue.Name, s.Base.Name, s.Field.Name)
}

// InstanceStore writes an instance field: Base.Field = RValue.
type InstanceStore struct {
	stag
	Index        int
	Base, RValue *Var
	Field        *Field
}

func (s *InstanceStore) String() string {
	return fmt.Sprintf("%s.%s = %s", s.Base.Name, s.Field.Name, s.RValue.Name)
}

// StaticLoad reads a static field: LValue = C.Field.
type StaticLoad struct {
	stag
	Index  int
	LValue *Var
	Field  *Field
}

func (s *StaticLoad) String() string {
	return fmt.Sprintf("%s = %s.%s", s.LValue.Name, s.Field.Class.Name, s.Field.Name)
}

// StaticStore writes a static field: C.Field = RValue.
type StaticStore struct {
	stag
	Index  int
	Field  *Field
	RValue *Var
}

func (s *StaticStore) String() string {
	return fmt.Sprintf("%s.%s = %s", s.Field.Class.Name, s.Field.Name, s.RValue.Name)
}

// ArrayLoad reads an array element: LValue = Base[*].
type ArrayLoad struct {
	stag
	Index        int
	LValue, Base *Var
}

func (s *ArrayLoad) String() string { return s.LValue.Name + " = " + s.Base.Name + "[*]" }

// ArrayStore writes an array element: Base[*] = RValue.
type ArrayStore struct {
	stag
	Index        int
	Base, RValue *Var
}

func (s *ArrayStore) String() string { return s.Base.Name + "[*] = " + s.RValue.Name }

// CallKind classifies call statements.
type CallKind uint8

const (
	CallStatic CallKind = iota
	// Non-virtual instance call (constructors, private and super calls).
	CallSpecial
	CallVirtual
	CallInterface
	// Signature-polymorphic call, resolved only by plugins.
	CallDynamic
	// Call edges contributed by plugins.
	CallOther
)

func (k CallKind) String() string {
	switch k {
	case CallStatic:
		return "static"
	case CallSpecial:
		return "special"
	case CallVirtual:
		return "virtual"
	case CallInterface:
		return "interface"
	case CallDynamic:
		return "dynamic"
	case CallOther:
		return "other"
	}
	return "?"
}

// Invoke is a call statement: [Result =] [Base.]Ref(Args) [catch Catch].
type Invoke struct {
	stag
	Index     int
	Container *Method
	Kind      CallKind
	Ref       MethodRef
	// Base is nil for static calls.
	Base *Var
	Args []*Var
	// Result and Catch are optional.
	Result *Var
	Catch  *Var
}

// IsInstance reports whether the call has a receiver.
func (s *Invoke) IsInstance() bool { return s.Base != nil }

// Site returns a short, unique description of the call site.
func (s *Invoke) Site() string {
	return fmt.Sprintf("%s@%d", s.Container.Signature(), s.Index)
}

func (s *Invoke) String() string {
	var b strings.Builder
	if s.Result != nil {
		b.WriteString(s.Result.Name + " = ")
	}
	if s.Kind != CallVirtual && s.Kind != CallInterface && s.Kind != CallStatic {
		b.WriteString(s.Kind.String() + " ")
	}
	if s.Base != nil {
		b.WriteString(s.Base.Name + ".")
	}
	b.WriteString(s.Ref.String())
	b.WriteByte('(')
	for i, a := range s.Args {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(a.Name)
	}
	b.WriteByte(')')
	if s.Catch != nil {
		b.WriteString(" catch " + s.Catch.Name)
	}
	return b.String()
}

// Return leaves the method, optionally with a value.
type Return struct {
	stag
	Index int
	Value *Var
}

func (s *Return) String() string {
	if s.Value == nil {
		return "return"
	}
	return "return " + s.Value.Name
}

// Throw raises the object in Value.
type Throw struct {
	stag
	Index int
	Value *Var
}

func (s *Throw) String() string { return "throw " + s.Value.Name }
