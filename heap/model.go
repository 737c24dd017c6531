// Package heap maps allocations to abstract objects.
package heap

import "github.com/BarrensZeppelin/pta/ir"

// Model is the allocation-site heap abstraction: every New statement denotes
// a single abstract object. Objects created by analysis models are interned
// by their description, payload and type.
type Model struct {
	prog  *ir.Program
	mocks map[mockKey]*ir.Obj
}

type mockKey struct {
	desc  string
	value any
	typ   ir.Type
}

func NewModel(prog *ir.Program) *Model {
	return &Model{prog: prog, mocks: make(map[mockKey]*ir.Obj)}
}

// Obj returns the abstract object allocated by s.
func (m *Model) Obj(s *ir.New) *ir.Obj { return s.Obj }

// MockObj returns the unique mock object with the given description, payload
// and type, creating it on first request. The payload must be comparable.
func (m *Model) MockObj(desc string, value any, typ ir.Type, method *ir.Method) *ir.Obj {
	key := mockKey{desc, value, typ}
	if o, found := m.mocks[key]; found {
		return o
	}

	o := m.prog.NewMockObj(desc, value, typ, method)
	m.mocks[key] = o
	return o
}

// NumMocks returns the number of mock objects created by the model.
func (m *Model) NumMocks() int { return len(m.mocks) }
