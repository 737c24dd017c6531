package heap

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/BarrensZeppelin/pta/ir"
)

func TestMockObj(t *testing.T) {
	prog := ir.NewProgram()
	c := ir.NewClass("C")
	assert.NoError(t, prog.AddClass(c))
	m := NewModel(prog)

	a := m.MockObj("handle", "x", ir.ClassType(c), nil)
	assert.Same(t, a, m.MockObj("handle", "x", ir.ClassType(c), nil))
	assert.NotSame(t, a, m.MockObj("handle", "y", ir.ClassType(c), nil))
	assert.NotSame(t, a, m.MockObj("other", "x", ir.ClassType(c), nil))

	assert.Equal(t, ir.MockObj, a.Kind)
	assert.Equal(t, 3, m.NumMocks())
	assert.Len(t, prog.Objects(), 3)
	assert.Equal(t, `handle{x}`, a.Label())
}
