package ir_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BarrensZeppelin/pta/ir"
	"github.com/BarrensZeppelin/pta/irload"
)

const animals = `
classes:
  - name: Named
    interface: true
    methods:
      - sig: abstract name()
      - sig: static describe()
        body: return
  - name: Animal
    abstract: true
    implements: [Named]
    methods:
      - sig: abstract speak()
      - sig: name()
        body: return
  - name: Dog
    extends: Animal
    methods:
      - sig: speak()
        body: return
      - sig: static create()
        body: return
  - name: Puppy
    extends: Dog
`

func load(t *testing.T) (*ir.Program, *ir.ClassHierarchy) {
	t.Helper()
	prog, err := irload.LoadProgramFromSource(animals)
	require.NoError(t, err)
	return prog, ir.NewClassHierarchy(prog)
}

func TestDispatch(t *testing.T) {
	prog, h := load(t)
	puppy, animal := prog.Class("Puppy"), prog.Class("Animal")

	assert.Equal(t, prog.Method("<Dog: speak()>"), h.Dispatch(puppy, "speak()"))
	assert.Equal(t, prog.Method("<Animal: name()>"), h.Dispatch(puppy, "name()"))
	assert.Nil(t, h.Dispatch(animal, "speak()"), "Abstract methods are not dispatch targets")
	assert.Nil(t, h.Dispatch(puppy, "create()"), "Static methods are not dispatch targets")
	assert.Nil(t, h.Dispatch(puppy, "missing()"))
	assert.Nil(t, h.Dispatch(nil, "speak()"))

	// Cached answers are stable.
	assert.Same(t, h.Dispatch(puppy, "speak()"), h.Dispatch(puppy, "speak()"))
}

func TestResolve(t *testing.T) {
	prog, h := load(t)
	puppy := prog.Class("Puppy")

	assert.Equal(t, prog.Method("<Dog: create()>"), h.Resolve(ir.MethodRef{Class: puppy, Sub: "create()"}))
	assert.Equal(t, prog.Method("<Named: describe()>"), h.Resolve(ir.MethodRef{Class: puppy, Sub: "describe()"}),
		"Methods of superinterfaces should be found")
	assert.Nil(t, h.Resolve(ir.MethodRef{Class: puppy, Sub: "missing()"}))
	assert.Nil(t, h.Resolve(ir.MethodRef{Sub: "create()"}))
}

func TestIsSubtype(t *testing.T) {
	prog, h := load(t)
	typ := func(name string) ir.Type { return ir.ClassType(prog.Class(name)) }
	object := typ(ir.ObjectClass)

	for _, tc := range []struct {
		sub, super ir.Type
		want       bool
	}{
		{typ("Puppy"), typ("Animal"), true},
		{typ("Puppy"), typ("Named"), true},
		{typ("Animal"), typ("Dog"), false},
		{typ("Dog"), object, true},
		{typ("Named"), object, true},
		{typ("int"), object, false},
		{ir.ArrayOf(typ("int")), object, true},
		{ir.ArrayOf(typ("Puppy")), ir.ArrayOf(typ("Animal")), true},
		{ir.ArrayOf(typ("Puppy")), typ("Animal"), false},
		{ir.ArrayOf(ir.ArrayOf(typ("Dog"))), ir.ArrayOf(object), true},
		{typ("Dog"), ir.Type{}, true},
		{ir.Type{}, object, false},
	} {
		assert.Equal(t, tc.want, h.IsSubtype(tc.sub, tc.super), "%v <: %v", tc.sub, tc.super)
	}
}

func TestDeclaresSubsignature(t *testing.T) {
	_, h := load(t)
	assert.True(t, h.DeclaresSubsignature("speak()"))
	assert.False(t, h.DeclaresSubsignature("fly()"))
}
