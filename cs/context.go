// Package cs implements analysis contexts, the policies that select them, and
// the interning of context-qualified program elements.
package cs

import (
	"fmt"
	"strings"

	"github.com/BarrensZeppelin/pta/ir"
)

// Context is an interned, bounded sequence of context elements. Two
// contexts created by the same ContextTable are equal iff their element
// sequences are equal.
type Context uint32

// Empty is the context without elements.
const Empty Context = 0

// Elem is a context element: an *ir.Invoke (call site), an *ir.Obj
// (receiver or allocation site) or an *ir.Class (type).
type Elem any

type ctxKey struct {
	parent Context
	elem   Elem
}

type ctxNode struct {
	parent Context
	elem   Elem
	length int
}

// ContextTable interns contexts in a trie: every context is its parent
// context extended with one element.
type ContextTable struct {
	nodes    []ctxNode
	children map[ctxKey]Context
}

func NewContextTable() *ContextTable {
	return &ContextTable{
		nodes:    []ctxNode{{}},
		children: make(map[ctxKey]Context),
	}
}

// Len returns the number of elements of c.
func (t *ContextTable) Len(c Context) int { return t.nodes[c].length }

// Size returns the number of distinct contexts created so far.
func (t *ContextTable) Size() int { return len(t.nodes) }

// Elems returns the elements of c, oldest first.
func (t *ContextTable) Elems(c Context) []Elem {
	res := make([]Elem, t.nodes[c].length)
	for i := len(res) - 1; i >= 0; i-- {
		res[i] = t.nodes[c].elem
		c = t.nodes[c].parent
	}
	return res
}

// Last returns the most recent element of c, or nil for the empty context.
func (t *ContextTable) Last(c Context) Elem { return t.nodes[c].elem }

func (t *ContextTable) extend(parent Context, e Elem) Context {
	key := ctxKey{parent, e}
	if c, found := t.children[key]; found {
		return c
	}

	c := Context(len(t.nodes))
	t.nodes = append(t.nodes, ctxNode{parent, e, t.nodes[parent].length + 1})
	t.children[key] = c
	return c
}

// Make returns the context with the given elements, oldest first.
func (t *ContextTable) Make(elems ...Elem) Context {
	c := Empty
	for _, e := range elems {
		c = t.extend(c, e)
	}
	return c
}

// Append returns the context consisting of the elements of c followed by e,
// keeping only the k most recent elements.
func (t *ContextTable) Append(c Context, e Elem, k int) Context {
	if k <= 0 {
		return Empty
	}
	if t.nodes[c].length < k {
		return t.extend(c, e)
	}

	elems := append(t.Elems(c), e)
	return t.Make(elems[len(elems)-k:]...)
}

// Truncate returns the context consisting of the k most recent elements of c.
func (t *ContextTable) Truncate(c Context, k int) Context {
	n := t.nodes[c].length
	switch {
	case k <= 0:
		return Empty
	case n <= k:
		return c
	}
	return t.Make(t.Elems(c)[n-k:]...)
}

// String formats c as "[e1, e2]".
func (t *ContextTable) String(c Context) string {
	elems := t.Elems(c)
	strs := make([]string, len(elems))
	for i, e := range elems {
		strs[i] = ElemString(e)
	}
	return "[" + strings.Join(strs, ", ") + "]"
}

// ElemString returns a short description of a context element.
func ElemString(e Elem) string {
	switch e := e.(type) {
	case *ir.Invoke:
		return e.Site()
	case *ir.Obj:
		return e.String()
	case *ir.Class:
		return e.Name
	default:
		return fmt.Sprint(e)
	}
}
