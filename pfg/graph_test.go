package pfg

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/BarrensZeppelin/pta/cs"
	"github.com/BarrensZeppelin/pta/ir"
)

func TestAddEdgeIdempotent(t *testing.T) {
	g := New()

	e := Edge{Kind: LocalAssign, From: 1, To: 2}
	assert.True(t, g.AddEdge(e))
	assert.False(t, g.AddEdge(e), "Second insertion should report the edge as present")
	assert.Equal(t, 1, g.NumEdges())

	// Edges differing in any component are distinct.
	c := ir.NewClass("C")
	assert.True(t, g.AddEdge(Edge{Kind: Cast, From: 1, To: 2}))
	assert.True(t, g.AddEdge(Edge{Kind: Cast, From: 1, To: 2, Filter: ir.ClassType(c)}))
	assert.False(t, g.AddEdge(Edge{Kind: Cast, From: 1, To: 2, Filter: ir.ClassType(c)}))
	assert.True(t, g.AddEdge(Edge{Kind: LocalAssign, From: 2, To: 1}))

	assert.Equal(t, 4, g.NumEdges())
	assert.Equal(t, 3, g.OutDegree(1))
	assert.True(t, g.HasEdge(e))
	assert.False(t, g.HasEdge(Edge{Kind: Return, From: 1, To: 2}))
}

func TestIteration(t *testing.T) {
	g := New()
	g.AddEdge(Edge{Kind: LocalAssign, From: 3, To: 1})
	g.AddEdge(Edge{Kind: LocalAssign, From: 1, To: 2})
	g.AddEdge(Edge{Kind: Return, From: 1, To: 4})

	assert.Equal(t, []cs.Pointer{3, 1, 2, 4}, slices.Collect(g.Pointers()))

	targets := func() (res []cs.Pointer) {
		for e := range g.OutEdges(1) {
			res = append(res, e.To)
		}
		return
	}
	assert.Equal(t, []cs.Pointer{2, 4}, targets())
	assert.Equal(t, targets(), targets(), "Iteration should be restartable")
	assert.Empty(t, slices.Collect(g.OutEdges(42)))

	// Edges added during iteration are visited.
	var seen []cs.Pointer
	for e := range g.OutEdges(1) {
		seen = append(seen, e.To)
		if e.To == 2 {
			g.AddEdge(Edge{Kind: LocalAssign, From: 1, To: 5})
		}
	}
	assert.Equal(t, []cs.Pointer{2, 4, 5}, seen)
	assert.Len(t, slices.Collect(g.Edges()), 4)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "array-store", ArrayStore.String())
	assert.Equal(t, "other", Other.String())
	assert.Equal(t, "EdgeKind(99)", EdgeKind(99).String())
}
