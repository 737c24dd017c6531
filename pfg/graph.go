// Package pfg implements the pointer flow graph: a directed graph over
// context-sensitive pointers whose edges describe how objects flow between
// them.
package pfg

import (
	"fmt"
	"iter"

	"github.com/BarrensZeppelin/pta/cs"
	"github.com/BarrensZeppelin/pta/ir"
)

// EdgeKind tells which kind of statement or call graph edge gave rise to a
// pointer flow edge.
type EdgeKind uint8

const (
	LocalAssign EdgeKind = iota
	Cast
	InstanceLoad
	InstanceStore
	StaticLoad
	StaticStore
	ArrayLoad
	ArrayStore
	ParameterPassing
	ThisPassing
	Return
	Exception
	// Edges added by plugins.
	Other
)

var kindNames = [...]string{
	LocalAssign:      "local-assign",
	Cast:             "cast",
	InstanceLoad:     "instance-load",
	InstanceStore:    "instance-store",
	StaticLoad:       "static-load",
	StaticStore:      "static-store",
	ArrayLoad:        "array-load",
	ArrayStore:       "array-store",
	ParameterPassing: "parameter-passing",
	ThisPassing:      "this-passing",
	Return:           "return",
	Exception:        "exception",
	Other:            "other",
}

func (k EdgeKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("EdgeKind(%d)", k)
}

// Edge is a pointer flow edge. Objects flowing along an edge with a non-zero
// Filter are restricted to those whose type is a subtype of Filter.
type Edge struct {
	Kind     EdgeKind
	From, To cs.Pointer
	Filter   ir.Type
}

// Graph is a pointer flow graph. Edges are kept in insertion order.
type Graph struct {
	edges    map[Edge]struct{}
	out      map[cs.Pointer][]Edge
	pointers []cs.Pointer
	known    map[cs.Pointer]struct{}
	ordered  []Edge
}

func New() *Graph {
	return &Graph{
		edges: make(map[Edge]struct{}),
		out:   make(map[cs.Pointer][]Edge),
		known: make(map[cs.Pointer]struct{}),
	}
}

// AddEdge inserts e and reports whether it was not already present.
func (g *Graph) AddEdge(e Edge) bool {
	if _, found := g.edges[e]; found {
		return false
	}

	g.edges[e] = struct{}{}
	g.out[e.From] = append(g.out[e.From], e)
	g.ordered = append(g.ordered, e)
	g.addPointer(e.From)
	g.addPointer(e.To)
	return true
}

func (g *Graph) addPointer(p cs.Pointer) {
	if _, found := g.known[p]; !found {
		g.known[p] = struct{}{}
		g.pointers = append(g.pointers, p)
	}
}

// HasEdge reports whether e is in the graph.
func (g *Graph) HasEdge(e Edge) bool {
	_, found := g.edges[e]
	return found
}

// OutEdges iterates over the edges leaving p. Edges added while the
// iteration is in progress are also visited.
func (g *Graph) OutEdges(p cs.Pointer) iter.Seq[Edge] {
	return func(yield func(Edge) bool) {
		for i := 0; i < len(g.out[p]); i++ {
			if !yield(g.out[p][i]) {
				return
			}
		}
	}
}

// OutDegree returns the number of edges leaving p.
func (g *Graph) OutDegree(p cs.Pointer) int { return len(g.out[p]) }

// Pointers iterates over the endpoints of all edges, in the order they were
// first seen.
func (g *Graph) Pointers() iter.Seq[cs.Pointer] {
	return func(yield func(cs.Pointer) bool) {
		for _, p := range g.pointers {
			if !yield(p) {
				return
			}
		}
	}
}

// Edges iterates over all edges in insertion order.
func (g *Graph) Edges() iter.Seq[Edge] {
	return func(yield func(Edge) bool) {
		for _, e := range g.ordered {
			if !yield(e) {
				return
			}
		}
	}
}

func (g *Graph) NumEdges() int    { return len(g.ordered) }
func (g *Graph) NumPointers() int { return len(g.pointers) }
