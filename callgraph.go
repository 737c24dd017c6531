package pta

import (
	"iter"

	"github.com/benbjohnson/immutable"

	"github.com/BarrensZeppelin/pta/cs"
	"github.com/BarrensZeppelin/pta/ir"
)

// CallEdge is an edge of the context-sensitive call graph. The kind of an
// edge is the kind of the call site, except for edges added by plugins, which
// have kind ir.CallOther.
type CallEdge struct {
	Kind   ir.CallKind
	Site   cs.CSCallSite
	Callee cs.CSMethod
}

// CallGraph is a persistent context-sensitive call graph. Adding edges or
// reachable methods yields a new graph and leaves the receiver unchanged, so
// graphs handed out by the solver during the analysis are stable snapshots.
type CallGraph struct {
	reachable *immutable.SortedMap[cs.CSMethod, struct{}]
	edges     *immutable.SortedMap[CallEdge, struct{}]
	out       *immutable.Map[cs.CSCallSite, *immutable.List[CallEdge]]
	in        *immutable.Map[cs.CSMethod, *immutable.List[CallEdge]]
	// Call sites of each reachable method, in the order they were added.
	sites *immutable.Map[cs.CSMethod, *immutable.List[cs.CSCallSite]]
}

func NewCallGraph() CallGraph {
	return CallGraph{
		reachable: immutable.NewSortedMap[cs.CSMethod, struct{}](handleComparer[cs.CSMethod]{}),
		edges:     immutable.NewSortedMap[CallEdge, struct{}](edgeComparer{}),
		out:       immutable.NewMap[cs.CSCallSite, *immutable.List[CallEdge]](handleHasher[cs.CSCallSite]{}),
		in:        immutable.NewMap[cs.CSMethod, *immutable.List[CallEdge]](handleHasher[cs.CSMethod]{}),
		sites:     immutable.NewMap[cs.CSMethod, *immutable.List[cs.CSCallSite]](handleHasher[cs.CSMethod]{}),
	}
}

// WithReachable returns a graph in which m is reachable, and whether m was
// unreachable in g.
func (g CallGraph) WithReachable(m cs.CSMethod) (CallGraph, bool) {
	if g.IsReachable(m) {
		return g, false
	}
	g.reachable = g.reachable.Set(m, struct{}{})
	return g, true
}

// WithEdge returns a graph containing e, and whether e was absent from g.
// The caller of e must be reachable.
func (g CallGraph) WithEdge(e CallEdge, caller cs.CSMethod) (CallGraph, bool) {
	if g.HasEdge(e) {
		return g, false
	}

	g.edges = g.edges.Set(e, struct{}{})

	out, found := g.out.Get(e.Site)
	if !found {
		out = immutable.NewList[CallEdge]()
		sites, _ := g.sites.Get(caller)
		if sites == nil {
			sites = immutable.NewList[cs.CSCallSite]()
		}
		g.sites = g.sites.Set(caller, sites.Append(e.Site))
	}
	g.out = g.out.Set(e.Site, out.Append(e))

	in, _ := g.in.Get(e.Callee)
	if in == nil {
		in = immutable.NewList[CallEdge]()
	}
	g.in = g.in.Set(e.Callee, in.Append(e))
	return g, true
}

func (g CallGraph) IsReachable(m cs.CSMethod) bool {
	_, found := g.reachable.Get(m)
	return found
}

func (g CallGraph) HasEdge(e CallEdge) bool {
	_, found := g.edges.Get(e)
	return found
}

func (g CallGraph) NumReachable() int { return g.reachable.Len() }
func (g CallGraph) NumEdges() int     { return g.edges.Len() }

// Reachable iterates over the reachable methods in handle order.
func (g CallGraph) Reachable() iter.Seq[cs.CSMethod] {
	return func(yield func(cs.CSMethod) bool) {
		for it := g.reachable.Iterator(); !it.Done(); {
			m, _, _ := it.Next()
			if !yield(m) {
				return
			}
		}
	}
}

// Edges iterates over all edges, ordered by call site and callee.
func (g CallGraph) Edges() iter.Seq[CallEdge] {
	return func(yield func(CallEdge) bool) {
		for it := g.edges.Iterator(); !it.Done(); {
			e, _, _ := it.Next()
			if !yield(e) {
				return
			}
		}
	}
}

func listSeq[T any](l *immutable.List[T]) iter.Seq[T] {
	return func(yield func(T) bool) {
		if l == nil {
			return
		}
		for it := l.Iterator(); !it.Done(); {
			_, x := it.Next()
			if !yield(x) {
				return
			}
		}
	}
}

// EdgesOutOf iterates over the edges leaving a call site.
func (g CallGraph) EdgesOutOf(site cs.CSCallSite) iter.Seq[CallEdge] {
	l, _ := g.out.Get(site)
	return listSeq(l)
}

// EdgesInto iterates over the edges entering a method.
func (g CallGraph) EdgesInto(m cs.CSMethod) iter.Seq[CallEdge] {
	l, _ := g.in.Get(m)
	return listSeq(l)
}

// CallSitesIn iterates over the call sites of m that have outgoing edges.
func (g CallGraph) CallSitesIn(m cs.CSMethod) iter.Seq[cs.CSCallSite] {
	l, _ := g.sites.Get(m)
	return listSeq(l)
}
