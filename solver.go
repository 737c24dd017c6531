package pta

import (
	"github.com/sirupsen/logrus"

	"github.com/BarrensZeppelin/pta/cs"
	"github.com/BarrensZeppelin/pta/heap"
	"github.com/BarrensZeppelin/pta/ir"
	"github.com/BarrensZeppelin/pta/pfg"
	"github.com/BarrensZeppelin/pta/pts"
)

// AddVarPointsTo adds the objects of set to the points-to set of v in ctx.
func (s *Solver) AddVarPointsTo(ctx cs.Context, v *ir.Var, set *pts.Set) {
	s.AddPointsTo(s.csm.CSVar(ctx, v).Pointer(), set)
}

// AddPointsTo adds the objects of set to the points-to set of p. The objects
// are propagated when the solver resumes its work list.
func (s *Solver) AddPointsTo(p cs.Pointer, set *pts.Set) {
	s.enqueue(p, set)
}

// AddPFGEdge adds a pointer flow edge and propagates the current points-to
// set of from along it if the edge is new.
func (s *Solver) AddPFGEdge(kind pfg.EdgeKind, from, to cs.Pointer, filter ir.Type) {
	e := pfg.Edge{Kind: kind, From: from, To: to, Filter: filter}
	if !s.pfg.AddEdge(e) {
		return
	}

	if set := s.ptsOf(from); !set.IsEmpty() {
		s.enqueue(to, s.filter(set, e))
	}
}

// AddCallEdge adds a call graph edge and makes its callee reachable. Unless
// the edge has kind ir.CallOther, arguments, return values and exceptions
// are connected by the solver; plugins adding edges of kind ir.CallOther
// must pass values themselves.
func (s *Solver) AddCallEdge(e CallEdge) {
	_, inv := s.csm.CallSite(e.Site)
	caller := s.csm.CSMethod(s.siteContext(e.Site), inv.Container)

	cg, added := s.cg.WithEdge(e, caller)
	if !added {
		return
	}
	s.cg = cg

	s.addReachable(e.Callee)
	if s.err != nil {
		return
	}

	if e.Kind != ir.CallOther {
		s.wireCall(e)
	}

	for _, p := range s.plugins {
		if h, ok := p.(CallEdgeHandler); ok {
			s.pluginErr(h.HandleNewCallEdge(s, e))
		}
	}
}

func (s *Solver) siteContext(site cs.CSCallSite) cs.Context {
	ctx, _ := s.csm.CallSite(site)
	return ctx
}

// Warn records a non-fatal analysis gap. Warnings with the same kind and
// keys are recorded once.
func (s *Solver) Warn(kind WarningKind, key any, site, msg string) {
	s.warn(kind, key, site, site, msg)
}

// PointsToSetOf returns the current points-to set of p. The set must not be
// modified.
func (s *Solver) PointsToSetOf(p cs.Pointer) *pts.Set { return s.ptsOf(p) }

func (s *Solver) CSManager() *cs.Manager     { return s.csm }
func (s *Solver) Selector() cs.Selector      { return s.selector }
func (s *Solver) Hierarchy() ir.Hierarchy    { return s.hier }
func (s *Solver) HeapModel() *heap.Model     { return s.heap }
func (s *Solver) Program() *ir.Program       { return s.prog }
func (s *Solver) PFG() *pfg.Graph            { return s.pfg }
func (s *Solver) Logger() logrus.FieldLogger { return s.log }

// CallGraph returns a snapshot of the call graph constructed so far.
func (s *Solver) CallGraph() CallGraph { return s.cg }
