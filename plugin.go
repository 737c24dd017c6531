package pta

import (
	"github.com/BarrensZeppelin/pta/cs"
	"github.com/BarrensZeppelin/pta/ir"
	"github.com/BarrensZeppelin/pta/pts"
)

// Plugin models program behaviour that is not expressed by statements, such
// as native methods or method handles. Plugins observe the analysis through
// the hooks below, which the solver calls synchronously, and contribute facts
// through the methods of the Solver passed to each hook.
//
// An error returned from any hook aborts the analysis.
type Plugin interface {
	// IsRelevantVar reports whether the plugin wants to observe the
	// points-to set of v through HandleNewPointsToSet.
	IsRelevantVar(v *ir.Var) bool
	// HandleNewInvoke is called once for every call site of every method,
	// when the method first becomes reachable.
	HandleNewInvoke(s *Solver, invoke *ir.Invoke) error
	// HandleNewPointsToSet is called when the points-to set of a relevant
	// variable grows, with the newly added objects.
	HandleNewPointsToSet(s *Solver, v cs.CSVar, delta *pts.Set) error
}

// Optional plugin hooks.
type (
	StartHandler interface {
		// OnStart is called before the entry methods are processed.
		OnStart(s *Solver) error
	}

	CSMethodHandler interface {
		// HandleNewCSMethod is called when a method becomes reachable in a
		// new context.
		HandleNewCSMethod(s *Solver, m cs.CSMethod) error
	}

	CallEdgeHandler interface {
		// HandleNewCallEdge is called for every new call graph edge.
		HandleNewCallEdge(s *Solver, e CallEdge) error
	}

	FinishHandler interface {
		// OnFinish is called once the fixpoint has been reached.
		OnFinish(s *Solver) error
	}
)
