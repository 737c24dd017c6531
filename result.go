package pta

import (
	"cmp"
	"slices"
	"time"

	"github.com/BarrensZeppelin/pta/cs"
	islices "github.com/BarrensZeppelin/pta/internal/slices"
	"github.com/BarrensZeppelin/pta/ir"
	"github.com/BarrensZeppelin/pta/pfg"
	"github.com/BarrensZeppelin/pta/pts"
)

// Stats summarizes the size of an analysis result.
type Stats struct {
	ReachableMethods int
	CSMethods        int
	CallEdges        int
	Contexts         int
	CSVars           int
	CSObjs           int
	Pointers         int
	PFGEdges         int
	Steps            int
	Duration         time.Duration
}

// Result is the fixpoint computed by Analyze. It is not modified after
// Analyze returns.
type Result struct {
	Program   *ir.Program
	Selector  cs.Selector
	CSManager *cs.Manager
	PFG       *pfg.Graph
	CallGraph CallGraph
	Warnings  []Warning
	Stats     Stats

	pts []*pts.Set
}

func (s *Solver) result(d time.Duration) *Result {
	r := &Result{
		Program:   s.prog,
		Selector:  s.selector,
		CSManager: s.csm,
		PFG:       s.pfg,
		CallGraph: s.cg,
		Warnings:  s.warnings,
		pts:       s.pts,
	}

	reachable := map[*ir.Method]bool{}
	for m := range s.cg.Reachable() {
		_, method := s.csm.Method(m)
		reachable[method] = true
	}

	ms := s.csm.Stats()
	r.Stats = Stats{
		ReachableMethods: len(reachable),
		CSMethods:        s.cg.NumReachable(),
		CallEdges:        s.cg.NumEdges(),
		Contexts:         ms.Contexts,
		CSVars:           ms.Vars,
		CSObjs:           ms.Objs,
		Pointers:         ms.Pointers,
		PFGEdges:         s.pfg.NumEdges(),
		Steps:            s.steps,
		Duration:         d,
	}
	return r
}

// PointsToSet returns the points-to set of a context-sensitive pointer.
func (r *Result) PointsToSet(p cs.Pointer) *pts.Set {
	if int(p) < len(r.pts) && r.pts[p] != nil {
		return r.pts[p]
	}
	return &pts.Set{}
}

// objects projects a set of pointers to the abstract objects they point to,
// ordered by object ID.
func (r *Result) objects(ptrs ...cs.Pointer) []*ir.Obj {
	var res []*ir.Obj
	for _, p := range ptrs {
		for o := range r.PointsToSet(p).All() {
			_, obj := r.CSManager.Obj(o)
			res = append(res, obj)
		}
	}

	res = islices.Uniq(res)
	slices.SortFunc(res, func(a, b *ir.Obj) int { return cmp.Compare(a.ID, b.ID) })
	return res
}

// PointsTo returns the objects v may point to in any context.
func (r *Result) PointsTo(v *ir.Var) []*ir.Obj {
	var ptrs []cs.Pointer
	for _, cv := range r.CSManager.VarsOf(v) {
		ptrs = append(ptrs, cv.Pointer())
	}
	return r.objects(ptrs...)
}

// VarPointsTo returns the objects v may point to in context ctx.
func (r *Result) VarPointsTo(ctx cs.Context, v *ir.Var) []*ir.Obj {
	cv, found := r.CSManager.LookupCSVar(ctx, v)
	if !found {
		return nil
	}
	return r.objects(cv.Pointer())
}

// FieldPointsTo returns the objects that field f of obj may point to in any
// heap context.
func (r *Result) FieldPointsTo(obj *ir.Obj, f *ir.Field) []*ir.Obj {
	var ptrs []cs.Pointer
	for _, o := range r.CSManager.ObjsOf(obj) {
		if p, found := r.CSManager.LookupInstanceField(o, f); found {
			ptrs = append(ptrs, p)
		}
	}
	return r.objects(ptrs...)
}

// StaticPointsTo returns the objects the static field f may point to.
func (r *Result) StaticPointsTo(f *ir.Field) []*ir.Obj {
	if p, found := r.CSManager.LookupStaticField(f); found {
		return r.objects(p)
	}
	return nil
}

// ArrayPointsTo returns the objects stored in the array object obj.
func (r *Result) ArrayPointsTo(obj *ir.Obj) []*ir.Obj {
	var ptrs []cs.Pointer
	for _, o := range r.CSManager.ObjsOf(obj) {
		if p, found := r.CSManager.LookupArrayIndex(o); found {
			ptrs = append(ptrs, p)
		}
	}
	return r.objects(ptrs...)
}

// MayAlias reports whether a and b may point to a common object, ignoring
// contexts.
func (r *Result) MayAlias(a, b *ir.Var) bool {
	objs := map[*ir.Obj]bool{}
	for _, o := range r.PointsTo(a) {
		objs[o] = true
	}
	for _, o := range r.PointsTo(b) {
		if objs[o] {
			return true
		}
	}
	return false
}

// Callees returns the methods invoked by a call site in any context.
func (r *Result) Callees(inv *ir.Invoke) []*ir.Method {
	var res []*ir.Method
	for _, caller := range r.CSManager.MethodsOf(inv.Container) {
		for site := range r.CallGraph.CallSitesIn(caller) {
			if _, s := r.CSManager.CallSite(site); s != inv {
				continue
			}
			for e := range r.CallGraph.EdgesOutOf(site) {
				_, callee := r.CSManager.Method(e.Callee)
				res = append(res, callee)
			}
		}
	}

	res = islices.Uniq(res)
	slices.SortFunc(res, func(a, b *ir.Method) int { return cmp.Compare(a.Signature(), b.Signature()) })
	return res
}

// ReachableMethods returns the methods reachable in some context, ordered by
// signature.
func (r *Result) ReachableMethods() []*ir.Method {
	var res []*ir.Method
	for m := range r.CallGraph.Reachable() {
		_, method := r.CSManager.Method(m)
		res = append(res, method)
	}

	res = islices.Uniq(res)
	slices.SortFunc(res, func(a, b *ir.Method) int { return cmp.Compare(a.Signature(), b.Signature()) })
	return res
}

// IsReachable reports whether m is reachable in some context.
func (r *Result) IsReachable(m *ir.Method) bool {
	for _, cm := range r.CSManager.MethodsOf(m) {
		if r.CallGraph.IsReachable(cm) {
			return true
		}
	}
	return false
}
