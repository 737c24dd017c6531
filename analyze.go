// Package pta implements an inclusion-based, context-sensitive points-to
// analysis with on-the-fly call graph construction for programs in the ir
// representation.
package pta

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/BarrensZeppelin/pta/cs"
	"github.com/BarrensZeppelin/pta/heap"
	"github.com/BarrensZeppelin/pta/internal/queue"
	"github.com/BarrensZeppelin/pta/ir"
	"github.com/BarrensZeppelin/pta/pfg"
	"github.com/BarrensZeppelin/pta/pts"
)

var (
	// ErrPluginFailed wraps errors returned from plugin hooks.
	ErrPluginFailed = errors.New("plugin failed")
	// ErrAborted is returned when the analysis is cancelled through its
	// context.
	ErrAborted = errors.New("analysis aborted")
)

type AnalysisConfig struct {
	Program *ir.Program

	// Defaults to an ir.ClassHierarchy over Program.
	Hierarchy ir.Hierarchy

	// Context sensitivity policy. The zero value is context-insensitive.
	Selector cs.Selector

	// Entry methods, analysed in the empty context. Defaults to
	// Program.Entries.
	Entries []*ir.Method

	Plugins []Plugin

	// Defaults to the standard logrus logger.
	Logger logrus.FieldLogger
}

type workItem struct {
	p   cs.Pointer
	set *pts.Set
}

type warningKey struct {
	kind WarningKind
	a, b any
}

// Solver holds the state of a running analysis. Plugins receive the solver
// in their hooks and use it to inspect the state and to add new facts.
type Solver struct {
	prog     *ir.Program
	hier     ir.Hierarchy
	selector cs.Selector
	csm      *cs.Manager
	heap     *heap.Model
	pfg      *pfg.Graph
	cg       CallGraph
	plugins  []Plugin
	log      logrus.FieldLogger

	pts   []*pts.Set
	queue queue.Queue[workItem]

	// Methods whose call sites have been announced to plugins.
	seenMethods map[*ir.Method]bool
	// Targets of special calls, resolved when their method is first seen.
	specialTargets map[*ir.Invoke]*ir.Method

	warnings []Warning
	warned   map[warningKey]bool

	steps int
	err   error
}

// Analyze runs the analysis to a fixpoint. If the program references
// undeclared methods, a plugin fails or ctx is cancelled, Analyze returns an
// error and no result.
func Analyze(ctx context.Context, config AnalysisConfig) (*Result, error) {
	prog := config.Program
	if prog == nil {
		return nil, fmt.Errorf("%w: no program", ir.ErrMalformedIR)
	}

	s := &Solver{
		prog:           prog,
		hier:           config.Hierarchy,
		selector:       config.Selector,
		csm:            cs.NewManager(),
		heap:           heap.NewModel(prog),
		pfg:            pfg.New(),
		cg:             NewCallGraph(),
		plugins:        config.Plugins,
		log:            config.Logger,
		seenMethods:    make(map[*ir.Method]bool),
		specialTargets: make(map[*ir.Invoke]*ir.Method),
		warned:         make(map[warningKey]bool),
	}
	if s.hier == nil {
		s.hier = ir.NewClassHierarchy(prog)
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}

	entries := config.Entries
	if entries == nil {
		entries = prog.Entries
	}

	start := time.Now()
	s.log.WithFields(logrus.Fields{
		"selector": s.selector,
		"entries":  len(entries),
		"plugins":  len(s.plugins),
	}).Debug("Starting points-to analysis")

	for _, p := range s.plugins {
		if h, ok := p.(StartHandler); ok {
			s.pluginErr(h.OnStart(s))
		}
	}

	for _, m := range entries {
		if !m.HasBody() {
			s.fail(fmt.Errorf("%w: entry %s has no body", ir.ErrMalformedIR, m))
			break
		}
		s.addReachable(s.csm.CSMethod(cs.Empty, m))
	}

	for !s.queue.Empty() && s.err == nil {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrAborted, err)
		}

		item := s.queue.Pop()
		s.steps++
		if diff := s.propagate(item.p, item.set); diff != nil {
			if cv, ok := s.csm.AsVar(item.p); ok {
				s.processVar(cv, diff)
			}
		}
	}

	if s.err == nil {
		for _, p := range s.plugins {
			if h, ok := p.(FinishHandler); ok {
				s.pluginErr(h.OnFinish(s))
			}
		}
	}

	if s.err != nil {
		s.log.WithError(s.err).Debug("Points-to analysis aborted")
		return nil, s.err
	}

	res := s.result(time.Since(start))
	s.log.WithFields(logrus.Fields{
		"reachable":  res.Stats.ReachableMethods,
		"cs-methods": res.Stats.CSMethods,
		"call-edges": res.Stats.CallEdges,
		"pfg-edges":  res.Stats.PFGEdges,
		"warnings":   len(res.Warnings),
		"duration":   res.Stats.Duration,
	}).Debug("Points-to analysis reached fixpoint")
	return res, nil
}

// fail records the first fatal error. The main loop stops once an error is
// recorded.
func (s *Solver) fail(err error) {
	if s.err == nil && err != nil {
		s.err = err
	}
}

func (s *Solver) pluginErr(err error) {
	if err != nil {
		s.fail(fmt.Errorf("%w: %w", ErrPluginFailed, err))
	}
}

func (s *Solver) ptsOf(p cs.Pointer) *pts.Set {
	for int(p) >= len(s.pts) {
		s.pts = append(s.pts, nil)
	}
	if s.pts[p] == nil {
		s.pts[p] = &pts.Set{}
	}
	return s.pts[p]
}

// propagate adds set to the points-to set of p and forwards the newly added
// objects along the out edges of p. It returns the new objects, or nil.
func (s *Solver) propagate(p cs.Pointer, set *pts.Set) *pts.Set {
	diff := s.ptsOf(p).AddAll(set)
	if diff == nil {
		return nil
	}

	for e := range s.pfg.OutEdges(p) {
		s.enqueue(e.To, s.filter(diff, e))
	}
	return diff
}

func (s *Solver) enqueue(p cs.Pointer, set *pts.Set) {
	if !set.IsEmpty() {
		s.queue.Push(workItem{p, set})
	}
}

// filter restricts set to the objects that may flow along e.
func (s *Solver) filter(set *pts.Set, e pfg.Edge) *pts.Set {
	if e.Filter.IsZero() {
		return set
	}

	return set.Filter(func(o cs.CSObj) bool {
		_, obj := s.csm.Obj(o)
		if s.hier.IsSubtype(obj.Type, e.Filter) {
			return true
		}

		s.warn(FilteredObject, obj, e.Filter, "", fmt.Sprintf("%s does not flow to %s (%s) with type %s",
			obj, s.csm.PointerString(e.To), e.Kind, e.Filter))
		return false
	})
}

func (s *Solver) warn(kind WarningKind, a, b any, site, msg string) {
	key := warningKey{kind, a, b}
	if s.warned[key] {
		return
	}
	s.warned[key] = true

	w := Warning{Kind: kind, Site: site, Message: msg}
	s.warnings = append(s.warnings, w)

	entry := s.log.WithFields(logrus.Fields{"kind": kind, "site": site})
	if kind == FilteredObject {
		entry.Debug(msg)
	} else {
		entry.Warn(msg)
	}
}

// addReachable marks m as reachable and processes its statements the first
// time it is reached.
func (s *Solver) addReachable(m cs.CSMethod) {
	cg, added := s.cg.WithReachable(m)
	if !added {
		return
	}
	s.cg = cg

	ctx, method := s.csm.Method(m)
	if !s.seenMethods[method] {
		s.seenMethods[method] = true
		s.announceInvokes(method)
	}

	for _, p := range s.plugins {
		if h, ok := p.(CSMethodHandler); ok {
			s.pluginErr(h.HandleNewCSMethod(s, m))
		}
	}

	for _, stmt := range method.Stmts {
		if s.err != nil {
			return
		}
		s.processStmt(m, ctx, stmt)
	}
}

// announceInvokes resolves the statically bound call sites of a method that
// is reached for the first time and offers all its call sites to plugins.
func (s *Solver) announceInvokes(method *ir.Method) {
	for _, inv := range method.Invokes() {
		switch inv.Kind {
		case ir.CallStatic, ir.CallSpecial, ir.CallVirtual, ir.CallInterface:
			target := s.hier.Resolve(inv.Ref)
			if target == nil {
				s.fail(fmt.Errorf("%w: %s at %s", ir.ErrUnresolvedSignature, inv.Ref, inv.Site()))
				return
			}
			if inv.Kind == ir.CallStatic && !target.Static {
				s.fail(fmt.Errorf("%w: static call to instance method %s at %s", ir.ErrMalformedIR, target, inv.Site()))
				return
			}
			if inv.Kind == ir.CallSpecial && s.specialTarget(inv) == nil {
				return
			}
		}

		for _, p := range s.plugins {
			s.pluginErr(p.HandleNewInvoke(s, inv))
		}
	}
}

func (s *Solver) processStmt(m cs.CSMethod, ctx cs.Context, stmt ir.Stmt) {
	csVar := func(v *ir.Var) cs.Pointer { return s.csm.CSVar(ctx, v).Pointer() }

	switch stmt := stmt.(type) {
	case *ir.New:
		obj := s.heap.Obj(stmt)
		heapCtx := cs.Empty
		if obj.Kind == ir.NewObj {
			heapCtx = s.selector.SelectHeapContext(s.csm, m, obj)
		}
		s.AddVarPointsTo(ctx, stmt.LValue, pts.New(s.csm.CSObj(heapCtx, obj)))

	case *ir.Assign:
		s.AddPFGEdge(pfg.LocalAssign, csVar(stmt.RValue), csVar(stmt.LValue), ir.Type{})

	case *ir.Cast:
		s.AddPFGEdge(pfg.Cast, csVar(stmt.RValue), csVar(stmt.LValue), stmt.Type)

	case *ir.StaticLoad:
		s.AddPFGEdge(pfg.StaticLoad, s.csm.StaticField(stmt.Field), csVar(stmt.LValue), ir.Type{})

	case *ir.StaticStore:
		s.AddPFGEdge(pfg.StaticStore, csVar(stmt.RValue), s.csm.StaticField(stmt.Field), ir.Type{})

	case *ir.Throw:
		_, method := s.csm.Method(m)
		s.AddPFGEdge(pfg.Exception, csVar(stmt.Value), csVar(method.Exception), ir.Type{})

	case *ir.Invoke:
		if stmt.Kind == ir.CallStatic {
			callee := s.hier.Resolve(stmt.Ref)
			site := s.csm.CSCallSite(ctx, stmt)
			calleeCtx := s.selector.SelectContext(s.csm, site, callee)
			s.AddCallEdge(CallEdge{ir.CallStatic, site, s.csm.CSMethod(calleeCtx, callee)})
		}

		// Field and array accesses and instance calls are processed when
		// objects reach their base variable. Returns are wired by call edges.
	}
}

// processVar creates the edges that depend on the objects newly pointed to
// by a variable.
func (s *Solver) processVar(cv cs.CSVar, diff *pts.Set) {
	ctx, v := s.csm.Var(cv)
	csVar := func(v *ir.Var) cs.Pointer { return s.csm.CSVar(ctx, v).Pointer() }

	for o := range diff.All() {
		if s.err != nil {
			return
		}

		for _, load := range v.LoadFields {
			s.AddPFGEdge(pfg.InstanceLoad, s.csm.InstanceField(o, load.Field), csVar(load.LValue), ir.Type{})
		}
		for _, store := range v.StoreFields {
			s.AddPFGEdge(pfg.InstanceStore, csVar(store.RValue), s.csm.InstanceField(o, store.Field), ir.Type{})
		}

		if len(v.LoadArrays) > 0 || len(v.StoreArrays) > 0 {
			arr := s.csm.ArrayIndex(o)
			var elem ir.Type
			if _, obj := s.csm.Obj(o); obj.Type.IsArray() {
				elem = obj.Type.Elem()
			}

			for _, load := range v.LoadArrays {
				s.AddPFGEdge(pfg.ArrayLoad, arr, csVar(load.LValue), ir.Type{})
			}
			for _, store := range v.StoreArrays {
				s.AddPFGEdge(pfg.ArrayStore, csVar(store.RValue), arr, elem)
			}
		}

		for _, inv := range v.Invokes {
			s.processInstanceCall(ctx, inv, o)
		}
	}

	for _, p := range s.plugins {
		if s.err != nil {
			return
		}
		if p.IsRelevantVar(v) {
			s.pluginErr(p.HandleNewPointsToSet(s, cv, diff))
		}
	}
}

// processInstanceCall dispatches a call on the receiver object recv.
func (s *Solver) processInstanceCall(ctx cs.Context, inv *ir.Invoke, recv cs.CSObj) {
	var callee *ir.Method
	switch inv.Kind {
	case ir.CallSpecial:
		if callee = s.specialTarget(inv); callee == nil {
			return
		}
	case ir.CallVirtual, ir.CallInterface:
		_, obj := s.csm.Obj(recv)
		callee = s.hier.Dispatch(obj.DispatchClass(s.hier.Root()), inv.Ref.Sub)
		if callee == nil {
			s.warn(UnresolvedDispatch, inv, obj.Type, inv.Site(),
				fmt.Sprintf("no implementation of %s for receiver type %s", inv.Ref.Sub, obj.Type))
			return
		}
	default:
		// Dynamic calls are left to plugins.
		return
	}

	site := s.csm.CSCallSite(ctx, inv)
	calleeCtx := s.selector.SelectInstanceContext(s.csm, site, recv, callee)
	s.AddCallEdge(CallEdge{inv.Kind, site, s.csm.CSMethod(calleeCtx, callee)})

	if callee.This != nil {
		s.AddVarPointsTo(calleeCtx, callee.This, pts.New(recv))
	}
}

// specialTarget resolves the target of a special call. Receivers may reach a
// call site before its method is reachable, when a plugin adds points-to
// facts directly. It returns nil and fails the analysis if the target is
// missing or not an instance method with a body.
func (s *Solver) specialTarget(inv *ir.Invoke) *ir.Method {
	if target, found := s.specialTargets[inv]; found {
		return target
	}

	target := s.hier.Resolve(inv.Ref)
	switch {
	case target == nil:
		s.fail(fmt.Errorf("%w: %s at %s", ir.ErrUnresolvedSignature, inv.Ref, inv.Site()))
		return nil
	case target.Static || target.Abstract:
		s.fail(fmt.Errorf("%w: special call to %s at %s", ir.ErrMalformedIR, target, inv.Site()))
		return nil
	}
	s.specialTargets[inv] = target
	return target
}

// wireCall connects arguments, return values and exceptions of a call edge.
func (s *Solver) wireCall(e CallEdge) {
	callerCtx, inv := s.csm.CallSite(e.Site)
	calleeCtx, callee := s.csm.Method(e.Callee)

	if len(inv.Args) != len(callee.Params) {
		s.fail(fmt.Errorf("%w: %s passes %d arguments to %s", ir.ErrMalformedIR, inv.Site(), len(inv.Args), callee))
		return
	}

	caller := func(v *ir.Var) cs.Pointer { return s.csm.CSVar(callerCtx, v).Pointer() }
	inCallee := func(v *ir.Var) cs.Pointer { return s.csm.CSVar(calleeCtx, v).Pointer() }

	for i, arg := range inv.Args {
		s.AddPFGEdge(pfg.ParameterPassing, caller(arg), inCallee(callee.ParamVars[i]), ir.Type{})
	}

	if inv.Result != nil {
		for _, ret := range callee.ReturnVars {
			s.AddPFGEdge(pfg.Return, inCallee(ret), caller(inv.Result), ir.Type{})
		}
	}

	handler := inv.Catch
	if handler == nil {
		handler = inv.Container.Exception
	}
	s.AddPFGEdge(pfg.Exception, inCallee(callee.Exception), caller(handler), ir.Type{})
}
