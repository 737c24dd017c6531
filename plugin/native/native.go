// Package native models the effects of native methods of the runtime library
// on the points-to relation.
package native

import (
	"fmt"
	"slices"

	"github.com/BarrensZeppelin/pta"
	"github.com/BarrensZeppelin/pta/cs"
	"github.com/BarrensZeppelin/pta/ir"
	"github.com/BarrensZeppelin/pta/pfg"
	"github.com/BarrensZeppelin/pta/pts"
)

// Receiver denotes the receiver in the list of relevant variables of a
// handler.
const Receiver = -1

// Handler models a call to a native method. It is called when the points-to
// set of one of the relevant variables of the call grows; v is that variable
// and delta the new objects.
type Handler func(s *pta.Solver, ctx cs.Context, inv *ir.Invoke, v *ir.Var, delta *pts.Set) error

type model struct {
	// Argument indices (or Receiver) of the variables to observe.
	relevant []int
	handle   Handler
}

// Plugin dispatches calls of modelled native methods to their handlers.
type Plugin struct {
	models  map[string]model
	watched map[*ir.Var][]*ir.Invoke
	bound   map[*ir.Invoke]model
}

var _ pta.Plugin = (*Plugin)(nil)

// New returns a plugin with models for Object.clone, System.arraycopy, the
// System stream setters and Thread.start.
func New() *Plugin {
	p := &Plugin{
		models:  make(map[string]model),
		watched: make(map[*ir.Var][]*ir.Invoke),
		bound:   make(map[*ir.Invoke]model),
	}

	p.Register(ir.Signature(ir.ObjectClass, "clone()"), []int{Receiver}, handleClone)
	p.Register(ir.Signature(ir.SystemClass,
		"arraycopy(java.lang.Object,int,java.lang.Object,int,int)"), []int{0, 2}, handleArraycopy)
	p.Register(ir.Signature(ir.ThreadClass, "start()"), []int{Receiver}, handleStart)
	for field, setter := range map[string]ir.Subsignature{
		"in":  "setIn0(java.io.InputStream)",
		"out": "setOut0(java.io.PrintStream)",
		"err": "setErr0(java.io.PrintStream)",
	} {
		p.Register(ir.Signature(ir.SystemClass, setter), []int{0}, storeStatic(ir.SystemClass, field))
	}
	return p
}

// Register installs a handler for the method with the given signature.
func (p *Plugin) Register(sig string, relevant []int, h Handler) {
	p.models[sig] = model{relevant, h}
}

func (p *Plugin) IsRelevantVar(v *ir.Var) bool {
	_, found := p.watched[v]
	return found
}

func (p *Plugin) HandleNewInvoke(s *pta.Solver, inv *ir.Invoke) error {
	if inv.Kind == ir.CallDynamic || inv.Kind == ir.CallOther {
		return nil
	}

	target := s.Hierarchy().Resolve(inv.Ref)
	if target == nil {
		return nil
	}
	m, found := p.models[target.Signature()]
	if !found {
		return nil
	}

	p.bound[inv] = m
	for _, i := range m.relevant {
		var v *ir.Var
		switch {
		case i == Receiver:
			v = inv.Base
		case i < len(inv.Args):
			v = inv.Args[i]
		}
		if v == nil {
			return fmt.Errorf("%s: call of %s lacks argument %d", inv.Site(), target, i)
		}
		if !slices.Contains(p.watched[v], inv) {
			p.watched[v] = append(p.watched[v], inv)
		}
	}
	return nil
}

func (p *Plugin) HandleNewPointsToSet(s *pta.Solver, csVar cs.CSVar, delta *pts.Set) error {
	ctx, v := s.CSManager().Var(csVar)
	for _, inv := range p.watched[v] {
		if err := p.bound[inv].handle(s, ctx, inv, v, delta); err != nil {
			return err
		}
	}
	return nil
}

// handleClone makes the result of x.clone() point to the objects of x.
func handleClone(s *pta.Solver, ctx cs.Context, inv *ir.Invoke, _ *ir.Var, delta *pts.Set) error {
	if inv.Result != nil {
		s.AddVarPointsTo(ctx, inv.Result, delta)
	}
	return nil
}

// storeStatic returns a handler that stores the first argument of a call in
// the static field class.field.
func storeStatic(class, field string) Handler {
	return func(s *pta.Solver, ctx cs.Context, inv *ir.Invoke, v *ir.Var, _ *pts.Set) error {
		c := s.Program().Class(class)
		if c == nil || c.Field(field) == nil || !c.Field(field).Static {
			return fmt.Errorf("%s: no static field %s.%s", inv.Site(), class, field)
		}
		csm := s.CSManager()
		s.AddPFGEdge(pfg.Other, csm.CSVar(ctx, v).Pointer(), csm.StaticField(c.Field(field)), ir.Type{})
		return nil
	}
}

// handleArraycopy connects the elements of every source array to the
// elements of every destination array.
func handleArraycopy(s *pta.Solver, ctx cs.Context, inv *ir.Invoke, v *ir.Var, delta *pts.Set) error {
	csm := s.CSManager()
	src, dst := inv.Args[0], inv.Args[2]

	srcObjs, dstObjs := delta, delta
	if v != src {
		srcObjs = s.PointsToSetOf(csm.CSVar(ctx, src).Pointer())
	}
	if v != dst {
		dstObjs = s.PointsToSetOf(csm.CSVar(ctx, dst).Pointer())
	}

	for from := range srcObjs.All() {
		if _, obj := csm.Obj(from); !obj.Type.IsArray() {
			continue
		}
		for to := range dstObjs.All() {
			_, obj := csm.Obj(to)
			if !obj.Type.IsArray() {
				continue
			}
			s.AddPFGEdge(pfg.Other, csm.ArrayIndex(from), csm.ArrayIndex(to), obj.Type.Elem())
		}
	}
	return nil
}

// handleStart calls run() on every new receiver of Thread.start().
func handleStart(s *pta.Solver, ctx cs.Context, inv *ir.Invoke, _ *ir.Var, delta *pts.Set) error {
	csm := s.CSManager()
	site := csm.CSCallSite(ctx, inv)
	hier := s.Hierarchy()

	for recv := range delta.All() {
		_, obj := csm.Obj(recv)
		run := hier.Dispatch(obj.DispatchClass(hier.Root()), "run()")
		if run == nil {
			s.Warn(pta.UnmodeledCall, inv, inv.Site(), fmt.Sprintf("no run() method for thread %s", obj))
			continue
		}

		calleeCtx := s.Selector().SelectInstanceContext(csm, site, recv, run)
		s.AddCallEdge(pta.CallEdge{Kind: ir.CallOther, Site: site, Callee: csm.CSMethod(calleeCtx, run)})
		s.AddVarPointsTo(calleeCtx, run.This, pts.New(recv))
	}
	return nil
}
