// Package invokedynamic models method handles created through
// MethodHandles.Lookup and invoked with invoke or invokeExact.
//
// A handle is represented by a mock object per resolved method. Calls
// through a handle produce call edges of kind ir.CallOther whose arguments,
// receiver and return values are connected by the plugin.
package invokedynamic

import (
	"fmt"
	"slices"

	"github.com/BarrensZeppelin/pta"
	"github.com/BarrensZeppelin/pta/cs"
	"github.com/BarrensZeppelin/pta/ir"
	"github.com/BarrensZeppelin/pta/pfg"
	"github.com/BarrensZeppelin/pta/pts"
)

// HandleKind is the lookup operation that produced a method handle.
type HandleKind uint8

const (
	Virtual HandleKind = iota
	Static
	Constructor
)

func (k HandleKind) String() string {
	switch k {
	case Virtual:
		return "virtual"
	case Static:
		return "static"
	case Constructor:
		return "constructor"
	}
	return fmt.Sprintf("HandleKind(%d)", k)
}

// Handle is the payload of method handle mock objects.
type Handle struct {
	Kind   HandleKind
	Method *ir.Method
}

func (h Handle) String() string { return h.Kind.String() + " " + h.Method.Signature() }

const (
	handleDesc   = "MethodHandle"
	instanceDesc = "NewInstance"
)

var lookups = map[ir.Subsignature]HandleKind{
	"findVirtual(java.lang.Class,java.lang.String,java.lang.invoke.MethodType)": Virtual,
	"findStatic(java.lang.Class,java.lang.String,java.lang.invoke.MethodType)":  Static,
	"findConstructor(java.lang.Class,java.lang.invoke.MethodType)":              Constructor,
}

// Plugin tracks lookup calls and dynamic calls of method handles.
type Plugin struct {
	// Lookup calls and their kinds.
	finds map[*ir.Invoke]HandleKind
	// Dynamic invoke and invokeExact calls.
	calls   map[*ir.Invoke]bool
	watched map[*ir.Var][]*ir.Invoke
	handles map[*ir.Obj]Handle
}

var _ pta.Plugin = (*Plugin)(nil)

func New() *Plugin {
	return &Plugin{
		finds:   make(map[*ir.Invoke]HandleKind),
		calls:   make(map[*ir.Invoke]bool),
		watched: make(map[*ir.Var][]*ir.Invoke),
		handles: make(map[*ir.Obj]Handle),
	}
}

func (p *Plugin) watch(inv *ir.Invoke, vs ...*ir.Var) {
	for _, v := range vs {
		if v != nil && !slices.Contains(p.watched[v], inv) {
			p.watched[v] = append(p.watched[v], inv)
		}
	}
}

func (p *Plugin) IsRelevantVar(v *ir.Var) bool {
	_, found := p.watched[v]
	return found
}

func (p *Plugin) HandleNewInvoke(s *pta.Solver, inv *ir.Invoke) error {
	switch inv.Kind {
	case ir.CallDynamic:
		if inv.Ref.Class == nil || inv.Ref.Class.Name != ir.MethodHandleClass {
			return nil
		}
		if name := inv.Ref.Sub.Name(); name != "invoke" && name != "invokeExact" {
			return nil
		}
		p.calls[inv] = true
		p.watch(inv, inv.Base)
		if len(inv.Args) > 0 {
			// Receivers of virtual handles.
			p.watch(inv, inv.Args[0])
		}

	case ir.CallVirtual:
		target := s.Hierarchy().Resolve(inv.Ref)
		if target == nil || target.Class.Name != ir.LookupClass {
			return nil
		}
		kind, found := lookups[target.Sub]
		if !found || inv.Result == nil {
			return nil
		}
		p.finds[inv] = kind
		p.watch(inv, inv.Args...)
	}
	return nil
}

func (p *Plugin) HandleNewPointsToSet(s *pta.Solver, csVar cs.CSVar, _ *pts.Set) error {
	ctx, v := s.CSManager().Var(csVar)
	for _, inv := range p.watched[v] {
		if kind, found := p.finds[inv]; found {
			p.lookup(s, ctx, inv, kind)
		} else if p.calls[inv] {
			p.invoke(s, ctx, inv)
		}
	}
	return nil
}

func objects(s *pta.Solver, ctx cs.Context, v *ir.Var) []*ir.Obj {
	csm := s.CSManager()
	var res []*ir.Obj
	for o := range s.PointsToSetOf(csm.CSVar(ctx, v).Pointer()).All() {
		_, obj := csm.Obj(o)
		res = append(res, obj)
	}
	return res
}

// lookup creates handles for the methods denoted by the class literals and
// method names reaching a lookup call.
func (p *Plugin) lookup(s *pta.Solver, ctx cs.Context, inv *ir.Invoke, kind HandleKind) {
	names := []string{ir.InitName}
	if kind != Constructor {
		names = nil
		for _, o := range objects(s, ctx, inv.Args[1]) {
			if name, ok := o.StringValue(); ok {
				names = append(names, name)
			}
		}
	}

	handleType := ir.ClassType(s.Program().Class(ir.MethodHandleClass))
	csm := s.CSManager()

	for _, o := range objects(s, ctx, inv.Args[0]) {
		class, ok := o.ClassValue()
		if !ok {
			continue
		}
		for _, name := range names {
			methods := candidates(class, name, kind)
			if len(methods) == 0 {
				s.Warn(pta.UnmodeledCall, [3]any{inv, class, name}, inv.Site(),
					fmt.Sprintf("no %s method %s in %s", kind, name, class))
				continue
			}

			for _, m := range methods {
				h := Handle{kind, m}
				obj := s.HeapModel().MockObj(handleDesc, h, handleType, inv.Container)
				p.handles[obj] = h
				s.AddVarPointsTo(ctx, inv.Result, pts.New(csm.CSObj(cs.Empty, obj)))
			}
		}
	}
}

// candidates returns the methods a lookup of name in class may denote.
// Virtual lookups also consider inherited methods.
func candidates(class *ir.Class, name string, kind HandleKind) []*ir.Method {
	var res []*ir.Method
	seen := map[ir.Subsignature]bool{}
	for k := class; k != nil; k = k.Super {
		for _, m := range k.Methods() {
			if m.Name != name || m.Static != (kind == Static) || seen[m.Sub] {
				continue
			}
			seen[m.Sub] = true
			res = append(res, m)
		}
		if kind != Virtual {
			break
		}
	}
	return res
}

// invoke connects a dynamic call to the targets of the handles reaching its
// base variable.
func (p *Plugin) invoke(s *pta.Solver, ctx cs.Context, inv *ir.Invoke) {
	csm := s.CSManager()
	site := csm.CSCallSite(ctx, inv)

	for _, o := range objects(s, ctx, inv.Base) {
		h, found := p.handles[o]
		if !found {
			continue
		}

		m := h.Method
		args := inv.Args
		if h.Kind == Virtual {
			if len(args) == 0 {
				p.arityWarning(s, inv, h)
				continue
			}
			args = args[1:]
		}
		if len(args) != len(m.Params) {
			p.arityWarning(s, inv, h)
			continue
		}

		switch h.Kind {
		case Static:
			calleeCtx := s.Selector().SelectContext(csm, site, m)
			p.call(s, site, calleeCtx, m, args)

		case Virtual:
			hier := s.Hierarchy()
			recvs := s.PointsToSetOf(csm.CSVar(ctx, inv.Args[0]).Pointer())
			for recv := range recvs.All() {
				_, obj := csm.Obj(recv)
				target := hier.Dispatch(obj.DispatchClass(hier.Root()), m.Sub)
				if target == nil || !hier.IsSubtype(obj.Type, ir.ClassType(m.Class)) {
					continue
				}

				calleeCtx := s.Selector().SelectInstanceContext(csm, site, recv, target)
				p.call(s, site, calleeCtx, target, args)
				s.AddVarPointsTo(calleeCtx, target.This, pts.New(recv))
			}

		case Constructor:
			callerCtx, _ := csm.CallSite(site)
			caller := csm.CSMethod(callerCtx, inv.Container)
			inst := s.HeapModel().MockObj(instanceDesc, inv, ir.ClassType(m.Class), inv.Container)
			recv := csm.CSObj(s.Selector().SelectHeapContext(csm, caller, inst), inst)

			calleeCtx := s.Selector().SelectInstanceContext(csm, site, recv, m)
			p.call(s, site, calleeCtx, m, args)
			s.AddVarPointsTo(calleeCtx, m.This, pts.New(recv))
			if inv.Result != nil {
				s.AddVarPointsTo(ctx, inv.Result, pts.New(recv))
			}
		}
	}
}

func (p *Plugin) arityWarning(s *pta.Solver, inv *ir.Invoke, h Handle) {
	s.Warn(pta.UnmodeledCall, [2]any{inv, h.Method}, inv.Site(),
		fmt.Sprintf("%d arguments do not match method handle %s", len(inv.Args), h))
}

// call adds a call edge from site to m and passes args, return values and
// exceptions.
func (p *Plugin) call(s *pta.Solver, site cs.CSCallSite, calleeCtx cs.Context, m *ir.Method, args []*ir.Var) {
	csm := s.CSManager()
	callerCtx, inv := csm.CallSite(site)
	s.AddCallEdge(pta.CallEdge{Kind: ir.CallOther, Site: site, Callee: csm.CSMethod(calleeCtx, m)})

	caller := func(v *ir.Var) cs.Pointer { return csm.CSVar(callerCtx, v).Pointer() }
	callee := func(v *ir.Var) cs.Pointer { return csm.CSVar(calleeCtx, v).Pointer() }

	for i, arg := range args {
		s.AddPFGEdge(pfg.ParameterPassing, caller(arg), callee(m.ParamVars[i]), ir.Type{})
	}
	if inv.Result != nil && m.Name != ir.InitName {
		for _, ret := range m.ReturnVars {
			s.AddPFGEdge(pfg.Return, callee(ret), caller(inv.Result), ir.Type{})
		}
	}

	catch := inv.Catch
	if catch == nil {
		catch = inv.Container.Exception
	}
	s.AddPFGEdge(pfg.Exception, callee(m.Exception), caller(catch), ir.Type{})
}
