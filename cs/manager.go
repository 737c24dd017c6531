package cs

import (
	"fmt"

	"github.com/BarrensZeppelin/pta/ir"
)

// Pointer identifies a node of the pointer flow graph: a context-qualified
// variable, a static field, an instance field of a context-qualified object
// or the elements of a context-qualified array object.
type Pointer uint32

type PointerKind uint8

const (
	VarPointer PointerKind = iota
	StaticFieldPointer
	InstanceFieldPointer
	ArrayIndexPointer
)

func (k PointerKind) String() string {
	switch k {
	case VarPointer:
		return "var"
	case StaticFieldPointer:
		return "static-field"
	case InstanceFieldPointer:
		return "instance-field"
	case ArrayIndexPointer:
		return "array-index"
	}
	return "?"
}

// CSVar is a variable in a context. Every CSVar is also a Pointer.
type CSVar Pointer

func (v CSVar) Pointer() Pointer { return Pointer(v) }

// CSObj is an abstract object in a heap context.
type CSObj uint32

// CSCallSite is a call site in a context.
type CSCallSite uint32

// CSMethod is a method in a context.
type CSMethod uint32

type pointerInfo struct {
	kind  PointerKind
	ctx   Context
	v     *ir.Var
	field *ir.Field
	base  CSObj
}

type (
	varKey struct {
		ctx Context
		v   *ir.Var
	}
	objKey struct {
		ctx Context
		o   *ir.Obj
	}
	siteKey struct {
		ctx  Context
		site *ir.Invoke
	}
	methodKey struct {
		ctx Context
		m   *ir.Method
	}
	fieldKey struct {
		base  CSObj
		field *ir.Field
	}
)

type csObj struct {
	ctx Context
	obj *ir.Obj
}

type csCallSite struct {
	ctx  Context
	site *ir.Invoke
}

type csMethod struct {
	ctx    Context
	method *ir.Method
}

// Manager interns context-qualified elements. Handles are dense indices
// into arenas owned by the manager, assigned in creation order. Interning
// the same (context, element) pair twice returns the same handle.
type Manager struct {
	contexts *ContextTable

	pointers []pointerInfo
	objs     []csObj
	sites    []csCallSite
	methods  []csMethod

	varIndex    map[varKey]CSVar
	objIndex    map[objKey]CSObj
	siteIndex   map[siteKey]CSCallSite
	methodIndex map[methodKey]CSMethod
	staticIndex map[*ir.Field]Pointer
	fieldIndex  map[fieldKey]Pointer
	arrayIndex  map[CSObj]Pointer
	varsOf      map[*ir.Var][]CSVar
	methodsOf   map[*ir.Method][]CSMethod
	objsOf      map[*ir.Obj][]CSObj
}

func NewManager() *Manager {
	return &Manager{
		contexts:    NewContextTable(),
		varIndex:    make(map[varKey]CSVar),
		objIndex:    make(map[objKey]CSObj),
		siteIndex:   make(map[siteKey]CSCallSite),
		methodIndex: make(map[methodKey]CSMethod),
		staticIndex: make(map[*ir.Field]Pointer),
		fieldIndex:  make(map[fieldKey]Pointer),
		arrayIndex:  make(map[CSObj]Pointer),
		varsOf:      make(map[*ir.Var][]CSVar),
		methodsOf:   make(map[*ir.Method][]CSMethod),
		objsOf:      make(map[*ir.Obj][]CSObj),
	}
}

// Contexts returns the table interning the contexts of this manager.
func (m *Manager) Contexts() *ContextTable { return m.contexts }

func (m *Manager) newPointer(info pointerInfo) Pointer {
	p := Pointer(len(m.pointers))
	m.pointers = append(m.pointers, info)
	return p
}

// CSVar returns the handle of variable v in context ctx.
func (m *Manager) CSVar(ctx Context, v *ir.Var) CSVar {
	key := varKey{ctx, v}
	if cv, found := m.varIndex[key]; found {
		return cv
	}

	cv := CSVar(m.newPointer(pointerInfo{kind: VarPointer, ctx: ctx, v: v}))
	m.varIndex[key] = cv
	m.varsOf[v] = append(m.varsOf[v], cv)
	return cv
}

// LookupCSVar returns the handle of v in ctx if it has been created.
func (m *Manager) LookupCSVar(ctx Context, v *ir.Var) (CSVar, bool) {
	cv, found := m.varIndex[varKey{ctx, v}]
	return cv, found
}

// VarsOf returns the contexts in which v has been interned.
func (m *Manager) VarsOf(v *ir.Var) []CSVar { return m.varsOf[v] }

// Var returns the context and variable of a CSVar.
func (m *Manager) Var(cv CSVar) (Context, *ir.Var) {
	info := &m.pointers[cv]
	return info.ctx, info.v
}

// CSObj returns the handle of object o in heap context ctx.
func (m *Manager) CSObj(ctx Context, o *ir.Obj) CSObj {
	key := objKey{ctx, o}
	if co, found := m.objIndex[key]; found {
		return co
	}

	co := CSObj(len(m.objs))
	m.objs = append(m.objs, csObj{ctx, o})
	m.objIndex[key] = co
	m.objsOf[o] = append(m.objsOf[o], co)
	return co
}

// Obj returns the heap context and object of a CSObj.
func (m *Manager) Obj(co CSObj) (Context, *ir.Obj) {
	info := &m.objs[co]
	return info.ctx, info.obj
}

// ObjsOf returns the heap contexts in which o has been interned.
func (m *Manager) ObjsOf(o *ir.Obj) []CSObj { return m.objsOf[o] }

// CSCallSite returns the handle of call site s in context ctx.
func (m *Manager) CSCallSite(ctx Context, s *ir.Invoke) CSCallSite {
	key := siteKey{ctx, s}
	if cs, found := m.siteIndex[key]; found {
		return cs
	}

	cs := CSCallSite(len(m.sites))
	m.sites = append(m.sites, csCallSite{ctx, s})
	m.siteIndex[key] = cs
	return cs
}

// CallSite returns the context and call site of a CSCallSite.
func (m *Manager) CallSite(cs CSCallSite) (Context, *ir.Invoke) {
	info := &m.sites[cs]
	return info.ctx, info.site
}

// CSMethod returns the handle of method mt in context ctx.
func (m *Manager) CSMethod(ctx Context, mt *ir.Method) CSMethod {
	key := methodKey{ctx, mt}
	if cm, found := m.methodIndex[key]; found {
		return cm
	}

	cm := CSMethod(len(m.methods))
	m.methods = append(m.methods, csMethod{ctx, mt})
	m.methodIndex[key] = cm
	m.methodsOf[mt] = append(m.methodsOf[mt], cm)
	return cm
}

// Method returns the context and method of a CSMethod.
func (m *Manager) Method(cm CSMethod) (Context, *ir.Method) {
	info := &m.methods[cm]
	return info.ctx, info.method
}

// MethodsOf returns the contexts in which mt has been interned.
func (m *Manager) MethodsOf(mt *ir.Method) []CSMethod { return m.methodsOf[mt] }

// StaticField returns the pointer for a static field. Static fields are not
// qualified by a context.
func (m *Manager) StaticField(f *ir.Field) Pointer {
	if p, found := m.staticIndex[f]; found {
		return p
	}

	p := m.newPointer(pointerInfo{kind: StaticFieldPointer, field: f})
	m.staticIndex[f] = p
	return p
}

// InstanceField returns the pointer for field f of object base.
func (m *Manager) InstanceField(base CSObj, f *ir.Field) Pointer {
	key := fieldKey{base, f}
	if p, found := m.fieldIndex[key]; found {
		return p
	}

	p := m.newPointer(pointerInfo{kind: InstanceFieldPointer, field: f, base: base})
	m.fieldIndex[key] = p
	return p
}

// ArrayIndex returns the pointer for the elements of array object base.
func (m *Manager) ArrayIndex(base CSObj) Pointer {
	if p, found := m.arrayIndex[base]; found {
		return p
	}

	p := m.newPointer(pointerInfo{kind: ArrayIndexPointer, base: base})
	m.arrayIndex[base] = p
	return p
}

// LookupStaticField returns the pointer of static field f if it exists.
func (m *Manager) LookupStaticField(f *ir.Field) (Pointer, bool) {
	p, found := m.staticIndex[f]
	return p, found
}

// LookupInstanceField returns the pointer of field f of base if it exists.
func (m *Manager) LookupInstanceField(base CSObj, f *ir.Field) (Pointer, bool) {
	p, found := m.fieldIndex[fieldKey{base, f}]
	return p, found
}

// LookupArrayIndex returns the element pointer of array object base if it
// exists.
func (m *Manager) LookupArrayIndex(base CSObj) (Pointer, bool) {
	p, found := m.arrayIndex[base]
	return p, found
}

func (m *Manager) Kind(p Pointer) PointerKind { return m.pointers[p].kind }

// AsVar returns the CSVar denoted by p, if p is a variable pointer.
func (m *Manager) AsVar(p Pointer) (CSVar, bool) {
	return CSVar(p), m.pointers[p].kind == VarPointer
}

// Base returns the object owning an instance field or array index pointer.
func (m *Manager) Base(p Pointer) CSObj { return m.pointers[p].base }

// Field returns the field of a static or instance field pointer.
func (m *Manager) Field(p Pointer) *ir.Field { return m.pointers[p].field }

// Stats reports the number of interned elements of each kind.
type Stats struct {
	Contexts, Pointers, Vars, Objs, CallSites, Methods int
}

func (m *Manager) Stats() Stats {
	return Stats{
		Contexts:  m.contexts.Size(),
		Pointers:  len(m.pointers),
		Vars:      len(m.varIndex),
		Objs:      len(m.objs),
		CallSites: len(m.sites),
		Methods:   len(m.methods),
	}
}

func (m *Manager) NumPointers() int { return len(m.pointers) }
func (m *Manager) NumObjs() int     { return len(m.objs) }

func (m *Manager) ObjString(co CSObj) string {
	ctx, o := m.Obj(co)
	return m.contexts.String(ctx) + ":" + o.String()
}

func (m *Manager) MethodString(cm CSMethod) string {
	ctx, mt := m.Method(cm)
	return m.contexts.String(ctx) + ":" + mt.Signature()
}

func (m *Manager) CallSiteString(cs CSCallSite) string {
	ctx, s := m.CallSite(cs)
	return m.contexts.String(ctx) + ":" + s.Site()
}

func (m *Manager) PointerString(p Pointer) string {
	info := &m.pointers[p]
	switch info.kind {
	case VarPointer:
		return m.contexts.String(info.ctx) + ":" + info.v.String()
	case StaticFieldPointer:
		return info.field.String()
	case InstanceFieldPointer:
		return m.ObjString(info.base) + "." + info.field.Name
	case ArrayIndexPointer:
		return m.ObjString(info.base) + "[*]"
	}
	return fmt.Sprintf("pointer#%d", p)
}
