package ir

import (
	"github.com/puzpuzpuz/xsync/v4"
)

// Hierarchy is the class-hierarchy query surface used by the solver.
type Hierarchy interface {
	// IsSubtype reports whether values of type sub can be stored in
	// locations of type super. The zero type is a supertype of everything.
	IsSubtype(sub, super Type) bool
	// Dispatch resolves the method invoked by a virtual call of sub on a
	// receiver whose run-time class is class. It returns nil if no concrete
	// implementation exists.
	Dispatch(class *Class, sub Subsignature) *Method
	// Resolve returns the target of a statically bound (static or special)
	// method reference, or nil.
	Resolve(ref MethodRef) *Method
	// Root returns the class at the top of the hierarchy, if declared.
	Root() *Class
}

type dispatchKey struct {
	class *Class
	sub   Subsignature
}

type subtypeKey struct{ sub, super *Class }

// ClassHierarchy answers hierarchy queries over a Program. Results are
// memoized in concurrent maps, so one ClassHierarchy may be shared by several
// analyses running in parallel on the same program.
type ClassHierarchy struct {
	prog *Program
	root *Class

	dispatchCache *xsync.Map[dispatchKey, *Method]
	subtypeCache  *xsync.Map[subtypeKey, bool]
}

var _ Hierarchy = (*ClassHierarchy)(nil)

func NewClassHierarchy(prog *Program) *ClassHierarchy {
	return &ClassHierarchy{
		prog:          prog,
		root:          prog.Class(ObjectClass),
		dispatchCache: xsync.NewMap[dispatchKey, *Method](),
		subtypeCache:  xsync.NewMap[subtypeKey, bool](),
	}
}

func (h *ClassHierarchy) Root() *Class { return h.root }

func (h *ClassHierarchy) IsSubtype(sub, super Type) bool {
	switch {
	case super.IsZero():
		return true
	case sub.IsZero():
		return false
	case super.Class == h.root && super.Dims < sub.Dims:
		// Every array is an Object.
		return true
	case super.Class == h.root && super.Dims == sub.Dims:
		return !sub.Class.Primitive
	case sub.Dims != super.Dims:
		return false
	default:
		return h.isSubclass(sub.Class, super.Class)
	}
}

func (h *ClassHierarchy) isSubclass(sub, super *Class) bool {
	if sub == super {
		return true
	}

	key := subtypeKey{sub, super}
	if res, found := h.subtypeCache.Load(key); found {
		return res
	}

	res := false
	for _, s := range sub.Supertypes() {
		if h.isSubclass(s, super) {
			res = true
			break
		}
	}

	h.subtypeCache.Store(key, res)
	return res
}

func (h *ClassHierarchy) Dispatch(class *Class, sub Subsignature) *Method {
	if class == nil {
		return nil
	}

	key := dispatchKey{class, sub}
	if m, found := h.dispatchCache.Load(key); found {
		return m
	}

	var target *Method
	for k := class; k != nil; k = k.Super {
		if m := k.DeclaredMethod(sub); m != nil && !m.Abstract && !m.Static {
			target = m
			break
		}
	}

	m, _ := h.dispatchCache.LoadOrStore(key, target)
	return m
}

func (h *ClassHierarchy) Resolve(ref MethodRef) *Method {
	if ref.Class == nil {
		return nil
	}

	var queue []*Class
	for k := ref.Class; k != nil; k = k.Super {
		if m := k.DeclaredMethod(ref.Sub); m != nil {
			return m
		}
		queue = append(queue, k.Interfaces...)
	}

	// Search superinterfaces breadth-first.
	seen := map[*Class]bool{}
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		if seen[i] {
			continue
		}
		seen[i] = true
		if m := i.DeclaredMethod(ref.Sub); m != nil {
			return m
		}
		queue = append(queue, i.Interfaces...)
	}
	return nil
}

// DeclaresSubsignature reports whether any class of the program declares a
// method with the given subsignature.
func (h *ClassHierarchy) DeclaresSubsignature(sub Subsignature) bool {
	for _, c := range h.prog.classes {
		if c.DeclaredMethod(sub) != nil {
			return true
		}
	}
	return false
}
