package cs

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/BarrensZeppelin/pta/ir"
)

// Variant is the kind of context abstraction used by a Selector.
type Variant uint8

const (
	// All methods and objects are analysed in the empty context.
	Insensitive Variant = iota
	// Contexts are the most recent call sites.
	CallSite
	// Contexts are receiver object allocation sites.
	Object
	// Contexts are the classes containing receiver allocation sites.
	Type
)

func (v Variant) String() string {
	switch v {
	case Insensitive:
		return "ci"
	case CallSite:
		return "call"
	case Object:
		return "obj"
	case Type:
		return "type"
	}
	return "?"
}

// Selector is a context selection policy. K bounds the length of method
// contexts and HK the length of heap contexts.
type Selector struct {
	Variant Variant
	K, HK   int
}

// CI is the context-insensitive selector.
var CI = Selector{Variant: Insensitive}

// KCallSite, KObject and KType return selectors with the given method context
// depth and a heap context depth of k-1.
func KCallSite(k int) Selector { return Selector{CallSite, k, k - 1} }
func KObject(k int) Selector   { return Selector{Object, k, k - 1} }
func KType(k int) Selector     { return Selector{Type, k, k - 1} }

var selectorRe = regexp.MustCompile(`^(\d+)-(call|obj|type)(?:\+(\d+)h)?$`)

// ParseSelector parses selector names such as "ci", "2-call", "1-obj",
// "2-type" and "2-obj+2h". The optional "+Nh" suffix overrides the heap
// context depth.
func ParseSelector(s string) (Selector, error) {
	if s == "ci" || s == "insens" {
		return CI, nil
	}

	match := selectorRe.FindStringSubmatch(s)
	if match == nil {
		return Selector{}, fmt.Errorf("invalid context selector %q", s)
	}

	k, _ := strconv.Atoi(match[1])
	if k < 1 {
		return Selector{}, fmt.Errorf("invalid context selector %q: depth must be positive", s)
	}

	sel := Selector{K: k, HK: k - 1}
	switch match[2] {
	case "call":
		sel.Variant = CallSite
	case "obj":
		sel.Variant = Object
	case "type":
		sel.Variant = Type
	}

	if match[3] != "" {
		sel.HK, _ = strconv.Atoi(match[3])
		if sel.HK > k {
			return Selector{}, fmt.Errorf("invalid context selector %q: heap depth exceeds %d", s, k)
		}
	}
	return sel, nil
}

func (s Selector) String() string {
	if s.Variant == Insensitive {
		return "ci"
	}

	res := fmt.Sprintf("%d-%s", s.K, s.Variant)
	if s.HK != s.K-1 {
		res += fmt.Sprintf("+%dh", s.HK)
	}
	return res
}

// SelectContext returns the context of callee for a call without receiver
// (static calls) made at site.
func (s Selector) SelectContext(m *Manager, site CSCallSite, callee *ir.Method) Context {
	callerCtx, invoke := m.CallSite(site)
	switch s.Variant {
	case CallSite:
		return m.contexts.Append(callerCtx, invoke, s.K)
	case Object, Type:
		return callerCtx
	default:
		return Empty
	}
}

// SelectInstanceContext returns the context of callee for a call made at
// site on the receiver object recv.
func (s Selector) SelectInstanceContext(m *Manager, site CSCallSite, recv CSObj, callee *ir.Method) Context {
	switch s.Variant {
	case CallSite:
		return s.SelectContext(m, site, callee)
	case Object:
		heapCtx, obj := m.Obj(recv)
		return m.contexts.Append(heapCtx, obj, s.K)
	case Type:
		heapCtx, obj := m.Obj(recv)
		return m.contexts.Append(heapCtx, AllocationType(obj), s.K)
	default:
		return Empty
	}
}

// SelectHeapContext returns the heap context of obj allocated in method.
func (s Selector) SelectHeapContext(m *Manager, method CSMethod, obj *ir.Obj) Context {
	if s.Variant == Insensitive {
		return Empty
	}
	ctx, _ := m.Method(method)
	return m.contexts.Truncate(ctx, s.HK)
}

// AllocationType returns the type element used by type-sensitive contexts
// for obj: the class declaring the method that allocates it, or the class of
// the object itself when it has no allocating method.
func AllocationType(obj *ir.Obj) *ir.Class {
	if obj.Method != nil {
		return obj.Method.Class
	}
	return obj.Type.Class
}
