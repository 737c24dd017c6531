// Package pts implements points-to sets over context-sensitive objects.
package pts

import (
	"iter"

	"golang.org/x/tools/container/intsets"

	"github.com/BarrensZeppelin/pta/cs"
)

// Set is a monotonically growing set of context-sensitive objects. The zero
// value is an empty set ready to use.
type Set struct {
	bits intsets.Sparse
}

// New returns a set containing the given objects.
func New(objs ...cs.CSObj) *Set {
	s := &Set{}
	for _, o := range objs {
		s.Add(o)
	}
	return s
}

// Add inserts o and reports whether it was absent.
func (s *Set) Add(o cs.CSObj) bool { return s.bits.Insert(int(o)) }

// AddAll inserts the objects of other into s and returns the objects that
// were not already present. The result is nil when nothing was added.
func (s *Set) AddAll(other *Set) *Set {
	if other == nil || other.IsEmpty() {
		return nil
	}

	diff := &Set{}
	diff.bits.Difference(&other.bits, &s.bits)
	if diff.bits.IsEmpty() {
		return nil
	}

	s.bits.UnionWith(&diff.bits)
	return diff
}

func (s *Set) Contains(o cs.CSObj) bool { return s != nil && s.bits.Has(int(o)) }

func (s *Set) IsEmpty() bool { return s == nil || s.bits.IsEmpty() }

func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return s.bits.Len()
}

// All iterates over the objects of the set in increasing handle order.
func (s *Set) All() iter.Seq[cs.CSObj] {
	return func(yield func(cs.CSObj) bool) {
		if s == nil {
			return
		}

		for x := s.bits.LowerBound(0); x != intsets.MaxInt; x = s.bits.LowerBound(x + 1) {
			if !yield(cs.CSObj(x)) {
				return
			}
		}
	}
}

// Objects returns the objects of the set in increasing handle order.
func (s *Set) Objects() []cs.CSObj {
	if s == nil {
		return nil
	}
	elems := s.bits.AppendTo(nil)
	res := make([]cs.CSObj, len(elems))
	for i, e := range elems {
		res[i] = cs.CSObj(e)
	}
	return res
}

// Filter returns the subset of objects satisfying keep.
func (s *Set) Filter(keep func(cs.CSObj) bool) *Set {
	res := &Set{}
	for o := range s.All() {
		if keep(o) {
			res.Add(o)
		}
	}
	return res
}

func (s *Set) Copy() *Set {
	res := &Set{}
	if s != nil {
		res.bits.Copy(&s.bits)
	}
	return res
}

// Equals reports whether s and other contain the same objects.
func (s *Set) Equals(other *Set) bool {
	switch {
	case s.IsEmpty():
		return other.IsEmpty()
	case other.IsEmpty():
		return false
	}
	return s.bits.Equals(&other.bits)
}

// Intersects reports whether s and other share an object.
func (s *Set) Intersects(other *Set) bool {
	if s.IsEmpty() || other.IsEmpty() {
		return false
	}
	return s.bits.Intersects(&other.bits)
}

// SubsetOf reports whether every object of s is in other.
func (s *Set) SubsetOf(other *Set) bool {
	if s.IsEmpty() {
		return true
	}
	if other.IsEmpty() {
		return false
	}
	return s.bits.SubsetOf(&other.bits)
}
