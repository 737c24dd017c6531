package pta

import (
	"cmp"

	"github.com/benbjohnson/immutable"

	"github.com/BarrensZeppelin/pta/cs"
)

type handle interface {
	~uint32
}

// handleHasher hashes interned handles for use as keys of persistent maps.
type handleHasher[H handle] struct{}

func (handleHasher[H]) Hash(x H) uint32 {
	// Handles are dense; spread them over the hash space.
	return uint32(x) * 0x9E3779B1
}

func (handleHasher[H]) Equal(a, b H) bool { return a == b }

type handleComparer[H handle] struct{}

func (handleComparer[H]) Compare(a, b H) int { return cmp.Compare(a, b) }

// hashCombine mixes several hash values into one.
func hashCombine(hs ...uint32) (seed uint32) {
	for _, v := range hs {
		seed ^= v + 0x9e3779b9 + (seed << 6) + (seed >> 2)
	}
	return
}

type edgeHasher struct{}

func (edgeHasher) Hash(e CallEdge) uint32 {
	return hashCombine(uint32(e.Kind), uint32(e.Site), uint32(e.Callee))
}

func (edgeHasher) Equal(a, b CallEdge) bool { return a == b }

// edgeComparer orders call edges by call site, then callee, then kind.
type edgeComparer struct{}

func (edgeComparer) Compare(a, b CallEdge) int {
	if c := cmp.Compare(a.Site, b.Site); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Callee, b.Callee); c != 0 {
		return c
	}
	return cmp.Compare(a.Kind, b.Kind)
}

var (
	_ immutable.Hasher[cs.CSMethod]   = handleHasher[cs.CSMethod]{}
	_ immutable.Comparer[cs.CSMethod] = handleComparer[cs.CSMethod]{}
	_ immutable.Hasher[CallEdge]      = edgeHasher{}
	_ immutable.Comparer[CallEdge]    = edgeComparer{}
)
