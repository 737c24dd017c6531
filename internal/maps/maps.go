package maps

import (
	"cmp"
	"slices"
)

func FromKeys[L ~[]K, K comparable](l L) map[K]struct{} {
	res := make(map[K]struct{}, len(l))
	for _, key := range l {
		res[key] = struct{}{}
	}
	return res
}

// SortedKeys returns the keys of m in ascending order.
func SortedKeys[M ~map[K]V, K cmp.Ordered, V any](m M) []K {
	keys := make([]K, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}
