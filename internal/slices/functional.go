package slices

func Map[L ~[]X, X, Y any](l L, f func(X) Y) []Y {
	r := make([]Y, len(l))
	for i, x := range l {
		r[i] = f(x)
	}
	return r
}

// Uniq returns the elements of l without duplicates, in order of first
// occurrence.
func Uniq[L ~[]E, E comparable](l L) L {
	seen := make(map[E]bool, len(l))
	var r L
	for _, x := range l {
		if !seen[x] {
			seen[x] = true
			r = append(r, x)
		}
	}
	return r
}
