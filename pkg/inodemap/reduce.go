package inodemap

// Reduce removes every entry of m whose collection has exactly one member and returns the
// number removed. Keys are collected first and deleted afterwards.
func Reduce[M ~map[K]S, K comparable, S ~[]E, E any](m M) int {
	var singles []K
	for k, v := range m {
		if len(v) == 1 {
			singles = append(singles, k)
		}
	}

	for _, k := range singles {
		delete(m, k)
	}

	return len(singles)
}
