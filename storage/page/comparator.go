package page

// Comparator imposes the tree's total order: negative if a < b, zero if
// equal, positive if a > b. Supplied once at construction and threaded
// through every node primitive that needs to place a key.
type Comparator[K any] func(a, b K) int

// lowerBound returns the smallest index i in [0, n) such that
// probe(i) >= 0 (i.e. at(i) >= the search key), or n if every element
// is smaller. probe must be non-decreasing over [0, n) for the
// bisection to be valid, which holds whenever the underlying slice is
// sorted ascending by the same comparator.
func lowerBound(n int, probe func(i int) int) int {
	lo, hi := 0, n
	for lo < hi {
		mid := (lo + hi) / 2
		if probe(mid) >= 0 {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo
}

// upperBound returns the smallest index i in [0, n) such that
// probe(i) > 0, or n if no such index exists. Used by ChildFor to find
// the count of separators <= the search key.
func upperBound(n int, probe func(i int) int) int {
	lo, hi := 0, n
	for lo < hi {
		mid := (lo + hi) / 2
		if probe(mid) > 0 {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo
}
