package alloc

// Admit applies the traffic-allocation gate. A draw r in [0, 100) admits the
// visitor unless r > allocation. Allocations at or below 0 never admit and
// allocations at or above 100 always do.
func Admit(allocation int, src Source) bool {
	switch {
	case allocation <= 0:
		return false
	case allocation >= 100:
		return true
	}
	r := src.Float64() * 100
	return r <= float64(allocation)
}

// WeightedPick chooses an index with probability weight/total over positive
// weights. Zero or negative weights are never chosen while any weight is
// positive. When no weight is positive the pick is uniform over all entries.
// It returns -1 for an empty slice.
func WeightedPick(weights []int, src Source) int {
	if len(weights) == 0 {
		return -1
	}

	total := 0
	last := -1
	for i, w := range weights {
		if w > 0 {
			total += w
			last = i
		}
	}

	if total == 0 {
		idx := int(src.Float64() * float64(len(weights)))
		return min(idx, len(weights)-1)
	}

	r := src.Float64() * float64(total)
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		r -= float64(w)
		if r <= 0 {
			return i
		}
	}
	// float rounding on the last bucket
	return last
}
