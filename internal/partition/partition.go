package partition

// Sizes returns the length of each of k contiguous parts of a sequence of
// total elements. The remainder total%k goes to the earliest parts, one
// element each, so sizes never differ by more than one.
//
// Returns nil when k <= 0 or total < 0.
//
// Example:
//
//	Sizes(10, 3) // [4 3 3]
//	Sizes(2, 4)  // [1 1 0 0]
func Sizes(total, k int) []int {
	if k <= 0 || total < 0 {
		return nil
	}
	base, extra := total/k, total%k
	sizes := make([]int, k)
	for i := range sizes {
		sizes[i] = base
		if i < extra {
			sizes[i]++
		}
	}
	return sizes
}

// Bounds describes one part as the half-open interval [Start, End) of the
// input sequence.
type Bounds struct {
	Index int // Position of the part in assignment order
	Start int // First element, inclusive
	End   int // Last element, exclusive
}

// Len returns the number of elements covered by the part.
func (b Bounds) Len() int { return b.End - b.Start }

// Plan computes the bounds of every part for a sequence of total elements
// split k ways. Concatenating the parts in order covers [0, total) exactly.
func Plan(total, k int) []Bounds {
	sizes := Sizes(total, k)
	if sizes == nil {
		return nil
	}
	bounds := make([]Bounds, len(sizes))
	start := 0
	for i, n := range sizes {
		bounds[i] = Bounds{Index: i, Start: start, End: start + n}
		start += n
	}
	return bounds
}

// Split cuts s into k contiguous parts following Plan. The parts alias s;
// callers that hand a part to another goroutine must not mutate s meanwhile.
// Empty parts are returned as zero-length slices, not dropped.
func Split[T any](s []T, k int) [][]T {
	bounds := Plan(len(s), k)
	if bounds == nil {
		return nil
	}
	parts := make([][]T, len(bounds))
	for _, b := range bounds {
		parts[b.Index] = s[b.Start:b.End:b.End]
	}
	return parts
}
