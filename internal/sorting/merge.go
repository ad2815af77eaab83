package sorting

import "golang.org/x/exp/constraints"

// Merge combines two ascending sequences into a new ascending sequence of
// length len(left)+len(right). On ties the element from left is emitted
// first. Neither input is modified.
//
// The result is unspecified if either input is not sorted.
func Merge[T constraints.Ordered](left, right []T) []T {
	out := make([]T, len(left)+len(right))
	mergeInto(out, left, right)
	return out
}

// mergeInto writes the merge of left and right into dst, which must have
// room for exactly len(left)+len(right) elements and must not overlap either
// input.
func mergeInto[T constraints.Ordered](dst, left, right []T) {
	i, j, k := 0, 0, 0
	for i < len(left) && j < len(right) {
		if left[i] <= right[j] {
			dst[k] = left[i]
			i++
		} else {
			dst[k] = right[j]
			j++
		}
		k++
	}
	k += copy(dst[k:], left[i:])
	copy(dst[k:], right[j:])
}

// MergeSort returns an ascending, stable copy of in. It runs bottom-up on two
// ping-pong buffers, so stack depth does not grow with the input length.
func MergeSort[T constraints.Ordered](in []T) []T {
	n := len(in)
	src := make([]T, n)
	copy(src, in)
	if n < 2 {
		return src
	}

	dst := make([]T, n)
	for width := 1; width < n; width *= 2 {
		for lo := 0; lo < n; lo += 2 * width {
			mid := min(lo+width, n)
			hi := min(lo+2*width, n)
			mergeInto(dst[lo:hi], src[lo:mid], src[mid:hi])
		}
		src, dst = dst, src
	}
	return src
}
