// Package interval provides a static interval tree over closed genomic ranges.
package interval

import "sort"

// Interval is a closed range [Start, End] carrying a value.
type Interval[T any] struct {
	Start int64
	End   int64
	Value T
}

// Contains reports whether pos lies within the interval.
func (iv Interval[T]) Contains(pos int64) bool {
	return pos >= iv.Start && pos <= iv.End
}

// Tree provides O(log n + k) overlap queries using a sorted-slice approach.
// Intervals are loaded once and never modified after build.
type Tree[T any] struct {
	intervals []Interval[T]
	maxEnd    []int64 // maxEnd[i] = max(End) for intervals[:i+1]
}

// Build creates a tree from a slice of intervals. The input slice is not
// modified.
func Build[T any](intervals []Interval[T]) *Tree[T] {
	if len(intervals) == 0 {
		return &Tree[T]{}
	}

	sorted := make([]Interval[T], len(intervals))
	copy(sorted, intervals)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start < sorted[j].Start
	})

	// Prefix-max array: maxEnd[i] = max(end) for sorted[0..i].
	maxEnd := make([]int64, len(sorted))
	maxEnd[0] = sorted[0].End
	for i := 1; i < len(sorted); i++ {
		maxEnd[i] = max(maxEnd[i-1], sorted[i].End)
	}

	return &Tree[T]{intervals: sorted, maxEnd: maxEnd}
}

// Len returns the number of intervals in the tree.
func (t *Tree[T]) Len() int {
	return len(t.intervals)
}

// FindOverlaps returns all intervals containing pos.
func (t *Tree[T]) FindOverlaps(pos int64) []Interval[T] {
	var result []Interval[T]
	t.visit(pos, func(iv Interval[T]) bool {
		result = append(result, iv)
		return true
	})
	return result
}

// Any reports whether at least one interval contains pos.
func (t *Tree[T]) Any(pos int64) bool {
	found := false
	t.visit(pos, func(Interval[T]) bool {
		found = true
		return false
	})
	return found
}

func (t *Tree[T]) visit(pos int64, fn func(Interval[T]) bool) {
	if len(t.intervals) == 0 {
		return
	}

	// hi is the first index with start > pos; candidates are [0, hi).
	hi := sort.Search(len(t.intervals), func(i int) bool {
		return t.intervals[i].Start > pos
	})

	for i := hi - 1; i >= 0; i-- {
		// No interval in [0, i] reaches pos.
		if t.maxEnd[i] < pos {
			return
		}
		if t.intervals[i].End >= pos {
			if !fn(t.intervals[i]) {
				return
			}
		}
	}
}
