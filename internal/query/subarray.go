package query

import (
	"fmt"

	"github.com/soltixdb/gridstore/internal/schema"
)

// Range is a closed interval along one dimension
type Range[T schema.Coord] struct {
	Lo, Hi T
}

// Subarray is the query region: an ordered list of one or more ranges per
// dimension. The Cartesian product of the per-dimension lists yields the
// ranges of the query.
type Subarray[T schema.Coord] struct {
	dom    *schema.Domain[T]
	ranges [][]Range[T] // one list per dimension
}

// NewSubarray creates an empty subarray over the domain
func NewSubarray[T schema.Coord](dom *schema.Domain[T]) *Subarray[T] {
	return &Subarray[T]{
		dom:    dom,
		ranges: make([][]Range[T], dom.DimNum()),
	}
}

// AddRange appends a range on one dimension. The range must lie inside the
// dimension's domain.
func (s *Subarray[T]) AddRange(dim int, lo, hi T) error {
	if dim < 0 || dim >= s.dom.DimNum() {
		return fmt.Errorf("%w: dimension %d out of range", ErrInvalidRange, dim)
	}
	if lo > hi {
		return fmt.Errorf("%w: low %v exceeds high %v", ErrInvalidRange, lo, hi)
	}
	d := s.dom.Dims()[dim]
	if lo < d.Domain[0] || hi > d.Domain[1] {
		return fmt.Errorf("%w: [%v, %v] outside domain of %s", ErrInvalidRange, lo, hi, d.Name)
	}
	s.ranges[dim] = append(s.ranges[dim], Range[T]{Lo: lo, Hi: hi})
	return nil
}

// FillDefault adds the full domain on every dimension that has no range
func (s *Subarray[T]) FillDefault() {
	for i, d := range s.dom.Dims() {
		if len(s.ranges[i]) == 0 {
			s.ranges[i] = append(s.ranges[i], Range[T]{Lo: d.Domain[0], Hi: d.Domain[1]})
		}
	}
}

// RangeNum returns the number of Cartesian ranges
func (s *Subarray[T]) RangeNum() uint64 {
	n := uint64(1)
	for _, rs := range s.ranges {
		n *= uint64(len(rs))
	}
	return n
}

// GetRange writes Cartesian range idx as a flat rectangle into out.
// Dimension 0 varies slowest.
func (s *Subarray[T]) GetRange(idx uint64, out []T) {
	n := len(s.ranges)
	for d := n - 1; d >= 0; d-- {
		cnt := uint64(len(s.ranges[d]))
		r := s.ranges[d][idx%cnt]
		idx /= cnt
		out[2*d] = r.Lo
		out[2*d+1] = r.Hi
	}
}

// SingleRange reports whether there is exactly one range per dimension
func (s *Subarray[T]) SingleRange() bool {
	for _, rs := range s.ranges {
		if len(rs) != 1 {
			return false
		}
	}
	return true
}

// Flat returns the subarray as a flat rectangle. Single-range subarrays
// only.
func (s *Subarray[T]) Flat() ([]T, bool) {
	if !s.SingleRange() {
		return nil, false
	}
	out := make([]T, 2*len(s.ranges))
	for d, rs := range s.ranges {
		out[2*d] = rs[0].Lo
		out[2*d+1] = rs[0].Hi
	}
	return out, true
}

// clone deep-copies the subarray
func (s *Subarray[T]) clone() *Subarray[T] {
	c := NewSubarray(s.dom)
	for d, rs := range s.ranges {
		c.ranges[d] = append([]Range[T](nil), rs...)
	}
	return c
}

// fromFlat builds a single-range subarray over a flat rectangle
func fromFlat[T schema.Coord](dom *schema.Domain[T], rect []T) *Subarray[T] {
	s := NewSubarray(dom)
	for d := 0; d < dom.DimNum(); d++ {
		s.ranges[d] = []Range[T]{{Lo: rect[2*d], Hi: rect[2*d+1]}}
	}
	return s
}

// split cuts the subarray into two halves whose results concatenate in
// the given traversal order. Multi-range subarrays split the dimension
// with the most ranges; single-range subarrays cut geometrically through
// the domain. Returns false when the subarray has been reduced to a single
// cell on every dimension.
func (s *Subarray[T]) split(layout schema.Layout) (*Subarray[T], *Subarray[T], bool) {
	// Multi-range: halve the longest range list
	maxDim, maxLen := -1, 1
	for d, rs := range s.ranges {
		if len(rs) > maxLen {
			maxDim, maxLen = d, len(rs)
		}
	}
	if maxDim >= 0 {
		a := s.clone()
		b := s.clone()
		mid := maxLen / 2
		a.ranges[maxDim] = append([]Range[T](nil), s.ranges[maxDim][:mid]...)
		b.ranges[maxDim] = append([]Range[T](nil), s.ranges[maxDim][mid:]...)
		return a, b, true
	}

	// Single range per dimension: geometric split
	flat, _ := s.Flat()
	lo, hi, ok := s.dom.SplitSubarray(flat, layout)
	if !ok {
		return nil, nil, false
	}
	return fromFlat(s.dom, lo), fromFlat(s.dom, hi), true
}
