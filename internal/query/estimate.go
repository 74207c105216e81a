package query

import (
	"github.com/soltixdb/gridstore/internal/schema"
)

// estimateResultSizes computes, per registered attribute, an upper bound on
// the result bytes of a sub-region, plus the fixed and var tile bytes the
// sub-region would pin in memory.
func (r *Reader[T]) estimateResultSizes(s *Subarray[T]) (map[string]estSizes, uint64, uint64, error) {
	if r.schema.Dense() && !r.sparseMode {
		return r.estimateDense(s)
	}
	return r.estimateSparse(s)
}

// estimateDense bounds a dense sub-region by its exact cell count
func (r *Reader[T]) estimateDense(s *Subarray[T]) (map[string]estSizes, uint64, uint64, error) {
	flat, ok := s.Flat()
	if !ok {
		return nil, 0, 0, ErrInvalidRange
	}
	dom := r.schema.Domain
	cells := dom.CellsInSubarray(flat)

	est := make(map[string]estSizes, len(r.attrs))
	for _, attr := range r.attrs {
		e := estSizes{fixed: cells * r.schema.CellSize(attr)}
		if r.schema.VarSize(attr) {
			e.varBytes = cells * r.maxAvgVarCellSize(attr)
		}
		est[attr] = e
	}

	// In-flight tile bytes: every overlapping tile of every contributing
	// fragment, all attributes decoded at once on the dense path
	cellsPerTile := dom.CellNumPerTile()
	var memFixed, memVar uint64
	inter := make([]T, 2*dom.DimNum())
	for _, frag := range r.fragments {
		var tiles uint64
		if frag.Dense() {
			if !schema.RectOverlap(flat, frag.Domain(), inter, dom.DimNum()) {
				continue
			}
			tiles = dom.TileNumInSubarray(inter)
		} else {
			for _, mbr := range frag.MBRs() {
				if schema.RectsIntersect(flat, mbr, dom.DimNum()) {
					tiles++
				}
			}
		}
		for _, attr := range r.attrs {
			if attr == schema.CoordsName && frag.Dense() {
				continue
			}
			memFixed += tiles * cellsPerTile * r.schema.CellSize(attr)
			if r.schema.VarSize(attr) {
				memVar += tiles * cellsPerTile * frag.AvgCellVarSize(attr, r.fillElemSize(attr))
			}
		}
	}

	return est, memFixed, memVar, nil
}

// estimateSparse bounds a sparse sub-region by the cells of every
// overlapping tile
func (r *Reader[T]) estimateSparse(s *Subarray[T]) (map[string]estSizes, uint64, uint64, error) {
	dom := r.schema.Domain
	dimNum := dom.DimNum()
	rect := make([]T, 2*dimNum)

	est := make(map[string]estSizes, len(r.attrs))
	for _, attr := range r.attrs {
		est[attr] = estSizes{}
	}

	var memFixed, memVar uint64
	rangeNum := s.RangeNum()
	for _, frag := range r.fragments {
		seen := make(map[uint64]bool)
		for rIdx := uint64(0); rIdx < rangeNum; rIdx++ {
			s.GetRange(rIdx, rect)
			for j, mbr := range frag.MBRs() {
				if !schema.RectsIntersect(rect, mbr, dimNum) {
					continue
				}
				if seen[uint64(j)] {
					continue
				}
				seen[uint64(j)] = true

				cells, err := frag.TileCellNum(schema.CoordsName, uint64(j))
				if err != nil || cells == 0 {
					cells = r.schema.Capacity
				}
				for _, attr := range r.attrs {
					e := est[attr]
					e.fixed += cells * r.schema.CellSize(attr)
					if r.schema.VarSize(attr) {
						e.varBytes += cells * frag.AvgCellVarSize(attr, r.fillElemSize(attr))
					}
					est[attr] = e

					memFixed += cells * r.schema.CellSize(attr)
					if r.schema.VarSize(attr) {
						memVar += cells * frag.AvgCellVarSize(attr, r.fillElemSize(attr))
					}
				}
			}
		}
	}

	return est, memFixed, memVar, nil
}

// maxAvgVarCellSize returns the largest per-cell var size across fragments
func (r *Reader[T]) maxAvgVarCellSize(attr string) uint64 {
	max := r.fillElemSize(attr)
	for _, frag := range r.fragments {
		if avg := frag.AvgCellVarSize(attr, 0); avg > max {
			max = avg
		}
	}
	return max
}

// fillElemSize returns the byte size of one fill element of an attribute
func (r *Reader[T]) fillElemSize(attr string) uint64 {
	a := r.schema.Attribute(attr)
	if a == nil {
		return r.schema.CellSize(attr)
	}
	return a.Type.Size()
}
