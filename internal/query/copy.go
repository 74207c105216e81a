package query

import (
	"context"
	"encoding/binary"

	"github.com/soltixdb/gridstore/internal/schema"
)

// copyCells materializes cell ranges into one attribute's user buffers
func (r *Reader[T]) copyCells(ctx context.Context, attr string, ranges []CellRange) error {
	ab := r.buffers[attr]
	if ab == nil {
		return nil
	}
	if len(ranges) == 0 {
		*ab.fixedSize = 0
		if ab.varSize != nil {
			*ab.varSize = 0
		}
		return nil
	}
	if r.schema.VarSize(attr) {
		return r.copyVarCells(ctx, attr, ranges)
	}
	return r.copyFixedCells(ctx, attr, ranges)
}

// copyFixedCells copies fixed-length cells. Destination offsets are
// computed up front so overflow is detected before any byte moves, and the
// parallel copies write disjoint regions.
func (r *Reader[T]) copyFixedCells(ctx context.Context, attr string, ranges []CellRange) error {
	ab := r.buffers[attr]
	cellSize := r.schema.CellSize(attr)
	fill := r.fillValueFor(attr)

	// Precompute the destination offset of every range
	offsets := make([]uint64, len(ranges))
	total := uint64(0)
	for i, cr := range ranges {
		offsets[i] = total
		total += cr.cellCount() * cellSize
	}

	// Handle overflow before copying anything
	if total > *ab.fixedSize {
		r.overflowed = true
		return nil
	}

	err := r.sm.ReaderPool().ParallelFor(ctx, len(ranges), func(i int) error {
		cr := ranges[i]
		offset := offsets[i]
		bytes := cr.cellCount() * cellSize

		if cr.Tile == nil {
			// Empty range: repeat the fill value
			fillSize := uint64(len(fill))
			for n := uint64(0); n < bytes/fillSize; n++ {
				copy(ab.fixed[offset:offset+fillSize], fill)
				offset += fillSize
			}
		} else {
			data := cr.Tile.Attrs[attr].Fixed.Data
			copy(ab.fixed[offset:offset+bytes], data[cr.Start*cellSize:(cr.End+1)*cellSize])
		}
		return nil
	})
	if err != nil {
		return err
	}

	*ab.fixedSize = total
	return nil
}

// varDestinations holds the precomputed per-cell destinations of a var copy
type varDestinations struct {
	offsetOffsets [][]uint64 // destination in the offsets buffer, per range per cell
	varOffsets    [][]uint64 // destination in the var buffer, per range per cell
	totalOffsets  uint64
	totalVar      uint64
}

// cellVarSize returns the var-stream bytes of cell idx in a tile. Tiles are
// self-relative: the last cell's size derives from the tile's var size.
func cellVarSize(tileOffsets []uint64, idx, cellNum, tileVarSize uint64) uint64 {
	if idx != cellNum-1 {
		return tileOffsets[idx+1] - tileOffsets[idx]
	}
	return tileVarSize - (tileOffsets[idx] - tileOffsets[0])
}

// computeVarCellDestinations walks the ranges once, assigning every cell
// its destination in the offsets and var buffers
func (r *Reader[T]) computeVarCellDestinations(attr string, ranges []CellRange, views map[*OverlappingTile][]uint64) varDestinations {
	fillSize := r.fillElemSize(attr)

	d := varDestinations{
		offsetOffsets: make([][]uint64, len(ranges)),
		varOffsets:    make([][]uint64, len(ranges)),
	}
	for i, cr := range ranges {
		n := cr.cellCount()
		d.offsetOffsets[i] = make([]uint64, n)
		d.varOffsets[i] = make([]uint64, n)

		var tileOffsets []uint64
		var cellNum, tileVarSize uint64
		if cr.Tile != nil {
			pair := cr.Tile.Attrs[attr]
			tileOffsets = views[cr.Tile]
			cellNum = pair.Fixed.CellNum
			tileVarSize = uint64(len(pair.Var.Data))
		}

		for idx := cr.Start; idx <= cr.End; idx++ {
			j := idx - cr.Start
			size := fillSize
			if cr.Tile != nil {
				size = cellVarSize(tileOffsets, idx, cellNum, tileVarSize)
			}
			d.offsetOffsets[i][j] = d.totalOffsets
			d.varOffsets[i][j] = d.totalVar
			d.totalOffsets += schema.CellVarOffsetSize
			d.totalVar += size
		}
	}
	return d
}

// copyVarCells copies var-length cells in two passes: destinations first,
// then a parallel copy writing query-relative offsets and payloads
func (r *Reader[T]) copyVarCells(ctx context.Context, attr string, ranges []CellRange) error {
	ab := r.buffers[attr]
	fill := r.fillValueFor(attr)

	// Decode each contributing tile's offset table once
	views := make(map[*OverlappingTile][]uint64)
	for _, cr := range ranges {
		if cr.Tile == nil {
			continue
		}
		if _, ok := views[cr.Tile]; !ok {
			views[cr.Tile] = schema.DecodeSlice[uint64](cr.Tile.Attrs[attr].Fixed.Data)
		}
	}

	dest := r.computeVarCellDestinations(attr, ranges, views)

	// Check for overflow and return early, without copying, in that case
	if dest.totalOffsets > *ab.fixedSize || dest.totalVar > *ab.varSize {
		r.overflowed = true
		return nil
	}

	err := r.sm.ReaderPool().ParallelFor(ctx, len(ranges), func(i int) error {
		cr := ranges[i]

		var tileOffsets []uint64
		var varData []byte
		var cellNum, tileVarSize uint64
		if cr.Tile != nil {
			pair := cr.Tile.Attrs[attr]
			tileOffsets = views[cr.Tile]
			varData = pair.Var.Data
			cellNum = pair.Fixed.CellNum
			tileVarSize = uint64(len(varData))
		}

		for idx := cr.Start; idx <= cr.End; idx++ {
			j := idx - cr.Start
			varOffset := dest.varOffsets[i][j]

			// Offset is relative to this query's var buffer, not the tile
			binary.LittleEndian.PutUint64(ab.fixed[dest.offsetOffsets[i][j]:], varOffset)

			if cr.Tile == nil {
				copy(ab.varData[varOffset:], fill)
			} else {
				size := cellVarSize(tileOffsets, idx, cellNum, tileVarSize)
				src := tileOffsets[idx] - tileOffsets[0]
				copy(ab.varData[varOffset:varOffset+size], varData[src:src+size])
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	*ab.fixedSize = dest.totalOffsets
	*ab.varSize = dest.totalVar
	return nil
}

// fillValueFor returns one fill element for an attribute. The coordinates
// pseudo-attribute never materializes fill cells; zeros keep the copier
// total.
func (r *Reader[T]) fillValueFor(attr string) []byte {
	a := r.schema.Attribute(attr)
	if a == nil {
		return make([]byte, r.schema.CellSize(attr))
	}
	return a.FillValue()
}

// fillCoordsBuffer regenerates coordinates analytically for a dense
// sub-region in emission order, one slab at a time
func (r *Reader[T]) fillCoordsBuffer(sub []T) error {
	ab := r.buffers[schema.CoordsName]
	if ab == nil {
		return nil
	}

	dom := r.schema.Domain
	n := dom.DimNum()
	elem := schema.ScalarSize[T]()
	coordsSize := r.schema.CoordsSize()
	bufSize := *ab.fixedSize

	eff := r.layout
	if eff == schema.GlobalOrder || eff == schema.Unordered {
		eff = dom.CellOrder()
	}
	rowSlab := eff == schema.RowMajor

	out := newOutputSlabIter(dom, sub, r.layout)
	offset := uint64(0)
	for !out.End() {
		num := out.SlabLen()

		// Check for overflow
		if offset+num*coordsSize > bufSize {
			r.overflowed = true
			return nil
		}

		start := out.SlabStart()
		if rowSlab {
			for i := uint64(0); i < num; i++ {
				for d := 0; d < n-1; d++ {
					schema.PutScalar(ab.fixed[offset:], start[d])
					offset += elem
				}
				schema.PutScalar(ab.fixed[offset:], start[n-1]+T(i))
				offset += elem
			}
		} else {
			for i := uint64(0); i < num; i++ {
				schema.PutScalar(ab.fixed[offset:], start[0]+T(i))
				offset += elem
				for d := 1; d < n; d++ {
					schema.PutScalar(ab.fixed[offset:], start[d])
					offset += elem
				}
			}
		}
		out.Next()
	}

	*ab.fixedSize = offset
	return nil
}
