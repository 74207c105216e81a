package query

import (
	"context"

	"github.com/soltixdb/gridstore/internal/schema"
)

// sparseRead processes the current sub-region of a sparse (or sparse-mode)
// array: coordinates are resolved, ordered and deduplicated first, then
// each attribute is fetched, copied and released in turn to cap memory.
func (r *Reader[T]) sparseRead(ctx context.Context) error {
	s := r.part.Current()
	dom := r.schema.Domain
	dimNum := dom.DimNum()

	tiles, rangeTiles, singleFragment := r.computeOverlappingTilesSparse(s)

	// Read and decode the coordinate tiles
	if err := r.readTiles(ctx, schema.CoordsName, tiles); err != nil {
		return err
	}
	if err := r.filterTiles(ctx, schema.CoordsName, tiles); err != nil {
		return err
	}
	views := decodeCoordsViews[T](tiles)

	// Resolve in-region coordinates per range, in parallel; multi-fragment
	// ranges are sorted and deduplicated in place
	rangeNum := s.RangeNum()
	rangeCoords := make([][]overlappingCoord[T], rangeNum)
	err := r.sm.ReaderPool().ParallelFor(ctx, int(rangeNum), func(i int) error {
		rect := make([]T, 2*dimNum)
		s.GetRange(uint64(i), rect)

		var cs []overlappingCoord[T]
		for _, ref := range rangeTiles[i] {
			t := tiles[ref.tileListIdx]
			view := views[t]
			if ref.full {
				getAllCoords(t, view, dimNum, &cs)
			} else {
				getCoordsInRect(t, view, rect, dimNum, &cs)
			}
		}

		if !singleFragment[i] {
			computeTileCoords(dom, cs)
			sortCoords(dom, r.layout, cs)
			dedupCoords(cs, dimNum)
		}
		rangeCoords[i] = cs
		return nil
	})
	if err != nil {
		return err
	}

	// Concatenate the valid coordinates of all ranges
	var coords []overlappingCoord[T]
	for _, cs := range rangeCoords {
		for i := range cs {
			if cs[i].valid {
				coords = append(coords, cs[i])
			}
		}
	}

	// Order the final result, unless a single fragment feeds a single
	// global-order range, which arrives ordered already
	if r.layout != schema.Unordered &&
		!(rangeNum == 1 && len(r.fragments) == 1 && r.layout == schema.GlobalOrder) {
		computeTileCoords(dom, coords)
		sortCoords(dom, r.layout, coords)
	}

	cellRanges := computeCellRanges(coords)

	// Copy coordinates first, then release their tiles
	if _, ok := r.buffers[schema.CoordsName]; ok {
		if err := r.copyCells(ctx, schema.CoordsName, cellRanges); err != nil {
			return err
		}
	}
	clearTiles(schema.CoordsName, tiles)

	// Fetch, copy and release one attribute at a time
	for _, attr := range r.attrs {
		if attr == schema.CoordsName {
			continue
		}
		if r.overflowed {
			break
		}
		if err := r.readTiles(ctx, attr, tiles); err != nil {
			return err
		}
		if err := r.filterTiles(ctx, attr, tiles); err != nil {
			return err
		}
		if err := r.copyCells(ctx, attr, cellRanges); err != nil {
			return err
		}
		clearTiles(attr, tiles)
	}

	return ctx.Err()
}
