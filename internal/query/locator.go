package query

import (
	"github.com/soltixdb/gridstore/internal/schema"
)

// rangeTileRef is one tile contributing to a Cartesian range, with the
// overlap classification of that (tile, range) pair
type rangeTileRef struct {
	tileListIdx int
	full        bool
}

// computeOverlappingTilesSparse enumerates, per Cartesian range, the sparse
// tiles whose MBR intersects it. Duplicate (fragment, tile) pairs arising
// from multi-range subarrays are coalesced. singleFragment[r] is true iff
// every tile contributing to range r comes from one fragment, which lets
// the resolver skip the dedup pass for that range.
func (r *Reader[T]) computeOverlappingTilesSparse(s *Subarray[T]) ([]*OverlappingTile, [][]rangeTileRef, []bool) {
	dimNum := r.schema.DimNum()
	rangeNum := s.RangeNum()

	var tiles []*OverlappingTile
	tileMap := make(map[tileKey]int)
	rangeTiles := make([][]rangeTileRef, rangeNum)
	singleFragment := make([]bool, rangeNum)
	firstFragment := make([]int, rangeNum)
	for i := range singleFragment {
		singleFragment[i] = true
		firstFragment[i] = -1
	}

	rect := make([]T, 2*dimNum)
	for f, frag := range r.fragments {
		if frag.Dense() {
			// Dense fragments are handled by the dense merger
			continue
		}
		for rIdx := uint64(0); rIdx < rangeNum; rIdx++ {
			s.GetRange(rIdx, rect)
			for j, mbr := range frag.MBRs() {
				if !schema.RectsIntersect(rect, mbr, dimNum) {
					continue
				}
				full := schema.RectContains(rect, mbr, dimNum)

				key := tileKey{fragIdx: f, tileIdx: uint64(j)}
				idx, ok := tileMap[key]
				if !ok {
					idx = len(tiles)
					tiles = append(tiles, newOverlappingTile(f, uint64(j), full))
					tileMap[key] = idx
				}
				rangeTiles[rIdx] = append(rangeTiles[rIdx], rangeTileRef{tileListIdx: idx, full: full})

				if firstFragment[rIdx] == -1 {
					firstFragment[rIdx] = f
				} else if firstFragment[rIdx] != f {
					singleFragment[rIdx] = false
				}
			}
		}
	}

	return tiles, rangeTiles, singleFragment
}

// computeOverlappingTilesFlat enumerates the sparse tiles intersecting a
// flat rectangle, used by the dense path to locate sparse overrides
func (r *Reader[T]) computeOverlappingTilesFlat(rect []T) []*OverlappingTile {
	dimNum := r.schema.DimNum()

	var tiles []*OverlappingTile
	for f, frag := range r.fragments {
		if frag.Dense() {
			continue
		}
		for j, mbr := range frag.MBRs() {
			if !schema.RectsIntersect(rect, mbr, dimNum) {
				continue
			}
			full := schema.RectContains(rect, mbr, dimNum)
			tiles = append(tiles, newOverlappingTile(f, uint64(j), full))
		}
	}
	return tiles
}
