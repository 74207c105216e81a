package query

import (
	"sort"

	"github.com/soltixdb/gridstore/internal/schema"
)

// overlappingCoord is one in-region cell contributed by a sparse tile.
// coords is a view into the tile's decoded coordinate buffer and must not
// outlive it. Deduplication invalidates entries in place so indices stay
// stable.
type overlappingCoord[T schema.Coord] struct {
	tile       *OverlappingTile
	coords     []T      // dimNum values
	pos        uint64   // cell position within the tile
	tileCoords []uint64 // global tile coordinates, for global-order sorting
	valid      bool
}

// decodeCoordsViews decodes the coordinate stream of every tile once,
// before parallel passes share the views read-only
func decodeCoordsViews[T schema.Coord](tiles []*OverlappingTile) map[*OverlappingTile][]T {
	views := make(map[*OverlappingTile][]T, len(tiles))
	for _, t := range tiles {
		if p, ok := t.Attrs[schema.CoordsName]; ok && p.Fixed.Filtered {
			views[t] = schema.DecodeSlice[T](p.Fixed.Data)
		}
	}
	return views
}

// getAllCoords emits every cell of a fully-overlapped tile
func getAllCoords[T schema.Coord](tile *OverlappingTile, view []T, dimNum int, out *[]overlappingCoord[T]) {
	cellNum := uint64(len(view) / dimNum)
	for i := uint64(0); i < cellNum; i++ {
		*out = append(*out, overlappingCoord[T]{
			tile:   tile,
			coords: view[i*uint64(dimNum) : (i+1)*uint64(dimNum)],
			pos:    i,
			valid:  true,
		})
	}
}

// getCoordsInRect emits the cells of a partially-overlapped tile that lie
// inside the rectangle
func getCoordsInRect[T schema.Coord](tile *OverlappingTile, view []T, rect []T, dimNum int, out *[]overlappingCoord[T]) {
	cellNum := uint64(len(view) / dimNum)
	for i := uint64(0); i < cellNum; i++ {
		c := view[i*uint64(dimNum) : (i+1)*uint64(dimNum)]
		if schema.CoordsInRect(c, rect, dimNum) {
			*out = append(*out, overlappingCoord[T]{
				tile:   tile,
				coords: c,
				pos:    i,
				valid:  true,
			})
		}
	}
}

// computeTileCoords fills each coord's global tile coordinates, the primary
// key of the global-order comparator. No-op for untiled domains.
func computeTileCoords[T schema.Coord](dom *schema.Domain[T], coords []overlappingCoord[T]) {
	if !dom.HasTileExtents() {
		return
	}
	dimNum := dom.DimNum()
	buf := make([]uint64, len(coords)*dimNum)
	for i := range coords {
		tc := buf[i*dimNum : (i+1)*dimNum]
		dom.GetTileCoords(coords[i].coords, tc)
		coords[i].tileCoords = tc
	}
}

// coordTieLess is the deterministic tie-break for byte-equal coordinates:
// newer fragments first, then tile and cell position
func coordTieLess[T schema.Coord](a, b *overlappingCoord[T]) bool {
	if a.tile.FragIdx != b.tile.FragIdx {
		return a.tile.FragIdx > b.tile.FragIdx
	}
	if a.tile.TileIdx != b.tile.TileIdx {
		return a.tile.TileIdx < b.tile.TileIdx
	}
	return a.pos < b.pos
}

// rowLess orders coordinates lexicographically over dims 0..n-1
func rowLess[T schema.Coord](a, b *overlappingCoord[T], dimNum int) bool {
	for d := 0; d < dimNum; d++ {
		if a.coords[d] != b.coords[d] {
			return a.coords[d] < b.coords[d]
		}
	}
	return coordTieLess(a, b)
}

// colLess orders coordinates lexicographically over dims n-1..0
func colLess[T schema.Coord](a, b *overlappingCoord[T], dimNum int) bool {
	for d := dimNum - 1; d >= 0; d-- {
		if a.coords[d] != b.coords[d] {
			return a.coords[d] < b.coords[d]
		}
	}
	return coordTieLess(a, b)
}

// globalLess orders by tile coordinates in tile order, then by cell order
// within the tile
func globalLess[T schema.Coord](a, b *overlappingCoord[T], dom *schema.Domain[T]) bool {
	dimNum := dom.DimNum()
	if a.tileCoords != nil && b.tileCoords != nil {
		if dom.TileOrder() == schema.RowMajor {
			for d := 0; d < dimNum; d++ {
				if a.tileCoords[d] != b.tileCoords[d] {
					return a.tileCoords[d] < b.tileCoords[d]
				}
			}
		} else {
			for d := dimNum - 1; d >= 0; d-- {
				if a.tileCoords[d] != b.tileCoords[d] {
					return a.tileCoords[d] < b.tileCoords[d]
				}
			}
		}
	}
	if dom.CellOrder() == schema.RowMajor {
		return rowLess(a, b, dimNum)
	}
	return colLess(a, b, dimNum)
}

// sortCoords sorts in the traversal order of the query. Unordered falls
// back to the cell order so deduplication still sees equal coordinates
// adjacent.
func sortCoords[T schema.Coord](dom *schema.Domain[T], layout schema.Layout, coords []overlappingCoord[T]) {
	effective := layout
	if effective == schema.Unordered {
		effective = dom.CellOrder()
	}
	dimNum := dom.DimNum()

	var less func(a, b *overlappingCoord[T]) bool
	switch effective {
	case schema.GlobalOrder:
		less = func(a, b *overlappingCoord[T]) bool { return globalLess(a, b, dom) }
	case schema.ColMajor:
		less = func(a, b *overlappingCoord[T]) bool { return colLess(a, b, dimNum) }
	default:
		less = func(a, b *overlappingCoord[T]) bool { return rowLess(a, b, dimNum) }
	}

	sort.Slice(coords, func(i, j int) bool {
		return less(&coords[i], &coords[j])
	})
}

// coordsEqual compares two coordinate tuples
func coordsEqual[T schema.Coord](a, b []T, dimNum int) bool {
	for d := 0; d < dimNum; d++ {
		if a[d] != b[d] {
			return false
		}
	}
	return true
}

// dedupCoords invalidates duplicates of byte-equal coordinates, keeping
// the entry from the newest fragment. Coordinates must be sorted.
func dedupCoords[T schema.Coord](coords []overlappingCoord[T], dimNum int) {
	i := skipInvalid(coords, 0)
	for i < len(coords) {
		j := skipInvalid(coords, i+1)
		if j < len(coords) && coordsEqual(coords[i].coords, coords[j].coords, dimNum) {
			if coords[i].tile.FragIdx < coords[j].tile.FragIdx {
				coords[i].valid = false
				i = skipInvalid(coords, i+1)
			} else {
				coords[j].valid = false
			}
		} else {
			i = j
		}
	}
}

// skipInvalid advances idx past invalidated entries
func skipInvalid[T schema.Coord](coords []overlappingCoord[T], idx int) int {
	for idx < len(coords) && !coords[idx].valid {
		idx++
	}
	return idx
}

// computeCellRanges compacts sorted, deduplicated coordinates into maximal
// runs of consecutive positions within one tile
func computeCellRanges[T schema.Coord](coords []overlappingCoord[T]) []CellRange {
	var ranges []CellRange

	i := skipInvalid(coords, 0)
	if i >= len(coords) {
		return ranges
	}
	tile := coords[i].tile
	start := coords[i].pos
	end := start

	for i = skipInvalid(coords, i+1); i < len(coords); i = skipInvalid(coords, i+1) {
		c := &coords[i]
		if c.tile == tile && c.pos == end+1 {
			// Same range - advance end position
			end = c.pos
		} else {
			// New range - append previous range
			ranges = append(ranges, CellRange{Tile: tile, Start: start, End: end})
			tile = c.tile
			start = c.pos
			end = start
		}
	}

	ranges = append(ranges, CellRange{Tile: tile, Start: start, End: end})
	return ranges
}
