package schema

import (
	"fmt"
	"math"
)

// Dimension describes one axis of the coordinate space
type Dimension[T Coord] struct {
	Name       string
	Domain     [2]T
	TileExtent T // zero when the dimension is untiled
}

// Domain is the ordered set of dimensions plus the cell and tile orders
type Domain[T Coord] struct {
	dims      []Dimension[T]
	cellOrder Layout
	tileOrder Layout
}

// NewDomain creates a domain. Cell and tile order must be row- or col-major.
func NewDomain[T Coord](cellOrder, tileOrder Layout, dims ...Dimension[T]) (*Domain[T], error) {
	if len(dims) == 0 {
		return nil, fmt.Errorf("domain requires at least one dimension")
	}
	if cellOrder != RowMajor && cellOrder != ColMajor {
		return nil, fmt.Errorf("invalid cell order: %s", cellOrder)
	}
	if tileOrder != RowMajor && tileOrder != ColMajor {
		return nil, fmt.Errorf("invalid tile order: %s", tileOrder)
	}
	for _, dim := range dims {
		if dim.Domain[0] > dim.Domain[1] {
			return nil, fmt.Errorf("dimension %s: domain low exceeds high", dim.Name)
		}
		if dim.TileExtent < 0 {
			return nil, fmt.Errorf("dimension %s: negative tile extent", dim.Name)
		}
	}
	return &Domain[T]{dims: dims, cellOrder: cellOrder, tileOrder: tileOrder}, nil
}

// DimNum returns the number of dimensions
func (d *Domain[T]) DimNum() int {
	return len(d.dims)
}

// Dims returns the dimensions
func (d *Domain[T]) Dims() []Dimension[T] {
	return d.dims
}

// CellOrder returns the intra-tile cell order
func (d *Domain[T]) CellOrder() Layout {
	return d.cellOrder
}

// TileOrder returns the inter-tile order
func (d *Domain[T]) TileOrder() Layout {
	return d.tileOrder
}

// Bounds returns the full domain as a flat rectangle [lo0, hi0, lo1, hi1, ...]
func (d *Domain[T]) Bounds() []T {
	out := make([]T, 2*len(d.dims))
	for i, dim := range d.dims {
		out[2*i] = dim.Domain[0]
		out[2*i+1] = dim.Domain[1]
	}
	return out
}

// HasTileExtents reports whether every dimension is tiled
func (d *Domain[T]) HasTileExtents() bool {
	for _, dim := range d.dims {
		if dim.TileExtent == 0 {
			return false
		}
	}
	return true
}

// TileExtents returns the per-dimension tile extents
func (d *Domain[T]) TileExtents() []T {
	out := make([]T, len(d.dims))
	for i, dim := range d.dims {
		out[i] = dim.TileExtent
	}
	return out
}

// CellNumPerTile returns the number of cells in one full tile.
// Integer domains only.
func (d *Domain[T]) CellNumPerTile() uint64 {
	n := uint64(1)
	for _, dim := range d.dims {
		n *= asUint64(dim.TileExtent)
	}
	return n
}

// CellsInSubarray returns the number of cells inside a flat rectangle.
// Integer domains only.
func (d *Domain[T]) CellsInSubarray(sub []T) uint64 {
	n := uint64(1)
	for i := range d.dims {
		n *= spanInclusive(sub[2*i], sub[2*i+1])
	}
	return n
}

// GetTileCoords computes the tile grid coordinates of a cell
func (d *Domain[T]) GetTileCoords(c []T, tc []uint64) {
	for i, dim := range d.dims {
		tc[i] = asUint64((c[i] - dim.Domain[0]) / dim.TileExtent)
	}
}

// GetTileDomain computes the flat tile-coordinate rectangle covering sub
func (d *Domain[T]) GetTileDomain(sub []T, td []uint64) {
	for i, dim := range d.dims {
		td[2*i] = asUint64((sub[2*i] - dim.Domain[0]) / dim.TileExtent)
		td[2*i+1] = asUint64((sub[2*i+1] - dim.Domain[0]) / dim.TileExtent)
	}
}

// TileNumInSubarray returns the number of tiles intersecting sub
func (d *Domain[T]) TileNumInSubarray(sub []T) uint64 {
	td := make([]uint64, 2*len(d.dims))
	d.GetTileDomain(sub, td)
	n := uint64(1)
	for i := range d.dims {
		n *= td[2*i+1] - td[2*i] + 1
	}
	return n
}

// GetTileSubarray computes the coordinate rectangle of the tile at tc,
// clamped to the domain
func (d *Domain[T]) GetTileSubarray(tc []uint64, out []T) {
	for i, dim := range d.dims {
		lo := dim.Domain[0] + T(tc[i])*dim.TileExtent
		hi := lo + dim.TileExtent - 1
		if hi > dim.Domain[1] {
			hi = dim.Domain[1]
		}
		out[2*i] = lo
		out[2*i+1] = hi
	}
}

// GetTilePosInDomain returns the position of tile tc within the tile grid
// rectangle td, following the tile order
func (d *Domain[T]) GetTilePosInDomain(td, tc []uint64) uint64 {
	n := len(d.dims)
	pos := uint64(0)
	if d.tileOrder == RowMajor {
		for i := 0; i < n; i++ {
			size := td[2*i+1] - td[2*i] + 1
			pos = pos*size + (tc[i] - td[2*i])
		}
	} else {
		for i := n - 1; i >= 0; i-- {
			size := td[2*i+1] - td[2*i] + 1
			pos = pos*size + (tc[i] - td[2*i])
		}
	}
	return pos
}

// GetNextTileCoordsInDomain advances tc to the next tile of the grid
// rectangle td in tile order. Returns false when the grid is exhausted.
func (d *Domain[T]) GetNextTileCoordsInDomain(td, tc []uint64) bool {
	n := len(d.dims)
	if d.tileOrder == RowMajor {
		for i := n - 1; i >= 0; i-- {
			if tc[i] < td[2*i+1] {
				tc[i]++
				return true
			}
			tc[i] = td[2*i]
		}
		return false
	}
	for i := 0; i < n; i++ {
		if tc[i] < td[2*i+1] {
			tc[i]++
			return true
		}
		tc[i] = td[2*i]
	}
	return false
}

// GetCellPosInTile returns the position of cell c within its tile in cell
// order. Integer domains only.
func (d *Domain[T]) GetCellPosInTile(c []T) uint64 {
	return d.GetCellPosInTileForOrder(c, d.cellOrder)
}

// GetCellPosInTileForOrder returns the position of cell c within its tile
// following the given traversal order. Integer domains only.
func (d *Domain[T]) GetCellPosInTileForOrder(c []T, order Layout) uint64 {
	n := len(d.dims)
	off := make([]uint64, n)
	ext := make([]uint64, n)
	for i, dim := range d.dims {
		start := dim.Domain[0] + ((c[i]-dim.Domain[0])/dim.TileExtent)*dim.TileExtent
		off[i] = asUint64(c[i] - start)
		ext[i] = asUint64(dim.TileExtent)
	}
	pos := uint64(0)
	if order == RowMajor {
		for i := 0; i < n; i++ {
			pos = pos*ext[i] + off[i]
		}
	} else {
		for i := n - 1; i >= 0; i-- {
			pos = pos*ext[i] + off[i]
		}
	}
	return pos
}

// ExpandToTileBoundaries aligns a flat rectangle outward to tile
// boundaries, clamped to the domain. Integer domains only.
func (d *Domain[T]) ExpandToTileBoundaries(sub, out []T) {
	for i, dim := range d.dims {
		lo := dim.Domain[0] + ((sub[2*i]-dim.Domain[0])/dim.TileExtent)*dim.TileExtent
		hi := dim.Domain[0] + ((sub[2*i+1]-dim.Domain[0])/dim.TileExtent+1)*dim.TileExtent - 1
		if hi > dim.Domain[1] {
			hi = dim.Domain[1]
		}
		out[2*i] = lo
		out[2*i+1] = hi
	}
}

// SplitSubarray splits a flat rectangle into two halves whose results
// concatenate in the given traversal order. Row- and col-major layouts cut
// the slowest-varying splittable dimension; global order additionally
// snaps the cut to a tile boundary so both halves stay tile-aligned;
// unordered picks the dimension with the largest extent relative to its
// full domain (lowest index wins ties). Returns false when every dimension
// has reached minimum width.
func (d *Domain[T]) SplitSubarray(sub []T, layout Layout) (a, b []T, ok bool) {
	real := RealCoord[T]()
	n := len(d.dims)

	emit := func(splitDim int, mid, next T) ([]T, []T, bool) {
		a = make([]T, len(sub))
		b = make([]T, len(sub))
		copy(a, sub)
		copy(b, sub)
		a[2*splitDim+1] = mid
		b[2*splitDim] = next
		return a, b, true
	}

	// Global order: cut on a tile boundary of the slowest tile-order
	// dimension spanning more than one tile
	if layout == GlobalOrder && d.HasTileExtents() && !real {
		dims := dimSequence(n, d.tileOrder)
		for _, i := range dims {
			dim := d.dims[i]
			lo, hi := sub[2*i], sub[2*i+1]
			tLo := asUint64((lo - dim.Domain[0]) / dim.TileExtent)
			tHi := asUint64((hi - dim.Domain[0]) / dim.TileExtent)
			if tLo == tHi {
				continue
			}
			midTile := tLo + (tHi-tLo)/2
			mid := dim.Domain[0] + T(midTile+1)*dim.TileExtent - 1
			return emit(i, mid, mid+1)
		}
		// The rectangle sits inside a single tile; fall through to a
		// cell-level cut in cell order
		layout = d.cellOrder
	}

	if layout == RowMajor || layout == ColMajor || layout == GlobalOrder {
		order := layout
		if order == GlobalOrder {
			order = d.cellOrder
		}
		for _, i := range dimSequence(n, order) {
			lo, hi := sub[2*i], sub[2*i+1]
			if !splittable(lo, hi, real) {
				continue
			}
			mid, next := splitPoint(lo, hi, real)
			return emit(i, mid, next)
		}
		return nil, nil, false
	}

	// Unordered: largest normalized extent wins
	splitDim := -1
	best := 0.0
	for i, dim := range d.dims {
		lo, hi := sub[2*i], sub[2*i+1]
		if !splittable(lo, hi, real) {
			continue
		}
		norm := normalizedSpan(lo, hi, real) / normalizedSpan(dim.Domain[0], dim.Domain[1], real)
		if splitDim == -1 || norm > best {
			splitDim = i
			best = norm
		}
	}
	if splitDim == -1 {
		return nil, nil, false
	}
	lo, hi := sub[2*splitDim], sub[2*splitDim+1]
	mid, next := splitPoint(lo, hi, real)
	return emit(splitDim, mid, next)
}

// dimSequence returns dimension indices from slowest- to fastest-varying
// for the given order
func dimSequence(n int, order Layout) []int {
	out := make([]int, n)
	for i := range out {
		if order == ColMajor {
			out[i] = n - 1 - i
		} else {
			out[i] = i
		}
	}
	return out
}

// splittable reports whether [lo, hi] can be cut into two non-empty halves
func splittable[T Coord](lo, hi T, real bool) bool {
	if !real {
		return spanInclusive(lo, hi) > 1
	}
	if !(hi > lo) {
		return false
	}
	mid := lo + (hi-lo)/2
	return mid > lo || nextAfterUp(mid) <= hi
}

// normalizedSpan measures a range extent as float64 for split selection
func normalizedSpan[T Coord](lo, hi T, real bool) float64 {
	if real {
		return float64(hi) - float64(lo)
	}
	return float64(spanInclusive(lo, hi))
}

// splitPoint returns the end of the lower half and the start of the upper
// half. Integer midpoints round toward the lower coordinate.
func splitPoint[T Coord](lo, hi T, real bool) (T, T) {
	if !real {
		half := (spanInclusive(lo, hi) - 1) / 2
		mid := lo + T(half)
		return mid, mid + 1
	}
	mid := lo + (hi-lo)/2
	return mid, nextAfterUp(mid)
}

// nextAfterUp returns the smallest representable value above v
func nextAfterUp[T Coord](v T) T {
	switch x := any(v).(type) {
	case float32:
		return T(math.Nextafter32(x, float32(math.Inf(1))))
	case float64:
		return T(math.Nextafter(x, math.Inf(1)))
	default:
		return v + 1
	}
}

// asUint64 converts a non-negative coordinate quantity to uint64
func asUint64[T Coord](v T) uint64 {
	switch any(v).(type) {
	case uint8, uint16, uint32, uint64:
		return uint64(v)
	case float32, float64:
		return uint64(float64(v))
	default:
		return uint64(int64(v))
	}
}
