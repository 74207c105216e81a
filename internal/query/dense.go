package query

import (
	"container/heap"
	"fmt"

	"github.com/soltixdb/gridstore/internal/schema"
)

// =============================================================================
// Cell slab iteration - walks a flat rectangle in a traversal order,
// emitting maximal runs confined to one tile
// =============================================================================

// slabIter walks cells of a sub-region, one slab at a time. Ranks are
// positions within the tile in the traversal order; pos values are
// positions in the schema's cell order, which is what tile data is laid
// out in. When the traversal order matches the cell order the two agree
// and slabs are maximal; otherwise slabs degenerate to single cells.
type slabIter[T schema.Coord] interface {
	End() bool
	Next()
	TileCoords() []uint64
	RankStart() uint64
	RankEnd() uint64
	PosStart() uint64
	SlabStart() []T
	SlabLen() uint64
}

// denseCellRangeIter iterates a flat rectangle in row- or col-major order
type denseCellRangeIter[T schema.Coord] struct {
	dom     *schema.Domain[T]
	sub     []T
	layout  schema.Layout // RowMajor or ColMajor
	matched bool          // layout equals the cell order
	cur     []T
	done    bool

	slabStart    []T
	slabLen      uint64
	rankStart    uint64
	posStart     uint64
	tileCoords   []uint64
	slabEndCoord T
}

// newDenseCellRangeIter creates an iterator over sub. Global and unordered
// layouts resolve to the cell order.
func newDenseCellRangeIter[T schema.Coord](dom *schema.Domain[T], sub []T, layout schema.Layout) *denseCellRangeIter[T] {
	eff := layout
	if eff == schema.GlobalOrder || eff == schema.Unordered {
		eff = dom.CellOrder()
	}
	n := dom.DimNum()
	it := &denseCellRangeIter[T]{
		dom:        dom,
		sub:        append([]T(nil), sub...),
		layout:     eff,
		matched:    eff == dom.CellOrder(),
		cur:        make([]T, n),
		slabStart:  make([]T, n),
		tileCoords: make([]uint64, n),
	}
	for d := 0; d < n; d++ {
		if sub[2*d] > sub[2*d+1] {
			it.done = true
			return it
		}
		it.cur[d] = sub[2*d]
	}
	it.computeSlab()
	return it
}

// fastDim returns the fastest-varying dimension of the layout
func (it *denseCellRangeIter[T]) fastDim() int {
	if it.layout == schema.RowMajor {
		return it.dom.DimNum() - 1
	}
	return 0
}

// computeSlab derives the slab starting at the current coordinate
func (it *denseCellRangeIter[T]) computeSlab() {
	fd := it.fastDim()
	dim := it.dom.Dims()[fd]

	start := it.cur[fd]
	tileHi := dim.Domain[0] + ((start-dim.Domain[0])/dim.TileExtent+1)*dim.TileExtent - 1
	end := it.sub[2*fd+1]
	if tileHi < end {
		end = tileHi
	}
	if !it.matched {
		end = start
	}

	copy(it.slabStart, it.cur)
	it.slabLen = schema.SpanInclusive(start, end)
	it.slabEndCoord = end
	it.dom.GetTileCoords(it.cur, it.tileCoords)
	it.rankStart = it.dom.GetCellPosInTileForOrder(it.cur, it.layout)
	it.posStart = it.dom.GetCellPosInTile(it.cur)
}

// End reports whether the iterator is exhausted
func (it *denseCellRangeIter[T]) End() bool { return it.done }

// Next advances to the following slab
func (it *denseCellRangeIter[T]) Next() {
	if it.done {
		return
	}
	fd := it.fastDim()
	if it.slabEndCoord < it.sub[2*fd+1] {
		it.cur[fd] = it.slabEndCoord + 1
		it.computeSlab()
		return
	}
	it.cur[fd] = it.sub[2*fd]

	n := it.dom.DimNum()
	if it.layout == schema.RowMajor {
		for d := n - 2; d >= 0; d-- {
			if it.cur[d] < it.sub[2*d+1] {
				it.cur[d]++
				it.computeSlab()
				return
			}
			it.cur[d] = it.sub[2*d]
		}
	} else {
		for d := 1; d < n; d++ {
			if it.cur[d] < it.sub[2*d+1] {
				it.cur[d]++
				it.computeSlab()
				return
			}
			it.cur[d] = it.sub[2*d]
		}
	}
	it.done = true
}

func (it *denseCellRangeIter[T]) TileCoords() []uint64 { return it.tileCoords }
func (it *denseCellRangeIter[T]) RankStart() uint64    { return it.rankStart }
func (it *denseCellRangeIter[T]) RankEnd() uint64      { return it.rankStart + it.slabLen - 1 }
func (it *denseCellRangeIter[T]) PosStart() uint64     { return it.posStart }
func (it *denseCellRangeIter[T]) SlabStart() []T       { return it.slabStart }
func (it *denseCellRangeIter[T]) SlabLen() uint64      { return it.slabLen }

// globalDenseIter visits tiles in tile order and cells within each tile in
// cell order
type globalDenseIter[T schema.Coord] struct {
	dom     *schema.Domain[T]
	sub     []T
	td      []uint64
	tc      []uint64
	inner   *denseCellRangeIter[T]
	tileSub []T
	inTile  []T
	done    bool
}

// newGlobalDenseIter creates a global-order iterator over sub
func newGlobalDenseIter[T schema.Coord](dom *schema.Domain[T], sub []T) *globalDenseIter[T] {
	n := dom.DimNum()
	it := &globalDenseIter[T]{
		dom:     dom,
		sub:     append([]T(nil), sub...),
		td:      make([]uint64, 2*n),
		tc:      make([]uint64, n),
		tileSub: make([]T, 2*n),
		inTile:  make([]T, 2*n),
	}
	for d := 0; d < n; d++ {
		if sub[2*d] > sub[2*d+1] {
			it.done = true
			return it
		}
	}
	dom.GetTileDomain(sub, it.td)
	for d := 0; d < n; d++ {
		it.tc[d] = it.td[2*d]
	}
	it.enterTile()
	return it
}

// enterTile builds the inner iterator for the current tile
func (it *globalDenseIter[T]) enterTile() {
	it.dom.GetTileSubarray(it.tc, it.tileSub)
	schema.RectOverlap(it.sub, it.tileSub, it.inTile, it.dom.DimNum())
	it.inner = newDenseCellRangeIter(it.dom, it.inTile, it.dom.CellOrder())
}

// End reports whether the iterator is exhausted
func (it *globalDenseIter[T]) End() bool { return it.done }

// Next advances to the following slab, crossing tiles as needed
func (it *globalDenseIter[T]) Next() {
	if it.done {
		return
	}
	it.inner.Next()
	for it.inner.End() {
		if !it.dom.GetNextTileCoordsInDomain(it.td, it.tc) {
			it.done = true
			return
		}
		it.enterTile()
	}
}

func (it *globalDenseIter[T]) TileCoords() []uint64 { return it.inner.TileCoords() }
func (it *globalDenseIter[T]) RankStart() uint64    { return it.inner.RankStart() }
func (it *globalDenseIter[T]) RankEnd() uint64      { return it.inner.RankEnd() }
func (it *globalDenseIter[T]) PosStart() uint64     { return it.inner.PosStart() }
func (it *globalDenseIter[T]) SlabStart() []T       { return it.inner.SlabStart() }
func (it *globalDenseIter[T]) SlabLen() uint64      { return it.inner.SlabLen() }

// newOutputSlabIter creates the iterator producing the query's emission
// order over a flat rectangle
func newOutputSlabIter[T schema.Coord](dom *schema.Domain[T], sub []T, layout schema.Layout) slabIter[T] {
	if layout == schema.GlobalOrder {
		return newGlobalDenseIter(dom, sub)
	}
	return newDenseCellRangeIter(dom, sub, layout)
}

// =============================================================================
// Dense cell-range merge - a priority-queue merge of per-fragment runs,
// newest fragment winning at overlaps
// =============================================================================

// denseCellRange is a run of cells within one dense output tile, owned by
// one fragment (-1 for an empty run to be filled)
type denseCellRange struct {
	fragIdx    int
	tileCoords []uint64
	rankStart  uint64
	rankEnd    uint64
	posStart   uint64 // cell-order position of the cell at rankStart
}

// denseQueueItem is one fragment's current run in the merge queue
type denseQueueItem struct {
	fragIdx   int
	rankStart uint64
	rankEnd   uint64
	posStart  uint64
}

// denseQueue orders items by start rank ascending, newer fragments first
// on ties so they pre-empt older ones
type denseQueue []denseQueueItem

func (q denseQueue) Len() int { return len(q) }
func (q denseQueue) Less(i, j int) bool {
	if q[i].rankStart != q[j].rankStart {
		return q[i].rankStart < q[j].rankStart
	}
	return q[i].fragIdx > q[j].fragIdx
}
func (q denseQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *denseQueue) Push(x interface{}) { *q = append(*q, x.(denseQueueItem)) }
func (q *denseQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// itemFromIter snapshots a fragment iterator's current slab
func itemFromIter[T schema.Coord](fragIdx int, it *denseCellRangeIter[T]) denseQueueItem {
	return denseQueueItem{
		fragIdx:   fragIdx,
		rankStart: it.RankStart(),
		rankEnd:   it.RankEnd(),
		posStart:  it.PosStart(),
	}
}

// computeDenseCellRanges merges the per-fragment iterators of one tile over
// the rank segment [start, end], appending runs to out. Gaps materialize as
// empty runs so the copier can apply fill values without branching.
func computeDenseCellRanges[T schema.Coord](
	tileCoords []uint64,
	fragIters []*denseCellRangeIter[T],
	start, end uint64,
	out *[]denseCellRange,
) {
	pq := denseQueue{}
	for i, it := range fragIters {
		if it != nil && !it.End() {
			pq = append(pq, itemFromIter(i, it))
		}
	}
	heap.Init(&pq)

	advance := func(fragIdx int) {
		it := fragIters[fragIdx]
		it.Next()
		if !it.End() {
			heap.Push(&pq, itemFromIter(fragIdx, it))
		}
	}

	for pq.Len() > 0 && start <= end {
		popped := heap.Pop(&pq).(denseQueueItem)

		// Popped lies entirely before the segment; fetch its next run
		if popped.rankEnd < start {
			advance(popped.fragIdx)
			continue
		}

		// Popped lies entirely after the segment; pad and stop
		if popped.rankStart > end {
			*out = append(*out, denseCellRange{fragIdx: -1, tileCoords: tileCoords, rankStart: start, rankEnd: end})
			return
		}

		// Pad the gap before popped
		if popped.rankStart > start {
			newEnd := popped.rankStart - 1
			*out = append(*out, denseCellRange{fragIdx: -1, tileCoords: tileCoords, rankStart: start, rankEnd: newEnd})
			start = newEnd + 1
		}

		// Drop older runs fully shadowed by popped. A queue entry is the
		// unconsumed remainder of its fragment's current run, so dropping
		// it consumes that run and the iterator moves on.
		for pq.Len() > 0 {
			top := pq[0]
			if popped.fragIdx > top.fragIdx && popped.rankStart <= top.rankStart && popped.rankEnd >= top.rankEnd {
				heap.Pop(&pq)
				advance(top.fragIdx)
				continue
			}
			break
		}

		// A queued run starts inside popped: emit the prefix and re-insert
		// the trimmed remainder
		if pq.Len() > 0 {
			top := pq[0]
			if top.rankStart <= end && top.rankStart > popped.rankStart && top.rankStart <= popped.rankEnd {
				if top.rankStart > start {
					*out = append(*out, denseCellRange{
						fragIdx:    popped.fragIdx,
						tileCoords: tileCoords,
						rankStart:  start,
						rankEnd:    top.rankStart - 1,
						posStart:   popped.posStart + (start - popped.rankStart),
					})
					start = top.rankStart
				}
				trim := top.rankStart - popped.rankStart
				popped.posStart += trim
				popped.rankStart = top.rankStart
				heap.Push(&pq, popped)
				continue
			}
		}

		// Emit popped up to the segment end
		newEnd := popped.rankEnd
		if end < newEnd {
			newEnd = end
		}
		if newEnd >= start {
			*out = append(*out, denseCellRange{
				fragIdx:    popped.fragIdx,
				tileCoords: tileCoords,
				rankStart:  start,
				rankEnd:    newEnd,
				posStart:   popped.posStart + (start - popped.rankStart),
			})
			start = newEnd + 1
		}
		if newEnd == popped.rankEnd {
			advance(popped.fragIdx)
		}
	}

	// Pad whatever the fragments did not cover
	if start <= end {
		*out = append(*out, denseCellRange{fragIdx: -1, tileCoords: tileCoords, rankStart: start, rankEnd: end})
	}
}

// =============================================================================
// Dense read orchestration helpers
// =============================================================================

// tileFragIters holds the per-fragment iterators of one output tile
type tileFragIters[T schema.Coord] struct {
	tileCoords []uint64
	iters      []*denseCellRangeIter[T]
}

// initTileFragmentIters builds, for every tile intersecting the sub-region,
// one cell-range iterator per dense fragment over the fragment's coverage
// within that tile. Sparse fragments get a nil slot.
func (r *Reader[T]) initTileFragmentIters(sub []T) (map[uint64]*tileFragIters[T], []uint64, error) {
	dom := r.schema.Domain
	n := dom.DimNum()

	subTileDomain := make([]uint64, 2*n)
	dom.GetTileDomain(sub, subTileDomain)

	tc := make([]uint64, n)
	for d := 0; d < n; d++ {
		tc[d] = subTileDomain[2*d]
	}

	tileSub := make([]T, 2*n)
	subInTile := make([]T, 2*n)
	fragInTile := make([]T, 2*n)

	out := make(map[uint64]*tileFragIters[T])
	for {
		dom.GetTileSubarray(tc, tileSub)
		if !schema.RectOverlap(sub, tileSub, subInTile, n) {
			return nil, nil, fmt.Errorf("%w: tile outside its own tile domain", ErrInternal)
		}

		ti := &tileFragIters[T]{
			tileCoords: append([]uint64(nil), tc...),
			iters:      make([]*denseCellRangeIter[T], len(r.fragments)),
		}
		for f, frag := range r.fragments {
			if !frag.Dense() {
				continue
			}
			if !schema.RectOverlap(subInTile, frag.NonEmptyDomain(), fragInTile, n) {
				continue
			}
			ti.iters[f] = newDenseCellRangeIter(dom, fragInTile, r.layout)
		}
		out[dom.GetTilePosInDomain(subTileDomain, tc)] = ti

		if !dom.GetNextTileCoordsInDomain(subTileDomain, tc) {
			break
		}
	}
	return out, subTileDomain, nil
}

// coordsCursor walks the sorted sparse coordinates alongside the dense
// range walk
type coordsCursor[T schema.Coord] struct {
	dom        *schema.Domain[T]
	layout     schema.Layout
	list       []overlappingCoord[T]
	idx        int
	tileCoords []uint64
	rank       uint64
}

// newCoordsCursor positions the cursor on the first valid coordinate
func newCoordsCursor[T schema.Coord](dom *schema.Domain[T], layout schema.Layout, list []overlappingCoord[T]) *coordsCursor[T] {
	eff := layout
	if eff == schema.GlobalOrder || eff == schema.Unordered {
		eff = dom.CellOrder()
	}
	c := &coordsCursor[T]{
		dom:        dom,
		layout:     eff,
		list:       list,
		idx:        -1,
		tileCoords: make([]uint64, dom.DimNum()),
	}
	c.advance()
	return c
}

// exhausted reports whether all coordinates were consumed
func (c *coordsCursor[T]) exhausted() bool {
	return c.idx >= len(c.list)
}

// current returns the coordinate under the cursor
func (c *coordsCursor[T]) current() *overlappingCoord[T] {
	return &c.list[c.idx]
}

// advance moves to the next valid coordinate and refreshes its tile
// coordinates and rank
func (c *coordsCursor[T]) advance() {
	c.idx = skipInvalid(c.list, c.idx+1)
	if c.idx < len(c.list) {
		c.dom.GetTileCoords(c.list[c.idx].coords, c.tileCoords)
		c.rank = c.dom.GetCellPosInTileForOrder(c.list[c.idx].coords, c.layout)
	}
}

// tileCoordsEqual compares two tile coordinate tuples
func tileCoordsEqual(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// handleCoordsInRange splices the sparse coordinates falling inside
// [*start, end] of the current dense run: a coordinate from a fragment
// newer than the run's replaces a single cell, an older one is dropped.
func handleCoordsInRange[T schema.Coord](
	curTile *OverlappingTile,
	curTileCoords []uint64,
	start *uint64,
	end uint64,
	posStart uint64,
	rankStart uint64,
	cursor *coordsCursor[T],
	out *[]CellRange,
) {
	for !cursor.exhausted() &&
		tileCoordsEqual(cursor.tileCoords, curTileCoords) &&
		cursor.rank >= *start && cursor.rank <= end {

		cd := cursor.current()
		if curTile != nil && cd.tile.FragIdx < curTile.FragIdx {
			// The coordinate is older than the dense run; drop it
			cursor.advance()
			continue
		}

		// Left part of the broken dense run
		if cursor.rank > *start {
			*out = append(*out, CellRange{
				Tile:  curTile,
				Start: posStart + (*start - rankStart),
				End:   posStart + (cursor.rank - 1 - rankStart),
			})
		}
		// The coordinate's unary range from its sparse tile
		*out = append(*out, CellRange{Tile: cd.tile, Start: cd.pos, End: cd.pos})

		*start = cursor.rank + 1
		cursor.advance()
	}
}
