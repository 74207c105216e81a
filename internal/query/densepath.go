package query

import (
	"context"

	"github.com/soltixdb/gridstore/internal/schema"
)

// denseRead processes the current dense sub-region: sparse overrides are
// resolved first, dense fragments are merged per output tile, and the
// resulting cell ranges are materialized per attribute.
func (r *Reader[T]) denseRead(ctx context.Context) error {
	sub, ok := r.part.Current().Flat()
	if !ok {
		return ErrInvalidRange
	}
	dom := r.schema.Domain

	// Locate, read and decode the sparse tiles that may override dense data
	sparseTiles := r.computeOverlappingTilesFlat(sub)
	ensured := attrsWithCoords(r.attrs)
	if err := r.readAllTiles(ctx, ensured, sparseTiles); err != nil {
		return err
	}
	if err := r.filterAllTiles(ctx, ensured, sparseTiles); err != nil {
		return err
	}

	// Extract the in-region sparse coordinates
	views := decodeCoordsViews[T](sparseTiles)
	var coords []overlappingCoord[T]
	for _, t := range sparseTiles {
		view := views[t]
		if t.Full {
			getAllCoords(t, view, dom.DimNum(), &coords)
		} else {
			getCoordsInRect(t, view, sub, dom.DimNum(), &coords)
		}
	}
	computeTileCoords(dom, coords)

	// Sort and dedup, unless a single fragment feeds a global-order read
	if !(len(r.fragments) == 1 && r.layout == schema.GlobalOrder) {
		sortCoords(dom, r.layout, coords)
		dedupCoords(coords, dom.DimNum())
	}

	// One dense cell-range iterator per (output tile, dense fragment)
	itersByPos, subTileDomain, err := r.initTileFragmentIters(sub)
	if err != nil {
		return err
	}

	// Merge fragment runs under every output slab
	var denseRanges []denseCellRange
	out := newOutputSlabIter(dom, sub, r.layout)
	for !out.End() {
		pos := dom.GetTilePosInDomain(subTileDomain, out.TileCoords())
		ti := itersByPos[pos]
		computeDenseCellRanges(ti.tileCoords, ti.iters, out.RankStart(), out.RankEnd(), &denseRanges)
		out.Next()
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Materialize overlapping dense tiles and splice the sparse overrides
	denseTiles, cellRanges := r.computeDenseTilesAndCellRanges(denseRanges, coords)

	// Read and decode the dense tiles the ranges reference
	plain := attrsWithoutCoords(r.attrs)
	if err := r.readAllTiles(ctx, plain, denseTiles); err != nil {
		return err
	}
	if err := r.filterAllTiles(ctx, plain, denseTiles); err != nil {
		return err
	}

	// Copy cells
	for _, attr := range plain {
		if r.overflowed {
			break
		}
		if err := r.copyCells(ctx, attr, cellRanges); err != nil {
			return err
		}
	}

	// Regenerate coordinates if the user requested them
	if !r.overflowed {
		if err := r.fillCoordsBuffer(sub); err != nil {
			return err
		}
	}

	return ctx.Err()
}

// computeDenseTilesAndCellRanges converts merged dense runs into copier
// cell ranges keyed by their overlapping tiles, splicing in the sparse
// coordinates that override dense cells
func (r *Reader[T]) computeDenseTilesAndCellRanges(denseRanges []denseCellRange, coords []overlappingCoord[T]) ([]*OverlappingTile, []CellRange) {
	if len(denseRanges) == 0 {
		return nil, nil
	}
	dom := r.schema.Domain

	var tiles []*OverlappingTile
	tileMap := make(map[tileKey]*OverlappingTile)
	getTile := func(dr denseCellRange) *OverlappingTile {
		if dr.fragIdx == -1 {
			return nil
		}
		frag := r.fragments[dr.fragIdx]
		key := tileKey{fragIdx: dr.fragIdx, tileIdx: frag.GetTilePos(dr.tileCoords)}
		if t, ok := tileMap[key]; ok {
			return t
		}
		t := newOverlappingTile(key.fragIdx, key.tileIdx, false)
		tileMap[key] = t
		tiles = append(tiles, t)
		return t
	}

	cursor := newCoordsCursor(dom, r.layout, coords)
	var out []CellRange

	// Current accumulated run
	first := denseRanges[0]
	curTile := getTile(first)
	curTileCoords := first.tileCoords
	start, end := first.rankStart, first.rankEnd
	rankOrigin := first.rankStart
	posStart := first.posStart
	if curTile == nil {
		posStart = rankOrigin
	}

	flush := func() {
		handleCoordsInRange(curTile, curTileCoords, &start, end, posStart, rankOrigin, cursor, &out)
		if start <= end {
			out = append(out, CellRange{
				Tile:  curTile,
				Start: posStart + (start - rankOrigin),
				End:   posStart + (end - rankOrigin),
			})
		}
	}

	for _, dr := range denseRanges[1:] {
		tile := getTile(dr)

		// Append to the current run when the tile matches and both rank and
		// cell positions stay contiguous. Two empty runs only merge within
		// the same dense output tile.
		if tile == curTile &&
			(tile != nil || tileCoordsEqual(curTileCoords, dr.tileCoords)) &&
			dr.rankStart == end+1 &&
			(tile == nil || dr.posStart == posStart+(dr.rankStart-rankOrigin)) {
			end = dr.rankEnd
			continue
		}

		flush()

		curTile = tile
		curTileCoords = dr.tileCoords
		start, end = dr.rankStart, dr.rankEnd
		rankOrigin = dr.rankStart
		posStart = dr.posStart
		if curTile == nil {
			posStart = rankOrigin
		}
	}

	flush()
	return tiles, out
}
