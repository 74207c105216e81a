package query

import (
	"context"
	"fmt"

	"github.com/soltixdb/gridstore/internal/filter"
	"github.com/soltixdb/gridstore/internal/pool"
	"github.com/soltixdb/gridstore/internal/schema"
	"github.com/soltixdb/gridstore/internal/vfs"
)

// readAllTiles populates the fixed and var buffers of every tile for all
// attributes, batching the regions of each file into single VFS calls and
// awaiting them together.
func (r *Reader[T]) readAllTiles(ctx context.Context, attrs []string, tiles []*OverlappingTile) error {
	if len(tiles) == 0 {
		return nil
	}

	regions := make(map[string][]vfs.Region)
	for _, attr := range attrs {
		if err := r.stageTileReads(ctx, attr, tiles, regions); err != nil {
			return err
		}
	}

	var tasks []*pool.Task
	for uri, regs := range regions {
		tasks = append(tasks, r.sm.VFS().ReadAll(uri, regs, r.sm.ReaderPool())...)
	}
	if err := r.sm.ReaderPool().WaitAllStatus(tasks); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	return ctx.Err()
}

// readTiles reads one attribute's tiles
func (r *Reader[T]) readTiles(ctx context.Context, attr string, tiles []*OverlappingTile) error {
	return r.readAllTiles(ctx, []string{attr}, tiles)
}

// stageTileReads resolves tile byte ranges from fragment metadata, consults
// the cache, and appends the misses to the per-URI region lists
func (r *Reader[T]) stageTileReads(ctx context.Context, attr string, tiles []*OverlappingTile, regions map[string][]vfs.Region) error {
	varSize := r.schema.VarSize(attr)
	cellSize := r.schema.CellSize(attr)

	for _, tile := range tiles {
		frag := r.fragments[tile.FragIdx]
		pair := tile.attrPair(attr)

		cellNum, err := frag.TileCellNum(attr, tile.TileIdx)
		if err != nil {
			return err
		}
		pair.Fixed.CellSize = cellSize
		pair.Fixed.CellNum = cellNum

		uri, err := frag.AttrURI(attr)
		if err != nil {
			return err
		}
		offset, err := frag.FileOffset(attr, tile.TileIdx)
		if err != nil {
			return err
		}
		size, err := frag.TileSize(attr, tile.TileIdx)
		if err != nil {
			return err
		}
		persisted, err := frag.PersistedTileSize(attr, tile.TileIdx)
		if err != nil {
			return err
		}

		// Try the cache first; hits hold decoded bytes
		pair.Fixed.Data = make([]byte, size)
		hit, err := r.sm.ReadFromCache(ctx, uri, offset, pair.Fixed.Data)
		if err != nil {
			return err
		}
		if hit {
			pair.Fixed.Filtered = true
		} else {
			pair.Fixed.Data = make([]byte, persisted)
			pair.Fixed.Filtered = false
			regions[uri] = append(regions[uri], vfs.Region{Offset: offset, Dest: pair.Fixed.Data})
		}

		if !varSize {
			continue
		}

		varURI, err := frag.AttrVarURI(attr)
		if err != nil {
			return err
		}
		varOffset, err := frag.FileVarOffset(attr, tile.TileIdx)
		if err != nil {
			return err
		}
		varTileSize, err := frag.TileVarSize(attr, tile.TileIdx)
		if err != nil {
			return err
		}
		varPersisted, err := frag.PersistedTileVarSize(attr, tile.TileIdx)
		if err != nil {
			return err
		}

		pair.Var.CellSize = r.fillElemSize(attr)
		pair.Var.CellNum = cellNum
		pair.Var.Data = make([]byte, varTileSize)
		hit, err = r.sm.ReadFromCache(ctx, varURI, varOffset, pair.Var.Data)
		if err != nil {
			return err
		}
		if hit {
			pair.Var.Filtered = true
		} else {
			pair.Var.Data = make([]byte, varPersisted)
			pair.Var.Filtered = false
			regions[varURI] = append(regions[varURI], vfs.Region{Offset: varOffset, Dest: pair.Var.Data})
		}
	}
	return nil
}

// filterItem is one tile stream awaiting its reverse filter pass
type filterItem struct {
	tile     *OverlappingTile
	attr     string
	pipeline *filter.Pipeline
	varPass  bool
}

// filterAllTiles runs the reverse filter pipelines over every freshly read
// tile, in parallel across (attribute, tile) pairs, and writes the decoded
// bytes through to the cache
func (r *Reader[T]) filterAllTiles(ctx context.Context, attrs []string, tiles []*OverlappingTile) error {
	if len(tiles) == 0 {
		return nil
	}

	var items []filterItem
	for _, attr := range attrs {
		pipeline, err := r.schema.Filters(attr).WithEncryption(r.encKey)
		if err != nil {
			return err
		}
		var varPipeline *filter.Pipeline
		if r.schema.VarSize(attr) {
			varPipeline, err = r.schema.VarFilters(attr).WithEncryption(r.encKey)
			if err != nil {
				return err
			}
		}
		for _, tile := range tiles {
			pair, ok := tile.Attrs[attr]
			if !ok {
				continue
			}
			if !pair.Fixed.Filtered {
				items = append(items, filterItem{tile: tile, attr: attr, pipeline: pipeline})
			}
			if varPipeline != nil && !pair.Var.Filtered {
				items = append(items, filterItem{tile: tile, attr: attr, pipeline: varPipeline, varPass: true})
			}
		}
	}

	err := r.sm.ReaderPool().ParallelFor(ctx, len(items), func(i int) error {
		return r.filterTile(ctx, items[i])
	})
	if err != nil {
		return err
	}
	return ctx.Err()
}

// filterTiles runs the reverse pipelines for one attribute
func (r *Reader[T]) filterTiles(ctx context.Context, attr string, tiles []*OverlappingTile) error {
	return r.filterAllTiles(ctx, []string{attr}, tiles)
}

// filterTile decodes one tile stream in place and caches the result
func (r *Reader[T]) filterTile(ctx context.Context, item filterItem) error {
	frag := r.fragments[item.tile.FragIdx]
	pair := item.tile.Attrs[item.attr]

	t := &pair.Fixed
	var uri string
	var offset uint64
	var err error
	if item.varPass {
		t = &pair.Var
		uri, err = frag.AttrVarURI(item.attr)
		if err != nil {
			return err
		}
		offset, err = frag.FileVarOffset(item.attr, item.tile.TileIdx)
	} else {
		uri, err = frag.AttrURI(item.attr)
		if err != nil {
			return err
		}
		offset, err = frag.FileOffset(item.attr, item.tile.TileIdx)
	}
	if err != nil {
		return err
	}

	decoded, err := item.pipeline.RunReverse(t.Data)
	if err != nil {
		return fmt.Errorf("%w: attribute %s: %w", ErrDecode, item.attr, err)
	}
	t.Data = decoded
	t.Filtered = true

	return r.sm.WriteToCache(ctx, uri, offset, decoded)
}

// attrsWithCoords returns the registered attributes, ensuring the
// coordinates pseudo-attribute is present
func attrsWithCoords(attrs []string) []string {
	for _, a := range attrs {
		if a == schema.CoordsName {
			return attrs
		}
	}
	out := make([]string, 0, len(attrs)+1)
	out = append(out, attrs...)
	return append(out, schema.CoordsName)
}

// attrsWithoutCoords filters the coordinates pseudo-attribute out
func attrsWithoutCoords(attrs []string) []string {
	out := make([]string, 0, len(attrs))
	for _, a := range attrs {
		if a != schema.CoordsName {
			out = append(out, a)
		}
	}
	return out
}
