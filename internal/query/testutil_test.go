package query

import (
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/soltixdb/gridstore/internal/cache"
	"github.com/soltixdb/gridstore/internal/config"
	"github.com/soltixdb/gridstore/internal/filter"
	"github.com/soltixdb/gridstore/internal/fragment"
	"github.com/soltixdb/gridstore/internal/logging"
	"github.com/soltixdb/gridstore/internal/pool"
	"github.com/soltixdb/gridstore/internal/schema"
	"github.com/soltixdb/gridstore/internal/storage"
	"github.com/soltixdb/gridstore/internal/vfs"
)

// newTestManager builds a storage manager over a MemFS
func newTestManager(t *testing.T) (*storage.Manager, *vfs.MemFS) {
	t.Helper()
	fs := vfs.NewMemFS()
	tc := cache.NewMemoryCache(time.Minute, 1000)
	tp := pool.New(4)
	t.Cleanup(func() {
		tp.Stop()
		_ = tc.Close()
	})

	sm, err := storage.NewManager(config.Default(), fs, tc, tp, logging.Nop())
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return sm, fs
}

// writeTileStream forward-filters one logical tile stream and appends it
// to a file, returning its slot
func writeTileStream(t *testing.T, fs *vfs.MemFS, uri string, p *filter.Pipeline, logical []byte, cellNum uint64) fragment.TileSlot {
	t.Helper()
	persisted, err := p.RunForward(logical)
	if err != nil {
		t.Fatalf("RunForward failed: %v", err)
	}
	offset := fs.Append(uri, persisted)
	return fragment.TileSlot{
		Offset:        offset,
		PersistedSize: uint64(len(persisted)),
		Size:          uint64(len(logical)),
		CellNum:       cellNum,
	}
}

// buildDenseFragment writes a dense fragment covering rect. gen is called
// for every cell of the tile-aligned expansion and returns, per attribute,
// the fixed element bytes or the var payload; cells it maps to nil get the
// attribute's fill value.
func buildDenseFragment[T schema.Coord](
	t *testing.T,
	fs *vfs.MemFS,
	sch *schema.Schema[T],
	id uint64,
	rect []T,
	gen func(coords []T) map[string][]byte,
) *fragment.Metadata[T] {
	t.Helper()
	dom := sch.Domain
	n := dom.DimNum()

	m := fragment.NewDense(dom, id, 1, rect)
	expanded := m.Domain()

	td := make([]uint64, 2*n)
	dom.GetTileDomain(expanded, td)
	tc := make([]uint64, n)
	for d := 0; d < n; d++ {
		tc[d] = td[2*d]
	}

	type attrState struct {
		files *fragment.AttrFiles
	}
	states := make(map[string]*attrState)
	for _, a := range sch.Attrs {
		f := &fragment.AttrFiles{URI: fmt.Sprintf("mem://frag%d/%s.dat", id, a.Name)}
		if a.VarLen {
			f.VarURI = fmt.Sprintf("mem://frag%d/%s_var.dat", id, a.Name)
		}
		states[a.Name] = &attrState{files: f}
	}

	tileSub := make([]T, 2*n)
	for {
		dom.GetTileSubarray(tc, tileSub)

		// Collect the tile's cells in cell order
		var cells [][]T
		it := newDenseCellRangeIter(dom, tileSub, dom.CellOrder())
		for !it.End() {
			start := it.SlabStart()
			for i := uint64(0); i < it.SlabLen(); i++ {
				c := append([]T(nil), start...)
				if dom.CellOrder() == schema.RowMajor {
					c[n-1] += T(i)
				} else {
					c[0] += T(i)
				}
				cells = append(cells, c)
			}
			it.Next()
		}

		for _, a := range sch.Attrs {
			st := states[a.Name]
			var fixed, varData []byte
			varOffset := uint64(0)
			for _, c := range cells {
				vals := gen(c)
				payload := vals[a.Name]
				if a.VarLen {
					if payload == nil {
						payload = a.FillValue()
					}
					fixed = append(fixed, schema.EncodeScalar(varOffset)...)
					varData = append(varData, payload...)
					varOffset += uint64(len(payload))
				} else {
					if payload == nil {
						payload = a.FillValue()
					}
					fixed = append(fixed, payload...)
				}
			}

			st.files.Tiles = append(st.files.Tiles,
				writeTileStream(t, fs, st.files.URI, sch.Filters(a.Name), fixed, uint64(len(cells))))
			if a.VarLen {
				st.files.VarTiles = append(st.files.VarTiles,
					writeTileStream(t, fs, st.files.VarURI, sch.VarFilters(a.Name), varData, uint64(len(cells))))
			}
		}

		if !dom.GetNextTileCoordsInDomain(td, tc) {
			break
		}
	}

	for name, st := range states {
		m.SetAttr(name, st.files)
	}
	return m
}

// testCell is one sparse cell: its coordinates plus per-attribute bytes
// (fixed element bytes, or the var payload for var-length attributes)
type testCell[T schema.Coord] struct {
	coords []T
	attrs  map[string][]byte
}

// buildSparseFragment writes a sparse fragment from the given cells,
// sorting them in global order and chunking by the schema capacity
func buildSparseFragment[T schema.Coord](
	t *testing.T,
	fs *vfs.MemFS,
	sch *schema.Schema[T],
	id uint64,
	cells []testCell[T],
) *fragment.Metadata[T] {
	t.Helper()
	dom := sch.Domain
	n := dom.DimNum()

	// Sort in global order: tile coords in tile order, cell order within
	sorted := append([]testCell[T](nil), cells...)
	if dom.HasTileExtents() {
		tca := make([]uint64, n)
		tcb := make([]uint64, n)
		sort.SliceStable(sorted, func(i, j int) bool {
			dom.GetTileCoords(sorted[i].coords, tca)
			dom.GetTileCoords(sorted[j].coords, tcb)
			for d := 0; d < n; d++ {
				if tca[d] != tcb[d] {
					return tca[d] < tcb[d]
				}
			}
			return cellLess(sorted[i].coords, sorted[j].coords, dom.CellOrder())
		})
	} else {
		sort.SliceStable(sorted, func(i, j int) bool {
			return cellLess(sorted[i].coords, sorted[j].coords, dom.CellOrder())
		})
	}

	// Non-empty domain
	ned := make([]T, 2*n)
	for d := 0; d < n; d++ {
		ned[2*d] = sorted[0].coords[d]
		ned[2*d+1] = sorted[0].coords[d]
	}
	for _, c := range sorted {
		for d := 0; d < n; d++ {
			if c.coords[d] < ned[2*d] {
				ned[2*d] = c.coords[d]
			}
			if c.coords[d] > ned[2*d+1] {
				ned[2*d+1] = c.coords[d]
			}
		}
	}

	m := fragment.NewSparse(dom, id, 1, ned)

	coordsFiles := &fragment.AttrFiles{URI: fmt.Sprintf("mem://frag%d/__coords.dat", id)}
	attrFiles := make(map[string]*fragment.AttrFiles)
	for _, a := range sch.Attrs {
		f := &fragment.AttrFiles{URI: fmt.Sprintf("mem://frag%d/%s.dat", id, a.Name)}
		if a.VarLen {
			f.VarURI = fmt.Sprintf("mem://frag%d/%s_var.dat", id, a.Name)
		}
		attrFiles[a.Name] = f
	}

	// Chunk into tiles by capacity; dense schemas carry none, so their
	// sparse fragments land in a single tile
	capPerTile := int(sch.Capacity)
	if capPerTile <= 0 {
		capPerTile = len(sorted)
	}
	for start := 0; start < len(sorted); start += capPerTile {
		end := start + capPerTile
		if end > len(sorted) {
			end = len(sorted)
		}
		chunk := sorted[start:end]

		// MBR
		mbr := make([]T, 2*n)
		for d := 0; d < n; d++ {
			mbr[2*d] = chunk[0].coords[d]
			mbr[2*d+1] = chunk[0].coords[d]
		}
		for _, c := range chunk {
			for d := 0; d < n; d++ {
				if c.coords[d] < mbr[2*d] {
					mbr[2*d] = c.coords[d]
				}
				if c.coords[d] > mbr[2*d+1] {
					mbr[2*d+1] = c.coords[d]
				}
			}
		}
		m.AddMBR(mbr)

		// Coordinates stream
		var coordsStream []byte
		for _, c := range chunk {
			coordsStream = append(coordsStream, schema.EncodeSlice(c.coords)...)
		}
		coordsFiles.Tiles = append(coordsFiles.Tiles,
			writeTileStream(t, fs, coordsFiles.URI, sch.CoordsFilters, coordsStream, uint64(len(chunk))))

		// Attribute streams
		for _, a := range sch.Attrs {
			f := attrFiles[a.Name]
			var fixed, varData []byte
			varOffset := uint64(0)
			for _, c := range chunk {
				payload := c.attrs[a.Name]
				if a.VarLen {
					fixed = append(fixed, schema.EncodeScalar(varOffset)...)
					varData = append(varData, payload...)
					varOffset += uint64(len(payload))
				} else {
					fixed = append(fixed, payload...)
				}
			}
			f.Tiles = append(f.Tiles,
				writeTileStream(t, fs, f.URI, sch.Filters(a.Name), fixed, uint64(len(chunk))))
			if a.VarLen {
				f.VarTiles = append(f.VarTiles,
					writeTileStream(t, fs, f.VarURI, sch.VarFilters(a.Name), varData, uint64(len(chunk))))
			}
		}
	}

	m.SetAttr(schema.CoordsName, coordsFiles)
	for name, f := range attrFiles {
		m.SetAttr(name, f)
	}
	return m
}

// encPipelines arms every schema pipeline with an encryption filter so
// fragment builders write encrypted tiles
func encPipelines[T schema.Coord](t *testing.T, sch *schema.Schema[T], key []byte) {
	t.Helper()
	for _, a := range sch.Attrs {
		p, err := a.Filters.WithEncryption(key)
		if err != nil {
			t.Fatalf("WithEncryption failed: %v", err)
		}
		a.Filters = p
	}
	cf, err := sch.CoordsFilters.WithEncryption(key)
	if err != nil {
		t.Fatalf("WithEncryption failed: %v", err)
	}
	sch.CoordsFilters = cf
	of, err := sch.OffsetsFilters.WithEncryption(key)
	if err != nil {
		t.Fatalf("WithEncryption failed: %v", err)
	}
	sch.OffsetsFilters = of
}

// cellLess compares coordinate tuples in the given order
func cellLess[T schema.Coord](a, b []T, order schema.Layout) bool {
	n := len(a)
	if order == schema.RowMajor {
		for d := 0; d < n; d++ {
			if a[d] != b[d] {
				return a[d] < b[d]
			}
		}
		return false
	}
	for d := n - 1; d >= 0; d-- {
		if a[d] != b[d] {
			return a[d] < b[d]
		}
	}
	return false
}

// schema2x2 is the baseline dense schema: [1..4, 1..4], 2x2 tiles, int32
// attribute "a" with fill -1
func schema2x2(t *testing.T) *schema.Schema[int32] {
	t.Helper()
	dom, err := schema.NewDomain(schema.RowMajor, schema.RowMajor,
		schema.Dimension[int32]{Name: "rows", Domain: [2]int32{1, 4}, TileExtent: 2},
		schema.Dimension[int32]{Name: "cols", Domain: [2]int32{1, 4}, TileExtent: 2},
	)
	if err != nil {
		t.Fatalf("NewDomain failed: %v", err)
	}
	a := schema.NewAttribute("a", schema.Int32)
	a.Fill = schema.EncodeScalar[int32](-1)
	sch, err := schema.New(schema.Dense, dom, 0, a)
	if err != nil {
		t.Fatalf("New schema failed: %v", err)
	}
	return sch
}

// int32sOf decodes a prefix of an int32 output buffer
func int32sOf(buf []byte, size uint64) []int32 {
	return schema.DecodeSlice[int32](buf[:size])
}

// uint64sOf decodes a prefix of a uint64 output buffer
func uint64sOf(buf []byte, size uint64) []uint64 {
	return schema.DecodeSlice[uint64](buf[:size])
}
