package query

// Tile is one decoded attribute stream of an on-disk tile
type Tile struct {
	Data     []byte
	Filtered bool // Data holds decoded bytes
	CellSize uint64
	CellNum  uint64
}

// TilePair couples the fixed and var streams of one attribute tile.
// Fixed-length attributes leave Var unused.
type TilePair struct {
	Fixed Tile
	Var   Tile
}

// OverlappingTile is one on-disk tile that may contribute cells to the
// current sub-region. Created by the tile locator, populated by the tile
// fetcher, consumed by the copier.
type OverlappingTile struct {
	FragIdx int    // index into the reader's fragment list (ascending ID)
	TileIdx uint64 // tile index within the fragment
	Full    bool   // sub-region fully covers the tile

	Attrs map[string]*TilePair
}

// newOverlappingTile creates a tile shell for the given attributes
func newOverlappingTile(fragIdx int, tileIdx uint64, full bool) *OverlappingTile {
	return &OverlappingTile{
		FragIdx: fragIdx,
		TileIdx: tileIdx,
		Full:    full,
		Attrs:   make(map[string]*TilePair),
	}
}

// attrPair returns the tile pair for an attribute, creating it on demand
func (t *OverlappingTile) attrPair(name string) *TilePair {
	p, ok := t.Attrs[name]
	if !ok {
		p = &TilePair{}
		t.Attrs[name] = p
	}
	return p
}

// tileKey identifies a (fragment, tile) pair across ranges
type tileKey struct {
	fragIdx int
	tileIdx uint64
}

// clearTiles releases one attribute's decoded buffers across all tiles,
// capping memory in the attribute-at-a-time sparse path
func clearTiles(attr string, tiles []*OverlappingTile) {
	for _, t := range tiles {
		delete(t.Attrs, attr)
	}
}

// CellRange is a contiguous run of cells to emit from a single tile. A nil
// tile denotes an empty run to be filled with the attribute's fill value;
// its bounds only convey the cell count.
type CellRange struct {
	Tile  *OverlappingTile
	Start uint64
	End   uint64
}

// cellCount returns the number of cells in the range
func (c CellRange) cellCount() uint64 {
	return c.End - c.Start + 1
}
