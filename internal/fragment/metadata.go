// Package fragment holds the read-only metadata of committed writes.
// A fragment with a larger ID is newer and logically overwrites older
// fragments at shared coordinates.
package fragment

import (
	"fmt"

	"github.com/soltixdb/gridstore/internal/schema"
)

// TileSlot locates one tile inside an attribute file
type TileSlot struct {
	Offset        uint64 // byte offset in the file
	PersistedSize uint64 // on-disk (filtered) size
	Size          uint64 // logical (decoded) size
	CellNum       uint64 // cells stored in the tile
}

// AttrFiles holds the per-attribute tile tables of a fragment
type AttrFiles struct {
	URI      string
	Tiles    []TileSlot
	VarURI   string // var-length attributes only
	VarTiles []TileSlot
}

// Metadata describes one committed fragment
type Metadata[T schema.Coord] struct {
	id             uint64
	dense          bool
	formatVersion  uint32
	nonEmptyDomain []T // flat rectangle

	// Dense fragments: domain expanded to tile boundaries plus its tile grid
	domain     []T
	tileDomain []uint64

	// Sparse fragments: one MBR per tile
	mbrs [][]T

	attrs map[string]*AttrFiles
	dom   *schema.Domain[T]
}

// NewDense creates metadata for a dense fragment covering nonEmptyDomain
func NewDense[T schema.Coord](dom *schema.Domain[T], id uint64, formatVersion uint32, nonEmptyDomain []T) *Metadata[T] {
	n := dom.DimNum()
	m := &Metadata[T]{
		id:             id,
		dense:          true,
		formatVersion:  formatVersion,
		nonEmptyDomain: append([]T(nil), nonEmptyDomain...),
		domain:         make([]T, 2*n),
		tileDomain:     make([]uint64, 2*n),
		attrs:          make(map[string]*AttrFiles),
		dom:            dom,
	}
	dom.ExpandToTileBoundaries(nonEmptyDomain, m.domain)
	dom.GetTileDomain(m.domain, m.tileDomain)
	return m
}

// NewSparse creates metadata for a sparse fragment
func NewSparse[T schema.Coord](dom *schema.Domain[T], id uint64, formatVersion uint32, nonEmptyDomain []T) *Metadata[T] {
	return &Metadata[T]{
		id:             id,
		formatVersion:  formatVersion,
		nonEmptyDomain: append([]T(nil), nonEmptyDomain...),
		attrs:          make(map[string]*AttrFiles),
		dom:            dom,
	}
}

// ID returns the fragment ID; larger means newer
func (m *Metadata[T]) ID() uint64 {
	return m.id
}

// Dense reports whether the fragment is dense
func (m *Metadata[T]) Dense() bool {
	return m.dense
}

// FormatVersion returns the on-disk format version
func (m *Metadata[T]) FormatVersion() uint32 {
	return m.formatVersion
}

// NonEmptyDomain returns the flat rectangle the fragment wrote into
func (m *Metadata[T]) NonEmptyDomain() []T {
	return m.nonEmptyDomain
}

// Domain returns the tile-aligned expansion of the non-empty domain.
// Dense fragments only.
func (m *Metadata[T]) Domain() []T {
	return m.domain
}

// AddMBR appends a sparse tile's minimum bounding rectangle
func (m *Metadata[T]) AddMBR(mbr []T) {
	m.mbrs = append(m.mbrs, append([]T(nil), mbr...))
}

// MBRs returns the per-tile bounding rectangles of a sparse fragment
func (m *Metadata[T]) MBRs() [][]T {
	return m.mbrs
}

// SetAttr registers the tile tables of one attribute
func (m *Metadata[T]) SetAttr(name string, files *AttrFiles) {
	m.attrs[name] = files
}

// attr returns the attribute files or an error
func (m *Metadata[T]) attr(name string) (*AttrFiles, error) {
	f, ok := m.attrs[name]
	if !ok {
		return nil, fmt.Errorf("fragment %d has no attribute %q", m.id, name)
	}
	return f, nil
}

// AttrURI returns the file holding the attribute's fixed stream
func (m *Metadata[T]) AttrURI(name string) (string, error) {
	f, err := m.attr(name)
	if err != nil {
		return "", err
	}
	return f.URI, nil
}

// AttrVarURI returns the file holding the attribute's var stream
func (m *Metadata[T]) AttrVarURI(name string) (string, error) {
	f, err := m.attr(name)
	if err != nil {
		return "", err
	}
	return f.VarURI, nil
}

// tileSlot fetches a fixed-stream tile slot
func (m *Metadata[T]) tileSlot(name string, tileIdx uint64) (TileSlot, error) {
	f, err := m.attr(name)
	if err != nil {
		return TileSlot{}, err
	}
	if tileIdx >= uint64(len(f.Tiles)) {
		return TileSlot{}, fmt.Errorf("fragment %d attribute %q: tile %d out of range", m.id, name, tileIdx)
	}
	return f.Tiles[tileIdx], nil
}

// varTileSlot fetches a var-stream tile slot
func (m *Metadata[T]) varTileSlot(name string, tileIdx uint64) (TileSlot, error) {
	f, err := m.attr(name)
	if err != nil {
		return TileSlot{}, err
	}
	if tileIdx >= uint64(len(f.VarTiles)) {
		return TileSlot{}, fmt.Errorf("fragment %d attribute %q: var tile %d out of range", m.id, name, tileIdx)
	}
	return f.VarTiles[tileIdx], nil
}

// FileOffset returns the byte offset of a tile's fixed stream
func (m *Metadata[T]) FileOffset(name string, tileIdx uint64) (uint64, error) {
	s, err := m.tileSlot(name, tileIdx)
	if err != nil {
		return 0, err
	}
	return s.Offset, nil
}

// TileSize returns the decoded size of a tile's fixed stream
func (m *Metadata[T]) TileSize(name string, tileIdx uint64) (uint64, error) {
	s, err := m.tileSlot(name, tileIdx)
	if err != nil {
		return 0, err
	}
	return s.Size, nil
}

// PersistedTileSize returns the on-disk size of a tile's fixed stream
func (m *Metadata[T]) PersistedTileSize(name string, tileIdx uint64) (uint64, error) {
	s, err := m.tileSlot(name, tileIdx)
	if err != nil {
		return 0, err
	}
	return s.PersistedSize, nil
}

// TileCellNum returns the number of cells in a tile
func (m *Metadata[T]) TileCellNum(name string, tileIdx uint64) (uint64, error) {
	s, err := m.tileSlot(name, tileIdx)
	if err != nil {
		return 0, err
	}
	return s.CellNum, nil
}

// FileVarOffset returns the byte offset of a tile's var stream
func (m *Metadata[T]) FileVarOffset(name string, tileIdx uint64) (uint64, error) {
	s, err := m.varTileSlot(name, tileIdx)
	if err != nil {
		return 0, err
	}
	return s.Offset, nil
}

// TileVarSize returns the decoded size of a tile's var stream
func (m *Metadata[T]) TileVarSize(name string, tileIdx uint64) (uint64, error) {
	s, err := m.varTileSlot(name, tileIdx)
	if err != nil {
		return 0, err
	}
	return s.Size, nil
}

// PersistedTileVarSize returns the on-disk size of a tile's var stream
func (m *Metadata[T]) PersistedTileVarSize(name string, tileIdx uint64) (uint64, error) {
	s, err := m.varTileSlot(name, tileIdx)
	if err != nil {
		return 0, err
	}
	return s.PersistedSize, nil
}

// TileNum returns the number of tiles in the fragment
func (m *Metadata[T]) TileNum() uint64 {
	if !m.dense {
		return uint64(len(m.mbrs))
	}
	n := uint64(1)
	for i := 0; i < m.dom.DimNum(); i++ {
		n *= m.tileDomain[2*i+1] - m.tileDomain[2*i] + 1
	}
	return n
}

// GetTilePos maps global tile coordinates to the fragment's tile index.
// Dense fragments only; the tile must lie inside the fragment's domain.
func (m *Metadata[T]) GetTilePos(tileCoords []uint64) uint64 {
	return m.dom.GetTilePosInDomain(m.tileDomain, tileCoords)
}

// CoversTile reports whether a dense fragment stores the tile at the given
// global tile coordinates
func (m *Metadata[T]) CoversTile(tileCoords []uint64) bool {
	for i := 0; i < m.dom.DimNum(); i++ {
		if tileCoords[i] < m.tileDomain[2*i] || tileCoords[i] > m.tileDomain[2*i+1] {
			return false
		}
	}
	return true
}

// AvgCellVarSize returns the average var-stream bytes per cell of an
// attribute, for result estimation. Returns fallback when unknown.
func (m *Metadata[T]) AvgCellVarSize(name string, fallback uint64) uint64 {
	f, ok := m.attrs[name]
	if !ok || len(f.VarTiles) == 0 {
		return fallback
	}
	var cells, bytes uint64
	for i, s := range f.VarTiles {
		bytes += s.Size
		cells += f.Tiles[i].CellNum
	}
	if cells == 0 {
		return fallback
	}
	return bytes / cells
}
