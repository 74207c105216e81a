package schema

import (
	"github.com/soltixdb/gridstore/internal/filter"
)

// Reserved attribute name addressing the coordinate tuples of a query
const CoordsName = "__coords"

// CellVarOffsetSize is the byte size of one var-length cell offset
const CellVarOffsetSize uint64 = 8

// Attribute describes one typed value stored per cell
type Attribute struct {
	Name    string
	Type    Datatype
	VarLen  bool
	Filters *filter.Pipeline
	Fill    []byte // fill value for one element; nil means the type default
}

// NewAttribute creates a fixed-length attribute
func NewAttribute(name string, dtype Datatype) *Attribute {
	return &Attribute{Name: name, Type: dtype}
}

// NewVarAttribute creates a variable-length attribute
func NewVarAttribute(name string, dtype Datatype) *Attribute {
	return &Attribute{Name: name, Type: dtype, VarLen: true}
}

// FillValue returns the fill value for one element
func (a *Attribute) FillValue() []byte {
	if a.Fill != nil {
		return a.Fill
	}
	return a.Type.DefaultFill()
}

// CellSize returns the fixed-stream size of one cell: the offset size for
// var-length attributes, the value size otherwise
func (a *Attribute) CellSize() uint64 {
	if a.VarLen {
		return CellVarOffsetSize
	}
	return a.Type.Size()
}
