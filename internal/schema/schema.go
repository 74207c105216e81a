package schema

import (
	"fmt"

	"github.com/soltixdb/gridstore/internal/filter"
)

// ArrayType distinguishes dense from sparse arrays
type ArrayType uint8

const (
	Dense ArrayType = iota
	Sparse
)

// Schema describes an array: its domain, attributes, and storage knobs
type Schema[T Coord] struct {
	Type     ArrayType
	Domain   *Domain[T]
	Capacity uint64 // max cells per sparse tile
	Attrs    []*Attribute

	// Filter pipelines for the coordinate and var-offset streams
	CoordsFilters  *filter.Pipeline
	OffsetsFilters *filter.Pipeline
}

// New creates and validates a schema
func New[T Coord](arrayType ArrayType, domain *Domain[T], capacity uint64, attrs ...*Attribute) (*Schema[T], error) {
	s := &Schema[T]{
		Type:     arrayType,
		Domain:   domain,
		Capacity: capacity,
		Attrs:    attrs,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks schema consistency
func (s *Schema[T]) Validate() error {
	if s.Domain == nil || s.Domain.DimNum() == 0 {
		return fmt.Errorf("schema requires a domain")
	}
	if len(s.Attrs) == 0 {
		return fmt.Errorf("schema requires at least one attribute")
	}
	if s.Dense() {
		if RealCoord[T]() {
			return fmt.Errorf("dense arrays require an integer domain")
		}
		if !s.Domain.HasTileExtents() {
			return fmt.Errorf("dense arrays require tile extents on every dimension")
		}
	} else if s.Capacity == 0 {
		return fmt.Errorf("sparse arrays require a positive capacity")
	}
	seen := make(map[string]bool, len(s.Attrs))
	for _, a := range s.Attrs {
		if a.Name == "" || a.Name == CoordsName {
			return fmt.Errorf("invalid attribute name %q", a.Name)
		}
		if seen[a.Name] {
			return fmt.Errorf("duplicate attribute %q", a.Name)
		}
		seen[a.Name] = true
	}
	return nil
}

// Dense reports whether the array is dense
func (s *Schema[T]) Dense() bool {
	return s.Type == Dense
}

// DimNum returns the number of dimensions
func (s *Schema[T]) DimNum() int {
	return s.Domain.DimNum()
}

// CoordsType returns the coordinate datatype
func (s *Schema[T]) CoordsType() Datatype {
	return CoordDatatype[T]()
}

// CoordsSize returns the byte size of one coordinate tuple
func (s *Schema[T]) CoordsSize() uint64 {
	return uint64(s.DimNum()) * ScalarSize[T]()
}

// Attribute returns the attribute with the given name, or nil
func (s *Schema[T]) Attribute(name string) *Attribute {
	for _, a := range s.Attrs {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// VarSize reports whether the named attribute is variable-length.
// The coordinates pseudo-attribute is fixed-length.
func (s *Schema[T]) VarSize(name string) bool {
	if name == CoordsName {
		return false
	}
	a := s.Attribute(name)
	return a != nil && a.VarLen
}

// CellSize returns the fixed-stream cell size of the named attribute
func (s *Schema[T]) CellSize(name string) uint64 {
	if name == CoordsName {
		return s.CoordsSize()
	}
	a := s.Attribute(name)
	if a == nil {
		return 0
	}
	return a.CellSize()
}

// Filters returns the filter pipeline for the named attribute's fixed
// stream. Coordinates use the coords pipeline; var-length attributes use
// the offsets pipeline for their fixed stream.
func (s *Schema[T]) Filters(name string) *filter.Pipeline {
	if name == CoordsName {
		return s.CoordsFilters
	}
	a := s.Attribute(name)
	if a == nil {
		return nil
	}
	if a.VarLen {
		return s.OffsetsFilters
	}
	return a.Filters
}

// VarFilters returns the filter pipeline for the named attribute's var
// stream
func (s *Schema[T]) VarFilters(name string) *filter.Pipeline {
	a := s.Attribute(name)
	if a == nil {
		return nil
	}
	return a.Filters
}
