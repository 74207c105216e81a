package schema

import (
	"bytes"
	"testing"
)

func TestSchemaValidate(t *testing.T) {
	d := testDomain2D(t)

	s, err := New(Dense, d, 0, NewAttribute("a", Int32))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if !s.Dense() {
		t.Error("Expected dense schema")
	}
	if s.CoordsType() != Int32 {
		t.Errorf("Expected coords type int32, got %s", s.CoordsType())
	}
	if s.CoordsSize() != 8 {
		t.Errorf("Expected coords size 8, got %d", s.CoordsSize())
	}
}

func TestSchemaValidate_DenseFloatRejected(t *testing.T) {
	d, err := NewDomain(RowMajor, RowMajor,
		Dimension[float64]{Name: "x", Domain: [2]float64{0, 1}, TileExtent: 0.5},
	)
	if err != nil {
		t.Fatalf("NewDomain failed: %v", err)
	}

	if _, err := New(Dense, d, 0, NewAttribute("a", Float64)); err == nil {
		t.Error("Expected error for dense float domain")
	}
}

func TestSchemaValidate_SparseNeedsCapacity(t *testing.T) {
	d := testDomain2D(t)
	if _, err := New(Sparse, d, 0, NewAttribute("a", Int32)); err == nil {
		t.Error("Expected error for zero capacity")
	}
}

func TestSchemaValidate_ReservedAttributeName(t *testing.T) {
	d := testDomain2D(t)
	if _, err := New(Dense, d, 0, NewAttribute(CoordsName, Int32)); err == nil {
		t.Error("Expected error for reserved attribute name")
	}
}

func TestSchemaValidate_DuplicateAttribute(t *testing.T) {
	d := testDomain2D(t)
	if _, err := New(Dense, d, 0, NewAttribute("a", Int32), NewAttribute("a", Int64)); err == nil {
		t.Error("Expected error for duplicate attribute")
	}
}

func TestCellSizes(t *testing.T) {
	d := testDomain2D(t)
	s, err := New(Dense, d, 0,
		NewAttribute("a", Int64),
		NewVarAttribute("name", Char),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if got := s.CellSize("a"); got != 8 {
		t.Errorf("Expected cell size 8 for a, got %d", got)
	}
	if got := s.CellSize("name"); got != CellVarOffsetSize {
		t.Errorf("Expected offset cell size for name, got %d", got)
	}
	if got := s.CellSize(CoordsName); got != 8 {
		t.Errorf("Expected coords cell size 8, got %d", got)
	}
	if !s.VarSize("name") || s.VarSize("a") || s.VarSize(CoordsName) {
		t.Error("VarSize misclassification")
	}
}

func TestAttributeFill(t *testing.T) {
	a := NewAttribute("a", Int32)
	if len(a.FillValue()) != 4 {
		t.Errorf("Expected 4-byte fill, got %d", len(a.FillValue()))
	}

	a.Fill = EncodeScalar[int32](-1)
	if !bytes.Equal(a.FillValue(), []byte{0xff, 0xff, 0xff, 0xff}) {
		t.Errorf("Expected custom fill -1, got %v", a.FillValue())
	}
}

func TestEncodeDecodeSlice(t *testing.T) {
	vals := []int32{-5, 0, 7, 1 << 20}
	buf := EncodeSlice(vals)
	got := DecodeSlice[int32](buf)

	if len(got) != len(vals) {
		t.Fatalf("Expected %d values, got %d", len(vals), len(got))
	}
	for i := range vals {
		if got[i] != vals[i] {
			t.Errorf("Value %d: expected %d, got %d", i, vals[i], got[i])
		}
	}
}

func TestEncodeDecodeSlice_Float(t *testing.T) {
	vals := []float64{-1.5, 0, 3.25}
	got := DecodeSlice[float64](EncodeSlice(vals))
	for i := range vals {
		if got[i] != vals[i] {
			t.Errorf("Value %d: expected %v, got %v", i, vals[i], got[i])
		}
	}
}

func TestDatatypeSizes(t *testing.T) {
	cases := map[Datatype]uint64{
		Int8: 1, Uint8: 1, Char: 1,
		Int16: 2, Uint16: 2,
		Int32: 4, Uint32: 4, Float32: 4,
		Int64: 8, Uint64: 8, Float64: 8,
	}
	for dt, want := range cases {
		if got := dt.Size(); got != want {
			t.Errorf("%s: expected size %d, got %d", dt, want, got)
		}
	}
}
