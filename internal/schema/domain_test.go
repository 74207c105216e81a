package schema

import (
	"testing"
)

func testDomain2D(t *testing.T) *Domain[int32] {
	t.Helper()
	d, err := NewDomain(RowMajor, RowMajor,
		Dimension[int32]{Name: "rows", Domain: [2]int32{1, 4}, TileExtent: 2},
		Dimension[int32]{Name: "cols", Domain: [2]int32{1, 4}, TileExtent: 2},
	)
	if err != nil {
		t.Fatalf("NewDomain failed: %v", err)
	}
	return d
}

func TestNewDomain_Invalid(t *testing.T) {
	if _, err := NewDomain[int32](RowMajor, RowMajor); err == nil {
		t.Error("Expected error for empty domain")
	}

	_, err := NewDomain(RowMajor, RowMajor,
		Dimension[int32]{Name: "d", Domain: [2]int32{5, 1}, TileExtent: 2})
	if err == nil {
		t.Error("Expected error for inverted domain")
	}

	_, err = NewDomain(GlobalOrder, RowMajor,
		Dimension[int32]{Name: "d", Domain: [2]int32{1, 5}, TileExtent: 2})
	if err == nil {
		t.Error("Expected error for invalid cell order")
	}
}

func TestCellNumPerTile(t *testing.T) {
	d := testDomain2D(t)
	if got := d.CellNumPerTile(); got != 4 {
		t.Errorf("Expected 4 cells per tile, got %d", got)
	}
}

func TestGetTileCoords(t *testing.T) {
	d := testDomain2D(t)
	tc := make([]uint64, 2)

	d.GetTileCoords([]int32{1, 1}, tc)
	if tc[0] != 0 || tc[1] != 0 {
		t.Errorf("Expected tile (0,0), got (%d,%d)", tc[0], tc[1])
	}

	d.GetTileCoords([]int32{3, 2}, tc)
	if tc[0] != 1 || tc[1] != 0 {
		t.Errorf("Expected tile (1,0), got (%d,%d)", tc[0], tc[1])
	}
}

func TestGetTileSubarray(t *testing.T) {
	d := testDomain2D(t)
	out := make([]int32, 4)

	d.GetTileSubarray([]uint64{1, 1}, out)
	want := []int32{3, 4, 3, 4}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("Expected tile subarray %v, got %v", want, out)
		}
	}
}

func TestGetCellPosInTile_RowMajor(t *testing.T) {
	d := testDomain2D(t)

	// Tile (0,0) covers [1..2, 1..2]; row-major positions
	cases := []struct {
		c   []int32
		pos uint64
	}{
		{[]int32{1, 1}, 0},
		{[]int32{1, 2}, 1},
		{[]int32{2, 1}, 2},
		{[]int32{2, 2}, 3},
		{[]int32{3, 4}, 1}, // tile (1,1), second cell of first row
	}
	for _, tc := range cases {
		if got := d.GetCellPosInTile(tc.c); got != tc.pos {
			t.Errorf("GetCellPosInTile(%v): expected %d, got %d", tc.c, tc.pos, got)
		}
	}
}

func TestGetCellPosInTile_ColMajor(t *testing.T) {
	d, err := NewDomain(ColMajor, RowMajor,
		Dimension[int32]{Name: "rows", Domain: [2]int32{1, 4}, TileExtent: 2},
		Dimension[int32]{Name: "cols", Domain: [2]int32{1, 4}, TileExtent: 2},
	)
	if err != nil {
		t.Fatalf("NewDomain failed: %v", err)
	}

	if got := d.GetCellPosInTile([]int32{2, 1}); got != 1 {
		t.Errorf("Expected col-major pos 1, got %d", got)
	}
	if got := d.GetCellPosInTile([]int32{1, 2}); got != 2 {
		t.Errorf("Expected col-major pos 2, got %d", got)
	}
}

func TestTileIteration_RowMajor(t *testing.T) {
	d := testDomain2D(t)
	sub := []int32{1, 4, 1, 4}
	td := make([]uint64, 4)
	d.GetTileDomain(sub, td)

	if n := d.TileNumInSubarray(sub); n != 4 {
		t.Fatalf("Expected 4 tiles, got %d", n)
	}

	tc := []uint64{td[0], td[2]}
	var visited [][2]uint64
	for {
		visited = append(visited, [2]uint64{tc[0], tc[1]})
		if !d.GetNextTileCoordsInDomain(td, tc) {
			break
		}
	}

	want := [][2]uint64{{0, 0}, {0, 1}, {1, 0}, {1, 1}}
	if len(visited) != len(want) {
		t.Fatalf("Expected %d tiles visited, got %d", len(want), len(visited))
	}
	for i := range want {
		if visited[i] != want[i] {
			t.Errorf("Tile %d: expected %v, got %v", i, want[i], visited[i])
		}
	}
}

func TestGetTilePosInDomain(t *testing.T) {
	d := testDomain2D(t)
	td := []uint64{0, 1, 0, 1}

	if got := d.GetTilePosInDomain(td, []uint64{0, 1}); got != 1 {
		t.Errorf("Expected tile pos 1, got %d", got)
	}
	if got := d.GetTilePosInDomain(td, []uint64{1, 0}); got != 2 {
		t.Errorf("Expected tile pos 2, got %d", got)
	}
}

func TestSplitSubarray_Int(t *testing.T) {
	d := testDomain2D(t)

	a, b, ok := d.SplitSubarray([]int32{1, 4, 1, 2}, RowMajor)
	if !ok {
		t.Fatal("Expected splittable subarray")
	}
	// Row-major cuts the slowest-varying dimension
	wantA := []int32{1, 2, 1, 2}
	wantB := []int32{3, 4, 1, 2}
	for i := range wantA {
		if a[i] != wantA[i] || b[i] != wantB[i] {
			t.Fatalf("Expected halves %v / %v, got %v / %v", wantA, wantB, a, b)
		}
	}
}

func TestSplitSubarray_TieBreaksLowestDim(t *testing.T) {
	d := testDomain2D(t)

	a, b, ok := d.SplitSubarray([]int32{1, 2, 1, 2}, Unordered)
	if !ok {
		t.Fatal("Expected splittable subarray")
	}
	if a[1] != 1 || b[0] != 2 {
		t.Errorf("Expected split along dim 0, got %v / %v", a, b)
	}
}

func TestSplitSubarray_Unsplittable(t *testing.T) {
	d := testDomain2D(t)

	if _, _, ok := d.SplitSubarray([]int32{2, 2, 3, 3}, RowMajor); ok {
		t.Error("Expected single-cell subarray to be unsplittable")
	}
}

func TestSplitSubarray_Float(t *testing.T) {
	d, err := NewDomain(RowMajor, RowMajor,
		Dimension[float64]{Name: "x", Domain: [2]float64{0, 100}},
	)
	if err != nil {
		t.Fatalf("NewDomain failed: %v", err)
	}

	a, b, ok := d.SplitSubarray([]float64{0, 10}, RowMajor)
	if !ok {
		t.Fatal("Expected splittable float range")
	}
	if a[1] != 5 {
		t.Errorf("Expected lower half to end at 5, got %v", a[1])
	}
	if !(b[0] > 5) {
		t.Errorf("Expected upper half to start above 5, got %v", b[0])
	}
}

func TestSplitSubarray_ColMajorCutsLastDim(t *testing.T) {
	d := testDomain2D(t)

	a, b, ok := d.SplitSubarray([]int32{1, 4, 1, 4}, ColMajor)
	if !ok {
		t.Fatal("Expected splittable subarray")
	}
	wantA := []int32{1, 4, 1, 2}
	wantB := []int32{1, 4, 3, 4}
	for i := range wantA {
		if a[i] != wantA[i] || b[i] != wantB[i] {
			t.Fatalf("Expected halves %v / %v, got %v / %v", wantA, wantB, a, b)
		}
	}
}

func TestSplitSubarray_GlobalSnapsToTileBoundary(t *testing.T) {
	d := testDomain2D(t)

	// [2..4, 1..4] spans tiles 0..1 on dim 0; the cut lands on the tile
	// boundary between rows 2 and 3
	a, b, ok := d.SplitSubarray([]int32{2, 4, 1, 4}, GlobalOrder)
	if !ok {
		t.Fatal("Expected splittable subarray")
	}
	if a[1] != 2 || b[0] != 3 {
		t.Errorf("Expected tile-aligned halves at rows 2/3, got %v / %v", a, b)
	}
}

func TestExpandToTileBoundaries(t *testing.T) {
	d := testDomain2D(t)
	out := make([]int32, 4)

	d.ExpandToTileBoundaries([]int32{2, 3, 1, 2}, out)
	want := []int32{1, 4, 1, 2}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("Expected expansion %v, got %v", want, out)
		}
	}
}

func TestGeometry(t *testing.T) {
	rect := []int32{1, 4, 1, 4}

	if !CoordsInRect([]int32{2, 3}, rect, 2) {
		t.Error("Expected (2,3) inside [1..4,1..4]")
	}
	if CoordsInRect([]int32{5, 3}, rect, 2) {
		t.Error("Expected (5,3) outside [1..4,1..4]")
	}

	out := make([]int32, 4)
	if !RectOverlap([]int32{1, 2, 1, 2}, []int32{2, 4, 2, 4}, out, 2) {
		t.Fatal("Expected overlapping rectangles")
	}
	if out[0] != 2 || out[1] != 2 || out[2] != 2 || out[3] != 2 {
		t.Errorf("Expected overlap [2,2,2,2], got %v", out)
	}

	if RectOverlap([]int32{1, 2, 1, 2}, []int32{3, 4, 3, 4}, out, 2) {
		t.Error("Expected disjoint rectangles")
	}

	if !RectContains(rect, []int32{2, 3, 2, 3}, 2) {
		t.Error("Expected containment")
	}
	if RectContains([]int32{2, 3, 2, 3}, rect, 2) {
		t.Error("Expected no containment")
	}
}
