package compression

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestGetCompressor(t *testing.T) {
	for _, algo := range []Algorithm{None, Snappy, Delta} {
		c, err := GetCompressor(algo)
		if err != nil {
			t.Fatalf("GetCompressor(%d) failed: %v", algo, err)
		}
		if c.Algorithm() != algo {
			t.Errorf("Expected algorithm %d, got %d", algo, c.Algorithm())
		}
	}

	if _, err := GetCompressor(Algorithm(99)); err == nil {
		t.Error("Expected error for unknown algorithm")
	}
}

func TestNoneCompressor(t *testing.T) {
	c := &NoneCompressor{}
	data := []byte("unchanged")

	out, err := c.Compress(data)
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Error("NoneCompressor should not modify data")
	}

	out, err = c.Decompress(out)
	if err != nil {
		t.Fatalf("Decompress failed: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Error("NoneCompressor roundtrip mismatch")
	}
}

func TestSnappyRoundtrip(t *testing.T) {
	c := NewSnappyCompressor()

	data := bytes.Repeat([]byte("gridstore tile data "), 100)
	compressed, err := c.Compress(data)
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	if len(compressed) >= len(data) {
		t.Errorf("Expected compression to shrink repetitive data, %d -> %d", len(data), len(compressed))
	}

	decompressed, err := c.Decompress(compressed)
	if err != nil {
		t.Fatalf("Decompress failed: %v", err)
	}
	if !bytes.Equal(decompressed, data) {
		t.Error("Snappy roundtrip mismatch")
	}
}

func TestSnappyDecompress_Garbage(t *testing.T) {
	c := NewSnappyCompressor()
	if _, err := c.Decompress([]byte{0xff, 0xfe, 0xfd}); err == nil {
		t.Error("Expected error for garbage input")
	}
}

func TestDeltaRoundtrip(t *testing.T) {
	c := NewDeltaCompressor()

	values := []int64{0, 2, 7, 7, 100, 95, -3, 1 << 40}
	data := make([]byte, len(values)*8)
	for i, v := range values {
		binary.LittleEndian.PutUint64(data[i*8:], uint64(v))
	}

	compressed, err := c.Compress(data)
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}

	decompressed, err := c.Decompress(compressed)
	if err != nil {
		t.Fatalf("Decompress failed: %v", err)
	}
	if !bytes.Equal(decompressed, data) {
		t.Error("Delta roundtrip mismatch")
	}
}

func TestDeltaRoundtrip_Monotonic(t *testing.T) {
	c := NewDeltaCompressor()

	// Offset-table-like input: small positive deltas compress well
	data := make([]byte, 1000*8)
	for i := 0; i < 1000; i++ {
		binary.LittleEndian.PutUint64(data[i*8:], uint64(i*16))
	}

	compressed, err := c.Compress(data)
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	if len(compressed) >= len(data)/4 {
		t.Errorf("Expected strong compression for monotonic input, %d -> %d", len(data), len(compressed))
	}

	decompressed, err := c.Decompress(compressed)
	if err != nil {
		t.Fatalf("Decompress failed: %v", err)
	}
	if !bytes.Equal(decompressed, data) {
		t.Error("Delta roundtrip mismatch")
	}
}

func TestDeltaCompress_BadLength(t *testing.T) {
	c := NewDeltaCompressor()
	if _, err := c.Compress([]byte{1, 2, 3}); err == nil {
		t.Error("Expected error for length not a multiple of 8")
	}
}

func TestVarintRoundtrip(t *testing.T) {
	for _, v := range []uint64{0, 1, 127, 128, 1 << 20, 1<<63 + 5} {
		buf := AppendVarint(nil, v)
		got, n := ReadVarint(buf)
		if n != len(buf) {
			t.Errorf("ReadVarint(%d) consumed %d of %d bytes", v, n, len(buf))
		}
		if got != v {
			t.Errorf("Varint roundtrip: expected %d, got %d", v, got)
		}
	}
}
