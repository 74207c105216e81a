package compression

import (
	"encoding/binary"
	"fmt"
)

// DeltaCompressor implements delta + zigzag + varint compression over a
// little-endian stream of 64-bit integers. Efficient for monotonically
// increasing sequences such as cell offset tables.
//
// Input length must be a multiple of 8; anything else is rejected.
type DeltaCompressor struct{}

// NewDeltaCompressor creates a new delta compressor
func NewDeltaCompressor() *DeltaCompressor {
	return &DeltaCompressor{}
}

// Compress delta-encodes a stream of int64 values
func (e *DeltaCompressor) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}
	if len(data)%8 != 0 {
		return nil, fmt.Errorf("delta compress: length %d is not a multiple of 8", len(data))
	}

	count := len(data) / 8
	buf := make([]byte, 0, 12+count)

	// Write count
	countBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(countBuf, uint32(count))
	buf = append(buf, countBuf...)

	// Write first value
	first := int64(binary.LittleEndian.Uint64(data))
	firstBuf := make([]byte, 8)
	binary.LittleEndian.PutUint64(firstBuf, uint64(first))
	buf = append(buf, firstBuf...)

	// Delta encode subsequent values using zigzag + varint
	prev := first
	for i := 1; i < count; i++ {
		v := int64(binary.LittleEndian.Uint64(data[i*8:]))
		delta := v - prev
		// ZigZag encode for signed integers
		zigzag := (delta << 1) ^ (delta >> 63)
		buf = AppendVarint(buf, uint64(zigzag))
		prev = v
	}

	return buf, nil
}

// Decompress reverses Compress, producing the original int64 stream
func (e *DeltaCompressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}
	if len(data) < 12 {
		return nil, fmt.Errorf("delta decompress: truncated header")
	}

	count := int(binary.LittleEndian.Uint32(data))
	out := make([]byte, count*8)

	prev := int64(binary.LittleEndian.Uint64(data[4:]))
	binary.LittleEndian.PutUint64(out, uint64(prev))

	pos := 12
	for i := 1; i < count; i++ {
		zigzag, n := ReadVarint(data[pos:])
		if n == 0 {
			return nil, fmt.Errorf("delta decompress: truncated varint at value %d", i)
		}
		pos += n
		delta := int64(zigzag>>1) ^ -int64(zigzag&1)
		prev += delta
		binary.LittleEndian.PutUint64(out[i*8:], uint64(prev))
	}

	return out, nil
}

// Algorithm returns Delta
func (e *DeltaCompressor) Algorithm() Algorithm {
	return Delta
}
