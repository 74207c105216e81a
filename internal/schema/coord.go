package schema

import (
	"encoding/binary"
	"math"
)

// Coord constrains the coordinate types a domain can be defined over
type Coord interface {
	~int8 | ~int16 | ~int32 | ~int64 |
		~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// CoordDatatype returns the Datatype corresponding to T
func CoordDatatype[T Coord]() Datatype {
	var zero T
	switch any(zero).(type) {
	case int8:
		return Int8
	case int16:
		return Int16
	case int32:
		return Int32
	case int64:
		return Int64
	case uint8:
		return Uint8
	case uint16:
		return Uint16
	case uint32:
		return Uint32
	case uint64:
		return Uint64
	case float32:
		return Float32
	default:
		return Float64
	}
}

// ScalarSize returns the byte size of one T value
func ScalarSize[T Coord]() uint64 {
	return CoordDatatype[T]().Size()
}

// RealCoord reports whether T is a floating-point coordinate type
func RealCoord[T Coord]() bool {
	return CoordDatatype[T]().Real()
}

// PutScalar writes v into b in little-endian order
func PutScalar[T Coord](b []byte, v T) {
	switch x := any(v).(type) {
	case int8:
		b[0] = byte(x)
	case int16:
		binary.LittleEndian.PutUint16(b, uint16(x))
	case int32:
		binary.LittleEndian.PutUint32(b, uint32(x))
	case int64:
		binary.LittleEndian.PutUint64(b, uint64(x))
	case uint8:
		b[0] = x
	case uint16:
		binary.LittleEndian.PutUint16(b, x)
	case uint32:
		binary.LittleEndian.PutUint32(b, x)
	case uint64:
		binary.LittleEndian.PutUint64(b, x)
	case float32:
		binary.LittleEndian.PutUint32(b, math.Float32bits(x))
	case float64:
		binary.LittleEndian.PutUint64(b, math.Float64bits(x))
	}
}

// EncodeScalar returns v encoded in little-endian order
func EncodeScalar[T Coord](v T) []byte {
	buf := make([]byte, ScalarSize[T]())
	PutScalar(buf, v)
	return buf
}

// EncodeSlice returns vs encoded back-to-back in little-endian order
func EncodeSlice[T Coord](vs []T) []byte {
	sz := ScalarSize[T]()
	buf := make([]byte, uint64(len(vs))*sz)
	for i, v := range vs {
		PutScalar(buf[uint64(i)*sz:], v)
	}
	return buf
}

// DecodeSlice decodes a little-endian stream of T values. The input length
// must be a multiple of the scalar size; trailing bytes are ignored.
func DecodeSlice[T Coord](b []byte) []T {
	sz := int(ScalarSize[T]())
	n := len(b) / sz
	out := make([]T, n)
	switch o := any(out).(type) {
	case []int8:
		for i := 0; i < n; i++ {
			o[i] = int8(b[i])
		}
	case []int16:
		for i := 0; i < n; i++ {
			o[i] = int16(binary.LittleEndian.Uint16(b[i*sz:]))
		}
	case []int32:
		for i := 0; i < n; i++ {
			o[i] = int32(binary.LittleEndian.Uint32(b[i*sz:]))
		}
	case []int64:
		for i := 0; i < n; i++ {
			o[i] = int64(binary.LittleEndian.Uint64(b[i*sz:]))
		}
	case []uint8:
		copy(o, b[:n])
	case []uint16:
		for i := 0; i < n; i++ {
			o[i] = binary.LittleEndian.Uint16(b[i*sz:])
		}
	case []uint32:
		for i := 0; i < n; i++ {
			o[i] = binary.LittleEndian.Uint32(b[i*sz:])
		}
	case []uint64:
		for i := 0; i < n; i++ {
			o[i] = binary.LittleEndian.Uint64(b[i*sz:])
		}
	case []float32:
		for i := 0; i < n; i++ {
			o[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*sz:]))
		}
	case []float64:
		for i := 0; i < n; i++ {
			o[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*sz:]))
		}
	}
	return out
}

// SpanInclusive returns the number of values in [lo, hi].
// Integer types only.
func SpanInclusive[T Coord](lo, hi T) uint64 {
	return spanInclusive(lo, hi)
}

// spanInclusive returns the number of values in [lo, hi]
func spanInclusive[T Coord](lo, hi T) uint64 {
	switch any(lo).(type) {
	case uint8, uint16, uint32, uint64:
		return uint64(hi) - uint64(lo) + 1
	default:
		return uint64(int64(hi)-int64(lo)) + 1
	}
}
