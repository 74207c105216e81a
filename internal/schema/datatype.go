package schema

import (
	"encoding/binary"
	"math"
)

// Datatype identifies the physical type of a dimension or attribute
type Datatype uint8

const (
	Int8 Datatype = iota
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Float32
	Float64
	Char
)

// String returns the datatype name
func (d Datatype) String() string {
	switch d {
	case Int8:
		return "int8"
	case Int16:
		return "int16"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Uint8:
		return "uint8"
	case Uint16:
		return "uint16"
	case Uint32:
		return "uint32"
	case Uint64:
		return "uint64"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Char:
		return "char"
	default:
		return "unknown"
	}
}

// Size returns the size of one value in bytes
func (d Datatype) Size() uint64 {
	switch d {
	case Int8, Uint8, Char:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Int64, Uint64, Float64:
		return 8
	default:
		return 0
	}
}

// Real reports whether the datatype is floating point
func (d Datatype) Real() bool {
	return d == Float32 || d == Float64
}

// DefaultFill returns the default fill value for one element: the minimum
// for signed integers, the maximum for unsigned, NaN for floats, zero for
// char.
func (d Datatype) DefaultFill() []byte {
	buf := make([]byte, d.Size())
	switch d {
	case Int8:
		v8 := int8(math.MinInt8)
		buf[0] = byte(v8)
	case Int16:
		v16 := int16(math.MinInt16)
		binary.LittleEndian.PutUint16(buf, uint16(v16))
	case Int32:
		v32 := int32(math.MinInt32)
		binary.LittleEndian.PutUint32(buf, uint32(v32))
	case Int64:
		v64 := int64(math.MinInt64)
		binary.LittleEndian.PutUint64(buf, uint64(v64))
	case Uint8:
		buf[0] = math.MaxUint8
	case Uint16:
		binary.LittleEndian.PutUint16(buf, math.MaxUint16)
	case Uint32:
		binary.LittleEndian.PutUint32(buf, math.MaxUint32)
	case Uint64:
		binary.LittleEndian.PutUint64(buf, math.MaxUint64)
	case Float32:
		binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(math.NaN())))
	case Float64:
		binary.LittleEndian.PutUint64(buf, math.Float64bits(math.NaN()))
	case Char:
		// Zero byte
	}
	return buf
}
