package byteorder

import (
	"encoding/binary"
	"math"
)

// The wire format is little-endian end to end; see internal/wire. These
// helpers exist so the stream code reads as "put/get scalar" instead of
// sprinkling binary.LittleEndian and math bit casts everywhere.

func PutUint16(buf []byte, val uint16) {
	binary.LittleEndian.PutUint16(buf, val)
}

func PutUint32(buf []byte, val uint32) {
	binary.LittleEndian.PutUint32(buf, val)
}

func PutUint64(buf []byte, val uint64) {
	binary.LittleEndian.PutUint64(buf, val)
}

func PutFloat32(buf []byte, val float32) {
	binary.LittleEndian.PutUint32(buf, math.Float32bits(val))
}

func PutFloat64(buf []byte, val float64) {
	binary.LittleEndian.PutUint64(buf, math.Float64bits(val))
}

func Uint16(buf []byte) uint16 {
	return binary.LittleEndian.Uint16(buf)
}

func Uint32(buf []byte) uint32 {
	return binary.LittleEndian.Uint32(buf)
}

func Uint64(buf []byte) uint64 {
	return binary.LittleEndian.Uint64(buf)
}

func Float32(buf []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(buf))
}

func Float64(buf []byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(buf))
}
