// Package wire implements the byte-level protocol: an append-only stream
// writer, a cursor-based reader, the fixed packet header and the packet kind
// and property kind tables.
//
// All multi-byte values are little-endian on both ends of the pipe.
package wire

import (
	"github.com/blukai/wvnet/internal/byteorder"
)

// Writer is an append-only byte stream with capacity growth.
type Writer struct {
	buf []byte
}

func NewWriter() *Writer {
	return &Writer{buf: make([]byte, 0, 256)}
}

func NewWriterSize(capacity int) *Writer {
	return &Writer{buf: make([]byte, 0, capacity)}
}

func (w *Writer) Bytes() []byte { return w.buf }
func (w *Writer) Len() int { return len(w.buf) }
func (w *Writer) Reset() { w.buf = w.buf[:0] }

func (w *Writer) grow(n int) []byte {
	off := len(w.buf)
	w.buf = append(w.buf, make([]byte, n)...)
	return w.buf[off:]
}

func (w *Writer) WriteBytes(b []byte) {
	w.buf = append(w.buf, b...)
}

func (w *Writer) WriteBool(v bool) {
	if v {
		w.WriteUint8(1)
	} else {
		w.WriteUint8(0)
	}
}

func (w *Writer) WriteInt8(v int8) { w.WriteUint8(uint8(v)) }
func (w *Writer) WriteUint8(v uint8) { w.buf = append(w.buf, v) }

func (w *Writer) WriteInt16(v int16) { w.WriteUint16(uint16(v)) }
func (w *Writer) WriteUint16(v uint16) { byteorder.PutUint16(w.grow(2), v) }

func (w *Writer) WriteInt32(v int32) { w.WriteUint32(uint32(v)) }
func (w *Writer) WriteUint32(v uint32) { byteorder.PutUint32(w.grow(4), v) }

func (w *Writer) WriteInt64(v int64) { w.WriteUint64(uint64(v)) }
func (w *Writer) WriteUint64(v uint64) { byteorder.PutUint64(w.grow(8), v) }

func (w *Writer) WriteFloat32(v float32) { byteorder.PutFloat32(w.grow(4), v) }
func (w *Writer) WriteFloat64(v float64) { byteorder.PutFloat64(w.grow(8), v) }

// WriteString writes a uint32 length prefix followed by the raw bytes, no
// terminator.
func (w *Writer) WriteString(v string) {
	w.WriteUint32(uint32(len(v)))
	w.buf = append(w.buf, v...)
}

func (w *Writer) WriteVec3(v Vec3) {
	w.WriteFloat32(v.X)
	w.WriteFloat32(v.Y)
	w.WriteFloat32(v.Z)
}

func (w *Writer) WriteQuat(v Quat) {
	w.WriteFloat32(v.W)
	w.WriteFloat32(v.X)
	w.WriteFloat32(v.Y)
	w.WriteFloat32(v.Z)
}

// Reader walks a byte slice with a read cursor. Reading past the end yields
// the zero value of the requested kind and latches the Short flag; it never
// panics, wire input is untrusted.
type Reader struct {
	buf   []byte
	pos   int
	short bool
}

func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

func (r *Reader) CanRead(n int) bool { return r.pos+n <= len(r.buf) }
func (r *Reader) Short() bool { return r.short }
func (r *Reader) Pos() int { return r.pos }
func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

// RemainingBytes returns the unread tail without advancing the cursor.
func (r *Reader) RemainingBytes() []byte { return r.buf[r.pos:] }

func (r *Reader) take(n int) []byte {
	if !r.CanRead(n) {
		r.short = true
		return nil
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (r *Reader) Skip(n int) {
	r.take(n)
}

func (r *Reader) ReadBytes(n int) []byte {
	b := r.take(n)
	if b == nil {
		return nil
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

func (r *Reader) ReadBool() bool { return r.ReadUint8() != 0 }

func (r *Reader) ReadInt8() int8 { return int8(r.ReadUint8()) }
func (r *Reader) ReadUint8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *Reader) ReadInt16() int16 { return int16(r.ReadUint16()) }
func (r *Reader) ReadUint16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return byteorder.Uint16(b)
}

func (r *Reader) ReadInt32() int32 { return int32(r.ReadUint32()) }
func (r *Reader) ReadUint32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return byteorder.Uint32(b)
}

func (r *Reader) ReadInt64() int64 { return int64(r.ReadUint64()) }
func (r *Reader) ReadUint64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return byteorder.Uint64(b)
}

func (r *Reader) ReadFloat32() float32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return byteorder.Float32(b)
}

func (r *Reader) ReadFloat64() float64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return byteorder.Float64(b)
}

func (r *Reader) ReadString() string {
	length := int(r.ReadUint32())
	b := r.take(length)
	if b == nil {
		return ""
	}
	return string(b)
}

func (r *Reader) ReadVec3() Vec3 {
	return Vec3{
		X: r.ReadFloat32(),
		Y: r.ReadFloat32(),
		Z: r.ReadFloat32(),
	}
}

func (r *Reader) ReadQuat() Quat {
	return Quat{
		W: r.ReadFloat32(),
		X: r.ReadFloat32(),
		Y: r.ReadFloat32(),
		Z: r.ReadFloat32(),
	}
}
