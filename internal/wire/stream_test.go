package wire_test

import (
	"math"
	"testing"

	"github.com/blukai/wvnet/internal/wire"
	"github.com/matryer/is"
)

func TestScalarRoundTrip(t *testing.T) {
	is := is.New(t)

	w := wire.NewWriter()
	w.WriteBool(true)
	w.WriteInt8(-8)
	w.WriteUint8(8)
	w.WriteInt16(-1600)
	w.WriteUint16(1600)
	w.WriteInt32(math.MinInt32)
	w.WriteUint32(math.MaxUint32)
	w.WriteInt64(math.MinInt64)
	w.WriteUint64(math.MaxUint64)
	w.WriteFloat32(3.25)
	w.WriteFloat64(-6.5)

	r := wire.NewReader(w.Bytes())
	is.Equal(r.ReadBool(), true)
	is.Equal(r.ReadInt8(), int8(-8))
	is.Equal(r.ReadUint8(), uint8(8))
	is.Equal(r.ReadInt16(), int16(-1600))
	is.Equal(r.ReadUint16(), uint16(1600))
	is.Equal(r.ReadInt32(), int32(math.MinInt32))
	is.Equal(r.ReadUint32(), uint32(math.MaxUint32))
	is.Equal(r.ReadInt64(), int64(math.MinInt64))
	is.Equal(r.ReadUint64(), uint64(math.MaxUint64))
	is.Equal(r.ReadFloat32(), float32(3.25))
	is.Equal(r.ReadFloat64(), -6.5)
	is.True(!r.Short())
	is.Equal(r.Remaining(), 0)
}

func TestStringRoundTrip(t *testing.T) {
	is := is.New(t)

	testCases := []string{"", "a", "PlayerActor", "héllo wörld"}

	for _, tc := range testCases {
		w := wire.NewWriter()
		w.WriteString(tc)
		// u32 length prefix, no terminator
		is.Equal(w.Len(), 4+len(tc))

		r := wire.NewReader(w.Bytes())
		is.Equal(r.ReadString(), tc)
		is.True(!r.Short())
	}
}

func TestVec3QuatRoundTrip(t *testing.T) {
	is := is.New(t)

	w := wire.NewWriter()
	w.WriteVec3(wire.Vec3{X: 1, Y: -2, Z: 3.5})
	w.WriteQuat(wire.Quat{W: 1, X: 0, Y: 0.5, Z: -0.5})
	is.Equal(w.Len(), 12+16)

	r := wire.NewReader(w.Bytes())
	is.Equal(r.ReadVec3(), wire.Vec3{X: 1, Y: -2, Z: 3.5})
	is.Equal(r.ReadQuat(), wire.Quat{W: 1, X: 0, Y: 0.5, Z: -0.5})
}

func TestShortReadReturnsZeroValues(t *testing.T) {
	is := is.New(t)

	r := wire.NewReader([]byte{0x01, 0x02})
	is.Equal(r.ReadUint32(), uint32(0))
	is.True(r.Short())

	// a short string (length prefix larger than remaining bytes) must not
	// panic either
	w := wire.NewWriter()
	w.WriteUint32(1000)
	r = wire.NewReader(w.Bytes())
	is.Equal(r.ReadString(), "")
	is.True(r.Short())
}
