package world

import (
	"bytes"
	"fmt"

	"github.com/blukai/wvnet/internal/debug"
	"github.com/blukai/wvnet/internal/wire"
)

// Property binds a named, typed location inside an actor to the replication
// engine, together with the byte image of the value as last transmitted (or
// received). A nil image means "never synced", so the first comparison always
// reports a change.
//
// Registration is constructor-time only and the property list lives inside
// the actor, so a property cannot outlive the memory it points at.
type Property struct {
	Name string
	Kind wire.PropertyKind

	ptr  any
	last []byte
}

func newProperty(name string, ptr any) *Property {
	return &Property{
		Name: name,
		Kind: propertyKindOf(ptr),
		ptr:  ptr,
	}
}

func propertyKindOf(ptr any) wire.PropertyKind {
	switch ptr.(type) {
	case *bool:
		return wire.PropBool
	case *int8:
		return wire.PropInt8
	case *uint8:
		return wire.PropUint8
	case *int16:
		return wire.PropInt16
	case *uint16:
		return wire.PropUint16
	case *int32:
		return wire.PropInt32
	case *uint32:
		return wire.PropUint32
	case *int64:
		return wire.PropInt64
	case *uint64:
		return wire.PropUint64
	case *float32:
		return wire.PropFloat32
	case *float64:
		return wire.PropFloat64
	case *wire.Vec3:
		return wire.PropVec3
	case *wire.Quat:
		return wire.PropQuat
	case *string:
		return wire.PropString
	default:
		debug.Assert(false, fmt.Sprintf("unsupported replicated property type %T", ptr))
		return wire.PropCustom
	}
}

// WriteValue serializes the live value. The name and kind framing around it
// belongs to the replication packet, not to the property.
func (p *Property) WriteValue(w *wire.Writer) {
	switch ptr := p.ptr.(type) {
	case *bool:
		w.WriteBool(*ptr)
	case *int8:
		w.WriteInt8(*ptr)
	case *uint8:
		w.WriteUint8(*ptr)
	case *int16:
		w.WriteInt16(*ptr)
	case *uint16:
		w.WriteUint16(*ptr)
	case *int32:
		w.WriteInt32(*ptr)
	case *uint32:
		w.WriteUint32(*ptr)
	case *int64:
		w.WriteInt64(*ptr)
	case *uint64:
		w.WriteUint64(*ptr)
	case *float32:
		w.WriteFloat32(*ptr)
	case *float64:
		w.WriteFloat64(*ptr)
	case *wire.Vec3:
		w.WriteVec3(*ptr)
	case *wire.Quat:
		w.WriteQuat(*ptr)
	case *string:
		w.WriteString(*ptr)
	}
}

// ReadValue decodes a value of the property's kind straight into the bound
// location and refreshes the cached image.
func (p *Property) ReadValue(r *wire.Reader) {
	switch ptr := p.ptr.(type) {
	case *bool:
		*ptr = r.ReadBool()
	case *int8:
		*ptr = r.ReadInt8()
	case *uint8:
		*ptr = r.ReadUint8()
	case *int16:
		*ptr = r.ReadInt16()
	case *uint16:
		*ptr = r.ReadUint16()
	case *int32:
		*ptr = r.ReadInt32()
	case *uint32:
		*ptr = r.ReadUint32()
	case *int64:
		*ptr = r.ReadInt64()
	case *uint64:
		*ptr = r.ReadUint64()
	case *float32:
		*ptr = r.ReadFloat32()
	case *float64:
		*ptr = r.ReadFloat64()
	case *wire.Vec3:
		*ptr = r.ReadVec3()
	case *wire.Quat:
		*ptr = r.ReadQuat()
	case *string:
		*ptr = r.ReadString()
	}
	p.UpdateLast()
}

// CurrentBytes is the serialized image of the live value.
func (p *Property) CurrentBytes() []byte {
	w := wire.NewWriter()
	p.WriteValue(w)
	return w.Bytes()
}

// HasChanged compares the live value against the last synced image.
func (p *Property) HasChanged() bool {
	if p.last == nil {
		return true
	}
	return !bytes.Equal(p.CurrentBytes(), p.last)
}

// UpdateLast snapshots the live value as the synced image.
func (p *Property) UpdateLast() {
	p.last = p.CurrentBytes()
}

// SkipValue advances r past one value of the given kind. It returns false
// when the kind has no fixed framing to skip (Custom), which desyncs the
// stream; the caller must stop decoding then.
func SkipValue(r *wire.Reader, kind wire.PropertyKind) bool {
	switch kind {
	case wire.PropBool, wire.PropInt8, wire.PropUint8:
		r.Skip(1)
	case wire.PropInt16, wire.PropUint16:
		r.Skip(2)
	case wire.PropInt32, wire.PropUint32, wire.PropFloat32:
		r.Skip(4)
	case wire.PropInt64, wire.PropUint64, wire.PropFloat64:
		r.Skip(8)
	case wire.PropVec3:
		r.Skip(12)
	case wire.PropQuat:
		r.Skip(16)
	case wire.PropString:
		r.Skip(int(r.ReadUint32()))
	default:
		return false
	}
	return !r.Short()
}
