package wire

import (
	"fmt"
)

const (
	// Magic is the first four bytes of every datagram ("WVNE").
	Magic uint32 = 0x57564E45

	// HeaderSize is the fixed serialized size of Header.
	HeaderSize = 12

	// MaxPacketSize caps a whole datagram, header included. Oversize
	// datagrams are dropped without processing.
	MaxPacketSize = 1024
)

// PacketKind identifies the payload layout of a packet.
type PacketKind uint16

const (
	// connection management
	PacketConnectionRequest PacketKind = 0
	PacketConnectionAccept  PacketKind = 1
	PacketConnectionDenied  PacketKind = 2
	PacketDisconnect        PacketKind = 3

	// reliability
	PacketAcknowledgement PacketKind = 10
	PacketHeartbeat       PacketKind = 11

	// actor replication
	PacketActorSpawn       PacketKind = 20
	PacketActorDestroy     PacketKind = 21
	PacketActorReplication PacketKind = 22

	// rpc
	PacketRPCServer    PacketKind = 30
	PacketRPCClient    PacketKind = 31
	PacketRPCMulticast PacketKind = 32

	// control; reserved, not emitted yet
	PacketTimeSync PacketKind = 100
)

func (k PacketKind) String() string {
	switch k {
	case PacketConnectionRequest:
		return "ConnectionRequest"
	case PacketConnectionAccept:
		return "ConnectionAccept"
	case PacketConnectionDenied:
		return "ConnectionDenied"
	case PacketDisconnect:
		return "Disconnect"
	case PacketAcknowledgement:
		return "Acknowledgement"
	case PacketHeartbeat:
		return "Heartbeat"
	case PacketActorSpawn:
		return "ActorSpawn"
	case PacketActorDestroy:
		return "ActorDestroy"
	case PacketActorReplication:
		return "ActorReplication"
	case PacketRPCServer:
		return "RPCServer"
	case PacketRPCClient:
		return "RPCClient"
	case PacketRPCMulticast:
		return "RPCMulticast"
	case PacketTimeSync:
		return "TimeSync"
	default:
		return fmt.Sprintf("PacketKind(%d)", uint16(k))
	}
}

// PropertyKind identifies the value layout of a replicated property.
type PropertyKind uint8

const (
	PropBool    PropertyKind = 0
	PropInt8    PropertyKind = 1
	PropUint8   PropertyKind = 2
	PropInt16   PropertyKind = 3
	PropUint16  PropertyKind = 4
	PropInt32   PropertyKind = 5
	PropUint32  PropertyKind = 6
	PropInt64   PropertyKind = 7
	PropUint64  PropertyKind = 8
	PropFloat32 PropertyKind = 9
	PropFloat64 PropertyKind = 10
	PropVec3    PropertyKind = 11
	PropQuat    PropertyKind = 12
	PropString  PropertyKind = 13
	PropCustom  PropertyKind = 14
)

// Header is the fixed 12-byte prefix of every packet.
type Header struct {
	Magic       uint32
	Sequence    uint32
	Kind        PacketKind
	PayloadSize uint16
}

// Packet is a header plus payload stream. The payload writer doubles as the
// payload buffer for received packets; receivers wrap it in a Reader via
// PayloadReader.
type Packet struct {
	Header  Header
	Payload *Writer
}

func NewPacket(kind PacketKind) *Packet {
	return &Packet{
		Header:  Header{Magic: Magic, Kind: kind},
		Payload: NewWriter(),
	}
}

func (p *Packet) Kind() PacketKind { return p.Header.Kind }

// PayloadReader returns a fresh reader over the payload bytes.
func (p *Packet) PayloadReader() *Reader {
	return NewReader(p.Payload.Bytes())
}

// Serialize renders the full datagram, stamping PayloadSize from the current
// payload length.
func (p *Packet) Serialize() []byte {
	p.Header.PayloadSize = uint16(p.Payload.Len())

	w := NewWriterSize(HeaderSize + p.Payload.Len())
	w.WriteUint32(p.Header.Magic)
	w.WriteUint32(p.Header.Sequence)
	w.WriteUint16(uint16(p.Header.Kind))
	w.WriteUint16(p.Header.PayloadSize)
	w.WriteBytes(p.Payload.Bytes())
	return w.Bytes()
}

var (
	ErrBadMagic     = fmt.Errorf("bad packet magic")
	ErrShortPacket  = fmt.Errorf("short packet")
	ErrOversize     = fmt.Errorf("oversize packet")
	ErrShortPayload = fmt.Errorf("payload size exceeds datagram")
)

// DeserializePacket parses one datagram. The payload bytes are copied out of
// buf so the caller may reuse its receive buffer.
func DeserializePacket(buf []byte) (*Packet, error) {
	if len(buf) > MaxPacketSize {
		return nil, ErrOversize
	}
	if len(buf) < HeaderSize {
		return nil, ErrShortPacket
	}

	r := NewReader(buf)
	hdr := Header{
		Magic:    r.ReadUint32(),
		Sequence: r.ReadUint32(),
	}
	hdr.Kind = PacketKind(r.ReadUint16())
	hdr.PayloadSize = r.ReadUint16()

	if hdr.Magic != Magic {
		return nil, ErrBadMagic
	}
	if int(hdr.PayloadSize) > r.Remaining() {
		return nil, ErrShortPayload
	}

	payload := NewWriterSize(int(hdr.PayloadSize))
	payload.WriteBytes(r.ReadBytes(int(hdr.PayloadSize)))

	return &Packet{Header: hdr, Payload: payload}, nil
}
