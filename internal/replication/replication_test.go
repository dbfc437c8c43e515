package replication_test

import (
	"testing"

	"github.com/blukai/wvnet/internal/replication"
	"github.com/blukai/wvnet/internal/transport"
	"github.com/blukai/wvnet/internal/wire"
	"github.com/blukai/wvnet/internal/world"
	"github.com/matryer/is"
)

type mirrorActor struct {
	world.ActorCore

	Health int32
	Tag    string

	replicated int
}

func newMirrorActor() *mirrorActor {
	a := &mirrorActor{}
	a.RegisterProperty("Health", &a.Health)
	a.RegisterProperty("Tag", &a.Tag)
	return a
}

func (a *mirrorActor) TypeName() string { return "MirrorActor" }

func (a *mirrorActor) OnReplicated() { a.replicated++ }

// newReceiveFixture builds a client-side world and engine; the driver stays
// unbound, receive handling never touches the socket.
func newReceiveFixture() (*world.World, *replication.Engine) {
	w := world.NewWorld(nil)
	w.RegisterActorType("MirrorActor", func() world.Actor { return newMirrorActor() })
	engine := replication.NewEngine(w, transport.NewDriver(nil), 30.0, nil)
	return w, engine
}

func spawnPacket(netID uint32, typeName string) *wire.Packet {
	pkt := wire.NewPacket(wire.PacketActorSpawn)
	pkt.Payload.WriteUint32(netID)
	pkt.Payload.WriteString(typeName)
	pkt.Payload.WriteVec3(wire.Vec3{X: 1, Y: 2, Z: 3})
	pkt.Payload.WriteQuat(wire.QuatIdentity())
	return pkt
}

func TestHandleSpawnCreatesReplica(t *testing.T) {
	is := is.New(t)

	w, engine := newReceiveFixture()
	engine.Process(nil, spawnPacket(42, "MirrorActor"))

	a := w.ActorByNetID(42)
	is.True(a != nil)
	is.Equal(a.Core().Position, wire.Vec3{X: 1, Y: 2, Z: 3})
	is.True(a.Core().Replicates())
}

func TestHandleSpawnUnknownTypeDropped(t *testing.T) {
	is := is.New(t)

	w, engine := newReceiveFixture()
	engine.Process(nil, spawnPacket(42, "NeverRegistered"))

	is.True(w.ActorByNetID(42) == nil)
	is.Equal(len(w.Actors()), 0)
}

func TestHandleUpdateAppliesPropertiesInOrder(t *testing.T) {
	is := is.New(t)

	w, engine := newReceiveFixture()
	engine.Process(nil, spawnPacket(42, "MirrorActor"))
	a := w.ActorByNetID(42).(*mirrorActor)

	pkt := wire.NewPacket(wire.PacketActorReplication)
	pkt.Payload.WriteUint32(42)
	pkt.Payload.WriteUint32(2)
	pkt.Payload.WriteString("Health")
	pkt.Payload.WriteUint8(uint8(wire.PropInt32))
	pkt.Payload.WriteInt32(57)
	pkt.Payload.WriteString("Tag")
	pkt.Payload.WriteUint8(uint8(wire.PropString))
	pkt.Payload.WriteString("wounded")
	engine.Process(nil, pkt)

	is.Equal(a.Health, int32(57))
	is.Equal(a.Tag, "wounded")
	is.Equal(a.replicated, 1) // one hook per batch, not per property
}

func TestHandleUpdateSkipsUnknownProperty(t *testing.T) {
	is := is.New(t)

	w, engine := newReceiveFixture()
	engine.Process(nil, spawnPacket(42, "MirrorActor"))
	a := w.ActorByNetID(42).(*mirrorActor)

	// an entry for a property this build does not know must be skipped by
	// its wire size so the entries after it stay decodable
	pkt := wire.NewPacket(wire.PacketActorReplication)
	pkt.Payload.WriteUint32(42)
	pkt.Payload.WriteUint32(2)
	pkt.Payload.WriteString("Mana")
	pkt.Payload.WriteUint8(uint8(wire.PropFloat32))
	pkt.Payload.WriteFloat32(99.5)
	pkt.Payload.WriteString("Health")
	pkt.Payload.WriteUint8(uint8(wire.PropInt32))
	pkt.Payload.WriteInt32(31)
	engine.Process(nil, pkt)

	is.Equal(a.Health, int32(31))
	is.Equal(a.replicated, 1)
}

func TestHandleUpdateUnknownActorDropped(t *testing.T) {
	_, engine := newReceiveFixture()

	pkt := wire.NewPacket(wire.PacketActorReplication)
	pkt.Payload.WriteUint32(7)
	pkt.Payload.WriteUint32(1)
	pkt.Payload.WriteString("Health")
	pkt.Payload.WriteUint8(uint8(wire.PropInt32))
	pkt.Payload.WriteInt32(1)
	engine.Process(nil, pkt) // must not panic
}

func TestHandleDestroy(t *testing.T) {
	is := is.New(t)

	w, engine := newReceiveFixture()
	engine.Process(nil, spawnPacket(42, "MirrorActor"))

	pkt := wire.NewPacket(wire.PacketActorDestroy)
	pkt.Payload.WriteUint32(42)
	engine.Process(nil, pkt)

	// destruction is deferred to the end of the tick
	is.True(w.ActorByNetID(42) != nil)
	w.Tick(0.016)
	is.True(w.ActorByNetID(42) == nil)
}

func TestHandleUpdateShortPacketDropped(t *testing.T) {
	is := is.New(t)

	w, engine := newReceiveFixture()
	engine.Process(nil, spawnPacket(42, "MirrorActor"))
	a := w.ActorByNetID(42).(*mirrorActor)

	// claims two entries, carries one
	pkt := wire.NewPacket(wire.PacketActorReplication)
	pkt.Payload.WriteUint32(42)
	pkt.Payload.WriteUint32(2)
	pkt.Payload.WriteString("Health")
	pkt.Payload.WriteUint8(uint8(wire.PropInt32))
	pkt.Payload.WriteInt32(5)
	engine.Process(nil, pkt)

	// the decoded prefix may land, the hook must not fire for a truncated
	// batch
	is.Equal(a.replicated, 0)
}
