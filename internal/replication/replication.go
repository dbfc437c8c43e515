// Package replication keeps client worlds synchronized with the server
// world: delta detection per property, per-connection spawn bookkeeping,
// periodic bursts at the configured rate, and the receive-side decode of
// spawn/update/destroy packets.
package replication

import (
	"io"

	"github.com/blukai/wvnet/internal/transport"
	"github.com/blukai/wvnet/internal/wire"
	"github.com/blukai/wvnet/internal/world"
	"github.com/phuslu/log"
)

// RelevancyFunc decides whether an actor should be replicated to a peer.
type RelevancyFunc func(world.Actor, *transport.Conn) bool

// actorState is the per-(connection, actor) bookkeeping. Once spawned flips
// true, no further spawn packet goes out for the pair until the actor leaves
// relevance or the connection is torn down.
type actorState struct {
	spawned             bool
	lastReplicationTime float64
}

// Engine drives server-side replication and applies incoming replication
// packets on clients.
type Engine struct {
	logger *log.Logger
	world  *world.World
	driver *transport.Driver

	interval    float64
	accumulator float64
	now         float64

	relevancyEnabled  bool
	relevancyDistance float32
	relevancy         RelevancyFunc

	states map[*transport.Conn]map[uint32]*actorState
}

func NewEngine(w *world.World, driver *transport.Driver, rate float32, logger *log.Logger) *Engine {
	// if logger is nil (which might be true in tests) => use default, but
	// silenced logger
	if logger == nil {
		tmp := log.DefaultLogger
		logger = &tmp
		logger.Writer = &log.IOWriter{Writer: io.Discard}
	}

	e := &Engine{
		logger:            logger,
		world:             w,
		driver:            driver,
		relevancyDistance: 10000.0,
		states:            make(map[*transport.Conn]map[uint32]*actorState),
	}
	e.SetRate(rate)
	return e
}

// SetRate sets the burst frequency in Hz.
func (e *Engine) SetRate(rate float32) {
	if rate <= 0 {
		rate = 30.0
	}
	e.interval = 1.0 / float64(rate)
}

// EnableRelevancy turns on the distance predicate with the given threshold.
func (e *Engine) EnableRelevancy(distance float32) {
	e.relevancyEnabled = true
	e.relevancyDistance = distance
}

// SetRelevancyFunc replaces the built-in distance predicate.
func (e *Engine) SetRelevancyFunc(fn RelevancyFunc) {
	e.relevancy = fn
}

// DropConn forgets all per-connection state. Call on disconnect; a
// reconnecting peer starts from scratch and gets everything re-spawned.
func (e *Engine) DropConn(conn *transport.Conn) {
	delete(e.states, conn)
}

// Tick accumulates frame time and emits one replication burst per interval.
// Frame drift is bounded to one interval because the accumulator zeroes
// after each burst. Server only.
func (e *Engine) Tick(dt float64) {
	if !e.driver.IsServer() {
		return
	}

	e.now += dt
	e.accumulator += dt
	if e.accumulator >= e.interval {
		e.burst()
		e.accumulator = 0
	}
}

// burst walks actors in the outer loop so that each property's synced image
// updates exactly once per burst, after every peer has been offered the
// change. A connection-major walk would clear the change flag on the first
// peer and starve the rest.
func (e *Engine) burst() {
	var conns []*transport.Conn
	for _, conn := range e.driver.Conns() {
		if conn.State() == transport.StateConnected {
			conns = append(conns, conn)
		}
	}
	if len(conns) == 0 {
		e.sweepDestroyed()
		return
	}

	for _, a := range e.world.Actors() {
		core := a.Core()
		if !core.Replicates() {
			continue
		}

		var changed []*world.Property
		for _, p := range core.Properties() {
			if p.HasChanged() {
				changed = append(changed, p)
			}
		}

		for _, conn := range conns {
			st := e.stateFor(conn, core.NetID())
			relevant := e.isRelevant(a, conn)

			if !relevant {
				if st.spawned {
					// the peer holds a stale copy; tear it
					// down so re-entering relevance
					// re-spawns with full state
					e.sendDestroy(conn, core.NetID())
					st.spawned = false
				}
				continue
			}

			if !st.spawned {
				e.sendSpawn(conn, a)
				st.spawned = true
				// a fresh spawn always carries full state; the
				// shared change flags may already be clear
				e.sendUpdate(conn, a, core.Properties())
				st.lastReplicationTime = e.now
				continue
			}

			if len(changed) > 0 {
				e.sendUpdate(conn, a, changed)
				st.lastReplicationTime = e.now
			}
		}

		for _, p := range changed {
			p.UpdateLast()
		}
	}

	e.sweepDestroyed()
}

// sweepDestroyed notifies peers about actors that have left the world since
// the last burst and prunes their bookkeeping.
func (e *Engine) sweepDestroyed() {
	for conn, actorStates := range e.states {
		for netID, st := range actorStates {
			if e.world.ActorByNetID(netID) != nil {
				continue
			}
			if st.spawned && conn.State() == transport.StateConnected {
				e.sendDestroy(conn, netID)
			}
			delete(actorStates, netID)
		}
	}
}

func (e *Engine) stateFor(conn *transport.Conn, netID uint32) *actorState {
	actorStates, ok := e.states[conn]
	if !ok {
		actorStates = make(map[uint32]*actorState)
		e.states[conn] = actorStates
	}

	st, ok := actorStates[netID]
	if !ok {
		st = &actorState{}
		actorStates[netID] = st
	}
	return st
}

func (e *Engine) isRelevant(a world.Actor, conn *transport.Conn) bool {
	if e.relevancy != nil {
		return e.relevancy(a, conn)
	}
	if !e.relevancyEnabled {
		return true
	}

	// distance to the peer's avatar, when one has been attached to the
	// connection; peers without a point of view see everything
	avatar, ok := conn.UserData().(world.Actor)
	if !ok {
		return true
	}
	delta := a.Core().Position.Sub(avatar.Core().Position)
	return delta.Length() <= e.relevancyDistance
}

func (e *Engine) sendSpawn(conn *transport.Conn, a world.Actor) {
	core := a.Core()

	pkt := wire.NewPacket(wire.PacketActorSpawn)
	pkt.Payload.WriteUint32(core.NetID())
	pkt.Payload.WriteString(a.TypeName())
	pkt.Payload.WriteVec3(core.Position)
	pkt.Payload.WriteQuat(core.Rotation)

	e.driver.Send(conn, pkt, true)
}

func (e *Engine) sendDestroy(conn *transport.Conn, netID uint32) {
	pkt := wire.NewPacket(wire.PacketActorDestroy)
	pkt.Payload.WriteUint32(netID)
	e.driver.Send(conn, pkt, true)
}

// sendUpdate emits one ActorReplication packet carrying the given
// properties: netId, count, then (name, kind, value) per property. Nothing
// is emitted for an empty set.
func (e *Engine) sendUpdate(conn *transport.Conn, a world.Actor, props []*world.Property) {
	if len(props) == 0 {
		return
	}

	pkt := wire.NewPacket(wire.PacketActorReplication)
	pkt.Payload.WriteUint32(a.Core().NetID())
	pkt.Payload.WriteUint32(uint32(len(props)))
	for _, p := range props {
		pkt.Payload.WriteString(p.Name)
		pkt.Payload.WriteUint8(uint8(p.Kind))
		p.WriteValue(pkt.Payload)
	}

	e.driver.Send(conn, pkt, true)
}

// Process routes one inbound replication packet on the receive side.
func (e *Engine) Process(conn *transport.Conn, pkt *wire.Packet) {
	switch pkt.Kind() {
	case wire.PacketActorSpawn:
		e.handleSpawn(pkt.PayloadReader())
	case wire.PacketActorDestroy:
		e.handleDestroy(pkt.PayloadReader())
	case wire.PacketActorReplication:
		e.handleUpdate(pkt.PayloadReader())
	}
}

func (e *Engine) handleSpawn(r *wire.Reader) {
	netID := r.ReadUint32()
	typeName := r.ReadString()
	position := r.ReadVec3()
	rotation := r.ReadQuat()
	if r.Short() {
		e.logger.Warn().Msg("dropped short actor spawn")
		return
	}

	a, err := e.world.SpawnReplica(typeName, netID)
	if err != nil {
		e.logger.Warn().Msgf("could not spawn replica: %v", err)
		return
	}

	core := a.Core()
	core.Position = position
	core.Rotation = rotation
	core.SetReplicates(true)
}

func (e *Engine) handleDestroy(r *wire.Reader) {
	netID := r.ReadUint32()
	if r.Short() {
		return
	}
	e.world.DestroyByNetID(netID)
}

// handleUpdate applies a property batch: per entry the stream carries name,
// then kind, then the value, read in exactly that order. Unknown or
// mismatched properties are skipped by their wire size to keep the stream in
// frame.
func (e *Engine) handleUpdate(r *wire.Reader) {
	netID := r.ReadUint32()
	count := r.ReadUint32()
	if r.Short() {
		return
	}

	a := e.world.ActorByNetID(netID)
	if a == nil {
		// spawn may still be in flight or the actor is already gone
		return
	}
	core := a.Core()

	for i := uint32(0); i < count; i++ {
		name := r.ReadString()
		kind := wire.PropertyKind(r.ReadUint8())
		if r.Short() {
			e.logger.Warn().Msgf("dropped short actor update for %d", netID)
			return
		}

		prop := core.PropertyByName(name)
		if prop == nil || prop.Kind != kind {
			if !world.SkipValue(r, kind) {
				e.logger.Warn().Msgf("could not skip property %q of kind %d", name, kind)
				return
			}
			continue
		}

		prop.ReadValue(r)
		if r.Short() {
			return
		}
	}

	a.OnReplicated()
}
