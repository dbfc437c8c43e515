// Package rpc dispatches named remote calls bound to an actor. Calls travel
// reliably on the per-connection ordered channel, so an RPC sent after a
// replication update arrives after it.
package rpc

import (
	"fmt"
	"io"

	"github.com/blukai/wvnet/internal/transport"
	"github.com/blukai/wvnet/internal/wire"
	"github.com/blukai/wvnet/internal/world"
	"github.com/phuslu/log"
)

// Kind declares the directionality of a registered call.
type Kind uint8

const (
	// KindServer runs on the server, invoked from a client.
	KindServer Kind = iota
	// KindClient runs on one client, invoked from the server.
	KindClient
	// KindMulticast runs on every client, invoked from the server.
	KindMulticast
)

func (k Kind) String() string {
	switch k {
	case KindServer:
		return "server"
	case KindClient:
		return "client"
	case KindMulticast:
		return "multicast"
	}
	return "unknown"
}

func (k Kind) packetKind() wire.PacketKind {
	switch k {
	case KindClient:
		return wire.PacketRPCClient
	case KindMulticast:
		return wire.PacketRPCMulticast
	default:
		return wire.PacketRPCServer
	}
}

// Handler executes a call on the bound actor with the sender's parameters.
type Handler func(world.Actor, *wire.Reader)

type metadata struct {
	kind    Kind
	handler Handler
}

// Registry maps globally unique call names to their kind and handler, and
// routes both directions of the wire.
type Registry struct {
	logger *log.Logger
	world  *world.World
	driver *transport.Driver

	handlers map[string]metadata
}

func NewRegistry(w *world.World, driver *transport.Driver, logger *log.Logger) *Registry {
	// if logger is nil (which might be true in tests) => use default, but
	// silenced logger
	if logger == nil {
		tmp := log.DefaultLogger
		logger = &tmp
		logger.Writer = &log.IOWriter{Writer: io.Discard}
	}

	return &Registry{
		logger:   logger,
		world:    w,
		driver:   driver,
		handlers: make(map[string]metadata),
	}
}

// Register binds a call name. Names are global; re-registration overwrites.
func (reg *Registry) Register(name string, kind Kind, handler Handler) {
	reg.handlers[name] = metadata{kind: kind, handler: handler}
	reg.logger.Debug().Msgf("registered %s rpc %q", kind, name)
}

// CallServer invokes a server call from this client via its server
// connection.
func (reg *Registry) CallServer(a world.Actor, name string, params *wire.Writer) error {
	if !reg.driver.IsClient() {
		return fmt.Errorf("server rpc %q requires client mode", name)
	}
	serverConn := reg.driver.ServerConn()
	if serverConn == nil {
		return fmt.Errorf("server rpc %q: not connected", name)
	}

	reg.send(serverConn, wire.PacketRPCServer, a, name, params)
	return nil
}

// CallClient invokes a client call on one peer from the server.
func (reg *Registry) CallClient(a world.Actor, conn *transport.Conn, name string, params *wire.Writer) error {
	if !reg.driver.IsServer() {
		return fmt.Errorf("client rpc %q requires server mode", name)
	}
	if conn == nil {
		return fmt.Errorf("client rpc %q: nil connection", name)
	}

	reg.send(conn, wire.PacketRPCClient, a, name, params)
	return nil
}

// CallMulticast invokes a call on every connected peer from the server.
func (reg *Registry) CallMulticast(a world.Actor, name string, params *wire.Writer) error {
	if !reg.driver.IsServer() {
		return fmt.Errorf("multicast rpc %q requires server mode", name)
	}

	for _, conn := range reg.driver.Conns() {
		if conn.State() == transport.StateConnected {
			reg.send(conn, wire.PacketRPCMulticast, a, name, params)
		}
	}
	return nil
}

func (reg *Registry) send(conn *transport.Conn, pktKind wire.PacketKind, a world.Actor, name string, params *wire.Writer) {
	pkt := wire.NewPacket(pktKind)
	pkt.Payload.WriteUint32(a.Core().NetID())
	pkt.Payload.WriteString(name)
	if params != nil {
		pkt.Payload.WriteBytes(params.Bytes())
	}

	reg.driver.Send(conn, pkt, true)
}

// Process routes one inbound RPC packet: resolve the actor, resolve the
// handler, verify the packet kind against the declared kind (a client must
// not be able to trigger a server-authoritative handler with a forged client
// or multicast packet), then invoke with the remaining payload bytes.
func (reg *Registry) Process(conn *transport.Conn, pkt *wire.Packet) {
	r := pkt.PayloadReader()
	actorNetID := r.ReadUint32()
	name := r.ReadString()
	if r.Short() {
		reg.logger.Warn().Msg("dropped short rpc packet")
		return
	}

	a := reg.world.ActorByNetID(actorNetID)
	if a == nil {
		// actor already gone or never known here; drop quietly
		return
	}

	meta, ok := reg.handlers[name]
	if !ok {
		reg.logger.Warn().Msgf("rpc %q not registered", name)
		return
	}

	if pkt.Kind() != meta.kind.packetKind() {
		reg.logger.Warn().Msgf(
			"rpc %q kind mismatch (got %s; want %s)",
			name, pkt.Kind(), meta.kind.packetKind(),
		)
		return
	}

	meta.handler(a, wire.NewReader(r.RemainingBytes()))
}
