package transport

import (
	"fmt"
	"io"

	"github.com/blukai/wvnet/internal/wire"
	"github.com/hashicorp/go-multierror"
	"github.com/phuslu/log"
)

const (
	// connectionTimeout is how long a server keeps a silent peer around.
	connectionTimeout = 30.0

	// maxRecvPerTick caps the receive pump so one tick cannot starve the
	// rest of the frame.
	maxRecvPerTick = 100
)

// Driver owns the socket and the connection table and runs the
// accept/connect handshake, the receive pump, the flush pass and the timeout
// sweep. Higher layers hook in through the three callbacks.
type Driver struct {
	mode   Mode
	sock   *Socket
	logger *log.Logger

	maxConnections uint32

	conns    map[addrKey]*Conn
	connList []*Conn
	// serverConn is the single distinguished connection of a client.
	serverConn *Conn

	onConnect    func(*Conn)
	onDisconnect func(*Conn)
	onPacket     func(*Conn, *wire.Packet)

	recvBuf []byte
}

func NewDriver(logger *log.Logger) *Driver {
	// if logger is nil (which might be true in tests) => use default, but
	// silenced logger
	if logger == nil {
		tmp := log.DefaultLogger
		logger = &tmp
		logger.Writer = &log.IOWriter{Writer: io.Discard}
	}

	return &Driver{
		mode:           ModeStandalone,
		logger:         logger,
		maxConnections: 64,
		conns:          make(map[addrKey]*Conn),
		recvBuf:        make([]byte, wire.MaxPacketSize*2),
	}
}

func (d *Driver) SetConnectCallback(cb func(*Conn)) { d.onConnect = cb }
func (d *Driver) SetDisconnectCallback(cb func(*Conn)) { d.onDisconnect = cb }
func (d *Driver) SetPacketCallback(cb func(*Conn, *wire.Packet)) { d.onPacket = cb }

func (d *Driver) Mode() Mode { return d.mode }
func (d *Driver) IsServer() bool { return d.mode == ModeServer }
func (d *Driver) IsClient() bool { return d.mode == ModeClient }
func (d *Driver) IsInitialized() bool { return d.sock != nil }

// Conns is the live connection list; do not hold across ticks.
func (d *Driver) Conns() []*Conn { return d.connList }
func (d *Driver) ServerConn() *Conn { return d.serverConn }

// LocalAddr is useful to retreive the bound address when the driver was
// initialized with port 0.
func (d *Driver) LocalAddr() Addr { return d.sock.LocalAddr() }

// InitServer binds the listen socket and starts accepting peers.
func (d *Driver) InitServer(port uint16, maxConnections uint32) error {
	sock, err := ListenSocket(port)
	if err != nil {
		return fmt.Errorf("could not init server socket: %w", err)
	}

	d.mode = ModeServer
	d.sock = sock
	d.maxConnections = maxConnections

	d.logger.Info().Msgf("server listening on %s", sock.LocalAddr())
	return nil
}

// InitClient binds an ephemeral socket; ConnectToServer starts the handshake.
func (d *Driver) InitClient() error {
	sock, err := ListenSocket(0)
	if err != nil {
		return fmt.Errorf("could not init client socket: %w", err)
	}

	d.mode = ModeClient
	d.sock = sock
	return nil
}

// ConnectToServer creates the distinguished server connection in Connecting
// state and sends a reliable ConnectionRequest.
func (d *Driver) ConnectToServer(host string, port uint16) error {
	if d.mode != ModeClient {
		return fmt.Errorf("connect requires client mode, have %s", d.mode)
	}

	addr, err := ResolveAddr(host, port)
	if err != nil {
		return fmt.Errorf("could not resolve server addr: %w", err)
	}

	d.serverConn = d.createConn(addr)
	d.serverConn.Send(wire.NewPacket(wire.PacketConnectionRequest), true)

	d.logger.Info().Msgf("connecting to server %s", addr)
	return nil
}

// Shutdown sends best-effort Disconnects to every connected peer and closes
// the socket. The disconnects go straight to the socket; the per-connection
// queues are about to be dropped anyway.
func (d *Driver) Shutdown() error {
	if d.sock == nil {
		return nil
	}

	var errs error
	for _, conn := range d.connList {
		if conn.State() != StateConnected {
			continue
		}
		if err := d.sendRaw(wire.PacketDisconnect, conn.Addr()); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	if err := d.sock.Close(); err != nil {
		errs = multierror.Append(errs, err)
	}

	d.sock = nil
	d.conns = make(map[addrKey]*Conn)
	d.connList = nil
	d.serverConn = nil
	d.mode = ModeStandalone

	return errs
}

// Tick pumps one frame: receive, advance connection clocks, flush, sweep.
func (d *Driver) Tick(dt float64) {
	if !d.IsInitialized() {
		return
	}

	d.receive()

	for _, conn := range d.connList {
		conn.Tick(dt)
	}

	d.flushAll()
	d.checkTimeouts()
}

// Send queues a packet on a connection.
func (d *Driver) Send(conn *Conn, pkt *wire.Packet, reliable bool) {
	if conn == nil {
		return
	}
	conn.Send(pkt, reliable)
}

// Broadcast queues a packet on every connected peer.
func (d *Driver) Broadcast(pkt *wire.Packet, reliable bool) {
	for _, conn := range d.connList {
		if conn.State() == StateConnected {
			conn.Send(pkt, reliable)
		}
	}
}

func (d *Driver) FindConn(addr Addr) *Conn {
	return d.conns[makeAddrKey(addr)]
}

// Disconnect drops a peer: a best-effort unreliable Disconnect straight to
// the socket, then immediate teardown. Pending reliables are discarded.
func (d *Driver) Disconnect(conn *Conn) {
	if conn == nil {
		return
	}

	if err := d.sendRaw(wire.PacketDisconnect, conn.Addr()); err != nil {
		d.logger.Debug().Msgf("could not send disconnect to %s: %v", conn.Addr(), err)
	}

	conn.SetState(StateDisconnected)
	conn.DropPending()

	if d.onDisconnect != nil {
		d.onDisconnect(conn)
	}
	d.removeConn(conn)
}

func (d *Driver) receive() {
	for i := 0; i < maxRecvPerTick; i++ {
		n, from, err := d.sock.RecvFrom(d.recvBuf)
		if err != nil {
			d.logger.Error().Msgf("could not read from udp: %v", err)
			break
		}
		if n == 0 {
			break // drained
		}
		if n > wire.MaxPacketSize {
			d.logger.Warn().Msgf("dropped oversize datagram from %s (%d bytes)", from, n)
			continue
		}

		pkt, err := wire.DeserializePacket(d.recvBuf[:n])
		if err != nil {
			d.logger.Warn().Msgf("dropped bad datagram from %s: %v", from, err)
			continue
		}

		d.dispatch(from, pkt, n)
	}
}

func (d *Driver) dispatch(from Addr, pkt *wire.Packet, size int) {
	conn := d.FindConn(from)

	switch pkt.Kind() {
	case wire.PacketConnectionRequest:
		if d.IsServer() {
			d.handleConnectionRequest(from, pkt, size)
		}

	case wire.PacketConnectionAccept:
		if d.IsClient() && d.serverConn != nil {
			d.serverConn.Receive(pkt, size)
			if d.serverConn.State() == StateConnecting {
				d.serverConn.SetState(StateConnected)
				d.logger.Info().Msg("connected to server")
				if d.onConnect != nil {
					d.onConnect(d.serverConn)
				}
			}
		}

	case wire.PacketConnectionDenied:
		if d.IsClient() && d.serverConn != nil && d.serverConn.State() == StateConnecting {
			d.logger.Warn().Msg("connection denied by server")
			d.serverConn.SetState(StateDisconnected)
			if d.onDisconnect != nil {
				d.onDisconnect(d.serverConn)
			}
			d.removeConn(d.serverConn)
		}

	case wire.PacketDisconnect:
		if conn != nil {
			d.logger.Info().Msgf("peer disconnected: %s", from)
			conn.SetState(StateDisconnected)
			if d.onDisconnect != nil {
				d.onDisconnect(conn)
			}
			d.removeConn(conn)
		}

	default:
		if conn != nil {
			conn.Receive(pkt, size)
			if d.onPacket != nil {
				d.onPacket(conn, pkt)
			}
		}
	}
}

func (d *Driver) handleConnectionRequest(from Addr, pkt *wire.Packet, size int) {
	if existing := d.FindConn(from); existing != nil {
		// duplicate request, re-ack it; the accept itself is reliable
		existing.Receive(pkt, size)
		return
	}

	if uint32(len(d.connList)) >= d.maxConnections {
		d.logger.Warn().Msgf("connection denied (at capacity): %s", from)
		if err := d.sendRaw(wire.PacketConnectionDenied, from); err != nil {
			d.logger.Error().Msgf("could not send denial to %s: %v", from, err)
		}
		return
	}

	conn := d.createConn(from)
	conn.SetState(StateConnected)
	// run the request through the connection so it gets acked
	conn.Receive(pkt, size)
	conn.Send(wire.NewPacket(wire.PacketConnectionAccept), true)

	d.logger.Info().Msgf("peer connected: %s", from)
	if d.onConnect != nil {
		d.onConnect(conn)
	}
}

func (d *Driver) flushAll() {
	for _, conn := range d.connList {
		conn.Flush(d.sock)
	}
}

func (d *Driver) checkTimeouts() {
	if !d.IsServer() {
		return
	}

	var timedOut []*Conn
	for _, conn := range d.connList {
		if conn.IsTimedOut(connectionTimeout) {
			timedOut = append(timedOut, conn)
		}
	}

	for _, conn := range timedOut {
		d.logger.Info().Msgf("peer timed out: %s", conn.Addr())
		d.Disconnect(conn)
	}
}

// sendRaw serializes and transmits a payloadless packet outside any
// connection queue. Used for denials and best-effort disconnects.
func (d *Driver) sendRaw(kind wire.PacketKind, to Addr) error {
	_, err := d.sock.SendTo(wire.NewPacket(kind).Serialize(), to)
	return err
}

func (d *Driver) createConn(addr Addr) *Conn {
	conn := NewConn(addr)
	d.conns[makeAddrKey(addr)] = conn
	d.connList = append(d.connList, conn)
	return conn
}

func (d *Driver) removeConn(conn *Conn) {
	delete(d.conns, makeAddrKey(conn.Addr()))
	for i, c := range d.connList {
		if c == conn {
			d.connList = append(d.connList[:i], d.connList[i+1:]...)
			break
		}
	}
	if conn == d.serverConn {
		d.serverConn = nil
	}
}
