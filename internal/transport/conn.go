package transport

import (
	"github.com/blukai/wvnet/internal/wire"
)

// State is the lifecycle of a Conn.
type State uint8

const (
	StateConnecting State = iota
	StateConnected
	StateDisconnecting
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	case StateDisconnected:
		return "disconnected"
	}
	return "unknown"
}

// Stats are per-connection transfer counters.
type Stats struct {
	PacketsSent     uint64
	PacketsReceived uint64
	BytesSent       uint64
	BytesReceived   uint64
	// PacketsLost counts reliable retransmissions and packets dropped at
	// flush for exceeding the datagram size cap.
	PacketsLost uint32
}

const (
	// heartbeatInterval is how long a connected peer may stay silent
	// before an unreliable Heartbeat is emitted to keep the pipe warm.
	heartbeatInterval = 5.0

	// resend timeout bounds; the working value tracks 2x the RTT estimate.
	minResendTimeout = 0.2
	maxResendTimeout = 1.0
)

// retained is a reliable packet awaiting acknowledgement.
type retained struct {
	pkt *wire.Packet
	// sentAt is the connection clock at the last transmission, < 0 until
	// the packet first leaves the socket.
	sentAt  float64
	queued  bool
	resends int
}

// Conn is the per-peer state: sequencing, the reliable retention buffer, the
// outgoing queue, the RTT estimate and activity clocks. All times are seconds
// on the connection's own monotonic clock, advanced by Tick.
type Conn struct {
	addr  Addr
	state State

	outgoingSeq uint32
	incomingSeq uint32

	// every reliable packet in the outgoing queue is also present here,
	// keyed by sequence, until its ack arrives.
	reliable map[uint32]*retained
	outgoing []*wire.Packet

	rtt          float64
	lastSendTime float64
	lastRecvTime float64
	currentTime  float64

	userData any
	stats    Stats
}

func NewConn(addr Addr) *Conn {
	return &Conn{
		addr:     addr,
		state:    StateConnecting,
		reliable: make(map[uint32]*retained),
	}
}

func (c *Conn) Addr() Addr { return c.addr }
func (c *Conn) State() State { return c.state }
func (c *Conn) SetState(s State) { c.state = s }
func (c *Conn) RTT() float64 { return c.rtt }
func (c *Conn) Stats() Stats { return c.stats }
func (c *Conn) UserData() any { return c.userData }
func (c *Conn) SetUserData(v any) { c.userData = v }

// IncomingSequence is the highest sequence number observed from the peer.
func (c *Conn) IncomingSequence() uint32 { return c.incomingSeq }

// HasRetained reports whether the reliable packet with the given sequence is
// still awaiting acknowledgement.
func (c *Conn) HasRetained(seq uint32) bool {
	_, ok := c.reliable[seq]
	return ok
}

func (c *Conn) RetainedCount() int { return len(c.reliable) }

func (c *Conn) TimeSinceLastReceive() float64 {
	return c.currentTime - c.lastRecvTime
}

func (c *Conn) IsTimedOut(threshold float64) bool {
	return c.TimeSinceLastReceive() > threshold
}

// Send stamps the next outgoing sequence onto a copy of pkt and queues it.
// Reliable packets are additionally retained until acknowledged. The payload
// must not be mutated after the call; copies share it.
func (c *Conn) Send(pkt *wire.Packet, reliable bool) {
	out := &wire.Packet{Header: pkt.Header, Payload: pkt.Payload}
	out.Header.Sequence = c.outgoingSeq
	c.outgoingSeq++

	c.outgoing = append(c.outgoing, out)
	if reliable {
		c.reliable[out.Header.Sequence] = &retained{pkt: out, sentAt: -1, queued: true}
	}
}

// Receive updates ack and sequence bookkeeping for one inbound packet. size
// is the datagram length on the wire.
func (c *Conn) Receive(pkt *wire.Packet, size int) {
	c.lastRecvTime = c.currentTime
	c.stats.PacketsReceived++
	c.stats.BytesReceived += uint64(size)

	if seq := pkt.Header.Sequence; seq > c.incomingSeq {
		c.incomingSeq = seq
	}

	kind := pkt.Kind()
	if kind != wire.PacketAcknowledgement && kind != wire.PacketHeartbeat {
		c.sendAck(pkt.Header.Sequence)
	}
	if kind == wire.PacketAcknowledgement {
		c.processAck(pkt)
	}
}

func (c *Conn) sendAck(seq uint32) {
	ack := wire.NewPacket(wire.PacketAcknowledgement)
	ack.Payload.WriteUint32(seq)
	c.Send(ack, false)
}

func (c *Conn) processAck(pkt *wire.Packet) {
	r := pkt.PayloadReader()
	ackedSeq := r.ReadUint32()
	if r.Short() {
		return
	}

	entry, ok := c.reliable[ackedSeq]
	if !ok {
		return
	}
	delete(c.reliable, ackedSeq)

	if entry.sentAt >= 0 {
		sample := c.currentTime - entry.sentAt
		if c.rtt == 0 {
			c.rtt = sample
		} else {
			c.rtt = c.rtt*0.9 + sample*0.1
		}
	}
}

func (c *Conn) resendTimeout() float64 {
	timeout := c.rtt * 2
	if timeout < minResendTimeout {
		timeout = minResendTimeout
	}
	if timeout > maxResendTimeout {
		timeout = maxResendTimeout
	}
	return timeout
}

// Tick advances the connection clock, re-queues overdue reliables and emits a
// heartbeat when the pipe has been silent too long.
func (c *Conn) Tick(dt float64) {
	c.currentTime += dt

	if c.state == StateDisconnected {
		return
	}

	for _, entry := range c.reliable {
		if entry.queued || entry.sentAt < 0 {
			continue
		}
		if c.currentTime-entry.sentAt > c.resendTimeout() {
			entry.queued = true
			entry.resends++
			c.stats.PacketsLost++
			c.outgoing = append(c.outgoing, entry.pkt)
		}
	}

	if c.state == StateConnected && c.currentTime-c.lastSendTime > heartbeatInterval {
		c.Send(wire.NewPacket(wire.PacketHeartbeat), false)
	}
}

// Flush drains the outgoing queue onto the socket. On a send error the head
// of the queue is kept for the next tick.
func (c *Conn) Flush(sock *Socket) {
	for len(c.outgoing) > 0 {
		pkt := c.outgoing[0]

		buf := pkt.Serialize()
		if len(buf) > wire.MaxPacketSize {
			// cannot ever be transmitted; drop it and its retention
			delete(c.reliable, pkt.Header.Sequence)
			c.outgoing = c.outgoing[1:]
			c.stats.PacketsLost++
			continue
		}

		n, err := sock.SendTo(buf, c.addr)
		if err != nil {
			// would block or transient error, try again next tick
			break
		}

		c.stats.PacketsSent++
		c.stats.BytesSent += uint64(n)
		c.lastSendTime = c.currentTime

		if entry, ok := c.reliable[pkt.Header.Sequence]; ok && entry.pkt == pkt {
			entry.sentAt = c.currentTime
			entry.queued = false
		}

		c.outgoing = c.outgoing[1:]
	}
}

// DropPending discards the outgoing queue and retention buffer. Used on
// disconnect; reliable delivery stops with the connection.
func (c *Conn) DropPending() {
	c.outgoing = nil
	c.reliable = make(map[uint32]*retained)
}
