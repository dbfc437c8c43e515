// Package netmgr is the runtime facade: it composes the transport driver,
// the world, the replication engine and the rpc registry from one config,
// wires the packet demultiplexer and pumps everything in tick order.
//
// Everything here is explicit values threaded by handle; there are no
// process-wide singletons. The whole runtime is single-threaded cooperative,
// driven by the host's monotonic tick.
package netmgr

import (
	"fmt"
	"io"

	"github.com/blukai/wvnet/internal/replication"
	"github.com/blukai/wvnet/internal/rpc"
	"github.com/blukai/wvnet/internal/transport"
	"github.com/blukai/wvnet/internal/wire"
	"github.com/blukai/wvnet/internal/world"
	"github.com/phuslu/log"
)

const (
	DefaultServerPort        = 7777
	DefaultMaxConnections    = 64
	DefaultTickRate          = 30.0
	DefaultRelevancyDistance = 10000.0
)

// Config selects the runtime mode and its knobs.
type Config struct {
	Mode              transport.Mode
	ServerAddress     string
	ServerPort        uint16
	MaxConnections    uint32
	TickRate          float32
	EnableRelevancy   bool
	RelevancyDistance float32
}

func DefaultConfig() Config {
	return Config{
		Mode:              transport.ModeStandalone,
		ServerAddress:     "127.0.0.1",
		ServerPort:        DefaultServerPort,
		MaxConnections:    DefaultMaxConnections,
		TickRate:          DefaultTickRate,
		RelevancyDistance: DefaultRelevancyDistance,
	}
}

func (c *Config) normalize() {
	if c.ServerPort == 0 && c.Mode == transport.ModeClient {
		c.ServerPort = DefaultServerPort
	}
	if c.MaxConnections == 0 {
		c.MaxConnections = DefaultMaxConnections
	}
	if c.TickRate <= 0 {
		c.TickRate = DefaultTickRate
	}
	if c.RelevancyDistance <= 0 {
		c.RelevancyDistance = DefaultRelevancyDistance
	}
}

// Manager owns the composed subsystems for one endpoint.
type Manager struct {
	config Config
	logger *log.Logger

	world       *world.World
	driver      *transport.Driver
	replication *replication.Engine
	rpc         *rpc.Registry

	initialized bool
}

// NewManager composes the runtime around an existing world. A nil logger is
// silenced, same as everywhere else.
func NewManager(config Config, w *world.World, logger *log.Logger) *Manager {
	if logger == nil {
		tmp := log.DefaultLogger
		logger = &tmp
		logger.Writer = &log.IOWriter{Writer: io.Discard}
	}

	config.normalize()

	m := &Manager{
		config: config,
		logger: logger,
		world:  w,
	}

	m.driver = transport.NewDriver(logger)
	m.replication = replication.NewEngine(w, m.driver, config.TickRate, logger)
	m.rpc = rpc.NewRegistry(w, m.driver, logger)

	if config.EnableRelevancy {
		m.replication.EnableRelevancy(config.RelevancyDistance)
	}

	m.driver.SetConnectCallback(m.onConnect)
	m.driver.SetDisconnectCallback(m.onDisconnect)
	m.driver.SetPacketCallback(m.onPacket)

	return m
}

func (m *Manager) World() *world.World { return m.world }
func (m *Manager) Driver() *transport.Driver { return m.driver }
func (m *Manager) Replication() *replication.Engine { return m.replication }
func (m *Manager) RPC() *rpc.Registry { return m.rpc }
func (m *Manager) Config() Config { return m.config }

func (m *Manager) IsServer() bool { return m.config.Mode == transport.ModeServer }
func (m *Manager) IsClient() bool { return m.config.Mode == transport.ModeClient }
func (m *Manager) IsNetworked() bool { return m.config.Mode != transport.ModeStandalone }
func (m *Manager) IsInitialized() bool { return m.initialized }

// Initialize boots the transport per the configured mode. Socket failures
// and, in client mode, an unresolvable server address are the only errors
// that surface to the host; everything else is handled inside the runtime.
func (m *Manager) Initialize() error {
	if m.initialized {
		return nil
	}

	switch m.config.Mode {
	case transport.ModeServer:
		if err := m.driver.InitServer(m.config.ServerPort, m.config.MaxConnections); err != nil {
			return fmt.Errorf("could not init server: %w", err)
		}

	case transport.ModeClient:
		if err := m.driver.InitClient(); err != nil {
			return fmt.Errorf("could not init client: %w", err)
		}
		if err := m.driver.ConnectToServer(m.config.ServerAddress, m.config.ServerPort); err != nil {
			return fmt.Errorf("could not connect: %w", err)
		}

	case transport.ModeStandalone:
		// nothing to boot
	}

	m.initialized = true
	return nil
}

// Shutdown tears the transport down. Best-effort disconnects go out
// unreliable; peers detect loss via their own timeout if those are dropped.
func (m *Manager) Shutdown() error {
	if !m.initialized {
		return nil
	}
	m.initialized = false

	if err := m.driver.Shutdown(); err != nil {
		return fmt.Errorf("could not shut down driver: %w", err)
	}
	return nil
}

// Tick pumps one frame: the driver first (receive, connection clocks, flush,
// timeout sweep), then the replication engine on servers. The host ticks the
// world itself, before calling this.
func (m *Manager) Tick(dt float32) {
	if !m.initialized || !m.IsNetworked() {
		return
	}

	m.driver.Tick(float64(dt))

	if m.IsServer() {
		m.replication.Tick(float64(dt))
	}
}

func (m *Manager) onConnect(conn *transport.Conn) {
	m.logger.Info().Msgf("connection up: %s", conn.Addr())
}

func (m *Manager) onDisconnect(conn *transport.Conn) {
	m.logger.Info().Msgf("connection down: %s", conn.Addr())
	m.replication.DropConn(conn)
}

// onPacket is the packet-kind demultiplexer for everything above the
// transport.
func (m *Manager) onPacket(conn *transport.Conn, pkt *wire.Packet) {
	switch pkt.Kind() {
	case wire.PacketActorSpawn, wire.PacketActorDestroy, wire.PacketActorReplication:
		m.replication.Process(conn, pkt)

	case wire.PacketRPCServer, wire.PacketRPCClient, wire.PacketRPCMulticast:
		m.rpc.Process(conn, pkt)

	case wire.PacketAcknowledgement, wire.PacketHeartbeat:
		// consumed by the connection already

	default:
		m.logger.Debug().Msgf("unhandled packet kind %s from %s", pkt.Kind(), conn.Addr())
	}
}
