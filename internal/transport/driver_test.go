package transport_test

import (
	"net"
	"testing"

	"github.com/blukai/wvnet/internal/transport"
	"github.com/blukai/wvnet/internal/wire"
	"github.com/matryer/is"
)

func pump(n int, drivers ...*transport.Driver) {
	for i := 0; i < n; i++ {
		for _, d := range drivers {
			d.Tick(0.05)
		}
	}
}

func dialDriverPair(t *testing.T, maxConnections uint32) (*transport.Driver, *transport.Driver) {
	t.Helper()
	is := is.New(t)

	server := transport.NewDriver(nil)
	is.NoErr(server.InitServer(0, maxConnections))
	t.Cleanup(func() { server.Shutdown() })

	client := transport.NewDriver(nil)
	is.NoErr(client.InitClient())
	t.Cleanup(func() { client.Shutdown() })

	is.NoErr(client.ConnectToServer("127.0.0.1", server.LocalAddr().Port))
	return server, client
}

func TestConnectHandshake(t *testing.T) {
	is := is.New(t)

	server, client := dialDriverPair(t, 8)

	serverConnects := 0
	server.SetConnectCallback(func(*transport.Conn) { serverConnects++ })
	clientConnects := 0
	client.SetConnectCallback(func(*transport.Conn) { clientConnects++ })

	pump(10, client, server)

	is.Equal(serverConnects, 1)
	is.Equal(clientConnects, 1)

	serverConn := client.ServerConn()
	is.True(serverConn != nil)
	is.Equal(serverConn.State(), transport.StateConnected)

	// both handshake reliables must have been acked by now: the client's
	// ConnectionRequest and the server's ConnectionAccept
	is.Equal(serverConn.RetainedCount(), 0)
	is.Equal(len(server.Conns()), 1)
	is.Equal(server.Conns()[0].RetainedCount(), 0)
}

func TestOversizeDatagramDropped(t *testing.T) {
	is := is.New(t)

	server := transport.NewDriver(nil)
	is.NoErr(server.InitServer(0, 8))
	defer server.Shutdown()

	raw, err := net.DialUDP("udp4", nil, server.LocalAddr().UDPAddr())
	is.NoErr(err)
	defer raw.Close()

	// valid magic, bogus everything else, way past the datagram cap
	buf := make([]byte, 1500)
	pkt := wire.NewPacket(wire.PacketConnectionRequest).Serialize()
	copy(buf, pkt)
	_, err = raw.Write(buf)
	is.NoErr(err)

	pump(5, server)

	is.Equal(len(server.Conns()), 0)
}

func TestCapacityRefusal(t *testing.T) {
	is := is.New(t)

	server, first := dialDriverPair(t, 1)
	pump(10, first, server)
	is.Equal(len(server.Conns()), 1)

	second := transport.NewDriver(nil)
	is.NoErr(second.InitClient())
	defer second.Shutdown()

	denied := 0
	second.SetDisconnectCallback(func(*transport.Conn) { denied++ })

	is.NoErr(second.ConnectToServer("127.0.0.1", server.LocalAddr().Port))
	pump(10, second, server)

	is.Equal(denied, 1)
	is.True(second.ServerConn() == nil)
	// no server-side state for the refused peer
	is.Equal(len(server.Conns()), 1)
}

func TestServerTimeoutSweep(t *testing.T) {
	is := is.New(t)

	server, client := dialDriverPair(t, 8)
	pump(10, client, server)
	is.Equal(len(server.Conns()), 1)

	disconnects := 0
	server.SetDisconnectCallback(func(*transport.Conn) { disconnects++ })

	// the client goes silent; sweep fires after 30s of simulated time
	for i := 0; i < 31; i++ {
		server.Tick(1.0)
	}

	is.Equal(disconnects, 1)
	is.Equal(len(server.Conns()), 0)
}

func TestDisconnectTearsDownImmediately(t *testing.T) {
	is := is.New(t)

	server, client := dialDriverPair(t, 8)
	pump(10, client, server)
	is.Equal(len(server.Conns()), 1)

	serverDisconnects := 0
	server.SetDisconnectCallback(func(*transport.Conn) { serverDisconnects++ })

	server.Disconnect(server.Conns()[0])
	is.Equal(serverDisconnects, 1)
	is.Equal(len(server.Conns()), 0)

	// the best-effort disconnect reaches the client
	clientDisconnects := 0
	client.SetDisconnectCallback(func(*transport.Conn) { clientDisconnects++ })
	pump(5, client)
	is.Equal(clientDisconnects, 1)
	is.True(client.ServerConn() == nil)
}

func TestBroadcastReachesConnectedPeers(t *testing.T) {
	is := is.New(t)

	server, client := dialDriverPair(t, 8)
	pump(10, client, server)

	got := 0
	client.SetPacketCallback(func(_ *transport.Conn, pkt *wire.Packet) {
		if pkt.Kind() == wire.PacketActorDestroy {
			got++
		}
	})

	pkt := wire.NewPacket(wire.PacketActorDestroy)
	pkt.Payload.WriteUint32(12)
	server.Broadcast(pkt, true)

	pump(5, server, client)
	is.Equal(got, 1)
}
