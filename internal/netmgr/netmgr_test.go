package netmgr_test

import (
	"testing"

	"github.com/blukai/wvnet/internal/netmgr"
	"github.com/blukai/wvnet/internal/rpc"
	"github.com/blukai/wvnet/internal/transport"
	"github.com/blukai/wvnet/internal/wire"
	"github.com/blukai/wvnet/internal/world"
	"github.com/matryer/is"
)

type syncedActor struct {
	world.ActorCore

	Health int32

	replicated int
}

func newSyncedActor() *syncedActor {
	a := &syncedActor{}
	a.RegisterProperty("Health", &a.Health)
	return a
}

func (a *syncedActor) TypeName() string { return "SyncedActor" }

func (a *syncedActor) OnReplicated() { a.replicated++ }

type endpoint struct {
	world   *world.World
	manager *netmgr.Manager
}

func (e *endpoint) tick(dt float32) {
	e.world.Tick(dt)
	e.manager.Tick(dt)
}

func newServerEndpoint(t *testing.T) *endpoint {
	t.Helper()
	is := is.New(t)

	w := world.NewWorld(nil)
	w.RegisterActorType("SyncedActor", func() world.Actor { return newSyncedActor() })

	manager := netmgr.NewManager(netmgr.Config{
		Mode:           transport.ModeServer,
		ServerPort:     0, // ephemeral
		MaxConnections: 8,
	}, w, nil)
	is.NoErr(manager.Initialize())
	t.Cleanup(func() { manager.Shutdown() })

	return &endpoint{world: w, manager: manager}
}

func newClientEndpoint(t *testing.T, server *endpoint) *endpoint {
	t.Helper()
	is := is.New(t)

	w := world.NewWorld(nil)
	w.RegisterActorType("SyncedActor", func() world.Actor { return newSyncedActor() })

	manager := netmgr.NewManager(netmgr.Config{
		Mode:          transport.ModeClient,
		ServerAddress: "127.0.0.1",
		ServerPort:    server.manager.Driver().LocalAddr().Port,
	}, w, nil)
	is.NoErr(manager.Initialize())
	t.Cleanup(func() { manager.Shutdown() })

	return &endpoint{world: w, manager: manager}
}

func pump(n int, endpoints ...*endpoint) {
	for i := 0; i < n; i++ {
		for _, e := range endpoints {
			e.tick(0.05)
		}
	}
}

func TestClientConnects(t *testing.T) {
	is := is.New(t)

	server := newServerEndpoint(t)
	client := newClientEndpoint(t, server)

	pump(10, client, server)

	serverConn := client.manager.Driver().ServerConn()
	is.True(serverConn != nil)
	is.Equal(serverConn.State(), transport.StateConnected)
	is.Equal(len(server.manager.Driver().Conns()), 1)
}

func TestHealthReplication(t *testing.T) {
	is := is.New(t)

	server := newServerEndpoint(t)
	client := newClientEndpoint(t, server)

	player := newSyncedActor()
	player.Health = 100
	player.SetReplicates(true)
	server.world.Spawn(player)

	pump(20, client, server)

	replicaActor := client.world.ActorByNetID(player.NetID())
	is.True(replicaActor != nil)
	replica := replicaActor.(*syncedActor)
	is.Equal(replica.Health, int32(100))
	is.True(replica.Replicates())

	// exactly one replica regardless of how many bursts have run
	is.Equal(len(client.world.Actors()), 1)

	player.Health = 57
	pump(20, client, server)
	is.Equal(replica.Health, int32(57))

	// no changes => no replication packets => the hook stays quiet
	quiet := replica.replicated
	pump(20, client, server)
	is.Equal(replica.replicated, quiet)
}

func TestActorDestroyPropagates(t *testing.T) {
	is := is.New(t)

	server := newServerEndpoint(t)
	client := newClientEndpoint(t, server)

	player := newSyncedActor()
	player.SetReplicates(true)
	server.world.Spawn(player)
	netID := player.NetID()

	pump(20, client, server)
	is.True(client.world.ActorByNetID(netID) != nil)

	server.world.Destroy(player)
	pump(20, client, server)

	is.True(client.world.ActorByNetID(netID) == nil)
	is.Equal(len(client.world.Actors()), 0)
}

func TestServerRPCRoundTrip(t *testing.T) {
	is := is.New(t)

	server := newServerEndpoint(t)
	client := newClientEndpoint(t, server)

	player := newSyncedActor()
	player.Health = 50
	player.SetReplicates(true)
	server.world.Spawn(player)

	server.manager.RPC().Register("Heal", rpc.KindServer, func(a world.Actor, params *wire.Reader) {
		if p, ok := a.(*syncedActor); ok {
			p.Health += params.ReadInt32()
		}
	})

	pump(20, client, server)
	replica := client.world.ActorByNetID(player.NetID())
	is.True(replica != nil)

	params := wire.NewWriter()
	params.WriteInt32(25)
	is.NoErr(client.manager.RPC().CallServer(replica, "Heal", params))

	pump(10, client, server)
	is.Equal(player.Health, int32(75))
}

func TestMulticastRPCReachesClient(t *testing.T) {
	is := is.New(t)

	server := newServerEndpoint(t)
	client := newClientEndpoint(t, server)

	player := newSyncedActor()
	player.SetReplicates(true)
	server.world.Spawn(player)

	pump(20, client, server)
	is.True(client.world.ActorByNetID(player.NetID()) != nil)

	fired := 0
	client.manager.RPC().Register("Celebrate", rpc.KindMulticast, func(world.Actor, *wire.Reader) {
		fired++
	})

	is.NoErr(server.manager.RPC().CallMulticast(player, "Celebrate", nil))
	pump(10, client, server)

	is.Equal(fired, 1)
}

func TestRelevancyDespawnAndRespawn(t *testing.T) {
	is := is.New(t)

	w := world.NewWorld(nil)
	w.RegisterActorType("SyncedActor", func() world.Actor { return newSyncedActor() })

	manager := netmgr.NewManager(netmgr.Config{
		Mode:              transport.ModeServer,
		ServerPort:        0,
		MaxConnections:    8,
		EnableRelevancy:   true,
		RelevancyDistance: 100,
	}, w, nil)
	is.NoErr(manager.Initialize())
	t.Cleanup(func() { manager.Shutdown() })
	server := &endpoint{world: w, manager: manager}

	client := newClientEndpoint(t, server)

	avatar := newSyncedActor()
	avatar.SetReplicates(true)
	server.world.Spawn(avatar)

	far := newSyncedActor()
	far.Health = 80
	far.SetReplicates(true)
	far.Position.X = 1000
	server.world.Spawn(far)

	// without an avatar on the connection everything is relevant
	pump(20, client, server)
	is.True(client.world.ActorByNetID(far.NetID()) != nil)

	// attach the client's point of view; the far actor leaves relevance
	// and must be torn down on the client
	server.manager.Driver().Conns()[0].SetUserData(avatar)
	pump(20, client, server)
	is.True(client.world.ActorByNetID(far.NetID()) == nil)
	is.True(client.world.ActorByNetID(avatar.NetID()) != nil)

	// re-entering relevance re-spawns with full state
	far.Position.X = 10
	pump(20, client, server)
	respawned := client.world.ActorByNetID(far.NetID())
	is.True(respawned != nil)
	is.Equal(respawned.(*syncedActor).Health, int32(80))
}

func TestStandaloneTicksAreInert(t *testing.T) {
	is := is.New(t)

	w := world.NewWorld(nil)
	manager := netmgr.NewManager(netmgr.Config{Mode: transport.ModeStandalone}, w, nil)
	is.NoErr(manager.Initialize())

	manager.Tick(0.05) // must not touch any socket
	is.NoErr(manager.Shutdown())
}
