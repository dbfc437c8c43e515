package world

import (
	"errors"
	"fmt"
	"io"

	"github.com/blukai/wvnet/internal/debug"
	"github.com/phuslu/log"
)

var (
	ErrUnknownActorType = errors.New("unknown actor type")
	ErrNetIDInUse       = errors.New("net id already in use")
)

// Factory constructs a detached actor of one type. Registered per type name
// so the receive side of replication can spawn by name.
type Factory func() Actor

// World owns every live actor. NetIDs are allocated monotonically from 1 and
// are unique among live actors; destruction is deferred to the end of the
// tick so handles held by callbacks stay valid mid-frame.
type World struct {
	logger *log.Logger

	actors    []Actor
	byID      map[uint32]Actor
	factories map[string]Factory

	pendingDestroy []Actor
	nextNetID      uint32
}

func NewWorld(logger *log.Logger) *World {
	// if logger is nil (which might be true in tests) => use default, but
	// silenced logger
	if logger == nil {
		tmp := log.DefaultLogger
		logger = &tmp
		logger.Writer = &log.IOWriter{Writer: io.Discard}
	}

	return &World{
		logger:    logger,
		byID:      make(map[uint32]Actor),
		factories: make(map[string]Factory),
		nextNetID: 1,
	}
}

// Spawn registers a detached actor: assigns a fresh NetId, sets the world
// back-reference and runs the spawn hook. The actor is visible to lookups
// immediately.
func (w *World) Spawn(a Actor) Actor {
	debug.Assert(a != nil)

	core := a.Core()
	debug.Assert(core.world == nil, "actor already spawned")
	core.init()
	core.netID = w.generateNetID()
	core.world = w

	w.register(a)
	return a
}

// SpawnByType constructs an actor from its registered factory and spawns it.
func (w *World) SpawnByType(typeName string) (Actor, error) {
	factory, ok := w.factories[typeName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownActorType, typeName)
	}
	return w.Spawn(factory()), nil
}

// SpawnReplica constructs an actor from its factory under an identity
// assigned by the remote authority instead of the local allocator. Used by
// the receive side of replication.
func (w *World) SpawnReplica(typeName string, netID uint32) (Actor, error) {
	factory, ok := w.factories[typeName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownActorType, typeName)
	}
	if _, exists := w.byID[netID]; exists {
		return nil, fmt.Errorf("%w: %d", ErrNetIDInUse, netID)
	}

	a := factory()
	core := a.Core()
	core.init()
	core.netID = netID
	core.world = w

	w.register(a)
	return a, nil
}

func (w *World) register(a Actor) {
	w.actors = append(w.actors, a)
	w.byID[a.Core().netID] = a
	a.OnSpawn()
}

// Destroy marks an actor for removal at the end of the current tick.
// Idempotent within a tick.
func (w *World) Destroy(a Actor) {
	if a == nil {
		return
	}
	for _, pending := range w.pendingDestroy {
		if pending == a {
			return
		}
	}
	w.pendingDestroy = append(w.pendingDestroy, a)
}

func (w *World) DestroyByNetID(netID uint32) {
	if a := w.ActorByNetID(netID); a != nil {
		w.Destroy(a)
	}
}

func (w *World) ActorByNetID(netID uint32) Actor {
	return w.byID[netID]
}

// Actors is the live actor list in spawn order; do not hold across ticks.
func (w *World) Actors() []Actor { return w.actors }

// RegisterActorType binds a type name to its factory. Re-registration
// overwrites.
func (w *World) RegisterActorType(typeName string, factory Factory) {
	w.factories[typeName] = factory
	w.logger.Debug().Msgf("registered actor type %q", typeName)
}

// Tick runs each live actor's per-frame hook in spawn order, then processes
// pending destroys. Actors spawned during the tick run starting next tick;
// actors destroyed during the tick still run this tick.
func (w *World) Tick(dt float32) {
	n := len(w.actors)
	for i := 0; i < n; i++ {
		w.actors[i].Tick(dt)
	}

	for _, a := range w.pendingDestroy {
		a.OnDestroy()
		delete(w.byID, a.Core().netID)
		for i, live := range w.actors {
			if live == a {
				w.actors = append(w.actors[:i], w.actors[i+1:]...)
				break
			}
		}
		a.Core().world = nil
	}
	w.pendingDestroy = w.pendingDestroy[:0]
}

// Clear tears the whole registry down, running destroy hooks, and resets the
// NetId allocator. For shutdown and test fixtures.
func (w *World) Clear() {
	for _, a := range w.actors {
		a.OnDestroy()
		a.Core().world = nil
	}
	w.actors = nil
	w.byID = make(map[uint32]Actor)
	w.pendingDestroy = nil
	w.nextNetID = 1
}

func (w *World) generateNetID() uint32 {
	id := w.nextNetID
	w.nextNetID++
	return id
}
