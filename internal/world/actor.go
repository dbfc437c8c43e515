// Package world is the authoritative actor registry: identity allocation,
// the spawn/destroy lifecycle, type factories and the per-actor replicated
// property bindings.
package world

import (
	"fmt"

	"github.com/blukai/wvnet/internal/debug"
	"github.com/blukai/wvnet/internal/wire"
)

// Actor is a replicable game object. Concrete types embed ActorCore, which
// carries identity, transform and property storage and supplies no-op
// lifecycle hooks; types redeclare the hooks they care about.
type Actor interface {
	Core() *ActorCore

	// TypeName is the stable name used on the wire to spawn this type on
	// the far side. It must match a registered factory there.
	TypeName() string

	OnSpawn()
	OnDestroy()
	Tick(dt float32)

	// OnReplicated runs on receivers after a batch of property updates
	// has been applied.
	OnReplicated()
}

// ActorCore is the embeddable actor state. Its zero value is usable; the
// transform is normalized to identity rotation and unit scale when the actor
// enters a World.
type ActorCore struct {
	netID      uint32
	replicates bool
	world      *World

	Position wire.Vec3
	Rotation wire.Quat
	Scale    wire.Vec3

	props       []*Property
	propsByName map[string]*Property
}

func (c *ActorCore) Core() *ActorCore { return c }

func (c *ActorCore) TypeName() string { return "Actor" }

func (c *ActorCore) OnSpawn() {}
func (c *ActorCore) OnDestroy() {}
func (c *ActorCore) Tick(dt float32) {}
func (c *ActorCore) OnReplicated() {}

// NetID is the network identity, 0 while detached from a World.
func (c *ActorCore) NetID() uint32 { return c.netID }
func (c *ActorCore) SetNetID(id uint32) { c.netID = id }

func (c *ActorCore) Replicates() bool { return c.replicates }
func (c *ActorCore) SetReplicates(v bool) { c.replicates = v }

// IsNetworked reports whether the actor participates in replication.
func (c *ActorCore) IsNetworked() bool { return c.replicates && c.netID != 0 }

func (c *ActorCore) World() *World { return c.world }

// RegisterProperty binds a field for replication. Call from the actor type's
// constructor; ptr must point into the actor itself. The property kind is
// inferred from the pointer type.
func (c *ActorCore) RegisterProperty(name string, ptr any) {
	if c.propsByName == nil {
		c.propsByName = make(map[string]*Property)
	}
	debug.Assert(c.propsByName[name] == nil, fmt.Sprintf("duplicate property %q", name))

	prop := newProperty(name, ptr)
	c.props = append(c.props, prop)
	c.propsByName[name] = prop
}

// Properties returns the bindings in registration order.
func (c *ActorCore) Properties() []*Property { return c.props }

func (c *ActorCore) PropertyByName(name string) *Property {
	return c.propsByName[name]
}

// init normalizes the zero-value transform when the actor is registered.
func (c *ActorCore) init() {
	if c.Rotation == (wire.Quat{}) {
		c.Rotation = wire.QuatIdentity()
	}
	if c.Scale == (wire.Vec3{}) {
		c.Scale = wire.Vec3{X: 1, Y: 1, Z: 1}
	}
}
