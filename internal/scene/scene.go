// Package scene is a small in-memory rigid-body world. It implements the
// physics collaborators the wind engine consumes: body enumeration, volume
// geometry, force application and trigger enter/exit notifications.
package scene

import (
	"math"
	"math/rand/v2"
	"slices"

	"github.com/google/uuid"

	"github.com/talgya/windfield/internal/geom"
	"github.com/talgya/windfield/internal/physics"
)

// Body is a point-mass rigid body.
type Body struct {
	id        uuid.UUID
	mass      float64
	pos       geom.Vec3
	vel       geom.Vec3
	layer     int
	tag       string
	kinematic bool
	destroyed bool

	// accumulated until the next Integrate
	accel geom.Vec3
	dv    geom.Vec3
}

// The read accessors are safe on a nil *Body, which reads as a destroyed
// body with zero fields.

func (b *Body) ID() physics.BodyID {
	if b == nil {
		return physics.BodyID{}
	}
	return b.id
}

func (b *Body) IsKinematic() bool { return b != nil && b.kinematic }

func (b *Body) Layer() int {
	if b == nil {
		return 0
	}
	return b.layer
}

func (b *Body) Tag() string {
	if b == nil {
		return ""
	}
	return b.tag
}

func (b *Body) CenterOfMass() geom.Vec3 {
	if b == nil {
		return geom.Zero
	}
	return b.pos
}

func (b *Body) Valid() bool { return b != nil && !b.destroyed }

func (b *Body) Mass() float64 {
	if b == nil {
		return 0
	}
	return b.mass
}

func (b *Body) Velocity() geom.Vec3 {
	if b == nil {
		return geom.Zero
	}
	return b.vel
}

// SetPosition teleports the body. Trigger state catches up on the next
// Integrate.
func (b *Body) SetPosition(p geom.Vec3) { b.pos = p }

// SetVelocity overrides the body velocity.
func (b *Body) SetVelocity(v geom.Vec3) { b.vel = v }

// SetKinematic switches the body between simulated and script-driven.
func (b *Body) SetKinematic(k bool) { b.kinematic = k }

// BodySpec describes a body to spawn.
type BodySpec struct {
	Mass      float64
	Position  geom.Vec3
	Velocity  geom.Vec3
	Layer     int
	Tag       string
	Kinematic bool
}

type watch struct {
	volume   physics.Volume
	listener physics.TriggerListener
	inside   map[uuid.UUID]bool
}

// World owns bodies and trigger watches. It is not safe for concurrent use.
type World struct {
	Geometry

	// Gravity is applied to every non-kinematic body. Zero by default.
	Gravity geom.Vec3
	// Drag is a linear velocity damping rate per second.
	Drag float64

	bodies  []*Body
	index   map[uuid.UUID]*Body
	watches []*watch
}

// New creates an empty world.
func New() *World {
	return &World{index: make(map[uuid.UUID]*Body)}
}

// Spawn adds a body. Non-positive mass becomes 1.
func (w *World) Spawn(spec BodySpec) *Body {
	mass := spec.Mass
	if !(mass > 0) || math.IsInf(mass, 0) {
		mass = 1
	}
	b := &Body{
		id:        uuid.New(),
		mass:      mass,
		pos:       spec.Position,
		vel:       spec.Velocity,
		layer:     spec.Layer,
		tag:       spec.Tag,
		kinematic: spec.Kinematic,
	}
	w.bodies = append(w.bodies, b)
	w.index[b.id] = b
	return b
}

// Destroy removes a body. Handles held elsewhere become invalid. Watches do
// not receive an exit notification for destroyed bodies.
func (w *World) Destroy(id physics.BodyID) bool {
	b, ok := w.index[id]
	if !ok {
		return false
	}
	b.destroyed = true
	delete(w.index, id)
	w.bodies = slices.DeleteFunc(w.bodies, func(x *Body) bool { return x == b })
	for _, wt := range w.watches {
		delete(wt.inside, id)
	}
	return true
}

// Body looks up a live body by ID.
func (w *World) Body(id physics.BodyID) (*Body, bool) {
	b, ok := w.index[id]
	return b, ok
}

// Bodies returns the live bodies in spawn order.
func (w *World) Bodies() []*Body {
	out := make([]*Body, len(w.bodies))
	copy(out, w.bodies)
	return out
}

// Len returns the number of live bodies.
func (w *World) Len() int { return len(w.bodies) }

// AllBodies implements physics.World.
func (w *World) AllBodies() []physics.Body {
	out := make([]physics.Body, len(w.bodies))
	for i, b := range w.bodies {
		out[i] = b
	}
	return out
}

// ApplyForce implements physics.ForceApplier. Forces on bodies this world
// does not own, or on destroyed or kinematic bodies, are dropped.
func (w *World) ApplyForce(pb physics.Body, f geom.Vec3, mode physics.ForceMode) {
	if pb == nil || !f.IsFinite() {
		return
	}
	b, ok := w.index[pb.ID()]
	if !ok || b.kinematic {
		return
	}
	switch mode {
	case physics.Force:
		b.accel = b.accel.Add(f.Scale(1 / b.mass))
	case physics.Acceleration:
		b.accel = b.accel.Add(f)
	case physics.Impulse:
		b.dv = b.dv.Add(f.Scale(1 / b.mass))
	case physics.VelocityChange:
		b.dv = b.dv.Add(f)
	}
}

// Watch registers a trigger volume. The listener is told about bodies whose
// center of mass enters or leaves the volume during Integrate. Bodies already
// inside when the watch starts are reported on the next Integrate.
func (w *World) Watch(v physics.Volume, l physics.TriggerListener) {
	if v == nil || l == nil {
		return
	}
	w.watches = append(w.watches, &watch{volume: v, listener: l, inside: make(map[uuid.UUID]bool)})
}

// Integrate advances every body by dt with semi-implicit Euler, clears the
// force accumulators and then dispatches trigger notifications.
func (w *World) Integrate(dt float64) {
	if !(dt > 0) || math.IsInf(dt, 0) {
		dt = 0
	}
	damp := 1.0
	if w.Drag > 0 {
		damp = math.Exp(-w.Drag * dt)
	}
	for _, b := range w.bodies {
		if !b.kinematic {
			b.vel = b.vel.Add(b.dv).Add(w.Gravity.Add(b.accel).Scale(dt)).Scale(damp)
		}
		b.pos = b.pos.Add(b.vel.Scale(dt))
		b.accel = geom.Zero
		b.dv = geom.Zero
	}
	w.SyncTriggers()
}

// SyncTriggers compares every watch against current body positions and
// fires enter and exit notifications for the differences.
func (w *World) SyncTriggers() {
	bodies := slices.Clone(w.bodies)
	for _, wt := range w.watches {
		for _, b := range bodies {
			if b.destroyed {
				continue
			}
			now := w.Contains(wt.volume, b.pos)
			was := wt.inside[b.id]
			switch {
			case now && !was:
				wt.inside[b.id] = true
				wt.listener.OnEnter(b)
			case !now && was:
				delete(wt.inside, b.id)
				wt.listener.OnExit(b)
			}
		}
	}
}

// Scatter spawns n bodies uniformly inside area. Every fifth body is
// kinematic and layers cycle through 0..3, giving filters something to reject.
func (w *World) Scatter(rng *rand.Rand, n int, area geom.Bounds) []*Body {
	lo, size := area.Min(), area.Size()
	out := make([]*Body, 0, n)
	for i := 0; i < n; i++ {
		p := geom.V(
			lo.X+rng.Float64()*size.X,
			lo.Y+rng.Float64()*size.Y,
			lo.Z+rng.Float64()*size.Z,
		)
		tag := "debris"
		if i%3 == 0 {
			tag = "leaf"
		}
		out = append(out, w.Spawn(BodySpec{
			Mass:      0.5 + rng.Float64()*4.5,
			Position:  p,
			Layer:     i % 4,
			Tag:       tag,
			Kinematic: i%5 == 4,
		}))
	}
	return out
}
