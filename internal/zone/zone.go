// Package zone implements spatial zones: unions of host-owned convex volumes
// that answer containment and edge-falloff queries, and optionally track
// which bodies are inside from trigger enter/exit notifications.
package zone

import (
	"fmt"

	"github.com/talgya/windfield/internal/curve"
	"github.com/talgya/windfield/internal/geom"
	"github.com/talgya/windfield/internal/physics"
)

const (
	// containTolerance is the squared closest-point distance under which a
	// point counts as inside. Surface points are inside.
	containTolerance = 1e-8
	extentEpsilon    = 1e-6
)

// Filter decides which bodies a zone may track.
type Filter struct {
	LayerMask        physics.LayerMask
	RequiredTag      string
	ExcludeKinematic bool
}

// DefaultFilter accepts every non-kinematic body on any layer.
func DefaultFilter() Filter {
	return Filter{LayerMask: physics.AllLayers, ExcludeKinematic: true}
}

// Accept reports whether b passes the filter.
func (f Filter) Accept(b physics.Body) bool {
	if !physics.IsValid(b) {
		return false
	}
	if f.ExcludeKinematic && b.IsKinematic() {
		return false
	}
	if !f.LayerMask.Includes(b.Layer()) {
		return false
	}
	if f.RequiredTag != "" && b.Tag() != f.RequiredTag {
		return false
	}
	return true
}

// Config holds the zone's tunables.
type Config struct {
	Name     string
	Strength float64
	// UseFalloff enables distance falloff; otherwise FalloffAt is Strength.
	UseFalloff bool
	// Falloff is evaluated at 1-t, t being the normalized distance from the
	// nearest volume surface.
	Falloff curve.Curve
	Filter  Filter
	// TrackEvents keeps membership from enter/exit notifications. When false
	// Inside rescans every body on each call.
	TrackEvents bool
}

// DefaultConfig returns a full-strength, event-tracking zone whose falloff
// fades from full strength at the surface to zero one extent away.
func DefaultConfig() Config {
	return Config{
		Name:        "zone",
		Strength:    1,
		UseFalloff:  true,
		Falloff:     curve.Linear(0, 0, 1, 1),
		Filter:      DefaultFilter(),
		TrackEvents: true,
	}
}

// Zone is a union of volumes with a tracked membership set. It is not safe
// for concurrent use.
type Zone struct {
	cfg     Config
	geo     physics.Geometry
	world   physics.World
	volumes []physics.Volume

	inside map[physics.BodyID]physics.Body

	// Entered and Exited fire on event-mode membership changes.
	Entered func(physics.Body)
	Exited  func(physics.Body)
}

// New creates a zone over the given volumes. geo answers volume queries;
// world is only used in polling mode and may be nil otherwise.
func New(cfg Config, geo physics.Geometry, world physics.World, volumes ...physics.Volume) *Zone {
	if !(cfg.Strength >= 0) {
		cfg.Strength = 0
	}
	vs := make([]physics.Volume, 0, len(volumes))
	for _, v := range volumes {
		if v != nil {
			vs = append(vs, v)
		}
	}
	return &Zone{
		cfg:     cfg,
		geo:     geo,
		world:   world,
		volumes: vs,
		inside:  make(map[physics.BodyID]physics.Body),
	}
}

// Config returns the zone configuration.
func (z *Zone) Config() Config { return z.cfg }

// Name returns the configured zone name.
func (z *Zone) Name() string { return z.cfg.Name }

// TracksEvents reports whether membership is event driven.
func (z *Zone) TracksEvents() bool { return z.cfg.TrackEvents }

// Volumes returns the zone's volumes.
func (z *Zone) Volumes() []physics.Volume {
	out := make([]physics.Volume, len(z.volumes))
	copy(out, z.volumes)
	return out
}

// Bounds returns the bounding box of each volume, for display.
func (z *Zone) Bounds() []geom.Bounds {
	if z.geo == nil {
		return nil
	}
	out := make([]geom.Bounds, 0, len(z.volumes))
	for _, v := range z.volumes {
		out = append(out, z.geo.Bounds(v))
	}
	return out
}

// Warnings lists configuration problems the host should surface.
func (z *Zone) Warnings() []string {
	var w []string
	if len(z.volumes) == 0 {
		w = append(w, fmt.Sprintf("zone %q has no volumes attached; it contains nothing", z.cfg.Name))
	}
	if z.geo == nil {
		w = append(w, fmt.Sprintf("zone %q has no geometry source", z.cfg.Name))
	}
	if !z.cfg.TrackEvents && z.world == nil {
		w = append(w, fmt.Sprintf("zone %q polls without a world to scan", z.cfg.Name))
	}
	return w
}

// Contains reports whether p lies inside, or within tolerance of, any volume.
func (z *Zone) Contains(p geom.Vec3) bool {
	if z.geo == nil {
		return false
	}
	for _, v := range z.volumes {
		if z.geo.ClosestPoint(v, p).DistSq(p) < containTolerance {
			return true
		}
	}
	return false
}

// FalloffAt returns the zone strength at p, in [0, Strength]. Overlapping
// volumes reinforce: the maximum over volumes wins. A zone without volumes
// or geometry has no strength anywhere.
func (z *Zone) FalloffAt(p geom.Vec3) float64 {
	if len(z.volumes) == 0 || z.geo == nil {
		return 0
	}
	if !z.cfg.UseFalloff {
		return z.cfg.Strength
	}
	best := 0.0
	for _, v := range z.volumes {
		maxExtent := z.geo.Bounds(v).Extents.Len() + extentEpsilon
		d := z.geo.ClosestPoint(v, p).Dist(p)
		t := geom.Clamp01(d / maxExtent)
		if val := z.cfg.Falloff.Evaluate(1-t) * z.cfg.Strength; val > best {
			best = val
		}
	}
	return geom.Clamp(best, 0, z.cfg.Strength)
}

// Activate resets membership. Bodies already inside are not counted until a
// fresh enter notification arrives.
func (z *Zone) Activate() {
	clear(z.inside)
}

// OnEnter handles a trigger enter notification. The body is re-validated
// against the filter and the volumes before it is added.
func (z *Zone) OnEnter(b physics.Body) {
	if !z.cfg.TrackEvents || b == nil {
		return
	}
	if !z.cfg.Filter.Accept(b) {
		return
	}
	if !z.Contains(b.CenterOfMass()) {
		return
	}
	id := b.ID()
	if _, ok := z.inside[id]; ok {
		return
	}
	z.inside[id] = b
	if z.Entered != nil {
		z.Entered(b)
	}
}

// OnExit handles a trigger exit notification. Removal is unconditional.
func (z *Zone) OnExit(b physics.Body) {
	if !z.cfg.TrackEvents || b == nil {
		return
	}
	z.remove(b.ID())
}

func (z *Zone) remove(id physics.BodyID) {
	b, ok := z.inside[id]
	if !ok {
		return
	}
	delete(z.inside, id)
	if z.Exited != nil {
		z.Exited(b)
	}
}

// Inside returns the bodies currently in the zone, ordered by ID. In event
// mode destroyed or newly filtered-out bodies are dropped first; in polling
// mode the set is rebuilt from the world.
func (z *Zone) Inside() []physics.Body {
	if z.cfg.TrackEvents {
		z.prune()
	} else {
		z.poll()
	}
	out := make([]physics.Body, 0, len(z.inside))
	for _, b := range z.inside {
		out = append(out, b)
	}
	physics.SortByID(out)
	return out
}

// IsInside reports whether the body with the given ID is tracked.
func (z *Zone) IsInside(id physics.BodyID) bool {
	_, ok := z.inside[id]
	return ok
}

// Len returns the tracked membership count without pruning or polling.
func (z *Zone) Len() int { return len(z.inside) }

func (z *Zone) prune() {
	for id, b := range z.inside {
		if !z.cfg.Filter.Accept(b) {
			z.remove(id)
		}
	}
}

func (z *Zone) poll() {
	clear(z.inside)
	if z.world == nil {
		return
	}
	for _, b := range z.world.AllBodies() {
		if !z.cfg.Filter.Accept(b) {
			continue
		}
		if z.Contains(b.CenterOfMass()) {
			z.inside[b.ID()] = b
		}
	}
}
