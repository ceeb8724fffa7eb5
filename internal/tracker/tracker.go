// Package tracker selects the bodies the wind pushes and applies the force
// to them. Three strategies share one Tracker: periodic rescans of the whole
// world, a one-time static capture, and zone membership.
package tracker

import (
	"fmt"
	"math"
	"strings"

	"github.com/talgya/windfield/internal/physics"
	"github.com/talgya/windfield/internal/zone"
)

// Mode selects how the target set is maintained.
type Mode uint8

const (
	// ModeDynamic requeries the world every RescanInterval seconds.
	ModeDynamic Mode = iota
	// ModeStatic captures the world once and never requeries.
	ModeStatic
	// ModeZone uses the membership of a zone.
	ModeZone
)

func (m Mode) String() string {
	switch m {
	case ModeDynamic:
		return "dynamic"
	case ModeStatic:
		return "static"
	case ModeZone:
		return "zone"
	default:
		return fmt.Sprintf("Mode(%d)", m)
	}
}

// ParseMode maps a name to a Mode. Unknown names map to ModeDynamic.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "static":
		return ModeStatic
	case "zone":
		return ModeZone
	default:
		return ModeDynamic
	}
}

// Config controls target selection and force application.
type Config struct {
	Mode Mode
	// RescanInterval is the dynamic-mode requery period in seconds. Zero
	// rescans on every Update.
	RescanInterval float64
	LayerMask      physics.LayerMask
	// AreaLimited restricts targets to bodies whose center of mass lies in
	// Area. With no Area set nothing qualifies.
	AreaLimited bool
	Area        physics.Volume
	// UseFalloff scales the force by the zone falloff in zone mode.
	UseFalloff bool
	ForceMode  physics.ForceMode
}

// DefaultConfig pushes every non-kinematic body in the world, rescanning
// once a second.
func DefaultConfig() Config {
	return Config{
		Mode:           ModeDynamic,
		RescanInterval: 1,
		LayerMask:      physics.AllLayers,
		UseFalloff:     true,
		ForceMode:      physics.Force,
	}
}

// Sanitize clamps the configuration into a usable range.
func (c Config) Sanitize() Config {
	if !(c.RescanInterval >= 0) || math.IsInf(c.RescanInterval, 0) {
		c.RescanInterval = 0
	}
	if c.Mode > ModeZone {
		c.Mode = ModeDynamic
	}
	return c
}

// Tracker maintains the working target set. It is not safe for concurrent
// use.
type Tracker struct {
	cfg   Config
	world physics.World
	geo   physics.Geometry
	zone  *zone.Zone

	targets []physics.Body
	seen    map[physics.BodyID]struct{}
	scanned bool
	timer   float64
	scans   int
}

// New creates a world-scanning tracker. A ModeZone config without a zone
// degrades to ModeDynamic.
func New(cfg Config, world physics.World, geo physics.Geometry) *Tracker {
	cfg = cfg.Sanitize()
	if cfg.Mode == ModeZone {
		cfg.Mode = ModeDynamic
	}
	return &Tracker{cfg: cfg, world: world, geo: geo}
}

// NewZoneTracker creates a tracker whose targets are z's members.
func NewZoneTracker(cfg Config, z *zone.Zone, geo physics.Geometry) *Tracker {
	cfg = cfg.Sanitize()
	cfg.Mode = ModeZone
	return &Tracker{cfg: cfg, zone: z, geo: geo}
}

// Config returns the sanitized configuration.
func (t *Tracker) Config() Config { return t.cfg }

// Mode returns the active strategy.
func (t *Tracker) Mode() Mode { return t.cfg.Mode }

// Zone returns the backing zone, or nil outside zone mode.
func (t *Tracker) Zone() *zone.Zone { return t.zone }

// Scans returns how many world requeries have run.
func (t *Tracker) Scans() int { return t.scans }

// Activate drops the working set. The next Update rebuilds it; a backing
// zone forgets its members until fresh enter notifications arrive.
func (t *Tracker) Activate() {
	t.targets = nil
	t.scanned = false
	t.timer = 0
	if t.zone != nil {
		t.zone.Activate()
	}
}

// Update advances the rescan timer by dt and refreshes the target set when
// the strategy calls for it.
func (t *Tracker) Update(dt float64) {
	if !(dt > 0) || math.IsInf(dt, 0) {
		dt = 0
	}
	switch t.cfg.Mode {
	case ModeDynamic:
		t.timer -= dt
		if !t.scanned || t.timer <= 0 {
			t.Rescan()
			t.timer = t.cfg.RescanInterval
		}
	case ModeStatic:
		if !t.scanned {
			t.Rescan()
		}
	case ModeZone:
		if t.zone != nil {
			t.targets = t.zone.Inside()
		}
		t.scanned = true
	}
}

// Rescan replaces the target set with the bodies of the world that pass the
// filters, in world order. A body listed more than once is kept once. In
// zone mode it re-reads the membership.
func (t *Tracker) Rescan() {
	t.scanned = true
	if t.cfg.Mode == ModeZone {
		if t.zone != nil {
			t.targets = t.zone.Inside()
		}
		return
	}
	t.scans++
	t.targets = t.targets[:0]
	if t.world == nil {
		return
	}
	if t.seen == nil {
		t.seen = make(map[physics.BodyID]struct{})
	}
	clear(t.seen)
	for _, b := range t.world.AllBodies() {
		if !t.Accept(b) {
			continue
		}
		if _, dup := t.seen[b.ID()]; dup {
			continue
		}
		t.seen[b.ID()] = struct{}{}
		t.targets = append(t.targets, b)
	}
}

// Accept reports whether b may receive wind force: it must be valid,
// non-kinematic, on a masked layer and, when area limited, inside the area.
func (t *Tracker) Accept(b physics.Body) bool {
	return t.reject(b) == skipNone
}

// CurrentTargets returns a copy of the working set.
func (t *Tracker) CurrentTargets() []physics.Body {
	out := make([]physics.Body, len(t.targets))
	copy(out, t.targets)
	return out
}

// Len returns the working set size.
func (t *Tracker) Len() int { return len(t.targets) }

type skipReason uint8

const (
	skipNone skipReason = iota
	skipInvalid
	skipKinematic
	skipLayer
	skipOutside
)

func (t *Tracker) reject(b physics.Body) skipReason {
	if !physics.IsValid(b) {
		return skipInvalid
	}
	if b.IsKinematic() {
		return skipKinematic
	}
	if !t.cfg.LayerMask.Includes(b.Layer()) {
		return skipLayer
	}
	if t.cfg.AreaLimited {
		if t.cfg.Area == nil || t.geo == nil || !t.geo.Contains(t.cfg.Area, b.CenterOfMass()) {
			return skipOutside
		}
	}
	return skipNone
}
