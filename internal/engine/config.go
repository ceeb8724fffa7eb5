package engine

import (
	"github.com/talgya/windfield/internal/physics"
	"github.com/talgya/windfield/internal/tracker"
	"github.com/talgya/windfield/internal/wind"
	"github.com/talgya/windfield/internal/zone"
)

// Config is the full configuration surface of one wind field.
type Config struct {
	Wind    wind.Config
	Tracker tracker.Config
	// Zone is used when Tracker.Mode is tracker.ModeZone.
	Zone ZoneSetup
}

// ZoneSetup is a zone configuration plus the volumes it is made of.
type ZoneSetup struct {
	Config  zone.Config
	Volumes []physics.Volume
}

// DefaultConfig returns the defaults of every component.
func DefaultConfig() Config {
	return Config{
		Wind:    wind.DefaultConfig(),
		Tracker: tracker.DefaultConfig(),
		Zone:    ZoneSetup{Config: zone.DefaultConfig()},
	}
}

// Sanitize clamps every component configuration.
func (c Config) Sanitize() Config {
	c.Wind = c.Wind.Sanitize()
	c.Tracker = c.Tracker.Sanitize()
	return c
}

// TriggerSource is implemented by hosts that deliver enter/exit
// notifications for volumes.
type TriggerSource interface {
	Watch(v physics.Volume, l physics.TriggerListener)
}

// Build assembles a field. In zone mode the zone is created over the
// configured volumes and, when it tracks events and world is a
// TriggerSource, registered for notifications on each volume.
func Build(cfg Config, world physics.World, geo physics.Geometry, forces physics.ForceApplier) *Field {
	cfg = cfg.Sanitize()
	sim := wind.New(cfg.Wind)

	var tr *tracker.Tracker
	if cfg.Tracker.Mode == tracker.ModeZone {
		z := zone.New(cfg.Zone.Config, geo, world, cfg.Zone.Volumes...)
		if src, ok := world.(TriggerSource); ok && z.TracksEvents() {
			for _, v := range z.Volumes() {
				src.Watch(v, z)
			}
		}
		tr = tracker.NewZoneTracker(cfg.Tracker, z, geo)
	} else {
		tr = tracker.New(cfg.Tracker, world, geo)
	}

	f := NewField(sim, tr, forces)
	f.Activate()
	return f
}
