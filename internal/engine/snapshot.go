package engine

import (
	"github.com/talgya/windfield/internal/geom"
	"github.com/talgya/windfield/internal/gust"
	"github.com/talgya/windfield/internal/physics"
	"github.com/talgya/windfield/internal/tracker"
	"github.com/talgya/windfield/internal/wind"
)

// Snapshot is a read-only copy of the field published after each step.
type Snapshot struct {
	Step    uint64           `json:"step"`
	SimTime string           `json:"sim_time"`
	Seed    int64            `json:"seed"`
	Wind    wind.State       `json:"wind"`
	Force   geom.Vec3        `json:"force"`
	Gust    gust.State       `json:"gust"`
	Mode    string           `json:"mode"`
	Targets []physics.BodyID `json:"targets"`
	Last    tracker.Stats    `json:"last_apply"`
	Totals  tracker.Stats    `json:"totals"`
	Days    int              `json:"days"`
	Zone    *ZoneInfo        `json:"zone,omitempty"`
	Events  []Event          `json:"events"`
}

// ZoneInfo describes the zone in a snapshot.
type ZoneInfo struct {
	Name        string        `json:"name"`
	Strength    float64       `json:"strength"`
	TrackEvents bool          `json:"track_events"`
	Members     int           `json:"members"`
	Bounds      []geom.Bounds `json:"bounds"`
	Warnings    []string      `json:"warnings,omitempty"`
}

// snapshotEvents is how many recent events a snapshot carries.
const snapshotEvents = 50

// Snapshot copies the field state. It does not prune or poll the zone.
func (f *Field) Snapshot() Snapshot {
	st := f.Sim.State()
	targets := f.Tracker.CurrentTargets()
	ids := make([]physics.BodyID, len(targets))
	for i, b := range targets {
		ids[i] = b.ID()
	}

	clock := Elapsed(st.Time)
	if f.Sim.Config().DayCycle.Enabled {
		clock = SimTime(f.Days, st.DayClock)
	}

	s := Snapshot{
		Step:    f.Steps,
		SimTime: clock,
		Seed:    f.Sim.Seed(),
		Wind:    st,
		Force:   st.Force(),
		Gust:    f.Sim.Gust(),
		Mode:    f.Tracker.Mode().String(),
		Targets: ids,
		Last:    f.Last,
		Totals:  f.Totals,
		Days:    f.Days,
		Events:  f.RecentEvents(snapshotEvents),
	}
	if z := f.Zone; z != nil {
		s.Zone = &ZoneInfo{
			Name:        z.Name(),
			Strength:    z.Config().Strength,
			TrackEvents: z.TracksEvents(),
			Members:     z.Len(),
			Bounds:      z.Bounds(),
			Warnings:    z.Warnings(),
		}
	}
	return s
}
