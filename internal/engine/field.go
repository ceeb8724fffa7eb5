package engine

import (
	"fmt"
	"math"

	"github.com/talgya/windfield/internal/geom"
	"github.com/talgya/windfield/internal/gust"
	"github.com/talgya/windfield/internal/physics"
	"github.com/talgya/windfield/internal/tracker"
	"github.com/talgya/windfield/internal/wind"
	"github.com/talgya/windfield/internal/zone"
)

// maxEvents bounds the recent-event ring.
const maxEvents = 256

// Event is a notable change in the field.
type Event struct {
	Step        uint64  `json:"step"`
	Time        float64 `json:"time"`
	Category    string  `json:"category"` // "gust", "zone", "day"
	Description string  `json:"description"`
}

// Field ties the wind simulator to its targets. One Step advances the wind
// and then pushes every target with the new sample.
type Field struct {
	Sim        *wind.Simulator
	Tracker    *tracker.Tracker
	Applicator *tracker.Applicator
	Zone       *zone.Zone // nil unless the tracker is zone backed

	Steps  uint64
	Days   int
	Last   tracker.Stats
	Totals tracker.Stats
	Events []Event

	lastPhase gust.Phase
}

// NewField wires a simulator and tracker to a force sink. Zone membership
// changes are recorded as events.
func NewField(sim *wind.Simulator, tr *tracker.Tracker, forces physics.ForceApplier) *Field {
	f := &Field{
		Sim:        sim,
		Tracker:    tr,
		Applicator: tracker.NewApplicator(tr, forces),
		Zone:       tr.Zone(),
		lastPhase:  sim.Gust().Phase,
	}
	if z := f.Zone; z != nil {
		prevEnter, prevExit := z.Entered, z.Exited
		z.Entered = func(b physics.Body) {
			f.record("zone", fmt.Sprintf("body %s entered %s", short(b.ID()), z.Name()))
			if prevEnter != nil {
				prevEnter(b)
			}
		}
		z.Exited = func(b physics.Body) {
			f.record("zone", fmt.Sprintf("body %s left %s", short(b.ID()), z.Name()))
			if prevExit != nil {
				prevExit(b)
			}
		}
	}
	return f
}

// Step advances the wind by dt, refreshes the target set and applies the
// force. The wind sample is committed before any body is touched, so every
// target in a step sees the same force. It reports how many day boundaries
// the step crossed.
func (f *Field) Step(dt float64) (wind.State, int) {
	days := f.dayCrossings(dt)

	st := f.Sim.Advance(dt)
	f.Steps++

	if days > 0 {
		f.Days += days
		f.record("day", fmt.Sprintf("day %d begins", f.Days+1))
	}

	if phase := f.Sim.Gust().Phase; phase != f.lastPhase {
		if phase == gust.Active {
			f.record("gust", fmt.Sprintf("gust started, magnitude %.2f", st.Magnitude))
		} else {
			f.record("gust", "gust passed")
		}
		f.lastPhase = phase
	}

	f.Tracker.Update(dt)
	f.Last = f.Applicator.Apply(st, f.Tracker.CurrentTargets())
	f.Totals.Add(f.Last)
	return st, days
}

// dayCrossings counts the day boundaries between the current clock and the
// clock dt later, matching how the simulator wraps it.
func (f *Field) dayCrossings(dt float64) int {
	day := f.Sim.Config().DayCycle
	if !day.Enabled || !(day.Length > 0) || !(dt > 0) || math.IsInf(dt, 0) {
		return 0
	}
	n := math.Floor(f.Sim.State().DayClock + dt/day.Length)
	if !(n > 0) {
		return 0
	}
	return int(min(n, math.MaxInt32))
}

// Activate restarts target tracking from an empty set.
func (f *Field) Activate() {
	f.Tracker.Activate()
}

// Direction returns the current unit wind direction.
func (f *Field) Direction() geom.Vec3 { return f.Sim.Direction() }

// Magnitude returns the current wind magnitude.
func (f *Field) Magnitude() float64 { return f.Sim.Magnitude() }

// Force returns the current wind force vector.
func (f *Field) Force() geom.Vec3 { return f.Sim.Force() }

// Inside returns the current membership: the zone's members in zone mode,
// otherwise the tracker's working set.
func (f *Field) Inside() []physics.Body {
	if f.Zone != nil {
		return f.Zone.Inside()
	}
	return f.Tracker.CurrentTargets()
}

// RecentEvents returns up to n of the newest events, oldest first.
func (f *Field) RecentEvents(n int) []Event {
	if n <= 0 || n > len(f.Events) {
		n = len(f.Events)
	}
	out := make([]Event, n)
	copy(out, f.Events[len(f.Events)-n:])
	return out
}

func (f *Field) record(category, desc string) {
	f.Events = append(f.Events, Event{
		Step:        f.Steps,
		Time:        f.Sim.State().Time,
		Category:    category,
		Description: desc,
	})
	if len(f.Events) > maxEvents {
		f.Events = append(f.Events[:0], f.Events[len(f.Events)-maxEvents:]...)
	}
}

func short(id physics.BodyID) string {
	return id.String()[:8]
}
