package tracker

import (
	"github.com/talgya/windfield/internal/physics"
	"github.com/talgya/windfield/internal/wind"
)

// Stats counts what one Apply did with each target.
type Stats struct {
	Applied   int `json:"applied"`
	Invalid   int `json:"invalid"`
	Kinematic int `json:"kinematic"`
	Layer     int `json:"layer"`
	Outside   int `json:"outside"`
	ZeroForce int `json:"zero_force"`
}

// Skipped returns the number of targets that received no force.
func (s Stats) Skipped() int {
	return s.Invalid + s.Kinematic + s.Layer + s.Outside + s.ZeroForce
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.Applied += o.Applied
	s.Invalid += o.Invalid
	s.Kinematic += o.Kinematic
	s.Layer += o.Layer
	s.Outside += o.Outside
	s.ZeroForce += o.ZeroForce
}

// Applicator pushes the current wind force into each target.
type Applicator struct {
	tracker *Tracker
	forces  physics.ForceApplier
}

// NewApplicator binds the filters of t to a force sink.
func NewApplicator(t *Tracker, forces physics.ForceApplier) *Applicator {
	return &Applicator{tracker: t, forces: forces}
}

// Apply applies state's force to every target that still passes the
// tracker's filters. In zone mode with falloff enabled the force is scaled by
// the zone strength at the body's center of mass. The configured force mode
// is passed through unchanged.
func (a *Applicator) Apply(state wind.State, targets []physics.Body) Stats {
	var st Stats
	if a.tracker == nil || a.forces == nil {
		return st
	}
	cfg := a.tracker.cfg
	base := state.Force()
	z := a.tracker.zone

	for _, b := range targets {
		switch a.tracker.reject(b) {
		case skipInvalid:
			st.Invalid++
			continue
		case skipKinematic:
			st.Kinematic++
			continue
		case skipLayer:
			st.Layer++
			continue
		case skipOutside:
			st.Outside++
			continue
		}

		f := base
		if z != nil && cfg.UseFalloff {
			f = f.Scale(z.FalloffAt(b.CenterOfMass()))
		}
		if f.IsZero() || !f.IsFinite() {
			st.ZeroForce++
			continue
		}
		a.forces.ApplyForce(b, f, cfg.ForceMode)
		st.Applied++
	}
	return st
}
