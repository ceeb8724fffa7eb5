// Package wind is the temporal wind-state simulator. Each Advance folds the
// day-cycle curves, coherent-noise turbulence and the gust envelope into one
// current wind vector.
package wind

import (
	"math"
	"math/rand/v2"

	"github.com/talgya/windfield/internal/geom"
	"github.com/talgya/windfield/internal/gust"
	"github.com/talgya/windfield/internal/noise"
)

// magnitudeScaleFactor stretches the magnitude noise relative to the
// direction noise so the two streams drift at different rates.
const magnitudeScaleFactor = 0.75

// magnitudeNoiseDepth is how far turbulence can pull the magnitude down.
const magnitudeNoiseDepth = 0.25

// State is the published wind sample.
type State struct {
	// Direction is unit length, or zero.
	Direction geom.Vec3 `json:"direction"`
	// Magnitude lies within the configured [MinMagnitude, MaxMagnitude].
	Magnitude float64 `json:"magnitude"`
	// DayClock is the normalized time of day in [0, 1).
	DayClock float64 `json:"day_clock"`
	// Time is the accumulated simulated time in seconds.
	Time float64 `json:"time"`
}

// Force returns Direction scaled by Magnitude.
func (s State) Force() geom.Vec3 {
	return s.Direction.Scale(s.Magnitude)
}

// Simulator advances the wind state. It is not safe for concurrent use; the
// host calls Advance once per fixed step and reads the state afterwards.
type Simulator struct {
	cfg   Config
	noise *noise.Generator
	gust  *gust.Machine
	state State
}

// New creates a simulator. Seeding happens here, once: the noise generator
// and the gust trigger source are both derived from cfg.Seed, so two
// simulators built from the same config produce identical runs.
func New(cfg Config) *Simulator {
	cfg = cfg.Sanitize()
	gen := noise.New(cfg.Seed)
	cfg.Seed = gen.Seed()

	rng := rand.New(rand.NewPCG(uint64(cfg.Seed), 0x6057))
	s := &Simulator{
		cfg:   cfg,
		noise: gen,
		gust:  gust.New(cfg.Gust, rng),
	}
	s.sample()
	return s
}

// Config returns the sanitized configuration, with the resolved seed.
func (s *Simulator) Config() Config { return s.cfg }

// Seed returns the seed actually in use.
func (s *Simulator) Seed() int64 { return s.cfg.Seed }

// State returns the current wind sample.
func (s *Simulator) State() State { return s.state }

// Direction returns the current unit wind direction.
func (s *Simulator) Direction() geom.Vec3 { return s.state.Direction }

// Magnitude returns the current wind magnitude.
func (s *Simulator) Magnitude() float64 { return s.state.Magnitude }

// Force returns the current wind force vector.
func (s *Simulator) Force() geom.Vec3 { return s.state.Force() }

// Gust returns the gust machine state.
func (s *Simulator) Gust() gust.State { return s.gust.State() }

// TriggerGust starts a gust on the next Advance. Ignored when gusts are off.
func (s *Simulator) TriggerGust() { s.gust.Trigger() }

// Advance moves the simulation forward by dt seconds and returns the new
// state. Negative, NaN or infinite dt is treated as zero.
func (s *Simulator) Advance(dt float64) State {
	if !(dt > 0) || math.IsInf(dt, 0) {
		dt = 0
	}

	s.state.Time += dt

	day := s.cfg.DayCycle
	if day.Enabled && day.Length > 0 {
		clock := math.Mod(s.state.DayClock+dt/day.Length, 1)
		if clock < 0 || clock >= 1 || math.IsNaN(clock) {
			clock = 0
		}
		s.state.DayClock = clock
	}

	s.gust.Step(dt)
	s.sample()
	return s.state
}

// Restore resumes a saved run at simulated time t. Turbulence is a pure
// function of time, so the noise continues where it left off.
func (s *Simulator) Restore(t, dayClock float64, g gust.State) {
	if !(t > 0) || math.IsInf(t, 0) {
		t = 0
	}
	s.state.Time = t
	s.state.DayClock = math.Mod(geom.Clamp(dayClock, 0, 1), 1)
	s.gust.Restore(g)
	s.sample()
}

// sample recomputes direction and magnitude from the current clock state.
func (s *Simulator) sample() {
	cfg := s.cfg
	t := s.state.Time
	clock := s.state.DayClock

	dir := cfg.BaseHeading
	if cfg.DayCycle.Enabled {
		yaw := cfg.DayCycle.YawOverDay.Evaluate(clock)
		if rotated, ok := dir.RotateY(yaw).TryNormalize(); ok {
			dir = rotated
		}
	}

	turb := cfg.Turbulence
	if turb.Enabled {
		n := s.noise.Sample3(t, turb.Scale, turb.Octaves)
		// A zero or non-finite sum keeps the pre-turbulence direction.
		if perturbed, ok := dir.Add(n.Scale(turb.Intensity)).TryNormalize(); ok {
			dir = perturbed
		}
	}

	mult := 1.0
	if cfg.DayCycle.Enabled {
		mult *= max(0, cfg.DayCycle.ForceOverDay.Evaluate(clock))
	}
	if turb.Enabled {
		m := s.noise.Sample1(t, turb.Scale*magnitudeScaleFactor, turb.Octaves)
		mult *= geom.Clamp01(1 + m*magnitudeNoiseDepth)
	}
	mult *= s.gust.EnvelopeScale()

	mag := cfg.BaseMagnitude * mult
	if math.IsNaN(mag) {
		mag = cfg.MinMagnitude
	}

	s.state.Direction = dir
	s.state.Magnitude = geom.Clamp(mag, cfg.MinMagnitude, cfg.MaxMagnitude)
}
