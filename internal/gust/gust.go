// Package gust implements the two-state gust process layered on top of the
// base wind magnitude: an Idle state that polls a per-second trigger
// probability, and an Active state that plays a fixed-duration envelope.
package gust

import (
	"fmt"

	"github.com/talgya/windfield/internal/curve"
	"github.com/talgya/windfield/internal/geom"
)

// PollInterval is how often (in simulated seconds) an idle machine rolls for
// a new gust.
const PollInterval = 0.25

const epsilon = 1e-4

// Phase is the gust machine state.
type Phase uint8

const (
	Idle Phase = iota
	Active
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Active:
		return "active"
	default:
		return fmt.Sprintf("Phase(%d)", p)
	}
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a phase name. Unknown names decode as Idle.
func (p *Phase) UnmarshalText(b []byte) error {
	if string(b) == "active" {
		*p = Active
	} else {
		*p = Idle
	}
	return nil
}

// Config controls gust shape and frequency.
type Config struct {
	Enabled bool
	// Intensity scales the envelope: peak multiplier is 1 + Intensity.
	Intensity float64
	// Frequency scales the trigger probability of each idle roll, which is
	// Frequency*dt for the step the roll happens in.
	Frequency float64
	// Duration of one gust in simulated seconds.
	Duration float64
	// Envelope maps gust progress [0,1] to an amplification factor.
	Envelope curve.Curve
}

// DefaultConfig returns a disabled gust setup with a bell envelope.
func DefaultConfig() Config {
	return Config{
		Enabled:   false,
		Intensity: 1.5,
		Frequency: 0.1,
		Duration:  2,
		Envelope:  curve.Bell(),
	}
}

// Sanitize clamps out-of-range values instead of rejecting them.
func (c Config) Sanitize() Config {
	c.Frequency = geom.Clamp(c.Frequency, 0, 1e9)
	c.Duration = geom.Clamp(c.Duration, 0, 1e9)
	if c.Intensity != c.Intensity { // NaN
		c.Intensity = 0
	}
	return c
}

// State is the externally visible gust state.
type State struct {
	Phase    Phase   `json:"phase"`
	Progress float64 `json:"progress"`
	// Cooldown is the time left until the next idle trigger roll.
	Cooldown float64 `json:"cooldown"`
}

// Source supplies uniform samples in [0, 1). *rand.Rand satisfies it.
type Source interface {
	Float64() float64
}

// Machine is the gust state machine. It is not safe for concurrent use.
type Machine struct {
	cfg   Config
	rng   Source
	state State
}

// New creates an idle machine drawing trigger samples from rng.
func New(cfg Config, rng Source) *Machine {
	return &Machine{cfg: cfg.Sanitize(), rng: rng}
}

// Config returns the sanitized configuration.
func (m *Machine) Config() Config { return m.cfg }

// State returns a copy of the current state.
func (m *Machine) State() State { return m.state }

// Active reports whether a gust is playing.
func (m *Machine) Active() bool { return m.state.Phase == Active }

// Step advances the machine by dt simulated seconds.
func (m *Machine) Step(dt float64) {
	if !(dt > 0) {
		dt = 0
	}

	switch m.state.Phase {
	case Idle:
		if !m.cfg.Enabled {
			return
		}
		m.state.Cooldown -= dt
		if m.state.Cooldown > 0 {
			return
		}
		if m.rng != nil && m.rng.Float64() < m.cfg.Frequency*dt {
			m.state.Phase = Active
			m.state.Progress = 0
		}
		m.state.Cooldown = PollInterval

	case Active:
		m.state.Progress += dt / max(epsilon, m.cfg.Duration)
		if m.state.Progress >= 1 {
			m.state.Phase = Idle
			m.state.Progress = 0
		}
	}
}

// Trigger starts a gust immediately, restarting one already in progress.
// A disabled machine ignores it.
func (m *Machine) Trigger() {
	if !m.cfg.Enabled {
		return
	}
	m.state.Phase = Active
	m.state.Progress = 0
}

// Restore replaces the machine state, used when resuming a saved run.
func (m *Machine) Restore(s State) {
	if s.Phase != Active {
		s.Phase = Idle
		s.Progress = 0
	}
	s.Progress = geom.Clamp01(s.Progress)
	m.state = s
}

// EnvelopeScale returns the magnitude multiplier for the current state: 1
// while idle, and never below a small positive epsilon while active.
func (m *Machine) EnvelopeScale() float64 {
	if !m.cfg.Enabled || m.state.Phase != Active {
		return 1
	}
	v := 1 + m.cfg.Envelope.Evaluate(geom.Clamp01(m.state.Progress))*m.cfg.Intensity
	if !(v > epsilon) {
		return epsilon
	}
	return v
}
