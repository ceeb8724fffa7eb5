// Package engine provides the fixed-step simulation loop that drives a wind
// field and the host physics world.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/talgya/windfield/internal/wind"
)

// DefaultStep is the fixed simulation step in seconds (50 Hz).
const DefaultStep = 0.02

// maxPending bounds the command queue.
const maxPending = 64

// ErrBusy is returned by Do when the command queue is full.
var ErrBusy = errors.New("engine: command queue full")

// Integrator advances the host physics by dt after forces are applied.
type Integrator interface {
	Integrate(dt float64)
}

// Engine drives a Field forward in fixed steps.
type Engine struct {
	Field   *Field
	Physics Integrator    // optional
	DT      float64       // simulated seconds per step
	Pace    time.Duration // wall time per step at speed 1

	// Callbacks for each layer, populated during setup. They run on the
	// engine goroutine.
	OnStep   func(step uint64, st wind.State)
	OnSecond func(step uint64)
	// OnDay receives the completed day count. A step spanning several
	// days fires it once.
	OnDay func(day int)

	mu    sync.RWMutex
	speed float64
	snap  Snapshot

	cmds chan func(*Field)
}

// New creates an engine stepping f at DefaultStep in real time.
func New(f *Field, phys Integrator) *Engine {
	e := &Engine{
		Field:   f,
		Physics: phys,
		DT:      DefaultStep,
		Pace:    time.Duration(DefaultStep * float64(time.Second)),
		speed:   1.0,
		cmds:    make(chan func(*Field), maxPending),
	}
	e.snap = f.Snapshot()
	return e
}

// Speed returns the pace multiplier: 1 is real time, 0 is paused.
func (e *Engine) Speed() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.speed
}

// SetSpeed changes the pace multiplier. Negative or NaN values pause.
func (e *Engine) SetSpeed(s float64) {
	if !(s > 0) || math.IsInf(s, 0) {
		s = 0
	}
	e.mu.Lock()
	e.speed = s
	e.mu.Unlock()
}

// Snapshot returns the state published after the most recent step.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snap
}

// Do queues fn to run on the engine goroutine before the next step, even
// while paused. It never blocks.
func (e *Engine) Do(fn func(*Field)) error {
	select {
	case e.cmds <- fn:
		return nil
	default:
		return ErrBusy
	}
}

// Run steps the field until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("simulation engine started", "step", e.Field.Steps, "speed", e.Speed(), "dt", e.DT)
	defer func() {
		slog.Info("simulation engine stopped", "step", e.Field.Steps)
	}()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}

		speed := e.Speed()
		if speed <= 0 {
			// Paused: keep serving commands and check again shortly.
			e.drain()
			e.publish()
			timer.Reset(100 * time.Millisecond)
			continue
		}

		start := time.Now()
		e.step()

		elapsed := time.Since(start)
		target := time.Duration(float64(e.Pace) / speed)
		wait := time.Duration(0)
		if elapsed < target {
			wait = target - elapsed
		}
		timer.Reset(wait)
	}
}

// RunSteps advances n steps immediately, ignoring pace. It is meant for
// headless runs and must not be mixed with a concurrent Run.
func (e *Engine) RunSteps(n int) {
	for i := 0; i < n; i++ {
		e.step()
	}
}

func (e *Engine) drain() {
	for {
		select {
		case fn := <-e.cmds:
			fn(e.Field)
		default:
			return
		}
	}
}

// step advances the simulation by one fixed step.
func (e *Engine) step() {
	e.drain()

	st, days := e.Field.Step(e.DT)
	if e.Physics != nil {
		e.Physics.Integrate(e.DT)
	}
	e.publish()

	n := e.Field.Steps
	if e.OnStep != nil {
		e.OnStep(n, st)
	}
	if n%e.stepsPerSecond() == 0 && e.OnSecond != nil {
		e.OnSecond(n)
	}
	if days > 0 && e.OnDay != nil {
		e.OnDay(e.Field.Days)
	}
}

func (e *Engine) publish() {
	snap := e.Field.Snapshot()
	e.mu.Lock()
	e.snap = snap
	e.mu.Unlock()
}

func (e *Engine) stepsPerSecond() uint64 {
	if !(e.DT > 0) {
		return 1
	}
	return uint64(max(1, math.Round(1/e.DT)))
}

// SimTime returns a human-readable time of day, mapping the day clock onto
// a 24-hour dial.
func SimTime(day int, clock float64) string {
	minutes := int(clock*24*60) % (24 * 60)
	return fmt.Sprintf("Day %d, %d:%02d", day+1, minutes/60, minutes%60)
}

// Elapsed formats simulated seconds as a duration.
func Elapsed(seconds float64) string {
	if !(seconds > 0) || math.IsInf(seconds, 0) {
		return "0s"
	}
	return time.Duration(seconds * float64(time.Second)).Round(time.Millisecond).String()
}
