package main

import (
	"math/rand/v2"

	"github.com/talgya/windfield/internal/config"
	"github.com/talgya/windfield/internal/engine"
	"github.com/talgya/windfield/internal/entropy"
	"github.com/talgya/windfield/internal/geom"
	"github.com/talgya/windfield/internal/scene"
)

// buildField scatters the demo bodies and assembles a wind field over them.
// The scene has its own seed; 0 scatters differently on every run.
func buildField(cfg config.Config, ec engine.Config) (*scene.World, *engine.Field) {
	w := scene.New()
	w.Drag = 0.1

	rng := rand.New(rand.NewPCG(uint64(entropy.ResolveSeed(cfg.Sim.SceneSeed)), 0x5eed))
	w.Scatter(rng, cfg.Sim.Bodies, geom.Bounds{Extents: cfg.Sim.Area.Vec()})

	return w, engine.Build(ec, w, w, w)
}

// newEngine wraps f with the configured step, pace and speed.
func newEngine(cfg config.Config, w *scene.World, f *engine.Field) *engine.Engine {
	e := engine.New(f, w)
	if cfg.Sim.Step > 0 {
		e.DT = cfg.Sim.Step
	}
	if cfg.Sim.Pace > 0 {
		e.Pace = cfg.Sim.Pace
	}
	e.SetSpeed(cfg.Sim.Speed)
	return e
}
