// Package noise generates seeded multi-octave coherent noise for wind
// turbulence. A Generator is a pure function of its seed and the sample
// arguments: it holds no mutable state after construction.
package noise

import (
	"math/rand/v2"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/windfield/internal/entropy"
	"github.com/talgya/windfield/internal/geom"
)

// offsetRange bounds the seed offsets. Large enough to decorrelate the
// streams, small enough to keep float64 precision at high sample times.
const offsetRange = 1000.0

// octaveShift moves each octave onto its own row of the 2D noise plane.
const octaveShift = 17.31

// Seed holds the two offset vectors that decorrelate the direction stream
// (OffsetA) from the magnitude stream (OffsetB).
type Seed struct {
	OffsetA geom.Vec3 `json:"offset_a"`
	OffsetB geom.Vec3 `json:"offset_b"`
}

// NewSeed derives the offset vectors from an integer seed.
func NewSeed(seed int64) Seed {
	rng := rand.New(rand.NewPCG(uint64(seed), 0x5eed0ff5e7))
	draw := func() geom.Vec3 {
		return geom.Vec3{
			X: (rng.Float64()*2 - 1) * offsetRange,
			Y: (rng.Float64()*2 - 1) * offsetRange,
			Z: (rng.Float64()*2 - 1) * offsetRange,
		}
	}
	a := draw()
	b := draw()
	return Seed{OffsetA: a, OffsetB: b}
}

// Generator samples fractal (fBm) coherent noise over time.
type Generator struct {
	seed    int64
	offsets Seed
	base    opensimplex.Noise
}

// New creates a generator. A zero seed is replaced by a non-deterministic one;
// Seed reports the value actually used.
func New(seed int64) *Generator {
	seed = entropy.ResolveSeed(seed)
	return &Generator{
		seed:    seed,
		offsets: NewSeed(seed),
		base:    opensimplex.NewNormalized(seed),
	}
}

// Seed returns the resolved integer seed.
func (g *Generator) Seed() int64 { return g.seed }

// Offsets returns the derived offset vectors.
func (g *Generator) Offsets() Seed { return g.offsets }

// Sample3 returns a turbulence vector in [-1, 1]^3 at time t. Each axis reads
// a different region of the noise plane so the components are independent.
func (g *Generator) Sample3(t, scale float64, octaves int) geom.Vec3 {
	o := g.offsets.OffsetA
	return geom.Vec3{
		X: g.fbm(t, scale, octaves, o.X, o.Y),
		Y: g.fbm(t, scale, octaves, o.Y, o.Z),
		Z: g.fbm(t, scale, octaves, o.Z, o.X),
	}
}

// Sample1 returns a scalar in [-1, 1] at time t from the magnitude stream.
func (g *Generator) Sample1(t, scale float64, octaves int) float64 {
	o := g.offsets.OffsetB
	return g.fbm(t, scale, octaves, o.X, o.Y)
}

// fbm sums octaves of the [0,1] base noise, each remapped to [-1,1], with
// amplitude halving and frequency doubling per octave.
func (g *Generator) fbm(t, scale float64, octaves int, u, v float64) float64 {
	if octaves < 1 {
		octaves = 1
	}

	total := 0.0
	amplitude := 1.0
	frequency := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		// Explicit conversions round each product and keep the sum
		// reproducible on targets that fuse multiply-add.
		x := float64(float64(t*scale)*frequency) + u
		y := v + float64(float64(i)*octaveShift)
		raw := g.base.Eval2(x, y)
		total += float64((raw*2 - 1) * amplitude)
		maxVal += amplitude
		amplitude *= 0.5
		frequency *= 2
	}

	return geom.Clamp(total/maxVal, -1, 1)
}
