package wind

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/windfield/internal/curve"
	"github.com/talgya/windfield/internal/geom"
	"github.com/talgya/windfield/internal/gust"
)

func turbulentConfig(seed int64) Config {
	cfg := DefaultConfig()
	cfg.Seed = seed
	cfg.MinMagnitude = 2
	cfg.MaxMagnitude = 14
	cfg.DayCycle.Enabled = true
	cfg.DayCycle.Length = 30
	cfg.DayCycle.ForceOverDay = curve.New(curve.ModeSmooth,
		curve.Key{Time: 0, Value: 0.2},
		curve.Key{Time: 0.5, Value: 1.6},
		curve.Key{Time: 1, Value: 0.2},
	)
	cfg.Turbulence.Enabled = true
	cfg.Turbulence.Intensity = 1.2
	cfg.Gust.Enabled = true
	cfg.Gust.Frequency = 2
	return cfg
}

func TestStaticWindScenario(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Seed = 42
	cfg.BaseHeading = geom.Right
	cfg.BaseMagnitude = 10
	sim := New(cfg)

	for i := 0; i < 500; i++ {
		st := sim.Advance(0.02)
		require.Equal(t, geom.V(1, 0, 0), st.Direction)
		require.Equal(t, 10.0, st.Magnitude)
	}
	assert.InDelta(t, 10.0, sim.State().Time, 1e-9)
}

func TestDayCycleScenario(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Seed = 42
	cfg.DayCycle.Enabled = true
	cfg.DayCycle.Length = 120
	cfg.DayCycle.ForceOverDay = curve.Flat(1)
	cfg.DayCycle.YawOverDay = curve.Linear(0, 0, 1, 360)
	sim := New(cfg)

	sim.Advance(60)
	st := sim.State()
	assert.InDelta(t, 0.5, st.DayClock, 1e-12)
	assert.InDelta(t, -1.0, st.Direction.X, 1e-9)
	assert.InDelta(t, 0.0, st.Direction.Y, 1e-9)
	assert.InDelta(t, 0.0, st.Direction.Z, 1e-9)
	assert.Equal(t, 10.0, st.Magnitude)
}

func TestDayClockIsPeriodic(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DayCycle.Enabled = true
	cfg.DayCycle.Length = 45

	t.Run("SingleStep", func(t *testing.T) {
		sim := New(cfg)
		sim.Advance(7.3)
		start := sim.State().DayClock
		sim.Advance(45)
		assert.InDelta(t, start, sim.State().DayClock, 1e-12)
	})

	t.Run("ManySteps", func(t *testing.T) {
		sim := New(cfg)
		sim.Advance(3)
		start := sim.State().DayClock
		for i := 0; i < 2250; i++ {
			sim.Advance(0.02)
		}
		assert.InDelta(t, start, sim.State().DayClock, 1e-9)
	})

	t.Run("ZeroLengthFreezesClock", func(t *testing.T) {
		c := cfg
		c.DayCycle.Length = 0
		sim := New(c)
		sim.Advance(100)
		assert.Equal(t, 0.0, sim.State().DayClock)
	})
}

func TestInvariantsHoldForAnyStepSequence(t *testing.T) {
	cfg := turbulentConfig(99)
	sim := New(cfg)

	dts := []float64{0, 0.02, 0.5, 0, 3, 1e-6, -1, math.NaN(), math.Inf(1), 0.016, 12}
	for i := 0; i < 3000; i++ {
		st := sim.Advance(dts[i%len(dts)])

		l := st.Direction.Len()
		if l != 0 {
			require.InDelta(t, 1.0, l, 1e-9, "step %d", i)
		}
		require.True(t, st.Direction.IsFinite())
		require.GreaterOrEqual(t, st.Magnitude, cfg.MinMagnitude, "step %d", i)
		require.LessOrEqual(t, st.Magnitude, cfg.MaxMagnitude, "step %d", i)
		require.GreaterOrEqual(t, st.DayClock, 0.0)
		require.Less(t, st.DayClock, 1.0)
		require.False(t, math.IsInf(st.Time, 0))
	}
}

func TestTimeIsMonotonic(t *testing.T) {
	sim := New(turbulentConfig(3))
	prev := sim.State().Time
	for _, dt := range []float64{0.1, 0, -5, 0.2, math.NaN()} {
		st := sim.Advance(dt)
		assert.GreaterOrEqual(t, st.Time, prev)
		prev = st.Time
	}
	assert.InDelta(t, 0.3, prev, 1e-12)
}

func TestSameSeedSameRun(t *testing.T) {
	a := New(turbulentConfig(42))
	b := New(turbulentConfig(42))
	for i := 0; i < 1000; i++ {
		sa := a.Advance(0.02)
		sb := b.Advance(0.02)
		require.Equal(t, sa, sb, "step %d", i)
		require.Equal(t, a.Gust(), b.Gust())
	}
}

func TestIndependentFieldsCoexist(t *testing.T) {
	a := New(turbulentConfig(1))
	b := New(turbulentConfig(2))
	ref := New(turbulentConfig(1))

	differ := false
	for i := 0; i < 300; i++ {
		sa := a.Advance(0.05)
		sb := b.Advance(0.05)
		// Interleaving with another field must not disturb a's stream.
		require.Equal(t, ref.Advance(0.05), sa)
		if sa.Direction != sb.Direction {
			differ = true
		}
	}
	assert.True(t, differ)
}

func TestTurbulencePerturbsDirection(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Seed = 8
	cfg.Turbulence.Enabled = true
	cfg.Turbulence.Intensity = 0.8
	sim := New(cfg)

	moved := false
	for i := 0; i < 200; i++ {
		st := sim.Advance(0.1)
		if st.Direction.Dist(geom.Right) > 1e-3 {
			moved = true
		}
		// Magnitude noise only ever reduces, down to 75%.
		assert.LessOrEqual(t, st.Magnitude, 10.0)
		assert.GreaterOrEqual(t, st.Magnitude, 7.5-1e-9)
	}
	assert.True(t, moved)
}

func TestMagnitudeClamping(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BaseMagnitude = 500
	cfg.MaxMagnitude = 40
	assert.Equal(t, 40.0, New(cfg).Magnitude())

	cfg = DefaultConfig()
	cfg.BaseMagnitude = 1
	cfg.MinMagnitude = 3
	assert.Equal(t, 3.0, New(cfg).Magnitude())

	// Negative force curves are clamped to zero before the min bound applies.
	cfg = DefaultConfig()
	cfg.DayCycle.Enabled = true
	cfg.DayCycle.ForceOverDay = curve.Flat(-4)
	cfg.MinMagnitude = 0.5
	assert.Equal(t, 0.5, New(cfg).Advance(1).Magnitude)
}

func TestSanitize(t *testing.T) {
	cfg := Config{
		BaseHeading:   geom.Zero,
		BaseMagnitude: math.NaN(),
		MinMagnitude:  -3,
		MaxMagnitude:  -10,
		Turbulence:    TurbulenceConfig{Octaves: -2, Scale: -1, Intensity: math.NaN()},
		DayCycle:      DayCycleConfig{Length: math.Inf(1)},
	}.Sanitize()

	assert.Equal(t, geom.Right, cfg.BaseHeading)
	assert.Equal(t, 0.0, cfg.BaseMagnitude)
	assert.Equal(t, 0.0, cfg.MinMagnitude)
	assert.Equal(t, 0.0, cfg.MaxMagnitude)
	assert.Equal(t, 1, cfg.Turbulence.Octaves)
	assert.Equal(t, 0.0, cfg.Turbulence.Scale)
	assert.Equal(t, 0.0, cfg.Turbulence.Intensity)
	assert.Equal(t, 0.0, cfg.DayCycle.Length)

	h := DefaultConfig()
	h.BaseHeading = geom.V(0, 0, 5)
	assert.Equal(t, geom.Forward, h.Sanitize().BaseHeading)
}

func TestForcedGustScenario(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Seed = 42
	cfg.MaxMagnitude = 1000
	cfg.Gust.Enabled = true
	cfg.Gust.Frequency = 1
	cfg.Gust.Duration = 1
	cfg.Gust.Intensity = 1.5
	sim := New(cfg)
	base := cfg.BaseMagnitude

	const dt = 0.02
	sim.TriggerGust()
	first := sim.Advance(dt)
	require.Greater(t, first.Magnitude/base, 1.0)

	elapsed := dt
	for sim.Gust().Phase == gust.Active {
		sim.Advance(dt)
		elapsed += dt
		require.Less(t, elapsed, 5.0)
	}
	assert.InDelta(t, 1.0, elapsed, dt+1e-9)
	assert.Equal(t, base, sim.Magnitude())
}

func TestGustDisabledIgnoresTrigger(t *testing.T) {
	sim := New(DefaultConfig())
	sim.TriggerGust()
	assert.Equal(t, 10.0, sim.Advance(0.02).Magnitude)
	assert.Equal(t, gust.Idle, sim.Gust().Phase)
}

func TestRestoreContinuesRun(t *testing.T) {
	cfg := turbulentConfig(77)
	cfg.Gust.Enabled = false
	a := New(cfg)
	for i := 0; i < 400; i++ {
		a.Advance(0.05)
	}
	saved := a.State()

	b := New(cfg)
	b.Restore(saved.Time, saved.DayClock, a.Gust())
	assert.Equal(t, saved.Direction, b.Direction())
	assert.Equal(t, saved.Magnitude, b.Magnitude())

	for i := 0; i < 50; i++ {
		sa := a.Advance(0.05)
		sb := b.Advance(0.05)
		assert.InDelta(t, sa.Magnitude, sb.Magnitude, 1e-9)
		assert.InDelta(t, sa.DayClock, sb.DayClock, 1e-12)
	}
}

func TestZeroSeedResolved(t *testing.T) {
	sim := New(DefaultConfig())
	assert.NotZero(t, sim.Seed())
	assert.Equal(t, sim.Seed(), sim.Config().Seed)
}
