package engine

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/windfield/internal/geom"
	"github.com/talgya/windfield/internal/physics"
	"github.com/talgya/windfield/internal/scene"
	"github.com/talgya/windfield/internal/tracker"
)

type push struct {
	id    physics.BodyID
	force geom.Vec3
}

type pushLog struct {
	pushes []push
}

func (l *pushLog) ApplyForce(b physics.Body, f geom.Vec3, _ physics.ForceMode) {
	l.pushes = append(l.pushes, push{id: b.ID(), force: f})
}

func scatteredWorld(n int) *scene.World {
	w := scene.New()
	w.Scatter(rand.New(rand.NewPCG(7, 7)), n, geom.Bounds{Extents: geom.V(20, 2, 20)})
	return w
}

func gustyConfig() Config {
	cfg := DefaultConfig()
	cfg.Wind.Seed = 42
	cfg.Wind.Turbulence.Enabled = true
	cfg.Wind.Gust.Enabled = true
	cfg.Wind.Gust.Frequency = 0.5
	cfg.Wind.DayCycle.Enabled = true
	cfg.Wind.DayCycle.Length = 1
	return cfg
}

func TestStepAppliesOneSampleToEveryTarget(t *testing.T) {
	w := scatteredWorld(30)
	log := &pushLog{}
	f := Build(gustyConfig(), w, w, log)

	for i := 0; i < 100; i++ {
		log.pushes = log.pushes[:0]
		st, _ := f.Step(DefaultStep)
		require.NotEmpty(t, log.pushes)
		for _, p := range log.pushes {
			require.Equal(t, st.Force(), p.force, "step %d", i)
		}
		require.Equal(t, len(log.pushes), f.Last.Applied)
	}
}

func TestKinematicBodiesNeverPushed(t *testing.T) {
	w := scatteredWorld(40)
	kinematic := map[physics.BodyID]bool{}
	for _, b := range w.Bodies() {
		if b.IsKinematic() {
			kinematic[b.ID()] = true
		}
	}
	require.NotEmpty(t, kinematic)

	for _, mode := range []tracker.Mode{tracker.ModeDynamic, tracker.ModeStatic, tracker.ModeZone} {
		t.Run(mode.String(), func(t *testing.T) {
			cfg := gustyConfig()
			cfg.Tracker.Mode = mode
			cfg.Zone.Config.Filter.ExcludeKinematic = false
			cfg.Zone.Volumes = []physics.Volume{scene.Box{Label: "all", Bounds: geom.Bounds{Extents: geom.V(25, 5, 25)}}}

			log := &pushLog{}
			f := Build(cfg, w, w, log)
			w.SyncTriggers()
			for i := 0; i < 50; i++ {
				f.Step(DefaultStep)
			}
			require.NotEmpty(t, log.pushes)
			for _, p := range log.pushes {
				assert.False(t, kinematic[p.id])
			}
			assert.Positive(t, f.Totals.Kinematic+len(log.pushes))
		})
	}
}

func TestDayWrapRecordsEvent(t *testing.T) {
	w := scene.New()
	f := Build(gustyConfig(), w, w, w)

	wraps := 0
	for i := 0; i < 510; i++ {
		if _, days := f.Step(DefaultStep); days > 0 {
			wraps += days
		}
	}
	assert.Equal(t, 10, wraps)
	assert.Equal(t, 10, f.Days)

	days := 0
	for _, ev := range f.Events {
		if ev.Category == "day" {
			days++
		}
	}
	assert.Equal(t, 10, days)
}

func TestLongStepCountsEveryDay(t *testing.T) {
	tests := []struct {
		name  string
		first float64
		dt    float64
		want  int
	}{
		{"exactly one day lands on the same clock", 0.25, 1, 1},
		{"one and a half days", 0.25, 1.5, 1},
		{"crosses two boundaries", 0.75, 1.5, 2},
		{"three whole days", 0.5, 3, 3},
		{"within the day", 0.25, 0.5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := scene.New()
			f := Build(gustyConfig(), w, w, w)
			f.Step(tt.first)
			require.Zero(t, f.Days)

			_, days := f.Step(tt.dt)
			assert.Equal(t, tt.want, days)
			assert.Equal(t, tt.want, f.Days)
		})
	}
}

func TestForcedGustRecordsEvents(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Wind.Gust.Enabled = true
	cfg.Wind.Gust.Frequency = 0
	cfg.Wind.Gust.Duration = 0.1
	w := scene.New()
	f := Build(cfg, w, w, w)

	f.Sim.TriggerGust()
	for i := 0; i < 20; i++ {
		f.Step(DefaultStep)
	}

	var descs []string
	for _, ev := range f.RecentEvents(0) {
		if ev.Category == "gust" {
			descs = append(descs, ev.Description)
		}
	}
	require.Len(t, descs, 2)
	assert.True(t, strings.HasPrefix(descs[0], "gust started"))
	assert.Equal(t, "gust passed", descs[1])
}

func TestZoneModeBuild(t *testing.T) {
	w := scene.New()
	inside := w.Spawn(scene.BodySpec{Position: geom.Zero})
	w.Spawn(scene.BodySpec{Position: geom.V(50, 0, 0)})

	cfg := DefaultConfig()
	cfg.Tracker.Mode = tracker.ModeZone
	cfg.Zone.Config.Name = "courtyard"
	cfg.Zone.Volumes = []physics.Volume{scene.Sphere{Label: "s", Radius: 3}}
	f := Build(cfg, w, w, w)
	require.NotNil(t, f.Zone)

	f.Step(DefaultStep)
	w.Integrate(DefaultStep)
	f.Step(DefaultStep)

	members := f.Inside()
	require.Len(t, members, 1)
	assert.Equal(t, inside.ID(), members[0].ID())
	assert.Equal(t, 1, f.Last.Applied)

	snap := f.Snapshot()
	require.NotNil(t, snap.Zone)
	assert.Equal(t, "courtyard", snap.Zone.Name)
	assert.Equal(t, 1, snap.Zone.Members)
	assert.Equal(t, "zone", snap.Mode)
	assert.Equal(t, "zone", f.RecentEvents(1)[0].Category)
}

func TestSnapshotsOfSameSeedMatch(t *testing.T) {
	run := func() Snapshot {
		w := scatteredWorld(10)
		f := Build(gustyConfig(), w, w, w)
		for i := 0; i < 300; i++ {
			f.Step(DefaultStep)
			w.Integrate(DefaultStep)
		}
		return f.Snapshot()
	}

	a, b := run(), run()
	// Body IDs are random per scene.
	diff := cmp.Diff(a, b, cmpopts.IgnoreFields(Snapshot{}, "Targets"))
	assert.Empty(t, diff)
	assert.Len(t, a.Targets, len(b.Targets))
}

func TestRecentEventsBounds(t *testing.T) {
	f := Build(DefaultConfig(), scene.New(), nil, nil)
	for i := 0; i < maxEvents+10; i++ {
		f.record("test", "x")
	}
	assert.Len(t, f.Events, maxEvents)
	assert.Len(t, f.RecentEvents(5), 5)
	assert.Len(t, f.RecentEvents(0), maxEvents)
}
