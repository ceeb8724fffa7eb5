package scene

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/windfield/internal/geom"
	"github.com/talgya/windfield/internal/physics"
)

type triggerLog struct {
	entered, exited []physics.BodyID
}

func (l *triggerLog) OnEnter(b physics.Body) { l.entered = append(l.entered, b.ID()) }
func (l *triggerLog) OnExit(b physics.Body)  { l.exited = append(l.exited, b.ID()) }

func TestGeometry(t *testing.T) {
	var g Geometry
	box := Box{Label: "b", Bounds: geom.Bounds{Center: geom.V(1, 0, 0), Extents: geom.V(1, 2, 3)}}
	ball := Sphere{Label: "s", Center: geom.V(0, 5, 0), Radius: 2}

	t.Run("Box", func(t *testing.T) {
		assert.True(t, g.Contains(box, geom.V(2, 2, 3)))
		assert.False(t, g.Contains(box, geom.V(2.1, 0, 0)))
		assert.Equal(t, geom.V(2, 0, 0), g.ClosestPoint(box, geom.V(9, 0, 0)))
		assert.Equal(t, box.Bounds, g.Bounds(&box))
	})

	t.Run("Sphere", func(t *testing.T) {
		assert.True(t, g.Contains(ball, geom.V(0, 7, 0)))
		assert.False(t, g.Contains(ball, geom.V(0, 7.01, 0)))
		assert.Equal(t, geom.V(0, 3, 0), g.ClosestPoint(ball, geom.V(0, -5, 0)))
		assert.Equal(t, geom.V(0, 5.5, 0), g.ClosestPoint(&ball, geom.V(0, 5.5, 0)))
		assert.Equal(t, geom.V(2, 2, 2), g.Bounds(ball).Extents)
	})

	t.Run("Unknown", func(t *testing.T) {
		other := struct{ Box }{box}
		assert.False(t, g.Contains(other, geom.Zero))
		assert.False(t, g.ClosestPoint(other, geom.Zero).IsFinite())
	})
}

func TestSpawnAndDestroy(t *testing.T) {
	w := New()
	a := w.Spawn(BodySpec{Mass: -1})
	b := w.Spawn(BodySpec{Mass: 2, Tag: "leaf", Layer: 3})
	assert.Equal(t, 1.0, a.Mass())
	assert.Equal(t, 2, w.Len())

	require.True(t, w.Destroy(a.ID()))
	assert.False(t, w.Destroy(a.ID()))
	assert.False(t, a.Valid())
	assert.Len(t, w.AllBodies(), 1)
	assert.Equal(t, b.ID(), w.AllBodies()[0].ID())

	_, ok := w.Body(a.ID())
	assert.False(t, ok)
}

func TestForceModes(t *testing.T) {
	tests := []struct {
		mode physics.ForceMode
		want geom.Vec3
	}{
		{physics.Force, geom.V(0.5, 0, 0)},
		{physics.Acceleration, geom.V(1, 0, 0)},
		{physics.Impulse, geom.V(5, 0, 0)},
		{physics.VelocityChange, geom.V(10, 0, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			w := New()
			b := w.Spawn(BodySpec{Mass: 2})
			w.ApplyForce(b, geom.V(10, 0, 0), tt.mode)
			w.Integrate(0.1)
			assert.InDelta(t, tt.want.X, b.Velocity().X, 1e-12)
		})
	}
}

func TestKinematicIgnoresForces(t *testing.T) {
	w := New()
	w.Gravity = geom.V(0, -9.8, 0)
	k := w.Spawn(BodySpec{Kinematic: true, Velocity: geom.V(1, 0, 0)})
	w.ApplyForce(k, geom.V(100, 0, 0), physics.VelocityChange)
	w.Integrate(1)
	assert.Equal(t, geom.V(1, 0, 0), k.Velocity())
	assert.Equal(t, geom.V(1, 0, 0), k.CenterOfMass())
}

func TestTriggerNotifications(t *testing.T) {
	w := New()
	vol := Box{Label: "z", Bounds: geom.Bounds{Extents: geom.V(1, 1, 1)}}
	log := &triggerLog{}

	in := w.Spawn(BodySpec{Position: geom.Zero})
	mover := w.Spawn(BodySpec{Position: geom.V(-3, 0, 0), Velocity: geom.V(1, 0, 0)})
	w.Watch(vol, log)

	w.Integrate(0)
	assert.Equal(t, []physics.BodyID{in.ID()}, log.entered)

	for i := 0; i < 3; i++ {
		w.Integrate(1)
	}
	assert.Equal(t, []physics.BodyID{in.ID(), mover.ID()}, log.entered)
	assert.Empty(t, log.exited)

	w.Integrate(2)
	assert.Equal(t, []physics.BodyID{mover.ID()}, log.exited)

	// Destroying a member does not produce an exit.
	w.Destroy(in.ID())
	w.Integrate(0)
	assert.Len(t, log.exited, 1)
}

func TestScatter(t *testing.T) {
	w := New()
	area := geom.Bounds{Extents: geom.V(10, 2, 10)}
	bodies := w.Scatter(rand.New(rand.NewPCG(1, 2)), 40, area)
	require.Len(t, bodies, 40)

	kinematic := 0
	for _, b := range bodies {
		assert.True(t, area.Contains(b.CenterOfMass()))
		if b.IsKinematic() {
			kinematic++
		}
	}
	assert.Equal(t, 8, kinematic)
}

func TestNilBodyReadsAsDestroyed(t *testing.T) {
	var b *Body
	var pb physics.Body = b

	require.NotNil(t, pb)
	assert.False(t, physics.IsValid(pb))
	assert.Equal(t, physics.BodyID{}, pb.ID())
	assert.False(t, pb.IsKinematic())
	assert.Equal(t, geom.Zero, pb.CenterOfMass())

	w := New()
	assert.NotPanics(t, func() { w.ApplyForce(pb, geom.V(1, 0, 0), physics.Force) })
}
