package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/talgya/windfield/internal/gust"
	"github.com/talgya/windfield/internal/scene"
	"github.com/talgya/windfield/internal/wind"
)

func TestRunStepsCallbacks(t *testing.T) {
	w := scatteredWorld(5)
	f := Build(gustyConfig(), w, w, w)
	e := New(f, w)

	var steps, seconds int
	var days []int
	e.OnStep = func(uint64, wind.State) { steps++ }
	e.OnSecond = func(uint64) { seconds++ }
	e.OnDay = func(d int) { days = append(days, d) }

	e.RunSteps(510)
	assert.Equal(t, 510, steps)
	assert.Equal(t, 10, seconds)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, days)
	assert.Equal(t, uint64(510), e.Snapshot().Step)
}

func TestRunHonorsContextAndCommands(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := DefaultConfig()
	cfg.Wind.Gust.Enabled = true
	cfg.Wind.Gust.Frequency = 0
	cfg.Wind.Gust.Duration = 60
	w := scene.New()
	e := New(Build(cfg, w, w, w), w)
	e.SetSpeed(50)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	require.Eventually(t, func() bool { return e.Snapshot().Step >= 5 }, 5*time.Second, 5*time.Millisecond)

	require.NoError(t, e.Do(func(f *Field) { f.Sim.TriggerGust() }))
	require.Eventually(t, func() bool { return e.Snapshot().Gust.Phase == gust.Active }, 5*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not stop")
	}
}

func TestPausedEngineServesCommands(t *testing.T) {
	defer goleak.VerifyNone(t)

	w := scene.New()
	e := New(Build(DefaultConfig(), w, w, w), w)
	e.SetSpeed(0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	ran := make(chan struct{})
	require.NoError(t, e.Do(func(*Field) { close(ran) }))
	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("command not served while paused")
	}
	assert.Equal(t, uint64(0), e.Snapshot().Step)

	cancel()
	require.NoError(t, <-done)
}

func TestDoReportsBusy(t *testing.T) {
	e := New(Build(DefaultConfig(), scene.New(), nil, nil), nil)
	for i := 0; i < maxPending; i++ {
		require.NoError(t, e.Do(func(*Field) {}))
	}
	assert.ErrorIs(t, e.Do(func(*Field) {}), ErrBusy)
}

func TestSetSpeedClamps(t *testing.T) {
	e := New(Build(DefaultConfig(), scene.New(), nil, nil), nil)
	e.SetSpeed(-3)
	assert.Equal(t, 0.0, e.Speed())
	e.SetSpeed(4)
	assert.Equal(t, 4.0, e.Speed())
}

func TestSimTime(t *testing.T) {
	assert.Equal(t, "Day 1, 0:00", SimTime(0, 0))
	assert.Equal(t, "Day 3, 12:00", SimTime(2, 0.5))
	assert.Equal(t, "Day 1, 23:59", SimTime(0, 0.99999))
	assert.Equal(t, "1.5s", Elapsed(1.5))
	assert.Equal(t, "0s", Elapsed(-1))
}
