package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/windfield/internal/config"
	"github.com/talgya/windfield/internal/persistence"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	require.NoError(t, root.Execute())
	return out.String()
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "windfield.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const traceYAML = `
sim:
  bodies: 20
wind:
  turbulence: {enabled: true}
  gust: {enabled: true, frequency: 2}
`

func TestVersion(t *testing.T) {
	t.Chdir(t.TempDir())
	assert.Equal(t, version+"\n", execute(t, "version"))
}

func TestTraceIsDeterministic(t *testing.T) {
	path := writeConfig(t, traceYAML)

	first := execute(t, "-c", path, "trace", "--steps", "200", "--every", "50", "--seed", "9")
	second := execute(t, "-c", path, "trace", "--steps", "200", "--every", "50", "--seed", "9")
	assert.Equal(t, first, second)

	lines := strings.Split(strings.TrimSpace(first), "\n")
	// Header line, column line, four samples, summary.
	require.Len(t, lines, 7)
	assert.True(t, strings.HasPrefix(lines[0], "seed 9, 20 bodies, mode dynamic"), lines[0])
	assert.True(t, strings.HasPrefix(lines[2], "50 "), lines[2])
	assert.True(t, strings.HasPrefix(lines[6], "200 steps"), lines[6])

	other := execute(t, "-c", path, "trace", "--steps", "200", "--every", "50", "--seed", "10")
	assert.NotEqual(t, first, other)
}

func TestBadConfigFails(t *testing.T) {
	root := newRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"-c", filepath.Join(t.TempDir(), "missing.yaml"), "trace"})
	assert.ErrorContains(t, root.Execute(), "load config")
}

func TestRunFieldRecordsAndResumes(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Sim.Bodies = 10
	cfg.Sim.Pace = time.Millisecond
	cfg.Store.Path = filepath.Join(t.TempDir(), "data", "wind.db")
	cfg.Store.SampleEvery = 5
	cfg.Wind.Seed = 3

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	require.NoError(t, runField(ctx, cfg))

	db, err := persistence.Open(cfg.Store.Path)
	require.NoError(t, err)
	r, ok, err := db.LoadResume()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Positive(t, r.Step)

	samples, err := db.RecentSamples(r.RunID, 1000)
	require.NoError(t, err)
	assert.NotEmpty(t, samples)
	for _, s := range samples {
		assert.Zero(t, s.Step%5, "sampled every 5 steps")
	}

	run, err := db.GetRun(r.RunID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), run.Seed)
	assert.Equal(t, r.Step, run.Steps)
	require.NoError(t, db.Close())

	// A second run picks up where the first stopped.
	ctx2, cancel2 := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel2()
	require.NoError(t, runField(ctx2, cfg))

	db, err = persistence.Open(cfg.Store.Path)
	require.NoError(t, err)
	defer db.Close()
	r2, ok, err := db.LoadResume()
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEqual(t, r.RunID, r2.RunID)
	assert.Greater(t, r2.Step, r.Step)
	assert.Greater(t, r2.Time, r.Time)
}
