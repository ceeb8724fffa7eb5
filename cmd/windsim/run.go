package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/talgya/windfield/internal/api"
	"github.com/talgya/windfield/internal/config"
	"github.com/talgya/windfield/internal/engine"
	"github.com/talgya/windfield/internal/persistence"
	"github.com/talgya/windfield/internal/weather"
	"github.com/talgya/windfield/internal/wind"
)

func newRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the wind field in real time with the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runField(ctx, a.cfg)
		},
	}
}

func runField(ctx context.Context, cfg config.Config) error {
	ec := cfg.Engine()

	// ── Live weather (optional) ──────────────────────────────────────
	if client := weather.NewClient(cfg.Weather.APIKey, cfg.Weather.Location); client != nil {
		fetchCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		cond, err := client.Fetch(fetchCtx)
		cancel()
		if err != nil {
			slog.Warn("live weather unavailable, using configured wind", "error", err)
		} else {
			ec.Wind = weather.MapToWind(cond, ec.Wind, cfg.Weather.ForcePerMS)
			slog.Info("wind seeded from live weather",
				"desc", cond.Description,
				"speed", cond.WindSpeed,
				"from_deg", cond.WindDeg,
				"magnitude", ec.Wind.BaseMagnitude,
			)
		}
	} else {
		slog.Debug("weather.api_key not set, live weather disabled")
	}

	// ── Store ────────────────────────────────────────────────────────
	var (
		db      *persistence.DB
		resume  persistence.Resume
		resumed bool
	)
	if cfg.Store.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o755); err != nil {
			return fmt.Errorf("create store dir: %w", err)
		}
		var err error
		db, err = persistence.Open(cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer db.Close()
		slog.Info("store opened", "path", cfg.Store.Path)

		if cfg.Store.Resume {
			resume, resumed, err = db.LoadResume()
			if err != nil {
				return fmt.Errorf("load resume state: %w", err)
			}
			if resumed && ec.Wind.Seed == 0 {
				// Reuse the previous seed so turbulence continues seamlessly.
				if run, err := db.GetRun(resume.RunID); err == nil {
					ec.Wind.Seed = run.Seed
				}
			}
		}
	}

	// ── Field ────────────────────────────────────────────────────────
	w, f := buildField(cfg, ec)
	if resumed {
		f.Sim.Restore(resume.Time, resume.DayClock, resume.Gust)
		f.Steps, f.Days = resume.Step, resume.Days
		slog.Info("field state restored",
			"from_run", resume.RunID,
			"step", resume.Step,
			"sim_time", engine.SimTime(resume.Days, resume.DayClock),
		)
	}
	eng := newEngine(cfg, w, f)

	runID := uuid.NewString()
	var rec *recorder
	if db != nil {
		settings := map[string]any{"wind": cfg.Wind, "tracker": cfg.Tracker, "zone": cfg.Zone, "sim": cfg.Sim}
		if err := db.StartRun(runID, f.Sim.Seed(), settings); err != nil {
			return fmt.Errorf("start run: %w", err)
		}
		rec = newRecorder(db, runID, cfg.Store.SampleEvery)
	}

	// Callbacks run on the engine goroutine.
	eng.OnStep = func(n uint64, st wind.State) {
		rec.maybeSample(n, eng)
	}
	eng.OnSecond = func(n uint64) {
		snap := eng.Snapshot()
		slog.Debug("wind",
			"step", n,
			"magnitude", fmt.Sprintf("%.2f", snap.Wind.Magnitude),
			"gust", snap.Gust.Phase,
			"targets", len(snap.Targets),
		)
	}
	eng.OnDay = func(day int) {
		snap := eng.Snapshot()
		slog.Info("day complete",
			"day", humanize.Ordinal(day),
			"steps", humanize.Comma(int64(snap.Step)),
			"forces_applied", humanize.Comma(int64(snap.Totals.Applied)),
			"skipped", humanize.Comma(int64(snap.Totals.Skipped())),
		)
		rec.checkpoint(eng)
	}

	slog.Info("wind field ready",
		"run", runID,
		"seed", f.Sim.Seed(),
		"bodies", w.Len(),
		"mode", f.Tracker.Mode(),
		"sim_time", eng.Snapshot().SimTime,
	)

	// ── Run ──────────────────────────────────────────────────────────
	started := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return eng.Run(gctx) })

	if cfg.API.Addr != "" {
		srv := &api.Server{
			Eng:         eng,
			RunID:       runID,
			Addr:        cfg.API.Addr,
			AdminKey:    cfg.API.AdminKey,
			CORSOrigins: cfg.API.CORSOrigins,
			GustLimit:   api.NewRateLimiter(max(1, cfg.API.GustPerMinute), time.Minute),
			TrustProxy:  cfg.API.TrustProxy,
		}
		if db != nil {
			srv.Store = db
		}
		if srv.AdminKey == "" {
			slog.Warn("api.admin_key not set, admin POST endpoints are disabled")
		}
		g.Go(func() error { return srv.Serve(gctx) })
	}

	err := g.Wait()

	// The engine goroutine has stopped; the field is ours again.
	rec.checkpoint(eng)
	if db != nil {
		if ferr := db.FinishRun(runID, f.Steps); ferr != nil {
			slog.Error("finish run failed", "error", ferr)
		}
	}
	slog.Info("wind field stopped",
		"steps", humanize.Comma(int64(f.Steps)),
		"forces_applied", humanize.Comma(int64(f.Totals.Applied)),
		"uptime", humanize.RelTime(started, time.Now(), "", ""),
	)
	return err
}

// recorder batches samples and events into the store. A nil recorder
// records nothing.
type recorder struct {
	db        *persistence.DB
	runID     string
	every     uint64
	batch     []persistence.Sample
	lastEvent uint64
}

const sampleBatch = 32

func newRecorder(db *persistence.DB, runID string, every int) *recorder {
	return &recorder{db: db, runID: runID, every: uint64(max(1, every))}
}

func (r *recorder) maybeSample(n uint64, eng *engine.Engine) {
	if r == nil || n%r.every != 0 {
		return
	}
	r.batch = append(r.batch, persistence.SampleFromSnapshot(r.runID, eng.Snapshot()))
	if len(r.batch) >= sampleBatch {
		r.flushSamples()
	}
}

func (r *recorder) flushSamples() {
	if len(r.batch) == 0 {
		return
	}
	if err := r.db.SaveSamples(r.batch); err != nil {
		slog.Error("save samples failed", "error", err, "count", len(r.batch))
	}
	r.batch = r.batch[:0]
}

// checkpoint flushes pending samples, stores events newer than the last
// checkpoint and saves the resume state.
func (r *recorder) checkpoint(eng *engine.Engine) {
	if r == nil {
		return
	}
	r.flushSamples()

	snap := eng.Snapshot()
	var fresh []engine.Event
	for _, ev := range eng.Field.RecentEvents(0) {
		if ev.Step > r.lastEvent {
			fresh = append(fresh, ev)
		}
	}
	if len(fresh) > 0 {
		if err := r.db.SaveEvents(r.runID, fresh); err != nil {
			slog.Error("save events failed", "error", err)
		} else {
			r.lastEvent = fresh[len(fresh)-1].Step
		}
	}
	if err := r.db.SaveFieldState(r.runID, snap); err != nil {
		slog.Error("save field state failed", "error", err)
	}
}

func countEvents(events []engine.Event, category string) int {
	n := 0
	for _, ev := range events {
		if ev.Category == category {
			n++
		}
	}
	return n
}
