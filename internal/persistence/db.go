// Package persistence provides SQLite-based storage for wind runs: a log of
// sampled wind states and events per run, plus metadata for resuming.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/windfield/internal/engine"
	"github.com/talgya/windfield/internal/gust"
)

// DB wraps a SQLite connection.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		seed INTEGER NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		steps INTEGER NOT NULL DEFAULT 0,
		config_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS wind_samples (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		step INTEGER NOT NULL,
		t REAL NOT NULL,
		day_clock REAL NOT NULL,
		dir_x REAL NOT NULL,
		dir_y REAL NOT NULL,
		dir_z REAL NOT NULL,
		magnitude REAL NOT NULL,
		gust_phase TEXT NOT NULL,
		targets INTEGER NOT NULL,
		applied INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		step INTEGER NOT NULL,
		t REAL NOT NULL,
		category TEXT NOT NULL,
		description TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_samples_run_step ON wind_samples(run_id, step);
	CREATE INDEX IF NOT EXISTS idx_events_run ON events(run_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// Run is one simulation session.
type Run struct {
	ID         string         `db:"id" json:"id"`
	Seed       int64          `db:"seed" json:"seed"`
	StartedAt  string         `db:"started_at" json:"started_at"`
	FinishedAt sql.NullString `db:"finished_at" json:"-"`
	Steps      uint64         `db:"steps" json:"steps"`
	ConfigJSON string         `db:"config_json" json:"-"`
}

// StartRun records a new run. cfg is stored as JSON for later inspection.
func (db *DB) StartRun(id string, seed int64, cfg any) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode run config: %w", err)
	}
	_, err = db.conn.Exec(
		"INSERT INTO runs (id, seed, started_at, config_json) VALUES (?, ?, ?, ?)",
		id, seed, time.Now().UTC().Format(time.RFC3339), string(raw),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", id, err)
	}
	return nil
}

// FinishRun stamps the end of a run with its step count.
func (db *DB) FinishRun(id string, steps uint64) error {
	_, err := db.conn.Exec(
		"UPDATE runs SET finished_at = ?, steps = ? WHERE id = ?",
		time.Now().UTC().Format(time.RFC3339), steps, id,
	)
	return err
}

// GetRun loads a run by ID.
func (db *DB) GetRun(id string) (Run, error) {
	var r Run
	err := db.conn.Get(&r, "SELECT id, seed, started_at, finished_at, steps, config_json FROM runs WHERE id = ?", id)
	return r, err
}

// Sample is one logged wind state.
type Sample struct {
	ID        int64   `db:"id" json:"-"`
	RunID     string  `db:"run_id" json:"run_id"`
	Step      uint64  `db:"step" json:"step"`
	Time      float64 `db:"t" json:"time"`
	DayClock  float64 `db:"day_clock" json:"day_clock"`
	DirX      float64 `db:"dir_x" json:"dir_x"`
	DirY      float64 `db:"dir_y" json:"dir_y"`
	DirZ      float64 `db:"dir_z" json:"dir_z"`
	Magnitude float64 `db:"magnitude" json:"magnitude"`
	GustPhase string  `db:"gust_phase" json:"gust_phase"`
	Targets   int     `db:"targets" json:"targets"`
	Applied   int     `db:"applied" json:"applied"`
}

// SampleFromSnapshot flattens a snapshot into a sample row.
func SampleFromSnapshot(runID string, s engine.Snapshot) Sample {
	return Sample{
		RunID:     runID,
		Step:      s.Step,
		Time:      s.Wind.Time,
		DayClock:  s.Wind.DayClock,
		DirX:      s.Wind.Direction.X,
		DirY:      s.Wind.Direction.Y,
		DirZ:      s.Wind.Direction.Z,
		Magnitude: s.Wind.Magnitude,
		GustPhase: s.Gust.Phase.String(),
		Targets:   len(s.Targets),
		Applied:   s.Last.Applied,
	}
}

const insertSample = `INSERT INTO wind_samples
	(run_id, step, t, day_clock, dir_x, dir_y, dir_z, magnitude, gust_phase, targets, applied)
	VALUES (:run_id, :step, :t, :day_clock, :dir_x, :dir_y, :dir_z, :magnitude, :gust_phase, :targets, :applied)`

// SaveSample appends one sample.
func (db *DB) SaveSample(s Sample) error {
	if _, err := db.conn.NamedExec(insertSample, s); err != nil {
		return fmt.Errorf("insert sample %d: %w", s.Step, err)
	}
	return nil
}

// SaveSamples appends samples in one transaction.
func (db *DB) SaveSamples(samples []Sample) error {
	if len(samples) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareNamed(insertSample)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range samples {
		if _, err := stmt.Exec(s); err != nil {
			return fmt.Errorf("insert sample %d: %w", s.Step, err)
		}
	}

	return tx.Commit()
}

// RecentSamples returns up to limit of the newest samples of a run, newest
// first.
func (db *DB) RecentSamples(runID string, limit int) ([]Sample, error) {
	var samples []Sample
	err := db.conn.Select(&samples,
		`SELECT id, run_id, step, t, day_clock, dir_x, dir_y, dir_z, magnitude, gust_phase, targets, applied
		 FROM wind_samples WHERE run_id = ? ORDER BY step DESC, id DESC LIMIT ?`,
		runID, limit,
	)
	return samples, err
}

// StoredEvent is a persisted engine event.
type StoredEvent struct {
	RunID       string  `db:"run_id" json:"run_id"`
	Step        uint64  `db:"step" json:"step"`
	Time        float64 `db:"t" json:"time"`
	Category    string  `db:"category" json:"category"`
	Description string  `db:"description" json:"description"`
}

// SaveEvents appends events to the database.
func (db *DB) SaveEvents(runID string, events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range events {
		_, err := tx.Exec(
			"INSERT INTO events (run_id, step, t, category, description) VALUES (?, ?, ?, ?, ?)",
			runID, e.Step, e.Time, e.Category, e.Description,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// RecentEvents returns the most recent N events of a run, newest first.
func (db *DB) RecentEvents(runID string, limit int) ([]StoredEvent, error) {
	var events []StoredEvent
	err := db.conn.Select(&events,
		"SELECT run_id, step, t, category, description FROM events WHERE run_id = ? ORDER BY id DESC LIMIT ?",
		runID, limit,
	)
	return events, err
}

// SaveMeta stores a key-value pair.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM meta WHERE key = ?", key)
	return value, err
}

// Resume is the saved clock state of the last run.
type Resume struct {
	RunID    string
	Step     uint64
	Time     float64
	DayClock float64
	Days     int
	Gust     gust.State
}

// SaveFieldState saves the clock state needed to resume a run.
func (db *DB) SaveFieldState(runID string, s engine.Snapshot) error {
	slog.Info("saving field state", "run", runID, "step", s.Step, "time", s.Wind.Time)

	gustJSON, err := json.Marshal(s.Gust)
	if err != nil {
		return fmt.Errorf("encode gust: %w", err)
	}
	pairs := [][2]string{
		{"run_id", runID},
		{"last_step", strconv.FormatUint(s.Step, 10)},
		{"last_time", strconv.FormatFloat(s.Wind.Time, 'g', -1, 64)},
		{"day_clock", strconv.FormatFloat(s.Wind.DayClock, 'g', -1, 64)},
		{"days", strconv.Itoa(s.Days)},
		{"gust", string(gustJSON)},
	}
	for _, kv := range pairs {
		if err := db.SaveMeta(kv[0], kv[1]); err != nil {
			return fmt.Errorf("save meta %s: %w", kv[0], err)
		}
	}
	return nil
}

// LoadResume reads the state saved by SaveFieldState. ok is false when no
// state has been saved.
func (db *DB) LoadResume() (r Resume, ok bool, err error) {
	runID, err := db.GetMeta("run_id")
	if errors.Is(err, sql.ErrNoRows) {
		return Resume{}, false, nil
	}
	if err != nil {
		return Resume{}, false, fmt.Errorf("load run id: %w", err)
	}
	r.RunID = runID

	get := func(key string) string {
		if err != nil {
			return ""
		}
		var v string
		v, err = db.GetMeta(key)
		if err != nil {
			err = fmt.Errorf("load %s: %w", key, err)
		}
		return v
	}
	step, tm, clock, days, gustJSON := get("last_step"), get("last_time"), get("day_clock"), get("days"), get("gust")
	if err != nil {
		return Resume{}, false, err
	}

	if r.Step, err = strconv.ParseUint(step, 10, 64); err != nil {
		return Resume{}, false, fmt.Errorf("parse last_step: %w", err)
	}
	if r.Time, err = strconv.ParseFloat(tm, 64); err != nil {
		return Resume{}, false, fmt.Errorf("parse last_time: %w", err)
	}
	if r.DayClock, err = strconv.ParseFloat(clock, 64); err != nil {
		return Resume{}, false, fmt.Errorf("parse day_clock: %w", err)
	}
	if r.Days, err = strconv.Atoi(days); err != nil {
		return Resume{}, false, fmt.Errorf("parse days: %w", err)
	}
	if err = json.Unmarshal([]byte(gustJSON), &r.Gust); err != nil {
		return Resume{}, false, fmt.Errorf("parse gust: %w", err)
	}
	return r, true, nil
}
