// Package recorder persists per-frame observations to SQLite for offline
// range and bearing calibration. Each process run gets its own run row;
// each frame stores the raw measurements next to the estimates sent.
package recorder

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/teslashibe/go-targetlink/internal/log"
	"github.com/teslashibe/go-targetlink/pkg/events"
	"github.com/teslashibe/go-targetlink/pkg/geometry"
)

// ErrClosed is returned when recording after Close.
var ErrClosed = errors.New("recorder: closed")

const schema = `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		source TEXT,
		focal_length DOUBLE,
		center_col DOUBLE,
		center_row DOUBLE,
		distance_constant DOUBLE,
		started_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		ended_at TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS frames (
		frame_id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		seq BIGINT,
		captured_at_ns BIGINT,
		mode TEXT,
		sent INTEGER,
		target_count INTEGER,
		recorded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(run_id) REFERENCES runs(run_id)
	);
	CREATE TABLE IF NOT EXISTS targets (
		frame_id INTEGER NOT NULL,
		idx INTEGER NOT NULL,
		cx DOUBLE,
		cy DOUBLE,
		width DOUBLE,
		height DOUBLE,
		ratio DOUBLE,
		x DOUBLE,
		y DOUBLE,
		z DOUBLE,
		theta DOUBLE,
		PRIMARY KEY(frame_id, idx),
		FOREIGN KEY(frame_id) REFERENCES frames(frame_id)
	);
	CREATE INDEX IF NOT EXISTS frames_run ON frames(run_id, seq);
`

// RunInfo describes the setup a run was recorded with.
type RunInfo struct {
	Source     string
	Intrinsics geometry.Intrinsics
}

// Recorder writes observations for one run.
type Recorder struct {
	db    *sql.DB
	runID string
	log   *slog.Logger

	mu     sync.Mutex // guards closed
	closed bool

	frames  atomic.Uint64
	targets atomic.Uint64
	failed  atomic.Uint64
}

// Open opens (or creates) the database at path and starts a new run.
func Open(path string, info RunInfo) (*Recorder, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One writer; also keeps ":memory:" databases on a single connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	r := &Recorder{db: db, runID: uuid.NewString(), log: log.Component("recorder")}
	in := info.Intrinsics
	_, err = db.Exec(
		"INSERT INTO runs (run_id, source, focal_length, center_col, center_row, distance_constant) VALUES (?, ?, ?, ?, ?, ?)",
		r.runID, info.Source, in.FocalLengthPixels, in.CenterCol, in.CenterRow, in.DistanceConstant,
	)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("start run: %w", err)
	}
	r.log.Info("recording", "path", path, "run", r.runID)
	return r, nil
}

// RunID returns the current run's ID.
func (r *Recorder) RunID() string {
	return r.runID
}

// Subscribe records every frame event published on bus.
func (r *Recorder) Subscribe(bus *events.Bus) error {
	return bus.OnFrame(func(ev events.FrameEvent) {
		if err := r.Record(ev); err != nil && !errors.Is(err, ErrClosed) {
			r.failed.Add(1)
			r.log.Warn("record frame failed", "seq", ev.Seq, "error", err)
		}
	})
}

// Record stores one frame. Measurement i is paired with estimate i.
func (r *Recorder) Record(ev events.FrameEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}

	var capturedAt int64
	var infos []geometry.CameraTargetInfo
	if ev.Update != nil {
		capturedAt = ev.Update.CapturedAt
		infos = ev.Update.Targets()
	}
	n := min(len(ev.Measurements), len(infos))

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		"INSERT INTO frames (run_id, seq, captured_at_ns, mode, sent, target_count) VALUES (?, ?, ?, ?, ?, ?)",
		r.runID, int64(ev.Seq), capturedAt, ev.Mode, ev.Sent, len(infos),
	)
	if err != nil {
		return fmt.Errorf("insert frame: %w", err)
	}
	frameID, err := res.LastInsertId()
	if err != nil {
		return err
	}

	for i := 0; i < n; i++ {
		m, t := ev.Measurements[i], infos[i]
		_, err := tx.Exec(
			"INSERT INTO targets (frame_id, idx, cx, cy, width, height, ratio, x, y, z, theta) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
			frameID, i, m.CentroidX, m.CentroidY, m.Width, m.Height, m.LeftToRightRatio, t.X, t.Y, t.Z, t.Theta,
		)
		if err != nil {
			return fmt.Errorf("insert target %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	r.frames.Add(1)
	r.targets.Add(uint64(n))
	return nil
}

// Observation is one recorded target.
type Observation struct {
	Seq         uint64
	Index       int
	Measurement geometry.RawMeasurement
	Estimate    geometry.CameraTargetInfo
}

// Observations returns every target recorded in run, ordered by frame
// sequence number whatever order the frames were written in.
// Values SQLite could not store (NaN) come back as NaN.
func (r *Recorder) Observations(runID string) ([]Observation, error) {
	rows, err := r.db.Query(`
		SELECT f.seq, t.idx, t.cx, t.cy, t.width, t.height, t.ratio, t.x, t.y, t.z, t.theta
		FROM targets t JOIN frames f ON f.frame_id = t.frame_id
		WHERE f.run_id = ?
		ORDER BY f.seq, f.frame_id, t.idx`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Observation
	for rows.Next() {
		var (
			seq int64
			idx int
			v   [9]sql.NullFloat64
		)
		if err := rows.Scan(&seq, &idx, &v[0], &v[1], &v[2], &v[3], &v[4], &v[5], &v[6], &v[7], &v[8]); err != nil {
			return nil, err
		}
		f := func(i int) float64 {
			if !v[i].Valid {
				return math.NaN()
			}
			return v[i].Float64
		}
		out = append(out, Observation{
			Seq:   uint64(seq),
			Index: idx,
			Measurement: geometry.RawMeasurement{
				CentroidX: f(0), CentroidY: f(1), Width: f(2), Height: f(3), LeftToRightRatio: f(4),
			},
			Estimate: geometry.CameraTargetInfo{X: f(5), Y: f(6), Z: f(7), Theta: f(8)},
		})
	}
	return out, rows.Err()
}

// FrameCount returns the number of frames recorded in run.
func (r *Recorder) FrameCount(runID string) (int, error) {
	var n int
	err := r.db.QueryRow("SELECT COUNT(*) FROM frames WHERE run_id = ?", runID).Scan(&n)
	return n, err
}

// Run is a recorded run.
type Run struct {
	ID        string
	Source    string
	StartedAt time.Time
	Ended     bool
}

// Runs lists every run in the database, newest first.
func (r *Recorder) Runs() ([]Run, error) {
	rows, err := r.db.Query("SELECT run_id, source, started_at, ended_at IS NOT NULL FROM runs ORDER BY started_at DESC, rowid DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run     Run
			started any
		)
		if err := rows.Scan(&run.ID, &run.Source, &started, &run.Ended); err != nil {
			return nil, err
		}
		switch v := started.(type) {
		case time.Time:
			run.StartedAt = v
		case string:
			run.StartedAt, _ = time.Parse(time.DateTime, v)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Stats reports recorder activity for this run.
type Stats struct {
	RunID   string `json:"run_id"`
	Frames  uint64 `json:"frames"`
	Targets uint64 `json:"targets"`
	Errors  uint64 `json:"errors"`
}

// Stats returns counters for this run.
func (r *Recorder) Stats() Stats {
	return Stats{
		RunID:   r.runID,
		Frames:  r.frames.Load(),
		Targets: r.targets.Load(),
		Errors:  r.failed.Load(),
	}
}

// Close ends the run and closes the database.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	_, err := r.db.Exec("UPDATE runs SET ended_at = CURRENT_TIMESTAMP WHERE run_id = ?", r.runID)
	return errors.Join(err, r.db.Close())
}
