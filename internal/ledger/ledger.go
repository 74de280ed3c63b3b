// Package ledger keeps a SQLite record of triage runs and their per-frame
// metrics so downlink decisions can be audited after the fact.
package ledger

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"particletriage/internal/pipeline"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Ledger wraps the run database.
type Ledger struct {
	*sql.DB
}

// Run is one row of the runs table.
type Run struct {
	RunID              string
	StartedAt          time.Time
	Elapsed            time.Duration
	StartFrame         int
	EndFrame           int
	Threshold          int
	DownlinkPercentage int
	Quota              int
	Attempts           int
	Partial            bool
	Failures           int
}

// Frame is one row of the frames table.
type Frame struct {
	Frame       int
	Threshold   int
	Correlation float64
	Components  int
	Clusters    int
	Density     float64
	ShiftX      float64
	ShiftY      float64
	AccelX      float64
	AccelY      float64
	Score       float64
	Transmitted bool
	Failed      bool
}

// Open opens (or creates) the ledger at path and applies pending migrations.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	l := &Ledger{db}
	if err := l.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

func (l *Ledger) migrateUp() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(l.DB, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	// m is not closed: that would close the shared connection.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// RecordReport stores a run with all of its frames and failures in one
// transaction.
func (l *Ledger) RecordReport(ctx context.Context, rep *pipeline.Report) error {
	tx, err := l.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, started_at_ns, elapsed_ms, start_frame, end_frame, threshold,
			downlink_percentage, quota, attempts, partial, failures)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rep.RunID, rep.StartedAt.UnixNano(), rep.Elapsed.Milliseconds(), rep.Start, rep.End,
		rep.Threshold, rep.DownlinkPercentage, rep.Selection.Quota, rep.Selection.Attempts,
		rep.Selection.Partial, len(rep.Failures))
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	frameStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO frames (run_id, frame, threshold, correlation, components, clusters, density,
			shift_x, shift_y, accel_x, accel_y, score, transmitted, failed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer frameStmt.Close()

	for _, f := range rep.Frames {
		var sx, sy sql.NullFloat64
		if f.Shift != nil {
			sx = sql.NullFloat64{Float64: f.Shift.DX, Valid: true}
			sy = sql.NullFloat64{Float64: f.Shift.DY, Valid: true}
		}
		var density sql.NullFloat64
		if f.HasDensity {
			density = sql.NullFloat64{Float64: f.Density, Valid: true}
		}
		if _, err := frameStmt.ExecContext(ctx, rep.RunID, f.Frame, f.Threshold, f.Correlation,
			f.Components, f.Clusters, density, sx, sy, f.Acceleration.DX, f.Acceleration.DY,
			f.Score, f.Transmitted, f.Failed); err != nil {
			return fmt.Errorf("failed to insert frame %d: %w", f.Frame, err)
		}
	}

	for _, fe := range rep.Failures {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO frame_failures (run_id, frame, stage, kind, message) VALUES (?, ?, ?, ?, ?)`,
			rep.RunID, fe.Frame, fe.Stage, string(fe.Kind), fe.Message); err != nil {
			return fmt.Errorf("failed to insert failure for frame %d: %w", fe.Frame, err)
		}
	}

	return tx.Commit()
}

// Runs lists recorded runs, newest first.
func (l *Ledger) Runs(ctx context.Context) ([]Run, error) {
	rows, err := l.QueryContext(ctx, `
		SELECT run_id, started_at_ns, elapsed_ms, start_frame, end_frame, threshold,
			downlink_percentage, quota, attempts, partial, failures
		FROM runs ORDER BY started_at_ns DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var startedNs, elapsedMs int64
		if err := rows.Scan(&r.RunID, &startedNs, &elapsedMs, &r.StartFrame, &r.EndFrame,
			&r.Threshold, &r.DownlinkPercentage, &r.Quota, &r.Attempts, &r.Partial, &r.Failures); err != nil {
			return nil, err
		}
		r.StartedAt = time.Unix(0, startedNs)
		r.Elapsed = time.Duration(elapsedMs) * time.Millisecond
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Frames returns the frame rows of one run in frame order.
func (l *Ledger) Frames(ctx context.Context, runID string) ([]Frame, error) {
	rows, err := l.QueryContext(ctx, `
		SELECT frame, threshold, correlation, components, clusters, density,
			shift_x, shift_y, accel_x, accel_y, score, transmitted, failed
		FROM frames WHERE run_id = ? ORDER BY frame`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var frames []Frame
	for rows.Next() {
		var f Frame
		var density, sx, sy sql.NullFloat64
		if err := rows.Scan(&f.Frame, &f.Threshold, &f.Correlation, &f.Components, &f.Clusters,
			&density, &sx, &sy, &f.AccelX, &f.AccelY, &f.Score, &f.Transmitted, &f.Failed); err != nil {
			return nil, err
		}
		f.Density = density.Float64
		f.ShiftX = sx.Float64
		f.ShiftY = sy.Float64
		frames = append(frames, f)
	}
	return frames, rows.Err()
}

// TransmittedFrames returns the frame numbers a run downlinked.
func (l *Ledger) TransmittedFrames(ctx context.Context, runID string) ([]int, error) {
	rows, err := l.QueryContext(ctx,
		`SELECT frame FROM frames WHERE run_id = ? AND transmitted ORDER BY frame`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var f int
		if err := rows.Scan(&f); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
