// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package ledger records runs, phases and step attempts in SQLite so past
// recordings can be inspected with `tourcast history`.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/tourcast/internal/executor"
	"github.com/ManuGH/tourcast/internal/log"
	"github.com/ManuGH/tourcast/internal/persistence/sqlite"
)

var migrations = []string{
	`
	CREATE TABLE runs (
		id TEXT PRIMARY KEY,
		spec_path TEXT NOT NULL,
		title TEXT NOT NULL,
		mode TEXT NOT NULL,
		started_at_ms INTEGER NOT NULL,
		finished_at_ms INTEGER,
		result TEXT,
		output_path TEXT,
		duration_s REAL,
		error TEXT
	);
	CREATE INDEX idx_runs_started ON runs(started_at_ms);

	CREATE TABLE attempts (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		step_id TEXT NOT NULL,
		attempt INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		error TEXT,
		started_at_ms INTEGER NOT NULL,
		duration_s REAL NOT NULL,
		PRIMARY KEY (run_id, step_id, attempt)
	);
	`,
	`
	CREATE TABLE phases (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		phase TEXT NOT NULL,
		duration_s REAL NOT NULL,
		error TEXT,
		PRIMARY KEY (run_id, phase)
	);
	`,
}

// Run results.
const (
	ResultRunning = "running"
	ResultSuccess = "success"
	ResultFailed  = "failed"
	ResultDryRun  = "dry_run"
)

// Run is one row of the runs table.
type Run struct {
	ID         string
	SpecPath   string
	Title      string
	Mode       string
	StartedAt  time.Time
	FinishedAt time.Time
	Result     string
	OutputPath string
	Duration   time.Duration
	Error      string
}

// Attempt is one row of the attempts table.
type Attempt struct {
	StepID    string
	Attempt   int
	Outcome   string
	Error     string
	StartedAt time.Time
	Duration  time.Duration
}

// Ledger is safe for concurrent use.
type Ledger struct {
	db *sql.DB
}

var _ executor.Observer = (*Ledger)(nil)

// Open opens or creates the ledger at path and migrates its schema.
func Open(ctx context.Context, path string) (*Ledger, error) {
	db, err := sqlite.Open(ctx, path, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	if err := sqlite.Migrate(ctx, db, migrations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger: migration failed: %w", err)
	}
	return &Ledger{db: db}, nil
}

func (l *Ledger) Close() error { return l.db.Close() }

// Verify runs an integrity check on the ledger file.
func (l *Ledger) Verify(ctx context.Context, full bool) ([]string, error) {
	return sqlite.Check(ctx, l.db, full)
}

func millis(t time.Time) int64 { return t.UnixMilli() }

func errText(err error) sql.NullString {
	if err == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: err.Error(), Valid: true}
}

// StartRun inserts a run in the running state.
func (l *Ledger) StartRun(ctx context.Context, r Run) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (id, spec_path, title, mode, started_at_ms, result) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.SpecPath, r.Title, r.Mode, millis(r.StartedAt), ResultRunning)
	return err
}

// FinishRun records the final state of a run.
func (l *Ledger) FinishRun(ctx context.Context, id, result, outputPath string, duration time.Duration, finishedAt time.Time, runErr error) error {
	res, err := l.db.ExecContext(ctx, `
	UPDATE runs SET finished_at_ms = ?, result = ?, output_path = ?, duration_s = ?, error = ?
	WHERE id = ?`,
		millis(finishedAt), result, outputPath, duration.Seconds(), errText(runErr), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("ledger: run %q not found", id)
	}
	return nil
}

// RecordPhase stores how long a pipeline phase took.
func (l *Ledger) RecordPhase(ctx context.Context, runID, phase string, d time.Duration, phaseErr error) error {
	_, err := l.db.ExecContext(ctx, `
	INSERT INTO phases (run_id, phase, duration_s, error) VALUES (?, ?, ?, ?)
	ON CONFLICT(run_id, phase) DO UPDATE SET duration_s = excluded.duration_s, error = excluded.error`,
		runID, phase, d.Seconds(), errText(phaseErr))
	return err
}

// RecordAttempt stores one step attempt.
func (l *Ledger) RecordAttempt(ctx context.Context, runID string, ev executor.AttemptEvent) error {
	_, err := l.db.ExecContext(ctx, `
	INSERT INTO attempts (run_id, step_id, attempt, outcome, error, started_at_ms, duration_s)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(run_id, step_id, attempt) DO UPDATE SET
		outcome = excluded.outcome, error = excluded.error, duration_s = excluded.duration_s`,
		runID, ev.StepID, ev.Attempt, ev.Outcome, errText(ev.Err), millis(ev.Started), ev.Duration.Seconds())
	return err
}

// ObserveAttempt implements executor.Observer. The run id comes from ctx.
// Ledger writes never fail a recording; errors are logged.
func (l *Ledger) ObserveAttempt(ctx context.Context, ev executor.AttemptEvent) {
	runID := log.RunIDFromContext(ctx)
	if runID == "" {
		return
	}
	if err := l.RecordAttempt(context.WithoutCancel(ctx), runID, ev); err != nil {
		logger := log.WithComponentFromContext(ctx, "ledger")
		logger.Warn().Err(err).Str(log.FieldStepID, ev.StepID).Int(log.FieldAttempt, ev.Attempt).Msg("record attempt")
	}
}

// Runs lists the most recent runs first.
func (l *Ledger) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx, `
	SELECT id, spec_path, title, mode, started_at_ms, finished_at_ms, result, output_path, duration_s, error
	FROM runs ORDER BY started_at_ms DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Run
	for rows.Next() {
		var (
			r        Run
			started  int64
			finished sql.NullInt64
			result   sql.NullString
			output   sql.NullString
			duration sql.NullFloat64
			errMsg   sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.SpecPath, &r.Title, &r.Mode, &started, &finished, &result, &output, &duration, &errMsg); err != nil {
			return nil, err
		}
		r.StartedAt = time.UnixMilli(started)
		if finished.Valid {
			r.FinishedAt = time.UnixMilli(finished.Int64)
		}
		r.Result, r.OutputPath, r.Error = result.String, output.String, errMsg.String
		r.Duration = time.Duration(duration.Float64 * float64(time.Second))
		out = append(out, r)
	}
	return out, rows.Err()
}

// ErrRunNotFound is returned by Attempts for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

// Attempts lists a run's attempts in step order of first appearance.
func (l *Ledger) Attempts(ctx context.Context, runID string) ([]Attempt, error) {
	var exists int
	err := l.db.QueryRowContext(ctx, `SELECT 1 FROM runs WHERE id = ?`, runID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := l.db.QueryContext(ctx, `
	SELECT step_id, attempt, outcome, error, started_at_ms, duration_s
	FROM attempts WHERE run_id = ? ORDER BY started_at_ms, step_id, attempt`, runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Attempt
	for rows.Next() {
		var (
			a       Attempt
			errMsg  sql.NullString
			started int64
			secs    float64
		)
		if err := rows.Scan(&a.StepID, &a.Attempt, &a.Outcome, &errMsg, &started, &secs); err != nil {
			return nil, err
		}
		a.Error = errMsg.String
		a.StartedAt = time.UnixMilli(started)
		a.Duration = time.Duration(secs * float64(time.Second))
		out = append(out, a)
	}
	return out, rows.Err()
}
