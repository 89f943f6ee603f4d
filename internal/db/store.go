package db

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/behaviour.report/internal/results"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Run is one processing of one experiment.
type Run struct {
	RunID      string     `json:"run_id"`
	Experiment string     `json:"experiment"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Status     string     `json:"status"`
	Outcome    string     `json:"outcome"`
}

// StartRun records a new running run for experiment and returns its id.
func (db *DB) StartRun(ctx context.Context, experiment string) (string, error) {
	id := uuid.NewString()
	_, err := db.ExecContext(ctx,
		`INSERT INTO analysis_runs (run_id, experiment, started_at, status) VALUES (?, ?, ?, ?)`,
		id, experiment, db.clock.Now().UTC(), StatusRunning)
	if err != nil {
		return "", fmt.Errorf("failed to start run for %s: %w", experiment, err)
	}
	return id, nil
}

// FinishRun closes a run with its final status and outcome text.
func (db *DB) FinishRun(ctx context.Context, runID, status, outcomeText string) error {
	res, err := db.ExecContext(ctx,
		`UPDATE analysis_runs SET finished_at = ?, status = ?, outcome = ? WHERE run_id = ?`,
		db.clock.Now().UTC(), status, outcomeText, runID)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", runID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

// InsertBouts stores the bout rows of a run in one transaction.
func (db *DB) InsertBouts(ctx context.Context, runID string, rows []*results.BoutRow) error {
	return db.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO bouts (run_id, individual, measure, start_frame, stop_frame, duration) VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range rows {
			if _, err := stmt.ExecContext(ctx, runID, r.Individual, r.Measure, r.Start, r.Stop, r.Duration); err != nil {
				return fmt.Errorf("failed to insert bout %s/%s %d-%d: %w", r.Individual, r.Measure, r.Start, r.Stop, err)
			}
		}
		return nil
	})
}

// InsertSummary stores summary rows of a run in one transaction. NaN
// values are stored as NULL.
func (db *DB) InsertSummary(ctx context.Context, runID string, rows []*results.SummaryRow) error {
	return db.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO summaries (run_id, individual, measure, bin_sec, bin, custom, stat, value) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range rows {
			v := sql.NullFloat64{Float64: r.Value, Valid: !math.IsNaN(r.Value)}
			if _, err := stmt.ExecContext(ctx, runID, r.Individual, r.Measure, r.BinSec, r.Bin, r.Custom, r.Stat, v); err != nil {
				return fmt.Errorf("failed to insert summary %s/%s %s: %w", r.Individual, r.Measure, r.Stat, err)
			}
		}
		return nil
	})
}

func (db *DB) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// ListRuns returns the most recent runs, newest first. An empty
// experiment lists runs of every experiment.
func (db *DB) ListRuns(ctx context.Context, experiment string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.QueryContext(ctx,
		`SELECT run_id, experiment, started_at, finished_at, status, outcome
		   FROM analysis_runs
		  WHERE ? = '' OR experiment = ?
		  ORDER BY started_at DESC, run_id
		  LIMIT ?`, experiment, experiment, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r        Run
			finished sql.NullTime
		)
		if err := rows.Scan(&r.RunID, &r.Experiment, &r.StartedAt, &finished, &r.Status, &r.Outcome); err != nil {
			return nil, err
		}
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// BoutsForRun returns the bouts of a run ordered by individual, measure
// and start frame.
func (db *DB) BoutsForRun(ctx context.Context, runID string) ([]*results.BoutRow, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT individual, measure, start_frame, stop_frame, duration
		   FROM bouts WHERE run_id = ?
		  ORDER BY individual, measure, start_frame`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*results.BoutRow
	for rows.Next() {
		var b results.BoutRow
		if err := rows.Scan(&b.Individual, &b.Measure, &b.Start, &b.Stop, &b.Duration); err != nil {
			return nil, err
		}
		out = append(out, &b)
	}
	return out, rows.Err()
}

// SummaryForRun returns the summary rows of a run. NULL values are read
// back as NaN.
func (db *DB) SummaryForRun(ctx context.Context, runID string) ([]*results.SummaryRow, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT individual, measure, bin_sec, bin, custom, stat, value
		   FROM summaries WHERE run_id = ?
		  ORDER BY custom, bin_sec, bin, individual, measure, rowid`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*results.SummaryRow
	for rows.Next() {
		var (
			s results.SummaryRow
			v sql.NullFloat64
		)
		if err := rows.Scan(&s.Individual, &s.Measure, &s.BinSec, &s.Bin, &s.Custom, &s.Stat, &v); err != nil {
			return nil, err
		}
		s.Value = math.NaN()
		if v.Valid {
			s.Value = v.Float64
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}
