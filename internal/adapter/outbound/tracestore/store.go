// Package tracestore persists finished execution traces to SQLite so runs can
// be listed and re-rendered after the process exits.
package tracestore

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/i2y/mcptrace/internal/exectrace"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

// timeLayout is fixed-width so that stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrRunNotFound is returned by LoadRun for unknown run ids.
var ErrRunNotFound = errors.New("run not found")

// RunSummary is one row of ListRuns.
type RunSummary struct {
	RunID     string    `json:"runId"`
	Task      string    `json:"task"`
	Status    string    `json:"status"`
	StartedAt time.Time `json:"startedAt"`
	Steps     int       `json:"steps"`
}

// Store is a SQLite-backed trace sink.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the store at dsn.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("tracestore: open: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("tracestore: set WAL mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("tracestore: create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Export implements usecase.TraceSink. Exporting the same run id again
// replaces the stored trace.
func (s *Store) Export(ctx context.Context, runID string, steps []exectrace.Step) error {
	if len(steps) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("tracestore: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM steps WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("tracestore: clear steps: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs (run_id, task, status, started_at, step_count) VALUES (?, ?, ?, ?, ?)`,
		runID, runTask(steps), runStatus(steps), steps[0].Timestamp.UTC().Format(timeLayout), len(steps),
	); err != nil {
		return fmt.Errorf("tracestore: insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO steps (run_id, step_id, kind, time, actor, target, content, duration_ms, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("tracestore: prepare: %w", err)
	}
	defer stmt.Close()

	for _, step := range steps {
		var meta sql.NullString
		if step.Metadata != nil {
			raw, err := json.Marshal(step.Metadata)
			if err != nil {
				return fmt.Errorf("tracestore: marshal metadata of step %d: %w", step.ID, err)
			}
			meta = sql.NullString{String: string(raw), Valid: true}
		}
		var duration sql.NullInt64
		if step.DurationMS != nil {
			duration = sql.NullInt64{Int64: *step.DurationMS, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, runID, step.ID, string(step.Kind),
			step.Timestamp.UTC().Format(timeLayout), step.Actor, step.Target, step.Content, duration, meta,
		); err != nil {
			return fmt.Errorf("tracestore: insert step %d: %w", step.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("tracestore: commit: %w", err)
	}
	return nil
}

// ListRuns returns stored runs, most recent first. limit <= 0 means no limit.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	query := `SELECT run_id, task, status, started_at, step_count FROM runs ORDER BY started_at DESC, run_id`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("tracestore: list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		var started string
		if err := rows.Scan(&r.RunID, &r.Task, &r.Status, &started, &r.Steps); err != nil {
			return nil, fmt.Errorf("tracestore: scan run: %w", err)
		}
		if r.StartedAt, err = time.Parse(timeLayout, started); err != nil {
			return nil, fmt.Errorf("tracestore: parse start time of %s: %w", r.RunID, err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// LoadRun returns the steps of a stored run in issuance order.
func (s *Store) LoadRun(ctx context.Context, runID string) ([]exectrace.Step, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM runs WHERE run_id = ?`, runID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("tracestore: lookup run: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT step_id, kind, time, actor, target, content, duration_ms, metadata
		 FROM steps WHERE run_id = ? ORDER BY step_id ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("tracestore: load run: %w", err)
	}
	defer rows.Close()

	var steps []exectrace.Step
	for rows.Next() {
		var (
			step     exectrace.Step
			kind     string
			ts       string
			duration sql.NullInt64
			meta     sql.NullString
		)
		if err := rows.Scan(&step.ID, &kind, &ts, &step.Actor, &step.Target, &step.Content, &duration, &meta); err != nil {
			return nil, fmt.Errorf("tracestore: scan step: %w", err)
		}
		step.Kind = exectrace.Kind(kind)
		if step.Timestamp, err = time.Parse(timeLayout, ts); err != nil {
			return nil, fmt.Errorf("tracestore: parse time of step %d: %w", step.ID, err)
		}
		if duration.Valid {
			ms := duration.Int64
			step.DurationMS = &ms
		}
		if meta.Valid {
			if err := json.Unmarshal([]byte(meta.String), &step.Metadata); err != nil {
				return nil, fmt.Errorf("tracestore: decode metadata of step %d: %w", step.ID, err)
			}
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

func runTask(steps []exectrace.Step) string {
	if steps[0].Kind == exectrace.KindRunStart {
		return steps[0].Content
	}
	return ""
}

// runStatus reads the final status from the run-end step. A run without one
// is reported as incomplete.
func runStatus(steps []exectrace.Step) string {
	last := steps[len(steps)-1]
	if last.Kind != exectrace.KindRunEnd {
		return "incomplete"
	}
	if status, ok := last.Metadata["status"].(string); ok {
		return status
	}
	return "completed"
}
