package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"meirbatch/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ Journal = (*SQLiteJournal)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  INTEGER NOT NULL,
	finished_at INTEGER NOT NULL DEFAULT 0,
	status      TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS batches (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id        TEXT NOT NULL REFERENCES runs(id),
	window_start  INTEGER NOT NULL,
	window_end    INTEGER NOT NULL,
	first_ordinal INTEGER NOT NULL,
	last_ordinal  INTEGER NOT NULL,
	status        TEXT NOT NULL,
	artifact      TEXT NOT NULL DEFAULT '',
	error         TEXT NOT NULL DEFAULT '',
	recorded_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_batches_run ON batches(run_id);

CREATE TABLE IF NOT EXISTS entry_failures (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id       TEXT NOT NULL REFERENCES runs(id),
	window_start INTEGER NOT NULL,
	window_end   INTEGER NOT NULL,
	variable     TEXT NOT NULL,
	field        INTEGER NOT NULL,
	attempts     INTEGER NOT NULL,
	error        TEXT NOT NULL DEFAULT '',
	recorded_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_entry_failures_run ON entry_failures(run_id);
`

// SQLiteJournal implements Journal backed by a SQLite database.
type SQLiteJournal struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteJournal opens (or creates) a SQLite database at dbPath, creates
// the journal tables and returns a ready-to-use SQLiteJournal.
func NewSQLiteJournal(dbPath string) (*SQLiteJournal, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating journal dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	// One writer at a time; the batch job never needs more.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating journal tables: %w", err)
	}
	return &SQLiteJournal{db: db, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteJournal) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// Runs
// ---------------------------------------------------------------------------

// BeginRun inserts a run in the running state.
func (s *SQLiteJournal) BeginRun(ctx context.Context, id string, startedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, status) VALUES (?, ?, ?)`,
		id, startedAt.UnixMilli(), string(domain.RunRunning))
	if err != nil {
		return fmt.Errorf("begin run %s: %w", id, err)
	}
	return nil
}

// FinishRun sets the terminal status of a run.
func (s *SQLiteJournal) FinishRun(ctx context.Context, id string, finishedAt time.Time, status domain.RunStatus, runErr string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, status = ?, error = ? WHERE id = ?`,
		finishedAt.UnixMilli(), string(status), runErr, id)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run %s: no such run", id)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first, with their batch
// counts.
func (s *SQLiteJournal) ListRuns(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.started_at, r.finished_at, r.status, r.error,
			(SELECT COUNT(*) FROM batches b WHERE b.run_id = r.id),
			(SELECT COUNT(*) FROM batches b WHERE b.run_id = r.id AND b.status = ?)
		FROM runs r
		ORDER BY r.started_at DESC, r.rowid DESC
		LIMIT ?`, string(domain.BatchRenamed), limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.RunSummary
	for rows.Next() {
		var (
			r                 domain.RunSummary
			started, finished int64
			status            string
		)
		if err := rows.Scan(&r.ID, &started, &finished, &status, &r.Error, &r.Batches, &r.Renamed); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = fromMillis(started)
		r.FinishedAt = fromMillis(finished)
		r.Status = domain.RunStatus(status)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ---------------------------------------------------------------------------
// Batches
// ---------------------------------------------------------------------------

// RecordBatch appends the outcome of one batch.
func (s *SQLiteJournal) RecordBatch(ctx context.Context, o domain.BatchOutcome) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO batches (run_id, window_start, window_end, first_ordinal, last_ordinal,
			status, artifact, error, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.RunID, o.Window.Start.UnixMilli(), o.Window.End.UnixMilli(), o.First, o.Last,
		string(o.Status), o.Artifact, o.Error, s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("record batch %d-%d: %w", o.First, o.Last, err)
	}
	return nil
}

// ListBatches returns the batch outcomes of a run in the order recorded.
func (s *SQLiteJournal) ListBatches(ctx context.Context, runID string) ([]domain.BatchOutcome, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, window_start, window_end, first_ordinal, last_ordinal, status, artifact, error
		FROM batches WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	var out []domain.BatchOutcome
	for rows.Next() {
		var (
			o          domain.BatchOutcome
			start, end int64
			status     string
		)
		if err := rows.Scan(&o.RunID, &start, &end, &o.First, &o.Last, &status, &o.Artifact, &o.Error); err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		o.Window = domain.Window{Start: fromMillis(start), End: fromMillis(end)}
		o.Status = domain.BatchStatus(status)
		out = append(out, o)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// Entry failures
// ---------------------------------------------------------------------------

// RecordEntryFailure appends a variable whose entry exhausted its attempts.
func (s *SQLiteJournal) RecordEntryFailure(ctx context.Context, f domain.EntryFailure) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entry_failures (run_id, window_start, window_end, variable, field,
			attempts, error, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.RunID, f.Window.Start.UnixMilli(), f.Window.End.UnixMilli(), f.Variable, f.Field,
		f.Attempts, f.Error, s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("record entry failure %q: %w", f.Variable, err)
	}
	return nil
}

// ListEntryFailures returns the exhausted entries of a run in the order recorded.
func (s *SQLiteJournal) ListEntryFailures(ctx context.Context, runID string) ([]domain.EntryFailure, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, window_start, window_end, variable, field, attempts, error
		FROM entry_failures WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list entry failures: %w", err)
	}
	defer rows.Close()

	var out []domain.EntryFailure
	for rows.Next() {
		var (
			f          domain.EntryFailure
			start, end int64
		)
		if err := rows.Scan(&f.RunID, &start, &end, &f.Variable, &f.Field, &f.Attempts, &f.Error); err != nil {
			return nil, fmt.Errorf("scan entry failure: %w", err)
		}
		f.Window = domain.Window{Start: fromMillis(start), End: fromMillis(end)}
		out = append(out, f)
	}
	return out, rows.Err()
}

// fromMillis converts a stored Unix millisecond value; 0 means unset.
func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
