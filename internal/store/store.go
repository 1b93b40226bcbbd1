// Package store defines storage interfaces for the run journal and the
// artifact manifest, with SQLite and Parquet implementations.
package store

import (
	"context"
	"time"

	"meirbatch/internal/domain"
)

// Journal persists run, batch and entry-failure history.
type Journal interface {
	// BeginRun inserts a run in the running state.
	BeginRun(ctx context.Context, id string, startedAt time.Time) error

	// FinishRun sets the terminal status of a run. runErr is empty on success.
	FinishRun(ctx context.Context, id string, finishedAt time.Time, status domain.RunStatus, runErr string) error

	// RecordBatch appends the outcome of one batch.
	RecordBatch(ctx context.Context, o domain.BatchOutcome) error

	// RecordEntryFailure appends a variable whose entry exhausted its attempts.
	RecordEntryFailure(ctx context.Context, f domain.EntryFailure) error

	// ListRuns returns the most recent runs, newest first. limit <= 0 means all.
	ListRuns(ctx context.Context, limit int) ([]domain.RunSummary, error)

	// ListBatches returns the batch outcomes of a run in the order recorded.
	ListBatches(ctx context.Context, runID string) ([]domain.BatchOutcome, error)

	// ListEntryFailures returns the exhausted entries of a run in the order recorded.
	ListEntryFailures(ctx context.Context, runID string) ([]domain.EntryFailure, error)
}

// Manifest catalogues every artifact a run produced.
type Manifest interface {
	// Append adds records to the manifest.
	Append(ctx context.Context, records []domain.ArtifactRecord) error

	// Read returns every record in the manifest.
	Read(ctx context.Context) ([]domain.ArtifactRecord, error)
}
