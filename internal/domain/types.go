// Package domain defines the core value types shared by the export workflow:
// date windows, variable batches, artifact records and run states.
package domain

import (
	"fmt"
	"time"
)

// DateLayout is the layout used for dates in configuration and file names.
const DateLayout = "2006-01-02"

// Window is one contiguous slice [Start, End) of the overall export range.
type Window struct {
	Start time.Time
	End   time.Time
}

// StartDate returns the window start formatted with DateLayout.
func (w Window) StartDate() string { return w.Start.Format(DateLayout) }

// EndDate returns the window end formatted with DateLayout.
func (w Window) EndDate() string { return w.End.Format(DateLayout) }

func (w Window) String() string {
	return fmt.Sprintf("[%s, %s)", w.StartDate(), w.EndDate())
}

// Batch is a contiguous run of variables [Start, End) (0-based indices into the
// variable list) entered into the form together.
type Batch struct {
	Start int
	End   int
	Names []string
}

// Len returns the number of variables in the batch.
func (b Batch) Len() int { return b.End - b.Start }

// Ordinals returns the 1-based inclusive span covered by the batch.
func (b Batch) Ordinals() (first, last int) {
	return b.Start + 1, b.End
}

// ArtifactKind distinguishes per-batch exports from merged outputs.
type ArtifactKind string

const (
	ArtifactBatch    ArtifactKind = "batch"
	ArtifactCombined ArtifactKind = "combined"
)

// ArtifactRecord describes a file produced by a run.
type ArtifactRecord struct {
	RunID       string
	Kind        ArtifactKind
	WindowStart time.Time
	WindowEnd   time.Time
	First       int
	Last        int
	Variables   []string
	FileName    string
	SizeBytes   int64
	CreatedAt   time.Time
}

// RunStatus is the terminal (or current) state of a run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// BatchStatus records whether a batch produced an artifact.
type BatchStatus string

const (
	BatchRenamed    BatchStatus = "renamed"
	BatchNoDownload BatchStatus = "no_download"
	BatchFailed     BatchStatus = "failed"
)

// RunSummary is a row of the run journal.
type RunSummary struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Status     RunStatus
	Error      string
	Batches    int
	Renamed    int
}

// BatchOutcome is the journal entry written after each batch.
type BatchOutcome struct {
	RunID    string
	Window   Window
	First    int
	Last     int
	Status   BatchStatus
	Artifact string
	Error    string
}

// EntryFailure records a variable that could not be entered after every
// attempt was used.
type EntryFailure struct {
	RunID    string
	Window   Window
	Variable string
	Field    int
	Attempts int
	Error    string
}
