package commands

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"meirbatch/internal/domain"
)

const timeLayout = "2006-01-02 15:04:05"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	return t
}

func renderRuns(runs []domain.RunSummary) string {
	t := newTable()
	t.AppendHeader(table.Row{"Run", "Started", "Finished", "Status", "Batches", "Renamed", "Error"})
	for _, r := range runs {
		t.AppendRow(table.Row{r.ID, formatTime(r.StartedAt), formatTime(r.FinishedAt),
			r.Status, r.Batches, r.Renamed, r.Error})
	}
	return t.Render()
}

func renderBatches(batches []domain.BatchOutcome) string {
	t := newTable()
	t.AppendHeader(table.Row{"Window", "Variables", "Status", "Artifact", "Error"})
	for _, b := range batches {
		t.AppendRow(table.Row{b.Window.String(), fmt.Sprintf("%d-%d", b.First, b.Last),
			b.Status, b.Artifact, b.Error})
	}
	return t.Render()
}

func renderEntryFailures(failures []domain.EntryFailure) string {
	t := newTable()
	t.AppendHeader(table.Row{"Window", "Variable", "Field", "Attempts", "Error"})
	for _, f := range failures {
		t.AppendRow(table.Row{f.Window.String(), f.Variable, f.Field + 1, f.Attempts, f.Error})
	}
	return t.Render()
}

func renderManifest(records []domain.ArtifactRecord) string {
	t := newTable()
	t.AppendHeader(table.Row{"Run", "Kind", "Window", "Variables", "File", "Bytes", "Created"})
	for _, r := range records {
		w := domain.Window{Start: r.WindowStart, End: r.WindowEnd}
		t.AppendRow(table.Row{r.RunID, r.Kind, w.String(), fmt.Sprintf("%d-%d", r.First, r.Last),
			r.FileName, r.SizeBytes, formatTime(r.CreatedAt)})
	}
	t.AppendFooter(table.Row{"", "", "", "", "Total", len(records)})
	return t.Render()
}
