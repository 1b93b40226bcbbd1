package commands

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meirbatch/internal/domain"
	"meirbatch/internal/store"
)

// execute runs the root command with args against a config whose state and
// output live under dir.
func execute(t *testing.T, dir string, args ...string) string {
	t.Helper()
	path := filepath.Join(dir, "meir.yaml")
	yaml := fmt.Sprintf(`
storage:
  state_dir: %q
files:
  output_dir: %q
  download_dir: %q
logging:
  level: error
`, filepath.Join(dir, "state"), filepath.Join(dir, "output"), filepath.Join(dir, "downloads"))
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(append([]string{"--config", path}, args...))
	require.NoError(t, ExecuteContext(context.Background()))
	return out.String()
}

func TestVersion(t *testing.T) {
	out := execute(t, t.TempDir(), "version")
	assert.Equal(t, "meir-batch "+version+"\n", out)
}

func TestHistory(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	j, err := store.NewSQLiteJournal(filepath.Join(dir, "state", journalFile))
	require.NoError(t, err)
	started := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, j.BeginRun(ctx, "run-abc", started))
	require.NoError(t, j.RecordBatch(ctx, domain.BatchOutcome{
		RunID:  "run-abc",
		Window: domain.Window{Start: started, End: started.AddDate(0, 0, 7)},
		First:  1, Last: 6, Status: domain.BatchRenamed, Artifact: "batch.csv",
	}))
	require.NoError(t, j.RecordEntryFailure(ctx, domain.EntryFailure{
		RunID: "run-abc", Variable: "Boiler Temp", Attempts: 3, Error: "element detached",
	}))
	require.NoError(t, j.FinishRun(ctx, "run-abc", started.Add(time.Hour), domain.RunSucceeded, ""))
	require.NoError(t, j.Close())

	out := execute(t, dir, "history", "--limit", "5")
	assert.Contains(t, out, "run-abc")
	assert.Contains(t, out, string(domain.RunSucceeded))

	out = execute(t, dir, "history", "run-abc")
	assert.Contains(t, out, "batch.csv")
	assert.Contains(t, out, "1-6")
	assert.Contains(t, out, "Boiler Temp")
}

func TestManifest(t *testing.T) {
	dir := t.TempDir()
	m := store.NewParquetManifest(filepath.Join(dir, "state", manifestFile))
	require.NoError(t, m.Append(context.Background(), []domain.ArtifactRecord{
		{RunID: "keep", Kind: domain.ArtifactBatch, First: 1, Last: 6, FileName: "keep.csv", Variables: []string{"A"}},
		{RunID: "other", Kind: domain.ArtifactBatch, First: 7, Last: 8, FileName: "other.csv", Variables: []string{"B"}},
	}))

	out := execute(t, dir, "manifest", "--run", "keep")
	assert.Contains(t, out, "keep.csv")
	assert.NotContains(t, out, "other.csv")

	out = execute(t, dir, "manifest", "--run", "")
	assert.Contains(t, out, "other.csv")
}

func TestCombine(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "output")
	require.NoError(t, os.MkdirAll(outDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(outDir, "2024-01-01 00-00 To 2024-01-08 23-59 For 1To1Vars.csv"),
		[]byte("Time,A\nt1,1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(outDir, "2024-01-08 00-00 To 2024-01-10 23-59 For 2To2Vars.csv"),
		[]byte("Time,B\nt1,2\n"), 0o644))

	out := execute(t, dir, "combine")
	assert.Contains(t, out, "combined 2 files")
	assert.FileExists(t, filepath.Join(outDir, "2024-01-01 00-00 To 2024-01-10 23-59 For AllVars.csv"))

	records, err := store.NewParquetManifest(filepath.Join(dir, "state", manifestFile)).Read(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, domain.ArtifactCombined, records[0].Kind)

	out = execute(t, dir, "combine")
	assert.Contains(t, out, "nothing to combine")
}

func TestRenderRuns(t *testing.T) {
	out := renderRuns([]domain.RunSummary{{ID: "r1", Status: domain.RunRunning}})
	assert.Contains(t, out, "r1")
	assert.Contains(t, out, "running")
	assert.Contains(t, out, "-", "unset finish time")
}
