package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/parquet-go/parquet-go"

	"meirbatch/internal/domain"
)

// Compile-time interface check.
var _ Manifest = (*ParquetManifest)(nil)

// ParquetManifest implements Manifest as a single Parquet file that is
// rewritten on every append.
type ParquetManifest struct {
	Path string

	mu sync.Mutex
}

// NewParquetManifest creates a ParquetManifest stored at path.
func NewParquetManifest(path string) *ParquetManifest {
	return &ParquetManifest{Path: path}
}

// ---------------------------------------------------------------------------
// Parquet record type (on-disk schema)
// ---------------------------------------------------------------------------

// ManifestRecord is the Parquet schema for one artifact.
type ManifestRecord struct {
	RunID       string   `parquet:"run_id"`
	Kind        string   `parquet:"kind"`
	WindowStart int64    `parquet:"window_start,timestamp(millisecond)"` // Unix ms
	WindowEnd   int64    `parquet:"window_end,timestamp(millisecond)"`   // Unix ms
	First       int64    `parquet:"first"`
	Last        int64    `parquet:"last"`
	Variables   []string `parquet:"variables"`
	FileName    string   `parquet:"file_name"`
	SizeBytes   int64    `parquet:"size_bytes"`
	CreatedAt   int64    `parquet:"created_at,timestamp(millisecond)"` // Unix ms
}

func toManifestRecord(r domain.ArtifactRecord) ManifestRecord {
	return ManifestRecord{
		RunID:       r.RunID,
		Kind:        string(r.Kind),
		WindowStart: r.WindowStart.UnixMilli(),
		WindowEnd:   r.WindowEnd.UnixMilli(),
		First:       int64(r.First),
		Last:        int64(r.Last),
		Variables:   r.Variables,
		FileName:    r.FileName,
		SizeBytes:   r.SizeBytes,
		CreatedAt:   r.CreatedAt.UnixMilli(),
	}
}

func (m ManifestRecord) artifact() domain.ArtifactRecord {
	return domain.ArtifactRecord{
		RunID:       m.RunID,
		Kind:        domain.ArtifactKind(m.Kind),
		WindowStart: time.UnixMilli(m.WindowStart).UTC(),
		WindowEnd:   time.UnixMilli(m.WindowEnd).UTC(),
		First:       int(m.First),
		Last:        int(m.Last),
		Variables:   m.Variables,
		FileName:    m.FileName,
		SizeBytes:   m.SizeBytes,
		CreatedAt:   time.UnixMilli(m.CreatedAt).UTC(),
	}
}

// ---------------------------------------------------------------------------
// Manifest implementation
// ---------------------------------------------------------------------------

// Append reads the existing manifest, appends records and rewrites the file.
// The new file is written beside the old one and renamed into place.
func (p *ParquetManifest) Append(_ context.Context, records []domain.ArtifactRecord) error {
	if len(records) == 0 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	existing, err := p.load()
	if err != nil {
		return err
	}
	for _, r := range records {
		existing = append(existing, toManifestRecord(r))
	}

	if err := os.MkdirAll(filepath.Dir(p.Path), 0o755); err != nil {
		return fmt.Errorf("creating manifest dir: %w", err)
	}
	tmp := p.Path + ".tmp"
	if err := parquet.WriteFile(tmp, existing); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("writing manifest: %w", err)
	}
	if err := os.Rename(tmp, p.Path); err != nil {
		return fmt.Errorf("replacing manifest: %w", err)
	}
	return nil
}

// Read returns every record in the manifest. A missing file is an empty
// manifest.
func (p *ParquetManifest) Read(_ context.Context) ([]domain.ArtifactRecord, error) {
	p.mu.Lock()
	rows, err := p.load()
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := make([]domain.ArtifactRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.artifact())
	}
	return out, nil
}

func (p *ParquetManifest) load() ([]ManifestRecord, error) {
	if _, err := os.Stat(p.Path); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat manifest: %w", err)
	}
	rows, err := parquet.ReadFile[ManifestRecord](p.Path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	return rows, nil
}
