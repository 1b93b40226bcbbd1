package artifact

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Combiner merges every per-batch export in Dir into one wide table and
// removes the sources.
type Combiner struct {
	Dir                 string
	Format              string
	DropRepeatedColumns bool
	Logger              *slog.Logger
}

// CombineResult describes a completed merge.
type CombineResult struct {
	Path    string
	Sources []string
	First   ParsedName
	Last    ParsedName
	Rows    int
	Columns int
}

// NewCombiner creates a Combiner writing CSV output unless format says
// otherwise.
func NewCombiner(dir, format string, dropRepeated bool, log *slog.Logger) *Combiner {
	if format == "" {
		format = "csv"
	}
	if log == nil {
		log = slog.Default()
	}
	return &Combiner{
		Dir:                 dir,
		Format:              strings.ToLower(strings.TrimPrefix(format, ".")),
		DropRepeatedColumns: dropRepeated,
		Logger:              log,
	}
}

// List returns the names of the renamed exports in Dir, in directory
// listing (lexical) order.
func (c *Combiner) List() ([]string, error) {
	entries, err := os.ReadDir(c.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing %s: %w", c.Dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := ParseName(e.Name()); ok {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Combine concatenates the exports column-wise, writes the result as
// "<first start> To <last end> For AllVars.<format>" and deletes the sources.
// The date/time tokens come from the first and last file names.
//
// An empty directory, or inputs that merge to nothing, is logged as a
// warning and returns (nil, nil) without writing or deleting anything.
func (c *Combiner) Combine(ctx context.Context) (*CombineResult, error) {
	if c.Format != "csv" {
		return nil, fmt.Errorf("combine: unsupported output format %q", c.Format)
	}

	names, err := c.List()
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		c.Logger.Warn("no exported files to combine", "dir", c.Dir)
		return nil, nil
	}

	tables := make([]*Table, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t, err := ReadTable(filepath.Join(c.Dir, name))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		c.Logger.Debug("read export", "file", name, "columns", t.Width(), "rows", len(t.Rows))
		tables = append(tables, t)
	}

	merged := ConcatColumns(tables, c.DropRepeatedColumns)
	if merged.Empty() {
		c.Logger.Warn("combined result is empty, nothing written", "files", len(names))
		return nil, nil
	}

	first, _ := ParseName(names[0])
	last, _ := ParseName(names[len(names)-1])
	out := filepath.Join(c.Dir, CombinedName(first.StartDate, first.StartTime, last.EndDate, last.EndTime, c.Format))

	if err := WriteCSV(out, merged); err != nil {
		return nil, err
	}
	c.Logger.Info("combined exports", "file", filepath.Base(out),
		"sources", len(names), "columns", len(merged.Header), "rows", len(merged.Rows))

	for _, name := range names {
		if err := os.Remove(filepath.Join(c.Dir, name)); err != nil {
			c.Logger.Warn("removing combined source", "file", name, "error", err)
		}
	}

	return &CombineResult{
		Path:    out,
		Sources: names,
		First:   first,
		Last:    last,
		Rows:    len(merged.Rows),
		Columns: len(merged.Header),
	}, nil
}
