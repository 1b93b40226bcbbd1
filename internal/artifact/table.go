package artifact

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Table is an export read into memory: one header row and the data rows.
// Rows may be ragged; Width reports the widest row.
type Table struct {
	Header []string
	Rows   [][]string
}

// Width returns the number of columns the table occupies.
func (t *Table) Width() int {
	w := len(t.Header)
	for _, r := range t.Rows {
		if len(r) > w {
			w = len(r)
		}
	}
	return w
}

// Empty reports whether the table has neither columns nor rows.
func (t *Table) Empty() bool {
	return len(t.Header) == 0 && len(t.Rows) == 0
}

// ReadTable reads an export. CSV files are parsed as CSV; .xls/.htm/.html
// exports are HTML tables (the dashboard's "Excel" download) and are parsed
// from their first <table>.
func ReadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return readCSV(f)
	case ".xls", ".htm", ".html":
		return readHTMLTable(f)
	default:
		return nil, fmt.Errorf("unsupported export type %q", filepath.Ext(path))
	}
}

func readCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(bufio.NewReader(r))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading CSV: %w", err)
	}
	return fromRecords(records), nil
}

func readHTMLTable(r io.Reader) (*Table, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML export: %w", err)
	}

	var records [][]string
	doc.Find("table").First().Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var row []string
		tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
			row = append(row, strings.TrimSpace(cell.Text()))
		})
		if len(row) > 0 {
			records = append(records, row)
		}
	})
	return fromRecords(records), nil
}

func fromRecords(records [][]string) *Table {
	t := &Table{}
	if len(records) == 0 {
		return t
	}
	header := records[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	t.Header = header
	t.Rows = records[1:]
	return t
}

// WriteCSV writes t to path, header first.
func WriteCSV(path string, t *Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(t.Header); err != nil {
		return err
	}
	if err := w.WriteAll(t.Rows); err != nil {
		return err
	}
	return f.Sync()
}

// ConcatColumns places the tables side by side. Row i of the result is row
// i of every table in order; a table with fewer rows contributes empty
// cells, and every table is padded to its own width so columns stay
// aligned. With dropRepeated, a column whose non-empty header already
// appeared in an earlier table is left out.
func ConcatColumns(tables []*Table, dropRepeated bool) *Table {
	type slice struct {
		t    *Table
		keep []int
	}

	seen := make(map[string]bool)
	cols := make([]slice, 0, len(tables))
	height := 0
	for _, t := range tables {
		s := slice{t: t}
		for c := 0; c < t.Width(); c++ {
			h := cell(t.Header, c)
			if dropRepeated && h != "" && seen[h] {
				continue
			}
			seen[h] = true
			s.keep = append(s.keep, c)
		}
		cols = append(cols, s)
		if len(t.Rows) > height {
			height = len(t.Rows)
		}
	}

	out := &Table{}
	for _, s := range cols {
		for _, c := range s.keep {
			out.Header = append(out.Header, cell(s.t.Header, c))
		}
	}
	for i := 0; i < height; i++ {
		row := make([]string, 0, len(out.Header))
		for _, s := range cols {
			var src []string
			if i < len(s.t.Rows) {
				src = s.t.Rows[i]
			}
			for _, c := range s.keep {
				row = append(row, cell(src, c))
			}
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
