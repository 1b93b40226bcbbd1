package export

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"meirbatch/internal/browser"
	"meirbatch/internal/domain"
)

// recorder collects browser actions and pauses in the order they happen.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recorder) sleep(_ context.Context, d time.Duration) error {
	r.add("sleep %s", d)
	return nil
}

type fakeElement struct {
	name string
	rec  *recorder

	clickErr error
	// typeErr fails the next typeFail Type calls; a negative typeFail fails them all.
	typeErr  error
	typeFail int
	value    string
	onClick  func()
}

func (f *fakeElement) Click() error {
	if f.clickErr != nil {
		f.rec.add("%s click rejected", f.name)
		return f.clickErr
	}
	f.rec.add("%s click", f.name)
	if f.onClick != nil {
		f.onClick()
	}
	return nil
}

func (f *fakeElement) ForceClick() error {
	f.rec.add("%s force-click", f.name)
	if f.onClick != nil {
		f.onClick()
	}
	return nil
}

func (f *fakeElement) ClearValue() error {
	f.rec.add("%s clear", f.name)
	f.value = ""
	return nil
}

func (f *fakeElement) Type(text string) error {
	if f.typeErr != nil && f.typeFail != 0 {
		if f.typeFail > 0 {
			f.typeFail--
		}
		f.rec.add("%s type %q failed", f.name, text)
		return f.typeErr
	}
	f.rec.add("%s type %q", f.name, text)
	f.value += text
	return nil
}

func (f *fakeElement) PressTab() error {
	f.rec.add("%s tab", f.name)
	return nil
}

// fakeDriver serves elements from a map keyed by selector string. A missing
// key behaves like an element that never appears.
type fakeDriver struct {
	rec       *recorder
	elements  map[string]*fakeElement
	inputs    []*fakeElement
	navigated []string
	closed    bool
}

func newFakeDriver(rec *recorder) *fakeDriver {
	return &fakeDriver{rec: rec, elements: make(map[string]*fakeElement)}
}

func (d *fakeDriver) add(sel browser.Selector) *fakeElement {
	el := &fakeElement{name: sel.Value, rec: d.rec}
	d.elements[sel.String()] = el
	return el
}

func (d *fakeDriver) lookup(sel browser.Selector) (*fakeElement, bool) {
	el, ok := d.elements[sel.String()]
	return el, ok
}

func (d *fakeDriver) Navigate(_ context.Context, url string) error {
	d.navigated = append(d.navigated, url)
	return nil
}

func (d *fakeDriver) Find(_ context.Context, sel browser.Selector) (browser.Element, error) {
	if el, ok := d.lookup(sel); ok {
		return el, nil
	}
	return nil, fmt.Errorf("no element %s", sel)
}

func (d *fakeDriver) FindAll(_ context.Context, _ browser.Selector) ([]browser.Element, error) {
	out := make([]browser.Element, len(d.inputs))
	for i, in := range d.inputs {
		out[i] = in
	}
	return out, nil
}

func (d *fakeDriver) WaitPresent(_ context.Context, sel browser.Selector, _ time.Duration) (browser.Element, error) {
	if el, ok := d.lookup(sel); ok {
		return el, nil
	}
	return nil, browser.ErrWaitTimeout
}

func (d *fakeDriver) WaitClickable(ctx context.Context, sel browser.Selector, timeout time.Duration) (browser.Element, error) {
	return d.WaitPresent(ctx, sel, timeout)
}

func (d *fakeDriver) Close() error {
	d.closed = true
	return nil
}

var errDetached = errors.New("element detached")

// memJournal is an in-memory store.Journal.
type memJournal struct {
	runs     map[string]*domain.RunSummary
	order    []string
	batches  []domain.BatchOutcome
	failures []domain.EntryFailure
}

func newMemJournal() *memJournal {
	return &memJournal{runs: make(map[string]*domain.RunSummary)}
}

func (j *memJournal) BeginRun(_ context.Context, id string, startedAt time.Time) error {
	j.runs[id] = &domain.RunSummary{ID: id, StartedAt: startedAt, Status: domain.RunRunning}
	j.order = append(j.order, id)
	return nil
}

func (j *memJournal) FinishRun(_ context.Context, id string, finishedAt time.Time, status domain.RunStatus, runErr string) error {
	r, ok := j.runs[id]
	if !ok {
		return fmt.Errorf("no run %s", id)
	}
	r.FinishedAt, r.Status, r.Error = finishedAt, status, runErr
	return nil
}

func (j *memJournal) RecordBatch(_ context.Context, o domain.BatchOutcome) error {
	j.batches = append(j.batches, o)
	return nil
}

func (j *memJournal) RecordEntryFailure(_ context.Context, f domain.EntryFailure) error {
	j.failures = append(j.failures, f)
	return nil
}

func (j *memJournal) ListRuns(_ context.Context, _ int) ([]domain.RunSummary, error) {
	var out []domain.RunSummary
	for _, id := range j.order {
		out = append(out, *j.runs[id])
	}
	return out, nil
}

func (j *memJournal) ListBatches(_ context.Context, runID string) ([]domain.BatchOutcome, error) {
	var out []domain.BatchOutcome
	for _, b := range j.batches {
		if b.RunID == runID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (j *memJournal) ListEntryFailures(_ context.Context, runID string) ([]domain.EntryFailure, error) {
	var out []domain.EntryFailure
	for _, f := range j.failures {
		if f.RunID == runID {
			out = append(out, f)
		}
	}
	return out, nil
}

// memManifest is an in-memory store.Manifest.
type memManifest struct {
	records []domain.ArtifactRecord
}

func (m *memManifest) Append(_ context.Context, records []domain.ArtifactRecord) error {
	m.records = append(m.records, records...)
	return nil
}

func (m *memManifest) Read(_ context.Context) ([]domain.ArtifactRecord, error) {
	return m.records, nil
}
