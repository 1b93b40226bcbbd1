// Package export drives the MEIR dashboard through a batch export: log in,
// pick the device, then walk the date range window by window entering
// variable batches and collecting each download under a deterministic name.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"meirbatch/internal/artifact"
	"meirbatch/internal/browser"
	"meirbatch/internal/config"
	"meirbatch/internal/domain"
	"meirbatch/internal/store"
	"meirbatch/internal/util"
)

// DownloadWaiter reports when a finished download lands. artifact.Watcher
// implements it.
type DownloadWaiter interface {
	// Drain forgets downloads seen so far.
	Drain()
	// Wait blocks until a download is seen or max elapses.
	Wait(ctx context.Context, max time.Duration) (string, bool)
}

// Exporter runs the export workflow against a single browser session. It
// holds no global state; everything it touches is passed to New.
type Exporter struct {
	cfg       *config.Config
	driver    browser.Driver
	variables []string

	log      *slog.Logger
	renamer  *artifact.Renamer
	combiner *artifact.Combiner
	waiter   DownloadWaiter
	journal  store.Journal
	manifest store.Manifest
	sleep    util.SleepFunc
	now      func() time.Time
	runID    string
}

// Option customises an Exporter.
type Option func(e *Exporter)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(e *Exporter) { e.log = log }
}

// WithRenamer replaces the renamer built from the files config.
func WithRenamer(r *artifact.Renamer) Option {
	return func(e *Exporter) { e.renamer = r }
}

// WithCombiner replaces the combiner built from the files config.
func WithCombiner(c *artifact.Combiner) Option {
	return func(e *Exporter) { e.combiner = c }
}

// WithDownloadWaiter ends the download wait early once a download is seen.
func WithDownloadWaiter(w DownloadWaiter) Option {
	return func(e *Exporter) { e.waiter = w }
}

// WithJournal records runs, batches and exhausted entries.
func WithJournal(j store.Journal) Option {
	return func(e *Exporter) { e.journal = j }
}

// WithManifest catalogues every renamed and combined artifact.
func WithManifest(m store.Manifest) Option {
	return func(e *Exporter) { e.manifest = m }
}

// WithSleep replaces the pause function.
func WithSleep(fn util.SleepFunc) Option {
	return func(e *Exporter) { e.sleep = fn }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) { e.now = now }
}

// WithRunID sets the identifier written to the journal and manifest.
func WithRunID(id string) Option {
	return func(e *Exporter) { e.runID = id }
}

// New creates an Exporter for cfg driving driver over variables.
func New(cfg *config.Config, driver browser.Driver, variables []string, opts ...Option) *Exporter {
	e := &Exporter{
		cfg:       cfg,
		driver:    driver,
		variables: variables,
		sleep:     util.Sleep,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	e.log = e.log.With("component", "export")
	if e.renamer == nil {
		e.renamer = artifact.NewRenamer(cfg.Files.DownloadDir, cfg.Files.OutputDir, cfg.Files.DownloadPattern, e.log)
	}
	if e.combiner == nil {
		e.combiner = artifact.NewCombiner(cfg.Files.OutputDir, cfg.Files.CombinedFormat, cfg.Files.DropRepeatedColumns, e.log)
	}
	return e
}

// RunID returns the identifier of the current run.
func (e *Exporter) RunID() string { return e.runID }

// ---------------------------------------------------------------------------
// Run
// ---------------------------------------------------------------------------

// Run logs in, selects the device and runs the export sequence, journalling
// the run's start and outcome.
func (e *Exporter) Run(ctx context.Context) error {
	started := e.now()
	e.log.Info("run started", "run", e.runID, "at", started.Format(time.RFC3339))
	if e.journal != nil {
		if err := e.journal.BeginRun(ctx, e.runID, started); err != nil {
			e.log.Warn("journal begin run failed", "error", err)
		}
	}

	err := e.run(ctx)

	finished := e.now()
	status, msg := domain.RunSucceeded, ""
	if err != nil {
		status, msg = domain.RunFailed, err.Error()
	}
	if e.journal != nil {
		// The run context may already be cancelled; the outcome is still written.
		jctx := context.WithoutCancel(ctx)
		if jerr := e.journal.FinishRun(jctx, e.runID, finished, status, msg); jerr != nil {
			e.log.Warn("journal finish run failed", "error", jerr)
		}
	}
	e.log.Info("run finished", "run", e.runID, "at", finished.Format(time.RFC3339),
		"status", status, "elapsed", finished.Sub(started).Round(time.Second))
	return err
}

func (e *Exporter) run(ctx context.Context) error {
	if err := e.Authenticate(ctx); err != nil {
		return err
	}
	if err := e.SelectDevice(ctx); err != nil {
		return err
	}
	return e.RunExportSequence(ctx)
}

// ---------------------------------------------------------------------------
// Login and device selection
// ---------------------------------------------------------------------------

// Authenticate opens the login page, submits the credentials and waits for
// the post-login marker. It returns ErrAuthenticationTimeout when the marker
// does not appear within the login wait.
func (e *Exporter) Authenticate(ctx context.Context) error {
	l := e.cfg.Login
	if err := e.driver.Navigate(ctx, l.URL); err != nil {
		return fmt.Errorf("opening login page: %w", err)
	}

	user, err := e.driver.Find(ctx, browser.ID(l.UsernameID))
	if err != nil {
		return fmt.Errorf("locating username field: %w", err)
	}
	pass, err := e.driver.Find(ctx, browser.ID(l.PasswordID))
	if err != nil {
		return fmt.Errorf("locating password field: %w", err)
	}
	button, err := e.driver.Find(ctx, browser.ID(l.ButtonID))
	if err != nil {
		return fmt.Errorf("locating login button: %w", err)
	}

	if err := user.Type(l.Username); err != nil {
		return fmt.Errorf("typing username: %w", err)
	}
	if err := pass.Type(l.Password); err != nil {
		return fmt.Errorf("typing password: %w", err)
	}
	if err := e.click(button, "login button"); err != nil {
		return err
	}

	if _, err := e.driver.WaitPresent(ctx, browser.ID(l.MarkerID), e.cfg.Waits.Login); err != nil {
		if errors.Is(err, browser.ErrWaitTimeout) {
			return fmt.Errorf("%w: %s not present after %s", ErrAuthenticationTimeout, l.MarkerID, e.cfg.Waits.Login)
		}
		return fmt.Errorf("waiting for login: %w", err)
	}
	e.log.Info("logged in", "user", l.Username)
	return nil
}

// SelectDevice opens the device popup and clicks the entry whose text is the
// configured device name. It returns ErrDeviceSelectionTimeout when either
// the selector or the entry does not show up in time.
func (e *Exporter) SelectDevice(ctx context.Context) error {
	d := e.cfg.Device
	selector, err := e.driver.WaitClickable(ctx, browser.ID(d.SelectorID), e.cfg.Waits.Popup)
	if err != nil {
		if errors.Is(err, browser.ErrWaitTimeout) {
			return fmt.Errorf("%w: selector %s not clickable after %s", ErrDeviceSelectionTimeout, d.SelectorID, e.cfg.Waits.Popup)
		}
		return fmt.Errorf("waiting for device selector: %w", err)
	}
	if err := e.click(selector, "device selector"); err != nil {
		return err
	}

	entry, err := e.driver.WaitPresent(ctx, browser.Text(d.Name), e.cfg.Waits.DeviceSelect)
	if err != nil {
		if errors.Is(err, browser.ErrWaitTimeout) {
			return fmt.Errorf("%w: device %q not listed after %s", ErrDeviceSelectionTimeout, d.Name, e.cfg.Waits.DeviceSelect)
		}
		return fmt.Errorf("waiting for device entry: %w", err)
	}
	if err := e.click(entry, "device entry"); err != nil {
		return err
	}

	e.log.Info("device selected", "device", d.Name)
	return e.pause(ctx, e.cfg.Waits.DeviceSelect)
}

// ---------------------------------------------------------------------------
// Export sequence
// ---------------------------------------------------------------------------

// RunExportSequence walks the configured date range window by window. Only
// the first window honours the configured variable start/end; every later
// window exports the whole list. It returns an error when ctx is cancelled
// or a fixed form control cannot be found; batches already renamed stay in
// the output directory.
func (e *Exporter) RunExportSequence(ctx context.Context) error {
	start, end, err := e.cfg.Dates.Range()
	if err != nil {
		return err
	}
	windows := Windows(start, end, e.cfg.Dates.WindowDays)
	n := len(e.variables)
	e.log.Info("export sequence starting", "windows", len(windows), "variables", n)

	for i, w := range windows {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.applyWindow(ctx, w); err != nil {
			return fmt.Errorf("window %s: %w", w, err)
		}

		lo, hi := 0, n
		if i == 0 {
			lo, hi = e.cfg.VariableRange(n)
		}
		batches := Batches(e.variables, lo, hi, e.cfg.Variables.BatchSize)
		e.log.Info("window", "index", i+1, "of", len(windows), "range", w.String(),
			"from", lo+1, "to", hi, "batches", len(batches))

		for _, b := range batches {
			if err := e.runBatch(ctx, w, b); err != nil {
				return fmt.Errorf("window %s: %w", w, err)
			}
		}
	}

	e.log.Info("export sequence complete", "windows", len(windows))
	return nil
}

// applyWindow enters the window's dates and the configured times.
func (e *Exporter) applyWindow(ctx context.Context, w domain.Window) error {
	el := e.cfg.Elements
	layout := e.cfg.Dates.InputLayout
	fields := []struct {
		id, value string
	}{
		{el.DateStartID, w.Start.Format(layout)},
		{el.DateEndID, w.End.Format(layout)},
		{el.TimeStartID, e.cfg.Dates.StartTime},
		{el.TimeEndID, e.cfg.Dates.EndTime},
	}
	for _, f := range fields {
		field, err := e.driver.Find(ctx, browser.ID(f.id))
		if err != nil {
			return fmt.Errorf("locating %s: %w", f.id, err)
		}
		if err := e.clearAndCommit(ctx, field, f.value); err != nil {
			return fmt.Errorf("setting %s: %w", f.id, err)
		}
	}
	e.log.Debug("window applied", "range", w.String())
	return nil
}

// runBatch enters one batch of variables, plots, downloads and renames the
// export.
func (e *Exporter) runBatch(ctx context.Context, w domain.Window, b domain.Batch) error {
	first, last := b.Ordinals()
	log := e.log.With("window", w.String(), "first", first, "last", last)

	inputs, err := e.driver.FindAll(ctx, browser.CSS(e.cfg.Elements.VariableInputs))
	if err != nil {
		return fmt.Errorf("locating variable inputs: %w", err)
	}
	if len(inputs) < b.Len() {
		log.Warn("fewer variable inputs than batch variables", "inputs", len(inputs), "variables", b.Len())
	}

	// Variables map onto the inputs by position.
	for k, name := range b.Names {
		if k >= len(inputs) {
			break
		}
		if err := e.enterVariable(ctx, w, k, inputs[k], name); err != nil {
			return err
		}
		if err := e.pause(ctx, e.cfg.Waits.PerVariable); err != nil {
			return err
		}
	}

	apply, err := e.driver.Find(ctx, browser.ID(e.cfg.Elements.ApplyButtonID))
	if err != nil {
		return fmt.Errorf("locating apply button: %w", err)
	}
	if err := e.click(apply, "apply button"); err != nil {
		e.recordBatch(ctx, w, b, domain.BatchFailed, "", err)
		return err
	}
	if err := e.pause(ctx, e.cfg.Waits.PlotRender); err != nil {
		return err
	}

	download, err := e.driver.Find(ctx, browser.ID(e.cfg.Elements.DownloadButtonID))
	if err != nil {
		return fmt.Errorf("locating download button: %w", err)
	}
	if e.waiter != nil {
		e.waiter.Drain()
	}
	if err := e.click(download, "download button"); err != nil {
		e.recordBatch(ctx, w, b, domain.BatchFailed, "", err)
		return err
	}
	if err := e.awaitDownload(ctx); err != nil {
		return err
	}

	dst, err := e.renamer.Rename(w, e.cfg.Dates.StartTime, e.cfg.Dates.EndTime, b)
	switch {
	case err != nil:
		log.Warn("rename failed", "error", err)
		e.recordBatch(ctx, w, b, domain.BatchFailed, "", err)
	case dst == "":
		e.recordBatch(ctx, w, b, domain.BatchNoDownload, "", nil)
	default:
		log.Info("batch exported", "file", filepath.Base(dst))
		e.recordBatch(ctx, w, b, domain.BatchRenamed, dst, nil)
		e.recordArtifact(ctx, domain.ArtifactRecord{
			RunID:       e.runID,
			Kind:        domain.ArtifactBatch,
			WindowStart: w.Start,
			WindowEnd:   w.End,
			First:       first,
			Last:        last,
			Variables:   b.Names,
			FileName:    filepath.Base(dst),
			SizeBytes:   fileSize(dst),
			CreatedAt:   e.now(),
		})
	}
	return nil
}

// awaitDownload waits the configured download time, or less when a watcher
// sees the download land first.
func (e *Exporter) awaitDownload(ctx context.Context) error {
	limit := e.cfg.Waits.Download
	if e.waiter == nil {
		return e.pause(ctx, limit)
	}
	if name, ok := e.waiter.Wait(ctx, limit); ok {
		e.log.Debug("download landed", "file", name)
	}
	return ctx.Err()
}

// ---------------------------------------------------------------------------
// Combine
// ---------------------------------------------------------------------------

// Combine merges the renamed exports in the output directory into one file.
// It is never called by RunExportSequence. A nil result with a nil error
// means there was nothing to combine.
func (e *Exporter) Combine(ctx context.Context) (*artifact.CombineResult, error) {
	res, err := e.combiner.Combine(ctx)
	if err != nil || res == nil {
		return res, err
	}

	start, err := time.Parse(domain.DateLayout, res.First.StartDate)
	if err != nil {
		e.log.Warn("combined file not recorded", "file", filepath.Base(res.Path), "error", err)
		return res, nil
	}
	end, err := time.Parse(domain.DateLayout, res.Last.EndDate)
	if err != nil {
		e.log.Warn("combined file not recorded", "file", filepath.Base(res.Path), "error", err)
		return res, nil
	}
	e.recordArtifact(ctx, domain.ArtifactRecord{
		RunID:       e.runID,
		Kind:        domain.ArtifactCombined,
		WindowStart: start,
		WindowEnd:   end,
		First:       res.First.First,
		Last:        res.Last.Last,
		FileName:    filepath.Base(res.Path),
		SizeBytes:   fileSize(res.Path),
		CreatedAt:   e.now(),
	})
	return res, nil
}

// ---------------------------------------------------------------------------
// Journal and manifest
// ---------------------------------------------------------------------------

func (e *Exporter) recordBatch(ctx context.Context, w domain.Window, b domain.Batch, status domain.BatchStatus, dst string, cause error) {
	if e.journal == nil {
		return
	}
	first, last := b.Ordinals()
	o := domain.BatchOutcome{
		RunID:  e.runID,
		Window: w,
		First:  first,
		Last:   last,
		Status: status,
	}
	if dst != "" {
		o.Artifact = filepath.Base(dst)
	}
	if cause != nil {
		o.Error = cause.Error()
	}
	if err := e.journal.RecordBatch(context.WithoutCancel(ctx), o); err != nil {
		e.log.Warn("journal record batch failed", "error", err)
	}
}

func (e *Exporter) recordEntryFailure(ctx context.Context, f domain.EntryFailure) {
	if e.journal == nil {
		return
	}
	if err := e.journal.RecordEntryFailure(ctx, f); err != nil {
		e.log.Warn("journal record entry failure failed", "error", err)
	}
}

func (e *Exporter) recordArtifact(ctx context.Context, r domain.ArtifactRecord) {
	if e.manifest == nil {
		return
	}
	if err := e.manifest.Append(ctx, []domain.ArtifactRecord{r}); err != nil {
		e.log.Warn("manifest append failed", "file", r.FileName, "error", err)
	}
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
