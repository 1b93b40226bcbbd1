package artifact

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// pollInterval is how often a candidate download is re-checked. A file
// counts as finished once two checks in a row see the same non-zero size and
// no partial download remains in the directory.
const pollInterval = 100 * time.Millisecond

// Watcher observes the download directory so the download wait can end as
// soon as a finished export appears. It only shortens the wait: the file is
// still chosen by Renamer.Latest.
type Watcher struct {
	dir   string
	match func(name string) bool
	fsw   *fsnotify.Watcher
	log   *slog.Logger
}

// NewWatcher starts watching dir. match decides which file names count as a
// download.
func NewWatcher(dir string, match func(name string) bool, log *slog.Logger) (*Watcher, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating download dir: %w", err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}
	return &Watcher{dir: dir, match: match, fsw: fsw, log: log}, nil
}

// Drain discards events already queued, so a wait started afterwards only
// sees files created by the next download.
func (w *Watcher) Drain() {
	for {
		select {
		case <-w.fsw.Events:
		case <-w.fsw.Errors:
		default:
			return
		}
	}
}

// Wait blocks until a matching file created (or renamed into place) in the
// directory has finished writing, max elapses, or ctx is cancelled. It
// returns the file name and true when a finished download was seen. Empty
// placeholders and files still growing are not reported.
func (w *Watcher) Wait(ctx context.Context, max time.Duration) (string, bool) {
	timer := time.NewTimer(max)
	defer timer.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	// last size seen per candidate; -1 until the first check.
	pending := make(map[string]int64)

	for {
		select {
		case <-ctx.Done():
			return "", false
		case <-timer.C:
			return "", false
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return "", false
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			name := filepath.Base(ev.Name)
			if !w.match(name) {
				continue
			}
			if _, seen := pending[name]; !seen {
				w.log.Debug("download observed", "file", name, "op", ev.Op.String())
				pending[name] = -1
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return "", false
			}
			w.log.Warn("download watcher error", "error", err)
		case <-ticker.C:
			if len(pending) == 0 {
				continue
			}
			busy := w.inProgress()
			for name, last := range pending {
				info, err := os.Stat(filepath.Join(w.dir, name))
				if err != nil {
					delete(pending, name)
					continue
				}
				size := info.Size()
				if size > 0 && size == last && !busy {
					w.log.Debug("download finished", "file", name, "bytes", size)
					return name, true
				}
				pending[name] = size
			}
		}
	}
}

// inProgress reports whether the browser is still writing a partial file.
func (w *Watcher) inProgress() bool {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if IsPartial(e.Name()) {
			return true
		}
	}
	return false
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
