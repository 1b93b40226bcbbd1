package artifact

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"meirbatch/internal/domain"
)

// partialSuffixes mark files a browser is still writing.
var partialSuffixes = []string{".crdownload", ".part", ".partial", ".tmp", ".download"}

// IsPartial reports whether name looks like an in-progress download.
func IsPartial(name string) bool {
	lower := strings.ToLower(name)
	for _, s := range partialSuffixes {
		if strings.HasSuffix(lower, s) {
			return true
		}
	}
	return false
}

// Renamer moves the newest matching download into the output directory
// under a deterministic name.
//
// The download is identified only by being the most recently modified file
// matching Pattern; the dashboard returns no identifier. A download that
// lands late, or a stray file written in between, will be picked instead.
type Renamer struct {
	DownloadDir string
	OutputDir   string
	Pattern     string
	Logger      *slog.Logger
}

// NewRenamer creates a Renamer. An empty pattern matches every file.
func NewRenamer(downloadDir, outputDir, pattern string, log *slog.Logger) *Renamer {
	if pattern == "" {
		pattern = "*"
	}
	if log == nil {
		log = slog.Default()
	}
	return &Renamer{
		DownloadDir: downloadDir,
		OutputDir:   outputDir,
		Pattern:     pattern,
		Logger:      log,
	}
}

// Matches reports whether a file name in the download directory is a
// candidate export.
func (r *Renamer) Matches(name string) bool {
	if IsPartial(name) {
		return false
	}
	ok, err := filepath.Match(r.Pattern, name)
	return err == nil && ok
}

// Latest returns the path of the newest matching download, or "" when the
// directory holds none.
func (r *Renamer) Latest() (string, error) {
	entries, err := os.ReadDir(r.DownloadDir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("listing downloads: %w", err)
	}

	var (
		newest   string
		newestAt time.Time
	)
	for _, e := range entries {
		if e.IsDir() || !r.Matches(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestAt) {
			newest = filepath.Join(r.DownloadDir, e.Name())
			newestAt = info.ModTime()
		}
	}
	return newest, nil
}

// Rename moves the newest download to
// "<start date> <startTime> To <end date> <endTime> For <a>To<b>Vars.<ext>"
// in the output directory, where a..b is the batch's 1-based span. When no
// matching download exists it logs a warning and returns "" with a nil
// error.
func (r *Renamer) Rename(w domain.Window, startTime, endTime string, b domain.Batch) (string, error) {
	src, err := r.Latest()
	if err != nil {
		return "", err
	}
	if src == "" {
		r.Logger.Warn("no downloaded file found to rename",
			"dir", r.DownloadDir, "pattern", r.Pattern, "window", w.String())
		return "", nil
	}

	first, last := b.Ordinals()
	name := Name(w.StartDate(), startTime, w.EndDate(), endTime, first, last, filepath.Ext(src))

	if err := os.MkdirAll(r.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("creating output dir: %w", err)
	}
	dst := filepath.Join(r.OutputDir, name)
	if err := move(src, dst); err != nil {
		return "", fmt.Errorf("moving %s: %w", filepath.Base(src), err)
	}

	r.Logger.Info("renamed download", "from", filepath.Base(src), "to", name)
	return dst, nil
}

// move renames src to dst, copying across filesystems when a plain rename
// is refused.
func move(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if cerr := copyFile(src, dst); cerr != nil {
		return err
	}
	return os.Remove(src)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
