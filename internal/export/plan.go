package export

import (
	"time"

	"meirbatch/internal/domain"
)

// Windows splits [start, end) into consecutive windows of at most days days.
// Each window ends at min(start+days, end) and the next one starts where the
// previous ended, so the windows cover the range exactly once.
func Windows(start, end time.Time, days int) []domain.Window {
	if days <= 0 {
		return nil
	}
	var out []domain.Window
	for cur := start; cur.Before(end); {
		next := cur.AddDate(0, 0, days)
		if next.After(end) {
			next = end
		}
		out = append(out, domain.Window{Start: cur, End: next})
		cur = next
	}
	return out
}

// Batches partitions vars[start:end) into consecutive batches of at most
// size names. The bounds are clamped to the list.
func Batches(vars []string, start, end, size int) []domain.Batch {
	if size <= 0 {
		return nil
	}
	start = max(start, 0)
	end = min(end, len(vars))

	var out []domain.Batch
	for i := start; i < end; i += size {
		j := min(i+size, end)
		out = append(out, domain.Batch{Start: i, End: j, Names: vars[i:j]})
	}
	return out
}
