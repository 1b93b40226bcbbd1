package export

import (
	"context"
	"fmt"
	"time"

	"meirbatch/internal/browser"
	"meirbatch/internal/domain"
	"meirbatch/internal/util"
)

// clickStep is one way of clicking an element. Steps are tried in order and
// the next one only runs when the previous is rejected.
type clickStep struct {
	name  string
	click func(browser.Element) error
}

var clickStrategy = []clickStep{
	{name: "direct", click: browser.Element.Click},
	{name: "forced", click: browser.Element.ForceClick},
}

// click clicks el, falling back to a programmatic click when the page
// rejects a real one.
func (e *Exporter) click(el browser.Element, target string) error {
	var err error
	for i, step := range clickStrategy {
		if err = step.click(el); err == nil {
			if i > 0 {
				e.log.Info("click fell back", "target", target, "step", step.name)
			}
			return nil
		}
		e.log.Debug("click rejected", "target", target, "step", step.name, "error", err)
	}
	return fmt.Errorf("clicking %s: %w", target, err)
}

// clearAndCommit sets a text field: clear the value directly, type text,
// pause for the page to react, then Tab out to commit. The order matters to
// the dashboard's autocomplete.
func (e *Exporter) clearAndCommit(ctx context.Context, el browser.Element, text string) error {
	if err := el.ClearValue(); err != nil {
		return fmt.Errorf("clearing field: %w", err)
	}
	if err := el.Type(text); err != nil {
		return fmt.Errorf("typing %q: %w", text, err)
	}
	if err := e.pause(ctx, e.cfg.Waits.Settle); err != nil {
		return err
	}
	if err := el.PressTab(); err != nil {
		return fmt.Errorf("committing %q: %w", text, err)
	}
	return nil
}

// enterVariable enters name into the field-th variable input, retrying on
// the same element. Every failed attempt is logged; running out of attempts
// is not an error; the field is left as it is and the run goes on. Only a
// cancelled context is returned.
func (e *Exporter) enterVariable(ctx context.Context, w domain.Window, field int, el browser.Element, name string) error {
	var attempts int
	bo := util.Backoff{
		MaxAttempts: e.cfg.Variables.MaxAttempts,
		Delay:       e.cfg.Variables.RetryDelay,
		Sleep:       e.sleep,
		OnFailure: func(attempt int, err error) {
			attempts = attempt
			e.log.Warn("variable entry failed", "attempt", attempt, "variable", name, "error", err)
		},
	}

	err := bo.Do(ctx, func(int) error {
		return e.clearAndCommit(ctx, el, name)
	})
	if err == nil {
		return nil
	}
	if cerr := ctx.Err(); cerr != nil {
		return cerr
	}

	e.recordEntryFailure(ctx, domain.EntryFailure{
		RunID:    e.runID,
		Window:   w,
		Variable: name,
		Field:    field,
		Attempts: attempts,
		Error:    err.Error(),
	})
	return nil
}

// pause sleeps for d unless d is zero.
func (e *Exporter) pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	return e.sleep(ctx, d)
}
