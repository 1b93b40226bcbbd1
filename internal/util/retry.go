package util

import (
	"context"
	"time"
)

// Sleep pauses for d or until ctx is cancelled, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// SleepFunc is the signature of Sleep, swappable in tests.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Backoff describes a bounded retry loop. Factor multiplies the delay after
// every failed attempt; 1 (or 0) keeps the delay fixed.
type Backoff struct {
	MaxAttempts int
	Delay       time.Duration
	Factor      float64

	// OnFailure, if set, is called after every failed attempt (1-based).
	OnFailure func(attempt int, err error)
	// Sleep defaults to util.Sleep.
	Sleep SleepFunc
}

// Do calls fn until it succeeds or MaxAttempts is reached. It returns nil on
// the first successful call, the context error if ctx is cancelled while
// waiting, or the last error if all attempts fail. There is no pause after
// the final attempt.
func (b Backoff) Do(ctx context.Context, fn func(attempt int) error) error {
	sleep := b.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	factor := b.Factor
	if factor <= 0 {
		factor = 1
	}

	var err error
	delay := b.Delay
	for attempt := 1; attempt <= b.MaxAttempts; attempt++ {
		err = fn(attempt)
		if err == nil {
			return nil
		}
		if b.OnFailure != nil {
			b.OnFailure(attempt, err)
		}

		if attempt < b.MaxAttempts {
			if serr := sleep(ctx, delay); serr != nil {
				return serr
			}
			delay = time.Duration(float64(delay) * factor)
		}
	}

	return err
}

// Retry calls fn up to maxAttempts times with exponential backoff starting at
// baseDelay. It respects context cancellation between retries.
func Retry(ctx context.Context, maxAttempts int, baseDelay time.Duration, fn func() error) error {
	return Backoff{MaxAttempts: maxAttempts, Delay: baseDelay, Factor: 2}.Do(ctx, func(int) error {
		return fn()
	})
}
