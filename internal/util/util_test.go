package util

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestRetry(t *testing.T) {
	attempts := 0
	targetAttempts := 3

	err := Retry(context.Background(), 5, 0, func() error {
		attempts++
		if attempts < targetAttempts {
			return errors.New("transient error")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Retry returned unexpected error: %v", err)
	}
	if attempts != targetAttempts {
		t.Errorf("Retry called fn %d times, want %d", attempts, targetAttempts)
	}
}

func TestRetryAllFail(t *testing.T) {
	attempts := 0
	maxAttempts := 3

	err := Retry(context.Background(), maxAttempts, 0, func() error {
		attempts++
		return errors.New("persistent error")
	})

	if err == nil {
		t.Fatal("Retry should return error when all attempts fail")
	}
	if attempts != maxAttempts {
		t.Errorf("Retry called fn %d times, want %d", attempts, maxAttempts)
	}
}

func TestBackoffFixedDelay(t *testing.T) {
	var slept []time.Duration
	var failures []int

	b := Backoff{
		MaxAttempts: 3,
		Delay:       time.Second,
		OnFailure:   func(attempt int, _ error) { failures = append(failures, attempt) },
		Sleep: func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		},
	}

	err := b.Do(context.Background(), func(int) error { return errors.New("rejected") })
	if err == nil {
		t.Fatal("Do should return the last error")
	}
	if len(failures) != 3 || failures[0] != 1 || failures[2] != 3 {
		t.Errorf("failures = %v, want [1 2 3]", failures)
	}
	// No pause after the final attempt, and the delay stays fixed.
	if len(slept) != 2 || slept[0] != time.Second || slept[1] != time.Second {
		t.Errorf("slept = %v, want [1s 1s]", slept)
	}
}

func TestBackoffExponential(t *testing.T) {
	var slept []time.Duration
	b := Backoff{
		MaxAttempts: 4,
		Delay:       100 * time.Millisecond,
		Factor:      2,
		Sleep: func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		},
	}
	_ = b.Do(context.Background(), func(int) error { return errors.New("x") })

	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}
	if len(slept) != len(want) {
		t.Fatalf("slept = %v, want %v", slept, want)
	}
	for i := range want {
		if slept[i] != want[i] {
			t.Errorf("slept[%d] = %v, want %v", i, slept[i], want[i])
		}
	}
}

func TestBackoffCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Backoff{MaxAttempts: 5, Delay: time.Hour}.Do(ctx, func(int) error {
		calls++
		return errors.New("x")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do error = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("fn called %d times after cancellation, want 1", calls)
	}
}

func TestSleepZero(t *testing.T) {
	if err := Sleep(context.Background(), 0); err != nil {
		t.Errorf("Sleep(0) = %v", err)
	}
}

func TestNewHandlerFormats(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, "warn", "json", false))
	logger.Info("hidden")
	logger.Warn("shown", "attempt", 2)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, `"attempt":2`) {
		t.Errorf("json output missing attribute: %s", out)
	}

	buf.Reset()
	slog.New(NewHandler(&buf, "debug", "console", false)).Debug("console line", "k", "v")
	if !strings.Contains(buf.String(), "console line") || strings.Contains(buf.String(), "\x1b[") {
		t.Errorf("console output unexpected: %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("DEBUG") != slog.LevelDebug {
		t.Error("DEBUG should parse as debug")
	}
	if ParseLevel("bogus") != slog.LevelInfo {
		t.Error("unknown level should default to info")
	}
}
