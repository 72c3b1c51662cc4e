package ratelimiter

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"distill/internal/summarizer"
)

func echo(calls *atomic.Int32) summarizer.Summarizer {
	return summarizer.SummarizerFunc(func(_ context.Context, input summarizer.Input) (string, error) {
		calls.Add(1)
		return input.Text, nil
	})
}

func TestRateLimiterPacesRequests(t *testing.T) {
	var calls atomic.Int32
	rl := New(echo(&calls), 20, 1, slog.Default())

	start := time.Now()
	for range 3 {
		if _, err := rl.Summarize(context.Background(), summarizer.Input{Text: "x"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	// Burst of one at 20 rps: the 2nd and 3rd requests wait ~50ms each.
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Fatalf("expected pacing, finished in %v", elapsed)
	}

	if calls.Load() != 3 {
		t.Fatalf("expected 3 calls, got %d", calls.Load())
	}
}

func TestRateLimiterUnlimited(t *testing.T) {
	var calls atomic.Int32
	rl := New(echo(&calls), 0, 0, slog.Default())

	start := time.Now()
	for range 50 {
		if _, err := rl.Summarize(context.Background(), summarizer.Input{Text: "x"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("expected no pacing, took %v", elapsed)
	}
}

func TestRateLimiterHonorsContext(t *testing.T) {
	var calls atomic.Int32
	rl := New(echo(&calls), 0.1, 1, slog.Default())

	if _, err := rl.Summarize(context.Background(), summarizer.Input{Text: "x"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := rl.Summarize(ctx, summarizer.Input{Text: "x"})
	if err == nil {
		t.Fatalf("expected error while waiting past the deadline")
	}

	if calls.Load() != 1 {
		t.Fatalf("expected the second request not to be sent, calls = %d", calls.Load())
	}

	if errors.Is(err, context.Canceled) {
		t.Fatalf("unexpected cancellation error: %v", err)
	}

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("a wait past the deadline must report DeadlineExceeded, got %v", err)
	}
}
