package ratelimiter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"distill/internal/summarizer"

	"golang.org/x/time/rate"
)

const slowWaitThreshold = 100 * time.Millisecond

// RateLimiter paces requests to the model API. Callers block until a token is
// available or their context ends, which keeps a burst of chunks from
// tripping the provider's own limits.
type RateLimiter struct {
	next    summarizer.Summarizer
	limiter *rate.Limiter
	log     *slog.Logger
}

// New wraps next with a limiter of rps requests per second. A non-positive
// rps disables pacing.
func New(next summarizer.Summarizer, rps float64, burst int, log *slog.Logger) *RateLimiter {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}

	return &RateLimiter{
		next:    next,
		limiter: rate.NewLimiter(limit, max(burst, 1)),
		log:     log,
	}
}

func (rl *RateLimiter) Summarize(
	ctx context.Context,
	input summarizer.Input,
) (string, error) {
	start := time.Now()
	if err := rl.limiter.Wait(ctx); err != nil {
		// Wait fails early when the next token arrives after the deadline.
		if _, ok := ctx.Deadline(); ok && ctx.Err() == nil {
			return "", fmt.Errorf("wait for rate limiter: %w: %w", context.DeadlineExceeded, err)
		}

		return "", fmt.Errorf("wait for rate limiter: %w", err)
	}

	if delay := time.Since(start); delay > slowWaitThreshold {
		rl.log.DebugContext(ctx, "Rate limiting request",
			"delay", delay,
			"model", input.Model,
			"textLength", len(input.Text))
	}

	return rl.next.Summarize(ctx, input)
}
