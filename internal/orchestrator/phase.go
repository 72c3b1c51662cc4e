package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"distill/internal/chunker"
	"distill/internal/domain"
	"distill/internal/summarizer"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/semaphore"
)

var errNotDispatched = errors.New("not dispatched")

// instructionsFunc builds the prompt for a chunk; multipart is false when
// the sequence held a single chunk.
type instructionsFunc func(index int, multipart bool) string

// phaseResult is the ordered outcome of summarizing one chunk sequence.
type phaseResult struct {
	summaries  []string
	outcomes   []domain.ChunkOutcome
	chunks     int
	hardSplits int
	canceled   bool
	quota      bool
	// undispatched counts chunks read from the sequence but never sent.
	undispatched int
	errs         []error
}

func (r *phaseResult) complete() bool {
	return len(r.summaries) == r.chunks
}

// table is the only state shared between the collector and the workers.
// Everything in it is guarded by mu; once closed, workers can no longer
// change it.
type table struct {
	mu        sync.Mutex
	closed    bool
	quota     bool
	summaries map[int]string
	outcomes  map[int]*domain.ChunkOutcome
	errs      []error
}

func newTable() *table {
	return &table{
		summaries: make(map[int]string),
		outcomes:  make(map[int]*domain.ChunkOutcome),
	}
}

func (t *table) add(index int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.outcomes[index] = &domain.ChunkOutcome{Index: index, State: domain.ChunkPending}
}

// transition moves a chunk to next. Records made after ctx ended are
// dropped, so only work finished before cancellation is observable.
func (t *table) transition(ctx context.Context, index int, next domain.ChunkState, err error) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.transitionLocked(ctx, index, next, err)
}

func (t *table) transitionLocked(ctx context.Context, index int, next domain.ChunkState, err error) bool {
	if t.closed || ctx.Err() != nil {
		return false
	}

	o, ok := t.outcomes[index]
	if !ok || !o.State.CanTransition(next) {
		return false
	}

	o.State = next
	if next == domain.ChunkInFlight {
		o.Attempts++
	}
	if err != nil {
		o.Err = err.Error()
	}

	if next == domain.ChunkFailed && err != nil {
		t.errs = append(t.errs, fmt.Errorf("chunk %d: %w", index, err))
	}

	return true
}

func (t *table) succeed(ctx context.Context, index int, summary string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.transitionLocked(ctx, index, domain.ChunkSucceeded, nil) {
		return false
	}

	t.summaries[index] = summary

	return true
}

func (t *table) markQuota() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.quota = true
}

func (t *table) quotaHit() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.quota
}

// close freezes the table and returns its content ordered by chunk index.
// Chunks that never reached a terminal state are reported as failed with
// reason.
func (t *table) close(reason error) *phaseResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true

	indexes := make([]int, 0, len(t.outcomes))
	for i := range t.outcomes {
		indexes = append(indexes, i)
	}
	slices.Sort(indexes)

	res := &phaseResult{
		chunks: len(indexes),
		quota:  t.quota,
		errs:   slices.Clone(t.errs),
	}

	for _, i := range indexes {
		o := t.outcomes[i]
		if !o.State.Terminal() {
			o.State = domain.ChunkFailed
			o.Err = reason.Error()
		}

		res.outcomes = append(res.outcomes, *o)

		if summary, ok := t.summaries[i]; ok {
			res.summaries = append(res.summaries, summary)
		}
	}

	return res
}

// runPhase summarizes every chunk of seq, at most opts.Parallelism at a
// time, and returns once all workers finished or ctx ended.
func (o *Orchestrator) runPhase(
	ctx context.Context,
	seq *chunker.Sequence,
	sourceURL string,
	instructions instructionsFunc,
	opts Options,
) *phaseResult {
	t := newTable()
	sem := semaphore.NewWeighted(int64(opts.Parallelism))

	dispatchCtx, stopDispatch := context.WithCancel(ctx)
	defer stopDispatch()

	var wg sync.WaitGroup

	current, ok := seq.Next()
	following, hasFollowing := seq.Next()
	multipart := hasFollowing

	undispatched := 0

	for ok {
		c := current
		t.add(c.Index)

		if err := o.acquire(dispatchCtx, sem, t); err != nil {
			// The rest of the sequence is left unread; only the chunks
			// already pulled are reported.
			t.transition(ctx, c.Index, domain.ChunkFailed, err)
			undispatched++

			if hasFollowing {
				t.add(following.Index)
				t.transition(ctx, following.Index, domain.ChunkFailed, err)
				undispatched++
			}

			o.log.WarnContext(ctx, "Stopped dispatching chunks",
				"error", err,
				"undispatched", undispatched,
				"sequenceExhausted", !hasFollowing)

			break
		}

		input := summarizer.Input{
			Text:            c.Text,
			SourceURL:       sourceURL,
			Instructions:    instructions(c.Index, multipart),
			MaxOutputTokens: opts.outputTokens(),
			Model:           opts.Model,
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			o.summarizeChunk(ctx, t, c.Index, input, opts, stopDispatch)
		}()

		current, ok = following, hasFollowing
		if ok {
			following, hasFollowing = seq.Next()
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		o.log.WarnContext(ctx, "Abandoning in-flight chunk requests",
			"error", ctx.Err())
	}

	reason := errNotDispatched
	if ctx.Err() != nil {
		reason = fmt.Errorf("abandoned: %w", ctx.Err())
	}

	res := t.close(reason)
	res.canceled = ctx.Err() != nil
	res.hardSplits = seq.HardSplits()
	res.undispatched = undispatched

	return res
}

// acquire waits for a worker slot. It refuses once the run is canceled or
// the backend reported exhausted quota.
func (o *Orchestrator) acquire(ctx context.Context, sem *semaphore.Weighted, t *table) error {
	if t.quotaHit() {
		return fmt.Errorf("%w: quota exceeded", errNotDispatched)
	}

	if err := sem.Acquire(ctx, 1); err != nil {
		if t.quotaHit() {
			return fmt.Errorf("%w: quota exceeded", errNotDispatched)
		}

		return fmt.Errorf("%w: %w", errNotDispatched, err)
	}

	if err := ctx.Err(); err != nil || t.quotaHit() {
		sem.Release(1)

		if err == nil {
			return fmt.Errorf("%w: quota exceeded", errNotDispatched)
		}

		return fmt.Errorf("%w: %w", errNotDispatched, err)
	}

	return nil
}

func (o *Orchestrator) summarizeChunk(
	ctx context.Context,
	t *table,
	index int,
	input summarizer.Input,
	opts Options,
	stopDispatch context.CancelFunc,
) {
	var lastErr error
	attempt := 0

	err := retry.Do(ctx, newBackoff(opts), func(ctx context.Context) error {
		attempt++

		if !t.transition(ctx, index, domain.ChunkInFlight, nil) {
			if err := ctx.Err(); err != nil {
				return err
			}

			return errNotDispatched
		}

		o.metrics.inFlight.Inc()
		summary, err := o.summarizer.Summarize(ctx, input)
		o.metrics.inFlight.Dec()

		if err == nil && strings.TrimSpace(summary) == "" {
			err = summarizer.ErrEmptyOutput
		}

		if err == nil {
			if t.succeed(ctx, index, strings.TrimSpace(summary)) {
				o.metrics.request(outcomeSucceeded)
			} else {
				o.metrics.request(outcomeCanceled)
			}

			return nil
		}

		lastErr = err

		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
			o.metrics.request(outcomeCanceled)
			return err
		}

		switch summarizer.Classify(err) {
		case summarizer.FailureTransient:
			o.metrics.request(outcomeTransient)

			if attempt > opts.MaxRetries {
				return err
			}

			o.metrics.retries.Inc()

			o.log.WarnContext(ctx, "Chunk request failed, retrying",
				"error", err,
				"chunkIndex", index)

			t.transition(ctx, index, domain.ChunkRetrying, err)

			return retry.RetryableError(err)
		case summarizer.FailureQuota:
			o.metrics.request(outcomeQuota)

			t.markQuota()
			stopDispatch()

			return err
		default:
			o.metrics.request(outcomePermanent)

			return err
		}
	})
	if err == nil {
		return
	}

	if lastErr == nil {
		lastErr = err
	}

	if t.transition(ctx, index, domain.ChunkFailed, lastErr) {
		o.log.WarnContext(ctx, "Chunk failed",
			"error", lastErr,
			"chunkIndex", index)
	}
}

func newBackoff(opts Options) retry.Backoff {
	b := retry.NewExponential(opts.RetryBaseDelay)
	b = retry.WithCappedDuration(opts.RetryMaxDelay, b)

	if jitter := opts.RetryBaseDelay / 2; jitter > 0 {
		b = retry.WithJitter(jitter, b)
	}

	return retry.WithMaxRetries(uint64(opts.MaxRetries), b)
}
