// Package orchestrator drives map-reduce summarization over a chunk sequence:
// every chunk is summarized concurrently with retries, then the summaries are
// merged level by level until they fit the target length.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"distill/internal/assembler"
	"distill/internal/chunker"
	"distill/internal/domain"
	"distill/internal/summarizer"

	"github.com/google/uuid"
)

type Orchestrator struct {
	summarizer summarizer.Summarizer
	chunker    *chunker.Chunker
	metrics    *Metrics
	log        *slog.Logger
	now        func() time.Time
}

// New wires an orchestrator. c re-chunks text during the reduce phase;
// metrics may be nil.
func New(
	s summarizer.Summarizer,
	c *chunker.Chunker,
	metrics *Metrics,
	log *slog.Logger,
) *Orchestrator {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	return &Orchestrator{
		summarizer: s,
		chunker:    c,
		metrics:    metrics,
		log:        log,
		now:        time.Now,
	}
}

// Run summarizes the chunks of doc. With at least one chunk summarized it
// returns a result, flagged partial when anything was left out; otherwise it
// fails with a *domain.SummarizationError.
func (o *Orchestrator) Run(
	ctx context.Context,
	doc *domain.Document,
	seq *chunker.Sequence,
	opts Options,
) (*domain.SummaryResult, error) {
	opts = opts.withDefaults()
	started := o.now()

	defer func() {
		o.metrics.runDuration.Observe(o.now().Sub(started).Seconds())
	}()

	reducer := o.chunker
	if opts.MaxTokens > 0 && opts.MaxTokens != reducer.MaxTokens() {
		var err error
		if reducer, err = reducer.WithMaxTokens(opts.MaxTokens); err != nil {
			return nil, fmt.Errorf("configure chunker: %w", err)
		}
	}

	sourceURL := doc.MetadataValue("url")

	mapped := o.runPhase(ctx, seq, sourceURL, func(index int, multipart bool) string {
		return summarizer.MapInstructions(doc.Kind(), index, multipart, opts.TargetLength, opts.Style)
	}, opts)

	o.log.InfoContext(ctx, "Map phase finished",
		"kind", doc.Kind(),
		"handle", doc.Handle(),
		"chunks", mapped.chunks,
		"succeeded", len(mapped.summaries),
		"undispatched", mapped.undispatched,
		"canceled", mapped.canceled)

	if len(mapped.summaries) == 0 {
		return nil, escalate(ctx, mapped)
	}

	parts := assembler.Parts{
		RunID:           uuid.NewString(),
		Model:           opts.Model,
		Summaries:       mapped.summaries,
		ChunkCount:      mapped.chunks,
		HardSplitChunks: mapped.hardSplits,
		Outcomes:        mapped.outcomes,
		CreatedAt:       started.UTC(),
	}

	var reasons []domain.PartialReason
	if !mapped.complete() {
		reasons = append(reasons, domain.PartialChunksFailed)
	}

	if mapped.canceled {
		reasons = append(reasons, domain.PartialCanceled)
	} else if mapped.chunks > 1 {
		reduced, depth, reason := o.reduce(ctx, doc, reducer, mapped.summaries, sourceURL, opts)
		parts.Reduced = reduced
		parts.ReduceDepth = depth

		if reason != "" {
			reasons = append(reasons, reason)
		}
	}

	result := assembler.Build(doc, parts)
	for _, reason := range reasons {
		result.MarkPartial(reason)
	}

	o.log.InfoContext(ctx, "Summarization finished",
		"runID", result.RunID,
		"kind", doc.Kind(),
		"handle", doc.Handle(),
		"chunks", result.ChunkCount,
		"reduceDepth", result.ReduceDepth,
		"partial", result.Partial,
		"partialReasons", result.PartialReasons,
		"duration", o.now().Sub(started))

	return result, nil
}

// reduce merges summaries until a single one fits opts.TargetLength. It
// returns the merged text (empty when no level completed), the number of
// completed levels and the reason the result is partial, if any.
func (o *Orchestrator) reduce(
	ctx context.Context,
	doc *domain.Document,
	reducer *chunker.Chunker,
	summaries []string,
	sourceURL string,
	opts Options,
) (string, int, domain.PartialReason) {
	counter := reducer.Counter()
	current := summaries
	joined := assembler.Assemble(current)
	reduced := ""

	for depth := 0; ; depth++ {
		if len(current) <= 1 && counter.Count(joined) <= opts.TargetLength {
			return reduced, depth, ""
		}

		if depth >= opts.MaxDepth {
			o.log.WarnContext(ctx, "Reduce depth exhausted",
				"maxDepth", opts.MaxDepth,
				"summaries", len(current),
				"tokens", counter.Count(joined))

			return reduced, depth, domain.PartialReduceDepthExceeded
		}

		level := domain.NewDocument(doc.Kind(), doc.Handle(), joined, doc.Metadata())

		seq, err := reducer.Chunks(level)
		if err != nil {
			o.log.ErrorContext(ctx, "Failed to chunk summaries",
				"error", err,
				"depth", depth+1)

			return reduced, depth, domain.PartialReduceFailed
		}

		res := o.runPhase(ctx, seq, sourceURL, func(int, bool) string {
			return summarizer.ReduceInstructions(doc.Kind(), opts.TargetLength, opts.Style)
		}, opts)

		if res.canceled {
			return reduced, depth, domain.PartialCanceled
		}

		if !res.complete() {
			o.log.WarnContext(ctx, "Reduce level failed, keeping previous level",
				"error", errors.Join(res.errs...),
				"depth", depth+1)

			return reduced, depth, domain.PartialReduceFailed
		}

		current = res.summaries
		joined = assembler.Assemble(current)
		reduced = joined
	}
}

func escalate(ctx context.Context, res *phaseResult) error {
	cause := errors.Join(res.errs...)

	switch {
	case res.canceled && errors.Is(ctx.Err(), context.DeadlineExceeded):
		return &domain.SummarizationError{Kind: domain.SummarizationTimeout, Err: ctx.Err()}
	case deadlineOnly(res.errs):
		return &domain.SummarizationError{Kind: domain.SummarizationTimeout, Err: cause}
	case res.canceled:
		return &domain.SummarizationError{Kind: domain.SummarizationCanceled, Err: ctx.Err()}
	case res.quota:
		return &domain.SummarizationError{Kind: domain.SummarizationQuotaExceeded, Err: cause}
	default:
		return &domain.SummarizationError{Kind: domain.SummarizationAllChunksFailed, Err: cause}
	}
}

// deadlineOnly reports whether every chunk failed because the run could not
// finish before its deadline, such as a rate limiter refusing to wait.
func deadlineOnly(errs []error) bool {
	if len(errs) == 0 {
		return false
	}

	for _, err := range errs {
		if !errors.Is(err, context.DeadlineExceeded) {
			return false
		}
	}

	return true
}
