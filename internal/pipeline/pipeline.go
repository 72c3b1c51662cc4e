// Package pipeline is the inbound surface: one entry point per source kind,
// each running extraction, chunking, summarization and assembly under one
// deadline.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"distill/internal/chunker"
	"distill/internal/domain"
	"distill/internal/extractor"
	"distill/internal/orchestrator"
	"distill/internal/summarizer"
)

// Store keeps summary history. It is optional.
type Store interface {
	SaveSummary(ctx context.Context, r *domain.SummaryResult) (int64, error)
}

// Options override the process defaults for one call. Zero values keep the
// defaults; a negative MaxRetries disables retries.
type Options struct {
	MaxTokens      int
	TargetLength   int
	Model          string
	TimeoutSeconds int
	MaxRetries     int
	Style          summarizer.Style
	// NoStore skips saving the result to history.
	NoStore bool
}

// Defaults are resolved once from configuration at process start.
type Defaults struct {
	MaxTokens      int
	TargetLength   int
	Model          string
	Timeout        time.Duration
	MaxRetries     int
	Parallelism    int
	MaxDepth       int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
}

type Pipeline struct {
	extractors   *extractor.Set
	chunker      *chunker.Chunker
	orchestrator *orchestrator.Orchestrator
	store        Store
	defaults     Defaults
	log          *slog.Logger
}

func New(
	extractors *extractor.Set,
	c *chunker.Chunker,
	o *orchestrator.Orchestrator,
	store Store,
	defaults Defaults,
	log *slog.Logger,
) *Pipeline {
	return &Pipeline{
		extractors:   extractors,
		chunker:      c,
		orchestrator: o,
		store:        store,
		defaults:     defaults,
		log:          log,
	}
}

func (p *Pipeline) SummarizeText(ctx context.Context, text string, opts Options) (*domain.SummaryResult, error) {
	return p.Summarize(ctx, domain.SourceText, text, opts)
}

func (p *Pipeline) SummarizeFile(ctx context.Context, path string, opts Options) (*domain.SummaryResult, error) {
	return p.Summarize(ctx, domain.SourceFile, path, opts)
}

func (p *Pipeline) SummarizeWebpage(ctx context.Context, url string, opts Options) (*domain.SummaryResult, error) {
	return p.Summarize(ctx, domain.SourceWebpage, url, opts)
}

func (p *Pipeline) SummarizeVideo(ctx context.Context, handle string, opts Options) (*domain.SummaryResult, error) {
	return p.Summarize(ctx, domain.SourceVideo, handle, opts)
}

func (p *Pipeline) SummarizePDF(ctx context.Context, handle string, opts Options) (*domain.SummaryResult, error) {
	return p.Summarize(ctx, domain.SourcePDF, handle, opts)
}

func (p *Pipeline) SummarizeArxiv(ctx context.Context, handle string, opts Options) (*domain.SummaryResult, error) {
	return p.Summarize(ctx, domain.SourceArxiv, handle, opts)
}

// Summarize extracts the source and summarizes it. Extraction and chunking
// errors abort the run.
func (p *Pipeline) Summarize(
	ctx context.Context,
	kind domain.SourceKind,
	handle string,
	opts Options,
) (*domain.SummaryResult, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout(opts))
	defer cancel()

	doc, err := p.Extract(ctx, kind, handle)
	if err != nil {
		return nil, err
	}

	return p.summarize(ctx, doc, opts)
}

// SummarizeDocument summarizes an already extracted document.
func (p *Pipeline) SummarizeDocument(
	ctx context.Context,
	doc *domain.Document,
	opts Options,
) (*domain.SummaryResult, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout(opts))
	defer cancel()

	return p.summarize(ctx, doc, opts)
}

func (p *Pipeline) Extract(ctx context.Context, kind domain.SourceKind, handle string) (*domain.Document, error) {
	doc, err := p.extractors.Extract(ctx, kind, handle)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}

	return doc, nil
}

func (p *Pipeline) summarize(
	ctx context.Context,
	doc *domain.Document,
	opts Options,
) (*domain.SummaryResult, error) {
	runOpts := p.orchestratorOptions(opts)

	c := p.chunker
	if runOpts.MaxTokens != c.MaxTokens() {
		var err error
		if c, err = c.WithMaxTokens(runOpts.MaxTokens); err != nil {
			return nil, fmt.Errorf("configure chunker: %w", err)
		}
	}

	seq, err := c.Chunks(doc)
	if err != nil {
		return nil, fmt.Errorf("chunk: %w", err)
	}

	result, err := p.orchestrator.Run(ctx, doc, seq, runOpts)
	if err != nil {
		return nil, err
	}

	if p.store != nil && !opts.NoStore {
		// The caller still gets the summary when history is unavailable.
		if _, saveErr := p.store.SaveSummary(ctx, result); saveErr != nil {
			p.log.ErrorContext(ctx, "Failed to save summary",
				"error", saveErr,
				"runID", result.RunID,
				"kind", result.SourceKind,
				"handle", result.SourceHandle)
		}
	}

	return result, nil
}

func (p *Pipeline) timeout(opts Options) time.Duration {
	if opts.TimeoutSeconds > 0 {
		return time.Duration(opts.TimeoutSeconds) * time.Second
	}

	if p.defaults.Timeout > 0 {
		return p.defaults.Timeout
	}

	return 5 * time.Minute
}

func (p *Pipeline) orchestratorOptions(opts Options) orchestrator.Options {
	d := p.defaults

	runOpts := orchestrator.Options{
		MaxTokens:      d.MaxTokens,
		TargetLength:   d.TargetLength,
		Model:          d.Model,
		MaxRetries:     d.MaxRetries,
		Parallelism:    d.Parallelism,
		MaxDepth:       d.MaxDepth,
		RetryBaseDelay: d.RetryBaseDelay,
		RetryMaxDelay:  d.RetryMaxDelay,
		Style:          opts.Style,
	}

	if opts.MaxTokens > 0 {
		runOpts.MaxTokens = opts.MaxTokens
	}
	if runOpts.MaxTokens <= 0 {
		runOpts.MaxTokens = p.chunker.MaxTokens()
	}
	if opts.TargetLength > 0 {
		runOpts.TargetLength = opts.TargetLength
	}
	if opts.Model != "" {
		runOpts.Model = opts.Model
	}
	switch {
	case opts.MaxRetries > 0:
		runOpts.MaxRetries = opts.MaxRetries
	case opts.MaxRetries < 0:
		runOpts.MaxRetries = 0
	}

	return runOpts
}
