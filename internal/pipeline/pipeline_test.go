package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"distill/internal/chunker"
	"distill/internal/config"
	"distill/internal/domain"
	"distill/internal/extractor"
	"distill/internal/orchestrator"
	"distill/internal/pipeline"
	"distill/internal/summarizer"
)

type memoryStore struct {
	mu      sync.Mutex
	saved   []*domain.SummaryResult
	failing bool
}

func (s *memoryStore) SaveSummary(_ context.Context, r *domain.SummaryResult) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failing {
		return 0, errors.New("disk full")
	}

	s.saved = append(s.saved, r)

	return int64(len(s.saved)), nil
}

type recordingSummarizer struct {
	mu     sync.Mutex
	models []string
	fn     func(ctx context.Context, input summarizer.Input) (string, error)
}

func (s *recordingSummarizer) Summarize(ctx context.Context, input summarizer.Input) (string, error) {
	s.mu.Lock()
	s.models = append(s.models, input.Model)
	s.mu.Unlock()

	return s.fn(ctx, input)
}

func (s *recordingSummarizer) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.models)
}

func shorten(_ context.Context, input summarizer.Input) (string, error) {
	fields := strings.Fields(input.Text)
	return fields[0], nil
}

func newPipeline(
	t *testing.T,
	s summarizer.Summarizer,
	store pipeline.Store,
	defaults pipeline.Defaults,
) *pipeline.Pipeline {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	c, err := chunker.New(chunker.WordCounter{}, chunker.Options{MaxTokens: 100})
	if err != nil {
		t.Fatalf("new chunker: %v", err)
	}

	return pipeline.New(
		extractor.NewSet(extractor.Config{}, log),
		c,
		orchestrator.New(s, c, nil, log),
		store,
		defaults,
		log,
	)
}

func testDefaults() pipeline.Defaults {
	return pipeline.Defaults{
		MaxTokens:      100,
		TargetLength:   50,
		Model:          "default-model",
		Timeout:        5 * time.Second,
		MaxRetries:     1,
		Parallelism:    2,
		MaxDepth:       2,
		RetryBaseDelay: time.Millisecond,
		RetryMaxDelay:  time.Millisecond,
	}
}

func TestSummarizeTextStoresResult(t *testing.T) {
	store := &memoryStore{}
	s := &recordingSummarizer{fn: shorten}
	p := newPipeline(t, s, store, testDefaults())

	result, err := p.SummarizeText(context.Background(), "Short input text.", pipeline.Options{})
	if err != nil {
		t.Fatalf("SummarizeText returned error: %v", err)
	}

	if result.FinalText != "Short" || result.SourceKind != domain.SourceText || result.Model != "default-model" {
		t.Fatalf("unexpected result: %+v", result)
	}

	if len(store.saved) != 1 || store.saved[0] != result {
		t.Fatalf("expected the result to be stored, got %d", len(store.saved))
	}

	if _, err = p.SummarizeText(context.Background(), "Another text.", pipeline.Options{NoStore: true}); err != nil {
		t.Fatalf("SummarizeText returned error: %v", err)
	}

	if len(store.saved) != 1 {
		t.Fatalf("NoStore must skip history, got %d saved", len(store.saved))
	}
}

func TestSummarizeAppliesOptions(t *testing.T) {
	s := &recordingSummarizer{fn: shorten}
	p := newPipeline(t, s, nil, testDefaults())

	result, err := p.SummarizeText(context.Background(), "One two three four. Five six seven eight.", pipeline.Options{
		MaxTokens: 4,
		Model:     "override-model",
	})
	if err != nil {
		t.Fatalf("SummarizeText returned error: %v", err)
	}

	if result.ChunkCount != 2 {
		t.Fatalf("expected MaxTokens override to give 2 chunks, got %d", result.ChunkCount)
	}

	for _, model := range s.models {
		if model != "override-model" {
			t.Fatalf("expected model override on every request, got %q", model)
		}
	}
}

func TestSummarizeEmptyDocument(t *testing.T) {
	s := &recordingSummarizer{fn: shorten}
	p := newPipeline(t, s, nil, testDefaults())

	_, err := p.SummarizeText(context.Background(), "  \n\t ", pipeline.Options{})
	if !errors.Is(err, domain.ErrEmptyDocument) {
		t.Fatalf("expected empty document error, got %v", err)
	}

	if s.calls() != 0 {
		t.Fatalf("no requests expected, got %d", s.calls())
	}
}

func TestSummarizeExtractionErrorAborts(t *testing.T) {
	s := &recordingSummarizer{fn: shorten}
	p := newPipeline(t, s, nil, testDefaults())

	_, err := p.SummarizeFile(context.Background(), filepath.Join(t.TempDir(), "missing.txt"), pipeline.Options{})
	if !errors.Is(err, domain.ErrSourceNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	var extractionErr *domain.ExtractionError
	if !errors.As(err, &extractionErr) || extractionErr.Source != domain.SourceFile {
		t.Fatalf("expected a file extraction error, got %v", err)
	}
}

func TestSummarizeTimeout(t *testing.T) {
	s := &recordingSummarizer{fn: func(ctx context.Context, _ summarizer.Input) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}

	defaults := testDefaults()
	defaults.Timeout = 20 * time.Millisecond

	p := newPipeline(t, s, nil, defaults)

	_, err := p.SummarizeText(context.Background(), "Slow text.", pipeline.Options{})
	if !errors.Is(err, domain.ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestSummarizeKeepsResultWhenStoreFails(t *testing.T) {
	store := &memoryStore{failing: true}
	p := newPipeline(t, &recordingSummarizer{fn: shorten}, store, testDefaults())

	result, err := p.SummarizeText(context.Background(), "Short input text.", pipeline.Options{})
	if err != nil || result == nil {
		t.Fatalf("expected result despite store failure, got %v", err)
	}
}

func TestNewFromConfigRequiresBackend(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	if _, err := pipeline.NewFromConfig(config.Config{Model: "gpt-5-mini", MaxTokens: 100}, nil, nil, log); err == nil {
		t.Fatalf("expected an error without credentials")
	}
}

func TestDefaultsFromConfig(t *testing.T) {
	cfg := config.Config{
		MaxTokens:      1000,
		TargetLength:   200,
		Model:          "m",
		TimeoutSeconds: 60,
		MaxRetries:     2,
		Parallelism:    3,
		MaxDepth:       4,
	}

	d := pipeline.DefaultsFromConfig(cfg)
	if d.Timeout != time.Minute || d.MaxTokens != 1000 || d.Parallelism != 3 || d.MaxDepth != 4 {
		t.Fatalf("unexpected defaults: %+v", d)
	}
}
