package scheduler_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"distill/internal/domain"
	"distill/internal/pipeline"
	"distill/internal/scheduler"
)

type stubSource struct {
	mu         sync.Mutex
	texts      map[string]string
	summarized []string
}

func (s *stubSource) Extract(_ context.Context, kind domain.SourceKind, handle string) (*domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	text, ok := s.texts[handle]
	if !ok {
		return nil, domain.NewExtractionError(domain.ExtractionNotFound, kind, handle, nil)
	}

	return domain.NewDocument(kind, handle, text, nil), nil
}

func (s *stubSource) SummarizeDocument(
	_ context.Context,
	doc *domain.Document,
	_ pipeline.Options,
) (*domain.SummaryResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.summarized = append(s.summarized, doc.Handle())

	return &domain.SummaryResult{
		RunID:        "run-" + doc.Handle(),
		FinalText:    "summary",
		SourceKind:   doc.Kind(),
		SourceHandle: doc.Handle(),
	}, nil
}

type stubStore struct {
	mu      sync.Mutex
	watches []domain.Watch
	before  time.Time
}

func (s *stubStore) ListWatches(context.Context) ([]domain.Watch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]domain.Watch(nil), s.watches...), nil
}

func (s *stubStore) UpdateWatchHash(_ context.Context, id int64, hash string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.watches {
		if s.watches[i].ID == id {
			s.watches[i].LastHash = hash
			s.watches[i].LastRunAt = at
		}
	}

	return nil
}

func (s *stubStore) PruneSummaries(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.before = before

	return 3, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	runIDs []string
}

func (p *recordingPublisher) Publish(_ context.Context, r *domain.SummaryResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.runIDs = append(p.runIDs, r.RunID)

	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCheckWatchesSummarizesChangedSources(t *testing.T) {
	source := &stubSource{texts: map[string]string{
		"https://example.com/a": "first version",
		"https://example.com/b": "unchanged",
	}}
	unchanged := domain.NewDocument(domain.SourceWebpage, "https://example.com/b", "unchanged", nil)

	store := &stubStore{watches: []domain.Watch{
		{ID: 1, Kind: domain.SourceWebpage, Handle: "https://example.com/a"},
		{ID: 2, Kind: domain.SourceWebpage, Handle: "https://example.com/b", LastHash: unchanged.Hash()},
	}}
	pub := &recordingPublisher{}

	s := scheduler.New(context.Background(), source, store, pub, scheduler.Config{}, discardLogger())

	if err := s.CheckWatches(context.Background()); err != nil {
		t.Fatalf("CheckWatches returned error: %v", err)
	}

	if len(source.summarized) != 1 || source.summarized[0] != "https://example.com/a" {
		t.Fatalf("expected only the changed source, got %v", source.summarized)
	}

	if len(pub.runIDs) != 1 || pub.runIDs[0] != "run-https://example.com/a" {
		t.Fatalf("unexpected published runs: %v", pub.runIDs)
	}

	if store.watches[0].LastHash == "" || store.watches[0].LastRunAt.IsZero() {
		t.Fatalf("watch hash must be updated: %+v", store.watches[0])
	}

	if err := s.CheckWatches(context.Background()); err != nil {
		t.Fatalf("CheckWatches returned error: %v", err)
	}

	if len(source.summarized) != 1 {
		t.Fatalf("second check must skip unchanged sources, got %v", source.summarized)
	}
}

func TestCheckWatchesContinuesAfterFailure(t *testing.T) {
	source := &stubSource{texts: map[string]string{"present.txt": "content"}}
	store := &stubStore{watches: []domain.Watch{
		{ID: 1, Kind: domain.SourceFile, Handle: "missing.txt"},
		{ID: 2, Kind: domain.SourceFile, Handle: "present.txt"},
	}}

	s := scheduler.New(context.Background(), source, store, nil, scheduler.Config{}, discardLogger())

	err := s.CheckWatches(context.Background())
	if !errors.Is(err, domain.ErrSourceNotFound) {
		t.Fatalf("expected the missing source error, got %v", err)
	}

	if len(source.summarized) != 1 || source.summarized[0] != "present.txt" {
		t.Fatalf("remaining watches must still run, got %v", source.summarized)
	}
}

func TestPrune(t *testing.T) {
	store := &stubStore{}
	s := scheduler.New(context.Background(), &stubSource{}, store, nil, scheduler.Config{
		Retention: 24 * time.Hour,
	}, discardLogger())

	deleted, err := s.Prune(context.Background())
	if err != nil || deleted != 3 {
		t.Fatalf("Prune = %d, %v", deleted, err)
	}

	age := time.Since(store.before)
	if age < 24*time.Hour || age > 25*time.Hour {
		t.Fatalf("unexpected cutoff: %v", store.before)
	}
}

func TestPruneDisabled(t *testing.T) {
	store := &stubStore{}
	s := scheduler.New(context.Background(), &stubSource{}, store, nil, scheduler.Config{}, discardLogger())

	if deleted, err := s.Prune(context.Background()); err != nil || deleted != 0 || !store.before.IsZero() {
		t.Fatalf("pruning must be disabled without retention")
	}
}

func TestStartRejectsInvalidSpec(t *testing.T) {
	s := scheduler.New(context.Background(), &stubSource{}, &stubStore{}, nil, scheduler.Config{
		WatchSpec: "not a spec",
	}, discardLogger())

	if err := s.Start(); err == nil {
		s.Stop()
		t.Fatalf("expected an invalid spec error")
	}
}

func TestStartStop(t *testing.T) {
	s := scheduler.New(context.Background(), &stubSource{}, &stubStore{}, nil, scheduler.Config{
		Retention: time.Hour,
	}, discardLogger())

	if err := s.Start(); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	s.Stop()
}
