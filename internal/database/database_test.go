package database_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"distill/internal/database"
	"distill/internal/domain"
)

func newDatabase(t *testing.T) *database.Database {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := database.New(context.Background(), filepath.Join(t.TempDir(), "test.sqlite"), log)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("close database: %v", err)
		}
	})

	return db
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.sqlite")
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	for range 2 {
		db, err := database.New(context.Background(), path, log)
		if err != nil {
			t.Fatalf("open database: %v", err)
		}

		version, err := db.SchemaVersion(context.Background())
		if err != nil || version != 1 {
			t.Fatalf("SchemaVersion = %d, %v; want 1", version, err)
		}

		if err := db.Close(); err != nil {
			t.Fatalf("close database: %v", err)
		}
	}
}

func TestSummaries(t *testing.T) {
	ctx := context.Background()
	db := newDatabase(t)

	old := &domain.SummaryResult{
		RunID:          "run-old",
		FinalText:      "old summary",
		SourceKind:     domain.SourceWebpage,
		SourceHandle:   "https://example.com",
		SourceMetadata: map[string]string{"title": "Example"},
		ChunkCount:     1,
		Model:          "gpt-5-mini",
		CreatedAt:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	fresh := &domain.SummaryResult{
		RunID:        "run-new",
		FinalText:    "new summary",
		SourceKind:   domain.SourceArxiv,
		SourceHandle: "2301.00001",
		ChunkCount:   3,
		Model:        "claude-sonnet-4-5",
		Partial:      true,
		CreatedAt:    time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}

	oldID, err := db.SaveSummary(ctx, old)
	if err != nil {
		t.Fatalf("save summary: %v", err)
	}

	if _, err = db.SaveSummary(ctx, fresh); err != nil {
		t.Fatalf("save summary: %v", err)
	}

	got, err := db.GetSummary(ctx, oldID)
	if err != nil {
		t.Fatalf("get summary: %v", err)
	}

	if got.RunID != "run-old" || got.FinalText != "old summary" || got.Kind != domain.SourceWebpage ||
		got.Metadata["title"] != "Example" || !got.CreatedAt.Equal(old.CreatedAt) {
		t.Fatalf("unexpected stored summary: %+v", got)
	}

	list, err := db.ListSummaries(ctx, 10)
	if err != nil {
		t.Fatalf("list summaries: %v", err)
	}

	if len(list) != 2 || list[0].RunID != "run-new" || !list[0].Partial || list[0].ChunkCount != 3 {
		t.Fatalf("unexpected summaries: %+v", list)
	}

	removed, err := db.PruneSummaries(ctx, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("prune summaries: %v", err)
	}

	if removed != 1 {
		t.Fatalf("expected one pruned summary, got %d", removed)
	}

	if _, err = db.GetSummary(ctx, oldID); !errors.Is(err, database.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestWatches(t *testing.T) {
	ctx := context.Background()
	db := newDatabase(t)

	id, err := db.AddWatch(ctx, domain.SourceWebpage, " https://example.com ")
	if err != nil {
		t.Fatalf("add watch: %v", err)
	}

	again, err := db.AddWatch(ctx, domain.SourceWebpage, "https://example.com")
	if err != nil {
		t.Fatalf("add watch again: %v", err)
	}

	if again != id {
		t.Fatalf("expected duplicate watch to return id %d, got %d", id, again)
	}

	if _, err = db.AddWatch(ctx, domain.SourceKind("audio"), "x"); err == nil {
		t.Fatalf("expected unknown kind to be rejected")
	}

	runAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err = db.UpdateWatchHash(ctx, id, "abc", runAt); err != nil {
		t.Fatalf("update watch hash: %v", err)
	}

	watches, err := db.ListWatches(ctx)
	if err != nil {
		t.Fatalf("list watches: %v", err)
	}

	if len(watches) != 1 {
		t.Fatalf("expected one watch, got %d", len(watches))
	}

	w := watches[0]
	if w.Handle != "https://example.com" || w.LastHash != "abc" || !w.LastRunAt.Equal(runAt) {
		t.Fatalf("unexpected watch: %+v", w)
	}

	if err = db.RemoveWatch(ctx, id); err != nil {
		t.Fatalf("remove watch: %v", err)
	}

	if err = db.RemoveWatch(ctx, id); !errors.Is(err, database.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
