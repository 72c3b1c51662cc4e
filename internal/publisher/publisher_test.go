package publisher_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"distill/internal/domain"
	"distill/internal/publisher"
)

func testResult() *domain.SummaryResult {
	return &domain.SummaryResult{
		RunID:          "run-1",
		FinalText:      "First point. Second point.",
		SourceKind:     domain.SourceWebpage,
		SourceHandle:   "https://example.com/post",
		SourceMetadata: map[string]string{"title": "Example post", "url": "https://example.com/post"},
		ChunkCount:     2,
		Model:          "gpt-5-mini",
		Outcomes: []domain.ChunkOutcome{
			{Index: 0, State: domain.ChunkSucceeded, Attempts: 1},
			{Index: 1, State: domain.ChunkSucceeded, Attempts: 1},
		},
		ReduceDepth: 1,
	}
}

func TestWriterPublish(t *testing.T) {
	var out bytes.Buffer

	if err := publisher.NewWriter(&out, false).Publish(context.Background(), testResult()); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}

	got := out.String()
	if !strings.HasPrefix(got, "First point. Second point.\n\n---\n") {
		t.Fatalf("unexpected output: %q", got)
	}

	if !strings.Contains(got, "source: webpage https://example.com/post (Example post)") {
		t.Fatalf("missing provenance: %q", got)
	}

	if strings.Contains(got, "warning") {
		t.Fatalf("complete result must not carry a warning: %q", got)
	}
}

func TestWriterPublishPartialWithBullets(t *testing.T) {
	var out bytes.Buffer

	r := testResult()
	r.MarkPartial(domain.PartialChunksFailed)

	if err := publisher.NewWriter(&out, true).Publish(context.Background(), r); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}

	got := out.String()
	if !strings.HasPrefix(got, "warning: partial summary (chunks_failed)\n\n* ") {
		t.Fatalf("unexpected output: %q", got)
	}
}

func TestFilePublish(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.txt")

	if err := publisher.NewFile(path, false).Publish(context.Background(), testResult()); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}

	if !strings.HasPrefix(string(data), "First point.") {
		t.Fatalf("unexpected file content: %q", data)
	}
}

type failingPublisher struct{ calls int }

func (p *failingPublisher) Publish(context.Context, *domain.SummaryResult) error {
	p.calls++
	return errors.New("unavailable")
}

func TestMultiPublishesToAll(t *testing.T) {
	var out bytes.Buffer
	failing := &failingPublisher{}

	err := publisher.Multi{failing, publisher.NewWriter(&out, false)}.Publish(context.Background(), testResult())
	if err == nil || !strings.Contains(err.Error(), "unavailable") {
		t.Fatalf("expected joined error, got %v", err)
	}

	if failing.calls != 1 || out.Len() == 0 {
		t.Fatalf("every publisher must run, calls=%d written=%d", failing.calls, out.Len())
	}
}

type telegramServer struct {
	mu     sync.Mutex
	bodies []string
	status int
}

func (s *telegramServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	s.bodies = append(s.bodies, string(body))
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	if s.status != 0 {
		w.WriteHeader(s.status)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
		return
	}

	if !strings.HasSuffix(r.URL.Path, "/sendMessage") {
		http.NotFound(w, r)
		return
	}

	_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":1700000000,"chat":{"id":42,"type":"private"}}}`))
}

func newTelegram(t *testing.T, handler http.Handler) *publisher.Telegram {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	tg, err := publisher.NewTelegram("123456:TEST", 42, server.URL, log)
	if err != nil {
		t.Fatalf("NewTelegram returned error: %v", err)
	}

	return tg
}

func TestTelegramPublish(t *testing.T) {
	server := &telegramServer{}
	tg := newTelegram(t, server)

	if err := tg.Publish(context.Background(), testResult()); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}

	if len(server.bodies) != 1 {
		t.Fatalf("expected one message, got %d", len(server.bodies))
	}

	body := server.bodies[0]
	for _, want := range []string{"MarkdownV2", "42", "Example post", "Second point"} {
		if !strings.Contains(body, want) {
			t.Fatalf("request body misses %q: %s", want, body)
		}
	}
}

func TestTelegramPublishSplitsLongSummaries(t *testing.T) {
	server := &telegramServer{}
	tg := newTelegram(t, server)

	r := testResult()
	r.FinalText = strings.Repeat("word ", 2000)

	if err := tg.Publish(context.Background(), r); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}

	if len(server.bodies) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(server.bodies))
	}
}

func TestTelegramPublishError(t *testing.T) {
	tg := newTelegram(t, &telegramServer{status: http.StatusBadRequest})

	if err := tg.Publish(context.Background(), testResult()); err == nil {
		t.Fatalf("expected an error from the Bot API")
	}
}
