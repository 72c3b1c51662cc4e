// Package extractor turns source handles (text, paths, URLs, identifiers)
// into canonical documents. Every failure is a *domain.ExtractionError;
// nothing here retries.
package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"distill/internal/domain"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0.0.0 Safari/537.36"

	DefaultYouTubeBaseURL  = "https://www.youtube.com"
	DefaultArxivAPIURL     = "https://export.arxiv.org/api/query"
	DefaultArxivPDFBaseURL = "https://arxiv.org/pdf"
	DefaultArxivAbsBaseURL = "https://arxiv.org/abs"
)

type Extractor interface {
	Extract(ctx context.Context, handle string) (*domain.Document, error)
}

type Config struct {
	Timeout   time.Duration
	UserAgent string
	// VideoLanguages lists caption languages in order of preference.
	VideoLanguages  []string
	YouTubeBaseURL  string
	ArxivAPIURL     string
	ArxivPDFBaseURL string
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	if len(c.VideoLanguages) == 0 {
		c.VideoLanguages = []string{"en"}
	}
	if c.YouTubeBaseURL == "" {
		c.YouTubeBaseURL = DefaultYouTubeBaseURL
	}
	if c.ArxivAPIURL == "" {
		c.ArxivAPIURL = DefaultArxivAPIURL
	}
	if c.ArxivPDFBaseURL == "" {
		c.ArxivPDFBaseURL = DefaultArxivPDFBaseURL
	}

	return c
}

// Set holds one extractor per source kind.
type Set struct {
	extractors map[domain.SourceKind]Extractor
	log        *slog.Logger
}

func NewSet(cfg Config, log *slog.Logger) *Set {
	cfg = cfg.withDefaults()
	client := newHTTPClient(cfg)

	pdf := NewPDF(client, log)

	return &Set{
		extractors: map[domain.SourceKind]Extractor{
			domain.SourceText:    Text{},
			domain.SourceFile:    NewFile(log),
			domain.SourceWebpage: NewWebpage(client, log),
			domain.SourceVideo:   NewVideo(client, cfg.YouTubeBaseURL, cfg.VideoLanguages, log),
			domain.SourcePDF:     pdf,
			domain.SourceArxiv:   NewArxiv(cfg.ArxivAPIURL, cfg.ArxivPDFBaseURL, cfg.UserAgent, pdf, log),
		},
		log: log,
	}
}

// Get returns the extractor for kind.
func (s *Set) Get(kind domain.SourceKind) (Extractor, bool) {
	e, ok := s.extractors[kind]
	return e, ok
}

func (s *Set) Extract(
	ctx context.Context,
	kind domain.SourceKind,
	handle string,
) (*domain.Document, error) {
	e, ok := s.Get(kind)
	if !ok {
		return nil, domain.NewExtractionError(domain.ExtractionUnsupported, kind, handle,
			fmt.Errorf("no extractor for kind %q", kind))
	}

	started := time.Now()

	doc, err := e.Extract(ctx, handle)
	if err != nil {
		return nil, err
	}

	s.log.DebugContext(ctx, "Extracted document",
		"kind", kind,
		"handle", doc.Handle(),
		"textLength", len(doc.Text()),
		"duration", time.Since(started))

	return doc, nil
}
