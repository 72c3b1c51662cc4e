package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"distill/internal/chunker"
	"distill/internal/config"
	"distill/internal/extractor"
	"distill/internal/orchestrator"
	"distill/internal/ratelimiter"
	"distill/internal/summarizer"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultsFromConfig maps configuration onto per-run defaults.
func DefaultsFromConfig(cfg config.Config) Defaults {
	return Defaults{
		MaxTokens:      cfg.MaxTokens,
		TargetLength:   cfg.TargetLength,
		Model:          cfg.Model,
		Timeout:        cfg.Timeout(),
		MaxRetries:     cfg.MaxRetries,
		Parallelism:    cfg.Parallelism,
		MaxDepth:       cfg.MaxDepth,
		RetryBaseDelay: cfg.RetryBaseDelay,
		RetryMaxDelay:  cfg.RetryMaxDelay,
	}
}

// NewSummarizer builds the model client stack: a router over every backend
// with credentials, behind the summary cache and the rate limiter.
func NewSummarizer(cfg config.Config, log *slog.Logger) (summarizer.Summarizer, error) {
	router := summarizer.NewRouter(cfg.Model)
	registered := 0

	if strings.TrimSpace(cfg.OpenAIAPIKey) != "" {
		openAI, err := summarizer.NewOpenAISummarizer(summarizer.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("create OpenAI summarizer: %w", err)
		}

		router.Register(summarizer.ProviderOpenAI, openAI)
		registered++
	}

	if strings.TrimSpace(cfg.AnthropicAPIKey) != "" {
		anthropic, err := summarizer.NewAnthropicSummarizer(summarizer.AnthropicConfig{
			APIKey:  cfg.AnthropicAPIKey,
			BaseURL: cfg.AnthropicBaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("create Anthropic summarizer: %w", err)
		}

		router.Register(summarizer.ProviderAnthropic, anthropic)
		registered++
	}

	if registered == 0 {
		return nil, errors.New("no summarizer backend is configured")
	}

	cached := summarizer.NewCachingSummarizer(router, cfg.CacheSize, cfg.CacheTTL, log)

	return ratelimiter.New(cached, cfg.RateLimitRPS, cfg.RateLimitBurst, log), nil
}

// NewChunker counts tokens with the model's encoding, falling back to words
// when the encoding cannot be loaded.
func NewChunker(cfg config.Config, log *slog.Logger) (*chunker.Chunker, error) {
	var counter chunker.TokenCounter

	tiktoken, err := chunker.NewTiktokenCounter(cfg.Model)
	if err != nil {
		log.Warn("Failed to load token encoding, counting words instead",
			"error", err,
			"model", cfg.Model)

		counter = chunker.WordCounter{}
	} else {
		counter = tiktoken
	}

	return chunker.New(counter, chunker.Options{
		MaxTokens:      cfg.MaxTokens,
		StripCitations: cfg.StripCitations,
	})
}

// NewFromConfig wires a complete pipeline. store and reg may be nil.
func NewFromConfig(
	cfg config.Config,
	store Store,
	reg prometheus.Registerer,
	log *slog.Logger,
) (*Pipeline, error) {
	s, err := NewSummarizer(cfg, log)
	if err != nil {
		return nil, err
	}

	c, err := NewChunker(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("create chunker: %w", err)
	}

	extractors := extractor.NewSet(extractor.Config{
		VideoLanguages: cfg.VideoLanguages,
	}, log)

	o := orchestrator.New(s, c, orchestrator.NewMetrics(reg), log)

	return New(extractors, c, o, store, DefaultsFromConfig(cfg), log), nil
}
