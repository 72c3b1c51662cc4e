package summarizer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CachingSummarizer remembers summaries of identical requests for a while,
// so re-running a source or a watch does not pay for unchanged chunks twice.
type CachingSummarizer struct {
	next  Summarizer
	cache *expirable.LRU[string, string]
	log   *slog.Logger
}

// NewCachingSummarizer returns next unchanged when maxEntries is not positive.
func NewCachingSummarizer(
	next Summarizer,
	maxEntries int,
	ttl time.Duration,
	log *slog.Logger,
) Summarizer {
	if maxEntries <= 0 {
		return next
	}

	return &CachingSummarizer{
		next:  next,
		cache: expirable.NewLRU[string, string](maxEntries, nil, ttl),
		log:   log,
	}
}

func (c *CachingSummarizer) Summarize(ctx context.Context, input Input) (string, error) {
	key := cacheKey(input)
	if key == "" {
		return c.next.Summarize(ctx, input)
	}

	if summary, ok := c.cache.Get(key); ok {
		c.log.DebugContext(ctx, "Summary cache hit",
			"model", input.Model,
			"textLength", len(input.Text))

		return summary, nil
	}

	summary, err := c.next.Summarize(ctx, input)
	if err != nil {
		return "", err
	}

	if summary != "" {
		c.cache.Add(key, summary)
	}

	return summary, nil
}

func (c *CachingSummarizer) Len() int {
	return c.cache.Len()
}

func cacheKey(input Input) string {
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return ""
	}

	h := sha256.New()
	for _, part := range []string{
		strings.TrimSpace(input.Model),
		strings.TrimSpace(input.Instructions),
		strings.TrimSpace(input.SourceURL),
		strconv.FormatInt(input.MaxOutputTokens, 10),
		text,
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}

	return hex.EncodeToString(h.Sum(nil))
}
