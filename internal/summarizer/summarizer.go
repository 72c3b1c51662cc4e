package summarizer

import (
	"context"
)

// Input describes the payload for a summary request.
type Input struct {
	// Text contains the plain text to summarise.
	Text string
	// SourceURL is optional metadata that helps the model reference the origin.
	SourceURL string
	// Instructions is the system prompt for the request.
	Instructions string
	// MaxOutputTokens is the initial output budget; backends may grow it once
	// the model stops early.
	MaxOutputTokens int64
	// Model overrides the backend default when set.
	Model string
}

// Summarizer submits text plus instructions and returns generated text or a
// failure that Classify can interpret. Implementations are safe for
// concurrent use.
type Summarizer interface {
	Summarize(ctx context.Context, input Input) (string, error)
}

// SummarizerFunc adapts a function to Summarizer.
type SummarizerFunc func(ctx context.Context, input Input) (string, error)

func (f SummarizerFunc) Summarize(ctx context.Context, input Input) (string, error) {
	return f(ctx, input)
}
