package orchestrator

import (
	"time"

	"distill/internal/summarizer"
)

const (
	DefaultTargetLength   = 400
	DefaultParallelism    = 4
	DefaultMaxDepth       = 3
	DefaultRetryBaseDelay = time.Second
	DefaultRetryMaxDelay  = 30 * time.Second

	minOutputTokens = 256
)

// Options tune a single run. MaxRetries is taken as is, so zero disables
// retries; other zero values fall back to the defaults above.
type Options struct {
	// MaxTokens caps chunk size; zero keeps the chunker's bound.
	MaxTokens int
	// TargetLength is the desired size of the final summary in tokens.
	TargetLength   int
	Model          string
	MaxRetries     int
	Parallelism    int
	MaxDepth       int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	Style          summarizer.Style
}

func (o Options) withDefaults() Options {
	if o.TargetLength <= 0 {
		o.TargetLength = DefaultTargetLength
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.Parallelism <= 0 {
		o.Parallelism = DefaultParallelism
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	if o.RetryBaseDelay <= 0 {
		o.RetryBaseDelay = DefaultRetryBaseDelay
	}
	if o.RetryMaxDelay <= 0 {
		o.RetryMaxDelay = DefaultRetryMaxDelay
	}
	if o.RetryMaxDelay < o.RetryBaseDelay {
		o.RetryMaxDelay = o.RetryBaseDelay
	}
	if o.Style == "" {
		o.Style = summarizer.StyleProse
	}

	return o
}

// outputTokens leaves the model room above the target so it rarely stops
// mid-sentence.
func (o Options) outputTokens() int64 {
	return int64(max(2*o.TargetLength, minOutputTokens))
}
