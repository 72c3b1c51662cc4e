package summarizer

import (
	"context"
	"fmt"
	"strings"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// ProviderForModel maps a model identifier to the backend serving it.
func ProviderForModel(model string) string {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(model)), "claude") {
		return ProviderAnthropic
	}

	return ProviderOpenAI
}

// Router forwards each request to the backend serving its model.
type Router struct {
	defaultModel string
	backends     map[string]Summarizer
}

func NewRouter(defaultModel string) *Router {
	return &Router{
		defaultModel: strings.TrimSpace(defaultModel),
		backends:     make(map[string]Summarizer),
	}
}

func (r *Router) Register(provider string, s Summarizer) {
	r.backends[provider] = s
}

func (r *Router) DefaultModel() string {
	return r.defaultModel
}

func (r *Router) Summarize(ctx context.Context, input Input) (string, error) {
	if strings.TrimSpace(input.Model) == "" {
		input.Model = r.defaultModel
	}

	provider := ProviderForModel(input.Model)
	backend, ok := r.backends[provider]
	if !ok {
		return "", fmt.Errorf("no backend for provider %s (model = %s)", provider, input.Model)
	}

	return backend.Summarize(ctx, input)
}
