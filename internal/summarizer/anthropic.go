package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	anthropicVersion       = "2023-06-01"
	anthropicClientTimeout = 120 * time.Second

	DefaultAnthropicBaseURL = "https://api.anthropic.com"
)

// AnthropicSummarizer uses the Anthropic Messages API.
type AnthropicSummarizer struct {
	client *resty.Client
	model  string
}

type AnthropicConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int64              `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content    []anthropicContent `json:"content"`
	StopReason string             `json:"stop_reason"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicErrorBody struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func NewAnthropicSummarizer(cfg AnthropicConfig) (*AnthropicSummarizer, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("api key is empty")
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = DefaultAnthropicBaseURL
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(anthropicClientTimeout).
		SetHeader("x-api-key", apiKey).
		SetHeader("anthropic-version", anthropicVersion).
		SetHeader("Content-Type", "application/json")

	return &AnthropicSummarizer{client: client, model: strings.TrimSpace(cfg.Model)}, nil
}

func (s *AnthropicSummarizer) Summarize(ctx context.Context, input Input) (string, error) {
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return "", ErrEmptyInput
	}

	model := strings.TrimSpace(input.Model)
	if model == "" {
		model = s.model
	}
	if model == "" {
		return "", errors.New("model is empty")
	}

	maxOutputTokens := input.MaxOutputTokens
	if maxOutputTokens <= 0 {
		maxOutputTokens = baseMaxOutputTokens
	}

	userPrompt := buildUserPrompt(input.SourceURL, text)

	for {
		var out anthropicResponse
		var errBody anthropicErrorBody

		resp, err := s.client.R().
			SetContext(ctx).
			SetBody(anthropicRequest{
				Model:     model,
				MaxTokens: maxOutputTokens,
				System:    strings.TrimSpace(input.Instructions),
				Messages:  []anthropicMessage{{Role: "user", Content: userPrompt}},
			}).
			SetResult(&out).
			SetError(&errBody).
			Post("/v1/messages")
		if err != nil {
			return "", fmt.Errorf("do request: %w", err)
		}

		if resp.IsError() {
			return "", &StatusError{
				Provider:   "anthropic",
				StatusCode: resp.StatusCode(),
				Type:       errBody.Error.Type,
				Message:    errBody.Error.Message,
			}
		}

		if out.StopReason == "max_tokens" && maxOutputTokens < limitMaxOutputTokens {
			maxOutputTokens = min(maxOutputTokens*2, limitMaxOutputTokens)
			continue
		}

		var b strings.Builder
		for _, c := range out.Content {
			if c.Type == "text" {
				b.WriteString(c.Text)
			}
		}

		summary := strings.TrimSpace(b.String())
		if summary == "" {
			return "", fmt.Errorf("%w (stop reason = %s)", ErrEmptyOutput, out.StopReason)
		}
		return summary, nil
	}
}
