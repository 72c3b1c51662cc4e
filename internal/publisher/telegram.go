package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"distill/internal/domain"
	"distill/internal/markdown"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// Telegram sends summaries to one chat as MarkdownV2 messages.
type Telegram struct {
	bot    *bot.Bot
	chatID int64
	log    *slog.Logger
}

// NewTelegram creates a send-only bot. serverURL overrides the Bot API
// endpoint when non-empty.
func NewTelegram(token string, chatID int64, serverURL string, log *slog.Logger) (*Telegram, error) {
	opts := []bot.Option{bot.WithSkipGetMe()}
	if serverURL != "" {
		opts = append(opts, bot.WithServerURL(serverURL))
	}

	b, err := bot.New(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}

	return &Telegram{
		bot:    b,
		chatID: chatID,
		log:    log,
	}, nil
}

func (t *Telegram) Publish(ctx context.Context, r *domain.SummaryResult) error {
	parts := markdown.Split(formatMessage(r), markdown.MaxMessageLength)

	for i, part := range parts {
		if _, err := t.bot.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:    t.chatID,
			Text:      part,
			ParseMode: models.ParseModeMarkdown,
			LinkPreviewOptions: &models.LinkPreviewOptions{
				IsDisabled: bot.True(),
			},
		}); err != nil {
			return fmt.Errorf("send message part %d of %d: %w", i+1, len(parts), err)
		}
	}

	t.log.DebugContext(ctx, "Summary is sent",
		"chatID", t.chatID,
		"runID", r.RunID,
		"parts", len(parts))

	return nil
}

func formatMessage(r *domain.SummaryResult) string {
	var b strings.Builder

	title := r.SourceMetadata["title"]
	if title == "" {
		title = r.SourceHandle
	}

	b.WriteString("*")
	b.WriteString(markdown.EscapeV2(title))
	b.WriteString("*\n")
	if url := r.SourceMetadata["url"]; url != "" {
		b.WriteString(markdown.EscapeV2(url))
		b.WriteByte('\n')
	}
	b.WriteByte('\n')

	b.WriteString(markdown.EscapeV2(r.FinalText))

	if r.Partial {
		b.WriteString("\n\n_")
		b.WriteString(markdown.EscapeV2("partial summary: " + reasons(r)))
		b.WriteString("_")
	}

	return b.String()
}
