// Package telegram sends finished meeting minutes to a Telegram chat. It is
// outbound-only; the bot never reads updates.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/meetscribe/internal/export"
	"github.com/user/meetscribe/internal/minutes"
)

const maxTelegramMessage = 4096

// Notifier posts minutes summaries to a single chat.
type Notifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger *slog.Logger
}

// New creates a notifier. The token is validated against the Telegram API.
func New(token string, chatID int64, logger *slog.Logger) (*Notifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return &Notifier{bot: bot, chatID: chatID, logger: logger}, nil
}

// Sink adapts the notifier to the export registry.
func (n *Notifier) Sink() export.Sink {
	return func(ctx context.Context, p *export.Payload) error {
		return n.send(renderMessage(p))
	}
}

func (n *Notifier) send(text string) error {
	for _, part := range splitMessage(text) {
		msg := tgbotapi.NewMessage(n.chatID, part)
		msg.ParseMode = "Markdown"
		if _, err := n.bot.Send(msg); err != nil {
			// Retry without markdown if it fails
			msg.ParseMode = ""
			if _, err := n.bot.Send(msg); err != nil {
				return fmt.Errorf("send message: %w", err)
			}
		}
	}
	return nil
}

func renderMessage(p *export.Payload) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "*Meeting finished: %s*\n", p.Meeting.AppName)
	if p.Meeting.DurationSeconds != nil {
		fmt.Fprintf(&sb, "Duration: %s\n", minutes.FormatOffset(float64(*p.Meeting.DurationSeconds)))
	}
	if p.Minutes == nil {
		sb.WriteString("\nNo minutes were generated for this meeting.\n")
		return sb.String()
	}
	fmt.Fprintf(&sb, "\n%s\n", p.Minutes.Summary)
	if len(p.Minutes.KeyPoints) > 0 {
		sb.WriteString("\n*Key points*\n")
		for _, kp := range p.Minutes.KeyPoints {
			fmt.Fprintf(&sb, "• %s\n", kp)
		}
	}
	if len(p.Items) > 0 {
		sb.WriteString("\n*Action items*\n")
		for _, item := range p.Items {
			line := "• " + item.Title
			if item.Assignee != "" {
				line += fmt.Sprintf(" (%s)", item.Assignee)
			}
			sb.WriteString(line + "\n")
		}
	}
	return sb.String()
}

// splitMessage breaks text into chunks under Telegram's limit, cutting at the
// last newline inside the chunk when there is one and never inside a rune.
func splitMessage(text string) []string {
	if len(text) <= maxTelegramMessage {
		return []string{text}
	}
	var parts []string
	for len(text) > maxTelegramMessage {
		cut := maxTelegramMessage
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		if nl := strings.LastIndexByte(text[:cut], '\n'); nl > 0 {
			cut = nl + 1
		}
		parts = append(parts, text[:cut])
		text = text[cut:]
	}
	return append(parts, text)
}
