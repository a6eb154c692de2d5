// Package telegram contains the Telegram channel adapter: bot setup,
// the outbound notifier, and the inbound message pipeline shared by the
// webhook endpoint and the long-polling listener.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
)

// NewBot creates a new Telegram bot instance using the go-telegram/bot library.
func NewBot(token string, logger *slog.Logger, opts ...bot.Option) (*bot.Bot, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "telegram_bot")

	b, err := bot.New(token, opts...)
	if err != nil {
		log.Error("Failed to create Telegram bot instance", "error", err)
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	log.Info("Telegram bot instance created successfully", "token_prefix", token[:8]+"...")
	return b, nil
}

// SetupWebhook registers publicURL/webhook as the bot's webhook endpoint.
// Telegram will POST updates there instead of serving them via long-polling.
func SetupWebhook(ctx context.Context, b *bot.Bot, publicURL string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "telegram_bot")

	webhookURL := strings.TrimSuffix(publicURL, "/") + "/webhook"
	ok, err := b.SetWebhook(ctx, &bot.SetWebhookParams{URL: webhookURL})
	if err != nil {
		log.Error("Failed to set Telegram webhook", "url", webhookURL, "error", err)
		return fmt.Errorf("failed to set telegram webhook: %w", err)
	}
	if !ok {
		return fmt.Errorf("telegram rejected webhook registration for %s", webhookURL)
	}

	log.Info("Telegram webhook registered successfully", "url", webhookURL)
	return nil
}

// Notifier sends reply text back to a Telegram chat. Send failures are
// reported to the caller; the caller decides whether they are fatal for
// the surrounding request.
type Notifier struct {
	b   *bot.Bot
	log *slog.Logger
}

// NewNotifier creates a Notifier backed by the given bot instance.
func NewNotifier(b *bot.Bot, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		b:   b,
		log: logger.With("component", "telegram_notifier"),
	}
}

// Send delivers text to the given chat via the Telegram sendMessage API.
func (n *Notifier) Send(ctx context.Context, chatID int64, text string) error {
	if text == "" {
		return fmt.Errorf("cannot send empty message to chat %d", chatID)
	}

	_, err := n.b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		n.log.ErrorContext(ctx, "Failed to send Telegram message", "chat_id", chatID, "error", err)
		return fmt.Errorf("failed to send telegram message to chat %d: %w", chatID, err)
	}

	n.log.DebugContext(ctx, "Telegram message sent", "chat_id", chatID, "length", len(text))
	return nil
}
