package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/brainbot/internal/database"
	"github.com/edgard/brainbot/internal/resolver"
)

const commandPrefix = "/"

// Replier resolves a prompt into reply text.
type Replier interface {
	Resolve(ctx context.Context, prompt string) resolver.Resolution
}

// Sender delivers reply text to a chat.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// Policy controls which inbound messages are processed.
type Policy struct {
	// ProcessCommands, when false, skips messages beginning with "/".
	ProcessCommands bool
	// GroupLearning, when true, records group-chat messages as memories.
	GroupLearning bool
}

// inbound is the typed extraction of a Telegram update: everything the
// pipeline needs, or nothing.
type inbound struct {
	chatID     int64
	text       string
	isGroup    bool
	groupTitle string
	speaker    string
	receivedAt time.Time
}

// Processor is the inbound pipeline shared by the webhook endpoint and the
// long-polling listener: persist the message, learn from group chats,
// resolve a reply, and send it back. Keeping one pipeline means the two
// transports cannot drift apart in behavior.
type Processor struct {
	store   database.Store
	replier Replier
	sender  Sender
	log     *slog.Logger
	policy  Policy
}

// NewProcessor creates a Processor.
func NewProcessor(store database.Store, replier Replier, sender Sender, logger *slog.Logger, policy Policy) *Processor {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Processor{
		store:   store,
		replier: replier,
		sender:  sender,
		log:     logger.With("component", "telegram_processor"),
		policy:  policy,
	}
}

// Handler returns a go-telegram/bot handler func for long-polling mode.
// Processing errors are logged, never surfaced: the polling loop must not
// stall because one update failed.
func (p *Processor) Handler() bot.HandlerFunc {
	return func(ctx context.Context, _ *bot.Bot, update *models.Update) {
		if err := p.HandleUpdate(ctx, update); err != nil {
			p.log.ErrorContext(ctx, "Failed to process update", "update_id", update.ID, "error", err)
		}
	}
}

// HandleUpdate runs the pipeline for one update. Updates that do not carry
// a processable message are ignored without error so the transport can be
// acknowledged. Persistence failures are logged and the pipeline continues;
// only a failed outbound send is reported to the caller.
func (p *Processor) HandleUpdate(ctx context.Context, update *models.Update) error {
	in, ok := p.extract(update)
	if !ok {
		p.log.DebugContext(ctx, "Ignoring update without processable message", "update_id", update.ID)
		return nil
	}

	p.log.InfoContext(ctx, "Processing inbound message",
		"chat_id", in.chatID, "is_group", in.isGroup, "speaker", in.speaker)

	message := &database.ChatMessage{
		ChatID:     strconv.FormatInt(in.chatID, 10),
		Text:       in.text,
		ReceivedAt: in.receivedAt,
	}
	if err := p.store.SaveChatMessage(ctx, message); err != nil {
		p.log.ErrorContext(ctx, "Failed to persist chat message, continuing", "chat_id", in.chatID, "error", err)
	}

	if in.isGroup && p.policy.GroupLearning {
		p.learnFromGroup(ctx, in)
	}

	resolution := p.replier.Resolve(ctx, in.text)
	p.log.DebugContext(ctx, "Resolved reply", "chat_id", in.chatID, "source", resolution.Source)

	if err := p.sender.Send(ctx, in.chatID, resolution.Reply); err != nil {
		return fmt.Errorf("failed to deliver reply to chat %d: %w", in.chatID, err)
	}
	return nil
}

// extract validates the transport envelope and produces the typed tuple the
// pipeline works with. A missing message object, empty text, or (under the
// default policy) a command prefix all reject the update.
func (p *Processor) extract(update *models.Update) (inbound, bool) {
	if update == nil || update.Message == nil {
		return inbound{}, false
	}
	msg := update.Message

	if msg.Text == "" {
		return inbound{}, false
	}
	if !p.policy.ProcessCommands && strings.HasPrefix(msg.Text, commandPrefix) {
		return inbound{}, false
	}

	in := inbound{
		chatID:     msg.Chat.ID,
		text:       msg.Text,
		receivedAt: time.Unix(int64(msg.Date), 0).UTC(),
	}

	switch msg.Chat.Type {
	case "group", "supergroup":
		in.isGroup = true
		in.groupTitle = msg.Chat.Title
	}

	if msg.From != nil {
		if msg.From.Username != "" {
			in.speaker = msg.From.Username
		} else {
			in.speaker = msg.From.FirstName
		}
	}
	if in.speaker == "" {
		in.speaker = "unknown"
	}

	return in, true
}

// learnFromGroup records a group-chat utterance as a memory entry so it can
// feed future completion context. Best effort: failures are logged only.
func (p *Processor) learnFromGroup(ctx context.Context, in inbound) {
	source := "Telegram"
	if in.groupTitle != "" {
		source = "Telegram - " + in.groupTitle
	}

	entry := &database.MemoryEntry{
		Topic:   "Group Chat",
		Content: fmt.Sprintf("%s: %s", in.speaker, in.text),
		Source:  source,
	}
	if err := p.store.SaveMemory(ctx, entry); err != nil {
		p.log.ErrorContext(ctx, "Failed to save group learning memory", "chat_id", in.chatID, "error", err)
	}
}
