// Package ai provides clients for remote text-completion backends. It
// exposes a single Client interface and a factory that selects either the
// OpenAI-compatible or the Gemini implementation based on configuration.
package ai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/edgard/brainbot/internal/config"
)

// Message roles understood by the completion backends.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Message is a single entry in the completion request: the persona
// instruction, a piece of background knowledge, or the user's prompt.
type Message struct {
	Role    string
	Content string
}

// Client defines the interface for a remote completion backend. Complete
// sends the assembled message list and returns the generated text with
// surrounding whitespace trimmed. All transport and response-shape failures
// surface as errors; substitution decisions belong to the caller.
type Client interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// NewClient creates and returns a Client based on the provided
// configuration. It acts as a factory, selecting either the OpenAI or
// Gemini implementation.
func NewClient(ctx context.Context, cfg *config.Config, log *slog.Logger) (Client, error) {
	if log == nil {
		log = slog.Default()
	}
	log.Info("Initializing AI client", "provider", cfg.AIProvider, "model", cfg.AIModel)

	switch cfg.AIProvider {
	case "openai":
		client, err := newOpenAIClient(cfg, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create OpenAI client: %w", err)
		}
		return client, nil
	case "gemini":
		client, err := newGeminiClient(ctx, cfg, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown AI provider specified: %s", cfg.AIProvider)
	}
}
