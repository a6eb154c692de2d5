package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/edgard/brainbot/internal/config"
)

// openAIClient implements Client against any OpenAI-compatible chat
// completion endpoint (api.openai.com, OpenRouter, local proxies).
type openAIClient struct {
	client      *openai.Client
	log         *slog.Logger
	model       string
	temperature float32
	timeout     time.Duration
}

func newOpenAIClient(cfg *config.Config, log *slog.Logger) (*openAIClient, error) {
	if cfg.AIToken == "" {
		return nil, fmt.Errorf("AI API token is required")
	}

	clientConfig := openai.DefaultConfig(cfg.AIToken)
	if cfg.AIBaseURL != "" {
		clientConfig.BaseURL = cfg.AIBaseURL
	}

	logger := log.With("component", "openai_client")
	logger.Info("OpenAI client initialized successfully", "base_url", clientConfig.BaseURL, "model", cfg.AIModel)

	return &openAIClient{
		client:      openai.NewClientWithConfig(clientConfig),
		log:         logger,
		model:       cfg.AIModel,
		temperature: cfg.AITemperature,
		timeout:     cfg.AITimeout,
	}, nil
}

func (c *openAIClient) Complete(ctx context.Context, messages []Message) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("no messages provided for completion")
	}

	reqCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	llmMessages := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		llmMessages[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	c.log.DebugContext(ctx, "Requesting chat completion", "message_count", len(messages))

	resp, err := c.client.CreateChatCompletion(reqCtx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages:    llmMessages,
	})
	if err != nil {
		c.log.ErrorContext(ctx, "Chat completion request failed", "error", err)
		return "", fmt.Errorf("chat completion request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		c.log.WarnContext(ctx, "Chat completion response contained no choices")
		return "", fmt.Errorf("chat completion returned no choices")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("chat completion returned empty text")
	}

	return text, nil
}
