package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/edgard/brainbot/internal/config"
)

// geminiClient implements Client against Google's Gemini API. System-role
// messages become the system instruction; everything else is sent as user
// content.
type geminiClient struct {
	client      *genai.Client
	log         *slog.Logger
	model       string
	temperature float32
	timeout     time.Duration
}

func newGeminiClient(ctx context.Context, cfg *config.Config, log *slog.Logger) (*geminiClient, error) {
	if cfg.AIToken == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	gi, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.AIToken,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	logger := log.With("component", "gemini_client")
	logger.Info("Gemini client initialized successfully", "model", cfg.AIModel)

	return &geminiClient{
		client:      gi,
		log:         logger,
		model:       cfg.AIModel,
		temperature: cfg.AITemperature,
		timeout:     cfg.AITimeout,
	}, nil
}

func (c *geminiClient) Complete(ctx context.Context, messages []Message) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("no messages provided for completion")
	}

	reqCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var systemParts []string
	var contents []*genai.Content
	for _, msg := range messages {
		if msg.Role == RoleSystem {
			systemParts = append(systemParts, msg.Content)
			continue
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
	}
	if len(contents) == 0 {
		return "", fmt.Errorf("no user content provided for completion")
	}

	contentConfig := &genai.GenerateContentConfig{
		Temperature: &c.temperature,
	}
	if len(systemParts) > 0 {
		contentConfig.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: strings.Join(systemParts, "\n\n")}},
		}
	}

	c.log.DebugContext(ctx, "Requesting Gemini completion", "message_count", len(messages))

	resp, err := c.client.Models.GenerateContent(reqCtx, c.model, contents, contentConfig)
	if err != nil {
		c.log.ErrorContext(ctx, "Gemini API call failed", "error", err)
		return "", fmt.Errorf("gemini API call failed: %w", err)
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
		reasonMsg := fmt.Sprintf("%v", resp.PromptFeedback.BlockReason)
		if resp.PromptFeedback.BlockReasonMessage != "" {
			reasonMsg = resp.PromptFeedback.BlockReasonMessage
		}
		c.log.ErrorContext(ctx, "Gemini request blocked", "reason", reasonMsg)
		return "", fmt.Errorf("completion blocked by safety filter: %s", reasonMsg)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		c.log.WarnContext(ctx, "Gemini response missing candidates or content")
		return "", fmt.Errorf("completion returned no content")
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("completion returned empty text")
	}

	return text, nil
}
