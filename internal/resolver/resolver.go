// Package resolver implements the layered reply policy: an incoming prompt
// is answered from an admin correction when one matches, otherwise by the
// remote completion backend, and by a fixed fallback text when that fails.
package resolver

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/edgard/brainbot/internal/ai"
	"github.com/edgard/brainbot/internal/database"
)

// Source classifies where a reply came from.
type Source string

const (
	// SourceCorrection means an admin correction matched and the remote
	// backend was never called.
	SourceCorrection Source = "correction"
	// SourceModel means the remote completion backend produced the reply.
	SourceModel Source = "model"
	// SourceFallback means both layers failed and the canned text was used.
	SourceFallback Source = "fallback"
)

// Resolution is the outcome of resolving a prompt.
type Resolution struct {
	Reply  string
	Source Source
}

// Resolver decides how to answer a prompt. It holds no per-request state
// and is safe for concurrent use.
type Resolver struct {
	store          database.Store
	client         ai.Client
	log            *slog.Logger
	instruction    string
	contextEntries int
	fallbackReply  string
}

// New creates a Resolver. instruction is the persona system prompt sent
// ahead of every completion request, contextEntries is how many recent
// memories are attached as background knowledge, and fallbackReply is
// returned whenever no layer can produce an answer.
func New(store database.Store, client ai.Client, log *slog.Logger, instruction string, contextEntries int, fallbackReply string) *Resolver {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Resolver{
		store:          store,
		client:         client,
		log:            log.With("component", "resolver"),
		instruction:    instruction,
		contextEntries: contextEntries,
		fallbackReply:  fallbackReply,
	}
}

// Resolve answers a prompt. Corrections are checked newest first; the first
// correction whose prompt is a case-insensitive substring of the input wins
// and short-circuits the remote call. A correction with an empty prompt
// matches every input. When no correction matches, the remote backend is
// invoked exactly once with the persona instruction, recent memories as
// background, and the prompt. Resolve never returns an error: every failure
// degrades to the fallback reply.
func (r *Resolver) Resolve(ctx context.Context, prompt string) Resolution {
	if correction, ok := r.findCorrection(ctx, prompt); ok {
		r.log.InfoContext(ctx, "Prompt answered from correction",
			"correction_id", correction.ID, "correction_prompt", correction.Prompt)
		return Resolution{Reply: correction.CorrectedReply, Source: SourceCorrection}
	}

	messages := r.buildMessages(ctx, prompt)

	reply, err := r.client.Complete(ctx, messages)
	if err != nil {
		r.log.WarnContext(ctx, "Completion failed, using fallback reply", "error", err)
		return Resolution{Reply: r.fallbackReply, Source: SourceFallback}
	}

	return Resolution{Reply: strings.TrimSpace(reply), Source: SourceModel}
}

// findCorrection scans stored corrections for the first (newest) one whose
// prompt is contained in the input, ignoring case. A store read failure is
// treated as "no match" so the prompt still reaches the completion layer.
func (r *Resolver) findCorrection(ctx context.Context, prompt string) (database.Correction, bool) {
	corrections, err := r.store.ListCorrections(ctx)
	if err != nil {
		r.log.WarnContext(ctx, "Failed to list corrections, skipping correction lookup", "error", err)
		return database.Correction{}, false
	}

	lowered := strings.ToLower(prompt)
	for _, correction := range corrections {
		if strings.Contains(lowered, strings.ToLower(correction.Prompt)) {
			return correction, true
		}
	}
	return database.Correction{}, false
}

// buildMessages assembles the completion request: the persona instruction,
// the most recent memories as background knowledge, then the user's prompt.
// A memory read failure only drops the background, never the request.
func (r *Resolver) buildMessages(ctx context.Context, prompt string) []ai.Message {
	messages := []ai.Message{{Role: ai.RoleSystem, Content: r.instruction}}

	if r.contextEntries > 0 {
		memories, err := r.store.RecentMemories(ctx, r.contextEntries)
		if err != nil {
			r.log.WarnContext(ctx, "Failed to fetch recent memories, continuing without context", "error", err)
		}
		for _, entry := range memories {
			messages = append(messages, ai.Message{Role: ai.RoleSystem, Content: entry.Content})
		}
	}

	return append(messages, ai.Message{Role: ai.RoleUser, Content: prompt})
}
