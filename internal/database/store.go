package database

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store defines the interface for database operations. All methods accept a
// context.Context for cancellation and timeouts. Every entity is append-only,
// so no transaction spans more than one write.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// SaveChatMessage inserts a new inbound chat message record.
	SaveChatMessage(ctx context.Context, message *ChatMessage) error

	// SaveMemory inserts a new memory entry.
	SaveMemory(ctx context.Context, entry *MemoryEntry) error

	// RecentMemories retrieves the most recent 'limit' memory entries,
	// newest first.
	RecentMemories(ctx context.Context, limit int) ([]MemoryEntry, error)

	// SaveCorrection inserts a new correction record.
	SaveCorrection(ctx context.Context, correction *Correction) error

	// ListCorrections retrieves all corrections, most recently created
	// first. The ordering is user-visible: when several corrections match
	// an incoming prompt, the newest one wins.
	ListCorrections(ctx context.Context) ([]Correction, error)

	// RunMaintenance performs database maintenance (ANALYZE + VACUUM).
	RunMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx. It requires a
// connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveChatMessage inserts a new inbound chat message record.
func (s *sqlxStore) SaveChatMessage(ctx context.Context, message *ChatMessage) error {
	if message == nil {
		return fmt.Errorf("cannot save nil chat message")
	}
	if message.ChatID == "" {
		return fmt.Errorf("chat message must have a non-empty chat_id")
	}
	if message.Text == "" {
		return fmt.Errorf("chat message must have non-empty text")
	}
	if message.ReceivedAt.IsZero() {
		message.ReceivedAt = time.Now().UTC()
	}
	message.CreatedAt = time.Now().UTC()

	query := `
        INSERT INTO chat_messages (chat_id, text, received_at, created_at)
        VALUES (:chat_id, :text, :received_at, :created_at);
    `

	result, err := s.db.NamedExecContext(ctx, query, message)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving chat message", "chat_id", message.ChatID, "error", err)
		return fmt.Errorf("failed to save chat message (chat %s): %w", message.ChatID, err)
	}

	if id, err := result.LastInsertId(); err == nil {
		//nolint:gosec // integer overflow conversion is acceptable here
		message.ID = uint(id)
	} else {
		s.logger.WarnContext(ctx, "Could not retrieve last insert ID after saving chat message",
			"chat_id", message.ChatID, "error", err)
	}

	s.logger.DebugContext(ctx, "Chat message saved successfully",
		"chat_id", message.ChatID, "message_id", message.ID)
	return nil
}

// SaveMemory inserts a new memory entry.
func (s *sqlxStore) SaveMemory(ctx context.Context, entry *MemoryEntry) error {
	if entry == nil {
		return fmt.Errorf("cannot save nil memory entry")
	}
	if entry.Topic == "" || entry.Content == "" {
		return fmt.Errorf("memory entry must have topic and content")
	}
	entry.CreatedAt = time.Now().UTC()

	query := `
        INSERT INTO memories (topic, content, source, created_at)
        VALUES (:topic, :content, :source, :created_at);
    `

	result, err := s.db.NamedExecContext(ctx, query, entry)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving memory entry", "topic", entry.Topic, "error", err)
		return fmt.Errorf("failed to save memory entry (topic %q): %w", entry.Topic, err)
	}

	if id, err := result.LastInsertId(); err == nil {
		//nolint:gosec // integer overflow conversion is acceptable here
		entry.ID = uint(id)
	}

	s.logger.DebugContext(ctx, "Memory entry saved successfully",
		"topic", entry.Topic, "source", entry.Source, "memory_id", entry.ID)
	return nil
}

// RecentMemories retrieves the most recent 'limit' memory entries, newest first.
func (s *sqlxStore) RecentMemories(ctx context.Context, limit int) ([]MemoryEntry, error) {
	if limit <= 0 {
		limit = 15
		s.logger.DebugContext(ctx, "Invalid limit provided, using default", "default_limit", limit)
	} else if limit > 200 {
		limit = 200
		s.logger.DebugContext(ctx, "Limit exceeded maximum value, capping", "capped_limit", limit)
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var entries []MemoryEntry
	query := `
        SELECT id, topic, content, source, created_at
        FROM memories
        ORDER BY created_at DESC, id DESC
        LIMIT ?;
    `

	err := s.db.SelectContext(ctx, &entries, query, limit)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.logger.WarnContext(ctx, "Context timeout or cancellation while fetching memories", "error", err)
		return nil, err
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Error getting recent memories", "limit", limit, "error", err)
		return nil, fmt.Errorf("failed to get recent memories: %w", err)
	}

	s.logger.DebugContext(ctx, "Fetched recent memories successfully", "count", len(entries))
	return entries, nil
}

// SaveCorrection inserts a new correction record.
func (s *sqlxStore) SaveCorrection(ctx context.Context, correction *Correction) error {
	if correction == nil {
		return fmt.Errorf("cannot save nil correction")
	}
	if correction.CorrectedReply == "" {
		return fmt.Errorf("correction must have a corrected reply")
	}
	if correction.Author == "" {
		correction.Author = DefaultAuthor
	}
	correction.CreatedAt = time.Now().UTC()

	query := `
        INSERT INTO corrections (prompt, corrected_reply, tags, author, created_at)
        VALUES (:prompt, :corrected_reply, :tags, :author, :created_at);
    `

	result, err := s.db.NamedExecContext(ctx, query, correction)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving correction", "prompt", correction.Prompt, "error", err)
		return fmt.Errorf("failed to save correction (prompt %q): %w", correction.Prompt, err)
	}

	if id, err := result.LastInsertId(); err == nil {
		//nolint:gosec // integer overflow conversion is acceptable here
		correction.ID = uint(id)
	}

	s.logger.DebugContext(ctx, "Correction saved successfully",
		"prompt", correction.Prompt, "correction_id", correction.ID)
	return nil
}

// ListCorrections retrieves all corrections, most recently created first.
func (s *sqlxStore) ListCorrections(ctx context.Context) ([]Correction, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var corrections []Correction
	query := `
        SELECT id, prompt, corrected_reply, tags, author, created_at
        FROM corrections
        ORDER BY created_at DESC, id DESC;
    `

	err := s.db.SelectContext(ctx, &corrections, query)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.logger.WarnContext(ctx, "Context timeout or cancellation while fetching corrections", "error", err)
		return nil, err
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Error listing corrections", "error", err)
		return nil, fmt.Errorf("failed to list corrections: %w", err)
	}

	s.logger.DebugContext(ctx, "Fetched corrections successfully", "count", len(corrections))
	return corrections, nil
}

// RunMaintenance executes ANALYZE and VACUUM on the SQLite database.
// VACUUM must run outside a transaction in SQLite.
func (s *sqlxStore) RunMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting maintenance", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (ANALYZE + VACUUM)...")

	if _, err := s.db.ExecContext(ctx, "ANALYZE;"); err != nil {
		s.logger.ErrorContext(ctx, "Database maintenance (ANALYZE) failed", "error", err)
		return fmt.Errorf("failed to execute ANALYZE: %w", err)
	}

	_, err := s.db.ExecContext(ctx, "VACUUM;")
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)
	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)
	}

	s.logger.InfoContext(ctx, "Database maintenance completed successfully")
	return nil
}
