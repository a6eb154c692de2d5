package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-telegram/bot/models"
	"github.com/labstack/echo/v4"

	"github.com/edgard/brainbot/internal/database"
)

// defaultWebChatID identifies messages arriving through POST /message
// without a caller-supplied user id.
const defaultWebChatID = "web-client"

type messageRequest struct {
	Message string `json:"message"`
	UserID  string `json:"userId"`
}

type teachRequest struct {
	Topic   string `json:"topic"`
	Content string `json:"content"`
	Source  string `json:"source"`
}

type trainRequest struct {
	Prompt         string   `json:"prompt"`
	CorrectedReply string   `json:"correctedReply"`
	Tags           []string `json:"tags"`
}

type adminChatRequest struct {
	Prompt   string `json:"prompt"`
	Feedback string `json:"feedback"`
}

type memoryResponse struct {
	ID        uint      `json:"id"`
	Topic     string    `json:"topic"`
	Content   string    `json:"content"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"createdAt"`
}

type correctionResponse struct {
	ID             uint      `json:"id"`
	Prompt         string    `json:"prompt"`
	CorrectedReply string    `json:"correctedReply"`
	Tags           []string  `json:"tags"`
	Author         string    `json:"author"`
	CreatedAt      time.Time `json:"createdAt"`
}

func toMemoryResponse(entry *database.MemoryEntry) memoryResponse {
	return memoryResponse{
		ID:        entry.ID,
		Topic:     entry.Topic,
		Content:   entry.Content,
		Source:    entry.Source,
		CreatedAt: entry.CreatedAt,
	}
}

func toCorrectionResponse(correction *database.Correction) correctionResponse {
	tags := []string{}
	if correction.Tags != "" {
		tags = strings.Split(correction.Tags, ",")
	}
	return correctionResponse{
		ID:             correction.ID,
		Prompt:         correction.Prompt,
		CorrectedReply: correction.CorrectedReply,
		Tags:           tags,
		Author:         correction.Author,
		CreatedAt:      correction.CreatedAt,
	}
}

func (s *Server) handleLiveness(c echo.Context) error {
	return c.String(http.StatusOK, "brainbot backend is live")
}

// handleMessage is the generic chat endpoint: persist the message, resolve
// a reply, and return it. A persistence failure is logged but does not cost
// the caller their reply.
func (s *Server) handleMessage(c echo.Context) error {
	var req messageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "invalid request body"})
	}
	if strings.TrimSpace(req.Message) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "message is required"})
	}

	ctx := c.Request().Context()

	chatID := req.UserID
	if chatID == "" {
		chatID = defaultWebChatID
	}

	message := &database.ChatMessage{
		ChatID:     chatID,
		Text:       req.Message,
		ReceivedAt: time.Now().UTC(),
	}
	if err := s.store.SaveChatMessage(ctx, message); err != nil {
		s.log.ErrorContext(ctx, "Failed to persist web message, continuing", "chat_id", chatID, "error", err)
	}

	resolution := s.replier.Resolve(ctx, req.Message)
	return c.JSON(http.StatusOK, echo.Map{"success": true, "reply": resolution.Reply})
}

// handleWebhook receives Telegram updates. It always acknowledges with an
// empty body: 200 for handled or ignored updates, 500 when the pipeline
// failed after accepting the message. Telegram retries on anything else.
func (s *Server) handleWebhook(c echo.Context) error {
	var update models.Update
	if err := c.Bind(&update); err != nil {
		s.log.WarnContext(c.Request().Context(), "Discarding malformed webhook payload", "error", err)
		return c.NoContent(http.StatusOK)
	}

	if s.updates == nil {
		return c.NoContent(http.StatusOK)
	}

	if err := s.updates.HandleUpdate(c.Request().Context(), &update); err != nil {
		s.log.ErrorContext(c.Request().Context(), "Webhook update processing failed", "update_id", update.ID, "error", err)
		return c.NoContent(http.StatusInternalServerError)
	}
	return c.NoContent(http.StatusOK)
}

// handleTeach writes a manually authored memory entry.
func (s *Server) handleTeach(c echo.Context) error {
	var req teachRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "invalid request body"})
	}
	if strings.TrimSpace(req.Topic) == "" || strings.TrimSpace(req.Content) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "topic and content are required"})
	}

	ctx := c.Request().Context()

	entry := &database.MemoryEntry{
		Topic:   req.Topic,
		Content: req.Content,
		Source:  req.Source,
	}
	if err := s.store.SaveMemory(ctx, entry); err != nil {
		s.log.ErrorContext(ctx, "Failed to save taught memory", "topic", req.Topic, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "failed to store memory"})
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": toMemoryResponse(entry)})
}

// handleAdminTrain writes an explicit prompt correction.
func (s *Server) handleAdminTrain(c echo.Context) error {
	var req trainRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "invalid request body"})
	}
	if strings.TrimSpace(req.Prompt) == "" || strings.TrimSpace(req.CorrectedReply) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "prompt and correctedReply are required"})
	}

	ctx := c.Request().Context()

	correction := &database.Correction{
		Prompt:         req.Prompt,
		CorrectedReply: req.CorrectedReply,
		Tags:           strings.Join(req.Tags, ","),
		Author:         database.DefaultAuthor,
	}
	if err := s.store.SaveCorrection(ctx, correction); err != nil {
		s.log.ErrorContext(ctx, "Failed to save correction", "prompt", req.Prompt, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "failed to store correction"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "correction stored",
		"data":    toCorrectionResponse(correction),
	})
}

// handleAdminChat resolves a live admin turn and records it, together with
// any feedback, as an audit memory so future completions can draw on it.
func (s *Server) handleAdminChat(c echo.Context) error {
	var req adminChatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "prompt is required"})
	}

	ctx := c.Request().Context()

	resolution := s.replier.Resolve(ctx, req.Prompt)

	correction := req.Feedback
	if correction == "" {
		correction = resolution.Reply
	}
	entry := &database.MemoryEntry{
		Topic:   "Admin Correction",
		Content: "Prompt: " + req.Prompt + "\nCorrection: " + correction,
		Source:  "Admin Trainer",
	}
	if err := s.store.SaveMemory(ctx, entry); err != nil {
		s.log.ErrorContext(ctx, "Failed to save admin chat audit memory", "error", err)
	}

	return c.JSON(http.StatusOK, echo.Map{"reply": resolution.Reply})
}

// handleBrain dumps the 50 most recent memory entries.
func (s *Server) handleBrain(c echo.Context) error {
	ctx := c.Request().Context()

	entries, err := s.store.RecentMemories(ctx, 50)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to fetch memories for brain dump", "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch memories"})
	}

	memories := make([]memoryResponse, 0, len(entries))
	for i := range entries {
		memories = append(memories, toMemoryResponse(&entries[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"memories": memories})
}

// handleAdminPage serves the embedded admin training page.
func (s *Server) handleAdminPage(c echo.Context) error {
	page, err := staticFS.ReadFile("static/admin.html")
	if err != nil {
		return c.NoContent(http.StatusInternalServerError)
	}
	return c.HTMLBlob(http.StatusOK, page)
}
