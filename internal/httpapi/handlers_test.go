package httpapi_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/brainbot/internal/database"
	"github.com/edgard/brainbot/internal/httpapi"
	"github.com/edgard/brainbot/internal/resolver"
	"github.com/edgard/brainbot/internal/telegram"
)

type fakeStore struct {
	messages    []database.ChatMessage
	memories    []database.MemoryEntry
	corrections []database.Correction
}

func (s *fakeStore) Ping(context.Context) error { return nil }

func (s *fakeStore) RunMaintenance(context.Context) error { return nil }

func (s *fakeStore) SaveChatMessage(_ context.Context, m *database.ChatMessage) error {
	m.ID = uint(len(s.messages) + 1)
	s.messages = append(s.messages, *m)
	return nil
}

func (s *fakeStore) SaveMemory(_ context.Context, e *database.MemoryEntry) error {
	e.ID = uint(len(s.memories) + 1)
	s.memories = append(s.memories, *e)
	return nil
}

func (s *fakeStore) SaveCorrection(_ context.Context, c *database.Correction) error {
	c.ID = uint(len(s.corrections) + 1)
	s.corrections = append(s.corrections, *c)
	return nil
}

func (s *fakeStore) RecentMemories(context.Context, int) ([]database.MemoryEntry, error) {
	out := make([]database.MemoryEntry, len(s.memories))
	for i := range s.memories {
		out[len(s.memories)-1-i] = s.memories[i]
	}
	return out, nil
}

func (s *fakeStore) ListCorrections(context.Context) ([]database.Correction, error) {
	return s.corrections, nil
}

type fakeReplier struct {
	resolution resolver.Resolution
	prompts    []string
}

func (r *fakeReplier) Resolve(_ context.Context, prompt string) resolver.Resolution {
	r.prompts = append(r.prompts, prompt)
	return r.resolution
}

type fakeSender struct {
	sent map[int64][]string
}

func (s *fakeSender) Send(_ context.Context, chatID int64, text string) error {
	if s.sent == nil {
		s.sent = map[int64][]string{}
	}
	s.sent[chatID] = append(s.sent[chatID], text)
	return nil
}

func newTestServer(store *fakeStore, replier *fakeReplier, sender *fakeSender) *httpapi.Server {
	processor := telegram.NewProcessor(store, replier, sender, nil, telegram.Policy{GroupLearning: true})
	return httpapi.NewServer(":0", store, replier, processor, nil)
}

func doJSON(t *testing.T, s *httpapi.Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func TestLiveness(t *testing.T) {
	t.Parallel()

	s := newTestServer(&fakeStore{}, &fakeReplier{}, &fakeSender{})
	rec := doJSON(t, s, http.MethodGet, "/", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "live")
}

func TestMessageEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("missing message is a client error", func(t *testing.T) {
		t.Parallel()

		store := &fakeStore{}
		s := newTestServer(store, &fakeReplier{}, &fakeSender{})
		rec := doJSON(t, s, http.MethodPost, "/message", `{}`)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, store.messages)
	})

	t.Run("valid message is persisted and answered", func(t *testing.T) {
		t.Parallel()

		store := &fakeStore{}
		replier := &fakeReplier{resolution: resolver.Resolution{Reply: "It's sunny.", Source: resolver.SourceModel}}
		s := newTestServer(store, replier, &fakeSender{})

		rec := doJSON(t, s, http.MethodPost, "/message", `{"message":"What's the weather?","userId":"u-42"}`)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"reply":"It's sunny."`)
		require.Len(t, store.messages, 1)
		assert.Equal(t, "u-42", store.messages[0].ChatID)
		assert.Equal(t, "What's the weather?", store.messages[0].Text)
	})

	t.Run("missing userId falls back to the web placeholder", func(t *testing.T) {
		t.Parallel()

		store := &fakeStore{}
		replier := &fakeReplier{resolution: resolver.Resolution{Reply: "hi"}}
		s := newTestServer(store, replier, &fakeSender{})

		rec := doJSON(t, s, http.MethodPost, "/message", `{"message":"hello"}`)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, store.messages, 1)
		assert.Equal(t, "web-client", store.messages[0].ChatID)
	})
}

func TestWebhookEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("update without message acknowledges and writes nothing", func(t *testing.T) {
		t.Parallel()

		store := &fakeStore{}
		s := newTestServer(store, &fakeReplier{}, &fakeSender{})

		rec := doJSON(t, s, http.MethodPost, "/webhook", `{"update_id":1}`)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Body.String())
		assert.Empty(t, store.messages)
	})

	t.Run("command-prefixed text acknowledges and writes nothing", func(t *testing.T) {
		t.Parallel()

		store := &fakeStore{}
		sender := &fakeSender{}
		s := newTestServer(store, &fakeReplier{}, sender)

		rec := doJSON(t, s, http.MethodPost, "/webhook",
			`{"update_id":2,"message":{"message_id":10,"date":1700000000,"chat":{"id":99,"type":"private"},"text":"/start"}}`)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, store.messages)
		assert.Empty(t, sender.sent)
	})

	t.Run("accepted message is persisted, resolved, and replied to", func(t *testing.T) {
		t.Parallel()

		store := &fakeStore{}
		replier := &fakeReplier{resolution: resolver.Resolution{Reply: "Refunds take 3-5 days.", Source: resolver.SourceCorrection}}
		sender := &fakeSender{}
		s := newTestServer(store, replier, sender)

		rec := doJSON(t, s, http.MethodPost, "/webhook",
			`{"update_id":3,"message":{"message_id":11,"date":1700000000,"chat":{"id":99,"type":"private"},"from":{"id":7,"username":"alice"},"text":"how do refunds work?"}}`)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, store.messages, 1)
		assert.Equal(t, "99", store.messages[0].ChatID)
		require.Contains(t, sender.sent, int64(99))
		assert.Equal(t, []string{"Refunds take 3-5 days."}, sender.sent[99])
	})

	t.Run("group message also records a learning memory", func(t *testing.T) {
		t.Parallel()

		store := &fakeStore{}
		replier := &fakeReplier{resolution: resolver.Resolution{Reply: "ok"}}
		s := newTestServer(store, replier, &fakeSender{})

		rec := doJSON(t, s, http.MethodPost, "/webhook",
			`{"update_id":4,"message":{"message_id":12,"date":1700000000,"chat":{"id":-100,"type":"group","title":"Deals"},"from":{"id":7,"username":"alice"},"text":"shipment left on Monday"}}`)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, store.memories, 1)
		assert.Equal(t, "Group Chat", store.memories[0].Topic)
		assert.Equal(t, "alice: shipment left on Monday", store.memories[0].Content)
		assert.Equal(t, "Telegram - Deals", store.memories[0].Source)
	})
}

func TestTeachEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("missing content is rejected and writes nothing", func(t *testing.T) {
		t.Parallel()

		store := &fakeStore{}
		s := newTestServer(store, &fakeReplier{}, &fakeSender{})

		rec := doJSON(t, s, http.MethodPost, "/teach", `{"topic":"shipping"}`)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, store.memories)
	})

	t.Run("valid request writes exactly one memory and echoes it", func(t *testing.T) {
		t.Parallel()

		store := &fakeStore{}
		s := newTestServer(store, &fakeReplier{}, &fakeSender{})

		rec := doJSON(t, s, http.MethodPost, "/teach",
			`{"topic":"shipping","content":"orders ship within 24h","source":"Admin Trainer"}`)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, store.memories, 1)
		assert.Equal(t, "shipping", store.memories[0].Topic)
		assert.Contains(t, rec.Body.String(), `"content":"orders ship within 24h"`)
	})
}

func TestAdminTrainEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("missing correctedReply is rejected", func(t *testing.T) {
		t.Parallel()

		store := &fakeStore{}
		s := newTestServer(store, &fakeReplier{}, &fakeSender{})

		rec := doJSON(t, s, http.MethodPost, "/admin/train", `{"prompt":"refund"}`)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, store.corrections)
	})

	t.Run("valid request stores the correction with tags and default author", func(t *testing.T) {
		t.Parallel()

		store := &fakeStore{}
		s := newTestServer(store, &fakeReplier{}, &fakeSender{})

		rec := doJSON(t, s, http.MethodPost, "/admin/train",
			`{"prompt":"refund","correctedReply":"Refunds take 3-5 days.","tags":["stripe","cashout"]}`)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, store.corrections, 1)
		assert.Equal(t, "stripe,cashout", store.corrections[0].Tags)
		assert.Equal(t, database.DefaultAuthor, store.corrections[0].Author)
		assert.Contains(t, rec.Body.String(), `"tags":["stripe","cashout"]`)
	})
}

func TestAdminChatEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("resolves and records an audit memory with feedback", func(t *testing.T) {
		t.Parallel()

		store := &fakeStore{}
		replier := &fakeReplier{resolution: resolver.Resolution{Reply: "model answer", Source: resolver.SourceModel}}
		s := newTestServer(store, replier, &fakeSender{})

		rec := doJSON(t, s, http.MethodPost, "/admin/chat",
			`{"prompt":"how do refunds work?","feedback":"Refunds take 3-5 days."}`)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"reply":"model answer"`)
		require.Len(t, store.memories, 1)
		assert.Equal(t, "Admin Correction", store.memories[0].Topic)
		assert.Equal(t, "Prompt: how do refunds work?\nCorrection: Refunds take 3-5 days.", store.memories[0].Content)
		assert.Equal(t, "Admin Trainer", store.memories[0].Source)
	})

	t.Run("without feedback the resolved reply is recorded", func(t *testing.T) {
		t.Parallel()

		store := &fakeStore{}
		replier := &fakeReplier{resolution: resolver.Resolution{Reply: "model answer"}}
		s := newTestServer(store, replier, &fakeSender{})

		rec := doJSON(t, s, http.MethodPost, "/admin/chat", `{"prompt":"hello"}`)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, store.memories, 1)
		assert.Contains(t, store.memories[0].Content, "Correction: model answer")
	})
}

func TestBrainEndpoint(t *testing.T) {
	t.Parallel()

	store := &fakeStore{memories: []database.MemoryEntry{
		{ID: 1, Topic: "Group Chat", Content: "alice: hi", Source: "Telegram - Deals"},
		{ID: 2, Topic: "shipping", Content: "orders ship within 24h", Source: "Admin Trainer"},
	}}
	s := newTestServer(store, &fakeReplier{}, &fakeSender{})

	rec := doJSON(t, s, http.MethodGet, "/brain", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"memories"`)
	assert.Contains(t, rec.Body.String(), "orders ship within 24h")
}

func TestAdminPage(t *testing.T) {
	t.Parallel()

	s := newTestServer(&fakeStore{}, &fakeReplier{}, &fakeSender{})
	rec := doJSON(t, s, http.MethodGet, "/admin", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Admin Trainer")
}
