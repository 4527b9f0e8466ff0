package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley-ai/parley/internal/checkpoint"
	"github.com/parley-ai/parley/internal/engine"
	"github.com/parley-ai/parley/internal/llm"
	"github.com/parley-ai/parley/internal/model"
	"github.com/parley-ai/parley/internal/service"
	"github.com/parley-ai/parley/internal/tool"
	"github.com/parley-ai/parley/pkg/logger"
)

type cannedClient struct {
	content string
}

func (c *cannedClient) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return c.CompleteStream(ctx, req, nil)
}

func (c *cannedClient) CompleteStream(ctx context.Context, req *llm.CompletionRequest, callback llm.StreamCallback) (*llm.CompletionResponse, error) {
	if callback != nil {
		for i, tok := range strings.SplitAfter(c.content, " ") {
			if err := callback(tok, i); err != nil {
				return nil, err
			}
		}
	}
	return &llm.CompletionResponse{
		Message:    model.Message{Content: c.content},
		Model:      "test-model",
		StopReason: "stop",
	}, nil
}

func (c *cannedClient) Name() string     { return "canned" }
func (c *cannedClient) Models() []string { return nil }

func newTestRouter(t *testing.T) (chi.Router, *service.ThreadService) {
	t.Helper()

	log := logger.NewNop()
	store := checkpoint.NewMemoryStore()
	registry := tool.NewRegistry(log, 0)
	registry.Register(tool.NewCalculator())

	eng := engine.New(&cannedClient{content: "The answer is 42."}, registry, store, log, engine.Config{})
	threads := service.NewThreadService(store, log)
	turns := service.NewTurnService(threads, eng, nil, log)

	threadHandler := NewThreadHandler(threads, store, log)
	messageHandler := NewMessageHandler(turns, log)
	streamHandler := NewStreamHandler(turns, threads, store, log)

	r := chi.NewRouter()
	r.Route("/api/v1/threads", func(r chi.Router) {
		r.Post("/", threadHandler.Create)
		r.Get("/", threadHandler.List)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", threadHandler.Get)
			r.Get("/messages", threadHandler.Messages)
			r.Post("/messages", messageHandler.Send)
			r.Get("/stream", streamHandler.Stream)
			r.Post("/stream", streamHandler.StreamTurn)
		})
	})
	return r, threads
}

func createThread(t *testing.T, r chi.Router) model.Thread {
	t.Helper()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/threads", nil))
	require.Equal(t, http.StatusCreated, rec.Code)

	var thread model.Thread
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &thread))
	return thread
}

func TestThreadEndpoints(t *testing.T) {
	r, _ := newTestRouter(t)

	t.Run("create", func(t *testing.T) {
		thread := createThread(t, r)
		assert.NotEmpty(t, thread.ID)
		assert.Equal(t, "New Chat", thread.Name)
	})

	t.Run("get", func(t *testing.T) {
		thread := createThread(t, r)

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/threads/"+thread.ID, nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var got model.Thread
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, thread.ID, got.ID)
	})

	t.Run("get unknown", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/threads/0191e2a4-0000-7000-8000-000000000000", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("get invalid id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/threads/not-a-uuid", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("list", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/threads", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var resp model.ListThreadsResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.GreaterOrEqual(t, resp.Total, 2)
	})
}

func TestSendMessage(t *testing.T) {
	r, threads := newTestRouter(t)
	thread := createThread(t, r)

	t.Run("runs a full turn", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/threads/"+thread.ID+"/messages",
			strings.NewReader(`{"content": "what is the answer?"}`))
		r.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code)

		var resp model.SendMessageResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Messages, 2)
		assert.Equal(t, model.RoleUser, resp.Messages[0].Role)
		assert.Equal(t, "The answer is 42.", resp.Messages[1].Content)

		got, err := threads.Get(context.Background(), thread.ID)
		require.NoError(t, err)
		assert.Equal(t, "what is the answer?", got.Name)
	})

	t.Run("history is readable afterwards", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/threads/"+thread.ID+"/messages", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var resp model.ListMessagesResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Len(t, resp.Messages, 2)
	})

	t.Run("empty content rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/threads/"+thread.ID+"/messages",
			strings.NewReader(`{"content": ""}`))
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid body rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/threads/"+thread.ID+"/messages",
			strings.NewReader(`not json`))
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestStreamTurn(t *testing.T) {
	r, _ := newTestRouter(t)
	thread := createThread(t, r)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/threads/"+thread.ID+"/stream",
		strings.NewReader(`{"content": "stream it"}`))
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, "event: token")
	assert.Contains(t, body, "event: user_message")
	assert.Contains(t, body, "event: message_complete")
	assert.Contains(t, body, "event: done")
	assert.Contains(t, body, "The answer is 42.")

	// Token events precede the completion events.
	assert.Less(t, strings.Index(body, "event: token"), strings.Index(body, "event: message_complete"))
}

func TestStreamReplay(t *testing.T) {
	r, _ := newTestRouter(t)
	thread := createThread(t, r)

	// Seed one turn so there is history to replay.
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/threads/"+thread.ID+"/messages",
		strings.NewReader(`{"content": "hello"}`)))
	require.Equal(t, http.StatusCreated, rec.Code)

	// The handler holds the connection open after replay; disconnect the
	// client shortly after it starts.
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/threads/"+thread.ID+"/stream", nil).WithContext(ctx)
	r.ServeHTTP(rec, req)

	body := rec.Body.String()
	assert.Contains(t, body, "event: connected")
	assert.Contains(t, body, "event: message")
	assert.Contains(t, body, "event: replay_complete")
	assert.Contains(t, body, `"message_count":2`)
}
