package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/parley-ai/parley/internal/checkpoint"
	"github.com/parley-ai/parley/internal/middleware"
	"github.com/parley-ai/parley/internal/model"
	"github.com/parley-ai/parley/internal/service"
	"github.com/parley-ai/parley/pkg/logger"
	"github.com/parley-ai/parley/pkg/metrics"
)

// StreamHandler handles SSE streaming endpoints.
type StreamHandler struct {
	turns   *service.TurnService
	threads *service.ThreadService
	store   checkpoint.Store
	logger  *logger.Logger
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(
	turns *service.TurnService,
	threads *service.ThreadService,
	store checkpoint.Store,
	log *logger.Logger,
) *StreamHandler {
	return &StreamHandler{
		turns:   turns,
		threads: threads,
		store:   store,
		logger:  log,
	}
}

// sseSink forwards turn events to an open SSE response. The engine calls it
// from a single goroutine, so no locking is needed.
type sseSink struct {
	ctx     context.Context
	w       http.ResponseWriter
	flusher http.Flusher
}

func (s *sseSink) Token(token string, index int) error {
	select {
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
	}

	return sendSSEEvent(s.w, s.flusher, "token", &model.TokenEvent{
		Token: token,
		Index: index,
	})
}

func (s *sseSink) ToolStart(call model.ToolCall) {
	sendSSEEvent(s.w, s.flusher, "tool_start", &model.ToolStartEvent{
		ToolCallID: call.ID,
		Name:       call.Name,
		Arguments:  call.Arguments,
	})
}

func (s *sseSink) ToolResult(msg model.Message) {
	sendSSEEvent(s.w, s.flusher, "tool_result", &model.ToolResultEvent{
		Message: msg,
	})
}

// StreamTurn handles POST /api/v1/threads/{id}/stream
// It accepts a message and streams the turn: tokens as they arrive, tool
// activity as it happens, and the completed messages at the end.
func (h *StreamHandler) StreamTurn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	threadID := chi.URLParam(r, "id")

	if err := middleware.ValidateThreadID(threadID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req model.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := middleware.ValidateMessageContent(req.Content); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// The server write timeout would cut a long turn off mid-stream.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	// Track active connection
	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	sink := &sseSink{ctx: ctx, w: w, flusher: flusher}

	turn, err := h.turns.Run(ctx, threadID, req.Content, sink)
	if err != nil {
		sendSSEEvent(w, flusher, "error", &model.ErrorEvent{
			Code:    "stream_error",
			Message: err.Error(),
		})
		return
	}

	// Send user message confirmation
	sendSSEEvent(w, flusher, "user_message", &turn[0])

	// Send message complete event with the final assistant message
	final := turn[len(turn)-1]
	sendSSEEvent(w, flusher, "message_complete", &model.MessageCompleteEvent{
		Message: final,
	})

	// Send done event
	sendSSEEvent(w, flusher, "done", map[string]bool{"success": true})
}

// Stream handles GET /api/v1/threads/{id}/stream
// It replays the thread's history, then keeps the connection alive with
// heartbeats until the client disconnects.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	threadID := chi.URLParam(r, "id")

	if err := middleware.ValidateThreadID(threadID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.threads.Get(ctx, threadID); err != nil {
		writeError(w, http.StatusNotFound, "thread not found")
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// Heartbeats keep this connection open well past the server write
	// timeout; lift the deadline for its lifetime.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	// Track active connection
	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	done := ctx.Done()

	// Send initial connection event
	sendSSEEvent(w, flusher, "connected", map[string]string{
		"thread_id": threadID,
	})

	history, err := h.store.GetHistory(ctx, threadID)
	if err != nil {
		h.logger.Error("failed to replay history",
			zap.String("thread_id", threadID),
			zap.Error(err),
		)
		sendSSEEvent(w, flusher, "error", &model.ErrorEvent{
			Code:    "replay_error",
			Message: "Failed to replay messages",
		})
		return
	}

	for i := range history {
		select {
		case <-done:
			return
		default:
		}

		sendSSEEvent(w, flusher, "message", &history[i])
	}

	sendSSEEvent(w, flusher, "replay_complete", map[string]int{
		"message_count": len(history),
	})

	// Heartbeat ticker keeps the connection alive
	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-done:
			h.logger.Info("SSE client disconnected", zap.String("thread_id", threadID))
			return

		case <-heartbeat.C:
			sendSSEEvent(w, flusher, "heartbeat", &model.HeartbeatEvent{
				Timestamp: time.Now(),
			})
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
	flusher.Flush()

	return nil
}
