package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/parley-ai/parley/internal/middleware"
	"github.com/parley-ai/parley/internal/model"
	"github.com/parley-ai/parley/internal/service"
	"github.com/parley-ai/parley/pkg/logger"
)

// MessageHandler handles the non-streaming turn endpoint.
type MessageHandler struct {
	turns  *service.TurnService
	logger *logger.Logger
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(turns *service.TurnService, log *logger.Logger) *MessageHandler {
	return &MessageHandler{
		turns:  turns,
		logger: log,
	}
}

// Send handles POST /api/v1/threads/{id}/messages. It runs a full turn and
// returns the turn's messages once the final answer is available.
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
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

	turn, err := h.turns.Run(r.Context(), threadID, req.Content, nil)
	if err != nil {
		h.logger.Error("turn failed",
			zap.String("thread_id", threadID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to process message")
		return
	}

	writeJSON(w, http.StatusCreated, &model.SendMessageResponse{Messages: turn})
}
