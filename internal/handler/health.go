package handler

import (
	"net/http"

	"github.com/parley-ai/parley/internal/checkpoint"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	store checkpoint.Store
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(store checkpoint.Store) *HealthHandler {
	return &HealthHandler{
		store: store,
	}
}

// Health handles GET /healthz
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready handles GET /readyz
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "checkpoint store unreachable",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
