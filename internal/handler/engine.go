package handler

import (
	"log/slog"
	"net/http"

	contentSvc "postflow/internal/domain/services/content"
	"postflow/internal/httputil"
)

// EngineHandler exposes the workflow engine's housekeeping: the error slot,
// the missed-post sweep and the health check.
type EngineHandler struct {
	service contentSvc.WorkflowService
	logger  *slog.Logger
}

// NewEngineHandler creates a new engine handler
func NewEngineHandler(service contentSvc.WorkflowService, logger *slog.Logger) *EngineHandler {
	return &EngineHandler{service: service, logger: logger}
}

// GetError returns the most recent failed remote write.
// GET /api/engine/error
func (h *EngineHandler) GetError(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, map[string]any{"error": h.service.LastError()})
}

// ClearError dismisses the error slot.
// DELETE /api/engine/error
func (h *EngineHandler) ClearError(w http.ResponseWriter, r *http.Request) {
	h.service.ClearError()
	w.WriteHeader(http.StatusNoContent)
}

// Sweep flips overdue scheduled posts to missed. Boards call it on mount;
// calls close together collapse into one scan.
// POST /api/posts/sweep
func (h *EngineHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.CheckAndMarkMissedPosts(r.Context())
	if err != nil {
		handleError(w, err, h.logger)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, map[string]any{"marked_missed": n})
}

// HealthCheck reports liveness and the cached board size.
// GET /health
func (h *EngineHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"posts":  len(h.service.ListPosts()),
	})
}
