package handler

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"postflow/internal/domain/models/content"
	contentSvc "postflow/internal/domain/services/content"
	"postflow/internal/handler/sse"
	"postflow/internal/httputil"
)

// boardEvent is the payload of every "board" event: the full post list plus
// the engine's current error slot.
type boardEvent struct {
	Posts     []content.Post `json:"posts"`
	LastError string         `json:"last_error,omitempty"`
}

// StreamHandler pushes the board to live clients over Server-Sent Events.
type StreamHandler struct {
	service contentSvc.WorkflowService
	config  *sse.Config
	logger  *slog.Logger
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(service contentSvc.WorkflowService, config *sse.Config, logger *slog.Logger) *StreamHandler {
	if config == nil {
		config = sse.DefaultConfig()
	}
	return &StreamHandler{service: service, config: config, logger: logger}
}

// StreamPosts sends the board once on connect and again after every change.
// Slow clients only ever receive the latest board; intermediate ones are
// dropped.
// GET /api/posts/stream
func (h *StreamHandler) StreamPosts(w http.ResponseWriter, r *http.Request) {
	writer, err := sse.NewWriter(w)
	if err != nil {
		httputil.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	clientID := uuid.NewString()
	logger := h.logger.With("client_id", clientID, "user_id", httputil.GetUserID(r))
	logger.Info("board stream connected")
	defer logger.Info("board stream closed")

	updates := make(chan []content.Post, 1)
	cancel := h.service.Watch(func(posts []content.Post) {
		for {
			select {
			case updates <- posts:
				return
			default:
			}
			// Replace the unsent board with the newer one
			select {
			case <-updates:
			default:
			}
		}
	})
	defer cancel()

	if err := writer.WriteEvent("board", h.event(h.service.ListPosts())); err != nil {
		logger.Debug("initial board write failed", "error", err)
		return
	}

	keepAlive := sse.NewTickerKeepAlive(h.config.KeepAliveInterval)
	stopped := keepAlive.Start(writer, logger)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-stopped:
			return
		case posts := <-updates:
			if err := writer.WriteEvent("board", h.event(posts)); err != nil {
				logger.Debug("board write failed", "error", err)
				return
			}
		}
	}
}

func (h *StreamHandler) event(posts []content.Post) boardEvent {
	return boardEvent{Posts: posts, LastError: h.service.LastError()}
}
