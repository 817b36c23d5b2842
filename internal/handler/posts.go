package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"postflow/internal/domain"
	"postflow/internal/domain/models/content"
	contentSvc "postflow/internal/domain/services/content"
	"postflow/internal/httputil"
)

// PostHandler exposes the workflow service over HTTP. It owns no workflow
// rules: every request becomes exactly one service call.
type PostHandler struct {
	service contentSvc.WorkflowService
	logger  *slog.Logger
}

// NewPostHandler creates a new post handler
func NewPostHandler(service contentSvc.WorkflowService, logger *slog.Logger) *PostHandler {
	return &PostHandler{
		service: service,
		logger:  logger,
	}
}

// ListPosts returns the board, newest first.
// GET /api/posts?status=scheduled
func (h *PostHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	posts := h.service.ListPosts()

	if raw := r.URL.Query().Get("status"); raw != "" {
		status, ok := content.ParseStatus(raw)
		if !ok {
			httputil.RespondError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", raw))
			return
		}
		filtered := make([]content.Post, 0, len(posts))
		for _, p := range posts {
			if p.Status == status {
				filtered = append(filtered, p)
			}
		}
		posts = filtered
	}

	httputil.RespondJSON(w, http.StatusOK, posts)
}

// GetPost returns one post.
// GET /api/posts/{id}
func (h *PostHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	post, err := h.service.GetPost(r.PathValue("id"))
	if err != nil {
		handleError(w, err, h.logger)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, post)
}

// CreatePost adds a draft.
// POST /api/posts
func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var req contentSvc.CreatePostRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	post, err := h.service.CreatePost(r.Context(), httputil.GetUserID(r), &req)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, post)
}

// updatePostBody mirrors UpdatePostRequest with PATCH null handling for theme.
type updatePostBody struct {
	Title    *string                  `json:"title"`
	Content  *string                  `json:"content"`
	Platform *content.Platform        `json:"platform"`
	Account  *string                  `json:"account"`
	Theme    httputil.OptionalString  `json:"theme"`
	AIScore  *int                     `json:"ai_score"`
	TOVScore *int                     `json:"tov_score"`
	Media    *[]contentSvc.MediaInput `json:"media"`
}

// UpdatePost edits a post's content.
// PATCH /api/posts/{id}
func (h *PostHandler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	var body updatePostBody
	if err := httputil.ParseJSON(w, r, &body); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	req := &contentSvc.UpdatePostRequest{
		Title:    body.Title,
		Content:  body.Content,
		Platform: body.Platform,
		Account:  body.Account,
		Theme:    body.Theme.Patch(),
		AIScore:  body.AIScore,
		TOVScore: body.TOVScore,
		Media:    body.Media,
	}

	post, err := h.service.UpdatePost(r.Context(), httputil.GetUserID(r), r.PathValue("id"), req)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, post)
}

// DuplicatePost copies a post into a new draft.
// POST /api/posts/{id}/duplicate
func (h *PostHandler) DuplicatePost(w http.ResponseWriter, r *http.Request) {
	post, err := h.service.DuplicatePost(r.Context(), httputil.GetUserID(r), r.PathValue("id"))
	if err != nil {
		handleError(w, err, h.logger)
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, post)
}

type moveBody struct {
	Status content.Status `json:"status"`
}

// MovePost handles a board drag.
// POST /api/posts/{id}/move
func (h *PostHandler) MovePost(w http.ResponseWriter, r *http.Request) {
	var body moveBody
	if err := httputil.ParseJSON(w, r, &body); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !body.Status.Valid() {
		httputil.RespondError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", body.Status))
		return
	}

	h.act(w, r, func(ctx context.Context, actorID, postID string) (*content.Post, error) {
		return h.service.MovePost(ctx, actorID, postID, body.Status)
	})
}

// SubmitForReview sends a draft to its first review gate.
// POST /api/posts/{id}/submit
func (h *PostHandler) SubmitForReview(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, h.service.SubmitForReview)
}

// ApproveCreative passes design review.
// POST /api/posts/{id}/approve-creative
func (h *PostHandler) ApproveCreative(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, h.service.ApproveCreative)
}

// ApproveFinal passes final review.
// POST /api/posts/{id}/approve-final
func (h *PostHandler) ApproveFinal(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, h.service.ApproveFinal)
}

// Deny sends a post back from a review gate.
// POST /api/posts/{id}/deny
func (h *PostHandler) Deny(w http.ResponseWriter, r *http.Request) {
	var req contentSvc.DenyRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.act(w, r, func(ctx context.Context, actorID, postID string) (*content.Post, error) {
		return h.service.Deny(ctx, actorID, postID, &req)
	})
}

// SchedulePost books a slot for an approved post.
// POST /api/posts/{id}/schedule
func (h *PostHandler) SchedulePost(w http.ResponseWriter, r *http.Request) {
	var req contentSvc.ScheduleRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.act(w, r, func(ctx context.Context, actorID, postID string) (*content.Post, error) {
		return h.service.SchedulePost(ctx, actorID, postID, &req)
	})
}

// ReschedulePost books a new slot for a missed or scheduled post.
// POST /api/posts/{id}/reschedule
func (h *PostHandler) ReschedulePost(w http.ResponseWriter, r *http.Request) {
	var req contentSvc.ScheduleRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.act(w, r, func(ctx context.Context, actorID, postID string) (*content.Post, error) {
		return h.service.ReschedulePost(ctx, actorID, postID, &req)
	})
}

// MarkPosted records publication.
// POST /api/posts/{id}/mark-posted
func (h *PostHandler) MarkPosted(w http.ResponseWriter, r *http.Request) {
	var req contentSvc.MarkPostedRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.act(w, r, func(ctx context.Context, actorID, postID string) (*content.Post, error) {
		return h.service.MarkPosted(ctx, actorID, postID, &req)
	})
}

// MoveToDraft pulls a missed post back to draft.
// POST /api/posts/{id}/move-to-draft
func (h *PostHandler) MoveToDraft(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, h.service.MoveToDraft)
}

// RescorePost asks the external scorer for fresh scores.
// POST /api/posts/{id}/rescore
func (h *PostHandler) RescorePost(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, h.service.RescorePost)
}

// AddComment appends to a post's thread.
// POST /api/posts/{id}/comments
func (h *PostHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	var req contentSvc.AddCommentRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	comment, err := h.service.AddComment(r.Context(), httputil.GetUserID(r), r.PathValue("id"), &req)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, comment)
}

type actionFunc func(ctx context.Context, actorID, postID string) (*content.Post, error)

// act runs one workflow action for the path's post and writes the result.
func (h *PostHandler) act(w http.ResponseWriter, r *http.Request, fn actionFunc) {
	actorID := httputil.GetUserID(r)
	if actorID == "" {
		handleError(w, domain.ErrUnauthorized, h.logger)
		return
	}

	post, err := fn(r.Context(), actorID, r.PathValue("id"))
	if err != nil {
		handleError(w, err, h.logger)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, post)
}
