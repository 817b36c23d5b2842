package handler

import "net/http"

// Handlers groups every HTTP handler the server mounts.
type Handlers struct {
	Posts           *PostHandler
	Recommendations *RecommendationHandler
	Stream          *StreamHandler
	Engine          *EngineHandler
}

// Register mounts the routes on mux (Go 1.22 method and wildcard patterns).
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Engine.HealthCheck)

	// Board
	mux.HandleFunc("GET /api/posts", h.Posts.ListPosts)
	mux.HandleFunc("POST /api/posts", h.Posts.CreatePost)
	mux.HandleFunc("GET /api/posts/stream", h.Stream.StreamPosts)
	mux.HandleFunc("POST /api/posts/sweep", h.Engine.Sweep)
	mux.HandleFunc("GET /api/posts/{id}", h.Posts.GetPost)
	mux.HandleFunc("PATCH /api/posts/{id}", h.Posts.UpdatePost)

	// Workflow actions
	mux.HandleFunc("POST /api/posts/{id}/duplicate", h.Posts.DuplicatePost)
	mux.HandleFunc("POST /api/posts/{id}/move", h.Posts.MovePost)
	mux.HandleFunc("POST /api/posts/{id}/submit", h.Posts.SubmitForReview)
	mux.HandleFunc("POST /api/posts/{id}/approve-creative", h.Posts.ApproveCreative)
	mux.HandleFunc("POST /api/posts/{id}/approve-final", h.Posts.ApproveFinal)
	mux.HandleFunc("POST /api/posts/{id}/deny", h.Posts.Deny)
	mux.HandleFunc("POST /api/posts/{id}/schedule", h.Posts.SchedulePost)
	mux.HandleFunc("POST /api/posts/{id}/reschedule", h.Posts.ReschedulePost)
	mux.HandleFunc("POST /api/posts/{id}/mark-posted", h.Posts.MarkPosted)
	mux.HandleFunc("POST /api/posts/{id}/move-to-draft", h.Posts.MoveToDraft)
	mux.HandleFunc("POST /api/posts/{id}/rescore", h.Posts.RescorePost)
	mux.HandleFunc("POST /api/posts/{id}/comments", h.Posts.AddComment)

	// Posting-time advice
	mux.HandleFunc("GET /api/recommendations", h.Recommendations.Recommend)
	mux.HandleFunc("GET /api/recommendations/next", h.Recommendations.NextTimes)

	// Engine
	mux.HandleFunc("GET /api/engine/error", h.Engine.GetError)
	mux.HandleFunc("DELETE /api/engine/error", h.Engine.ClearError)
}
