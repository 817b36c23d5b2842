package content

import (
	"context"
	"time"

	"postflow/internal/domain/models/content"
)

// WorkflowService drives posts through review, scheduling and publication.
// Every mutation applies locally first and is rolled back if the remote write
// fails; the failure is also kept in the LastError slot.
type WorkflowService interface {
	// ListPosts returns every cached post, newest first
	ListPosts() []content.Post

	// GetPost returns one cached post
	GetPost(postID string) (*content.Post, error)

	CreatePost(ctx context.Context, actorID string, req *CreatePostRequest) (*content.Post, error)
	UpdatePost(ctx context.Context, actorID, postID string, req *UpdatePostRequest) (*content.Post, error)
	DuplicatePost(ctx context.Context, actorID, postID string) (*content.Post, error)

	// MovePost resolves a board drag to the matching transition
	MovePost(ctx context.Context, actorID, postID string, to content.Status) (*content.Post, error)

	SubmitForReview(ctx context.Context, actorID, postID string) (*content.Post, error)
	ApproveCreative(ctx context.Context, actorID, postID string) (*content.Post, error)
	ApproveFinal(ctx context.Context, actorID, postID string) (*content.Post, error)
	Deny(ctx context.Context, actorID, postID string, req *DenyRequest) (*content.Post, error)
	DenyCreative(ctx context.Context, actorID, postID, reason string) (*content.Post, error)
	DenyFinal(ctx context.Context, actorID, postID, reason string, returnTo content.Status) (*content.Post, error)

	SchedulePost(ctx context.Context, actorID, postID string, req *ScheduleRequest) (*content.Post, error)
	ReschedulePost(ctx context.Context, actorID, postID string, req *ScheduleRequest) (*content.Post, error)
	MarkPosted(ctx context.Context, actorID, postID string, req *MarkPostedRequest) (*content.Post, error)
	MoveToDraft(ctx context.Context, actorID, postID string) (*content.Post, error)

	AddComment(ctx context.Context, actorID, postID string, req *AddCommentRequest) (*content.Comment, error)
	RescorePost(ctx context.Context, actorID, postID string) (*content.Post, error)

	// CheckAndMarkMissedPosts flips every overdue scheduled post to missed in
	// one batch and returns how many it flipped
	CheckAndMarkMissedPosts(ctx context.Context) (int, error)

	// LastError is the message of the most recent failed remote write, or ""
	LastError() string
	ClearError()

	// Watch registers a listener for the full post list after every change
	Watch(fn func([]content.Post)) (cancel func())
}

// MediaInput describes one attachment on create or update.
type MediaInput struct {
	ID           string            `json:"id,omitempty"` // keeps an existing file on update
	Type         content.MediaType `json:"type"`
	URL          string            `json:"url"`
	Name         string            `json:"name"`
	Size         int64             `json:"size"`
	Width        int               `json:"width,omitempty"`
	Height       int               `json:"height,omitempty"`
	Duration     *float64          `json:"duration,omitempty"`
	ThumbnailURL *string           `json:"thumbnail_url,omitempty"`
}

// CreatePostRequest creates a draft. Scores come from the external scorer.
type CreatePostRequest struct {
	Title    string           `json:"title"`
	Content  string           `json:"content"`
	Platform content.Platform `json:"platform"`
	Account  string           `json:"account"`
	Theme    *string          `json:"theme,omitempty"`
	AIScore  *int             `json:"ai_score,omitempty"`
	TOVScore *int             `json:"tov_score,omitempty"`
	Media    []MediaInput     `json:"media,omitempty"`
}

// UpdatePostRequest edits a post's content. Media, when present, replaces the
// whole attachment list.
type UpdatePostRequest struct {
	Title    *string           `json:"title,omitempty"`
	Content  *string           `json:"content,omitempty"`
	Platform *content.Platform `json:"platform,omitempty"`
	Account  *string           `json:"account,omitempty"`
	Theme    *string           `json:"theme,omitempty"`
	AIScore  *int              `json:"ai_score,omitempty"`
	TOVScore *int              `json:"tov_score,omitempty"`
	Media    *[]MediaInput     `json:"media,omitempty"`
}

// DenyRequest sends a post back from a review gate.
type DenyRequest struct {
	Gate     content.Gate   `json:"gate"`
	Reason   string         `json:"reason"`
	ReturnTo content.Status `json:"return_to,omitempty"`
}

// ScheduleRequest books a slot either as an instant or as a date and time in
// the workspace timezone.
type ScheduleRequest struct {
	At   *time.Time `json:"at,omitempty"`
	Date string     `json:"date,omitempty"` // e.g. "2025-03-14"
	Time string     `json:"time,omitempty"` // e.g. "09:30"
}

// MarkPostedRequest records publication.
type MarkPostedRequest struct {
	PostURL *string `json:"post_url,omitempty"`
}

// AddCommentRequest appends to a post's thread.
type AddCommentRequest struct {
	Text string `json:"text"`
}

// Scorer rates a post's text. The workflow only stores what it returns.
type Scorer interface {
	Score(ctx context.Context, post *content.Post) (aiScore, tovScore int, err error)
}
