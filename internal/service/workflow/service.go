package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"postflow/internal/config"
	"postflow/internal/domain"
	"postflow/internal/domain/models/content"
	"postflow/internal/domain/repositories"
	contentSvc "postflow/internal/domain/services/content"

	"github.com/araddon/dateparse"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// Service implements WorkflowService on top of a Store and a Gateway.
type Service struct {
	store     *Store
	gateway   repositories.Gateway
	txManager repositories.TransactionManager
	dir       Directory
	scorer    contentSvc.Scorer
	now       func() time.Time
	logger    *slog.Logger

	errMu   sync.RWMutex
	lastErr string

	sweeps       singleflight.Group
	sweepLimiter *rate.Limiter
}

var _ contentSvc.WorkflowService = (*Service)(nil)

// Option configures a Service.
type Option func(*Service)

// WithScorer enables RescorePost.
func WithScorer(scorer contentSvc.Scorer) Option {
	return func(s *Service) { s.scorer = scorer }
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithSweepLimit spaces the sweeper's batch writes at least minGap apart. A
// sweep with posts to flip inside the gap waits for it; no sweep is skipped.
func WithSweepLimit(minGap time.Duration) Option {
	return func(s *Service) {
		if minGap <= 0 {
			s.sweepLimiter = nil
			return
		}
		s.sweepLimiter = rate.NewLimiter(rate.Every(minGap), 1)
	}
}

// NewService creates the workflow service.
func NewService(
	store *Store,
	gateway repositories.Gateway,
	txManager repositories.TransactionManager,
	dir Directory,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		store:     store,
		gateway:   gateway,
		txManager: txManager,
		dir:       dir,
		now:       time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListPosts returns every cached post, newest first.
func (s *Service) ListPosts() []content.Post {
	return s.store.Posts()
}

// GetPost returns one cached post.
func (s *Service) GetPost(postID string) (*content.Post, error) {
	p, ok := s.store.Get(postID)
	if !ok {
		return nil, &domain.NotFoundError{Message: fmt.Sprintf("post %s not found", postID)}
	}
	return &p, nil
}

// Watch registers fn for every change of the post list.
func (s *Service) Watch(fn func([]content.Post)) func() {
	return s.store.Watch(fn)
}

// CreatePost adds a new draft owned by actorID.
func (s *Service) CreatePost(ctx context.Context, actorID string, req *contentSvc.CreatePostRequest) (*content.Post, error) {
	if err := validateCreateRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	now := s.now()
	p := content.Post{
		ID:        uuid.NewString(),
		Title:     strings.TrimSpace(req.Title),
		Content:   req.Content,
		Platform:  req.Platform,
		Account:   strings.TrimSpace(req.Account),
		Theme:     req.Theme,
		Status:    content.StatusDraft,
		Comments:  []content.Comment{},
		CreatedBy: actorID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.AIScore != nil {
		p.AIScore = *req.AIScore
	}
	if req.TOVScore != nil {
		p.TOVScore = *req.TOVScore
	}
	p.Media = buildMedia(p.ID, nil, req.Media, now)
	p.RefreshCreative()
	p.WaitingFor = waitingFor(content.StatusDraft, &p, s.dir)

	return s.insertPost(ctx, "create post", p)
}

// UpdatePost edits content fields and, optionally, replaces the attachments.
func (s *Service) UpdatePost(ctx context.Context, actorID, postID string, req *contentSvc.UpdatePostRequest) (*content.Post, error) {
	if err := validateUpdateRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	edit := func(p *content.Post, now time.Time) (bool, error) {
		if p.Status == content.StatusPosted {
			return false, invalid(p, "edit")
		}
		if req.Title != nil {
			p.Title = strings.TrimSpace(*req.Title)
		}
		if req.Content != nil {
			p.Content = *req.Content
		}
		if req.Platform != nil {
			p.Platform = *req.Platform
		}
		if req.Account != nil {
			p.Account = strings.TrimSpace(*req.Account)
		}
		if req.Theme != nil {
			if t := strings.TrimSpace(*req.Theme); t != "" {
				p.Theme = &t
			} else {
				p.Theme = nil
			}
		}
		if req.AIScore != nil {
			p.AIScore = *req.AIScore
		}
		if req.TOVScore != nil {
			p.TOVScore = *req.TOVScore
		}
		if req.Media != nil {
			p.Media = buildMedia(p.ID, p.Media, *req.Media, now)
			p.RefreshCreative()
		}
		return true, nil
	}

	return s.mutate(ctx, "update post", postID, edit, s.persistWithMedia)
}

// DuplicatePost copies a post's content and media into a fresh draft.
func (s *Service) DuplicatePost(ctx context.Context, actorID, postID string) (*content.Post, error) {
	src, ok := s.store.Get(postID)
	if !ok {
		return nil, &domain.NotFoundError{Message: fmt.Sprintf("post %s not found", postID)}
	}

	now := s.now()
	p := content.Post{
		ID:        uuid.NewString(),
		Title:     src.Title + " (Copy)",
		Content:   src.Content,
		Platform:  src.Platform,
		Account:   src.Account,
		Theme:     src.Theme,
		AIScore:   src.AIScore,
		TOVScore:  src.TOVScore,
		Status:    content.StatusDraft,
		Comments:  []content.Comment{},
		CreatedBy: actorID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, m := range src.Media {
		m.ID = uuid.NewString()
		m.PostID = p.ID
		m.CreatedAt = now
		p.Media = append(p.Media, m)
	}
	if p.Media == nil {
		p.Media = []content.MediaFile{}
	}
	p.RefreshCreative()
	p.WaitingFor = waitingFor(content.StatusDraft, &p, s.dir)

	return s.insertPost(ctx, "duplicate post", p)
}

// MovePost resolves a board drag.
func (s *Service) MovePost(ctx context.Context, actorID, postID string, to content.Status) (*content.Post, error) {
	return s.mutate(ctx, "move post", postID, Move(to, s.dir), s.persistPost)
}

func (s *Service) SubmitForReview(ctx context.Context, actorID, postID string) (*content.Post, error) {
	return s.mutate(ctx, "submit for review", postID, Submit(s.dir), s.persistPost)
}

func (s *Service) ApproveCreative(ctx context.Context, actorID, postID string) (*content.Post, error) {
	return s.mutate(ctx, "approve creative", postID, ApproveCreative(actorID, s.dir), s.persistPost)
}

func (s *Service) ApproveFinal(ctx context.Context, actorID, postID string) (*content.Post, error) {
	return s.mutate(ctx, "approve final", postID, ApproveFinal(actorID, s.dir), s.persistPost)
}

// Deny sends a post back from either gate. The post update and its denial
// comment are written in one transaction.
func (s *Service) Deny(ctx context.Context, actorID, postID string, req *contentSvc.DenyRequest) (*content.Post, error) {
	if req == nil {
		return nil, &domain.ValidationError{Message: "A reason is required to deny a post"}
	}
	d := Denial{Gate: req.Gate, ActorID: actorID, Reason: req.Reason, ReturnTo: req.ReturnTo}
	op := "deny creative"
	if req.Gate == content.GateFinal {
		op = "deny final approval"
	}
	return s.mutate(ctx, op, postID, Deny(d, s.dir), s.persistWithComments)
}

func (s *Service) DenyCreative(ctx context.Context, actorID, postID, reason string) (*content.Post, error) {
	return s.Deny(ctx, actorID, postID, &contentSvc.DenyRequest{Gate: content.GateCreative, Reason: reason})
}

func (s *Service) DenyFinal(ctx context.Context, actorID, postID, reason string, returnTo content.Status) (*content.Post, error) {
	return s.Deny(ctx, actorID, postID, &contentSvc.DenyRequest{Gate: content.GateFinal, Reason: reason, ReturnTo: returnTo})
}

// SchedulePost books an approved post into a future slot.
func (s *Service) SchedulePost(ctx context.Context, actorID, postID string, req *contentSvc.ScheduleRequest) (*content.Post, error) {
	at, err := s.resolveSlot(req)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, "schedule post", postID, Schedule(at, s.store.loc), s.persistPost)
}

// ReschedulePost moves a missed or scheduled post to a new slot.
func (s *Service) ReschedulePost(ctx context.Context, actorID, postID string, req *contentSvc.ScheduleRequest) (*content.Post, error) {
	at, err := s.resolveSlot(req)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, "reschedule post", postID, Reschedule(at, s.store.loc), s.persistPost)
}

func (s *Service) MarkPosted(ctx context.Context, actorID, postID string, req *contentSvc.MarkPostedRequest) (*content.Post, error) {
	var url *string
	if req != nil {
		url = req.PostURL
	}
	return s.mutate(ctx, "mark post as posted", postID, MarkPosted(url), s.persistPost)
}

func (s *Service) MoveToDraft(ctx context.Context, actorID, postID string) (*content.Post, error) {
	return s.mutate(ctx, "move post to draft", postID, MoveToDraft(), s.persistPost)
}

// AddComment appends to a post's thread. Only the comments table is written.
func (s *Service) AddComment(ctx context.Context, actorID, postID string, req *contentSvc.AddCommentRequest) (*content.Comment, error) {
	if req == nil {
		req = &contentSvc.AddCommentRequest{}
	}
	text := strings.TrimSpace(req.Text)
	err := validation.Validate(text,
		validation.Required.Error("comment text is required"),
		validation.RuneLength(1, config.MaxCommentLength),
	)
	if err != nil {
		return nil, &domain.ValidationError{Message: err.Error()}
	}

	var added content.Comment
	appendComment := func(p *content.Post, now time.Time) (bool, error) {
		added = content.Comment{
			ID:         uuid.NewString(),
			PostID:     p.ID,
			AuthorID:   actorID,
			AuthorName: s.dir.DisplayName(actorID),
			Text:       text,
			CreatedAt:  now,
		}
		p.Comments = append(p.Comments, added)
		return true, nil
	}

	persist := func(ctx context.Context, before, after *content.Post) error {
		_, err := s.gateway.Insert(ctx, s.store.tables.Comments, commentToRow(added))
		return err
	}

	if _, err := s.apply(ctx, "add comment", postID, appendComment, persist); err != nil {
		return nil, err
	}
	return &added, nil
}

// RescorePost asks the scorer for fresh AI and tone-of-voice scores.
func (s *Service) RescorePost(ctx context.Context, actorID, postID string) (*content.Post, error) {
	if s.scorer == nil {
		return nil, &domain.ValidationError{Message: "no scorer is configured"}
	}
	current, ok := s.store.Get(postID)
	if !ok {
		return nil, &domain.NotFoundError{Message: fmt.Sprintf("post %s not found", postID)}
	}

	ai, tov, err := s.scorer.Score(ctx, &current)
	if err != nil {
		return nil, fmt.Errorf("score post %s: %w", postID, err)
	}
	if err := validation.Validate(ai, validation.Min(0), validation.Max(100)); err != nil {
		return nil, fmt.Errorf("scorer returned ai score %d: %w", ai, err)
	}
	if err := validation.Validate(tov, validation.Min(0), validation.Max(100)); err != nil {
		return nil, fmt.Errorf("scorer returned tone of voice score %d: %w", tov, err)
	}

	rescore := func(p *content.Post, now time.Time) (bool, error) {
		if p.AIScore == ai && p.TOVScore == tov {
			return false, nil
		}
		p.AIScore = ai
		p.TOVScore = tov
		return true, nil
	}
	return s.mutate(ctx, "rescore post", postID, rescore, s.persistPost)
}

// insertPost applies a brand new post locally and writes it with its media.
func (s *Service) insertPost(ctx context.Context, op string, p content.Post) (*content.Post, error) {
	s.ClearError()
	res := s.store.insert(p)

	err := s.txManager.ExecTx(context.WithoutCancel(ctx), func(txCtx context.Context) error {
		if _, err := s.gateway.Insert(txCtx, s.store.tables.Posts, postToRow(&p)); err != nil {
			return err
		}
		for _, m := range p.Media {
			if _, err := s.gateway.Insert(txCtx, s.store.tables.Media, mediaToRow(m)); err != nil {
				return fmt.Errorf("media %s: %w", m.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, s.fail(op, p.ID, res.gen, err)
	}
	s.store.confirm(p.ID, res.gen)

	s.logger.Info("post created", "op", op, "post_id", p.ID, "media", len(p.Media))
	return &res.after, nil
}

// persistPost writes every mutable column of after.
func (s *Service) persistPost(ctx context.Context, before, after *content.Post) error {
	return s.gateway.UpdateByID(ctx, s.store.tables.Posts, after.ID, postPatch(after))
}

// persistWithComments writes the post and the comments the mutation added.
func (s *Service) persistWithComments(ctx context.Context, before, after *content.Post) error {
	return s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		if err := s.persistPost(txCtx, before, after); err != nil {
			return err
		}
		for _, c := range newComments(before, after) {
			if _, err := s.gateway.Insert(txCtx, s.store.tables.Comments, commentToRow(c)); err != nil {
				return fmt.Errorf("comment %s: %w", c.ID, err)
			}
		}
		return nil
	})
}

// persistWithMedia writes the post and reconciles its media rows.
func (s *Service) persistWithMedia(ctx context.Context, before, after *content.Post) error {
	added, removed := mediaDiff(before, after)
	return s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		if err := s.persistPost(txCtx, before, after); err != nil {
			return err
		}
		for _, id := range removed {
			if err := s.gateway.DeleteByID(txCtx, s.store.tables.Media, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("media %s: %w", id, err)
			}
		}
		for _, m := range added {
			if _, err := s.gateway.Insert(txCtx, s.store.tables.Media, mediaToRow(m)); err != nil {
				return fmt.Errorf("media %s: %w", m.ID, err)
			}
		}
		return nil
	})
}

// resolveSlot turns a schedule request into an instant. A date and time are
// read in the store's timezone.
func (s *Service) resolveSlot(req *contentSvc.ScheduleRequest) (time.Time, error) {
	if req == nil {
		return time.Time{}, &domain.ValidationError{Message: "A date and time are required"}
	}
	if req.At != nil {
		return *req.At, nil
	}

	err := validation.ValidateStruct(req,
		validation.Field(&req.Date, validation.Required.Error("A date is required")),
		validation.Field(&req.Time, validation.Required.Error("A time is required")),
	)
	if err != nil {
		return time.Time{}, &domain.ValidationError{Message: err.Error()}
	}

	at, err := dateparse.ParseIn(strings.TrimSpace(req.Date)+" "+strings.TrimSpace(req.Time), s.store.loc)
	if err != nil {
		return time.Time{}, &domain.ValidationError{Message: fmt.Sprintf("invalid date or time %q %q", req.Date, req.Time)}
	}
	return at, nil
}

// buildMedia turns inputs into attachments, keeping existing files whose id
// is repeated.
func buildMedia(postID string, existing []content.MediaFile, inputs []contentSvc.MediaInput, now time.Time) []content.MediaFile {
	byID := make(map[string]content.MediaFile, len(existing))
	for _, m := range existing {
		byID[m.ID] = m
	}

	out := make([]content.MediaFile, 0, len(inputs))
	for _, in := range inputs {
		if m, ok := byID[in.ID]; ok && in.ID != "" {
			out = append(out, m)
			continue
		}
		mediaType := in.Type
		if !mediaType.Valid() {
			mediaType = content.MediaDocument
		}
		out = append(out, content.MediaFile{
			ID:           uuid.NewString(),
			PostID:       postID,
			Type:         mediaType,
			URL:          in.URL,
			Name:         in.Name,
			Size:         in.Size,
			Width:        in.Width,
			Height:       in.Height,
			Duration:     in.Duration,
			ThumbnailURL: in.ThumbnailURL,
			CreatedAt:    now,
		})
	}
	return out
}

func validateCreateRequest(req *contentSvc.CreatePostRequest) error {
	if req == nil {
		return errors.New("request body is required")
	}
	return validation.ValidateStruct(req,
		validation.Field(&req.Title, validation.Required, validation.RuneLength(1, config.MaxTitleLength)),
		validation.Field(&req.Platform, validation.Required, validation.By(validPlatform)),
		validation.Field(&req.Account, validation.Required),
		validation.Field(&req.AIScore, validation.Min(0), validation.Max(100)),
		validation.Field(&req.TOVScore, validation.Min(0), validation.Max(100)),
		validation.Field(&req.Media, validation.Each(validation.By(validMedia))),
	)
}

func validateUpdateRequest(req *contentSvc.UpdatePostRequest) error {
	if req == nil {
		return errors.New("request body is required")
	}
	return validation.ValidateStruct(req,
		validation.Field(&req.Title, validation.NilOrNotEmpty, validation.RuneLength(1, config.MaxTitleLength)),
		validation.Field(&req.Platform, validation.By(validPlatform)),
		validation.Field(&req.Account, validation.NilOrNotEmpty),
		validation.Field(&req.AIScore, validation.Min(0), validation.Max(100)),
		validation.Field(&req.TOVScore, validation.Min(0), validation.Max(100)),
	)
}

func validPlatform(value any) error {
	var p content.Platform
	switch v := value.(type) {
	case content.Platform:
		p = v
	case *content.Platform:
		if v == nil {
			return nil
		}
		p = *v
	default:
		return errors.New("must be a platform")
	}
	if !p.Valid() {
		return fmt.Errorf("unsupported platform %q", p)
	}
	return nil
}

func validMedia(value any) error {
	m, ok := value.(contentSvc.MediaInput)
	if !ok {
		return errors.New("must be a media file")
	}
	if m.ID == "" && strings.TrimSpace(m.URL) == "" {
		return errors.New("url is required")
	}
	return nil
}
