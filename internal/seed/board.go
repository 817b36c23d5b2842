// Package seed fills an empty board with a small team and posts spread
// across the workflow, for local development and demos.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"postflow/internal/domain"
	"postflow/internal/domain/models"
	"postflow/internal/domain/models/content"
	"postflow/internal/domain/repositories"
	contentSvc "postflow/internal/domain/services/content"
)

// Demo team. Point DEV_USER_ID at one of these to act as that person.
const (
	AuthorID   = "11111111-1111-4111-8111-111111111111"
	DesignerID = "22222222-2222-4222-8222-222222222222"
	ApproverID = "33333333-3333-4333-8333-333333333333"
)

// Team returns the demo profiles.
func Team() []models.Profile {
	return []models.Profile{
		{UserID: AuthorID, RoleKey: models.RoleAuthor, FullName: "Alex Author"},
		{UserID: DesignerID, RoleKey: models.RoleDesigner, FullName: "Dana Designer"},
		{UserID: ApproverID, RoleKey: models.RoleApprover, FullName: "Ondrej Approver"},
	}
}

// ProfileReloader is refreshed after the team is written so the workflow can
// resolve roles for the seeded posts.
type ProfileReloader interface {
	Refresh(ctx context.Context) error
}

// BoardSeeder writes the demo team and drives demo posts through the real
// workflow, so every seeded state is one the engine can reach.
type BoardSeeder struct {
	gateway  repositories.Gateway
	profiles string
	reloader ProfileReloader
	workflow contentSvc.WorkflowService
	logger   *slog.Logger
}

// NewBoardSeeder creates a new board seeder
func NewBoardSeeder(
	gateway repositories.Gateway,
	profilesTable string,
	reloader ProfileReloader,
	workflow contentSvc.WorkflowService,
	logger *slog.Logger,
) *BoardSeeder {
	return &BoardSeeder{
		gateway:  gateway,
		profiles: profilesTable,
		reloader: reloader,
		workflow: workflow,
		logger:   logger,
	}
}

// SeedTeam inserts the demo profiles. Existing ones are left alone.
func (s *BoardSeeder) SeedTeam(ctx context.Context) error {
	for _, p := range Team() {
		_, err := s.gateway.Insert(ctx, s.profiles, repositories.Row{
			"id":        p.UserID,
			"role_key":  string(p.RoleKey),
			"full_name": p.FullName,
		})
		if err != nil && !errors.Is(err, domain.ErrConflict) {
			return fmt.Errorf("insert profile %s: %w", p.FullName, err)
		}
	}
	return s.reloader.Refresh(ctx)
}

// step is one workflow action applied to a freshly created post.
type step func(ctx context.Context, w contentSvc.WorkflowService, postID string) error

type demoPost struct {
	req   contentSvc.CreatePostRequest
	steps []step
}

// SeedPosts creates the demo posts. A board that already has posts is left
// untouched. now anchors the scheduled slots.
func (s *BoardSeeder) SeedPosts(ctx context.Context, now time.Time) (int, error) {
	if n := len(s.workflow.ListPosts()); n > 0 {
		s.logger.Info("board already has posts, skipping seed", "posts", n)
		return 0, nil
	}

	created := 0
	for _, d := range demoPosts(now) {
		post, err := s.workflow.CreatePost(ctx, AuthorID, &d.req)
		if err != nil {
			return created, fmt.Errorf("create %q: %w", d.req.Title, err)
		}
		created++
		for _, st := range d.steps {
			if err := st(ctx, s.workflow, post.ID); err != nil {
				return created, fmt.Errorf("advance %q: %w", d.req.Title, err)
			}
		}
		s.logger.Debug("seeded post", "post_id", post.ID, "title", d.req.Title)
	}

	s.logger.Info("seeded demo board", "posts", created)
	return created, nil
}

func submit(ctx context.Context, w contentSvc.WorkflowService, id string) error {
	_, err := w.SubmitForReview(ctx, AuthorID, id)
	return err
}

func approveCreative(ctx context.Context, w contentSvc.WorkflowService, id string) error {
	_, err := w.ApproveCreative(ctx, DesignerID, id)
	return err
}

func approveFinal(ctx context.Context, w contentSvc.WorkflowService, id string) error {
	_, err := w.ApproveFinal(ctx, ApproverID, id)
	return err
}

func denyCreative(reason string) step {
	return func(ctx context.Context, w contentSvc.WorkflowService, id string) error {
		_, err := w.DenyCreative(ctx, DesignerID, id, reason)
		return err
	}
}

func scheduleAt(at time.Time) step {
	return func(ctx context.Context, w contentSvc.WorkflowService, id string) error {
		_, err := w.SchedulePost(ctx, ApproverID, id, &contentSvc.ScheduleRequest{At: &at})
		return err
	}
}

func intPtr(v int) *int { return &v }

func body(topic string) string {
	return "We are excited to share " + topic + " with our community. " +
		strings.Repeat("Stay tuned for more details. ", 2)
}

func demoPosts(now time.Time) []demoPost {
	tomorrow := time.Date(now.Year(), now.Month(), now.Day(), 11, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
	hero := []contentSvc.MediaInput{{
		Type: content.MediaImage,
		URL:  "https://picsum.photos/seed/postflow/1080/1080",
		Name: "hero.jpg",
		Size: 184_320, Width: 1080, Height: 1080,
	}}

	return []demoPost{
		{
			req: contentSvc.CreatePostRequest{
				Title: "Product roadmap teaser", Content: "Roadmap notes, draft",
				Platform: content.PlatformLinkedIn, Account: "@postflow",
			},
		},
		{
			req: contentSvc.CreatePostRequest{
				Title: "Spring collection launch", Content: body("our spring collection"),
				Platform: content.PlatformInstagram, Account: "@postflow.shop",
				AIScore: intPtr(12), TOVScore: intPtr(84), Media: hero,
			},
			steps: []step{submit},
		},
		{
			req: contentSvc.CreatePostRequest{
				Title: "Behind the scenes reel", Content: body("a look behind the scenes"),
				Platform: content.PlatformTikTok, Account: "@postflow",
				AIScore: intPtr(20), TOVScore: intPtr(75), Media: hero,
			},
			steps: []step{submit, denyCreative("Colours clash with the brand palette")},
		},
		{
			req: contentSvc.CreatePostRequest{
				Title: "Customer story: Northwind", Content: body("how Northwind ships faster"),
				Platform: content.PlatformLinkedIn, Account: "@postflow",
				AIScore: intPtr(8), TOVScore: intPtr(91),
			},
			steps: []step{submit},
		},
		{
			req: contentSvc.CreatePostRequest{
				Title: "We're hiring", Content: body("three new roles on the team"),
				Platform: content.PlatformTwitter, Account: "@postflow",
				AIScore: intPtr(15), TOVScore: intPtr(80), Media: hero,
			},
			steps: []step{submit, approveCreative, approveFinal},
		},
		{
			req: contentSvc.CreatePostRequest{
				Title: "Webinar reminder", Content: body("next week's webinar"),
				Platform: content.PlatformFacebook, Account: "@postflow",
				AIScore: intPtr(5), TOVScore: intPtr(88),
			},
			steps: []step{submit, approveFinal, scheduleAt(tomorrow)},
		},
	}
}
