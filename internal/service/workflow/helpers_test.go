package workflow

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"postflow/internal/domain/models"
	"postflow/internal/domain/models/content"
	"postflow/internal/domain/repositories"
	"postflow/internal/identity"
	"postflow/internal/repository/memory"
)

const (
	authorID   = "11111111-1111-1111-1111-111111111111"
	designerID = "22222222-2222-2222-2222-222222222222"
	approverID = "33333333-3333-3333-3333-333333333333"
)

var testTables = Tables{Posts: "posts", Comments: "post_comments", Media: "post_media"}

// base is a Monday morning.
var base = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

type fixture struct {
	gw    *memory.Gateway
	dir   *identity.Resolver
	store *Store
	svc   *Service
	now   time.Time
}

type fixtureOption func(gw repositories.Gateway) repositories.Gateway

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newFixture seeds posts into a memory gateway and starts a store and service
// on top of it. wrap, when given, sits between the service and the gateway.
func newFixture(t *testing.T, posts []content.Post, wrap ...fixtureOption) *fixture {
	t.Helper()
	logger := discardLogger()
	gw := memory.NewGateway(logger)

	for i := range posts {
		p := posts[i]
		gw.Seed(testTables.Posts, postToRow(&p))
		for _, c := range p.Comments {
			gw.Seed(testTables.Comments, commentToRow(c))
		}
		for _, m := range p.Media {
			gw.Seed(testTables.Media, mediaToRow(m))
		}
	}

	dir := identity.NewResolver(gw, "profiles", nil, logger)
	dir.Load([]models.Profile{
		{UserID: authorID, RoleKey: models.RoleAuthor, FullName: "Alex"},
		{UserID: designerID, RoleKey: models.RoleDesigner, FullName: "Dana"},
		{UserID: approverID, RoleKey: models.RoleApprover, FullName: "Ondrej"},
	})

	var gateway repositories.Gateway = gw
	for _, w := range wrap {
		gateway = w(gateway)
	}

	f := &fixture{gw: gw, dir: dir, now: base}
	f.store = NewStore(gw, testTables, time.UTC, logger)
	require.NoError(t, f.store.Start(context.Background()))
	t.Cleanup(func() { _ = f.store.Dispose() })

	f.svc = NewService(f.store, gateway, gw, dir, logger, WithClock(func() time.Time { return f.now }))
	return f
}

func (f *fixture) post(t *testing.T, id string) content.Post {
	t.Helper()
	p, ok := f.store.Get(id)
	require.True(t, ok, "post %s not in store", id)
	return p
}

// draft is a post that passes every submission rule.
func draft(id string) content.Post {
	return content.Post{
		ID:        id,
		Title:     "Launch",
		Content:   strings.Repeat("x", 60),
		Platform:  content.PlatformInstagram,
		Account:   "@brand",
		AIScore:   10,
		TOVScore:  80,
		Status:    content.StatusDraft,
		Media:     []content.MediaFile{},
		Comments:  []content.Comment{},
		CreatedBy: authorID,
		CreatedAt: base.Add(-24 * time.Hour),
		UpdatedAt: base.Add(-24 * time.Hour),
	}
}

func withMedia(p content.Post) content.Post {
	p.Media = append(p.Media, content.MediaFile{
		ID:        p.ID + "-m1",
		PostID:    p.ID,
		Type:      content.MediaImage,
		URL:       "https://cdn.example.com/" + p.ID + ".png",
		Name:      "hero.png",
		Size:      2048,
		Width:     1080,
		Height:    1080,
		CreatedAt: p.CreatedAt,
	})
	p.RefreshCreative()
	return p
}

func inStatus(p content.Post, s content.Status) content.Post {
	p.Status = s
	return p
}

func scheduledAt(p content.Post, at time.Time) content.Post {
	p.Status = content.StatusScheduled
	setSlot(&p, at, time.UTC)
	return p
}

func strPtr(s string) *string { return &s }
