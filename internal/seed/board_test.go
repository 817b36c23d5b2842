package seed

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postflow/internal/domain/models/content"
	"postflow/internal/identity"
	"postflow/internal/repository/memory"
	"postflow/internal/service/workflow"
)

func TestBoardSeeder(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gw := memory.NewGateway(logger)
	tables := workflow.Tables{Posts: "posts", Comments: "post_comments", Media: "post_media"}

	resolver := identity.NewResolver(gw, "profiles", nil, logger)
	store := workflow.NewStore(gw, tables, time.UTC, logger)
	require.NoError(t, store.Start(ctx))
	defer store.Dispose()

	now := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
	svc := workflow.NewService(store, gw, gw, resolver, logger, workflow.WithClock(func() time.Time { return now }))
	seeder := NewBoardSeeder(gw, "profiles", resolver, svc, logger)

	require.NoError(t, seeder.SeedTeam(ctx))
	require.NoError(t, seeder.SeedTeam(ctx), "seeding the team twice is harmless")
	assert.True(t, resolver.HasRole(ApproverID, "approver"))

	n, err := seeder.SeedPosts(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	counts := map[content.Status]int{}
	for _, p := range svc.ListPosts() {
		counts[p.Status]++
	}
	assert.Equal(t, map[content.Status]int{
		content.StatusDraft:        1,
		content.StatusDesignReview: 2,
		content.StatusFinalReview:  1,
		content.StatusApproved:     1,
		content.StatusScheduled:    1,
	}, counts)

	n, err = seeder.SeedPosts(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, n, "a non-empty board is not seeded again")
}
