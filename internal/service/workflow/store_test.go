package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postflow/internal/domain/models/content"
	"postflow/internal/domain/repositories"
	"postflow/internal/repository/memory"
)

func TestStore_LoadSkipsMalformedRows(t *testing.T) {
	gw := memory.NewGateway(discardLogger())
	good := draft("good")
	gw.Seed(testTables.Posts, postToRow(&good))
	gw.Seed(testTables.Posts, repositories.Row{"id": "no-title", "account": "a", "status": "draft"})
	gw.Seed(testTables.Posts, repositories.Row{"id": "bad-status", "title": "t", "account": "a", "status": "archived"})
	gw.Seed(testTables.Comments, repositories.Row{"id": "orphan", "post_id": "gone", "text": "hi"})

	s := NewStore(gw, testTables, time.UTC, discardLogger())
	require.NoError(t, s.Load(context.Background()))

	assert.Equal(t, 1, s.Len())
	_, ok := s.Get("good")
	assert.True(t, ok)
}

func TestStore_StartFailsWhenFetchFails(t *testing.T) {
	gw := memory.NewGateway(discardLogger())
	gw.Fail(memory.OpSelect, nil)

	s := NewStore(gw, testTables, time.UTC, discardLogger())
	assert.Error(t, s.Start(context.Background()))
	assert.Zero(t, gw.Subscribers())
}

func TestStore_AppliesRemoteChanges(t *testing.T) {
	f := newFixture(t, []content.Post{draft("a")})
	ctx := context.Background()

	// A peer edits the post row
	require.NoError(t, f.gw.UpdateByID(ctx, testTables.Posts, "a", repositories.Row{"title": "Peer title"}))
	assert.Equal(t, "Peer title", f.post(t, "a").Title)

	// and attaches a creative
	_, err := f.gw.Insert(ctx, testTables.Media, repositories.Row{
		"id": "m1", "post_id": "a", "type": "image", "url": "https://cdn.example.com/m1.png",
	})
	require.NoError(t, err)
	assert.True(t, f.post(t, "a").HasCreative)

	// and comments twice, out of order
	_, err = f.gw.Insert(ctx, testTables.Comments, repositories.Row{
		"id": "c2", "post_id": "a", "author_name": "Dana", "text": "second", "created_at": base.Add(2 * time.Minute),
	})
	require.NoError(t, err)
	_, err = f.gw.Insert(ctx, testTables.Comments, repositories.Row{
		"id": "c1", "post_id": "a", "author_name": "Dana", "text": "first", "created_at": base.Add(time.Minute),
	})
	require.NoError(t, err)

	comments := f.post(t, "a").Comments
	require.Len(t, comments, 2)
	assert.Equal(t, "first", comments[0].Text)
	assert.Equal(t, "second", comments[1].Text)

	// A post row update keeps the children
	require.NoError(t, f.gw.UpdateByID(ctx, testTables.Posts, "a", repositories.Row{"status": "final_review"}))
	got := f.post(t, "a")
	assert.Len(t, got.Comments, 2)
	assert.Len(t, got.Media, 1)

	require.NoError(t, f.gw.DeleteByID(ctx, testTables.Media, "m1"))
	assert.False(t, f.post(t, "a").HasCreative)

	require.NoError(t, f.gw.DeleteByID(ctx, testTables.Posts, "a"))
	_, ok := f.store.Get("a")
	assert.False(t, ok)
}

func TestStore_IgnoresMalformedChange(t *testing.T) {
	f := newFixture(t, []content.Post{draft("a")})

	require.NoError(t, f.gw.UpdateByID(context.Background(), testTables.Posts, "a", repositories.Row{"status": "bogus"}))
	assert.Equal(t, content.StatusDraft, f.post(t, "a").Status)
}

func TestStore_Dispose(t *testing.T) {
	f := newFixture(t, []content.Post{draft("a")})
	require.Equal(t, 3, f.gw.Subscribers())

	require.NoError(t, f.store.Dispose())
	assert.Zero(t, f.gw.Subscribers())

	require.NoError(t, f.gw.UpdateByID(context.Background(), testTables.Posts, "a", repositories.Row{"title": "After dispose"}))
	assert.Equal(t, "Launch", f.post(t, "a").Title)

	assert.Error(t, f.store.Start(context.Background()))
}

func TestStore_PostsNewestFirstAndIsolated(t *testing.T) {
	older := draft("older")
	newer := draft("newer")
	newer.CreatedAt = older.CreatedAt.Add(time.Hour)
	f := newFixture(t, []content.Post{older, newer})

	posts := f.store.Posts()
	require.Len(t, posts, 2)
	assert.Equal(t, "newer", posts[0].ID)
	assert.Equal(t, "older", posts[1].ID)

	posts[0].Title = "mutated by caller"
	assert.Equal(t, "Launch", f.post(t, "newer").Title)
}

func TestStore_RevertKeepsRemoteChildren(t *testing.T) {
	f := newFixture(t, []content.Post{draft("a")})
	ctx := context.Background()

	res, err := f.store.update("a", base, Submit(f.dir))
	require.NoError(t, err)
	require.Equal(t, content.StatusFinalReview, f.post(t, "a").Status)

	// A peer comments while the submit is still in flight
	_, err = f.gw.Insert(ctx, testTables.Comments, repositories.Row{
		"id": "c1", "post_id": "a", "author_name": "Dana", "text": "hi", "created_at": base,
	})
	require.NoError(t, err)

	assert.True(t, f.store.revert("a", res.gen))
	got := f.post(t, "a")
	assert.Equal(t, content.StatusDraft, got.Status)
	require.Len(t, got.Comments, 1)
	assert.Equal(t, "c1", got.Comments[0].ID)

	// A second answer for the same write changes nothing
	assert.False(t, f.store.revert("a", res.gen))
}

func TestStore_ConfirmedWriteSurvivesOlderFailure(t *testing.T) {
	f := newFixture(t, []content.Post{draft("a")})

	first, err := f.store.update("a", base, Submit(f.dir))
	require.NoError(t, err)
	second, err := f.store.update("a", base, ApproveFinal(approverID, f.dir))
	require.NoError(t, err)

	f.store.confirm("a", second.gen)
	assert.Equal(t, content.StatusApproved, f.post(t, "a").Status)
	assert.True(t, f.store.revert("a", first.gen))
	assert.Equal(t, content.StatusApproved, f.post(t, "a").Status)
}
