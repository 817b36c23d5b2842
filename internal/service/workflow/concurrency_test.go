package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postflow/internal/domain"
	"postflow/internal/domain/models/content"
	"postflow/internal/domain/repositories"
	contentSvc "postflow/internal/domain/services/content"
	"postflow/internal/repository/memory"
)

var errConnReset = errors.New("connection reset")

// heldWrite is one UpdateByID parked until the test answers it. A nil answer
// lets the write through.
type heldWrite struct {
	answer chan error
}

// gatedGateway parks every UpdateByID so a test can keep several writes in
// flight and decide how each one ends.
type gatedGateway struct {
	*memory.Gateway
	held chan heldWrite
}

func (g gatedGateway) UpdateByID(ctx context.Context, table, id string, patch repositories.Row) error {
	w := heldWrite{answer: make(chan error)}
	g.held <- w
	if err := <-w.answer; err != nil {
		return err
	}
	return g.Gateway.UpdateByID(ctx, table, id, patch)
}

func newGatedFixture(t *testing.T, posts []content.Post) (*fixture, chan heldWrite) {
	t.Helper()
	held := make(chan heldWrite)
	f := newFixture(t, posts, func(gw repositories.Gateway) repositories.Gateway {
		return gatedGateway{Gateway: gw.(*memory.Gateway), held: held}
	})
	return f, held
}

func TestMutation_OverlappingWritesOnOnePost(t *testing.T) {
	tests := []struct {
		name         string
		submitFirst  bool // which parked write is answered first
		submitErr    error
		approveErr   error
		wantStatus   content.Status
		wantSubmit   bool
		wantApproval bool
	}{
		{"both fail, submit answered first", true, errConnReset, errConnReset, content.StatusDraft, false, false},
		{"both fail, approve answered first", false, errConnReset, errConnReset, content.StatusDraft, false, false},
		{"submit lands, approve fails", true, nil, errConnReset, content.StatusFinalReview, true, false},
		{"approve fails, then submit lands", false, nil, errConnReset, content.StatusFinalReview, true, false},
		{"submit fails, approve lands", true, errConnReset, nil, content.StatusApproved, false, true},
		{"approve lands, then submit fails", false, errConnReset, nil, content.StatusApproved, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, held := newGatedFixture(t, []content.Post{draft("a")})
			before := f.post(t, "a")

			submitDone := make(chan error, 1)
			go func() {
				_, err := f.svc.SubmitForReview(ctx, authorID, "a")
				submitDone <- err
			}()
			submit := <-held
			require.Equal(t, content.StatusFinalReview, f.post(t, "a").Status)

			approveDone := make(chan error, 1)
			go func() {
				_, err := f.svc.ApproveFinal(ctx, approverID, "a")
				approveDone <- err
			}()
			approve := <-held
			require.Equal(t, content.StatusApproved, f.post(t, "a").Status)

			answer := func(w heldWrite, err error, done chan error) {
				w.answer <- err
				got := <-done
				if err != nil {
					require.ErrorIs(t, got, domain.ErrPersistence)
				} else {
					require.NoError(t, got)
				}
			}
			if tt.submitFirst {
				answer(submit, tt.submitErr, submitDone)
				answer(approve, tt.approveErr, approveDone)
			} else {
				answer(approve, tt.approveErr, approveDone)
				answer(submit, tt.submitErr, submitDone)
			}

			got := f.post(t, "a")
			row, ok := f.gw.Row(testTables.Posts, "a")
			require.True(t, ok)
			assert.Equal(t, string(tt.wantStatus), row["status"])
			assert.Equal(t, tt.wantStatus, got.Status, "store and gateway disagree")

			if tt.submitErr != nil && tt.approveErr != nil {
				if diff := cmp.Diff(before, got); diff != "" {
					t.Errorf("post not restored after both writes failed (-before +after):\n%s", diff)
				}
			}
			assert.Equal(t, tt.wantApproval, got.Final.Approved)
		})
	}
}

func TestMutation_FailedCreateDisappears(t *testing.T) {
	f := newFixture(t, nil)
	f.gw.Fail(memory.OpInsert, nil)

	_, err := f.svc.CreatePost(ctx, authorID, &contentSvc.CreatePostRequest{
		Title:    "Launch",
		Platform: content.PlatformLinkedIn,
		Account:  "@brand",
	})
	require.ErrorIs(t, err, domain.ErrPersistence)
	assert.Empty(t, f.store.Posts())
}

func TestWatch_DeliversInChangeOrder(t *testing.T) {
	f := newFixture(t, []content.Post{draft("a")})

	var (
		mu       sync.Mutex
		last     []content.Post
		inFlight atomic.Int32
		overlaps atomic.Int32
	)
	cancel := f.svc.Watch(func(posts []content.Post) {
		if inFlight.Add(1) > 1 {
			overlaps.Add(1)
		}
		mu.Lock()
		last = posts
		mu.Unlock()
		inFlight.Add(-1)
	})
	defer cancel()

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.AddComment(ctx, authorID, "a", &contentSvc.AddCommentRequest{Text: fmt.Sprintf("note %d", i)})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Zero(t, overlaps.Load(), "deliveries overlapped")
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, last, 1)
	assert.Len(t, last[0].Comments, writers)
	assert.Empty(t, cmp.Diff(f.store.Posts(), last), "last delivery is not the latest board")
}
