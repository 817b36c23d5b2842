package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postflow/internal/domain/models/content"
)

func TestSweeper_RunSweepsOnStart(t *testing.T) {
	p := scheduledAt(draft("a"), base.Add(-2*time.Hour))
	f := newFixture(t, []content.Post{p})

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewSweeper(f.svc, time.Hour).Run(runCtx) }()

	require.Eventually(t, func() bool {
		got, _ := f.store.Get("a")
		return got.Status == content.StatusMissed
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}

func TestSweeper_DisabledReturnsImmediately(t *testing.T) {
	p := scheduledAt(draft("a"), base.Add(-2*time.Hour))
	f := newFixture(t, []content.Post{p})

	require.NoError(t, NewSweeper(f.svc, 0).Run(context.Background()))
	assert.Equal(t, content.StatusScheduled, f.post(t, "a").Status)
}
