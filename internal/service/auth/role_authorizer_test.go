package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"postflow/internal/domain"
	"postflow/internal/domain/models"
)

// fakeRoles starts with known and learns pending on the first Refresh.
type fakeRoles struct {
	known     map[string]models.RoleKey
	pending   map[string]models.RoleKey
	refreshes int
	err       error
}

func (f *fakeRoles) RoleKeyFor(userID string) (models.RoleKey, bool) {
	r, ok := f.known[userID]
	return r, ok
}

func (f *fakeRoles) Refresh(context.Context) error {
	f.refreshes++
	if f.err != nil {
		return f.err
	}
	for id, r := range f.pending {
		f.known[id] = r
	}
	return nil
}

func newAuthorizer(roles *fakeRoles, every time.Duration) *RoleBasedAuthorizer {
	return NewRoleBasedAuthorizer(roles, every, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCanAccessBoard(t *testing.T) {
	roles := &fakeRoles{
		known:   map[string]models.RoleKey{"dana": models.RoleDesigner},
		pending: map[string]models.RoleKey{"new": models.RoleAuthor},
	}
	a := newAuthorizer(roles, time.Hour)
	ctx := context.Background()

	if err := a.CanAccessBoard(ctx, "dana"); err != nil {
		t.Errorf("known member rejected: %v", err)
	}
	if roles.refreshes != 0 {
		t.Errorf("known member triggered %d refreshes", roles.refreshes)
	}

	// A member added after startup is found by one reload
	if err := a.CanAccessBoard(ctx, "new"); err != nil {
		t.Errorf("new member rejected: %v", err)
	}
	if roles.refreshes != 1 {
		t.Errorf("refreshes = %d, want 1", roles.refreshes)
	}

	// The reload budget is spent for the hour
	err := a.CanAccessBoard(ctx, "stranger")
	if !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("stranger: err = %v, want ErrForbidden", err)
	}
	if roles.refreshes != 1 {
		t.Errorf("refreshes = %d, want 1", roles.refreshes)
	}

	if err := a.CanAccessBoard(ctx, ""); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("empty user: err = %v", err)
	}
}

func TestCanAccessBoard_RefreshFailure(t *testing.T) {
	roles := &fakeRoles{known: map[string]models.RoleKey{}, err: errors.New("db down")}
	a := newAuthorizer(roles, 0)

	if err := a.CanAccessBoard(context.Background(), "x"); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("err = %v, want ErrForbidden", err)
	}
}
