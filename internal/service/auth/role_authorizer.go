package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"postflow/internal/domain"
	"postflow/internal/domain/models"
	"postflow/internal/domain/services"
)

// RoleLookup is the part of the identity resolver the authorizer needs.
type RoleLookup interface {
	RoleKeyFor(userID string) (models.RoleKey, bool)
	Refresh(ctx context.Context) error
}

// RoleBasedAuthorizer admits users whose profile carries a workflow role.
// An unknown user triggers a profile reload, at most once per refreshEvery,
// so people added after startup are picked up without a restart.
type RoleBasedAuthorizer struct {
	roles   RoleLookup
	refresh *rate.Limiter
	logger  *slog.Logger
}

var _ services.BoardAuthorizer = (*RoleBasedAuthorizer)(nil)

// NewRoleBasedAuthorizer creates an authorizer over roles.
func NewRoleBasedAuthorizer(roles RoleLookup, refreshEvery time.Duration, logger *slog.Logger) *RoleBasedAuthorizer {
	limit := rate.Inf
	if refreshEvery > 0 {
		limit = rate.Every(refreshEvery)
	}
	return &RoleBasedAuthorizer{
		roles:   roles,
		refresh: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

// CanAccessBoard checks the user holds any workflow role
func (a *RoleBasedAuthorizer) CanAccessBoard(ctx context.Context, userID string) error {
	if _, ok := a.lookup(ctx, userID); !ok {
		return fmt.Errorf("user %s has no workflow role: %w", userID, domain.ErrForbidden)
	}
	return nil
}

func (a *RoleBasedAuthorizer) lookup(ctx context.Context, userID string) (models.RoleKey, bool) {
	if userID == "" {
		return "", false
	}
	if role, ok := a.roles.RoleKeyFor(userID); ok {
		return role, true
	}
	if !a.refresh.Allow() {
		return "", false
	}

	if err := a.roles.Refresh(ctx); err != nil {
		a.logger.Warn("profile refresh failed", "user_id", userID, "error", err)
		return "", false
	}
	return a.roles.RoleKeyFor(userID)
}
