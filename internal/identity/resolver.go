package identity

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"postflow/internal/domain/models"
	"postflow/internal/domain/repositories"
)

// Resolver maps opaque user ids to workflow role keys and display names.
// Both directions are rebuilt together on every Refresh.
type Resolver struct {
	gateway  repositories.Gateway
	table    string
	logger   *slog.Logger
	fallback map[models.RoleKey]string

	mu     sync.RWMutex
	byUser map[string]models.Profile
	byRole map[models.RoleKey]string
}

// NewResolver creates a resolver reading profiles from table. fallback
// supplies display names for roles nobody holds yet.
func NewResolver(gateway repositories.Gateway, table string, fallback map[models.RoleKey]string, logger *slog.Logger) *Resolver {
	if fallback == nil {
		fallback = map[models.RoleKey]string{}
	}
	return &Resolver{
		gateway:  gateway,
		table:    table,
		logger:   logger,
		fallback: fallback,
		byUser:   map[string]models.Profile{},
		byRole:   map[models.RoleKey]string{},
	}
}

// Refresh reloads every profile row and rebuilds both lookup maps.
func (r *Resolver) Refresh(ctx context.Context) error {
	rows, err := r.gateway.SelectAll(ctx, r.table)
	if err != nil {
		return fmt.Errorf("load profiles: %w", err)
	}

	profiles := make([]models.Profile, 0, len(rows))
	for _, row := range rows {
		p, ok := profileFromRow(row)
		if !ok {
			r.logger.Warn("skipping malformed profile row", "row_id", row.ID())
			continue
		}
		profiles = append(profiles, p)
	}

	r.Load(profiles)
	r.logger.Debug("identity resolver refreshed", "profiles", len(profiles))
	return nil
}

// Load replaces the resolver's contents with profiles. The first profile
// holding a role wins the role -> user direction.
func (r *Resolver) Load(profiles []models.Profile) {
	byUser := make(map[string]models.Profile, len(profiles))
	byRole := make(map[models.RoleKey]string, 3)
	for _, p := range profiles {
		byUser[p.UserID] = p
		if p.RoleKey.Valid() {
			if _, taken := byRole[p.RoleKey]; !taken {
				byRole[p.RoleKey] = p.UserID
			}
		}
	}

	r.mu.Lock()
	r.byUser = byUser
	r.byRole = byRole
	r.mu.Unlock()
}

// RoleKeyFor returns the role held by a user id.
func (r *Resolver) RoleKeyFor(userID string) (models.RoleKey, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byUser[userID]
	if !ok || !p.RoleKey.Valid() {
		return "", false
	}
	return p.RoleKey, true
}

// UUIDFor returns the user id holding a role.
func (r *Resolver) UUIDFor(role models.RoleKey) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byRole[role]
	return id, ok
}

// HasRole reports whether userID holds role.
func (r *Resolver) HasRole(userID string, role models.RoleKey) bool {
	got, ok := r.RoleKeyFor(userID)
	return ok && got == role
}

// DisplayName returns a user's name, falling back to their role's configured
// name and finally to the raw id.
func (r *Resolver) DisplayName(userID string) string {
	r.mu.RLock()
	p, ok := r.byUser[userID]
	r.mu.RUnlock()

	if ok {
		if name := strings.TrimSpace(p.FullName); name != "" {
			return name
		}
		if name, ok := r.fallback[p.RoleKey]; ok {
			return name
		}
	}
	return userID
}

// DisplayNameForRole returns the display name of whoever holds role.
func (r *Resolver) DisplayNameForRole(role models.RoleKey) string {
	if id, ok := r.UUIDFor(role); ok {
		if name := r.DisplayName(id); name != id {
			return name
		}
	}
	if name, ok := r.fallback[role]; ok {
		return name
	}
	return string(role)
}

func profileFromRow(row repositories.Row) (models.Profile, bool) {
	id := row.ID()
	if id == "" {
		return models.Profile{}, false
	}
	role, _ := row["role_key"].(string)
	name, _ := row["full_name"].(string)
	return models.Profile{
		UserID:   id,
		RoleKey:  models.RoleKey(role),
		FullName: name,
	}, true
}

// Follow reloads the profiles whenever the profile table changes, so role
// reassignments reach running transitions without a restart.
func (r *Resolver) Follow(ctx context.Context) (repositories.Subscription, error) {
	return r.gateway.Subscribe(ctx, r.table, func(ch repositories.Change) {
		// Detached: the subscribing request may be long gone
		if err := r.Refresh(context.Background()); err != nil {
			r.logger.Warn("profile reload after change failed", "type", ch.Type, "error", err)
		}
	})
}
