package repositories

import "context"

// Row is an opaque snake_case record as stored by the remote store.
type Row map[string]any

// ID returns the row's "id" column as a string, or "" when absent.
func (r Row) ID() string {
	if r == nil {
		return ""
	}
	if id, ok := r["id"].(string); ok {
		return id
	}
	return ""
}

// ChangeType is the kind of row change carried by a notification.
type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
)

// Change is one row-level change notification for a table.
// New is nil for deletes; Old may be nil for inserts.
type Change struct {
	Table string     `json:"table"`
	Type  ChangeType `json:"type"`
	New   Row        `json:"new"`
	Old   Row        `json:"old"`
}

// Subscription is a live change feed registration.
type Subscription interface {
	// Close stops delivery and releases the feed's resources. Safe to call twice.
	Close() error
}

// Gateway is the remote persistence + pub/sub service the workflow engine
// syncs against. It knows nothing about posts: rows are opaque.
type Gateway interface {
	// SelectAll returns every row of a table
	SelectAll(ctx context.Context, table string) ([]Row, error)

	// Insert writes a new row and returns it as stored
	Insert(ctx context.Context, table string, row Row) (Row, error)

	// UpdateByID applies a column patch to one row
	// Returns domain.ErrNotFound if no row has the id
	UpdateByID(ctx context.Context, table, id string, patch Row) error

	// UpdateByIDs applies the same column patch to many rows in one round trip
	UpdateByIDs(ctx context.Context, table string, ids []string, patch Row) error

	// DeleteByID removes one row
	DeleteByID(ctx context.Context, table, id string) error

	// Subscribe registers onChange for every change to table.
	// onChange is called from a gateway-owned goroutine.
	Subscribe(ctx context.Context, table string, onChange func(Change)) (Subscription, error)
}
