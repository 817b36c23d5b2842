package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"postflow/internal/domain"
	"postflow/internal/domain/repositories"
)

// ChangeChannel is the NOTIFY channel the table triggers publish on.
const ChangeChannel = "postflow_changes"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Gateway implements repositories.Gateway on Postgres. Writes go through
// GetExecutor so they join an ExecTx; change notifications arrive over
// LISTEN on a dedicated pooled connection.
type Gateway struct {
	pool   *pgxpool.Pool
	tables map[string]struct{}
	logger *slog.Logger

	mu       sync.Mutex
	listener *listener
}

var _ repositories.Gateway = (*Gateway)(nil)

// NewGateway creates a gateway limited to the configured tables.
func NewGateway(config *RepositoryConfig) *Gateway {
	known := make(map[string]struct{})
	for _, t := range config.Tables.All() {
		known[t] = struct{}{}
	}
	return &Gateway{
		pool:   config.Pool,
		tables: known,
		logger: config.Logger,
	}
}

// SelectAll returns every row of table.
func (g *Gateway) SelectAll(ctx context.Context, table string) ([]repositories.Row, error) {
	if err := g.checkTable(table); err != nil {
		return nil, err
	}
	query, args, err := psql.Select("*").From(table).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := GetExecutor(ctx, g.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", table, err)
	}

	out := make([]repositories.Row, len(maps))
	for i, m := range maps {
		out[i] = normalizeRow(m)
	}
	return out, nil
}

// selectByID returns one row, used when a notification was too large to
// carry the row itself.
func (g *Gateway) selectByID(ctx context.Context, table, id string) (repositories.Row, error) {
	query, args, err := psql.Select("*").From(table).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	rows, err := g.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select %s %s: %w", table, id, err)
	}
	m, err := pgx.CollectExactlyOneRow(rows, pgx.RowToMap)
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, &domain.NotFoundError{Message: fmt.Sprintf("%s row %s not found", table, id)}
		}
		return nil, fmt.Errorf("scan %s %s: %w", table, id, err)
	}
	return normalizeRow(m), nil
}

// Insert writes row and returns it as stored.
func (g *Gateway) Insert(ctx context.Context, table string, row repositories.Row) (repositories.Row, error) {
	if err := g.checkTable(table); err != nil {
		return nil, err
	}
	query, args, err := psql.Insert(table).SetMap(map[string]any(row)).Suffix("RETURNING *").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert: %w", err)
	}

	rows, err := GetExecutor(ctx, g.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("insert into %s: %w", table, err)
	}
	m, err := pgx.CollectExactlyOneRow(rows, pgx.RowToMap)
	if err != nil {
		if IsPgDuplicateError(err) {
			return nil, &domain.ConflictError{
				Message:      fmt.Sprintf("%s row %s already exists", table, row.ID()),
				ResourceType: table,
				ResourceID:   row.ID(),
			}
		}
		if IsPgForeignKeyError(err) {
			return nil, fmt.Errorf("insert into %s: parent row missing: %w", table, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("insert into %s: %w", table, err)
	}
	return normalizeRow(m), nil
}

// UpdateByID applies patch to the row with id.
func (g *Gateway) UpdateByID(ctx context.Context, table, id string, patch repositories.Row) error {
	return g.update(ctx, table, sq.Eq{"id": id}, patch, 1)
}

// UpdateByIDs applies patch to every row whose id is listed, in one statement.
func (g *Gateway) UpdateByIDs(ctx context.Context, table string, ids []string, patch repositories.Row) error {
	if len(ids) == 0 {
		return nil
	}
	return g.update(ctx, table, sq.Eq{"id": ids}, patch, 0)
}

func (g *Gateway) update(ctx context.Context, table string, where sq.Eq, patch repositories.Row, want int64) error {
	if err := g.checkTable(table); err != nil {
		return err
	}
	if len(patch) == 0 {
		return nil
	}
	query, args, err := psql.Update(table).SetMap(map[string]any(patch)).Where(where).ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := GetExecutor(ctx, g.pool).Exec(ctx, query, args...)
	if err != nil {
		if IsPgCheckError(err) {
			return fmt.Errorf("update %s: %w: %v", table, domain.ErrValidation, err)
		}
		return fmt.Errorf("update %s: %w", table, err)
	}
	if want > 0 && tag.RowsAffected() < want {
		return &domain.NotFoundError{Message: fmt.Sprintf("%s row not found", table)}
	}
	return nil
}

// DeleteByID removes the row with id.
func (g *Gateway) DeleteByID(ctx context.Context, table, id string) error {
	if err := g.checkTable(table); err != nil {
		return err
	}
	query, args, err := psql.Delete(table).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	tag, err := GetExecutor(ctx, g.pool).Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	if tag.RowsAffected() == 0 {
		return &domain.NotFoundError{Message: fmt.Sprintf("%s row %s not found", table, id)}
	}
	return nil
}

// Subscribe registers onChange for every change to table. The first
// subscription starts the shared listener.
func (g *Gateway) Subscribe(ctx context.Context, table string, onChange func(repositories.Change)) (repositories.Subscription, error) {
	if err := g.checkTable(table); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.listener == nil {
		l, err := startListener(ctx, g)
		if err != nil {
			return nil, err
		}
		g.listener = l
	}
	return g.listener.add(table, onChange), nil
}

// Close stops the change listener, if any.
func (g *Gateway) Close() {
	g.mu.Lock()
	l := g.listener
	g.listener = nil
	g.mu.Unlock()

	if l != nil {
		l.stop()
	}
}

func (g *Gateway) checkTable(table string) error {
	if _, ok := g.tables[table]; !ok {
		return &domain.ValidationError{Message: fmt.Sprintf("unknown table %q", table)}
	}
	return nil
}

// normalizeRow turns driver-specific values into the plain shapes the
// mappers expect.
func normalizeRow(m map[string]any) repositories.Row {
	row := make(repositories.Row, len(m))
	for k, v := range m {
		switch val := v.(type) {
		case [16]byte:
			row[k] = uuid.UUID(val).String()
		default:
			row[k] = v
		}
	}
	return row
}
