package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaTemplate string

// Schema renders the table and trigger definitions for the given names.
func Schema(tables *TableNames) string {
	return strings.NewReplacer(
		"{{posts}}", tables.Posts,
		"{{post_comments}}", tables.Comments,
		"{{post_media}}", tables.Media,
		"{{profiles}}", tables.Profiles,
		"{{channel}}", ChangeChannel,
	).Replace(schemaTemplate)
}

// ApplySchema creates any missing tables and (re)installs the change triggers.
// It is safe to run repeatedly.
func ApplySchema(ctx context.Context, pool *pgxpool.Pool, tables *TableNames) error {
	// Simple protocol: the script holds several statements
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Conn().PgConn().Exec(ctx, Schema(tables)).ReadAll(); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// DropSchema removes every table in dependency order.
func DropSchema(ctx context.Context, pool *pgxpool.Pool, tables *TableNames) error {
	for _, t := range []string{tables.Media, tables.Comments, tables.Posts, tables.Profiles} {
		if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS "+t+" CASCADE"); err != nil {
			return fmt.Errorf("drop %s: %w", t, err)
		}
	}
	if _, err := pool.Exec(ctx, "DROP FUNCTION IF EXISTS "+tables.Posts+"_notify_change() CASCADE"); err != nil {
		return fmt.Errorf("drop notify function: %w", err)
	}
	return nil
}
