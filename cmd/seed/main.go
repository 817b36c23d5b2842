package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"postflow/internal/config"
	"postflow/internal/identity"
	"postflow/internal/repository/postgres"
	"postflow/internal/seed"
	"postflow/internal/service/workflow"
)

func main() {
	dropTables := flag.Bool("drop-tables", false, "Drop all tables before seeding (fresh start)")
	schemaOnly := flag.Bool("schema-only", false, "Only create tables and triggers, don't seed")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()

	// SAFETY: never drop production tables
	if cfg.Environment == "prod" && *dropTables {
		log.Fatalf("BLOCKED: --drop-tables is not allowed in production")
	}
	if cfg.SupabaseDBURL == "" {
		log.Fatalf("SUPABASE_DB_URL is required")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	logger.Info("seeding database", "environment", cfg.Environment, "table_prefix", cfg.TablePrefix)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := postgres.CreateConnectionPool(ctx, cfg.SupabaseDBURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	tables := postgres.NewTableNames(cfg.TablePrefix)

	if *dropTables {
		if err := postgres.DropSchema(ctx, pool, tables); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
		logger.Info("tables dropped")
	}

	if err := postgres.ApplySchema(ctx, pool, tables); err != nil {
		log.Fatalf("Failed to apply schema: %v", err)
	}
	logger.Info("schema ready")

	if *schemaOnly {
		return
	}

	gateway := postgres.NewGateway(&postgres.RepositoryConfig{Pool: pool, Tables: tables, Logger: logger})
	defer gateway.Close()
	txManager := postgres.NewTransactionManager(pool, logger)

	loc, err := time.LoadLocation(cfg.AdvisorTimezone)
	if err != nil {
		log.Fatalf("Invalid ADVISOR_TIMEZONE: %v", err)
	}

	resolver := identity.NewResolver(gateway, tables.Profiles, nil, logger)
	store := workflow.NewStore(gateway, workflow.Tables{Posts: tables.Posts, Comments: tables.Comments, Media: tables.Media}, loc, logger)
	// Load only: the seeder needs the current board, not a live feed
	if err := store.Load(ctx); err != nil {
		log.Fatalf("Failed to load posts: %v", err)
	}
	service := workflow.NewService(store, gateway, txManager, resolver, logger)

	seeder := seed.NewBoardSeeder(gateway, tables.Profiles, resolver, service, logger)
	if err := seeder.SeedTeam(ctx); err != nil {
		log.Fatalf("Failed to seed team: %v", err)
	}
	n, err := seeder.SeedPosts(ctx, time.Now())
	if err != nil {
		log.Fatalf("Failed to seed posts: %v", err)
	}

	logger.Info("seed complete", "posts", n, "dev_user_id", seed.AuthorID)
}
