package main

import (
	"context"
	"errors"
	"io"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	"postflow/internal/auth"
	"postflow/internal/config"
	"postflow/internal/domain/models"
	"postflow/internal/domain/repositories"
	"postflow/internal/handler"
	"postflow/internal/handler/sse"
	"postflow/internal/identity"
	"postflow/internal/middleware"
	"postflow/internal/repository/memory"
	"postflow/internal/repository/postgres"
	"postflow/internal/scoring"
	"postflow/internal/seed"
	serviceAuth "postflow/internal/service/auth"
	"postflow/internal/service/advisor"
	"postflow/internal/service/workflow"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	cfg := config.Load()

	logLevel := slog.LevelInfo
	if cfg.Environment == "dev" {
		logLevel = slog.LevelDebug
	}

	var out io.Writer = os.Stdout
	if cfg.LogDir != "" {
		logFile, err := config.SetupLogFile(cfg.LogDir, cfg.LogMaxFiles)
		if err != nil {
			log.Fatalf("Failed to set up log file: %v", err)
		}
		defer logFile.Close()
		out = io.MultiWriter(os.Stdout, logFile)
	}

	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"table_prefix", cfg.TablePrefix,
		"store_backend", cfg.StoreBackend,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loc, err := time.LoadLocation(cfg.AdvisorTimezone)
	if err != nil {
		log.Fatalf("Invalid ADVISOR_TIMEZONE %q: %v", cfg.AdvisorTimezone, err)
	}

	// Remote store
	tables := postgres.NewTableNames(cfg.TablePrefix)
	var (
		gateway   repositories.Gateway
		txManager repositories.TransactionManager
		seedDemo  bool
	)
	switch cfg.StoreBackend {
	case "postgres":
		pool, err := postgres.CreateConnectionPool(ctx, cfg.SupabaseDBURL)
		if err != nil {
			log.Fatalf("Failed to create connection pool: %v", err)
		}
		defer pool.Close()
		logger.Info("database connected")

		pgGateway := postgres.NewGateway(&postgres.RepositoryConfig{Pool: pool, Tables: tables, Logger: logger})
		defer pgGateway.Close()
		gateway = pgGateway
		txManager = postgres.NewTransactionManager(pool, logger)
	case "memory":
		memGateway := memory.NewGateway(logger)
		gateway, txManager = memGateway, memGateway
		seedDemo = true
		logger.Warn("using in-memory store: data is lost on restart")
	default:
		log.Fatalf("Unknown STORE_BACKEND %q (want postgres or memory)", cfg.StoreBackend)
	}

	// People and roles
	resolver := identity.NewResolver(gateway, tables.Profiles, map[models.RoleKey]string{
		models.RoleAuthor:   cfg.AuthorName,
		models.RoleDesigner: cfg.DesignerName,
		models.RoleApprover: cfg.ApproverName,
	}, logger)
	if err := resolver.Refresh(ctx); err != nil {
		log.Fatalf("Failed to load profiles: %v", err)
	}
	profileSub, err := resolver.Follow(ctx)
	if err != nil {
		log.Fatalf("Failed to follow profile changes: %v", err)
	}
	defer profileSub.Close()

	// Workflow engine
	store := workflow.NewStore(gateway, workflow.Tables{
		Posts:    tables.Posts,
		Comments: tables.Comments,
		Media:    tables.Media,
	}, loc, logger)
	if err := store.Start(ctx); err != nil {
		log.Fatalf("Failed to start post store: %v", err)
	}
	defer func() {
		if err := store.Dispose(); err != nil {
			logger.Warn("post store dispose failed", "error", err)
		}
	}()

	opts := []workflow.Option{workflow.WithSweepLimit(cfg.SweepMinGap)}
	if cfg.ScorerURL != "" {
		opts = append(opts, workflow.WithScorer(scoring.NewClient(cfg.ScorerURL, cfg.ScorerKey)))
		logger.Info("scorer enabled", "url", cfg.ScorerURL)
	}
	workflowService := workflow.NewService(store, gateway, txManager, resolver, logger, opts...)
	sweeper := workflow.NewSweeper(workflowService, cfg.SweepInterval)

	if seedDemo {
		seeder := seed.NewBoardSeeder(gateway, tables.Profiles, resolver, workflowService, logger)
		if err := seeder.SeedTeam(ctx); err != nil {
			log.Fatalf("Failed to seed demo team: %v", err)
		}
		if _, err := seeder.SeedPosts(ctx, time.Now()); err != nil {
			log.Fatalf("Failed to seed demo posts: %v", err)
		}
	}

	postingAdvisor, err := advisor.New(loc)
	if err != nil {
		log.Fatalf("Failed to load posting-time tables: %v", err)
	}
	if cfg.AdvisorConfigPath != "" {
		if err := postingAdvisor.LoadFile(cfg.AdvisorConfigPath); err != nil {
			log.Fatalf("Failed to load ADVISOR_CONFIG_PATH: %v", err)
		}
	}

	// Authentication: the dev bypass is refused outside dev/test
	devUserID := cfg.DevUserID
	if devUserID != "" && cfg.Environment == "prod" {
		logger.Warn("DEV_USER_ID ignored in prod")
		devUserID = ""
	}
	var jwtVerifier auth.JWTVerifier
	if devUserID == "" {
		jwtVerifier, err = auth.NewJWTVerifier(cfg.SupabaseJWKSURL, logger)
		if err != nil {
			log.Fatalf("Failed to create JWT verifier: %v", err)
		}
		defer jwtVerifier.Close()
	} else {
		logger.Warn("DEV MODE: authentication bypassed", "user_id", devUserID)
	}
	authorizer := serviceAuth.NewRoleBasedAuthorizer(resolver, cfg.ProfileRefreshGap, logger)

	handlers := &handler.Handlers{
		Posts:           handler.NewPostHandler(workflowService, logger),
		Recommendations: handler.NewRecommendationHandler(postingAdvisor, logger),
		Stream:          handler.NewStreamHandler(workflowService, sse.DefaultConfig(), logger),
		Engine:          handler.NewEngineHandler(workflowService, logger),
	}

	// Go 1.22+ enhanced patterns
	mux := http.NewServeMux()
	handlers.Register(mux)

	// Order: CORS → Recovery → Auth → Board access → Routes
	var h http.Handler = mux
	h = middleware.RequireBoardAccess(authorizer, logger)(h)
	h = middleware.AuthMiddleware(jwtVerifier, devUserID, logger)(h)
	h = middleware.Recovery(logger)(h)
	h = cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization", "Last-Event-ID"},
		AllowCredentials: true,
	}).Handler(h)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // Disabled to allow long-lived SSE streams
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return sweeper.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("shutting down")
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
