// Package main is the entrypoint for the filmstack API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/filmstack/filmstack/internal/api"
	"github.com/filmstack/filmstack/internal/api/handler"
	mw "github.com/filmstack/filmstack/internal/api/middleware"
	"github.com/filmstack/filmstack/internal/api/response"
	"github.com/filmstack/filmstack/internal/cache"
	"github.com/filmstack/filmstack/internal/config"
	"github.com/filmstack/filmstack/internal/files"
	"github.com/filmstack/filmstack/internal/ingest"
	"github.com/filmstack/filmstack/internal/queue"
	"github.com/filmstack/filmstack/internal/store"
	"github.com/filmstack/filmstack/pkg/models"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache (sessions, rate limiting)
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Job queue for dispatching imports to the worker
	jobQueue, err := queue.NewRedisQueue(cfg.Redis.URL, cfg.Ingest.QueueKey)
	if err != nil {
		return fmt.Errorf("create job queue: %w", err)
	}
	defer jobQueue.Close()

	// 6. Upload storage
	uploadStore, err := files.NewDiskStorage(cfg.Storage.UploadDir)
	if err != nil {
		return fmt.Errorf("create upload storage: %w", err)
	}

	// 7. Create store and seed the admin account
	pgStore := store.NewPostgresStore(pool, cfg.API.DefaultPageSize)
	if err := seedAdmin(ctx, pgStore, cfg.Admin); err != nil {
		return fmt.Errorf("seed admin user: %w", err)
	}

	importService := ingest.NewService(pgStore, uploadStore, jobQueue)

	// 8. Build router with dependencies
	auth := mw.NewAuth(redisCache)
	rateLimit := mw.NewRateLimit(redisCache, cfg.API.RateLimitPerMin)

	deps := api.Dependencies{
		Auth:      auth,
		RateLimit: rateLimit,

		HealthHandler: healthHandler(pgStore, redisCache),
		LoginHandler:  handler.NewLoginHandler(pgStore, redisCache, cfg.API.SessionTTL),

		SubmitImportHandler: handler.NewSubmitImportHandler(importService),
		ListImportsHandler:  handler.NewListImportsHandler(pgStore),
		GetImportHandler:    handler.NewGetImportHandler(pgStore),

		ListMoviesHandler: handler.NewListMoviesHandler(pgStore),
		GetMovieHandler:   handler.NewGetMovieHandler(pgStore),
	}

	router := api.NewRouter(deps)

	// 9. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// seedAdmin creates the admin account on first boot. A rerun against an
// existing account is a no-op.
func seedAdmin(ctx context.Context, s store.Store, cfg config.AdminConfig) error {
	_, err := s.GetUserByUsername(ctx, cfg.Username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	now := time.Now().UTC()
	err = s.CreateUser(ctx, &models.User{
		ID:           uuid.New(),
		Username:     cfg.Username,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if errors.Is(err, store.ErrDuplicateKey) {
		// Another replica seeded it first.
		return nil
	}
	if err != nil {
		return err
	}
	slog.Info("admin user created", "username", cfg.Username)
	return nil
}

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
