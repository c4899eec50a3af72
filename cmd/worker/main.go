// Package main is the entrypoint for the filmstack import worker. It pops
// job ids off the Redis queue and runs each import to a terminal state.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/filmstack/filmstack/internal/config"
	"github.com/filmstack/filmstack/internal/files"
	"github.com/filmstack/filmstack/internal/ingest"
	"github.com/filmstack/filmstack/internal/queue"
	"github.com/filmstack/filmstack/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("worker failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env, "chunk_size", cfg.Ingest.ChunkSize)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	uploadStore, err := files.NewDiskStorage(cfg.Storage.UploadDir)
	if err != nil {
		return fmt.Errorf("create upload storage: %w", err)
	}

	jobQueue, err := queue.NewRedisQueue(cfg.Redis.URL, cfg.Ingest.QueueKey)
	if err != nil {
		return fmt.Errorf("create job queue: %w", err)
	}
	defer jobQueue.Close()

	if err := jobQueue.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	pgStore := store.NewPostgresStore(pool, cfg.API.DefaultPageSize)
	worker := ingest.NewWorker(pgStore, uploadStore, cfg.Ingest.ChunkSize)

	consumer := queue.NewConsumer(jobQueue, worker.Process)

	slog.Info("worker started", "queue", cfg.Ingest.QueueKey)
	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("consume queue: %w", err)
	}

	slog.Info("worker stopped gracefully")
	return nil
}
