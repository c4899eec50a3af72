package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/filmstack/filmstack/internal/files"
	"github.com/filmstack/filmstack/internal/queue"
	"github.com/filmstack/filmstack/internal/store"
	"github.com/filmstack/filmstack/pkg/models"
	"github.com/google/uuid"
)

// Service handles the synchronous side of an import: persisting the upload,
// creating the pending job record, and dispatching the job id. It never
// waits for processing.
type Service struct {
	store      Store
	files      files.Storage
	dispatcher queue.Dispatcher
}

// NewService creates an import Service.
func NewService(st Store, fs files.Storage, d queue.Dispatcher) *Service {
	return &Service{store: st, files: fs, dispatcher: d}
}

// SubmitImport stores the uploaded CSV, creates a pending import job, and
// enqueues it for background processing. The returned job is what the
// client should poll.
func (s *Service) SubmitImport(ctx context.Context, r io.Reader, displayName string, submittedBy uuid.UUID) (*models.ImportJob, error) {
	saved, err := s.files.Save(r, displayName)
	if err != nil {
		return nil, fmt.Errorf("save upload: %w", err)
	}

	now := time.Now().UTC()
	job := &models.ImportJob{
		ID:          uuid.New(),
		SourcePath:  saved.Path,
		Filename:    saved.Name,
		Status:      models.ImportStatusPending,
		Progress:    0,
		FileSize:    saved.Size,
		SubmittedBy: submittedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateImportJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create import job: %w", err)
	}

	if err := s.dispatcher.Enqueue(ctx, job.ID); err != nil {
		// Without a queue entry the job would sit pending forever; fail it
		// so the client sees a terminal state instead of a stuck one.
		failErr := s.store.UpdateImportJobStatus(ctx, job.ID, models.ImportStatusFailed,
			store.WithErrorMessage("dispatch failed: "+err.Error()))
		if failErr != nil {
			slog.Error("mark undispatched job failed", "job_id", job.ID, "error", failErr)
		}
		return nil, fmt.Errorf("enqueue import job: %w", err)
	}

	slog.Info("import submitted", "job_id", job.ID, "file", saved.Name, "size", saved.Size)
	return job, nil
}
