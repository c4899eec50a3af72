// Package ingest implements the asynchronous CSV import pipeline: submitting
// uploads as jobs and streaming job sources chunk-by-chunk into the catalog.
package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/filmstack/filmstack/internal/files"
	"github.com/filmstack/filmstack/internal/store"
	"github.com/filmstack/filmstack/pkg/models"
	"github.com/google/uuid"
)

// ExpectedHeader is the fixed import schema. The first row of every source
// file must match it exactly, in order.
var ExpectedHeader = []string{
	"show_id", "type", "title", "director", "cast", "country",
	"date_added", "release_year", "rating", "duration", "listed_in",
	"description",
}

var errInvalidHeader = errors.New("invalid header")

const errSourceNotFound = "source not found"

// Store is the slice of the data layer the import pipeline depends on.
type Store interface {
	CreateImportJob(ctx context.Context, job *models.ImportJob) error
	GetImportJob(ctx context.Context, id uuid.UUID) (*models.ImportJob, error)
	ClaimImportJob(ctx context.Context, id uuid.UUID) (bool, error)
	UpdateImportJobStatus(ctx context.Context, id uuid.UUID, status string, opts ...store.JobUpdateOption) error
	UpdateImportJobProgress(ctx context.Context, id uuid.UUID, progress int64) error
	InsertMovies(ctx context.Context, movies []*models.Movie) error
}

// Worker processes import jobs to a terminal state. It is the sole writer
// of movie records and the sole post-creation writer of import jobs.
type Worker struct {
	store     Store
	files     files.Storage
	chunkSize int
}

// NewWorker creates a Worker reading chunkSize rows per batch.
func NewWorker(st Store, fs files.Storage, chunkSize int) *Worker {
	return &Worker{store: st, files: fs, chunkSize: chunkSize}
}

// Process runs one import job. Failures are recorded on the job record and
// never returned: by the time the worker runs, the submitting request has
// long since returned, and the only consumer is a later status poll.
func (w *Worker) Process(ctx context.Context, jobID uuid.UUID) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in import worker", "job_id", jobID, "error", r)
			w.fail(ctx, jobID, fmt.Sprintf("panic: %v", r))
		}
	}()

	job, err := w.store.GetImportJob(ctx, jobID)
	if errors.Is(err, store.ErrNotFound) {
		// Nothing to update and nobody waiting; redeliveries of deleted
		// jobs end here.
		slog.Info("import job not found, skipping", "job_id", jobID)
		return
	}
	if err != nil {
		slog.Error("load import job", "job_id", jobID, "error", err)
		return
	}

	if job.Status != models.ImportStatusPending {
		// At-least-once delivery: a redelivered id whose job already ran
		// (or is running) must not insert anything twice.
		slog.Info("import job not pending, skipping",
			"job_id", jobID, "status", job.Status)
		return
	}

	if !w.files.Exists(job.SourcePath) {
		slog.Warn("import source missing", "job_id", jobID, "path", job.SourcePath)
		w.fail(ctx, jobID, errSourceNotFound)
		return
	}

	claimed, err := w.store.ClaimImportJob(ctx, jobID)
	if err != nil {
		slog.Error("claim import job", "job_id", jobID, "error", err)
		return
	}
	if !claimed {
		slog.Info("import job claimed elsewhere, skipping", "job_id", jobID)
		return
	}

	slog.Info("import started", "job_id", jobID, "file", job.Filename, "size", job.FileSize)

	if err := w.ingest(ctx, job); err != nil {
		slog.Warn("import failed", "job_id", jobID, "error", err)
		w.fail(ctx, jobID, err.Error())
		return
	}

	if err := w.store.UpdateImportJobStatus(ctx, jobID, models.ImportStatusProcessed); err != nil {
		slog.Error("mark import processed", "job_id", jobID, "error", err)
		return
	}
	slog.Info("import processed", "job_id", jobID, "file", job.Filename)
}

// ingest streams the source file in chunks of up to chunkSize rows. Each
// chunk is one read, one bulk insert, and one progress checkpoint. Any
// error aborts the job; chunks already inserted stay in the catalog.
func (w *Worker) ingest(ctx context.Context, job *models.ImportJob) error {
	src, err := w.files.Open(job.SourcePath)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer src.Close()

	r := csv.NewReader(src)

	header, err := r.Read()
	if err != nil {
		// An empty or unreadable first row means the schema cannot match.
		return errInvalidHeader
	}
	if !slices.Equal(header, ExpectedHeader) {
		return errInvalidHeader
	}

	processed := job.Progress
	for {
		rows, err := w.readChunk(r)
		if err != nil {
			return fmt.Errorf("read chunk: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}

		movies := enrich(rows, job, time.Now().UTC())
		if err := w.store.InsertMovies(ctx, movies); err != nil {
			return err
		}

		processed += int64(len(rows))
		if err := w.store.UpdateImportJobProgress(ctx, job.ID, processed); err != nil {
			return err
		}
		slog.Info("import chunk committed", "job_id", job.ID, "progress", processed)
	}
}

// readChunk reads up to chunkSize records. A short (or empty) result means
// the file is exhausted. The csv reader rejects rows whose field count
// differs from the header's, so malformed rows surface here as errors.
func (w *Worker) readChunk(r *csv.Reader) ([][]string, error) {
	rows := make([][]string, 0, w.chunkSize)
	for len(rows) < w.chunkSize {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, record)
	}
	return rows, nil
}

// enrich converts raw CSV rows into movie records stamped with provenance:
// processing time, the submitting user, and the source job id.
func enrich(rows [][]string, job *models.ImportJob, now time.Time) []*models.Movie {
	movies := make([]*models.Movie, len(rows))
	for i, row := range rows {
		movies[i] = &models.Movie{
			ID:          uuid.New(),
			ShowID:      row[0],
			Type:        row[1],
			Title:       row[2],
			Director:    row[3],
			Cast:        row[4],
			Country:     row[5],
			DateAdded:   row[6],
			ReleaseYear: row[7],
			Rating:      row[8],
			Duration:    row[9],
			ListedIn:    row[10],
			Description: row[11],
			ImportedBy:  job.SubmittedBy,
			SourceJob:   job.ID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
	}
	return movies
}

func (w *Worker) fail(ctx context.Context, jobID uuid.UUID, msg string) {
	err := w.store.UpdateImportJobStatus(ctx, jobID, models.ImportStatusFailed,
		store.WithErrorMessage(msg))
	if err != nil {
		slog.Error("record import failure", "job_id", jobID, "error", err)
	}
}
