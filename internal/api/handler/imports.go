package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	mw "github.com/filmstack/filmstack/internal/api/middleware"
	"github.com/filmstack/filmstack/internal/api/response"
	"github.com/filmstack/filmstack/internal/store"
	"github.com/filmstack/filmstack/pkg/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// maxUploadBytes caps how much of a multipart body is buffered in memory;
// larger files spill to temp files.
const maxUploadBytes = 32 << 20

// ImportSubmitter defines the interface the upload handler depends on.
type ImportSubmitter interface {
	SubmitImport(ctx context.Context, r io.Reader, displayName string, submittedBy uuid.UUID) (*models.ImportJob, error)
}

// JobReader defines the interface the job listing/lookup handlers depend on.
type JobReader interface {
	ListImportJobs(ctx context.Context, params url.Values) (*store.Page[models.ImportJob], error)
	GetImportJob(ctx context.Context, id uuid.UUID) (*models.ImportJob, error)
}

// NewSubmitImportHandler returns an http.HandlerFunc for POST /api/v1/imports.
// It accepts a multipart form with a single CSV file under the "file" field
// and responds 202 with the created pending job.
func NewSubmitImportHandler(svc ImportSubmitter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Expected multipart form upload", nil)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Missing file field", nil)
			return
		}
		defer file.Close()

		if header.Filename == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "No file selected", nil)
			return
		}
		if !strings.HasSuffix(strings.ToLower(header.Filename), ".csv") {
			response.Error(w, http.StatusBadRequest, "INVALID_FILE_FORMAT", "Only .csv files are accepted", nil)
			return
		}

		job, err := svc.SubmitImport(r.Context(), file, header.Filename, userID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to submit import", nil)
			return
		}

		response.Accepted(w, job)
	}
}

// NewListImportsHandler returns an http.HandlerFunc for GET /api/v1/imports.
func NewListImportsHandler(jobs JobReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := jobs.ListImportJobs(r.Context(), r.URL.Query())
		if err != nil {
			writeListError(w, err)
			return
		}
		response.Page(w, page)
	}
}

// NewGetImportHandler returns an http.HandlerFunc for GET /api/v1/imports/{jobID}.
func NewGetImportHandler(jobs JobReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			// A malformed id cannot name any job; indistinguishable from absent.
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Import job not found", nil)
			return
		}

		job, err := jobs.GetImportJob(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Import job not found", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}

		response.JSON(w, job)
	}
}

// writeListError maps list failures: validation problems are the client's,
// everything else is ours.
func writeListError(w http.ResponseWriter, err error) {
	var ve *store.ValidationError
	if errors.As(err, &ve) {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", ve.Error(), nil)
		return
	}
	response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
}
