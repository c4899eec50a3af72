package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filmstack/filmstack/internal/api/handler"
	mw "github.com/filmstack/filmstack/internal/api/middleware"
	"github.com/filmstack/filmstack/internal/store"
	"github.com/filmstack/filmstack/pkg/models"
)

type fakeSubmitter struct {
	job         *models.ImportJob
	err         error
	gotName     string
	gotUser     uuid.UUID
	gotContents []byte
	calls       int
}

func (f *fakeSubmitter) SubmitImport(_ context.Context, r io.Reader, displayName string, submittedBy uuid.UUID) (*models.ImportJob, error) {
	f.calls++
	f.gotName = displayName
	f.gotUser = submittedBy
	f.gotContents, _ = io.ReadAll(r)
	if f.err != nil {
		return nil, f.err
	}
	return f.job, nil
}

type fakeJobReader struct {
	page    *store.Page[models.ImportJob]
	jobs    map[uuid.UUID]*models.ImportJob
	listErr error
	getErr  error
}

func (f *fakeJobReader) ListImportJobs(_ context.Context, _ url.Values) (*store.Page[models.ImportJob], error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.page, nil
}

func (f *fakeJobReader) GetImportJob(_ context.Context, id uuid.UUID) (*models.ImportJob, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	job, ok := f.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return job, nil
}

// uploadRequest builds an authenticated multipart POST carrying one file.
func uploadRequest(t *testing.T, userID uuid.UUID, fieldName, fileName, contents string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(fieldName, fileName)
	require.NoError(t, err)
	_, err = part.Write([]byte(contents))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/imports", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req.WithContext(mw.SetUserID(req.Context(), userID))
}

func pendingJob(userID uuid.UUID) *models.ImportJob {
	now := time.Now().UTC()
	return &models.ImportJob{
		ID:          uuid.New(),
		SourcePath:  "/uploads/titles-ab12cd34.csv",
		Filename:    "titles-ab12cd34.csv",
		Status:      models.ImportStatusPending,
		FileSize:    42,
		SubmittedBy: userID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestSubmitImport_Accepted(t *testing.T) {
	userID := uuid.New()
	submitter := &fakeSubmitter{job: pendingJob(userID)}
	h := handler.NewSubmitImportHandler(submitter)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, userID, "file", "netflix titles.csv", "show_id,title\n"))

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "netflix titles.csv", submitter.gotName)
	assert.Equal(t, userID, submitter.gotUser)
	assert.Equal(t, "show_id,title\n", string(submitter.gotContents))

	var body struct {
		Data struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, submitter.job.ID.String(), body.Data.ID)
	assert.Equal(t, models.ImportStatusPending, body.Data.Status)
}

func TestSubmitImport_NoAuthenticatedUser(t *testing.T) {
	submitter := &fakeSubmitter{}
	h := handler.NewSubmitImportHandler(submitter)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/imports", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, submitter.calls)
}

func TestSubmitImport_RejectsNonCSV(t *testing.T) {
	submitter := &fakeSubmitter{}
	h := handler.NewSubmitImportHandler(submitter)

	for _, name := range []string{"titles.xlsx", "titles.txt", "titles"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, uploadRequest(t, uuid.New(), "file", name, "data"))

		assert.Equal(t, http.StatusBadRequest, rec.Code, "file %s", name)
		assert.Equal(t, "INVALID_FILE_FORMAT", errorCode(t, rec), "file %s", name)
	}
	assert.Zero(t, submitter.calls)
}

func TestSubmitImport_AcceptsUppercaseExtension(t *testing.T) {
	userID := uuid.New()
	submitter := &fakeSubmitter{job: pendingJob(userID)}
	h := handler.NewSubmitImportHandler(submitter)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, userID, "file", "TITLES.CSV", "data"))

	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestSubmitImport_MissingFileField(t *testing.T) {
	h := handler.NewSubmitImportHandler(&fakeSubmitter{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, uuid.New(), "wrong_field", "titles.csv", "data"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_REQUEST", errorCode(t, rec))
}

func TestSubmitImport_ServiceFailure(t *testing.T) {
	submitter := &fakeSubmitter{err: errors.New("disk full")}
	h := handler.NewSubmitImportHandler(submitter)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, uuid.New(), "file", "titles.csv", "data"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL_ERROR", errorCode(t, rec))
}

func TestListImports_ReturnsPage(t *testing.T) {
	userID := uuid.New()
	total := int64(1)
	jobs := &fakeJobReader{page: &store.Page[models.ImportJob]{
		TotalCount: &total,
		Data:       []models.ImportJob{*pendingJob(userID)},
		Page:       1,
		PageSize:   20,
	}}
	h := handler.NewListImportsHandler(jobs)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/imports?total_count=true", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		TotalCount *int64             `json:"total_count"`
		Data       []models.ImportJob `json:"data"`
		Page       int                `json:"page"`
		PageSize   int                `json:"page_size"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.NotNil(t, body.TotalCount)
	assert.EqualValues(t, 1, *body.TotalCount)
	assert.Len(t, body.Data, 1)
	assert.Equal(t, 1, body.Page)
	assert.Equal(t, 20, body.PageSize)
}

func TestListImports_ValidationErrorIs400(t *testing.T) {
	jobs := &fakeJobReader{listErr: &store.ValidationError{Param: "sort_value", Reason: "must be 1 or -1"}}
	h := handler.NewListImportsHandler(jobs)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/imports?sort_value=5", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))
}

func TestListImports_StoreFailureIs500(t *testing.T) {
	jobs := &fakeJobReader{listErr: errors.New("db down")}
	h := handler.NewListImportsHandler(jobs)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/imports", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL_ERROR", errorCode(t, rec))
}

// getVia routes the request through chi so URL params resolve.
func getVia(pattern string, h http.HandlerFunc, target string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Get(pattern, h)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestGetImport_Found(t *testing.T) {
	job := pendingJob(uuid.New())
	jobs := &fakeJobReader{jobs: map[uuid.UUID]*models.ImportJob{job.ID: job}}
	h := handler.NewGetImportHandler(jobs)

	rec := getVia("/api/v1/imports/{jobID}", h, "/api/v1/imports/"+job.ID.String())
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data models.ImportJob `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, job.ID, body.Data.ID)
	assert.Equal(t, models.ImportStatusPending, body.Data.Status)
}

func TestGetImport_UnknownID(t *testing.T) {
	jobs := &fakeJobReader{jobs: map[uuid.UUID]*models.ImportJob{}}
	h := handler.NewGetImportHandler(jobs)

	rec := getVia("/api/v1/imports/{jobID}", h, "/api/v1/imports/"+uuid.NewString())
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, rec))
}

func TestGetImport_MalformedID(t *testing.T) {
	h := handler.NewGetImportHandler(&fakeJobReader{})

	rec := getVia("/api/v1/imports/{jobID}", h, "/api/v1/imports/not-a-uuid")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, rec))
}
