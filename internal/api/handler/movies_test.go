package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filmstack/filmstack/internal/api/handler"
	"github.com/filmstack/filmstack/internal/store"
	"github.com/filmstack/filmstack/pkg/models"
)

type fakeMovieReader struct {
	page      *store.Page[models.Movie]
	movies    map[uuid.UUID]*models.Movie
	listErr   error
	gotParams url.Values
}

func (f *fakeMovieReader) ListMovies(_ context.Context, params url.Values) (*store.Page[models.Movie], error) {
	f.gotParams = params
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.page, nil
}

func (f *fakeMovieReader) GetMovie(_ context.Context, id uuid.UUID) (*models.Movie, error) {
	m, ok := f.movies[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return m, nil
}

func sampleMovie() *models.Movie {
	now := time.Now().UTC()
	return &models.Movie{
		ID:          uuid.New(),
		ShowID:      "s1",
		Type:        "TV Show",
		Title:       "Dark",
		Cast:        "Louis Hofmann",
		Country:     "Germany",
		ReleaseYear: "2020",
		Rating:      "TV-MA",
		Duration:    "3 Seasons",
		ImportedBy:  uuid.New(),
		SourceJob:   uuid.New(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestListMovies_PassesQueryThrough(t *testing.T) {
	movies := &fakeMovieReader{page: &store.Page[models.Movie]{
		Data:     []models.Movie{*sampleMovie()},
		Page:     2,
		PageSize: 10,
		Skip:     10,
	}}
	h := handler.NewListMoviesHandler(movies)

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/movies?search_key=title&search_term=dark&sort_key=release_year&sort_value=-1&page=2&page_size=10", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "title", movies.gotParams.Get("search_key"))
	assert.Equal(t, "dark", movies.gotParams.Get("search_term"))
	assert.Equal(t, "-1", movies.gotParams.Get("sort_value"))

	var body struct {
		TotalCount *int64         `json:"total_count"`
		Data       []models.Movie `json:"data"`
		Page       int            `json:"page"`
		PageSize   int            `json:"page_size"`
		Skip       int            `json:"skip"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Nil(t, body.TotalCount)
	assert.Len(t, body.Data, 1)
	assert.Equal(t, 2, body.Page)
	assert.Equal(t, 10, body.PageSize)
	assert.Equal(t, 10, body.Skip)
	assert.Equal(t, "Dark", body.Data[0].Title)
}

func TestListMovies_ValidationErrorIs400(t *testing.T) {
	movies := &fakeMovieReader{listErr: &store.ValidationError{Param: "page", Reason: "must be a positive integer"}}
	h := handler.NewListMoviesHandler(movies)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/movies?page=zero", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))
}

func TestListMovies_StoreFailureIs500(t *testing.T) {
	movies := &fakeMovieReader{listErr: errors.New("db down")}
	h := handler.NewListMoviesHandler(movies)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/movies", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL_ERROR", errorCode(t, rec))
}

func TestGetMovie_Found(t *testing.T) {
	m := sampleMovie()
	movies := &fakeMovieReader{movies: map[uuid.UUID]*models.Movie{m.ID: m}}
	h := handler.NewGetMovieHandler(movies)

	rec := getVia("/api/v1/movies/{movieID}", h, "/api/v1/movies/"+m.ID.String())
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data models.Movie `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, m.ID, body.Data.ID)
	assert.Equal(t, "Dark", body.Data.Title)
	assert.Equal(t, "Louis Hofmann", body.Data.Cast)
}

func TestGetMovie_UnknownID(t *testing.T) {
	movies := &fakeMovieReader{movies: map[uuid.UUID]*models.Movie{}}
	h := handler.NewGetMovieHandler(movies)

	rec := getVia("/api/v1/movies/{movieID}", h, "/api/v1/movies/"+uuid.NewString())
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, rec))
}

func TestGetMovie_MalformedID(t *testing.T) {
	h := handler.NewGetMovieHandler(&fakeMovieReader{})

	rec := getVia("/api/v1/movies/{movieID}", h, "/api/v1/movies/42")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, rec))
}
