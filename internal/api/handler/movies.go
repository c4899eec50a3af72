package handler

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/filmstack/filmstack/internal/api/response"
	"github.com/filmstack/filmstack/internal/store"
	"github.com/filmstack/filmstack/pkg/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// MovieReader defines the interface the catalog handlers depend on.
type MovieReader interface {
	ListMovies(ctx context.Context, params url.Values) (*store.Page[models.Movie], error)
	GetMovie(ctx context.Context, id uuid.UUID) (*models.Movie, error)
}

// NewListMoviesHandler returns an http.HandlerFunc for GET /api/v1/movies.
func NewListMoviesHandler(movies MovieReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := movies.ListMovies(r.Context(), r.URL.Query())
		if err != nil {
			writeListError(w, err)
			return
		}
		response.Page(w, page)
	}
}

// NewGetMovieHandler returns an http.HandlerFunc for GET /api/v1/movies/{movieID}.
func NewGetMovieHandler(movies MovieReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "movieID"))
		if err != nil {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Movie not found", nil)
			return
		}

		movie, err := movies.GetMovie(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Movie not found", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}

		response.JSON(w, movie)
	}
}
