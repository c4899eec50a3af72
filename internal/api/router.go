package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	mw "github.com/filmstack/filmstack/internal/api/middleware"
	"github.com/filmstack/filmstack/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler http.HandlerFunc
	LoginHandler  http.HandlerFunc

	SubmitImportHandler http.HandlerFunc
	ListImportsHandler  http.HandlerFunc
	GetImportHandler    http.HandlerFunc

	ListMoviesHandler http.HandlerFunc
	GetMovieHandler   http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public routes
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))
	r.Post("/api/v1/auth/login", orNotImplemented(deps.LoginHandler))

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		r.Post("/api/v1/imports", orNotImplemented(deps.SubmitImportHandler))
		r.Get("/api/v1/imports", orNotImplemented(deps.ListImportsHandler))
		r.Get("/api/v1/imports/{jobID}", orNotImplemented(deps.GetImportHandler))

		r.Get("/api/v1/movies", orNotImplemented(deps.ListMoviesHandler))
		r.Get("/api/v1/movies/{movieID}", orNotImplemented(deps.GetMovieHandler))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
