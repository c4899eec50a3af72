package store

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/filmstack/filmstack/pkg/models"
	"github.com/google/uuid"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// ValidationError reports a malformed client-supplied query parameter.
// Unknown search/sort keys are not validation errors; they fall back to
// the default behavior silently.
type ValidationError struct {
	Param  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid parameter %q: %s", e.Param, e.Reason)
}

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	CreateUser(ctx context.Context, user *models.User) error
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)

	CreateImportJob(ctx context.Context, job *models.ImportJob) error
	GetImportJob(ctx context.Context, id uuid.UUID) (*models.ImportJob, error)
	ListImportJobs(ctx context.Context, params url.Values) (*Page[models.ImportJob], error)
	// ClaimImportJob atomically moves a pending job to in_progress. It
	// returns false when the job is absent or no longer pending, which is
	// how redelivered job IDs are detected and skipped.
	ClaimImportJob(ctx context.Context, id uuid.UUID) (bool, error)
	UpdateImportJobStatus(ctx context.Context, id uuid.UUID, status string, opts ...JobUpdateOption) error
	// UpdateImportJobProgress sets progress and refreshes updated_at as a
	// single field-set against the id. This is the durable checkpoint
	// clients poll to observe liveness.
	UpdateImportJobProgress(ctx context.Context, id uuid.UUID, progress int64) error

	InsertMovies(ctx context.Context, movies []*models.Movie) error
	GetMovie(ctx context.Context, id uuid.UUID) (*models.Movie, error)
	ListMovies(ctx context.Context, params url.Values) (*Page[models.Movie], error)
	CountMoviesBySourceJob(ctx context.Context, jobID uuid.UUID) (int64, error)
}

// JobUpdate carries the optional fields of a status update. Implementations
// resolve the options through ResolveJobUpdate.
type JobUpdate struct {
	ErrorMessage *string
}

type JobUpdateOption func(*JobUpdate)

func WithErrorMessage(msg string) JobUpdateOption {
	return func(u *JobUpdate) {
		u.ErrorMessage = &msg
	}
}

func ResolveJobUpdate(opts ...JobUpdateOption) JobUpdate {
	var u JobUpdate
	for _, opt := range opts {
		opt(&u)
	}
	return u
}
