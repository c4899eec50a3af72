package store

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/filmstack/filmstack/pkg/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// importJobs is the import_jobs collection as exposed to the query engine.
// Search and sort allow-lists match the job listing endpoint contract.
var importJobs = Collection{
	Table: "import_jobs",
	Columns: []string{
		"id", "source_path", "filename", "status", "progress", "file_size",
		"error", "submitted_by", "processed_at", "created_at", "updated_at",
	},
	Searchable: map[string]int{"filename": 1, "status": 1},
	Sortable:   map[string]int{"id": -1, "created_at": -1, "updated_at": -1},
}

// moviesCollection is the movies collection as exposed to the query engine.
var moviesCollection = Collection{
	Table: "movies",
	Columns: []string{
		"id", "show_id", "type", "title", "director", "cast_members",
		"country", "date_added", "release_year", "rating", "duration",
		"listed_in", "description", "imported_by", "source_job",
		"created_at", "updated_at",
	},
	Searchable: map[string]int{
		"title": 1, "type": 1, "director": 1, "country": 1, "release_year": 1,
	},
	Sortable: map[string]int{
		"id": 1, "show_id": 1, "created_at": 1, "updated_at": 1,
		"release_year": -1, "duration": -1, "date_added": -1,
	},
}

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool            *pgxpool.Pool
	defaultPageSize int
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, defaultPageSize int) *PostgresStore {
	return &PostgresStore{pool: pool, defaultPageSize: defaultPageSize}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Users ---

func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, username, password_hash, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		user.ID, user.Username, user.PasswordHash, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, password_hash, created_at, updated_at FROM users WHERE username = $1`,
		username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by username: %w", err)
	}
	return &u, nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, password_hash, created_at, updated_at FROM users WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// --- Import jobs ---

func (s *PostgresStore) CreateImportJob(ctx context.Context, job *models.ImportJob) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO import_jobs (id, source_path, filename, status, progress, file_size, submitted_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		job.ID, job.SourcePath, job.Filename, job.Status, job.Progress,
		job.FileSize, job.SubmittedBy, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create import job: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetImportJob(ctx context.Context, id uuid.UUID) (*models.ImportJob, error) {
	var j models.ImportJob
	err := s.pool.QueryRow(ctx,
		`SELECT id, source_path, filename, status, progress, file_size, error, submitted_by, processed_at, created_at, updated_at
		 FROM import_jobs WHERE id = $1`, id,
	).Scan(&j.ID, &j.SourcePath, &j.Filename, &j.Status, &j.Progress, &j.FileSize,
		&j.Error, &j.SubmittedBy, &j.ProcessedAt, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get import job: %w", err)
	}
	return &j, nil
}

func (s *PostgresStore) ListImportJobs(ctx context.Context, params url.Values) (*Page[models.ImportJob], error) {
	return paginate(ctx, s.pool, importJobs, params, s.defaultPageSize, scanImportJob)
}

func scanImportJob(rows pgx.Rows) (models.ImportJob, error) {
	var j models.ImportJob
	err := rows.Scan(&j.ID, &j.SourcePath, &j.Filename, &j.Status, &j.Progress,
		&j.FileSize, &j.Error, &j.SubmittedBy, &j.ProcessedAt, &j.CreatedAt, &j.UpdatedAt)
	return j, err
}

func (s *PostgresStore) ClaimImportJob(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE import_jobs SET status = $2, updated_at = $3 WHERE id = $1 AND status = $4`,
		id, models.ImportStatusInProgress, time.Now().UTC(), models.ImportStatusPending)
	if err != nil {
		return false, fmt.Errorf("claim import job: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// validTransitions encodes the job lifecycle. The direct pending -> failed
// edge covers a source file that is already gone when the worker starts.
// Terminal states have no outgoing edges.
var validTransitions = map[string][]string{
	models.ImportStatusPending:    {models.ImportStatusInProgress, models.ImportStatusFailed},
	models.ImportStatusInProgress: {models.ImportStatusProcessed, models.ImportStatusFailed},
}

func (s *PostgresStore) UpdateImportJobStatus(ctx context.Context, id uuid.UUID, status string, opts ...JobUpdateOption) error {
	update := ResolveJobUpdate(opts...)

	var currentStatus string
	err := s.pool.QueryRow(ctx, `SELECT status FROM import_jobs WHERE id = $1`, id).Scan(&currentStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get import job status: %w", err)
	}

	valid := false
	for _, a := range validTransitions[currentStatus] {
		if a == status {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid import job status transition: %s -> %s", currentStatus, status)
	}

	now := time.Now().UTC()
	query := `UPDATE import_jobs SET status = $2, updated_at = $3`
	args := []any{id, status, now}
	argIdx := 4

	if status == models.ImportStatusProcessed || status == models.ImportStatusFailed {
		query += fmt.Sprintf(", processed_at = $%d", argIdx)
		args = append(args, now)
		argIdx++
	}
	if update.ErrorMessage != nil {
		query += fmt.Sprintf(", error = $%d", argIdx)
		args = append(args, *update.ErrorMessage)
		argIdx++
	}

	query += " WHERE id = $1"

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("update import job status: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateImportJobProgress(ctx context.Context, id uuid.UUID, progress int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE import_jobs SET progress = $2, updated_at = $3 WHERE id = $1`,
		id, progress, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update import job progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Movies ---

// InsertMovies bulk-inserts one chunk of enriched records in a single
// round-trip using the Postgres COPY protocol.
func (s *PostgresStore) InsertMovies(ctx context.Context, movies []*models.Movie) error {
	if len(movies) == 0 {
		return nil
	}
	_, err := s.pool.CopyFrom(ctx,
		pgx.Identifier{"movies"},
		moviesCollection.Columns,
		pgx.CopyFromSlice(len(movies), func(i int) ([]any, error) {
			m := movies[i]
			return []any{
				m.ID, m.ShowID, m.Type, m.Title, m.Director, m.Cast,
				m.Country, m.DateAdded, m.ReleaseYear, m.Rating, m.Duration,
				m.ListedIn, m.Description, m.ImportedBy, m.SourceJob,
				m.CreatedAt, m.UpdatedAt,
			}, nil
		}))
	if err != nil {
		return fmt.Errorf("insert movies: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetMovie(ctx context.Context, id uuid.UUID) (*models.Movie, error) {
	var m models.Movie
	err := s.pool.QueryRow(ctx,
		`SELECT id, show_id, type, title, director, cast_members, country, date_added, release_year, rating, duration, listed_in, description, imported_by, source_job, created_at, updated_at
		 FROM movies WHERE id = $1`, id,
	).Scan(&m.ID, &m.ShowID, &m.Type, &m.Title, &m.Director, &m.Cast,
		&m.Country, &m.DateAdded, &m.ReleaseYear, &m.Rating, &m.Duration,
		&m.ListedIn, &m.Description, &m.ImportedBy, &m.SourceJob,
		&m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get movie: %w", err)
	}
	return &m, nil
}

func (s *PostgresStore) ListMovies(ctx context.Context, params url.Values) (*Page[models.Movie], error) {
	return paginate(ctx, s.pool, moviesCollection, params, s.defaultPageSize, scanMovie)
}

func scanMovie(rows pgx.Rows) (models.Movie, error) {
	var m models.Movie
	err := rows.Scan(&m.ID, &m.ShowID, &m.Type, &m.Title, &m.Director, &m.Cast,
		&m.Country, &m.DateAdded, &m.ReleaseYear, &m.Rating, &m.Duration,
		&m.ListedIn, &m.Description, &m.ImportedBy, &m.SourceJob,
		&m.CreatedAt, &m.UpdatedAt)
	return m, err
}

func (s *PostgresStore) CountMoviesBySourceJob(ctx context.Context, jobID uuid.UUID) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM movies WHERE source_job = $1`, jobID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count movies by source job: %w", err)
	}
	return count, nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
