package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	ImportStatusPending    = "pending"
	ImportStatusInProgress = "in_progress"
	ImportStatusProcessed  = "processed"
	ImportStatusFailed     = "failed"
)

// ImportJob tracks one submitted CSV import. The API returns the job on
// POST /api/v1/imports; the client polls GET /api/v1/imports/{id} until
// status is processed or failed. Progress counts rows committed so far and
// never decreases.
type ImportJob struct {
	ID          uuid.UUID  `db:"id"           json:"id"`
	SourcePath  string     `db:"source_path"  json:"source_path"`
	Filename    string     `db:"filename"     json:"filename"`
	Status      string     `db:"status"       json:"status"`
	Progress    int64      `db:"progress"     json:"progress"`
	FileSize    int64      `db:"file_size"    json:"file_size"`
	Error       *string    `db:"error"        json:"error,omitempty"`
	SubmittedBy uuid.UUID  `db:"submitted_by" json:"submitted_by"`
	ProcessedAt *time.Time `db:"processed_at" json:"processed_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at"   json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"   json:"updated_at"`
}

// Terminal reports whether the status permits no further transitions.
func (j *ImportJob) Terminal() bool {
	return j.Status == ImportStatusProcessed || j.Status == ImportStatusFailed
}
