package models

import (
	"time"

	"github.com/google/uuid"
)

// Movie is one imported catalog row. The CSV columns are kept as text;
// the four provenance fields identify when, by whom, and from which import
// job the row was created. Movies are written only by the ingestion worker
// and are immutable afterwards.
type Movie struct {
	ID          uuid.UUID `db:"id"           json:"id"`
	ShowID      string    `db:"show_id"      json:"show_id"`
	Type        string    `db:"type"         json:"type"`
	Title       string    `db:"title"        json:"title"`
	Director    string    `db:"director"     json:"director"`
	Cast        string    `db:"cast_members" json:"cast"`
	Country     string    `db:"country"      json:"country"`
	DateAdded   string    `db:"date_added"   json:"date_added"`
	ReleaseYear string    `db:"release_year" json:"release_year"`
	Rating      string    `db:"rating"       json:"rating"`
	Duration    string    `db:"duration"     json:"duration"`
	ListedIn    string    `db:"listed_in"    json:"listed_in"`
	Description string    `db:"description"  json:"description"`
	ImportedBy  uuid.UUID `db:"imported_by"  json:"imported_by"`
	SourceJob   uuid.UUID `db:"source_job"   json:"source_job"`
	CreatedAt   time.Time `db:"created_at"   json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"   json:"updated_at"`
}
