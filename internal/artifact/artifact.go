package artifact

import (
	"errors"
	"time"
)

// TypeCode is the provenance tag stored in artifact_type for indexed
// project files.
const TypeCode = "CODE"

var (
	// ErrNotFound is returned when no artifact matches a lookup.
	// It is never wrapped around connection or query failures.
	ErrNotFound = errors.New("artifact not found")

	// ErrStore wraps connection and query failures so callers can tell
	// "store unavailable" apart from "no results".
	ErrStore = errors.New("artifact store unavailable")
)

// Artifact represents one ingested project file.
//
// Path is the project-relative file path and the unique key: at most one
// live row exists per path, enforced by Upsert's delete-then-insert
// transaction.
type Artifact struct {
	Path      string
	Type      string // TypeCode unless a future ingester says otherwise
	Content   string
	Embedding []float32
	Metadata  map[string]string // provenance tags, e.g. {"source": "ingest"}
	CreatedAt time.Time
}

// Match is one similarity result. Distance is cosine distance in [0, 2],
// smaller is more similar.
type Match struct {
	Path     string
	Content  string
	Distance float64
}
