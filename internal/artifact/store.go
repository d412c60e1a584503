package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
)

// Querier defines the database operations the Store needs. The interface is
// defined here, by the consumer, so tests can substitute a mock; Queries is
// the pgx-backed production implementation.
type Querier interface {
	// ReplaceArtifact atomically deletes any prior row for the path and
	// inserts the new one.
	ReplaceArtifact(ctx context.Context, arg ReplaceArtifactParams) error

	// NearestArtifacts returns up to ResultLimit rows ordered ascending
	// by cosine distance to QueryEmbedding.
	NearestArtifacts(ctx context.Context, arg NearestArtifactsParams) ([]NearestArtifactsRow, error)

	// ArtifactByPathFragment returns the best single row whose path
	// contains the fragment, or pgx.ErrNoRows.
	ArtifactByPathFragment(ctx context.Context, fragment string) (ContentRow, error)

	// CountArtifacts returns the number of live rows.
	CountArtifacts(ctx context.Context) (int64, error)
}

// ReplaceArtifactParams carries one upsert.
type ReplaceArtifactParams struct {
	Path      string
	Type      string
	Content   string
	Embedding *pgvector.Vector
	Metadata  []byte
}

// NearestArtifactsParams carries one similarity query.
type NearestArtifactsParams struct {
	QueryEmbedding *pgvector.Vector
	ResultLimit    int32
}

// NearestArtifactsRow is one similarity result row.
type NearestArtifactsRow struct {
	Path     string
	Content  string
	Distance float64
}

// ContentRow is one path-lookup result row.
type ContentRow struct {
	Path    string
	Content string
}

// Store manages semantic artifact memory: the vector-indexed mirror of the
// project tree. Safe for concurrent use; all state lives in PostgreSQL.
type Store struct {
	queries Querier
	logger  *slog.Logger
}

// New creates a Store. logger may be nil.
func New(queries Querier, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{queries: queries, logger: logger}
}

// Upsert replaces the artifact for a.Path wholesale. The replacement is a
// single transaction, so concurrent readers never observe zero or two live
// rows for the path. Re-running with identical content leaves the store in
// the same observable state.
func (s *Store) Upsert(ctx context.Context, a Artifact) error {
	if a.Path == "" {
		return fmt.Errorf("%w: empty path", ErrStore)
	}
	if len(a.Embedding) == 0 {
		return fmt.Errorf("%w: empty embedding for %q", ErrStore, a.Path)
	}

	artifactType := a.Type
	if artifactType == "" {
		artifactType = TypeCode
	}

	metadata := a.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshaling metadata for %q: %w", a.Path, err)
	}

	vec := pgvector.NewVector(a.Embedding)
	if err := s.queries.ReplaceArtifact(ctx, ReplaceArtifactParams{
		Path:      a.Path,
		Type:      artifactType,
		Content:   a.Content,
		Embedding: &vec,
		Metadata:  metadataJSON,
	}); err != nil {
		return fmt.Errorf("%w: upsert %q: %v", ErrStore, a.Path, err)
	}

	s.logger.Debug("upserted artifact", "path", a.Path, "content_chars", len(a.Content))
	return nil
}

// QueryNearest returns up to k matches ordered ascending by cosine distance.
// An empty store yields an empty slice, not an error.
func (s *Store) QueryNearest(ctx context.Context, embedding []float32, k int) ([]Match, error) {
	if len(embedding) == 0 {
		return nil, fmt.Errorf("%w: empty query embedding", ErrStore)
	}
	if k <= 0 {
		return []Match{}, nil
	}

	vec := pgvector.NewVector(embedding)
	rows, err := s.queries.NearestArtifacts(ctx, NearestArtifactsParams{
		QueryEmbedding: &vec,
		ResultLimit:    int32(k),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: nearest query: %v", ErrStore, err)
	}

	matches := make([]Match, 0, len(rows))
	for _, row := range rows {
		matches = append(matches, Match{
			Path:     row.Path,
			Content:  row.Content,
			Distance: row.Distance,
		})
	}
	return matches, nil
}

// GetByPathFragment returns the best single artifact whose path contains
// fragment, for "read this file's indexed content" lookups. Returns
// ErrNotFound when nothing matches.
func (s *Store) GetByPathFragment(ctx context.Context, fragment string) (Artifact, error) {
	if fragment == "" {
		return Artifact{}, ErrNotFound
	}

	row, err := s.queries.ArtifactByPathFragment(ctx, fragment)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Artifact{}, ErrNotFound
		}
		return Artifact{}, fmt.Errorf("%w: path lookup %q: %v", ErrStore, fragment, err)
	}

	return Artifact{Path: row.Path, Content: row.Content}, nil
}

// Count returns the number of live artifacts.
func (s *Store) Count(ctx context.Context) (int64, error) {
	n, err := s.queries.CountArtifacts(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: count: %v", ErrStore, err)
	}
	return n, nil
}
