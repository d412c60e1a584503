package episode

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// Querier defines the database operations the Store needs. Defined by the
// consumer so tests can substitute a mock; Queries is the pgx-backed
// implementation.
type Querier interface {
	// AppendEpisode inserts one turn. Insert-only; there is no update path.
	AppendEpisode(ctx context.Context, arg AppendEpisodeParams) error

	// NearestEpisodes returns up to ResultLimit rows ordered ascending by
	// cosine distance to QueryEmbedding.
	NearestEpisodes(ctx context.Context, arg NearestEpisodesParams) ([]NearestEpisodesRow, error)
}

// AppendEpisodeParams carries one insert.
type AppendEpisodeParams struct {
	ID        uuid.UUID
	Role      string
	Content   string
	Embedding *pgvector.Vector
}

// NearestEpisodesParams carries one similarity query.
type NearestEpisodesParams struct {
	QueryEmbedding *pgvector.Vector
	ResultLimit    int32
}

// NearestEpisodesRow is one similarity result row.
type NearestEpisodesRow struct {
	Role      string
	Content   string
	CreatedAt time.Time
	Distance  float64
}

// Store manages the episodic memory log. Safe for concurrent use.
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

// Append records one turn. A failed append is reported as an error for the
// caller to log; the session loop carries on, since a lost episode is
// recoverable and a crashed session is not.
func (s *Store) Append(ctx context.Context, role Role, content string, embedding []float32) error {
	if err := validateRole(role); err != nil {
		return err
	}
	if len(embedding) == 0 {
		return fmt.Errorf("%w: empty embedding", ErrStore)
	}

	vec := pgvector.NewVector(embedding)
	if err := s.queries.AppendEpisode(ctx, AppendEpisodeParams{
		ID:        uuid.New(),
		Role:      string(role),
		Content:   content,
		Embedding: &vec,
	}); err != nil {
		return fmt.Errorf("%w: append %s episode: %v", ErrStore, role, err)
	}

	s.logger.Debug("appended episode", "role", role, "content_chars", len(content))
	return nil
}

// QueryNearest returns up to k matches ordered ascending by cosine
// distance. An empty log yields an empty slice, not an error.
func (s *Store) QueryNearest(ctx context.Context, embedding []float32, k int) ([]Match, error) {
	if len(embedding) == 0 {
		return nil, fmt.Errorf("%w: empty query embedding", ErrStore)
	}
	if k <= 0 {
		return []Match{}, nil
	}

	vec := pgvector.NewVector(embedding)
	rows, err := s.queries.NearestEpisodes(ctx, NearestEpisodesParams{
		QueryEmbedding: &vec,
		ResultLimit:    int32(k),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: nearest query: %v", ErrStore, err)
	}

	matches := make([]Match, 0, len(rows))
	for _, row := range rows {
		matches = append(matches, Match{
			Role:      Role(row.Role),
			Content:   row.Content,
			CreatedAt: row.CreatedAt,
			Distance:  row.Distance,
		})
	}
	return matches, nil
}
