package episode

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Queries is the pgx-backed Querier implementation over episodic_memory.
type Queries struct {
	pool *pgxpool.Pool
}

// NewQueries creates a Queries bound to the given pool.
func NewQueries(pool *pgxpool.Pool) *Queries {
	return &Queries{pool: pool}
}

// AppendEpisode inserts a single turn. The role CHECK constraint on the
// table backs up the application-level validation.
func (q *Queries) AppendEpisode(ctx context.Context, arg AppendEpisodeParams) error {
	_, err := q.pool.Exec(ctx,
		`INSERT INTO episodic_memory (id, role, content, embedding)
		 VALUES ($1, $2, $3, $4)`,
		arg.ID, arg.Role, arg.Content, arg.Embedding,
	)
	return err
}

// NearestEpisodes orders by the pgvector cosine distance operator <=>,
// ascending, so the most similar turn comes first.
func (q *Queries) NearestEpisodes(ctx context.Context, arg NearestEpisodesParams) ([]NearestEpisodesRow, error) {
	rows, err := q.pool.Query(ctx,
		`SELECT role, content, created_at, embedding <=> $1 AS distance
		 FROM episodic_memory
		 ORDER BY distance ASC
		 LIMIT $2`,
		arg.QueryEmbedding, arg.ResultLimit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []NearestEpisodesRow
	for rows.Next() {
		var row NearestEpisodesRow
		if err := rows.Scan(&row.Role, &row.Content, &row.CreatedAt, &row.Distance); err != nil {
			return nil, err
		}
		results = append(results, row)
	}
	return results, rows.Err()
}
