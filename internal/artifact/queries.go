package artifact

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// likeEscaper neutralizes LIKE metacharacters so a fragment matches
// literally: "v_1.md" must not match "v21.md".
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Queries is the pgx-backed Querier implementation over project_artifacts.
type Queries struct {
	pool *pgxpool.Pool
}

// NewQueries creates a Queries bound to the given pool.
func NewQueries(pool *pgxpool.Pool) *Queries {
	return &Queries{pool: pool}
}

// ReplaceArtifact runs DELETE + INSERT for the path inside one transaction.
// The two statements are deliberately not an ON CONFLICT upsert: the
// original memory bank's replace semantics (drop every prior row for the
// path, then insert fresh) are kept, and the transaction boundary removes
// the visible zero-row window between them.
func (q *Queries) ReplaceArtifact(ctx context.Context, arg ReplaceArtifactParams) error {
	tx, err := q.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		// No-op after a successful Commit.
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx,
		`DELETE FROM project_artifacts WHERE path = $1`,
		arg.Path,
	); err != nil {
		return fmt.Errorf("deleting prior row: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO project_artifacts (path, artifact_type, content, embedding, metadata)
		 VALUES ($1, $2, $3, $4, $5)`,
		arg.Path, arg.Type, arg.Content, arg.Embedding, arg.Metadata,
	); err != nil {
		return fmt.Errorf("inserting row: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// NearestArtifacts orders by the pgvector cosine distance operator <=>,
// ascending, so the most similar row comes first.
func (q *Queries) NearestArtifacts(ctx context.Context, arg NearestArtifactsParams) ([]NearestArtifactsRow, error) {
	rows, err := q.pool.Query(ctx,
		`SELECT path, content, embedding <=> $1 AS distance
		 FROM project_artifacts
		 ORDER BY distance ASC
		 LIMIT $2`,
		arg.QueryEmbedding, arg.ResultLimit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []NearestArtifactsRow
	for rows.Next() {
		var row NearestArtifactsRow
		if err := rows.Scan(&row.Path, &row.Content, &row.Distance); err != nil {
			return nil, err
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

// ArtifactByPathFragment returns the single best match for a path fragment.
// Shorter paths win ties so "main.js" prefers "src/main.js" over
// "src/legacy/old-main.js.bak".
func (q *Queries) ArtifactByPathFragment(ctx context.Context, fragment string) (ContentRow, error) {
	var row ContentRow
	err := q.pool.QueryRow(ctx,
		`SELECT path, content
		 FROM project_artifacts
		 WHERE path ILIKE '%' || $1 || '%'
		 ORDER BY length(path) ASC
		 LIMIT 1`,
		likeEscaper.Replace(fragment),
	).Scan(&row.Path, &row.Content)
	return row, err
}

// CountArtifacts returns the number of live rows.
func (q *Queries) CountArtifacts(ctx context.Context) (int64, error) {
	var n int64
	err := q.pool.QueryRow(ctx, `SELECT COUNT(*) FROM project_artifacts`).Scan(&n)
	return n, err
}
