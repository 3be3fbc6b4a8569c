package postgres

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/face-attendance/internal/store"
)

// SampleRepository mirrors per-user encoding sets into a pgvector table so
// similar faces can be inspected with SQL-side nearest-neighbor search. It
// is a diagnostic surface; recognition itself runs on the in-memory index.
type SampleRepository struct {
	pool *Pool
}

// NewSampleRepository creates a new PostgreSQL sample repository.
func NewSampleRepository(pool *Pool) *SampleRepository {
	return &SampleRepository{pool: pool}
}

// ReplaceSamples replaces all stored sample vectors for a user.
func (r *SampleRepository) ReplaceSamples(ctx context.Context, userID string, samples [][]float32) error {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM face_samples WHERE user_id = $1", userID); err != nil {
		return fmt.Errorf("delete old samples: %w", err)
	}

	query := `
		INSERT INTO face_samples (user_id, sample_index, embedding)
		VALUES ($1, $2, $3)
	`
	for i, sample := range samples {
		vec := pgvector.NewVector(sample)
		if _, err := tx.ExecContext(ctx, query, userID, i, vec); err != nil {
			return fmt.Errorf("insert sample %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit samples: %w", err)
	}
	return nil
}

// DeleteSamples removes all sample vectors for a user.
func (r *SampleRepository) DeleteSamples(ctx context.Context, userID string) error {
	if _, err := r.pool.Exec(ctx, "DELETE FROM face_samples WHERE user_id = $1", userID); err != nil {
		return fmt.Errorf("delete samples: %w", err)
	}
	return nil
}

// FindSimilar returns the closest stored samples to the query vector using
// L2 distance.
func (r *SampleRepository) FindSimilar(ctx context.Context, query []float32, limit int) ([]store.SampleMatch, error) {
	vec := pgvector.NewVector(query)

	sqlQuery := `
		SELECT user_id, embedding <-> $1 AS distance
		FROM face_samples
		ORDER BY embedding <-> $1
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, sqlQuery, vec, limit)
	if err != nil {
		return nil, fmt.Errorf("query similar samples: %w", err)
	}
	defer rows.Close()

	var matches []store.SampleMatch
	for rows.Next() {
		var m store.SampleMatch
		if err := rows.Scan(&m.UserID, &m.Distance); err != nil {
			return nil, fmt.Errorf("scan sample match: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sample matches: %w", err)
	}
	return matches, nil
}
