package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"admarkt/alert-service/internal/model"
)

// DeadLetterStore persists listing events whose processing exhausted its
// retries, so they can be re-driven instead of lost.
type DeadLetterStore struct {
	pool *pgxpool.Pool
}

// NewDeadLetterStore constructs a DeadLetterStore backed by the given pool.
func NewDeadLetterStore(pool *pgxpool.Pool) *DeadLetterStore {
	return &DeadLetterStore{pool: pool}
}

// Add records a failed event with the reason its retries exhausted.
func (s *DeadLetterStore) Add(ctx context.Context, ev model.ListingEvent, reason string) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal dead letter: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO dead_letters (event, reason) VALUES ($1::jsonb, $2)`,
		string(raw), reason,
	)
	if err != nil {
		return fmt.Errorf("insert dead letter: %w", err)
	}
	return nil
}

// Pending returns up to limit dead letters, oldest first.
func (s *DeadLetterStore) Pending(ctx context.Context, limit int) ([]model.DeadLetter, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, event, reason, created_at
		 FROM dead_letters
		 ORDER BY id
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query dead_letters: %w", err)
	}
	defer rows.Close()

	var out []model.DeadLetter
	for rows.Next() {
		var d model.DeadLetter
		var raw []byte
		if err := rows.Scan(&d.ID, &raw, &d.Reason, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan dead letter: %w", err)
		}
		if err := json.Unmarshal(raw, &d.Event); err != nil {
			return nil, fmt.Errorf("decode dead letter %d: %w", d.ID, err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Remove deletes a dead letter after a successful re-drive.
func (s *DeadLetterStore) Remove(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM dead_letters WHERE id = $1`, id)
	return err
}
