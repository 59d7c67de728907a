// Package ledger is the sole authority for "has this (criteria, listing)
// pair already been notified". The primary key on dispatch_ledger is the
// concurrency control: concurrent workers racing on the same pair resolve
// at the storage layer, not through application locks.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// claimTimeout bounds every claim attempt so a slow datastore cannot block
// an engine worker indefinitely.
const claimTimeout = 5 * time.Second

// Ledger records dispatched (criteria_id, listing_id) pairs in PostgreSQL.
type Ledger struct {
	pool *pgxpool.Pool
}

// New constructs a Ledger backed by the given pool.
func New(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool}
}

// TryClaim atomically inserts a dispatch record if the pair is unseen.
// Returns claimed=false when the pair was already dispatched — an expected
// outcome (duplicate event, retry, re-scan), never an error.
func (l *Ledger) TryClaim(ctx context.Context, criteriaID, listingID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, claimTimeout)
	defer cancel()

	tag, err := l.pool.Exec(ctx,
		`INSERT INTO dispatch_ledger (criteria_id, listing_id)
		 VALUES ($1, $2)
		 ON CONFLICT (criteria_id, listing_id) DO NOTHING`,
		criteriaID, listingID,
	)
	if err != nil {
		return false, fmt.Errorf("claim (%s, %s): %w", criteriaID, listingID, err)
	}
	return tag.RowsAffected() == 1, nil
}
