// Package notification persists user-visible match notifications and serves
// the read API. Rows are created by the Notifier after a ledger claim and
// mutated only through MarkRead.
package notification

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"admarkt/alert-service/internal/model"
)

// Store wraps the notifications table.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore returns a configured Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Create inserts the notification row for a claimed match. The insert is
// idempotent on (criteria_id, listing_id): if the row already exists —
// a retry after a crash between insert and delivery — the existing row is
// returned with inserted=false.
func (s *Store) Create(ctx context.Context, ev model.MatchEvent) (*model.Notification, bool, error) {
	var n model.Notification
	err := s.pool.QueryRow(ctx,
		`INSERT INTO notifications (id, criteria_id, listing_id, owner_id)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (criteria_id, listing_id) DO NOTHING
		 RETURNING id, criteria_id, listing_id, owner_id, is_read, created_at`,
		uuid.NewString(), ev.CriteriaID, ev.ListingID, ev.OwnerID,
	).Scan(&n.ID, &n.CriteriaID, &n.ListingID, &n.OwnerID, &n.IsRead, &n.CreatedAt)
	if err == nil {
		return &n, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("insert notification: %w", err)
	}

	// Conflict path: fetch the existing row.
	err = s.pool.QueryRow(ctx,
		`SELECT id, criteria_id, listing_id, owner_id, is_read, created_at
		 FROM notifications
		 WHERE criteria_id = $1 AND listing_id = $2`,
		ev.CriteriaID, ev.ListingID,
	).Scan(&n.ID, &n.CriteriaID, &n.ListingID, &n.OwnerID, &n.IsRead, &n.CreatedAt)
	if err != nil {
		return nil, false, fmt.Errorf("fetch existing notification: %w", err)
	}
	return &n, false, nil
}

// ListForOwner returns up to limit notifications for ownerID, newest first.
func (s *Store) ListForOwner(ctx context.Context, ownerID string, limit int) ([]model.Notification, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, criteria_id, listing_id, owner_id, is_read, created_at
		 FROM notifications
		 WHERE owner_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		ownerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	out := make([]model.Notification, 0)
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.CriteriaID, &n.ListingID, &n.OwnerID, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkRead flips is_read on a notification, validating ownership.
func (s *Store) MarkRead(ctx context.Context, ownerID, id string) (*model.Notification, error) {
	var n model.Notification
	err := s.pool.QueryRow(ctx,
		`UPDATE notifications
		 SET is_read = true
		 WHERE id = $1 AND owner_id = $2
		 RETURNING id, criteria_id, listing_id, owner_id, is_read, created_at`,
		id, ownerID,
	).Scan(&n.ID, &n.CriteriaID, &n.ListingID, &n.OwnerID, &n.IsRead, &n.CreatedAt)
	if err != nil {
		return nil, model.ErrNotFound
	}
	return &n, nil
}

// UnreadCount derives the unread badge count from the table. Never cached:
// the datastore is the only authority on notification state.
func (s *Store) UnreadCount(ctx context.Context, ownerID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE owner_id = $1 AND is_read = false`,
		ownerID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("unread count: %w", err)
	}
	return count, nil
}
