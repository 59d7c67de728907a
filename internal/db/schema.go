package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureSchema creates the tables owned by the alert service if they do not
// exist yet. The listings projection table is owned by the listing store and
// is intentionally not created here.
//
// The unique index on dispatch_ledger (criteria_id, listing_id) is the sole
// at-most-once mechanism; notifications carries the same pair so a crash
// between claim and insert cannot double-create a notification either.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS criteria (
			id             UUID PRIMARY KEY,
			owner_id       TEXT NOT NULL,
			name           TEXT NOT NULL,
			keywords       TEXT[] NOT NULL DEFAULT '{}',
			category_id    TEXT,
			min_price      DOUBLE PRECISION,
			max_price      DOUBLE PRECISION,
			location_label TEXT,
			latitude       DOUBLE PRECISION,
			longitude      DOUBLE PRECISION,
			radius_km      DOUBLE PRECISION,
			is_active      BOOLEAN NOT NULL DEFAULT TRUE,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_criteria_owner ON criteria (owner_id)`,
		`CREATE INDEX IF NOT EXISTS idx_criteria_active ON criteria (is_active) WHERE is_active`,
		`CREATE TABLE IF NOT EXISTS dispatch_ledger (
			criteria_id   UUID NOT NULL,
			listing_id    TEXT NOT NULL,
			dispatched_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (criteria_id, listing_id)
		)`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id          UUID PRIMARY KEY,
			criteria_id UUID NOT NULL,
			listing_id  TEXT NOT NULL,
			owner_id    TEXT NOT NULL,
			is_read     BOOLEAN NOT NULL DEFAULT FALSE,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (criteria_id, listing_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_owner ON notifications (owner_id, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS dead_letters (
			id         BIGSERIAL PRIMARY KEY,
			event      JSONB NOT NULL,
			reason     TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
