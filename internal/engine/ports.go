package engine

import (
	"context"
	"time"

	"admarkt/alert-service/internal/model"
)

// CriteriaSource provides the snapshot of active criteria an evaluation
// runs against. Criteria created mid-flight may be missed by that one
// evaluation; the periodic re-scan picks them up.
type CriteriaSource interface {
	ActiveCriteria(ctx context.Context) ([]model.Criteria, error)
}

// Ledger is the at-most-once authority. claimed=false is a normal outcome.
type Ledger interface {
	TryClaim(ctx context.Context, criteriaID, listingID string) (bool, error)
}

// Notifier persists and delivers a notification for a claimed match.
type Notifier interface {
	Notify(ctx context.Context, ev model.MatchEvent) error
}

// ListingReader serves the re-scan window over the listing projection.
type ListingReader interface {
	RecentActive(ctx context.Context, since time.Time) ([]model.Listing, error)
}

// DeadLetters stores events whose processing exhausted its retries.
type DeadLetters interface {
	Add(ctx context.Context, ev model.ListingEvent, reason string) error
	Pending(ctx context.Context, limit int) ([]model.DeadLetter, error)
	Remove(ctx context.Context, id int64) error
}
