package notification

import (
	"context"
	"log/slog"

	"admarkt/alert-service/internal/model"
)

// Publisher is the outbound delivery channel (push/email/in-app feed).
// Delivery is at-least-once on the channel's side; the decision of which
// pairs to notify stays at-most-once regardless.
type Publisher interface {
	Deliver(ctx context.Context, n model.Notification) error
}

// Notifier turns an admitted match event into a persisted notification row
// and hands it to the delivery channel.
type Notifier struct {
	store     *Store
	publisher Publisher
}

// NewNotifier returns a configured Notifier.
func NewNotifier(store *Store, publisher Publisher) *Notifier {
	return &Notifier{store: store, publisher: publisher}
}

// Notify persists the notification and triggers delivery. The row is
// written first: even if outbound delivery fails permanently, the in-app
// notification exists. A delivery failure is therefore non-fatal here —
// the adapter owns its own retries — and never rolls back the row.
func (n *Notifier) Notify(ctx context.Context, ev model.MatchEvent) error {
	row, inserted, err := n.store.Create(ctx, ev)
	if err != nil {
		return err
	}
	if !inserted {
		// Row already existed (retry after a partial failure); the original
		// delivery attempt owns this pair.
		return nil
	}

	if err := n.publisher.Deliver(ctx, *row); err != nil {
		slog.Warn("notification delivery failed",
			"notificationId", row.ID, "ownerId", row.OwnerID, "err", err)
	}
	return nil
}
