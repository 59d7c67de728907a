// Package delivery adapts the engine's notifications onto the outbound
// delivery channel. The channel itself (push/email/in-app feed fan-out) is
// an external consumer; this side only publishes and retries.
package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"admarkt/alert-service/internal/model"
)

const (
	maxAttempts = 4
	baseBackoff = 250 * time.Millisecond
)

// RedisPublisher publishes notification events to a Redis pub/sub channel,
// retrying transient failures with exponential backoff. A failure after the
// final attempt is returned to the caller; the notification row it refers to
// stays valid regardless.
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
}

// NewRedisPublisher returns a publisher bound to the given channel.
func NewRedisPublisher(rdb *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, channel: channel}
}

// Deliver publishes the notification as JSON on the configured channel.
func (p *RedisPublisher) Deliver(ctx context.Context, n model.Notification) error {
	payload, err := json.Marshal(map[string]string{
		"type":           "EVENT_ALERT_MATCH",
		"notificationId": n.ID,
		"criteriaId":     n.CriteriaID,
		"listingId":      n.ListingID,
		"userId":         n.OwnerID,
	})
	if err != nil {
		return fmt.Errorf("marshal delivery payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := baseBackoff << (attempt - 1)
			slog.Warn("delivery publish retrying",
				"notificationId", n.ID, "attempt", attempt, "backoff", backoff, "err", lastErr)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
		if err := p.rdb.Publish(ctx, p.channel, payload).Err(); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("publish to %s after %d attempts: %w", p.channel, maxAttempts, lastErr)
}
