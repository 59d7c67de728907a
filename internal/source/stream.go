// Package source consumes listing change events and reads the listing
// projection. The listing store itself is owned elsewhere; events arrive on
// a Redis Stream and the projection table is read-only from here.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"admarkt/alert-service/internal/model"
)

const (
	readBatchSize = 64
	readBlock     = 5 * time.Second
)

// eventField is the stream entry field holding the JSON-encoded event.
const eventField = "event"

// StreamSource tails the listing event stream and feeds decoded events into
// the engine's bounded queue. When the queue is full the source simply stops
// reading — the stream itself is the overflow buffer, so backpressure never
// loses an event.
type StreamSource struct {
	rdb     *redis.Client
	stream  string
	lastID  string
	skipped atomic.Int64 // malformed or irrelevant entries dropped, counted
}

// New returns a StreamSource starting at new entries only.
func New(rdb *redis.Client, stream string) *StreamSource {
	return &StreamSource{rdb: rdb, stream: stream, lastID: "$"}
}

// Skipped returns how many stream entries were dropped as malformed or
// irrelevant since startup.
func (s *StreamSource) Skipped() int64 { return s.skipped.Load() }

// Run reads the stream until ctx is cancelled, sending decoded events to
// out. It returns nil on cancellation; the caller closes out afterwards so
// the engine can drain what was already queued.
func (s *StreamSource) Run(ctx context.Context, out chan<- model.ListingEvent) error {
	log.Printf("[source] Consuming stream %q", s.stream)
	for {
		res, err := s.rdb.XRead(ctx, &redis.XReadArgs{
			Streams: []string{s.stream, s.lastID},
			Count:   readBatchSize,
			Block:   readBlock,
		}).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, redis.Nil) {
				continue // block timeout, nothing new
			}
			log.Printf("[source] XRead error: %v — retrying", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		for _, stream := range res {
			for _, msg := range stream.Messages {
				s.lastID = msg.ID
				ev, ok := s.decode(msg)
				if !ok {
					continue
				}
				select {
				case out <- *ev:
				case <-ctx.Done():
					return nil
				}
			}
		}
	}
}

// decode parses one stream entry, counting and skipping anything malformed
// or carrying an irrelevant change kind.
func (s *StreamSource) decode(msg redis.XMessage) (*model.ListingEvent, bool) {
	raw, ok := msg.Values[eventField].(string)
	if !ok {
		s.skipped.Add(1)
		log.Printf("[source] entry %s missing %q field — skipped", msg.ID, eventField)
		return nil, false
	}

	var ev model.ListingEvent
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		s.skipped.Add(1)
		log.Printf("[source] entry %s undecodable: %v — skipped", msg.ID, err)
		return nil, false
	}
	if _, err := model.ParseChangeKind(string(ev.Kind)); err != nil {
		s.skipped.Add(1)
		log.Printf("[source] entry %s: %v — skipped", msg.ID, err)
		return nil, false
	}
	if ev.ListingID == "" {
		ev.ListingID = ev.Listing.ID
	}
	return &ev, true
}

// Publish appends a listing event to the stream. Used by the listing store
// side and by tests/tools to emit events in the canonical shape.
func Publish(ctx context.Context, rdb *redis.Client, stream string, ev model.ListingEvent) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal listing event: %w", err)
	}
	err = rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{eventField: string(raw)},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", stream, err)
	}
	return nil
}
