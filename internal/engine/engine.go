// Package engine coordinates the matching pipeline: consume listing events,
// evaluate them against active criteria, claim each match in the dispatch
// ledger, and notify claimed pairs.
//
// Per event the flow is claim-then-notify; replaying any event any number of
// times, from any number of workers, produces at most one notification per
// (criteria, listing) pair because the ledger claim is atomic at the storage
// layer.
package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"admarkt/alert-service/internal/matcher"
	"admarkt/alert-service/internal/model"
)

// processTimeout bounds the handling of one event, including handling that
// finishes during shutdown drain.
const processTimeout = 30 * time.Second

// Config tunes the engine's concurrency and retry behaviour.
type Config struct {
	Workers       int
	QueueSize     int
	RescanWindow  time.Duration
	RetryAttempts int           // attempts per storage operation before dead-lettering
	RetryBase     time.Duration // first backoff; doubles per attempt
}

// Deps are the engine's collaborators, all behind small interfaces so the
// coordinator is testable without Postgres or Redis.
type Deps struct {
	Criteria    CriteriaSource
	Ledger      Ledger
	Notifier    Notifier
	Listings    ListingReader
	DeadLetters DeadLetters
}

// Engine runs the bounded queue and worker pool.
type Engine struct {
	cfg   Config
	deps  Deps
	queue chan model.ListingEvent
	stats Stats
}

// New constructs an Engine. Zero config values fall back to safe defaults.
func New(cfg Config, deps Deps) *Engine {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}
	if cfg.RetryAttempts < 1 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 200 * time.Millisecond
	}
	if cfg.RescanWindow <= 0 {
		cfg.RescanWindow = 24 * time.Hour
	}
	return &Engine{
		cfg:   cfg,
		deps:  deps,
		queue: make(chan model.ListingEvent, cfg.QueueSize),
	}
}

// Queue is the bounded event queue the source feeds. Sends block when full;
// the stream upstream buffers, so blocking loses nothing.
func (e *Engine) Queue() chan<- model.ListingEvent { return e.queue }

// CloseQueue signals the workers to drain and exit. Call only after the
// source has stopped producing.
func (e *Engine) CloseQueue() { close(e.queue) }

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() StatsSnapshot { return e.stats.Snapshot() }

// Run consumes the queue with the configured worker pool until the queue is
// closed, then drains and returns. Events already dequeued at shutdown are
// always processed to completion: an in-flight claim is never abandoned
// between claiming and notifying.
func (e *Engine) Run(ctx context.Context) {
	log.Printf("[engine] Starting %d worker(s), queue capacity %d", e.cfg.Workers, e.cfg.QueueSize)

	var wg sync.WaitGroup
	for i := 0; i < e.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ev := range e.queue {
				// Detach from ctx so cancellation stops intake, not the
				// event currently being dispatched.
				procCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), processTimeout)
				e.handle(procCtx, ev)
				cancel()
			}
		}()
	}
	wg.Wait()
	log.Println("[engine] Workers drained and stopped")
}

// handle processes one listing event end to end, dead-lettering it when the
// retry budget is exhausted.
func (e *Engine) handle(ctx context.Context, ev model.ListingEvent) {
	e.stats.processed.Add(1)
	if err := e.process(ctx, ev, false); err != nil {
		e.stats.deadLettered.Add(1)
		log.Printf("[engine] Event for listing %s dead-lettered: %v", ev.ListingID, err)
		if dlErr := e.deps.DeadLetters.Add(ctx, ev, err.Error()); dlErr != nil {
			log.Printf("[engine] Dead-letter write failed for listing %s: %v", ev.ListingID, dlErr)
		}
	}
}

// process runs match → claim → notify for one event. Returning an error
// means retries were exhausted and the event belongs in the dead letters.
// heal is set on the redrive path only; see dispatch.
func (e *Engine) process(ctx context.Context, ev model.ListingEvent, heal bool) error {
	var criteria []model.Criteria
	err := e.withRetry(ctx, func() error {
		var err error
		criteria, err = e.deps.Criteria.ActiveCriteria(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("load active criteria: %w", err)
	}

	matches, err := matcher.Evaluate(&ev.Listing, criteria, time.Now().UTC())
	if err != nil {
		// Invariant violation: not transient, no point retrying.
		return fmt.Errorf("evaluate: %w", err)
	}

	return e.dispatch(ctx, matches, heal)
}

// dispatch claims and notifies each match. Duplicate claims are counted and
// skipped silently; they are the at-most-once guarantee working as intended.
//
// With heal set (redrive of a dead letter), an already-claimed pair still
// goes through Notify: the earlier attempt may have died between claiming
// and writing the notification row, and the notification insert is
// idempotent, so this retries delivery without ever re-claiming.
func (e *Engine) dispatch(ctx context.Context, matches []model.MatchEvent, heal bool) error {
	for _, m := range matches {
		var claimed bool
		err := e.withRetry(ctx, func() error {
			var err error
			claimed, err = e.deps.Ledger.TryClaim(ctx, m.CriteriaID, m.ListingID)
			return err
		})
		if err != nil {
			return fmt.Errorf("claim (%s, %s): %w", m.CriteriaID, m.ListingID, err)
		}
		if !claimed && !heal {
			e.stats.duplicates.Add(1)
			continue
		}

		err = e.withRetry(ctx, func() error {
			return e.deps.Notifier.Notify(ctx, m)
		})
		if err != nil {
			// The claim stands; the idempotent notification insert means a
			// later re-drive completes the pair without double-notifying.
			return fmt.Errorf("notify (%s, %s): %w", m.CriteriaID, m.ListingID, err)
		}
		e.stats.dispatched.Add(1)
	}
	return nil
}

// Rescan evaluates recent listings against the full active criteria set.
// It is a correctness backstop for criteria created or reactivated after
// their qualifying listing event already fired, and is safe to run
// concurrently with live processing: ledger claims make double work wasted,
// never wrong.
func (e *Engine) Rescan(ctx context.Context) error {
	since := time.Now().UTC().Add(-e.cfg.RescanWindow)

	listings, err := e.deps.Listings.RecentActive(ctx, since)
	if err != nil {
		return fmt.Errorf("rescan: %w", err)
	}
	criteria, err := e.deps.Criteria.ActiveCriteria(ctx)
	if err != nil {
		return fmt.Errorf("rescan: %w", err)
	}
	if len(listings) == 0 || len(criteria) == 0 {
		log.Printf("[engine] Rescan: %d listing(s), %d active criteria — nothing to do", len(listings), len(criteria))
		return nil
	}

	log.Printf("[engine] Rescan started: %d listing(s) × %d active criteria", len(listings), len(criteria))
	var failed int
	for i := range listings {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		matches, err := matcher.Evaluate(&listings[i], criteria, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("rescan evaluate: %w", err)
		}
		if err := e.dispatch(ctx, matches, false); err != nil {
			// Same contract as the live path: exhausted retries go to the
			// dead letters, otherwise a pair claimed here but never notified
			// would be skipped as a duplicate by every later rescan. The
			// write is detached from ctx so a shutdown mid-rescan cannot
			// drop it.
			failed++
			e.stats.deadLettered.Add(1)
			log.Printf("[engine] Rescan dispatch for listing %s dead-lettered: %v", listings[i].ID, err)
			ev := model.ListingEvent{ListingID: listings[i].ID, Kind: model.ChangeReactivated, Listing: listings[i]}
			if dlErr := e.deps.DeadLetters.Add(context.WithoutCancel(ctx), ev, err.Error()); dlErr != nil {
				log.Printf("[engine] Dead-letter write failed for listing %s: %v", listings[i].ID, dlErr)
			}
		}
	}
	e.stats.rescans.Add(1)
	log.Printf("[engine] Rescan complete (%d listing(s) failed)", failed)
	return nil
}

// RedriveDeadLetters re-processes stored dead letters, removing each one
// that now succeeds. Pairs claimed by an earlier partial attempt go back
// through the idempotent notify path rather than being skipped.
func (e *Engine) RedriveDeadLetters(ctx context.Context) error {
	letters, err := e.deps.DeadLetters.Pending(ctx, 100)
	if err != nil {
		return fmt.Errorf("redrive: %w", err)
	}
	for _, d := range letters {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := e.process(ctx, d.Event, true); err != nil {
			log.Printf("[engine] Redrive of dead letter %d failed: %v — keeping", d.ID, err)
			continue
		}
		if err := e.deps.DeadLetters.Remove(ctx, d.ID); err != nil {
			log.Printf("[engine] Dead letter %d removal failed: %v", d.ID, err)
		}
	}
	return nil
}

// withRetry runs fn up to the configured attempt budget with exponential
// backoff, stopping early on context cancellation.
func (e *Engine) withRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < e.cfg.RetryAttempts; attempt++ {
		if attempt > 0 {
			backoff := e.cfg.RetryBase << (attempt - 1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
		if lastErr = fn(); lastErr == nil {
			return nil
		}
	}
	return lastErr
}
