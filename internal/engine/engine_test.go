package engine_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"admarkt/alert-service/internal/engine"
	"admarkt/alert-service/internal/model"
)

func ptr[T any](v T) *T { return &v }

// ─── Fakes ─────────────────────────────────────────────────────────────────

type fakeCriteria struct {
	mu    sync.Mutex
	items []model.Criteria
	fails int
}

func (f *fakeCriteria) ActiveCriteria(context.Context) ([]model.Criteria, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fails > 0 {
		f.fails--
		return nil, fmt.Errorf("transient criteria read failure")
	}
	var out []model.Criteria
	for _, c := range f.items {
		if c.IsActive {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCriteria) setActive(id string, active bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].ID == id {
			f.items[i].IsActive = active
		}
	}
}

type fakeLedger struct {
	mu     sync.Mutex
	claims map[string]bool
	fails  int
}

func newFakeLedger() *fakeLedger { return &fakeLedger{claims: make(map[string]bool)} }

func (f *fakeLedger) TryClaim(_ context.Context, criteriaID, listingID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fails > 0 {
		f.fails--
		return false, fmt.Errorf("transient claim failure")
	}
	key := criteriaID + "|" + listingID
	if f.claims[key] {
		return false, nil
	}
	f.claims[key] = true
	return true, nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	sent  []model.MatchEvent
	fails int
}

func (f *fakeNotifier) Notify(_ context.Context, ev model.MatchEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fails > 0 {
		f.fails--
		return fmt.Errorf("transient notify failure")
	}
	f.sent = append(f.sent, ev)
	return nil
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeListings struct {
	mu    sync.Mutex
	items []model.Listing
}

func (f *fakeListings) RecentActive(_ context.Context, since time.Time) ([]model.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Listing
	for _, l := range f.items {
		if l.IsActive && !l.CreatedAt.Before(since) {
			out = append(out, l)
		}
	}
	return out, nil
}

type fakeDeadLetters struct {
	mu     sync.Mutex
	nextID int64
	items  []model.DeadLetter
}

func (f *fakeDeadLetters) Add(_ context.Context, ev model.ListingEvent, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.items = append(f.items, model.DeadLetter{ID: f.nextID, Event: ev, Reason: reason, CreatedAt: time.Now()})
	return nil
}

func (f *fakeDeadLetters) Pending(_ context.Context, limit int) ([]model.DeadLetter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.DeadLetter, 0, len(f.items))
	for i, d := range f.items {
		if i >= limit {
			break
		}
		out = append(out, d)
	}
	return out, nil
}

func (f *fakeDeadLetters) Remove(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, d := range f.items {
		if d.ID == id {
			f.items = append(f.items[:i], f.items[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeDeadLetters) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

// ─── Fixtures ──────────────────────────────────────────────────────────────

// sfCriteria is the end-to-end scenario criteria: iphone under 600 within
// 25 km of downtown San Francisco.
func sfCriteria() model.Criteria {
	return model.Criteria{
		ID:        "crit-sf",
		OwnerID:   "user-1",
		Name:      "cheap iphones nearby",
		Keywords:  []string{"iphone"},
		MaxPrice:  ptr(600.0),
		Latitude:  ptr(37.77),
		Longitude: ptr(-122.41),
		RadiusKm:  ptr(25.0),
		IsActive:  true,
	}
}

func sfListing() model.Listing {
	return model.Listing{
		ID:          "listing-sf",
		Title:       "iPhone 13",
		Description: "Great condition, $550 or best offer",
		CategoryID:  "electronics",
		Price:       ptr(550.0),
		Currency:    "USD",
		Latitude:    ptr(37.76),
		Longitude:   ptr(-122.42),
		CreatedAt:   time.Now().UTC(),
		IsActive:    true,
		Status:      "published",
	}
}

type fixture struct {
	criteria    *fakeCriteria
	ledger      *fakeLedger
	notifier    *fakeNotifier
	listings    *fakeListings
	deadLetters *fakeDeadLetters
	engine      *engine.Engine
}

func newFixture(workers int, criteria ...model.Criteria) *fixture {
	f := &fixture{
		criteria:    &fakeCriteria{items: criteria},
		ledger:      newFakeLedger(),
		notifier:    &fakeNotifier{},
		listings:    &fakeListings{},
		deadLetters: &fakeDeadLetters{},
	}
	f.engine = engine.New(
		engine.Config{
			Workers:       workers,
			QueueSize:     16,
			RescanWindow:  24 * time.Hour,
			RetryAttempts: 3,
			RetryBase:     time.Millisecond,
		},
		engine.Deps{
			Criteria:    f.criteria,
			Ledger:      f.ledger,
			Notifier:    f.notifier,
			Listings:    f.listings,
			DeadLetters: f.deadLetters,
		},
	)
	return f
}

// runEvents feeds events through the queue, closes it, and waits for the
// worker pool to drain.
func (f *fixture) runEvents(t *testing.T, events ...model.ListingEvent) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		f.engine.Run(context.Background())
		close(done)
	}()
	for _, ev := range events {
		f.engine.Queue() <- ev
	}
	f.engine.CloseQueue()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("engine did not drain within 10s")
	}
}

func createdEvent(l model.Listing) model.ListingEvent {
	return model.ListingEvent{ListingID: l.ID, Kind: model.ChangeCreated, Listing: l}
}

// ─── Tests ─────────────────────────────────────────────────────────────────

func TestEngine_EndToEndScenario(t *testing.T) {
	f := newFixture(2, sfCriteria())
	f.runEvents(t, createdEvent(sfListing()), createdEvent(sfListing()))

	if got := f.notifier.count(); got != 1 {
		t.Fatalf("got %d notifications, want exactly 1 for a replayed publish event", got)
	}
	sent := f.notifier.sent[0]
	if sent.CriteriaID != "crit-sf" || sent.ListingID != "listing-sf" || sent.OwnerID != "user-1" {
		t.Errorf("unexpected notification: %+v", sent)
	}
	if sent.DistanceKm == nil || *sent.DistanceKm > 25 {
		t.Errorf("expected a distance within 25 km, got %v", sent.DistanceKm)
	}

	stats := f.engine.Stats()
	if stats.Dispatched != 1 || stats.Duplicates != 1 {
		t.Errorf("stats = %+v, want dispatched=1 duplicates=1", stats)
	}
}

func TestEngine_AtMostOnceUnderConcurrency(t *testing.T) {
	f := newFixture(4, sfCriteria())
	events := make([]model.ListingEvent, 0, 10)
	for i := 0; i < 10; i++ {
		events = append(events, createdEvent(sfListing()))
	}
	f.runEvents(t, events...)

	if got := f.notifier.count(); got != 1 {
		t.Errorf("got %d notifications from 10 concurrent replays, want 1", got)
	}
}

func TestEngine_NonMatchingListingProducesNothing(t *testing.T) {
	f := newFixture(1, sfCriteria())
	l := sfListing()
	l.Price = ptr(650.0) // above the max bound
	f.runEvents(t, createdEvent(l))

	if got := f.notifier.count(); got != 0 {
		t.Errorf("got %d notifications for a non-matching listing, want 0", got)
	}
}

func TestEngine_TransientClaimFailureIsRetried(t *testing.T) {
	f := newFixture(1, sfCriteria())
	f.ledger.fails = 2 // first two attempts fail, third succeeds
	f.runEvents(t, createdEvent(sfListing()))

	if got := f.notifier.count(); got != 1 {
		t.Errorf("got %d notifications, want 1 after retried claims", got)
	}
	if got := f.deadLetters.count(); got != 0 {
		t.Errorf("got %d dead letters, want 0", got)
	}
}

func TestEngine_ExhaustedRetriesDeadLetterThenRedrive(t *testing.T) {
	f := newFixture(1, sfCriteria())
	f.notifier.fails = 5 // more than the 3-attempt budget
	f.runEvents(t, createdEvent(sfListing()))

	if got := f.notifier.count(); got != 0 {
		t.Fatalf("got %d notifications before redrive, want 0", got)
	}
	if got := f.deadLetters.count(); got != 1 {
		t.Fatalf("got %d dead letters, want 1", got)
	}

	// The pair was already claimed before the notify failed; redrive must
	// complete delivery through the idempotent notify path without
	// re-claiming.
	if err := f.engine.RedriveDeadLetters(context.Background()); err != nil {
		t.Fatalf("redrive: %v", err)
	}
	if got := f.notifier.count(); got != 1 {
		t.Errorf("got %d notifications after redrive, want 1", got)
	}
	if got := f.deadLetters.count(); got != 0 {
		t.Errorf("got %d dead letters after redrive, want 0", got)
	}
}

func TestEngine_RescanIsIdempotent(t *testing.T) {
	f := newFixture(1, sfCriteria())
	f.listings.items = []model.Listing{sfListing()}

	for i := 0; i < 2; i++ {
		if err := f.engine.Rescan(context.Background()); err != nil {
			t.Fatalf("rescan %d: %v", i+1, err)
		}
	}
	if got := f.notifier.count(); got != 1 {
		t.Errorf("got %d notifications from two rescans, want 1", got)
	}
}

func TestEngine_RescanFailureIsDeadLetteredAndRedriven(t *testing.T) {
	f := newFixture(1, sfCriteria())
	f.listings.items = []model.Listing{sfListing()}
	f.notifier.fails = 5 // more than the 3-attempt budget

	if err := f.engine.Rescan(context.Background()); err != nil {
		t.Fatalf("rescan: %v", err)
	}
	if got := f.notifier.count(); got != 0 {
		t.Fatalf("got %d notifications before redrive, want 0", got)
	}
	if got := f.deadLetters.count(); got != 1 {
		t.Fatalf("got %d dead letters after failed rescan dispatch, want 1", got)
	}

	// The pair was claimed before the notify failed, so a later rescan skips
	// it as a duplicate; only the redrive can complete delivery.
	if err := f.engine.Rescan(context.Background()); err != nil {
		t.Fatalf("second rescan: %v", err)
	}
	if got := f.notifier.count(); got != 0 {
		t.Fatalf("rescan delivered %d notifications for a claimed pair, want 0", got)
	}

	if err := f.engine.RedriveDeadLetters(context.Background()); err != nil {
		t.Fatalf("redrive: %v", err)
	}
	if got := f.notifier.count(); got != 1 {
		t.Errorf("got %d notifications after redrive, want 1", got)
	}
	if got := f.deadLetters.count(); got != 0 {
		t.Errorf("got %d dead letters after redrive, want 0", got)
	}
}

func TestEngine_ReactivatedCriteriaPickedUpByRescan(t *testing.T) {
	c := sfCriteria()
	c.IsActive = false
	f := newFixture(1, c)
	f.listings.items = []model.Listing{sfListing()}

	// Inactive: the live event must produce nothing.
	f.runEvents(t, createdEvent(sfListing()))
	if got := f.notifier.count(); got != 0 {
		t.Fatalf("inactive criteria produced %d notifications, want 0", got)
	}

	f.criteria.setActive("crit-sf", true)
	if err := f.engine.Rescan(context.Background()); err != nil {
		t.Fatalf("rescan: %v", err)
	}
	if got := f.notifier.count(); got != 1 {
		t.Errorf("got %d notifications after reactivation rescan, want 1", got)
	}
}

func TestEngine_TransientCriteriaReadRetried(t *testing.T) {
	f := newFixture(1, sfCriteria())
	f.criteria.fails = 1
	f.runEvents(t, createdEvent(sfListing()))

	if got := f.notifier.count(); got != 1 {
		t.Errorf("got %d notifications, want 1 after a retried criteria read", got)
	}
}

func TestEngine_DrainsQueueOnShutdown(t *testing.T) {
	f := newFixture(2, sfCriteria())

	// Ten distinct listings, all queued before workers are observed done.
	events := make([]model.ListingEvent, 0, 10)
	for i := 0; i < 10; i++ {
		l := sfListing()
		l.ID = fmt.Sprintf("listing-%d", i)
		events = append(events, createdEvent(l))
	}
	f.runEvents(t, events...)

	if got := f.engine.Stats().Processed; got != 10 {
		t.Errorf("processed = %d, want all 10 queued events handled before exit", got)
	}
	if got := f.notifier.count(); got != 10 {
		t.Errorf("got %d notifications, want 10 (one per distinct listing)", got)
	}
}
