// Package scheduler wires up the cron job that periodically re-scans recent
// listings against the active criteria set.
//
// The re-scan is the correctness backstop for criteria that were created or
// reactivated after their qualifying listing event already fired. It also
// re-drives dead letters. Running concurrently with live event processing
// is safe: dispatch ledger claims stay the single source of truth.
package scheduler

import (
	"context"
	"fmt"
	"log"

	"github.com/robfig/cron/v3"

	"admarkt/alert-service/internal/engine"
)

// Scheduler wraps robfig/cron and manages the re-scan loop.
type Scheduler struct {
	cron   *cron.Cron
	engine *engine.Engine
	spec   string // cron spec, e.g. "@every 6h"
}

// New creates a Scheduler that fires every intervalHours hours.
func New(eng *engine.Engine, intervalHours int) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(cron.DefaultLogger)),
		engine: eng,
		spec:   fmt.Sprintf("@every %dh", intervalHours),
	}
}

// Start registers the job and starts the scheduler. Also runs one re-scan
// immediately so restarts close any event gap without waiting for the
// first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.runCycle(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	log.Printf("[scheduler] Cron started — spec: %s", s.spec)

	// Run immediately on startup (non-blocking)
	go s.runCycle(ctx)

	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("[scheduler] Cron stopped")
}

// runCycle runs one re-scan plus dead-letter re-drive, honouring ctx so an
// in-progress cycle stops at the next listing on shutdown.
func (s *Scheduler) runCycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	log.Println("[scheduler] Re-scan cycle started")

	if err := s.engine.Rescan(ctx); err != nil {
		log.Printf("[scheduler] Rescan error: %v", err)
	}
	if err := s.engine.RedriveDeadLetters(ctx); err != nil {
		log.Printf("[scheduler] Dead-letter redrive error: %v", err)
	}

	log.Println("[scheduler] Re-scan cycle complete")
}
