// admarkt-alert-service
//
// Criteria-matching and notification-dispatch engine behind the
// watchlist, saved-search and nearby-alert features:
//   - consumes listing change events from a Redis Stream
//   - evaluates each against all active criteria (keywords, category,
//     price bounds, radius)
//   - claims matches in the dispatch ledger so every (criteria, listing)
//     pair is notified at most once
//   - persists notifications and publishes them to the delivery channel
//   - exposes the criteria CRUD and notification read APIs over HTTP
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"admarkt/alert-service/internal/config"
	"admarkt/alert-service/internal/criteria"
	"admarkt/alert-service/internal/db"
	"admarkt/alert-service/internal/delivery"
	"admarkt/alert-service/internal/engine"
	"admarkt/alert-service/internal/httpx"
	"admarkt/alert-service/internal/ledger"
	"admarkt/alert-service/internal/notification"
	"admarkt/alert-service/internal/scheduler"
	"admarkt/alert-service/internal/source"
)

const version = "1.0.0"

func main() {
	// ── Config ──────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[alert-service] Config error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── PostgreSQL ───────────────────────────────────────────────────────────
	log.Println("[alert-service] Connecting to PostgreSQL…")
	pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[alert-service] PostgreSQL: %v", err)
	}
	defer pool.Close()
	if err := db.EnsureSchema(ctx, pool); err != nil {
		log.Fatalf("[alert-service] Schema: %v", err)
	}
	log.Println("[alert-service] PostgreSQL connected ✓")

	// ── Redis ────────────────────────────────────────────────────────────────
	log.Println("[alert-service] Connecting to Redis…")
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("[alert-service] Redis: %v", err)
	}
	defer rdb.Close()
	log.Println("[alert-service] Redis connected ✓")

	// ── Engine wiring ────────────────────────────────────────────────────────
	criteriaSvc := criteria.NewService(pool)
	notifStore := notification.NewStore(pool)
	publisher := delivery.NewRedisPublisher(rdb, cfg.DeliveryChannel)
	notifier := notification.NewNotifier(notifStore, publisher)

	eng := engine.New(
		engine.Config{
			Workers:      cfg.EngineWorkers,
			QueueSize:    cfg.EventQueueSize,
			RescanWindow: time.Duration(cfg.RescanWindowHours) * time.Hour,
		},
		engine.Deps{
			Criteria:    criteriaSvc,
			Ledger:      ledger.New(pool),
			Notifier:    notifier,
			Listings:    source.NewListingReader(pool),
			DeadLetters: ledger.NewDeadLetterStore(pool),
		},
	)

	stream := source.New(rdb, cfg.ListingStream)

	engineDone := make(chan struct{})
	go func() {
		eng.Run(ctx)
		close(engineDone)
	}()
	sourceDone := make(chan struct{})
	go func() {
		if err := stream.Run(ctx, eng.Queue()); err != nil {
			log.Printf("[alert-service] Event source stopped with error: %v", err)
		}
		close(sourceDone)
	}()

	// ── Re-scan scheduler ────────────────────────────────────────────────────
	sched := scheduler.New(eng, cfg.RescanIntervalHours)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("[alert-service] Scheduler: %v", err)
	}

	// ── HTTP server ──────────────────────────────────────────────────────────
	r := chi.NewRouter()
	r.Get("/health", healthHandler(eng))
	criteria.NewHandler(criteriaSvc).Mount(r)
	notification.NewHandler(notifStore).Mount(r)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("[alert-service] v%s listening on :%s", version, cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[alert-service] HTTP server error: %v", err)
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[alert-service] Shutting down…")
	cancel() // stop stream intake and cron cycles
	sched.Stop()
	<-sourceDone // no more producers
	eng.CloseQueue()
	<-engineDone // already-dequeued events drained

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[alert-service] Shutdown error: %v", err)
	}
	log.Println("[alert-service] Stopped.")
}

func healthHandler(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.OK(w, map[string]any{
			"status":  "ok",
			"service": "alert-service",
			"version": version,
			"engine":  eng.Stats(),
		})
	}
}
