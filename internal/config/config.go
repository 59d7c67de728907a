// Package config loads and validates environment variables at startup.
// Fail-fast: if a required variable is missing, the process exits.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all runtime configuration for the alert service.
type Config struct {
	Port                string
	DatabaseURL         string
	RedisURL            string
	ListingStream       string // Redis Stream carrying listing change events
	DeliveryChannel     string // pub/sub channel the delivery adapter publishes to
	EngineWorkers       int    // parallel event workers
	EventQueueSize      int    // bounded in-process event queue capacity
	RescanIntervalHours int    // how often the re-scan cron fires
	RescanWindowHours   int    // how far back the re-scan looks at listings
}

// Load reads environment variables and returns a validated Config.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	port := os.Getenv("ALERT_PORT")
	if port == "" {
		port = "8083"
	}

	stream := os.Getenv("LISTING_STREAM")
	if stream == "" {
		stream = "listing-events"
	}

	channel := os.Getenv("DELIVERY_CHANNEL")
	if channel == "" {
		channel = "EVENT_ALERT_MATCH"
	}

	workers, err := positiveInt("ENGINE_WORKERS", 4)
	if err != nil {
		return nil, err
	}
	queueSize, err := positiveInt("EVENT_QUEUE_SIZE", 256)
	if err != nil {
		return nil, err
	}
	rescanInterval, err := positiveInt("RESCAN_INTERVAL_HOURS", 6)
	if err != nil {
		return nil, err
	}
	rescanWindow, err := positiveInt("RESCAN_WINDOW_HOURS", 24)
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:                port,
		DatabaseURL:         dbURL,
		RedisURL:            redisURL,
		ListingStream:       stream,
		DeliveryChannel:     channel,
		EngineWorkers:       workers,
		EventQueueSize:      queueSize,
		RescanIntervalHours: rescanInterval,
		RescanWindowHours:   rescanWindow,
	}, nil
}

func positiveInt(name string, def int) (int, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", name, s)
	}
	return v, nil
}
