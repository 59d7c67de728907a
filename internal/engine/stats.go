package engine

import "sync/atomic"

// Stats holds the engine's outcome counters. Claims rejected as duplicates
// are counted, not logged as errors.
type Stats struct {
	processed    atomic.Int64
	dispatched   atomic.Int64
	duplicates   atomic.Int64
	deadLettered atomic.Int64
	rescans      atomic.Int64
}

// StatsSnapshot is the JSON shape surfaced on the health endpoint.
type StatsSnapshot struct {
	Processed    int64 `json:"processed"`
	Dispatched   int64 `json:"dispatched"`
	Duplicates   int64 `json:"duplicates"`
	DeadLettered int64 `json:"deadLettered"`
	Rescans      int64 `json:"rescans"`
}

// Snapshot returns a point-in-time copy of the counters.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Processed:    s.processed.Load(),
		Dispatched:   s.dispatched.Load(),
		Duplicates:   s.duplicates.Load(),
		DeadLettered: s.deadLettered.Load(),
		Rescans:      s.rescans.Load(),
	}
}
