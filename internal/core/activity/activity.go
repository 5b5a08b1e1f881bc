// Package activity owns the channel activity domain: per-entity counters,
// the time-ordered event log, and the composite activity score.
package activity

import (
	"context"
	"errors"
)

// DefaultWindowDays is both the score's recency window and the default
// retention window for the event log. The two must move together: the
// log is pruned to hold exactly the data the score formula reads, so a
// wider scoring window requires wider retention.
const DefaultWindowDays = 7

// SecondsPerDay converts window sizes to cutoff timestamps.
const SecondsPerDay = 86400

// ErrStoreUnavailable indicates the counter store backend could not be
// reached. Callers treat a write that fails with this as a dropped
// event; retry policy belongs to the scheduler, not the store.
var ErrStoreUnavailable = errors.New("counter store unavailable")

// Counters are the raw per-entity aggregates.
type Counters struct {
	// Total is the lifetime event count. It is never decremented by
	// retention; only Clear removes it.
	Total int64 `json:"total"`
	// LastEventAt is the Unix timestamp of the most recently recorded
	// event. Last write wins: a historical backfill with an older
	// timestamp moves it backwards.
	LastEventAt int64 `json:"last_event_at"`
}

// Metrics are the derived per-entity values used for ranking. They are
// recomputed each reporting cycle and never persisted.
type Metrics struct {
	Total  int64   `json:"total"`
	Recent int64   `json:"recent"`
	Score  float64 `json:"score"`
}

// CounterStore defines persistence operations for activity counters and
// the per-entity event log.
type CounterStore interface {
	// RecordEvent records one event for an entity. The entity is created
	// lazily on first event. Replays of an already-recorded event id are
	// a no-op for both the counter and the log.
	RecordEvent(ctx context.Context, entityID, eventID, timestamp int64) error

	// Counters returns the raw aggregates for an entity. Unknown
	// entities yield zero values, not an error.
	Counters(ctx context.Context, entityID int64) (Counters, error)

	// CountSince returns the number of logged events with
	// timestamp >= cutoff. Unknown entities yield 0.
	CountSince(ctx context.Context, entityID, cutoff int64) (int64, error)

	// PurgeBefore removes log entries with timestamp <= cutoff and
	// returns how many were removed. The lifetime total is untouched.
	PurgeBefore(ctx context.Context, entityID, cutoff int64) (int64, error)

	// Clear atomically removes the counters and the event log for an
	// entity.
	Clear(ctx context.Context, entityID int64) error

	// ListTracked returns every entity id that currently has a counter
	// record.
	ListTracked(ctx context.Context) ([]int64, error)
}
