package activity

import (
	"context"
	"fmt"
	"time"
)

// Score weights. Recent engagement dominates lifetime volume so a
// channel with a fresh spike can outrank an old channel with a large
// but stale total. These constants are load-bearing: historical score
// comparisons assume them.
const (
	weightTotal  = 0.4
	weightRecent = 0.6
)

// Aggregator computes derived metrics from a CounterStore. It holds no
// state of its own; every call reads the store's current state.
type Aggregator struct {
	store CounterStore
	now   func() time.Time
}

// NewAggregator creates an Aggregator over the given store.
func NewAggregator(store CounterStore) *Aggregator {
	return &Aggregator{
		store: store,
		now:   time.Now,
	}
}

// WithClock overrides the time source. Tests use this to pin "now".
func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	a.now = now
	return a
}

// RecentCount returns the number of events recorded in the trailing
// windowDays-day window.
func (a *Aggregator) RecentCount(ctx context.Context, entityID int64, windowDays int) (int64, error) {
	cutoff := a.now().Unix() - int64(windowDays)*SecondsPerDay
	count, err := a.store.CountSince(ctx, entityID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("recent count for %d: %w", entityID, err)
	}
	return count, nil
}

// Score returns the composite activity score:
//
//	total * 0.4 + recent(7d) * 0.6
func (a *Aggregator) Score(ctx context.Context, entityID int64) (float64, error) {
	m, err := a.Metrics(ctx, entityID)
	if err != nil {
		return 0, err
	}
	return m.Score, nil
}

// Metrics returns total, recent and score for an entity in one call.
// Entities that were never recorded yield all-zero metrics.
func (a *Aggregator) Metrics(ctx context.Context, entityID int64) (Metrics, error) {
	counters, err := a.store.Counters(ctx, entityID)
	if err != nil {
		return Metrics{}, fmt.Errorf("counters for %d: %w", entityID, err)
	}

	recent, err := a.RecentCount(ctx, entityID, DefaultWindowDays)
	if err != nil {
		return Metrics{}, err
	}

	return Metrics{
		Total:  counters.Total,
		Recent: recent,
		Score:  float64(counters.Total)*weightTotal + float64(recent)*weightRecent,
	}, nil
}

// Retain prunes the entity's event log down to the trailing
// windowDays-day window and returns how many entries were removed.
func (a *Aggregator) Retain(ctx context.Context, entityID int64, windowDays int) (int64, error) {
	cutoff := a.now().Unix() - int64(windowDays)*SecondsPerDay
	removed, err := a.store.PurgeBefore(ctx, entityID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("retain for %d: %w", entityID, err)
	}
	return removed, nil
}
