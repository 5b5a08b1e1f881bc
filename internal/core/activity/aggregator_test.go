package activity

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockStore implements CounterStore in memory for aggregator tests.
type mockStore struct {
	counters map[int64]Counters
	log      map[int64]map[int64]int64 // entity -> event id -> timestamp
	err      error
}

func newMockStore() *mockStore {
	return &mockStore{
		counters: make(map[int64]Counters),
		log:      make(map[int64]map[int64]int64),
	}
}

func (m *mockStore) RecordEvent(_ context.Context, entityID, eventID, timestamp int64) error {
	if m.err != nil {
		return m.err
	}
	if _, ok := m.log[entityID]; !ok {
		m.log[entityID] = make(map[int64]int64)
	}
	if _, seen := m.log[entityID][eventID]; seen {
		return nil
	}
	m.log[entityID][eventID] = timestamp

	c := m.counters[entityID]
	c.Total++
	c.LastEventAt = timestamp
	m.counters[entityID] = c
	return nil
}

func (m *mockStore) Counters(_ context.Context, entityID int64) (Counters, error) {
	if m.err != nil {
		return Counters{}, m.err
	}
	return m.counters[entityID], nil
}

func (m *mockStore) CountSince(_ context.Context, entityID, cutoff int64) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	var count int64
	for _, ts := range m.log[entityID] {
		if ts >= cutoff {
			count++
		}
	}
	return count, nil
}

func (m *mockStore) PurgeBefore(_ context.Context, entityID, cutoff int64) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	var removed int64
	for id, ts := range m.log[entityID] {
		if ts <= cutoff {
			delete(m.log[entityID], id)
			removed++
		}
	}
	return removed, nil
}

func (m *mockStore) Clear(_ context.Context, entityID int64) error {
	delete(m.counters, entityID)
	delete(m.log, entityID)
	return nil
}

func (m *mockStore) ListTracked(_ context.Context) ([]int64, error) {
	var ids []int64
	for id := range m.counters {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func fixedClock(now time.Time) func() time.Time {
	return func() time.Time { return now }
}

func TestAggregator_ScoreNeverRecorded(t *testing.T) {
	agg := NewAggregator(newMockStore())

	score, err := agg.Score(context.Background(), 999)
	require.NoError(t, err)
	assert.Equal(t, 0.0, score)
}

func TestAggregator_ScoreFormula(t *testing.T) {
	store := newMockStore()
	now := time.Unix(1_700_000_000, 0)
	agg := NewAggregator(store).WithClock(fixedClock(now))
	ctx := context.Background()

	// 3 events: two inside the 7-day window, one outside.
	require.NoError(t, store.RecordEvent(ctx, 42, 1, now.Unix()-1*SecondsPerDay))
	require.NoError(t, store.RecordEvent(ctx, 42, 2, now.Unix()-2*SecondsPerDay))
	require.NoError(t, store.RecordEvent(ctx, 42, 3, now.Unix()-10*SecondsPerDay))

	m, err := agg.Metrics(ctx, 42)
	require.NoError(t, err)

	assert.Equal(t, int64(3), m.Total)
	assert.Equal(t, int64(2), m.Recent)
	assert.InDelta(t, 3*0.4+2*0.6, m.Score, 1e-9)
}

func TestAggregator_ScoreIsPure(t *testing.T) {
	store := newMockStore()
	now := time.Unix(1_700_000_000, 0)
	agg := NewAggregator(store).WithClock(fixedClock(now))
	ctx := context.Background()

	_ = store.RecordEvent(ctx, 1, 1, now.Unix()-100)
	_ = store.RecordEvent(ctx, 1, 2, now.Unix()-200)

	first, err := agg.Score(ctx, 1)
	require.NoError(t, err)
	second, err := agg.Score(ctx, 1)
	require.NoError(t, err)

	assert.Equal(t, first, second, "recomputing without writes must be identical")
}

func TestAggregator_RetainPrunesToWindow(t *testing.T) {
	store := newMockStore()
	now := time.Unix(1_700_000_000, 0)
	agg := NewAggregator(store).WithClock(fixedClock(now))
	ctx := context.Background()

	_ = store.RecordEvent(ctx, 42, 1, now.Unix()-1*SecondsPerDay)
	_ = store.RecordEvent(ctx, 42, 2, now.Unix()-2*SecondsPerDay)
	_ = store.RecordEvent(ctx, 42, 3, now.Unix()-10*SecondsPerDay)

	removed, err := agg.Retain(ctx, 42, DefaultWindowDays)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	// The stale entry is gone from the log but the lifetime total stays.
	count, err := store.CountSince(ctx, 42, now.Unix()-10*SecondsPerDay-1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	counters, err := store.Counters(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(3), counters.Total)
}

func TestAggregator_RetainKeepsScoreInputs(t *testing.T) {
	// Retention uses the same window as the score, so pruning must not
	// change the score.
	store := newMockStore()
	now := time.Unix(1_700_000_000, 0)
	agg := NewAggregator(store).WithClock(fixedClock(now))
	ctx := context.Background()

	_ = store.RecordEvent(ctx, 5, 1, now.Unix()-1*SecondsPerDay)
	_ = store.RecordEvent(ctx, 5, 2, now.Unix()-20*SecondsPerDay)

	before, err := agg.Score(ctx, 5)
	require.NoError(t, err)

	_, err = agg.Retain(ctx, 5, DefaultWindowDays)
	require.NoError(t, err)

	after, err := agg.Score(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestAggregator_StoreErrorPropagates(t *testing.T) {
	store := newMockStore()
	store.err = ErrStoreUnavailable
	agg := NewAggregator(store)

	_, err := agg.Metrics(context.Background(), 1)
	require.ErrorIs(t, err, ErrStoreUnavailable)
}
