package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agorabot/agora/internal/core/activity"
	"github.com/agorabot/agora/internal/core/report"
)

// memStore is an in-memory activity.CounterStore with failure injection.
type memStore struct {
	counters map[int64]activity.Counters
	events   map[int64]map[int64]int64
	fail     bool
}

func newMemStore() *memStore {
	return &memStore{
		counters: make(map[int64]activity.Counters),
		events:   make(map[int64]map[int64]int64),
	}
}

func (m *memStore) RecordEvent(_ context.Context, entityID, eventID, timestamp int64) error {
	if m.fail {
		return activity.ErrStoreUnavailable
	}
	if m.events[entityID] == nil {
		m.events[entityID] = make(map[int64]int64)
	}
	if _, seen := m.events[entityID][eventID]; seen {
		return nil
	}
	m.events[entityID][eventID] = timestamp

	c := m.counters[entityID]
	c.Total++
	c.LastEventAt = timestamp
	m.counters[entityID] = c
	return nil
}

func (m *memStore) Counters(_ context.Context, entityID int64) (activity.Counters, error) {
	if m.fail {
		return activity.Counters{}, activity.ErrStoreUnavailable
	}
	return m.counters[entityID], nil
}

func (m *memStore) CountSince(_ context.Context, entityID, cutoff int64) (int64, error) {
	if m.fail {
		return 0, activity.ErrStoreUnavailable
	}
	var n int64
	for _, ts := range m.events[entityID] {
		if ts >= cutoff {
			n++
		}
	}
	return n, nil
}

func (m *memStore) PurgeBefore(_ context.Context, entityID, cutoff int64) (int64, error) {
	var n int64
	for id, ts := range m.events[entityID] {
		if ts <= cutoff {
			delete(m.events[entityID], id)
			n++
		}
	}
	return n, nil
}

func (m *memStore) Clear(_ context.Context, entityID int64) error {
	if m.fail {
		return activity.ErrStoreUnavailable
	}
	delete(m.counters, entityID)
	delete(m.events, entityID)
	return nil
}

func (m *memStore) ListTracked(_ context.Context) ([]int64, error) {
	ids := make([]int64, 0, len(m.counters))
	for id := range m.counters {
		ids = append(ids, id)
	}
	return ids, nil
}

type memDirectory struct {
	channels map[int64]report.Entity
	category map[int64]string
	fail     bool
}

func newMemDirectory() *memDirectory {
	return &memDirectory{
		channels: make(map[int64]report.Entity),
		category: make(map[int64]string),
	}
}

func (d *memDirectory) ListEntities(_ context.Context, category string) ([]report.Entity, error) {
	if d.fail {
		return nil, assert.AnError
	}
	var entities []report.Entity
	for id, entity := range d.channels {
		if d.category[id] == category {
			entities = append(entities, entity)
		}
	}
	return entities, nil
}

func (d *memDirectory) AddChannel(_ context.Context, category string, entity report.Entity) error {
	if d.fail {
		return assert.AnError
	}
	d.channels[entity.ID] = entity
	d.category[entity.ID] = category
	return nil
}

func (d *memDirectory) RemoveChannel(_ context.Context, channelID int64) error {
	delete(d.channels, channelID)
	delete(d.category, channelID)
	return nil
}

type memRefresher struct {
	kinds     []string
	refreshed []string
	err       error
}

func (r *memRefresher) RefreshReport(_ context.Context, kind string) error {
	if r.err != nil {
		return r.err
	}
	r.refreshed = append(r.refreshed, kind)
	return nil
}

func (r *memRefresher) Kinds() []string { return r.kinds }

type testEnv struct {
	store     *memStore
	dir       *memDirectory
	refresher *memRefresher
	srv       *Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := newMemStore()
	dir := newMemDirectory()
	refresher := &memRefresher{kinds: []string{"proposed_activity"}}
	srv := New(store, activity.NewAggregator(store), dir, refresher, zerolog.Nop())
	return &testEnv{store: store, dir: dir, refresher: refresher, srv: srv}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestRecordEvent_Accepted(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/events", map[string]any{
		"channel_id": 42, "event_id": 1001, "timestamp": 1_700_000_000,
	})

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.EqualValues(t, 1, env.store.counters[42].Total)
}

func TestRecordEvent_ReplayCountedOnce(t *testing.T) {
	env := newTestEnv(t)
	body := map[string]any{"channel_id": 42, "event_id": 1001, "timestamp": 1_700_000_000}

	for range 3 {
		rec := env.do(t, http.MethodPost, "/api/v1/events", body)
		assert.Equal(t, http.StatusAccepted, rec.Code)
	}

	assert.EqualValues(t, 1, env.store.counters[42].Total)
}

func TestRecordEvent_MissingFields(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/events", map[string]any{"channel_id": 42})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecordEvent_StoreUnavailable(t *testing.T) {
	env := newTestEnv(t)
	env.store.fail = true

	rec := env.do(t, http.MethodPost, "/api/v1/events", map[string]any{
		"channel_id": 42, "event_id": 1001,
	})

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestChannelStats_UnknownChannelIsZero(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/channels/42/stats", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, 0, body["total"])
	assert.EqualValues(t, 0, body["score"])
}

func TestChannelStats_ReflectsRecordedEvents(t *testing.T) {
	env := newTestEnv(t)

	for i, ts := range []int64{1_700_000_000, 1_700_000_100, 1_700_000_200} {
		env.do(t, http.MethodPost, "/api/v1/events", map[string]any{
			"channel_id": 42, "event_id": 1000 + i, "timestamp": ts,
		})
	}

	rec := env.do(t, http.MethodGet, "/api/v1/channels/42/stats", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, 3, body["total"])
}

func TestClearStats(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/v1/events", map[string]any{
		"channel_id": 42, "event_id": 1001,
	})

	rec := env.do(t, http.MethodDelete, "/api/v1/channels/42/stats", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/channels/42/stats", nil)
	body := decode(t, rec)
	assert.EqualValues(t, 0, body["total"])
}

func TestChannels_AddListRemove(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/channels", map[string]any{
		"id": 42, "category": "proposed", "name": "go-help",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/channels?category=proposed", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	channels := body["channels"].([]any)
	require.Len(t, channels, 1)

	rec = env.do(t, http.MethodDelete, "/api/v1/channels/42", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/channels?category=proposed", nil)
	body = decode(t, rec)
	assert.Empty(t, body["channels"])
}

func TestChannels_ListRequiresCategory(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/channels", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChannels_InvalidID(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodDelete, "/api/v1/channels/notanumber", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefreshReport_KnownKind(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/reports/proposed_activity/refresh", nil)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"proposed_activity"}, env.refresher.refreshed)
}

func TestRefreshReport_UnknownKind(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/reports/bogus/refresh", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, env.refresher.refreshed)
}

func TestRefreshReport_FailureIsGeneric(t *testing.T) {
	env := newTestEnv(t)
	env.refresher.err = assert.AnError

	rec := env.do(t, http.MethodPost, "/api/v1/reports/proposed_activity/refresh", nil)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "report refresh failed", body["error"])
	assert.NotContains(t, rec.Body.String(), assert.AnError.Error())
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/healthz", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestID_GeneratedAndEchoed(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/healthz", nil)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "fixed-id")
	echo := httptest.NewRecorder()
	env.srv.Handler().ServeHTTP(echo, req)
	assert.Equal(t, "fixed-id", echo.Header().Get("X-Request-ID"))
}
