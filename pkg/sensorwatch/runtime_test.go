package sensorwatch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghalamif/sensorwatch/internal/ports"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

type memStore struct {
	mu      sync.Mutex
	records map[string]SensorRecord
	err     error
}

func newMemStore(recs ...SensorRecord) *memStore {
	m := &memStore{records: map[string]SensorRecord{}}
	for _, r := range recs {
		m.records[r.SensorID] = r
	}
	return m
}

func (m *memStore) Name() string { return "mem" }

func (m *memStore) Fetch(_ context.Context, q Query) ([]SensorRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := []SensorRecord{}
	for id, r := range m.records {
		if q.MatchesAll() || id == q.SensorID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) Touch(_ context.Context, beats []Heartbeat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, hb := range beats {
		r := m.records[hb.SensorID]
		r.SensorID = hb.SensorID
		if hb.SeenAt.After(r.LastSeen) {
			r.LastSeen = hb.SeenAt
		}
		m.records[hb.SensorID] = r
	}
	return nil
}

func (m *memStore) Reset(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = map[string]SensorRecord{}
	return nil
}

func (m *memStore) Upsert(_ context.Context, recs []SensorRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range recs {
		m.records[r.SensorID] = r
	}
	return nil
}

func (m *memStore) lastSeen(id string) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[id].LastSeen
}

type readOnlyStore struct{}

func (readOnlyStore) Name() string                                         { return "readonly" }
func (readOnlyStore) Fetch(context.Context, Query) ([]SensorRecord, error) { return nil, nil }

type chanCollector struct {
	beats   []Heartbeat
	stopped bool
}

func (c *chanCollector) Start(out chan<- Heartbeat) error {
	go func() {
		for _, hb := range c.beats {
			out <- hb
		}
	}()
	return nil
}

func (c *chanCollector) Stop() error {
	c.stopped = true
	return nil
}

func testConfig(t *testing.T) *Config {
	t.Helper()
	t.Setenv("STORE_DRIVER", DriverSQLite)
	t.Setenv("STORE_CONNECTION_STRING", "file::memory:")
	t.Setenv("CHAT_DEFAULT_LOCALE", "en")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("HTTP_ADDR", "127.0.0.1:0")
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	return cfg
}

func TestNewRuntimeWithCustomAdapters(t *testing.T) {
	cfg := testConfig(t)
	st := newMemStore()
	col := &chanCollector{}
	q := &stubQueue{}
	obs := ports.NopObservability{}

	rt, err := NewRuntime(cfg,
		WithStore(st),
		WithCollector(col),
		WithHeartbeatQueue(q),
		WithObservability(obs),
		WithClock(clock),
	)
	require.NoError(t, err)

	assert.Same(t, st, rt.store.(*memStore))
	assert.Same(t, col, rt.collector.(*chanCollector))
	assert.Same(t, q, rt.queue.(*stubQueue))
	assert.Equal(t, obs, rt.obs)
	assert.Empty(t, rt.closers, "injected store must not be closed by the runtime")
}

func TestNewRuntimeRejectsCollectorWithoutWriter(t *testing.T) {
	_, err := NewRuntime(testConfig(t), WithStore(readOnlyStore{}), WithCollector(&chanCollector{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot record heartbeats")
}

func TestNewRuntimeRequiresConfig(t *testing.T) {
	_, err := NewRuntime(nil)
	assert.Error(t, err)
}

func TestRuntimeAsk(t *testing.T) {
	st := newMemStore(
		SensorRecord{SensorID: "c000001", LastSeen: fixedNow.Add(-time.Hour)},
		SensorRecord{SensorID: "c000002", LastSeen: fixedNow.Add(-72 * time.Hour)},
	)
	rt, err := NewRuntime(testConfig(t), WithStore(st), WithObservability(ports.NopObservability{}), WithClock(clock))
	require.NoError(t, err)

	text, err := rt.Ask(context.Background(), "Is sensor c000001 connected?", "en")
	require.NoError(t, err)
	assert.Contains(t, text, "Yes, sensor c000001 is connected")

	text, err = rt.Ask(context.Background(), "Est-ce que tous les capteurs sont connectés ?", "fr")
	require.NoError(t, err)
	assert.Equal(t, "Non, 1 capteur(s) sur 2 déconnecté(s) : c000002.", text)

	st.err = errors.New("connection reset")
	text, err = rt.Ask(context.Background(), "are all sensors connected", "en")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Equal(t, "The data service is temporarily unavailable, please try again later.", text)
}

func TestRuntimeClassifyLeavesStoreAlone(t *testing.T) {
	st := newMemStore()
	st.err = errors.New("store must not be called")
	rt, err := NewRuntime(testConfig(t), WithStore(st), WithObservability(ports.NopObservability{}))
	require.NoError(t, err)

	assert.Equal(t, SingleStatus{SensorID: "c7k2m9q"}, rt.Classify("Le capteur c7k2m9q est-il connecté ?"))
	assert.Equal(t, AllStatus{}, rt.Classify("Are all sensors online?"))
	assert.Equal(t, Unknown{}, rt.Classify("What's the weather like?"))
}

func TestRuntimeHandlerServesChat(t *testing.T) {
	st := newMemStore(SensorRecord{SensorID: "c000001", LastSeen: fixedNow})
	rt, err := NewRuntime(testConfig(t), WithStore(st), WithObservability(ports.NopObservability{}), WithClock(clock))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message":"are all sensors connected?"}`))
	rt.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"response":"Yes, all sensors are connected (1)."}`, rec.Body.String())
}

func TestRuntimeSeedAndAskOnSQLite(t *testing.T) {
	rt, err := NewRuntime(testConfig(t), WithClock(clock))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Shutdown(context.Background()) })

	n, err := rt.Seed(context.Background(), SeedOptions{Sensors: 20, StaleRatio: 0, Seed: 42})
	require.NoError(t, err)
	assert.Equal(t, 20, n)

	text, err := rt.Ask(context.Background(), "Are all sensors connected?", "")
	require.NoError(t, err)
	assert.Equal(t, "Yes, all sensors are connected (20).", text)

	text, err = rt.Ask(context.Background(), "is sensor c000000 online?", "en")
	require.NoError(t, err)
	assert.Equal(t, "Sensor c000000 is unknown.", text)
}

func TestRuntimeSeedNeedsSeedStore(t *testing.T) {
	rt, err := NewRuntime(testConfig(t), WithStore(readOnlyStore{}), WithObservability(ports.NopObservability{}))
	require.NoError(t, err)
	_, err = rt.Seed(context.Background(), DefaultSeedOptions())
	assert.Error(t, err)
}

func TestRuntimeIngestsHeartbeats(t *testing.T) {
	st := newMemStore()
	seen := fixedNow.Add(-time.Minute)
	col := &chanCollector{beats: []Heartbeat{
		{SensorID: "c000009", SeenAt: seen.Add(-time.Hour)},
		{SensorID: "c000009", SeenAt: seen},
	}}

	rt, err := NewRuntime(testConfig(t), WithStore(st), WithCollector(col), WithObservability(ports.NopObservability{}), WithClock(clock))
	require.NoError(t, err)
	require.NoError(t, rt.Start())
	assert.Error(t, rt.Start(), "second start must fail")

	require.Eventually(t, func() bool {
		return st.lastSeen("c000009").Equal(seen)
	}, 2*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, rt.Shutdown(ctx))
	assert.True(t, col.stopped)
}

type stubQueue struct{}

func (s *stubQueue) Enqueue(Heartbeat) bool           { return true }
func (s *stubQueue) DequeueBatch(max int) []Heartbeat { return nil }
func (s *stubQueue) Len() int                         { return 0 }
