package seed

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghalamif/sensorwatch/internal/app/freshness"
	"github.com/ghalamif/sensorwatch/internal/domain"
)

var now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestGenerateDefaults(t *testing.T) {
	recs, err := Generate(DefaultOptions(), now)
	require.NoError(t, err)
	require.Len(t, recs, 200)

	idRe := regexp.MustCompile(`^c[a-z0-9]{6}$`)
	ids := map[string]bool{}
	gateways := map[string]bool{}
	for _, r := range recs {
		assert.Regexp(t, idRe, r.SensorID)
		assert.False(t, ids[r.SensorID], "duplicate id %s", r.SensorID)
		ids[r.SensorID] = true

		battery := r.Metadata["battery"].(int)
		assert.GreaterOrEqual(t, battery, 10)
		assert.LessOrEqual(t, battery, 100)
		assert.Contains(t, sensorTypes, r.Metadata["type"])
		gateways[r.Metadata["gateway_id"].(string)] = true
	}
	assert.LessOrEqual(t, len(gateways), gatewayCount)

	// 2-day threshold separates the two age bands
	stale := freshness.Stale(freshness.Evaluate(recs, 2, now))
	assert.Len(t, stale, 20)
}

func TestGenerateIsDeterministic(t *testing.T) {
	a, err := Generate(Options{Sensors: 30, StaleRatio: 0.5, Seed: 7}, now)
	require.NoError(t, err)
	b, err := Generate(Options{Sensors: 30, StaleRatio: 0.5, Seed: 7}, now)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := Generate(Options{Sensors: 30, StaleRatio: 0.5, Seed: 8}, now)
	require.NoError(t, err)
	assert.NotEqual(t, a[0].SensorID, c[0].SensorID)
}

func TestGenerateAgeBands(t *testing.T) {
	recs, err := Generate(Options{Sensors: 50, StaleRatio: 1, Seed: 3}, now)
	require.NoError(t, err)
	for _, r := range recs {
		age := now.Sub(r.LastSeen)
		assert.GreaterOrEqual(t, age, 3*day-time.Second)
		assert.LessOrEqual(t, age, 7*day)
	}

	recs, err = Generate(Options{Sensors: 50, StaleRatio: 0, Seed: 3}, now)
	require.NoError(t, err)
	for _, r := range recs {
		assert.LessOrEqual(t, now.Sub(r.LastSeen), day)
	}
}

func TestGenerateRejectsBadOptions(t *testing.T) {
	_, err := Generate(Options{Sensors: -1}, now)
	assert.Error(t, err)
	_, err = Generate(Options{Sensors: 1, StaleRatio: 1.5}, now)
	assert.Error(t, err)

	recs, err := Generate(Options{Sensors: 0}, now)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

type memSeedStore struct {
	records  []domain.SensorRecord
	resets   int
	resetErr error
}

func (m *memSeedStore) Reset(context.Context) error {
	if m.resetErr != nil {
		return m.resetErr
	}
	m.resets++
	m.records = nil
	return nil
}

func (m *memSeedStore) Upsert(_ context.Context, recs []domain.SensorRecord) error {
	m.records = append(m.records, recs...)
	return nil
}

func TestLoad(t *testing.T) {
	dst := &memSeedStore{records: []domain.SensorRecord{{SensorID: "old"}}}
	recs, err := Load(context.Background(), dst, Options{Sensors: 5, Seed: 1}, now)
	require.NoError(t, err)
	assert.Equal(t, 1, dst.resets)
	assert.Equal(t, recs, dst.records)

	dst = &memSeedStore{resetErr: errors.New("readonly")}
	_, err = Load(context.Background(), dst, DefaultOptions(), now)
	assert.ErrorContains(t, err, "reset store")
}
