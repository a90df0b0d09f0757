package ports

import (
	"context"

	"github.com/ghalamif/sensorwatch/internal/domain"
)

// TelemetryStore is the read side used by the chat core. Implementations
// must be safe for concurrent use, return an empty slice when nothing
// matches and wrap connectivity failures with domain.ErrStoreUnavailable.
type TelemetryStore interface {
	Fetch(ctx context.Context, q domain.Query) ([]domain.SensorRecord, error)
	Name() string
}

// HeartbeatWriter advances last_seen. Touch never moves a sensor's
// last_seen backwards.
type HeartbeatWriter interface {
	Touch(ctx context.Context, beats []domain.Heartbeat) error
}

// SeedStore is what the sample-data generator needs.
type SeedStore interface {
	Reset(ctx context.Context) error
	Upsert(ctx context.Context, records []domain.SensorRecord) error
}
