package sensorwatch

import (
	"github.com/ghalamif/sensorwatch/internal/adapters/seed"
	"github.com/ghalamif/sensorwatch/internal/domain"
	"github.com/ghalamif/sensorwatch/internal/ports"
)

var (
	ErrStoreUnavailable = domain.ErrStoreUnavailable
	ErrMalformedMessage = domain.ErrMalformedMessage
)

// SensorRecord is one row of the telemetry store.
type SensorRecord = domain.SensorRecord

// Heartbeat says a sensor was seen at a point in time.
type Heartbeat = domain.Heartbeat

// Intent is the classified meaning of a chat message: AllStatus,
// SingleStatus or Unknown.
type Intent = domain.Intent

type (
	AllStatus    = domain.AllStatus
	SingleStatus = domain.SingleStatus
	Unknown      = domain.Unknown
)

// Query is what the orchestrator asks a TelemetryStore for.
type Query = domain.Query

// TelemetryStore answers chat queries. Custom stores (HTTP APIs, caches)
// implement this.
type TelemetryStore = ports.TelemetryStore

// HeartbeatWriter advances last_seen; required for ingestion.
type HeartbeatWriter = ports.HeartbeatWriter

// SeedStore is required by Runtime.Seed.
type SeedStore = ports.SeedStore

// HeartbeatCollector streams heartbeats from any source into the runtime.
type HeartbeatCollector = ports.HeartbeatCollector

type HeartbeatQueue = ports.HeartbeatQueue

// Observability emits logs and metrics.
type Observability = ports.Observability

// Field is a structured log field used by Observability implementations.
type Field = ports.Field

// SeedOptions sizes a generated sample fleet.
type SeedOptions = seed.Options

func DefaultSeedOptions() SeedOptions { return seed.DefaultOptions() }
