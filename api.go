package sensorwatch

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	base "github.com/ghalamif/sensorwatch/pkg/sensorwatch"
)

// Re-exported errors for convenience.
var (
	ErrStoreUnavailable = base.ErrStoreUnavailable
	ErrMalformedMessage = base.ErrMalformedMessage
)

// Type aliases so consumers can import github.com/ghalamif/sensorwatch directly.
type (
	Config             = base.Config
	FreshnessConfig    = base.FreshnessConfig
	StoreConfig        = base.StoreConfig
	ChatConfig         = base.ChatConfig
	HTTPConfig         = base.HTTPConfig
	LogConfig          = base.LogConfig
	IngestConfig       = base.IngestConfig
	Policy             = base.Policy
	OPCUAConfig        = base.OPCUAConfig
	OPCUANodeConfig    = base.OPCUANodeConfig
	Runtime            = base.Runtime
	RuntimeOption      = base.RuntimeOption
	SensorRecord       = base.SensorRecord
	Heartbeat          = base.Heartbeat
	Query              = base.Query
	Intent             = base.Intent
	AllStatus          = base.AllStatus
	SingleStatus       = base.SingleStatus
	Unknown            = base.Unknown
	TelemetryStore     = base.TelemetryStore
	HeartbeatWriter    = base.HeartbeatWriter
	SeedStore          = base.SeedStore
	HeartbeatCollector = base.HeartbeatCollector
	HeartbeatQueue     = base.HeartbeatQueue
	Observability      = base.Observability
	Field              = base.Field
	SeedOptions        = base.SeedOptions
)

const (
	DriverPostgres = base.DriverPostgres
	DriverSQLite   = base.DriverSQLite
	DriverDynamoDB = base.DriverDynamoDB
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

// Runtime helpers.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	return base.NewRuntime(cfg, opts...)
}

func WithStore(s TelemetryStore) RuntimeOption {
	return base.WithStore(s)
}

func WithCollector(col HeartbeatCollector) RuntimeOption {
	return base.WithCollector(col)
}

func WithHeartbeatQueue(q HeartbeatQueue) RuntimeOption {
	return base.WithHeartbeatQueue(q)
}

func WithObservability(obs Observability) RuntimeOption {
	return base.WithObservability(obs)
}

func WithRegistry(reg *prometheus.Registry) RuntimeOption {
	return base.WithRegistry(reg)
}

func WithClock(now func() time.Time) RuntimeOption {
	return base.WithClock(now)
}

func DefaultSeedOptions() SeedOptions {
	return base.DefaultSeedOptions()
}
