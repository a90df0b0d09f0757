package sensorwatch

import (
	"github.com/ghalamif/sensorwatch/internal/adapters/opcua"
	"github.com/ghalamif/sensorwatch/internal/app/config"
	"github.com/ghalamif/sensorwatch/internal/ports"
)

// Config re-exports the root configuration struct so downstream projects can
// construct or modify it programmatically.
type Config = config.Config

type (
	FreshnessConfig = config.FreshnessConfig
	// StoreConfig selects the telemetry store driver and table.
	StoreConfig = config.StoreConfig
	ChatConfig  = config.ChatConfig
	HTTPConfig  = config.HTTPConfig
	LogConfig   = config.LogConfig
	// IngestConfig enables heartbeat collection.
	IngestConfig = config.IngestConfig
	// Policy controls queue thresholds.
	Policy = ports.Policy
	// OPCUAConfig holds connection + node details.
	OPCUAConfig = opcua.Config
	// OPCUANodeConfig maps a monitored node to a sensor id.
	OPCUANodeConfig = opcua.NodeConfig
)

const (
	DriverPostgres = config.DriverPostgres
	DriverSQLite   = config.DriverSQLite
	DriverDynamoDB = config.DriverDynamoDB
)

// LoadConfig loads YAML from disk plus environment overrides. An empty path
// reads the environment only.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}
