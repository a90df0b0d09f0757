package domain

import (
	"errors"
	"time"
)

var (
	// ErrStoreUnavailable wraps every failure to reach the telemetry store.
	ErrStoreUnavailable = errors.New("sensorwatch: store unavailable")
	// ErrMalformedMessage is returned for chat input that is not a text message.
	ErrMalformedMessage = errors.New("sensorwatch: malformed message")
)

// SensorRecord is the per-sensor status row kept by the telemetry store.
// A zero LastSeen means the sensor never reported.
type SensorRecord struct {
	SensorID string         `json:"sensor_id"`
	LastSeen time.Time      `json:"last_seen"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Reported reports whether the sensor ever sent data.
func (r SensorRecord) Reported() bool { return !r.LastSeen.IsZero() }

// Heartbeat is emitted by the ingestion path each time a sensor is heard from.
type Heartbeat struct {
	SensorID string
	SeenAt   time.Time
}

// EvaluationResult is the freshness verdict for one record.
type EvaluationResult struct {
	SensorID string
	Fresh    bool
	LastSeen time.Time
}
