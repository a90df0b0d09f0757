package ports

import "github.com/ghalamif/sensorwatch/internal/domain"

// HeartbeatCollector streams heartbeats from a field protocol (OPC UA, MQTT, ...).
type HeartbeatCollector interface {
	Start(out chan<- domain.Heartbeat) error
	Stop() error
}
