package ports

import "github.com/ghalamif/sensorwatch/internal/domain"

type HeartbeatQueue interface {
	Enqueue(hb domain.Heartbeat) bool
	DequeueBatch(max int) []domain.Heartbeat
	Len() int
}
