package domain

// Field names a SensorRecord attribute a query must return.
type Field string

const (
	FieldSensorID Field = "sensor_id"
	FieldLastSeen Field = "last_seen"
	FieldMetadata Field = "metadata"
)

// Query describes a read against the telemetry store. An empty SensorID
// selects every record.
type Query struct {
	SensorID   string
	Projection []Field
}

// MatchesAll reports whether the query selects every record.
func (q Query) MatchesAll() bool { return q.SensorID == "" }

// Wants reports whether f is part of the projection.
func (q Query) Wants(f Field) bool {
	for _, p := range q.Projection {
		if p == f {
			return true
		}
	}
	return false
}
