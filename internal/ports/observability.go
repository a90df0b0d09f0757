package ports

type Observability interface {
	LogInfo(msg string, fields ...Field)
	LogError(msg string, err error, fields ...Field)
	LogCritical(msg string, err error, fields ...Field)

	IncCounter(name string, v float64)
	ObserveLatency(name string, seconds float64)

	SetGauge(name string, v float64)
}

type Field struct {
	Key   string
	Value any
}

// Metric names shared by the core, the ingest loop and the adapters.
const (
	MetricChatRequests       = "sensorwatch_chat_requests_total"
	MetricChatFallbacks      = "sensorwatch_chat_fallback_total"
	MetricStoreErrors        = "sensorwatch_store_errors_total"
	MetricHeartbeatsIngested = "sensorwatch_heartbeats_ingested_total"
	MetricHeartbeatsDropped  = "sensorwatch_heartbeats_dropped_total"
	MetricQueueLength        = "sensorwatch_heartbeat_queue_length"
	MetricStaleSensors       = "sensorwatch_stale_sensors"
	MetricStoreFetchSeconds  = "sensorwatch_store_fetch_seconds"
)

// NopObservability discards everything.
type NopObservability struct{}

func (NopObservability) LogInfo(string, ...Field)            {}
func (NopObservability) LogError(string, error, ...Field)    {}
func (NopObservability) LogCritical(string, error, ...Field) {}
func (NopObservability) IncCounter(string, float64)          {}
func (NopObservability) ObserveLatency(string, float64)      {}
func (NopObservability) SetGauge(string, float64)            {}
