package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ghalamif/sensorwatch/internal/ports"
)

// PromObs records metrics in a Prometheus registry and writes logs through zap.
type PromObs struct {
	log      *zap.Logger
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

// NewPromObs registers the sensorwatch collectors on reg. A nil logger
// disables logging.
func NewPromObs(reg prometheus.Registerer, logger *zap.Logger) *PromObs {
	if logger == nil {
		logger = zap.NewNop()
	}

	chatRequests := prometheus.NewCounter(prometheus.CounterOpts{
		Name: ports.MetricChatRequests,
		Help: "Chat messages handled, including fallbacks and failures.",
	})
	chatFallbacks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: ports.MetricChatFallbacks,
		Help: "Chat messages answered with the not-understood fallback.",
	})
	storeErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Name: ports.MetricStoreErrors,
		Help: "Telemetry store reads that failed.",
	})
	ingested := prometheus.NewCounter(prometheus.CounterOpts{
		Name: ports.MetricHeartbeatsIngested,
		Help: "Heartbeats applied to the telemetry store.",
	})
	dropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: ports.MetricHeartbeatsDropped,
		Help: "Heartbeats lost due to queue backpressure policies.",
	})
	queueGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: ports.MetricQueueLength,
		Help: "Current number of heartbeats buffered in the in-memory queue.",
	})
	staleGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: ports.MetricStaleSensors,
		Help: "Stale sensors found by the last fleet-wide status query.",
	})
	fetchLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    ports.MetricStoreFetchSeconds,
		Help:    "Latency of telemetry store reads.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	reg.MustRegister(chatRequests, chatFallbacks, storeErrors, ingested, dropped, queueGauge, staleGauge, fetchLatency)

	return &PromObs{
		log: logger,
		counters: map[string]prometheus.Counter{
			ports.MetricChatRequests:       chatRequests,
			ports.MetricChatFallbacks:      chatFallbacks,
			ports.MetricStoreErrors:        storeErrors,
			ports.MetricHeartbeatsIngested: ingested,
			ports.MetricHeartbeatsDropped:  dropped,
		},
		gauges: map[string]prometheus.Gauge{
			ports.MetricQueueLength:  queueGauge,
			ports.MetricStaleSensors: staleGauge,
		},
		histos: map[string]prometheus.Observer{
			ports.MetricStoreFetchSeconds: fetchLatency,
		},
	}
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	p.log.Info(msg, zapFields(fields)...)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	p.log.Error(msg, append(zapFields(fields), zap.Error(err))...)
}

// LogCritical logs at error level with critical=true; it never exits.
func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	p.log.Error(msg, append(zapFields(fields), zap.Error(err), zap.Bool("critical", true))...)
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func zapFields(fields []ports.Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields)+2)
	for _, f := range fields {
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}

var _ ports.Observability = (*PromObs)(nil)
