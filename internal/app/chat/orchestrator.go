// Package chat runs one question through classify, query, fetch, evaluate
// and render.
package chat

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/ghalamif/sensorwatch/internal/app/freshness"
	"github.com/ghalamif/sensorwatch/internal/app/intent"
	"github.com/ghalamif/sensorwatch/internal/app/query"
	"github.com/ghalamif/sensorwatch/internal/app/render"
	"github.com/ghalamif/sensorwatch/internal/domain"
	"github.com/ghalamif/sensorwatch/internal/ports"
)

// Config is fixed for the lifetime of an Orchestrator.
type Config struct {
	ThresholdDays   int
	DefaultLocale   string
	MaxListed       int
	SensorIDPattern string
}

type Request struct {
	Message string
	Locale  string
}

type Response struct {
	Text   string
	Intent string
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

func WithObservability(obs ports.Observability) Option {
	return func(o *Orchestrator) {
		if obs != nil {
			o.obs = obs
		}
	}
}

// Orchestrator holds no per-request state; Handle may be called
// concurrently.
type Orchestrator struct {
	threshold  int
	store      ports.TelemetryStore
	classifier *intent.Classifier
	renderer   *render.Renderer
	now        func() time.Time
	obs        ports.Observability
}

func New(cfg Config, store ports.TelemetryStore, opts ...Option) (*Orchestrator, error) {
	if store == nil {
		return nil, fmt.Errorf("telemetry store is required")
	}
	if cfg.ThresholdDays < 0 {
		return nil, fmt.Errorf("threshold days must be >= 0, got %d", cfg.ThresholdDays)
	}

	var classifierOpts []intent.Option
	if cfg.SensorIDPattern != "" {
		re, err := regexp.Compile("^(?:" + cfg.SensorIDPattern + ")$")
		if err != nil {
			return nil, fmt.Errorf("sensor id pattern: %w", err)
		}
		classifierOpts = append(classifierOpts, intent.WithSensorIDPattern(re))
	}

	o := &Orchestrator{
		threshold:  cfg.ThresholdDays,
		store:      store,
		classifier: intent.New(classifierOpts...),
		renderer:   render.New(cfg.DefaultLocale, cfg.MaxListed),
		now:        time.Now,
		obs:        ports.NopObservability{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o, nil
}

// Handle answers one message. The error is non-nil only for malformed input
// (domain.ErrMalformedMessage) or an unreachable store
// (domain.ErrStoreUnavailable); in the latter case Response still carries a
// printable reply.
func (o *Orchestrator) Handle(ctx context.Context, req Request) (Response, error) {
	if !utf8.ValidString(req.Message) {
		return Response{}, fmt.Errorf("%w: message is not valid UTF-8", domain.ErrMalformedMessage)
	}

	in := o.classifier.Classify(req.Message)
	resp := Response{Intent: in.Name()}
	o.obs.IncCounter(ports.MetricChatRequests, 1)

	q, ok := query.Build(in)
	if !ok {
		o.obs.IncCounter(ports.MetricChatFallbacks, 1)
		resp.Text = o.renderer.NotUnderstood(req.Locale)
		return resp, nil
	}

	start := time.Now()
	records, err := o.store.Fetch(ctx, q)
	o.obs.ObserveLatency(ports.MetricStoreFetchSeconds, time.Since(start).Seconds())
	if err != nil {
		if !errors.Is(err, domain.ErrStoreUnavailable) {
			err = fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
		}
		o.obs.IncCounter(ports.MetricStoreErrors, 1)
		o.obs.LogError("store_fetch_failed", err,
			ports.Field{Key: "store", Value: o.store.Name()},
			ports.Field{Key: "intent", Value: in.Name()},
			ports.Field{Key: "sensor_id", Value: q.SensorID})
		resp.Text = o.renderer.Degraded(req.Locale)
		return resp, err
	}

	results := freshness.Evaluate(records, o.threshold, o.now())
	if q.MatchesAll() {
		o.obs.SetGauge(ports.MetricStaleSensors, float64(len(freshness.Stale(results))))
	}
	resp.Text = o.renderer.Render(req.Locale, in, results)
	return resp, nil
}

// Classify runs the classifier alone. Nothing is fetched or logged.
func (o *Orchestrator) Classify(message string) domain.Intent {
	return o.classifier.Classify(message)
}
