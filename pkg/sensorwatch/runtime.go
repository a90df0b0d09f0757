package sensorwatch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/ghalamif/sensorwatch/internal/adapters/httpapi"
	"github.com/ghalamif/sensorwatch/internal/adapters/observability"
	"github.com/ghalamif/sensorwatch/internal/adapters/opcua"
	"github.com/ghalamif/sensorwatch/internal/adapters/queue"
	"github.com/ghalamif/sensorwatch/internal/adapters/seed"
	"github.com/ghalamif/sensorwatch/internal/adapters/store"
	"github.com/ghalamif/sensorwatch/internal/app/chat"
	"github.com/ghalamif/sensorwatch/internal/app/config"
	"github.com/ghalamif/sensorwatch/internal/app/ingest"
	"github.com/ghalamif/sensorwatch/internal/ports"
)

const openTimeout = 10 * time.Second

// RuntimeOption customizes the dependencies used by Runtime.
type RuntimeOption func(*runtimeOverrides)

type runtimeOverrides struct {
	store         TelemetryStore
	collector     HeartbeatCollector
	queue         HeartbeatQueue
	observability Observability
	registry      *prometheus.Registry
	now           func() time.Time
}

// WithStore injects a telemetry store instead of opening one from
// cfg.Store. Seeding and ingestion need it to also implement SeedStore and
// HeartbeatWriter.
func WithStore(s TelemetryStore) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.store = s
	}
}

// WithCollector injects a heartbeat source (MQTT, simulators, etc.) and
// enables ingestion even without an OPC-UA endpoint.
func WithCollector(col HeartbeatCollector) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.collector = col
	}
}

func WithHeartbeatQueue(q HeartbeatQueue) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.queue = q
	}
}

// WithObservability plugs in a custom logs/metrics backend.
func WithObservability(obs Observability) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.observability = obs
	}
}

// WithRegistry registers the default metrics on reg and serves it on /metrics.
func WithRegistry(reg *prometheus.Registry) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.registry = reg
	}
}

// WithClock overrides time.Now for freshness evaluation and seeding.
func WithClock(now func() time.Time) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.now = now
	}
}

// Runtime wires the store, the chat orchestrator, the HTTP surface and the
// optional heartbeat ingestion loop.
type Runtime struct {
	cfg       *Config
	obs       ports.Observability
	logger    *zap.Logger
	registry  *prometheus.Registry
	store     ports.TelemetryStore
	closers   []func() error
	chat      *chat.Orchestrator
	collector ports.HeartbeatCollector
	queue     ports.HeartbeatQueue
	now       func() time.Time

	mu           sync.Mutex
	httpSrv      *http.Server
	ingestCancel context.CancelFunc
	ingestDoneCh chan struct{}
}

// NewRuntime opens the configured store (postgres, sqlite or dynamodb) and
// builds the default adapters. Options override any of them.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	var overrides runtimeOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&overrides)
		}
	}

	rt := &Runtime{cfg: cfg, now: time.Now, registry: overrides.registry}
	if overrides.now != nil {
		rt.now = overrides.now
	}
	if rt.registry == nil {
		rt.registry = prometheus.NewRegistry()
		rt.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	rt.obs = overrides.observability
	if rt.obs == nil {
		logger, err := observability.NewLogger(cfg.Log.Level)
		if err != nil {
			return nil, fmt.Errorf("logger: %w", err)
		}
		rt.logger = logger
		rt.obs = observability.NewPromObs(rt.registry, logger)
	}

	rt.store = overrides.store
	if rt.store == nil {
		ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
		defer cancel()
		if err := rt.openStore(ctx); err != nil {
			return nil, err
		}
	}

	orch, err := chat.New(chat.Config{
		ThresholdDays:   cfg.Freshness.Days(),
		DefaultLocale:   cfg.Chat.DefaultLocale,
		MaxListed:       cfg.Chat.MaxListed,
		SensorIDPattern: cfg.Chat.SensorIDPattern,
	}, rt.store, chat.WithObservability(rt.obs), chat.WithClock(rt.now))
	if err != nil {
		rt.closeStore()
		return nil, err
	}
	rt.chat = orch

	rt.collector = overrides.collector
	if rt.collector == nil && cfg.Ingest.Enabled() {
		col, err := opcua.NewCollector(cfg.Ingest.OPCUA, rt.obs)
		if err != nil {
			rt.closeStore()
			return nil, err
		}
		rt.collector = col
	}
	if rt.collector != nil {
		if _, ok := rt.store.(ports.HeartbeatWriter); !ok {
			rt.closeStore()
			return nil, fmt.Errorf("store %s cannot record heartbeats", rt.store.Name())
		}
	}

	rt.queue = overrides.queue
	if rt.queue == nil {
		rt.queue = queue.NewMemQueue(cfg.Ingest.Policy.MaxQueueLen)
	}

	return rt, nil
}

func (r *Runtime) openStore(ctx context.Context) error {
	sc := r.cfg.Store
	switch sc.Driver {
	case config.DriverPostgres, config.DriverSQLite:
		db, err := store.OpenSQL(ctx, sc.Driver, sc.ConnString)
		if err != nil {
			return err
		}
		s, err := store.NewSQLStore(db, sc.Driver, sc.Name)
		if err != nil {
			db.Close()
			return err
		}
		if err := s.EnsureSchema(ctx); err != nil {
			db.Close()
			return err
		}
		r.store = s
		r.closers = append(r.closers, db.Close)
	case config.DriverDynamoDB:
		client, err := store.NewDynamoClient(ctx, sc.Region, sc.Endpoint)
		if err != nil {
			return err
		}
		r.store = store.NewDynamoStore(client, sc.Name)
	default:
		return fmt.Errorf("unsupported store driver %q", sc.Driver)
	}
	return nil
}

func (r *Runtime) closeStore() error {
	var errs []error
	for _, c := range r.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

// Ask answers one question. On a store failure the returned text is the
// service-degraded reply and err wraps ErrStoreUnavailable.
func (r *Runtime) Ask(ctx context.Context, message, locale string) (string, error) {
	resp, err := r.chat.Handle(ctx, chat.Request{Message: message, Locale: locale})
	return resp.Text, err
}

// Classify reports how a message would be understood without touching the
// store.
func (r *Runtime) Classify(message string) Intent {
	return r.chat.Classify(message)
}

// Handler returns the HTTP surface: POST /chat, GET /healthz, GET /metrics.
func (r *Runtime) Handler() http.Handler {
	return httpapi.New(r.chat,
		httpapi.WithGatherer(r.registry),
		httpapi.WithObservability(r.obs),
		httpapi.WithTimeout(r.cfg.HTTP.RequestTimeout),
	).Routes()
}

// Seed wipes the store and loads a generated sample fleet.
func (r *Runtime) Seed(ctx context.Context, opts SeedOptions) (int, error) {
	dst, ok := r.store.(ports.SeedStore)
	if !ok {
		return 0, fmt.Errorf("store %s does not support seeding", r.store.Name())
	}
	records, err := seed.Load(ctx, dst, opts, r.now())
	if err != nil {
		return 0, err
	}
	r.obs.LogInfo("store_seeded",
		ports.Field{Key: "store", Value: r.store.Name()},
		ports.Field{Key: "sensors", Value: len(records)})
	return len(records), nil
}

// Start launches the HTTP server and, when a collector is configured, the
// ingestion loop. It returns immediately; call Run to block on a context
// instead.
func (r *Runtime) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.httpSrv != nil {
		return fmt.Errorf("runtime already started")
	}

	if r.collector != nil {
		ctx, cancel := context.WithCancel(context.Background())
		r.ingestCancel = cancel
		r.ingestDoneCh = make(chan struct{})
		writer := r.store.(ports.HeartbeatWriter)
		go func() {
			defer close(r.ingestDoneCh)
			if err := ingest.Run(ctx, r.collector, r.queue, writer, r.cfg.Ingest.Policy, r.obs); err != nil {
				r.obs.LogCritical("ingest_stopped", err)
			}
		}()
	}

	r.httpSrv = &http.Server{
		Addr:              r.cfg.HTTP.Addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func(srv *http.Server) {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.obs.LogCritical("http_server_exited", err, ports.Field{Key: "addr", Value: srv.Addr})
		}
	}(r.httpSrv)

	r.obs.LogInfo("runtime_started",
		ports.Field{Key: "addr", Value: r.cfg.HTTP.Addr},
		ports.Field{Key: "store", Value: r.store.Name()},
		ports.Field{Key: "ingest", Value: r.collector != nil})
	return nil
}

// Run starts the runtime and blocks until ctx is cancelled, then shuts down
// gracefully.
func (r *Runtime) Run(ctx context.Context) error {
	if err := r.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.Shutdown(shutdownCtx)
}

// Shutdown stops ingestion, the HTTP server, the collector and the store.
func (r *Runtime) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error

	if r.ingestCancel != nil {
		r.ingestCancel()
		select {
		case <-r.ingestDoneCh:
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("ingest loop: %w", ctx.Err()))
		}
		r.ingestCancel = nil
	}

	if r.httpSrv != nil {
		if err := r.httpSrv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
	}

	if r.collector != nil {
		if err := r.collector.Stop(); err != nil {
			errs = append(errs, err)
		}
	}

	if err := r.closeStore(); err != nil {
		errs = append(errs, err)
	}

	if r.logger != nil {
		_ = r.logger.Sync()
	}

	return errors.Join(errs...)
}
