package opcua

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/ua"

	"github.com/ghalamif/sensorwatch/internal/domain"
	"github.com/ghalamif/sensorwatch/internal/ports"
)

// Config captures the runtime details required to open an OPC UA session.
type Config struct {
	Endpoint         string        `yaml:"endpoint"`
	Username         string        `yaml:"username"`
	Password         string        `yaml:"password"`
	SecurityMode     string        `yaml:"security_mode"`
	SecurityPolicy   string        `yaml:"security_policy"`
	ApplicationName  string        `yaml:"application_name"`
	PublishInterval  time.Duration `yaml:"publish_interval"`
	SamplingInterval time.Duration `yaml:"sampling_interval"`
	Nodes            []NodeConfig  `yaml:"nodes"`
}

// NodeConfig maps a monitored node onto the sensor it proves alive.
type NodeConfig struct {
	NodeID   string `yaml:"node_id"`
	SensorID string `yaml:"sensor_id"`
}

func (c *Config) ApplyDefaults() {
	if c.SecurityMode == "" {
		c.SecurityMode = "None"
	}
	if c.SecurityPolicy == "" {
		c.SecurityPolicy = "None"
	}
	if c.ApplicationName == "" {
		c.ApplicationName = "SensorWatch"
	}
	if c.PublishInterval <= 0 {
		c.PublishInterval = 250 * time.Millisecond
	}
	if c.SamplingInterval < 0 {
		c.SamplingInterval = 0
	}
	for i := range c.Nodes {
		if c.Nodes[i].SensorID == "" {
			c.Nodes[i].SensorID = c.Nodes[i].NodeID
		}
	}
}

// Validate checks the endpoint and that every node id parses. Two nodes may
// feed the same sensor but a node may only be listed once.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("endpoint is required")
	}
	if len(c.Nodes) == 0 {
		return errors.New("at least one node must be configured")
	}
	seen := make(map[string]struct{}, len(c.Nodes))
	for _, n := range c.Nodes {
		if _, err := ua.ParseNodeID(n.NodeID); err != nil {
			return fmt.Errorf("node %q: %w", n.NodeID, err)
		}
		if _, dup := seen[n.NodeID]; dup {
			return fmt.Errorf("node %q listed twice", n.NodeID)
		}
		seen[n.NodeID] = struct{}{}
	}
	return nil
}

// Collector turns OPC UA data-change notifications into heartbeats: any
// good-quality value from a node means its sensor is alive.
type Collector struct {
	cfg       Config
	client    *opcua.Client
	sub       *opcua.Subscription
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	handleMap map[uint32]NodeConfig
	mu        sync.Mutex
	started   bool
	now       func() time.Time
	obs       ports.Observability
}

// NewCollector validates cfg. A nil obs discards collector logs.
func NewCollector(cfg Config, obs ports.Observability) (*Collector, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if obs == nil {
		obs = ports.NopObservability{}
	}
	return &Collector{
		cfg: cfg,
		now: time.Now,
		obs: obs,
	}, nil
}

// Start connects, subscribes to every configured node and forwards
// heartbeats to out until Stop.
func (c *Collector) Start(out chan<- domain.Heartbeat) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return fmt.Errorf("opcua collector already started")
	}
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	client, sub, notifyCh, err := c.dial(ctx)
	if err != nil {
		cancel()
		return err
	}
	handleMap, err := c.monitor(ctx, sub)
	if err != nil {
		c.cleanupOnError(ctx, cancel, sub, client)
		return err
	}

	c.mu.Lock()
	c.client = client
	c.sub = sub
	c.cancel = cancel
	c.handleMap = handleMap
	c.started = true
	c.mu.Unlock()

	c.obs.LogInfo("opcua_collector_started",
		ports.Field{Key: "endpoint", Value: c.cfg.Endpoint},
		ports.Field{Key: "nodes", Value: len(handleMap)})

	c.wg.Add(1)
	go c.consume(ctx, notifyCh, out)
	return nil
}

func (c *Collector) dial(ctx context.Context) (*opcua.Client, *opcua.Subscription, chan *opcua.PublishNotificationData, error) {
	client, err := opcua.NewClient(c.cfg.Endpoint, c.buildClientOptions()...)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opcua new client: %w", err)
	}
	if err := client.Connect(ctx); err != nil {
		return nil, nil, nil, fmt.Errorf("opcua connect: %w", err)
	}

	notifyCh := make(chan *opcua.PublishNotificationData, len(c.cfg.Nodes)*4)
	sub, err := client.Subscribe(ctx, &opcua.SubscriptionParameters{
		Interval: c.cfg.PublishInterval,
	}, notifyCh)
	if err != nil {
		_ = client.Close(ctx)
		return nil, nil, nil, fmt.Errorf("opcua subscribe: %w", err)
	}
	return client, sub, notifyCh, nil
}

// monitor registers one monitored item per node. Client handles start at 1
// and follow the order of cfg.Nodes.
func (c *Collector) monitor(ctx context.Context, sub *opcua.Subscription) (map[uint32]NodeConfig, error) {
	handleMap := make(map[uint32]NodeConfig, len(c.cfg.Nodes))
	reqs := make([]*ua.MonitoredItemCreateRequest, 0, len(c.cfg.Nodes))
	for i, node := range c.cfg.Nodes {
		nodeID, err := ua.ParseNodeID(node.NodeID)
		if err != nil {
			return nil, fmt.Errorf("parse node id %q: %w", node.NodeID, err)
		}
		handle := uint32(i + 1)
		req := opcua.NewMonitoredItemCreateRequestWithDefaults(nodeID, ua.AttributeIDValue, handle)
		if c.cfg.SamplingInterval > 0 {
			req.RequestedParameters.SamplingInterval = float64(c.cfg.SamplingInterval / time.Millisecond)
		}
		reqs = append(reqs, req)
		handleMap[handle] = node
	}

	res, err := sub.Monitor(ctx, ua.TimestampsToReturnBoth, reqs...)
	if err != nil {
		return nil, fmt.Errorf("monitor nodes: %w", err)
	}
	if len(res.Results) != len(reqs) {
		return nil, fmt.Errorf("monitor nodes: %d results for %d nodes", len(res.Results), len(reqs))
	}
	for i, r := range res.Results {
		if r.StatusCode != ua.StatusOK {
			return nil, fmt.Errorf("monitor node %q failed: %s", c.cfg.Nodes[i].NodeID, r.StatusCode)
		}
	}
	return handleMap, nil
}

func (c *Collector) Stop() error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	cancel := c.cancel
	sub := c.sub
	client := c.client
	c.started = false
	c.cancel = nil
	c.sub = nil
	c.client = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	ctx, ctxCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer ctxCancel()

	var err error
	if sub != nil {
		if e := sub.Cancel(ctx); e != nil && !errors.Is(e, context.Canceled) {
			err = errors.Join(err, e)
		}
	}
	if client != nil {
		if e := client.Close(ctx); e != nil && !errors.Is(e, context.Canceled) {
			err = errors.Join(err, e)
		}
	}

	c.wg.Wait()
	return err
}

// consume runs until ctx is cancelled or the subscription closes ch.
func (c *Collector) consume(ctx context.Context, ch <-chan *opcua.PublishNotificationData, out chan<- domain.Heartbeat) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case notif, ok := <-ch:
			if !ok {
				c.obs.LogInfo("opcua_subscription_closed", ports.Field{Key: "endpoint", Value: c.cfg.Endpoint})
				return
			}
			if notif == nil {
				continue
			}
			if notif.Error != nil {
				c.obs.LogError("opcua_notification_error", notif.Error, ports.Field{Key: "endpoint", Value: c.cfg.Endpoint})
				continue
			}
			c.processNotification(ctx, notif.Value, out)
		}
	}
}

func (c *Collector) processNotification(ctx context.Context, val interface{}, out chan<- domain.Heartbeat) {
	data, ok := val.(*ua.DataChangeNotification)
	if !ok {
		return
	}

	for _, hb := range c.heartbeats(data) {
		select {
		case <-ctx.Done():
			return
		case out <- hb:
		}
	}
}

// heartbeats keeps the newest good-quality sample per sensor, in the order
// sensors first appear in the notification.
func (c *Collector) heartbeats(data *ua.DataChangeNotification) []domain.Heartbeat {
	var out []domain.Heartbeat
	index := make(map[string]int, len(data.MonitoredItems))
	for _, item := range data.MonitoredItems {
		if item == nil || item.Value == nil {
			continue
		}
		nodeCfg, ok := c.handleMap[item.ClientHandle]
		if !ok {
			continue
		}
		if item.Value.Status != ua.StatusOK {
			c.obs.LogInfo("opcua_bad_status",
				ports.Field{Key: "node_id", Value: nodeCfg.NodeID},
				ports.Field{Key: "sensor_id", Value: nodeCfg.SensorID},
				ports.Field{Key: "status", Value: fmt.Sprint(item.Value.Status)})
			continue
		}

		hb := domain.Heartbeat{SensorID: nodeCfg.SensorID, SeenAt: c.seenAt(item.Value)}
		if i, dup := index[hb.SensorID]; dup {
			if hb.SeenAt.After(out[i].SeenAt) {
				out[i] = hb
			}
			continue
		}
		index[hb.SensorID] = len(out)
		out = append(out, hb)
	}
	return out
}

// seenAt prefers the device clock, then the server clock, then ours.
func (c *Collector) seenAt(v *ua.DataValue) time.Time {
	ts := v.SourceTimestamp
	if ts.IsZero() {
		ts = v.ServerTimestamp
	}
	if ts.IsZero() {
		ts = c.now()
	}
	return ts.UTC()
}

func (c *Collector) buildClientOptions() []opcua.Option {
	opts := []opcua.Option{
		opcua.SecurityModeString(normalizeSecurityMode(c.cfg.SecurityMode)),
		opcua.SecurityPolicy(normalizeSecurityPolicy(c.cfg.SecurityPolicy)),
		opcua.ApplicationName(c.cfg.ApplicationName),
		opcua.AutoReconnect(true),
	}

	if c.cfg.Username != "" {
		opts = append(opts, opcua.AuthUsername(c.cfg.Username, c.cfg.Password))
	} else {
		opts = append(opts, opcua.AuthAnonymous())
	}
	return opts
}

func (c *Collector) cleanupOnError(ctx context.Context, cancel context.CancelFunc, sub *opcua.Subscription, client *opcua.Client) {
	cancel()
	if sub != nil {
		_ = sub.Cancel(ctx)
	}
	if client != nil {
		_ = client.Close(ctx)
	}
}

func normalizeSecurityMode(mode string) string {
	switch strings.ToLower(mode) {
	case "sign":
		return "Sign"
	case "signandencrypt", "signencrypt", "sign_and_encrypt", "sign+encrypt":
		return "SignAndEncrypt"
	default:
		return "None"
	}
}

func normalizeSecurityPolicy(policy string) string {
	if policy == "" {
		return "None"
	}
	return policy
}

var _ ports.HeartbeatCollector = (*Collector)(nil)
