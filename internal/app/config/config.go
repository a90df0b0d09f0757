package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ghalamif/sensorwatch/internal/adapters/opcua"
	"github.com/ghalamif/sensorwatch/internal/app/render"
	"github.com/ghalamif/sensorwatch/internal/ports"
)

type Config struct {
	Freshness FreshnessConfig `yaml:"freshness"`
	Store     StoreConfig     `yaml:"store"`
	Chat      ChatConfig      `yaml:"chat"`
	HTTP      HTTPConfig      `yaml:"http"`
	Log       LogConfig       `yaml:"log"`
	Ingest    IngestConfig    `yaml:"ingest"`
}

type FreshnessConfig struct {
	ThresholdDays *int `yaml:"threshold_days"`
}

// Days returns the configured threshold; defaults are applied by Load.
func (f FreshnessConfig) Days() int {
	if f.ThresholdDays == nil {
		return DefaultThresholdDays
	}
	return *f.ThresholdDays
}

type StoreConfig struct {
	Driver     string `yaml:"driver"`
	ConnString string `yaml:"conn_string"`
	Name       string `yaml:"name"`
	Region     string `yaml:"region"`
	Endpoint   string `yaml:"endpoint"`
}

type ChatConfig struct {
	DefaultLocale   string `yaml:"default_locale"`
	MaxListed       int    `yaml:"max_listed"`
	SensorIDPattern string `yaml:"sensor_id_pattern"`
}

type HTTPConfig struct {
	Addr           string        `yaml:"addr"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type IngestConfig struct {
	Policy ports.Policy `yaml:"policy"`
	OPCUA  opcua.Config `yaml:"opcua"`
}

// Enabled reports whether a heartbeat source is configured.
func (i IngestConfig) Enabled() bool { return i.OPCUA.Endpoint != "" }

const (
	DefaultThresholdDays = 2

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverDynamoDB = "dynamodb"
)

// Load reads YAML from path (skipped when empty), applies environment
// overrides, then defaults, then validates.
func Load(path string) (*Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (*Config, error) {
	var cfg Config
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("FRESHNESS_THRESHOLD_DAYS"); ok && v != "" {
		days, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FRESHNESS_THRESHOLD_DAYS: %w", err)
		}
		c.Freshness.ThresholdDays = &days
	}
	strs := []struct {
		key string
		dst *string
	}{
		{"STORE_DRIVER", &c.Store.Driver},
		{"STORE_CONNECTION_STRING", &c.Store.ConnString},
		{"STORE_NAME", &c.Store.Name},
		{"STORE_REGION", &c.Store.Region},
		{"STORE_ENDPOINT", &c.Store.Endpoint},
		{"HTTP_ADDR", &c.HTTP.Addr},
		{"LOG_LEVEL", &c.Log.Level},
		{"CHAT_DEFAULT_LOCALE", &c.Chat.DefaultLocale},
	}
	for _, s := range strs {
		if v, ok := lookup(s.key); ok && v != "" {
			*s.dst = v
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Freshness.ThresholdDays == nil {
		days := DefaultThresholdDays
		c.Freshness.ThresholdDays = &days
	}
	if c.Store.Driver == "" {
		c.Store.Driver = DriverPostgres
	}
	if c.Store.Name == "" {
		c.Store.Name = "sensors"
	}
	if c.Chat.DefaultLocale == "" {
		c.Chat.DefaultLocale = string(render.French)
	}
	if c.Chat.MaxListed == 0 {
		c.Chat.MaxListed = render.DefaultMaxListed
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.HTTP.RequestTimeout == 0 {
		c.HTTP.RequestTimeout = 10 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Ingest.Policy.MaxQueueLen == 0 {
		c.Ingest.Policy.MaxQueueLen = 10_000
	}
	if c.Ingest.Policy.MaxBatchSize == 0 {
		c.Ingest.Policy.MaxBatchSize = 500
	}
	if c.Ingest.Policy.IdleSleep == 0 {
		c.Ingest.Policy.IdleSleep = 50 * time.Millisecond
	}
	if c.Ingest.Policy.OnQueueFull == "" {
		c.Ingest.Policy.OnQueueFull = "block"
	}

	if c.Ingest.Enabled() {
		c.Ingest.OPCUA.ApplyDefaults()
	}
}

func (c *Config) validate() error {
	if c.Freshness.Days() < 0 {
		return fmt.Errorf("freshness.threshold_days must be >= 0")
	}
	switch c.Store.Driver {
	case DriverPostgres, DriverSQLite:
		if c.Store.ConnString == "" {
			return fmt.Errorf("store.conn_string is required for driver %s", c.Store.Driver)
		}
		if !validIdent.MatchString(c.Store.Name) {
			return fmt.Errorf("store.name %q is not a valid table name", c.Store.Name)
		}
	case DriverDynamoDB:
	default:
		return fmt.Errorf("store.driver %q is not supported", c.Store.Driver)
	}
	if !render.Supported(c.Chat.DefaultLocale) {
		return fmt.Errorf("chat.default_locale %q is not supported", c.Chat.DefaultLocale)
	}
	if c.Chat.MaxListed < 0 {
		return fmt.Errorf("chat.max_listed must be >= 0")
	}
	if c.Chat.SensorIDPattern != "" {
		if _, err := regexp.Compile(c.Chat.SensorIDPattern); err != nil {
			return fmt.Errorf("chat.sensor_id_pattern: %w", err)
		}
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not supported", c.Log.Level)
	}
	switch c.Ingest.Policy.OnQueueFull {
	case "block", "drop":
	default:
		return fmt.Errorf("ingest.policy.on_queue_full %q is not supported", c.Ingest.Policy.OnQueueFull)
	}
	if c.Ingest.Enabled() {
		if err := c.Ingest.OPCUA.Validate(); err != nil {
			return fmt.Errorf("opcua config: %w", err)
		}
	}
	return nil
}

var validIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
