package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rxledger/inventory-ledger/pkg/kafka"
	"github.com/rxledger/inventory-ledger/pkg/mongodb"
	"github.com/rxledger/inventory-ledger/pkg/outbox"
	"github.com/rxledger/inventory-ledger/pkg/resilience"
	"github.com/rxledger/inventory-ledger/pkg/tracing"
)

// Consistency mode settings accepted in configuration
const (
	ModeAuto       = "auto"
	ModeStrict     = "strict"
	ModeBestEffort = "best-effort"
)

// Config is the process configuration shared by the ledger binaries
type Config struct {
	ServiceName string `yaml:"serviceName"`
	Environment string `yaml:"environment"`
	LogLevel    string `yaml:"logLevel"`

	MongoDB     *mongodb.Config         `yaml:"mongodb"`
	Consistency ConsistencyConfig       `yaml:"consistency"`
	Catalog     CatalogConfig           `yaml:"catalog"`
	Events      EventsConfig            `yaml:"events"`
	Ops         OpsConfig               `yaml:"ops"`
	Tracing     *tracing.Config         `yaml:"tracing"`
	Kafka       *kafka.Config           `yaml:"kafka"`
	Outbox      *outbox.PublisherConfig `yaml:"outbox"`
}

// ConsistencyConfig selects how the consistency mode is resolved at startup
type ConsistencyConfig struct {
	// Mode is auto (probe), strict (probe must pass) or best-effort (skip probe)
	Mode         string        `yaml:"mode"`
	ProbeTimeout time.Duration `yaml:"probeTimeout"`
}

// CatalogConfig configures the drug catalog lookup
type CatalogConfig struct {
	Collection string                           `yaml:"collection"`
	Breaker    *resilience.CircuitBreakerConfig `yaml:"breaker"`
}

// EventsConfig toggles outbox recording of ledger events
type EventsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Topic   string `yaml:"topic"`
}

// OpsConfig configures the health/metrics listener
type OpsConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the configuration used when nothing overrides it
func Default(serviceName string) *Config {
	return &Config{
		ServiceName: serviceName,
		Environment: "development",
		LogLevel:    "info",
		MongoDB:     mongodb.DefaultConfig(),
		Consistency: ConsistencyConfig{
			Mode:         ModeAuto,
			ProbeTimeout: 5 * time.Second,
		},
		Catalog: CatalogConfig{
			Collection: "drugs",
			Breaker:    resilience.DefaultCircuitBreakerConfig("drug-catalog"),
		},
		Events: EventsConfig{
			Enabled: true,
			Topic:   kafka.Topics.InventoryLedger,
		},
		Ops:     OpsConfig{Addr: ":8080"},
		Tracing: tracing.DefaultConfig(serviceName),
		Kafka:   kafka.DefaultConfig(),
		Outbox:  outbox.DefaultPublisherConfig(),
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// path and finally the environment.
func Load(serviceName, path string) (*Config, error) {
	cfg := Default(serviceName)

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Environment = getEnv("ENVIRONMENT", c.Environment)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	c.MongoDB.URI = getEnv("MONGODB_URI", c.MongoDB.URI)
	c.MongoDB.Database = getEnv("MONGODB_DATABASE", c.MongoDB.Database)
	c.MongoDB.ReplicaSet = getEnv("MONGODB_REPLICA_SET", c.MongoDB.ReplicaSet)
	c.MongoDB.Username = getEnv("MONGODB_USERNAME", c.MongoDB.Username)
	c.MongoDB.Password = getEnv("MONGODB_PASSWORD", c.MongoDB.Password)

	c.Consistency.Mode = getEnv("LEDGER_CONSISTENCY_MODE", c.Consistency.Mode)
	c.Catalog.Collection = getEnv("LEDGER_CATALOG_COLLECTION", c.Catalog.Collection)
	c.Events.Enabled = getEnvBool("LEDGER_EVENTS_ENABLED", c.Events.Enabled)
	c.Events.Topic = getEnv("LEDGER_EVENTS_TOPIC", c.Events.Topic)
	c.Ops.Addr = getEnv("OPS_ADDR", c.Ops.Addr)

	c.Tracing.Enabled = getEnvBool("TRACING_ENABLED", c.Tracing.Enabled)
	c.Tracing.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.Tracing.OTLPEndpoint)
	c.Tracing.Environment = c.Environment
	c.Tracing.ServiceName = c.ServiceName

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		c.Kafka.Brokers = strings.Split(brokers, ",")
	}
}

// Validate rejects settings the binaries cannot start with
func (c *Config) Validate() error {
	switch c.Consistency.Mode {
	case ModeAuto, ModeStrict, ModeBestEffort:
	default:
		return fmt.Errorf("invalid consistency mode %q: want %s, %s or %s", c.Consistency.Mode, ModeAuto, ModeStrict, ModeBestEffort)
	}
	if c.MongoDB.URI == "" || c.MongoDB.Database == "" {
		return fmt.Errorf("mongodb uri and database are required")
	}
	if c.Events.Enabled && c.Events.Topic == "" {
		return fmt.Errorf("events topic is required when events are enabled")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
