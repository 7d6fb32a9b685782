package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("inventory-ledger", "")
	require.NoError(t, err)

	assert.Equal(t, "inventory-ledger", cfg.ServiceName)
	assert.Equal(t, ModeAuto, cfg.Consistency.Mode)
	assert.Equal(t, 5*time.Second, cfg.Consistency.ProbeTimeout)
	assert.Equal(t, "drugs", cfg.Catalog.Collection)
	assert.Equal(t, "drug-catalog", cfg.Catalog.Breaker.Name)
	assert.True(t, cfg.Events.Enabled)
	assert.Equal(t, "rx.inventory.ledger", cfg.Events.Topic)
	assert.Equal(t, ":8080", cfg.Ops.Addr)
	assert.False(t, cfg.Tracing.Enabled)
	assert.Equal(t, "inventory-ledger", cfg.Tracing.ServiceName)
}

func TestLoad_FileThenEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
logLevel: debug
mongodb:
  uri: mongodb://mongo-0:27017
  database: pharmacy
  replicaSet: rs0
consistency:
  mode: strict
  probeTimeout: 2s
catalog:
  collection: drug_catalog
  breaker:
    name: catalog
    failureThreshold: 3
events:
  enabled: false
outbox:
  pollInterval: 250ms
  batchSize: 20
`), 0o600))

	t.Setenv("MONGODB_DATABASE", "pharmacy_test")
	t.Setenv("KAFKA_BROKERS", "kafka-0:9092,kafka-1:9092")
	t.Setenv("TRACING_ENABLED", "true")

	cfg, err := Load("inventory-ledger", path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "mongodb://mongo-0:27017", cfg.MongoDB.URI)
	assert.Equal(t, "pharmacy_test", cfg.MongoDB.Database)
	assert.Equal(t, "rs0", cfg.MongoDB.ReplicaSet)
	assert.Equal(t, ModeStrict, cfg.Consistency.Mode)
	assert.Equal(t, 2*time.Second, cfg.Consistency.ProbeTimeout)
	assert.Equal(t, "drug_catalog", cfg.Catalog.Collection)
	assert.Equal(t, uint32(3), cfg.Catalog.Breaker.FailureThreshold)
	assert.False(t, cfg.Events.Enabled)
	assert.Equal(t, 250*time.Millisecond, cfg.Outbox.PollInterval)
	assert.Equal(t, 20, cfg.Outbox.BatchSize)
	assert.Equal(t, []string{"kafka-0:9092", "kafka-1:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Tracing.Enabled)
}

func TestLoad_Invalid(t *testing.T) {
	t.Run("unknown mode", func(t *testing.T) {
		t.Setenv("LEDGER_CONSISTENCY_MODE", "eventual")
		_, err := Load("inventory-ledger", "")
		assert.ErrorContains(t, err, `invalid consistency mode "eventual"`)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load("inventory-ledger", filepath.Join(t.TempDir(), "absent.yaml"))
		assert.ErrorContains(t, err, "failed to read config file")
	})

	t.Run("malformed file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("consistency: [strict"), 0o600))
		_, err := Load("inventory-ledger", path)
		assert.ErrorContains(t, err, "failed to parse config file")
	})

	t.Run("events without topic", func(t *testing.T) {
		cfg := Default("inventory-ledger")
		cfg.Events.Topic = ""
		assert.Error(t, cfg.Validate())
	})
}
