package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the ledger's prometheus collectors
type Metrics struct {
	serviceName string
	registry    *prometheus.Registry

	// Stock operation metrics
	StockOperations        *prometheus.CounterVec
	StockOperationDuration *prometheus.HistogramVec
	StockQuantityMoved     *prometheus.CounterVec
	PartialFailures        *prometheus.CounterVec
	ConsistencyMode        *prometheus.GaugeVec

	// MongoDB metrics
	MongoDBOperations        *prometheus.CounterVec
	MongoDBOperationDuration *prometheus.HistogramVec
	MongoDBTransactions      *prometheus.CounterVec

	// Outbox / Kafka metrics
	OutboxPublished      *prometheus.CounterVec
	OutboxRetries        *prometheus.CounterVec
	OutboxPending        prometheus.Gauge
	KafkaPublishDuration *prometheus.HistogramVec

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec
}

// Config holds metrics configuration
type Config struct {
	ServiceName string
	Namespace   string
}

// DefaultConfig returns default metrics configuration
func DefaultConfig(serviceName string) *Config {
	return &Config{
		ServiceName: serviceName,
		Namespace:   "rx",
	}
}

// New creates a new Metrics instance on a private registry
func New(config *Config) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		serviceName: config.ServiceName,
		registry:    registry,
	}

	m.StockOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "ledger_stock_operations_total",
			Help:      "Total number of stock operations by outcome",
		},
		[]string{"service", "operation", "mode", "status"},
	)

	m.StockOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "ledger_stock_operation_duration_seconds",
			Help:      "Stock operation duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"service", "operation", "mode"},
	)

	m.StockQuantityMoved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "ledger_quantity_moved_total",
			Help:      "Units moved through the ledger by transaction type",
		},
		[]string{"service", "type"},
	)

	m.PartialFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "ledger_partial_failures_total",
			Help:      "Best-effort operations that were only partially applied",
		},
		[]string{"service", "operation"},
	)

	m.ConsistencyMode = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: config.Namespace,
			Name:      "ledger_consistency_mode",
			Help:      "Active consistency mode (1 for the active mode label)",
		},
		[]string{"service", "mode"},
	)

	m.MongoDBOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "mongodb_operations_total",
			Help:      "Total number of MongoDB operations",
		},
		[]string{"service", "collection", "operation", "status"},
	)

	m.MongoDBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "mongodb_operation_duration_seconds",
			Help:      "MongoDB operation duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"service", "collection", "operation"},
	)

	m.MongoDBTransactions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "mongodb_transactions_total",
			Help:      "MongoDB transactions by outcome (committed, aborted, conflict)",
		},
		[]string{"service", "outcome"},
	)

	m.OutboxPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "outbox_events_published_total",
			Help:      "Outbox events relayed to Kafka",
		},
		[]string{"service", "event_type", "status"},
	)

	m.OutboxRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "outbox_event_retries_total",
			Help:      "Outbox publish retries",
		},
		[]string{"service", "event_type"},
	)

	m.OutboxPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Name:        "outbox_events_pending",
			Help:        "Unpublished outbox events seen by the last poll",
			ConstLabels: prometheus.Labels{"service": config.ServiceName},
		},
	)

	m.KafkaPublishDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "kafka_publish_duration_seconds",
			Help:      "Kafka publish duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"service", "topic"},
	)

	m.CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: config.Namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"service", "name"},
	)

	registry.MustRegister(
		m.StockOperations,
		m.StockOperationDuration,
		m.StockQuantityMoved,
		m.PartialFailures,
		m.ConsistencyMode,
		m.MongoDBOperations,
		m.MongoDBOperationDuration,
		m.MongoDBTransactions,
		m.OutboxPublished,
		m.OutboxRetries,
		m.OutboxPending,
		m.KafkaPublishDuration,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordStockOperation records the outcome and latency of a stock operation
func (m *Metrics) RecordStockOperation(operation, mode string, success bool, duration time.Duration) {
	m.StockOperations.WithLabelValues(m.serviceName, operation, mode, status(success)).Inc()
	m.StockOperationDuration.WithLabelValues(m.serviceName, operation, mode).Observe(duration.Seconds())
}

// RecordQuantityMoved adds the magnitude of a ledger entry
func (m *Metrics) RecordQuantityMoved(transactionType string, quantity int64) {
	m.StockQuantityMoved.WithLabelValues(m.serviceName, transactionType).Add(float64(quantity))
}

// RecordPartialFailure counts an operation that left partial state behind
func (m *Metrics) RecordPartialFailure(operation string) {
	m.PartialFailures.WithLabelValues(m.serviceName, operation).Inc()
}

// SetConsistencyMode flags the active mode and clears the others
func (m *Metrics) SetConsistencyMode(active string, all ...string) {
	for _, mode := range all {
		m.ConsistencyMode.WithLabelValues(m.serviceName, mode).Set(0)
	}
	m.ConsistencyMode.WithLabelValues(m.serviceName, active).Set(1)
}

// RecordMongoDBOperation records a MongoDB operation
func (m *Metrics) RecordMongoDBOperation(collection, operation string, success bool, duration time.Duration) {
	m.MongoDBOperations.WithLabelValues(m.serviceName, collection, operation, status(success)).Inc()
	m.MongoDBOperationDuration.WithLabelValues(m.serviceName, collection, operation).Observe(duration.Seconds())
}

// RecordMongoDBTransaction records a transaction outcome
func (m *Metrics) RecordMongoDBTransaction(outcome string) {
	m.MongoDBTransactions.WithLabelValues(m.serviceName, outcome).Inc()
}

// RecordOutboxPublish records an outbox relay attempt
func (m *Metrics) RecordOutboxPublish(eventType string, success bool, duration time.Duration) {
	m.OutboxPublished.WithLabelValues(m.serviceName, eventType, status(success)).Inc()
}

// RecordOutboxRetry records an outbox retry
func (m *Metrics) RecordOutboxRetry(eventType string) {
	m.OutboxRetries.WithLabelValues(m.serviceName, eventType).Inc()
}

// SetOutboxPending sets the number of pending outbox events
func (m *Metrics) SetOutboxPending(count int) {
	m.OutboxPending.Set(float64(count))
}

// RecordKafkaPublish records a Kafka publish latency
func (m *Metrics) RecordKafkaPublish(topic string, duration time.Duration) {
	m.KafkaPublishDuration.WithLabelValues(m.serviceName, topic).Observe(duration.Seconds())
}

// SetCircuitBreakerState sets the circuit breaker state
func (m *Metrics) SetCircuitBreakerState(name string, state int) {
	m.CircuitBreakerState.WithLabelValues(m.serviceName, name).Set(float64(state))
}
