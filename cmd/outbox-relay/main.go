package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/rxledger/inventory-ledger/pkg/config"
	"github.com/rxledger/inventory-ledger/pkg/kafka"
	"github.com/rxledger/inventory-ledger/pkg/logging"
	"github.com/rxledger/inventory-ledger/pkg/metrics"
	"github.com/rxledger/inventory-ledger/pkg/mongodb"
	"github.com/rxledger/inventory-ledger/pkg/outbox"
	outboxmongo "github.com/rxledger/inventory-ledger/pkg/outbox/mongodb"
	"github.com/rxledger/inventory-ledger/pkg/tracing"
)

const serviceName = "inventory-ledger-outbox-relay"

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(serviceName, os.Getenv("LEDGER_CONFIG"))
	if err != nil {
		logging.New(logging.DefaultConfig(serviceName)).WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	logConfig := logging.DefaultConfig(serviceName)
	logConfig.Level = logging.ParseLevel(cfg.LogLevel)
	logConfig.Environment = cfg.Environment
	logger := logging.New(logConfig)
	logger.SetDefault()

	logger.Info("Starting outbox relay", "brokers", cfg.Kafka.Brokers)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracerProvider, err := tracing.Initialize(ctx, cfg.Tracing)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize tracing")
	} else if tracerProvider != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
				logger.WithError(err).Error("Failed to shutdown tracer")
			}
		}()
	}

	m := metrics.New(metrics.DefaultConfig(serviceName))

	mongoClient, err := mongodb.NewClient(ctx, cfg.MongoDB)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to MongoDB")
		os.Exit(1)
	}
	defer mongoClient.Close(context.Background())

	repo := outboxmongo.NewOutboxRepository(mongoClient.Database(), m, logger)
	if err := repo.EnsureIndexes(ctx); err != nil {
		logger.WithError(err).Warn("Failed to ensure outbox indexes")
	}

	producer := kafka.NewProducer(cfg.Kafka, m, logger)
	defer producer.Close()

	publisher := outbox.NewPublisher(repo, producer, logger, m, cfg.Outbox)
	if err := publisher.Start(ctx); err != nil {
		logger.WithError(err).Error("Failed to start outbox publisher")
		os.Exit(1)
	}

	// metrics only; the relay has no other endpoints
	srv := &http.Server{Addr: cfg.Ops.Addr, Handler: m.Handler(), ReadTimeout: 10 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Metrics server error")
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down outbox relay...")

	if err := publisher.Stop(); err != nil {
		logger.WithError(err).Warn("Outbox publisher stop")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	logger.Info("Outbox relay stopped", "stats", publisher.Stats())
}
