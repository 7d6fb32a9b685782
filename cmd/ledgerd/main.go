package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/rxledger/inventory-ledger/internal/application"
	"github.com/rxledger/inventory-ledger/internal/consistency"
	"github.com/rxledger/inventory-ledger/internal/domain"
	ledgermongo "github.com/rxledger/inventory-ledger/internal/infrastructure/mongodb"
	"github.com/rxledger/inventory-ledger/pkg/config"
	"github.com/rxledger/inventory-ledger/pkg/logging"
	"github.com/rxledger/inventory-ledger/pkg/metrics"
	"github.com/rxledger/inventory-ledger/pkg/mongodb"
	outboxmongo "github.com/rxledger/inventory-ledger/pkg/outbox/mongodb"
	"github.com/rxledger/inventory-ledger/pkg/tracing"
)

const serviceName = "inventory-ledger"

func main() {
	// .env is optional
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

	logger.Info("Starting inventory ledger", "consistencySetting", cfg.Consistency.Mode)
	ctx := context.Background()

	tracerProvider, err := tracing.Initialize(ctx, cfg.Tracing)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize tracing")
		// Continue without tracing
	} else if tracerProvider != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
				logger.WithError(err).Error("Failed to shutdown tracer")
			}
		}()
		logger.Info("Tracing initialized", "endpoint", cfg.Tracing.OTLPEndpoint)
	}

	m := metrics.New(metrics.DefaultConfig(serviceName))

	mongoClient, err := mongodb.NewClient(ctx, cfg.MongoDB)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to MongoDB")
		os.Exit(1)
	}
	defer mongoClient.Close(context.Background())
	logger.Info("Connected to MongoDB", "database", cfg.MongoDB.Database)

	db := mongoClient.Database()

	setting, err := consistency.ParseSetting(cfg.Consistency.Mode)
	if err != nil {
		logger.WithError(err).Error("Invalid consistency setting")
		os.Exit(1)
	}
	selector := consistency.NewSelector(ledgermongo.NewTransactionProber(db), setting, cfg.Consistency.ProbeTimeout, logger)
	mode, err := selector.Select(ctx)
	if err != nil {
		logger.WithError(err).Error("Failed to resolve consistency mode")
		os.Exit(1)
	}
	m.SetConsistencyMode(mode.String(), consistency.Strings()...)

	var uow consistency.UnitOfWork
	if mode == consistency.Strict {
		uow = ledgermongo.NewTransactionalUnitOfWork(mongoClient.Client(), m, logger)
	} else {
		uow = consistency.NewSequentialUnitOfWork(logger)
	}

	store := ledgermongo.NewInventoryStore(db, m, logger)
	ledger := ledgermongo.NewTransactionLedger(db, m, logger)
	outboxRepo := outboxmongo.NewOutboxRepository(db, m, logger)

	indexCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	for name, ensure := range map[string]func(context.Context) error{
		"inventory items": store.EnsureIndexes,
		"transactions":    ledger.EnsureIndexes,
		"outbox":          outboxRepo.EnsureIndexes,
	} {
		if err := ensure(indexCtx); err != nil {
			cancel()
			logger.WithError(err).Error("Failed to ensure indexes", "collection", name)
			os.Exit(1)
		}
	}
	cancel()
	logger.Info("Indexes ensured")

	catalog := application.NewGuardedCatalog(
		ledgermongo.NewDrugCatalog(db, cfg.Catalog.Collection, m, logger),
		cfg.Catalog.Breaker, m, logger,
	)

	opts := []application.Option{application.WithMetrics(m)}
	if cfg.Events.Enabled {
		opts = append(opts, application.WithEventRecorder(
			ledgermongo.NewOutboxEventRecorder(outboxRepo, cfg.Events.Topic, mode.String()),
		))
	}
	coordinator := application.NewStockCoordinator(store, ledger, catalog, uow, logger, opts...)
	logger.Info("Stock coordinator ready", "mode", coordinator.Mode(), "eventsEnabled", cfg.Events.Enabled)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := newOpsRouter(opsDeps{
		serviceName:  serviceName,
		logger:       logger,
		mode:         coordinator.Mode,
		probeErr:     selector.ProbeError,
		catalogState: catalog.State,
		ready: func(ctx context.Context) error {
			return mongoClient.HealthCheck(ctx)
		},
		metrics: m.Handler(),
	})

	srv := &http.Server{
		Addr:         cfg.Ops.Addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Ops server error")
		}
	}()
	logger.Info("Ops server started", "addr", cfg.Ops.Addr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Ops server forced to shutdown")
	}

	logger.Info("Stopped")
}

// compile-time checks of the adapters wired above
var (
	_ domain.InventoryStore    = (*ledgermongo.InventoryStore)(nil)
	_ domain.TransactionLedger = (*ledgermongo.TransactionLedger)(nil)
	_ domain.DrugCatalog       = (*application.GuardedCatalog)(nil)
	_ domain.EventRecorder     = (*ledgermongo.OutboxEventRecorder)(nil)
	_ consistency.Prober       = (*ledgermongo.TransactionProber)(nil)
	_ consistency.UnitOfWork   = (*ledgermongo.TransactionalUnitOfWork)(nil)
)
