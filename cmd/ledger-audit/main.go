package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"

	ledgermongo "github.com/rxledger/inventory-ledger/internal/infrastructure/mongodb"
	"github.com/rxledger/inventory-ledger/pkg/config"
	"github.com/rxledger/inventory-ledger/pkg/logging"
	"github.com/rxledger/inventory-ledger/pkg/mongodb"
)

// Read-only consistency audit of the inventory items and the transaction ledger.
// Exits 2 when any finding is reported.

const serviceName = "inventory-ledger-audit"

var (
	configPath = flag.String("config", os.Getenv("LEDGER_CONFIG"), "Path to the YAML config file")
	checks     = flag.String("checks", "all", "Checks to run: all, duplicates, records or drift")
	timeout    = flag.Duration("timeout", 2*time.Minute, "Overall timeout")
)

// report is printed as JSON on stdout
type report struct {
	Database            string                           `json:"database"`
	StartedAt           time.Time                        `json:"startedAt"`
	DuplicateItems      []ledgermongo.DuplicateItem      `json:"duplicateItems,omitempty"`
	InconsistentRecords []ledgermongo.InconsistentRecord `json:"inconsistentRecords,omitempty"`
	QuantityDrift       []ledgermongo.QuantityDrift      `json:"quantityDrift,omitempty"`
}

func (r *report) findings() int {
	return len(r.DuplicateItems) + len(r.InconsistentRecords) + len(r.QuantityDrift)
}

// auditor is the subset of ledgermongo.Auditor the CLI drives
type auditor interface {
	DuplicateItems(ctx context.Context) ([]ledgermongo.DuplicateItem, error)
	InconsistentRecords(ctx context.Context) ([]ledgermongo.InconsistentRecord, error)
	QuantityDrift(ctx context.Context) ([]ledgermongo.QuantityDrift, error)
}

func main() {
	flag.Parse()
	_ = godotenv.Load()

	logConfig := logging.DefaultConfig(serviceName)
	// stdout carries the report
	logConfig.Output = os.Stderr
	logger := logging.New(logConfig)

	cfg, err := config.Load(serviceName, *configPath)
	if err != nil {
		logger.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	mongoClient, err := mongodb.NewClient(ctx, cfg.MongoDB)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to MongoDB")
		os.Exit(1)
	}
	defer mongoClient.Close(context.Background())

	r := &report{Database: cfg.MongoDB.Database, StartedAt: time.Now().UTC()}
	if err := runChecks(ctx, ledgermongo.NewAuditor(mongoClient.Database(), nil, logger), *checks, r, logger); err != nil {
		logger.WithError(err).Error("Audit failed")
		os.Exit(1)
	}

	if err := writeReport(os.Stdout, r); err != nil {
		logger.WithError(err).Error("Failed to write report")
		os.Exit(1)
	}
	if r.findings() > 0 {
		os.Exit(2)
	}
}

func runChecks(ctx context.Context, a auditor, selected string, r *report, logger *logging.Logger) error {
	all := selected == "all"
	if !all && selected != "duplicates" && selected != "records" && selected != "drift" {
		return fmt.Errorf("unknown check %q", selected)
	}

	timed := func(name string, fn func() (int, error)) error {
		start := time.Now()
		n, err := fn()
		logger.Performance(ctx, "audit."+name, time.Since(start), err == nil, map[string]any{"findings": n})
		if err != nil {
			return fmt.Errorf("%s check: %w", name, err)
		}
		return nil
	}

	if all || selected == "duplicates" {
		if err := timed("duplicates", func() (n int, err error) {
			r.DuplicateItems, err = a.DuplicateItems(ctx)
			return len(r.DuplicateItems), err
		}); err != nil {
			return err
		}
	}
	if all || selected == "records" {
		if err := timed("records", func() (n int, err error) {
			r.InconsistentRecords, err = a.InconsistentRecords(ctx)
			return len(r.InconsistentRecords), err
		}); err != nil {
			return err
		}
	}
	if all || selected == "drift" {
		if err := timed("drift", func() (n int, err error) {
			r.QuantityDrift, err = a.QuantityDrift(ctx)
			return len(r.QuantityDrift), err
		}); err != nil {
			return err
		}
	}
	return nil
}

func writeReport(w io.Writer, r *report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
