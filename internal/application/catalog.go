package application

import (
	"context"
	stderrors "errors"

	"github.com/sony/gobreaker"

	"github.com/rxledger/inventory-ledger/internal/domain"
	"github.com/rxledger/inventory-ledger/pkg/logging"
	"github.com/rxledger/inventory-ledger/pkg/metrics"
	"github.com/rxledger/inventory-ledger/pkg/resilience"
)

// GuardedCatalog wraps a DrugCatalog in a circuit breaker. An unknown drug is
// an answer, not a failure, and does not count against the breaker.
type GuardedCatalog struct {
	catalog domain.DrugCatalog
	breaker *resilience.CircuitBreaker
}

// NewGuardedCatalog creates a breaker-protected catalog. metrics may be nil.
func NewGuardedCatalog(catalog domain.DrugCatalog, config *resilience.CircuitBreakerConfig, m *metrics.Metrics, logger *logging.Logger) *GuardedCatalog {
	if config == nil {
		config = resilience.DefaultCircuitBreakerConfig("drug-catalog")
	}

	var observers []resilience.StateObserver
	if m != nil {
		observers = append(observers, func(name string, state gobreaker.State) {
			m.SetCircuitBreakerState(name, int(state))
		})
	}

	isFailure := func(err error) bool {
		return !stderrors.Is(err, domain.ErrDrugNotFound)
	}

	return &GuardedCatalog{
		catalog: catalog,
		breaker: resilience.NewCircuitBreaker(config, logger.Logger, isFailure, observers...),
	}
}

// GetDrug looks the drug up through the breaker
func (g *GuardedCatalog) GetDrug(ctx context.Context, drugID string) (*domain.Drug, error) {
	result, err := g.breaker.Execute(ctx, func() (interface{}, error) {
		return g.catalog.GetDrug(ctx, drugID)
	})
	if err != nil {
		return nil, err
	}
	return result.(*domain.Drug), nil
}

// State reports the breaker state
func (g *GuardedCatalog) State() gobreaker.State {
	return g.breaker.State()
}
