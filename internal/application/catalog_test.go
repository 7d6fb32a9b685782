package application

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rxledger/inventory-ledger/internal/domain"
	"github.com/rxledger/inventory-ledger/pkg/logging"
	"github.com/rxledger/inventory-ledger/pkg/resilience"
)

func breakerConfig() *resilience.CircuitBreakerConfig {
	return &resilience.CircuitBreakerConfig{
		Name:                  "drug-catalog-test",
		MaxRequests:           1,
		Timeout:               time.Minute,
		FailureThreshold:      3,
		FailureRatioThreshold: 1,
		MinRequestsToTrip:     100,
	}
}

func TestGuardedCatalog_UnknownDrugDoesNotTrip(t *testing.T) {
	catalog := &memoryCatalog{drugs: map[string]*domain.Drug{"D1": {ID: "D1", Name: "Amoxicillin 500mg"}}}
	guarded := NewGuardedCatalog(catalog, breakerConfig(), nil, logging.NewNop())
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := guarded.GetDrug(ctx, "D404")
		require.ErrorIs(t, err, domain.ErrDrugNotFound)
	}
	assert.Equal(t, gobreaker.StateClosed, guarded.State())

	drug, err := guarded.GetDrug(ctx, "D1")
	require.NoError(t, err)
	assert.Equal(t, "Amoxicillin 500mg", drug.Name)
}

func TestGuardedCatalog_OpensOnStorageErrors(t *testing.T) {
	catalog := &memoryCatalog{err: stderrors.New("connection refused")}
	guarded := NewGuardedCatalog(catalog, breakerConfig(), nil, logging.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := guarded.GetDrug(ctx, "D1")
		require.Error(t, err)
		assert.NotErrorIs(t, err, resilience.ErrCircuitOpen)
	}
	assert.Equal(t, gobreaker.StateOpen, guarded.State())

	_, err := guarded.GetDrug(ctx, "D1")
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, 3, catalog.calls)
	assert.Equal(t, "SERVICE_UNAVAILABLE", ToAppError(err).Code)
}
