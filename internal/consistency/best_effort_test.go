package consistency

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rxledger/inventory-ledger/internal/domain"
	"github.com/rxledger/inventory-ledger/pkg/logging"
)

func TestSequentialUnitOfWork_AllStepsCommit(t *testing.T) {
	uow := NewSequentialUnitOfWork(logging.NewNop())
	var ran []string

	err := uow.Execute(context.Background(), "transfer-stock", func(ctx context.Context, scope Scope) error {
		for _, name := range []string{"update item D1@WH1", "append out record D1@WH1"} {
			if err := scope.Step(ctx, name, func(ctx context.Context) error {
				ran = append(ran, name)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"update item D1@WH1", "append out record D1@WH1"}, ran)
	assert.Equal(t, BestEffort, uow.Mode())
}

func TestSequentialUnitOfWork_FailureAfterCommitIsPartial(t *testing.T) {
	uow := NewSequentialUnitOfWork(logging.NewNop())
	cause := errors.New("connection reset")

	err := uow.Execute(context.Background(), "transfer-stock", func(ctx context.Context, scope Scope) error {
		if err := scope.Step(ctx, "update item D1@WH1", func(ctx context.Context) error { return nil }); err != nil {
			return err
		}
		if err := scope.Step(ctx, "append out record D1@WH1", func(ctx context.Context) error { return nil }); err != nil {
			return err
		}
		return scope.Step(ctx, "create item D1@WH2", func(ctx context.Context) error { return cause })
	})

	var partial *domain.PartialFailureError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, "transfer-stock", partial.Operation)
	assert.Equal(t, []string{"update item D1@WH1", "append out record D1@WH1"}, partial.Committed)
	assert.Equal(t, "create item D1@WH2", partial.Failed)
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, domain.ErrPartialFailure)
}

func TestSequentialUnitOfWork_FailureBeforeCommitIsReturnedAsIs(t *testing.T) {
	uow := NewSequentialUnitOfWork(logging.NewNop())
	insufficient := &domain.InsufficientStockError{DrugID: "D1", LocationID: "WH1", Required: 5, Available: 1}

	err := uow.Execute(context.Background(), "stock-out", func(ctx context.Context, scope Scope) error {
		return insufficient
	})

	assert.Same(t, insufficient, err)
	assert.NotErrorIs(t, err, domain.ErrPartialFailure)
}

func TestSequentialUnitOfWork_FirstStepFailureIsNotPartial(t *testing.T) {
	uow := NewSequentialUnitOfWork(logging.NewNop())
	cause := errors.New("not primary")

	err := uow.Execute(context.Background(), "stock-in", func(ctx context.Context, scope Scope) error {
		return scope.Step(ctx, "create item D1@WH1", func(ctx context.Context) error { return cause })
	})

	assert.Equal(t, cause, err)
}
