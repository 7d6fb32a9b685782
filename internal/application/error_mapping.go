package application

import (
	stderrors "errors"
	"strconv"

	"github.com/rxledger/inventory-ledger/internal/domain"
	"github.com/rxledger/inventory-ledger/pkg/errors"
	"github.com/rxledger/inventory-ledger/pkg/resilience"
)

// ToAppError maps a coordinator error to the AppError a transport should return
func ToAppError(err error) *errors.AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := errors.AsAppError(err); ok {
		return appErr
	}

	var (
		partial      *domain.PartialFailureError
		conflict     *domain.ConcurrentModificationError
		invalid      *domain.InvalidQuantityError
		drugMissing  *domain.DrugNotFoundError
		itemMissing  *domain.ItemNotFoundError
		insufficient *domain.InsufficientStockError
		noOp         *domain.NoOpAdjustmentError
	)

	switch {
	case stderrors.As(err, &partial):
		return errors.ErrPartialFailure(partial.Operation, partial.Committed).
			WithDetail("failedStep", partial.Failed).
			Wrap(err)
	case stderrors.As(err, &conflict):
		return errors.ErrConcurrentModification(conflict.Operation).Wrap(err)
	case stderrors.As(err, &invalid):
		return errors.ErrValidationWithFields(invalid.Error(), map[string]string{
			"quantity": strconv.FormatInt(invalid.Quantity, 10),
		}).Wrap(err)
	case stderrors.As(err, &drugMissing):
		return errors.ErrNotFound("drug").WithDetail("drugId", drugMissing.DrugID).Wrap(err)
	case stderrors.As(err, &itemMissing):
		return errors.ErrNotFound("inventory item").
			WithDetail("drugId", itemMissing.DrugID).
			WithDetail("locationId", itemMissing.LocationID).
			Wrap(err)
	case stderrors.As(err, &insufficient):
		return errors.ErrInsufficientStock(insufficient.Required, insufficient.Available).
			WithDetail("drugId", insufficient.DrugID).
			WithDetail("locationId", insufficient.LocationID).
			Wrap(err)
	case stderrors.As(err, &noOp):
		return errors.ErrNoOpAdjustment(noOp.Current, noOp.Attempted).
			WithDetail("drugId", noOp.DrugID).
			WithDetail("locationId", noOp.LocationID).
			Wrap(err)
	case stderrors.Is(err, resilience.ErrCircuitOpen):
		return errors.ErrServiceUnavailable("drug catalog").Wrap(err)
	}

	return errors.ErrInternal("").Wrap(err)
}
