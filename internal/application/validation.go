package application

import (
	"github.com/go-playground/validator/v10"

	"github.com/rxledger/inventory-ledger/internal/domain"
	"github.com/rxledger/inventory-ledger/pkg/errors"
)

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("reason", func(fl validator.FieldLevel) bool {
		return domain.Reason(fl.Field().String()).IsValid()
	})
	return v
}

// validateCommand returns a VALIDATION_ERROR AppError naming each bad field
func (c *StockCoordinator) validateCommand(cmd interface{}) error {
	if err := c.validate.Struct(cmd); err != nil {
		return errors.FromValidationErrors(err)
	}
	return nil
}

func positiveQuantity(quantity int64, what string) error {
	if quantity <= 0 {
		return &domain.InvalidQuantityError{Quantity: quantity, Reason: what + " quantity must be positive"}
	}
	return nil
}
