package application

import (
	"time"

	"github.com/rxledger/inventory-ledger/internal/domain"
)

// Operation names used in logs, metrics, spans and partial failure reports
const (
	OpStockIn   = "stock-in"
	OpStockOut  = "stock-out"
	OpAdjust    = "adjust-stock"
	OpTransfer  = "transfer-stock"
	OpStocktake = "stocktake"
)

// StockInCommand receives quantity units of a catalog drug at a location.
// The item metadata fields are only used when the item does not exist yet,
// except UnitPrice which also reprices an existing item.
type StockInCommand struct {
	DrugID    string `validate:"required"`
	Location  domain.Location
	Quantity  int64
	Reason    domain.Reason     `validate:"omitempty,reason"`
	Reference *domain.Reference `validate:"omitempty"`
	Actor     domain.Actor
	Notes     string

	UnitPrice      *domain.Price
	Unit           string
	ExpiryDate     *time.Time
	ProductionDate *time.Time
	SupplierRef    string
	MinStock       int64 `validate:"gte=0"`
	MaxStock       int64 `validate:"gte=0"`
}

func (c StockInCommand) defaults() domain.ItemDefaults {
	return domain.ItemDefaults{
		Unit:           c.Unit,
		UnitPrice:      c.UnitPrice,
		ExpiryDate:     c.ExpiryDate,
		ProductionDate: c.ProductionDate,
		SupplierRef:    c.SupplierRef,
		MinStock:       c.MinStock,
		MaxStock:       c.MaxStock,
	}
}

// StockOutCommand issues quantity units from an existing item
type StockOutCommand struct {
	DrugID     string `validate:"required"`
	LocationID string `validate:"required"`
	Quantity   int64
	Reason     domain.Reason     `validate:"omitempty,reason"`
	Reference  *domain.Reference `validate:"omitempty"`
	Actor      domain.Actor
	Recipient  string
	Notes      string
}

// AdjustStockCommand sets an item's quantity to an absolute value
type AdjustStockCommand struct {
	DrugID      string `validate:"required"`
	LocationID  string `validate:"required"`
	NewQuantity int64
	Reason      domain.Reason     `validate:"omitempty,reason"`
	Reference   *domain.Reference `validate:"omitempty"`
	Actor       domain.Actor
	Notes       string
}

// TransferStockCommand moves quantity units of a drug between two locations.
// To is used as the destination item's location when it has to be created.
type TransferStockCommand struct {
	DrugID         string `validate:"required"`
	FromLocationID string `validate:"required"`
	To             domain.Location
	Quantity       int64
	Actor          domain.Actor
	Notes          string
}

// StocktakeCount is one counted line of a stocktake
type StocktakeCount struct {
	DrugID         string `validate:"required"`
	ActualQuantity int64
	Notes          string
}

// StocktakeCommand reconciles counted quantities at one location
type StocktakeCommand struct {
	LocationID string           `validate:"required"`
	Counts     []StocktakeCount `validate:"min=1,dive"`
	Actor      domain.Actor
	Notes      string
}
