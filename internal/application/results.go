package application

import "github.com/rxledger/inventory-ledger/internal/domain"

// Delta is an item's quantity before and after an operation
type Delta struct {
	OldQuantity int64 `json:"oldQuantity"`
	NewQuantity int64 `json:"newQuantity"`
}

// Change is the signed quantity change
func (d Delta) Change() int64 {
	return d.NewQuantity - d.OldQuantity
}

// StockResult is returned by StockIn, StockOut and AdjustStock
type StockResult struct {
	Item        *domain.InventoryItem     `json:"item"`
	Transaction *domain.TransactionRecord `json:"transaction"`
	Delta       Delta                     `json:"delta"`
}

// TransferResult carries both items and the three linked records of a transfer
type TransferResult struct {
	TransferID          string                    `json:"transferId"`
	FromItem            *domain.InventoryItem     `json:"fromItem"`
	ToItem              *domain.InventoryItem     `json:"toItem"`
	TransferTransaction *domain.TransactionRecord `json:"transferTransaction"`
	OutTransaction      *domain.TransactionRecord `json:"outTransaction"`
	InTransaction       *domain.TransactionRecord `json:"inTransaction"`
}

// StocktakeLine is the outcome of one counted line. Err is set when the line
// was rejected; the other lines are unaffected.
type StocktakeLine struct {
	DrugID      string                    `json:"drugId"`
	Before      int64                     `json:"before"`
	After       int64                     `json:"after"`
	Difference  int64                     `json:"difference"`
	Adjusted    bool                      `json:"adjusted"`
	Transaction *domain.TransactionRecord `json:"transaction,omitempty"`
	Err         error                     `json:"-"`
}

// StocktakeResult summarizes a stocktake run
type StocktakeResult struct {
	StocktakeID       string          `json:"stocktakeId"`
	LocationID        string          `json:"locationId"`
	TotalItemsCounted int             `json:"totalItemsCounted"`
	ItemsAdjusted     int             `json:"itemsAdjusted"`
	Lines             []StocktakeLine `json:"lines"`
}

// Failed returns the lines that were rejected
func (r *StocktakeResult) Failed() []StocktakeLine {
	var out []StocktakeLine
	for _, line := range r.Lines {
		if line.Err != nil {
			out = append(out, line)
		}
	}
	return out
}
