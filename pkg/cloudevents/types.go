package cloudevents

import "time"

// Event types emitted by the inventory ledger
const (
	StockReceived      = "rx.inventory.stock-in"
	StockIssued        = "rx.inventory.stock-out"
	StockAdjusted      = "rx.inventory.adjusted"
	StockTransferred   = "rx.inventory.transferred"
	StocktakeCompleted = "rx.inventory.stocktake-completed"
)

// SourceInventoryLedger is the CloudEvents source of every ledger event
const SourceInventoryLedger = "/rx/inventory-ledger"

// LedgerCloudEvent is a CloudEvents v1.0 envelope
type LedgerCloudEvent struct {
	SpecVersion     string      `json:"specversion"`
	Type            string      `json:"type"`
	Source          string      `json:"source"`
	Subject         string      `json:"subject,omitempty"`
	ID              string      `json:"id"`
	Time            time.Time   `json:"time"`
	DataContentType string      `json:"datacontenttype"`
	Data            interface{} `json:"data"`

	// Extensions
	CorrelationID   string `json:"rxcorrelationid,omitempty"`
	ConsistencyMode string `json:"rxconsistencymode,omitempty"`
}

// StockMovementData is the payload of stock-in, stock-out and adjusted events
type StockMovementData struct {
	TransactionID  string `json:"transactionId"`
	Type           string `json:"type"`
	Reason         string `json:"reason"`
	DrugID         string `json:"drugId"`
	BatchNumber    string `json:"batchNumber,omitempty"`
	LocationID     string `json:"locationId"`
	Quantity       int64  `json:"quantity"`
	QuantityBefore int64  `json:"quantityBefore"`
	QuantityAfter  int64  `json:"quantityAfter"`
	ReferenceType  string `json:"referenceType,omitempty"`
	ReferenceID    string `json:"referenceId,omitempty"`
	PerformedBy    string `json:"performedBy"`
}

// StockTransferredData is the payload of a transferred event
type StockTransferredData struct {
	TransferID       string `json:"transferId"`
	DrugID           string `json:"drugId"`
	FromLocationID   string `json:"fromLocationId"`
	ToLocationID     string `json:"toLocationId"`
	Quantity         int64  `json:"quantity"`
	OutTransactionID string `json:"outTransactionId"`
	InTransactionID  string `json:"inTransactionId"`
	PerformedBy      string `json:"performedBy"`
}

// StocktakeCompletedData summarizes a stocktake run
type StocktakeCompletedData struct {
	StocktakeID       string `json:"stocktakeId"`
	LocationID        string `json:"locationId"`
	TotalItemsCounted int    `json:"totalItemsCounted"`
	ItemsAdjusted     int    `json:"itemsAdjusted"`
	PerformedBy       string `json:"performedBy"`
}
