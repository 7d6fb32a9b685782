package domain

import (
	"time"

	"github.com/rxledger/inventory-ledger/pkg/cloudevents"
)

// DomainEvent is a fact about the ledger published after the write that produced it
type DomainEvent interface {
	EventType() string
	OccurredAt() time.Time
	AggregateID() string
}

// StockMovedEvent is raised for every in, out, adjustment and stocktake record
type StockMovedEvent struct {
	Record *TransactionRecord `json:"record"`
}

func (e *StockMovedEvent) EventType() string {
	switch e.Record.Type {
	case TransactionIn:
		return cloudevents.StockReceived
	case TransactionOut:
		return cloudevents.StockIssued
	default:
		return cloudevents.StockAdjusted
	}
}

func (e *StockMovedEvent) OccurredAt() time.Time { return e.Record.CreatedAt }

func (e *StockMovedEvent) AggregateID() string {
	return ItemKey(e.Record.DrugID, e.Record.Location.LocationID)
}

// StockTransferredEvent is raised once per completed transfer
type StockTransferredEvent struct {
	TransferID       string    `json:"transferId"`
	DrugID           string    `json:"drugId"`
	FromLocationID   string    `json:"fromLocationId"`
	ToLocationID     string    `json:"toLocationId"`
	Quantity         int64     `json:"quantity"`
	OutTransactionID string    `json:"outTransactionId"`
	InTransactionID  string    `json:"inTransactionId"`
	PerformedBy      string    `json:"performedBy"`
	At               time.Time `json:"at"`
}

func (e *StockTransferredEvent) EventType() string     { return cloudevents.StockTransferred }
func (e *StockTransferredEvent) OccurredAt() time.Time { return e.At }
func (e *StockTransferredEvent) AggregateID() string   { return e.TransferID }

// StocktakeCompletedEvent summarizes a stocktake run
type StocktakeCompletedEvent struct {
	StocktakeID       string    `json:"stocktakeId"`
	LocationID        string    `json:"locationId"`
	TotalItemsCounted int       `json:"totalItemsCounted"`
	ItemsAdjusted     int       `json:"itemsAdjusted"`
	PerformedBy       string    `json:"performedBy"`
	At                time.Time `json:"at"`
}

func (e *StocktakeCompletedEvent) EventType() string     { return cloudevents.StocktakeCompleted }
func (e *StocktakeCompletedEvent) OccurredAt() time.Time { return e.At }
func (e *StocktakeCompletedEvent) AggregateID() string   { return e.StocktakeID }

// ItemKey renders the (drug, location) key of an inventory item
func ItemKey(drugID, locationID string) string {
	return drugID + "@" + locationID
}
