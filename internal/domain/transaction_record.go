package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TransactionRecord is one immutable ledger entry. Records are inserted once
// and never updated.
type TransactionRecord struct {
	ID                  string          `bson:"_id" json:"id"`
	Type                TransactionType `bson:"type" json:"type"`
	DrugID              string          `bson:"drugId" json:"drugId"`
	DrugName            string          `bson:"drugName" json:"drugName"`
	BatchNumber         string          `bson:"batchNumber" json:"batchNumber"`
	Quantity            int64           `bson:"quantity" json:"quantity"`
	QuantityBefore      int64           `bson:"quantityBefore" json:"quantityBefore"`
	QuantityAfter       int64           `bson:"quantityAfter" json:"quantityAfter"`
	Reason              Reason          `bson:"reason" json:"reason"`
	Reference           *Reference      `bson:"reference,omitempty" json:"reference,omitempty"`
	Location            Location        `bson:"location" json:"location"`
	DestinationLocation *Location       `bson:"destinationLocation,omitempty" json:"destinationLocation,omitempty"`
	UnitPrice           Price           `bson:"unitPrice" json:"unitPrice"`
	TotalValue          Price           `bson:"totalValue" json:"totalValue"`
	PerformedBy         Actor           `bson:"performedBy" json:"performedBy"`
	Recipient           string          `bson:"recipient,omitempty" json:"recipient,omitempty"`
	Notes               string          `bson:"notes,omitempty" json:"notes,omitempty"`
	Status              RecordStatus    `bson:"status" json:"status"`
	CreatedAt           time.Time       `bson:"createdAt" json:"createdAt"`
}

// Movement describes a quantity change of item about to be recorded
type Movement struct {
	Type      TransactionType
	Before    int64
	After     int64
	Reason    Reason
	Reference *Reference
	Actor     Actor
	Recipient string
	Notes     string
}

// NewTransactionRecord builds a completed record for a movement of item.
// Quantity is the magnitude of the change.
func NewTransactionRecord(item *InventoryItem, m Movement) *TransactionRecord {
	quantity := m.After - m.Before
	if quantity < 0 {
		quantity = -quantity
	}

	return &TransactionRecord{
		ID:             NewTransactionID(),
		Type:           m.Type,
		DrugID:         item.DrugID,
		DrugName:       item.DrugName,
		BatchNumber:    item.BatchNumber,
		Quantity:       quantity,
		QuantityBefore: m.Before,
		QuantityAfter:  m.After,
		Reason:         m.Reason,
		Reference:      m.Reference,
		Location:       item.Location,
		UnitPrice:      item.UnitPrice,
		TotalValue:     item.UnitPrice.Times(quantity),
		PerformedBy:    m.Actor,
		Recipient:      m.Recipient,
		Notes:          m.Notes,
		Status:         RecordCompleted,
		CreatedAt:      time.Now().UTC(),
	}
}

// NewTransferRecord builds the summary record linking both legs of a transfer.
// Before and after are the source location's quantities.
func NewTransferRecord(source *InventoryItem, destination Location, before, after int64, ref *Reference, actor Actor, notes string) *TransactionRecord {
	record := NewTransactionRecord(source, Movement{
		Type:      TransactionTransfer,
		Before:    before,
		After:     after,
		Reason:    ReasonTransferOut,
		Reference: ref,
		Actor:     actor,
		Notes:     notes,
	})
	record.DestinationLocation = &destination
	return record
}

// SignedDelta is quantityAfter - quantityBefore
func (r *TransactionRecord) SignedDelta() int64 {
	return r.QuantityAfter - r.QuantityBefore
}

// ExpectedDelta is the signed change implied by the record's type and
// magnitude. Adjustments and stocktakes take the direction they recorded.
func (r *TransactionRecord) ExpectedDelta() int64 {
	switch r.Type {
	case TransactionIn:
		return r.Quantity
	case TransactionOut, TransactionTransfer:
		return -r.Quantity
	default:
		if r.SignedDelta() < 0 {
			return -r.Quantity
		}
		return r.Quantity
	}
}

// CheckConsistency verifies before/after against the type's implied effect
func (r *TransactionRecord) CheckConsistency() error {
	if r.Quantity <= 0 {
		return fmt.Errorf("%w: record %s has non-positive quantity %d", ErrInconsistentRecord, r.ID, r.Quantity)
	}
	if r.QuantityBefore < 0 || r.QuantityAfter < 0 {
		return fmt.Errorf("%w: record %s has a negative quantity", ErrInconsistentRecord, r.ID)
	}
	if r.SignedDelta() != r.ExpectedDelta() {
		return fmt.Errorf("%w: record %s of type %s moved %d, expected %d",
			ErrInconsistentRecord, r.ID, r.Type, r.SignedDelta(), r.ExpectedDelta())
	}
	return nil
}

// NewTransactionID returns a unique ledger entry identifier
func NewTransactionID() string {
	return "TXN-" + uuid.New().String()
}

// NewTransferID returns a unique transfer identifier used as the reference of all its records
func NewTransferID() string {
	return fmt.Sprintf("TRF-%s-%s", time.Now().UTC().Format("20060102"), uuid.New().String()[:8])
}

// NewStocktakeID returns a unique stocktake run identifier
func NewStocktakeID() string {
	return fmt.Sprintf("STK-%s-%s", time.Now().UTC().Format("20060102"), uuid.New().String()[:8])
}

// TimeRange bounds ledger queries. A zero bound is open.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside the range
func (r TimeRange) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}
