package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LastTransaction is a display snapshot of the most recent ledger entry for an item
type LastTransaction struct {
	TransactionID string          `bson:"transactionId" json:"transactionId"`
	Type          TransactionType `bson:"type" json:"type"`
	Quantity      int64           `bson:"quantity" json:"quantity"`
	At            time.Time       `bson:"at" json:"at"`
}

// InventoryItem is the authoritative on-hand quantity of one drug batch at one location.
// drugName, totalValue and lastTransaction are derived and rewritten on every mutation.
type InventoryItem struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	DrugRef         string             `bson:"drugRef,omitempty" json:"drugRef,omitempty"`
	DrugID          string             `bson:"drugId" json:"drugId"`
	DrugName        string             `bson:"drugName" json:"drugName"`
	BatchNumber     string             `bson:"batchNumber" json:"batchNumber"`
	Location        Location           `bson:"location" json:"location"`
	Quantity        int64              `bson:"quantity" json:"quantity"`
	Unit            string             `bson:"unit,omitempty" json:"unit,omitempty"`
	MinStock        int64              `bson:"minStock" json:"minStock"`
	MaxStock        int64              `bson:"maxStock" json:"maxStock"`
	Status          ItemStatus         `bson:"status" json:"status"`
	ExpiryDate      *time.Time         `bson:"expiryDate,omitempty" json:"expiryDate,omitempty"`
	ProductionDate  *time.Time         `bson:"productionDate,omitempty" json:"productionDate,omitempty"`
	UnitPrice       Price              `bson:"unitPrice" json:"unitPrice"`
	TotalValue      Price              `bson:"totalValue" json:"totalValue"`
	SupplierRef     string             `bson:"supplierRef,omitempty" json:"supplierRef,omitempty"`
	LastTransaction *LastTransaction   `bson:"lastTransaction,omitempty" json:"lastTransaction,omitempty"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// ItemDefaults is caller-supplied metadata used only when an item is created.
// Zero values fall back to the catalog entry.
type ItemDefaults struct {
	Unit           string
	UnitPrice      *Price
	ExpiryDate     *time.Time
	ProductionDate *time.Time
	SupplierRef    string
	MinStock       int64
	MaxStock       int64
}

// NewInventoryItem builds a zero-quantity item for drug at location
func NewInventoryItem(drug *Drug, location Location, defaults ItemDefaults) *InventoryItem {
	now := time.Now().UTC()

	item := &InventoryItem{
		DrugRef:        drug.ID,
		DrugID:         drug.ID,
		DrugName:       drug.Name,
		BatchNumber:    drug.BatchNumber,
		Location:       location,
		Quantity:       0,
		Unit:           firstNonEmpty(defaults.Unit, drug.Unit),
		MinStock:       defaults.MinStock,
		MaxStock:       defaults.MaxStock,
		Status:         ItemStatusAvailable,
		ExpiryDate:     firstTime(defaults.ExpiryDate, drug.ExpiryDate),
		ProductionDate: firstTime(defaults.ProductionDate, drug.ProductionDate),
		SupplierRef:    firstNonEmpty(defaults.SupplierRef, drug.SupplierRef),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	switch {
	case defaults.UnitPrice != nil:
		item.UnitPrice = *defaults.UnitPrice
	case drug.UnitPrice != nil:
		item.UnitPrice = *drug.UnitPrice
	}
	item.TotalValue = item.UnitPrice.Times(item.Quantity)

	return item
}

// SeedAt returns a zero-quantity copy of the item's batch metadata at another location
func (i *InventoryItem) SeedAt(location Location) *InventoryItem {
	now := time.Now().UTC()
	return &InventoryItem{
		DrugRef:        i.DrugRef,
		DrugID:         i.DrugID,
		DrugName:       i.DrugName,
		BatchNumber:    i.BatchNumber,
		Location:       location,
		Unit:           i.Unit,
		Status:         i.Status,
		ExpiryDate:     i.ExpiryDate,
		ProductionDate: i.ProductionDate,
		UnitPrice:      i.UnitPrice,
		TotalValue:     ZeroPrice,
		SupplierRef:    i.SupplierRef,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// SetQuantity replaces the on-hand quantity and recomputes totalValue.
// A negative quantity is rejected and leaves the item untouched.
func (i *InventoryItem) SetQuantity(quantity int64) error {
	if quantity < 0 {
		return &InvalidQuantityError{Quantity: quantity, Reason: "on-hand quantity cannot be negative"}
	}

	i.Quantity = quantity
	i.TotalValue = i.UnitPrice.Times(quantity)
	i.UpdatedAt = time.Now().UTC()
	return nil
}

// SetUnitPrice changes the unit price and recomputes totalValue
func (i *InventoryItem) SetUnitPrice(price Price) {
	i.UnitPrice = price
	i.TotalValue = price.Times(i.Quantity)
}

// RecordTransaction points the display snapshot at record
func (i *InventoryItem) RecordTransaction(record *TransactionRecord) {
	i.LastTransaction = &LastTransaction{
		TransactionID: record.ID,
		Type:          record.Type,
		Quantity:      record.Quantity,
		At:            record.CreatedAt,
	}
}

// IsBelowMinimum reports whether the quantity has fallen under minStock
func (i *InventoryItem) IsBelowMinimum() bool {
	return i.MinStock > 0 && i.Quantity < i.MinStock
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstTime(values ...*time.Time) *time.Time {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}
