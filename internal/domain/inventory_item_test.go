package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func amoxicillin() *Drug {
	price := MustPrice("12.50")
	expiry := time.Date(2027, 3, 31, 0, 0, 0, 0, time.UTC)
	return &Drug{
		ID:          "D1",
		Name:        "Amoxicillin 500mg",
		BatchNumber: "B-001",
		Unit:        "box",
		UnitPrice:   &price,
		ExpiryDate:  &expiry,
		SupplierRef: "SUP-9",
	}
}

var wh1 = Location{Type: LocationWarehouse, LocationID: "WH1", LocationName: "Central"}

// TestNewInventoryItem tests item creation from a catalog entry
func TestNewInventoryItem(t *testing.T) {
	item := NewInventoryItem(amoxicillin(), wh1, ItemDefaults{})

	require.NotNil(t, item)
	assert.Equal(t, "D1", item.DrugID)
	assert.Equal(t, "D1", item.DrugRef)
	assert.Equal(t, "Amoxicillin 500mg", item.DrugName)
	assert.Equal(t, "B-001", item.BatchNumber)
	assert.Equal(t, "box", item.Unit)
	assert.Equal(t, "SUP-9", item.SupplierRef)
	assert.Equal(t, ItemStatusAvailable, item.Status)
	assert.Zero(t, item.Quantity)
	assert.True(t, item.UnitPrice.Equal(MustPrice("12.50")))
	assert.True(t, item.TotalValue.IsZero())
	assert.NotZero(t, item.CreatedAt)
	assert.Nil(t, item.LastTransaction)
}

func TestNewInventoryItem_DefaultsOverrideCatalog(t *testing.T) {
	price := MustPrice("9.99")
	expiry := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)

	item := NewInventoryItem(amoxicillin(), wh1, ItemDefaults{
		Unit:        "strip",
		UnitPrice:   &price,
		ExpiryDate:  &expiry,
		SupplierRef: "SUP-1",
		MinStock:    5,
		MaxStock:    500,
	})

	assert.Equal(t, "strip", item.Unit)
	assert.Equal(t, "SUP-1", item.SupplierRef)
	assert.Equal(t, expiry, *item.ExpiryDate)
	assert.True(t, item.UnitPrice.Equal(price))
	assert.Equal(t, int64(5), item.MinStock)
	assert.Equal(t, int64(500), item.MaxStock)
}

func TestNewInventoryItem_NoPrice(t *testing.T) {
	item := NewInventoryItem(&Drug{ID: "D2", Name: "Saline"}, wh1, ItemDefaults{})

	assert.True(t, item.UnitPrice.IsZero())
	assert.Empty(t, item.Unit)
	assert.Nil(t, item.ExpiryDate)
}

func TestInventoryItem_SetQuantity(t *testing.T) {
	tests := []struct {
		name      string
		quantity  int64
		wantErr   bool
		wantQty   int64
		wantValue string
	}{
		{name: "positive", quantity: 4, wantQty: 4, wantValue: "50.00"},
		{name: "zero", quantity: 0, wantQty: 0, wantValue: "0.00"},
		{name: "negative rejected", quantity: -1, wantErr: true, wantQty: 10, wantValue: "125.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := NewInventoryItem(amoxicillin(), wh1, ItemDefaults{})
			require.NoError(t, item.SetQuantity(10))

			err := item.SetQuantity(tt.quantity)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidQuantity)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantQty, item.Quantity)
			assert.Equal(t, tt.wantValue, item.TotalValue.String())
		})
	}
}

func TestInventoryItem_SetUnitPrice(t *testing.T) {
	item := NewInventoryItem(amoxicillin(), wh1, ItemDefaults{})
	require.NoError(t, item.SetQuantity(3))

	item.SetUnitPrice(MustPrice("1.10"))

	assert.Equal(t, "3.30", item.TotalValue.String())
}

func TestInventoryItem_SeedAt(t *testing.T) {
	source := NewInventoryItem(amoxicillin(), wh1, ItemDefaults{MinStock: 10})
	require.NoError(t, source.SetQuantity(40))
	source.Status = ItemStatusQuarantine

	wh2 := Location{Type: LocationPharmacy, LocationID: "WH2"}
	seed := source.SeedAt(wh2)

	assert.Equal(t, wh2, seed.Location)
	assert.Zero(t, seed.Quantity)
	assert.True(t, seed.TotalValue.IsZero())
	assert.Equal(t, source.DrugID, seed.DrugID)
	assert.Equal(t, source.BatchNumber, seed.BatchNumber)
	assert.Equal(t, source.ExpiryDate, seed.ExpiryDate)
	assert.True(t, seed.UnitPrice.Equal(source.UnitPrice))
	assert.Equal(t, ItemStatusQuarantine, seed.Status)
	assert.Zero(t, seed.MinStock, "stock thresholds belong to the source location")
}

func TestInventoryItem_RecordTransaction(t *testing.T) {
	item := NewInventoryItem(amoxicillin(), wh1, ItemDefaults{})
	record := NewTransactionRecord(item, Movement{Type: TransactionIn, Before: 0, After: 7, Reason: ReasonPurchase})

	item.RecordTransaction(record)

	require.NotNil(t, item.LastTransaction)
	assert.Equal(t, record.ID, item.LastTransaction.TransactionID)
	assert.Equal(t, TransactionIn, item.LastTransaction.Type)
	assert.Equal(t, int64(7), item.LastTransaction.Quantity)
	assert.Equal(t, record.CreatedAt, item.LastTransaction.At)
}

func TestInventoryItem_IsBelowMinimum(t *testing.T) {
	item := NewInventoryItem(amoxicillin(), wh1, ItemDefaults{MinStock: 10})
	require.NoError(t, item.SetQuantity(9))
	assert.True(t, item.IsBelowMinimum())

	require.NoError(t, item.SetQuantity(10))
	assert.False(t, item.IsBelowMinimum())

	unset := NewInventoryItem(amoxicillin(), wh1, ItemDefaults{})
	assert.False(t, unset.IsBelowMinimum())
}
