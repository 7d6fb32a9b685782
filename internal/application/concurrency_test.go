package application

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rxledger/inventory-ledger/internal/consistency"
	"github.com/rxledger/inventory-ledger/internal/domain"
)

// interleave makes the next read of key run second before the first caller
// continues, so both callers act on the same starting quantity
func interleave(db *memoryDB, key string, second func()) {
	var once sync.Once
	db.onGet = func(k string) {
		if k != key {
			return
		}
		once.Do(func() {
			db.onGet = nil
			second()
		})
	}
}

func TestConcurrentStockOut_StrictLetsExactlyOneCommit(t *testing.T) {
	h := newHarness(t, consistency.Strict)
	h.stockIn(t, "D1", "WH1", 50)

	var secondErr error
	interleave(h.db, domain.ItemKey("D1", "WH1"), func() {
		_, secondErr = h.stockOut("D1", "WH1", 40)
	})

	_, firstErr := h.stockOut("D1", "WH1", 40)

	require.NoError(t, secondErr)
	var conflict *domain.ConcurrentModificationError
	require.ErrorAs(t, firstErr, &conflict)
	assert.Equal(t, OpStockOut, conflict.Operation)
	assert.Equal(t, "CONCURRENT_MODIFICATION", ToAppError(firstErr).Code)

	assert.Equal(t, int64(10), h.db.quantity("D1", "WH1"))

	outs := 0
	for _, r := range h.db.allRecords() {
		if r.Type == domain.TransactionOut {
			outs++
		}
	}
	assert.Equal(t, 1, outs)
}

func TestConcurrentStockOut_StrictRejectsAfterRetry(t *testing.T) {
	h := newHarness(t, consistency.Strict)
	h.stockIn(t, "D1", "WH1", 50)

	interleave(h.db, domain.ItemKey("D1", "WH1"), func() {
		_, err := h.stockOut("D1", "WH1", 40)
		require.NoError(t, err)
	})
	_, err := h.stockOut("D1", "WH1", 40)
	require.ErrorIs(t, err, domain.ErrConcurrentModification)

	// a caller retrying sees the committed quantity and is rejected
	_, err = h.stockOut("D1", "WH1", 40)
	var insufficient *domain.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, int64(10), insufficient.Available)
	assert.Equal(t, int64(10), h.db.quantity("D1", "WH1"))
}

func TestConcurrentStockOut_BestEffortCanLoseAnUpdate(t *testing.T) {
	h := newHarness(t, consistency.BestEffort)
	h.stockIn(t, "D1", "WH1", 50)

	var secondErr error
	interleave(h.db, domain.ItemKey("D1", "WH1"), func() {
		_, secondErr = h.stockOut("D1", "WH1", 40)
	})
	_, firstErr := h.stockOut("D1", "WH1", 40)

	// both succeed from the same snapshot of 50
	require.NoError(t, firstErr)
	require.NoError(t, secondErr)
	assert.Equal(t, int64(10), h.db.quantity("D1", "WH1"))

	var issued int64
	for _, r := range h.db.allRecords() {
		if r.Type == domain.TransactionOut {
			issued += r.Quantity
			assert.Equal(t, int64(50), r.QuantityBefore)
		}
	}
	assert.Equal(t, int64(80), issued, "ledger shows 80 issued while only 40 left the shelf")
}

func TestConcurrentFirstStockIn_StrictConflicts(t *testing.T) {
	h := newHarness(t, consistency.Strict)

	interleave(h.db, domain.ItemKey("D2", "WH5"), func() {
		h.stockIn(t, "D2", "WH5", 3)
	})
	_, firstErr := h.coord.StockIn(context.Background(), StockInCommand{
		DrugID: "D2", Location: warehouse("WH5"), Quantity: 4, Actor: pharmacist,
	})

	assert.ErrorIs(t, firstErr, domain.ErrConcurrentModification)
	assert.Equal(t, int64(3), h.db.quantity("D2", "WH5"))
}
