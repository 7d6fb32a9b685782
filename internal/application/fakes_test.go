package application

import (
	"context"
	"sort"
	"sync"

	"github.com/rxledger/inventory-ledger/internal/consistency"
	"github.com/rxledger/inventory-ledger/internal/domain"
)

// memoryDB backs the in-memory store, ledger and event recorder. Writes made
// under a memoryTx are staged and applied on commit, with a version check per
// item that models snapshot write-conflict detection.
type memoryDB struct {
	mu       sync.Mutex
	items    map[string]*domain.InventoryItem
	versions map[string]int
	records  []*domain.TransactionRecord
	events   []domain.DomainEvent

	onGet          func(key string)
	setQuantityErr func(item *domain.InventoryItem) error
	appendErr      func(record *domain.TransactionRecord) error
	recordErr      func(event domain.DomainEvent) error
}

func newMemoryDB() *memoryDB {
	return &memoryDB{
		items:    make(map[string]*domain.InventoryItem),
		versions: make(map[string]int),
	}
}

type memoryTx struct {
	reads   map[string]int
	items   map[string]*domain.InventoryItem
	records []*domain.TransactionRecord
	events  []domain.DomainEvent
}

type txKey struct{}

func txFrom(ctx context.Context) *memoryTx {
	tx, _ := ctx.Value(txKey{}).(*memoryTx)
	return tx
}

func clone(item *domain.InventoryItem) *domain.InventoryItem {
	c := *item
	return &c
}

func (db *memoryDB) quantity(drugID, locationID string) int64 {
	db.mu.Lock()
	defer db.mu.Unlock()
	item, ok := db.items[domain.ItemKey(drugID, locationID)]
	if !ok {
		return -1
	}
	return item.Quantity
}

func (db *memoryDB) recordCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.records)
}

func (db *memoryDB) allRecords() []*domain.TransactionRecord {
	db.mu.Lock()
	defer db.mu.Unlock()
	return append([]*domain.TransactionRecord(nil), db.records...)
}

func (db *memoryDB) allEvents() []domain.DomainEvent {
	db.mu.Lock()
	defer db.mu.Unlock()
	return append([]domain.DomainEvent(nil), db.events...)
}

type memoryStore struct{ db *memoryDB }

func (s memoryStore) Get(ctx context.Context, drugID, locationID string) (*domain.InventoryItem, error) {
	key := domain.ItemKey(drugID, locationID)
	item, err := s.read(ctx, key, drugID, locationID)
	if hook := s.db.onGet; hook != nil {
		hook(key)
	}
	return item, err
}

// read returns the item as of the transaction's first read of key
func (s memoryStore) read(ctx context.Context, key, drugID, locationID string) (*domain.InventoryItem, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	tx := txFrom(ctx)
	if tx != nil {
		if staged, ok := tx.items[key]; ok {
			return clone(staged), nil
		}
		if _, seen := tx.reads[key]; !seen {
			tx.reads[key] = s.db.versions[key]
		}
	}

	item, ok := s.db.items[key]
	if !ok {
		return nil, &domain.ItemNotFoundError{DrugID: drugID, LocationID: locationID}
	}
	return clone(item), nil
}

func (s memoryStore) FindOrCreate(ctx context.Context, seed *domain.InventoryItem) (*domain.InventoryItem, bool, error) {
	key := domain.ItemKey(seed.DrugID, seed.Location.LocationID)

	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	tx := txFrom(ctx)
	if tx != nil {
		if staged, ok := tx.items[key]; ok {
			return clone(staged), false, nil
		}
		read, seen := tx.reads[key]
		if seen && read != s.db.versions[key] {
			// created by another writer after this transaction looked
			return nil, false, &domain.ConcurrentModificationError{Operation: "create inventory item", Err: errWriteConflict}
		}
	}
	if existing, ok := s.db.items[key]; ok {
		if tx != nil {
			tx.reads[key] = s.db.versions[key]
		}
		return clone(existing), false, nil
	}

	if tx != nil {
		tx.reads[key] = s.db.versions[key]
		tx.items[key] = clone(seed)
		return seed, true, nil
	}
	s.db.items[key] = clone(seed)
	s.db.versions[key]++
	return seed, true, nil
}

func (s memoryStore) SetQuantity(ctx context.Context, item *domain.InventoryItem, quantity int64) error {
	if s.db.setQuantityErr != nil {
		if err := s.db.setQuantityErr(item); err != nil {
			return err
		}
	}
	if err := item.SetQuantity(quantity); err != nil {
		return err
	}

	key := domain.ItemKey(item.DrugID, item.Location.LocationID)
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if tx := txFrom(ctx); tx != nil {
		tx.items[key] = clone(item)
		return nil
	}
	s.db.items[key] = clone(item)
	s.db.versions[key]++
	return nil
}

func (s memoryStore) ListByLocation(ctx context.Context, locationID string) ([]*domain.InventoryItem, error) {
	return s.list(func(item *domain.InventoryItem) bool { return item.Location.LocationID == locationID }), nil
}

func (s memoryStore) ListByDrug(ctx context.Context, drugID string) ([]*domain.InventoryItem, error) {
	return s.list(func(item *domain.InventoryItem) bool { return item.DrugID == drugID }), nil
}

func (s memoryStore) list(match func(*domain.InventoryItem) bool) []*domain.InventoryItem {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	var out []*domain.InventoryItem
	for _, item := range s.db.items {
		if match(item) {
			out = append(out, clone(item))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return domain.ItemKey(out[i].DrugID, out[i].Location.LocationID) <
			domain.ItemKey(out[j].DrugID, out[j].Location.LocationID)
	})
	return out
}

type memoryLedger struct{ db *memoryDB }

func (l memoryLedger) Append(ctx context.Context, record *domain.TransactionRecord) (*domain.TransactionRecord, error) {
	if l.db.appendErr != nil {
		if err := l.db.appendErr(record); err != nil {
			return nil, err
		}
	}

	l.db.mu.Lock()
	defer l.db.mu.Unlock()

	if tx := txFrom(ctx); tx != nil {
		tx.records = append(tx.records, record)
		return record, nil
	}
	l.db.records = append(l.db.records, record)
	return record, nil
}

func (l memoryLedger) ListFor(ctx context.Context, drugID, locationID string, window domain.TimeRange) ([]*domain.TransactionRecord, error) {
	var out []*domain.TransactionRecord
	for _, r := range l.db.allRecords() {
		if r.DrugID == drugID && r.Location.LocationID == locationID && window.Contains(r.CreatedAt) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (l memoryLedger) ListByReference(ctx context.Context, ref domain.Reference) ([]*domain.TransactionRecord, error) {
	var out []*domain.TransactionRecord
	for _, r := range l.db.allRecords() {
		if r.Reference != nil && r.Reference.Kind == ref.Kind && r.Reference.ID == ref.ID {
			out = append(out, r)
		}
	}
	return out, nil
}

type memoryEvents struct{ db *memoryDB }

func (e memoryEvents) Record(ctx context.Context, event domain.DomainEvent) error {
	if e.db.recordErr != nil {
		if err := e.db.recordErr(event); err != nil {
			return err
		}
	}

	e.db.mu.Lock()
	defer e.db.mu.Unlock()

	if tx := txFrom(ctx); tx != nil {
		tx.events = append(tx.events, event)
		return nil
	}
	e.db.events = append(e.db.events, event)
	return nil
}

// memoryTxUnitOfWork is an all-or-nothing unit of work over memoryDB
type memoryTxUnitOfWork struct{ db *memoryDB }

func (u memoryTxUnitOfWork) Mode() consistency.Mode { return consistency.Strict }

func (u memoryTxUnitOfWork) Execute(ctx context.Context, operation string, fn func(ctx context.Context, scope consistency.Scope) error) error {
	tx := &memoryTx{
		reads: make(map[string]int),
		items: make(map[string]*domain.InventoryItem),
	}
	if err := fn(context.WithValue(ctx, txKey{}, tx), passThroughScope{}); err != nil {
		return err
	}

	u.db.mu.Lock()
	defer u.db.mu.Unlock()

	for key := range tx.items {
		if u.db.versions[key] != tx.reads[key] {
			return &domain.ConcurrentModificationError{Operation: operation, Err: errWriteConflict}
		}
	}
	for key, item := range tx.items {
		u.db.items[key] = item
		u.db.versions[key]++
	}
	u.db.records = append(u.db.records, tx.records...)
	u.db.events = append(u.db.events, tx.events...)
	return nil
}

type passThroughScope struct{}

func (passThroughScope) Step(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeWriteConflict struct{}

func (fakeWriteConflict) Error() string { return "write conflict" }

var errWriteConflict error = fakeWriteConflict{}

type memoryCatalog struct {
	drugs map[string]*domain.Drug
	err   error
	calls int
}

func (c *memoryCatalog) GetDrug(ctx context.Context, drugID string) (*domain.Drug, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	drug, ok := c.drugs[drugID]
	if !ok {
		return nil, &domain.DrugNotFoundError{DrugID: drugID}
	}
	return drug, nil
}
