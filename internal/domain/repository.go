package domain

import "context"

// InventoryStore persists one InventoryItem per (drug batch, location).
// Implementations honour any storage session carried by ctx.
type InventoryStore interface {
	// Get returns the item or an *ItemNotFoundError
	Get(ctx context.Context, drugID, locationID string) (*InventoryItem, error)

	// FindOrCreate returns the existing item for seed's key, or inserts seed.
	// The bool reports whether seed was inserted.
	FindOrCreate(ctx context.Context, seed *InventoryItem) (*InventoryItem, bool, error)

	// SetQuantity applies item.SetQuantity and persists the item's mutable state
	SetQuantity(ctx context.Context, item *InventoryItem, quantity int64) error

	// ListByLocation returns every item held at a location
	ListByLocation(ctx context.Context, locationID string) ([]*InventoryItem, error)

	// ListByDrug returns every location's item for a drug
	ListByDrug(ctx context.Context, drugID string) ([]*InventoryItem, error)
}

// TransactionLedger is the append-only log of every quantity change.
// There is deliberately no update or delete.
type TransactionLedger interface {
	Append(ctx context.Context, record *TransactionRecord) (*TransactionRecord, error)

	// ListFor returns the records of one item in creation order
	ListFor(ctx context.Context, drugID, locationID string, window TimeRange) ([]*TransactionRecord, error)

	// ListByReference returns every record linked to an external entity
	ListByReference(ctx context.Context, ref Reference) ([]*TransactionRecord, error)
}

// DrugCatalog is the read-only drug lookup. Unknown ids yield *DrugNotFoundError.
type DrugCatalog interface {
	GetDrug(ctx context.Context, drugID string) (*Drug, error)
}

// EventRecorder stores a domain event for later delivery, inside the
// current unit of work.
type EventRecorder interface {
	Record(ctx context.Context, event DomainEvent) error
}
