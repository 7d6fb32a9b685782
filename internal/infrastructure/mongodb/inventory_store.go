package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rxledger/inventory-ledger/internal/domain"
	"github.com/rxledger/inventory-ledger/pkg/logging"
	"github.com/rxledger/inventory-ledger/pkg/metrics"
	pkgmongo "github.com/rxledger/inventory-ledger/pkg/mongodb"
)

// InventoryItemsCollection holds one document per (drug, location)
const InventoryItemsCollection = "inventory_items"

// InventoryStore implements domain.InventoryStore using MongoDB
type InventoryStore struct {
	collection *pkgmongo.Collection

	// beforeInsert runs between the missed lookup and the insert in FindOrCreate
	beforeInsert func(ctx context.Context)
}

// NewInventoryStore creates a new InventoryStore. metrics and logger may be nil.
func NewInventoryStore(db *mongo.Database, m *metrics.Metrics, logger *logging.Logger) *InventoryStore {
	return &InventoryStore{
		collection: pkgmongo.NewCollection(db, InventoryItemsCollection, m, logger),
	}
}

// EnsureIndexes creates the unique item key and lookup indexes
func (s *InventoryStore) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "drugId", Value: 1},
				{Key: "location.locationId", Value: 1},
			},
			Options: options.Index().SetName("uniq_drug_location").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "location.locationId", Value: 1}, {Key: "drugId", Value: 1}},
			Options: options.Index().SetName("idx_location_drug"),
		},
		{
			Keys:    bson.D{{Key: "batchNumber", Value: 1}, {Key: "expiryDate", Value: 1}},
			Options: options.Index().SetName("idx_batch_expiry"),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}},
			Options: options.Index().SetName("idx_status"),
		},
	}

	if _, err := s.collection.CreateIndexes(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create inventory item indexes: %w", err)
	}
	return nil
}

func keyFilter(drugID, locationID string) bson.M {
	return bson.M{"drugId": drugID, "location.locationId": locationID}
}

// Get returns the item for (drugID, locationID)
func (s *InventoryStore) Get(ctx context.Context, drugID, locationID string) (*domain.InventoryItem, error) {
	var item domain.InventoryItem
	err := s.collection.FindOne(ctx, keyFilter(drugID, locationID)).Decode(&item)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &domain.ItemNotFoundError{DrugID: drugID, LocationID: locationID}
		}
		return nil, fmt.Errorf("failed to find inventory item: %w", err)
	}
	return &item, nil
}

// FindOrCreate returns the existing item for seed's key or inserts seed.
//
// Two first stock-ins for a new key can race. The unique index lets only one
// insert win. Outside a transaction the loser re-reads and continues with the
// winner's row. Inside a transaction the server has already aborted, so the
// loser reports a concurrent modification for the caller to retry.
func (s *InventoryStore) FindOrCreate(ctx context.Context, seed *domain.InventoryItem) (*domain.InventoryItem, bool, error) {
	existing, err := s.Get(ctx, seed.DrugID, seed.Location.LocationID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, domain.ErrItemNotFound) {
		return nil, false, err
	}

	if seed.ID.IsZero() {
		seed.ID = primitive.NewObjectID()
	}
	if s.beforeInsert != nil {
		s.beforeInsert(ctx)
	}

	if _, err := s.collection.InsertOne(ctx, seed); err != nil {
		if !mongo.IsDuplicateKeyError(err) {
			return nil, false, fmt.Errorf("failed to create inventory item: %w", err)
		}
		if mongo.SessionFromContext(ctx) != nil {
			return nil, false, &domain.ConcurrentModificationError{Operation: "create inventory item", Err: err}
		}

		winner, getErr := s.Get(ctx, seed.DrugID, seed.Location.LocationID)
		if getErr != nil {
			return nil, false, fmt.Errorf("failed to re-read inventory item after duplicate insert: %w", getErr)
		}
		return winner, false, nil
	}

	return seed, true, nil
}

// SetQuantity validates and applies quantity, then persists the item's
// mutable fields. There is no version check: concurrent writers are
// serialized only by the enclosing transaction, when there is one.
func (s *InventoryStore) SetQuantity(ctx context.Context, item *domain.InventoryItem, quantity int64) error {
	if err := item.SetQuantity(quantity); err != nil {
		return err
	}

	update := bson.M{
		"$set": bson.M{
			"quantity":        item.Quantity,
			"unitPrice":       item.UnitPrice,
			"totalValue":      item.TotalValue,
			"drugName":        item.DrugName,
			"lastTransaction": item.LastTransaction,
			"updatedAt":       item.UpdatedAt,
		},
	}

	result, err := s.collection.UpdateOne(ctx, bson.M{"_id": item.ID}, update)
	if err != nil {
		return fmt.Errorf("failed to update inventory item quantity: %w", err)
	}
	if result.MatchedCount == 0 {
		return &domain.ItemNotFoundError{DrugID: item.DrugID, LocationID: item.Location.LocationID}
	}
	return nil
}

// ListByLocation returns every item held at a location, ordered by drug
func (s *InventoryStore) ListByLocation(ctx context.Context, locationID string) ([]*domain.InventoryItem, error) {
	return s.list(ctx, bson.M{"location.locationId": locationID}, bson.D{{Key: "drugId", Value: 1}})
}

// ListByDrug returns the drug's item at every location
func (s *InventoryStore) ListByDrug(ctx context.Context, drugID string) ([]*domain.InventoryItem, error) {
	return s.list(ctx, bson.M{"drugId": drugID}, bson.D{{Key: "location.locationId", Value: 1}})
}

func (s *InventoryStore) list(ctx context.Context, filter bson.M, sort bson.D) ([]*domain.InventoryItem, error) {
	cursor, err := s.collection.Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory items: %w", err)
	}
	defer cursor.Close(ctx)

	var items []*domain.InventoryItem
	if err := cursor.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("failed to decode inventory items: %w", err)
	}
	return items, nil
}
