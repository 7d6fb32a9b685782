package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rxledger/inventory-ledger/internal/domain"
	"github.com/rxledger/inventory-ledger/pkg/logging"
	"github.com/rxledger/inventory-ledger/pkg/metrics"
	pkgmongo "github.com/rxledger/inventory-ledger/pkg/mongodb"
)

// TransactionsCollection is the append-only ledger
const TransactionsCollection = "inventory_transactions"

// TransactionLedger implements domain.TransactionLedger using MongoDB.
// It only ever inserts.
type TransactionLedger struct {
	collection *pkgmongo.Collection
}

// NewTransactionLedger creates a new TransactionLedger. metrics and logger may be nil.
func NewTransactionLedger(db *mongo.Database, m *metrics.Metrics, logger *logging.Logger) *TransactionLedger {
	return &TransactionLedger{
		collection: pkgmongo.NewCollection(db, TransactionsCollection, m, logger),
	}
}

// EnsureIndexes creates the ledger's query indexes
func (l *TransactionLedger) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "drugId", Value: 1},
				{Key: "location.locationId", Value: 1},
				{Key: "createdAt", Value: 1},
			},
			Options: options.Index().SetName("idx_drug_location_createdAt"),
		},
		{
			Keys: bson.D{
				{Key: "reference.kind", Value: 1},
				{Key: "reference.id", Value: 1},
			},
			Options: options.Index().SetName("idx_reference").SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "type", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("idx_type_createdAt"),
		},
	}

	if _, err := l.collection.CreateIndexes(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create ledger indexes: %w", err)
	}
	return nil
}

// Append inserts record
func (l *TransactionLedger) Append(ctx context.Context, record *domain.TransactionRecord) (*domain.TransactionRecord, error) {
	if _, err := l.collection.InsertOne(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to append transaction record: %w", err)
	}
	return record, nil
}

// ListFor returns the item's records within window, oldest first
func (l *TransactionLedger) ListFor(ctx context.Context, drugID, locationID string, window domain.TimeRange) ([]*domain.TransactionRecord, error) {
	filter := bson.M{
		"drugId":              drugID,
		"location.locationId": locationID,
	}

	createdAt := bson.M{}
	if !window.From.IsZero() {
		createdAt["$gte"] = window.From
	}
	if !window.To.IsZero() {
		createdAt["$lte"] = window.To
	}
	if len(createdAt) > 0 {
		filter["createdAt"] = createdAt
	}

	return l.find(ctx, filter)
}

// ListByReference returns all records linked to ref, oldest first
func (l *TransactionLedger) ListByReference(ctx context.Context, ref domain.Reference) ([]*domain.TransactionRecord, error) {
	return l.find(ctx, bson.M{
		"reference.kind": ref.Kind,
		"reference.id":   ref.ID,
	})
}

func (l *TransactionLedger) find(ctx context.Context, filter bson.M) ([]*domain.TransactionRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := l.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find transaction records: %w", err)
	}
	defer cursor.Close(ctx)

	var records []*domain.TransactionRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode transaction records: %w", err)
	}
	return records, nil
}
