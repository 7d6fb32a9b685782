package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/rxledger/inventory-ledger/pkg/logging"
	"github.com/rxledger/inventory-ledger/pkg/metrics"
	pkgmongo "github.com/rxledger/inventory-ledger/pkg/mongodb"
)

// DuplicateItem is a (drug, location) key held by more than one document
type DuplicateItem struct {
	DrugID     string `bson:"drugId" json:"drugId"`
	LocationID string `bson:"locationId" json:"locationId"`
	Count      int    `bson:"count" json:"count"`
}

// QuantityDrift is an item whose on-hand quantity differs from the sum of its ledger
type QuantityDrift struct {
	DrugID      string `bson:"drugId" json:"drugId"`
	LocationID  string `bson:"locationId" json:"locationId"`
	OnHand      int64  `bson:"onHand" json:"onHand"`
	LedgerTotal int64  `bson:"ledgerTotal" json:"ledgerTotal"`
}

// InconsistentRecord is a ledger entry whose before/after disagree with its type
type InconsistentRecord struct {
	ID             string `bson:"_id" json:"id"`
	Type           string `bson:"type" json:"type"`
	DrugID         string `bson:"drugId" json:"drugId"`
	LocationID     string `bson:"locationId" json:"locationId"`
	Quantity       int64  `bson:"quantity" json:"quantity"`
	QuantityBefore int64  `bson:"quantityBefore" json:"quantityBefore"`
	QuantityAfter  int64  `bson:"quantityAfter" json:"quantityAfter"`
}

// Auditor runs read-only consistency checks over the item and ledger collections.
// The checks matter most after running best-effort, where partial writes can
// leave items and ledger out of step.
type Auditor struct {
	items        *pkgmongo.Collection
	transactions *pkgmongo.Collection
}

// NewAuditor creates an auditor. metrics and logger may be nil.
func NewAuditor(db *mongo.Database, m *metrics.Metrics, logger *logging.Logger) *Auditor {
	return &Auditor{
		items:        pkgmongo.NewCollection(db, InventoryItemsCollection, m, logger),
		transactions: pkgmongo.NewCollection(db, TransactionsCollection, m, logger),
	}
}

// DuplicateItems finds keys with more than one item document
func (a *Auditor) DuplicateItems(ctx context.Context) ([]DuplicateItem, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":   bson.M{"drugId": "$drugId", "locationId": "$location.locationId"},
			"count": bson.M{"$sum": 1},
		}}},
		{{Key: "$match", Value: bson.M{"count": bson.M{"$gt": 1}}}},
		{{Key: "$project", Value: bson.M{
			"_id":        0,
			"drugId":     "$_id.drugId",
			"locationId": "$_id.locationId",
			"count":      1,
		}}},
	}

	var out []DuplicateItem
	if err := a.aggregate(ctx, a.items, pipeline, &out); err != nil {
		return nil, fmt.Errorf("failed to find duplicate items: %w", err)
	}
	return out, nil
}

// InconsistentRecords finds ledger entries that violate the before/after rule
// for their type
func (a *Auditor) InconsistentRecords(ctx context.Context) ([]InconsistentRecord, error) {
	delta := bson.M{"$subtract": bson.A{"$quantityAfter", "$quantityBefore"}}
	absDelta := bson.M{"$abs": delta}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"$expr": bson.M{"$or": bson.A{
			bson.M{"$lte": bson.A{"$quantity", 0}},
			bson.M{"$lt": bson.A{"$quantityAfter", 0}},
			bson.M{"$ne": bson.A{absDelta, "$quantity"}},
			bson.M{"$and": bson.A{
				bson.M{"$eq": bson.A{"$type", "in"}},
				bson.M{"$lt": bson.A{delta, 0}},
			}},
			bson.M{"$and": bson.A{
				bson.M{"$in": bson.A{"$type", bson.A{"out", "transfer"}}},
				bson.M{"$gt": bson.A{delta, 0}},
			}},
		}}}}},
		{{Key: "$project", Value: bson.M{
			"type":           1,
			"drugId":         1,
			"locationId":     "$location.locationId",
			"quantity":       1,
			"quantityBefore": 1,
			"quantityAfter":  1,
		}}},
	}

	var out []InconsistentRecord
	if err := a.aggregate(ctx, a.transactions, pipeline, &out); err != nil {
		return nil, fmt.Errorf("failed to find inconsistent records: %w", err)
	}
	return out, nil
}

// QuantityDrift compares each item's quantity with the net of its ledger
// entries. Transfer summary records are excluded since their out and in legs
// are already counted.
func (a *Auditor) QuantityDrift(ctx context.Context) ([]QuantityDrift, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$lookup", Value: bson.M{
			"from": TransactionsCollection,
			"let":  bson.M{"drug": "$drugId", "loc": "$location.locationId"},
			"pipeline": bson.A{
				bson.M{"$match": bson.M{"$expr": bson.M{"$and": bson.A{
					bson.M{"$eq": bson.A{"$drugId", "$$drug"}},
					bson.M{"$eq": bson.A{"$location.locationId", "$$loc"}},
					bson.M{"$ne": bson.A{"$type", "transfer"}},
				}}}},
				bson.M{"$group": bson.M{
					"_id":   nil,
					"total": bson.M{"$sum": bson.M{"$subtract": bson.A{"$quantityAfter", "$quantityBefore"}}},
				}},
			},
			"as": "ledger",
		}}},
		{{Key: "$project", Value: bson.M{
			"_id":         0,
			"drugId":      1,
			"locationId":  "$location.locationId",
			"onHand":      "$quantity",
			"ledgerTotal": bson.M{"$ifNull": bson.A{bson.M{"$first": "$ledger.total"}, 0}},
		}}},
		{{Key: "$match", Value: bson.M{"$expr": bson.M{"$ne": bson.A{"$onHand", "$ledgerTotal"}}}}},
	}

	var out []QuantityDrift
	if err := a.aggregate(ctx, a.items, pipeline, &out); err != nil {
		return nil, fmt.Errorf("failed to compute quantity drift: %w", err)
	}
	return out, nil
}

func (a *Auditor) aggregate(ctx context.Context, c *pkgmongo.Collection, pipeline mongo.Pipeline, out interface{}) error {
	cursor, err := c.Aggregate(ctx, pipeline)
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)
	return cursor.All(ctx, out)
}
