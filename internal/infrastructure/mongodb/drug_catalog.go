package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rxledger/inventory-ledger/internal/domain"
	"github.com/rxledger/inventory-ledger/pkg/logging"
	"github.com/rxledger/inventory-ledger/pkg/metrics"
	pkgmongo "github.com/rxledger/inventory-ledger/pkg/mongodb"
)

// DefaultDrugsCollection is the catalog collection owned by the drug service
const DefaultDrugsCollection = "drugs"

// drugDocument is the subset of the catalog document the ledger reads
type drugDocument struct {
	ID             string        `bson:"_id"`
	Name           string        `bson:"name"`
	BatchNumber    string        `bson:"batchNumber"`
	Unit           string        `bson:"unit,omitempty"`
	UnitPrice      *domain.Price `bson:"unitPrice,omitempty"`
	ExpiryDate     *time.Time    `bson:"expiryDate,omitempty"`
	ProductionDate *time.Time    `bson:"productionDate,omitempty"`
	SupplierRef    string        `bson:"supplierRef,omitempty"`
}

func (d *drugDocument) toDomain() *domain.Drug {
	return &domain.Drug{
		ID:             d.ID,
		Name:           d.Name,
		BatchNumber:    d.BatchNumber,
		Unit:           d.Unit,
		UnitPrice:      d.UnitPrice,
		ExpiryDate:     d.ExpiryDate,
		ProductionDate: d.ProductionDate,
		SupplierRef:    d.SupplierRef,
	}
}

// DrugCatalog is a read-only domain.DrugCatalog over the drugs collection
type DrugCatalog struct {
	collection *pkgmongo.Collection
}

// NewDrugCatalog creates a catalog reader. An empty name selects DefaultDrugsCollection.
func NewDrugCatalog(db *mongo.Database, name string, m *metrics.Metrics, logger *logging.Logger) *DrugCatalog {
	if name == "" {
		name = DefaultDrugsCollection
	}
	return &DrugCatalog{
		collection: pkgmongo.NewCollection(db, name, m, logger),
	}
}

// GetDrug returns the drug or *domain.DrugNotFoundError
func (c *DrugCatalog) GetDrug(ctx context.Context, drugID string) (*domain.Drug, error) {
	var doc drugDocument
	if err := c.collection.FindOne(ctx, bson.M{"_id": drugID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &domain.DrugNotFoundError{DrugID: drugID}
		}
		return nil, fmt.Errorf("failed to look up drug: %w", err)
	}
	return doc.toDomain(), nil
}

// PutDrug upserts a catalog entry. Used by seeding tools and tests; the
// ledger itself never writes the catalog.
func (c *DrugCatalog) PutDrug(ctx context.Context, drug *domain.Drug) error {
	doc := drugDocument{
		ID:             drug.ID,
		Name:           drug.Name,
		BatchNumber:    drug.BatchNumber,
		Unit:           drug.Unit,
		UnitPrice:      drug.UnitPrice,
		ExpiryDate:     drug.ExpiryDate,
		ProductionDate: drug.ProductionDate,
		SupplierRef:    drug.SupplierRef,
	}
	_, err := c.collection.Underlying().ReplaceOne(ctx, bson.M{"_id": drug.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to store drug: %w", err)
	}
	return nil
}
