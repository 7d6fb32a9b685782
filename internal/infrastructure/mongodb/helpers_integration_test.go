package mongodb

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/rxledger/inventory-ledger/internal/application"
	"github.com/rxledger/inventory-ledger/internal/consistency"
	"github.com/rxledger/inventory-ledger/internal/domain"
	"github.com/rxledger/inventory-ledger/pkg/logging"
	outboxmongo "github.com/rxledger/inventory-ledger/pkg/outbox/mongodb"
)

const testTopic = "rx.inventory.ledger"

var clerk = domain.Actor{ID: "user-42", DisplayName: "Stock Clerk"}

func location(id string) domain.Location {
	return domain.Location{Type: domain.LocationPharmacy, LocationID: id, LocationName: "Pharmacy " + id}
}

// ledgerFixture wires the Mongo adapters around one database
type ledgerFixture struct {
	db      *mongo.Database
	store   *InventoryStore
	ledger  *TransactionLedger
	catalog *DrugCatalog
	outbox  *outboxmongo.OutboxRepository
	auditor *Auditor
}

func newLedgerFixture(db *mongo.Database) *ledgerFixture {
	logger := logging.NewNop()
	return &ledgerFixture{
		db:      db,
		store:   NewInventoryStore(db, nil, logger),
		ledger:  NewTransactionLedger(db, nil, logger),
		catalog: NewDrugCatalog(db, "", nil, logger),
		outbox:  outboxmongo.NewOutboxRepository(db, nil, logger),
		auditor: NewAuditor(db, nil, logger),
	}
}

func (f *ledgerFixture) prepare(ctx context.Context) error {
	for _, ensure := range []func(context.Context) error{f.store.EnsureIndexes, f.ledger.EnsureIndexes, f.outbox.EnsureIndexes} {
		if err := ensure(ctx); err != nil {
			return err
		}
	}

	price := domain.MustPrice("4.20")
	for _, drug := range []*domain.Drug{
		{ID: "D1", Name: "Amoxicillin 500mg", BatchNumber: "AMX-2207", Unit: "box", UnitPrice: &price},
		{ID: "D2", Name: "Ibuprofen 400mg", BatchNumber: "IBU-0311", Unit: "box"},
	} {
		if err := f.catalog.PutDrug(ctx, drug); err != nil {
			return err
		}
	}
	return nil
}

func (f *ledgerFixture) drop(ctx context.Context) {
	for _, name := range []string{InventoryItemsCollection, TransactionsCollection, DefaultDrugsCollection, outboxmongo.DefaultCollectionName} {
		_ = f.db.Collection(name).Drop(ctx)
	}
}

func (f *ledgerFixture) coordinator(uow consistency.UnitOfWork, ledger domain.TransactionLedger) *application.StockCoordinator {
	if ledger == nil {
		ledger = f.ledger
	}
	recorder := NewOutboxEventRecorder(f.outbox, testTopic, uow.Mode().String())
	return application.NewStockCoordinator(f.store, ledger, f.catalog, uow, logging.NewNop(),
		application.WithEventRecorder(recorder),
	)
}

func (f *ledgerFixture) quantity(ctx context.Context, drugID, locationID string) (int64, error) {
	item, err := f.store.Get(ctx, drugID, locationID)
	if err != nil {
		return 0, err
	}
	return item.Quantity, nil
}

// failingLedger rejects the in leg recorded at one location
type failingLedger struct {
	*TransactionLedger
	locationID string
}

var errLedgerDown = errors.New("ledger write refused")

func (l failingLedger) Append(ctx context.Context, record *domain.TransactionRecord) (*domain.TransactionRecord, error) {
	if record.Type == domain.TransactionIn && record.Location.LocationID == l.locationID {
		return nil, errLedgerDown
	}
	return l.TransactionLedger.Append(ctx, record)
}

func isErr(err, target error) bool {
	return errors.Is(err, target)
}
