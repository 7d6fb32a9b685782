package mongodb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/rxledger/inventory-ledger/internal/application"
	"github.com/rxledger/inventory-ledger/internal/consistency"
	"github.com/rxledger/inventory-ledger/internal/domain"
	"github.com/rxledger/inventory-ledger/pkg/logging"
	testhelpers "github.com/rxledger/inventory-ledger/pkg/testing"
)

type BestEffortIntegrationTestSuite struct {
	suite.Suite
	container *testhelpers.MongoDBContainer
	client    *mongo.Client
	fixture   *ledgerFixture
	uow       consistency.UnitOfWork
	coord     *application.StockCoordinator
	ctx       context.Context
}

func TestBestEffortIntegrationTestSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}
	suite.Run(t, new(BestEffortIntegrationTestSuite))
}

func (s *BestEffortIntegrationTestSuite) SetupSuite() {
	s.ctx = context.Background()

	container, err := testhelpers.NewMongoDBContainer(s.ctx)
	s.Require().NoError(err)
	s.container = container

	client, err := container.GetClient(s.ctx)
	s.Require().NoError(err)
	s.client = client

	s.fixture = newLedgerFixture(client.Database("rx_inventory_best_effort_test"))
	s.uow = consistency.NewSequentialUnitOfWork(logging.NewNop())
}

func (s *BestEffortIntegrationTestSuite) TearDownSuite() {
	if s.client != nil {
		_ = s.client.Disconnect(s.ctx)
	}
	if s.container != nil {
		s.Require().NoError(s.container.Close(s.ctx))
	}
}

func (s *BestEffortIntegrationTestSuite) SetupTest() {
	s.Require().NoError(s.fixture.prepare(s.ctx))
	s.coord = s.fixture.coordinator(s.uow, nil)
}

func (s *BestEffortIntegrationTestSuite) TearDownTest() {
	s.fixture.drop(s.ctx)
}

func (s *BestEffortIntegrationTestSuite) requireQuantity(drugID, locationID string, want int64) {
	got, err := s.fixture.quantity(s.ctx, drugID, locationID)
	s.Require().NoError(err)
	s.Equal(want, got, "%s@%s", drugID, locationID)
}

func (s *BestEffortIntegrationTestSuite) TestProbeFallsBackOnStandalone() {
	prober := NewTransactionProber(s.fixture.db)
	s.Error(prober.ProbeTransactions(s.ctx))

	auto := consistency.NewSelector(prober, consistency.SettingAuto, 5*time.Second, logging.NewNop())
	mode, err := auto.Select(s.ctx)
	s.Require().NoError(err)
	s.Equal(consistency.BestEffort, mode)
	s.Error(auto.ProbeError())

	strict := consistency.NewSelector(prober, consistency.SettingStrict, 5*time.Second, logging.NewNop())
	_, err = strict.Select(s.ctx)
	s.Error(err)
}

func (s *BestEffortIntegrationTestSuite) TestScenarios() {
	_, err := s.coord.StockIn(s.ctx, application.StockInCommand{
		DrugID: "D1", Location: location("WH1"), Quantity: 100, Actor: clerk,
	})
	s.Require().NoError(err)
	s.requireQuantity("D1", "WH1", 100)

	_, err = s.coord.StockOut(s.ctx, application.StockOutCommand{
		DrugID: "D1", LocationID: "WH1", Quantity: 30, Reason: domain.ReasonSale, Actor: clerk,
	})
	s.Require().NoError(err)
	s.requireQuantity("D1", "WH1", 70)

	_, err = s.coord.TransferStock(s.ctx, application.TransferStockCommand{
		DrugID: "D1", FromLocationID: "WH1", To: location("WH2"), Quantity: 20, Actor: clerk,
	})
	s.Require().NoError(err)
	s.requireQuantity("D1", "WH1", 50)
	s.requireQuantity("D1", "WH2", 20)

	_, err = s.coord.StockOut(s.ctx, application.StockOutCommand{
		DrugID: "D1", LocationID: "WH1", Quantity: 1000, Actor: clerk,
	})
	s.ErrorIs(err, domain.ErrInsufficientStock)
	s.requireQuantity("D1", "WH1", 50)

	_, err = s.coord.AdjustStock(s.ctx, application.AdjustStockCommand{
		DrugID: "D1", LocationID: "WH1", NewQuantity: 50, Actor: clerk,
	})
	s.ErrorIs(err, domain.ErrNoOpAdjustment)

	drift, err := s.fixture.auditor.QuantityDrift(s.ctx)
	s.Require().NoError(err)
	s.Empty(drift)
}

func (s *BestEffortIntegrationTestSuite) TestTransferPartialFailureIsReportedAndAuditable() {
	_, err := s.coord.StockIn(s.ctx, application.StockInCommand{
		DrugID: "D1", Location: location("WH1"), Quantity: 70, Actor: clerk,
	})
	s.Require().NoError(err)

	coord := s.fixture.coordinator(s.uow, failingLedger{TransactionLedger: s.fixture.ledger, locationID: "WH2"})
	_, err = coord.TransferStock(s.ctx, application.TransferStockCommand{
		DrugID: "D1", FromLocationID: "WH1", To: location("WH2"), Quantity: 20, Actor: clerk,
	})

	var partial *domain.PartialFailureError
	s.Require().ErrorAs(err, &partial)
	s.Equal("append in record D1@WH2", partial.Failed)
	s.Len(partial.Committed, 4)

	s.requireQuantity("D1", "WH1", 50)
	s.requireQuantity("D1", "WH2", 20)

	drift, err := s.fixture.auditor.QuantityDrift(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(drift, 1)
	s.Equal("WH2", drift[0].LocationID)
	s.Equal(int64(20), drift[0].OnHand)
	s.Equal(int64(0), drift[0].LedgerTotal)
}

func (s *BestEffortIntegrationTestSuite) TestFindOrCreateReturnsExistingItem() {
	drug, err := s.fixture.catalog.GetDrug(s.ctx, "D1")
	s.Require().NoError(err)

	first, created, err := s.fixture.store.FindOrCreate(s.ctx, domain.NewInventoryItem(drug, location("WH3"), domain.ItemDefaults{}))
	s.Require().NoError(err)
	s.True(created)

	second, created, err := s.fixture.store.FindOrCreate(s.ctx, domain.NewInventoryItem(drug, location("WH3"), domain.ItemDefaults{}))
	s.Require().NoError(err)
	s.False(created)
	s.Equal(first.ID, second.ID)

	dup := domain.NewInventoryItem(drug, location("WH3"), domain.ItemDefaults{})
	_, err = s.fixture.db.Collection(InventoryItemsCollection).InsertOne(s.ctx, dup)
	s.True(mongo.IsDuplicateKeyError(err), "unique index rejects a second row for the key")
}

func (s *BestEffortIntegrationTestSuite) TestFindOrCreateLosingInsertReadsWinner() {
	drug, err := s.fixture.catalog.GetDrug(s.ctx, "D1")
	s.Require().NoError(err)

	winner := domain.NewInventoryItem(drug, location("WH4"), domain.ItemDefaults{})
	s.fixture.store.beforeInsert = func(ctx context.Context) {
		s.fixture.store.beforeInsert = nil
		_, err := s.fixture.db.Collection(InventoryItemsCollection).InsertOne(ctx, winner)
		s.Require().NoError(err)
	}
	defer func() { s.fixture.store.beforeInsert = nil }()

	item, created, err := s.fixture.store.FindOrCreate(s.ctx, domain.NewInventoryItem(drug, location("WH4"), domain.ItemDefaults{}))
	s.Require().NoError(err)
	s.False(created)
	s.Equal(winner.ID, item.ID)

	rows, err := s.fixture.db.Collection(InventoryItemsCollection).CountDocuments(s.ctx, keyFilter("D1", "WH4"))
	s.Require().NoError(err)
	s.Equal(int64(1), rows)
}

func (s *BestEffortIntegrationTestSuite) TestConcurrentFirstStockInCreatesOneItem() {
	var secondErr error
	s.fixture.store.beforeInsert = func(ctx context.Context) {
		s.fixture.store.beforeInsert = nil
		_, secondErr = s.coord.StockIn(ctx, application.StockInCommand{
			DrugID: "D2", Location: location("WH9"), Quantity: 4, Actor: clerk,
		})
	}
	defer func() { s.fixture.store.beforeInsert = nil }()

	_, err := s.coord.StockIn(s.ctx, application.StockInCommand{
		DrugID: "D2", Location: location("WH9"), Quantity: 3, Actor: clerk,
	})
	s.Require().NoError(err)
	s.Require().NoError(secondErr)

	s.requireQuantity("D2", "WH9", 7)

	rows, err := s.fixture.db.Collection(InventoryItemsCollection).CountDocuments(s.ctx, keyFilter("D2", "WH9"))
	s.Require().NoError(err)
	s.Equal(int64(1), rows)

	records, err := s.fixture.ledger.ListFor(s.ctx, "D2", "WH9", domain.TimeRange{})
	s.Require().NoError(err)
	s.Require().Len(records, 2)
	transitions := map[int64]int64{}
	for _, r := range records {
		transitions[r.QuantityBefore] = r.QuantityAfter
	}
	s.Equal(map[int64]int64{0: 4, 4: 7}, transitions)

	duplicates, err := s.fixture.auditor.DuplicateItems(s.ctx)
	s.Require().NoError(err)
	s.Empty(duplicates)
}

func (s *BestEffortIntegrationTestSuite) TestLedgerQueries() {
	_, err := s.coord.StockIn(s.ctx, application.StockInCommand{
		DrugID: "D2", Location: location("WH1"), Quantity: 10, Actor: clerk,
		Reference: &domain.Reference{Kind: domain.ReferenceOrder, ID: "PO-881", Number: "PO/2024/881"},
	})
	s.Require().NoError(err)
	midpoint := time.Now().UTC()
	time.Sleep(10 * time.Millisecond)

	_, err = s.coord.StockOut(s.ctx, application.StockOutCommand{
		DrugID: "D2", LocationID: "WH1", Quantity: 4, Actor: clerk, Recipient: "Ward 3",
	})
	s.Require().NoError(err)

	all, err := s.fixture.ledger.ListFor(s.ctx, "D2", "WH1", domain.TimeRange{})
	s.Require().NoError(err)
	s.Require().Len(all, 2)
	s.Equal(domain.TransactionIn, all[0].Type)
	s.Equal(domain.TransactionOut, all[1].Type)
	s.Equal("Ward 3", all[1].Recipient)
	s.True(all[0].UnitPrice.IsZero())

	later, err := s.fixture.ledger.ListFor(s.ctx, "D2", "WH1", domain.TimeRange{From: midpoint})
	s.Require().NoError(err)
	s.Require().Len(later, 1)
	s.Equal(domain.TransactionOut, later[0].Type)

	byOrder, err := s.fixture.ledger.ListByReference(s.ctx, domain.Reference{Kind: domain.ReferenceOrder, ID: "PO-881"})
	s.Require().NoError(err)
	s.Require().Len(byOrder, 1)
	s.Equal("PO/2024/881", byOrder[0].Reference.Number)

	items, err := s.fixture.store.ListByDrug(s.ctx, "D2")
	s.Require().NoError(err)
	s.Len(items, 1)
}

func (s *BestEffortIntegrationTestSuite) TestPriceRoundTrip() {
	price := domain.MustPrice("19.99")
	result, err := s.coord.StockIn(s.ctx, application.StockInCommand{
		DrugID: "D1", Location: location("WH4"), Quantity: 3, UnitPrice: &price, Actor: clerk,
	})
	s.Require().NoError(err)

	item, err := s.fixture.store.Get(s.ctx, "D1", "WH4")
	s.Require().NoError(err)
	s.True(item.UnitPrice.Equal(price))
	s.True(item.TotalValue.Equal(domain.MustPrice("59.97")))
	s.Equal(result.Transaction.ID, item.LastTransaction.TransactionID)
}
