package application

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/rxledger/inventory-ledger/internal/consistency"
	"github.com/rxledger/inventory-ledger/internal/domain"
	"github.com/rxledger/inventory-ledger/pkg/logging"
	"github.com/rxledger/inventory-ledger/pkg/metrics"
	"github.com/rxledger/inventory-ledger/pkg/tracing"
)

// StockCoordinator runs the five stock operations. Each one reads and writes
// through a single unit of work, so the same code runs under either mode.
type StockCoordinator struct {
	store   domain.InventoryStore
	ledger  domain.TransactionLedger
	catalog domain.DrugCatalog
	uow     consistency.UnitOfWork
	events  domain.EventRecorder
	metrics *metrics.Metrics

	validate *validator.Validate
	logger   *logging.Logger
	tracer   trace.Tracer
}

// Option configures optional coordinator collaborators
type Option func(*StockCoordinator)

// WithEventRecorder records a domain event for every successful operation
func WithEventRecorder(events domain.EventRecorder) Option {
	return func(c *StockCoordinator) { c.events = events }
}

// WithMetrics records operation counters and latencies
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *StockCoordinator) { c.metrics = m }
}

// NewStockCoordinator creates a coordinator bound to one unit of work
func NewStockCoordinator(
	store domain.InventoryStore,
	ledger domain.TransactionLedger,
	catalog domain.DrugCatalog,
	uow consistency.UnitOfWork,
	logger *logging.Logger,
	opts ...Option,
) *StockCoordinator {
	c := &StockCoordinator{
		store:    store,
		ledger:   ledger,
		catalog:  catalog,
		uow:      uow,
		validate: newValidator(),
		logger:   logger.WithComponent("stock-coordinator").WithMode(uow.Mode().String()),
		tracer:   otel.Tracer("stock-coordinator"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Mode is the consistency mode every operation runs under
func (c *StockCoordinator) Mode() consistency.Mode {
	return c.uow.Mode()
}

// StockIn adds quantity units of a catalog drug at a location, creating the
// item on first receipt
func (c *StockCoordinator) StockIn(ctx context.Context, cmd StockInCommand) (result *StockResult, err error) {
	ctx, done := c.begin(ctx, OpStockIn, cmd.Actor.ID, cmd.DrugID, cmd.Location.LocationID)
	defer func() { done(result.delta(), err) }()

	if err := positiveQuantity(cmd.Quantity, "stock-in"); err != nil {
		return nil, err
	}
	if err := c.validateCommand(cmd); err != nil {
		return nil, err
	}

	drug, err := c.catalog.GetDrug(ctx, cmd.DrugID)
	if err != nil {
		return nil, err
	}

	var out *StockResult
	err = c.uow.Execute(ctx, OpStockIn, func(ctx context.Context, scope consistency.Scope) error {
		item, err := c.findOrCreate(ctx, scope, domain.NewInventoryItem(drug, cmd.Location, cmd.defaults()))
		if err != nil {
			return err
		}
		if cmd.UnitPrice != nil {
			item.SetUnitPrice(*cmd.UnitPrice)
		}

		before := item.Quantity
		record, err := c.applyMovement(ctx, scope, item, domain.Movement{
			Type:      domain.TransactionIn,
			Before:    before,
			After:     before + cmd.Quantity,
			Reason:    cmd.Reason.OrDefault(domain.ReasonPurchase),
			Reference: cmd.Reference,
			Actor:     cmd.Actor,
			Notes:     cmd.Notes,
		})
		if err != nil {
			return err
		}

		out = &StockResult{Item: item, Transaction: record, Delta: Delta{OldQuantity: before, NewQuantity: item.Quantity}}
		return c.recordEvent(ctx, scope, &domain.StockMovedEvent{Record: record})
	})
	if err != nil {
		return nil, err
	}

	c.audit(ctx, OpStockIn, out.Transaction)
	return out, nil
}

// StockOut removes quantity units from an existing item. It never takes the
// item below zero.
func (c *StockCoordinator) StockOut(ctx context.Context, cmd StockOutCommand) (result *StockResult, err error) {
	ctx, done := c.begin(ctx, OpStockOut, cmd.Actor.ID, cmd.DrugID, cmd.LocationID)
	defer func() { done(result.delta(), err) }()

	if err := positiveQuantity(cmd.Quantity, "stock-out"); err != nil {
		return nil, err
	}
	if err := c.validateCommand(cmd); err != nil {
		return nil, err
	}

	var out *StockResult
	err = c.uow.Execute(ctx, OpStockOut, func(ctx context.Context, scope consistency.Scope) error {
		item, err := c.store.Get(ctx, cmd.DrugID, cmd.LocationID)
		if err != nil {
			return err
		}

		before := item.Quantity
		if before < cmd.Quantity {
			return &domain.InsufficientStockError{
				DrugID:     cmd.DrugID,
				LocationID: cmd.LocationID,
				Required:   cmd.Quantity,
				Available:  before,
			}
		}

		record, err := c.applyMovement(ctx, scope, item, domain.Movement{
			Type:      domain.TransactionOut,
			Before:    before,
			After:     before - cmd.Quantity,
			Reason:    cmd.Reason.OrDefault(domain.ReasonSale),
			Reference: cmd.Reference,
			Actor:     cmd.Actor,
			Recipient: cmd.Recipient,
			Notes:     cmd.Notes,
		})
		if err != nil {
			return err
		}

		out = &StockResult{Item: item, Transaction: record, Delta: Delta{OldQuantity: before, NewQuantity: item.Quantity}}
		return c.recordEvent(ctx, scope, &domain.StockMovedEvent{Record: record})
	})
	if err != nil {
		return nil, err
	}

	c.audit(ctx, OpStockOut, out.Transaction)
	return out, nil
}

// AdjustStock sets an item's quantity to NewQuantity. An adjustment that
// would not change the quantity is rejected and writes nothing.
func (c *StockCoordinator) AdjustStock(ctx context.Context, cmd AdjustStockCommand) (result *StockResult, err error) {
	ctx, done := c.begin(ctx, OpAdjust, cmd.Actor.ID, cmd.DrugID, cmd.LocationID)
	defer func() { done(result.delta(), err) }()

	if cmd.NewQuantity < 0 {
		return nil, &domain.InvalidQuantityError{Quantity: cmd.NewQuantity, Reason: "adjusted quantity cannot be negative"}
	}
	if err := c.validateCommand(cmd); err != nil {
		return nil, err
	}

	var out *StockResult
	err = c.uow.Execute(ctx, OpAdjust, func(ctx context.Context, scope consistency.Scope) error {
		item, err := c.store.Get(ctx, cmd.DrugID, cmd.LocationID)
		if err != nil {
			return err
		}

		before := item.Quantity
		if before == cmd.NewQuantity {
			return &domain.NoOpAdjustmentError{
				DrugID:     cmd.DrugID,
				LocationID: cmd.LocationID,
				Current:    before,
				Attempted:  cmd.NewQuantity,
			}
		}

		record, err := c.applyMovement(ctx, scope, item, domain.Movement{
			Type:      domain.TransactionAdjustment,
			Before:    before,
			After:     cmd.NewQuantity,
			Reason:    cmd.Reason.OrDefault(domain.ReasonAdjustment),
			Reference: cmd.Reference,
			Actor:     cmd.Actor,
			Notes:     cmd.Notes,
		})
		if err != nil {
			return err
		}

		out = &StockResult{Item: item, Transaction: record, Delta: Delta{OldQuantity: before, NewQuantity: item.Quantity}}
		return c.recordEvent(ctx, scope, &domain.StockMovedEvent{Record: record})
	})
	if err != nil {
		return nil, err
	}

	c.audit(ctx, OpAdjust, out.Transaction)
	return out, nil
}

// GetItem returns the current item for (drugID, locationID)
func (c *StockCoordinator) GetItem(ctx context.Context, drugID, locationID string) (*domain.InventoryItem, error) {
	return c.store.Get(ctx, drugID, locationID)
}

// History returns an item's ledger entries within window, oldest first
func (c *StockCoordinator) History(ctx context.Context, drugID, locationID string, window domain.TimeRange) ([]*domain.TransactionRecord, error) {
	return c.ledger.ListFor(ctx, drugID, locationID, window)
}

// TransactionsFor returns every ledger entry linked to ref
func (c *StockCoordinator) TransactionsFor(ctx context.Context, ref domain.Reference) ([]*domain.TransactionRecord, error) {
	return c.ledger.ListByReference(ctx, ref)
}

// findOrCreate reads the seed's key and only goes through a write step when
// the item has to be created
func (c *StockCoordinator) findOrCreate(ctx context.Context, scope consistency.Scope, seed *domain.InventoryItem) (*domain.InventoryItem, error) {
	item, err := c.store.Get(ctx, seed.DrugID, seed.Location.LocationID)
	if err == nil {
		return item, nil
	}
	if !stderrors.Is(err, domain.ErrItemNotFound) {
		return nil, err
	}

	key := domain.ItemKey(seed.DrugID, seed.Location.LocationID)
	err = scope.Step(ctx, "create item "+key, func(ctx context.Context) error {
		var stepErr error
		item, _, stepErr = c.store.FindOrCreate(ctx, seed)
		return stepErr
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// applyMovement writes the item's new quantity, then appends the record
// describing it
func (c *StockCoordinator) applyMovement(ctx context.Context, scope consistency.Scope, item *domain.InventoryItem, m domain.Movement) (*domain.TransactionRecord, error) {
	record := domain.NewTransactionRecord(item, m)
	item.RecordTransaction(record)
	key := domain.ItemKey(item.DrugID, item.Location.LocationID)

	if err := scope.Step(ctx, "update item "+key, func(ctx context.Context) error {
		return c.store.SetQuantity(ctx, item, m.After)
	}); err != nil {
		return nil, err
	}

	if err := c.appendRecord(ctx, scope, record); err != nil {
		return nil, err
	}

	if c.metrics != nil {
		c.metrics.RecordQuantityMoved(string(record.Type), record.Quantity)
	}
	return record, nil
}

func (c *StockCoordinator) appendRecord(ctx context.Context, scope consistency.Scope, record *domain.TransactionRecord) error {
	name := "append " + string(record.Type) + " record " + domain.ItemKey(record.DrugID, record.Location.LocationID)
	return scope.Step(ctx, name, func(ctx context.Context) error {
		_, err := c.ledger.Append(ctx, record)
		return err
	})
}

func (c *StockCoordinator) recordEvent(ctx context.Context, scope consistency.Scope, event domain.DomainEvent) error {
	if c.events == nil {
		return nil
	}
	return scope.Step(ctx, "record "+event.EventType()+" event", func(ctx context.Context) error {
		return c.events.Record(ctx, event)
	})
}

// begin opens the operation span and returns the function that closes it,
// logs the outcome and records metrics
func (c *StockCoordinator) begin(ctx context.Context, operation, actorID, drugID, locationID string) (context.Context, func(Delta, error)) {
	mode := c.uow.Mode().String()
	start := time.Now()

	ctx, span := c.tracer.Start(ctx, "ledger."+operation,
		trace.WithAttributes(tracing.StockSpanAttributes(operation, mode, drugID, locationID)...),
	)
	if traceID := tracing.GetTraceID(ctx); traceID != "" {
		ctx = logging.ContextWithTraceID(ctx, traceID)
	}
	if actorID != "" {
		ctx = logging.ContextWithActorID(ctx, actorID)
	}

	return ctx, func(delta Delta, err error) {
		duration := time.Since(start)
		tracing.EndSpan(span, err)

		if c.metrics != nil {
			c.metrics.RecordStockOperation(operation, mode, err == nil, duration)
		}

		var partial *domain.PartialFailureError
		if stderrors.As(err, &partial) {
			if c.metrics != nil {
				c.metrics.RecordPartialFailure(operation)
			}
			c.logger.WithContext(ctx).Error("Stock operation partially applied",
				"operation", operation,
				"drugId", drugID,
				"locationId", locationID,
				"committed", partial.Committed,
				"failedStep", partial.Failed,
				"error", partial.Err.Error(),
			)
			return
		}

		c.logger.StockOperation(ctx, operation, drugID, locationID, delta.OldQuantity, delta.NewQuantity, duration, err)
	}
}

func (c *StockCoordinator) audit(ctx context.Context, operation string, record *domain.TransactionRecord) {
	details := map[string]any{
		"transactionId":  record.ID,
		"type":           record.Type,
		"reason":         record.Reason,
		"quantity":       record.Quantity,
		"quantityBefore": record.QuantityBefore,
		"quantityAfter":  record.QuantityAfter,
		"mode":           c.uow.Mode().String(),
	}
	if record.Reference != nil {
		details["referenceKind"] = record.Reference.Kind
		details["referenceId"] = record.Reference.ID
	}

	c.logger.Audit(ctx, operation, "inventory_item",
		domain.ItemKey(record.DrugID, record.Location.LocationID),
		record.PerformedBy.ID, details)
}

func (r *StockResult) delta() Delta {
	if r == nil {
		return Delta{}
	}
	return r.Delta
}
