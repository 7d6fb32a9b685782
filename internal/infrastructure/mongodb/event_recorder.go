package mongodb

import (
	"context"
	"fmt"

	"github.com/rxledger/inventory-ledger/internal/domain"
	"github.com/rxledger/inventory-ledger/pkg/cloudevents"
	"github.com/rxledger/inventory-ledger/pkg/outbox"
)

// aggregateType tags every ledger event stored in the outbox
const aggregateType = "InventoryItem"

// OutboxEventRecorder implements domain.EventRecorder by saving CloudEvents to
// the outbox with the caller's ctx, so a strict unit of work commits them
// together with the ledger writes.
type OutboxEventRecorder struct {
	repo    outbox.Repository
	factory *cloudevents.EventFactory
	topic   string
	mode    string
}

// NewOutboxEventRecorder creates a recorder that stamps events with mode
func NewOutboxEventRecorder(repo outbox.Repository, topic, mode string) *OutboxEventRecorder {
	return &OutboxEventRecorder{
		repo:    repo,
		factory: cloudevents.NewEventFactory(cloudevents.SourceInventoryLedger),
		topic:   topic,
		mode:    mode,
	}
}

// Record converts event to a CloudEvent and stores it in the outbox
func (r *OutboxEventRecorder) Record(ctx context.Context, event domain.DomainEvent) error {
	subject, data, err := eventPayload(event)
	if err != nil {
		return err
	}

	ce := r.factory.CreateEvent(ctx, event.EventType(), subject, data)
	ce.Time = event.OccurredAt()
	ce.ConsistencyMode = r.mode

	outboxEvent, err := outbox.NewOutboxEventFromCloudEvent(event.AggregateID(), aggregateType, r.topic, ce)
	if err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}

	if err := r.repo.Save(ctx, outboxEvent); err != nil {
		return fmt.Errorf("failed to record %s event: %w", event.EventType(), err)
	}
	return nil
}

func eventPayload(event domain.DomainEvent) (string, interface{}, error) {
	switch e := event.(type) {
	case *domain.StockMovedEvent:
		rec := e.Record
		data := cloudevents.StockMovementData{
			TransactionID:  rec.ID,
			Type:           string(rec.Type),
			Reason:         string(rec.Reason),
			DrugID:         rec.DrugID,
			BatchNumber:    rec.BatchNumber,
			LocationID:     rec.Location.LocationID,
			Quantity:       rec.Quantity,
			QuantityBefore: rec.QuantityBefore,
			QuantityAfter:  rec.QuantityAfter,
			PerformedBy:    rec.PerformedBy.ID,
		}
		if rec.Reference != nil {
			data.ReferenceType = string(rec.Reference.Kind)
			data.ReferenceID = rec.Reference.ID
		}
		return "inventory/" + e.AggregateID(), data, nil

	case *domain.StockTransferredEvent:
		return "transfer/" + e.TransferID, cloudevents.StockTransferredData{
			TransferID:       e.TransferID,
			DrugID:           e.DrugID,
			FromLocationID:   e.FromLocationID,
			ToLocationID:     e.ToLocationID,
			Quantity:         e.Quantity,
			OutTransactionID: e.OutTransactionID,
			InTransactionID:  e.InTransactionID,
			PerformedBy:      e.PerformedBy,
		}, nil

	case *domain.StocktakeCompletedEvent:
		return "stocktake/" + e.StocktakeID, cloudevents.StocktakeCompletedData{
			StocktakeID:       e.StocktakeID,
			LocationID:        e.LocationID,
			TotalItemsCounted: e.TotalItemsCounted,
			ItemsAdjusted:     e.ItemsAdjusted,
			PerformedBy:       e.PerformedBy,
		}, nil
	}
	return "", nil, fmt.Errorf("unsupported domain event %T", event)
}
