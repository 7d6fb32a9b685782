package outbox

import "context"

// Repository defines the interface for outbox event persistence
type Repository interface {
	// Save stores an event. Called inside the ledger's unit of work.
	Save(ctx context.Context, event *OutboxEvent) error

	// FindUnpublished retrieves unpublished, retryable events oldest first
	FindUnpublished(ctx context.Context, limit int) ([]*OutboxEvent, error)

	// MarkPublished marks an event as published
	MarkPublished(ctx context.Context, eventID string) error

	// IncrementRetry increments the retry count and records the last error
	IncrementRetry(ctx context.Context, eventID string, errorMsg string) error

	// FindByAggregateID retrieves all events for one aggregate
	FindByAggregateID(ctx context.Context, aggregateID string) ([]*OutboxEvent, error)
}
