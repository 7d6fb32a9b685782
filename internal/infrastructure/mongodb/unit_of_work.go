package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rxledger/inventory-ledger/internal/consistency"
	"github.com/rxledger/inventory-ledger/internal/domain"
	"github.com/rxledger/inventory-ledger/pkg/logging"
	"github.com/rxledger/inventory-ledger/pkg/metrics"
	"github.com/rxledger/inventory-ledger/pkg/tracing"
)

const (
	// writeConflictCode is the server code for a write conflict inside a transaction
	writeConflictCode = 112

	transientTransactionLabel = "TransientTransactionError"
)

// Transaction outcomes reported to metrics
const (
	outcomeCommitted = "committed"
	outcomeAborted   = "aborted"
	outcomeConflict  = "conflict"
)

// TransactionalUnitOfWork is the strict unit of work: every operation runs in
// one multi-document transaction and commits all of its writes or none.
//
// The transaction is driven by hand rather than with Session.WithTransaction
// so that a write conflict is reported to the caller instead of retried.
type TransactionalUnitOfWork struct {
	client  *mongo.Client
	metrics *metrics.Metrics
	logger  *logging.Logger
	tracer  trace.Tracer
}

// NewTransactionalUnitOfWork creates a strict unit of work. metrics may be nil.
func NewTransactionalUnitOfWork(client *mongo.Client, m *metrics.Metrics, logger *logging.Logger) *TransactionalUnitOfWork {
	return &TransactionalUnitOfWork{
		client:  client,
		metrics: m,
		logger:  logger.WithComponent("unit-of-work").WithMode(consistency.Strict.String()),
		tracer:  otel.Tracer("consistency"),
	}
}

// Mode returns consistency.Strict
func (u *TransactionalUnitOfWork) Mode() consistency.Mode { return consistency.Strict }

func transactionOptions() *options.TransactionOptions {
	return options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())
}

// Execute runs fn inside a session transaction. Any error from fn aborts it.
func (u *TransactionalUnitOfWork) Execute(ctx context.Context, operation string, fn func(ctx context.Context, scope consistency.Scope) error) (err error) {
	ctx, span := u.tracer.Start(ctx, "uow."+operation,
		trace.WithAttributes(attribute.String("ledger.consistency_mode", consistency.Strict.String())),
	)
	defer func() { tracing.EndSpan(span, err) }()

	session, err := u.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	if err := session.StartTransaction(transactionOptions()); err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	sessCtx := mongo.NewSessionContext(ctx, session)
	scope := &transactionScope{span: span}

	if err := fn(sessCtx, scope); err != nil {
		if abortErr := session.AbortTransaction(context.WithoutCancel(ctx)); abortErr != nil {
			u.logger.WithContext(ctx).Warn("Failed to abort transaction",
				"operation", operation,
				"error", abortErr.Error(),
			)
		}
		return u.classify(ctx, operation, err)
	}

	if err := session.CommitTransaction(sessCtx); err != nil {
		return u.classify(ctx, operation, fmt.Errorf("failed to commit transaction: %w", err))
	}

	u.record(outcomeCommitted)
	span.SetAttributes(attribute.Int("ledger.steps", scope.steps))
	return nil
}

// classify turns a write conflict into *domain.ConcurrentModificationError and
// passes everything else through
func (u *TransactionalUnitOfWork) classify(ctx context.Context, operation string, err error) error {
	var conflict *domain.ConcurrentModificationError
	if errors.As(err, &conflict) || isWriteConflict(err) {
		u.record(outcomeConflict)
		u.logger.WithContext(ctx).Warn("Transaction aborted by concurrent modification",
			"operation", operation,
			"error", err.Error(),
		)
		if conflict != nil {
			return err
		}
		return &domain.ConcurrentModificationError{Operation: operation, Err: err}
	}

	u.record(outcomeAborted)
	return err
}

func (u *TransactionalUnitOfWork) record(outcome string) {
	if u.metrics != nil {
		u.metrics.RecordMongoDBTransaction(outcome)
	}
}

// isWriteConflict reports whether err is a transient transaction error or a
// write conflict
func isWriteConflict(err error) bool {
	var serverErr mongo.ServerError
	if errors.As(err, &serverErr) {
		return serverErr.HasErrorLabel(transientTransactionLabel) ||
			serverErr.HasErrorCode(writeConflictCode)
	}
	return false
}

type transactionScope struct {
	span  trace.Span
	steps int
}

func (s *transactionScope) Step(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	if err := fn(ctx); err != nil {
		s.span.AddEvent("step failed", trace.WithAttributes(attribute.String("step", name)))
		return err
	}
	s.steps++
	s.span.AddEvent("step staged", trace.WithAttributes(attribute.String("step", name)))
	return nil
}
