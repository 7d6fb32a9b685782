package consistency

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rxledger/inventory-ledger/internal/domain"
	"github.com/rxledger/inventory-ledger/pkg/logging"
	"github.com/rxledger/inventory-ledger/pkg/tracing"
)

// SequentialUnitOfWork is the best-effort unit of work: steps are applied one
// after another with no rollback.
type SequentialUnitOfWork struct {
	logger *logging.Logger
	tracer trace.Tracer
}

// NewSequentialUnitOfWork creates a best-effort unit of work
func NewSequentialUnitOfWork(logger *logging.Logger) *SequentialUnitOfWork {
	return &SequentialUnitOfWork{
		logger: logger.WithComponent("unit-of-work").WithMode(BestEffort.String()),
		tracer: otel.Tracer("consistency"),
	}
}

// Mode returns BestEffort
func (u *SequentialUnitOfWork) Mode() Mode { return BestEffort }

// Execute runs fn and converts a failure after committed steps into a
// *domain.PartialFailureError. A failure before any commit is returned as is.
func (u *SequentialUnitOfWork) Execute(ctx context.Context, operation string, fn func(ctx context.Context, scope Scope) error) (err error) {
	ctx, span := u.tracer.Start(ctx, "uow."+operation,
		trace.WithAttributes(attribute.String("ledger.consistency_mode", BestEffort.String())),
	)
	defer func() { tracing.EndSpan(span, err) }()

	scope := &sequentialScope{span: span}
	if err := fn(ctx, scope); err != nil {
		if len(scope.committed) == 0 {
			return err
		}

		u.logger.WithContext(ctx).Error("Operation partially applied",
			"operation", operation,
			"committed", scope.committed,
			"failed", scope.failed,
			"error", err,
		)
		return &domain.PartialFailureError{
			Operation: operation,
			Committed: append([]string(nil), scope.committed...),
			Failed:    scope.failed,
			Err:       err,
		}
	}
	return nil
}

type sequentialScope struct {
	span      trace.Span
	committed []string
	failed    string
}

func (s *sequentialScope) Step(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	if err := fn(ctx); err != nil {
		s.failed = name
		return err
	}
	s.committed = append(s.committed, name)
	s.span.AddEvent("step committed", trace.WithAttributes(attribute.String("step", name)))
	return nil
}
