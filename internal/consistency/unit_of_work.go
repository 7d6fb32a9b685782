package consistency

import "context"

// Scope is handed to the body of a unit of work. Every write goes through Step
// so that a best-effort run can report exactly what committed.
type Scope interface {
	Step(ctx context.Context, name string, fn func(ctx context.Context) error) error
}

// UnitOfWork runs a stock operation's reads and writes under the process mode.
// Operations are written once against this interface and never branch on mode.
type UnitOfWork interface {
	Mode() Mode

	// Execute runs fn. Strict implementations commit all of fn's writes or none.
	// Best-effort implementations return *domain.PartialFailureError when fn
	// fails after at least one step committed.
	Execute(ctx context.Context, operation string, fn func(ctx context.Context, scope Scope) error) error
}
