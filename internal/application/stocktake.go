package application

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/rxledger/inventory-ledger/internal/consistency"
	"github.com/rxledger/inventory-ledger/internal/domain"
)

// Stocktake reconciles counted quantities at a location in one unit of work.
// A line whose item is missing or whose count is negative is reported on that
// line and the run continues. Lines whose count matches write nothing.
//
// Any other error stops the run. Strict mode rolls the whole run back; in
// best-effort mode lines adjusted before the failure stay written and the
// error is a *domain.PartialFailureError naming their steps.
func (c *StockCoordinator) Stocktake(ctx context.Context, cmd StocktakeCommand) (result *StocktakeResult, err error) {
	var delta Delta
	ctx, done := c.begin(ctx, OpStocktake, cmd.Actor.ID, "", cmd.LocationID)
	defer func() { done(delta, err) }()

	if err := c.validateCommand(cmd); err != nil {
		return nil, err
	}

	stocktakeID := domain.NewStocktakeID()
	ref := &domain.Reference{Kind: domain.ReferenceStocktake, ID: stocktakeID, Number: stocktakeID}

	var out *StocktakeResult
	err = c.uow.Execute(ctx, OpStocktake, func(ctx context.Context, scope consistency.Scope) error {
		out = &StocktakeResult{
			StocktakeID: stocktakeID,
			LocationID:  cmd.LocationID,
			Lines:       make([]StocktakeLine, 0, len(cmd.Counts)),
		}

		for _, count := range cmd.Counts {
			line, err := c.stocktakeLine(ctx, scope, cmd, count, ref)
			if err != nil {
				return err
			}

			out.Lines = append(out.Lines, line)
			if line.Err == nil {
				out.TotalItemsCounted++
			}
			if line.Adjusted {
				out.ItemsAdjusted++
			}
		}

		return c.recordEvent(ctx, scope, &domain.StocktakeCompletedEvent{
			StocktakeID:       out.StocktakeID,
			LocationID:        out.LocationID,
			TotalItemsCounted: out.TotalItemsCounted,
			ItemsAdjusted:     out.ItemsAdjusted,
			PerformedBy:       cmd.Actor.ID,
			At:                time.Now().UTC(),
		})
	})
	if err != nil {
		return nil, err
	}

	for _, line := range out.Lines {
		if line.Adjusted {
			delta.OldQuantity += line.Before
			delta.NewQuantity += line.After
		}
	}

	c.logger.Audit(ctx, OpStocktake, "location", cmd.LocationID, cmd.Actor.ID, map[string]any{
		"stocktakeId":       stocktakeID,
		"totalItemsCounted": out.TotalItemsCounted,
		"itemsAdjusted":     out.ItemsAdjusted,
		"failedLines":       len(out.Failed()),
		"mode":              c.uow.Mode().String(),
	})
	return out, nil
}

// stocktakeLine counts one line. Rejections found before any write are set on
// line.Err; the returned error stops the run.
func (c *StockCoordinator) stocktakeLine(ctx context.Context, scope consistency.Scope, cmd StocktakeCommand, count StocktakeCount, ref *domain.Reference) (StocktakeLine, error) {
	line := StocktakeLine{DrugID: count.DrugID, After: count.ActualQuantity}

	if count.ActualQuantity < 0 {
		line.Err = &domain.InvalidQuantityError{Quantity: count.ActualQuantity, Reason: "counted quantity cannot be negative"}
		return line, nil
	}

	item, err := c.store.Get(ctx, count.DrugID, cmd.LocationID)
	if err != nil {
		if stderrors.Is(err, domain.ErrItemNotFound) {
			line.Err = err
			return line, nil
		}
		return line, err
	}

	line.Before = item.Quantity
	line.Difference = count.ActualQuantity - item.Quantity
	if line.Difference == 0 {
		return line, nil
	}

	notes := count.Notes
	if notes == "" {
		notes = cmd.Notes
	}

	record, err := c.applyMovement(ctx, scope, item, domain.Movement{
		Type:      domain.TransactionStocktake,
		Before:    line.Before,
		After:     count.ActualQuantity,
		Reason:    domain.ReasonStocktake,
		Reference: ref,
		Actor:     cmd.Actor,
		Notes:     notes,
	})
	if err != nil {
		return line, err
	}

	line.Adjusted = true
	line.Transaction = record
	return line, c.recordEvent(ctx, scope, &domain.StockMovedEvent{Record: record})
}
