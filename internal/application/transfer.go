package application

import (
	"context"

	"github.com/rxledger/inventory-ledger/internal/consistency"
	"github.com/rxledger/inventory-ledger/internal/domain"
	"github.com/rxledger/inventory-ledger/pkg/errors"
)

// TransferStock moves stock between two locations. It writes, in order, the
// source item, its out record, the destination item, its in record and the
// transfer summary. All three records share one transfer reference.
func (c *StockCoordinator) TransferStock(ctx context.Context, cmd TransferStockCommand) (result *TransferResult, err error) {
	var delta Delta
	ctx, done := c.begin(ctx, OpTransfer, cmd.Actor.ID, cmd.DrugID, cmd.FromLocationID)
	defer func() { done(delta, err) }()

	if err := positiveQuantity(cmd.Quantity, "transfer"); err != nil {
		return nil, err
	}
	if err := c.validateCommand(cmd); err != nil {
		return nil, err
	}
	if cmd.FromLocationID == cmd.To.LocationID {
		return nil, errors.ErrValidationWithFields("source and destination must differ", map[string]string{
			"to": "to must differ from fromLocationId",
		})
	}

	transferID := domain.NewTransferID()
	ref := &domain.Reference{Kind: domain.ReferenceTransfer, ID: transferID, Number: transferID}

	var out *TransferResult
	err = c.uow.Execute(ctx, OpTransfer, func(ctx context.Context, scope consistency.Scope) error {
		source, err := c.store.Get(ctx, cmd.DrugID, cmd.FromLocationID)
		if err != nil {
			return err
		}

		sourceBefore := source.Quantity
		if sourceBefore < cmd.Quantity {
			return &domain.InsufficientStockError{
				DrugID:     cmd.DrugID,
				LocationID: cmd.FromLocationID,
				Required:   cmd.Quantity,
				Available:  sourceBefore,
			}
		}

		outRecord, err := c.applyMovement(ctx, scope, source, domain.Movement{
			Type:      domain.TransactionOut,
			Before:    sourceBefore,
			After:     sourceBefore - cmd.Quantity,
			Reason:    domain.ReasonTransferOut,
			Reference: ref,
			Actor:     cmd.Actor,
			Notes:     cmd.Notes,
		})
		if err != nil {
			return err
		}

		destination, err := c.findOrCreate(ctx, scope, source.SeedAt(cmd.To))
		if err != nil {
			return err
		}

		destinationBefore := destination.Quantity
		inRecord, err := c.applyMovement(ctx, scope, destination, domain.Movement{
			Type:      domain.TransactionIn,
			Before:    destinationBefore,
			After:     destinationBefore + cmd.Quantity,
			Reason:    domain.ReasonTransferIn,
			Reference: ref,
			Actor:     cmd.Actor,
			Notes:     cmd.Notes,
		})
		if err != nil {
			return err
		}

		summary := domain.NewTransferRecord(source, destination.Location, sourceBefore, source.Quantity, ref, cmd.Actor, cmd.Notes)
		if err := c.appendRecord(ctx, scope, summary); err != nil {
			return err
		}

		out = &TransferResult{
			TransferID:          transferID,
			FromItem:            source,
			ToItem:              destination,
			TransferTransaction: summary,
			OutTransaction:      outRecord,
			InTransaction:       inRecord,
		}
		return c.recordEvent(ctx, scope, &domain.StockTransferredEvent{
			TransferID:       transferID,
			DrugID:           cmd.DrugID,
			FromLocationID:   cmd.FromLocationID,
			ToLocationID:     destination.Location.LocationID,
			Quantity:         cmd.Quantity,
			OutTransactionID: outRecord.ID,
			InTransactionID:  inRecord.ID,
			PerformedBy:      cmd.Actor.ID,
			At:               summary.CreatedAt,
		})
	})
	if err != nil {
		return nil, err
	}

	delta = Delta{OldQuantity: out.OutTransaction.QuantityBefore, NewQuantity: out.OutTransaction.QuantityAfter}
	c.audit(ctx, OpTransfer, out.TransferTransaction)
	return out, nil
}
