package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// probeCollection is read inside the probe transaction; it need not exist
const probeCollection = "ledger_probe"

// TransactionProber checks whether the deployment supports multi-document
// transactions. Standalone servers reject the first operation of a
// transaction, so a real read is issued rather than only starting one.
type TransactionProber struct {
	db *mongo.Database
}

// NewTransactionProber creates a prober against db
func NewTransactionProber(db *mongo.Database) *TransactionProber {
	return &TransactionProber{db: db}
}

// ProbeTransactions opens a transaction, runs a no-op read in it and aborts.
// It never writes.
func (p *TransactionProber) ProbeTransactions(ctx context.Context) error {
	session, err := p.db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	if err := session.StartTransaction(transactionOptions()); err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	sessCtx := mongo.NewSessionContext(ctx, session)
	err = p.db.Collection(probeCollection).FindOne(sessCtx, bson.M{"_id": "probe"}).Err()
	abortErr := session.AbortTransaction(context.WithoutCancel(ctx))

	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("transactional read failed: %w", err)
	}
	if abortErr != nil {
		return fmt.Errorf("failed to abort probe transaction: %w", abortErr)
	}
	return nil
}
