package mongodb

import (
	"context"
	"errors"
	"time"

	"github.com/rxledger/inventory-ledger/pkg/logging"
	"github.com/rxledger/inventory-ledger/pkg/metrics"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// Collection wraps a mongo.Collection with metrics, tracing and query logging.
// metrics and logger may be nil.
type Collection struct {
	collection *mongo.Collection
	name       string
	database   string
	metrics    *metrics.Metrics
	logger     *logging.Logger
	tracer     trace.Tracer
}

// NewCollection instruments the named collection of db
func NewCollection(db *mongo.Database, name string, m *metrics.Metrics, logger *logging.Logger) *Collection {
	return &Collection{
		collection: db.Collection(name),
		name:       name,
		database:   db.Name(),
		metrics:    m,
		logger:     logger,
		tracer:     otel.Tracer("mongodb"),
	}
}

func (c *Collection) startSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, "mongodb."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.DBSystemMongoDB,
			semconv.DBNameKey.String(c.database),
			semconv.DBOperationKey.String(operation),
			attribute.String("db.collection", c.name),
			attribute.Bool("db.in_transaction", mongo.SessionFromContext(ctx) != nil),
		),
	)
}

// finish records metrics, the query log line and the span status for one operation.
func (c *Collection) finish(ctx context.Context, span trace.Span, operation string, start time.Time, err error, rows int64) {
	duration := time.Since(start)
	success := err == nil || errors.Is(err, mongo.ErrNoDocuments)

	if c.metrics != nil {
		c.metrics.RecordMongoDBOperation(c.name, operation, success, duration)
	}
	if c.logger != nil {
		c.logger.DatabaseQuery(ctx, c.name, operation, duration, success, rows)
	}

	if !success {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
		span.SetAttributes(attribute.Int64("db.rows_affected", rows))
	}
	span.End()
}

// InsertOne inserts a single document
func (c *Collection) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error) {
	start := time.Now()
	ctx, span := c.startSpan(ctx, "insertOne")

	result, err := c.collection.InsertOne(ctx, document, opts...)
	var rows int64
	if err == nil {
		rows = 1
	}
	c.finish(ctx, span, "insertOne", start, err, rows)
	return result, err
}

// FindOne finds a single document
func (c *Collection) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult {
	start := time.Now()
	ctx, span := c.startSpan(ctx, "findOne")

	result := c.collection.FindOne(ctx, filter, opts...)
	var rows int64
	if result.Err() == nil {
		rows = 1
	}
	c.finish(ctx, span, "findOne", start, result.Err(), rows)
	return result
}

// Find finds multiple documents
func (c *Collection) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error) {
	start := time.Now()
	ctx, span := c.startSpan(ctx, "find")

	cursor, err := c.collection.Find(ctx, filter, opts...)
	c.finish(ctx, span, "find", start, err, 0)
	return cursor, err
}

// UpdateOne updates a single document
func (c *Collection) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	start := time.Now()
	ctx, span := c.startSpan(ctx, "updateOne")

	result, err := c.collection.UpdateOne(ctx, filter, update, opts...)
	var rows int64
	if err == nil && result != nil {
		rows = result.ModifiedCount + result.UpsertedCount
	}
	c.finish(ctx, span, "updateOne", start, err, rows)
	return result, err
}

// CountDocuments counts documents matching filter
func (c *Collection) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	start := time.Now()
	ctx, span := c.startSpan(ctx, "countDocuments")

	count, err := c.collection.CountDocuments(ctx, filter, opts...)
	c.finish(ctx, span, "countDocuments", start, err, count)
	return count, err
}

// Aggregate runs an aggregation pipeline
func (c *Collection) Aggregate(ctx context.Context, pipeline interface{}, opts ...*options.AggregateOptions) (*mongo.Cursor, error) {
	start := time.Now()
	ctx, span := c.startSpan(ctx, "aggregate")

	cursor, err := c.collection.Aggregate(ctx, pipeline, opts...)
	c.finish(ctx, span, "aggregate", start, err, 0)
	return cursor, err
}

// CreateIndexes creates the given indexes
func (c *Collection) CreateIndexes(ctx context.Context, models []mongo.IndexModel) ([]string, error) {
	start := time.Now()
	ctx, span := c.startSpan(ctx, "createIndexes")

	names, err := c.collection.Indexes().CreateMany(ctx, models)
	c.finish(ctx, span, "createIndexes", start, err, int64(len(names)))
	return names, err
}

// Underlying returns the underlying mongo.Collection
func (c *Collection) Underlying() *mongo.Collection {
	return c.collection
}

// Name returns the collection name
func (c *Collection) Name() string {
	return c.name
}
