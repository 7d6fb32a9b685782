package testing

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoImage is the server version the integration suites run against
const MongoImage = "mongo:6"

// MongoDBContainer wraps a testcontainers MongoDB instance
type MongoDBContainer struct {
	Container  *mongodb.MongoDBContainer
	URI        string
	ReplicaSet bool
}

// NewMongoDBContainer starts a standalone server. Multi-document transactions
// are unavailable, so the ledger runs in best-effort mode against it.
func NewMongoDBContainer(ctx context.Context) (*MongoDBContainer, error) {
	return runMongo(ctx, false)
}

// NewMongoDBReplicaSetContainer starts a single-node replica set, which
// supports transactions and therefore strict mode.
func NewMongoDBReplicaSetContainer(ctx context.Context) (*MongoDBContainer, error) {
	return runMongo(ctx, true)
}

func runMongo(ctx context.Context, replicaSet bool) (*MongoDBContainer, error) {
	var opts []testcontainers.ContainerCustomizer
	if replicaSet {
		opts = append(opts, mongodb.WithReplicaSet("rs"))
	}

	container, err := mongodb.Run(ctx, MongoImage, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to start mongodb container: %w", err)
	}

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	return &MongoDBContainer{
		Container:  container,
		URI:        uri,
		ReplicaSet: replicaSet,
	}, nil
}

// Close terminates the MongoDB container
func (m *MongoDBContainer) Close(ctx context.Context) error {
	if m.Container != nil {
		return m.Container.Terminate(ctx)
	}
	return nil
}

// GetClient connects directly to the container
func (m *MongoDBContainer) GetClient(ctx context.Context) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(m.URI).SetDirect(true))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return client, nil
}
