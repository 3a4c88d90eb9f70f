// Package storage implements the content-addressable persistence layer on top
// of a MongoDB collection: connection management, the dedup-aware record store
// and the read-only analytics engine.
package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"fruitvision/internal/providers"
	"fruitvision/internal/structures"
)

const (
	connectAttempts = 10
	connectPause    = 2 * time.Second
	opTimeout       = 5 * time.Second
)

// CollectionInterface is the slice of *mongo.Collection the store uses.
// Narrowed so tests can substitute a fake collection.
type CollectionInterface interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	UpdateByID(ctx context.Context, id interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	DeleteMany(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
	Aggregate(ctx context.Context, pipeline interface{}, opts ...*options.AggregateOptions) (*mongo.Cursor, error)
	Distinct(ctx context.Context, fieldName string, filter interface{}, opts ...*options.DistinctOptions) ([]interface{}, error)
}

type ConnectionProviderInterface interface {
	Collection(ctx context.Context) (CollectionInterface, error)
	Ping(ctx context.Context) error
	Disconnect(ctx context.Context) error
}

// dialFunc establishes a client and returns the ready collection handle.
// Swappable in tests.
type dialFunc func(ctx context.Context, conf *structures.MongoConfig) (*mongo.Client, CollectionInterface, error)

// ConnectionProvider lazily establishes a single client on first use and
// caches it for the process lifetime. The mutex ensures only one caller runs
// the retry loop; concurrent callers block and reuse the result. There is no
// reconnect-on-drop logic.
type ConnectionProvider struct {
	conf   *structures.Config
	logger providers.Logger

	mu     sync.Mutex
	client *mongo.Client
	col    CollectionInterface

	dial     dialFunc
	attempts int
	pause    time.Duration
}

func NewConnectionProvider(conf *structures.Config, logger providers.Logger) ConnectionProviderInterface {
	return &ConnectionProvider{
		conf:     conf,
		logger:   logger,
		dial:     dialMongo,
		attempts: connectAttempts,
		pause:    connectPause,
	}
}

func dialMongo(ctx context.Context, conf *structures.MongoConfig) (*mongo.Client, CollectionInterface, error) {
	opts := options.Client().
		ApplyURI(conf.URI).
		SetServerSelectionTimeout(opTimeout).
		SetConnectTimeout(opTimeout).
		SetSocketTimeout(opTimeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, nil, err
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, err
	}
	return client, client.Database(conf.Database).Collection(conf.Collection), nil
}

// Collection returns the cached collection handle, connecting on first use
// with bounded retries. Blocks the caller until connected or retries are
// exhausted.
func (cp *ConnectionProvider) Collection(ctx context.Context) (CollectionInterface, error) {
	cp.mu.Lock()
	defer cp.mu.Unlock()

	if cp.col != nil {
		return cp.col, nil
	}

	var lastErr error
	for attempt := 1; attempt <= cp.attempts; attempt++ {
		client, col, err := cp.dial(ctx, &cp.conf.Mongo)
		if err == nil {
			cp.client = client
			cp.col = col
			cp.logger.Infof(providers.TypeApp, "Connected to %s (attempt %d)", cp.conf.Mongo.URI, attempt)
			cp.ensureHashIndex(ctx)
			return cp.col, nil
		}
		lastErr = err
		cp.logger.Warnf(providers.TypeApp, "Connection attempt %d/%d failed: %s", attempt, cp.attempts, err)
		if attempt < cp.attempts {
			select {
			case <-time.After(cp.pause):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, fmt.Errorf("backing store unreachable after %d attempts: %w", cp.attempts, lastErr)
}

// ensureHashIndex creates a unique index on image_hash restricted to
// payload-bearing documents. It closes the window where two concurrent first
// saves of identical bytes both insert a canonical record. Best-effort: a
// failure is logged and dedup falls back to the unguarded check-then-insert.
func (cp *ConnectionProvider) ensureHashIndex(ctx context.Context) {
	col, ok := cp.col.(*mongo.Collection)
	if !ok {
		return
	}
	_, err := col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "image_hash", Value: 1}},
		Options: options.Index().
			SetUnique(true).
			SetPartialFilterExpression(bson.D{{Key: "payload", Value: bson.D{{Key: "$exists", Value: true}}}}),
	})
	if err != nil {
		cp.logger.Warnf(providers.TypeApp, "Could not create canonical hash index: %s", err)
	}
}

func (cp *ConnectionProvider) Ping(ctx context.Context) error {
	cp.mu.Lock()
	client := cp.client
	cp.mu.Unlock()
	if client == nil {
		return fmt.Errorf("not connected")
	}
	return client.Ping(ctx, readpref.Primary())
}

func (cp *ConnectionProvider) Disconnect(ctx context.Context) error {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	if cp.client == nil {
		return nil
	}
	err := cp.client.Disconnect(ctx)
	cp.client = nil
	cp.col = nil
	return err
}
