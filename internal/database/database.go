// internal/database/database.go
package database

import (
	"context"
	"time"

	"github.com/blanchy21/TipsterNew-sub000/internal/utils"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// defaultPollInterval is used when the deployment does not support change streams.
const defaultPollInterval = 2 * time.Second

type MongoDB struct {
	Client        *mongo.Client
	Tips          *mongo.Collection
	Verifications *mongo.Collection
	Users         *mongo.Collection
	Comments      *mongo.Collection

	pollInterval time.Duration
}

var _ Store = (*MongoDB)(nil)

func NewMongoDB(ctx context.Context, uri, dbName string, timeout time.Duration) (*MongoDB, error) {
	serverAPI := options.ServerAPI(options.ServerAPIVersion1)
	opts := options.Client().ApplyURI(uri).SetServerAPIOptions(serverAPI)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to MongoDB")
	}

	// Ping the database to verify connection
	if err := client.Database("admin").RunCommand(ctx, bson.D{{Key: "ping", Value: 1}}).Err(); err != nil {
		return nil, errors.Wrap(err, "failed to ping MongoDB")
	}

	utils.Log.WithField("database", dbName).Info("Successfully connected to MongoDB")

	db := client.Database(dbName)
	m := &MongoDB{
		Client:        client,
		Tips:          db.Collection("tips"),
		Verifications: db.Collection("verifications"),
		Users:         db.Collection("users"),
		Comments:      db.Collection("comments"),
		pollInterval:  defaultPollInterval,
	}

	if err := m.EnsureIndexes(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// EnsureIndexes creates the indexes backing the feed, history and comment queries.
func (m *MongoDB) EnsureIndexes(ctx context.Context) error {
	indexes := []struct {
		coll  *mongo.Collection
		model mongo.IndexModel
	}{
		{m.Tips, mongo.IndexModel{Keys: bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}}}},
		{m.Tips, mongo.IndexModel{Keys: bson.D{{Key: "author.id", Value: 1}, {Key: "createdAt", Value: -1}}}},
		{m.Verifications, mongo.IndexModel{Keys: bson.D{{Key: "tipId", Value: 1}, {Key: "createdAt", Value: -1}}}},
		{m.Comments, mongo.IndexModel{Keys: bson.D{{Key: "tipId", Value: 1}, {Key: "createdAt", Value: 1}}}},
	}
	for _, idx := range indexes {
		if _, err := idx.coll.Indexes().CreateOne(ctx, idx.model); err != nil {
			return errors.Wrapf(err, "failed to create index on %s", idx.coll.Name())
		}
	}
	return nil
}

func (m *MongoDB) Close(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}

// storeError wraps a driver error with the failing operation and classifies
// it for callers. AppErrors pass through untouched.
func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	return utils.AsStoreError(op, errors.Wrap(err, op))
}

// changeStream is the part of *mongo.ChangeStream a subscription reads.
type changeStream interface {
	Next(ctx context.Context) bool
	Err() error
	Close(ctx context.Context) error
}

func (m *MongoDB) changes(coll *mongo.Collection) func(context.Context) (changeStream, error) {
	return func(ctx context.Context) (changeStream, error) {
		stream, err := coll.Watch(ctx, mongo.Pipeline{})
		if err != nil {
			return nil, err
		}
		return stream, nil
	}
}

// subscribe opens the change stream before reading the initial result set,
// so a write landing between the two still triggers a refresh. Every change
// republishes the whole set. Deployments without change streams fall back
// to polling every interval.
func subscribe[T any](
	ctx context.Context,
	name string,
	open func(context.Context) (changeStream, error),
	list func(context.Context) ([]T, error),
	interval time.Duration,
) (Subscription[T], error) {
	f := newFeed[T](ctx, nil)

	stream, err := open(f.ctx)
	if err != nil {
		if ctx.Err() != nil {
			f.Close()
			return nil, storeError("watch "+name, ctx.Err())
		}
		utils.Log.WithError(err).WithField("collection", name).
			Warn("Change stream unavailable, polling instead")
		stream = nil
	}

	initial, err := list(ctx)
	if err != nil {
		if stream != nil {
			stream.Close(context.Background())
		}
		f.Close()
		return nil, err
	}
	f.publish(Snapshot[T]{Items: initial})

	refresh := func(ctx context.Context) error {
		items, err := list(ctx)
		if err != nil {
			return err
		}
		f.publish(Snapshot[T]{Items: items})
		return nil
	}

	go func() {
		var err error
		if stream != nil {
			err = follow(f.ctx, name, stream, refresh)
		} else {
			err = poll(f.ctx, interval, refresh)
		}
		if err != nil && f.ctx.Err() == nil {
			f.publish(Snapshot[T]{Err: err})
		}
	}()
	return f, nil
}

// follow calls refresh after every change on stream until ctx ends.
func follow(ctx context.Context, name string, stream changeStream, refresh func(context.Context) error) error {
	defer stream.Close(context.Background())

	for stream.Next(ctx) {
		if err := refresh(ctx); err != nil {
			return err
		}
	}
	if ctx.Err() != nil {
		return nil
	}
	if err := stream.Err(); err != nil {
		return storeError("watch "+name, err)
	}
	return utils.NewStoreUnavailableError("watch "+name, errors.New("change stream closed"))
}

func poll(ctx context.Context, interval time.Duration, refresh func(context.Context) error) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := refresh(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}
