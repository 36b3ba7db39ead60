// Package docstore is the MongoDB side of the migration: one nested document
// per listening event, written with unordered bulk calls.
package docstore

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	connectTimeout         = 10 * time.Second
	serverSelectionTimeout = 10 * time.Second
)

// Config selects the deployment and collection.
type Config struct {
	URI        string
	Database   string
	Collection string
	// MaxPoolSize bounds concurrent connections; 0 keeps the driver default.
	MaxPoolSize uint64
}

// Store writes listening-history documents into one collection.
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
	log    *logrus.Logger
	now    func() time.Time
}

// Connect opens a client, verifies the primary is reachable and returns a
// Store bound to the configured collection.
func Connect(ctx context.Context, cfg Config, log *logrus.Logger) (*Store, error) {
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetAppName("listengraph").
		SetConnectTimeout(connectTimeout).
		SetServerSelectionTimeout(serverSelectionTimeout)
	if cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(cfg.MaxPoolSize)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(context.WithoutCancel(ctx)) //nolint:errcheck // best-effort cleanup after failed ping.

		return nil, fmt.Errorf("pinging mongo: %w", err)
	}

	log.WithFields(logrus.Fields{
		"database":   cfg.Database,
		"collection": cfg.Collection,
	}).Info("connected to mongo")

	return &Store{
		client: client,
		coll:   client.Database(cfg.Database).Collection(cfg.Collection),
		log:    log,
		now:    time.Now,
	}, nil
}

// Ping verifies the primary is still reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return mapError(fmt.Errorf("pinging mongo: %w", err))
	}

	return nil
}

// Collection returns the collection name documents are written to.
func (s *Store) Collection() string {
	return s.coll.Name()
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnecting from mongo: %w", err)
	}

	return nil
}
