package stream

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"sysmon-agent/internal/model"
)

// mongoDriver is the slice of the driver the sink uses.
type mongoDriver interface {
	Ping(ctx context.Context) error
	InsertOne(ctx context.Context, doc any) error
	Disconnect(ctx context.Context) error
}

type driverClient struct {
	client *mongo.Client
	coll   *mongo.Collection
}

func (d *driverClient) Ping(ctx context.Context) error {
	return d.client.Ping(ctx, readpref.Primary())
}

func (d *driverClient) InsertOne(ctx context.Context, doc any) error {
	_, err := d.coll.InsertOne(ctx, doc)
	return err
}

func (d *driverClient) Disconnect(ctx context.Context) error {
	return d.client.Disconnect(ctx)
}

// MongoSink appends every record as one document in a single collection.
type MongoSink struct {
	driver     mongoDriver
	database   string
	collection string
}

// NewMongoSink configures the client; the driver connects lazily, so no
// network traffic happens before Ping or Append.
func NewMongoSink(uri, database, collection string, tlsCfg *tls.Config, connectTimeout time.Duration) (*MongoSink, error) {
	opts := options.Client().ApplyURI(uri).SetAppName("sysmon-agent")
	if connectTimeout > 0 {
		opts.SetConnectTimeout(connectTimeout)
		opts.SetServerSelectionTimeout(connectTimeout)
	}
	if tlsCfg != nil {
		opts.SetTLSConfig(tlsCfg)
	}
	client, err := mongo.Connect(context.Background(), opts)
	if err != nil {
		return nil, fmt.Errorf("mongo client: %w", err)
	}
	return newMongoSink(&driverClient{client: client, coll: client.Database(database).Collection(collection)}, database, collection), nil
}

func newMongoSink(driver mongoDriver, database, collection string) *MongoSink {
	return &MongoSink{driver: driver, database: database, collection: collection}
}

func (s *MongoSink) Ping(ctx context.Context) error {
	if err := s.driver.Ping(ctx); err != nil {
		return fmt.Errorf("mongo ping: %w", err)
	}
	return nil
}

func (s *MongoSink) Append(ctx context.Context, r model.Record) error {
	if err := checkRecord(r); err != nil {
		return err
	}
	if err := s.driver.InsertOne(ctx, r); err != nil {
		return fmt.Errorf("insert %s into %s.%s: %w", r.RecordType(), s.database, s.collection, err)
	}
	return nil
}

func (s *MongoSink) Close(ctx context.Context) error {
	return s.driver.Disconnect(ctx)
}
