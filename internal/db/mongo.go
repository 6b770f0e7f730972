package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names.
const (
	TelemetryCollectionName = "telemetry"
	BusCollectionName       = "buses"
	RouteCollectionName     = "routes"
	UserCollectionName      = "users"
)

// ConnectMongo connects to MongoDB and verifies the connection with a ping.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo.Connect error: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo.Ping error: %w", err)
	}
	return client, nil
}

// Store groups the collections of one database.
type Store struct {
	Telemetry *MongoTelemetryCollection
	Buses     *MongoBusCollection
	Routes    *MongoRouteCollection
	Users     *MongoUserCollection
}

// NewStore binds the collections of database name.
func NewStore(client *mongo.Client, name string) *Store {
	database := client.Database(name)
	return &Store{
		Telemetry: &MongoTelemetryCollection{Collection: database.Collection(TelemetryCollectionName)},
		Buses:     &MongoBusCollection{Collection: database.Collection(BusCollectionName)},
		Routes:    &MongoRouteCollection{Collection: database.Collection(RouteCollectionName)},
		Users:     &MongoUserCollection{Collection: database.Collection(UserCollectionName)},
	}
}

// EnsureIndexes creates the indexes the read API relies on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.Telemetry.Collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "bus_id", Value: 1}, {Key: "timestamp", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("telemetry index: %w", err)
	}
	_, err = s.Buses.Collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "route_id", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("bus index: %w", err)
	}
	_, err = s.Users.Collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("user index: %w", err)
	}
	return nil
}

func notFound(err error, what string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return err
}
