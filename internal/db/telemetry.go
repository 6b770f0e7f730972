package db

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ukydev/bus-tracker/internal/models"
)

// MongoTelemetryCollection stores position samples.
type MongoTelemetryCollection struct {
	Collection *mongo.Collection
}

// InsertTelemetry inserts a telemetry record into the collection.
func (c *MongoTelemetryCollection) InsertTelemetry(ctx context.Context, telemetry models.Telemetry) error {
	if c.Collection == nil {
		return fmt.Errorf("mongo collection is nil")
	}
	_, err := c.Collection.InsertOne(ctx, telemetry)
	return err
}

// FindByBus returns the newest samples of a bus, newest first.
func (c *MongoTelemetryCollection) FindByBus(ctx context.Context, busID string, limit int64) ([]models.Telemetry, error) {
	if c.Collection == nil {
		return nil, fmt.Errorf("mongo collection is nil")
	}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}}).SetLimit(limit)
	cursor, err := c.Collection.Find(ctx, bson.M{"bus_id": busID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := []models.Telemetry{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteAll deletes all telemetry records from the collection.
func (c *MongoTelemetryCollection) DeleteAll(ctx context.Context) error {
	if c.Collection == nil {
		return fmt.Errorf("mongo collection is nil")
	}
	_, err := c.Collection.DeleteMany(ctx, bson.M{})
	return err
}
