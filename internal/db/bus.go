package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ukydev/bus-tracker/internal/models"
)

// activeBusFilter matches buses marked active or carrying no status at all.
var activeBusFilter = bson.M{"status": bson.M{"$in": bson.A{models.BusStatusActive, "", nil}}}

// MongoBusCollection implements BusCollection for MongoDB.
type MongoBusCollection struct {
	Collection *mongo.Collection
}

func (c *MongoBusCollection) find(ctx context.Context, filter bson.M) ([]models.Bus, error) {
	if c.Collection == nil {
		return nil, fmt.Errorf("mongo collection is nil")
	}
	cursor, err := c.Collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := []models.Bus{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FindActiveBuses lists every active bus ordered by id.
func (c *MongoBusCollection) FindActiveBuses(ctx context.Context) ([]models.Bus, error) {
	return c.find(ctx, activeBusFilter)
}

// FindBusesByRoute lists the active buses assigned to a route.
func (c *MongoBusCollection) FindBusesByRoute(ctx context.Context, routeID string) ([]models.Bus, error) {
	return c.find(ctx, bson.M{"$and": bson.A{activeBusFilter, bson.M{"route_id": routeID}}})
}

// FindBusByID finds a bus by its id.
func (c *MongoBusCollection) FindBusByID(ctx context.Context, id string) (*models.Bus, error) {
	if c.Collection == nil {
		return nil, fmt.Errorf("mongo collection is nil")
	}
	var bus models.Bus
	if err := c.Collection.FindOne(ctx, bson.M{"_id": id}).Decode(&bus); err != nil {
		return nil, notFound(err, "bus "+id)
	}
	return &bus, nil
}

// UpdateBusLocation records the last known position of a bus.
func (c *MongoBusCollection) UpdateBusLocation(ctx context.Context, id string, loc models.Location, at time.Time) error {
	if c.Collection == nil {
		return fmt.Errorf("mongo collection is nil")
	}
	result, err := c.Collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"location": loc, "updated_at": at}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("bus %s: %w", id, ErrNotFound)
	}
	return nil
}

// UpsertBus inserts or replaces a bus.
func (c *MongoBusCollection) UpsertBus(ctx context.Context, bus models.Bus) error {
	if c.Collection == nil {
		return fmt.Errorf("mongo collection is nil")
	}
	if bus.UpdatedAt.IsZero() {
		bus.UpdatedAt = time.Now()
	}
	_, err := c.Collection.ReplaceOne(ctx, bson.M{"_id": bus.ID}, bus, options.Replace().SetUpsert(true))
	return err
}
