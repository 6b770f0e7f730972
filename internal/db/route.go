package db

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ukydev/bus-tracker/internal/models"
)

// MongoRouteCollection implements RouteCollection for MongoDB.
type MongoRouteCollection struct {
	Collection *mongo.Collection
}

// FindActiveRoutes lists active routes ordered by id.
func (c *MongoRouteCollection) FindActiveRoutes(ctx context.Context) ([]models.Route, error) {
	if c.Collection == nil {
		return nil, fmt.Errorf("mongo collection is nil")
	}
	cursor, err := c.Collection.Find(ctx, bson.M{"active": true}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := []models.Route{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FindRouteByID finds a route by its id, active or not.
func (c *MongoRouteCollection) FindRouteByID(ctx context.Context, id string) (*models.Route, error) {
	if c.Collection == nil {
		return nil, fmt.Errorf("mongo collection is nil")
	}
	var route models.Route
	if err := c.Collection.FindOne(ctx, bson.M{"_id": id}).Decode(&route); err != nil {
		return nil, notFound(err, "route "+id)
	}
	return &route, nil
}

// UpsertRoute inserts or replaces a route.
func (c *MongoRouteCollection) UpsertRoute(ctx context.Context, route models.Route) error {
	if c.Collection == nil {
		return fmt.Errorf("mongo collection is nil")
	}
	_, err := c.Collection.ReplaceOne(ctx, bson.M{"_id": route.ID}, route, options.Replace().SetUpsert(true))
	return err
}
