package db

import (
	"context"

	"github.com/ukydev/bus-tracker/internal/models"
)

// Directory serves the simulator's bus and route lookups from the collections.
type Directory struct {
	Buses  BusCollection
	Routes RouteCollection
}

// ActiveBuses lists the buses the simulator should drive.
func (d *Directory) ActiveBuses(ctx context.Context) ([]models.Bus, error) {
	return d.Buses.FindActiveBuses(ctx)
}

// Route loads one route by id.
func (d *Directory) Route(ctx context.Context, id string) (models.Route, error) {
	r, err := d.Routes.FindRouteByID(ctx, id)
	if err != nil {
		return models.Route{}, err
	}
	return *r, nil
}
