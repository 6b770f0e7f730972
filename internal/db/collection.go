package db

import (
	"context"
	"errors"
	"time"

	"github.com/ukydev/bus-tracker/internal/models"
)

// ErrNotFound is returned when a lookup by id matches no document.
var ErrNotFound = errors.New("not found")

// TelemetryCollection defines the interface for telemetry data operations.
type TelemetryCollection interface {
	InsertTelemetry(ctx context.Context, telemetry models.Telemetry) error
	FindByBus(ctx context.Context, busID string, limit int64) ([]models.Telemetry, error)
}

// BusCollection defines the interface for bus directory operations.
type BusCollection interface {
	FindActiveBuses(ctx context.Context) ([]models.Bus, error)
	FindBusesByRoute(ctx context.Context, routeID string) ([]models.Bus, error)
	FindBusByID(ctx context.Context, id string) (*models.Bus, error)
	UpdateBusLocation(ctx context.Context, id string, loc models.Location, at time.Time) error
	UpsertBus(ctx context.Context, bus models.Bus) error
}

// RouteCollection defines the interface for route directory operations.
type RouteCollection interface {
	FindActiveRoutes(ctx context.Context) ([]models.Route, error)
	FindRouteByID(ctx context.Context, id string) (*models.Route, error)
	UpsertRoute(ctx context.Context, route models.Route) error
}
