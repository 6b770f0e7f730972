// Package directory loads the bus and route directory from a YAML seed file.
package directory

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/ukydev/bus-tracker/internal/db"
	"github.com/ukydev/bus-tracker/internal/models"
)

// ErrUnknownRoute is returned by Route for ids missing from the file.
var ErrUnknownRoute = errors.New("unknown route")

// File is the parsed seed file.
type File struct {
	Routes []models.Route `yaml:"routes" validate:"dive"`
	Buses  []models.Bus   `yaml:"buses" validate:"dive"`

	routes map[string]int
}

// Load reads and validates a seed file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read directory file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates seed data. Route ids must be unique; waypoint order and
// bus references are left for the simulator to check so bad entries only drop one bus.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode directory file: %w", err)
	}
	if err := validator.New().Struct(&f); err != nil {
		return nil, fmt.Errorf("invalid directory file: %w", err)
	}

	f.routes = make(map[string]int, len(f.Routes))
	for i, r := range f.Routes {
		if _, dup := f.routes[r.ID]; dup {
			return nil, fmt.Errorf("invalid directory file: duplicate route %q", r.ID)
		}
		f.routes[r.ID] = i
	}
	return &f, nil
}

// ActiveBuses returns the buses that are not marked inactive.
func (f *File) ActiveBuses(context.Context) ([]models.Bus, error) {
	out := make([]models.Bus, 0, len(f.Buses))
	for _, b := range f.Buses {
		if b.IsActive() {
			out = append(out, b)
		}
	}
	return out, nil
}

// Route returns the route with id.
func (f *File) Route(_ context.Context, id string) (models.Route, error) {
	i, ok := f.routes[id]
	if !ok {
		return models.Route{}, fmt.Errorf("%w: %s", ErrUnknownRoute, id)
	}
	return f.Routes[i], nil
}

// Seed upserts every route and bus of f into the collections.
func Seed(ctx context.Context, f *File, buses db.BusCollection, routes db.RouteCollection, logger log.FieldLogger) error {
	for _, r := range f.Routes {
		if err := routes.UpsertRoute(ctx, r); err != nil {
			return fmt.Errorf("seed route %s: %w", r.ID, err)
		}
	}
	for _, b := range f.Buses {
		if b.Status == "" {
			b.Status = models.BusStatusActive
		}
		if err := buses.UpsertBus(ctx, b); err != nil {
			return fmt.Errorf("seed bus %s: %w", b.ID, err)
		}
	}
	logger.WithFields(log.Fields{
		"routes": len(f.Routes),
		"buses":  len(f.Buses),
	}).Info("Directory seeded")
	return nil
}
