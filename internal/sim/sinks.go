package sim

import (
	"context"
	"errors"
	"strings"

	"github.com/ukydev/bus-tracker/internal/models"
)

// PositionSink persists telemetry records.
type PositionSink interface {
	InsertTelemetry(ctx context.Context, t models.Telemetry) error
}

// Broadcaster publishes a payload on a topic.
type Broadcaster interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// Directory supplies the buses to simulate and the routes they ride.
type Directory interface {
	ActiveBuses(ctx context.Context) ([]models.Bus, error)
	Route(ctx context.Context, id string) (models.Route, error)
}

// MultiSink writes to every sink and joins their errors.
type MultiSink []PositionSink

func (m MultiSink) InsertTelemetry(ctx context.Context, t models.Telemetry) error {
	var errs []error
	for _, s := range m {
		if err := s.InsertTelemetry(ctx, t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Fanout publishes to every broadcaster and joins their errors.
type Fanout []Broadcaster

func (f Fanout) Publish(ctx context.Context, topic string, payload any) error {
	var errs []error
	for _, b := range f {
		if err := b.Publish(ctx, topic, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Topics names the broadcast channels: one global and one per route.
type Topics struct {
	Prefix string
}

// Global is the topic every update goes to.
func (t Topics) Global() string {
	return t.Prefix + "/buses"
}

// Route is the topic for updates of buses on routeID.
func (t Topics) Route(routeID string) string {
	return t.Prefix + "/routes/" + routeID
}

// RouteID extracts the route id from a route topic.
func (t Topics) RouteID(topic string) (string, bool) {
	id, ok := strings.CutPrefix(topic, t.Prefix+"/routes/")
	if !ok || id == "" {
		return "", false
	}
	return id, true
}
