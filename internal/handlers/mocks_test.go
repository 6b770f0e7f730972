package handlers

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/ukydev/bus-tracker/internal/models"
)

// MockUserCollection is a mock implementation of UserCollection
type MockUserCollection struct {
	mock.Mock
}

func (m *MockUserCollection) InsertUser(ctx context.Context, user models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserCollection) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserCollection) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserCollection) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserCollection) FindUsers(ctx context.Context, filter bson.M) ([]models.User, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockUserCollection) UpdateUser(ctx context.Context, id string, user models.User) error {
	args := m.Called(ctx, id, user)
	return args.Error(0)
}

func (m *MockUserCollection) DeleteUser(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockUserCollection) UpdateLastLogin(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockBusCollection is a mock implementation of BusCollection
type MockBusCollection struct {
	mock.Mock
}

func (m *MockBusCollection) FindActiveBuses(ctx context.Context) ([]models.Bus, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Bus), args.Error(1)
}

func (m *MockBusCollection) FindBusesByRoute(ctx context.Context, routeID string) ([]models.Bus, error) {
	args := m.Called(ctx, routeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Bus), args.Error(1)
}

func (m *MockBusCollection) FindBusByID(ctx context.Context, id string) (*models.Bus, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Bus), args.Error(1)
}

func (m *MockBusCollection) UpdateBusLocation(ctx context.Context, id string, loc models.Location, at time.Time) error {
	args := m.Called(ctx, id, loc, at)
	return args.Error(0)
}

func (m *MockBusCollection) UpsertBus(ctx context.Context, bus models.Bus) error {
	args := m.Called(ctx, bus)
	return args.Error(0)
}

// MockRouteCollection is a mock implementation of RouteCollection
type MockRouteCollection struct {
	mock.Mock
}

func (m *MockRouteCollection) FindActiveRoutes(ctx context.Context) ([]models.Route, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Route), args.Error(1)
}

func (m *MockRouteCollection) FindRouteByID(ctx context.Context, id string) (*models.Route, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Route), args.Error(1)
}

func (m *MockRouteCollection) UpsertRoute(ctx context.Context, route models.Route) error {
	args := m.Called(ctx, route)
	return args.Error(0)
}

// MockTelemetryCollection is a mock implementation of TelemetryCollection
type MockTelemetryCollection struct {
	mock.Mock
}

func (m *MockTelemetryCollection) InsertTelemetry(ctx context.Context, t models.Telemetry) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockTelemetryCollection) FindByBus(ctx context.Context, busID string, limit int64) ([]models.Telemetry, error) {
	args := m.Called(ctx, busID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Telemetry), args.Error(1)
}

// MockBroadcaster records published payloads.
type MockBroadcaster struct {
	mock.Mock
}

func (m *MockBroadcaster) Publish(ctx context.Context, topic string, payload any) error {
	args := m.Called(ctx, topic, payload)
	return args.Error(0)
}
