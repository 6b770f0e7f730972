package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ukydev/bus-tracker/internal/db"
	"github.com/ukydev/bus-tracker/internal/geo"
	"github.com/ukydev/bus-tracker/internal/models"
)

func newRouteHandler() (*RouteHandler, *MockRouteCollection, *MockBusCollection) {
	logger, _ := test.NewNullLogger()
	routes := new(MockRouteCollection)
	buses := new(MockBusCollection)
	return NewRouteHandler(routes, buses, logger), routes, buses
}

func TestRouteHandler_List(t *testing.T) {
	h, routes, buses := newRouteHandler()
	routes.On("FindActiveRoutes", mock.Anything).Return(testRoutes(), nil)
	buses.On("FindActiveBuses", mock.Anything).Return(testBuses(), nil)

	w := httptest.NewRecorder()
	h.List(w, httptest.NewRequest(http.MethodGet, "/api/routes", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var got []models.RouteSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "Alto Line", got[0].Name)
	assert.Equal(t, 2, got[0].TotalStops)
	assert.Equal(t, 1, got[0].TotalBuses)
	assert.Equal(t, "Linea 1", got[1].Name)
	assert.Equal(t, 3, got[1].TotalStops)
	assert.Equal(t, 2, got[1].TotalBuses)
}

func TestRouteHandler_Get(t *testing.T) {
	h, routes, _ := newRouteHandler()
	route := testRoutes()[0]
	routes.On("FindRouteByID", mock.Anything, "linea-1").Return(&route, nil)
	routes.On("FindRouteByID", mock.Anything, "nope").Return(nil, db.ErrNotFound)

	req := httptest.NewRequest(http.MethodGet, "/api/routes/linea-1", nil)
	req.SetPathValue("id", "linea-1")
	w := httptest.NewRecorder()
	h.Get(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var got models.Route
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got.Waypoints, 3)
	assert.Equal(t, "a1", got.Waypoints[0].ID)
	assert.Equal(t, "a3", got.Waypoints[2].ID)

	req = httptest.NewRequest(http.MethodGet, "/api/routes/nope", nil)
	req.SetPathValue("id", "nope")
	w = httptest.NewRecorder()
	h.Get(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouteHandler_Nearby(t *testing.T) {
	h, routes, _ := newRouteHandler()
	routes.On("FindActiveRoutes", mock.Anything).Return(testRoutes(), nil)

	w := httptest.NewRecorder()
	h.Nearby(w, httptest.NewRequest(http.MethodGet, "/api/routes/stops/nearby?lat=-16.4956&lon=-68.1335&radius=1", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var got []models.NearbyStop
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "a1", got[0].ID)
	assert.Equal(t, "a2", got[1].ID)
	assert.Less(t, got[0].DistanceKm, got[1].DistanceKm)
	assert.Equal(t, "linea-1", got[0].RouteID)

	for _, q := range []string{"", "?lat=abc&lon=1", "?lat=-16&lon=200", "?lat=1&lon=1&radius=-2"} {
		w := httptest.NewRecorder()
		h.Nearby(w, httptest.NewRequest(http.MethodGet, "/api/routes/stops/nearby"+q, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, "query %q", q)
	}
}

func TestStopsWithin_DefaultRadiusAndBoundary(t *testing.T) {
	routes := testRoutes()
	p := geo.Point{Lat: -16.4955, Lon: -68.1336}

	all := StopsWithin(routes, p, defaultNearbyRadiusKm)
	for _, s := range all {
		assert.Less(t, s.DistanceKm, defaultNearbyRadiusKm)
	}

	// A stop exactly on the radius is excluded.
	d := geo.DistanceKm(p, routes[0].Waypoints[0].Point())
	for _, s := range StopsWithin(routes, p, d) {
		assert.NotEqual(t, "a2", s.ID)
	}

	assert.Empty(t, StopsWithin(nil, p, 5))
}

func TestPlanTrip(t *testing.T) {
	routes := testRoutes()

	t.Run("same route", func(t *testing.T) {
		origin := geo.Point{Lat: -16.4955, Lon: -68.1336}
		dest := geo.Point{Lat: -16.5124, Lon: -68.1231}
		plan, ok := PlanTrip(routes, origin, dest)
		require.True(t, ok)

		d := geo.DistanceKm(origin, dest)
		assert.InDelta(t, d, plan.DistanceKm, 0.005)
		assert.GreaterOrEqual(t, float64(plan.EstimatedMinutes), d/20*60)
		assert.Less(t, float64(plan.EstimatedMinutes), d/20*60+1)
		assert.Equal(t, 2.50, plan.Fare)
		assert.False(t, plan.RequiresTransfer)
		assert.Equal(t, []string{"Linea 1"}, plan.SuggestedRoutes)
		assert.Equal(t, "a1", plan.OriginStop.ID)
		assert.Equal(t, "a3", plan.DestinationStop.ID)
	})

	t.Run("transfer", func(t *testing.T) {
		plan, ok := PlanTrip(routes, geo.Point{Lat: -16.4955, Lon: -68.1336}, geo.Point{Lat: -16.5320, Lon: -68.1850})
		require.True(t, ok)
		assert.True(t, plan.RequiresTransfer)
		assert.Equal(t, []string{"Linea 1", "Alto Line"}, plan.SuggestedRoutes)
	})

	t.Run("no routes", func(t *testing.T) {
		_, ok := PlanTrip(nil, geo.Point{Lat: 1, Lon: 1}, geo.Point{Lat: 2, Lon: 2})
		assert.False(t, ok)
	})
}

func TestRouteHandler_Plan(t *testing.T) {
	h, routes, _ := newRouteHandler()
	routes.On("FindActiveRoutes", mock.Anything).Return(testRoutes(), nil)

	body := `{"origin":{"lat":-16.4955,"lon":-68.1336},"destination":{"lat":-16.5124,"lon":-68.1231}}`
	w := httptest.NewRecorder()
	h.Plan(w, httptest.NewRequest(http.MethodPost, "/api/routes/plan", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, w.Code)

	var plan models.TripPlan
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &plan))
	assert.Equal(t, 2.50, plan.Fare)

	for _, bad := range []string{`{`, `{"origin":{"lat":-16.5,"lon":-68.1}}`, `{"origin":{"lat":99,"lon":0},"destination":{"lat":1,"lon":1}}`} {
		w := httptest.NewRecorder()
		h.Plan(w, httptest.NewRequest(http.MethodPost, "/api/routes/plan", strings.NewReader(bad)))
		assert.Equal(t, http.StatusBadRequest, w.Code, "body %q", bad)
	}
}

func TestRouteHandler_PlanWithoutRoutes(t *testing.T) {
	h, routes, _ := newRouteHandler()
	routes.On("FindActiveRoutes", mock.Anything).Return([]models.Route{}, nil)

	body := `{"origin":{"lat":-16.4955,"lon":-68.1336},"destination":{"lat":-16.5124,"lon":-68.1231}}`
	w := httptest.NewRecorder()
	h.Plan(w, httptest.NewRequest(http.MethodPost, "/api/routes/plan", strings.NewReader(body)))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
