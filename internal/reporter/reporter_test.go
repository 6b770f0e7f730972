package reporter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ukydev/bus-tracker/internal/models"
)

func TestReporter_PostsLocation(t *testing.T) {
	var gotPath, gotAuth string
	var got models.LocationReport
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	rep := New(srv.URL+"/api/", "tok")
	err := rep.InsertTelemetry(context.Background(), models.Telemetry{
		BusID:     "bus-101",
		Timestamp: time.Now(),
		Location:  models.Location{Lat: -16.5, Lon: -68.13},
		Speed:     22,
		Bearing:   91,
		Altitude:  3825,

		CurrentStop: "Plaza Murillo",
		NextStop:    "El Prado",
		Stopped:     true,
	})
	require.NoError(t, err)

	assert.Equal(t, "/api/buses/bus-101/location", gotPath)
	assert.Equal(t, "Bearer tok", gotAuth)
	require.NotNil(t, got.Lat)
	require.NotNil(t, got.Lon)
	assert.Equal(t, -16.5, *got.Lat)
	assert.Equal(t, -68.13, *got.Lon)
	assert.Equal(t, 22.0, got.Speed)
	assert.Equal(t, 91.0, got.Bearing)
	assert.Equal(t, 3825.0, got.Altitude)
	assert.Equal(t, "Plaza Murillo", got.CurrentStop)
	assert.Equal(t, "El Prado", got.NextStop)
	assert.True(t, got.Stopped)
}

func TestReporter_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Insufficient permissions", http.StatusForbidden)
	}))
	defer srv.Close()

	err := New(srv.URL, "").InsertTelemetry(context.Background(), models.Telemetry{BusID: "b1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "Insufficient permissions")
}

func TestReporter_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	err := New(srv.URL, "").InsertTelemetry(context.Background(), models.Telemetry{BusID: "b1"})
	assert.Error(t, err)
}
