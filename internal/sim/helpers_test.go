package sim

import (
	"time"

	"github.com/ukydev/bus-tracker/internal/models"
)

type fixedRand float64

func (f fixedRand) Float64() float64 { return float64(f) }

func testParams() Params {
	return Params{
		TickInterval:      2 * time.Second,
		BaseSpeedKmh:      25,
		SpeedJitterKmh:    5,
		MinSpeedKmh:       10,
		MaxSpeedKmh:       40,
		PrincipalDwell:    10 * time.Second,
		StopDwell:         5 * time.Second,
		DepartSpeedMinKmh: 15,
		DepartSpeedMaxKmh: 25,
		AltitudeM:         3825,
	}
}

func wp(id string, order int, lat, lon float64, principal bool) models.Waypoint {
	return models.Waypoint{ID: id, Name: "Stop " + id, Order: order, Lat: lat, Lon: lon, Principal: principal}
}

func lineRoute(id string, n int, stepDeg float64) models.Route {
	r := models.Route{ID: id, Name: "Line " + id, Active: true}
	for i := 0; i < n; i++ {
		r.Waypoints = append(r.Waypoints, wp(string(rune('A'+i)), i+1, 0, float64(i)*stepDeg, false))
	}
	return r
}

func busAt(id, routeID string, lat, lon float64) models.Bus {
	return models.Bus{
		ID:       id,
		Plate:    "PL-" + id,
		RouteID:  routeID,
		Status:   models.BusStatusActive,
		Location: models.Location{Lat: lat, Lon: lon},
	}
}
