package handlers

import (
	"github.com/ukydev/bus-tracker/internal/models"
)

func testRoutes() []models.Route {
	return []models.Route{
		{
			ID: "linea-1", Name: "Linea 1", Color: "#1f77b4", Active: true,
			Waypoints: []models.Waypoint{
				{ID: "a2", Name: "Prado", Lat: -16.5000, Lon: -68.1300, Order: 1},
				{ID: "a1", Name: "Plaza Murillo", Lat: -16.4955, Lon: -68.1336, Order: 0, Principal: true},
				{ID: "a3", Name: "Plaza Espana", Lat: -16.5124, Lon: -68.1231, Order: 2},
			},
		},
		{
			ID: "linea-2", Name: "Alto Line", Active: true,
			Waypoints: []models.Waypoint{
				{ID: "b1", Name: "Ceja", Lat: -16.5050, Lon: -68.1640, Order: 0},
				{ID: "b2", Name: "Ciudad Satelite", Lat: -16.5320, Lon: -68.1850, Order: 1},
			},
		},
	}
}

func testBuses() []models.Bus {
	return []models.Bus{
		{ID: "bus-1", Plate: "1111-AAA", RouteID: "linea-1", Status: models.BusStatusActive},
		{ID: "bus-2", Plate: "2222-BBB", RouteID: "linea-1", Status: models.BusStatusActive},
		{ID: "bus-3", Plate: "3333-CCC", RouteID: "linea-2", Status: models.BusStatusActive},
	}
}

type fixedLive map[string]models.BusUpdate

func (f fixedLive) Latest(busID string) (models.BusUpdate, bool) {
	u, ok := f[busID]
	return u, ok
}

func (f fixedLive) All() []models.BusUpdate {
	out := make([]models.BusUpdate, 0, len(f))
	for _, u := range f {
		out = append(out, u)
	}
	return out
}
