package models

import "github.com/ukydev/bus-tracker/internal/geo"

// Waypoint is a registered stop on a route.
type Waypoint struct {
	ID        string  `bson:"id" json:"id" yaml:"id" validate:"required"`
	Name      string  `bson:"name" json:"name" yaml:"name" validate:"required"`
	Lat       float64 `bson:"lat" json:"lat" yaml:"lat" validate:"gte=-90,lte=90"`
	Lon       float64 `bson:"lon" json:"lon" yaml:"lon" validate:"gte=-180,lte=180"`
	Order     int     `bson:"order" json:"order" yaml:"order" validate:"gte=0"`
	Principal bool    `bson:"principal" json:"principal" yaml:"principal"`
}

// Point returns the stop coordinate.
func (w Waypoint) Point() geo.Point {
	return geo.Point{Lat: w.Lat, Lon: w.Lon}
}

// Route is an ordered, non-circular sequence of stops. Buses ride it back and forth.
type Route struct {
	ID        string     `bson:"_id" json:"id" yaml:"id" validate:"required"`
	Name      string     `bson:"name" json:"name" yaml:"name" validate:"required"`
	Color     string     `bson:"color,omitempty" json:"color,omitempty" yaml:"color"`
	Active    bool       `bson:"active" json:"active" yaml:"active"`
	Waypoints []Waypoint `bson:"waypoints" json:"waypoints" yaml:"waypoints" validate:"dive"`
}

// RouteSummary is the list view of a route.
type RouteSummary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Color      string `json:"color,omitempty"`
	TotalStops int    `json:"total_stops"`
	TotalBuses int    `json:"total_buses"`
}

// NearbyStop is a stop found by a radius search.
type NearbyStop struct {
	Waypoint
	RouteID    string  `json:"route_id"`
	RouteName  string  `json:"route_name"`
	RouteColor string  `json:"route_color,omitempty"`
	DistanceKm float64 `json:"distance_km"`
}

// TripPlanRequest asks for the stops serving an origin/destination pair.
type TripPlanRequest struct {
	Origin      Location `json:"origin"`
	Destination Location `json:"destination"`
}

// TripPlan is the answer to a TripPlanRequest.
type TripPlan struct {
	DistanceKm       float64    `json:"distance_km"`
	EstimatedMinutes int        `json:"estimated_minutes"`
	Fare             float64    `json:"fare"`
	OriginStop       NearbyStop `json:"origin_stop"`
	DestinationStop  NearbyStop `json:"destination_stop"`
	RequiresTransfer bool       `json:"requires_transfer"`
	SuggestedRoutes  []string   `json:"suggested_routes"`
}
