package models

import "time"

// BusUpdate is the realtime payload published for every position sample.
type BusUpdate struct {
	BusID       string    `json:"bus_id"`
	Plate       string    `json:"plate"`
	RouteID     string    `json:"route_id"`
	RouteName   string    `json:"route_name"`
	Lat         float64   `json:"lat"`
	Lon         float64   `json:"lon"`
	Speed       float64   `json:"speed"`
	Bearing     float64   `json:"bearing"`
	CurrentStop string    `json:"current_stop,omitempty"`
	NextStop    string    `json:"next_stop,omitempty"`
	Stopped     bool      `json:"stopped"`
	Timestamp   time.Time `json:"timestamp"`
}

// LiveBus is a directory bus joined with its latest realtime update, if any.
type LiveBus struct {
	Bus
	Live *BusUpdate `json:"live,omitempty"`
}
