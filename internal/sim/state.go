package sim

import (
	"sort"

	"github.com/ukydev/bus-tracker/internal/geo"
	"github.com/ukydev/bus-tracker/internal/models"
)

// Direction is the travel direction along a route.
type Direction int

const (
	Forward Direction = iota
	Reverse
)

func (d Direction) String() string {
	if d == Reverse {
		return "reverse"
	}
	return "forward"
}

// State is the kinematic state of one simulated bus. It lives only in memory.
type State struct {
	BusID     string
	Plate     string
	RouteID   string
	RouteName string

	// waypoints is a private copy of the route, never modified after NewState.
	waypoints []models.Waypoint

	CurrentIndex int
	NextIndex    int
	Progress     float64
	SpeedKmh     float64
	Stopped      bool
	DwellElapsed float64 // seconds
	Direction    Direction

	Lat     float64
	Lon     float64
	Bearing float64
}

// NewState places a bus on its route at the stop nearest to its last known position.
func NewState(bus models.Bus, route models.Route) (*State, error) {
	if len(route.Waypoints) < 2 {
		return nil, &InitializationError{BusID: bus.ID, RouteID: route.ID, Err: ErrTooFewWaypoints}
	}

	waypoints := make([]models.Waypoint, len(route.Waypoints))
	copy(waypoints, route.Waypoints)
	sort.SliceStable(waypoints, func(i, j int) bool { return waypoints[i].Order < waypoints[j].Order })

	points := make([]geo.Point, len(waypoints))
	for i, w := range waypoints {
		points[i] = w.Point()
	}
	nearest, _ := geo.Nearest(bus.Location.Point(), points)
	if nearest < 0 {
		return nil, &InitializationError{BusID: bus.ID, RouteID: route.ID, Err: ErrNoNearestWaypoint}
	}

	s := &State{
		BusID:        bus.ID,
		Plate:        bus.Plate,
		RouteID:      route.ID,
		RouteName:    route.Name,
		waypoints:    waypoints,
		CurrentIndex: nearest,
		NextIndex:    nearest + 1,
		Direction:    Forward,
		Lat:          bus.Location.Lat,
		Lon:          bus.Location.Lon,
	}
	// Starting on the terminus: turn around right away so NextIndex stays in range.
	if nearest == len(waypoints)-1 {
		s.Direction = Reverse
		s.NextIndex = nearest - 1
	}
	s.Bearing = geo.BearingDeg(s.Current().Point(), s.Next().Point())
	return s, nil
}

// Waypoints returns the route the bus rides. Callers must not modify it.
func (s *State) Waypoints() []models.Waypoint {
	return s.waypoints
}

// Current is the stop the bus last left or is standing at.
func (s *State) Current() models.Waypoint {
	return s.waypoints[s.CurrentIndex]
}

// Next is the stop the bus is heading to.
func (s *State) Next() models.Waypoint {
	return s.waypoints[s.NextIndex]
}

// Position returns the last interpolated position.
func (s *State) Position() geo.Point {
	return geo.Point{Lat: s.Lat, Lon: s.Lon}
}

// arrive moves the bus onto its next stop and picks the following one, bouncing at
// both ends of the route.
func (s *State) arrive() {
	last := len(s.waypoints) - 1
	arrived := s.NextIndex
	s.CurrentIndex = arrived

	switch s.Direction {
	case Forward:
		if arrived == last {
			s.Direction = Reverse
			s.NextIndex = arrived - 1
		} else {
			s.NextIndex = arrived + 1
		}
	case Reverse:
		if arrived == 0 {
			s.Direction = Forward
			s.NextIndex = arrived + 1
		} else {
			s.NextIndex = arrived - 1
		}
	}

	s.Progress = 0
	s.Stopped = true
	s.SpeedKmh = 0
	s.DwellElapsed = 0
}
