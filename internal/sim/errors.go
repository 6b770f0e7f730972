package sim

import (
	"errors"
	"fmt"
)

var (
	// ErrTooFewWaypoints is returned for routes that cannot be ridden.
	ErrTooFewWaypoints = errors.New("route needs at least two waypoints")
	// ErrDegenerateSegment is returned when two consecutive stops have no usable distance.
	ErrDegenerateSegment = errors.New("degenerate segment distance")
	// ErrNoNearestWaypoint is returned when the bus location cannot be matched to a stop.
	ErrNoNearestWaypoint = errors.New("no waypoint nearest to bus location")
	// ErrInactiveRoute is returned for buses assigned to a disabled route.
	ErrInactiveRoute = errors.New("route is not active")
)

// InitializationError excludes a single bus from the simulation.
type InitializationError struct {
	BusID   string
	RouteID string
	Err     error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("initialize bus %s on route %s: %v", e.BusID, e.RouteID, e.Err)
}

func (e *InitializationError) Unwrap() error { return e.Err }

// ComputationError skips one bus for one tick. Its state is left untouched.
type ComputationError struct {
	BusID string
	From  int
	To    int
	Err   error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("advance bus %s on segment %d->%d: %v", e.BusID, e.From, e.To, e.Err)
}

func (e *ComputationError) Unwrap() error { return e.Err }

// EmissionError reports a failed write to a persistence or broadcast sink.
type EmissionError struct {
	BusID  string
	Target string
	Err    error
}

func (e *EmissionError) Error() string {
	return fmt.Sprintf("emit sample of bus %s to %s: %v", e.BusID, e.Target, e.Err)
}

func (e *EmissionError) Unwrap() error { return e.Err }
