package sim

import (
	"math"
	"time"

	"github.com/ukydev/bus-tracker/internal/geo"
	"github.com/ukydev/bus-tracker/internal/models"
)

// Sample is a position computed by one tick.
type Sample struct {
	BusID       string
	Plate       string
	RouteID     string
	RouteName   string
	Position    geo.Point
	SpeedKmh    float64
	BearingDeg  float64
	CurrentStop string
	NextStop    string
	Stopped     bool
	At          time.Time
}

// Telemetry converts the sample into the record handed to the persistence sink.
func (s Sample) Telemetry(altitude float64) models.Telemetry {
	return models.Telemetry{
		BusID:     s.BusID,
		Timestamp: s.At,
		Location:  models.LocationFromPoint(s.Position),
		Speed:     s.SpeedKmh,
		Bearing:   int(math.Round(s.BearingDeg)) % 360,
		Altitude:  altitude,

		CurrentStop: s.CurrentStop,
		NextStop:    s.NextStop,
		Stopped:     s.Stopped,
	}
}

// Update converts the sample into the realtime broadcast payload.
func (s Sample) Update() models.BusUpdate {
	return models.BusUpdate{
		BusID:       s.BusID,
		Plate:       s.Plate,
		RouteID:     s.RouteID,
		RouteName:   s.RouteName,
		Lat:         s.Position.Lat,
		Lon:         s.Position.Lon,
		Speed:       s.SpeedKmh,
		Bearing:     s.BearingDeg,
		CurrentStop: s.CurrentStop,
		NextStop:    s.NextStop,
		Stopped:     s.Stopped,
		Timestamp:   s.At,
	}
}

// Advancer moves bus states forward one tick at a time.
type Advancer struct {
	params Params
	rng    Rand
}

// NewAdvancer builds an advancer drawing speeds from rng.
func NewAdvancer(params Params, rng Rand) *Advancer {
	return &Advancer{params: params, rng: rng}
}

// requiredDwell is how long a bus waits at the stop it stands on.
func (a *Advancer) requiredDwell(w models.Waypoint) float64 {
	if w.Principal {
		return a.params.PrincipalDwell.Seconds()
	}
	return a.params.StopDwell.Seconds()
}

// Advance applies one tick of length tick to s.
//
// A stopped bus only accumulates dwell time and produces no sample. A moving bus
// gets a fresh traffic speed, advances along its segment and produces a sample.
// On a *ComputationError s is unchanged and can be retried on the next tick.
func (a *Advancer) Advance(s *State, tick time.Duration, now time.Time) (*Sample, error) {
	secs := tick.Seconds()

	if s.Stopped {
		s.DwellElapsed += secs
		if s.DwellElapsed >= a.requiredDwell(s.Current()) {
			s.Stopped = false
			s.DwellElapsed = 0
			s.SpeedKmh = uniform(a.rng, a.params.DepartSpeedMinKmh, a.params.DepartSpeedMaxKmh)
		}
		return nil, nil
	}

	from, to := s.Current().Point(), s.Next().Point()
	jitter := uniform(a.rng, -a.params.SpeedJitterKmh, a.params.SpeedJitterKmh)
	speed := clamp(a.params.BaseSpeedKmh+jitter, a.params.MinSpeedKmh, a.params.MaxSpeedKmh)

	d := geo.DistanceKm(from, to)
	if d <= 0 || math.IsNaN(d) || math.IsInf(d, 0) {
		return nil, &ComputationError{BusID: s.BusID, From: s.CurrentIndex, To: s.NextIndex, Err: ErrDegenerateSegment}
	}

	bearing := geo.BearingDeg(from, to)
	s.SpeedKmh = speed
	s.Bearing = bearing
	s.Progress += speed / d / 3600 * secs

	if s.Progress < 1 {
		pos := geo.Interpolate(from, to, s.Progress)
		s.Lat, s.Lon = pos.Lat, pos.Lon
	} else {
		// Overflow past the stop is dropped; the next segment starts from zero.
		s.arrive()
		s.Lat, s.Lon = to.Lat, to.Lon
	}

	return &Sample{
		BusID:       s.BusID,
		Plate:       s.Plate,
		RouteID:     s.RouteID,
		RouteName:   s.RouteName,
		Position:    s.Position(),
		SpeedKmh:    s.SpeedKmh,
		BearingDeg:  bearing,
		CurrentStop: s.Current().Name,
		NextStop:    s.Next().Name,
		Stopped:     s.Stopped,
		At:          now,
	}, nil
}
