package sim

import (
	"errors"
	"fmt"
	"time"
)

// Params are the kinematic knobs of the simulation. They are always supplied by the
// caller; the package keeps no defaults of its own.
type Params struct {
	TickInterval      time.Duration
	BaseSpeedKmh      float64
	SpeedJitterKmh    float64
	MinSpeedKmh       float64
	MaxSpeedKmh       float64
	PrincipalDwell    time.Duration
	StopDwell         time.Duration
	DepartSpeedMinKmh float64
	DepartSpeedMaxKmh float64
	AltitudeM         float64
}

// Validate rejects parameter sets the tick advancer cannot work with.
func (p Params) Validate() error {
	var errs []error
	if p.TickInterval <= 0 {
		errs = append(errs, errors.New("tick interval must be positive"))
	}
	if p.SpeedJitterKmh < 0 {
		errs = append(errs, errors.New("speed jitter must not be negative"))
	}
	if p.MinSpeedKmh <= 0 || p.MaxSpeedKmh < p.MinSpeedKmh {
		errs = append(errs, fmt.Errorf("invalid speed bounds [%g, %g]", p.MinSpeedKmh, p.MaxSpeedKmh))
	}
	if p.DepartSpeedMinKmh <= 0 || p.DepartSpeedMaxKmh < p.DepartSpeedMinKmh {
		errs = append(errs, fmt.Errorf("invalid departure speed range [%g, %g]", p.DepartSpeedMinKmh, p.DepartSpeedMaxKmh))
	}
	if p.PrincipalDwell < 0 || p.StopDwell < 0 {
		errs = append(errs, errors.New("dwell durations must not be negative"))
	}
	return errors.Join(errs...)
}

// Rand is the random source used for speed draws. *rand.Rand satisfies it, so tests
// can pass a seeded generator or a fixed stub.
type Rand interface {
	Float64() float64
}

// uniform draws from [lo, hi).
func uniform(r Rand, lo, hi float64) float64 {
	return lo + (hi-lo)*r.Float64()
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
