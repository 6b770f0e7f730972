package sim

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/metric"

	"github.com/ukydev/bus-tracker/internal/models"
)

// ErrDuplicateBus is returned when the directory lists the same bus twice.
var ErrDuplicateBus = errors.New("bus already registered")

const defaultEmitTimeout = 5 * time.Second

// Dependencies are the collaborators of a Scheduler. Sink and Broadcaster may be nil.
type Dependencies struct {
	Sink        PositionSink
	Broadcaster Broadcaster
	Topics      Topics
	Rand        Rand
	Logger      logrus.FieldLogger
	Clock       func() time.Time
	EmitTimeout time.Duration

	// MeterProvider defaults to the global provider.
	MeterProvider metric.MeterProvider
}

// TickReport summarizes one tick.
type TickReport struct {
	Buses   int
	Samples int
	Skipped int
}

// Scheduler owns the registry of simulated buses and drives them on a fixed cadence.
type Scheduler struct {
	params   Params
	advancer *Advancer
	deps     Dependencies
	log      logrus.FieldLogger
	metrics  *metrics

	mu     sync.Mutex
	states []*State
	byID   map[string]*State
	active atomic.Int64

	emitting sync.WaitGroup
}

// NewScheduler validates params and wires the scheduler to its sinks.
func NewScheduler(params Params, deps Dependencies) (*Scheduler, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid simulation params: %w", err)
	}
	if deps.Rand == nil {
		deps.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.EmitTimeout <= 0 {
		deps.EmitTimeout = defaultEmitTimeout
	}

	s := &Scheduler{
		params:   params,
		advancer: NewAdvancer(params, deps.Rand),
		deps:     deps,
		log:      deps.Logger.WithField("component", "simulator"),
		byID:     make(map[string]*State),
	}
	m, err := newMetrics(deps.MeterProvider, func() int { return int(s.active.Load()) })
	if err != nil {
		return nil, err
	}
	s.metrics = m
	return s, nil
}

// Bootstrap loads the active buses from dir and places each one on its route. Buses
// on inactive routes or that cannot be placed are logged and left out. It returns how many buses run.
func (s *Scheduler) Bootstrap(ctx context.Context, dir Directory) (int, error) {
	buses, err := dir.ActiveBuses(ctx)
	if err != nil {
		return 0, fmt.Errorf("load active buses: %w", err)
	}

	routes := make(map[string]models.Route)
	states := make([]*State, 0, len(buses))
	byID := make(map[string]*State, len(buses))

	for _, bus := range buses {
		if _, dup := byID[bus.ID]; dup {
			s.logInitFailure(&InitializationError{BusID: bus.ID, RouteID: bus.RouteID, Err: ErrDuplicateBus})
			continue
		}

		route, ok := routes[bus.RouteID]
		if !ok {
			route, err = dir.Route(ctx, bus.RouteID)
			if err != nil {
				s.logInitFailure(&InitializationError{BusID: bus.ID, RouteID: bus.RouteID, Err: err})
				continue
			}
			routes[bus.RouteID] = route
		}
		if !route.Active {
			s.logInitFailure(&InitializationError{BusID: bus.ID, RouteID: bus.RouteID, Err: ErrInactiveRoute})
			continue
		}

		st, err := NewState(bus, route)
		if err != nil {
			var ie *InitializationError
			if !errors.As(err, &ie) {
				ie = &InitializationError{BusID: bus.ID, RouteID: bus.RouteID, Err: err}
			}
			s.logInitFailure(ie)
			continue
		}
		states = append(states, st)
		byID[st.BusID] = st

		s.log.WithFields(logrus.Fields{
			"bus_id":    st.BusID,
			"route_id":  st.RouteID,
			"stop":      st.Current().Name,
			"next_stop": st.Next().Name,
			"direction": st.Direction.String(),
		}).Debug("Bus placed on route")
	}

	s.mu.Lock()
	s.states = states
	s.byID = byID
	s.active.Store(int64(len(states)))
	s.mu.Unlock()

	if len(states) == 0 {
		s.log.WithField("candidates", len(buses)).Warn("No buses could be initialized; simulator is idle")
	} else {
		s.log.WithFields(logrus.Fields{
			"buses":      len(states),
			"candidates": len(buses),
			"routes":     len(routes),
		}).Info("Simulation initialized")
	}
	return len(states), nil
}

func (s *Scheduler) logInitFailure(err *InitializationError) {
	s.log.WithFields(logrus.Fields{
		"bus_id":   err.BusID,
		"route_id": err.RouteID,
	}).WithError(err.Err).Error("Bus excluded from simulation")
}

// Tick advances every bus once and dispatches emission of the resulting samples.
// Emission runs in the background; use Wait to drain it.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) TickReport {
	s.mu.Lock()
	report := TickReport{Buses: len(s.states)}
	samples := make([]Sample, 0, len(s.states))
	for _, st := range s.states {
		sample, err := s.advancer.Advance(st, s.params.TickInterval, now)
		if err != nil {
			report.Skipped++
			s.log.WithFields(logrus.Fields{
				"bus_id":   st.BusID,
				"route_id": st.RouteID,
			}).WithError(err).Warn("Skipping bus for this tick")
			continue
		}
		if sample != nil {
			samples = append(samples, *sample)
		}
	}
	s.mu.Unlock()

	report.Samples = len(samples)
	s.metrics.ticks.Add(ctx, 1)
	s.metrics.samples.Add(ctx, int64(report.Samples))
	if report.Skipped > 0 {
		s.metrics.skipped.Add(ctx, int64(report.Skipped))
	}

	for _, sample := range samples {
		s.emitting.Add(1)
		go func(sample Sample) {
			defer s.emitting.Done()
			s.emit(ctx, sample)
		}(sample)
	}
	return report
}

// emit hands one sample to every sink. Failures are logged per sink and never retried.
func (s *Scheduler) emit(ctx context.Context, sample Sample) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.deps.EmitTimeout)
	defer cancel()

	if s.deps.Sink != nil {
		if err := s.deps.Sink.InsertTelemetry(ctx, sample.Telemetry(s.params.AltitudeM)); err != nil {
			s.emissionFailed(ctx, &EmissionError{BusID: sample.BusID, Target: "persistence", Err: err})
		}
	}

	if s.deps.Broadcaster == nil {
		return
	}
	update := sample.Update()
	for _, topic := range []string{s.deps.Topics.Global(), s.deps.Topics.Route(sample.RouteID)} {
		if err := s.deps.Broadcaster.Publish(ctx, topic, update); err != nil {
			s.emissionFailed(ctx, &EmissionError{BusID: sample.BusID, Target: topic, Err: err})
		}
	}
}

func (s *Scheduler) emissionFailed(ctx context.Context, err *EmissionError) {
	s.metrics.emissionFailed(ctx, err.Target)
	s.log.WithFields(logrus.Fields{
		"bus_id": err.BusID,
		"target": err.Target,
	}).WithError(err.Err).Error("Failed to emit position sample")
}

// Run ticks at the configured interval until ctx is done. Ticks run one at a time; if a
// tick overruns the interval the ticker drops the missed fires instead of queueing them.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.params.TickInterval)
	defer ticker.Stop()

	s.log.WithFields(logrus.Fields{
		"interval": s.params.TickInterval.String(),
		"buses":    s.active.Load(),
	}).Info("Simulation started")

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Simulation stopped")
			return nil
		case <-ticker.C:
			report := s.Tick(ctx, s.deps.Clock())
			s.log.WithFields(logrus.Fields{
				"buses":   report.Buses,
				"samples": report.Samples,
				"skipped": report.Skipped,
			}).Trace("Tick completed")
		}
	}
}

// Wait blocks until in-flight emissions finish or ctx is done.
func (s *Scheduler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.emitting.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns copies of the current bus states in registry order.
func (s *Scheduler) Snapshot() []State {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]State, len(s.states))
	for i, st := range s.states {
		out[i] = *st
	}
	return out
}

// Get returns a copy of the state of one bus.
func (s *Scheduler) Get(busID string) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.byID[busID]
	if !ok {
		return State{}, false
	}
	return *st, true
}

// Len is the number of buses being simulated.
func (s *Scheduler) Len() int {
	return int(s.active.Load())
}
