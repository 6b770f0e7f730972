package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ukydev/bus-tracker/internal/models"
)

type fakeDirectory struct {
	buses  []models.Bus
	routes map[string]models.Route
	err    error
	calls  map[string]int
}

func (d *fakeDirectory) ActiveBuses(context.Context) ([]models.Bus, error) {
	return d.buses, d.err
}

func (d *fakeDirectory) Route(_ context.Context, id string) (models.Route, error) {
	if d.calls == nil {
		d.calls = map[string]int{}
	}
	d.calls[id]++
	r, ok := d.routes[id]
	if !ok {
		return models.Route{}, fmt.Errorf("route %q not found", id)
	}
	return r, nil
}

type recordingSink struct {
	mu      sync.Mutex
	records []models.Telemetry
	failFor string
}

func (s *recordingSink) InsertTelemetry(_ context.Context, t models.Telemetry) error {
	if t.BusID == s.failFor {
		return errors.New("write timeout")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, t)
	return nil
}

type published struct {
	topic  string
	update models.BusUpdate
}

type recordingBroadcaster struct {
	mu   sync.Mutex
	msgs []published
	fail bool
}

func (b *recordingBroadcaster) Publish(_ context.Context, topic string, payload any) error {
	if b.fail {
		return errors.New("broker unavailable")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = append(b.msgs, published{topic: topic, update: payload.(models.BusUpdate)})
	return nil
}

func (b *recordingBroadcaster) topics() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.msgs))
	for _, m := range b.msgs {
		out = append(out, m.topic)
	}
	return out
}

func newTestScheduler(t *testing.T, deps Dependencies) (*Scheduler, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	deps.Logger = logger
	if deps.Rand == nil {
		deps.Rand = fixedRand(0.5)
	}
	if deps.Topics.Prefix == "" {
		deps.Topics = Topics{Prefix: "bus-tracker"}
	}
	s, err := NewScheduler(testParams(), deps)
	require.NoError(t, err)
	return s, hook
}

func entriesWithMessage(hook *test.Hook, msg string) []logrus.Entry {
	var out []logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Message == msg {
			out = append(out, *e)
		}
	}
	return out
}

func waitEmissions(t *testing.T, s *Scheduler) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx))
}

func TestNewScheduler_RejectsInvalidParams(t *testing.T) {
	p := testParams()
	p.TickInterval = 0
	_, err := NewScheduler(p, Dependencies{})
	assert.Error(t, err)
}

func TestBootstrap_ExcludesUninitializableBus(t *testing.T) {
	dir := &fakeDirectory{
		buses: []models.Bus{
			busAt("good", "r1", 0, 0),
			busAt("bad", "r2", 0, 0),
		},
		routes: map[string]models.Route{
			"r1": lineRoute("r1", 2, 0.01),
			"r2": lineRoute("r2", 1, 0.01),
		},
	}
	s, hook := newTestScheduler(t, Dependencies{})

	n, err := s.Bootstrap(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, s.Len())

	failures := entriesWithMessage(hook, "Bus excluded from simulation")
	require.Len(t, failures, 1)
	assert.Equal(t, "bad", failures[0].Data["bus_id"])
	assert.Equal(t, logrus.ErrorLevel, failures[0].Level)
	assert.ErrorIs(t, failures[0].Data[logrus.ErrorKey].(error), ErrTooFewWaypoints)

	snap := s.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "good", snap[0].BusID)

	report := s.Tick(context.Background(), t0)
	assert.Equal(t, TickReport{Buses: 1, Samples: 1}, report)
	waitEmissions(t, s)
}

func TestBootstrap_CachesRoutesAndSkipsDuplicates(t *testing.T) {
	dir := &fakeDirectory{
		buses: []models.Bus{
			busAt("b1", "r1", 0, 0),
			busAt("b2", "r1", 0, 0.01),
			busAt("b1", "r1", 0, 0),
			busAt("b3", "missing", 0, 0),
		},
		routes: map[string]models.Route{"r1": lineRoute("r1", 3, 0.01)},
	}
	s, hook := newTestScheduler(t, Dependencies{})

	n, err := s.Bootstrap(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, dir.calls["r1"])
	assert.Len(t, entriesWithMessage(hook, "Bus excluded from simulation"), 2)

	st, ok := s.Get("b2")
	require.True(t, ok)
	assert.Equal(t, 1, st.CurrentIndex)
	_, ok = s.Get("b3")
	assert.False(t, ok)
}

func TestBootstrap_NoBusesIsAWarning(t *testing.T) {
	s, hook := newTestScheduler(t, Dependencies{})

	n, err := s.Bootstrap(context.Background(), &fakeDirectory{})
	require.NoError(t, err)
	assert.Zero(t, n)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)

	assert.Equal(t, TickReport{}, s.Tick(context.Background(), t0))
}

func TestBootstrap_DirectoryFailure(t *testing.T) {
	s, _ := newTestScheduler(t, Dependencies{})
	_, err := s.Bootstrap(context.Background(), &fakeDirectory{err: errors.New("connection refused")})
	assert.ErrorContains(t, err, "connection refused")
}

func TestTick_EmitsToPersistenceAndBothTopics(t *testing.T) {
	sink := &recordingSink{}
	bc := &recordingBroadcaster{}
	s, _ := newTestScheduler(t, Dependencies{Sink: sink, Broadcaster: bc})
	_, err := s.Bootstrap(context.Background(), &fakeDirectory{
		buses:  []models.Bus{busAt("b1", "r1", 0, 0)},
		routes: map[string]models.Route{"r1": lineRoute("r1", 2, 0.01)},
	})
	require.NoError(t, err)

	s.Tick(context.Background(), t0)
	waitEmissions(t, s)

	require.Len(t, sink.records, 1)
	assert.Equal(t, "b1", sink.records[0].BusID)
	assert.Equal(t, 3825.0, sink.records[0].Altitude)
	assert.Equal(t, 90, sink.records[0].Bearing)
	assert.ElementsMatch(t, []string{"bus-tracker/buses", "bus-tracker/routes/r1"}, bc.topics())
	assert.Equal(t, "Line r1", bc.msgs[0].update.RouteName)
	assert.Equal(t, t0, bc.msgs[0].update.Timestamp)
}

func TestTick_EmissionFailuresAreIsolated(t *testing.T) {
	sink := &recordingSink{failFor: "b1"}
	bc := &recordingBroadcaster{}
	s, hook := newTestScheduler(t, Dependencies{Sink: sink, Broadcaster: bc})
	_, err := s.Bootstrap(context.Background(), &fakeDirectory{
		buses: []models.Bus{
			busAt("b1", "r1", 0, 0),
			busAt("b2", "r1", 0, 0.01),
		},
		routes: map[string]models.Route{"r1": lineRoute("r1", 3, 0.01)},
	})
	require.NoError(t, err)
	before, _ := s.Get("b1")

	report := s.Tick(context.Background(), t0)
	waitEmissions(t, s)

	assert.Equal(t, 2, report.Samples)
	require.Len(t, sink.records, 1)
	assert.Equal(t, "b2", sink.records[0].BusID)
	assert.Len(t, bc.topics(), 4, "broadcast still happens for the bus whose write failed")

	failures := entriesWithMessage(hook, "Failed to emit position sample")
	require.Len(t, failures, 1)
	assert.Equal(t, "b1", failures[0].Data["bus_id"])
	assert.Equal(t, "persistence", failures[0].Data["target"])

	after, _ := s.Get("b1")
	assert.Greater(t, after.Progress, before.Progress, "physics is not rolled back")
}

func TestTick_BroadcastFailureLoggedPerTopic(t *testing.T) {
	sink := &recordingSink{}
	s, hook := newTestScheduler(t, Dependencies{Sink: sink, Broadcaster: &recordingBroadcaster{fail: true}})
	_, err := s.Bootstrap(context.Background(), &fakeDirectory{
		buses:  []models.Bus{busAt("b1", "r1", 0, 0)},
		routes: map[string]models.Route{"r1": lineRoute("r1", 2, 0.01)},
	})
	require.NoError(t, err)

	s.Tick(context.Background(), t0)
	waitEmissions(t, s)

	assert.Len(t, sink.records, 1)
	assert.Len(t, entriesWithMessage(hook, "Failed to emit position sample"), 2)
}

func TestBootstrap_ExcludesBusOnInactiveRoute(t *testing.T) {
	closed := lineRoute("r2", 3, 0.01)
	closed.Active = false
	s, hook := newTestScheduler(t, Dependencies{})

	n, err := s.Bootstrap(context.Background(), &fakeDirectory{
		buses: []models.Bus{busAt("b1", "r1", 0, 0), busAt("b2", "r2", 0, 0)},
		routes: map[string]models.Route{
			"r1": lineRoute("r1", 3, 0.01),
			"r2": closed,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, ok := s.Get("b2")
	assert.False(t, ok)
	failures := entriesWithMessage(hook, "Bus excluded from simulation")
	require.Len(t, failures, 1)
	assert.Equal(t, "b2", failures[0].Data["bus_id"])
	assert.ErrorIs(t, failures[0].Data[logrus.ErrorKey].(error), ErrInactiveRoute)
}

func TestTick_SkipsDegenerateBusOnly(t *testing.T) {
	degenerate := models.Route{ID: "r2", Active: true, Waypoints: []models.Waypoint{
		wp("X", 1, 1, 1, false),
		wp("Y", 2, 1, 1, false),
	}}
	s, hook := newTestScheduler(t, Dependencies{})
	_, err := s.Bootstrap(context.Background(), &fakeDirectory{
		buses: []models.Bus{busAt("b1", "r1", 0, 0), busAt("b2", "r2", 1, 1)},
		routes: map[string]models.Route{
			"r1": lineRoute("r1", 2, 0.01),
			"r2": degenerate,
		},
	})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		report := s.Tick(context.Background(), t0)
		assert.Equal(t, TickReport{Buses: 2, Samples: 1, Skipped: 1}, report)
	}
	waitEmissions(t, s)

	skips := entriesWithMessage(hook, "Skipping bus for this tick")
	require.Len(t, skips, 2)
	assert.Equal(t, "b2", skips[0].Data["bus_id"])

	st, _ := s.Get("b2")
	assert.Zero(t, st.Progress)
}

func TestRun_StopsOnCancel(t *testing.T) {
	p := testParams()
	p.TickInterval = 10 * time.Millisecond
	logger, _ := test.NewNullLogger()
	s, err := NewScheduler(p, Dependencies{Logger: logger, Rand: fixedRand(0.5), Topics: Topics{Prefix: "t"}})
	require.NoError(t, err)
	_, err = s.Bootstrap(context.Background(), &fakeDirectory{
		buses:  []models.Bus{busAt("b1", "r1", 0, 0)},
		routes: map[string]models.Route{"r1": lineRoute("r1", 2, 1)},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		st, _ := s.Get("b1")
		return st.Progress > 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	waitEmissions(t, s)
}

func TestTopics(t *testing.T) {
	topics := Topics{Prefix: "lapaz"}
	assert.Equal(t, "lapaz/buses", topics.Global())
	assert.Equal(t, "lapaz/routes/L1", topics.Route("L1"))

	id, ok := topics.RouteID("lapaz/routes/L1")
	assert.True(t, ok)
	assert.Equal(t, "L1", id)
	_, ok = topics.RouteID("lapaz/buses")
	assert.False(t, ok)
	_, ok = topics.RouteID("lapaz/routes/")
	assert.False(t, ok)
}

func TestFanoutAndMultiSinkJoinErrors(t *testing.T) {
	ok := &recordingBroadcaster{}
	f := Fanout{ok, &recordingBroadcaster{fail: true}}
	err := f.Publish(context.Background(), "t", models.BusUpdate{BusID: "b1"})
	assert.ErrorContains(t, err, "broker unavailable")
	assert.Len(t, ok.msgs, 1)

	good := &recordingSink{}
	m := MultiSink{&recordingSink{failFor: "b1"}, good}
	err = m.InsertTelemetry(context.Background(), models.Telemetry{BusID: "b1"})
	assert.ErrorContains(t, err, "write timeout")
	assert.Len(t, good.records, 1)
}
