package handlers

import (
	"net/http"

	"github.com/ukydev/bus-tracker/internal/sim"
)

// SimulationSource exposes the in-memory state of simulated buses.
type SimulationSource interface {
	Snapshot() []sim.State
	Get(busID string) (sim.State, bool)
}

// SimulatedBus is the operator view of one simulated bus.
type SimulatedBus struct {
	BusID        string  `json:"bus_id"`
	Plate        string  `json:"plate"`
	RouteID      string  `json:"route_id"`
	RouteName    string  `json:"route_name"`
	CurrentStop  string  `json:"current_stop"`
	NextStop     string  `json:"next_stop"`
	Direction    string  `json:"direction"`
	Progress     float64 `json:"progress"`
	Speed        float64 `json:"speed"`
	Stopped      bool    `json:"stopped"`
	DwellElapsed float64 `json:"dwell_elapsed"`
	Lat          float64 `json:"lat"`
	Lon          float64 `json:"lon"`
	Bearing      float64 `json:"bearing"`
}

func simulatedBus(s sim.State) SimulatedBus {
	return SimulatedBus{
		BusID:        s.BusID,
		Plate:        s.Plate,
		RouteID:      s.RouteID,
		RouteName:    s.RouteName,
		CurrentStop:  s.Current().Name,
		NextStop:     s.Next().Name,
		Direction:    s.Direction.String(),
		Progress:     s.Progress,
		Speed:        s.SpeedKmh,
		Stopped:      s.Stopped,
		DwellElapsed: s.DwellElapsed,
		Lat:          s.Lat,
		Lon:          s.Lon,
		Bearing:      s.Bearing,
	}
}

// SimulationHandler serves the simulator state to operators.
type SimulationHandler struct {
	source SimulationSource
}

// NewSimulationHandler creates a simulation handler. A nil source means the
// simulator is not running in this process.
func NewSimulationHandler(source SimulationSource) *SimulationHandler {
	return &SimulationHandler{source: source}
}

// List returns every simulated bus in registry order.
func (h *SimulationHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.source == nil {
		http.Error(w, "Simulation disabled", http.StatusServiceUnavailable)
		return
	}
	states := h.source.Snapshot()
	out := make([]SimulatedBus, 0, len(states))
	for _, s := range states {
		out = append(out, simulatedBus(s))
	}
	writeJSON(w, http.StatusOK, out)
}

// Get returns one simulated bus.
func (h *SimulationHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.source == nil {
		http.Error(w, "Simulation disabled", http.StatusServiceUnavailable)
		return
	}
	s, ok := h.source.Get(r.PathValue("id"))
	if !ok {
		http.Error(w, "Bus is not simulated", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, simulatedBus(s))
}
