package handlers

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"

	"github.com/ukydev/bus-tracker/internal/db"
	"github.com/ukydev/bus-tracker/internal/models"
	"github.com/ukydev/bus-tracker/internal/sim"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// LiveSource returns the most recent realtime update of a bus.
type LiveSource interface {
	Latest(busID string) (models.BusUpdate, bool)
}

// locationReport mirrors models.LocationReport with validation rules.
type locationReport struct {
	Lat      *float64 `validate:"required,gte=-90,lte=90"`
	Lon      *float64 `validate:"required,gte=-180,lte=180"`
	Speed    float64  `validate:"gte=0"`
	Bearing  float64  `validate:"gte=0,lt=360"`
	Altitude float64

	CurrentStop string
	NextStop    string
	Stopped     bool
}

// BusHandler serves the bus read API and GPS location reports.
type BusHandler struct {
	buses       db.BusCollection
	routes      db.RouteCollection
	telemetry   db.TelemetryCollection
	live        LiveSource
	broadcaster sim.Broadcaster
	topics      sim.Topics
	validate    *validator.Validate
	log         log.FieldLogger
	now         func() time.Time
}

// BusHandlerConfig groups the collaborators of a BusHandler. Live and Broadcaster may be nil.
type BusHandlerConfig struct {
	Buses       db.BusCollection
	Routes      db.RouteCollection
	Telemetry   db.TelemetryCollection
	Live        LiveSource
	Broadcaster sim.Broadcaster
	Topics      sim.Topics
	Logger      log.FieldLogger
}

// NewBusHandler creates a bus handler.
func NewBusHandler(cfg BusHandlerConfig) *BusHandler {
	return &BusHandler{
		buses:       cfg.Buses,
		routes:      cfg.Routes,
		telemetry:   cfg.Telemetry,
		live:        cfg.Live,
		broadcaster: cfg.Broadcaster,
		topics:      cfg.Topics,
		validate:    validator.New(),
		log:         cfg.Logger.WithField("handler", "buses"),
		now:         time.Now,
	}
}

func (h *BusHandler) withLive(buses []models.Bus) []models.LiveBus {
	out := make([]models.LiveBus, 0, len(buses))
	for _, b := range buses {
		lb := models.LiveBus{Bus: b}
		if h.live != nil {
			if u, ok := h.live.Latest(b.ID); ok {
				lb.Live = &u
			}
		}
		out = append(out, lb)
	}
	return out
}

// List returns every active bus with its live position when known.
func (h *BusHandler) List(w http.ResponseWriter, r *http.Request) {
	buses, err := h.buses.FindActiveBuses(r.Context())
	if err != nil {
		h.log.WithError(err).Error("Failed to list buses")
		http.Error(w, "Failed to list buses", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, h.withLive(buses))
}

// ByRoute returns the active buses of one route.
func (h *BusHandler) ByRoute(w http.ResponseWriter, r *http.Request) {
	buses, err := h.buses.FindBusesByRoute(r.Context(), r.PathValue("routeId"))
	if err != nil {
		h.log.WithError(err).Error("Failed to list buses by route")
		http.Error(w, "Failed to list buses", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, h.withLive(buses))
}

// Get returns one bus.
func (h *BusHandler) Get(w http.ResponseWriter, r *http.Request) {
	bus, err := h.buses.FindBusByID(r.Context(), r.PathValue("id"))
	if err != nil {
		h.notFoundOrError(w, err, "Bus not found")
		return
	}
	writeJSON(w, http.StatusOK, h.withLive([]models.Bus{*bus})[0])
}

func (h *BusHandler) notFoundOrError(w http.ResponseWriter, err error, notFoundMsg string) {
	if isNotFound(err) {
		http.Error(w, notFoundMsg, http.StatusNotFound)
		return
	}
	h.log.WithError(err).Error("Lookup failed")
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

// History returns the newest telemetry samples of a bus.
func (h *BusHandler) History(w http.ResponseWriter, r *http.Request) {
	limit := int64(defaultHistoryLimit)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	samples, err := h.telemetry.FindByBus(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		h.log.WithError(err).Error("Failed to load history")
		http.Error(w, "Failed to load history", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, samples)
}

// ReportLocation records a GPS fix sent by a tracker on the bus and rebroadcasts it.
func (h *BusHandler) ReportLocation(w http.ResponseWriter, r *http.Request) {
	busID := r.PathValue("id")

	var report models.LocationReport
	if err := decodeJSON(r, &report); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(locationReport(report)); err != nil {
		http.Error(w, "lat and lon are required and must be valid coordinates", http.StatusBadRequest)
		return
	}

	bus, err := h.buses.FindBusByID(r.Context(), busID)
	if err != nil {
		h.notFoundOrError(w, err, "Bus not found")
		return
	}

	now := h.now()
	loc := models.Location{Lat: *report.Lat, Lon: *report.Lon}
	tel := models.Telemetry{
		BusID:     bus.ID,
		Timestamp: now,
		Location:  loc,
		Speed:     report.Speed,
		Bearing:   int(math.Round(report.Bearing)) % 360,
		Altitude:  report.Altitude,

		CurrentStop: report.CurrentStop,
		NextStop:    report.NextStop,
		Stopped:     report.Stopped,
	}
	if err := h.telemetry.InsertTelemetry(r.Context(), tel); err != nil {
		h.log.WithError(err).WithField("bus_id", bus.ID).Error("Failed to store location report")
		http.Error(w, "Failed to store location", http.StatusInternalServerError)
		return
	}
	if err := h.buses.UpdateBusLocation(r.Context(), bus.ID, loc, now); err != nil {
		h.log.WithError(err).WithField("bus_id", bus.ID).Warn("Failed to update last known location")
	}

	update := models.BusUpdate{
		BusID:       bus.ID,
		Plate:       bus.Plate,
		RouteID:     bus.RouteID,
		Lat:         loc.Lat,
		Lon:         loc.Lon,
		Speed:       report.Speed,
		Bearing:     report.Bearing,
		CurrentStop: report.CurrentStop,
		NextStop:    report.NextStop,
		Stopped:     report.Stopped,
		Timestamp:   now,
	}
	if route, err := h.routes.FindRouteByID(r.Context(), bus.RouteID); err == nil {
		update.RouteName = route.Name
	}
	h.broadcast(r, update)

	writeJSON(w, http.StatusOK, update)
}

func (h *BusHandler) broadcast(r *http.Request, update models.BusUpdate) {
	if h.broadcaster == nil {
		return
	}
	for _, topic := range []string{h.topics.Global(), h.topics.Route(update.RouteID)} {
		if err := h.broadcaster.Publish(r.Context(), topic, update); err != nil {
			h.log.WithError(err).WithFields(log.Fields{
				"bus_id": update.BusID,
				"topic":  topic,
			}).Warn("Failed to broadcast location report")
		}
	}
}
