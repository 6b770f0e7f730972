package handlers

import (
	"net/http"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ukydev/bus-tracker/internal/gtfsrt"
	"github.com/ukydev/bus-tracker/internal/models"
)

// FleetSnapshot lists the latest update of every bus.
type FleetSnapshot interface {
	All() []models.BusUpdate
}

// FeedHandler serves the GTFS-Realtime VehiclePositions feed.
type FeedHandler struct {
	fleet FleetSnapshot
	log   log.FieldLogger
	now   func() time.Time
}

// NewFeedHandler creates a feed handler backed by fleet.
func NewFeedHandler(fleet FleetSnapshot, logger log.FieldLogger) *FeedHandler {
	return &FeedHandler{fleet: fleet, log: logger.WithField("handler", "gtfs-rt"), now: time.Now}
}

// VehiclePositions writes the feed as protobuf, or protojson with ?format=json.
func (h *FeedHandler) VehiclePositions(w http.ResponseWriter, r *http.Request) {
	feed := gtfsrt.BuildVehiclePositions(h.fleet.All(), h.now())
	body, contentType, err := gtfsrt.Encode(feed, r.URL.Query().Get("format") == "json")
	if err != nil {
		h.log.WithError(err).Error("Failed to encode feed")
		http.Error(w, "Failed to encode feed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
