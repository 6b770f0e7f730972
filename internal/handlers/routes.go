package handlers

import (
	"math"
	"net/http"
	"sort"
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/ukydev/bus-tracker/internal/db"
	"github.com/ukydev/bus-tracker/internal/geo"
	"github.com/ukydev/bus-tracker/internal/models"
)

const (
	defaultNearbyRadiusKm = 2.0
	plannerSpeedKmh       = 20.0
	flatFare              = 2.50
)

// RouteHandler serves routes, stop search and trip planning.
type RouteHandler struct {
	routes db.RouteCollection
	buses  db.BusCollection
	log    log.FieldLogger
}

// NewRouteHandler creates a route handler.
func NewRouteHandler(routes db.RouteCollection, buses db.BusCollection, logger log.FieldLogger) *RouteHandler {
	return &RouteHandler{
		routes: routes,
		buses:  buses,
		log:    logger.WithField("handler", "routes"),
	}
}

// List returns the active routes with stop and bus counts, ordered by name.
func (h *RouteHandler) List(w http.ResponseWriter, r *http.Request) {
	routes, err := h.routes.FindActiveRoutes(r.Context())
	if err != nil {
		h.log.WithError(err).Error("Failed to list routes")
		http.Error(w, "Failed to list routes", http.StatusInternalServerError)
		return
	}
	buses, err := h.buses.FindActiveBuses(r.Context())
	if err != nil {
		h.log.WithError(err).Error("Failed to count buses")
		http.Error(w, "Failed to list routes", http.StatusInternalServerError)
		return
	}

	perRoute := make(map[string]int)
	for _, b := range buses {
		perRoute[b.RouteID]++
	}

	out := make([]models.RouteSummary, 0, len(routes))
	for _, rt := range routes {
		out = append(out, models.RouteSummary{
			ID:         rt.ID,
			Name:       rt.Name,
			Color:      rt.Color,
			TotalStops: len(rt.Waypoints),
			TotalBuses: perRoute[rt.ID],
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	writeJSON(w, http.StatusOK, out)
}

// Get returns one route with its stops in riding order.
func (h *RouteHandler) Get(w http.ResponseWriter, r *http.Request) {
	route, err := h.routes.FindRouteByID(r.Context(), r.PathValue("id"))
	if err != nil {
		if isNotFound(err) {
			http.Error(w, "Route not found", http.StatusNotFound)
			return
		}
		h.log.WithError(err).Error("Failed to load route")
		http.Error(w, "Failed to load route", http.StatusInternalServerError)
		return
	}
	sort.SliceStable(route.Waypoints, func(i, j int) bool { return route.Waypoints[i].Order < route.Waypoints[j].Order })
	writeJSON(w, http.StatusOK, route)
}

func parseCoordinate(raw string, limit float64) (float64, bool) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || v < -limit || v > limit {
		return 0, false
	}
	return v, true
}

// Nearby lists the stops of active routes within a radius, nearest first.
func (h *RouteHandler) Nearby(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, okLat := parseCoordinate(q.Get("lat"), 90)
	lon, okLon := parseCoordinate(q.Get("lon"), 180)
	if !okLat || !okLon {
		http.Error(w, "lat and lon are required", http.StatusBadRequest)
		return
	}
	radius := defaultNearbyRadiusKm
	if raw := q.Get("radius"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 || math.IsInf(v, 0) {
			http.Error(w, "radius must be a positive number of kilometres", http.StatusBadRequest)
			return
		}
		radius = v
	}

	routes, err := h.routes.FindActiveRoutes(r.Context())
	if err != nil {
		h.log.WithError(err).Error("Failed to search stops")
		http.Error(w, "Failed to search stops", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, StopsWithin(routes, geo.Point{Lat: lat, Lon: lon}, radius))
}

// StopsWithin returns every stop closer than radiusKm to p, nearest first.
func StopsWithin(routes []models.Route, p geo.Point, radiusKm float64) []models.NearbyStop {
	out := []models.NearbyStop{}
	for _, rt := range routes {
		for _, wp := range rt.Waypoints {
			d := geo.DistanceKm(p, wp.Point())
			if d < radiusKm {
				out = append(out, nearbyStop(rt, wp, d))
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DistanceKm < out[j].DistanceKm })
	return out
}

func nearbyStop(rt models.Route, wp models.Waypoint, d float64) models.NearbyStop {
	return models.NearbyStop{
		Waypoint:   wp,
		RouteID:    rt.ID,
		RouteName:  rt.Name,
		RouteColor: rt.Color,
		DistanceKm: d,
	}
}

// nearestStop finds the stop of any route closest to p.
func nearestStop(routes []models.Route, p geo.Point) (models.NearbyStop, bool) {
	var best models.NearbyStop
	found := false
	for _, rt := range routes {
		points := make([]geo.Point, len(rt.Waypoints))
		for i, wp := range rt.Waypoints {
			points[i] = wp.Point()
		}
		idx, d := geo.Nearest(p, points)
		if idx >= 0 && (!found || d < best.DistanceKm) {
			best = nearbyStop(rt, rt.Waypoints[idx], d)
			found = true
		}
	}
	return best, found
}

// Plan picks the boarding and alighting stops for a trip and estimates it.
func (h *RouteHandler) Plan(w http.ResponseWriter, r *http.Request) {
	var req models.TripPlanRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if !validLocation(req.Origin) || !validLocation(req.Destination) {
		http.Error(w, "origin and destination coordinates are required", http.StatusBadRequest)
		return
	}

	routes, err := h.routes.FindActiveRoutes(r.Context())
	if err != nil {
		h.log.WithError(err).Error("Failed to plan trip")
		http.Error(w, "Failed to plan trip", http.StatusInternalServerError)
		return
	}

	plan, ok := PlanTrip(routes, req.Origin.Point(), req.Destination.Point())
	if !ok {
		http.Error(w, "No routes found for that location", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// PlanTrip estimates a straight-line trip between two points at the planner speed.
func PlanTrip(routes []models.Route, origin, destination geo.Point) (models.TripPlan, bool) {
	from, okFrom := nearestStop(routes, origin)
	to, okTo := nearestStop(routes, destination)
	if !okFrom || !okTo {
		return models.TripPlan{}, false
	}

	d := geo.DistanceKm(origin, destination)
	plan := models.TripPlan{
		DistanceKm:       math.Round(d*100) / 100,
		EstimatedMinutes: int(math.Ceil(d / plannerSpeedKmh * 60)),
		Fare:             flatFare,
		OriginStop:       from,
		DestinationStop:  to,
		RequiresTransfer: from.RouteID != to.RouteID,
		SuggestedRoutes:  []string{from.RouteName},
	}
	if plan.RequiresTransfer {
		plan.SuggestedRoutes = append(plan.SuggestedRoutes, to.RouteName)
	}
	return plan, true
}

// validLocation rejects out-of-range coordinates and the zero value, which is what a
// missing JSON object decodes to.
func validLocation(l models.Location) bool {
	if l.Lat == 0 && l.Lon == 0 {
		return false
	}
	return l.Lat >= -90 && l.Lat <= 90 && l.Lon >= -180 && l.Lon <= 180
}
