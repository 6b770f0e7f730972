package main

import (
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ukydev/bus-tracker/internal/handlers"
	"github.com/ukydev/bus-tracker/internal/middleware"
	"github.com/ukydev/bus-tracker/internal/models"
)

type routerDeps struct {
	Auth       *handlers.AuthHandler
	Buses      *handlers.BusHandler
	Routes     *handlers.RouteHandler
	Feed       *handlers.FeedHandler
	Simulation *handlers.SimulationHandler
	Health     http.Handler
	Realtime   http.Handler
	AuthMW     *middleware.AuthMiddleware
	RateLimit  int
	RateWindow time.Duration
	Logger     log.FieldLogger
}

// newRouter registers every endpoint and wraps the mux in the middleware chain.
func newRouter(d routerDeps) http.Handler {
	mux := http.NewServeMux()
	permit := func(action string, h http.HandlerFunc) http.Handler {
		return d.AuthMW.RequirePermission(action)(h)
	}
	dispatcher := func(h http.HandlerFunc) http.Handler {
		return d.AuthMW.RequireRole(models.RoleDispatcher)(h)
	}

	mux.HandleFunc("POST /api/auth/login", d.Auth.Login)
	mux.HandleFunc("POST /api/auth/register", d.Auth.Register)
	mux.HandleFunc("GET /api/auth/profile", d.Auth.GetProfile)
	mux.HandleFunc("PUT /api/auth/profile", d.Auth.UpdateProfile)
	mux.HandleFunc("PUT /api/auth/password", d.Auth.ChangePassword)

	mux.HandleFunc("GET /api/buses", d.Buses.List)
	mux.HandleFunc("GET /api/buses/{id}", d.Buses.Get)
	mux.Handle("GET /api/buses/{id}/history", permit(models.ActionViewHistory, d.Buses.History))
	mux.Handle("POST /api/buses/{id}/location", permit(models.ActionReportLocation, d.Buses.ReportLocation))

	mux.HandleFunc("GET /api/routes", d.Routes.List)
	mux.HandleFunc("GET /api/routes/{id}", d.Routes.Get)
	mux.HandleFunc("GET /api/routes/{routeId}/buses", d.Buses.ByRoute)
	mux.HandleFunc("GET /api/routes/stops/nearby", d.Routes.Nearby)
	mux.HandleFunc("POST /api/routes/plan", d.Routes.Plan)

	mux.Handle("GET /api/simulation/buses", dispatcher(d.Simulation.List))
	mux.Handle("GET /api/simulation/buses/{id}", dispatcher(d.Simulation.Get))

	mux.HandleFunc("GET /api/gtfs-rt/vehicle-positions", d.Feed.VehiclePositions)
	mux.Handle("GET /health", d.Health)
	mux.Handle("GET /ws", d.Realtime)

	var h http.Handler = mux
	h = d.AuthMW.Authenticate(h)
	if d.RateLimit > 0 {
		h = middleware.NewRateLimitMiddleware().RateLimit(d.RateLimit, d.RateWindow)(h)
	}
	return middleware.RequestLogger(d.Logger)(h)
}
