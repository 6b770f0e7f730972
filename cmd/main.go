package main

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ukydev/bus-tracker/internal/auth"
	"github.com/ukydev/bus-tracker/internal/broker"
	"github.com/ukydev/bus-tracker/internal/config"
	"github.com/ukydev/bus-tracker/internal/db"
	"github.com/ukydev/bus-tracker/internal/directory"
	"github.com/ukydev/bus-tracker/internal/handlers"
	"github.com/ukydev/bus-tracker/internal/influx"
	"github.com/ukydev/bus-tracker/internal/middleware"
	"github.com/ukydev/bus-tracker/internal/realtime"
	"github.com/ukydev/bus-tracker/internal/sim"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}
	logger := log.StandardLogger()
	if err := cfg.ConfigureLogger(logger); err != nil {
		log.WithError(err).Fatal("Failed to configure logger")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Fatal("Server stopped with error")
	}
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	client, err := db.ConnectMongo(ctx, cfg.Mongo.URI)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Disconnect(context.Background())
	}()
	logger.WithField("database", cfg.Mongo.Database).Info("Connected to MongoDB")

	store := db.NewStore(client, cfg.Mongo.Database)
	if err := store.EnsureIndexes(ctx); err != nil {
		return err
	}
	if err := seedDirectory(ctx, cfg, store, logger); err != nil {
		return err
	}

	topics := cfg.Topics()
	latest := realtime.NewLatest(topics)
	hub := realtime.NewHub(topics, latest, logger)
	defer hub.Close()

	checks := map[string]handlers.HealthCheck{
		"mongo": func(ctx context.Context) error { return client.Ping(ctx, nil) },
	}
	local := sim.Fanout{latest, hub}
	fanout := local

	// With MQTT on, updates go out through the broker and come back over the relay.
	if cfg.MQTT.Enabled {
		pub := broker.NewPublisher(broker.Config{
			BrokerURL: cfg.MQTT.BrokerURL,
			ClientID:  cfg.MQTT.ClientID,
			Username:  cfg.MQTT.Username,
			Password:  cfg.MQTT.Password,
			QoS:       cfg.MQTT.QoS,
		}, logger)
		if err := pub.Connect(); err != nil {
			return err
		}
		defer pub.Close()
		if err := pub.Relay(ctx, topics, local); err != nil {
			return err
		}
		fanout = sim.Fanout{pub}
		checks["mqtt"] = func(context.Context) error {
			if !pub.Connected() {
				return broker.ErrNotConnected
			}
			return nil
		}
	}

	sinks := sim.MultiSink{store.Telemetry}
	if cfg.Influx.Enabled {
		sink, err := influx.Connect(ctx, influx.Config{
			URL:    cfg.Influx.URL,
			Token:  cfg.Influx.Token,
			Org:    cfg.Influx.Org,
			Bucket: cfg.Influx.Bucket,
		}, logger)
		if err != nil {
			return err
		}
		defer sink.Close()
		sinks = append(sinks, sink)
	}

	authService, err := auth.NewService(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry)
	if err != nil {
		return err
	}

	var scheduler *sim.Scheduler
	var simSource handlers.SimulationSource
	simulated := func() int { return 0 }
	if cfg.Simulation.Enabled {
		scheduler, err = newScheduler(cfg, sinks, fanout, logger)
		if err != nil {
			return err
		}
		if _, err := scheduler.Bootstrap(ctx, &db.Directory{Buses: store.Buses, Routes: store.Routes}); err != nil {
			return err
		}
		simulated = scheduler.Len
		simSource = scheduler
		go func() {
			_ = scheduler.Run(ctx)
		}()
	} else {
		logger.Info("Simulation disabled")
	}

	router := newRouter(routerDeps{
		Auth: handlers.NewAuthHandler(authService, store.Users, logger),
		Buses: handlers.NewBusHandler(handlers.BusHandlerConfig{
			Buses:       store.Buses,
			Routes:      store.Routes,
			Telemetry:   store.Telemetry,
			Live:        latest,
			Broadcaster: fanout,
			Topics:      topics,
			Logger:      logger,
		}),
		Routes:     handlers.NewRouteHandler(store.Routes, store.Buses, logger),
		Feed:       handlers.NewFeedHandler(latest, logger),
		Simulation: handlers.NewSimulationHandler(simSource),
		Health:     handlers.Health(checks, simulated),
		Realtime:   hub,
		AuthMW:     middleware.NewAuthMiddleware(authService),
		RateLimit:  cfg.Server.RateLimit,
		RateWindow: cfg.Server.RateWindow,
		Logger:     logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.WithField("port", cfg.Server.Port).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("HTTP server did not shut down cleanly")
	}
	if scheduler != nil {
		if err := scheduler.Wait(shutdownCtx); err != nil {
			logger.WithError(err).Warn("Pending position samples were dropped")
		}
	}
	return nil
}

func newScheduler(cfg *config.Config, sink sim.PositionSink, broadcaster sim.Broadcaster, logger log.FieldLogger) (*sim.Scheduler, error) {
	deps := sim.Dependencies{
		Sink:        sink,
		Broadcaster: broadcaster,
		Topics:      cfg.Topics(),
		Logger:      logger,
	}
	if cfg.Simulation.Seed != 0 {
		deps.Rand = rand.New(rand.NewSource(cfg.Simulation.Seed))
	}
	return sim.NewScheduler(cfg.SimParams(), deps)
}

func seedDirectory(ctx context.Context, cfg *config.Config, store *db.Store, logger log.FieldLogger) error {
	if cfg.Directory.File == "" || !cfg.Directory.Seed {
		return nil
	}
	f, err := directory.Load(cfg.Directory.File)
	if err != nil {
		return err
	}
	return directory.Seed(ctx, f, store.Buses, store.Routes, logger)
}
