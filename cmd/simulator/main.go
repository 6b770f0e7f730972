package main

import (
	"context"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ukydev/bus-tracker/internal/broker"
	"github.com/ukydev/bus-tracker/internal/config"
	"github.com/ukydev/bus-tracker/internal/db"
	"github.com/ukydev/bus-tracker/internal/directory"
	"github.com/ukydev/bus-tracker/internal/influx"
	"github.com/ukydev/bus-tracker/internal/reporter"
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
		logger.WithError(err).Fatal("Simulation stopped with error")
	}
}

// run drives the fleet until ctx is cancelled. Buses come from DIRECTORY_FILE when set,
// otherwise from MongoDB. Positions go to the API when API_BASE_URL is set, otherwise
// straight into MongoDB.
func run(ctx context.Context, cfg *config.Config, logger log.FieldLogger) error {
	var cleanup []func()
	defer func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}()

	var store *db.Store
	mongoStore := func() (*db.Store, error) {
		if store != nil {
			return store, nil
		}
		client, err := db.ConnectMongo(ctx, cfg.Mongo.URI)
		if err != nil {
			return nil, err
		}
		cleanup = append(cleanup, func() { _ = client.Disconnect(context.Background()) })
		store = db.NewStore(client, cfg.Mongo.Database)
		return store, nil
	}

	var dir sim.Directory
	if cfg.Directory.File != "" {
		f, err := directory.Load(cfg.Directory.File)
		if err != nil {
			return err
		}
		dir = f
	} else {
		s, err := mongoStore()
		if err != nil {
			return err
		}
		dir = &db.Directory{Buses: s.Buses, Routes: s.Routes}
	}

	var sinks sim.MultiSink
	if cfg.Reporter.APIURL != "" {
		sinks = append(sinks, reporter.New(cfg.Reporter.APIURL, cfg.Reporter.AuthToken))
	} else {
		s, err := mongoStore()
		if err != nil {
			return err
		}
		sinks = append(sinks, s.Telemetry)
	}
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
		cleanup = append(cleanup, sink.Close)
		sinks = append(sinks, sink)
	}

	var broadcaster sim.Broadcaster
	if cfg.MQTT.Enabled {
		pub := broker.NewPublisher(broker.Config{
			BrokerURL: cfg.MQTT.BrokerURL,
			ClientID:  cfg.MQTT.ClientID + "-simulator",
			Username:  cfg.MQTT.Username,
			Password:  cfg.MQTT.Password,
			QoS:       cfg.MQTT.QoS,
		}, logger)
		if err := pub.Connect(); err != nil {
			return err
		}
		cleanup = append(cleanup, pub.Close)
		broadcaster = pub
	}

	deps := sim.Dependencies{
		Sink:        sinks,
		Broadcaster: broadcaster,
		Topics:      cfg.Topics(),
		Logger:      logger,
	}
	if cfg.Simulation.Seed != 0 {
		deps.Rand = rand.New(rand.NewSource(cfg.Simulation.Seed))
	}
	scheduler, err := sim.NewScheduler(cfg.SimParams(), deps)
	if err != nil {
		return err
	}

	n, err := scheduler.Bootstrap(ctx, dir)
	if err != nil {
		return err
	}
	logger.WithFields(log.Fields{
		"buses":    n,
		"interval": cfg.Simulation.TickInterval.String(),
		"api_url":  cfg.Reporter.APIURL,
		"mqtt":     cfg.MQTT.Enabled,
	}).Info("Starting bus simulation")

	if err := scheduler.Run(ctx); err != nil {
		return err
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := scheduler.Wait(drainCtx); err != nil {
		logger.WithError(err).Warn("Pending position samples were dropped")
	}
	return nil
}
