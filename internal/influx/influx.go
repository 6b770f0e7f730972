// Package influx copies telemetry samples into an InfluxDB bucket.
package influx

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	log "github.com/sirupsen/logrus"

	"github.com/ukydev/bus-tracker/internal/models"
)

// Measurement is the InfluxDB measurement samples are written to.
const Measurement = "bus_position"

// Config holds the InfluxDB connection settings.
type Config struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// pointWriter is the non-blocking write API used by Sink.
type pointWriter interface {
	WritePoint(point *write.Point)
	Flush()
}

// Sink writes every telemetry record as a point. Writes are batched by the client and
// failures surface asynchronously in the log.
type Sink struct {
	client influxdb2.Client
	writer pointWriter
	log    log.FieldLogger
}

// Connect creates the client, checks the server is reachable and starts draining write
// errors into the log.
func Connect(ctx context.Context, cfg Config, logger log.FieldLogger) (*Sink, error) {
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(1000))

	running, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ping influxdb at %s: %w", cfg.URL, err)
	}
	if !running {
		client.Close()
		return nil, fmt.Errorf("influxdb at %s is not ready", cfg.URL)
	}

	logger = logger.WithFields(log.Fields{"component": "influx", "bucket": cfg.Bucket})
	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)
	go func(errorsCh <-chan error) {
		for writeErr := range errorsCh {
			logger.WithError(writeErr).Error("Error sending data to InfluxDB")
		}
	}(writeAPI.Errors())

	logger.Info("InfluxDB sink initialized")
	return &Sink{client: client, writer: writeAPI, log: logger}, nil
}

// Point converts a telemetry record into an InfluxDB point.
func Point(t models.Telemetry) *write.Point {
	return influxdb2.NewPoint(Measurement,
		map[string]string{"bus_id": t.BusID},
		map[string]interface{}{
			"lat":      t.Location.Lat,
			"lon":      t.Location.Lon,
			"speed":    t.Speed,
			"bearing":  t.Bearing,
			"altitude": t.Altitude,
		},
		t.Timestamp)
}

// InsertTelemetry queues t for writing.
func (s *Sink) InsertTelemetry(_ context.Context, t models.Telemetry) error {
	s.writer.WritePoint(Point(t))
	return nil
}

// Close flushes pending points and closes the client.
func (s *Sink) Close() {
	s.writer.Flush()
	if s.client != nil {
		s.client.Close()
	}
}
