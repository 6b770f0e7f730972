// Package config reads the service settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/ukydev/bus-tracker/internal/sim"
)

// Config is the full service configuration.
type Config struct {
	LogLevel  string `validate:"oneof=trace debug info warn error"`
	LogFormat string `validate:"oneof=text json"`

	Server     Server
	Mongo      Mongo
	MQTT       MQTT
	Influx     Influx
	Auth       Auth
	Simulation Simulation
	Directory  Directory
	Reporter   Reporter
}

type Server struct {
	Port            string        `validate:"required,numeric"`
	RateLimit       int           `validate:"gte=0"`
	RateWindow      time.Duration `validate:"gt=0"`
	ShutdownTimeout time.Duration `validate:"gt=0"`
}

type Mongo struct {
	URI      string `validate:"required,uri"`
	Database string `validate:"required"`
}

type MQTT struct {
	Enabled     bool
	BrokerURL   string `validate:"required_if=Enabled true"`
	ClientID    string `validate:"required_if=Enabled true"`
	Username    string
	Password    string
	QoS         byte   `validate:"lte=2"`
	TopicPrefix string `validate:"required"`
}

type Influx struct {
	Enabled bool
	URL     string `validate:"required_if=Enabled true,omitempty,url"`
	Token   string
	Org     string `validate:"required_if=Enabled true"`
	Bucket  string `validate:"required_if=Enabled true"`
}

type Auth struct {
	JWTSecret string        `validate:"omitempty,min=16"`
	JWTExpiry time.Duration `validate:"gt=0"`
}

// Simulation holds the tunables of the bus simulator.
type Simulation struct {
	Enabled           bool
	TickInterval      time.Duration `validate:"gt=0"`
	BaseSpeedKmh      float64
	SpeedJitterKmh    float64       `validate:"gte=0"`
	MinSpeedKmh       float64       `validate:"gt=0"`
	MaxSpeedKmh       float64       `validate:"gtefield=MinSpeedKmh"`
	PrincipalDwell    time.Duration `validate:"gte=0"`
	StopDwell         time.Duration `validate:"gte=0"`
	DepartSpeedMinKmh float64       `validate:"gt=0"`
	DepartSpeedMaxKmh float64       `validate:"gtefield=DepartSpeedMinKmh"`
	AltitudeM         float64
	Seed              int64
}

type Directory struct {
	File string
	Seed bool
}

// Reporter is used by the standalone simulator to post positions to a running API.
type Reporter struct {
	APIURL    string `validate:"omitempty,url"`
	AuthToken string
}

// Load reads an optional .env file and then the environment, applying defaults for
// anything unset.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var errs []string
	r := reader{errs: &errs}

	cfg := &Config{
		LogLevel:  strings.ToLower(r.lookup("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(r.lookup("LOG_FORMAT", "text")),
		Server: Server{
			Port:            r.lookup("PORT", "8080"),
			RateLimit:       r.integer("RATE_LIMIT_REQUESTS", 100),
			RateWindow:      r.seconds("RATE_LIMIT_WINDOW_SECONDS", 60),
			ShutdownTimeout: r.seconds("SHUTDOWN_TIMEOUT_SECONDS", 10),
		},
		Mongo: Mongo{
			URI:      r.lookup("MONGO_URI", "mongodb://localhost:27017"),
			Database: r.lookup("MONGO_DATABASE", "bus_tracker"),
		},
		MQTT: MQTT{
			Enabled:     r.flag("MQTT_ENABLED", false),
			BrokerURL:   r.lookup("MQTT_BROKER_URL", "tcp://localhost:1883"),
			ClientID:    r.lookup("MQTT_CLIENT_ID", "bus-tracker"),
			Username:    r.lookup("MQTT_USERNAME", ""),
			Password:    r.lookup("MQTT_PASSWORD", ""),
			QoS:         r.qos("MQTT_QOS", 0),
			TopicPrefix: r.lookup("MQTT_TOPIC_PREFIX", "bus-tracker"),
		},
		Influx: Influx{
			Enabled: r.flag("INFLUX_ENABLED", false),
			URL:     r.lookup("INFLUX_URL", "http://localhost:8086"),
			Token:   r.lookup("INFLUX_TOKEN", ""),
			Org:     r.lookup("INFLUX_ORG", "bus-tracker"),
			Bucket:  r.lookup("INFLUX_BUCKET", "positions"),
		},
		Auth: Auth{
			JWTSecret: r.lookup("JWT_SECRET", ""),
			JWTExpiry: r.hours("JWT_EXPIRY_HOURS", 24),
		},
		Simulation: Simulation{
			Enabled:           r.flag("SIM_ENABLED", true),
			TickInterval:      r.seconds("SIM_TICK_SECONDS", 2),
			BaseSpeedKmh:      r.number("SIM_BASE_SPEED_KMH", 25),
			SpeedJitterKmh:    r.number("SIM_SPEED_JITTER_KMH", 5),
			MinSpeedKmh:       r.number("SIM_MIN_SPEED_KMH", 10),
			MaxSpeedKmh:       r.number("SIM_MAX_SPEED_KMH", 40),
			PrincipalDwell:    r.seconds("SIM_PRINCIPAL_DWELL_SECONDS", 10),
			StopDwell:         r.seconds("SIM_STOP_DWELL_SECONDS", 5),
			DepartSpeedMinKmh: r.number("SIM_DEPART_SPEED_MIN_KMH", 15),
			DepartSpeedMaxKmh: r.number("SIM_DEPART_SPEED_MAX_KMH", 25),
			AltitudeM:         r.number("SIM_ALTITUDE_M", 3825),
			Seed:              int64(r.integer("SIM_SEED", 0)),
		},
		Directory: Directory{
			File: r.lookup("DIRECTORY_FILE", ""),
			Seed: r.flag("DIRECTORY_SEED", false),
		},
		Reporter: Reporter{
			APIURL:    r.lookup("API_BASE_URL", ""),
			AuthToken: r.lookup("SIM_AUTH_TOKEN", ""),
		},
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid environment: %s", strings.Join(errs, "; "))
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// SimParams converts the simulation settings for the scheduler.
func (c *Config) SimParams() sim.Params {
	s := c.Simulation
	return sim.Params{
		TickInterval:      s.TickInterval,
		BaseSpeedKmh:      s.BaseSpeedKmh,
		SpeedJitterKmh:    s.SpeedJitterKmh,
		MinSpeedKmh:       s.MinSpeedKmh,
		MaxSpeedKmh:       s.MaxSpeedKmh,
		PrincipalDwell:    s.PrincipalDwell,
		StopDwell:         s.StopDwell,
		DepartSpeedMinKmh: s.DepartSpeedMinKmh,
		DepartSpeedMaxKmh: s.DepartSpeedMaxKmh,
		AltitudeM:         s.AltitudeM,
	}
}

// Topics returns the broadcast topic names.
func (c *Config) Topics() sim.Topics {
	return sim.Topics{Prefix: c.MQTT.TopicPrefix}
}

// ConfigureLogger applies the log level and format to logger.
func (c *Config) ConfigureLogger(logger *log.Logger) error {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return err
	}
	logger.SetLevel(level)
	if c.LogFormat == "json" {
		logger.SetFormatter(&log.JSONFormatter{})
	} else {
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}

// reader collects parse errors so every bad variable is reported at once.
type reader struct {
	errs *[]string
}

func (r reader) lookup(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func (r reader) integer(key string, def int) int {
	v := r.lookup(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*r.errs = append(*r.errs, fmt.Sprintf("%s: %q is not an integer", key, v))
		return def
	}
	return n
}

// qos range-checks the level before narrowing it to a byte.
func (r reader) qos(key string, def byte) byte {
	n := r.integer(key, int(def))
	if n < 0 || n > 2 {
		*r.errs = append(*r.errs, fmt.Sprintf("%s: %d is not a QoS level (0, 1 or 2)", key, n))
		return def
	}
	return byte(n)
}

func (r reader) number(key string, def float64) float64 {
	v := r.lookup(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*r.errs = append(*r.errs, fmt.Sprintf("%s: %q is not a number", key, v))
		return def
	}
	return f
}

func (r reader) flag(key string, def bool) bool {
	v := r.lookup(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*r.errs = append(*r.errs, fmt.Sprintf("%s: %q is not a boolean", key, v))
		return def
	}
	return b
}

func (r reader) seconds(key string, def float64) time.Duration {
	return time.Duration(r.number(key, def) * float64(time.Second))
}

func (r reader) hours(key string, def float64) time.Duration {
	return time.Duration(r.number(key, def) * float64(time.Hour))
}
