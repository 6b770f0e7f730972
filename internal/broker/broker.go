// Package broker publishes bus updates to an MQTT broker and relays them back.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/ukydev/bus-tracker/internal/models"
	"github.com/ukydev/bus-tracker/internal/sim"
)

// ErrNotConnected is returned when publishing before Connect succeeded.
var ErrNotConnected = errors.New("mqtt client not connected")

// Config holds the MQTT connection settings.
type Config struct {
	BrokerURL      string
	ClientID       string
	Username       string
	Password       string
	QoS            byte
	Retain         bool
	ConnectTimeout time.Duration
	PublishTimeout time.Duration
}

// client is the part of mqtt.Client the publisher uses.
type client interface {
	Connect() mqtt.Token
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Disconnect(quiesce uint)
}

// Publisher sends JSON payloads to MQTT topics.
type Publisher struct {
	cfg    Config
	client client
	log    log.FieldLogger

	mu   sync.Mutex
	subs map[string]mqtt.MessageHandler
}

// NewPublisher builds a publisher with auto reconnect enabled. It does not connect.
func NewPublisher(cfg Config, logger log.FieldLogger) *Publisher {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 5 * time.Second
	}
	p := &Publisher{
		cfg:  cfg,
		log:  logger.WithField("component", "mqtt"),
		subs: make(map[string]mqtt.MessageHandler),
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetOnConnectHandler(func(mqtt.Client) { p.onConnect() }).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			p.log.WithError(err).Warn("MQTT connection lost")
		})
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	p.client = mqtt.NewClient(opts)
	return p
}

// onConnect restores subscriptions, which a clean session drops on reconnect.
func (p *Publisher) onConnect() {
	p.log.WithField("broker", p.cfg.BrokerURL).Info("Connected to MQTT broker")

	p.mu.Lock()
	defer p.mu.Unlock()
	for topic, handler := range p.subs {
		token := p.client.Subscribe(topic, p.cfg.QoS, handler)
		go func(topic string) {
			if token.WaitTimeout(p.cfg.ConnectTimeout) && token.Error() == nil {
				return
			}
			p.log.WithError(token.Error()).WithField("topic", topic).Warn("Failed to restore MQTT subscription")
		}(topic)
	}
}

// Connect dials the broker and waits up to the connect timeout.
func (p *Publisher) Connect() error {
	token := p.client.Connect()
	if !token.WaitTimeout(p.cfg.ConnectTimeout) {
		return fmt.Errorf("connect to %s: timed out after %s", p.cfg.BrokerURL, p.cfg.ConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect to %s: %w", p.cfg.BrokerURL, err)
	}
	return nil
}

// Connected reports whether the client currently holds a broker connection.
func (p *Publisher) Connected() bool {
	return p.client.IsConnected()
}

// Publish encodes payload as JSON and sends it on topic.
func (p *Publisher) Publish(ctx context.Context, topic string, payload any) error {
	if !p.client.IsConnected() {
		return ErrNotConnected
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload for %s: %w", topic, err)
	}

	timeout := p.cfg.PublishTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}

	token := p.client.Publish(topic, p.cfg.QoS, p.cfg.Retain, data)
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("publish to %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Subscribe registers handler for messages on topic. Wildcards are allowed.
// The subscription is restored after every reconnect.
func (p *Publisher) Subscribe(topic string, handler func(topic string, payload []byte)) error {
	cb := func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	}
	p.mu.Lock()
	p.subs[topic] = cb
	p.mu.Unlock()

	token := p.client.Subscribe(topic, p.cfg.QoS, cb)
	if !token.WaitTimeout(p.cfg.ConnectTimeout) {
		return fmt.Errorf("subscribe to %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe to %s: %w", topic, err)
	}
	return nil
}

// Relay subscribes to the global and per-route update topics and hands every decoded
// update to target under the topic it arrived on.
func (p *Publisher) Relay(ctx context.Context, topics sim.Topics, target sim.Broadcaster) error {
	handle := func(topic string, payload []byte) {
		var u models.BusUpdate
		if err := json.Unmarshal(payload, &u); err != nil {
			p.log.WithError(err).WithField("topic", topic).Warn("Dropping malformed bus update")
			return
		}
		if err := target.Publish(ctx, topic, u); err != nil {
			p.log.WithError(err).WithFields(log.Fields{
				"topic":  topic,
				"bus_id": u.BusID,
			}).Warn("Failed to relay bus update")
		}
	}
	for _, topic := range []string{topics.Global(), topics.Route("+")} {
		if err := p.Subscribe(topic, handle); err != nil {
			return err
		}
	}
	p.log.WithField("prefix", topics.Prefix).Info("Relaying bus updates from MQTT")
	return nil
}

// Close disconnects, giving in-flight messages a moment to go out.
func (p *Publisher) Close() {
	p.client.Disconnect(250)
	p.log.Info("Disconnected from MQTT broker")
}
