package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/ukydev/bus-tracker/internal/models"
	"github.com/ukydev/bus-tracker/internal/sim"
)

// Message types exchanged with browsers.
const (
	TypeBusesInit        = "buses-init"
	TypeBusUpdate        = "bus-update"
	TypeBusRouteUpdate   = "bus-route-update"
	TypeSubscribeRoute   = "subscribe-route"
	TypeUnsubscribeRoute = "unsubscribe-route"
)

const (
	sendChSize     = 256
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096
)

// Envelope is the JSON frame sent over the socket.
type Envelope struct {
	Type    string `json:"type"`
	RouteID string `json:"route_id,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Snapshotter returns the current known position of every bus.
type Snapshotter interface {
	All() []models.BusUpdate
}

// Hub tracks connected browsers and the route rooms they joined.
type Hub struct {
	topics   sim.Topics
	snapshot Snapshotter
	upgrader ws.Upgrader
	log      log.FieldLogger

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
}

// NewHub creates a hub. snapshot feeds the buses-init frame sent on connect.
func NewHub(topics sim.Topics, snapshot Snapshotter, logger log.FieldLogger) *Hub {
	return &Hub{
		topics:   topics,
		snapshot: snapshot,
		upgrader: ws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log:     logger.WithField("component", "realtime"),
		clients: make(map[*client]struct{}),
	}
}

// Publish sends payload to every client for the global topic, or to the members of a
// route room for a route topic. Slow clients are dropped rather than waited for.
func (h *Hub) Publish(_ context.Context, topic string, payload any) error {
	var env Envelope
	var routeID string
	switch {
	case topic == h.topics.Global():
		env = Envelope{Type: TypeBusUpdate, Data: payload}
	default:
		id, ok := h.topics.RouteID(topic)
		if !ok {
			return nil
		}
		routeID = id
		env = Envelope{Type: TypeBusRouteUpdate, RouteID: id, Data: payload}
	}

	data, err := json.Marshal(env)
	if err != nil {
		return err
	}

	h.mu.RLock()
	var slow []*client
	for c := range h.clients {
		if routeID != "" && !c.inRoom(routeID) {
			continue
		}
		if !c.enqueue(data) {
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.WithField("remote", c.remote).Warn("Dropping slow websocket client")
		h.remove(c)
	}
	return nil
}

// ClientCount is the number of connected browsers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and serves the client until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Debug("WebSocket upgrade failed")
		return
	}

	c := &client{
		conn:   conn,
		sendCh: make(chan []byte, sendChSize),
		done:   make(chan struct{}),
		rooms:  make(map[string]struct{}),
		remote: r.RemoteAddr,
	}

	snapshot, err := json.Marshal(Envelope{Type: TypeBusesInit, Data: h.initialUpdates()})
	if err == nil {
		c.enqueue(snapshot)
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	h.log.WithField("remote", c.remote).Debug("WebSocket client connected")

	go c.writeLoop(h.log)
	c.readLoop(h.log)
	h.remove(c)
}

func (h *Hub) initialUpdates() []models.BusUpdate {
	if h.snapshot == nil {
		return []models.BusUpdate{}
	}
	return h.snapshot.All()
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		c.close()
		h.log.WithField("remote", c.remote).Debug("WebSocket client disconnected")
	}
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := h.clients
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.close()
	}
}

// client is one browser connection with a single write goroutine.
type client struct {
	conn   *ws.Conn
	sendCh chan []byte
	done   chan struct{}
	once   sync.Once
	remote string

	roomsMu sync.RWMutex
	rooms   map[string]struct{}
}

func (c *client) enqueue(data []byte) bool {
	select {
	case <-c.done:
		return true
	default:
	}
	select {
	case c.sendCh <- data:
		return true
	default:
		return false
	}
}

func (c *client) inRoom(routeID string) bool {
	c.roomsMu.RLock()
	defer c.roomsMu.RUnlock()
	_, ok := c.rooms[routeID]
	return ok
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *client) writeLoop(logger log.FieldLogger) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case data := <-c.sendCh:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(ws.TextMessage, data); err != nil {
				logger.WithError(err).WithField("remote", c.remote).Debug("WebSocket write error")
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(ws.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}

// readLoop handles room subscriptions until the connection fails.
func (c *client) readLoop(logger log.FieldLogger) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var env Envelope
		if err := json.Unmarshal(message, &env); err != nil || env.RouteID == "" {
			logger.WithField("remote", c.remote).Debug("Ignoring malformed websocket message")
			continue
		}

		c.roomsMu.Lock()
		switch env.Type {
		case TypeSubscribeRoute:
			c.rooms[env.RouteID] = struct{}{}
		case TypeUnsubscribeRoute:
			delete(c.rooms, env.RouteID)
		}
		c.roomsMu.Unlock()
	}
}
