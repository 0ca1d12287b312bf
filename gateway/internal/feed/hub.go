// Package feed streams delivery outcomes to websocket clients as they happen.
package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/leadgate/leadgate/common/logging"
	"github.com/leadgate/leadgate/gateway/internal/events"
	"github.com/leadgate/leadgate/gateway/internal/metrics"
	"github.com/leadgate/leadgate/gateway/internal/models"
	"github.com/leadgate/leadgate/gateway/internal/status"
)

// SubscriberName identifies the hub on the bus.
const SubscriberName = "live-feed"

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Config tunes the hub.
type Config struct {
	// Buffer is the number of outcomes queued per client before it is dropped.
	Buffer int `mapstructure:"buffer"`
	// AllowedOrigins restricts browser origins; empty allows any.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Hub fans outcomes out to every connected client. A client whose buffer
// fills up is disconnected rather than slowing dispatch.
type Hub struct {
	mu       sync.Mutex
	clients  map[*client]struct{}
	buffer   int
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

type client struct {
	conn   *websocket.Conn
	remote string
	send   chan []byte
	status models.Status
	system string
	once   sync.Once
}

func (c *client) wants(out models.Outcome) bool {
	if c.status != "" && c.status != out.Status {
		return false
	}
	return c.system == "" || c.system == out.System
}

func (c *client) stop() {
	c.once.Do(func() { close(c.send) })
}

func NewHub(cfg Config, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 64
	}
	h := &Hub{
		clients: make(map[*client]struct{}),
		buffer:  cfg.Buffer,
		logger:  logger.With(slog.String("component", SubscriberName)),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(cfg.AllowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// Register subscribes the hub to outcome events.
func (h *Hub) Register(bus *events.Bus) {
	bus.Subscribe(events.TypeRequestResponse, SubscriberName, events.On(h.HandleResponse))
}

// HandleResponse queues the outcome for every interested client. It never blocks.
func (h *Hub) HandleResponse(ctx context.Context, ev events.RequestResponse) error {
	out := status.Outcome(ev)
	data, err := json.Marshal(out)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if !c.wants(out) {
			continue
		}
		select {
		case c.send <- data:
		default:
			h.logger.WarnContext(ctx, "dropping slow feed client", slog.String("remote", c.remote))
			h.removeLocked(c)
		}
	}
	return nil
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the connection and streams outcomes until the client
// goes away. Optional query filters: status, system.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter models.Status
	if s := q.Get("status"); s != "" {
		parsed, err := models.ParseStatus(s)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		filter = parsed
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WarnContext(r.Context(), "websocket upgrade failed", logging.Error(err))
		return
	}

	c := &client{
		conn:   conn,
		remote: conn.RemoteAddr().String(),
		send:   make(chan []byte, h.buffer),
		status: filter,
		system: q.Get("system"),
	}
	h.add(c)

	go h.writePump(c)
	h.readPump(c)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.removeLocked(c)
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	metrics.FeedClients.Inc()
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	c.stop()
	metrics.FeedClients.Dec()
}

// readPump drains control frames so pongs are seen; the feed ignores client data.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
