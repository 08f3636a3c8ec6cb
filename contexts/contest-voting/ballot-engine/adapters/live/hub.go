package live

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"contestvote/contexts/contest-voting/ballot-engine/domain/entities"
	"contestvote/contexts/contest-voting/ballot-engine/ports"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 16
)

// Gauge receives the current subscriber count.
type Gauge interface {
	Set(float64)
}

// Message is what subscribers receive.
type Message struct {
	Type   string                  `json:"type"`
	Result entities.CategoryResult `json:"result"`
}

type client struct {
	categoryID string
	conn       *websocket.Conn
	send       chan []byte
}

// Hub fans category results out to websocket subscribers grouped by
// category. Slow subscribers whose buffer is full are dropped.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]map[*client]struct{}
	upgrader websocket.Upgrader
	gauge    Gauge
	logger   *slog.Logger
}

func NewHub(gauge Gauge, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[string]map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		gauge:  gauge,
		logger: logger,
	}
}

// ServeCategory upgrades the request and subscribes it to categoryID. When
// initial is set it is sent before any later update.
func (h *Hub) ServeCategory(w http.ResponseWriter, r *http.Request, categoryID string, initial *entities.CategoryResult) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("live results upgrade failed",
			"event", "ballot_engine_live_upgrade_failed",
			"module", "contest-voting/ballot-engine",
			"layer", "adapter",
			"category_id", categoryID,
			"error", err.Error(),
		)
		return err
	}
	c := &client{
		categoryID: strings.TrimSpace(categoryID),
		conn:       conn,
		send:       make(chan []byte, sendBuffer),
	}
	if initial != nil {
		if raw, err := encode("snapshot", *initial); err == nil {
			c.send <- raw
		}
	}
	h.register(c)
	go h.writePump(c)
	go h.readPump(c)
	return nil
}

func (h *Hub) PublishCategoryResult(_ context.Context, result entities.CategoryResult) error {
	raw, err := encode("update", result)
	if err != nil {
		return err
	}

	// Sends happen under the read lock so unregister cannot close a channel
	// mid-send.
	slow := make([]*client, 0)
	h.mu.RLock()
	for c := range h.clients[result.CategoryID] {
		select {
		case c.send <- raw:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("dropping slow live subscriber",
			"event", "ballot_engine_live_subscriber_dropped",
			"module", "contest-voting/ballot-engine",
			"layer", "adapter",
			"category_id", result.CategoryID,
		)
		h.unregister(c)
	}
	return nil
}

// Subscribers returns the number of connected subscribers of a category.
func (h *Hub) Subscribers(categoryID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[strings.TrimSpace(categoryID)])
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c.categoryID]; !ok {
		h.clients[c.categoryID] = make(map[*client]struct{})
	}
	h.clients[c.categoryID][c] = struct{}{}
	h.reportLocked()
	h.mu.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.clients[c.categoryID]
	if !ok {
		return
	}
	if _, ok := members[c]; !ok {
		return
	}
	delete(members, c)
	close(c.send)
	if len(members) == 0 {
		delete(h.clients, c.categoryID)
	}
	h.reportLocked()
}

func (h *Hub) reportLocked() {
	if h.gauge == nil {
		return
	}
	total := 0
	for _, members := range h.clients {
		total += len(members)
	}
	h.gauge.Set(float64(total))
}

// readPump only watches for close and pong frames; subscribers never send
// data.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
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
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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

// encode strips voter keys; subscribers only see aggregate figures.
func encode(kind string, result entities.CategoryResult) ([]byte, error) {
	result.VoterKeys = nil
	return json.Marshal(Message{Type: kind, Result: result})
}

var _ ports.LivePublisher = (*Hub)(nil)
