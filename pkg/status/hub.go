package status

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/dbehnke/fne-peer/pkg/logger"
	"github.com/gorilla/websocket"
)

// client is one connected websocket client.
type client struct {
	id       string
	conn     *websocket.Conn
	messages chan []byte
}

// Hub manages websocket client connections and broadcasts Snapshots to all
// of them, the same hub/broadcast shape as the teacher's WebSocketHub,
// narrowed to a single Snapshot message type.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan Snapshot
	register   chan *client
	unregister chan *client
	logger     *logger.Logger
	mu         sync.RWMutex

	last   Snapshot
	lastMu sync.RWMutex
}

// NewHub creates a new status hub.
func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.New(logger.Config{Level: "info", Format: "text"})
	}
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan Snapshot, 64),
		register:   make(chan *client),
		unregister: make(chan *client),
		logger:     log.WithComponent("status"),
	}
}

// Run drives the hub's event loop until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			h.logger.Debug("status client registered", logger.String("client_id", c.id))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.messages)
			}
			h.mu.Unlock()
			h.logger.Debug("status client unregistered", logger.String("client_id", c.id))

		case snap := <-h.broadcast:
			h.lastMu.Lock()
			h.last = snap
			h.lastMu.Unlock()

			data, err := json.Marshal(snap)
			if err != nil {
				h.logger.Error("failed to marshal snapshot", logger.Error(err))
				continue
			}
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.messages <- data:
				default:
					h.logger.Warn("status client buffer full, skipping", logger.String("client_id", c.id))
				}
			}
			h.mu.RUnlock()

		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.messages)
			}
			h.clients = make(map[*client]bool)
			h.mu.Unlock()
			return
		}
	}
}

// Broadcast queues snap for delivery to all connected clients.
func (h *Hub) Broadcast(snap Snapshot) {
	select {
	case h.broadcast <- snap:
	default:
		h.logger.Warn("status broadcast channel full, dropping snapshot")
	}
}

// Last returns the most recently broadcast Snapshot.
func (h *Hub) Last() Snapshot {
	h.lastMu.RLock()
	defer h.lastMu.RUnlock()
	return h.last
}

// ClientCount returns the number of connected websocket clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Handler returns an HTTP handler that upgrades requests to websocket
// connections and streams Snapshots to them.
func (h *Hub) Handler() http.Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			http.Error(w, "websocket upgrade failed", http.StatusBadRequest)
			return
		}
		c := &client{id: r.RemoteAddr, conn: conn, messages: make(chan []byte, 64)}
		h.register <- c

		go func() {
			defer func() {
				h.unregister <- c
				_ = c.conn.Close()
			}()
			c.conn.SetReadLimit(1024)
			for {
				if _, _, err := c.conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		go func() {
			for msg := range c.messages {
				_ = c.conn.WriteMessage(websocket.TextMessage, msg)
			}
		}()
	})
}
