package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wonny/dqpipe/backend/internal/contracts"
	"github.com/wonny/dqpipe/backend/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	sendBuffer      = 32
	broadcastBuffer = 64
)

// Message is one frame sent to subscribers
type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// MessageTypeRun carries a finished contracts.RunSummary
const MessageTypeRun = "run"

// Hub fans run completions out to websocket subscribers.
// ⭐ SSOT: 실행 결과 실시간 피드는 이 Hub 에서만 (contracts.RunPublisher 구현)
type Hub struct {
	logger     *logger.Logger
	clients    map[*client]struct{}
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	done       chan struct{} // closed when Run returns
	mu         sync.RWMutex
	upgrader   websocket.Upgrader
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

var _ contracts.RunPublisher = (*Hub)(nil)

// NewHub creates a hub; call Run before serving connections
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		logger:     log,
		clients:    make(map[*client]struct{}),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, broadcastBuffer),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // read-only feed
			},
		},
	}
}

// Run dispatches registrations and broadcasts until ctx is done
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.WithField("client_count", n).Debug("WebSocket client connected")

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.WithField("client_count", n).Debug("WebSocket client disconnected")

		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// slow consumer
					delete(h.clients, c)
					close(c.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

// ClientCount returns the number of connected subscribers
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish broadcasts a finished run. Never blocks the pipeline:
// when the broadcast queue is full the message is dropped.
func (h *Hub) Publish(run *contracts.RunSummary) {
	if run == nil {
		return
	}

	data, err := json.Marshal(Message{
		Type:      MessageTypeRun,
		Data:      run,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		h.logger.WithError(err).Error("Failed to marshal run message")
		return
	}

	select {
	case h.broadcast <- data:
	default:
		h.logger.WithPartition(run.IngestDate).Warn("WebSocket broadcast queue full, dropping run message")
	}
}

// ServeHTTP upgrades the request and subscribes the connection
// GET /ws/runs
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only drains control frames; subscribers never send data
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.WithError(err).Debug("WebSocket read error")
			}
			return
		}
	}
}
