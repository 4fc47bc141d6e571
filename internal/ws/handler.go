package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/playmatatu/poolsim/internal/config"
	"github.com/playmatatu/poolsim/internal/middleware"
	"github.com/playmatatu/poolsim/internal/session"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 65536
	sendBuffer     = 256
)

// Client represents a connected WebSocket client
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	id         string
	token      string // session token
	canControl bool   // presented a valid control token
	send       chan []byte
}

// Hub maintains the set of active clients, grouped into one room per session.
type Hub struct {
	manager    *session.Manager
	upgrader   websocket.Upgrader
	clients    map[string]*Client            // clientID -> Client
	rooms      map[string]map[string]*Client // session token -> clientID -> Client
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
}

// NewHub creates a hub bound to a session manager. Call Run before serving.
func NewHub(manager *session.Manager, cfg *config.Config) *Hub {
	h := &Hub{
		manager:    manager,
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || middleware.OriginAllowed(cfg, origin)
		},
	}
	return h
}

// Message types
type WSMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// BroadcastToSession sends a message to every client watching a session.
func (h *Hub) BroadcastToSession(token string, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("[WS] Error marshaling message: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.rooms[token] {
		select {
		case client.send <- data:
		default:
			log.Printf("[WS] Send buffer full for client %s in session %s, dropping message", client.id, token)
		}
	}
}

// RoomSize reports how many clients watch a session.
func (h *Hub) RoomSize(token string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[token])
}

// queue sends data to this client without blocking.
func (c *Client) queue(data []byte) {
	select {
	case c.send <- data:
	default:
		log.Printf("[WS] Send buffer full for client %s, dropping message", c.id)
	}
}

func (c *Client) sendJSON(message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("[WS] Error marshaling message: %v", err)
		return
	}
	c.queue(data)
}

// sendError sends an error message to the client
func (c *Client) sendError(message string) {
	c.sendJSON(map[string]interface{}{
		"type":    "error",
		"message": message,
	})
}

// writePump writes messages to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("[WS] Write error for client %s: %v", c.id, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("[WS] Ping error for client %s: %v", c.id, err)
				return
			}
		}
	}
}
