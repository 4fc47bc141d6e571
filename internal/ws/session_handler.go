package ws

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/playmatatu/poolsim/internal/config"
	"github.com/playmatatu/poolsim/internal/middleware"
	"github.com/playmatatu/poolsim/internal/session"
)

// TickData is the payload of a client "tick" message.
type TickData struct {
	Dt    float64 `json:"dt"`
	Steps int     `json:"steps"`
}

func newClientID() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "c_" + hex.EncodeToString(b), nil
}

// HandleWebSocket upgrades GET /sessions/:token/ws. Clients presenting a
// control token in ?access_token= may also send tick, start and stop.
func (h *Hub) HandleWebSocket(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Param("token")
		if _, err := h.manager.Get(c.Request.Context(), token); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}

		canControl := false
		if access := c.Query("access_token"); access != "" {
			granted, err := middleware.ParseSessionToken(cfg, access)
			if err != nil || granted != token {
				c.JSON(http.StatusForbidden, gin.H{"error": "invalid access token"})
				return
			}
			canControl = true
		}

		id, err := newClientID()
		if err != nil {
			log.Printf("[WS] Failed to generate client id: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("[WS] Upgrade error: %v", err)
			return
		}

		client := &Client{
			hub:        h,
			conn:       conn,
			id:         id,
			token:      token,
			canControl: canControl,
			send:       make(chan []byte, sendBuffer),
		}

		select {
		case h.register <- client:
		case <-h.done:
			conn.Close()
			return
		}

		go client.writePump()
		go client.readPump()
	}
}

// Run processes registrations until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			log.Println("[WS] Hub stopping")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			if _, exists := h.rooms[client.token]; !exists {
				h.rooms[client.token] = make(map[string]*Client)
			}
			h.rooms[client.token][client.id] = client
			size := len(h.rooms[client.token])
			h.mu.Unlock()

			log.Printf("[WS] Client %s joined session %s (room_size=%d)", client.id, client.token, size)
			client.sendState(ctx)

		case client := <-h.unregister:
			h.mu.Lock()
			if cur, ok := h.clients[client.id]; ok && cur == client {
				delete(h.clients, client.id)
				if room, exists := h.rooms[client.token]; exists {
					delete(room, client.id)
					if len(room) == 0 {
						delete(h.rooms, client.token)
					}
				}
				close(client.send)
				log.Printf("[WS] Client %s left session %s", client.id, client.token)
			}
			h.mu.Unlock()
		}
	}
}

// readPump reads client messages until the connection drops.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[WS] Unexpected close for client %s: %v", c.id, err)
			}
			break
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.sendError("Invalid message")
			continue
		}

		c.handleMessage(context.Background(), msg)
	}
}

// handleMessage processes one client message.
func (c *Client) handleMessage(ctx context.Context, msg WSMessage) {
	switch msg.Type {
	case "get_state":
		c.sendState(ctx)

	case "tick":
		if !c.requireControl() {
			return
		}
		data := TickData{Steps: 1}
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &data); err != nil {
				c.sendError("Invalid tick data")
				return
			}
		}
		// The manager broadcasts the resulting snapshot to the room.
		if _, _, err := c.hub.manager.Tick(ctx, c.token, data.Dt, data.Steps); err != nil {
			c.sendError(err.Error())
		}

	case "start":
		if !c.requireControl() {
			return
		}
		if err := c.hub.manager.StartLoop(ctx, c.token); err != nil && !errors.Is(err, session.ErrAlreadyRunning) {
			c.sendError(err.Error())
			return
		}
		c.hub.BroadcastToSession(c.token, map[string]interface{}{"type": "loop", "status": session.StatusRunning})

	case "stop":
		if !c.requireControl() {
			return
		}
		if err := c.hub.manager.StopLoop(ctx, c.token); err != nil && !errors.Is(err, session.ErrNotRunning) {
			c.sendError(err.Error())
			return
		}
		c.hub.BroadcastToSession(c.token, map[string]interface{}{"type": "loop", "status": session.StatusIdle})

	default:
		c.sendError("Unknown message type")
	}
}

func (c *Client) requireControl() bool {
	if !c.canControl {
		c.sendError("control token required")
		return false
	}
	return true
}

// sendState sends the session's current snapshot to this client only.
func (c *Client) sendState(ctx context.Context) {
	s, err := c.hub.manager.Get(ctx, c.token)
	if err != nil {
		c.sendError("Session not found")
		return
	}
	snap := s.Snapshot()
	c.sendJSON(map[string]interface{}{
		"type":  "snapshot",
		"frame": snap.Tick,
		"state": snap,
	})
}
