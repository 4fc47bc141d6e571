package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/playmatatu/poolsim/internal/config"
	"github.com/playmatatu/poolsim/internal/ws"
)

// HandleSessionWebSocket streams a session's frames over a websocket.
func HandleSessionWebSocket(hub *ws.Hub, cfg *config.Config) gin.HandlerFunc {
	return hub.HandleWebSocket(cfg)
}
