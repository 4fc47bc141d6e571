package api

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/playmatatu/poolsim/internal/api/handlers"
	"github.com/playmatatu/poolsim/internal/config"
	"github.com/playmatatu/poolsim/internal/middleware"
	"github.com/playmatatu/poolsim/internal/session"
	"github.com/playmatatu/poolsim/internal/ws"
)

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, db *sqlx.DB, cfg *config.Config, manager *session.Manager, hub *ws.Hub) {
	router.Use(middleware.CORSMiddleware(cfg))

	if cfg.Environment != "production" {
		router.Use(func(c *gin.Context) {
			c.Header("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
			c.Header("Pragma", "no-cache")
			c.Header("Expires", "0")
			c.Next()
		})
		log.Println("[DEV MODE] No-cache headers enabled for all routes")
	}

	router.GET("/health", handlers.HealthCheck(manager))

	// API v1 group
	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", handlers.HealthCheck(manager))

		v1.POST("/sessions", handlers.CreateSession(manager, cfg))

		sessions := v1.Group("/sessions/:token")
		{
			sessions.GET("", handlers.GetSession(manager))
			sessions.GET("/balls", handlers.ListBalls(manager))
			sessions.GET("/balls/:index", handlers.GetBall(manager))
			sessions.GET("/ws", middleware.WebSocketCORSCheck(cfg), handlers.HandleSessionWebSocket(hub, cfg))

			control := sessions.Group("", middleware.SessionAuth(cfg))
			control.POST("/tick", handlers.TickSession(manager))
			control.POST("/start", handlers.StartSession(manager))
			control.POST("/stop", handlers.StopSession(manager))
			control.DELETE("", handlers.DeleteSession(manager))
		}

		adminGroup := v1.Group("/admin", middleware.AdminAuth(db))
		{
			adminGroup.GET("/runs", handlers.GetAdminRuns(db))
			adminGroup.GET("/runs/:id/steps", handlers.GetAdminRunSteps(db))
			adminGroup.GET("/sessions", handlers.GetAdminSessions(manager))
		}
	}
}
