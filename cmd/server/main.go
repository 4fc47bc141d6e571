package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/playmatatu/poolsim/internal/api"
	"github.com/playmatatu/poolsim/internal/config"
	"github.com/playmatatu/poolsim/internal/database"
	"github.com/playmatatu/poolsim/internal/migrations"
	"github.com/playmatatu/poolsim/internal/redis"
	"github.com/playmatatu/poolsim/internal/session"
	"github.com/playmatatu/poolsim/internal/ws"
	goredis "github.com/redis/go-redis/v9"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database is optional: without it runs are not logged and admin routes return 503.
	var db *sqlx.DB
	if cfg.DatabaseURL != "" {
		if cfg.MigrateOnStart {
			log.Println("[MIGRATE] Running DB migrations on startup...")
			if err := migrations.RunMigrations(cfg.DatabaseURL, "migrations"); err != nil {
				log.Fatalf("Failed to run migrations: %v", err)
			}
		}

		conn, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Printf("[DB] Unavailable, run logging disabled: %v", err)
		} else {
			db = conn
			defer db.Close()
		}
	}

	// Redis is optional: without it snapshots live only in memory.
	var rdb *goredis.Client
	if cfg.RedisURL != "" {
		client, err := redis.Connect(ctx, cfg.RedisURL)
		if err != nil {
			log.Printf("[REDIS] Unavailable, snapshots and event fan-out disabled: %v", err)
		} else {
			rdb = client
			defer rdb.Close()
		}
	}

	manager := session.NewManager(db, rdb, cfg)
	hub := ws.NewHub(manager, cfg)
	manager.SetBroadcaster(hub)

	go hub.Run(ctx)
	hub.StartEventSubscriber(ctx, rdb)
	go manager.StartExpiryChecker(ctx)

	// Set up Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	api.SetupRoutes(router, db, cfg, manager, hub)

	port := cfg.Port
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		log.Printf("Starting poolsim server on port %s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	manager.Shutdown(shutdownCtx)
}
