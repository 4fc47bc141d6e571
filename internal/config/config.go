package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Environment
	Environment string

	// Database
	DatabaseURL    string
	MigrateOnStart bool

	// Redis
	RedisURL string

	// Server
	Port        string
	FrontendURL string

	// Table defaults for new sessions
	TableWidth  float64
	TableHeight float64
	BallRadius  float64
	Restitution float64
	MaxBalls    int

	// Host loop
	FrameRate         int
	MaxFrameDeltaMs   int
	SnapshotEvery     int
	SnapshotTTLSecs   int
	SessionExpiryMins int

	// Security
	JWTSecret          string
	SessionTokenTTLMin int
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	return &Config{
		// Environment
		Environment: getEnv("APP_ENV", "development"),

		// Database
		DatabaseURL:    getEnv("DATABASE_URL", "postgres://localhost:5432/poolsim?sslmode=disable"),
		MigrateOnStart: getEnvBool("MIGRATE_ON_START", false),

		// Redis
		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		// Server
		Port:        getEnv("APP_PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),

		// Table defaults
		TableWidth:  getEnvFloat("TABLE_WIDTH", 800),
		TableHeight: getEnvFloat("TABLE_HEIGHT", 400),
		BallRadius:  getEnvFloat("BALL_RADIUS", 10),
		Restitution: getEnvFloat("RESTITUTION", 1.0),
		MaxBalls:    getEnvInt("MAX_BALLS", 32),

		// Host loop
		FrameRate:         getEnvInt("FRAME_RATE", 60),
		MaxFrameDeltaMs:   getEnvInt("MAX_FRAME_DELTA_MS", 50),
		SnapshotEvery:     getEnvInt("SNAPSHOT_EVERY_FRAMES", 30),
		SnapshotTTLSecs:   getEnvInt("SNAPSHOT_TTL_SECONDS", 3600),
		SessionExpiryMins: getEnvInt("SESSION_EXPIRY_MINUTES", 30),

		// Security
		JWTSecret:          getEnv("JWT_SECRET", "change-me-in-production"),
		SessionTokenTTLMin: getEnvInt("SESSION_TOKEN_TTL_MINUTES", 60),
	}
}

// FrameInterval is the host loop period derived from FrameRate.
func (c *Config) FrameInterval() time.Duration {
	if c.FrameRate <= 0 {
		return time.Second / 60
	}
	return time.Second / time.Duration(c.FrameRate)
}

func (c *Config) MaxFrameDelta() time.Duration {
	return time.Duration(c.MaxFrameDeltaMs) * time.Millisecond
}

func (c *Config) SnapshotTTL() time.Duration {
	return time.Duration(c.SnapshotTTLSecs) * time.Second
}

func (c *Config) SessionExpiry() time.Duration {
	return time.Duration(c.SessionExpiryMins) * time.Minute
}

func (c *Config) SessionTokenTTL() time.Duration {
	return time.Duration(c.SessionTokenTTLMin) * time.Minute
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
