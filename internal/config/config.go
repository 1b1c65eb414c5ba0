package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/playmatatu/mergeball/internal/game"
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

	// Simulation
	TickHz              int
	BroadcastHz         int
	DropCooldownMs      int
	GameOverDelayMs     int
	WarningBandFraction float64

	// Sessions
	SessionTimeLimitSecs  int
	IdleForfeitSecs       int
	IdleWorkerPollSecs    int
	SnapshotTTLMinutes    int
	LeaderboardSize       int
	StartingAssistCredits int

	// Security
	JWTSecret         string
	SessionTimeoutMin int
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	return &Config{
		// Environment
		Environment: getEnv("APP_ENV", "development"),

		// Database
		DatabaseURL:    getEnv("DATABASE_URL", "postgres://localhost:5432/mergeball?sslmode=disable"),
		MigrateOnStart: getEnv("MIGRATE_ON_START", "false") == "true",

		// Redis
		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		// Server
		Port:        getEnv("APP_PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),

		// Simulation
		TickHz:              getEnvInt("TICK_HZ", 60),
		BroadcastHz:         getEnvInt("BROADCAST_HZ", 20),
		DropCooldownMs:      getEnvInt("DROP_COOLDOWN_MS", 1000),
		GameOverDelayMs:     getEnvInt("GAME_OVER_DELAY_MS", 4000),
		WarningBandFraction: getEnvFloat("WARNING_BAND_FRACTION", 0.05),

		// Sessions
		SessionTimeLimitSecs:  getEnvInt("SESSION_TIME_LIMIT_SECONDS", 0),
		IdleForfeitSecs:       getEnvInt("IDLE_FORFEIT_SECONDS", 120),
		IdleWorkerPollSecs:    getEnvInt("IDLE_WORKER_POLL_SECONDS", 5),
		SnapshotTTLMinutes:    getEnvInt("SNAPSHOT_TTL_MINUTES", 30),
		LeaderboardSize:       getEnvInt("LEADERBOARD_SIZE", 100),
		StartingAssistCredits: getEnvInt("STARTING_ASSIST_CREDITS", 3),

		// Security
		JWTSecret:         getEnv("JWT_SECRET", "change-me-in-production"),
		SessionTimeoutMin: getEnvInt("SESSION_TIMEOUT_MINUTES", 30*24*60),
	}
}

// Tuning maps the simulation settings onto the default playfield rules.
func (c *Config) Tuning() game.Tuning {
	t := game.DefaultTuning()
	if c.DropCooldownMs > 0 {
		t.DropCooldown = time.Duration(c.DropCooldownMs) * time.Millisecond
	}
	if c.GameOverDelayMs > 0 {
		t.GameOverDelay = time.Duration(c.GameOverDelayMs) * time.Millisecond
	}
	if c.WarningBandFraction > 0 && c.WarningBandFraction < 1 {
		t.WarningBandFraction = c.WarningBandFraction
	}
	return t
}

// TickInterval is the fixed simulation step.
func (c *Config) TickInterval() time.Duration {
	hz := c.TickHz
	if hz <= 0 {
		hz = 60
	}
	return time.Second / time.Duration(hz)
}

// BroadcastEvery is the number of ticks between two snapshot broadcasts.
func (c *Config) BroadcastEvery() int {
	if c.BroadcastHz <= 0 || c.BroadcastHz >= c.TickHz {
		return 1
	}
	return c.TickHz / c.BroadcastHz
}

func (c *Config) SessionTimeLimit() time.Duration {
	return time.Duration(c.SessionTimeLimitSecs) * time.Second
}

func (c *Config) IdleForfeit() time.Duration {
	return time.Duration(c.IdleForfeitSecs) * time.Second
}

func (c *Config) SnapshotTTL() time.Duration {
	return time.Duration(c.SnapshotTTLMinutes) * time.Minute
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
