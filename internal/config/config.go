// Package config provides configuration management for the RGS
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the RGS
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Game     GameConfig
	Pluto    PlutoConfig
}

// PlutoConfig holds the hub's own settings: the session-token secret,
// the identity provider it verifies bearer tokens against, and the
// background workers' cadence.
type PlutoConfig struct {
	SessionTokenSecret string
	IdentityBaseURL    string
	IdentityAPIKey     string
	SweeperInterval    time.Duration
	LobbyHeartbeat     time.Duration
	PlatformFeeBpsMax  int64
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver string
	DSN    string
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret         string
	TokenExpiry       time.Duration
	SessionTimeout    time.Duration
	MaxFailedAttempts int
	LockoutDuration   time.Duration
}

// GameConfig holds game-related configuration
type GameConfig struct {
	DefaultCurrency string
	MinRTP          float64
}

// Load loads configuration from environment with defaults
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("RGS_PORT", "8080"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Driver: getEnv("RGS_DB_DRIVER", "postgres"),
			DSN:    getEnv("RGS_DB_DSN", "host=localhost dbname=rgs sslmode=disable"),
		},
		Auth: AuthConfig{
			JWTSecret:         getEnv("RGS_JWT_SECRET", "rgs-dev-secret-change-in-production"),
			TokenExpiry:       24 * time.Hour,
			SessionTimeout:    30 * time.Minute,
			MaxFailedAttempts: 3,
			LockoutDuration:   30 * time.Minute,
		},
		Game: GameConfig{
			DefaultCurrency: getEnv("RGS_CURRENCY", "USD"),
			MinRTP:          0.75, // GLI-19 §4.7.1 - minimum 75%
		},
		Pluto: PlutoConfig{
			SessionTokenSecret: getEnv("PLUTO_SESSION_TOKEN_SECRET", "pluto-dev-secret-change-in-production"),
			IdentityBaseURL:    getEnv("PLUTO_IDENTITY_BASE_URL", "http://localhost:9090"),
			IdentityAPIKey:     getEnv("PLUTO_IDENTITY_API_KEY", ""),
			SweeperInterval:    getEnvDuration("PLUTO_SWEEPER_INTERVAL", 15*time.Second),
			LobbyHeartbeat:     getEnvDuration("PLUTO_LOBBY_HEARTBEAT", 30*time.Second),
			PlatformFeeBpsMax:  getEnvInt("PLUTO_PLATFORM_FEE_BPS_MAX", 10000),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}
