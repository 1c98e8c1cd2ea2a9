// Package config provides configuration loading and validation from environment variables.
package config

import (
	"fmt"
	"os"
)

// Backend names accepted for STATE_BACKEND.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config holds all application configuration.
type Config struct {
	LogLevel          string // debug, info, warn, error
	ListenAddr        string // Server listen address (e.g., ":8080")
	MetricsListenAddr string // Metrics listener address (e.g., "localhost:9090")
	DatabasePath      string // SQLite database path
	MasterKey         string // Required: passphrase the encryption key is derived from
	AdminToken        string // Required: token for the admin API (AccessKey header)
	StateBackend      string // memory or redis: where counters and buckets live
	RedisURL          string // Redis connection URL, required when StateBackend is redis
	BedrockRegion     string // Optional: default AWS region for Bedrock credentials
}

// Load parses configuration from environment variables.
// All configuration options except MASTER_KEY and ADMIN_TOKEN have sensible
// defaults for ease of deployment.
func Load() (*Config, error) {
	logLevel := os.Getenv("LOG_LEVEL")
	listenAddr := os.Getenv("LISTEN_ADDR")
	metricsListenAddr := os.Getenv("METRICS_LISTEN_ADDR")
	databasePath := os.Getenv("DATABASE_PATH")
	masterKey := os.Getenv("MASTER_KEY")
	adminToken := os.Getenv("ADMIN_TOKEN")
	stateBackend := os.Getenv("STATE_BACKEND")
	redisURL := os.Getenv("REDIS_URL")
	bedrockRegion := os.Getenv("BEDROCK_REGION")

	// Set defaults for optional fields
	if logLevel == "" {
		logLevel = "info"
	}

	if listenAddr == "" {
		listenAddr = ":8080"
	}

	if metricsListenAddr == "" {
		metricsListenAddr = "localhost:9090"
	}

	if databasePath == "" {
		databasePath = "/data/keyvault.db"
	}

	if stateBackend == "" {
		stateBackend = BackendMemory
	}

	cfg := &Config{
		LogLevel:          logLevel,
		ListenAddr:        listenAddr,
		MetricsListenAddr: metricsListenAddr,
		DatabasePath:      databasePath,
		MasterKey:         masterKey,
		AdminToken:        adminToken,
		StateBackend:      stateBackend,
		RedisURL:          redisURL,
		BedrockRegion:     bedrockRegion,
	}

	return cfg, nil
}

// Validate checks all configuration constraints.
func (c *Config) Validate() error {
	if c.MasterKey == "" {
		return fmt.Errorf("MASTER_KEY environment variable is required")
	}
	if len(c.MasterKey) < 16 {
		return fmt.Errorf("MASTER_KEY must be at least 16 characters")
	}
	if c.AdminToken == "" {
		return fmt.Errorf("ADMIN_TOKEN environment variable is required")
	}
	switch c.StateBackend {
	case BackendMemory:
	case BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when STATE_BACKEND is redis")
		}
	default:
		return fmt.Errorf("STATE_BACKEND must be %q or %q, got %q", BackendMemory, BackendRedis, c.StateBackend)
	}
	return nil
}
