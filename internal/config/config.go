package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime settings. Values come from the environment with
// sane defaults so the server runs out of the box against local sqlite and
// public endpoints.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Auth       AuthConfig
	Monitor    MonitorConfig
	Market     MarketConfig
	Aggregator AggregatorConfig
}

type ServerConfig struct {
	Port string
}

type DatabaseConfig struct {
	Path string
}

type AuthConfig struct {
	JWTSecret string
}

// MonitorConfig fixes the scheduler's cadence and fan-out ceiling. These are
// deployment constants, not per-order knobs.
type MonitorConfig struct {
	TickInterval time.Duration
	WorkerLimit  int
	ClaimLease   time.Duration
}

type MarketConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
	RatePerSecond  float64
}

type AggregatorConfig struct {
	BaseURL         string
	BaseMint        string
	QuoteTimeout    time.Duration
	BuildTimeout    time.Duration
	SimulateTimeout time.Duration
	SendTimeout     time.Duration
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envString("PORT", "8080"),
		},
		Database: DatabaseConfig{
			Path: envString("DB_PATH", "trigger.db"),
		},
		Auth: AuthConfig{
			JWTSecret: envString("JWT_SECRET", "trigger-secret-key"),
		},
		Monitor: MonitorConfig{
			TickInterval: envDuration("MONITOR_INTERVAL", 30*time.Second),
			WorkerLimit:  envInt("MONITOR_WORKERS", 8),
			ClaimLease:   envDuration("MONITOR_CLAIM_LEASE", 2*time.Minute),
		},
		Market: MarketConfig{
			BaseURL:        envString("MARKET_BASE_URL", "https://api.dexscreener.com"),
			RequestTimeout: envDuration("MARKET_TIMEOUT", 10*time.Second),
			RatePerSecond:  envFloat("MARKET_RATE_LIMIT", 5),
		},
		Aggregator: AggregatorConfig{
			BaseURL:         envString("AGGREGATOR_BASE_URL", "https://quote-api.jup.ag"),
			BaseMint:        envString("AGGREGATOR_BASE_MINT", "So11111111111111111111111111111111111111112"),
			QuoteTimeout:    envDuration("AGGREGATOR_QUOTE_TIMEOUT", 10*time.Second),
			BuildTimeout:    envDuration("AGGREGATOR_BUILD_TIMEOUT", 10*time.Second),
			SimulateTimeout: envDuration("AGGREGATOR_SIMULATE_TIMEOUT", 15*time.Second),
			SendTimeout:     envDuration("AGGREGATOR_SEND_TIMEOUT", 30*time.Second),
		},
	}

	if cfg.Monitor.WorkerLimit < 1 {
		return nil, fmt.Errorf("MONITOR_WORKERS must be at least 1")
	}
	if cfg.Monitor.TickInterval < time.Second {
		return nil, fmt.Errorf("MONITOR_INTERVAL must be at least 1s")
	}

	return cfg, nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
