package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Cache     CacheConfig     `yaml:"cache"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Scoring   ScoringConfig   `yaml:"scoring"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	DataDir string `yaml:"data_dir"`
}

// RedisConfig configures the optional Redis backend for rate limiting.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// CacheConfig configures the composite-series response cache.
type CacheConfig struct {
	TTLSeconds int `yaml:"ttl_seconds"`
}

// RateLimitConfig configures per-IP request limits.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	BurstMultiplier   int `yaml:"burst_multiplier"`
}

// ScoringConfig configures engine-adjacent knobs. The scoring weights
// themselves are fixed; only the window is tunable.
type ScoringConfig struct {
	CompositeWindowDays int `yaml:"composite_window_days"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Port: 8080},
		Database: DatabaseConfig{DataDir: "./data"},
		Cache:    CacheConfig{TTLSeconds: 300},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
			BurstMultiplier:   2,
		},
		Scoring: ScoringConfig{CompositeWindowDays: 180},
	}
}

// Load reads configuration from a YAML file and applies env var overrides.
// An empty path skips the file and uses defaults plus environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Database.DataDir = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("RATE_LIMIT_PER_MIN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RateLimit.RequestsPerMinute = n
		}
	}
	if v := os.Getenv("COMPOSITE_WINDOW_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Scoring.CompositeWindowDays = n
		}
	}
}
