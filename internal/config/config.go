// Package config defines service configuration structures and loading hooks.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Store backends understood by the service.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// Store selects the score store backend: memory or redis.
	Store string `koanf:"store"`

	// Redis connection settings, used when Store is redis. Zero timeouts keep
	// the client defaults.
	RedisAddr           string `koanf:"redis_addr"`
	RedisPassword       string `koanf:"redis_password"`
	RedisDB             int    `koanf:"redis_db"`
	RedisDialTimeoutMS  int    `koanf:"redis_dial_timeout_ms"`
	RedisReadTimeoutMS  int    `koanf:"redis_read_timeout_ms"`
	RedisWriteTimeoutMS int    `koanf:"redis_write_timeout_ms"`

	// Store keys. UserKeyFormat must contain exactly one %s for the userId.
	GlobalKey      string `koanf:"global_key"`
	UserKeyFormat  string `koanf:"user_key_format"`
	LeaderboardKey string `koanf:"leaderboard_key"`

	// LeaderboardLimit is the size of GET /leaderboard without a limit.
	LeaderboardLimit int `koanf:"leaderboard_limit"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// AtomicIncrement applies the three adds of an increment as one store
	// operation instead of three independent ones.
	AtomicIncrement bool `koanf:"atomic_increment"`

	// IdempotencyCacheSize bounds remembered Idempotency-Key results. Zero
	// disables replay.
	IdempotencyCacheSize int `koanf:"idempotency_cache_size"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:             "info",
		LogFormat:            "text",
		Addr:                 ":9080",
		Store:                StoreMemory,
		GlobalKey:            "counter:bananas",
		UserKeyFormat:        "user:%s:bananas",
		LeaderboardKey:       "zset:bananas",
		LeaderboardLimit:     20,
		MaxLeaderboardLimit:  100,
		IdempotencyCacheSize: 50_000,
	}
}

// Validate reports the first invalid setting wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.Store != StoreMemory && c.Store != StoreRedis:
		return fmt.Errorf("%w: unknown store %q", ErrInvalidConfig, c.Store)
	case c.Store == StoreRedis && c.RedisAddr == "":
		return fmt.Errorf("%w: redis_addr is required for the redis store", ErrInvalidConfig)
	case c.RedisDB < 0:
		return fmt.Errorf("%w: redis_db must not be negative", ErrInvalidConfig)
	case c.RedisDialTimeoutMS < 0 || c.RedisReadTimeoutMS < 0 || c.RedisWriteTimeoutMS < 0:
		return fmt.Errorf("%w: redis timeouts must not be negative", ErrInvalidConfig)
	case c.GlobalKey == "" || c.LeaderboardKey == "":
		return fmt.Errorf("%w: store keys must not be empty", ErrInvalidConfig)
	case strings.Count(c.UserKeyFormat, "%s") != 1:
		return fmt.Errorf("%w: user_key_format must contain exactly one %%s", ErrInvalidConfig)
	case c.LeaderboardLimit < 1 || c.MaxLeaderboardLimit < 1:
		return fmt.Errorf("%w: leaderboard limits must be positive", ErrInvalidConfig)
	case c.LeaderboardLimit > c.MaxLeaderboardLimit:
		return fmt.Errorf("%w: leaderboard_limit exceeds max_leaderboard_limit", ErrInvalidConfig)
	case c.IdempotencyCacheSize < 0:
		return fmt.Errorf("%w: idempotency_cache_size must not be negative", ErrInvalidConfig)
	}
	return nil
}

// RedisDialTimeout returns the dial timeout as a duration.
func (c *Config) RedisDialTimeout() time.Duration {
	return time.Duration(c.RedisDialTimeoutMS) * time.Millisecond
}

// RedisReadTimeout returns the read timeout as a duration.
func (c *Config) RedisReadTimeout() time.Duration {
	return time.Duration(c.RedisReadTimeoutMS) * time.Millisecond
}

// RedisWriteTimeout returns the write timeout as a duration.
func (c *Config) RedisWriteTimeout() time.Duration {
	return time.Duration(c.RedisWriteTimeoutMS) * time.Millisecond
}
