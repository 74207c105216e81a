package config

import (
	"fmt"
	"time"
)

// Config represents the complete engine configuration
type Config struct {
	Memory  MemoryConfig  `mapstructure:"sm"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// MemoryConfig bounds the bytes a single query may hold in flight
type MemoryConfig struct {
	// Budget is the upper bound on in-flight fixed tile bytes per query
	Budget uint64 `mapstructure:"memory_budget"`

	// BudgetVar is the upper bound on in-flight var tile bytes per query
	BudgetVar uint64 `mapstructure:"memory_budget_var"`
}

// CacheConfig represents tile cache configuration
type CacheConfig struct {
	Type string        `mapstructure:"type"` // Cache type: memory (default), redis
	URL  string        `mapstructure:"url"`  // Cache server URL (e.g., redis://localhost:6379)
	TTL  time.Duration `mapstructure:"ttl"`  // Entry time-to-live
	Size int           `mapstructure:"size"` // Max entries for the memory cache

	// Redis-specific options
	RedisDB       int    `mapstructure:"redis_db"`       // Redis database number (default: 0)
	RedisPassword string `mapstructure:"redis_password"` // Optional authentication
	RedisPrefix   string `mapstructure:"redis_prefix"`   // Key prefix (default: "gridstore")
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, or a file path
	TimeFormat string `mapstructure:"time_format"` // RFC3339, Unix, Kitchen
}

// Validate checks configuration consistency
func (c *Config) Validate() error {
	if c.Memory.Budget == 0 {
		return fmt.Errorf("sm.memory_budget must be positive")
	}
	if c.Memory.BudgetVar == 0 {
		return fmt.Errorf("sm.memory_budget_var must be positive")
	}
	switch c.Cache.Type {
	case "", "memory", "redis":
	default:
		return fmt.Errorf("unsupported cache type: %s (supported: memory, redis)", c.Cache.Type)
	}
	if c.Cache.Size < 0 {
		return fmt.Errorf("cache.size must be non-negative")
	}
	return nil
}
