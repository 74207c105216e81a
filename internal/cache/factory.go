package cache

import (
	"fmt"
	"strings"

	"github.com/soltixdb/gridstore/internal/config"
)

// New creates a TileCache instance based on configuration.
// Default is the in-memory cache if type is not specified.
func New(cfg config.CacheConfig) (TileCache, error) {
	switch strings.ToLower(cfg.Type) {
	case "", "memory":
		return NewMemoryCache(cfg.TTL, cfg.Size), nil

	case "redis":
		return NewRedisCache(RedisConfig{
			URL:      cfg.URL,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
			TTL:      cfg.TTL,
		})

	default:
		return nil, fmt.Errorf("unsupported cache type: %s (supported: memory, redis)", cfg.Type)
	}
}
