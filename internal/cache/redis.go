package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig represents Redis tile cache configuration
type RedisConfig struct {
	URL      string        // Redis URL (e.g., redis://localhost:6379)
	Password string        // Optional password
	DB       int           // Database number (default: 0)
	Prefix   string        // Key prefix (default: "gridstore")
	TTL      time.Duration // Entry time-to-live
}

// RedisCache implements TileCache backed by a Redis server, letting
// multiple readers on one host share decoded tiles
type RedisCache struct {
	client *redis.Client
	config RedisConfig
}

// NewRedisCache creates a new Redis tile cache
func NewRedisCache(cfg RedisConfig) (*RedisCache, error) {
	// Parse URL or use defaults
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		// Fallback to simple options
		opts = &redis.Options{
			Addr:     cfg.URL,
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	// Apply defaults
	if cfg.Prefix == "" {
		cfg.Prefix = "gridstore"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}

	return &RedisCache{client: client, config: cfg}, nil
}

func (c *RedisCache) key(uri string, offset uint64) string {
	return fmt.Sprintf("%s:%s:%d", c.config.Prefix, uri, offset)
}

// Get retrieves a tile buffer from Redis
func (c *RedisCache) Get(ctx context.Context, uri string, offset uint64) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, c.key(uri, offset)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}
	return data, true, nil
}

// Put stores a tile buffer in Redis
func (c *RedisCache) Put(ctx context.Context, uri string, offset uint64, data []byte) error {
	if err := c.client.Set(ctx, c.key(uri, offset), data, c.config.TTL).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}
