// internal/common/database/redis.go
package database

import (
	"context"
	"fmt"
	"time"

	"jobboard-workers/internal/common/config"

	"github.com/redis/go-redis/v9"
)

// RedisClient backs the notification queue and the contact cache.
type RedisClient struct {
	Client *redis.Client
}

// redisOptions sizes the pool for the queue consumers: each blocked BRPOP
// holds a connection, so the pool must exceed the consumer count.
func redisOptions(cfg config.RedisConfig) *redis.Options {
	pool := cfg.PoolSize
	if pool <= 0 {
		pool = 10
	}
	return &redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     pool,
		MinIdleConns: pool / 2,
	}
}

func NewRedis(cfg config.RedisConfig) (*RedisClient, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is empty")
	}
	return &RedisClient{Client: redis.NewClient(redisOptions(cfg))}, nil
}

// Ping is the /ready probe for redis.
func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis %s unreachable: %w", c.Client.Options().Addr, err)
	}
	return nil
}

func (c *RedisClient) Close() error {
	if c.Client == nil {
		return nil
	}
	return c.Client.Close()
}

func (c *RedisClient) GetClient() *redis.Client {
	return c.Client
}
