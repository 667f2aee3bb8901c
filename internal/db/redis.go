/**
 * @description
 * Redis connection manager using go-redis.
 * Used for caching circle views and profile lookups, and pub/sub for circle update streams.
 *
 * @dependencies
 * - github.com/redis/go-redis/v9
 *
 * @notes
 * - Settings in the URL query (e.g. ?pool_size=) win over REDIS_* env settings.
 */

package db

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/savings-circle/backend/internal/config"
	"github.com/savings-circle/backend/internal/logger"
)

// ConnectRedis initializes the Redis client and verifies it with a ping
func ConnectRedis(cfg *config.Config) (*redis.Client, error) {
	opt, err := redisOptions(cfg.Redis)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), opt.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	logger.Info("✅ Connected to Redis (pool=%d)", opt.PoolSize)
	return client, nil
}

// redisOptions fills the options the URL left unset from rc
func redisOptions(rc config.RedisConfig) (*redis.Options, error) {
	opt, err := redis.ParseURL(rc.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}

	if opt.DialTimeout == 0 {
		opt.DialTimeout = rc.Timeout
	}
	// Cache reads sit on the request path, so they share the short timeout
	if opt.ReadTimeout == 0 {
		opt.ReadTimeout = rc.Timeout
	}
	if opt.WriteTimeout == 0 {
		opt.WriteTimeout = rc.Timeout
	}
	if opt.PoolTimeout == 0 {
		opt.PoolTimeout = rc.Timeout
	}
	if opt.MaxRetries == 0 {
		opt.MaxRetries = rc.MaxRetries
	}
	if opt.PoolSize == 0 {
		opt.PoolSize = rc.PoolSize
	}
	if opt.MinIdleConns == 0 {
		opt.MinIdleConns = rc.MinIdleConns
	}
	return opt, nil
}
