package db

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/savings-circle/backend/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisOptionsFromConfig(t *testing.T) {
	opt, err := redisOptions(config.RedisConfig{
		URL:          "redis://localhost:6379/2",
		Timeout:      time.Second,
		MaxRetries:   1,
		PoolSize:     7,
		MinIdleConns: 3,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, opt.DB)
	assert.Equal(t, 7, opt.PoolSize)
	assert.Equal(t, 3, opt.MinIdleConns)
	assert.Equal(t, 1, opt.MaxRetries)
	assert.Equal(t, time.Second, opt.DialTimeout)
	assert.Equal(t, time.Second, opt.ReadTimeout)
	assert.Equal(t, time.Second, opt.PoolTimeout)
}

func TestRedisOptionsURLQueryWins(t *testing.T) {
	opt, err := redisOptions(config.RedisConfig{
		URL:      "redis://localhost:6379?pool_size=3&dial_timeout=2s",
		Timeout:  time.Second,
		PoolSize: 20,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, opt.PoolSize)
	assert.Equal(t, 2*time.Second, opt.DialTimeout)
	assert.Equal(t, time.Second, opt.ReadTimeout)
}

func TestRedisOptionsRejectsBadURL(t *testing.T) {
	_, err := redisOptions(config.RedisConfig{URL: "not a url"})
	assert.ErrorContains(t, err, "REDIS_URL")
}

func TestConnectRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &config.Config{Redis: config.RedisConfig{
		URL:      "redis://" + mr.Addr(),
		Timeout:  time.Second,
		PoolSize: 2,
	}}

	client, err := ConnectRedis(cfg)
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
	assert.Equal(t, 2, client.Options().PoolSize)
}
