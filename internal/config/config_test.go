package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("GO_ENV", "test")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoadAppliesDefaultsAndOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/circles")
	t.Setenv("GO_ENV", "test")
	t.Setenv("CHAIN_READ_TIMEOUT", "3s")
	t.Setenv("RATE_LIMIT_RPS", "not-a-number")
	t.Setenv("NEYNAR_API_KEY", ` "abc" `)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 10, cfg.Server.RateLimitRPS)
	assert.Equal(t, 3*time.Second, cfg.Chain.ReadTimeout)
	assert.Equal(t, int32(6), cfg.Chain.TokenDecimals)
	assert.Equal(t, "abc", cfg.Services.NeynarAPIKey)
	assert.Equal(t, "session_token", cfg.Auth.SessionCookieName)
}

func TestValidateRejectsOutOfRangeDecimals(t *testing.T) {
	cfg := &Config{DB: DBConfig{URL: "x"}, Chain: ChainConfig{TokenDecimals: 40}, Server: ServerConfig{Env: "test"}}
	assert.Error(t, validate(cfg))
}

func TestLoadRedisPoolSettings(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/circles")
	t.Setenv("GO_ENV", "test")
	t.Setenv("REDIS_POOL_SIZE", "8")
	t.Setenv("REDIS_TIMEOUT", "750ms")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Redis.PoolSize)
	assert.Equal(t, 750*time.Millisecond, cfg.Redis.Timeout)
	assert.Equal(t, 2, cfg.Redis.MaxRetries)

	t.Setenv("REDIS_POOL_SIZE", "0")
	_, err = Load()
	assert.ErrorContains(t, err, "REDIS_POOL_SIZE")
}
