/**
 * @description
 * Configuration loader for the Savings Circle backend.
 * Responsible for reading environment variables, setting defaults, and performing strict validation.
 *
 * @dependencies
 * - github.com/joho/godotenv: For loading .env files
 *
 * @notes
 * - Fails fast if DATABASE_URL is missing.
 * - Load() returns a fresh Config; callers pass it down explicitly.
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	DB       DBConfig
	Redis    RedisConfig
	Chain    ChainConfig
	Auth     AuthConfig
	Services ServicesConfig
	Worker   WorkerConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port        string
	Env         string // "development", "staging", "production" or "test"
	CORSOrigins string
	// Mutating requests allowed per second per client, 0 disables limiting
	RateLimitRPS   int
	RateLimitBurst int
}

// DBConfig holds PostgreSQL settings
type DBConfig struct {
	URL         string
	AutoMigrate bool
}

// RedisConfig holds Redis settings
type RedisConfig struct {
	URL          string
	// Timeout applies to dial, read, write and pool waits
	Timeout      time.Duration
	MaxRetries   int
	PoolSize     int
	MinIdleConns int
}

// ChainConfig holds settings for reading circle contracts
type ChainConfig struct {
	RPCURL        string
	TokenDecimals int32
	ReadTimeout   time.Duration
	CacheTTL      time.Duration
}

// AuthConfig holds session gate settings
type AuthConfig struct {
	// JWKS used to verify Farcaster Quick Auth tokens
	QuickAuthJWKSURL string
	// Expected "aud" claim (the mini app domain); empty skips the check
	QuickAuthDomain   string
	SessionCookieName string
}

// ServicesConfig holds external service keys
type ServicesConfig struct {
	NeynarAPIKey  string
	NeynarBaseURL string
}

// WorkerConfig holds background job settings
type WorkerConfig struct {
	RefreshSchedule string
}

// Load reads .env file and populates the Config struct
func Load() (*Config, error) {
	// k8s/prod might inject env vars directly, a missing .env is fine
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            getEnv("GO_ENV", "development"),
			CORSOrigins:    getEnv("CORS_ORIGINS", "*"),
			RateLimitRPS:   getEnvAsInt("RATE_LIMIT_RPS", 10),
			RateLimitBurst: getEnvAsInt("RATE_LIMIT_BURST", 20),
		},
		DB: DBConfig{
			URL:         getEnv("DATABASE_URL", ""),
			AutoMigrate: getEnvAsBool("DB_AUTO_MIGRATE", false),
		},
		Redis: RedisConfig{
			URL:          getEnv("REDIS_URL", "redis://localhost:6379"),
			Timeout:      getEnvAsDuration("REDIS_TIMEOUT", 3*time.Second),
			MaxRetries:   getEnvAsInt("REDIS_MAX_RETRIES", 2),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 20),
			MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", 2),
		},
		Chain: ChainConfig{
			RPCURL:        getEnv("CHAIN_RPC_URL", "https://mainnet.base.org"),
			TokenDecimals: int32(getEnvAsInt("CIRCLE_TOKEN_DECIMALS", 6)),
			ReadTimeout:   getEnvAsDuration("CHAIN_READ_TIMEOUT", 8*time.Second),
			CacheTTL:      getEnvAsDuration("CIRCLE_CACHE_TTL", 30*time.Second),
		},
		Auth: AuthConfig{
			QuickAuthJWKSURL:  getEnv("QUICK_AUTH_JWKS_URL", "https://auth.farcaster.xyz/.well-known/jwks.json"),
			QuickAuthDomain:   getEnv("QUICK_AUTH_DOMAIN", ""),
			SessionCookieName: getEnv("SESSION_COOKIE_NAME", "session_token"),
		},
		Services: ServicesConfig{
			NeynarAPIKey:  sanitizeCredential(getEnv("NEYNAR_API_KEY", "")),
			NeynarBaseURL: getEnv("NEYNAR_BASE_URL", "https://api.neynar.com"),
		},
		Worker: WorkerConfig{
			RefreshSchedule: getEnv("CIRCLE_REFRESH_SCHEDULE", "@every 2m"),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate checks for required variables
func validate(cfg *Config) error {
	if cfg.DB.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.Redis.PoolSize < 1 {
		return fmt.Errorf("REDIS_POOL_SIZE must be positive, got %d", cfg.Redis.PoolSize)
	}
	if cfg.Chain.TokenDecimals < 0 || cfg.Chain.TokenDecimals > 36 {
		return fmt.Errorf("CIRCLE_TOKEN_DECIMALS must be between 0 and 36, got %d", cfg.Chain.TokenDecimals)
	}
	if cfg.Services.NeynarAPIKey == "" && cfg.Server.Env != "test" {
		// Profile lookups degrade to local data only
		fmt.Println("Warning: NEYNAR_API_KEY is missing. Farcaster profile lookups will fail.")
	}
	return nil
}

// Helper to get env var with default
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func sanitizeCredential(value string) string {
	trimmed := strings.TrimSpace(value)
	return strings.Trim(trimmed, "\"")
}

// Helper to get env var as int
func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return fallback
}
