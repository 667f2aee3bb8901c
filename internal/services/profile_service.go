/**
 * @description
 * Profile Service for Farcaster identity lookups.
 * Resolves wallet addresses and fids to Farcaster profiles through Neynar
 * and pairs them with the local user record.
 * Uses Redis for caching so repeated page loads do not hit the provider.
 *
 * @dependencies
 * - backend/internal/integrations/neynar
 * - github.com/redis/go-redis/v9
 */

package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/savings-circle/backend/internal/integrations/neynar"
	"github.com/savings-circle/backend/internal/logger"
	"github.com/savings-circle/backend/internal/models"
)

// Cache TTLs for different lookups
const (
	ProfileCacheTTL = 5 * time.Minute // Profiles change rarely
	SearchCacheTTL  = 1 * time.Minute
)

// ProfileProvider is the Farcaster directory the service reads from
type ProfileProvider interface {
	UserByAddress(ctx context.Context, address string, viewerFid int64) (*neynar.User, error)
	UserByFid(ctx context.Context, fid int64) (*neynar.User, error)
	SearchUsers(ctx context.Context, query string, limit int) ([]neynar.User, error)
}

// AddressProfile pairs the Farcaster profile behind an address with the local user
type AddressProfile struct {
	NeynarUser *neynar.User `json:"neynarUser"`
	DBUser     *models.User `json:"dbUser"`
}

// ProfileService handles Farcaster profile operations
type ProfileService struct {
	provider ProfileProvider
	users    *UserService
	redis    *redis.Client
}

// NewProfileService creates a new ProfileService. rdb may be nil to disable caching.
func NewProfileService(provider ProfileProvider, users *UserService, rdb *redis.Client) *ProfileService {
	return &ProfileService{
		provider: provider,
		users:    users,
		redis:    rdb,
	}
}

// cacheKey generates a Redis cache key
func cacheKey(prefix, id string) string {
	return fmt.Sprintf("profile:%s:%s", prefix, strings.ToLower(id))
}

// getFromCache attempts to get data from Redis cache
func getFromCache[T any](ctx context.Context, rdb *redis.Client, key string) (*T, error) {
	if rdb == nil {
		return nil, nil
	}

	data, err := rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil // Cache miss
	}
	if err != nil {
		return nil, err
	}

	var result T
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// setInCache stores data in Redis cache with TTL
func setInCache(ctx context.Context, rdb *redis.Client, key string, data interface{}, ttl time.Duration) error {
	if rdb == nil {
		return nil
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	return rdb.Set(ctx, key, jsonData, ttl).Err()
}

// ResolveAddress returns the Farcaster user behind a wallet address, nil if none
func (s *ProfileService) ResolveAddress(ctx context.Context, address string) (*neynar.User, error) {
	address = models.NormalizeAddress(address)
	if address == "" {
		return nil, ErrInvalidAddress
	}

	key := cacheKey("address", address)
	cached, err := getFromCache[neynar.User](ctx, s.redis, key)
	if err != nil {
		logger.Error("ProfileService: Cache error: %v", err)
	}
	if cached != nil {
		return cached, nil
	}

	user, err := s.provider.UserByAddress(ctx, address, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve address: %w", err)
	}
	if user == nil {
		return nil, nil
	}

	if err := setInCache(ctx, s.redis, key, user, ProfileCacheTTL); err != nil {
		logger.Error("ProfileService: Failed to cache profile: %v", err)
	}
	return user, nil
}

// GetByFid returns the Farcaster user for fid, nil if unknown
func (s *ProfileService) GetByFid(ctx context.Context, fid int64) (*neynar.User, error) {
	key := cacheKey("fid", fmt.Sprint(fid))
	cached, err := getFromCache[neynar.User](ctx, s.redis, key)
	if err != nil {
		logger.Error("ProfileService: Cache error: %v", err)
	}
	if cached != nil {
		return cached, nil
	}

	user, err := s.provider.UserByFid(ctx, fid)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch profile: %w", err)
	}
	if user == nil {
		return nil, nil
	}

	if err := setInCache(ctx, s.redis, key, user, ProfileCacheTTL); err != nil {
		logger.Error("ProfileService: Failed to cache profile: %v", err)
	}
	return user, nil
}

// Search finds Farcaster users by username
func (s *ProfileService) Search(ctx context.Context, query string, limit int) ([]neynar.User, error) {
	query = strings.TrimSpace(query)
	key := cacheKey(fmt.Sprintf("search:%d", limit), query)
	cached, err := getFromCache[[]neynar.User](ctx, s.redis, key)
	if err != nil {
		logger.Error("ProfileService: Search cache error: %v", err)
	}
	if cached != nil {
		return *cached, nil
	}

	users, err := s.provider.SearchUsers(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	if err := setInCache(ctx, s.redis, key, users, SearchCacheTTL); err != nil {
		logger.Error("ProfileService: Failed to cache search: %v", err)
	}
	return users, nil
}

// LocalUserForAddress follows address -> fid -> local user.
// Returns ErrUserNotFound when any hop is missing.
func (s *ProfileService) LocalUserForAddress(ctx context.Context, address string) (*models.User, error) {
	profile, err := s.ResolveAddress(ctx, address)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, ErrUserNotFound
	}
	return s.users.FindByFid(ctx, profile.Fid)
}

// LookupAddress returns both views of the address owner.
// Provider failures are logged and leave NeynarUser empty.
func (s *ProfileService) LookupAddress(ctx context.Context, address string) (*AddressProfile, error) {
	if models.NormalizeAddress(address) == "" {
		return nil, ErrInvalidAddress
	}

	result := &AddressProfile{}

	profile, err := s.ResolveAddress(ctx, address)
	if err != nil {
		logger.Warn("ProfileService: Address lookup failed for %s: %v", address, err)
	}
	if profile == nil {
		return result, nil
	}
	result.NeynarUser = profile

	user, err := s.users.FindByFid(ctx, profile.Fid)
	switch {
	case errors.Is(err, ErrUserNotFound):
	case err != nil:
		return nil, err
	default:
		result.DBUser = user
	}
	return result, nil
}
