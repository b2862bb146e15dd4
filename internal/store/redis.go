// redis.go -- go-redis client for integration config caching.
//
// Stores the raw integration document per customer with a TTL, so gate
// instances behind a load balancer serve the same rules.
// If Redis is unavailable, IntegrationSource falls back to the file.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// integrationKeyPrefix namespaces cached integration documents.
const integrationKeyPrefix = "styx:integration:"

// RedisStore wraps a Redis client for integration cache operations.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisClient parses redisURL, connects, and pings to verify connectivity.
// Call once at startup from main.go...returned client is safe for concurrent use.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	// Parse redisURL to get option values, if err return it
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	rdb := redis.NewClient(opt)

	// Try and test client to ensure it works correctly
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return rdb, nil
}

// NewRedisStore wraps an existing client. The caller owns the client and closes it.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func integrationKey(customerID string) string {
	return integrationKeyPrefix + customerID
}

// GetIntegration returns the cached raw document for customerID.
// Returns ErrCacheMiss if the key does not exist.
func (s *RedisStore) GetIntegration(ctx context.Context, customerID string) ([]byte, error) {
	raw, err := s.rdb.Get(ctx, integrationKey(customerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("fetching integration: %w", err)
	}
	return raw, nil
}

// SetIntegration caches raw under customerID. ttl <= 0 stores without expiry.
func (s *RedisStore) SetIntegration(ctx context.Context, customerID string, raw []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := s.rdb.Set(ctx, integrationKey(customerID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("caching integration: %w", err)
	}
	return nil
}

// DeleteIntegration drops the cached document so the next load re-reads the file.
func (s *RedisStore) DeleteIntegration(ctx context.Context, customerID string) error {
	if err := s.rdb.Del(ctx, integrationKey(customerID)).Err(); err != nil {
		return fmt.Errorf("deleting integration: %w", err)
	}
	return nil
}

// CheckHealth pings Redis. Used by the health endpoint.
func (s *RedisStore) CheckHealth(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
