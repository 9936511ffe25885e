package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheService wraps Redis with JSON encoding for listing caches. A nil
// client disables every operation, so callers can pass the service through
// unconditionally.
type CacheService struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCacheService constructs the cache wrapper.
func NewCacheService(client *redis.Client, ttl time.Duration) *CacheService {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CacheService{client: client, ttl: ttl}
}

// GetJSON loads a cached value into dest, reporting whether the key was hit.
func (s *CacheService) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	if s == nil || s.client == nil {
		return false, nil
	}
	raw, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON stores a value under the configured TTL.
func (s *CacheService) SetJSON(ctx context.Context, key string, value interface{}) error {
	if s == nil || s.client == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, raw, s.ttl).Err()
}

// Delete drops the given keys.
func (s *CacheService) Delete(ctx context.Context, keys ...string) error {
	if s == nil || s.client == nil || len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}
