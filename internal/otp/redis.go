package otp

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store backed by Redis per-key TTLs.
type RedisStore struct {
	client redis.UniversalClient
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore constructs a Redis-backed ephemeral code store.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// Issue upserts the value under key with the given TTL.
func (s *RedisStore) Issue(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("persist code: %w", err)
	}
	return nil
}

// Verify compares the candidate against the stored value in constant time.
func (s *RedisStore) Verify(ctx context.Context, key, candidate string) (bool, error) {
	stored, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, ErrExpired
		}
		return false, fmt.Errorf("load code: %w", err)
	}
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(stored)) == 1, nil
}

// Lookup returns the stored value for key.
func (s *RedisStore) Lookup(ctx context.Context, key string) (string, error) {
	stored, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrExpired
		}
		return "", fmt.Errorf("load entry: %w", err)
	}
	return stored, nil
}

// Consume deletes the entry. Deleting an already-gone key is not an error.
func (s *RedisStore) Consume(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("delete code: %w", err)
	}
	return nil
}
