package revocation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "revoked:"

// Retention pad past the token's own expiry, covering clock skew between
// server instances.
const expirySkew = time.Minute

// RedisStore implements Store backed by Redis.
type RedisStore struct {
	client redis.UniversalClient
	now    func() time.Time
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore constructs a Redis-backed revocation index.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

// WithClock overrides the wall-clock source. Intended for tests.
func (s *RedisStore) WithClock(now func() time.Time) *RedisStore {
	s.now = now
	return s
}

// IsRevoked checks for an existing record.
func (s *RedisStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.client.Exists(ctx, keyPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("check revocation: %w", err)
	}
	return n > 0, nil
}

// Revoke inserts a record via SETNX so the insert-if-absent is atomic in
// Redis itself, not merely in process memory.
func (s *RedisStore) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	record := Record{ExpiresAt: expiresAt, RevokedAt: s.now().UTC()}
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal revocation record: %w", err)
	}

	ttl := time.Until(expiresAt) + expirySkew
	if ttl < expirySkew {
		ttl = expirySkew
	}

	created, err := s.client.SetNX(ctx, keyPrefix+jti, payload, ttl).Result()
	if err != nil {
		return fmt.Errorf("persist revocation record: %w", err)
	}
	if !created {
		return ErrAlreadyRevoked
	}
	return nil
}
