package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// RevocationList remembers signed-out token ids until they expire
type RevocationList interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// RedisRevocations shares revocations across instances
type RedisRevocations struct {
	client *redis.Client
	prefix string
}

// NewRedisRevocations creates a Redis-backed revocation list
func NewRedisRevocations(client *redis.Client) *RedisRevocations {
	return &RedisRevocations{client: client, prefix: "revoked"}
}

func (r *RedisRevocations) key(tokenID string) string {
	return fmt.Sprintf("%s:%s", r.prefix, tokenID)
}

// Revoke marks tokenID revoked until the given time
func (r *RedisRevocations) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, r.key(tokenID), 1, ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// IsRevoked reports whether tokenID was revoked
func (r *RedisRevocations) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check revocation: %w", err)
	}
	return n > 0, nil
}

// LocalRevocations keeps revocations in a bounded in-process LRU.
// Once full, the oldest revocations are evicted and those tokens are
// accepted again until they expire.
type LocalRevocations struct {
	cache *expirable.LRU[string, time.Time]
}

// NewLocalRevocations creates an in-process revocation list holding at most size entries
func NewLocalRevocations(size int, maxTTL time.Duration) *LocalRevocations {
	if size <= 0 {
		size = 10000
	}
	return &LocalRevocations{cache: expirable.NewLRU[string, time.Time](size, nil, maxTTL)}
}

// Revoke marks tokenID revoked until the given time
func (l *LocalRevocations) Revoke(_ context.Context, tokenID string, until time.Time) error {
	if time.Now().Before(until) {
		l.cache.Add(tokenID, until)
	}
	return nil
}

// IsRevoked reports whether tokenID was revoked
func (l *LocalRevocations) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	until, ok := l.cache.Get(tokenID)
	if !ok {
		return false, nil
	}
	return time.Now().Before(until), nil
}
