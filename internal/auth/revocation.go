package auth

import (
    "context"
    "errors"
    "sync"
    "time"

    "github.com/redis/go-redis/v9"
)

const revokedPrefix = "auth:revoked:"

// Revoker remembers credentials that were logged out before they expired.
type Revoker interface {
    Revoke(ctx context.Context, tokenID string, until time.Time) error
    IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// RedisRevoker keeps revoked token ids in Redis until the token would have expired.
type RedisRevoker struct {
    cache *redis.Client
}

// NewRedisRevoker builds a Redis-backed revoker.
func NewRedisRevoker(cache *redis.Client) *RedisRevoker {
    return &RedisRevoker{cache: cache}
}

// Revoke marks the token id as revoked.
func (r *RedisRevoker) Revoke(ctx context.Context, tokenID string, until time.Time) error {
    ttl := time.Until(until)
    if ttl <= 0 {
        return nil
    }
    return r.cache.Set(ctx, revokedPrefix+tokenID, "1", ttl).Err()
}

// IsRevoked reports whether the token id was revoked.
func (r *RedisRevoker) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
    err := r.cache.Get(ctx, revokedPrefix+tokenID).Err()
    if errors.Is(err, redis.Nil) {
        return false, nil
    }
    if err != nil {
        return false, err
    }
    return true, nil
}

type memoryRevoker struct {
    mu      sync.Mutex
    revoked map[string]time.Time
}

// NewMemoryRevoker builds an in-process revoker for development and tests.
func NewMemoryRevoker() Revoker {
    return &memoryRevoker{revoked: make(map[string]time.Time)}
}

func (r *memoryRevoker) Revoke(_ context.Context, tokenID string, until time.Time) error {
    r.mu.Lock()
    defer r.mu.Unlock()
    r.revoked[tokenID] = until
    return nil
}

func (r *memoryRevoker) IsRevoked(_ context.Context, tokenID string) (bool, error) {
    r.mu.Lock()
    defer r.mu.Unlock()
    until, ok := r.revoked[tokenID]
    if !ok {
        return false, nil
    }
    if time.Now().After(until) {
        delete(r.revoked, tokenID)
        return false, nil
    }
    return true, nil
}
