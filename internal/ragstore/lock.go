package ragstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"ragcore/internal/ragconfig"
)

// DistributedLock is a Redis SET-NX-EX mutual-exclusion lock, used by the
// periodic scheduler (§4.7) so only one worker runs the dedup job at a
// time. Grounded on workspaces.RedisGenerationCache.AcquireCommitLock.
type DistributedLock struct {
	client redis.UniversalClient
}

// NewDistributedLock builds a DistributedLock over client.
func NewDistributedLock(client redis.UniversalClient) *DistributedLock {
	return &DistributedLock{client: client}
}

// NewRedisClient builds the shared redis.UniversalClient used by the lock
// and embedding cache.
func NewRedisClient(cfg ragconfig.RedisConfig) redis.UniversalClient {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// Acquire attempts to claim key for ttl, returning true on success. A
// second caller racing for the same key within ttl gets false.
func (l *DistributedLock) Acquire(ctx context.Context, key, holder string, ttl time.Duration) (bool, error) {
	return l.client.SetNX(ctx, key, holder, ttl).Result()
}

// Release drops the lock early, e.g. once a scheduled job finishes well
// before its TTL would otherwise expire.
func (l *DistributedLock) Release(ctx context.Context, key string) error {
	return l.client.Del(ctx, key).Err()
}

// Refresh extends a held lock's TTL, used by long-running jobs so the
// lock doesn't expire out from under them mid-run.
func (l *DistributedLock) Refresh(ctx context.Context, key string, ttl time.Duration) error {
	return l.client.Expire(ctx, key, ttl).Err()
}
