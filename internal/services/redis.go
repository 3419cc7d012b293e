package services

import (
	"context"
	"fmt"
	"time"

	"assetflow/internal/utils/logger"

	"github.com/redis/go-redis/v9"
)

const (
	roleCacheTTL    = 5 * time.Minute
	entityLockTTL   = 10 * time.Second
	entityLockRetry = 50 * time.Millisecond
)

// RedisRoleCache caches resolved role ids per social id. Misses and redis
// errors both fall through to the database.
type RedisRoleCache struct {
	client *redis.Client
	log    *logger.Logger
}

func NewRedisRoleCache(client *redis.Client) *RedisRoleCache {
	return &RedisRoleCache{
		client: client,
		log:    logger.New("role_cache"),
	}
}

var _ RoleCache = (*RedisRoleCache)(nil)

func roleCacheKey(socialID string) string {
	return fmt.Sprintf("authz:role:%s", socialID)
}

func (c *RedisRoleCache) GetRoleID(ctx context.Context, socialID string) (string, bool) {
	roleID, err := c.client.Get(ctx, roleCacheKey(socialID)).Result()
	if err != nil {
		return "", false
	}
	return roleID, true
}

func (c *RedisRoleCache) SetRoleID(ctx context.Context, socialID, roleID string) {
	if err := c.client.Set(ctx, roleCacheKey(socialID), roleID, roleCacheTTL).Err(); err != nil {
		c.log.Warn("Failed to cache role for %s: %v", socialID, err)
	}
}

func (c *RedisRoleCache) Invalidate(ctx context.Context, socialID string) {
	if err := c.client.Del(ctx, roleCacheKey(socialID)).Err(); err != nil {
		c.log.Warn("Failed to invalidate cached role for %s: %v", socialID, err)
	}
}

// RedisEntityLocker serializes admin-mapping syncs per entity with a
// short-lived SETNX lock.
type RedisEntityLocker struct {
	client *redis.Client
	log    *logger.Logger
}

func NewRedisEntityLocker(client *redis.Client) *RedisEntityLocker {
	return &RedisEntityLocker{
		client: client,
		log:    logger.New("entity_lock"),
	}
}

var _ EntityLocker = (*RedisEntityLocker)(nil)

func (l *RedisEntityLocker) Lock(ctx context.Context, key string) (func(), error) {
	lockKey := fmt.Sprintf("lock:admin_sync:%s", key)

	for {
		ok, err := l.client.SetNX(ctx, lockKey, 1, entityLockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire entity lock: %w", err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(entityLockRetry):
		}
	}

	release := func() {
		if err := l.client.Del(context.Background(), lockKey).Err(); err != nil {
			l.log.Warn("Failed to release entity lock %s: %v", lockKey, err)
		}
	}
	return release, nil
}
