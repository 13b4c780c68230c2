package rbac

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/platinummonkey/sprintflow/pkg/observability"
)

// CacheConfig configures the role permission cache
type CacheConfig struct {
	LocalSize int
	LocalTTL  time.Duration
	RedisTTL  time.Duration
	KeyPrefix string
}

// DefaultCacheConfig returns the default cache settings
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		LocalSize: 256,
		LocalTTL:  30 * time.Second,
		RedisTTL:  10 * time.Minute,
		KeyPrefix: "sprintflow:rbac:role:",
	}
}

// CachedStore caches role to permission lookups in an in-process LRU backed
// by Redis. The wrapped store stays authoritative; a Redis failure falls
// through to it.
type CachedStore struct {
	store   PermissionStore
	local   *expirable.LRU[string, []Permission]
	redis   *redis.Client
	cfg     CacheConfig
	metrics *observability.Metrics
}

// NewCachedStore wraps store. redisClient may be nil to run with the local
// level only.
func NewCachedStore(store PermissionStore, redisClient *redis.Client, cfg CacheConfig, metrics *observability.Metrics) *CachedStore {
	defaults := DefaultCacheConfig()
	if cfg.LocalSize <= 0 {
		cfg.LocalSize = defaults.LocalSize
	}
	if cfg.LocalTTL <= 0 {
		cfg.LocalTTL = defaults.LocalTTL
	}
	if cfg.RedisTTL <= 0 {
		cfg.RedisTTL = defaults.RedisTTL
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = defaults.KeyPrefix
	}
	if metrics == nil {
		metrics = observability.NewNopMetrics()
	}

	return &CachedStore{
		store:   store,
		local:   expirable.NewLRU[string, []Permission](cfg.LocalSize, nil, cfg.LocalTTL),
		redis:   redisClient,
		cfg:     cfg,
		metrics: metrics,
	}
}

// GetPermissionsForRoles returns the union of each role's cached permissions
func (c *CachedStore) GetPermissionsForRoles(ctx context.Context, roles []string) ([]Permission, error) {
	set := NewPermissionSet()
	for _, role := range roles {
		perms, err := c.forRole(ctx, role)
		if err != nil {
			return nil, err
		}
		set.Add(perms...)
	}
	return set.List(), nil
}

func (c *CachedStore) forRole(ctx context.Context, role string) ([]Permission, error) {
	if perms, ok := c.local.Get(role); ok {
		c.metrics.PermissionCacheHits.WithLabelValues("local", "hit").Inc()
		return perms, nil
	}
	c.metrics.PermissionCacheHits.WithLabelValues("local", "miss").Inc()

	if perms, ok := c.fromRedis(ctx, role); ok {
		c.metrics.PermissionCacheHits.WithLabelValues("redis", "hit").Inc()
		c.local.Add(role, perms)
		return perms, nil
	}

	perms, err := c.store.GetPermissionsForRoles(ctx, []string{role})
	if err != nil {
		return nil, err
	}
	if perms == nil {
		perms = []Permission{}
	}

	c.local.Add(role, perms)
	c.toRedis(ctx, role, perms)
	return perms, nil
}

func (c *CachedStore) fromRedis(ctx context.Context, role string) ([]Permission, bool) {
	if c.redis == nil {
		return nil, false
	}

	cached, err := c.redis.Get(ctx, c.key(role)).Result()
	if err != nil {
		if err != redis.Nil {
			observability.FromContext(ctx).WithError(err).WithField("role", role).Warn("permission cache read failed")
		}
		c.metrics.PermissionCacheHits.WithLabelValues("redis", "miss").Inc()
		return nil, false
	}

	var perms []Permission
	if err := json.Unmarshal([]byte(cached), &perms); err != nil {
		c.metrics.PermissionCacheHits.WithLabelValues("redis", "miss").Inc()
		return nil, false
	}
	return perms, true
}

func (c *CachedStore) toRedis(ctx context.Context, role string, perms []Permission) {
	if c.redis == nil {
		return
	}
	data, err := json.Marshal(perms)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, c.key(role), data, c.cfg.RedisTTL).Err(); err != nil {
		observability.FromContext(ctx).WithError(err).WithField("role", role).Warn("permission cache write failed")
	}
}

// Invalidate drops role from both cache levels
func (c *CachedStore) Invalidate(ctx context.Context, roles ...string) error {
	keys := make([]string, 0, len(roles))
	for _, role := range roles {
		c.local.Remove(role)
		keys = append(keys, c.key(role))
	}
	if c.redis == nil || len(keys) == 0 {
		return nil
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate permission cache: %w", err)
	}
	return nil
}

func (c *CachedStore) key(role string) string {
	return c.cfg.KeyPrefix + role
}
