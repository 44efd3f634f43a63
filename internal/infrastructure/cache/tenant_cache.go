// Package cache provides tenant caches for the request path: an in-process
// map and a Redis-backed cache shared across instances.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"tillpoint/internal/core/tenant"
	"tillpoint/pkg/logger"
)

const defaultKeyPrefix = "tillpoint:tenant:"

// RedisTenantCache implements tenant.Cache on Redis. Redis failures are
// logged and treated as misses; the registry stays the source of truth.
type RedisTenantCache struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
}

var _ tenant.Cache = (*RedisTenantCache)(nil)

func NewRedisTenantCache(client redis.UniversalClient, keyPrefix string, ttl time.Duration) *RedisTenantCache {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisTenantCache{client: client, keyPrefix: keyPrefix, ttl: ttl}
}

func (c *RedisTenantCache) key(tenantID string) string {
	return c.keyPrefix + tenantID
}

func (c *RedisTenantCache) Get(ctx context.Context, tenantID string) (*tenant.Tenant, bool) {
	raw, err := c.client.Get(ctx, c.key(tenantID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warn(ctx, "tenant cache read failed", "tenant_id", tenantID, "error", err)
		}
		return nil, false
	}

	var t tenant.Tenant
	if err := json.Unmarshal(raw, &t); err != nil {
		logger.Warn(ctx, "tenant cache entry corrupt", "tenant_id", tenantID, "error", err)
		return nil, false
	}
	return &t, true
}

func (c *RedisTenantCache) Set(ctx context.Context, t *tenant.Tenant) {
	raw, err := json.Marshal(t)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.key(t.ID), raw, c.ttl).Err(); err != nil {
		logger.Warn(ctx, "tenant cache write failed", "tenant_id", t.ID, "error", err)
	}
}

func (c *RedisTenantCache) Invalidate(ctx context.Context, tenantID string) {
	if err := c.client.Del(ctx, c.key(tenantID)).Err(); err != nil {
		logger.Warn(ctx, "tenant cache invalidate failed", "tenant_id", tenantID, "error", err)
	}
}

type localEntry struct {
	tenant    tenant.Tenant
	expiresAt time.Time
}

// LocalTenantCache is an in-process tenant.Cache with a fixed TTL.
type LocalTenantCache struct {
	mu      sync.RWMutex
	entries map[string]localEntry
	ttl     time.Duration
	now     func() time.Time
}

var _ tenant.Cache = (*LocalTenantCache)(nil)

func NewLocalTenantCache(ttl time.Duration) *LocalTenantCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &LocalTenantCache{entries: make(map[string]localEntry), ttl: ttl, now: time.Now}
}

func (c *LocalTenantCache) Get(_ context.Context, tenantID string) (*tenant.Tenant, bool) {
	c.mu.RLock()
	e, ok := c.entries[tenantID]
	c.mu.RUnlock()
	if !ok || !c.now().Before(e.expiresAt) {
		return nil, false
	}
	t := e.tenant
	return &t, true
}

func (c *LocalTenantCache) Set(_ context.Context, t *tenant.Tenant) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[t.ID] = localEntry{tenant: *t, expiresAt: c.now().Add(c.ttl)}
}

func (c *LocalTenantCache) Invalidate(_ context.Context, tenantID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, tenantID)
}
