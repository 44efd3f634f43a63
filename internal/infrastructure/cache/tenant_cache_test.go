package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tillpoint/internal/core/tenant"
)

func TestLocalTenantCache_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
	c := NewLocalTenantCache(time.Minute)
	c.now = func() time.Time { return now }

	c.Set(ctx, &tenant.Tenant{ID: "t1", Slug: "corner", Status: tenant.StatusActive})

	got, ok := c.Get(ctx, "t1")
	require.True(t, ok)
	assert.Equal(t, "corner", got.Slug)

	now = now.Add(time.Minute)
	_, ok = c.Get(ctx, "t1")
	assert.False(t, ok)
}

func TestLocalTenantCache_Invalidate(t *testing.T) {
	ctx := context.Background()
	c := NewLocalTenantCache(time.Minute)

	c.Set(ctx, &tenant.Tenant{ID: "t1"})
	c.Invalidate(ctx, "t1")

	_, ok := c.Get(ctx, "t1")
	assert.False(t, ok)
}

func TestLocalTenantCache_ReturnsCopy(t *testing.T) {
	ctx := context.Background()
	c := NewLocalTenantCache(time.Minute)
	c.Set(ctx, &tenant.Tenant{ID: "t1", Slug: "corner"})

	got, _ := c.Get(ctx, "t1")
	got.Slug = "changed"

	again, _ := c.Get(ctx, "t1")
	assert.Equal(t, "corner", again.Slug)
}

func TestRedisTenantCache_UnreachableIsMiss(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()
	c := NewRedisTenantCache(client, "", 0)

	assert.Equal(t, "tillpoint:tenant:t1", c.key("t1"))
	assert.Equal(t, time.Minute, c.ttl)

	_, ok := c.Get(context.Background(), "t1")
	assert.False(t, ok)
	c.Set(context.Background(), &tenant.Tenant{ID: "t1"})
	c.Invalidate(context.Background(), "t1")
}
