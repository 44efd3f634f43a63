package tenant

import (
	"context"
)

// Cache keeps recently resolved tenants close to the request path.
type Cache interface {
	Get(ctx context.Context, tenantID string) (*Tenant, bool)
	Set(ctx context.Context, t *Tenant)
	Invalidate(ctx context.Context, tenantID string)
}

// NoopCache never stores anything.
type NoopCache struct{}

func (NoopCache) Get(context.Context, string) (*Tenant, bool) { return nil, false }
func (NoopCache) Set(context.Context, *Tenant)                {}
func (NoopCache) Invalidate(context.Context, string)          {}

// Resolver turns a tenant id from a request into an active Tenant.
type Resolver struct {
	registry Registry
	cache    Cache
}

// NewResolver creates a resolver; a nil cache disables caching.
func NewResolver(registry Registry, cache Cache) *Resolver {
	if cache == nil {
		cache = NoopCache{}
	}
	return &Resolver{registry: registry, cache: cache}
}

// Resolve returns the tenant if it exists and is active.
// Only active tenants are cached, so suspensions take effect on the next miss.
func (r *Resolver) Resolve(ctx context.Context, tenantID string) (*Tenant, error) {
	if t, ok := r.cache.Get(ctx, tenantID); ok {
		return t, nil
	}

	t, err := r.registry.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if !t.IsActive() {
		return nil, ErrTenantNotActive
	}

	r.cache.Set(ctx, t)
	return t, nil
}

// SetStatus updates the registry and drops the cached entry.
func (r *Resolver) SetStatus(ctx context.Context, tenantID string, status Status) error {
	if err := r.registry.UpdateStatusByID(ctx, tenantID, status); err != nil {
		return err
	}
	r.cache.Invalidate(ctx, tenantID)
	return nil
}
