package memory

import (
	"context"
	"sort"

	"tillpoint/internal/core/id"
	"tillpoint/internal/core/tenant"
)

// Tenants returns the store as a tenant.Registry.
func (s *Store) Tenants() tenant.Registry {
	return tenantRegistry{s}
}

type tenantRegistry struct{ s *Store }

func (r tenantRegistry) GetByID(ctx context.Context, tenantID string) (*tenant.Tenant, error) {
	var out *tenant.Tenant
	err := r.s.view(ctx, func(d *state) error {
		t, ok := d.tenants[tenantID]
		if !ok {
			return tenant.ErrTenantNotFound
		}
		out = &t
		return nil
	})
	return out, err
}

func (r tenantRegistry) ListActive(ctx context.Context) ([]*tenant.Tenant, error) {
	all, err := r.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	active := make([]*tenant.Tenant, 0, len(all))
	for _, t := range all {
		if t.IsActive() {
			active = append(active, t)
		}
	}
	return active, nil
}

func (r tenantRegistry) ListAll(ctx context.Context) ([]*tenant.Tenant, error) {
	var out []*tenant.Tenant
	err := r.s.view(ctx, func(d *state) error {
		for _, t := range d.tenants {
			t := t
			out = append(out, &t)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, err
}

func (r tenantRegistry) Create(ctx context.Context, t *tenant.Tenant) error {
	return r.s.view(ctx, func(d *state) error {
		for _, existing := range d.tenants {
			if existing.Slug == t.Slug {
				return tenant.ErrSlugTaken
			}
		}
		if t.ID == "" {
			t.ID = id.New().String()
		}
		now := r.s.now().UTC()
		t.CreatedAt, t.UpdatedAt = now, now
		if t.Status == "" {
			t.Status = tenant.StatusActive
		}
		d.tenants[t.ID] = *t
		return nil
	})
}

func (r tenantRegistry) UpdateStatusByID(ctx context.Context, tenantID string, status tenant.Status) error {
	return r.s.view(ctx, func(d *state) error {
		t, ok := d.tenants[tenantID]
		if !ok {
			return tenant.ErrTenantNotFound
		}
		t.Status = status
		t.UpdatedAt = r.s.now().UTC()
		d.tenants[tenantID] = t
		return nil
	})
}
