package memory

import (
	"context"
	"sort"

	"tillpoint/internal/core/apperror"
	"tillpoint/internal/core/id"
	"tillpoint/internal/domain/catalog"
)

// Catalog returns the store as a catalog.Repository.
func (s *Store) Catalog() catalog.Repository {
	return catalogRepo{s}
}

type catalogRepo struct{ s *Store }

func (r catalogRepo) CreateProduct(ctx context.Context, p *catalog.Product) error {
	return r.s.view(ctx, func(d *state) error {
		for _, existing := range d.products {
			if existing.TenantID == p.TenantID && existing.SKU == p.SKU {
				return apperror.NewDuplicate("product", "sku", p.SKU)
			}
		}
		d.products[p.ID] = *p
		return nil
	})
}

func (r catalogRepo) GetProduct(ctx context.Context, tenantID string, productID id.ID) (*catalog.Product, error) {
	var out *catalog.Product
	err := r.s.view(ctx, func(d *state) error {
		p, ok := d.products[productID]
		if !ok || p.TenantID != tenantID {
			return apperror.NewNotFound("product", productID.String())
		}
		out = &p
		return nil
	})
	return out, err
}

func (r catalogRepo) ListProducts(ctx context.Context, tenantID string) ([]catalog.Product, error) {
	out := []catalog.Product{}
	err := r.s.view(ctx, func(d *state) error {
		for _, p := range d.products {
			if p.TenantID == tenantID {
				out = append(out, p)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out, err
}

func (r catalogRepo) CreateLocation(ctx context.Context, l *catalog.Location) error {
	return r.s.view(ctx, func(d *state) error {
		d.locations[l.ID] = *l
		return nil
	})
}

func (r catalogRepo) ListLocations(ctx context.Context, tenantID string) ([]catalog.Location, error) {
	out := []catalog.Location{}
	err := r.s.view(ctx, func(d *state) error {
		for _, l := range d.locations {
			if l.TenantID == tenantID {
				out = append(out, l)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, err
}
