package catalog

import (
	"context"

	"tillpoint/internal/core/id"
)

// Repository stores products and locations.
type Repository interface {
	// CreateProduct returns a DUPLICATE error when the SKU is taken.
	CreateProduct(ctx context.Context, p *Product) error
	GetProduct(ctx context.Context, tenantID string, productID id.ID) (*Product, error)
	ListProducts(ctx context.Context, tenantID string) ([]Product, error)

	CreateLocation(ctx context.Context, l *Location) error
	ListLocations(ctx context.Context, tenantID string) ([]Location, error)
}
