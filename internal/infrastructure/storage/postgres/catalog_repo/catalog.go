package catalog_repo

import (
	"context"

	"tillpoint/internal/core/id"
	"tillpoint/internal/domain/catalog"
	"tillpoint/internal/infrastructure/storage/postgres"
)

const (
	productsTable  = "products"
	locationsTable = "locations"
)

// CatalogRepo implements catalog.Repository.
type CatalogRepo struct {
	products  *BaseCatalogRepo[catalog.Product]
	locations *BaseCatalogRepo[catalog.Location]
}

var _ catalog.Repository = (*CatalogRepo)(nil)

func NewCatalogRepo(txManager *postgres.TxManager) *CatalogRepo {
	return &CatalogRepo{
		products:  NewBaseCatalogRepo[catalog.Product](txManager, productsTable, "product", "sku"),
		locations: NewBaseCatalogRepo[catalog.Location](txManager, locationsTable, "location", "name"),
	}
}

func (r *CatalogRepo) CreateProduct(ctx context.Context, p *catalog.Product) error {
	return r.products.Create(ctx, p, "sku", p.SKU)
}

func (r *CatalogRepo) GetProduct(ctx context.Context, tenantID string, productID id.ID) (*catalog.Product, error) {
	return r.products.GetByID(ctx, tenantID, productID)
}

func (r *CatalogRepo) ListProducts(ctx context.Context, tenantID string) ([]catalog.Product, error) {
	return r.products.List(ctx, tenantID)
}

func (r *CatalogRepo) CreateLocation(ctx context.Context, l *catalog.Location) error {
	return r.locations.Create(ctx, l, "id", l.ID.String())
}

func (r *CatalogRepo) ListLocations(ctx context.Context, tenantID string) ([]catalog.Location, error) {
	return r.locations.List(ctx, tenantID)
}
