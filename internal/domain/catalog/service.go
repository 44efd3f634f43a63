package catalog

import (
	"context"
	"time"

	"tillpoint/internal/core/apperror"
	"tillpoint/internal/core/id"
	"tillpoint/pkg/logger"
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// CreateProduct validates and stores a product under a fresh id.
func (s *Service) CreateProduct(ctx context.Context, tenantID, sku, name string) (*Product, error) {
	p := &Product{ID: id.New(), TenantID: tenantID, SKU: sku, Name: name, CreatedAt: s.now().UTC()}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.CreateProduct(ctx, p); err != nil {
		return nil, apperror.Ensure(err)
	}
	logger.Info(ctx, "product created", "product_id", p.ID, "sku", p.SKU)
	return p, nil
}

func (s *Service) CreateLocation(ctx context.Context, tenantID, name string) (*Location, error) {
	l := &Location{ID: id.New(), TenantID: tenantID, Name: name, CreatedAt: s.now().UTC()}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.CreateLocation(ctx, l); err != nil {
		return nil, apperror.Ensure(err)
	}
	logger.Info(ctx, "location created", "location_id", l.ID, "name", l.Name)
	return l, nil
}

func (s *Service) GetProduct(ctx context.Context, tenantID string, productID id.ID) (*Product, error) {
	p, err := s.repo.GetProduct(ctx, tenantID, productID)
	if err != nil {
		return nil, apperror.Ensure(err)
	}
	return p, nil
}

func (s *Service) ListProducts(ctx context.Context, tenantID string) ([]Product, error) {
	products, err := s.repo.ListProducts(ctx, tenantID)
	if err != nil {
		return nil, apperror.Ensure(err)
	}
	return products, nil
}

func (s *Service) ListLocations(ctx context.Context, tenantID string) ([]Location, error) {
	locations, err := s.repo.ListLocations(ctx, tenantID)
	if err != nil {
		return nil, apperror.Ensure(err)
	}
	return locations, nil
}
