package lot

import (
	"context"
	"time"

	"tillpoint/internal/core/apperror"
	"tillpoint/internal/core/id"
	"tillpoint/internal/core/types"
	"tillpoint/pkg/logger"
)

// ReceiveInput describes stock arriving at a location.
type ReceiveInput struct {
	ProductID  id.ID
	LocationID *id.ID
	Quantity   types.Quantity
	UnitCost   types.Money
	// ReceivedAt defaults to now. It defines the lot's FIFO position.
	ReceivedAt time.Time
}

// Service is the write path used by stock receiving and the read path for lot listings.
type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Receive records a new lot.
func (s *Service) Receive(ctx context.Context, tenantID string, in ReceiveInput) (*Lot, error) {
	if id.IsNil(in.ProductID) {
		return nil, apperror.NewValidation("product_id is required")
	}
	if err := types.ValidateQuantity(in.Quantity); err != nil {
		return nil, apperror.NewValidation(err.Error()).WithDetail("field", "quantity")
	}
	if err := types.ValidatePrice(in.UnitCost); err != nil {
		return nil, apperror.NewValidation(err.Error()).WithDetail("field", "unit_cost")
	}

	createdAt := in.ReceivedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	l := &Lot{
		ID:           id.New(),
		TenantID:     tenantID,
		ProductID:    in.ProductID,
		LocationID:   in.LocationID,
		QtyReceived:  in.Quantity,
		QtyRemaining: in.Quantity,
		UnitCost:     in.UnitCost,
		CreatedAt:    createdAt.UTC(),
	}
	if err := s.repo.Create(ctx, l); err != nil {
		return nil, apperror.Ensure(err)
	}

	logger.Info(ctx, "lot received",
		"lot_id", l.ID,
		"product_id", l.ProductID,
		"location_id", id.String(l.LocationID),
		"quantity", l.QtyReceived.String(),
		"unit_cost", l.UnitCost.String(),
	)
	return l, nil
}

// List returns the pair's lots in consumption order.
func (s *Service) List(ctx context.Context, tenantID string, productID id.ID, locationID *id.ID) ([]Lot, error) {
	lots, err := s.repo.ListOldestFirst(ctx, tenantID, productID, locationID)
	if err != nil {
		return nil, apperror.Ensure(err)
	}
	return lots, nil
}
