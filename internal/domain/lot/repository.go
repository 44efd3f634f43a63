package lot

import (
	"context"

	"tillpoint/internal/core/id"
	"tillpoint/internal/core/types"
)

// Repository is the durable lot ledger.
type Repository interface {
	// ListOldestFirst returns every lot of the (product, location) pair, exhausted
	// lots included, ordered by created_at then id. Inside a transaction the rows
	// stay locked until commit.
	ListOldestFirst(ctx context.Context, tenantID string, productID id.ID, locationID *id.ID) ([]Lot, error)

	// Decrement atomically removes amount from a lot. It fails with
	// INVALID_QUANTITY when the lot holds less than amount.
	Decrement(ctx context.Context, tenantID string, lotID id.ID, amount types.Quantity) error

	// Create stores a newly received lot.
	Create(ctx context.Context, l *Lot) error

	// Get returns a single lot.
	Get(ctx context.Context, tenantID string, lotID id.ID) (*Lot, error)
}
