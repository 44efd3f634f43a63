// Package lot implements the lot ledger: received stock with its cost basis,
// consumed oldest-first by the costing engine.
package lot

import (
	"bytes"
	"sort"
	"time"

	"tillpoint/internal/core/apperror"
	"tillpoint/internal/core/id"
	"tillpoint/internal/core/types"
)

// Lot is one batch of inventory for a product at a location.
// A nil LocationID is the unscoped pool: lots not tied to any location.
type Lot struct {
	ID           id.ID          `db:"id" json:"id"`
	TenantID     string         `db:"tenant_id" json:"tenant_id"`
	ProductID    id.ID          `db:"product_id" json:"product_id"`
	LocationID   *id.ID         `db:"location_id" json:"location_id,omitempty"`
	QtyReceived  types.Quantity `db:"qty_received" json:"qty_received"`
	QtyRemaining types.Quantity `db:"qty_remaining" json:"qty_remaining"`
	UnitCost     types.Money    `db:"unit_cost" json:"unit_cost"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
}

// Available reports whether the lot still holds stock.
func (l *Lot) Available() bool {
	return l.QtyRemaining.IsPositive()
}

// Take removes amount from the lot. The lot never goes negative.
func (l *Lot) Take(amount types.Quantity) error {
	if !amount.IsPositive() || amount.GreaterThan(l.QtyRemaining) {
		return apperror.NewInvalidQuantity(l.ID.String(), amount.String()).
			WithDetail("remaining", l.QtyRemaining.String())
	}
	l.QtyRemaining = l.QtyRemaining.Sub(amount)
	return nil
}

// Before reports whether l is consumed before other: older first, id breaks ties.
func (l *Lot) Before(other *Lot) bool {
	if !l.CreatedAt.Equal(other.CreatedAt) {
		return l.CreatedAt.Before(other.CreatedAt)
	}
	return bytes.Compare(l.ID[:], other.ID[:]) < 0
}

// SortOldestFirst orders lots in consumption order.
func SortOldestFirst(lots []Lot) {
	sort.SliceStable(lots, func(i, j int) bool {
		return lots[i].Before(&lots[j])
	})
}

// TotalAvailable sums remaining quantity over lots.
func TotalAvailable(lots []Lot) types.Quantity {
	total := types.Zero()
	for i := range lots {
		if lots[i].Available() {
			total = total.Add(lots[i].QtyRemaining)
		}
	}
	return total
}
