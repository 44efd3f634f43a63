package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"tillpoint/internal/core/id"
	"tillpoint/internal/domain/lot"
)

// ReceiveLotRequest is the body of POST /lots.
type ReceiveLotRequest struct {
	ProductID  id.ID           `json:"product_id" binding:"required"`
	LocationID *id.ID          `json:"location_id,omitempty"`
	Quantity   decimal.Decimal `json:"quantity"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
	ReceivedAt *time.Time      `json:"received_at,omitempty"`
}

func (r ReceiveLotRequest) ToDomain() lot.ReceiveInput {
	in := lot.ReceiveInput{
		ProductID:  r.ProductID,
		LocationID: r.LocationID,
		Quantity:   r.Quantity,
		UnitCost:   r.UnitCost,
	}
	if r.ReceivedAt != nil {
		in.ReceivedAt = *r.ReceivedAt
	}
	return in
}

// ListLotsQuery filters GET /lots.
type ListLotsQuery struct {
	ProductID  string `form:"product_id" binding:"required,uuid"`
	LocationID string `form:"location_id" binding:"omitempty,uuid"`
}
