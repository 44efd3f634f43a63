package sale

import (
	"time"

	"tillpoint/internal/core/id"
	"tillpoint/internal/core/types"
)

// EventSaleIngested is the outbox event type written for every posted invoice.
const EventSaleIngested = "sale.ingested"

// Audit identifiers of posted invoices.
const (
	AuditEntityInvoice = "sale_invoice"
	AuditActionPost    = "post"
)

// IngestedEvent is the payload of EventSaleIngested.
type IngestedEvent struct {
	InvoiceID   id.ID          `json:"invoice_id"`
	TenantID    string         `json:"tenant_id"`
	InvoiceNo   string         `json:"invoice_no"`
	Source      Source         `json:"source"`
	LocationID  *id.ID         `json:"location_id,omitempty"`
	Total       types.Money    `json:"total"`
	TotalCost   types.Money    `json:"total_cost"`
	TotalProfit types.Money    `json:"total_profit"`
	Lines       []IngestedLine `json:"lines"`
	PostedAt    time.Time      `json:"posted_at"`
}

// IngestedLine summarizes one line of an IngestedEvent.
type IngestedLine struct {
	ProductID id.ID          `json:"product_id"`
	Quantity  types.Quantity `json:"quantity"`
	TotalCost types.Money    `json:"total_cost"`
	Profit    types.Money    `json:"profit"`
}

// NewIngestedEvent builds the event payload of a finalized invoice.
func NewIngestedEvent(inv *Invoice) IngestedEvent {
	ev := IngestedEvent{
		InvoiceID:   inv.ID,
		TenantID:    inv.TenantID,
		InvoiceNo:   inv.InvoiceNo,
		Source:      inv.Source,
		LocationID:  inv.LocationID,
		Total:       inv.Total,
		TotalCost:   inv.TotalCost,
		TotalProfit: inv.TotalProfit,
		Lines:       make([]IngestedLine, 0, len(inv.Lines)),
		PostedAt:    inv.CreatedAt,
	}
	if inv.FinalizedAt != nil {
		ev.PostedAt = *inv.FinalizedAt
	}
	for _, l := range inv.Lines {
		ev.Lines = append(ev.Lines, IngestedLine{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			TotalCost: l.TotalCost,
			Profit:    l.Profit,
		})
	}
	return ev
}
