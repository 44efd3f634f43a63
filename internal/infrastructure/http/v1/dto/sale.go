package dto

import (
	"github.com/shopspring/decimal"

	"tillpoint/internal/core/id"
	"tillpoint/internal/domain/sale"
)

// Decimal fields accept both JSON strings and numbers.

// SaleItemRequest is one cart line.
type SaleItemRequest struct {
	ProductID id.ID           `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	SalePrice decimal.Decimal `json:"sale_price"`
}

// CreateSaleRequest is the body of POST /sales.
type CreateSaleRequest struct {
	Source         string            `json:"source"`
	LocationID     *id.ID            `json:"location_id,omitempty"`
	TempInvoiceNo  string            `json:"temp_invoice_no,omitempty"`
	PaymentMethod  string            `json:"payment_method,omitempty"`
	CustomerID     *id.ID            `json:"customer_id,omitempty"`
	DiscountAmount decimal.Decimal   `json:"discount_amount"`
	Items          []SaleItemRequest `json:"items"`
}

func (r CreateSaleRequest) ToDomain() sale.Request {
	out := sale.Request{
		Source:         sale.Source(r.Source),
		LocationID:     r.LocationID,
		TempInvoiceNo:  r.TempInvoiceNo,
		PaymentMethod:  r.PaymentMethod,
		CustomerID:     r.CustomerID,
		DiscountAmount: r.DiscountAmount,
		Items:          make([]sale.LineRequest, 0, len(r.Items)),
	}
	for _, item := range r.Items {
		out.Items = append(out.Items, sale.LineRequest{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			SalePrice: item.SalePrice,
		})
	}
	return out
}

// SaleResponse acknowledges an ingested sale.
type SaleResponse struct {
	OK        bool   `json:"ok"`
	InvoiceID id.ID  `json:"invoice_id"`
	InvoiceNo string `json:"invoice_no"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

func FromSaleResult(r sale.Result) SaleResponse {
	return SaleResponse{OK: true, InvoiceID: r.InvoiceID, InvoiceNo: r.InvoiceNo, Duplicate: r.Duplicate}
}

// OfflineSaleRequest is one queued sale inside a sync envelope.
type OfflineSaleRequest struct {
	ClientRef string            `json:"client_ref" binding:"required"`
	Sale      CreateSaleRequest `json:"sale"`
}

// SyncRequest is the body of POST /sales/sync.
type SyncRequest struct {
	EnvelopeID string               `json:"envelope_id" binding:"required"`
	TerminalID string               `json:"terminal_id"`
	Sales      []OfflineSaleRequest `json:"sales" binding:"required,dive"`
}

// ToDomain converts the envelope. Every queued sale is recorded as offline.
func (r SyncRequest) ToDomain() sale.SyncRequest {
	out := sale.SyncRequest{
		EnvelopeID: r.EnvelopeID,
		TerminalID: r.TerminalID,
		Sales:      make([]sale.OfflineSale, 0, len(r.Sales)),
	}
	for _, s := range r.Sales {
		req := s.Sale
		if req.Source == "" {
			req.Source = string(sale.SourceOffline)
		}
		out.Sales = append(out.Sales, sale.OfflineSale{ClientRef: s.ClientRef, Request: req.ToDomain()})
	}
	return out
}
