// Package sale provides sale ingestion: exactly-once recording of completed
// sales and their FIFO cost attribution.
package sale

import (
	"fmt"
	"time"

	"tillpoint/internal/core/apperror"
	"tillpoint/internal/core/id"
	"tillpoint/internal/core/types"
	"tillpoint/internal/domain/costing"
)

// Source tells where a sale was recorded.
type Source string

const (
	SourceOffline Source = "offline"
	SourceOnline  Source = "online"
)

func (s Source) Valid() bool {
	return s == SourceOffline || s == SourceOnline
}

// Status of an invoice header. Headers are inserted pending and finalized
// once every line is costed, in the same transaction.
type Status string

const (
	StatusPending   Status = "pending"
	StatusFinalized Status = "finalized"
)

// DefaultPaymentMethod is applied when the request omits one.
const DefaultPaymentMethod = "cash"

// MaxInvoiceNoLength bounds client-supplied invoice numbers.
const MaxInvoiceNoLength = 64

// Invoice is a sale header.
type Invoice struct {
	ID             id.ID       `db:"id" json:"id"`
	TenantID       string      `db:"tenant_id" json:"tenant_id"`
	LocationID     *id.ID      `db:"location_id" json:"location_id,omitempty"`
	InvoiceNo      string      `db:"invoice_no" json:"invoice_no"`
	Source         Source      `db:"source" json:"source"`
	PaymentMethod  string      `db:"payment_method" json:"payment_method"`
	CustomerID     *id.ID      `db:"customer_id" json:"customer_id,omitempty"`
	TerminalID     string      `db:"terminal_id" json:"terminal_id,omitempty"`
	Subtotal       types.Money `db:"subtotal" json:"subtotal"`
	DiscountAmount types.Money `db:"discount_amount" json:"discount_amount"`
	Total          types.Money `db:"total" json:"total"`
	TotalCost      types.Money `db:"total_cost" json:"total_cost"`
	TotalProfit    types.Money `db:"total_profit" json:"total_profit"`
	Status         Status      `db:"status" json:"status"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
	FinalizedAt    *time.Time  `db:"finalized_at" json:"finalized_at,omitempty"`

	Lines []LineItem `db:"-" json:"lines,omitempty"`
}

// Finalize sets the cost totals. Profit is always derived from Total and TotalCost.
func (inv *Invoice) Finalize(totalCost types.Money, at time.Time) error {
	if inv.Status == StatusFinalized {
		return apperror.NewBusinessRule("INVOICE_FINALIZED", "invoice totals are already finalized").
			WithDetail("invoice_id", inv.ID.String())
	}
	inv.TotalCost = totalCost
	inv.TotalProfit = inv.Total.Sub(totalCost)
	inv.Status = StatusFinalized
	at = at.UTC()
	inv.FinalizedAt = &at
	return nil
}

// LineItem is one costed sale line.
type LineItem struct {
	ID        id.ID          `db:"id" json:"id"`
	InvoiceID id.ID          `db:"invoice_id" json:"invoice_id"`
	TenantID  string         `db:"tenant_id" json:"-"`
	LineNo    int            `db:"line_no" json:"line_no"`
	ProductID id.ID          `db:"product_id" json:"product_id"`
	Quantity  types.Quantity `db:"quantity" json:"quantity"`
	SalePrice types.Money    `db:"sale_price" json:"sale_price"`
	// FIFOCost is the per-unit cost, TotalCost / Quantity.
	FIFOCost     types.Money    `db:"fifo_cost" json:"fifo_cost"`
	TotalCost    types.Money    `db:"total_cost" json:"total_cost"`
	Profit       types.Money    `db:"profit" json:"profit"`
	ShortfallQty types.Quantity `db:"shortfall_qty" json:"shortfall_qty"`

	Consumptions []costing.Consumption `db:"-" json:"consumptions"`
}

// Revenue returns SalePrice × Quantity.
func (l *LineItem) Revenue() types.Money {
	return l.SalePrice.Mul(l.Quantity)
}

// newLineItem builds a line from its costing result.
func newLineItem(inv *Invoice, lineNo int, req LineRequest, res costing.Result) LineItem {
	line := LineItem{
		ID:           id.New(),
		InvoiceID:    inv.ID,
		TenantID:     inv.TenantID,
		LineNo:       lineNo,
		ProductID:    req.ProductID,
		Quantity:     req.Quantity,
		SalePrice:    req.SalePrice,
		FIFOCost:     res.UnitCost,
		TotalCost:    res.TotalCost,
		ShortfallQty: res.Shortfall,
		Consumptions: res.Consumed,
	}
	line.Profit = line.Revenue().Sub(line.TotalCost)
	return line
}

// Request is a completed sale submitted by a terminal.
type Request struct {
	Source         Source
	LocationID     *id.ID
	TempInvoiceNo  string
	PaymentMethod  string
	CustomerID     *id.ID
	DiscountAmount types.Money
	Items          []LineRequest
}

// LineRequest is one cart line as the client recorded it.
type LineRequest struct {
	ProductID id.ID
	Quantity  types.Quantity
	SalePrice types.Money
}

// Subtotal returns Σ quantity × sale price.
func (r *Request) Subtotal() types.Money {
	total := types.Zero()
	for _, item := range r.Items {
		total = total.Add(item.Quantity.Mul(item.SalePrice))
	}
	return total
}

// Validate checks the request shape. Stock availability is not checked here.
func (r *Request) Validate() error {
	if !r.Source.Valid() {
		return apperror.NewValidation(fmt.Sprintf("source must be %q or %q", SourceOffline, SourceOnline)).
			WithDetail("field", "source")
	}
	if len(r.TempInvoiceNo) > MaxInvoiceNoLength {
		return apperror.NewValidation(fmt.Sprintf("temp_invoice_no exceeds %d characters", MaxInvoiceNoLength)).
			WithDetail("field", "temp_invoice_no")
	}
	if len(r.Items) == 0 {
		return apperror.NewValidation("at least one item is required").
			WithDetail("field", "items")
	}

	for i, item := range r.Items {
		field := fmt.Sprintf("items[%d]", i)
		if id.IsNil(item.ProductID) {
			return apperror.NewValidation("product_id is required").
				WithDetail("field", field+".product_id")
		}
		if err := types.ValidateQuantity(item.Quantity); err != nil {
			return apperror.NewValidation(err.Error()).
				WithDetail("field", field+".quantity")
		}
		if err := types.ValidatePrice(item.SalePrice); err != nil {
			return apperror.NewValidation(err.Error()).
				WithDetail("field", field+".sale_price")
		}
		if !types.FitsStorage(item.Quantity.Mul(item.SalePrice)) {
			return apperror.NewValidation("line total is out of range").
				WithDetail("field", field)
		}
	}
	if !types.FitsStorage(r.Subtotal()) {
		return apperror.NewValidation("subtotal is out of range").
			WithDetail("field", "items")
	}

	if err := types.ValidatePrice(r.DiscountAmount); err != nil {
		return apperror.NewValidation(err.Error()).
			WithDetail("field", "discount_amount")
	}
	if r.DiscountAmount.GreaterThan(r.Subtotal()) {
		return apperror.NewValidation("discount_amount exceeds subtotal").
			WithDetail("field", "discount_amount")
	}
	return nil
}

// normalize fills defaults.
func (r *Request) normalize() {
	if r.PaymentMethod == "" {
		r.PaymentMethod = DefaultPaymentMethod
	}
}

// Result is the outcome of an ingestion.
type Result struct {
	InvoiceID id.ID
	InvoiceNo string
	Duplicate bool
}
