package sale

import (
	"context"
	"encoding/json"
	"time"

	"tillpoint/internal/core/id"
)

// Repository is the invoice store.
type Repository interface {
	// FindIDByInvoiceNo returns the invoice with that number, or a NOT_FOUND error.
	FindIDByInvoiceNo(ctx context.Context, tenantID, invoiceNo string) (id.ID, error)

	// CreateHeader inserts a pending header. created is false when another
	// invoice already holds (tenant, invoice_no); nothing is written then.
	CreateHeader(ctx context.Context, inv *Invoice) (created bool, err error)

	// InsertLine stores a line together with its lot consumptions.
	InsertLine(ctx context.Context, line *LineItem) error

	// FinalizeTotals persists the cost totals and status of a finalized header.
	FinalizeTotals(ctx context.Context, inv *Invoice) error

	// Get returns the header with lines and consumptions.
	Get(ctx context.Context, tenantID string, invoiceID id.ID) (*Invoice, error)
}

// EventPublisher records domain events in the sale transaction.
type EventPublisher interface {
	PublishSaleIngested(ctx context.Context, inv *Invoice) error
}

// HistoryEntry is one audit record of an invoice.
type HistoryEntry struct {
	ID         id.ID           `json:"id"`
	TenantID   string          `json:"-"`
	EntityType string          `json:"entity_type"`
	EntityID   id.ID           `json:"entity_id"`
	Action     string          `json:"action"`
	TerminalID string          `json:"terminal_id,omitempty"`
	Payload    json.RawMessage `json:"payload"`
	CreatedAt  time.Time       `json:"created_at"`
}

// AuditRecorder keeps the lot consumption trace of posted invoices.
type AuditRecorder interface {
	RecordSale(ctx context.Context, inv *Invoice) error
	History(ctx context.Context, tenantID string, invoiceID id.ID) ([]HistoryEntry, error)
}

// EnvelopeState is the outcome of claiming a sync envelope.
type EnvelopeState struct {
	// Replay holds the stored response of an already completed envelope.
	Replay *SyncResponse
}

// EnvelopeStore protects sync batches against replay.
type EnvelopeStore interface {
	// Begin claims the envelope. A completed envelope with the same request
	// returns its stored response in Replay. An envelope still in flight fails
	// with IDEMPOTENCY_CONFLICT; a different request under the same id fails
	// with IDEMPOTENCY_MISMATCH.
	Begin(ctx context.Context, tenantID, envelopeID, requestHash string) (EnvelopeState, error)
	Complete(ctx context.Context, tenantID, envelopeID string, resp *SyncResponse) error
	Fail(ctx context.Context, tenantID, envelopeID string) error
}
