package sale

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"tillpoint/internal/core/apperror"
	appctx "tillpoint/internal/core/context"
	"tillpoint/internal/core/id"
	"tillpoint/pkg/logger"
)

// Per-sale outcomes of a sync batch.
const (
	SyncAccepted  = "accepted"
	SyncDuplicate = "duplicate"
	SyncRejected  = "rejected"
)

// SyncRequest replays a terminal's offline queue.
type SyncRequest struct {
	EnvelopeID string        `json:"envelope_id"`
	TerminalID string        `json:"terminal_id"`
	Sales      []OfflineSale `json:"sales"`
}

// OfflineSale is one queued sale. ClientRef doubles as the idempotency token
// when the sale carries none.
type OfflineSale struct {
	ClientRef string  `json:"client_ref"`
	Request   Request `json:"sale"`
}

// SyncStatus is the outcome of one queued sale.
type SyncStatus struct {
	ClientRef string `json:"client_ref"`
	Status    string `json:"status"`
	InvoiceID *id.ID `json:"invoice_id,omitempty"`
	InvoiceNo string `json:"invoice_no,omitempty"`
	Code      string `json:"code,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// SyncResponse lists outcomes in request order.
type SyncResponse struct {
	EnvelopeID string       `json:"envelope_id"`
	Statuses   []SyncStatus `json:"statuses"`
}

func (r *SyncRequest) validate(maxSales int) error {
	if r.EnvelopeID == "" {
		return apperror.NewValidation("envelope_id is required").WithDetail("field", "envelope_id")
	}
	if len(r.Sales) == 0 {
		return apperror.NewValidation("at least one sale is required").WithDetail("field", "sales")
	}
	if maxSales > 0 && len(r.Sales) > maxSales {
		return apperror.NewValidation(fmt.Sprintf("envelope carries more than %d sales", maxSales)).
			WithDetail("field", "sales")
	}
	for i, sale := range r.Sales {
		if sale.ClientRef == "" && sale.Request.TempInvoiceNo == "" {
			return apperror.NewValidation("client_ref is required").
				WithDetail("field", fmt.Sprintf("sales[%d].client_ref", i))
		}
	}
	return nil
}

// hash fingerprints the request so a reused envelope id with different content is detected.
func (r *SyncRequest) hash() (string, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// SyncOffline ingests every queued sale independently, in order. A rejected
// sale never aborts the rest of the batch.
func (s *Service) SyncOffline(ctx context.Context, tenantID string, req SyncRequest) (*SyncResponse, error) {
	if err := req.validate(s.maxSalesPerEnvelope); err != nil {
		return nil, err
	}

	if req.TerminalID != "" {
		ctx = appctx.WithScope(ctx, &appctx.Scope{TenantID: tenantID, TerminalID: req.TerminalID})
	}

	if s.envelopes != nil {
		hash, err := req.hash()
		if err != nil {
			return nil, apperror.NewInternal(err)
		}
		state, err := s.envelopes.Begin(ctx, tenantID, req.EnvelopeID, hash)
		if err != nil {
			return nil, err
		}
		if state.Replay != nil {
			logger.Info(ctx, "sync envelope replayed", "envelope_id", req.EnvelopeID)
			return state.Replay, nil
		}
	}

	resp := &SyncResponse{
		EnvelopeID: req.EnvelopeID,
		Statuses:   make([]SyncStatus, 0, len(req.Sales)),
	}

	// A server-side failure leaves the envelope open so a retry ingests the
	// sale again; sales already committed come back as duplicates.
	transient := false
	for _, sale := range req.Sales {
		saleReq := sale.Request
		saleReq.Source = SourceOffline
		if saleReq.TempInvoiceNo == "" {
			saleReq.TempInvoiceNo = sale.ClientRef
		}

		status := SyncStatus{ClientRef: sale.ClientRef}
		res, err := s.IngestSale(ctx, tenantID, saleReq)
		if err != nil {
			appErr := apperror.Ensure(err)
			if ctx.Err() != nil {
				s.failEnvelope(ctx, tenantID, req.EnvelopeID)
				return nil, appErr
			}
			if appErr.HTTPStatus >= 500 {
				transient = true
			}
			status.Status = SyncRejected
			status.Code = appErr.Code
			status.Reason = appErr.Message
			resp.Statuses = append(resp.Statuses, status)
			continue
		}

		if res.Duplicate {
			status.Status = SyncDuplicate
		} else {
			status.Status = SyncAccepted
		}
		invoiceID := res.InvoiceID
		status.InvoiceID = &invoiceID
		status.InvoiceNo = res.InvoiceNo
		resp.Statuses = append(resp.Statuses, status)
	}

	if transient {
		logger.Warn(ctx, "sync envelope left open after server-side failure",
			"envelope_id", req.EnvelopeID)
		s.failEnvelope(ctx, tenantID, req.EnvelopeID)
	} else if s.envelopes != nil {
		if err := s.envelopes.Complete(ctx, tenantID, req.EnvelopeID, resp); err != nil {
			// Sales are committed and dedupe by token on a retry of this envelope.
			logger.Warn(ctx, "failed to complete sync envelope",
				"envelope_id", req.EnvelopeID,
				"error", err)
		}
	}

	logger.Info(ctx, "offline sync processed",
		"envelope_id", req.EnvelopeID,
		"terminal_id", req.TerminalID,
		"sales", len(req.Sales))
	return resp, nil
}

func (s *Service) failEnvelope(ctx context.Context, tenantID, envelopeID string) {
	if s.envelopes == nil {
		return
	}
	if err := s.envelopes.Fail(context.WithoutCancel(ctx), tenantID, envelopeID); err != nil {
		logger.Warn(ctx, "failed to release sync envelope", "envelope_id", envelopeID, "error", err)
	}
}
