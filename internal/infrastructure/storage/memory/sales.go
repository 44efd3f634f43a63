package memory

import (
	"context"
	"encoding/json"
	"sort"

	"tillpoint/internal/core/apperror"
	"tillpoint/internal/core/id"
	"tillpoint/internal/domain/sale"
)

// Sales returns the store as a sale.Repository.
func (s *Store) Sales() sale.Repository {
	return saleRepo{s}
}

type saleRepo struct{ s *Store }

func (r saleRepo) FindIDByInvoiceNo(ctx context.Context, tenantID, invoiceNo string) (id.ID, error) {
	var out id.ID
	err := r.s.view(ctx, func(d *state) error {
		v, ok := d.invoiceNos[scopedKey(tenantID, invoiceNo)]
		if !ok {
			return apperror.NewNotFound("sale_invoice", invoiceNo)
		}
		out = v
		return nil
	})
	return out, err
}

func (r saleRepo) CreateHeader(ctx context.Context, inv *sale.Invoice) (bool, error) {
	created := false
	err := r.s.view(ctx, func(d *state) error {
		key := scopedKey(inv.TenantID, inv.InvoiceNo)
		if _, taken := d.invoiceNos[key]; taken {
			return nil
		}
		header := *inv
		header.Lines = nil
		d.invoices[inv.ID] = header
		d.invoiceNos[key] = inv.ID
		created = true
		return nil
	})
	return created, err
}

func (r saleRepo) InsertLine(ctx context.Context, line *sale.LineItem) error {
	return r.s.view(ctx, func(d *state) error {
		if _, ok := d.invoices[line.InvoiceID]; !ok {
			return apperror.NewPersistence(apperror.NewNotFound("sale_invoice", line.InvoiceID.String()))
		}
		d.lines[line.InvoiceID] = append(d.lines[line.InvoiceID], *line)
		return nil
	})
}

func (r saleRepo) FinalizeTotals(ctx context.Context, inv *sale.Invoice) error {
	return r.s.view(ctx, func(d *state) error {
		header, ok := d.invoices[inv.ID]
		if !ok || header.TenantID != inv.TenantID {
			return apperror.NewNotFound("sale_invoice", inv.ID.String())
		}
		header.TotalCost = inv.TotalCost
		header.TotalProfit = inv.TotalProfit
		header.Status = inv.Status
		header.FinalizedAt = inv.FinalizedAt
		d.invoices[inv.ID] = header
		return nil
	})
}

func (r saleRepo) Get(ctx context.Context, tenantID string, invoiceID id.ID) (*sale.Invoice, error) {
	var out *sale.Invoice
	err := r.s.view(ctx, func(d *state) error {
		header, ok := d.invoices[invoiceID]
		if !ok || header.TenantID != tenantID {
			return apperror.NewNotFound("sale_invoice", invoiceID.String())
		}
		header.Lines = append([]sale.LineItem(nil), d.lines[invoiceID]...)
		sort.Slice(header.Lines, func(i, j int) bool {
			return header.Lines[i].LineNo < header.Lines[j].LineNo
		})
		out = &header
		return nil
	})
	return out, err
}

// PublishSaleIngested implements sale.EventPublisher.
func (s *Store) PublishSaleIngested(ctx context.Context, inv *sale.Invoice) error {
	payload, err := json.Marshal(sale.NewIngestedEvent(inv))
	if err != nil {
		return err
	}
	return s.view(ctx, func(d *state) error {
		d.events = append(d.events, Event{
			ID:          id.New(),
			TenantID:    inv.TenantID,
			EventType:   sale.EventSaleIngested,
			AggregateID: inv.ID,
			Payload:     payload,
			CreatedAt:   s.now().UTC(),
		})
		return nil
	})
}

// RecordSale implements sale.AuditRecorder.
func (s *Store) RecordSale(ctx context.Context, inv *sale.Invoice) error {
	payload, err := json.Marshal(inv)
	if err != nil {
		return err
	}
	return s.view(ctx, func(d *state) error {
		d.history = append(d.history, sale.HistoryEntry{
			ID:         id.New(),
			TenantID:   inv.TenantID,
			EntityType: sale.AuditEntityInvoice,
			EntityID:   inv.ID,
			Action:     sale.AuditActionPost,
			TerminalID: inv.TerminalID,
			Payload:    payload,
			CreatedAt:  s.now().UTC(),
		})
		return nil
	})
}

// History implements sale.AuditRecorder.
func (s *Store) History(ctx context.Context, tenantID string, invoiceID id.ID) ([]sale.HistoryEntry, error) {
	out := []sale.HistoryEntry{}
	err := s.view(ctx, func(d *state) error {
		for _, e := range d.history {
			if e.TenantID == tenantID && e.EntityID == invoiceID {
				out = append(out, e)
			}
		}
		return nil
	})
	return out, err
}
