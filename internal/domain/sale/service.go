package sale

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"tillpoint/internal/core/apperror"
	appctx "tillpoint/internal/core/context"
	"tillpoint/internal/core/id"
	"tillpoint/internal/core/numerator"
	"tillpoint/internal/core/tx"
	"tillpoint/internal/core/types"
	"tillpoint/internal/domain/costing"
	"tillpoint/pkg/logger"
)

// InvoicePrefix prefixes server-generated invoice numbers.
const InvoicePrefix = "INV"

var tracer = otel.Tracer("tillpoint/sale")

// errLostInsert aborts a sale whose header lost the (tenant, invoice_no) race.
var errLostInsert = errors.New("invoice number taken by a concurrent submission")

// Service ingests sales.
type Service struct {
	repo      Repository
	engine    *costing.Engine
	numerator numerator.Generator
	txManager tx.Manager

	events    EventPublisher
	audit     AuditRecorder
	envelopes EnvelopeStore

	maxSalesPerEnvelope int
	metrics             *serviceMetrics
	now                 func() time.Time
}

// Option configures optional collaborators.
type Option func(*Service)

// WithEventPublisher records a sale.ingested event per posted invoice.
func WithEventPublisher(p EventPublisher) Option {
	return func(s *Service) { s.events = p }
}

// WithAuditRecorder records the consumption trace per posted invoice.
func WithAuditRecorder(r AuditRecorder) Option {
	return func(s *Service) { s.audit = r }
}

// WithEnvelopeStore enables replay protection for sync batches.
func WithEnvelopeStore(e EnvelopeStore) Option {
	return func(s *Service) { s.envelopes = e }
}

// WithMaxSalesPerEnvelope bounds the size of one sync batch. Zero means unbounded.
func WithMaxSalesPerEnvelope(n int) Option {
	return func(s *Service) { s.maxSalesPerEnvelope = n }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(
	repo Repository,
	engine *costing.Engine,
	numerator numerator.Generator,
	txManager tx.Manager,
	opts ...Option,
) *Service {
	s := &Service{
		repo:      repo,
		engine:    engine,
		numerator: numerator,
		txManager: txManager,
		metrics:   newServiceMetrics(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IngestSale records a sale exactly once and costs every line against the lot ledger.
// Header, lines, lot decrements, the outbox event and the audit entry commit together.
func (s *Service) IngestSale(ctx context.Context, tenantID string, req Request) (Result, error) {
	ctx, span := tracer.Start(ctx, "sale.IngestSale",
		trace.WithAttributes(
			attribute.String("tenant_id", tenantID),
			attribute.String("source", string(req.Source)),
			attribute.Int("items", len(req.Items)),
		),
	)
	defer span.End()

	res, err := s.ingest(ctx, tenantID, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}

	span.SetAttributes(
		attribute.String("invoice_id", res.InvoiceID.String()),
		attribute.Bool("duplicate", res.Duplicate),
	)
	return res, nil
}

func (s *Service) ingest(ctx context.Context, tenantID string, req Request) (Result, error) {
	req.normalize()
	if err := req.Validate(); err != nil {
		return Result{}, err
	}

	if req.TempInvoiceNo != "" {
		if res, ok, err := s.findExisting(ctx, tenantID, req.TempInvoiceNo); err != nil || ok {
			return res, err
		}
	}

	var inv *Invoice
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		inv, err = s.post(ctx, tenantID, req)
		return err
	})

	if errors.Is(err, errLostInsert) {
		res, ok, findErr := s.findExisting(ctx, tenantID, req.TempInvoiceNo)
		if findErr != nil {
			return Result{}, findErr
		}
		if ok {
			return res, nil
		}
		return Result{}, apperror.NewConflict("invoice number is taken").
			WithDetail("invoice_no", req.TempInvoiceNo)
	}
	if err != nil {
		appErr := apperror.Ensure(err)
		if appErr.HTTPStatus >= 500 {
			logger.Error(ctx, "sale ingestion failed",
				"invoice_no", req.TempInvoiceNo,
				"code", appErr.Code,
				"error", err)
		}
		return Result{}, appErr
	}

	s.metrics.ingested.Add(ctx, 1, metric.WithAttributes(attribute.String("source", string(inv.Source))))
	logger.Info(ctx, "sale ingested",
		"invoice_id", inv.ID,
		"invoice_no", inv.InvoiceNo,
		"total", inv.Total.String(),
		"total_cost", inv.TotalCost.String(),
		"total_profit", inv.TotalProfit.String(),
		"lines", len(inv.Lines))

	return Result{InvoiceID: inv.ID, InvoiceNo: inv.InvoiceNo}, nil
}

// findExisting resolves an idempotency token to its invoice.
func (s *Service) findExisting(ctx context.Context, tenantID, invoiceNo string) (Result, bool, error) {
	existing, err := s.repo.FindIDByInvoiceNo(ctx, tenantID, invoiceNo)
	if apperror.IsNotFound(err) {
		return Result{}, false, nil
	}
	if err != nil {
		return Result{}, false, apperror.Ensure(err)
	}

	s.metrics.duplicates.Add(ctx, 1)
	logger.Info(ctx, "duplicate sale submission",
		"invoice_id", existing,
		"invoice_no", invoiceNo)
	return Result{InvoiceID: existing, InvoiceNo: invoiceNo, Duplicate: true}, true, nil
}

// post runs inside the sale transaction.
func (s *Service) post(ctx context.Context, tenantID string, req Request) (*Invoice, error) {
	now := s.now().UTC()

	invoiceNo := req.TempInvoiceNo
	if invoiceNo == "" {
		number, err := s.numerator.GetNextNumber(ctx, tenantID,
			numerator.DefaultConfig(InvoicePrefix), numerator.DefaultOptions(), now)
		if err != nil {
			return nil, fmt.Errorf("generate invoice number: %w", err)
		}
		invoiceNo = number
	}

	subtotal := req.Subtotal()
	inv := &Invoice{
		ID:             id.New(),
		TenantID:       tenantID,
		LocationID:     req.LocationID,
		InvoiceNo:      invoiceNo,
		Source:         req.Source,
		PaymentMethod:  req.PaymentMethod,
		CustomerID:     req.CustomerID,
		TerminalID:     appctx.GetTerminalID(ctx),
		Subtotal:       subtotal,
		DiscountAmount: req.DiscountAmount,
		Total:          subtotal.Sub(req.DiscountAmount),
		TotalCost:      types.Zero(),
		TotalProfit:    types.Zero(),
		Status:         StatusPending,
		CreatedAt:      now,
	}

	created, err := s.repo.CreateHeader(ctx, inv)
	if err != nil {
		return nil, fmt.Errorf("create invoice header: %w", err)
	}
	if !created {
		return nil, errLostInsert
	}

	totalCost := types.Zero()
	inv.Lines = make([]LineItem, 0, len(req.Items))

	// Request order decides which line gets scarce stock first.
	for i, item := range req.Items {
		res, err := s.engine.CostAndConsume(ctx, tenantID, item.ProductID, req.LocationID, item.Quantity)
		if err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				return nil, appErr.WithDetail("line_no", i+1)
			}
			return nil, fmt.Errorf("cost line %d: %w", i+1, err)
		}
		if res.Shortfall.IsPositive() {
			s.metrics.shortfall.Add(ctx, res.Shortfall.InexactFloat64(),
				metric.WithAttributes(attribute.String("policy", s.engine.Policy().String())))
		}

		line := newLineItem(inv, i+1, item, res)
		if err := s.repo.InsertLine(ctx, &line); err != nil {
			return nil, fmt.Errorf("insert line %d: %w", i+1, err)
		}
		inv.Lines = append(inv.Lines, line)
		totalCost = totalCost.Add(line.TotalCost)
	}

	if err := inv.Finalize(totalCost, s.now()); err != nil {
		return nil, err
	}
	if err := s.repo.FinalizeTotals(ctx, inv); err != nil {
		return nil, fmt.Errorf("finalize invoice: %w", err)
	}

	if s.events != nil {
		if err := s.events.PublishSaleIngested(ctx, inv); err != nil {
			return nil, fmt.Errorf("publish sale event: %w", err)
		}
	}
	if s.audit != nil {
		if err := s.audit.RecordSale(ctx, inv); err != nil {
			return nil, fmt.Errorf("record audit: %w", err)
		}
	}

	return inv, nil
}

// GetInvoice returns an invoice with its lines and lot consumptions.
func (s *Service) GetInvoice(ctx context.Context, tenantID string, invoiceID id.ID) (*Invoice, error) {
	inv, err := s.repo.Get(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, apperror.Ensure(err)
	}
	return inv, nil
}

// History returns the audit entries of an invoice, oldest first.
func (s *Service) History(ctx context.Context, tenantID string, invoiceID id.ID) ([]HistoryEntry, error) {
	if _, err := s.repo.Get(ctx, tenantID, invoiceID); err != nil {
		return nil, apperror.Ensure(err)
	}
	if s.audit == nil {
		return []HistoryEntry{}, nil
	}
	entries, err := s.audit.History(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, apperror.Ensure(err)
	}
	return entries, nil
}
