package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/klauspost/compress/zstd"

	appctx "tillpoint/internal/core/context"
	"tillpoint/internal/core/id"
	"tillpoint/internal/domain/sale"
)

// CompressionAlgo specifies the compression algorithm used.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// defaultCompressThreshold is the payload size above which changes are stored compressed.
const defaultCompressThreshold = 10 * 1024

// AuditEntry represents a single audit log entry.
type AuditEntry struct {
	ID                id.ID           `db:"id"`
	TenantID          string          `db:"tenant_id"`
	EntityType        string          `db:"entity_type"`
	EntityID          id.ID           `db:"entity_id"`
	Action            string          `db:"action"`
	TerminalID        string          `db:"terminal_id"`
	Changes           json.RawMessage `db:"changes"`
	ChangesCompressed []byte          `db:"changes_compressed"`
	CompressionAlgo   CompressionAlgo `db:"compression_algo"`
	Metadata          json.RawMessage `db:"metadata"`
	CreatedAt         time.Time       `db:"created_at"`
}

// AuditService writes the sys_audit trail in the caller's transaction.
type AuditService struct {
	txManager         *TxManager
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

var _ sale.AuditRecorder = (*AuditService)(nil)

func NewAuditService(txManager *TxManager) (*AuditService, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &AuditService{
		txManager:         txManager,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: defaultCompressThreshold,
	}, nil
}

// compress moves large changes into ChangesCompressed.
func (s *AuditService) compress(entry *AuditEntry) {
	entry.CompressionAlgo = CompressionNone
	if len(entry.Changes) > s.compressThreshold {
		entry.ChangesCompressed = s.encoder.EncodeAll(entry.Changes, nil)
		entry.Changes = nil
		entry.CompressionAlgo = CompressionZstd
	}
}

// decompress restores Changes of a compressed entry.
func (s *AuditService) decompress(entry *AuditEntry) error {
	if entry.CompressionAlgo != CompressionZstd || len(entry.ChangesCompressed) == 0 {
		return nil
	}
	raw, err := s.decoder.DecodeAll(entry.ChangesCompressed, nil)
	if err != nil {
		return fmt.Errorf("decompress changes: %w", err)
	}
	entry.Changes = raw
	entry.ChangesCompressed = nil
	return nil
}

// Log records an audit entry.
func (s *AuditService) Log(ctx context.Context, entry AuditEntry) error {
	if id.IsNil(entry.ID) {
		entry.ID = id.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.TerminalID == "" {
		entry.TerminalID = appctx.GetTerminalID(ctx)
	}
	if entry.Metadata == nil {
		meta := map[string]string{}
		if trace := appctx.GetTrace(ctx); trace != nil {
			meta["request_id"] = trace.RequestID
			meta["trace_id"] = trace.TraceID
		}
		entry.Metadata, _ = json.Marshal(meta)
	}

	s.compress(&entry)

	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO sys_audit (
			id, tenant_id, entity_type, entity_id, action, terminal_id,
			changes, changes_compressed, compression_algo, metadata,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		entry.ID, entry.TenantID, entry.EntityType, entry.EntityID, entry.Action, entry.TerminalID,
		entry.Changes, entry.ChangesCompressed, entry.CompressionAlgo, entry.Metadata,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// RecordSale stores the posted invoice with every lot consumption.
func (s *AuditService) RecordSale(ctx context.Context, inv *sale.Invoice) error {
	changes, err := json.Marshal(inv)
	if err != nil {
		return fmt.Errorf("marshal invoice trace: %w", err)
	}
	return s.Log(ctx, AuditEntry{
		TenantID:   inv.TenantID,
		EntityType: sale.AuditEntityInvoice,
		EntityID:   inv.ID,
		Action:     sale.AuditActionPost,
		TerminalID: inv.TerminalID,
		Changes:    changes,
	})
}

// GetEntityHistory retrieves audit history for an entity, oldest first.
func (s *AuditService) GetEntityHistory(ctx context.Context, tenantID, entityType string, entityID id.ID, limit int) ([]AuditEntry, error) {
	var entries []AuditEntry
	err := pgxscan.Select(ctx, s.txManager.GetQuerier(ctx), &entries, `
		SELECT id, tenant_id, entity_type, entity_id, action, terminal_id,
		       changes, changes_compressed, compression_algo, metadata,
		       created_at
		FROM sys_audit
		WHERE tenant_id = $1 AND entity_type = $2 AND entity_id = $3
		ORDER BY created_at
		LIMIT $4
	`, tenantID, entityType, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}

	for i := range entries {
		if err := s.decompress(&entries[i]); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

// History implements sale.AuditRecorder.
func (s *AuditService) History(ctx context.Context, tenantID string, invoiceID id.ID) ([]sale.HistoryEntry, error) {
	entries, err := s.GetEntityHistory(ctx, tenantID, sale.AuditEntityInvoice, invoiceID, 100)
	if err != nil {
		return nil, err
	}

	out := make([]sale.HistoryEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, sale.HistoryEntry{
			ID:         e.ID,
			TenantID:   e.TenantID,
			EntityType: e.EntityType,
			EntityID:   e.EntityID,
			Action:     e.Action,
			TerminalID: e.TerminalID,
			Payload:    e.Changes,
			CreatedAt:  e.CreatedAt,
		})
	}
	return out, nil
}
