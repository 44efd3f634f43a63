package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tillpoint/internal/core/apperror"
	"tillpoint/internal/domain/sale"
)

// EnvelopeStatus represents the state of a sync envelope.
type EnvelopeStatus string

const (
	EnvelopeStatusPending EnvelopeStatus = "pending"
	EnvelopeStatusSuccess EnvelopeStatus = "success"
	EnvelopeStatusFailed  EnvelopeStatus = "failed"
)

// staleEnvelopeAfter is how long a pending envelope may go untouched before
// it is assumed abandoned by a crashed request and reclaimed.
const staleEnvelopeAfter = 2 * time.Minute

// EnvelopeRecord is a row of sys_sync_envelopes.
type EnvelopeRecord struct {
	TenantID    string         `db:"tenant_id"`
	EnvelopeID  string         `db:"envelope_id"`
	Status      EnvelopeStatus `db:"status"`
	RequestHash string         `db:"request_hash"`
	Response    []byte         `db:"response"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
	ExpiresAt   time.Time      `db:"expires_at"`
}

// EnvelopeStore guards offline sync batches against replay.
type EnvelopeStore struct {
	txManager *TxManager
	ttl       time.Duration
	now       func() time.Time
}

var _ sale.EnvelopeStore = (*EnvelopeStore)(nil)

func NewEnvelopeStore(txManager *TxManager, ttl time.Duration) *EnvelopeStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &EnvelopeStore{txManager: txManager, ttl: ttl, now: time.Now}
}

// Begin implements sale.EnvelopeStore.
func (s *EnvelopeStore) Begin(ctx context.Context, tenantID, envelopeID, requestHash string) (sale.EnvelopeState, error) {
	now := s.now().UTC()
	q := s.txManager.GetQuerier(ctx)

	var (
		record   EnvelopeRecord
		inserted bool
	)
	err := q.QueryRow(ctx, `
		INSERT INTO sys_sync_envelopes (tenant_id, envelope_id, status, request_hash, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $5, $6)
		ON CONFLICT (tenant_id, envelope_id) DO UPDATE SET
			updated_at = sys_sync_envelopes.updated_at
		RETURNING status, request_hash, response, updated_at, expires_at, (xmax = 0) AS inserted
	`, tenantID, envelopeID, EnvelopeStatusPending, requestHash, now, now.Add(s.ttl)).Scan(
		&record.Status, &record.RequestHash, &record.Response,
		&record.UpdatedAt, &record.ExpiresAt, &inserted,
	)
	if err != nil {
		return sale.EnvelopeState{}, fmt.Errorf("acquire sync envelope: %w", err)
	}
	if inserted {
		return sale.EnvelopeState{}, nil
	}

	switch decideEnvelope(record, requestHash, now) {
	case envelopeReplay:
		var resp sale.SyncResponse
		if err := json.Unmarshal(record.Response, &resp); err != nil {
			return sale.EnvelopeState{}, fmt.Errorf("decode stored sync response: %w", err)
		}
		return sale.EnvelopeState{Replay: &resp}, nil
	case envelopeMismatch:
		return sale.EnvelopeState{}, apperror.NewIdempotencyMismatch(envelopeID)
	case envelopeInFlight:
		return sale.EnvelopeState{}, apperror.NewIdempotencyConflict(envelopeID)
	}

	_, err = q.Exec(ctx, `
		UPDATE sys_sync_envelopes
		SET status = $1, request_hash = $2, response = NULL, updated_at = $3, expires_at = $4
		WHERE tenant_id = $5 AND envelope_id = $6
	`, EnvelopeStatusPending, requestHash, now, now.Add(s.ttl), tenantID, envelopeID)
	if err != nil {
		return sale.EnvelopeState{}, fmt.Errorf("reclaim sync envelope: %w", err)
	}
	return sale.EnvelopeState{}, nil
}

type envelopeDecision int

const (
	envelopeReclaim envelopeDecision = iota
	envelopeReplay
	envelopeMismatch
	envelopeInFlight
)

// decideEnvelope resolves an existing envelope row against a new claim.
func decideEnvelope(record EnvelopeRecord, requestHash string, now time.Time) envelopeDecision {
	if now.After(record.ExpiresAt) {
		return envelopeReclaim
	}
	if record.RequestHash != requestHash {
		return envelopeMismatch
	}
	switch record.Status {
	case EnvelopeStatusSuccess:
		return envelopeReplay
	case EnvelopeStatusPending:
		if now.Sub(record.UpdatedAt) > staleEnvelopeAfter {
			return envelopeReclaim
		}
		return envelopeInFlight
	}
	return envelopeReclaim
}

// Complete implements sale.EnvelopeStore.
func (s *EnvelopeStore) Complete(ctx context.Context, tenantID, envelopeID string, resp *sale.SyncResponse) error {
	body, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshal sync response: %w", err)
	}
	return s.finish(ctx, tenantID, envelopeID, EnvelopeStatusSuccess, body)
}

// Fail implements sale.EnvelopeStore.
func (s *EnvelopeStore) Fail(ctx context.Context, tenantID, envelopeID string) error {
	return s.finish(ctx, tenantID, envelopeID, EnvelopeStatusFailed, nil)
}

func (s *EnvelopeStore) finish(ctx context.Context, tenantID, envelopeID string, status EnvelopeStatus, body []byte) error {
	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		UPDATE sys_sync_envelopes
		SET status = $1, response = $2, updated_at = $3
		WHERE tenant_id = $4 AND envelope_id = $5
	`, status, body, s.now().UTC(), tenantID, envelopeID)
	if err != nil {
		return fmt.Errorf("update sync envelope: %w", err)
	}
	return nil
}

// CleanupExpired removes expired envelopes.
func (s *EnvelopeStore) CleanupExpired(ctx context.Context) (int64, error) {
	result, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		DELETE FROM sys_sync_envelopes WHERE expires_at < $1
	`, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("cleanup sync envelopes: %w", err)
	}
	return result.RowsAffected(), nil
}
