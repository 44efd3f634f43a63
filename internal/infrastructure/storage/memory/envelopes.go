package memory

import (
	"context"
	"time"

	"tillpoint/internal/core/apperror"
	"tillpoint/internal/domain/sale"
)

const (
	envelopePending = "pending"
	envelopeSuccess = "success"
	envelopeFailed  = "failed"
)

// Envelopes returns the store as a sale.EnvelopeStore.
func (s *Store) Envelopes(ttl time.Duration) sale.EnvelopeStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return envelopeStore{s: s, ttl: ttl}
}

type envelopeStore struct {
	s   *Store
	ttl time.Duration
}

func (e envelopeStore) Begin(ctx context.Context, tenantID, envelopeID, requestHash string) (sale.EnvelopeState, error) {
	var st sale.EnvelopeState
	err := e.s.view(ctx, func(d *state) error {
		key := scopedKey(tenantID, envelopeID)
		now := e.s.now()

		existing, ok := d.envelopes[key]
		if ok && now.After(existing.expiresAt) {
			ok = false
		}
		if ok {
			if existing.requestHash != requestHash {
				return apperror.NewIdempotencyMismatch(envelopeID)
			}
			switch existing.status {
			case envelopeSuccess:
				st.Replay = existing.response
				return nil
			case envelopePending:
				return apperror.NewIdempotencyConflict(envelopeID)
			}
		}

		d.envelopes[key] = envelope{
			requestHash: requestHash,
			status:      envelopePending,
			expiresAt:   now.Add(e.ttl),
		}
		return nil
	})
	return st, err
}

func (e envelopeStore) Complete(ctx context.Context, tenantID, envelopeID string, resp *sale.SyncResponse) error {
	return e.finish(ctx, tenantID, envelopeID, envelopeSuccess, resp)
}

func (e envelopeStore) Fail(ctx context.Context, tenantID, envelopeID string) error {
	return e.finish(ctx, tenantID, envelopeID, envelopeFailed, nil)
}

func (e envelopeStore) finish(ctx context.Context, tenantID, envelopeID, status string, resp *sale.SyncResponse) error {
	return e.s.view(ctx, func(d *state) error {
		key := scopedKey(tenantID, envelopeID)
		env, ok := d.envelopes[key]
		if !ok {
			return apperror.NewNotFound("sync_envelope", envelopeID)
		}
		env.status = status
		env.response = resp
		d.envelopes[key] = env
		return nil
	})
}
