//go:build integration

package sale_repo_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tillpoint/internal/core/apperror"
	"tillpoint/internal/domain/costing"
	"tillpoint/internal/domain/sale"
	"tillpoint/internal/infrastructure/storage/postgres"
)

type recordingHandler struct {
	err  error
	seen []*postgres.OutboxMessage
}

func (h *recordingHandler) Handle(_ context.Context, msg *postgres.OutboxMessage) error {
	h.seen = append(h.seen, msg)
	return h.err
}

func (s *stack) count(t *testing.T, sql string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, s.pool.QueryRow(context.Background(), sql, args...).Scan(&n))
	return n
}

func TestPostgres_OutboxRowPerCommittedSale(t *testing.T) {
	s := newStack(t, costing.PolicyReject)
	ctx := context.Background()
	s.receive(t, "5", "1", time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC))

	res, err := s.sales.IngestSale(ctx, s.tenantID, s.request("OB-1", "2", "3"))
	require.NoError(t, err)
	_, err = s.sales.IngestSale(ctx, s.tenantID, s.request("OB-1", "2", "3"))
	require.NoError(t, err)
	_, err = s.sales.IngestSale(ctx, s.tenantID, s.request("OB-2", "9", "3"))
	require.True(t, apperror.IsInsufficientStock(err))

	const events = `SELECT count(*) FROM sys_outbox WHERE tenant_id = $1 AND event_type = $2`
	assert.Equal(t, 1, s.count(t, events, s.tenantID, sale.EventSaleIngested))
	assert.Equal(t, 1, s.count(t, `SELECT count(*) FROM sys_outbox WHERE aggregate_id = $1`, res.InvoiceID))

	const audits = `SELECT count(*) FROM sys_audit WHERE tenant_id = $1 AND entity_type = $2 AND action = $3`
	assert.Equal(t, 1, s.count(t, audits, s.tenantID, sale.AuditEntityInvoice, sale.AuditActionPost))

	h := &recordingHandler{}
	relay := postgres.NewOutboxRelay(s.txm, 10, h)
	n, err := relay.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, h.seen, 1)
	assert.Equal(t, res.InvoiceID, h.seen[0].AggregateID)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(h.seen[0].Payload, &payload))
	assert.NotEmpty(t, payload)

	n, err = relay.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "published messages are not delivered again")

	// A negative retention puts the cutoff after every published_at.
	purged, err := relay.PurgePublished(ctx, -time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)
	assert.Zero(t, s.count(t, `SELECT count(*) FROM sys_outbox`))
}

func TestPostgres_OutboxFailuresEndInDLQ(t *testing.T) {
	s := newStack(t, costing.PolicyReject)
	ctx := context.Background()
	s.receive(t, "5", "1", time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC))

	_, err := s.sales.IngestSale(ctx, s.tenantID, s.request("DLQ-1", "1", "3"))
	require.NoError(t, err)

	h := &recordingHandler{err: errors.New("downstream unavailable")}
	relay := postgres.NewOutboxRelay(s.txm, 10, h).
		WithBackoff(func(int) time.Duration { return 0 })

	for i := 0; i < 5; i++ {
		n, err := relay.ProcessBatch(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	}
	assert.Len(t, h.seen, 5)

	var (
		status  string
		retries int
		lastErr string
	)
	require.NoError(t, s.pool.QueryRow(ctx,
		`SELECT status, retry_count, last_error FROM sys_outbox WHERE tenant_id = $1`, s.tenantID,
	).Scan(&status, &retries, &lastErr))
	assert.Equal(t, string(postgres.OutboxStatusFailed), status)
	assert.Equal(t, 5, retries)
	assert.Equal(t, "downstream unavailable", lastErr)

	_, err = relay.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Len(t, h.seen, 5, "failed messages are not claimed")

	moved, err := relay.MoveToDLQ(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), moved)
	assert.Zero(t, s.count(t, `SELECT count(*) FROM sys_outbox`))
	assert.Equal(t, 1, s.count(t,
		`SELECT count(*) FROM sys_outbox_dlq WHERE tenant_id = $1 AND failure_reason = $2`,
		s.tenantID, "downstream unavailable"))
}

func TestPostgres_SyncEnvelopeLifecycle(t *testing.T) {
	s := newStack(t, costing.PolicyReject)
	ctx := context.Background()
	l := s.receive(t, "5", "1", time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC))

	req := sale.SyncRequest{
		EnvelopeID: "env-pg",
		TerminalID: "till-1",
		Sales: []sale.OfflineSale{
			{ClientRef: "C-1", Request: s.request("", "2", "3")},
			{ClientRef: "C-2", Request: s.request("", "9", "3")},
		},
	}

	first, err := s.sales.SyncOffline(ctx, s.tenantID, req)
	require.NoError(t, err)
	require.Len(t, first.Statuses, 2)
	assert.Equal(t, sale.SyncAccepted, first.Statuses[0].Status)
	assert.Equal(t, sale.SyncRejected, first.Statuses[1].Status)
	assert.Equal(t, apperror.CodeInsufficientStock, first.Statuses[1].Code)

	var status string
	require.NoError(t, s.pool.QueryRow(ctx,
		`SELECT status FROM sys_sync_envelopes WHERE tenant_id = $1 AND envelope_id = $2`,
		s.tenantID, req.EnvelopeID,
	).Scan(&status))
	assert.Equal(t, string(postgres.EnvelopeStatusSuccess), status)

	replay, err := s.sales.SyncOffline(ctx, s.tenantID, req)
	require.NoError(t, err)
	assert.Equal(t, first, replay)
	assert.Equal(t, "3", s.remaining(t, l.ID))

	changed := req
	changed.Sales = req.Sales[:1]
	_, err = s.sales.SyncOffline(ctx, s.tenantID, changed)
	assert.True(t, apperror.HasCode(err, apperror.CodeIdempotency))
}

func TestPostgres_EnvelopeInFlightAndReclaim(t *testing.T) {
	s := newStack(t, costing.PolicyReject)
	ctx := context.Background()

	st, err := s.envelopes.Begin(ctx, s.tenantID, "env-claim", "hash-1")
	require.NoError(t, err)
	assert.Nil(t, st.Replay)

	_, err = s.envelopes.Begin(ctx, s.tenantID, "env-claim", "hash-1")
	assert.True(t, apperror.HasCode(err, apperror.CodeIdempotency), "a pending envelope is in flight")

	require.NoError(t, s.envelopes.Fail(ctx, s.tenantID, "env-claim"))

	st, err = s.envelopes.Begin(ctx, s.tenantID, "env-claim", "hash-1")
	require.NoError(t, err, "a failed envelope is reclaimed")
	assert.Nil(t, st.Replay)

	resp := &sale.SyncResponse{
		EnvelopeID: "env-claim",
		Statuses:   []sale.SyncStatus{{ClientRef: "C-9", Status: sale.SyncRejected, Code: "X"}},
	}
	require.NoError(t, s.envelopes.Complete(ctx, s.tenantID, "env-claim", resp))

	st, err = s.envelopes.Begin(ctx, s.tenantID, "env-claim", "hash-1")
	require.NoError(t, err)
	require.NotNil(t, st.Replay)
	assert.Equal(t, resp, st.Replay)

	_, err = s.envelopes.Begin(ctx, s.tenantID, "env-claim", "hash-2")
	assert.True(t, apperror.HasCode(err, apperror.CodeIdempotency))
}
