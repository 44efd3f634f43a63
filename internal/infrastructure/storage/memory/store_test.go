package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tillpoint/internal/core/apperror"
	"tillpoint/internal/core/id"
	"tillpoint/internal/core/tenant"
	"tillpoint/internal/core/types"
	"tillpoint/internal/domain/lot"
	"tillpoint/internal/domain/sale"
)

const tenantID = "t-1"

func seedLot(t *testing.T, s *Store, qty string, at time.Time, location *id.ID) lot.Lot {
	t.Helper()
	l := lot.Lot{
		ID:           id.New(),
		TenantID:     tenantID,
		ProductID:    id.MustParse("0191d5a0-0000-7000-8000-0000000000aa"),
		LocationID:   location,
		QtyReceived:  types.MustQuantity(qty),
		QtyRemaining: types.MustQuantity(qty),
		UnitCost:     types.MustMoney("1"),
		CreatedAt:    at,
	}
	require.NoError(t, s.Lots().Create(context.Background(), &l))
	return l
}

func TestRunInTransaction_RollbackRestoresState(t *testing.T) {
	s := New()
	l := seedLot(t, s, "5", time.Now(), nil)
	boom := errors.New("boom")

	err := s.RunInTransaction(context.Background(), func(ctx context.Context) error {
		require.NoError(t, s.Lots().Decrement(ctx, tenantID, l.ID, types.MustQuantity("4")))
		created, err := s.Sales().CreateHeader(ctx, &sale.Invoice{ID: id.New(), TenantID: tenantID, InvoiceNo: "A"})
		require.NoError(t, err)
		require.True(t, created)

		// Nested call joins the outer transaction.
		return s.RunInTransaction(ctx, func(ctx context.Context) error {
			return boom
		})
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.Lots().Get(context.Background(), tenantID, l.ID)
	require.NoError(t, err)
	assert.Equal(t, "5", got.QtyRemaining.String())

	_, err = s.Sales().FindIDByInvoiceNo(context.Background(), tenantID, "A")
	assert.True(t, apperror.IsNotFound(err))
}

func TestRunInTransaction_PanicRestoresState(t *testing.T) {
	s := New()
	l := seedLot(t, s, "5", time.Now(), nil)

	assert.Panics(t, func() {
		_ = s.RunInTransaction(context.Background(), func(ctx context.Context) error {
			require.NoError(t, s.Lots().Decrement(ctx, tenantID, l.ID, types.MustQuantity("5")))
			panic("costing bug")
		})
	})

	got, err := s.Lots().Get(context.Background(), tenantID, l.ID)
	require.NoError(t, err)
	assert.Equal(t, "5", got.QtyRemaining.String())
}

func TestLots_ListOldestFirstByPair(t *testing.T) {
	s := New()
	loc := id.New()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	newer := seedLot(t, s, "1", t0.Add(time.Minute), nil)
	older := seedLot(t, s, "1", t0, nil)
	seedLot(t, s, "1", t0, &loc)

	lots, err := s.Lots().ListOldestFirst(context.Background(), tenantID, older.ProductID, nil)
	require.NoError(t, err)
	require.Len(t, lots, 2)
	assert.Equal(t, older.ID, lots[0].ID)
	assert.Equal(t, newer.ID, lots[1].ID)

	lots, err = s.Lots().ListOldestFirst(context.Background(), tenantID, older.ProductID, &loc)
	require.NoError(t, err)
	assert.Len(t, lots, 1)

	lots, err = s.Lots().ListOldestFirst(context.Background(), "other", older.ProductID, nil)
	require.NoError(t, err)
	assert.Empty(t, lots)
}

func TestLots_DecrementNeverNegative(t *testing.T) {
	s := New()
	l := seedLot(t, s, "2", time.Now(), nil)
	ctx := context.Background()

	require.NoError(t, s.Lots().Decrement(ctx, tenantID, l.ID, types.MustQuantity("1.5")))
	err := s.Lots().Decrement(ctx, tenantID, l.ID, types.MustQuantity("0.6"))
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidQuantity))

	err = s.Lots().Decrement(ctx, "other", l.ID, types.MustQuantity("0.1"))
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidQuantity))

	got, err := s.Lots().Get(ctx, tenantID, l.ID)
	require.NoError(t, err)
	assert.Equal(t, "0.5", got.QtyRemaining.String())
}

func TestSales_HeaderUniquePerTenant(t *testing.T) {
	s := New()
	ctx := context.Background()

	created, err := s.Sales().CreateHeader(ctx, &sale.Invoice{ID: id.New(), TenantID: tenantID, InvoiceNo: "X"})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.Sales().CreateHeader(ctx, &sale.Invoice{ID: id.New(), TenantID: tenantID, InvoiceNo: "X"})
	require.NoError(t, err)
	assert.False(t, created)

	created, err = s.Sales().CreateHeader(ctx, &sale.Invoice{ID: id.New(), TenantID: "t-2", InvoiceNo: "X"})
	require.NoError(t, err)
	assert.True(t, created)
}

func TestEnvelopes(t *testing.T) {
	s := New()
	env := s.Envelopes(time.Hour)
	ctx := context.Background()

	st, err := env.Begin(ctx, tenantID, "e1", "h1")
	require.NoError(t, err)
	assert.Nil(t, st.Replay)

	_, err = env.Begin(ctx, tenantID, "e1", "h1")
	assert.True(t, apperror.HasCode(err, apperror.CodeIdempotency), "in flight")

	resp := &sale.SyncResponse{EnvelopeID: "e1"}
	require.NoError(t, env.Complete(ctx, tenantID, "e1", resp))

	st, err = env.Begin(ctx, tenantID, "e1", "h1")
	require.NoError(t, err)
	assert.Same(t, resp, st.Replay)

	_, err = env.Begin(ctx, tenantID, "e1", "h2")
	assert.Error(t, err)

	require.NoError(t, env.Fail(ctx, tenantID, "e1"))
	st, err = env.Begin(ctx, tenantID, "e1", "h1")
	require.NoError(t, err)
	assert.Nil(t, st.Replay, "failed envelope is claimed again")
}

func TestTenants(t *testing.T) {
	s := New()
	reg := s.Tenants()
	ctx := context.Background()

	acme := &tenant.Tenant{Slug: "acme", DisplayName: "Acme"}
	require.NoError(t, reg.Create(ctx, acme))
	assert.NotEmpty(t, acme.ID)
	assert.Equal(t, tenant.StatusActive, acme.Status)

	assert.ErrorIs(t, reg.Create(ctx, &tenant.Tenant{Slug: "acme"}), tenant.ErrSlugTaken)

	require.NoError(t, reg.UpdateStatusByID(ctx, acme.ID, tenant.StatusSuspended))
	active, err := reg.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	_, err = reg.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, tenant.ErrTenantNotFound)
}
