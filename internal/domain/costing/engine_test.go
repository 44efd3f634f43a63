package costing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tillpoint/internal/core/apperror"
	"tillpoint/internal/core/id"
	"tillpoint/internal/core/types"
	"tillpoint/internal/domain/lot"
)

const tenantID = "tenant-a"

// fakeLots is a single-pair lot ledger.
type fakeLots struct {
	lots       []lot.Lot
	decrements int
	failOn     int
}

func (f *fakeLots) ListOldestFirst(_ context.Context, _ string, _ id.ID, _ *id.ID) ([]lot.Lot, error) {
	out := make([]lot.Lot, len(f.lots))
	copy(out, f.lots)
	lot.SortOldestFirst(out)
	return out, nil
}

func (f *fakeLots) Decrement(_ context.Context, _ string, lotID id.ID, amount types.Quantity) error {
	f.decrements++
	if f.failOn > 0 && f.decrements == f.failOn {
		return errors.New("connection reset")
	}
	for i := range f.lots {
		if f.lots[i].ID == lotID {
			return f.lots[i].Take(amount)
		}
	}
	return apperror.NewNotFound("lot", lotID)
}

func (f *fakeLots) Create(_ context.Context, l *lot.Lot) error {
	f.lots = append(f.lots, *l)
	return nil
}

func (f *fakeLots) Get(_ context.Context, _ string, lotID id.ID) (*lot.Lot, error) {
	for i := range f.lots {
		if f.lots[i].ID == lotID {
			l := f.lots[i]
			return &l, nil
		}
	}
	return nil, apperror.NewNotFound("lot", lotID)
}

func (f *fakeLots) remaining(i int) string {
	return f.lots[i].QtyRemaining.String()
}

func newLots(qtys, costs []string) *fakeLots {
	t0 := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	f := &fakeLots{}
	for i := range qtys {
		f.lots = append(f.lots, lot.Lot{
			ID:           id.New(),
			TenantID:     tenantID,
			QtyReceived:  types.MustQuantity(qtys[i]),
			QtyRemaining: types.MustQuantity(qtys[i]),
			UnitCost:     types.MustMoney(costs[i]),
			CreatedAt:    t0.Add(time.Duration(i) * time.Hour),
		})
	}
	return f
}

func TestEngine_FIFOOrder(t *testing.T) {
	lots := newLots([]string{"5", "5", "5"}, []string{"1", "2", "3"})
	engine := NewEngine(lots, PolicyReject)

	res, err := engine.CostAndConsume(context.Background(), tenantID, id.New(), nil, types.MustQuantity("7"))
	require.NoError(t, err)

	assert.True(t, res.TotalCost.Equal(types.MustMoney("9")), "total cost %s", res.TotalCost)
	assert.True(t, res.UnitCost.Equal(types.MustMoney("1.285714")), "unit cost %s", res.UnitCost)
	assert.True(t, res.Shortfall.IsZero())

	assert.Equal(t, "0", lots.remaining(0))
	assert.Equal(t, "3", lots.remaining(1))
	assert.Equal(t, "5", lots.remaining(2))

	require.Len(t, res.Consumed, 2)
	assert.Equal(t, lots.lots[0].ID, res.Consumed[0].LotID)
	assert.Equal(t, "5", res.Consumed[0].Quantity.String())
	assert.Equal(t, lots.lots[1].ID, res.Consumed[1].LotID)
	assert.Equal(t, "2", res.Consumed[1].Quantity.String())
}

func TestEngine_SkipsExhaustedLots(t *testing.T) {
	lots := newLots([]string{"0", "4"}, []string{"9", "1.5"})
	engine := NewEngine(lots, PolicyReject)

	res, err := engine.CostAndConsume(context.Background(), tenantID, id.New(), nil, types.MustQuantity("2.5"))
	require.NoError(t, err)

	require.Len(t, res.Consumed, 1)
	assert.Equal(t, lots.lots[1].ID, res.Consumed[0].LotID)
	assert.True(t, res.TotalCost.Equal(types.MustMoney("3.75")))
	assert.Equal(t, "1.5", lots.remaining(1))
	assert.Equal(t, 1, lots.decrements)
}

func TestEngine_RejectsNonPositiveQuantity(t *testing.T) {
	engine := NewEngine(newLots([]string{"5"}, []string{"1"}), PolicyReject)

	for _, q := range []string{"0", "-1"} {
		_, err := engine.CostAndConsume(context.Background(), tenantID, id.New(), nil, types.MustQuantity(q))
		assert.True(t, apperror.HasCode(err, apperror.CodeInvalidQuantity), q)
	}
}

func TestEngine_InsufficientStockPolicies(t *testing.T) {
	tests := []struct {
		name          string
		policy        Policy
		wantErr       bool
		wantTotal     string
		wantShortfall string
	}{
		{name: "reject", policy: PolicyReject, wantErr: true},
		{name: "zero cost", policy: PolicyZeroCost, wantTotal: "7", wantShortfall: "2"},
		{name: "last cost", policy: PolicyLastCost, wantTotal: "17", wantShortfall: "2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// 2@1 + 1@5 available, 5 demanded.
			lots := newLots([]string{"2", "1"}, []string{"1", "5"})
			engine := NewEngine(lots, tt.policy)

			res, err := engine.CostAndConsume(context.Background(), tenantID, id.New(), nil, types.MustQuantity("5"))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperror.IsInsufficientStock(err))
				appErr, _ := apperror.AsAppError(err)
				assert.Equal(t, "5", appErr.Details["requested"])
				assert.Equal(t, "3", appErr.Details["available"])
				assert.Equal(t, 0, lots.decrements, "nothing consumed on reject")
				assert.Equal(t, "2", lots.remaining(0))
				return
			}

			require.NoError(t, err)
			assert.True(t, res.TotalCost.Equal(types.MustMoney(tt.wantTotal)), "total %s", res.TotalCost)
			assert.Equal(t, tt.wantShortfall, res.Shortfall.String())
			assert.Equal(t, "0", lots.remaining(0))
			assert.Equal(t, "0", lots.remaining(1))
		})
	}
}

func TestEngine_LastCostWithoutLots(t *testing.T) {
	engine := NewEngine(&fakeLots{}, PolicyLastCost)

	_, err := engine.CostAndConsume(context.Background(), tenantID, id.New(), nil, types.MustQuantity("1"))
	assert.True(t, apperror.IsInsufficientStock(err))
}

func TestEngine_LastCostUsesNewestExhaustedLot(t *testing.T) {
	lots := newLots([]string{"0", "0"}, []string{"1", "2"})
	engine := NewEngine(lots, PolicyLastCost)

	res, err := engine.CostAndConsume(context.Background(), tenantID, id.New(), nil, types.MustQuantity("3"))
	require.NoError(t, err)
	assert.Empty(t, res.Consumed)
	assert.True(t, res.TotalCost.Equal(types.MustMoney("6")))
	assert.True(t, res.UnitCost.Equal(types.MustMoney("2")))
}

func TestEngine_DecrementFailureIsPersistence(t *testing.T) {
	lots := newLots([]string{"1", "1"}, []string{"1", "1"})
	lots.failOn = 2
	engine := NewEngine(lots, PolicyReject)

	_, err := engine.CostAndConsume(context.Background(), tenantID, id.New(), nil, types.MustQuantity("2"))
	assert.True(t, apperror.HasCode(err, apperror.CodePersistence))
}

func TestEngine_NeverNegative(t *testing.T) {
	lots := newLots([]string{"3", "2.5", "1"}, []string{"1", "1", "1"})
	engine := NewEngine(lots, PolicyZeroCost)

	for _, q := range []string{"1.25", "2", "4", "1"} {
		_, err := engine.CostAndConsume(context.Background(), tenantID, id.New(), nil, types.MustQuantity(q))
		require.NoError(t, err)
		for i := range lots.lots {
			assert.False(t, lots.lots[i].QtyRemaining.IsNegative())
		}
	}
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyReject, p)

	p, err = ParsePolicy(" LAST_COST ")
	require.NoError(t, err)
	assert.Equal(t, PolicyLastCost, p)

	_, err = ParsePolicy("average")
	assert.Error(t, err)
}
