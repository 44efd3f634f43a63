package lot_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tillpoint/internal/core/apperror"
	"tillpoint/internal/core/id"
	"tillpoint/internal/core/types"
	"tillpoint/internal/domain/lot"
	"tillpoint/internal/infrastructure/storage/memory"
)

const tenantID = "0191d5a0-0000-7000-8000-000000000001"

func TestService_ReceiveAndList(t *testing.T) {
	ctx := context.Background()
	svc := lot.NewService(memory.New().Lots())
	product, location := id.New(), id.New()
	base := time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)

	newer, err := svc.Receive(ctx, tenantID, lot.ReceiveInput{
		ProductID: product, LocationID: &location,
		Quantity: types.MustQuantity("5"), UnitCost: types.MustMoney("2"),
		ReceivedAt: base.Add(time.Hour),
	})
	require.NoError(t, err)
	older, err := svc.Receive(ctx, tenantID, lot.ReceiveInput{
		ProductID: product, LocationID: &location,
		Quantity: types.MustQuantity("3"), UnitCost: types.MustMoney("1"),
		ReceivedAt: base,
	})
	require.NoError(t, err)
	assert.True(t, older.QtyRemaining.Equal(older.QtyReceived))

	lots, err := svc.List(ctx, tenantID, product, &location)
	require.NoError(t, err)
	require.Len(t, lots, 2)
	assert.Equal(t, older.ID, lots[0].ID)
	assert.Equal(t, newer.ID, lots[1].ID)

	// The unscoped pool is a separate queue.
	unscoped, err := svc.List(ctx, tenantID, product, nil)
	require.NoError(t, err)
	assert.Empty(t, unscoped)
}

func TestService_ReceiveValidation(t *testing.T) {
	ctx := context.Background()
	svc := lot.NewService(memory.New().Lots())

	tests := []struct {
		name string
		in   lot.ReceiveInput
	}{
		{"missing product", lot.ReceiveInput{Quantity: types.MustQuantity("1"), UnitCost: types.MustMoney("1")}},
		{"zero quantity", lot.ReceiveInput{ProductID: id.New(), Quantity: types.MustQuantity("0"), UnitCost: types.MustMoney("1")}},
		{"negative cost", lot.ReceiveInput{ProductID: id.New(), Quantity: types.MustQuantity("1"), UnitCost: types.MustMoney("-1")}},
		{"too many digits", lot.ReceiveInput{ProductID: id.New(), Quantity: types.MustQuantity("1.00001"), UnitCost: types.MustMoney("1")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Receive(ctx, tenantID, tt.in)
			assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
		})
	}
}
