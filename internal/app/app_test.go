package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tillpoint/internal/app"
	"tillpoint/internal/config"
	"tillpoint/internal/core/tenant"
	"tillpoint/internal/core/types"
	"tillpoint/internal/domain/costing"
	"tillpoint/internal/domain/lot"
	"tillpoint/internal/domain/sale"
	"tillpoint/pkg/logger"
)

func memoryConfig() *config.Config {
	return &config.Config{
		App:      config.AppConfig{Name: "tillpoint", Env: "test"},
		Database: config.DatabaseConfig{Driver: config.DriverMemory},
		Redis:    config.RedisConfig{TenantCacheTTL: time.Minute},
		Costing:  config.CostingConfig{InsufficientStockPolicy: costing.PolicyReject},
		Sync:     config.SyncConfig{EnvelopeTTL: time.Hour, MaxSalesPerEnvelope: 10},
	}
}

func TestNew_MemoryDriver(t *testing.T) {
	ctx := context.Background()
	a, err := app.New(ctx, memoryConfig(), logger.NewNop())
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Memory)
	assert.Nil(t, a.Pool)
	assert.Contains(t, a.HealthChecks, "database")
	assert.NotContains(t, a.HealthChecks, "redis")

	tn := &tenant.Tenant{Slug: "kiosk", DisplayName: "Kiosk"}
	require.NoError(t, a.Tenants.Create(ctx, tn))
	resolved, err := a.Resolver.Resolve(ctx, tn.ID)
	require.NoError(t, err)
	assert.Equal(t, "kiosk", resolved.Slug)

	product, err := a.Catalog.CreateProduct(ctx, tn.ID, "COLA", "Cola 330ml")
	require.NoError(t, err)

	_, err = a.Lots.Receive(ctx, tn.ID, lot.ReceiveInput{
		ProductID: product.ID,
		Quantity:  types.MustQuantity("3"),
		UnitCost:  types.MustMoney("0.5"),
	})
	require.NoError(t, err)

	res, err := a.Sales.IngestSale(ctx, tn.ID, sale.Request{
		Source: sale.SourceOnline,
		Items: []sale.LineRequest{
			{ProductID: product.ID, Quantity: types.MustQuantity("2"), SalePrice: types.MustMoney("1")},
		},
	})
	require.NoError(t, err)
	assert.False(t, res.Duplicate)

	info := a.Info()
	assert.Equal(t, "memory", info["driver"])
	assert.Equal(t, "reject", info["costing_policy"])
	assert.Equal(t, false, info["redis"])
}

func TestNew_UnknownDriver(t *testing.T) {
	cfg := memoryConfig()
	cfg.Database.Driver = "sqlite"

	_, err := app.New(context.Background(), cfg, logger.NewNop())
	assert.ErrorContains(t, err, "unknown database driver")
}
