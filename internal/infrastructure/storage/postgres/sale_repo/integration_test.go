//go:build integration

package sale_repo_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"tillpoint/internal/core/apperror"
	"tillpoint/internal/core/id"
	"tillpoint/internal/core/tenant"
	"tillpoint/internal/core/types"
	"tillpoint/internal/domain/catalog"
	"tillpoint/internal/domain/costing"
	"tillpoint/internal/domain/lot"
	"tillpoint/internal/domain/sale"
	"tillpoint/internal/infrastructure/numerator"
	"tillpoint/internal/infrastructure/storage/postgres"
	"tillpoint/internal/infrastructure/storage/postgres/catalog_repo"
	"tillpoint/internal/infrastructure/storage/postgres/lot_repo"
	"tillpoint/internal/infrastructure/storage/postgres/sale_repo"
)

type stack struct {
	pool      *postgres.Pool
	txm       *postgres.TxManager
	envelopes *postgres.EnvelopeStore
	lots      *lot.Service
	lotRepo   *lot_repo.LotRepo
	sales     *sale.Service
	tenantID  string
	product   id.ID
	location  id.ID
}

func newStack(t *testing.T, policy costing.Policy) *stack {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("tillpoint_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, postgres.Migrate(ctx, dsn))

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(dsn))
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	txm := postgres.NewTxManager(pool)

	tn := &tenant.Tenant{Slug: "corner-shop", DisplayName: "Corner shop"}
	require.NoError(t, tenant.NewPostgresRegistry(pool.Pool).Create(ctx, tn))

	cat := catalog.NewService(catalog_repo.NewCatalogRepo(txm))
	product, err := cat.CreateProduct(ctx, tn.ID, "TEA-01", "Green tea")
	require.NoError(t, err)
	location, err := cat.CreateLocation(ctx, tn.ID, "Main street")
	require.NoError(t, err)

	auditSvc, err := postgres.NewAuditService(txm)
	require.NoError(t, err)
	lotRepo := lot_repo.NewLotRepo(txm)
	envelopes := postgres.NewEnvelopeStore(txm, time.Hour)

	return &stack{
		pool:      pool,
		txm:       txm,
		envelopes: envelopes,
		lots:      lot.NewService(lotRepo),
		lotRepo:   lotRepo,
		sales: sale.NewService(
			sale_repo.NewSaleRepo(txm),
			costing.NewEngine(lotRepo, policy),
			numerator.NewWithTxManager(txm),
			txm,
			sale.WithEventPublisher(postgres.NewOutboxPublisher(txm)),
			sale.WithAuditRecorder(auditSvc),
			sale.WithEnvelopeStore(envelopes),
		),
		tenantID: tn.ID,
		product:  product.ID,
		location: location.ID,
	}
}

func (s *stack) receive(t *testing.T, qty, cost string, at time.Time) *lot.Lot {
	t.Helper()
	l, err := s.lots.Receive(context.Background(), s.tenantID, lot.ReceiveInput{
		ProductID:  s.product,
		LocationID: &s.location,
		Quantity:   types.MustQuantity(qty),
		UnitCost:   types.MustMoney(cost),
		ReceivedAt: at,
	})
	require.NoError(t, err)
	return l
}

func (s *stack) request(token, qty, price string) sale.Request {
	return sale.Request{
		Source:        sale.SourceOffline,
		LocationID:    &s.location,
		TempInvoiceNo: token,
		Items: []sale.LineRequest{{
			ProductID: s.product,
			Quantity:  types.MustQuantity(qty),
			SalePrice: types.MustMoney(price),
		}},
	}
}

func (s *stack) remaining(t *testing.T, lotID id.ID) string {
	t.Helper()
	l, err := s.lotRepo.Get(context.Background(), s.tenantID, lotID)
	require.NoError(t, err)
	return l.QtyRemaining.String()
}

func TestPostgres_IngestSaleFIFO(t *testing.T) {
	s := newStack(t, costing.PolicyReject)
	ctx := context.Background()
	base := time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)

	l1 := s.receive(t, "5", "1", base)
	l2 := s.receive(t, "5", "2", base.Add(time.Minute))
	l3 := s.receive(t, "5", "3", base.Add(2*time.Minute))

	res, err := s.sales.IngestSale(ctx, s.tenantID, s.request("TEMP-1", "7", "4"))
	require.NoError(t, err)
	assert.False(t, res.Duplicate)

	assert.Equal(t, "0", s.remaining(t, l1.ID))
	assert.Equal(t, "3", s.remaining(t, l2.ID))
	assert.Equal(t, "5", s.remaining(t, l3.ID))

	inv, err := s.sales.GetInvoice(ctx, s.tenantID, res.InvoiceID)
	require.NoError(t, err)
	assert.Equal(t, sale.StatusFinalized, inv.Status)
	assert.True(t, inv.TotalCost.Equal(types.MustMoney("9")))
	assert.True(t, inv.TotalProfit.Equal(types.MustMoney("19")))
	require.Len(t, inv.Lines, 1)
	require.Len(t, inv.Lines[0].Consumptions, 2)
	assert.Equal(t, l1.ID, inv.Lines[0].Consumptions[0].LotID)
	assert.True(t, inv.Lines[0].FIFOCost.Equal(types.MustMoney("1.285714")))

	again, err := s.sales.IngestSale(ctx, s.tenantID, s.request("TEMP-1", "7", "4"))
	require.NoError(t, err)
	assert.True(t, again.Duplicate)
	assert.Equal(t, res.InvoiceID, again.InvoiceID)
	assert.Equal(t, "3", s.remaining(t, l2.ID))

	history, err := s.sales.History(ctx, s.tenantID, res.InvoiceID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestPostgres_RejectLeavesLotsUntouched(t *testing.T) {
	s := newStack(t, costing.PolicyReject)
	l := s.receive(t, "2", "1", time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC))

	_, err := s.sales.IngestSale(context.Background(), s.tenantID, s.request("TEMP-2", "5", "4"))
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))
	assert.Equal(t, "2", s.remaining(t, l.ID))
}

func TestPostgres_ConcurrentSalesNeverOversell(t *testing.T) {
	s := newStack(t, costing.PolicyReject)
	l := s.receive(t, "5", "1", time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for _, token := range []string{"A", "B"} {
		wg.Add(1)
		go func(token string) {
			defer wg.Done()
			_, err := s.sales.IngestSale(context.Background(), s.tenantID, s.request(token, "3", "2"))
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}(token)
	}
	wg.Wait()

	assert.Equal(t, 1, accepted)
	assert.Equal(t, "2", s.remaining(t, l.ID))
}

func TestPostgres_ConcurrentDuplicateRecordsOnce(t *testing.T) {
	s := newStack(t, costing.PolicyReject)
	l := s.receive(t, "10", "1", time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC))

	var wg sync.WaitGroup
	results := make([]sale.Result, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := s.sales.IngestSale(context.Background(), s.tenantID, s.request("TEMP-SAME", "2", "3"))
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	for _, r := range results[1:] {
		assert.Equal(t, results[0].InvoiceID, r.InvoiceID)
	}
	assert.Equal(t, "8", s.remaining(t, l.ID))
}
