package v1_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tillpoint/internal/core/numerator"
	"tillpoint/internal/core/tenant"
	"tillpoint/internal/domain/catalog"
	"tillpoint/internal/domain/costing"
	"tillpoint/internal/domain/lot"
	"tillpoint/internal/domain/sale"
	v1 "tillpoint/internal/infrastructure/http/v1"
	"tillpoint/internal/infrastructure/http/v1/handlers"
	"tillpoint/internal/infrastructure/storage/memory"
	"tillpoint/pkg/logger"
)

type apiFixture struct {
	router   http.Handler
	store    *memory.Store
	tenantID string
}

func newAPI(t *testing.T, checks map[string]handlers.Pinger) *apiFixture {
	t.Helper()
	store := memory.New()

	tn := &tenant.Tenant{Slug: "corner", DisplayName: "Corner shop"}
	require.NoError(t, store.Tenants().Create(context.Background(), tn))

	svc := sale.NewService(
		store.Sales(),
		costing.NewEngine(store.Lots(), costing.PolicyReject),
		numerator.NewMemoryGenerator(),
		store,
		sale.WithEventPublisher(store),
		sale.WithAuditRecorder(store),
		sale.WithEnvelopeStore(store.Envelopes(time.Hour)),
	)

	if checks == nil {
		checks = map[string]handlers.Pinger{"database": store}
	}
	router := v1.NewRouter(v1.RouterConfig{
		Logger:         logger.NewNop(),
		Resolver:       tenant.NewResolver(store.Tenants(), nil),
		SaleService:    svc,
		LotService:     lot.NewService(store.Lots()),
		CatalogService: catalog.NewService(store.Catalog()),
		HealthChecks:   checks,
		Version:        "test",
	})
	return &apiFixture{router: router, store: store, tenantID: tn.ID}
}

func (f *apiFixture) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if f.tenantID != "" {
		req.Header.Set("X-Tenant-ID", f.tenantID)
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w, out
}

func (f *apiFixture) seedLot(t *testing.T, qty, cost string) (productID string) {
	t.Helper()
	w, product := f.do(t, http.MethodPost, "/api/v1/products", `{"sku":"TEA-01","name":"Green tea"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	productID = product["id"].(string)

	w, _ = f.do(t, http.MethodPost, "/api/v1/lots",
		`{"product_id":"`+productID+`","quantity":"`+qty+`","unit_cost":`+cost+`}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return productID
}

func saleBody(token, productID string, qty, price string) string {
	return `{"source":"offline","temp_invoice_no":"` + token + `","items":[` +
		`{"product_id":"` + productID + `","quantity":` + qty + `,"sale_price":"` + price + `"}]}`
}

func TestSales_IngestIdempotentAndReadBack(t *testing.T) {
	f := newAPI(t, nil)
	productID := f.seedLot(t, "10", "2")

	w, first := f.do(t, http.MethodPost, "/api/v1/sales", saleBody("TEMP-1", productID, "4", "5"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, first["ok"])
	assert.Equal(t, "TEMP-1", first["invoice_no"])
	assert.NotContains(t, first, "duplicate")

	w, second := f.do(t, http.MethodPost, "/api/v1/sales", saleBody("TEMP-1", productID, "4", "5"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, second["duplicate"])
	assert.Equal(t, first["invoice_id"], second["invoice_id"])

	invoiceID := first["invoice_id"].(string)
	w, inv := f.do(t, http.MethodGet, "/api/v1/sales/"+invoiceID, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "8", inv["total_cost"])
	assert.Equal(t, "12", inv["total_profit"])
	lines := inv["lines"].([]any)
	require.Len(t, lines, 1)
	assert.Len(t, lines[0].(map[string]any)["consumptions"], 1)

	w, history := f.do(t, http.MethodGet, "/api/v1/sales/"+invoiceID+"/history", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), history["count"])

	w, lots := f.do(t, http.MethodGet, "/api/v1/lots?product_id="+productID, "")
	require.Equal(t, http.StatusOK, w.Code)
	items := lots["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "6", items[0].(map[string]any)["qty_remaining"])
}

func TestSales_InsufficientStock(t *testing.T) {
	f := newAPI(t, nil)
	productID := f.seedLot(t, "2", "1")

	w, body := f.do(t, http.MethodPost, "/api/v1/sales", saleBody("TEMP-9", productID, "5", "3"))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "INSUFFICIENT_STOCK", body["code"])
	details := body["details"].(map[string]any)
	assert.Equal(t, "5", details["requested"])
	assert.Equal(t, "2", details["available"])
}

func TestSales_ValidationErrors(t *testing.T) {
	f := newAPI(t, nil)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"source":`},
		{"no items", `{"source":"offline","items":[]}`},
		{"bad source", `{"source":"kiosk","items":[{"product_id":"0191d5a0-0000-7000-8000-000000000009","quantity":1,"sale_price":1}]}`},
		{"zero quantity", `{"source":"online","items":[{"product_id":"0191d5a0-0000-7000-8000-000000000009","quantity":"0","sale_price":1}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := f.do(t, http.MethodPost, "/api/v1/sales", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "VALIDATION_ERROR", body["code"])
		})
	}
}

func TestSales_GetUnknownInvoice(t *testing.T) {
	f := newAPI(t, nil)

	w, body := f.do(t, http.MethodGet, "/api/v1/sales/0191d5a0-0000-7000-8000-0000000000ff", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", body["code"])

	w, _ = f.do(t, http.MethodGet, "/api/v1/sales/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSales_SyncEnvelope(t *testing.T) {
	f := newAPI(t, nil)
	productID := f.seedLot(t, "3", "1")

	body := `{"envelope_id":"env-1","terminal_id":"till-7","sales":[` +
		`{"client_ref":"q-1","sale":{"items":[{"product_id":"` + productID + `","quantity":2,"sale_price":2}]}},` +
		`{"client_ref":"q-2","sale":{"items":[{"product_id":"` + productID + `","quantity":2,"sale_price":2}]}}]}`

	w, resp := f.do(t, http.MethodPost, "/api/v1/sales/sync", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	statuses := resp["statuses"].([]any)
	require.Len(t, statuses, 2)
	assert.Equal(t, "accepted", statuses[0].(map[string]any)["status"])
	assert.Equal(t, "rejected", statuses[1].(map[string]any)["status"])
	assert.Equal(t, "INSUFFICIENT_STOCK", statuses[1].(map[string]any)["code"])

	w, replay := f.do(t, http.MethodPost, "/api/v1/sales/sync", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, resp, replay)
}

func TestTenantMiddleware(t *testing.T) {
	f := newAPI(t, nil)
	tenantID := f.tenantID

	f.tenantID = ""
	w, body := f.do(t, http.MethodGet, "/api/v1/products", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])

	f.tenantID = "0191d5a0-0000-7000-8000-0000000000aa"
	w, _ = f.do(t, http.MethodGet, "/api/v1/products", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	f.tenantID = tenantID
	require.NoError(t, f.store.Tenants().UpdateStatusByID(context.Background(), tenantID, tenant.StatusSuspended))
	w, body = f.do(t, http.MethodGet, "/api/v1/products", "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", body["code"])
}

func TestHealth(t *testing.T) {
	f := newAPI(t, map[string]handlers.Pinger{
		"database": handlers.PingFunc(func(context.Context) error { return nil }),
		"redis":    handlers.PingFunc(func(context.Context) error { return errors.New("connection refused") }),
	})
	f.tenantID = ""

	w, _ := f.do(t, http.MethodGet, "/health/live", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, body := f.do(t, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	checks := body["checks"].(map[string]any)
	assert.Equal(t, "healthy", checks["database"])
	assert.Equal(t, "unhealthy: connection refused", checks["redis"])

	w, body = f.do(t, http.MethodGet, "/health/info", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "test", body["version"])
}
