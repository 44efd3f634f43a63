// Package main provides a CLI tool for seeding a demo tenant with products and stock.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"tillpoint/internal/app"
	"tillpoint/internal/config"
	"tillpoint/internal/core/apperror"
	"tillpoint/internal/core/tenant"
	"tillpoint/internal/core/types"
	"tillpoint/internal/domain/catalog"
	"tillpoint/internal/domain/lot"
	"tillpoint/internal/domain/sale"
	"tillpoint/pkg/logger"
)

type demoProduct struct {
	sku   string
	name  string
	lots  []demoLot
	price string
}

type demoLot struct {
	qty  string
	cost string
}

var demoProducts = []demoProduct{
	{sku: "COFFEE-250", name: "Ground coffee 250g", price: "7.90", lots: []demoLot{{"20", "4.10"}, {"20", "4.35"}}},
	{sku: "MILK-1L", name: "Milk 1L", price: "1.49", lots: []demoLot{{"48", "0.82"}}},
	{sku: "APPLE-KG", name: "Apples (kg)", price: "2.80", lots: []demoLot{{"12.5", "1.20"}, {"30", "1.05"}}},
}

func main() {
	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalw("failed to load config", "error", err)
	}

	ctx := context.Background()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to initialize application", "error", err)
	}
	defer a.Close()

	slug := os.Getenv("SEED_TENANT_SLUG")
	if slug == "" {
		slug = "demo"
	}

	t, err := ensureTenant(ctx, a.Tenants, slug)
	if err != nil {
		log.Fatalw("failed to seed tenant", "error", err)
	}
	log.Infow("tenant ready", "tenant_id", t.ID, "slug", t.Slug)

	store, err := ensureLocation(ctx, a.Catalog, t.ID, "Main store")
	if err != nil {
		log.Fatalw("failed to seed location", "error", err)
	}

	products, err := seedProducts(ctx, a, t.ID, store, log)
	if err != nil {
		log.Fatalw("failed to seed products", "error", err)
	}

	if os.Getenv("SEED_DEMO_SALE") == "true" {
		if err := seedSale(ctx, a.Sales, t.ID, store, products, log); err != nil {
			log.Fatalw("failed to seed demo sale", "error", err)
		}
	}

	log.Info("seeding completed successfully")
}

func ensureTenant(ctx context.Context, registry tenant.Registry, slug string) (*tenant.Tenant, error) {
	all, err := registry.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range all {
		if t.Slug == slug {
			return t, nil
		}
	}

	t := &tenant.Tenant{Slug: slug, DisplayName: "Demo shop", Status: tenant.StatusActive}
	if err := registry.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func ensureLocation(ctx context.Context, svc *catalog.Service, tenantID, name string) (*catalog.Location, error) {
	existing, err := svc.ListLocations(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	for i := range existing {
		if existing[i].Name == name {
			return &existing[i], nil
		}
	}
	return svc.CreateLocation(ctx, tenantID, name)
}

// seedProducts creates missing products and stocks only the new ones, so a
// rerun does not receive the same lots twice.
func seedProducts(ctx context.Context, a *app.App, tenantID string, loc *catalog.Location, log *logger.Logger) (map[string]*catalog.Product, error) {
	out := make(map[string]*catalog.Product, len(demoProducts))

	existing, err := a.Catalog.ListProducts(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	for i := range existing {
		out[existing[i].SKU] = &existing[i]
	}

	for _, dp := range demoProducts {
		if _, ok := out[dp.sku]; ok {
			log.Infow("product already exists", "sku", dp.sku)
			continue
		}

		p, err := a.Catalog.CreateProduct(ctx, tenantID, dp.sku, dp.name)
		if err != nil {
			if apperror.HasCode(err, apperror.CodeDuplicate) {
				continue
			}
			return nil, err
		}
		out[dp.sku] = p

		receivedAt := time.Now().UTC().Add(-time.Duration(len(dp.lots)) * time.Hour)
		for _, dl := range dp.lots {
			l, err := a.Lots.Receive(ctx, tenantID, lot.ReceiveInput{
				ProductID:  p.ID,
				LocationID: &loc.ID,
				Quantity:   types.MustQuantity(dl.qty),
				UnitCost:   types.MustMoney(dl.cost),
				ReceivedAt: receivedAt,
			})
			if err != nil {
				return nil, fmt.Errorf("receive lot for %s: %w", dp.sku, err)
			}
			receivedAt = receivedAt.Add(time.Hour)
			log.Infow("lot received", "sku", dp.sku, "lot_id", l.ID, "qty", dl.qty, "unit_cost", dl.cost)
		}
	}
	return out, nil
}

func seedSale(ctx context.Context, svc *sale.Service, tenantID string, loc *catalog.Location, products map[string]*catalog.Product, log *logger.Logger) error {
	req := sale.Request{
		Source:        sale.SourceOffline,
		LocationID:    &loc.ID,
		TempInvoiceNo: "SEED-0001",
	}
	for _, dp := range demoProducts[:2] {
		p, ok := products[dp.sku]
		if !ok {
			continue
		}
		req.Items = append(req.Items, sale.LineRequest{
			ProductID: p.ID,
			Quantity:  types.MustQuantity("2"),
			SalePrice: types.MustMoney(dp.price),
		})
	}

	res, err := svc.IngestSale(ctx, tenantID, req)
	if err != nil {
		return err
	}
	log.Infow("demo sale ingested", "invoice_id", res.InvoiceID, "invoice_no", res.InvoiceNo, "duplicate", res.Duplicate)
	return nil
}
