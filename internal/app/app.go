// Package app assembles storage, caches and services from configuration.
// cmd/server, cmd/worker and cmd/seed share this wiring.
package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"tillpoint/internal/config"
	corenumerator "tillpoint/internal/core/numerator"
	"tillpoint/internal/core/tenant"
	"tillpoint/internal/core/tx"
	"tillpoint/internal/domain/catalog"
	"tillpoint/internal/domain/costing"
	"tillpoint/internal/domain/lot"
	"tillpoint/internal/domain/sale"
	"tillpoint/internal/infrastructure/cache"
	"tillpoint/internal/infrastructure/http/v1/handlers"
	"tillpoint/internal/infrastructure/numerator"
	"tillpoint/internal/infrastructure/storage/memory"
	"tillpoint/internal/infrastructure/storage/postgres"
	"tillpoint/internal/infrastructure/storage/postgres/catalog_repo"
	"tillpoint/internal/infrastructure/storage/postgres/lot_repo"
	"tillpoint/internal/infrastructure/storage/postgres/sale_repo"
	"tillpoint/pkg/logger"
)

// App holds the wired components of one process.
type App struct {
	Config *config.Config
	Log    *logger.Logger

	// Set for the postgres driver only.
	Pool      *postgres.Pool
	TxManager *postgres.TxManager
	Envelopes *postgres.EnvelopeStore

	// Memory is set for the memory driver only.
	Memory *memory.Store

	// Redis is nil unless enabled.
	Redis redis.UniversalClient

	Tenants  tenant.Registry
	Resolver *tenant.Resolver
	Sales    *sale.Service
	Lots     *lot.Service
	Catalog  *catalog.Service

	HealthChecks map[string]handlers.Pinger

	closers []func()
}

// New connects to the configured backends and builds the services.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	a := &App{
		Config:       cfg,
		Log:          log,
		HealthChecks: make(map[string]handlers.Pinger),
	}

	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.Redis = client
		a.closers = append(a.closers, func() { _ = client.Close() })
		a.HealthChecks["redis"] = handlers.PingFunc(func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
		log.Infow("redis connection established", "addr", cfg.Redis.Addr)
	}

	var err error
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		err = a.buildPostgres(ctx)
	case config.DriverMemory:
		a.buildMemory()
	default:
		err = fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Resolver = tenant.NewResolver(a.Tenants, a.tenantCache())
	return a, nil
}

func (a *App) tenantCache() tenant.Cache {
	if a.Redis != nil {
		return cache.NewRedisTenantCache(a.Redis, "", a.Config.Redis.TenantCacheTTL)
	}
	return cache.NewLocalTenantCache(a.Config.Redis.TenantCacheTTL)
}

func (a *App) buildPostgres(ctx context.Context) error {
	cfg := a.Config.Database

	if cfg.AutoMigrate {
		if err := postgres.Migrate(ctx, cfg.URL); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		a.Log.Info("database migrations applied")
	}

	poolCfg := postgres.DefaultPoolConfig(cfg.URL)
	poolCfg.ApplicationName = a.Config.App.Name
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	a.Pool = pool
	a.closers = append(a.closers, pool.Close)
	a.HealthChecks["database"] = pool
	a.Log.Infow("database connection established", "max_conns", cfg.MaxConns)

	txOpts := postgres.DefaultTxOptions()
	txOpts.StatementTimeout = cfg.StatementTimeout
	txOpts.MaxRetries = cfg.TxMaxRetries
	txm := postgres.NewTxManager(pool).WithDefaults(txOpts)
	a.TxManager = txm

	audit, err := postgres.NewAuditService(txm)
	if err != nil {
		return fmt.Errorf("audit service: %w", err)
	}
	a.Envelopes = postgres.NewEnvelopeStore(txm, a.Config.Sync.EnvelopeTTL)

	lots := lot_repo.NewLotRepo(txm)
	a.Tenants = tenant.NewPostgresRegistry(pool.Pool)
	a.Lots = lot.NewService(lots)
	a.Catalog = catalog.NewService(catalog_repo.NewCatalogRepo(txm))
	a.Sales = a.newSaleService(
		sale_repo.NewSaleRepo(txm),
		lots,
		numerator.NewWithTxManager(txm),
		txm,
		sale.WithEventPublisher(postgres.NewOutboxPublisher(txm)),
		sale.WithAuditRecorder(audit),
		sale.WithEnvelopeStore(a.Envelopes),
	)
	return nil
}

func (a *App) buildMemory() {
	store := memory.New()
	a.Memory = store
	a.HealthChecks["database"] = store

	a.Tenants = store.Tenants()
	a.Lots = lot.NewService(store.Lots())
	a.Catalog = catalog.NewService(store.Catalog())
	a.Sales = a.newSaleService(
		store.Sales(),
		store.Lots(),
		corenumerator.NewMemoryGenerator(),
		store,
		sale.WithEventPublisher(store),
		sale.WithAuditRecorder(store),
		sale.WithEnvelopeStore(store.Envelopes(a.Config.Sync.EnvelopeTTL)),
	)
	a.Log.Warn("using in-memory storage, data is lost on restart")
}

func (a *App) newSaleService(
	repo sale.Repository,
	lots lot.Repository,
	gen corenumerator.Generator,
	txm tx.Manager,
	opts ...sale.Option,
) *sale.Service {
	engine := costing.NewEngine(lots, a.Config.Costing.InsufficientStockPolicy)
	opts = append(opts, sale.WithMaxSalesPerEnvelope(a.Config.Sync.MaxSalesPerEnvelope))
	return sale.NewService(repo, engine, gen, txm, opts...)
}

// Info reports non-secret runtime settings for /health/info.
func (a *App) Info() map[string]any {
	return map[string]any{
		"env":            a.Config.App.Env,
		"driver":         a.Config.Database.Driver,
		"costing_policy": a.Config.Costing.InsufficientStockPolicy.String(),
		"redis":          a.Redis != nil,
	}
}

// Close releases connections in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
