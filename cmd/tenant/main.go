// Package main provides CLI for tenant management.
// Usage: tenant create --slug acme --name "ACME Corp"
//
//	tenant list
//	tenant migrate up|down|version|steps <n>|force <version>
//	tenant suspend <tenant-id>
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"tillpoint/internal/config"
	"tillpoint/internal/core/tenant"
	"tillpoint/internal/infrastructure/cache"
	"tillpoint/internal/infrastructure/storage/postgres"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx := context.Background()

	switch os.Args[1] {
	case "create":
		createTenant(ctx)
	case "list":
		listTenants(ctx)
	case "migrate":
		migrate(ctx)
	case "suspend":
		setStatus(ctx, tenant.StatusSuspended)
	case "activate":
		setStatus(ctx, tenant.StatusActive)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Tillpoint Tenant Management CLI

Usage:
  tenant <command> [options]

Commands:
  create    Create a new tenant
  list      List all tenants
  migrate   Apply or inspect schema migrations
  suspend   Suspend a tenant
  activate  Activate a suspended tenant
  help      Show this help

Environment Variables:
  TILLPOINT_DATABASE_URL     PostgreSQL connection string (required)
  TILLPOINT_REDIS_ENABLED    Evict cached tenants on status change
  TILLPOINT_REDIS_ADDR       Redis address

Examples:
  tenant create --slug acme --name "ACME Corporation"
  tenant list
  tenant migrate up
  tenant migrate steps -1
  tenant suspend <tenant-uuid>
  tenant activate <tenant-uuid>`)
}

func fail(format string, args ...any) {
	fmt.Printf("Error: "+format+"\n", args...)
	os.Exit(1)
}

func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		fail("%v", err)
	}
	if cfg.Database.Driver != config.DriverPostgres {
		fail("tenant management requires the postgres driver, got %q", cfg.Database.Driver)
	}
	return cfg
}

func openPool(ctx context.Context, cfg *config.Config) *postgres.Pool {
	poolCfg := postgres.DefaultPoolConfig(cfg.Database.URL)
	poolCfg.ApplicationName = "tillpoint-tenant"
	poolCfg.MaxConns = 2
	poolCfg.MinConns = 0

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		fail("connecting to database: %v", err)
	}
	return pool
}

func createTenant(ctx context.Context) {
	var input tenant.CreateTenantInput

	// Parse arguments
	for i := 2; i < len(os.Args); i++ {
		switch os.Args[i] {
		case "--slug":
			if i+1 < len(os.Args) {
				input.Slug = os.Args[i+1]
				i++
			}
		case "--name":
			if i+1 < len(os.Args) {
				input.DisplayName = os.Args[i+1]
				i++
			}
		}
	}

	if err := input.Validate(); err != nil {
		fmt.Println("Usage: tenant create --slug <slug> --name <name>")
		fail("%v", err)
	}

	cfg := loadConfig()
	pool := openPool(ctx, cfg)
	defer pool.Close()

	t := &tenant.Tenant{
		Slug:        input.Slug,
		DisplayName: strings.TrimSpace(input.DisplayName),
		Status:      tenant.StatusActive,
	}
	if err := tenant.NewPostgresRegistry(pool.Pool).Create(ctx, t); err != nil {
		fail("registering tenant: %v", err)
	}

	fmt.Printf("✓ Tenant '%s' created\n", t.Slug)
	fmt.Printf("  Tenant ID: %s\n", t.ID)
	fmt.Printf("  Status: %s\n", t.Status)
}

func listTenants(ctx context.Context) {
	cfg := loadConfig()
	pool := openPool(ctx, cfg)
	defer pool.Close()

	tenants, err := tenant.NewPostgresRegistry(pool.Pool).ListAll(ctx)
	if err != nil {
		fail("listing tenants: %v", err)
	}

	if len(tenants) == 0 {
		fmt.Println("No tenants found")
		return
	}

	fmt.Printf("%-36s %-20s %-30s %-10s\n", "TENANT_ID", "SLUG", "NAME", "STATUS")
	fmt.Println(strings.Repeat("-", 99))

	for _, t := range tenants {
		fmt.Printf("%-36s %-20s %-30s %-10s\n",
			t.ID,
			truncate(t.Slug, 20),
			truncate(t.DisplayName, 30),
			t.Status,
		)
	}
}

func setStatus(ctx context.Context, status tenant.Status) {
	if len(os.Args) < 3 {
		fmt.Printf("Usage: tenant %s <tenant-uuid>\n", os.Args[1])
		os.Exit(1)
	}
	tenantID := os.Args[2]

	cfg := loadConfig()
	pool := openPool(ctx, cfg)
	defer pool.Close()

	var tenantCache tenant.Cache
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		tenantCache = cache.NewRedisTenantCache(client, "", cfg.Redis.TenantCacheTTL)
	}

	resolver := tenant.NewResolver(tenant.NewPostgresRegistry(pool.Pool), tenantCache)
	if err := resolver.SetStatus(ctx, tenantID, status); err != nil {
		fail("%v", err)
	}

	fmt.Printf("✓ Tenant '%s' is now %s\n", tenantID, status)
}

func migrate(ctx context.Context) {
	if len(os.Args) < 3 {
		fmt.Println("Usage: tenant migrate up|down|version|steps <n>|force <version>")
		os.Exit(1)
	}

	cfg := loadConfig()
	m, err := postgres.NewMigrator(cfg.Database.URL)
	if err != nil {
		fail("%v", err)
	}
	defer m.Close()

	switch os.Args[2] {
	case "up":
		err = m.Up(ctx)
	case "down":
		err = m.Down(ctx)
	case "steps":
		err = m.Steps(ctx, intArg(3))
	case "force":
		err = m.Force(ctx, intArg(3))
	case "version":
	default:
		fail("unknown migrate command %q", os.Args[2])
	}
	if err != nil {
		fail("%v", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		fail("%v", err)
	}
	fmt.Printf("schema version %d (dirty: %t)\n", version, dirty)
}

func intArg(pos int) int {
	if len(os.Args) <= pos {
		fail("missing numeric argument")
	}
	n, err := strconv.Atoi(os.Args[pos])
	if err != nil {
		fail("invalid number %q", os.Args[pos])
	}
	return n
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
