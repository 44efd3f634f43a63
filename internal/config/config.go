// Package config loads process configuration from config.toml and
// TILLPOINT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"tillpoint/internal/domain/costing"
)

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds all application configuration.
type Config struct {
	App      AppConfig
	Log      LogConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Costing  CostingConfig
	HTTP     HTTPConfig
	Sync     SyncConfig
	Worker   WorkerConfig
}

type AppConfig struct {
	Name string
	Env  string
	Port string
}

type LogConfig struct {
	Level       string // debug, info, warn, error
	Development bool
}

type DatabaseConfig struct {
	Driver           string // postgres or memory
	URL              string
	MaxConns         int32
	MinConns         int32
	StatementTimeout time.Duration
	TxMaxRetries     int
	AutoMigrate      bool
}

type RedisConfig struct {
	Enabled        bool
	Addr           string
	Password       string
	DB             int
	TenantCacheTTL time.Duration
	EventsChannel  string // channel prefix, the event type is appended
}

type CostingConfig struct {
	InsufficientStockPolicy costing.Policy
}

type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	CORSAllowOrigins []string
}

type SyncConfig struct {
	EnvelopeTTL         time.Duration
	MaxSalesPerEnvelope int
}

type WorkerConfig struct {
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	CleanupInterval    time.Duration
	PoolStatsInterval  time.Duration
}

// IsDevelopment reports whether the app runs in the development environment.
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// Load reads configuration.
// Priority (highest to lowest):
// 1. Environment variables with TILLPOINT_ prefix (e.g. TILLPOINT_DATABASE_URL)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/tillpoint")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("TILLPOINT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	policy, err := costing.ParsePolicy(v.GetString("costing.insufficient_stock_policy"))
	if err != nil {
		return nil, fmt.Errorf("costing.insufficient_stock_policy: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Log: LogConfig{
			Level:       v.GetString("log.level"),
			Development: v.GetBool("log.development"),
		},
		Database: DatabaseConfig{
			Driver:           strings.ToLower(v.GetString("database.driver")),
			URL:              v.GetString("database.url"),
			MaxConns:         v.GetInt32("database.max_conns"),
			MinConns:         v.GetInt32("database.min_conns"),
			StatementTimeout: v.GetDuration("database.statement_timeout"),
			TxMaxRetries:     v.GetInt("database.tx_max_retries"),
			AutoMigrate:      v.GetBool("database.auto_migrate"),
		},
		Redis: RedisConfig{
			Enabled:        v.GetBool("redis.enabled"),
			Addr:           v.GetString("redis.addr"),
			Password:       v.GetString("redis.password"),
			DB:             v.GetInt("redis.db"),
			TenantCacheTTL: v.GetDuration("redis.tenant_cache_ttl"),
			EventsChannel:  v.GetString("redis.events_channel"),
		},
		Costing: CostingConfig{
			InsufficientStockPolicy: policy,
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
		},
		Sync: SyncConfig{
			EnvelopeTTL:         v.GetDuration("sync.envelope_ttl"),
			MaxSalesPerEnvelope: v.GetInt("sync.max_sales_per_envelope"),
		},
		Worker: WorkerConfig{
			OutboxPollInterval: v.GetDuration("worker.outbox_poll_interval"),
			OutboxBatchSize:    v.GetInt("worker.outbox_batch_size"),
			CleanupInterval:    v.GetDuration("worker.cleanup_interval"),
			PoolStatsInterval:  v.GetDuration("worker.pool_stats_interval"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults sets default values for any empty config fields.
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "tillpoint"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverPostgres
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 25
	}
	if cfg.Database.MinConns == 0 {
		cfg.Database.MinConns = 2
	}
	if cfg.Database.StatementTimeout == 0 {
		cfg.Database.StatementTimeout = 30 * time.Second
	}
	if cfg.Database.TxMaxRetries == 0 {
		cfg.Database.TxMaxRetries = 3
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Redis.TenantCacheTTL == 0 {
		cfg.Redis.TenantCacheTTL = time.Minute
	}
	if cfg.Redis.EventsChannel == "" {
		cfg.Redis.EventsChannel = "tillpoint."
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 30 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if len(cfg.HTTP.CORSAllowOrigins) == 0 {
		cfg.HTTP.CORSAllowOrigins = []string{"*"}
	}
	if cfg.Sync.EnvelopeTTL == 0 {
		cfg.Sync.EnvelopeTTL = 72 * time.Hour
	}
	if cfg.Sync.MaxSalesPerEnvelope == 0 {
		cfg.Sync.MaxSalesPerEnvelope = 500
	}
	if cfg.Worker.OutboxPollInterval == 0 {
		cfg.Worker.OutboxPollInterval = 2 * time.Second
	}
	if cfg.Worker.OutboxBatchSize == 0 {
		cfg.Worker.OutboxBatchSize = 100
	}
	if cfg.Worker.CleanupInterval == 0 {
		cfg.Worker.CleanupInterval = 10 * time.Minute
	}
	if cfg.Worker.PoolStatsInterval == 0 {
		cfg.Worker.PoolStatsInterval = time.Minute
	}
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("database.url is required for the %s driver", DriverPostgres)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", DriverPostgres, DriverMemory, c.Database.Driver)
	}
	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("database.min_conns (%d) exceeds database.max_conns (%d)", c.Database.MinConns, c.Database.MaxConns)
	}
	if c.Database.TxMaxRetries < 0 {
		return fmt.Errorf("database.tx_max_retries must not be negative")
	}
	if c.Sync.MaxSalesPerEnvelope < 0 {
		return fmt.Errorf("sync.max_sales_per_envelope must not be negative")
	}
	if c.Worker.OutboxBatchSize < 0 {
		return fmt.Errorf("worker.outbox_batch_size must not be negative")
	}
	return nil
}
