// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"tillpoint/internal/core/tenant"
	"tillpoint/internal/domain/catalog"
	"tillpoint/internal/domain/lot"
	"tillpoint/internal/domain/sale"
	"tillpoint/internal/infrastructure/http/v1/handlers"
	"tillpoint/internal/infrastructure/http/v1/middleware"
	"tillpoint/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	Logger   *logger.Logger
	Resolver *tenant.Resolver

	SaleService    *sale.Service
	LotService     *lot.Service
	CatalogService *catalog.Service

	// HealthChecks are pinged by /health/ready, keyed by dependency name.
	HealthChecks map[string]handlers.Pinger
	// HealthInfo adds runtime stats to /health/info. Optional.
	HealthInfo func() map[string]any
	Version    string

	CORSAllowOrigins []string
	Debug            bool
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(cors.New(corsConfig(cfg.CORSAllowOrigins)))
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints (no tenant required)
	healthHandler := handlers.NewHealthHandler(cfg.Version, cfg.HealthChecks, cfg.HealthInfo)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Tenant(cfg.Resolver))

	base := handlers.NewBaseHandler()
	registrars := []RouteRegistrar{
		handlers.NewSaleHandler(base, cfg.SaleService),
		handlers.NewLotHandler(base, cfg.LotService),
	}
	if cfg.CatalogService != nil {
		registrars = append(registrars, handlers.NewCatalogHandler(base, cfg.CatalogService))
	}
	for _, r := range registrars {
		r.RegisterRoutes(v1)
	}

	return router
}
