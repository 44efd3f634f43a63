package v1

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"tillpoint/internal/infrastructure/http/v1/handlers"
	"tillpoint/internal/infrastructure/http/v1/middleware"
)

// RouteRegistrar is implemented by handlers that mount their own routes.
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

var (
	_ RouteRegistrar = (*handlers.SaleHandler)(nil)
	_ RouteRegistrar = (*handlers.LotHandler)(nil)
	_ RouteRegistrar = (*handlers.CatalogHandler)(nil)
)

// corsConfig allows every origin when the list holds "*".
func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	allowAll := len(origins) == 0
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
	}
	if allowAll {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	cfg.AddAllowHeaders(
		middleware.TenantHeader,
		middleware.TerminalHeader,
		middleware.HeaderRequestID,
		middleware.HeaderTraceID,
	)
	cfg.AddExposeHeaders(middleware.HeaderRequestID, middleware.HeaderTraceID)
	return cfg
}
