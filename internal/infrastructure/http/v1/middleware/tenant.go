package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"tillpoint/internal/core/apperror"
	appctx "tillpoint/internal/core/context"
	"tillpoint/internal/core/tenant"
	"tillpoint/pkg/logger"
)

const (
	// TenantHeader is the HTTP header for tenant identification.
	TenantHeader = "X-Tenant-ID"

	// TerminalHeader names the POS terminal submitting the request. Optional.
	TerminalHeader = "X-Terminal-ID"
)

// Tenant middleware resolves the tenant from X-Tenant-ID and puts it, with
// the terminal id, into the request context. Suspended tenants get 403.
func Tenant(resolver *tenant.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		rawTenantID := c.GetHeader(TenantHeader)
		if rawTenantID == "" {
			_ = c.Error(
				apperror.NewValidation("tenant is required").
					WithDetail("header", TenantHeader),
			)
			c.Abort()
			return
		}

		tenantUUID, err := uuid.Parse(rawTenantID)
		if err != nil {
			_ = c.Error(
				apperror.NewValidation("invalid tenant id").
					WithDetail("header", TenantHeader).
					WithDetail("value", rawTenantID),
			)
			c.Abort()
			return
		}
		tenantID := tenantUUID.String()

		t, err := resolver.Resolve(ctx, tenantID)
		if err != nil {
			logger.Warn(ctx, "tenant resolution failed", "tenant_id", tenantID, "error", err)

			switch {
			case errors.Is(err, tenant.ErrTenantNotFound):
				_ = c.Error(apperror.NewNotFound("tenant", tenantID))
			case errors.Is(err, tenant.ErrTenantNotActive):
				_ = c.Error(apperror.NewForbidden("tenant is not active").WithDetail("tenant_id", tenantID))
			default:
				_ = c.Error(apperror.NewInternal(err).WithDetail("tenant_id", tenantID))
			}
			c.Abort()
			return
		}

		ctx = appctx.WithScope(ctx, &appctx.Scope{
			TenantID:   t.ID,
			TerminalID: c.GetHeader(TerminalHeader),
		})
		c.Request = c.Request.WithContext(ctx)
		c.Set("tenant_id", t.ID)

		c.Next()
	}
}
