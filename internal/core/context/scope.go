package context

import (
	"context"
)

// Scope identifies who a request acts for: the tenant and, for POS traffic,
// the terminal that recorded the sale.
type Scope struct {
	TenantID   string
	TerminalID string
}

type scopeKey struct{}

// WithScope adds Scope to context.
func WithScope(ctx context.Context, s *Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// GetScope returns Scope from context.
func GetScope(ctx context.Context) *Scope {
	if v, ok := ctx.Value(scopeKey{}).(*Scope); ok {
		return v
	}
	return nil
}

// GetTenantID returns tenant ID from context or empty string.
func GetTenantID(ctx context.Context) string {
	if s := GetScope(ctx); s != nil {
		return s.TenantID
	}
	return ""
}

// GetTerminalID returns terminal ID from context or empty string.
func GetTerminalID(ctx context.Context) string {
	if s := GetScope(ctx); s != nil {
		return s.TerminalID
	}
	return ""
}
