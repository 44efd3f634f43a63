package numerator

import (
	"context"
	"fmt"
	"time"
)

// Generator generates sequential document numbers per tenant.
type Generator interface {
	// GetNextNumber generates the next number, e.g. INV-2026-00001.
	GetNextNumber(ctx context.Context, tenantID string, cfg Config, opts *Options, period time.Time) (string, error)

	// SetNextNumber sets the current sequence value (for data migration).
	SetNextNumber(ctx context.Context, tenantID string, cfg Config, period time.Time, value int64) error
}

// SequenceKey names the sequence row a number belongs to.
func SequenceKey(cfg Config, period time.Time) string {
	switch cfg.ResetPeriod {
	case "month":
		return fmt.Sprintf("%s_%s", cfg.Prefix, period.Format("2006_01"))
	case "year":
		return fmt.Sprintf("%s_%s", cfg.Prefix, period.Format("2006"))
	default:
		return cfg.Prefix
	}
}

// Format renders the final number string.
func Format(cfg Config, period time.Time, num int64) string {
	padWidth := cfg.PadWidth
	if padWidth == 0 {
		padWidth = 5
	}

	if cfg.IncludeYear {
		return fmt.Sprintf("%s-%s-%0*d", cfg.Prefix, period.Format("2006"), padWidth, num)
	}
	return fmt.Sprintf("%s-%0*d", cfg.Prefix, padWidth, num)
}
