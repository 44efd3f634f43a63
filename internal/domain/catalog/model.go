// Package catalog holds the minimal product and location references that
// lots and sale lines point at.
package catalog

import (
	"strings"
	"time"

	"tillpoint/internal/core/apperror"
	"tillpoint/internal/core/id"
)

// Product is a sellable item.
type Product struct {
	ID        id.ID     `db:"id" json:"id"`
	TenantID  string    `db:"tenant_id" json:"-"`
	SKU       string    `db:"sku" json:"sku"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Location is a store or warehouse holding stock.
type Location struct {
	ID        id.ID     `db:"id" json:"id"`
	TenantID  string    `db:"tenant_id" json:"-"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

func (p *Product) Validate() error {
	p.SKU = strings.TrimSpace(p.SKU)
	p.Name = strings.TrimSpace(p.Name)
	if p.SKU == "" {
		return apperror.NewValidation("sku is required").WithDetail("field", "sku")
	}
	if len(p.SKU) > 64 {
		return apperror.NewValidation("sku is too long").WithDetail("field", "sku")
	}
	if p.Name == "" {
		return apperror.NewValidation("name is required").WithDetail("field", "name")
	}
	return nil
}

func (l *Location) Validate() error {
	l.Name = strings.TrimSpace(l.Name)
	if l.Name == "" {
		return apperror.NewValidation("name is required").WithDetail("field", "name")
	}
	return nil
}
