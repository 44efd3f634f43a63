package catalog_repo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tillpoint/internal/core/id"
	"tillpoint/internal/domain/catalog"
)

func TestBaseCatalogRepo_Columns(t *testing.T) {
	r := NewCatalogRepo(nil)

	assert.Equal(t, []string{"id", "tenant_id", "sku", "name", "created_at"}, r.products.selectCols)
	assert.Equal(t, []string{"id", "tenant_id", "name", "created_at"}, r.locations.selectCols)
}

func TestBaseCatalogRepo_InsertQuery(t *testing.T) {
	r := NewCatalogRepo(nil)
	p := &catalog.Product{
		ID:        id.New(),
		TenantID:  "t1",
		SKU:       "TEA-01",
		Name:      "Green tea",
		CreatedAt: time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC),
	}

	sql, args, err := r.products.insertQuery(p)
	require.NoError(t, err)

	// SetMap sorts columns by name.
	assert.Equal(t, "INSERT INTO products (created_at,id,name,sku,tenant_id) VALUES ($1,$2,$3,$4,$5)", sql)
	assert.Equal(t, "TEA-01", args[3])
	assert.Equal(t, "t1", args[4])
}
