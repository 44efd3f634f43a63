package lot_repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tillpoint/internal/core/id"
)

func TestListQuery_UnscopedPool(t *testing.T) {
	r := NewLotRepo(nil)

	sql, args, err := r.listQuery("t1", id.New(), nil, false)
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT id, tenant_id, product_id, location_id, qty_received, qty_remaining, unit_cost, created_at "+
			"FROM inventory_lots WHERE location_id IS NULL AND product_id = $1 AND tenant_id = $2 "+
			"ORDER BY created_at, id",
		sql)
	assert.Len(t, args, 2)
	assert.Equal(t, "t1", args[1])
}

func TestListQuery_LocationLocked(t *testing.T) {
	r := NewLotRepo(nil)
	loc := id.New()

	sql, args, err := r.listQuery("t1", id.New(), &loc, true)
	require.NoError(t, err)

	assert.Contains(t, sql, "WHERE location_id = $1 AND product_id = $2 AND tenant_id = $3")
	assert.Contains(t, sql, "ORDER BY created_at, id FOR UPDATE")
	assert.Len(t, args, 3)
}

func TestDecrementSQL_IsConditional(t *testing.T) {
	assert.Contains(t, decrementSQL, "qty_remaining >= $1")
	assert.Contains(t, decrementSQL, "tenant_id = $3")
}
