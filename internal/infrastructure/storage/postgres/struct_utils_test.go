package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type auditStamp struct {
	CreatedAt time.Time `db:"created_at"`
}

type sampleRow struct {
	auditStamp
	ID      string `db:"id"`
	Name    string `db:"name"`
	Ignored string `db:"-"`
	NoTag   int
}

func TestExtractDBColumns(t *testing.T) {
	assert.Equal(t, []string{"created_at", "id", "name"}, ExtractDBColumns[sampleRow]())
	assert.Equal(t, []string{"created_at", "id", "name"}, ExtractDBColumns[*sampleRow]())
}

func TestStructToMap(t *testing.T) {
	now := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
	row := sampleRow{auditStamp: auditStamp{CreatedAt: now}, ID: "a1", Name: "Tea", Ignored: "x", NoTag: 7}

	m := StructToMap(&row)

	assert.Len(t, m, 3)
	assert.Equal(t, now, m["created_at"])
	assert.Equal(t, "a1", m["id"])
	assert.Equal(t, "Tea", m["name"])
	assert.Nil(t, StructToMap(42))
}

func TestStructValues_MatchesColumnOrder(t *testing.T) {
	row := sampleRow{ID: "a1", Name: "Tea"}

	vals := StructValues(row)

	assert.Equal(t, []any{time.Time{}, "a1", "Tea"}, vals)
}
