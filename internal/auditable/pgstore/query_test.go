package pgstore

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rangoon-shop/rangoon-admin/internal/apperr"
	"github.com/rangoon-shop/rangoon-admin/internal/auditable"
)

type row struct {
	ID        string
	Name      string
	UpdatedAt time.Time
}

func (r row) RecordID() string { return r.ID }

var testTable = Table[row]{
	Name:    "brands",
	Columns: []string{"id", "name", "updated_at"},
	Scan: func(r pgx.Row) (row, error) {
		var out row
		err := r.Scan(&out.ID, &out.Name, &out.UpdatedAt)
		return out, err
	},
	Writable:     []string{"name"},
	Unique:       []string{"name"},
	Search:       []string{"name"},
	Sortable:     []string{"name", "updated_at"},
	DefaultOrder: "name",
	Touch:        "updated_at",
}

func TestSelectSQLBuildsFilterOrderAndWindow(t *testing.T) {
	sql, a, err := testTable.selectSQL(auditable.Query{
		Filter: auditable.Filter{
			IDs:    []string{"a", "b"},
			Equals: map[string]any{"name": "Samsung"},
			Search: "50%_off",
		},
		OrderBy: "updated_at",
		Desc:    true,
		Offset:  20,
		Limit:   10,
	})
	require.NoError(t, err)
	assert.Equal(t, `SELECT "id", "name", "updated_at" FROM "brands" WHERE id = ANY($1) AND "name" = $2 AND ("name" ILIKE $3) ORDER BY "updated_at" DESC, id LIMIT $4 OFFSET $5`, sql)
	assert.Equal(t, args{[]string{"a", "b"}, "Samsung", `%50\%\_off%`, 10, 20}, a)
}

func TestSelectSQLDefaultsOrder(t *testing.T) {
	sql, a, err := testTable.selectSQL(auditable.Query{})
	require.NoError(t, err)
	assert.Equal(t, `SELECT "id", "name", "updated_at" FROM "brands" ORDER BY "name" ASC, id`, sql)
	assert.Empty(t, a)
}

func TestCountSQLSharesFilter(t *testing.T) {
	sql, a, err := testTable.countSQL(auditable.Filter{Search: "sam"})
	require.NoError(t, err)
	assert.Equal(t, `SELECT count(*) FROM "brands" WHERE ("name" ILIKE $1)`, sql)
	assert.Equal(t, args{"%sam%"}, a)
}

func TestUnknownColumnsAreBadRequest(t *testing.T) {
	_, _, err := testTable.selectSQL(auditable.Query{OrderBy: "password"})
	assert.ErrorIs(t, err, apperr.BadRequest(""))

	_, _, err = testTable.countSQL(auditable.Filter{Equals: map[string]any{"secret": 1}})
	assert.ErrorIs(t, err, apperr.BadRequest(""))

	_, _, err = testTable.insertSQL("x", auditable.Values{"id": "forged"}, "")
	assert.ErrorIs(t, err, apperr.BadRequest(""))

	_, _, err = testTable.findSQL(auditable.Lookup{Field: "updated_at", Value: 1})
	assert.ErrorIs(t, err, apperr.BadRequest(""))
}

func TestInsertSQL(t *testing.T) {
	sql, a, err := testTable.insertSQL("new-id", auditable.Values{"name": "Apple"}, "")
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "brands" ("id", "name") VALUES ($1, $2) RETURNING "id", "name", "updated_at"`, sql)
	assert.Equal(t, args{"new-id", "Apple"}, a)
}

func TestUpsertSQLOnlyTouchesBookkeeping(t *testing.T) {
	sql, a, err := testTable.upsertSQL("new-id", auditable.Upsert{Key: "name", Value: "Apple", Create: auditable.Values{"name": "ignored"}})
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "brands" ("id", "name") VALUES ($1, $2) ON CONFLICT ("name") DO UPDATE SET "updated_at" = NOW() RETURNING "id", "name", "updated_at", (xmax = 0) AS inserted`, sql)
	assert.Equal(t, args{"new-id", "Apple"}, a)

	_, _, err = testTable.upsertSQL("x", auditable.Upsert{Key: "updated_at", Value: "x"})
	assert.ErrorIs(t, err, apperr.BadRequest(""))
}

func TestUpdateSQL(t *testing.T) {
	sql, a, err := testTable.updateSQL(auditable.ByID("b1"), auditable.Values{"name": "LG"})
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "brands" SET "name" = $1, "updated_at" = NOW() WHERE "id" = $2 RETURNING "id", "name", "updated_at"`, sql)
	assert.Equal(t, args{"LG", "b1"}, a)

	_, _, err = testTable.updateSQL(auditable.ByID("b1"), auditable.Values{})
	assert.ErrorIs(t, err, apperr.BadRequest(""))
}

func TestDeleteManySQLRequiresFilter(t *testing.T) {
	sql, a, err := testTable.deleteManySQL(auditable.Filter{IDs: []string{"a"}})
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "brands" WHERE id = ANY($1)`, sql)
	assert.Equal(t, args{[]string{"a"}}, a)

	_, _, err = testTable.deleteManySQL(auditable.Filter{})
	assert.ErrorIs(t, err, apperr.BadRequest(""))
}
