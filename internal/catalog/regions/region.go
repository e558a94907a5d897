// Package regions wires the Region resource onto the auditable service.
package regions

import (
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rangoon-shop/rangoon-admin/internal/auditable/pgstore"
)

// Region is a delivery region.
type Region struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (r Region) RecordID() string { return r.ID }

var Table = pgstore.Table[Region]{
	Name:    "regions",
	Columns: []string{"id", "name", "created_at", "updated_at"},
	Scan: func(row pgx.Row) (Region, error) {
		var r Region
		err := row.Scan(&r.ID, &r.Name, &r.CreatedAt, &r.UpdatedAt)
		return r, err
	},
	Writable:     []string{"name"},
	Unique:       []string{"name"},
	Search:       []string{"name"},
	Sortable:     []string{"name", "created_at", "updated_at"},
	DefaultOrder: "name",
	Touch:        "updated_at",
}
