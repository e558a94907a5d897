// Package brands wires the Brand resource onto the auditable service.
package brands

import (
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rangoon-shop/rangoon-admin/internal/auditable/pgstore"
)

// Brand is a product manufacturer.
type Brand struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (b Brand) RecordID() string { return b.ID }

// Table maps Brand onto the brands table.
var Table = pgstore.Table[Brand]{
	Name:         "brands",
	Columns:      []string{"id", "name", "created_at", "updated_at"},
	Scan:         scanBrand,
	Writable:     []string{"name"},
	Unique:       []string{"name"},
	Search:       []string{"name"},
	Sortable:     []string{"name", "created_at", "updated_at"},
	DefaultOrder: "created_at",
	Touch:        "updated_at",
}

func scanBrand(row pgx.Row) (Brand, error) {
	var b Brand
	err := row.Scan(&b.ID, &b.Name, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}
