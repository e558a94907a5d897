// Package products wires the Product resource onto the auditable service.
// Products have no spreadsheet importer.
package products

import (
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/rangoon-shop/rangoon-admin/internal/auditable/pgstore"
)

const (
	StatusDraft     = "Draft"
	StatusPending   = "Pending"
	StatusPublished = "Published"
)

// Product is a sellable catalog item.
type Product struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Price     float64   `json:"price"`
	PriceUnit string    `json:"priceUnit"`
	Quantity  int       `json:"quantity"`
	Status    string    `json:"status"`
	BrandID   *string   `json:"brandId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (p Product) RecordID() string { return p.ID }

var Table = pgstore.Table[Product]{
	Name:         "products",
	Columns:      []string{"id", "title", "price", "price_unit", "quantity", "status", "brand_id", "created_at", "updated_at"},
	Scan:         scanProduct,
	Writable:     []string{"title", "price", "price_unit", "quantity", "status", "brand_id"},
	Search:       []string{"title"},
	Sortable:     []string{"title", "price", "quantity", "created_at", "updated_at"},
	DefaultOrder: "created_at",
	Touch:        "updated_at",
}

func scanProduct(row pgx.Row) (Product, error) {
	var (
		p     Product
		price pgtype.Numeric
		brand pgtype.Text
		qty   int32
	)
	if err := row.Scan(&p.ID, &p.Title, &price, &p.PriceUnit, &qty, &p.Status, &brand, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return Product{}, err
	}
	f, err := price.Float64Value()
	if err != nil {
		return Product{}, err
	}
	p.Price = f.Float64
	p.Quantity = int(qty)
	if brand.Valid {
		p.BrandID = &brand.String
	}
	return p, nil
}
