// Package pgstore implements auditable.Repository over a single Postgres table.
package pgstore

import (
	"fmt"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/rangoon-shop/rangoon-admin/internal/apperr"
)

// Table describes how a record maps onto its table.
type Table[T any] struct {
	Name string
	// Columns are selected in this order and handed to Scan. The first must be "id".
	Columns []string
	Scan    func(row pgx.Row) (T, error)
	// Writable columns may appear in Values and equality filters.
	Writable []string
	// Unique columns may address a row in a Lookup or an Upsert key.
	Unique []string
	// Search columns are matched with ILIKE.
	Search   []string
	Sortable []string
	// DefaultOrder is used when a query names no order.
	DefaultOrder string
	// Touch is set to NOW() on updates and upsert hits. Empty disables it.
	Touch string
}

func (t Table[T]) selectList() string {
	return joinIdents(t.Columns)
}

func (t Table[T]) writable(col string) bool {
	return slices.Contains(t.Writable, col)
}

func (t Table[T]) lookupColumn(col string) (string, error) {
	if col == "id" || slices.Contains(t.Unique, col) {
		return col, nil
	}
	return "", apperr.BadRequest(fmt.Sprintf("%s cannot be looked up by %q", t.Name, col))
}

func (t Table[T]) orderColumn(col string) (string, error) {
	if col == "" {
		if t.DefaultOrder != "" {
			return t.DefaultOrder, nil
		}
		return "id", nil
	}
	if col == "id" || slices.Contains(t.Sortable, col) {
		return col, nil
	}
	return "", apperr.BadRequest(fmt.Sprintf("%s cannot be ordered by %q", t.Name, col))
}

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func joinIdents(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = ident(c)
	}
	return strings.Join(quoted, ", ")
}
