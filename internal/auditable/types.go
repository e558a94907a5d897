// Package auditable implements the generic per-resource service every catalog
// resource goes through: repository calls are classified into *apperr.Error and
// successful operations are staged on the request's audit trail.
package auditable

import (
	"context"
	"math"
)

// Record is a row with a stable string id.
type Record interface {
	RecordID() string
}

// Values carries column values for writes, keyed by column name.
type Values map[string]any

// Filter narrows a query. Zero fields do not filter.
type Filter struct {
	IDs    []string
	Equals map[string]any
	Search string
}

// IsZero reports whether f matches every row.
func (f Filter) IsZero() bool {
	return len(f.IDs) == 0 && len(f.Equals) == 0 && f.Search == ""
}

// OnlyIDs reports whether f is an explicit id list and nothing else.
func (f Filter) OnlyIDs() bool {
	return len(f.IDs) > 0 && len(f.Equals) == 0 && f.Search == ""
}

// Query is a filtered, ordered window of rows.
type Query struct {
	Filter
	OrderBy string
	Desc    bool
	Offset  int
	Limit   int
}

// Lookup addresses one row through a unique column.
type Lookup struct {
	Field string
	Value any
}

// ByID looks a row up by primary key.
func ByID(id string) Lookup {
	return Lookup{Field: "id", Value: id}
}

// Upsert inserts Create unless a row with Key = Value exists; a hit only touches
// bookkeeping columns. Repository.Upsert reports whether the row was inserted.
type Upsert struct {
	Key    string
	Value  any
	Create Values
}

// BatchResult reports how many rows a bulk operation touched.
type BatchResult struct {
	Count int64 `json:"count"`
}

// Pagination is 1-based.
type Pagination struct {
	Page     int
	PageSize int
}

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
	// MaxPage keeps (page-1)*pageSize inside a 32-bit offset.
	MaxPage = math.MaxInt32 / MaxPageSize
)

// Normalize fills defaults and clamps the page size.
func (p Pagination) Normalize() Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Page > MaxPage {
		p.Page = MaxPage
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

// Offset is (page-1)*pageSize.
func (p Pagination) Offset() int {
	p = p.Normalize()
	return (p.Page - 1) * p.PageSize
}

// Page is a listing plus the total count of matching rows.
type Page[T any] struct {
	Count int `json:"count"`
	Rows  []T `json:"results"`
}

// Repository is the storage contract a Service is composed over.
// FindUnique and FindFirst return (nil, nil) when nothing matches; Update and Delete
// return pgx.ErrNoRows for a missing row.
type Repository[T Record] interface {
	Count(ctx context.Context, f Filter) (int, error)
	FindMany(ctx context.Context, q Query) ([]T, error)
	FindUnique(ctx context.Context, l Lookup) (*T, error)
	FindFirst(ctx context.Context, q Query) (*T, error)
	FindIDs(ctx context.Context, f Filter) ([]string, error)
	Create(ctx context.Context, v Values) (T, error)
	Update(ctx context.Context, l Lookup, v Values) (T, error)
	Delete(ctx context.Context, l Lookup) (T, error)
	DeleteMany(ctx context.Context, f Filter) (int64, error)
	Upsert(ctx context.Context, u Upsert) (T, bool, error)
	// WithTx runs fn against a repository bound to one transaction.
	WithTx(ctx context.Context, fn func(Repository[T]) error) error
}
