package pgstore

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rangoon-shop/rangoon-admin/internal/auditable"
	"github.com/rangoon-shop/rangoon-admin/internal/platform/db"
)

// Conn is satisfied by *pgxpool.Pool.
type Conn interface {
	db.DBTX
	db.TxBeginner
}

// Repository is an auditable.Repository over one table.
type Repository[T auditable.Record] struct {
	db    db.DBTX
	pool  db.TxBeginner
	table Table[T]
	newID func() string
}

// New returns a repository over conn.
func New[T auditable.Record](conn Conn, table Table[T]) *Repository[T] {
	return &Repository[T]{db: conn, pool: conn, table: table, newID: uuid.NewString}
}

var _ auditable.Repository[noopRecord] = (*Repository[noopRecord])(nil)

type noopRecord struct{}

func (noopRecord) RecordID() string { return "" }

func (r *Repository[T]) Count(ctx context.Context, f auditable.Filter) (int, error) {
	sql, a, err := r.table.countSQL(f)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := r.db.QueryRow(ctx, sql, a...).Scan(&n); err != nil {
		return 0, err
	}
	return int(n), nil
}

func (r *Repository[T]) FindMany(ctx context.Context, q auditable.Query) ([]T, error) {
	sql, a, err := r.table.selectSQL(q)
	if err != nil {
		return nil, err
	}
	return r.collect(ctx, sql, a)
}

func (r *Repository[T]) FindUnique(ctx context.Context, l auditable.Lookup) (*T, error) {
	sql, a, err := r.table.findSQL(l)
	if err != nil {
		return nil, err
	}
	return r.one(ctx, sql, a)
}

func (r *Repository[T]) FindFirst(ctx context.Context, q auditable.Query) (*T, error) {
	q.Limit = 1
	q.Offset = 0
	sql, a, err := r.table.selectSQL(q)
	if err != nil {
		return nil, err
	}
	return r.one(ctx, sql, a)
}

func (r *Repository[T]) FindIDs(ctx context.Context, f auditable.Filter) ([]string, error) {
	sql, a, err := r.table.idsSQL(f)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, sql, a...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (r *Repository[T]) Create(ctx context.Context, v auditable.Values) (T, error) {
	sql, a, err := r.table.insertSQL(r.newID(), v, "")
	if err != nil {
		var zero T
		return zero, err
	}
	return r.table.Scan(r.db.QueryRow(ctx, sql, a...))
}

func (r *Repository[T]) Update(ctx context.Context, l auditable.Lookup, v auditable.Values) (T, error) {
	sql, a, err := r.table.updateSQL(l, v)
	if err != nil {
		var zero T
		return zero, err
	}
	return r.table.Scan(r.db.QueryRow(ctx, sql, a...))
}

func (r *Repository[T]) Delete(ctx context.Context, l auditable.Lookup) (T, error) {
	sql, a, err := r.table.deleteSQL(l)
	if err != nil {
		var zero T
		return zero, err
	}
	return r.table.Scan(r.db.QueryRow(ctx, sql, a...))
}

func (r *Repository[T]) DeleteMany(ctx context.Context, f auditable.Filter) (int64, error) {
	sql, a, err := r.table.deleteManySQL(f)
	if err != nil {
		return 0, err
	}
	tag, err := r.db.Exec(ctx, sql, a...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *Repository[T]) Upsert(ctx context.Context, u auditable.Upsert) (T, bool, error) {
	sql, a, err := r.table.upsertSQL(r.newID(), u)
	if err != nil {
		var zero T
		return zero, false, err
	}
	var inserted bool
	row, err := r.table.Scan(flaggedRow{Row: r.db.QueryRow(ctx, sql, a...), flag: &inserted})
	return row, inserted, err
}

// flaggedRow scans one trailing boolean column after the table's own columns.
type flaggedRow struct {
	pgx.Row
	flag *bool
}

func (r flaggedRow) Scan(dest ...any) error {
	return r.Row.Scan(append(dest, r.flag)...)
}

// WithTx runs fn in a RepeatableRead transaction. A repository already bound to a
// transaction runs fn in place.
func (r *Repository[T]) WithTx(ctx context.Context, fn func(auditable.Repository[T]) error) error {
	if r.pool == nil {
		return fn(r)
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&Repository[T]{db: tx, table: r.table, newID: r.newID})
	})
}

func (r *Repository[T]) collect(ctx context.Context, sql string, a args) ([]T, error) {
	rows, err := r.db.Query(ctx, sql, a...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []T{}
	for rows.Next() {
		item, err := r.table.Scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (r *Repository[T]) one(ctx context.Context, sql string, a args) (*T, error) {
	item, err := r.table.Scan(r.db.QueryRow(ctx, sql, a...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}
