package auditable

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type brand struct {
	ID      string
	Name    string
	Touched int
}

func (b brand) RecordID() string { return b.ID }

// memoryRepo is a Repository over a map with a unique name column.
type memoryRepo struct {
	mu        *sync.Mutex
	rows      map[string]brand
	seq       *atomic.Int64
	countErr  error
	listCalls *atomic.Int32
	inTx      bool
}

func newMemoryRepo(seed ...brand) *memoryRepo {
	r := &memoryRepo{mu: &sync.Mutex{}, rows: map[string]brand{}, seq: &atomic.Int64{}, listCalls: &atomic.Int32{}}
	for _, b := range seed {
		r.rows[b.ID] = b
	}
	return r
}

func (r *memoryRepo) lock() func() {
	if r.inTx {
		return func() {}
	}
	r.mu.Lock()
	return r.mu.Unlock
}

func (r *memoryRepo) match(f Filter, b brand) bool {
	if len(f.IDs) > 0 {
		found := false
		for _, id := range f.IDs {
			if id == b.ID {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	for k, v := range f.Equals {
		if k == "name" && v != b.Name {
			return false
		}
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(b.Name), strings.ToLower(f.Search)) {
		return false
	}
	return true
}

func (r *memoryRepo) sorted(f Filter) []brand {
	var out []brand
	for _, b := range r.rows {
		if r.match(f, b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *memoryRepo) Count(ctx context.Context, f Filter) (int, error) {
	defer r.lock()()
	if r.countErr != nil {
		return 0, r.countErr
	}
	return len(r.sorted(f)), nil
}

func (r *memoryRepo) FindMany(ctx context.Context, q Query) ([]brand, error) {
	defer r.lock()()
	r.listCalls.Add(1)
	all := r.sorted(q.Filter)
	if q.Offset >= len(all) {
		return nil, nil
	}
	end := len(all)
	if q.Limit > 0 && q.Offset+q.Limit < end {
		end = q.Offset + q.Limit
	}
	return all[q.Offset:end], nil
}

func (r *memoryRepo) FindUnique(ctx context.Context, l Lookup) (*brand, error) {
	defer r.lock()()
	for _, b := range r.rows {
		if (l.Field == "id" && b.ID == l.Value) || (l.Field == "name" && b.Name == l.Value) {
			found := b
			return &found, nil
		}
	}
	return nil, nil
}

func (r *memoryRepo) FindFirst(ctx context.Context, q Query) (*brand, error) {
	q.Limit = 1
	rows, err := r.FindMany(ctx, q)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}

func (r *memoryRepo) FindIDs(ctx context.Context, f Filter) ([]string, error) {
	defer r.lock()()
	var ids []string
	for _, b := range r.sorted(f) {
		ids = append(ids, b.ID)
	}
	return ids, nil
}

func (r *memoryRepo) insertLocked(v Values) (brand, error) {
	name, _ := v["name"].(string)
	for _, b := range r.rows {
		if b.Name == name {
			return brand{}, &pgconn.PgError{Code: "23505", ConstraintName: "brands_name_key"}
		}
	}
	b := brand{ID: fmt.Sprintf("id-%d", r.seq.Add(1)), Name: name}
	r.rows[b.ID] = b
	return b, nil
}

func (r *memoryRepo) Create(ctx context.Context, v Values) (brand, error) {
	defer r.lock()()
	return r.insertLocked(v)
}

func (r *memoryRepo) Update(ctx context.Context, l Lookup, v Values) (brand, error) {
	defer r.lock()()
	b, ok := r.rows[fmt.Sprint(l.Value)]
	if !ok {
		return brand{}, pgx.ErrNoRows
	}
	if name, ok := v["name"].(string); ok {
		b.Name = name
	}
	r.rows[b.ID] = b
	return b, nil
}

func (r *memoryRepo) Delete(ctx context.Context, l Lookup) (brand, error) {
	defer r.lock()()
	b, ok := r.rows[fmt.Sprint(l.Value)]
	if !ok {
		return brand{}, pgx.ErrNoRows
	}
	delete(r.rows, b.ID)
	return b, nil
}

func (r *memoryRepo) DeleteMany(ctx context.Context, f Filter) (int64, error) {
	defer r.lock()()
	var n int64
	for _, b := range r.sorted(f) {
		delete(r.rows, b.ID)
		n++
	}
	return n, nil
}

func (r *memoryRepo) Upsert(ctx context.Context, u Upsert) (brand, bool, error) {
	defer r.lock()()
	for id, b := range r.rows {
		if b.Name == u.Value {
			b.Touched++
			r.rows[id] = b
			return b, false, nil
		}
	}
	b, err := r.insertLocked(u.Create)
	return b, err == nil, err
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(Repository[brand]) error) error {
	if r.inTx {
		return fn(r)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot := make(map[string]brand, len(r.rows))
	for k, v := range r.rows {
		snapshot[k] = v
	}
	tx := *r
	tx.inTx = true
	if err := fn(&tx); err != nil {
		r.rows = snapshot
		return err
	}
	return nil
}

var errBoom = errors.New("boom")
