package pgstore

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/rangoon-shop/rangoon-admin/internal/apperr"
	"github.com/rangoon-shop/rangoon-admin/internal/auditable"
)

// args accumulates positional parameters.
type args []any

func (a *args) add(v any) string {
	*a = append(*a, v)
	return fmt.Sprintf("$%d", len(*a))
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (t Table[T]) where(f auditable.Filter, a *args) (string, error) {
	var clauses []string
	if len(f.IDs) > 0 {
		clauses = append(clauses, "id = ANY("+a.add(f.IDs)+")")
	}
	for _, col := range sortedKeys(f.Equals) {
		if col != "id" && !t.writable(col) {
			return "", apperr.BadRequest(fmt.Sprintf("%s cannot be filtered by %q", t.Name, col))
		}
		clauses = append(clauses, ident(col)+" = "+a.add(f.Equals[col]))
	}
	if s := strings.TrimSpace(f.Search); s != "" && len(t.Search) > 0 {
		p := a.add("%" + escapeLike(s) + "%")
		var ors []string
		for _, col := range t.Search {
			ors = append(ors, ident(col)+" ILIKE "+p)
		}
		clauses = append(clauses, "("+strings.Join(ors, " OR ")+")")
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), nil
}

func (t Table[T]) countSQL(f auditable.Filter) (string, args, error) {
	var a args
	where, err := t.where(f, &a)
	if err != nil {
		return "", nil, err
	}
	return "SELECT count(*) FROM " + ident(t.Name) + where, a, nil
}

func (t Table[T]) selectSQL(q auditable.Query) (string, args, error) {
	var a args
	where, err := t.where(q.Filter, &a)
	if err != nil {
		return "", nil, err
	}
	order, err := t.orderColumn(q.OrderBy)
	if err != nil {
		return "", nil, err
	}
	dir := "ASC"
	if q.Desc {
		dir = "DESC"
	}
	sql := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s %s", t.selectList(), ident(t.Name), where, ident(order), dir)
	if order != "id" {
		sql += ", id"
	}
	if q.Limit > 0 {
		sql += " LIMIT " + a.add(q.Limit)
	}
	if q.Offset > 0 {
		sql += " OFFSET " + a.add(q.Offset)
	}
	return sql, a, nil
}

func (t Table[T]) idsSQL(f auditable.Filter) (string, args, error) {
	var a args
	where, err := t.where(f, &a)
	if err != nil {
		return "", nil, err
	}
	return "SELECT id FROM " + ident(t.Name) + where + " ORDER BY id", a, nil
}

func (t Table[T]) insertSQL(id string, v auditable.Values, onConflict string) (string, args, error) {
	a := args{}
	cols := []string{"id"}
	vals := []string{a.add(id)}
	for _, col := range sortedKeys(v) {
		if !t.writable(col) {
			return "", nil, apperr.BadRequest(fmt.Sprintf("%s has no writable column %q", t.Name, col))
		}
		cols = append(cols, col)
		vals = append(vals, a.add(v[col]))
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)%s RETURNING %s",
		ident(t.Name), joinIdents(cols), strings.Join(vals, ", "), onConflict, t.selectList())
	return sql, a, nil
}

func (t Table[T]) upsertSQL(id string, u auditable.Upsert) (string, args, error) {
	if !slices.Contains(t.Unique, u.Key) {
		return "", nil, apperr.BadRequest(fmt.Sprintf("%s has no unique column %q", t.Name, u.Key))
	}
	touch := ident(u.Key) + " = " + ident(t.Name) + "." + ident(u.Key)
	if t.Touch != "" {
		touch = ident(t.Touch) + " = NOW()"
	}
	values := auditable.Values{}
	for k, v := range u.Create {
		values[k] = v
	}
	values[u.Key] = u.Value
	sql, a, err := t.insertSQL(id, values, fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET %s", ident(u.Key), touch))
	if err != nil {
		return "", nil, err
	}
	// xmax is zero only for a freshly inserted tuple.
	return sql + ", (xmax = 0) AS inserted", a, nil
}

func (t Table[T]) updateSQL(l auditable.Lookup, v auditable.Values) (string, args, error) {
	if len(v) == 0 {
		return "", nil, apperr.BadRequest("nothing to update")
	}
	col, err := t.lookupColumn(l.Field)
	if err != nil {
		return "", nil, err
	}
	a := args{}
	var sets []string
	for _, k := range sortedKeys(v) {
		if !t.writable(k) {
			return "", nil, apperr.BadRequest(fmt.Sprintf("%s has no writable column %q", t.Name, k))
		}
		sets = append(sets, ident(k)+" = "+a.add(v[k]))
	}
	if t.Touch != "" {
		sets = append(sets, ident(t.Touch)+" = NOW()")
	}
	sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s RETURNING %s",
		ident(t.Name), strings.Join(sets, ", "), ident(col), a.add(l.Value), t.selectList())
	return sql, a, nil
}

func (t Table[T]) deleteSQL(l auditable.Lookup) (string, args, error) {
	col, err := t.lookupColumn(l.Field)
	if err != nil {
		return "", nil, err
	}
	a := args{}
	return fmt.Sprintf("DELETE FROM %s WHERE %s = %s RETURNING %s", ident(t.Name), ident(col), a.add(l.Value), t.selectList()), a, nil
}

func (t Table[T]) findSQL(l auditable.Lookup) (string, args, error) {
	col, err := t.lookupColumn(l.Field)
	if err != nil {
		return "", nil, err
	}
	a := args{}
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s", t.selectList(), ident(t.Name), ident(col), a.add(l.Value)), a, nil
}

func (t Table[T]) deleteManySQL(f auditable.Filter) (string, args, error) {
	var a args
	where, err := t.where(f, &a)
	if err != nil {
		return "", nil, err
	}
	if where == "" {
		return "", nil, apperr.BadRequest("bulk delete requires a filter")
	}
	return "DELETE FROM " + ident(t.Name) + where, a, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
