package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/rangoon-shop/rangoon-admin/internal/platform/db"
	"github.com/rangoon-shop/rangoon-admin/internal/rbac"
)

const entryColumns = `id, actor_id, action, resource, resource_ids, occurred_at`

// PostgresSink persists entries in audit_logs. Rows are only ever inserted.
type PostgresSink struct {
	db db.DBTX
}

// NewPostgresSink returns a sink over the given pool or transaction.
func NewPostgresSink(conn db.DBTX) *PostgresSink {
	return &PostgresSink{db: conn}
}

// Append inserts e; an existing row with the same id wins and is returned.
func (s *PostgresSink) Append(ctx context.Context, e Entry) (Entry, error) {
	ids := e.ResourceIDs
	if ids == nil {
		ids = []string{}
	}
	_, err := s.db.Exec(ctx, `INSERT INTO audit_logs (`+entryColumns+`) VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO NOTHING`, e.ID, e.ActorID, string(e.Action), string(e.Resource), ids, e.At)
	if err != nil {
		return Entry{}, fmt.Errorf("audit: append %s: %w", e.ID, err)
	}
	return s.Get(ctx, e.ID)
}

// Get loads one entry.
func (s *PostgresSink) Get(ctx context.Context, id string) (Entry, error) {
	row := s.db.QueryRow(ctx, `SELECT `+entryColumns+` FROM audit_logs WHERE id = $1`, id)
	e, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	return e, err
}

// Window returns one page of the timeline, newest first.
func (s *PostgresSink) Window(ctx context.Context, params WindowParams) ([]Entry, error) {
	where, args := timelineWhere(params.TimelineFilters)
	args = append(args, params.Offset, params.Limit)
	sql := fmt.Sprintf(`SELECT %s FROM audit_logs%s ORDER BY occurred_at DESC, id OFFSET $%d LIMIT $%d`,
		entryColumns, where, len(args)-1, len(args))
	return s.query(ctx, sql, args...)
}

// All returns the full filtered timeline, newest first.
func (s *PostgresSink) All(ctx context.Context, filters TimelineFilters) ([]Entry, error) {
	where, args := timelineWhere(filters)
	return s.query(ctx, `SELECT `+entryColumns+` FROM audit_logs`+where+` ORDER BY occurred_at DESC, id`, args...)
}

func (s *PostgresSink) query(ctx context.Context, sql string, args ...any) ([]Entry, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func timelineWhere(f TimelineFilters) (string, []any) {
	var clauses []string
	var args []any
	add := func(clause string, v any) {
		args = append(args, v)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if !f.From.IsZero() {
		add("occurred_at >= $%d", toPgTime(f.From))
	}
	if !f.To.IsZero() {
		add("occurred_at < $%d", toPgTime(f.To))
	}
	if v := optionalText(f.Actor); v.Valid {
		add("actor_id = $%d", v)
	}
	if v := optionalText(f.Resource); v.Valid {
		add("lower(resource) = lower($%d)", v)
	}
	if v := optionalText(f.Action); v.Valid {
		add("lower(action) = lower($%d)", v)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanEntry(row pgx.Row) (Entry, error) {
	var (
		e        Entry
		action   string
		resource string
		at       pgtype.Timestamptz
	)
	if err := row.Scan(&e.ID, &e.ActorID, &action, &resource, &e.ResourceIDs, &at); err != nil {
		return Entry{}, err
	}
	e.Action = rbac.Action(action)
	e.Resource = rbac.Resource(resource)
	if at.Valid {
		e.At = at.Time.UTC()
	}
	if e.ResourceIDs == nil {
		e.ResourceIDs = []string{}
	}
	return e, nil
}

func toPgTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func optionalText(value string) pgtype.Text {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: trimmed, Valid: true}
}
