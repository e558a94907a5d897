package auditable

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/rangoon-shop/rangoon-admin/internal/apperr"
	"github.com/rangoon-shop/rangoon-admin/internal/audit"
	"github.com/rangoon-shop/rangoon-admin/internal/platform/sheet"
	"github.com/rangoon-shop/rangoon-admin/internal/rbac"
	"github.com/rangoon-shop/rangoon-admin/internal/result"
)

const unsupportedUpload = "This feature is not implemented yet."

// Config collects the strategies a Service is composed from.
type Config struct {
	Resource rbac.Resource
	Sink     audit.Sink
	// Classifier defaults to apperr.ForResource(Resource).
	Classifier apperr.Classifier
	// Importer enables TryExcelUpload. Nil means uploads are unavailable.
	Importer *Importer
	Logger   *slog.Logger
}

// Service wraps a Repository so every call is classified and audited. It keeps no
// per-call state and is safe for concurrent use; staged entries live on the
// audit.Trail bound to each call's context.
type Service[T Record] struct {
	repo     Repository[T]
	resource rbac.Resource
	sink     audit.Sink
	classify apperr.Classifier
	importer *Importer
	logger   *slog.Logger
}

// New composes a Service over repo.
func New[T Record](repo Repository[T], cfg Config) *Service[T] {
	classify := cfg.Classifier
	if classify == nil {
		classify = apperr.ForResource(string(cfg.Resource))
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service[T]{
		repo:     repo,
		resource: cfg.Resource,
		sink:     cfg.Sink,
		classify: classify,
		importer: cfg.Importer,
		logger:   logger.With(slog.String("resource", string(cfg.Resource))),
	}
}

// Resource returns the protected resource this service serves.
func (s *Service[T]) Resource() rbac.Resource { return s.resource }

// TryCount counts every row. Stages Read with no ids.
func (s *Service[T]) TryCount(ctx context.Context) result.Result[int] {
	trail, missing := s.trail(ctx)
	if missing != nil {
		return result.Err[int](missing)
	}
	n, err := s.repo.Count(ctx, Filter{})
	if err != nil {
		return result.Err[int](s.classify(err))
	}
	trail.Stage(rbac.ActionRead, s.resource, nil)
	return result.Ok(n)
}

// TryFindManyWithCount returns one page plus the total matching count. Both queries
// run in one transaction; a failed count short-circuits the listing. Stages Read
// with the ids of the returned rows.
func (s *Service[T]) TryFindManyWithCount(ctx context.Context, p Pagination, q Query) result.Result[Page[T]] {
	trail, missing := s.trail(ctx)
	if missing != nil {
		return result.Err[Page[T]](missing)
	}
	p = p.Normalize()
	q.Offset = p.Offset()
	q.Limit = p.PageSize

	var page Page[T]
	err := s.repo.WithTx(ctx, func(tx Repository[T]) error {
		count, err := tx.Count(ctx, q.Filter)
		if err != nil {
			return fmt.Errorf("count: %w", err)
		}
		rows, err := tx.FindMany(ctx, q)
		if err != nil {
			return fmt.Errorf("list: %w", err)
		}
		page = Page[T]{Count: count, Rows: rows}
		return nil
	})
	if err != nil {
		return result.Err[Page[T]](s.classify(err))
	}
	if page.Rows == nil {
		page.Rows = []T{}
	}
	if floor := q.Offset + len(page.Rows); len(page.Rows) > 0 && page.Count < floor {
		page.Count = floor
	}
	trail.Stage(rbac.ActionRead, s.resource, ids(page.Rows))
	return result.Ok(page)
}

// TryFindUnique returns the row addressed by l, or Ok(nil) when absent.
func (s *Service[T]) TryFindUnique(ctx context.Context, l Lookup) result.Result[*T] {
	return s.findOne(ctx, func() (*T, error) { return s.repo.FindUnique(ctx, l) })
}

// TryFindFirst returns the first row matching q, or Ok(nil) when absent.
func (s *Service[T]) TryFindFirst(ctx context.Context, q Query) result.Result[*T] {
	return s.findOne(ctx, func() (*T, error) { return s.repo.FindFirst(ctx, q) })
}

func (s *Service[T]) findOne(ctx context.Context, find func() (*T, error)) result.Result[*T] {
	trail, missing := s.trail(ctx)
	if missing != nil {
		return result.Err[*T](missing)
	}
	row, err := find()
	if err != nil {
		return result.Err[*T](s.classify(err))
	}
	if row == nil {
		return result.Ok[*T](nil)
	}
	trail.Stage(rbac.ActionRead, s.resource, []string{(*row).RecordID()})
	return result.Ok(row)
}

// TryCreate inserts one row. Stages Create with the new id.
func (s *Service[T]) TryCreate(ctx context.Context, v Values) result.Result[T] {
	return s.mutate(ctx, rbac.ActionCreate, func() (T, error) { return s.repo.Create(ctx, v) })
}

// TryUpdate changes the row addressed by l. Stages Update with its id.
func (s *Service[T]) TryUpdate(ctx context.Context, l Lookup, v Values) result.Result[T] {
	return s.mutate(ctx, rbac.ActionUpdate, func() (T, error) { return s.repo.Update(ctx, l, v) })
}

// TryDelete removes the row addressed by l. Stages Delete with its id.
func (s *Service[T]) TryDelete(ctx context.Context, l Lookup) result.Result[T] {
	return s.mutate(ctx, rbac.ActionDelete, func() (T, error) { return s.repo.Delete(ctx, l) })
}

func (s *Service[T]) mutate(ctx context.Context, action rbac.Action, op func() (T, error)) result.Result[T] {
	trail, missing := s.trail(ctx)
	if missing != nil {
		return result.Err[T](missing)
	}
	row, err := op()
	if err != nil {
		return result.Err[T](s.classify(err))
	}
	trail.Stage(action, s.resource, []string{row.RecordID()})
	return result.Ok(row)
}

// TryDeleteMany removes every row matching f. An explicit id list is recorded as
// given; any other filter has its affected ids read inside the same transaction.
// An empty filter is rejected.
func (s *Service[T]) TryDeleteMany(ctx context.Context, f Filter) result.Result[BatchResult] {
	trail, missing := s.trail(ctx)
	if missing != nil {
		return result.Err[BatchResult](missing)
	}
	if f.IsZero() {
		return result.Err[BatchResult](apperr.BadRequest("bulk delete requires a filter"))
	}

	var (
		affected []string
		count    int64
	)
	err := s.repo.WithTx(ctx, func(tx Repository[T]) error {
		target := f
		if f.OnlyIDs() {
			affected = append([]string{}, f.IDs...)
		} else {
			found, err := tx.FindIDs(ctx, f)
			if err != nil {
				return err
			}
			if len(found) == 0 {
				affected = []string{}
				return nil
			}
			affected = found
			target = Filter{IDs: found}
		}
		n, err := tx.DeleteMany(ctx, target)
		if err != nil {
			return err
		}
		count = n
		return nil
	})
	if err != nil {
		return result.Err[BatchResult](s.classify(err))
	}
	trail.Stage(rbac.ActionDelete, s.resource, affected)
	return result.Ok(BatchResult{Count: count})
}

// TryExcelUpload upserts spreadsheet rows by the importer's natural key in one
// transaction. Existing rows keep their data; only bookkeeping columns are touched.
// Stages Create with the inserted ids and, when any row already existed, Update with
// the touched ids.
func (s *Service[T]) TryExcelUpload(ctx context.Context, file io.Reader) result.Result[[]T] {
	trail, missing := s.trail(ctx)
	if missing != nil {
		return result.Err[[]T](missing)
	}
	if s.importer == nil {
		return result.Err[[]T](apperr.Unavailable(unsupportedUpload))
	}
	rows, err := sheet.Read(file)
	if err != nil {
		return result.Err[[]T](apperr.Wrap(apperr.StatusBadRequest, "could not read spreadsheet", err))
	}
	upserts, bad := s.importer.plan(rows)
	if bad != nil {
		return result.Err[[]T](bad)
	}

	var (
		out     []T
		created []string
		touched []string
	)
	err = s.repo.WithTx(ctx, func(tx Repository[T]) error {
		out = make([]T, 0, len(upserts))
		created, touched = []string{}, nil
		for _, u := range upserts {
			row, inserted, err := tx.Upsert(ctx, u)
			if err != nil {
				return err
			}
			out = append(out, row)
			if inserted {
				created = append(created, row.RecordID())
			} else {
				touched = append(touched, row.RecordID())
			}
		}
		return nil
	})
	if err != nil {
		return result.Err[[]T](s.classify(err))
	}
	s.logger.Info("excel upload applied",
		slog.Int("rows", len(out)),
		slog.Int("created", len(created)),
		slog.Int("touched", len(touched)))
	if len(created) > 0 || len(touched) == 0 {
		trail.Stage(rbac.ActionCreate, s.resource, created)
	}
	if len(touched) > 0 {
		trail.Stage(rbac.ActionUpdate, s.resource, touched)
	}
	return result.Ok(out)
}

// Audit flushes every entry this service staged on the context's trail and not yet
// flushed, attributed to actor, and returns the most recent one. Repeated calls return
// the persisted entry without writing again.
func (s *Service[T]) Audit(ctx context.Context, actor string) result.Result[audit.Entry] {
	trail, missing := s.trail(ctx)
	if missing != nil {
		return result.Err[audit.Entry](missing)
	}
	if s.sink == nil {
		return result.Err[audit.Entry](apperr.Unavailable("audit sink not configured"))
	}
	latest, ok := trail.Latest(s.resource)
	if !ok {
		return result.Err[audit.Entry](apperr.Wrap(apperr.StatusInternalServerError,
			fmt.Sprintf("no staged audit entry for %s", s.resource), audit.ErrNothingStaged))
	}
	for _, staged := range trail.PendingFor(s.resource) {
		if _, err := staged.Flush(ctx, s.sink, actor); err != nil {
			return result.Err[audit.Entry](s.flushError(staged, err))
		}
	}
	entry, err := latest.Flush(ctx, s.sink, actor)
	if err != nil {
		return result.Err[audit.Entry](s.flushError(latest, err))
	}
	return result.Ok(entry)
}

func (s *Service[T]) flushError(staged *audit.Staged, err error) *apperr.Error {
	if errors.Is(err, audit.ErrNoActor) {
		return apperr.Wrap(apperr.StatusUnauthorized, "audit actor required", err)
	}
	s.logger.Error("audit flush", slog.String("entry", staged.Entry().ID), slog.Any("error", err))
	return apperr.Classify(err)
}

func (s *Service[T]) trail(ctx context.Context) (*audit.Trail, *apperr.Error) {
	trail, ok := audit.TrailFrom(ctx)
	if !ok {
		return nil, apperr.Wrap(apperr.StatusInternalServerError, "audit trail missing from context", audit.ErrNoTrail)
	}
	return trail, nil
}

func ids[T Record](rows []T) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.RecordID())
	}
	return out
}
