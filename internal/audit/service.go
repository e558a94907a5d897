package audit

import (
	"context"
	"errors"
	"fmt"
	"math"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
	maxPage         = math.MaxInt32 / maxPageSize
)

// Repository reads the persisted trail.
type Repository interface {
	Window(ctx context.Context, params WindowParams) ([]Entry, error)
	All(ctx context.Context, filters TimelineFilters) ([]Entry, error)
	Get(ctx context.Context, id string) (Entry, error)
}

// Service coordinates audit timeline retrieval.
type Service struct {
	repo Repository
}

// NewService creates a new audit timeline service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Timeline fetches one page of audit entries, newest first.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	if s.repo == nil {
		return Result{}, errors.New("audit: repository not configured")
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	if page > maxPage {
		page = maxPage
	}
	rows, err := s.repo.Window(ctx, WindowParams{
		TimelineFilters: filters,
		Offset:          (page - 1) * pageSize,
		Limit:           pageSize + 1,
	})
	if err != nil {
		return Result{}, fmt.Errorf("audit: timeline: %w", err)
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Rows: rows, Paging: paging}, nil
}

// Export fetches the whole filtered timeline without paging.
func (s *Service) Export(ctx context.Context, filters TimelineFilters) ([]Entry, error) {
	if s.repo == nil {
		return nil, errors.New("audit: repository not configured")
	}
	rows, err := s.repo.All(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("audit: export: %w", err)
	}
	return rows, nil
}

// Get loads a single entry. Unknown ids yield ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (Entry, error) {
	if s.repo == nil {
		return Entry{}, errors.New("audit: repository not configured")
	}
	return s.repo.Get(ctx, id)
}
