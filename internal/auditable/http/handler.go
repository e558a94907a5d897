// Package auditablehttp exposes an auditable.Service over REST.
package auditablehttp

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/rangoon-shop/rangoon-admin/internal/apperr"
	"github.com/rangoon-shop/rangoon-admin/internal/auditable"
	"github.com/rangoon-shop/rangoon-admin/internal/platform/httpx"
	"github.com/rangoon-shop/rangoon-admin/internal/rbac"
)

const (
	uploadField           = "excel"
	defaultUploadMaxBytes = 10 << 20
)

// Decoder reads and validates a write payload into column values.
type Decoder func(r *http.Request) (auditable.Values, error)

// Resource describes one REST resource.
type Resource[T auditable.Record] struct {
	Service *auditable.Service[T]
	// Label names the resource in messages, e.g. "Brand".
	Label        string
	DecodeCreate Decoder
	DecodeUpdate Decoder
	// Filters lists query parameters accepted as equality filters.
	Filters []string
}

// Options tunes a Handler.
type Options struct {
	UploadMaxBytes int64
}

// Handler serves list/detail/create/update/delete/bulk-delete/upload for one resource.
type Handler[T auditable.Record] struct {
	logger *slog.Logger
	res    Resource[T]
	rbac   rbac.Middleware
	opts   Options
}

// NewHandler builds a Handler.
func NewHandler[T auditable.Record](logger *slog.Logger, res Resource[T], rbacMW rbac.Middleware, opts Options) *Handler[T] {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.UploadMaxBytes <= 0 {
		opts.UploadMaxBytes = defaultUploadMaxBytes
	}
	if res.Label == "" {
		res.Label = string(res.Service.Resource())
	}
	return &Handler[T]{logger: logger, res: res, rbac: rbacMW, opts: opts}
}

// MountRoutes registers the resource routes.
func (h *Handler[T]) MountRoutes(r chi.Router) {
	resource := h.res.Service.Resource()
	r.With(h.rbac.Require(rbac.ActionRead, resource)).Get("/", h.list)
	r.With(h.rbac.Require(rbac.ActionRead, resource)).Get("/detail/{id}", h.detail)
	r.With(h.rbac.Require(rbac.ActionCreate, resource)).Post("/", h.create)
	r.With(h.rbac.Require(rbac.ActionCreate, resource)).Post("/excel-upload", h.upload)
	r.With(h.rbac.Require(rbac.ActionUpdate, resource)).Patch("/detail/{id}", h.update)
	r.With(h.rbac.Require(rbac.ActionDelete, resource)).Delete("/detail/{id}", h.remove)
	r.With(h.rbac.Require(rbac.ActionDelete, resource)).Delete("/multi", h.removeMany)
}

// list fails through result.UnwrapOrThrow; httpx.Recoverer turns the panic into a problem response.
func (h *Handler[T]) list(w http.ResponseWriter, r *http.Request) {
	pagination, query, err := h.parseQuery(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	page := h.res.Service.TryFindManyWithCount(r.Context(), pagination, query).UnwrapOrThrow()
	if !h.flush(w, r) {
		return
	}
	httpx.List(w, page.Rows, page.Count)
}

func (h *Handler[T]) detail(w http.ResponseWriter, r *http.Request) {
	row, err := h.res.Service.TryFindUnique(r.Context(), auditable.ByID(chi.URLParam(r, "id"))).Unwrap()
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if row == nil {
		httpx.RespondAppError(w, apperr.NotFound(h.res.Label+" not found"))
		return
	}
	if !h.flush(w, r) {
		return
	}
	httpx.Data(w, http.StatusOK, row)
}

func (h *Handler[T]) create(w http.ResponseWriter, r *http.Request) {
	values, err := h.res.DecodeCreate(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.respondRow(w, r, http.StatusCreated, func() (T, error) {
		return h.res.Service.TryCreate(r.Context(), values).Unwrap()
	})
}

func (h *Handler[T]) update(w http.ResponseWriter, r *http.Request) {
	values, err := h.res.DecodeUpdate(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id := chi.URLParam(r, "id")
	h.respondRow(w, r, http.StatusOK, func() (T, error) {
		return h.res.Service.TryUpdate(r.Context(), auditable.ByID(id), values).Unwrap()
	})
}

func (h *Handler[T]) remove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.respondRow(w, r, http.StatusOK, func() (T, error) {
		return h.res.Service.TryDelete(r.Context(), auditable.ByID(id)).Unwrap()
	})
}

func (h *Handler[T]) respondRow(w http.ResponseWriter, r *http.Request, status int, op func() (T, error)) {
	row, err := op()
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if !h.flush(w, r) {
		return
	}
	httpx.Data(w, status, row)
}

type bulkDeleteRequest struct {
	IDs    []string       `json:"ids" validate:"omitempty,max=500,dive,required"`
	Filter map[string]any `json:"filter"`
}

func (h *Handler[T]) removeMany(w http.ResponseWriter, r *http.Request) {
	var req bulkDeleteRequest
	if err := httpx.DecodeValid(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	filter := auditable.Filter{IDs: req.IDs}
	if len(req.Filter) > 0 {
		filter.Equals = req.Filter
	}
	res := h.res.Service.TryDeleteMany(r.Context(), filter)
	if res.IsErr() {
		httpx.RespondAppError(w, res.Error())
		return
	}
	if !h.flush(w, r) {
		return
	}
	batch, _ := res.Unwrap()
	httpx.Data(w, http.StatusOK, batch)
}

func (h *Handler[T]) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.UploadMaxBytes)
	file, _, err := r.FormFile(uploadField)
	if err != nil {
		httpx.RespondAppError(w, apperr.Wrap(apperr.StatusBadRequest, "multipart field \""+uploadField+"\" is required", err))
		return
	}
	defer file.Close()

	res := h.res.Service.TryExcelUpload(r.Context(), file)
	res.Match(
		func(rows []T) {
			if h.flush(w, r) {
				httpx.List(w, rows, len(rows))
			}
		},
		func(appErr *apperr.Error) { httpx.RespondAppError(w, appErr) },
	)
}

// flush persists the staged entry for the caller. A failed flush fails the request.
func (h *Handler[T]) flush(w http.ResponseWriter, r *http.Request) bool {
	principal, _ := rbac.PrincipalFromContext(r.Context())
	res := h.res.Service.Audit(r.Context(), principal.UserID)
	if res.IsErr() {
		h.logger.Error("audit flush failed",
			slog.String("resource", string(h.res.Service.Resource())),
			slog.String("user", principal.UserID),
			slog.Any("error", res.Error()))
		httpx.RespondAppError(w, res.Error())
		return false
	}
	return true
}

func (h *Handler[T]) parseQuery(r *http.Request) (auditable.Pagination, auditable.Query, error) {
	q := r.URL.Query()
	var p auditable.Pagination
	var err error
	if p.Page, err = intParam(q.Get("page"), "page"); err != nil {
		return p, auditable.Query{}, err
	}
	if p.Page > auditable.MaxPage {
		return p, auditable.Query{}, apperr.BadRequest("page must not exceed " + strconv.Itoa(auditable.MaxPage))
	}
	if p.PageSize, err = intParam(q.Get("pageSize"), "pageSize"); err != nil {
		return p, auditable.Query{}, err
	}

	query := auditable.Query{
		Filter:  auditable.Filter{Search: strings.TrimSpace(q.Get("search"))},
		OrderBy: strings.TrimSpace(q.Get("orderBy")),
	}
	switch strings.ToLower(strings.TrimSpace(q.Get("order"))) {
	case "", "asc":
	case "desc":
		query.Desc = true
	default:
		return p, query, apperr.BadRequest("order must be asc or desc")
	}
	for _, name := range h.res.Filters {
		if v := strings.TrimSpace(q.Get(name)); v != "" {
			if query.Equals == nil {
				query.Equals = map[string]any{}
			}
			query.Equals[name] = v
		}
	}
	return p, query, nil
}

func intParam(raw, name string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, apperr.BadRequest(name + " must be a positive integer")
	}
	return n, nil
}
