package audithttp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rangoon-shop/rangoon-admin/internal/apperr"
	"github.com/rangoon-shop/rangoon-admin/internal/audit"
	"github.com/rangoon-shop/rangoon-admin/internal/platform/httpx"
	"github.com/rangoon-shop/rangoon-admin/internal/rbac"
)

const (
	defaultDateRange  = 7 * 24 * time.Hour
	maxDateRangeHours = 24 * 90
	dateLayout        = "2006-01-02"
	maxPage           = 1_000_000
)

// TimelineService defines the read contract over the persisted trail.
type TimelineService interface {
	Timeline(ctx context.Context, filters audit.TimelineFilters) (audit.Result, error)
	Export(ctx context.Context, filters audit.TimelineFilters) ([]audit.Entry, error)
	Get(ctx context.Context, id string) (audit.Entry, error)
}

// Exporter writes audit timeline exports.
type Exporter interface {
	WriteCSV(rows []audit.Entry) ([]byte, error)
	WriteXLSX(rows []audit.Entry) ([]byte, error)
}

// Handler serves audit log requests. Reading the trail is itself recorded as an
// AuditLog Read entry.
type Handler struct {
	logger   *slog.Logger
	service  TimelineService
	exporter Exporter
	sink     audit.Sink
	rbac     rbac.Middleware
	now      func() time.Time
}

// NewHandler creates a new audit handler. A nil sink leaves the staged read entries
// to the audit middleware's late flush.
func NewHandler(logger *slog.Logger, service TimelineService, exporter Exporter, sink audit.Sink, rbacMW rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:   logger,
		service:  service,
		exporter: exporter,
		sink:     sink,
		rbac:     rbacMW,
		now:      time.Now,
	}
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		httpx.RespondAppError(w, apperr.BadRequest(err.Error()))
		return
	}
	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		h.handleServerError(w, "load audit timeline", err)
		return
	}
	ids := make([]string, 0, len(result.Rows))
	for _, e := range result.Rows {
		ids = append(ids, e.ID)
	}
	if !h.recordRead(w, r, ids) {
		return
	}
	httpx.JSON(w, http.StatusOK, timelineResponse{
		Status:  http.StatusOK,
		Results: result.Rows,
		Paging:  result.Paging,
	})
}

// The timeline is keyset paged, so it carries paging instead of a total count.
type timelineResponse struct {
	Status  int              `json:"status"`
	Results []audit.Entry    `json:"results"`
	Paging  audit.PagingInfo `json:"paging"`
}

func (h *Handler) handleDetail(w http.ResponseWriter, r *http.Request) {
	entry, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, audit.ErrNotFound) {
		httpx.RespondAppError(w, apperr.NotFound("audit log not found"))
		return
	}
	if err != nil {
		h.handleServerError(w, "load audit entry", err)
		return
	}
	if !h.recordRead(w, r, []string{entry.ID}) {
		return
	}
	httpx.Data(w, http.StatusOK, entry)
}

// recordRead stages an AuditLog Read entry for ids and flushes it under the
// request principal before the response is written.
func (h *Handler) recordRead(w http.ResponseWriter, r *http.Request, ids []string) bool {
	trail, ok := audit.TrailFrom(r.Context())
	if !ok {
		h.handleServerError(w, "record audit log read", audit.ErrNoTrail)
		return false
	}
	staged := trail.Stage(rbac.ActionRead, rbac.ResourceAuditLog, ids)
	if h.sink == nil {
		return true
	}
	principal, _ := rbac.PrincipalFromContext(r.Context())
	if _, err := staged.Flush(r.Context(), h.sink, principal.UserID); err != nil {
		h.logger.Error("audit flush failed",
			slog.String("resource", string(rbac.ResourceAuditLog)),
			slog.String("user", principal.UserID),
			slog.Any("error", err))
		httpx.RespondAppError(w, apperr.Classify(err))
		return false
	}
	return true
}

func (h *Handler) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "text/csv; charset=utf-8", "audit-logs.csv", h.exporter.WriteCSV)
}

func (h *Handler) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "audit-logs.xlsx", h.exporter.WriteXLSX)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request, contentType, filename string, encode func([]audit.Entry) ([]byte, error)) {
	if h.exporter == nil {
		httpx.RespondAppError(w, apperr.Unavailable("export is not configured"))
		return
	}
	filters, err := h.parseFilters(r)
	if err != nil {
		httpx.RespondAppError(w, apperr.BadRequest(err.Error()))
		return
	}
	rows, err := h.service.Export(r.Context(), filters)
	if err != nil {
		h.handleServerError(w, "export audit timeline", err)
		return
	}
	body, err := encode(rows)
	if err != nil {
		h.handleServerError(w, "encode export", err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename=\""+filename+"\"")
	if _, err := w.Write(body); err != nil {
		h.logger.Warn("write export", slog.Any("error", err))
	}
}

// parseFilters reads from/to as inclusive calendar days.
func (h *Handler) parseFilters(r *http.Request) (audit.TimelineFilters, error) {
	q := r.URL.Query()
	now := h.now().UTC()
	toStr := strings.TrimSpace(q.Get("to"))
	if toStr == "" {
		toStr = now.Format(dateLayout)
	}
	toTime, err := time.Parse(dateLayout, toStr)
	if err != nil {
		return audit.TimelineFilters{}, validationError{field: "to"}
	}
	fromStr := strings.TrimSpace(q.Get("from"))
	if fromStr == "" {
		fromStr = toTime.Add(-defaultDateRange).Format(dateLayout)
	}
	fromTime, err := time.Parse(dateLayout, fromStr)
	if err != nil {
		return audit.TimelineFilters{}, validationError{field: "from"}
	}
	if fromTime.After(toTime) {
		return audit.TimelineFilters{}, validationError{field: "range"}
	}
	if toTime.Sub(fromTime) > maxDateRangeHours*time.Hour {
		return audit.TimelineFilters{}, validationError{field: "range"}
	}

	page, err := positiveInt(q.Get("page"), 1, "page")
	if err != nil {
		return audit.TimelineFilters{}, err
	}
	if page > maxPage {
		return audit.TimelineFilters{}, validationError{field: "page"}
	}
	pageSize, err := positiveInt(q.Get("pageSize"), 0, "pageSize")
	if err != nil {
		return audit.TimelineFilters{}, err
	}

	filters := audit.TimelineFilters{
		From:     fromTime,
		To:       toTime.Add(24 * time.Hour),
		Actor:    strings.TrimSpace(q.Get("actor")),
		Page:     page,
		PageSize: pageSize,
	}
	if v := strings.TrimSpace(q.Get("resource")); v != "" {
		res, ok := rbac.ParseResource(v)
		if !ok {
			return audit.TimelineFilters{}, validationError{field: "resource"}
		}
		filters.Resource = string(res)
	}
	if v := strings.TrimSpace(q.Get("action")); v != "" {
		act, ok := rbac.ParseAction(v)
		if !ok {
			return audit.TimelineFilters{}, validationError{field: "action"}
		}
		filters.Action = string(act)
	}
	return filters, nil
}

func positiveInt(raw string, fallback int, field string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, validationError{field: field}
	}
	return n, nil
}

func (h *Handler) handleServerError(w http.ResponseWriter, message string, err error) {
	h.logger.Error(message, slog.Any("error", err))
	httpx.RespondError(w, err)
}

type validationError struct {
	field string
}

func (v validationError) Error() string {
	return "invalid filter: " + v.field
}
