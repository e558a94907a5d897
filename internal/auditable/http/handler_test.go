package auditablehttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rangoon-shop/rangoon-admin/internal/audit"
	"github.com/rangoon-shop/rangoon-admin/internal/auditable"
	"github.com/rangoon-shop/rangoon-admin/internal/platform/httpx"
	"github.com/rangoon-shop/rangoon-admin/internal/platform/sheet"
	"github.com/rangoon-shop/rangoon-admin/internal/rbac"
)

type region struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (r region) RecordID() string { return r.ID }

type stubRepo struct {
	mu   sync.Mutex
	rows map[string]region
	seq  int
}

func (s *stubRepo) sorted() []region {
	out := make([]region, 0, len(s.rows))
	for _, r := range s.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *stubRepo) Count(ctx context.Context, f auditable.Filter) (int, error) {
	return len(s.rows), nil
}

func (s *stubRepo) FindMany(ctx context.Context, q auditable.Query) ([]region, error) {
	all := s.sorted()
	if q.Offset >= len(all) {
		return nil, nil
	}
	end := min(len(all), q.Offset+q.Limit)
	return all[q.Offset:end], nil
}

func (s *stubRepo) FindUnique(ctx context.Context, l auditable.Lookup) (*region, error) {
	r, ok := s.rows[fmt.Sprint(l.Value)]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (s *stubRepo) FindFirst(ctx context.Context, q auditable.Query) (*region, error) {
	return nil, nil
}

func (s *stubRepo) FindIDs(ctx context.Context, f auditable.Filter) ([]string, error) {
	return nil, nil
}

func (s *stubRepo) insert(name string) (region, error) {
	for _, r := range s.rows {
		if r.Name == name {
			return region{}, &pgconn.PgError{Code: "23505"}
		}
	}
	s.seq++
	r := region{ID: fmt.Sprintf("r%d", s.seq), Name: name}
	s.rows[r.ID] = r
	return r, nil
}

func (s *stubRepo) Create(ctx context.Context, v auditable.Values) (region, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insert(v["name"].(string))
}

func (s *stubRepo) Update(ctx context.Context, l auditable.Lookup, v auditable.Values) (region, error) {
	r, ok := s.rows[fmt.Sprint(l.Value)]
	if !ok {
		return region{}, pgx.ErrNoRows
	}
	r.Name = v["name"].(string)
	s.rows[r.ID] = r
	return r, nil
}

func (s *stubRepo) Delete(ctx context.Context, l auditable.Lookup) (region, error) {
	r, ok := s.rows[fmt.Sprint(l.Value)]
	if !ok {
		return region{}, pgx.ErrNoRows
	}
	delete(s.rows, r.ID)
	return r, nil
}

func (s *stubRepo) DeleteMany(ctx context.Context, f auditable.Filter) (int64, error) {
	var n int64
	for _, id := range f.IDs {
		if _, ok := s.rows[id]; ok {
			delete(s.rows, id)
			n++
		}
	}
	return n, nil
}

func (s *stubRepo) Upsert(ctx context.Context, u auditable.Upsert) (region, bool, error) {
	for _, r := range s.rows {
		if r.Name == u.Value {
			return r, false, nil
		}
	}
	r, err := s.insert(u.Value.(string))
	return r, err == nil, err
}

func (s *stubRepo) WithTx(ctx context.Context, fn func(auditable.Repository[region]) error) error {
	return fn(s)
}

type regionInput struct {
	Name string `json:"name" validate:"required,max=100"`
}

func decodeRegion(r *http.Request) (auditable.Values, error) {
	var in regionInput
	if err := httpx.DecodeValid(r, &in); err != nil {
		return nil, err
	}
	return auditable.Values{"name": in.Name}, nil
}

type fixture struct {
	router http.Handler
	repo   *stubRepo
	sink   *audit.MemorySink
}

func newFixture(t *testing.T, withImporter bool) fixture {
	t.Helper()
	repo := &stubRepo{rows: map[string]region{"r0": {ID: "r0", Name: "Yangon"}}}
	sink := audit.NewMemorySink()
	cfg := auditable.Config{Resource: rbac.ResourceRegion, Sink: sink}
	if withImporter {
		cfg.Importer = &auditable.Importer{Key: "name", Decode: func(row sheet.Row) (auditable.Values, error) {
			return auditable.Values{"name": row.Get("name")}, nil
		}}
	}
	svc := auditable.New[region](repo, cfg)

	store := rbac.NewMemoryStore(
		rbac.Permission{Role: rbac.RoleCustomer, Action: rbac.ActionRead, Resource: rbac.ResourceRegion},
	)
	engine, err := rbac.NewEngine(rbac.EngineConfig{Store: store})
	require.NoError(t, err)

	h := NewHandler(nil, Resource[region]{Service: svc, DecodeCreate: decodeRegion, DecodeUpdate: decodeRegion}, rbac.Middleware{Engine: engine}, Options{})
	r := chi.NewRouter()
	r.Use(httpx.Recoverer(nil))
	r.Use(audit.Middleware(sink, nil))
	r.Route("/regions", h.MountRoutes)
	return fixture{router: r, repo: repo, sink: sink}
}

func (f fixture) do(req *http.Request, p *rbac.Principal) *httptest.ResponseRecorder {
	if p != nil {
		req = req.WithContext(rbac.ContextWithPrincipal(req.Context(), *p))
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

var (
	admin    = &rbac.Principal{UserID: "admin-1", SuperUser: true}
	customer = &rbac.Principal{UserID: "cust-1", Role: rbac.RoleCustomer}
)

func TestListReturnsEnvelopeAndAudits(t *testing.T) {
	f := newFixture(t, false)

	rr := f.do(httptest.NewRequest(http.MethodGet, "/regions?page=1&pageSize=5", nil), customer)
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Status  int      `json:"status"`
		Results []region `json:"results"`
		Count   int      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "Yangon", body.Results[0].Name)

	entries := f.sink.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "cust-1", entries[0].ActorID)
	assert.Equal(t, []string{"r0"}, entries[0].ResourceIDs)
}

func TestListBadPageIsBadRequest(t *testing.T) {
	f := newFixture(t, false)
	for _, page := range []string{"zero", "-1", "9223372036854775807", strconv.Itoa(auditable.MaxPage + 1)} {
		rr := f.do(httptest.NewRequest(http.MethodGet, "/regions?page="+page, nil), customer)
		assert.Equal(t, http.StatusBadRequest, rr.Code, page)
		assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
	}
	assert.Empty(t, f.sink.Entries())
}

func TestPermissionOutcomesAreDistinct(t *testing.T) {
	f := newFixture(t, false)

	assert.Equal(t, http.StatusUnauthorized, f.do(httptest.NewRequest(http.MethodGet, "/regions", nil), nil).Code)
	assert.Equal(t, http.StatusForbidden, f.do(httptest.NewRequest(http.MethodPost, "/regions", strings.NewReader(`{"name":"Mandalay"}`)), customer).Code)
	assert.Equal(t, http.StatusNotFound, f.do(httptest.NewRequest(http.MethodGet, "/regions/detail/missing", nil), customer).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(httptest.NewRequest(http.MethodPost, "/regions", strings.NewReader(`{"name":""}`)), admin).Code)
	assert.Empty(t, f.sink.Entries())
}

func TestCreateConflictAndSuccess(t *testing.T) {
	f := newFixture(t, false)

	rr := f.do(httptest.NewRequest(http.MethodPost, "/regions", strings.NewReader(`{"name":"Yangon"}`)), admin)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = f.do(httptest.NewRequest(http.MethodPost, "/regions", strings.NewReader(`{"name":"Mandalay"}`)), admin)
	require.Equal(t, http.StatusCreated, rr.Code)
	entries := f.sink.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, rbac.ActionCreate, entries[0].Action)
	assert.Equal(t, "admin-1", entries[0].ActorID)
}

func TestUpdateAndDelete(t *testing.T) {
	f := newFixture(t, false)

	rr := f.do(httptest.NewRequest(http.MethodPatch, "/regions/detail/r0", strings.NewReader(`{"name":"Yangon Region"}`)), admin)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Yangon Region", f.repo.rows["r0"].Name)

	rr = f.do(httptest.NewRequest(http.MethodDelete, "/regions/detail/nope", nil), admin)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = f.do(httptest.NewRequest(http.MethodDelete, "/regions/detail/r0", nil), admin)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, f.repo.rows)
	assert.Len(t, f.sink.Entries(), 2)
}

func TestDeleteMultiRecordsIDs(t *testing.T) {
	f := newFixture(t, false)
	f.repo.rows["a"] = region{ID: "a", Name: "A"}
	f.repo.rows["b"] = region{ID: "b", Name: "B"}

	rr := f.do(httptest.NewRequest(http.MethodDelete, "/regions/multi", strings.NewReader(`{"ids":["a","b"]}`)), admin)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":200,"data":{"count":2}}`, rr.Body.String())

	entries := f.sink.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, []string{"a", "b"}, entries[0].ResourceIDs)
}

func TestDeleteMultiRequiresFilter(t *testing.T) {
	f := newFixture(t, false)
	rr := f.do(httptest.NewRequest(http.MethodDelete, "/regions/multi", strings.NewReader(`{}`)), admin)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func uploadRequest(t *testing.T, rows [][]string) *http.Request {
	t.Helper()
	var file bytes.Buffer
	require.NoError(t, sheet.Write(&file, []string{"name"}, rows))
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(uploadField, "regions.xlsx")
	require.NoError(t, err)
	_, err = part.Write(file.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/regions/excel-upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestExcelUpload(t *testing.T) {
	f := newFixture(t, true)

	rr := f.do(uploadRequest(t, [][]string{{"Yangon"}, {"Bago"}}), admin)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, f.repo.rows, 2)

	entries := f.sink.Entries()
	require.Len(t, entries, 1)
	assert.Len(t, entries[0].ResourceIDs, 2)
}

func TestExcelUploadUnsupported(t *testing.T) {
	f := newFixture(t, false)
	rr := f.do(uploadRequest(t, [][]string{{"Bago"}}), admin)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestExcelUploadRequiresFile(t *testing.T) {
	f := newFixture(t, true)
	rr := f.do(httptest.NewRequest(http.MethodPost, "/regions/excel-upload", nil), admin)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
