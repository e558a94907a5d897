package audit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rangoon-shop/rangoon-admin/internal/rbac"
)

func TestMiddlewareBindsTrailAndFlushesLeftovers(t *testing.T) {
	sink := NewMemorySink()
	var seen *Trail
	handler := Middleware(sink, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		trail, ok := TrailFrom(r.Context())
		require.True(t, ok)
		seen = trail
		trail.Stage(rbac.ActionUpdate, rbac.ResourceBrand, []string{"b1"})
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPatch, "/brands/detail/b1", nil)
	ctx, cancel := context.WithCancel(rbac.ContextWithPrincipal(req.Context(), rbac.Principal{UserID: "u7", Role: rbac.RoleAdmin}))
	cancel()
	handler.ServeHTTP(httptest.NewRecorder(), req.WithContext(ctx))

	require.NotNil(t, seen)
	entries := sink.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "u7", entries[0].ActorID)
	assert.Empty(t, seen.Pending())
}

func TestMiddlewareGivesEachRequestItsOwnTrail(t *testing.T) {
	var trails []*Trail
	handler := Middleware(NewMemorySink(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		trail, _ := TrailFrom(r.Context())
		trails = append(trails, trail)
	}))
	for i := 0; i < 2; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	}
	require.Len(t, trails, 2)
	assert.NotSame(t, trails[0], trails[1])
}

func TestMiddlewareSkipsAnonymousLeftovers(t *testing.T) {
	sink := NewMemorySink()
	handler := Middleware(sink, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		trail, _ := TrailFrom(r.Context())
		trail.Stage(rbac.ActionRead, rbac.ResourceBrand, nil)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Empty(t, sink.Entries())
}
