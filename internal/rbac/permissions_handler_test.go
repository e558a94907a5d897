package rbac

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPermissionsHandlerListsCallerGrants(t *testing.T) {
	store := NewMemoryStore(
		Permission{Role: RoleCustomer, Action: ActionRead, Resource: ResourceProduct},
		Permission{Role: RoleCustomer, Action: ActionRead, Resource: ResourceBrand},
	)
	engine := newTestEngine(t, store, nil)
	handler := NewPermissionsHandler(slog.Default(), engine, Middleware{Engine: engine})

	router := chi.NewRouter()
	router.Route("/me/permissions", handler.MountRoutes)

	req := httptest.NewRequest(http.MethodGet, "/me/permissions", nil)
	req = req.WithContext(ContextWithPrincipal(req.Context(), Principal{UserID: "u1", Role: RoleCustomer}))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Status int `json:"status"`
		Data   struct {
			Role        Role    `json:"role"`
			Permissions []Grant `json:"permissions"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, RoleCustomer, body.Data.Role)
	assert.Equal(t, []Grant{
		{Action: ActionRead, Resource: ResourceBrand},
		{Action: ActionRead, Resource: ResourceProduct},
	}, body.Data.Permissions)
}

func TestPermissionsHandlerRequiresPrincipal(t *testing.T) {
	engine := newTestEngine(t, NewMemoryStore(), nil)
	handler := NewPermissionsHandler(slog.Default(), engine, Middleware{Engine: engine})
	router := chi.NewRouter()
	router.Route("/me/permissions", handler.MountRoutes)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/me/permissions", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
