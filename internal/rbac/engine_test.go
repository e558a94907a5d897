package rbac

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingStore struct {
	*MemoryStore
	roleCalls atomic.Int32
	fail      error
}

func (s *countingStore) RolePermissions(ctx context.Context, role Role) ([]Permission, error) {
	s.roleCalls.Add(1)
	if s.fail != nil {
		return nil, s.fail
	}
	return s.MemoryStore.RolePermissions(ctx, role)
}

func newTestEngine(t *testing.T, store Store, client *redis.Client) *Engine {
	t.Helper()
	engine, err := NewEngine(EngineConfig{Store: store, Redis: client})
	require.NoError(t, err)
	return engine
}

func TestCustomerCanReadButNotDeleteProduct(t *testing.T) {
	store := NewMemoryStore(Permission{Role: RoleCustomer, Action: ActionRead, Resource: ResourceProduct})
	engine := newTestEngine(t, store, nil)
	require.NoError(t, engine.Load(context.Background()))

	assert.True(t, engine.Can(RoleCustomer, ActionRead, ResourceProduct))
	assert.False(t, engine.Can(RoleCustomer, ActionDelete, ResourceProduct))
}

func TestCanFailsClosed(t *testing.T) {
	store := NewMemoryStore(Presets()...)
	engine := newTestEngine(t, store, nil)

	// nothing assembled yet
	assert.False(t, engine.Can(RoleAdmin, ActionRead, ResourceProduct))

	require.NoError(t, engine.Load(context.Background()))
	assert.False(t, engine.Can("Ghost", ActionRead, ResourceProduct))
	assert.False(t, engine.Can(RoleAdmin, "Approve", ResourceProduct))
	assert.False(t, engine.Can(RoleAdmin, ActionRead, "Spaceship"))
	assert.False(t, engine.Can(RoleGuest, ActionRead, ResourceBrand))
}

func TestWildcardBypassesEveryCheck(t *testing.T) {
	engine := newTestEngine(t, NewMemoryStore(), nil)

	for _, r := range Resources() {
		for _, a := range Actions() {
			assert.True(t, engine.Can(RoleWildcard, a, r))
		}
	}
	assert.Len(t, engine.EffectivePermissions(RoleWildcard), len(Actions())*len(Resources()))
}

func TestGrantIsAdditiveAndIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(Permission{Role: RoleShopowner, Action: ActionRead, Resource: ResourceProduct})
	engine := newTestEngine(t, store, nil)
	require.NoError(t, engine.Load(ctx))

	require.NoError(t, engine.Grant(ctx, RoleShopowner, ActionUpdate, ResourceProduct))
	first := engine.EffectivePermissions(RoleShopowner)
	require.NoError(t, engine.Grant(ctx, RoleShopowner, ActionUpdate, ResourceProduct))
	second := engine.EffectivePermissions(RoleShopowner)

	assert.Equal(t, first, second)
	assert.Equal(t, []Grant{
		{Action: ActionRead, Resource: ResourceProduct},
		{Action: ActionUpdate, Resource: ResourceProduct},
	}, second)
	assert.True(t, engine.Can(RoleShopowner, ActionRead, ResourceProduct))

	all, err := store.ListPermissions(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestGrantRejectsUnknownNames(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, NewMemoryStore(), nil)

	assert.ErrorIs(t, engine.Grant(ctx, RoleAdmin, "Approve", ResourceProduct), ErrUnknownAction)
	assert.ErrorIs(t, engine.Grant(ctx, RoleAdmin, ActionRead, "Spaceship"), ErrUnknownResource)
	assert.ErrorIs(t, engine.Grant(ctx, "", ActionRead, ResourceProduct), ErrEmptyRole)
}

func TestEffectivePermissionsMatchesCan(t *testing.T) {
	store := NewMemoryStore(Presets()...)
	engine := newTestEngine(t, store, nil)
	require.NoError(t, engine.Load(context.Background()))

	for _, role := range []Role{RoleAdmin, RoleEmployee, RoleCustomer, RoleShopowner, RoleGuest} {
		granted := make(map[Grant]bool)
		for _, g := range engine.EffectivePermissions(role) {
			granted[g] = true
		}
		for _, r := range Resources() {
			for _, a := range Actions() {
				assert.Equal(t, granted[Grant{Action: a, Resource: r}], engine.Can(role, a, r), "%s %s %s", role, a, r)
			}
		}
	}
}

func TestAuthorizeAssemblesOnceUnderConcurrency(t *testing.T) {
	store := &countingStore{MemoryStore: NewMemoryStore(Presets()...)}
	engine := newTestEngine(t, store, nil)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := engine.Authorize(context.Background(), RoleEmployee, ActionRead, ResourceOrder)
			assert.NoError(t, err)
			assert.True(t, ok)
		}()
	}
	wg.Wait()

	// singleflight collapses concurrent misses; later calls hit the cache
	assert.LessOrEqual(t, store.roleCalls.Load(), int32(32))
	before := store.roleCalls.Load()
	_, err := engine.Authorize(context.Background(), RoleEmployee, ActionRead, ResourceOrder)
	require.NoError(t, err)
	assert.Equal(t, before, store.roleCalls.Load())
}

func TestAuthorizeSurfacesStoreErrors(t *testing.T) {
	store := &countingStore{MemoryStore: NewMemoryStore(), fail: errors.New("connection refused")}
	engine := newTestEngine(t, store, nil)

	ok, err := engine.Authorize(context.Background(), RoleCustomer, ActionRead, ResourceProduct)
	require.Error(t, err)
	assert.False(t, ok)
}

func TestWatchInvalidatesOnBump(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewMemoryStore(Permission{Role: RoleCustomer, Action: ActionRead, Resource: ResourceProduct})
	engine := newTestEngine(t, store, client)
	require.NoError(t, engine.Load(context.Background()))
	require.True(t, engine.Can(RoleCustomer, ActionRead, ResourceProduct))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- engine.Watch(ctx) }()

	require.Eventually(t, func() bool {
		return client.Publish(context.Background(), BumpChannel, string(RoleCustomer)).Val() > 0
	}, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return !engine.Can(RoleCustomer, ActionRead, ResourceProduct)
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestRequireMiddleware(t *testing.T) {
	store := NewMemoryStore(Permission{Role: RoleCustomer, Action: ActionRead, Resource: ResourceProduct})
	mw := Middleware{Engine: newTestEngine(t, store, nil)}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	cases := []struct {
		name      string
		principal *Principal
		action    Action
		want      int
	}{
		{name: "anonymous", action: ActionRead, want: http.StatusUnauthorized},
		{name: "allowed", principal: &Principal{UserID: "u1", Role: RoleCustomer}, action: ActionRead, want: http.StatusNoContent},
		{name: "denied", principal: &Principal{UserID: "u1", Role: RoleCustomer}, action: ActionDelete, want: http.StatusForbidden},
		{name: "blocked", principal: &Principal{UserID: "u1", Role: RoleCustomer, Blocked: true}, action: ActionRead, want: http.StatusForbidden},
		{name: "superuser", principal: &Principal{UserID: "root", SuperUser: true}, action: ActionDelete, want: http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/products", nil)
			if tc.principal != nil {
				req = req.WithContext(ContextWithPrincipal(req.Context(), *tc.principal))
			}
			rr := httptest.NewRecorder()
			mw.Require(tc.action, ResourceProduct)(next).ServeHTTP(rr, req)
			assert.Equal(t, tc.want, rr.Code)
		})
	}
}

// slowStore reads the store on the first RolePermissions call, then holds the
// result until released.
type slowStore struct {
	*MemoryStore
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func (s *slowStore) RolePermissions(ctx context.Context, role Role) ([]Permission, error) {
	perms, err := s.MemoryStore.RolePermissions(ctx, role)
	if s.calls.Add(1) == 1 {
		close(s.started)
		<-s.release
	}
	return perms, err
}

func TestGrantWinsOverResolveStartedBeforeIt(t *testing.T) {
	store := &slowStore{MemoryStore: NewMemoryStore(), started: make(chan struct{}), release: make(chan struct{})}
	engine := newTestEngine(t, store, nil)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- engine.Resolve(ctx, RoleShopowner) }()
	<-store.started

	require.NoError(t, engine.Grant(ctx, RoleShopowner, ActionUpdate, ResourceProduct))
	assert.True(t, engine.Can(RoleShopowner, ActionUpdate, ResourceProduct))

	close(store.release)
	require.NoError(t, <-done)
	assert.True(t, engine.Can(RoleShopowner, ActionUpdate, ResourceProduct), "stale set must not replace the granted one")

	engine.Invalidate(RoleShopowner)
	allowed, err := engine.Authorize(ctx, RoleShopowner, ActionUpdate, ResourceProduct)
	require.NoError(t, err)
	assert.True(t, allowed)
}
