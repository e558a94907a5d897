package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// BumpChannel carries role names whose permission set changed.
const BumpChannel = "rbac.bump"

const defaultCacheSize = 256

var (
	ErrUnknownAction   = errors.New("rbac: unknown action")
	ErrUnknownResource = errors.New("rbac: unknown resource")
	ErrEmptyRole       = errors.New("rbac: role required")
)

// Store persists permission triples.
type Store interface {
	ListPermissions(ctx context.Context) ([]Permission, error)
	RolePermissions(ctx context.Context, role Role) ([]Permission, error)
	// AddPermission stores p and reports whether it was new.
	AddPermission(ctx context.Context, p Permission) (bool, error)
}

type permissionSet map[Grant]struct{}

// EngineConfig collects Engine dependencies.
type EngineConfig struct {
	Store     Store
	Redis     *redis.Client
	Logger    *slog.Logger
	CacheSize int
}

// Engine answers "may role R perform action A on resource X". Role sets are assembled
// from the store once and served from memory afterwards.
type Engine struct {
	store  Store
	redis  *redis.Client
	logger *slog.Logger
	sets   *lru.Cache[Role, permissionSet]
	group  singleflight.Group

	// generations advance on every grant or invalidation of a role. An assembly
	// started under an older generation never reaches the cache.
	mu          sync.Mutex
	generations map[Role]uint64
}

// NewEngine constructs an Engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Store == nil {
		return nil, errors.New("rbac: store required")
	}
	size := cfg.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	sets, err := lru.New[Role, permissionSet](size)
	if err != nil {
		return nil, fmt.Errorf("rbac: role cache: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: cfg.Store, redis: cfg.Redis, logger: logger, sets: sets, generations: make(map[Role]uint64)}, nil
}

// Load assembles every role present in the store.
func (e *Engine) Load(ctx context.Context) error {
	seen := e.snapshot()
	perms, err := e.store.ListPermissions(ctx)
	if err != nil {
		return fmt.Errorf("rbac: load permissions: %w", err)
	}
	byRole := make(map[Role]permissionSet)
	for _, p := range perms {
		set, ok := byRole[p.Role]
		if !ok {
			set = make(permissionSet)
			byRole[p.Role] = set
		}
		if p.Action.Valid() && p.Resource.Valid() {
			set[p.Grant()] = struct{}{}
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sets.Purge()
	for role, set := range byRole {
		if e.generations[role] == seen[role] {
			e.sets.Add(role, set)
		}
	}
	return nil
}

// Can reports whether role may perform action on resource, using assembled sets only.
// Roles that were never assembled are denied.
func (e *Engine) Can(role Role, action Action, resource Resource) bool {
	if role == RoleWildcard {
		return true
	}
	if !action.Valid() || !resource.Valid() {
		return false
	}
	set, ok := e.sets.Get(role)
	if !ok {
		return false
	}
	_, granted := set[Grant{Action: action, Resource: resource}]
	return granted
}

// Authorize assembles role on demand and then answers like Can.
func (e *Engine) Authorize(ctx context.Context, role Role, action Action, resource Resource) (bool, error) {
	if role == RoleWildcard {
		return true, nil
	}
	if err := e.Resolve(ctx, role); err != nil {
		return false, err
	}
	return e.Can(role, action, resource), nil
}

// Resolve makes sure the permission set of role is assembled.
func (e *Engine) Resolve(ctx context.Context, role Role) error {
	if role == RoleWildcard {
		return nil
	}
	if _, ok := e.sets.Get(role); ok {
		return nil
	}
	_, err := e.assemble(ctx, role)
	return err
}

// EffectivePermissions returns the sorted grants of role, consistent with Can.
func (e *Engine) EffectivePermissions(role Role) []Grant {
	if role == RoleWildcard {
		all := make([]Grant, 0, len(actions)*len(resources))
		for _, r := range resources {
			for _, a := range actions {
				all = append(all, Grant{Action: a, Resource: r})
			}
		}
		sortGrants(all)
		return all
	}
	set, ok := e.sets.Get(role)
	if !ok {
		return []Grant{}
	}
	grants := make([]Grant, 0, len(set))
	for g := range set {
		grants = append(grants, g)
	}
	sortGrants(grants)
	return grants
}

// Grant adds (role, action, resource). Granting an existing triple is a no-op.
func (e *Engine) Grant(ctx context.Context, role Role, action Action, resource Resource) error {
	if role == "" {
		return ErrEmptyRole
	}
	if !action.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownAction, action)
	}
	if !resource.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownResource, resource)
	}
	if role == RoleWildcard {
		return nil
	}
	added, err := e.store.AddPermission(ctx, Permission{Role: role, Action: action, Resource: resource})
	if err != nil {
		return fmt.Errorf("rbac: add permission: %w", err)
	}
	if !added {
		if _, ok := e.sets.Get(role); ok {
			return nil
		}
	}
	e.Invalidate(role)
	if _, err := e.assemble(ctx, role); err != nil {
		return err
	}
	e.publish(ctx, role)
	return nil
}

// Invalidate drops the assembled set of role. Assemblies already in flight for role
// are not cached.
func (e *Engine) Invalidate(role Role) {
	e.mu.Lock()
	e.generations[role]++
	e.sets.Remove(role)
	e.mu.Unlock()
	e.group.Forget(string(role))
}

// Watch drops cached role sets announced on BumpChannel until ctx ends.
func (e *Engine) Watch(ctx context.Context) error {
	if e.redis == nil {
		return nil
	}
	sub := e.redis.Subscribe(ctx, BumpChannel)
	defer func() {
		if err := sub.Close(); err != nil {
			e.logger.Warn("rbac unsubscribe", slog.Any("error", err))
		}
	}()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			e.Invalidate(Role(msg.Payload))
			e.logger.Debug("rbac role invalidated", slog.String("role", msg.Payload))
		}
	}
}

func (e *Engine) assemble(ctx context.Context, role Role) (permissionSet, error) {
	v, err, _ := e.group.Do(string(role), func() (interface{}, error) {
		gen := e.generation(role)
		perms, err := e.store.RolePermissions(ctx, role)
		if err != nil {
			return nil, fmt.Errorf("rbac: role permissions %s: %w", role, err)
		}
		set := make(permissionSet, len(perms))
		for _, p := range perms {
			if p.Role != role || !p.Action.Valid() || !p.Resource.Valid() {
				continue
			}
			set[p.Grant()] = struct{}{}
		}
		e.mu.Lock()
		if e.generations[role] == gen {
			e.sets.Add(role, set)
		}
		e.mu.Unlock()
		return set, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(permissionSet), nil
}

func (e *Engine) generation(role Role) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.generations[role]
}

func (e *Engine) snapshot() map[Role]uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[Role]uint64, len(e.generations))
	for role, gen := range e.generations {
		out[role] = gen
	}
	return out
}

func (e *Engine) publish(ctx context.Context, role Role) {
	if e.redis == nil {
		return
	}
	if err := e.redis.Publish(ctx, BumpChannel, string(role)).Err(); err != nil {
		e.logger.Warn("rbac publish bump", slog.String("role", string(role)), slog.Any("error", err))
	}
}

func sortGrants(grants []Grant) {
	sort.Slice(grants, func(i, j int) bool {
		if grants[i].Resource != grants[j].Resource {
			return grants[i].Resource < grants[j].Resource
		}
		return grants[i].Action < grants[j].Action
	})
}
