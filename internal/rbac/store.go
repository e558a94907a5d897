package rbac

import (
	"context"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5"

	"github.com/rangoon-shop/rangoon-admin/internal/platform/db"
)

// PostgresStore keeps permission triples in role_permissions.
type PostgresStore struct {
	db db.DBTX
}

// NewPostgresStore returns a store over the given pool or transaction.
func NewPostgresStore(conn db.DBTX) *PostgresStore {
	return &PostgresStore{db: conn}
}

// ListPermissions returns every stored triple.
func (s *PostgresStore) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := s.db.Query(ctx, `SELECT role, action, resource FROM role_permissions ORDER BY role, resource, action`)
	if err != nil {
		return nil, err
	}
	return collectPermissions(rows)
}

// RolePermissions returns the triples of a single role.
func (s *PostgresStore) RolePermissions(ctx context.Context, role Role) ([]Permission, error) {
	rows, err := s.db.Query(ctx, `SELECT role, action, resource FROM role_permissions WHERE role = $1 ORDER BY resource, action`, string(role))
	if err != nil {
		return nil, err
	}
	return collectPermissions(rows)
}

// AddPermission inserts p unless it already exists.
func (s *PostgresStore) AddPermission(ctx context.Context, p Permission) (bool, error) {
	tag, err := s.db.Exec(ctx, `INSERT INTO role_permissions (role, action, resource) VALUES ($1, $2, $3) ON CONFLICT (role, action, resource) DO NOTHING`,
		string(p.Role), string(p.Action), string(p.Resource))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func collectPermissions(rows pgx.Rows) ([]Permission, error) {
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var role, action, resource string
		if err := rows.Scan(&role, &action, &resource); err != nil {
			return nil, err
		}
		perms = append(perms, Permission{Role: Role(role), Action: Action(action), Resource: Resource(resource)})
	}
	return perms, rows.Err()
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu    sync.RWMutex
	perms map[Permission]struct{}
}

// NewMemoryStore seeds a MemoryStore with perms.
func NewMemoryStore(perms ...Permission) *MemoryStore {
	s := &MemoryStore{perms: make(map[Permission]struct{}, len(perms))}
	for _, p := range perms {
		s.perms[p] = struct{}{}
	}
	return s
}

func (s *MemoryStore) ListPermissions(ctx context.Context) ([]Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Permission, 0, len(s.perms))
	for p := range s.perms {
		out = append(out, p)
	}
	sortPermissions(out)
	return out, nil
}

func (s *MemoryStore) RolePermissions(ctx context.Context, role Role) ([]Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Permission
	for p := range s.perms {
		if p.Role == role {
			out = append(out, p)
		}
	}
	sortPermissions(out)
	return out, nil
}

func (s *MemoryStore) AddPermission(ctx context.Context, p Permission) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.perms[p]; ok {
		return false, nil
	}
	s.perms[p] = struct{}{}
	return true, nil
}

func sortPermissions(perms []Permission) {
	sort.Slice(perms, func(i, j int) bool {
		a, b := perms[i], perms[j]
		if a.Role != b.Role {
			return a.Role < b.Role
		}
		if a.Resource != b.Resource {
			return a.Resource < b.Resource
		}
		return a.Action < b.Action
	})
}
