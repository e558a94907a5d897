package audit

import (
	"errors"
	"time"

	"github.com/rangoon-shop/rangoon-admin/internal/rbac"
)

var (
	// ErrNoActor is returned when a staged entry is flushed without an actor.
	ErrNoActor = errors.New("audit: actor required")
	// ErrNothingStaged is returned when a flush finds no staged entry.
	ErrNothingStaged = errors.New("audit: nothing staged")
	// ErrNoTrail is returned when a context carries no trail.
	ErrNoTrail = errors.New("audit: no trail bound to context")
)

// Entry is one immutable audit log record.
type Entry struct {
	ID          string        `json:"id"`
	ActorID     string        `json:"actorId"`
	Action      rbac.Action   `json:"action"`
	Resource    rbac.Resource `json:"resource"`
	ResourceIDs []string      `json:"resourceIds"`
	At          time.Time     `json:"at"`
}

// Clone returns a copy that shares no slices with e.
func (e Entry) Clone() Entry {
	ids := make([]string, len(e.ResourceIDs))
	copy(ids, e.ResourceIDs)
	e.ResourceIDs = ids
	return e
}
