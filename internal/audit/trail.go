package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rangoon-shop/rangoon-admin/internal/rbac"
)

type trailContextKey struct{}

// Trail holds the entries staged during one logical operation, usually a request.
// It is bound to a context and never shared between requests.
type Trail struct {
	mu     sync.Mutex
	staged []*Staged
	now    func() time.Time
}

// NewTrail returns an empty trail.
func NewTrail() *Trail {
	return &Trail{now: time.Now}
}

// WithTrail binds a fresh trail to ctx.
func WithTrail(ctx context.Context) (context.Context, *Trail) {
	t := NewTrail()
	return context.WithValue(ctx, trailContextKey{}, t), t
}

// TrailFrom returns the trail bound to ctx.
func TrailFrom(ctx context.Context) (*Trail, bool) {
	t, ok := ctx.Value(trailContextKey{}).(*Trail)
	return t, ok && t != nil
}

// Stage records a successful operation. The entry gets its id and timestamp here,
// so retried flushes of the same staged entry stay idempotent downstream.
func (t *Trail) Stage(action rbac.Action, resource rbac.Resource, ids []string) *Staged {
	entry := Entry{
		ID:          uuid.NewString(),
		Action:      action,
		Resource:    resource,
		ResourceIDs: append([]string{}, ids...),
		At:          t.now().UTC(),
	}
	s := &Staged{entry: entry}
	t.mu.Lock()
	t.staged = append(t.staged, s)
	t.mu.Unlock()
	return s
}

// Latest returns the most recently staged entry for resource.
func (t *Trail) Latest(resource rbac.Resource) (*Staged, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.staged) - 1; i >= 0; i-- {
		if t.staged[i].entry.Resource == resource {
			return t.staged[i], true
		}
	}
	return nil, false
}

// Pending returns staged entries that were not flushed yet, oldest first.
func (t *Trail) Pending() []*Staged {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []*Staged
	for _, s := range t.staged {
		if !s.Flushed() {
			out = append(out, s)
		}
	}
	return out
}

// PendingFor returns the unflushed entries staged for resource, oldest first.
func (t *Trail) PendingFor(resource rbac.Resource) []*Staged {
	var out []*Staged
	for _, s := range t.Pending() {
		if s.entry.Resource == resource {
			out = append(out, s)
		}
	}
	return out
}

// Len reports how many entries were staged.
func (t *Trail) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.staged)
}

// FlushPending appends every unflushed entry under actor. It stops at the first failure.
func (t *Trail) FlushPending(ctx context.Context, sink Sink, actor string) ([]Entry, error) {
	var out []Entry
	for _, s := range t.Pending() {
		e, err := s.Flush(ctx, sink, actor)
		if err != nil {
			return out, err
		}
		out = append(out, e)
	}
	return out, nil
}

// Staged is an entry waiting to be flushed.
type Staged struct {
	mu        sync.Mutex
	entry     Entry
	flushed   bool
	persisted Entry
}

// Entry returns a copy of the staged entry. ActorID is set only after a flush.
func (s *Staged) Entry() Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flushed {
		return s.persisted.Clone()
	}
	return s.entry.Clone()
}

// Flushed reports whether the entry reached the sink.
func (s *Staged) Flushed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushed
}

// Flush writes the entry to sink attributed to actor, exactly once. Later calls
// return the persisted entry without touching the sink. A failed append leaves the
// entry pending.
func (s *Staged) Flush(ctx context.Context, sink Sink, actor string) (Entry, error) {
	if actor == "" {
		return Entry{}, ErrNoActor
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flushed {
		return s.persisted.Clone(), nil
	}
	entry := s.entry.Clone()
	entry.ActorID = actor
	stored, err := sink.Append(ctx, entry)
	if err != nil {
		return Entry{}, err
	}
	s.flushed = true
	s.persisted = stored.Clone()
	return stored, nil
}
