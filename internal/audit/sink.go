package audit

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
)

// ErrNotFound is returned when an entry id is unknown.
var ErrNotFound = errors.New("audit: entry not found")

// Sink is the append-only durable store of the trail. Append must be idempotent
// per Entry.ID and return the entry as stored.
type Sink interface {
	Append(ctx context.Context, e Entry) (Entry, error)
}

// MemorySink keeps entries in process. It backs tests and dry runs.
type MemorySink struct {
	mu      sync.RWMutex
	byID    map[string]Entry
	ordered []string
}

// NewMemorySink returns an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{byID: make(map[string]Entry)}
}

func (m *MemorySink) Append(ctx context.Context, e Entry) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if stored, ok := m.byID[e.ID]; ok {
		return stored.Clone(), nil
	}
	m.byID[e.ID] = e.Clone()
	m.ordered = append(m.ordered, e.ID)
	return e.Clone(), nil
}

// Entries returns every stored entry in append order.
func (m *MemorySink) Entries() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Entry, 0, len(m.ordered))
	for _, id := range m.ordered {
		out = append(out, m.byID[id].Clone())
	}
	return out
}

func (m *MemorySink) Window(ctx context.Context, params WindowParams) ([]Entry, error) {
	all, err := m.All(ctx, params.TimelineFilters)
	if err != nil {
		return nil, err
	}
	if params.Offset >= len(all) {
		return []Entry{}, nil
	}
	end := len(all)
	if params.Limit > 0 && params.Offset+params.Limit < end {
		end = params.Offset + params.Limit
	}
	return all[params.Offset:end], nil
}

func (m *MemorySink) All(ctx context.Context, filters TimelineFilters) ([]Entry, error) {
	var out []Entry
	for _, e := range m.Entries() {
		if filters.matches(e) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.After(out[j].At) })
	return out, nil
}

func (m *MemorySink) Get(ctx context.Context, id string) (Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.byID[id]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return e.Clone(), nil
}

func (f TimelineFilters) matches(e Entry) bool {
	if !f.From.IsZero() && e.At.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !e.At.Before(f.To) {
		return false
	}
	if a := strings.TrimSpace(f.Actor); a != "" && e.ActorID != a {
		return false
	}
	if r := strings.TrimSpace(f.Resource); r != "" && !strings.EqualFold(string(e.Resource), r) {
		return false
	}
	if a := strings.TrimSpace(f.Action); a != "" && !strings.EqualFold(string(e.Action), a) {
		return false
	}
	return true
}

// Observer receives flush outcomes.
type Observer interface {
	ObserveFlush(resource, outcome string)
}

// ObservedSink reports every append to an Observer.
type ObservedSink struct {
	Sink     Sink
	Observer Observer
}

func (o ObservedSink) Append(ctx context.Context, e Entry) (Entry, error) {
	stored, err := o.Sink.Append(ctx, e)
	if o.Observer != nil {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		o.Observer.ObserveFlush(string(e.Resource), outcome)
	}
	return stored, err
}
