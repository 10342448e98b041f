package audit

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is an in-memory append-only repository, the default when no database is
// configured. Records are lost on restart.
type MemoryRepo struct {
	mu     sync.Mutex
	events []Event
	max    int
}

// NewMemoryRepo keeps at most max events (oldest dropped first). max <= 0 means unbounded.
func NewMemoryRepo(max int) *MemoryRepo { return &MemoryRepo{max: max} }

func (r *MemoryRepo) Append(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	if r.max > 0 && len(r.events) > r.max {
		r.events = append([]Event(nil), r.events[len(r.events)-r.max:]...)
	}
	return nil
}

func (r *MemoryRepo) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// ListEvents returns events with from <= CreatedAt < to, oldest first.
func (r *MemoryRepo) ListEvents(_ context.Context, from, to time.Time) ([]Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if !e.CreatedAt.Before(from) && e.CreatedAt.Before(to) {
			out = append(out, e)
		}
	}
	return out, nil
}
