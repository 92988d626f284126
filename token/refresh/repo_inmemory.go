package refresh

import (
	"sync"
	"time"
)

var _ Repo = (*InMemoryRepo)(nil)

// InMemoryRepo is a map-backed grant store
type InMemoryRepo struct {
	mu     sync.RWMutex
	grants map[string]Grant
}

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		grants: make(map[string]Grant),
	}
}

func (r *InMemoryRepo) Upsert(grant *Grant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grants[grant.ID] = *grant
	return nil
}

// Delete is a no-op for unknown IDs
func (r *InMemoryRepo) Delete(id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.grants[id]
	delete(r.grants, id)
	return ok, nil
}

func (r *InMemoryRepo) Get(id string) (*Grant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.grants[id]
	if !ok {
		return nil, ErrGrantNotFound
	}
	return &g, nil
}

func (r *InMemoryRepo) DeleteIssuedBefore(cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, g := range r.grants {
		if g.IssuedAt.Before(cutoff) {
			delete(r.grants, id)
			removed++
		}
	}
	return removed, nil
}
