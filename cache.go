package saga

import (
	"context"
	"sync"
)

// SnapshotCache keeps the last saga listing so a later process can fall back
// to it when the orchestrator cannot be reached. It stores raw snapshots only;
// display statuses are always recomputed.
type SnapshotCache interface {
	// StoreSagas replaces the cached listing.
	StoreSagas(ctx context.Context, sagas []Saga) error

	// LoadSagas returns the cached listing, or an empty slice if there is none.
	LoadSagas(ctx context.Context) ([]Saga, error)
}

// FindCachedSaga returns one saga from cache's listing.
func FindCachedSaga(ctx context.Context, cache SnapshotCache, id string) (*Saga, bool, error) {
	sagas, err := cache.LoadSagas(ctx)
	if err != nil {
		return nil, false, err
	}
	for i := range sagas {
		if sagas[i].ID == id {
			return sagas[i].Clone(), true, nil
		}
	}
	return nil, false, nil
}

// MemoryCache implements SnapshotCache in process memory.
type MemoryCache struct {
	mu    sync.RWMutex
	sagas []Saga
}

// NewMemoryCache creates a new MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

// StoreSagas replaces the cached listing.
func (c *MemoryCache) StoreSagas(ctx context.Context, sagas []Saga) error {
	cp := make([]Saga, len(sagas))
	for i := range sagas {
		cp[i] = *sagas[i].Clone()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sagas = cp
	return nil
}

// LoadSagas returns a copy of the cached listing.
func (c *MemoryCache) LoadSagas(ctx context.Context) ([]Saga, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Saga, len(c.sagas))
	for i := range c.sagas {
		out[i] = *c.sagas[i].Clone()
	}
	return out, nil
}

// Ensure MemoryCache implements SnapshotCache.
var _ SnapshotCache = (*MemoryCache)(nil)
