package saga

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"
)

// MemorySource implements Source using an in-memory map.
// WARNING: Not a live source - use for tests and offline demos.
type MemorySource struct {
	mu    sync.RWMutex
	sagas map[string]*Saga
}

// NewMemorySource creates a new MemorySource seeded with sagas.
func NewMemorySource(sagas ...Saga) *MemorySource {
	s := &MemorySource{sagas: make(map[string]*Saga)}
	for i := range sagas {
		s.Put(sagas[i])
	}
	return s
}

// LoadFixtures reads saved snapshots into a MemorySource for offline use.
// r holds either a JSON array of sagas or a saved `GET /saga/` listing body.
func LoadFixtures(r io.Reader) (*MemorySource, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	data = bytes.TrimSpace(data)

	var sagas []Saga
	if len(data) > 0 && data[0] == '{' {
		var page SagaPage
		if err := json.Unmarshal(data, &page); err != nil {
			return nil, fmt.Errorf("decode fixtures: %w", err)
		}
		sagas = page.Sagas
	} else if err := json.Unmarshal(data, &sagas); err != nil {
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}

	for i := range sagas {
		if sagas[i].ID == "" {
			return nil, fmt.Errorf("decode fixtures: saga %d has no saga_id", i)
		}
	}
	return NewMemorySource(sagas...), nil
}

// IsLive returns false - MemorySource holds fixtures.
func (s *MemorySource) IsLive() bool {
	return false
}

// Put stores or replaces a saga snapshot.
func (s *MemorySource) Put(saga Saga) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sagas[saga.ID] = saga.Clone()
}

// Delete removes a saga. It reports whether the saga existed.
func (s *MemorySource) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sagas[id]
	delete(s.sagas, id)
	return ok
}

// Clear removes every saga and returns how many were removed.
func (s *MemorySource) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.sagas)
	s.sagas = make(map[string]*Saga)
	return n
}

// ListSagas returns sagas newest first, filtered and paginated.
func (s *MemorySource) ListSagas(ctx context.Context, filter SagaFilter) (*SagaPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	filter = filter.normalize()

	var matched []Saga
	for _, sg := range s.sagas {
		if filter.State != "" && sg.State != filter.State {
			continue
		}
		if filter.Type != "" && sg.Type != filter.Type {
			continue
		}
		matched = append(matched, *sg.Clone())
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].StartTime.Equal(matched[j].StartTime.Time) {
			return matched[i].StartTime.After(matched[j].StartTime.Time)
		}
		return matched[i].ID < matched[j].ID
	})

	total := len(matched)

	// Apply pagination
	start := (filter.Page - 1) * filter.Limit
	if start >= len(matched) {
		matched = nil
	} else {
		matched = matched[start:]
		if len(matched) > filter.Limit {
			matched = matched[:filter.Limit]
		}
	}
	if matched == nil {
		matched = []Saga{}
	}

	return &SagaPage{
		Sagas: matched,
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
	}, nil
}

// GetSaga returns a copy of the stored snapshot.
func (s *MemorySource) GetSaga(ctx context.Context, id string) (*Saga, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if sg, ok := s.sagas[id]; ok {
		return sg.Clone(), nil
	}
	return nil, NewNotFoundError(id)
}

// CountByState counts sagas by state.
func (s *MemorySource) CountByState(ctx context.Context, states ...SagaState) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, sg := range s.sagas {
		for _, st := range states {
			if sg.State == st {
				count++
				break
			}
		}
	}
	return count, nil
}

// Ensure MemorySource implements Source.
var _ Source = (*MemorySource)(nil)
