// README: In-memory driver store for demo mode and hermetic tests.
package driver

import (
	"context"
	"sync"

	"swiftcab/internal/types"
)

type MemStore struct {
	mu       sync.Mutex
	drivers  map[types.ID]*Driver
	cabTypes map[types.ID]CabType
}

func NewMemStore() *MemStore {
	return &MemStore{
		drivers:  make(map[types.ID]*Driver),
		cabTypes: make(map[types.ID]CabType),
	}
}

func (s *MemStore) Put(d Driver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := d
	s.drivers[d.ID] = &cp
}

func (s *MemStore) PutCabType(ct CabType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cabTypes[ct.ID] = ct
}

func (s *MemStore) Get(ctx context.Context, id types.ID) (*Driver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drivers[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *MemStore) ListByStatus(ctx context.Context, st Status) ([]Driver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Driver
	for _, d := range s.drivers {
		if d.Status == st {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (s *MemStore) UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drivers[id]
	if !ok {
		return false, ErrNotFound
	}
	if d.Status != from || d.StatusVersion != version {
		return false, nil
	}
	d.Status = to
	d.StatusVersion++
	return true, nil
}

func (s *MemStore) CabTypes(ctx context.Context) (map[types.ID]CabType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[types.ID]CabType, len(s.cabTypes))
	for id, ct := range s.cabTypes {
		out[id] = ct
	}
	return out, nil
}
