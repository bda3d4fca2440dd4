package countstore

import (
	"context"
	"sync"
)

type MemCountStore struct {
	mu     sync.Mutex
	Counts map[string]int
}

func NewMemCountStore() *MemCountStore {
	return &MemCountStore{Counts: make(map[string]int)}
}

func (s *MemCountStore) Increment(ctx context.Context, name, val string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := bucket(name, val)
	s.Counts[k]++
	return s.Counts[k], nil
}

func (s *MemCountStore) Reset(ctx context.Context, name, val string) error {
	s.mu.Lock()
	delete(s.Counts, bucket(name, val))
	s.mu.Unlock()
	return nil
}

func (s *MemCountStore) GetCount(ctx context.Context, name, val string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Counts[bucket(name, val)], nil
}
