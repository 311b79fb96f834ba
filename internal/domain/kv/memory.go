package kv

import (
	"context"
	"sort"
	"sync"
)

type memoryStore struct {
	items map[string][]byte
	mutex sync.RWMutex
}

// NewMemory builds a process-local store. Nothing survives a restart.
func NewMemory() Store {
	return &memoryStore{items: make(map[string][]byte)}
}

func (s *memoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mutex.RLock()
	v, ok := s.items[key]
	s.mutex.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (s *memoryStore) Set(_ context.Context, key string, value []byte) error {
	v := make([]byte, len(value))
	copy(v, value)
	s.mutex.Lock()
	s.items[key] = v
	s.mutex.Unlock()
	return nil
}

func (s *memoryStore) Delete(_ context.Context, key string) error {
	s.mutex.Lock()
	delete(s.items, key)
	s.mutex.Unlock()
	return nil
}

func (s *memoryStore) Keys(_ context.Context) ([]string, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	keys := make([]string, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *memoryStore) Close(context.Context) error {
	return nil
}
