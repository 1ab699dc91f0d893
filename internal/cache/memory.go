package cache

import (
	"context"
	"sync"
	"time"
)

type item struct {
	value      time.Time
	expiration time.Time
}

// Memory is an in-process cache with expiration.
type Memory struct {
	items map[string]item
	mu    sync.RWMutex
	now   func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		items: make(map[string]item),
		now:   time.Now,
	}
}

func (m *Memory) Get(ctx context.Context, key string) (time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	it, found := m.items[key]
	if !found || m.now().After(it.expiration) {
		return time.Time{}, ErrMiss
	}
	return it.value, nil
}

func (m *Memory) Set(ctx context.Context, key string, fetchedAt time.Time, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items[key] = item{value: fetchedAt, expiration: m.now().Add(ttl)}
	return nil
}

// Cleanup removes expired items from the cache
func (m *Memory) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for k, v := range m.items {
		if now.After(v.expiration) {
			delete(m.items, k)
		}
	}
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

func (m *Memory) Close() error { return nil }
