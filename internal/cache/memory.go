package cache

import (
	"context"
	"time"
)

const defaultMemoryEntries = 512

// Memory is an in-process Store backed by LRUCache.
type Memory struct {
	lru *LRUCache[[]byte]
}

// NewMemory creates a memory store. maxEntries <= 0 picks a default.
func NewMemory(maxEntries int, ttl time.Duration) *Memory {
	if maxEntries <= 0 {
		maxEntries = defaultMemoryEntries
	}
	return &Memory{lru: NewLRUCache[[]byte](maxEntries, ttl)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.lru.Get(key)
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.lru.Set(key, append([]byte(nil), value...))
	return nil
}

func (m *Memory) Clear(context.Context) error {
	m.lru.Clear()
	return nil
}

// CleanExpired lets a Manager purge the underlying LRU.
func (m *Memory) CleanExpired() int { return m.lru.CleanExpired() }

var (
	_ Store   = (*Memory)(nil)
	_ Cleaner = (*Memory)(nil)
)
