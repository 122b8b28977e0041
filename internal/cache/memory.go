package cache

import (
	"context"
	"path"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type memoryEntry struct {
	value   []byte
	expires time.Time
}

// MemoryCache is an in-process Cache used when Redis is not configured and
// in tests. Entries are evicted by LRU once size is reached.
type MemoryCache struct {
	lru        *expirable.LRU[string, memoryEntry]
	defaultTTL time.Duration
	closed     atomic.Bool
}

// NewMemoryCache creates a MemoryCache holding at most size entries. No
// entry outlives maxTTL, whatever TTL it was set with.
func NewMemoryCache(size int, defaultTTL, maxTTL time.Duration) *MemoryCache {
	if maxTTL < defaultTTL {
		maxTTL = defaultTTL
	}
	return &MemoryCache{
		lru:        expirable.NewLRU[string, memoryEntry](size, nil, maxTTL),
		defaultTTL: defaultTTL,
	}
}

var _ Cache = (*MemoryCache)(nil)

func (m *MemoryCache) check() error {
	if m.closed.Load() {
		return ErrCacheClosed
	}
	return nil
}

func (m *MemoryCache) lookup(key string) ([]byte, bool) {
	e, ok := m.lru.Get(key)
	if !ok {
		return nil, false
	}
	if !e.expires.IsZero() && time.Now().After(e.expires) {
		m.lru.Remove(key)
		return nil, false
	}
	return e.value, true
}

// Get retrieves a value from the cache
func (m *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	v, ok := m.lookup(key)
	if !ok {
		return nil, ErrKeyNotFound
	}
	return append([]byte(nil), v...), nil
}

// Set stores a value in the cache
func (m *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := m.check(); err != nil {
		return err
	}
	if ttl == 0 {
		ttl = m.defaultTTL
	}
	e := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expires = time.Now().Add(ttl)
	}
	m.lru.Add(key, e)
	return nil
}

// Delete removes a value from the cache
func (m *MemoryCache) Delete(ctx context.Context, key string) error {
	if err := m.check(); err != nil {
		return err
	}
	if _, ok := m.lookup(key); !ok {
		return ErrKeyNotFound
	}
	m.lru.Remove(key)
	return nil
}

// Exists checks if a key exists in the cache
func (m *MemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	if err := m.check(); err != nil {
		return false, err
	}
	_, ok := m.lookup(key)
	return ok, nil
}

// GetMultiple retrieves multiple values from the cache
func (m *MemoryCache) GetMultiple(ctx context.Context, keys []string) (map[string][]byte, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(keys))
	for _, key := range keys {
		if v, ok := m.lookup(key); ok {
			out[key] = append([]byte(nil), v...)
		}
	}
	return out, nil
}

// SetMultiple stores multiple values in the cache
func (m *MemoryCache) SetMultiple(ctx context.Context, items map[string][]byte, ttl time.Duration) error {
	for key, value := range items {
		if err := m.Set(ctx, key, value, ttl); err != nil {
			return err
		}
	}
	return nil
}

// DeletePattern removes keys matching a glob pattern.
func (m *MemoryCache) DeletePattern(ctx context.Context, pattern string) (int, error) {
	if err := m.check(); err != nil {
		return 0, err
	}
	deleted := 0
	for _, key := range m.lru.Keys() {
		if ok, _ := path.Match(pattern, key); ok && m.lru.Remove(key) {
			deleted++
		}
	}
	return deleted, nil
}

// Ping checks if the cache is healthy
func (m *MemoryCache) Ping(ctx context.Context) error {
	return m.check()
}

// Close marks the cache closed and drops its contents.
func (m *MemoryCache) Close() error {
	if m.closed.CompareAndSwap(false, true) {
		m.lru.Purge()
	}
	return nil
}

// Len returns the number of entries, including expired ones not yet evicted.
func (m *MemoryCache) Len() int {
	return m.lru.Len()
}
