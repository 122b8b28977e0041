package sdk

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// RequestOption adjusts caching for a single request.
type RequestOption func(*requestOptions)

type requestOptions struct {
	useCache     bool
	forceRefresh bool
	ttl          time.Duration
}

func newRequestOptions(opts []RequestOption) requestOptions {
	ro := requestOptions{useCache: true}
	for _, opt := range opts {
		opt(&ro)
	}
	return ro
}

// WithoutCache skips the response cache for both reading and writing.
func WithoutCache() RequestOption {
	return func(o *requestOptions) {
		o.useCache = false
	}
}

// WithForceRefresh ignores any cached response but stores the fresh one.
func WithForceRefresh() RequestOption {
	return func(o *requestOptions) {
		o.forceRefresh = true
	}
}

// WithCacheTTL shortens how long the response stays cached. Values longer
// than the client's cache TTL are capped to it.
func WithCacheTTL(ttl time.Duration) RequestOption {
	return func(o *requestOptions) {
		o.ttl = ttl
	}
}

type cacheEntry struct {
	body    []byte
	expires time.Time
}

// responseCache holds raw response bodies keyed by full URL. The LRU expires
// entries after the configured TTL; shorter per-request TTLs are checked on
// read.
type responseCache struct {
	lru *expirable.LRU[string, cacheEntry]
	ttl time.Duration
	now func() time.Time
}

func newResponseCache(cfg CacheConfig) *responseCache {
	if !cfg.Enabled {
		return nil
	}
	return &responseCache{
		lru: expirable.NewLRU[string, cacheEntry](cfg.MaxEntries, nil, cfg.TTL),
		ttl: cfg.TTL,
		now: time.Now,
	}
}

func (c *responseCache) get(key string) ([]byte, bool) {
	entry, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expires) {
		c.lru.Remove(key)
		return nil, false
	}
	return entry.body, true
}

func (c *responseCache) put(key string, body []byte, ttl time.Duration) {
	if ttl <= 0 || ttl > c.ttl {
		ttl = c.ttl
	}
	c.lru.Add(key, cacheEntry{body: body, expires: c.now().Add(ttl)})
}

func (c *responseCache) remove(key string) {
	c.lru.Remove(key)
}

func (c *responseCache) purge() {
	c.lru.Purge()
}

func (c *responseCache) len() int {
	return c.lru.Len()
}
