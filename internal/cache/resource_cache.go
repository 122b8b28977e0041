package cache

import (
	"context"
	"time"
)

// Ref identifies one PokeAPI resource, e.g. {"pokemon", "pikachu"}.
type Ref struct {
	Endpoint string
	ID       string
}

// ResourceCache stores PokeAPI documents in a Cache under KeyBuilder keys.
type ResourceCache struct {
	client      Cache
	keys        *KeyBuilder
	ttl         time.Duration
	expandedTTL time.Duration
}

// NewResourceCache wraps client. Zero TTLs defer to the client's default.
func NewResourceCache(client Cache, namespace string, ttl, expandedTTL time.Duration) *ResourceCache {
	return &ResourceCache{
		client:      client,
		keys:        NewKeyBuilder(namespace),
		ttl:         ttl,
		expandedTTL: expandedTTL,
	}
}

// Get returns the raw document for a resource or ErrKeyNotFound.
func (rc *ResourceCache) Get(ctx context.Context, ref Ref) ([]byte, error) {
	return rc.client.Get(ctx, rc.keys.ResourceKey(ref.Endpoint, ref.ID))
}

// Put stores the raw document for a resource.
func (rc *ResourceCache) Put(ctx context.Context, ref Ref, body []byte) error {
	return rc.client.Set(ctx, rc.keys.ResourceKey(ref.Endpoint, ref.ID), body, rc.ttl)
}

// GetExpanded returns a previously stored expansion of a resource.
func (rc *ResourceCache) GetExpanded(ctx context.Context, ref Ref, paths []string, depth int) ([]byte, error) {
	return rc.client.Get(ctx, rc.keys.ExpandedKey(ref.Endpoint, ref.ID, paths, depth))
}

// PutExpanded stores an expansion of a resource.
func (rc *ResourceCache) PutExpanded(ctx context.Context, ref Ref, paths []string, depth int, body []byte) error {
	return rc.client.Set(ctx, rc.keys.ExpandedKey(ref.Endpoint, ref.ID, paths, depth), body, rc.expandedTTL)
}

// PutMany stores raw documents in one round trip.
func (rc *ResourceCache) PutMany(ctx context.Context, docs map[Ref][]byte) error {
	items := make(map[string][]byte, len(docs))
	for ref, body := range docs {
		items[rc.keys.ResourceKey(ref.Endpoint, ref.ID)] = body
	}
	return rc.client.SetMultiple(ctx, items, rc.ttl)
}

// GetMany returns the cached raw documents among refs.
func (rc *ResourceCache) GetMany(ctx context.Context, refs []Ref) (map[Ref][]byte, error) {
	keys := make([]string, len(refs))
	byKey := make(map[string]Ref, len(refs))
	for i, ref := range refs {
		keys[i] = rc.keys.ResourceKey(ref.Endpoint, ref.ID)
		byKey[keys[i]] = ref
	}

	found, err := rc.client.GetMultiple(ctx, keys)
	if err != nil {
		return nil, err
	}

	out := make(map[Ref][]byte, len(found))
	for key, body := range found {
		if ref, ok := byKey[key]; ok {
			out[ref] = body
		}
	}
	return out, nil
}

// Invalidate removes a resource and every expansion of it. It returns the
// number of keys removed.
func (rc *ResourceCache) Invalidate(ctx context.Context, ref Ref) (int, error) {
	removed := 0
	err := rc.client.Delete(ctx, rc.keys.ResourceKey(ref.Endpoint, ref.ID))
	switch {
	case err == nil:
		removed++
	case !IsNotFound(err):
		return 0, err
	}

	n, err := rc.client.DeletePattern(ctx, rc.keys.ExpandedPattern(ref.Endpoint, ref.ID))
	return removed + n, err
}

// InvalidateEndpoint removes every cached resource of an endpoint.
func (rc *ResourceCache) InvalidateEndpoint(ctx context.Context, endpoint string) (int, error) {
	return rc.client.DeletePattern(ctx, rc.keys.EndpointPattern(endpoint))
}

// Ping checks the underlying cache.
func (rc *ResourceCache) Ping(ctx context.Context) error {
	return rc.client.Ping(ctx)
}

// Keys returns the key builder for advanced usage.
func (rc *ResourceCache) Keys() *KeyBuilder {
	return rc.keys
}
