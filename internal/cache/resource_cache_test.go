package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestResourceCache() (*ResourceCache, *MemoryCache) {
	mem := NewMemoryCache(100, time.Hour, time.Hour)
	return NewResourceCache(mem, "pokenest", time.Hour, time.Minute), mem
}

func TestResourceCache_PutGet(t *testing.T) {
	ctx := context.Background()
	rc, mem := newTestResourceCache()
	pikachu := Ref{Endpoint: "pokemon", ID: "pikachu"}

	if _, err := rc.Get(ctx, pikachu); !IsNotFound(err) {
		t.Fatalf("Get() on empty cache error = %v, want ErrKeyNotFound", err)
	}

	if err := rc.Put(ctx, pikachu, []byte(`{"id":25}`)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	if ok, _ := mem.Exists(ctx, "pokenest:res:pokemon:pikachu"); !ok {
		t.Error("expected the raw document under its resource key")
	}

	got, err := rc.Get(ctx, Ref{Endpoint: "Pokemon", ID: "PIKACHU"})
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != `{"id":25}` {
		t.Errorf("Get() = %s", got)
	}
}

func TestResourceCache_Expanded(t *testing.T) {
	ctx := context.Background()
	rc, _ := newTestResourceCache()
	ref := Ref{Endpoint: "pokemon", ID: "bulbasaur"}
	paths := []string{"types.type"}

	if err := rc.PutExpanded(ctx, ref, paths, 1, []byte(`{"expanded":true}`)); err != nil {
		t.Fatalf("PutExpanded() error = %v", err)
	}

	if _, err := rc.Get(ctx, ref); !IsNotFound(err) {
		t.Error("an expansion must not satisfy a raw lookup")
	}
	if _, err := rc.GetExpanded(ctx, ref, paths, 2); !IsNotFound(err) {
		t.Error("a different depth must miss")
	}

	got, err := rc.GetExpanded(ctx, ref, paths, 1)
	if err != nil {
		t.Fatalf("GetExpanded() error = %v", err)
	}
	if string(got) != `{"expanded":true}` {
		t.Errorf("GetExpanded() = %s", got)
	}
}

func TestResourceCache_Many(t *testing.T) {
	ctx := context.Background()
	rc, _ := newTestResourceCache()

	docs := map[Ref][]byte{
		{Endpoint: "pokemon", ID: "1"}: []byte(`{"id":1}`),
		{Endpoint: "pokemon", ID: "4"}: []byte(`{"id":4}`),
	}
	if err := rc.PutMany(ctx, docs); err != nil {
		t.Fatalf("PutMany() error = %v", err)
	}

	got, err := rc.GetMany(ctx, []Ref{
		{Endpoint: "pokemon", ID: "1"},
		{Endpoint: "pokemon", ID: "4"},
		{Endpoint: "pokemon", ID: "7"},
	})
	if err != nil {
		t.Fatalf("GetMany() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("GetMany() returned %d documents, want 2", len(got))
	}
	if string(got[Ref{Endpoint: "pokemon", ID: "4"}]) != `{"id":4}` {
		t.Errorf("GetMany() mapped documents to the wrong refs: %v", got)
	}
}

func TestResourceCache_Invalidate(t *testing.T) {
	ctx := context.Background()
	rc, mem := newTestResourceCache()
	pika := Ref{Endpoint: "pokemon", ID: "pika"}
	pikachu := Ref{Endpoint: "pokemon", ID: "pikachu"}

	_ = rc.Put(ctx, pika, []byte("a"))
	_ = rc.Put(ctx, pikachu, []byte("b"))
	_ = rc.PutExpanded(ctx, pikachu, []string{"types.type"}, 1, []byte("c"))
	_ = rc.PutExpanded(ctx, pikachu, nil, 2, []byte("d"))

	n, err := rc.Invalidate(ctx, pikachu)
	if err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	if n != 3 {
		t.Errorf("Invalidate() removed %d keys, want 3", n)
	}
	if _, err := rc.Get(ctx, pika); err != nil {
		t.Error("invalidating pikachu must not touch pika")
	}

	n, err = rc.Invalidate(ctx, pikachu)
	if err != nil || n != 0 {
		t.Errorf("second Invalidate() = (%d, %v), want (0, nil)", n, err)
	}

	_ = rc.Put(ctx, Ref{Endpoint: "generation", ID: "1"}, []byte("g"))
	n, err = rc.InvalidateEndpoint(ctx, "pokemon")
	if err != nil || n != 1 {
		t.Errorf("InvalidateEndpoint() = (%d, %v), want (1, nil)", n, err)
	}
	if mem.Len() != 1 {
		t.Errorf("expected only the generation to remain, have %d keys", mem.Len())
	}
}

type failingCache struct {
	*MemoryCache
	err error
}

func (f *failingCache) Delete(ctx context.Context, key string) error { return f.err }

func TestResourceCache_InvalidatePropagatesErrors(t *testing.T) {
	boom := NewCacheError("failed to delete key", true).WithError(errors.New("connection reset"))
	rc := NewResourceCache(&failingCache{MemoryCache: NewMemoryCache(10, time.Minute, time.Minute), err: boom}, "", 0, 0)

	_, err := rc.Invalidate(context.Background(), Ref{Endpoint: "pokemon", ID: "pikachu"})
	var cacheErr *CacheError
	if !errors.As(err, &cacheErr) || !cacheErr.IsRetryable() {
		t.Errorf("Invalidate() error = %v, want a retryable CacheError", err)
	}
}
