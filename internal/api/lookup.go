package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/birbparty/pokenest/internal/cache"
	"github.com/birbparty/pokenest/internal/database"
	"github.com/birbparty/pokenest/internal/queue"
	"github.com/birbparty/pokenest/internal/telemetry"
	"github.com/birbparty/pokenest/sdk"
	"github.com/ohler55/ojg/gen"
	"github.com/sirupsen/logrus"
)

// Tiers that can serve a resource.
const (
	SourceRedis    = "redis"
	SourcePostgres = "postgres"
	SourceUpstream = "upstream"
)

// Resolver looks resources up in Redis, then PostgreSQL, then the upstream
// API, writing upstream results back to the faster tiers.
type Resolver struct {
	rc        *cache.ResourceCache
	db        database.Interface
	upstream  *sdk.Client
	publisher queue.Publisher
	writer    *AsyncWriter
	log       *logrus.Entry
}

// NewResolver creates a resolver. db, publisher and writer may be nil.
func NewResolver(rc *cache.ResourceCache, db database.Interface, upstream *sdk.Client, publisher queue.Publisher, writer *AsyncWriter) *Resolver {
	return &Resolver{
		rc:        rc,
		db:        db,
		upstream:  upstream,
		publisher: publisher,
		writer:    writer,
		log:       telemetry.Component("resolver"),
	}
}

// Resource returns the raw document for ref and the tier that served it.
func (r *Resolver) Resource(ctx context.Context, ref cache.Ref) ([]byte, string, error) {
	if body, ok := r.fromCache(ctx, ref); ok {
		return body, SourceRedis, nil
	}
	if body, ok := r.fromStore(ctx, ref); ok {
		return body, SourcePostgres, nil
	}
	body, err := r.fromUpstream(ctx, ref)
	if err != nil {
		return nil, "", err
	}
	return body, SourceUpstream, nil
}

// Expansion describes which references to resolve.
type Expansion struct {
	Paths []string
	Depth int
	// MaxRequests overrides the client's request budget when positive.
	MaxRequests int
	Concurrency int
}

func (e Expansion) options() []sdk.ExpandOption {
	opts := []sdk.ExpandOption{sdk.WithDepth(e.Depth)}
	if len(e.Paths) > 0 {
		opts = append(opts, sdk.WithPaths(e.Paths...))
	}
	if e.MaxRequests > 0 {
		opts = append(opts, sdk.WithMaxRequests(e.MaxRequests))
	}
	if e.Concurrency > 0 {
		opts = append(opts, sdk.WithConcurrency(e.Concurrency))
	}
	return opts
}

// Expanded returns ref with its references resolved. Results are cached per
// path set and depth unless the caller overrides the request budget, which
// can truncate the expansion.
func (r *Resolver) Expanded(ctx context.Context, ref cache.Ref, e Expansion) ([]byte, string, error) {
	cacheable := e.MaxRequests == 0

	if cacheable {
		lctx, done := telemetry.TimeLookup(ctx, "redis_expanded")
		body, err := r.rc.GetExpanded(lctx, ref, e.Paths, e.Depth)
		switch {
		case err == nil:
			done("hit")
			return body, SourceRedis, nil
		case cache.IsNotFound(err):
			done("miss")
		default:
			done("error")
			r.log.WithError(err).WithField("ref", refString(ref)).Warn("Expanded cache lookup failed")
		}
	}

	body, source, err := r.Resource(ctx, ref)
	if err != nil {
		return nil, "", err
	}

	root, err := (&gen.Parser{}).Parse(body)
	if err != nil {
		return nil, "", fmt.Errorf("stored document is not valid JSON: %w", err)
	}
	out, err := r.expand(ctx, root, e)
	if err != nil {
		return nil, "", err
	}

	if cacheable {
		if err := r.rc.PutExpanded(ctx, ref, e.Paths, e.Depth, out); err != nil {
			r.log.WithError(err).WithField("ref", refString(ref)).Warn("Failed to cache expansion")
		}
	}
	return out, source, nil
}

// Passthrough fetches any upstream path, such as a list page or a
// sub-resource, through the SDK's own cache. e may be nil.
func (r *Resolver) Passthrough(ctx context.Context, path string, e *Expansion) ([]byte, error) {
	node, err := r.upstream.GetJSON(ctx, path)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return json.Marshal(node.Simplify())
	}
	return r.expand(ctx, node, *e)
}

func (r *Resolver) expand(ctx context.Context, root gen.Node, e Expansion) ([]byte, error) {
	out, err := r.upstream.ExpandConcurrent(ctx, root, e.options()...)
	if err != nil {
		return nil, err
	}
	return json.Marshal(out.Simplify())
}

func (r *Resolver) fromCache(ctx context.Context, ref cache.Ref) ([]byte, bool) {
	ctx, done := telemetry.TimeLookup(ctx, SourceRedis)
	body, err := r.rc.Get(ctx, ref)
	switch {
	case err == nil:
		done("hit")
		return body, true
	case cache.IsNotFound(err):
		done("miss")
	default:
		done("error")
		r.log.WithError(err).WithField("ref", refString(ref)).Warn("Cache lookup failed, falling through")
	}
	return nil, false
}

func (r *Resolver) fromStore(ctx context.Context, ref cache.Ref) ([]byte, bool) {
	if r.db == nil {
		return nil, false
	}

	lctx, done := telemetry.TimeLookup(ctx, SourcePostgres)
	res, err := r.db.GetResource(lctx, ref.Endpoint, ref.ID)
	switch {
	case err == nil:
		done("hit")
	case errors.Is(err, database.ErrNotFound):
		done("miss")
		return nil, false
	default:
		done("error")
		r.log.WithError(err).WithField("ref", refString(ref)).Warn("Store lookup failed, falling through")
		return nil, false
	}

	r.rehydrate(ctx, ref, res.Body)
	return res.Body, true
}

// rehydrate asks a worker to copy a stored document back into Redis, or
// copies it directly when no queue is configured or publishing fails.
func (r *Resolver) rehydrate(ctx context.Context, ref cache.Ref, body []byte) {
	if r.publisher != nil {
		msg := queue.NewRehydrateMessage(ref.Endpoint, ref.ID, queue.PriorityNormal)
		err := r.publisher.PublishRehydrate(ctx, msg)
		if err == nil {
			recordRehydration("published")
			return
		}
		r.log.WithError(err).WithField("ref", refString(ref)).Warn("Failed to publish rehydration, caching directly")
	}

	if err := r.rc.Put(ctx, ref, body); err != nil {
		recordRehydration("failed")
		r.log.WithError(err).WithField("ref", refString(ref)).Warn("Failed to rehydrate cache")
		return
	}
	recordRehydration("direct")
}

func (r *Resolver) fromUpstream(ctx context.Context, ref cache.Ref) ([]byte, error) {
	ctx, done := telemetry.TimeLookup(ctx, SourceUpstream)
	node, err := r.upstream.GetJSON(ctx, refString(ref))
	if err != nil {
		if sdk.IsNotFound(err) {
			done("miss")
		} else {
			done("error")
		}
		return nil, err
	}
	done("hit")

	body, err := json.Marshal(node.Simplify())
	if err != nil {
		return nil, fmt.Errorf("failed to encode upstream document: %w", err)
	}

	if err := r.rc.Put(ctx, ref, body); err != nil {
		r.log.WithError(err).WithField("ref", refString(ref)).Warn("Failed to cache upstream document")
	}
	if r.writer != nil {
		r.writer.Write(ctx, &database.Resource{
			Endpoint:   ref.Endpoint,
			ResourceID: ref.ID,
			Body:       body,
			Source:     database.SourceUpstream,
		})
	}
	return body, nil
}

// Invalidate drops ref from Redis and the SDK cache, and from PostgreSQL
// when purge is set.
func (r *Resolver) Invalidate(ctx context.Context, ref cache.Ref, purge bool) (*InvalidateResponse, error) {
	resp := &InvalidateResponse{Path: refString(ref)}

	n, err := r.rc.Invalidate(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to invalidate cache: %w", err)
	}
	resp.KeysRemoved = n
	cacheInvalidations.Add(float64(n))

	if err := r.upstream.Invalidate(refString(ref)); err == nil {
		resp.ClientCleared = true
	}

	if purge && r.db != nil {
		switch err := r.db.DeleteResource(ctx, ref.Endpoint, ref.ID); {
		case err == nil:
			resp.StoreRemoved = true
		case !errors.Is(err, database.ErrNotFound):
			return nil, fmt.Errorf("failed to delete stored resource: %w", err)
		}
	}
	return resp, nil
}

// InvalidateEndpoint drops every cached resource of an endpoint.
func (r *Resolver) InvalidateEndpoint(ctx context.Context, endpoint string) (*InvalidateResponse, error) {
	n, err := r.rc.InvalidateEndpoint(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to invalidate cache: %w", err)
	}
	cacheInvalidations.Add(float64(n))
	r.upstream.ClearCache()
	return &InvalidateResponse{Path: endpoint, KeysRemoved: n, ClientCleared: true}, nil
}

func refString(ref cache.Ref) string {
	return ref.Endpoint + "/" + ref.ID
}
