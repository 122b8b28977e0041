package sdk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/birbparty/pokenest/expand"
	"github.com/ohler55/ojg/gen"
	"golang.org/x/sync/singleflight"
)

// Client is a PokeAPI client with a response cache, retries, circuit
// breaking and reference expansion. It is safe for concurrent use.
//
// Example:
//
//	client, err := sdk.NewClient(sdk.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	p, err := client.Pokemon.Get(ctx, "pikachu")
//	if sdk.IsNotFound(err) {
//	    log.Println("no such pokemon")
//	}
type Client struct {
	// Pokemon accesses /pokemon.
	Pokemon *PokemonService
	// Generation accesses /generation.
	Generation *GenerationService
	// Search filters pokemon and generations.
	Search *SearchService
	// Pokedex builds rankings and detail views.
	Pokedex *PokedexService

	transport *httpTransport
	config    *Config
	cache     *responseCache
	group     singleflight.Group

	mu     sync.RWMutex
	closed bool
}

// NewClient creates a client. If config is nil, DefaultConfig is used.
func NewClient(config *Config) (*Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	transport, err := newHTTPTransport(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	c := &Client{
		transport: transport,
		config:    config,
		cache:     newResponseCache(config.CacheConfig),
	}
	c.Pokemon = &PokemonService{client: c}
	c.Generation = &GenerationService{client: c}
	c.Search = &SearchService{client: c}
	c.Pokedex = &PokedexService{client: c}
	return c, nil
}

// BaseURL returns the normalized PokeAPI root.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// ResolveURL turns a path relative to the base URL, or an absolute URL under
// it, into the absolute URL used for requests and cache keys.
func (c *Client) ResolveURL(pathOrURL string) (string, error) {
	s := strings.TrimSpace(pathOrURL)
	if s == "" {
		return "", invalidArgument("path cannot be empty")
	}
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		if s != c.config.BaseURL && !strings.HasPrefix(s, c.config.BaseURL+"/") {
			return "", invalidArgument("url %q is outside %s", s, c.config.BaseURL)
		}
		return s, nil
	}
	return c.config.BaseURL + "/" + strings.TrimLeft(s, "/"), nil
}

// GetJSON fetches a resource and returns it as a fresh JSON tree. Callers
// may modify the result freely.
func (c *Client) GetJSON(ctx context.Context, pathOrURL string, opts ...RequestOption) (gen.Node, error) {
	body, err := c.getBody(ctx, pathOrURL, opts...)
	if err != nil {
		return nil, err
	}
	return parseNode(body)
}

// getInto fetches a resource and decodes it into dest.
func (c *Client) getInto(ctx context.Context, pathOrURL string, dest interface{}, opts ...RequestOption) error {
	body, err := c.getBody(ctx, pathOrURL, opts...)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return NewError(ErrorTypeDecode, fmt.Sprintf("failed to decode %s", pathOrURL), err)
	}
	return nil
}

// getBody returns the raw response body, consulting the cache first.
// Concurrent requests for the same URL share one upstream call.
func (c *Client) getBody(ctx context.Context, pathOrURL string, opts ...RequestOption) ([]byte, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}
	fullURL, err := c.ResolveURL(pathOrURL)
	if err != nil {
		return nil, err
	}

	ro := newRequestOptions(opts)
	cached := c.cache != nil && ro.useCache
	if cached && !ro.forceRefresh {
		if body, ok := c.cache.get(fullURL); ok {
			c.config.Observer.OnCacheHit(fullURL)
			return body, nil
		}
	}
	if cached {
		c.config.Observer.OnCacheMiss(fullURL)
	}

	if !cached {
		return c.transport.get(ctx, fullURL)
	}

	// The shared fetch outlives a cancelled caller so the others still get
	// the result; each caller stops waiting on its own context.
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(fullURL, func() (interface{}, error) {
		body, err := c.transport.get(fetchCtx, fullURL)
		if err != nil {
			return nil, err
		}
		c.cache.put(fullURL, body, ro.ttl)
		return body, nil
	})

	select {
	case <-ctx.Done():
		return nil, (&TimeoutError{Op: "waiting for " + fullURL, Err: ctx.Err()}).ToError()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

// ExpandOption adjusts a single expansion call.
type ExpandOption func(*expand.Options)

// WithPaths seeds the expansion with the references at the given dot paths.
func WithPaths(paths ...string) ExpandOption {
	return func(o *expand.Options) {
		o.Paths = paths
	}
}

// WithDepth sets the number of expansion rounds.
func WithDepth(depth int) ExpandOption {
	return func(o *expand.Options) {
		o.Depth = depth
	}
}

// WithMaxRequests caps the distinct URLs fetched by one expansion.
func WithMaxRequests(n int) ExpandOption {
	return func(o *expand.Options) {
		o.MaxRequests = n
	}
}

// WithConcurrency caps in-flight fetches in ExpandConcurrent.
func WithConcurrency(n int) ExpandOption {
	return func(o *expand.Options) {
		o.Concurrency = n
	}
}

// Expand resolves the references in root sequentially, using the client's
// cache and retry layers for every fetch. root is not modified.
//
// Example:
//
//	p, _ := client.GetJSON(ctx, "pokemon/pikachu")
//	out, err := client.Expand(ctx, p, sdk.WithPaths("moves.move"), sdk.WithMaxRequests(20))
func (c *Client) Expand(ctx context.Context, root gen.Node, opts ...ExpandOption) (gen.Node, error) {
	return c.runExpansion(ctx, root, false, opts)
}

// ExpandConcurrent is Expand with the fetches of each round issued in
// parallel. It returns the same tree as Expand.
func (c *Client) ExpandConcurrent(ctx context.Context, root gen.Node, opts ...ExpandOption) (gen.Node, error) {
	return c.runExpansion(ctx, root, true, opts)
}

func (c *Client) runExpansion(ctx context.Context, root gen.Node, concurrent bool, opts []ExpandOption) (gen.Node, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}

	o := c.config.ExpandDefaults
	o.Paths = append([]string(nil), o.Paths...)
	for _, opt := range opts {
		opt(&o)
	}
	if o.Depth < 0 || o.MaxRequests < 0 {
		return nil, invalidArgument("depth and max requests must not be negative")
	}

	stats := ExpansionStats{Concurrent: concurrent}
	userHook := o.OnResolve
	o.OnResolve = func(url string, cached bool) {
		if cached {
			stats.Reused++
		} else {
			stats.Fetched++
		}
		if userHook != nil {
			userHook(url, cached)
		}
	}

	fetch := func(ctx context.Context, url string) (gen.Node, error) {
		return c.GetJSON(ctx, url)
	}

	start := time.Now()
	var out gen.Node
	var err error
	if concurrent {
		out, err = expand.ExpandConcurrent(ctx, root, fetch, o)
	} else {
		out, err = expand.Expand(ctx, root, fetch, o)
	}
	stats.Duration = time.Since(start)
	stats.Err = err
	c.config.Observer.OnExpansion(stats)

	return out, err
}

// Invalidate drops the cached response for a path or URL.
func (c *Client) Invalidate(pathOrURL string) error {
	fullURL, err := c.ResolveURL(pathOrURL)
	if err != nil {
		return err
	}
	if c.cache != nil {
		c.cache.remove(fullURL)
	}
	return nil
}

// ClearCache drops every cached response.
func (c *Client) ClearCache() {
	if c.cache != nil {
		c.cache.purge()
	}
}

// CacheLen returns the number of cached responses.
func (c *Client) CacheLen() int {
	if c.cache == nil {
		return 0
	}
	return c.cache.len()
}

// CircuitState returns the state of the upstream circuit breaker.
func (c *Client) CircuitState() CircuitState {
	return c.transport.breaker.State()
}

// Close releases idle connections. Close is safe to call multiple times.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.transport.close()
}

func (c *Client) checkClosed() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return ErrClientClosed
	}
	return nil
}

// withQuery appends encoded params to path. Keys are sorted so equal
// queries share a cache entry.
func withQuery(path string, params url.Values) string {
	if len(params) == 0 {
		return path
	}
	return path + "?" + params.Encode()
}

func parseNode(body []byte) (gen.Node, error) {
	var p gen.Parser
	node, err := p.Parse(body)
	if err != nil {
		return nil, NewError(ErrorTypeDecode, "failed to parse response", err)
	}
	return node, nil
}
