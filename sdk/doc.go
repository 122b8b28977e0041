// Package sdk is a Go client for PokeAPI (https://pokeapi.co) with an
// in-memory response cache, retries, circuit breaking and reference
// expansion.
//
// # Features
//
// The SDK provides:
//   - Typed access to pokemon, generations, species and any other endpoint
//   - Pagination with next/previous navigation and range-over-func iteration
//   - Client side search by name prefix, type, ability and region
//   - Pokedex rankings and detail views
//   - Expansion of nested {name, url} references, sequential or concurrent
//   - A TTL LRU cache with one upstream call per URL under concurrency
//   - Retries on transport failures and 5xx responses only
//
// # Basic Usage
//
//	client, err := sdk.NewClient(sdk.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	ctx := context.Background()
//
//	pikachu, err := client.Pokemon.Get(ctx, "pikachu")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(pikachu.ID, sdk.CollectTypes(pikachu))
//
// # Expansion
//
// GetJSON returns a raw JSON tree that Expand and ExpandConcurrent can walk.
// Every resolved reference gains an "__expanded__" field holding the fetched
// document:
//
//	root, _ := client.Pokemon.GetJSON(ctx, "bulbasaur")
//	out, err := client.ExpandConcurrent(ctx, root,
//	    sdk.WithPaths("abilities.ability", "types.type"),
//	    sdk.WithDepth(2),
//	    sdk.WithMaxRequests(30),
//	)
//
// # Caching
//
// Responses are cached by URL for CacheConfig.TTL. Per request:
//
//	client.Pokemon.Get(ctx, "eevee", sdk.WithoutCache())
//	client.Pokemon.Get(ctx, "eevee", sdk.WithForceRefresh())
//	client.Pokemon.Get(ctx, "eevee", sdk.WithCacheTTL(5*time.Second))
//
// # Error Handling
//
// Every error from PokeAPI is an *Error that matches the sentinel errors:
//
//	_, err := client.Pokemon.Get(ctx, "missingno")
//	switch {
//	case errors.Is(err, sdk.ErrNotFound):
//	case errors.Is(err, sdk.ErrRateLimited):
//	case sdk.IsRetryable(err):
//	}
//
// # Observability
//
// Implement Observer, or use MetricsCollector, to follow requests, retries,
// cache hits and expansions.
package sdk
