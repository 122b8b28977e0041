// Package expand resolves nested {name, url} references in decoded JSON trees.
//
// A reference is any object carrying a string "url" field. Expansion walks a
// copy of the root breadth first, fetching each referenced URL at most once per
// call and attaching the payload to the reference under ExpandedKey. Each round
// follows the references found directly inside the payloads attached by the
// previous round, until the depth or the request budget runs out.
//
// Example:
//
//	opts := expand.DefaultOptions()
//	opts.Paths = []string{"moves.move"}
//	out, err := expand.Expand(ctx, pokemon, fetch, opts)
//
// The input tree is never modified.
package expand

import (
	"context"

	"github.com/ohler55/ojg/gen"
	"golang.org/x/sync/errgroup"
)

// FetchFunc retrieves the JSON document behind url. Retries and caching are
// the fetcher's business; errors are returned from the expansion unchanged.
type FetchFunc func(ctx context.Context, url string) (gen.Node, error)

// Options controls a single expansion call.
type Options struct {
	// Paths selects the references that seed the first round. When empty,
	// every reference directly under the root is used.
	Paths []string

	// Depth is the number of rounds. Zero returns an unmodified copy.
	Depth int

	// MaxRequests caps the number of distinct URLs fetched across all rounds.
	MaxRequests int

	// Concurrency caps in-flight fetches per round in ExpandConcurrent.
	Concurrency int

	// OnResolve is invoked on the calling goroutine each time a reference
	// receives a payload; cached is true when no fetch was needed.
	OnResolve func(url string, cached bool)
}

// DefaultOptions returns depth 1, a budget of 200 requests and 6 concurrent fetches.
func DefaultOptions() Options {
	return Options{
		Depth:       1,
		MaxRequests: 200,
		Concurrency: 6,
	}
}

// Expand resolves references one fetch at a time on the calling goroutine.
func Expand(ctx context.Context, root gen.Node, fetch FetchFunc, opts Options) (gen.Node, error) {
	w := newWalker(fetch, opts)
	return w.run(ctx, root, w.sequentialRound)
}

// ExpandConcurrent resolves references like Expand but issues the fetches of
// a round in parallel, at most opts.Concurrency at a time. Rounds never
// overlap. When fetches fail, every fetch of the round is allowed to finish
// and the error of the earliest failing reference is returned. The result is
// identical to Expand for any concurrency.
func ExpandConcurrent(ctx context.Context, root gen.Node, fetch FetchFunc, opts Options) (gen.Node, error) {
	w := newWalker(fetch, opts)
	return w.run(ctx, root, w.concurrentRound)
}

type roundFunc func(ctx context.Context, frontier []gen.Object) ([]gen.Object, error)

// walker holds the state of one expansion call.
type walker struct {
	fetch  FetchFunc
	opts   Options
	cache  map[string]gen.Node // pristine payloads, never attached
	budget int
}

func newWalker(fetch FetchFunc, opts Options) *walker {
	return &walker{
		fetch:  fetch,
		opts:   opts,
		cache:  make(map[string]gen.Node),
		budget: opts.MaxRequests,
	}
}

func (w *walker) run(ctx context.Context, root gen.Node, round roundFunc) (gen.Node, error) {
	out := dup(root)
	frontier := seed(out, w.opts.Paths)

	for i := 0; i < w.opts.Depth; i++ {
		if len(frontier) == 0 || w.budget <= 0 {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		next, err := round(ctx, frontier)
		if err != nil {
			return nil, err
		}
		frontier = next
	}

	return out, nil
}

func (w *walker) sequentialRound(ctx context.Context, frontier []gen.Object) ([]gen.Object, error) {
	var next []gen.Object
	for _, ref := range frontier {
		url, ok := URLOf(ref)
		if !ok {
			continue
		}

		if payload, hit := w.cache[url]; hit {
			next = append(next, w.attach(ref, url, dup(payload), true)...)
			continue
		}
		if w.budget <= 0 {
			continue
		}

		w.budget--
		payload, err := w.fetch(ctx, url)
		if err != nil {
			return nil, err
		}
		w.cache[url] = dup(payload)
		next = append(next, w.attach(ref, url, dup(payload), false)...)
	}
	return next, nil
}

func (w *walker) concurrentRound(ctx context.Context, frontier []gen.Object) ([]gen.Object, error) {
	// Claim budget for distinct uncached URLs in frontier order before any
	// fetch starts, so the budget holds and duplicates share one fetch.
	var pending []string
	claimed := make(map[string]bool)
	for _, ref := range frontier {
		if w.budget <= 0 {
			break
		}
		url, ok := URLOf(ref)
		if !ok {
			continue
		}
		if _, hit := w.cache[url]; hit || claimed[url] {
			continue
		}
		w.budget--
		claimed[url] = true
		pending = append(pending, url)
	}

	payloads := make([]gen.Node, len(pending))
	errs := make([]error, len(pending))

	var g errgroup.Group
	g.SetLimit(max(1, w.opts.Concurrency))
	for i, url := range pending {
		g.Go(func() error {
			payloads[i], errs[i] = w.fetch(ctx, url)
			return nil
		})
	}
	_ = g.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	for i, url := range pending {
		w.cache[url] = dup(payloads[i])
	}

	var next []gen.Object
	for _, ref := range frontier {
		url, ok := URLOf(ref)
		if !ok {
			continue
		}
		payload, hit := w.cache[url]
		if !hit {
			continue
		}
		if claimed[url] {
			delete(claimed, url)
			next = append(next, w.attach(ref, url, dup(payload), false)...)
			continue
		}
		next = append(next, w.attach(ref, url, dup(payload), true)...)
	}
	return next, nil
}

// attach stores payload on ref and returns the references inside payload.
// Callers pass a fresh copy of the cached payload, so later rounds grow only
// the attached copy and the cache entry stays the document as fetched.
func (w *walker) attach(ref gen.Object, url string, payload gen.Node, cached bool) []gen.Object {
	ref[ExpandedKey] = payload
	if w.opts.OnResolve != nil {
		w.opts.OnResolve(url, cached)
	}
	return ImmediateRefs(payload)
}

func dup(n gen.Node) gen.Node {
	if n == nil {
		return nil
	}
	return n.Dup()
}
