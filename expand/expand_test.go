package expand

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ohler55/ojg/gen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t testing.TB, s string) gen.Node {
	t.Helper()
	n, err := parseDoc(s)
	require.NoError(t, err)
	return n
}

func parseDoc(s string) (gen.Node, error) {
	var p gen.Parser
	return p.Parse([]byte(s))
}

// fakeFetcher serves fixed documents and records every call.
type fakeFetcher struct {
	docs     map[string]string
	failures map[string]error
	delay    time.Duration

	mu       sync.Mutex
	calls    map[string]int
	order    []string
	inFlight atomic.Int32
	peak     atomic.Int32
}

func newFakeFetcher(_ testing.TB, docs map[string]string) *fakeFetcher {
	return &fakeFetcher{
		docs:     docs,
		failures: map[string]error{},
		calls:    map[string]int{},
	}
}

func (f *fakeFetcher) fetch(ctx context.Context, url string) (gen.Node, error) {
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		peak := f.peak.Load()
		if cur <= peak || f.peak.CompareAndSwap(peak, cur) {
			break
		}
	}

	f.mu.Lock()
	f.calls[url]++
	f.order = append(f.order, url)
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if err, ok := f.failures[url]; ok {
		return nil, err
	}
	doc, ok := f.docs[url]
	if !ok {
		return nil, fmt.Errorf("unexpected fetch of %s", url)
	}
	return parseDoc(doc)
}

func (f *fakeFetcher) count(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func (f *fakeFetcher) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.order)
}

type expandFunc func(context.Context, gen.Node, FetchFunc, Options) (gen.Node, error)

var modes = map[string]expandFunc{
	"sequential": Expand,
	"concurrent": ExpandConcurrent,
}

func opts(depth, maxRequests int, paths ...string) Options {
	o := DefaultOptions()
	o.Depth = depth
	o.MaxRequests = maxRequests
	o.Paths = paths
	return o
}

func TestExpand_WorkedExample(t *testing.T) {
	for name, run := range modes {
		t.Run(name, func(t *testing.T) {
			root := parse(t, `{"moves":[{"move":{"name":"tackle","url":"U1"}}],"species":{"name":"x","url":"U2"}}`)
			f := newFakeFetcher(t, map[string]string{"U1": `{"name":"tackle-full"}`})

			out, err := run(context.Background(), root, f.fetch, opts(1, 10, "moves.move"))
			require.NoError(t, err)

			move := out.(gen.Object)["moves"].(gen.Array)[0].(gen.Object)["move"]
			expanded, ok := Expanded(move)
			require.True(t, ok)
			assert.Equal(t, parse(t, `{"name":"tackle-full"}`), expanded)

			_, ok = Expanded(out.(gen.Object)["species"])
			assert.False(t, ok, "species must stay unexpanded")
			assert.Equal(t, 0, f.count("U2"))
		})
	}
}

func TestExpand_ZeroDepthOrBudgetReturnsCopy(t *testing.T) {
	doc := `{"a":{"name":"a","url":"A"},"list":[{"url":"B"}],"n":1.5,"ok":true}`

	tests := []struct {
		name string
		opts Options
	}{
		{name: "zero depth", opts: opts(0, 10)},
		{name: "zero budget", opts: opts(3, 0)},
	}

	for _, tt := range tests {
		for mode, run := range modes {
			t.Run(tt.name+"/"+mode, func(t *testing.T) {
				root := parse(t, doc)
				f := newFakeFetcher(t, map[string]string{"A": `{}`, "B": `{}`})

				out, err := run(context.Background(), root, f.fetch, tt.opts)
				require.NoError(t, err)
				assert.Equal(t, parse(t, doc), out)
				assert.Equal(t, 0, f.total())

				// No structure is shared between input and output.
				out.(gen.Object)["a"].(gen.Object)["name"] = gen.String("changed")
				assert.Equal(t, gen.String("a"), root.(gen.Object)["a"].(gen.Object)["name"])
			})
		}
	}
}

func TestExpand_DoesNotMutateInput(t *testing.T) {
	for name, run := range modes {
		t.Run(name, func(t *testing.T) {
			doc := `{"species":{"name":"x","url":"S"}}`
			root := parse(t, doc)
			f := newFakeFetcher(t, map[string]string{"S": `{"id":1}`})

			_, err := run(context.Background(), root, f.fetch, opts(1, 10))
			require.NoError(t, err)
			assert.Equal(t, parse(t, doc), root)
		})
	}
}

func TestExpand_DeduplicatesByURL(t *testing.T) {
	for name, run := range modes {
		t.Run(name, func(t *testing.T) {
			root := parse(t, `{"a":{"name":"one","url":"U"},"b":{"name":"two","url":"U"}}`)
			f := newFakeFetcher(t, map[string]string{"U": `{"id":7,"name":"shared"}`})

			out, err := run(context.Background(), root, f.fetch, opts(1, 10))
			require.NoError(t, err)

			a, ok := Expanded(out.(gen.Object)["a"])
			require.True(t, ok)
			b, ok := Expanded(out.(gen.Object)["b"])
			require.True(t, ok)
			assert.Equal(t, a, b)
			assert.Equal(t, 1, f.count("U"))
		})
	}
}

func TestExpand_BudgetEnforcement(t *testing.T) {
	docs := map[string]string{}
	root := gen.Object{}
	for i := range 5 {
		url := fmt.Sprintf("U%d", i)
		docs[url] = `{"leaf":true}`
		root[fmt.Sprintf("r%d", i)] = gen.Object{"url": gen.String(url)}
	}

	for name, run := range modes {
		t.Run(name, func(t *testing.T) {
			f := newFakeFetcher(t, docs)

			out, err := run(context.Background(), root, f.fetch, opts(1, 2))
			require.NoError(t, err)

			expanded := 0
			for _, v := range out.(gen.Object) {
				if _, ok := Expanded(v); ok {
					expanded++
				}
			}
			assert.Equal(t, 2, expanded)
			assert.Equal(t, 2, f.total())
			// Keys are walked sorted, so the first two references win.
			assert.Equal(t, 1, f.count("U0"))
			assert.Equal(t, 1, f.count("U1"))
		})
	}
}

func TestExpand_DepthBound(t *testing.T) {
	docs := map[string]string{
		"A": `{"name":"a","next":{"name":"b","url":"B"}}`,
		"B": `{"name":"b","next":{"name":"c","url":"C"}}`,
		"C": `{"name":"c"}`,
	}

	tests := []struct {
		depth   int
		fetched []string
	}{
		{depth: 1, fetched: []string{"A"}},
		{depth: 2, fetched: []string{"A", "B"}},
		{depth: 3, fetched: []string{"A", "B", "C"}},
	}

	for _, tt := range tests {
		for mode, run := range modes {
			t.Run(fmt.Sprintf("depth %d/%s", tt.depth, mode), func(t *testing.T) {
				root := parse(t, `{"start":{"name":"a","url":"A"}}`)
				f := newFakeFetcher(t, docs)

				out, err := run(context.Background(), root, f.fetch, opts(tt.depth, 10))
				require.NoError(t, err)
				assert.Equal(t, tt.fetched, f.order)

				a, ok := Expanded(out.(gen.Object)["start"])
				require.True(t, ok)
				_, bExpanded := Expanded(a.(gen.Object)["next"])
				assert.Equal(t, tt.depth >= 2, bExpanded)
			})
		}
	}
}

func TestExpand_FollowsReferencesInsideArrays(t *testing.T) {
	root := parse(t, `{"types":[{"slot":1,"type":{"url":"T1"}}],"forms":[{"url":"F1"},{"url":"F2"}]}`)
	f := newFakeFetcher(t, map[string]string{
		"F1": `{"name":"f1"}`,
		"F2": `{"name":"f2"}`,
	})

	out, err := Expand(context.Background(), root, f.fetch, opts(1, 10))
	require.NoError(t, err)

	// forms[*] are immediate children; types[*].type sits one object deeper.
	forms := out.(gen.Object)["forms"].(gen.Array)
	for _, form := range forms {
		_, ok := Expanded(form)
		assert.True(t, ok)
	}
	assert.Equal(t, 0, f.count("T1"))
}

func TestExpand_InertReferences(t *testing.T) {
	root := parse(t, `{"numeric":{"url":42},"missing":{"name":"x"},"good":{"url":"G"}}`)
	f := newFakeFetcher(t, map[string]string{"G": `{}`})

	out, err := Expand(context.Background(), root, f.fetch, opts(1, 1))
	require.NoError(t, err)

	_, ok := Expanded(out.(gen.Object)["numeric"])
	assert.False(t, ok)
	_, ok = Expanded(out.(gen.Object)["missing"])
	assert.False(t, ok)
	_, ok = Expanded(out.(gen.Object)["good"])
	assert.True(t, ok)
}

func TestExpand_CachedPayloadsAreNotAliased(t *testing.T) {
	// A -> B -> A would alias the tree into a cycle if payloads were shared.
	docs := map[string]string{
		"A": `{"name":"a","peer":{"url":"B"}}`,
		"B": `{"name":"b","peer":{"url":"A"}}`,
	}
	root := parse(t, `{"start":{"url":"A"}}`)
	f := newFakeFetcher(t, docs)

	out, err := Expand(context.Background(), root, f.fetch, opts(4, 10))
	require.NoError(t, err)
	assert.Equal(t, 1, f.count("A"))
	assert.Equal(t, 1, f.count("B"))

	// Walk the chain; it must end.
	depth := 0
	var node gen.Node = out.(gen.Object)["start"]
	for depth < 100 {
		payload, ok := Expanded(node)
		if !ok {
			break
		}
		depth++
		node = payload.(gen.Object)["peer"]
	}
	assert.GreaterOrEqual(t, depth, 4)
	assert.Less(t, depth, 100)
}

// countExpanded returns the number of resolved references anywhere in n.
func countExpanded(n gen.Node) int {
	total := 0
	switch v := n.(type) {
	case gen.Object:
		if _, ok := v[ExpandedKey]; ok {
			total++
		}
		for _, child := range v {
			total += countExpanded(child)
		}
	case gen.Array:
		for _, child := range v {
			total += countExpanded(child)
		}
	}
	return total
}

func TestExpand_SelfReferenceGrowsOneCopyPerReference(t *testing.T) {
	docs := map[string]string{
		"U0": `{"a":{"url":"U0"},"b":{"url":"U0"}}`,
		"U9": `{"name":"leaf"}`,
	}
	doc := `{"x":{"url":"U0"},"y":{"url":"U9"}}`

	for _, depth := range []int{1, 3, 5, 6} {
		for name, run := range modes {
			t.Run(fmt.Sprintf("depth %d/%s", depth, name), func(t *testing.T) {
				f := newFakeFetcher(t, docs)

				out, err := run(context.Background(), parse(t, doc), f.fetch, opts(depth, 3))
				require.NoError(t, err)
				assert.Equal(t, 1, f.count("U0"))
				assert.Equal(t, 1, f.count("U9"))

				// Round k attaches 2^(k-1) copies under x, plus the one under y.
				assert.Equal(t, 1<<depth, countExpanded(out))

				data, err := json.Marshal(out.Simplify())
				require.NoError(t, err)
				assert.Less(t, len(data), 64*(1<<depth))
			})
		}
	}
}

func TestExpand_CacheHitsAttachTheFetchedDocument(t *testing.T) {
	docs := map[string]string{
		"U0": `{"name":"zero","next":{"url":"U1"}}`,
		"U1": `{"name":"one"}`,
	}
	// first.U0 is resolved in round 1 and grows U1 in round 2; second.U0 is
	// a cache hit in round 2 and must not inherit that growth.
	root := parse(t, `{"first":{"url":"U0"},"second":{"url":"L"}}`)
	docs["L"] = `{"back":{"url":"U0"}}`

	for name, run := range modes {
		t.Run(name, func(t *testing.T) {
			f := newFakeFetcher(t, docs)

			out, err := run(context.Background(), root, f.fetch, opts(2, 10))
			require.NoError(t, err)

			second, ok := Expanded(out.(gen.Object)["second"])
			require.True(t, ok)
			back, ok := Expanded(second.(gen.Object)["back"])
			require.True(t, ok)
			assert.Equal(t, parse(t, docs["U0"]), back)

			first, ok := Expanded(out.(gen.Object)["first"])
			require.True(t, ok)
			_, ok = Expanded(first.(gen.Object)["next"])
			assert.True(t, ok)
		})
	}
}

func TestExpand_FetchErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	for name, run := range modes {
		t.Run(name, func(t *testing.T) {
			root := parse(t, `{"a":{"url":"A"}}`)
			f := newFakeFetcher(t, nil)
			f.failures["A"] = boom

			out, err := run(context.Background(), root, f.fetch, opts(1, 10))
			assert.ErrorIs(t, err, boom)
			assert.Nil(t, out)
		})
	}
}

func TestExpandConcurrent_WaitsForRoundAndReturnsEarliestError(t *testing.T) {
	first := errors.New("first")
	second := errors.New("second")

	root := parse(t, `{"a":{"url":"A"},"b":{"url":"B"},"c":{"url":"C"}}`)
	f := newFakeFetcher(t, map[string]string{"B": `{}`})
	f.failures["A"] = first
	f.failures["C"] = second

	_, err := ExpandConcurrent(context.Background(), root, f.fetch, opts(1, 10))
	assert.ErrorIs(t, err, first)
	assert.Equal(t, 3, f.total(), "siblings run to completion")
}

func TestExpandConcurrent_LimitsInFlightFetches(t *testing.T) {
	docs := map[string]string{}
	root := gen.Object{}
	for i := range 12 {
		url := fmt.Sprintf("U%02d", i)
		docs[url] = `{}`
		root[url] = gen.Object{"url": gen.String(url)}
	}

	f := newFakeFetcher(t, docs)
	f.delay = 10 * time.Millisecond

	o := opts(1, 100)
	o.Concurrency = 3
	_, err := ExpandConcurrent(context.Background(), root, f.fetch, o)
	require.NoError(t, err)

	assert.Equal(t, 12, f.total())
	assert.LessOrEqual(t, f.peak.Load(), int32(3))
}

func TestExpandConcurrent_MatchesSequentialOutput(t *testing.T) {
	docs := map[string]string{
		"P":  `{"name":"pikachu","species":{"url":"S"},"types":[{"url":"T1"},{"url":"T2"}]}`,
		"S":  `{"name":"pikachu-species","chain":{"url":"E"},"habitat":{"url":"H"}}`,
		"T1": `{"name":"electric","generation":{"url":"G"}}`,
		"T2": `{"name":"steel","generation":{"url":"G"}}`,
		"E":  `{"id":10}`,
		"H":  `{"name":"forest"}`,
		"G":  `{"name":"generation-i"}`,
	}
	doc := `{"pokemon":{"url":"P"},"again":{"url":"P"},"types":[{"url":"T2"}]}`

	for _, budget := range []int{1, 3, 5, 100} {
		t.Run(fmt.Sprintf("budget %d", budget), func(t *testing.T) {
			want, err := Expand(context.Background(), parse(t, doc), newFakeFetcher(t, docs).fetch, opts(3, budget))
			require.NoError(t, err)

			for _, c := range []int{1, 8} {
				o := opts(3, budget)
				o.Concurrency = c
				got, err := ExpandConcurrent(context.Background(), parse(t, doc), newFakeFetcher(t, docs).fetch, o)
				require.NoError(t, err)
				assert.Equal(t, want, got, "concurrency %d", c)
			}
		})
	}
}

func TestExpand_OnResolveReportsCacheHits(t *testing.T) {
	root := parse(t, `{"a":{"url":"U"},"b":{"url":"U"}}`)
	f := newFakeFetcher(t, map[string]string{"U": `{}`})

	var fetched, cached int
	o := opts(1, 10)
	o.OnResolve = func(url string, hit bool) {
		if hit {
			cached++
		} else {
			fetched++
		}
	}

	_, err := Expand(context.Background(), root, f.fetch, o)
	require.NoError(t, err)
	assert.Equal(t, 1, fetched)
	assert.Equal(t, 1, cached)
}

func TestExpand_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	root := parse(t, `{"a":{"url":"A"}}`)
	f := newFakeFetcher(t, map[string]string{"A": `{}`})

	_, err := Expand(ctx, root, f.fetch, opts(1, 10))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, f.total())
}
