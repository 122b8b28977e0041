package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/birbparty/pokenest/internal/cache"
	"github.com/birbparty/pokenest/internal/database"
	"github.com/birbparty/pokenest/internal/database/dbtest"
	"github.com/birbparty/pokenest/internal/pokeapitest"
	"github.com/birbparty/pokenest/sdk"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type apiFixture struct {
	app    *fiber.App
	srv    *pokeapitest.Server
	db     *dbtest.MockDatabase
	rc     *cache.ResourceCache
	pub    *fakePublisher
	writer *AsyncWriter
}

type fixtureOption func(*Config, *Dependencies)

func withoutPublisher() fixtureOption {
	return func(_ *Config, d *Dependencies) { d.Publisher = nil }
}

func withAPIKey(key string) fixtureOption {
	return func(c *Config, _ *Dependencies) { c.APIKey = key }
}

func newAPIFixture(t *testing.T, opts ...fixtureOption) *apiFixture {
	t.Helper()

	srv := pokeapitest.New(t)
	client, err := sdk.NewClient(sdk.DefaultConfig().WithBaseURL(srv.BaseURL()).WithRetries(0))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	f := &apiFixture{
		srv: srv,
		db:  new(dbtest.MockDatabase),
		rc:  cache.NewResourceCache(cache.NewMemoryCache(100, time.Hour, time.Hour), "test", 0, 0),
		pub: &fakePublisher{},
	}

	cfg := &Config{
		RequestTimeout:    5 * time.Second,
		BodyLimit:         1 << 20,
		ExpandMaxDepth:    3,
		ExpandMaxRequests: 200,
	}
	deps := Dependencies{
		Cache:     f.rc,
		Upstream:  client,
		DB:        f.db,
		Publisher: f.pub,
	}
	for _, opt := range opts {
		opt(cfg, &deps)
	}

	// No workers: queued writes stay visible to the test.
	f.writer = NewAsyncWriter(f.db, nil, 10, 0, 0)
	t.Cleanup(f.writer.Shutdown)
	deps.Writer = f.writer

	f.app = NewApp(cfg, NewHandler(cfg, deps))
	return f
}

func (f *apiFixture) do(t *testing.T, method, target string, body io.Reader) (*http.Response, []byte) {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func (f *apiFixture) storeMiss(endpoint, id string) {
	f.db.On("GetResource", mock.Anything, endpoint, id).Return(nil, database.ErrNotFound)
}

func decodeError(t *testing.T, data []byte) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	require.NoError(t, json.Unmarshal(data, &e))
	return e
}

func TestGetPokemon_UpstreamThenCache(t *testing.T) {
	f := newAPIFixture(t)
	f.storeMiss("pokemon", "pikachu")

	resp, data := f.do(t, "GET", "/v1/pokemon/pikachu", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, SourceUpstream, resp.Header.Get(HeaderSource))

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "pikachu", doc["name"])

	cached, err := f.rc.Get(context.Background(), cache.Ref{Endpoint: "pokemon", ID: "pikachu"})
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(cached))
	assert.Equal(t, 1, f.writer.QueueDepth(), "upstream result is queued for the store")

	resp, _ = f.do(t, "GET", "/v1/pokemon/PIKACHU", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, SourceRedis, resp.Header.Get(HeaderSource))
	assert.Equal(t, 1, f.srv.Hits("/pokemon/pikachu"))
	f.db.AssertNumberOfCalls(t, "GetResource", 1)
}

func TestGetPokemon_FromStore(t *testing.T) {
	stored := &database.Resource{
		Endpoint:   "pokemon",
		ResourceID: "pikachu",
		Body:       json.RawMessage(`{"name":"pikachu","stored":true}`),
	}

	t.Run("publishes a rehydration", func(t *testing.T) {
		f := newAPIFixture(t)
		f.db.On("GetResource", mock.Anything, "pokemon", "pikachu").Return(stored, nil)

		resp, data := f.do(t, "GET", "/v1/pokemon/pikachu", nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, SourcePostgres, resp.Header.Get(HeaderSource))
		assert.JSONEq(t, `{"name":"pikachu","stored":true}`, string(data))

		_, rehydrate, _ := f.pub.counts()
		assert.Equal(t, 1, rehydrate)
		assert.Zero(t, f.srv.RequestCount())
		assert.Zero(t, f.writer.QueueDepth())
	})

	t.Run("caches directly without a queue", func(t *testing.T) {
		f := newAPIFixture(t, withoutPublisher())
		f.db.On("GetResource", mock.Anything, "pokemon", "pikachu").Return(stored, nil).Once()

		resp, _ := f.do(t, "GET", "/v1/pokemon/pikachu", nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, SourcePostgres, resp.Header.Get(HeaderSource))

		resp, _ = f.do(t, "GET", "/v1/pokemon/pikachu", nil)
		assert.Equal(t, SourceRedis, resp.Header.Get(HeaderSource))
		f.db.AssertExpectations(t)
	})

	t.Run("store errors fall through to upstream", func(t *testing.T) {
		f := newAPIFixture(t)
		f.db.On("GetResource", mock.Anything, "pokemon", "pikachu").Return(nil, errors.New("connection refused"))

		resp, _ := f.do(t, "GET", "/v1/pokemon/pikachu", nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, SourceUpstream, resp.Header.Get(HeaderSource))
	})
}

func TestGetPokemon_Errors(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(f *apiFixture)
		target     string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "unknown pokemon",
			setup:      func(f *apiFixture) { f.storeMiss("pokemon", "missingno") },
			target:     "/v1/pokemon/missingno",
			wantStatus: fiber.StatusNotFound,
			wantCode:   ErrCodeNotFound,
		},
		{
			name: "upstream server error",
			setup: func(f *apiFixture) {
				f.storeMiss("pokemon", "pikachu")
				f.srv.Fail("/pokemon/pikachu", http.StatusInternalServerError, 1)
			},
			target:     "/v1/pokemon/pikachu",
			wantStatus: fiber.StatusBadGateway,
			wantCode:   ErrCodeUpstream,
		},
		{
			name: "upstream unavailable",
			setup: func(f *apiFixture) {
				f.storeMiss("pokemon", "pikachu")
				f.srv.Fail("/pokemon/pikachu", http.StatusServiceUnavailable, 1)
			},
			target:     "/v1/pokemon/pikachu",
			wantStatus: fiber.StatusServiceUnavailable,
			wantCode:   ErrCodeUnavailable,
		},
		{
			name:       "depth above validator bound",
			target:     "/v1/pokemon/pikachu?depth=50",
			wantStatus: fiber.StatusBadRequest,
			wantCode:   ErrCodeInvalidRequest,
		},
		{
			name:       "depth above configured maximum",
			target:     "/v1/pokemon/pikachu?depth=5",
			wantStatus: fiber.StatusBadRequest,
			wantCode:   ErrCodeInvalidRequest,
		},
		{
			name:       "malformed depth",
			target:     "/v1/pokemon/pikachu?depth=deep",
			wantStatus: fiber.StatusBadRequest,
			wantCode:   ErrCodeInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAPIFixture(t)
			if tt.setup != nil {
				tt.setup(f)
			}

			resp, data := f.do(t, "GET", tt.target, nil)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantCode, decodeError(t, data).Code)
		})
	}
}

func TestGetPokemon_Expansion(t *testing.T) {
	f := newAPIFixture(t)
	f.storeMiss("pokemon", "pikachu")
	ref := cache.Ref{Endpoint: "pokemon", ID: "pikachu"}

	resp, data := f.do(t, "GET", "/v1/pokemon/pikachu?expand=species", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var doc struct {
		Species map[string]interface{} `json:"species"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "pikachu", doc.Species["name"])
	assert.Contains(t, doc.Species["url"], "/pokemon-species/pikachu")
	require.IsType(t, map[string]interface{}{}, doc.Species["__expanded__"])
	species := doc.Species["__expanded__"].(map[string]interface{})
	assert.EqualValues(t, 190, species["capture_rate"])

	cached, err := f.rc.GetExpanded(context.Background(), ref, []string{"species"}, 1)
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(cached))

	resp, _ = f.do(t, "GET", "/v1/pokemon/pikachu?expand=species&depth=1", nil)
	assert.Equal(t, SourceRedis, resp.Header.Get(HeaderSource))
	assert.Equal(t, 1, f.srv.Hits("/pokemon-species/pikachu"))

	// A caller budget can truncate the result, so it is never cached.
	resp, _ = f.do(t, "GET", "/v1/pokemon/pikachu?expand=moves.move&max_requests=1", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	_, err = f.rc.GetExpanded(context.Background(), ref, []string{"moves.move"}, 1)
	assert.True(t, cache.IsNotFound(err))
}

func TestGetResource(t *testing.T) {
	f := newAPIFixture(t)
	f.storeMiss("pokemon", "bulbasaur")

	t.Run("list passthrough keeps query", func(t *testing.T) {
		resp, data := f.do(t, "GET", "/v1/resource/pokemon?limit=2", nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, SourceUpstream, resp.Header.Get(HeaderSource))

		var page sdk.Page[sdk.NamedAPIResource]
		require.NoError(t, json.Unmarshal(data, &page))
		assert.Len(t, page.Results, 2)
	})

	t.Run("endpoint and id use the tiers", func(t *testing.T) {
		resp, data := f.do(t, "GET", "/v1/resource/pokemon/bulbasaur/", nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Contains(t, string(data), `"bulbasaur"`)

		resp, _ = f.do(t, "GET", "/v1/resource/pokemon/bulbasaur", nil)
		assert.Equal(t, SourceRedis, resp.Header.Get(HeaderSource))
	})

	t.Run("sub-resource passthrough", func(t *testing.T) {
		resp, data := f.do(t, "GET", "/v1/resource/pokemon/pikachu/encounters", nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Contains(t, string(data), "viridian-forest-area")
	})

	t.Run("empty path", func(t *testing.T) {
		resp, _ := f.do(t, "GET", "/v1/resource/", nil)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})
}

func TestListAndSearch(t *testing.T) {
	f := newAPIFixture(t)

	resp, data := f.do(t, "GET", "/v1/pokemon?limit=3", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var page sdk.Page[sdk.NamedAPIResource]
	require.NoError(t, json.Unmarshal(data, &page))
	assert.Len(t, page.Results, 3)

	resp, data = f.do(t, "GET", "/v1/search/pokemon?prefix=Char", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	page = sdk.Page[sdk.NamedAPIResource]{}
	require.NoError(t, json.Unmarshal(data, &page))
	require.Len(t, page.Results, 2)
	assert.Equal(t, "charizard", page.Results[0].Name)
	assert.Equal(t, "charmander", page.Results[1].Name)

	resp, data = f.do(t, "GET", "/v1/search/generation?region=johto", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	page = sdk.Page[sdk.NamedAPIResource]{}
	require.NoError(t, json.Unmarshal(data, &page))
	require.Len(t, page.Results, 1)
	assert.Equal(t, "generation-ii", page.Results[0].Name)

	resp, _ = f.do(t, "GET", "/v1/search/pokemon?limit=0&offset=-1", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestPokedexRoutes(t *testing.T) {
	f := newAPIFixture(t)

	t.Run("rankings", func(t *testing.T) {
		resp, data := f.do(t, "GET", "/v1/pokedex/rankings?pokedex=kanto&sort_by=speed", nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		var body struct {
			SortBy  string               `json:"sort_by"`
			Count   int                  `json:"count"`
			Results []sdk.PokedexRankRow `json:"results"`
		}
		require.NoError(t, json.Unmarshal(data, &body))
		assert.Equal(t, "speed", body.SortBy)
		require.NotEmpty(t, body.Results)
		assert.Equal(t, len(body.Results), body.Count)
		assert.Equal(t, "charizard", body.Results[0].Name)
		assert.Equal(t, 1, body.Results[0].Rank)
	})

	t.Run("detail", func(t *testing.T) {
		resp, data := f.do(t, "GET", "/v1/pokedex/detail?pokedex=kanto&name=bulbasaur", nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		var view sdk.PokedexDetailView
		require.NoError(t, json.Unmarshal(data, &view))
		assert.Equal(t, "bulbasaur", view.Name)
		assert.Equal(t, 45, view.CaptureRate)
	})

	invalid := []struct {
		name   string
		target string
	}{
		{"unknown stat", "/v1/pokedex/rankings?pokedex=kanto&sort_by=charm"},
		{"both selectors", "/v1/pokedex/rankings?pokedex=kanto&generation=1"},
		{"no selector", "/v1/pokedex/rankings"},
		{"detail without pokemon", "/v1/pokedex/detail?pokedex=kanto"},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := f.do(t, "GET", tt.target, nil)
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, ErrCodeInvalidRequest, decodeError(t, data).Code)
		})
	}
}

func TestPrefetch(t *testing.T) {
	t.Run("queues a job", func(t *testing.T) {
		f := newAPIFixture(t)
		body := `{"endpoint":"Pokemon","id":"pikachu","expand":["species"],"depth":1}`

		resp, data := f.do(t, "POST", "/v1/prefetch", strings.NewReader(body))
		require.Equal(t, fiber.StatusAccepted, resp.StatusCode)

		var out PrefetchResponse
		require.NoError(t, json.Unmarshal(data, &out))
		assert.NotEmpty(t, out.MessageID)
		assert.Equal(t, "pokemon", out.Endpoint)

		f.pub.mu.Lock()
		defer f.pub.mu.Unlock()
		require.Len(t, f.pub.prefetch, 1)
		msg := f.pub.prefetch[0]
		assert.Equal(t, out.MessageID, msg.ID)
		assert.Equal(t, []string{"species"}, msg.Expand)
		assert.Equal(t, 1, msg.Depth)
	})

	t.Run("rejects invalid bodies", func(t *testing.T) {
		f := newAPIFixture(t)
		for _, body := range []string{
			`{"endpoint":"pokemon"}`,
			`{"endpoint":"pokemon/1","id":"pikachu"}`,
			`{"endpoint":"pokemon","id":"pikachu","depth":9}`,
			`not json`,
		} {
			resp, _ := f.do(t, "POST", "/v1/prefetch", strings.NewReader(body))
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, body)
		}
		_, _, n := f.pub.counts()
		assert.Zero(t, n)
	})

	t.Run("needs a queue", func(t *testing.T) {
		f := newAPIFixture(t, withoutPublisher())
		resp, data := f.do(t, "POST", "/v1/prefetch", strings.NewReader(`{"endpoint":"pokemon","id":"pikachu"}`))
		assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, ErrCodeUnavailable, decodeError(t, data).Code)
	})
}

func TestInvalidateCache(t *testing.T) {
	ctx := context.Background()
	pikachu := cache.Ref{Endpoint: "pokemon", ID: "pikachu"}

	t.Run("resource", func(t *testing.T) {
		f := newAPIFixture(t)
		require.NoError(t, f.rc.Put(ctx, pikachu, []byte(`{}`)))
		require.NoError(t, f.rc.PutExpanded(ctx, pikachu, []string{"species"}, 1, []byte(`{}`)))

		resp, data := f.do(t, "DELETE", "/v1/cache/pokemon/pikachu", nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		var out InvalidateResponse
		require.NoError(t, json.Unmarshal(data, &out))
		assert.Equal(t, 2, out.KeysRemoved)
		assert.False(t, out.StoreRemoved)
		assert.True(t, out.ClientCleared)

		_, err := f.rc.Get(ctx, pikachu)
		assert.True(t, cache.IsNotFound(err))
	})

	t.Run("purge", func(t *testing.T) {
		f := newAPIFixture(t)
		f.db.On("DeleteResource", mock.Anything, "pokemon", "pikachu").Return(nil)

		resp, data := f.do(t, "DELETE", "/v1/cache/pokemon/pikachu?purge=true", nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		var out InvalidateResponse
		require.NoError(t, json.Unmarshal(data, &out))
		assert.True(t, out.StoreRemoved)
		f.db.AssertExpectations(t)
	})

	t.Run("endpoint", func(t *testing.T) {
		f := newAPIFixture(t)
		require.NoError(t, f.rc.Put(ctx, pikachu, []byte(`{}`)))
		require.NoError(t, f.rc.Put(ctx, cache.Ref{Endpoint: "pokemon", ID: "bulbasaur"}, []byte(`{}`)))
		require.NoError(t, f.rc.Put(ctx, cache.Ref{Endpoint: "generation", ID: "1"}, []byte(`{}`)))

		resp, data := f.do(t, "DELETE", "/v1/cache/pokemon", nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		var out InvalidateResponse
		require.NoError(t, json.Unmarshal(data, &out))
		assert.Equal(t, 2, out.KeysRemoved)

		_, err := f.rc.Get(ctx, cache.Ref{Endpoint: "generation", ID: "1"})
		assert.NoError(t, err)
	})

	t.Run("too deep", func(t *testing.T) {
		f := newAPIFixture(t)
		resp, _ := f.do(t, "DELETE", "/v1/cache/pokemon/pikachu/encounters", nil)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})
}

func TestHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		f := newAPIFixture(t)
		f.db.On("Health", mock.Anything).Return(nil)

		resp, data := f.do(t, "GET", "/health", nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		var out HealthResponse
		require.NoError(t, json.Unmarshal(data, &out))
		assert.Equal(t, "healthy", out.Status)
		assert.Equal(t, "healthy", out.Checks["redis"])
		assert.Equal(t, "healthy", out.Checks["database"])
		assert.Equal(t, "healthy", out.Checks["upstream"])
	})

	t.Run("degraded without the store", func(t *testing.T) {
		f := newAPIFixture(t)
		f.db.On("Health", mock.Anything).Return(errors.New("connection refused"))

		resp, data := f.do(t, "GET", "/health", nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		var out HealthResponse
		require.NoError(t, json.Unmarshal(data, &out))
		assert.Equal(t, "degraded", out.Status)
		assert.Contains(t, out.Checks["database"], "connection refused")
	})
}

func TestAPIKey(t *testing.T) {
	f := newAPIFixture(t, withAPIKey("secret"))
	f.storeMiss("pokemon", "pikachu")

	resp, data := f.do(t, "GET", "/v1/pokemon/pikachu", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, ErrCodeUnauthorized, decodeError(t, data).Code)

	req := httptest.NewRequest("GET", "/v1/pokemon/pikachu", nil)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	// Health stays public.
	f.db.On("Health", mock.Anything).Return(nil)
	resp, _ = f.do(t, "GET", "/health", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestNotFoundRoute(t *testing.T) {
	f := newAPIFixture(t)
	resp, data := f.do(t, "GET", "/v2/nothing", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, ErrCodeNotFound, decodeError(t, data).Code)
}

func TestMapError(t *testing.T) {
	type query struct {
		Depth int `validate:"max=1"`
	}
	verr := validator.New().Struct(query{Depth: 2})
	require.Error(t, verr)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"fiber error", fiber.NewError(fiber.StatusTooManyRequests, "slow down"), fiber.StatusTooManyRequests, ErrCodeRateLimited},
		{"validation", verr, fiber.StatusBadRequest, ErrCodeInvalidRequest},
		{"sdk invalid argument wrapping not found", sdk.NewError(sdk.ErrorTypeValidation, "bad generation", sdk.NewError(sdk.ErrorTypeNotFound, "missing", nil)), fiber.StatusBadRequest, ErrCodeInvalidRequest},
		{"sdk not found", sdk.NewError(sdk.ErrorTypeNotFound, "missing", nil), fiber.StatusNotFound, ErrCodeNotFound},
		{"store not found", database.ErrNotFound, fiber.StatusNotFound, ErrCodeNotFound},
		{"rate limited", sdk.NewError(sdk.ErrorTypeRateLimit, "429", nil), fiber.StatusTooManyRequests, ErrCodeRateLimited},
		{"circuit open", sdk.NewError(sdk.ErrorTypeCircuitOpen, "open", nil), fiber.StatusServiceUnavailable, ErrCodeUnavailable},
		{"timeout", context.DeadlineExceeded, fiber.StatusGatewayTimeout, ErrCodeTimeout},
		{"server error", sdk.NewError(sdk.ErrorTypeServer, "500", nil), fiber.StatusBadGateway, ErrCodeUpstream},
		{"unknown", errors.New("boom"), fiber.StatusInternalServerError, ErrCodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := mapError(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, resp.Code)
		})
	}
}

func TestExpandQuery(t *testing.T) {
	q := ExpandQuery{Expand: " species, moves.move ,,"}
	assert.Equal(t, []string{"species", "moves.move"}, q.Paths())
	assert.True(t, q.Requested())
	assert.False(t, ExpandQuery{}.Requested())
	assert.True(t, ExpandQuery{Depth: 2}.Requested())
}
