package api

import (
	"net/url"
	"strings"
	"time"

	"github.com/birbparty/pokenest/internal/cache"
	"github.com/birbparty/pokenest/internal/database"
	"github.com/birbparty/pokenest/internal/queue"
	"github.com/birbparty/pokenest/sdk"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// HeaderSource names the tier that served a resource response.
const HeaderSource = "X-Pokenest-Source"

// Query parameters consumed by the gateway and never forwarded upstream.
var expandParams = map[string]bool{
	"expand":       true,
	"depth":        true,
	"max_requests": true,
	"concurrency":  true,
}

// HealthChecker reports the health of a connection.
type HealthChecker interface {
	Health() error
}

// Dependencies are the collaborators of a Handler. Only Cache and Upstream
// are required.
type Dependencies struct {
	Cache     *cache.ResourceCache
	Upstream  *sdk.Client
	DB        database.Interface
	Publisher queue.Publisher
	Queue     HealthChecker
	Writer    *AsyncWriter
}

// Handler holds all dependencies for API handlers
type Handler struct {
	config    *Config
	deps      Dependencies
	resolver  *Resolver
	validate  *validator.Validate
	startTime time.Time
}

// NewHandler creates a new handler instance
func NewHandler(config *Config, deps Dependencies) *Handler {
	return &Handler{
		config:    config,
		deps:      deps,
		resolver:  NewResolver(deps.Cache, deps.DB, deps.Upstream, deps.Publisher, deps.Writer),
		validate:  newValidator(),
		startTime: time.Now(),
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("sort_by", func(fl validator.FieldLevel) bool {
		return sdk.ValidSortBy(fl.Field().String())
	})
	return v
}

// parseQuery binds and validates query parameters into dst.
func (h *Handler) parseQuery(c *fiber.Ctx, dst interface{}) error {
	if err := c.QueryParser(dst); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid query parameters: "+err.Error())
	}
	return h.validate.Struct(dst)
}

// expansion turns expand query parameters into an Expansion, or nil when
// none were given.
func (h *Handler) expansion(q ExpandQuery) (*Expansion, error) {
	if !q.Requested() {
		return nil, nil
	}
	if q.Depth > h.config.ExpandMaxDepth {
		return nil, fiber.NewError(fiber.StatusBadRequest, "depth exceeds the configured maximum")
	}
	if q.MaxRequests > h.config.ExpandMaxRequests {
		return nil, fiber.NewError(fiber.StatusBadRequest, "max_requests exceeds the configured maximum")
	}

	e := &Expansion{
		Paths:       q.Paths(),
		Depth:       q.Depth,
		MaxRequests: q.MaxRequests,
		Concurrency: q.Concurrency,
	}
	if e.Depth == 0 {
		e.Depth = 1
	}
	return e, nil
}

// GetPokemon handles GET /v1/pokemon/:id
func (h *Handler) GetPokemon(c *fiber.Ctx) error {
	return h.serveResource(c, "pokemon", c.Params("id"))
}

// GetGeneration handles GET /v1/generation/:id
func (h *Handler) GetGeneration(c *fiber.Ctx) error {
	return h.serveResource(c, "generation", c.Params("id"))
}

func (h *Handler) serveResource(c *fiber.Ctx, endpoint, id string) error {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" || strings.ContainsAny(id, "/?#") {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid resource id")
	}

	var q ExpandQuery
	if err := h.parseQuery(c, &q); err != nil {
		return err
	}
	e, err := h.expansion(q)
	if err != nil {
		return err
	}

	ref := cache.Ref{Endpoint: endpoint, ID: id}
	var body []byte
	var source string
	if e != nil {
		body, source, err = h.resolver.Expanded(c.UserContext(), ref, *e)
	} else {
		body, source, err = h.resolver.Resource(c.UserContext(), ref)
	}
	if err != nil {
		return err
	}

	recordResponse(source, e != nil)
	c.Set(HeaderSource, source)
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(body)
}

// GetResource handles GET /v1/resource/*. Paths of the form
// endpoint/id go through the storage tiers; anything else, such as list
// pages or sub-resources, is fetched from upstream with the remaining query
// parameters.
func (h *Handler) GetResource(c *fiber.Ctx) error {
	path := strings.Trim(c.Params("*"), "/")
	if path == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Resource path is required")
	}

	var q ExpandQuery
	if err := h.parseQuery(c, &q); err != nil {
		return err
	}
	e, err := h.expansion(q)
	if err != nil {
		return err
	}

	forward := url.Values{}
	c.Context().QueryArgs().VisitAll(func(k, v []byte) {
		if !expandParams[string(k)] {
			forward.Add(string(k), string(v))
		}
	})

	if segs := strings.Split(path, "/"); len(segs) == 2 && len(forward) == 0 {
		return h.serveResource(c, segs[0], segs[1])
	}

	if len(forward) > 0 {
		path += "?" + forward.Encode()
	}
	body, err := h.resolver.Passthrough(c.UserContext(), path, e)
	if err != nil {
		return err
	}

	recordResponse(SourceUpstream, e != nil)
	c.Set(HeaderSource, SourceUpstream)
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(body)
}

// ListPokemon handles GET /v1/pokemon
func (h *Handler) ListPokemon(c *fiber.Ctx) error {
	var q ListQuery
	if err := h.parseQuery(c, &q); err != nil {
		return err
	}
	page, err := h.deps.Upstream.Pokemon.List(c.UserContext(), sdk.ListParams{Limit: q.Limit, Offset: q.Offset})
	if err != nil {
		return err
	}
	return c.JSON(page)
}

// ListGenerations handles GET /v1/generation
func (h *Handler) ListGenerations(c *fiber.Ctx) error {
	var q ListQuery
	if err := h.parseQuery(c, &q); err != nil {
		return err
	}
	page, err := h.deps.Upstream.Generation.List(c.UserContext(), sdk.ListParams{Limit: q.Limit, Offset: q.Offset})
	if err != nil {
		return err
	}
	return c.JSON(page)
}

// SearchPokemon handles GET /v1/search/pokemon
func (h *Handler) SearchPokemon(c *fiber.Ctx) error {
	var q PokemonSearchQuery
	if err := h.parseQuery(c, &q); err != nil {
		return err
	}
	page, err := h.deps.Upstream.Search.Pokemon(c.UserContext(), sdk.PokemonSearch{
		NamePrefix: strings.ToLower(q.Prefix),
		Type:       strings.ToLower(q.Type),
		Ability:    strings.ToLower(q.Ability),
		Limit:      q.Limit,
		Offset:     q.Offset,
	})
	if err != nil {
		return err
	}
	return c.JSON(page)
}

// SearchGenerations handles GET /v1/search/generation
func (h *Handler) SearchGenerations(c *fiber.Ctx) error {
	var q GenerationSearchQuery
	if err := h.parseQuery(c, &q); err != nil {
		return err
	}
	page, err := h.deps.Upstream.Search.Generation(c.UserContext(), sdk.GenerationSearch{
		NamePrefix: strings.ToLower(q.Prefix),
		Region:     strings.ToLower(q.Region),
		Limit:      q.Limit,
		Offset:     q.Offset,
	})
	if err != nil {
		return err
	}
	return c.JSON(page)
}

// Rankings handles GET /v1/pokedex/rankings
func (h *Handler) Rankings(c *fiber.Ctx) error {
	var q RankingsQuery
	if err := h.parseQuery(c, &q); err != nil {
		return err
	}
	rows, err := h.deps.Upstream.Pokedex.Rankings(c.UserContext(), sdk.RankingsRequest{
		Pokedex:     strings.ToLower(q.Pokedex),
		Generation:  q.Generation,
		SortBy:      q.SortBy,
		Concurrency: q.Concurrency,
	})
	if err != nil {
		return err
	}

	sortBy := q.SortBy
	if sortBy == "" {
		sortBy = "total"
	}
	return c.JSON(fiber.Map{
		"pokedex":    q.Pokedex,
		"generation": q.Generation,
		"sort_by":    sortBy,
		"count":      len(rows),
		"results":    rows,
	})
}

// Detail handles GET /v1/pokedex/detail
func (h *Handler) Detail(c *fiber.Ctx) error {
	var q DetailQuery
	if err := h.parseQuery(c, &q); err != nil {
		return err
	}
	view, err := h.deps.Upstream.Pokedex.Detail(c.UserContext(), sdk.DetailRequest{
		Pokedex:          strings.ToLower(q.Pokedex),
		Generation:       q.Generation,
		Number:           q.Number,
		Name:             strings.ToLower(q.Name),
		VersionGroup:     strings.ToLower(q.VersionGroup),
		SpritePreference: q.Sprite,
	})
	if err != nil {
		return err
	}
	return c.JSON(view)
}

// Prefetch handles POST /v1/prefetch
func (h *Handler) Prefetch(c *fiber.Ctx) error {
	var req PrefetchRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := h.validate.Struct(&req); err != nil {
		return err
	}
	if req.Depth > h.config.ExpandMaxDepth {
		return fiber.NewError(fiber.StatusBadRequest, "depth exceeds the configured maximum")
	}
	if h.deps.Publisher == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "Prefetch queue is not configured")
	}

	endpoint := strings.ToLower(req.Endpoint)
	id := strings.ToLower(req.ID)
	msg := queue.NewPrefetchMessage(endpoint, id, req.Expand, req.Depth)
	if err := h.deps.Publisher.PublishPrefetch(c.UserContext(), msg); err != nil {
		recordPrefetch(endpoint, "error")
		return fiber.NewError(fiber.StatusServiceUnavailable, "Failed to queue prefetch")
	}
	recordPrefetch(endpoint, "queued")

	return c.Status(fiber.StatusAccepted).JSON(&PrefetchResponse{
		MessageID: msg.ID,
		Endpoint:  endpoint,
		ID:        id,
	})
}

// InvalidateCache handles DELETE /v1/cache/*. An endpoint/id path drops one
// resource and its expansions; a bare endpoint drops the whole endpoint.
// ?purge=true also deletes the stored document.
func (h *Handler) InvalidateCache(c *fiber.Ctx) error {
	path := strings.ToLower(strings.Trim(c.Params("*"), "/"))
	segs := strings.Split(path, "/")

	var resp *InvalidateResponse
	var err error
	switch {
	case path == "":
		return fiber.NewError(fiber.StatusBadRequest, "Resource path is required")
	case len(segs) == 1:
		resp, err = h.resolver.InvalidateEndpoint(c.UserContext(), segs[0])
	case len(segs) == 2:
		resp, err = h.resolver.Invalidate(c.UserContext(), cache.Ref{Endpoint: segs[0], ID: segs[1]}, c.QueryBool("purge"))
	default:
		return fiber.NewError(fiber.StatusBadRequest, "Path must be endpoint or endpoint/id")
	}
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

// Health handles GET /health. Redis is required; PostgreSQL, NATS and the
// upstream circuit only degrade the service.
func (h *Handler) Health(c *fiber.Ctx) error {
	ctx := c.UserContext()

	checks := make(map[string]string)
	status := "healthy"
	degrade := func() {
		if status == "healthy" {
			status = "degraded"
		}
	}

	if err := h.deps.Cache.Ping(ctx); err != nil {
		checks["redis"] = "unhealthy: " + err.Error()
		status = "unhealthy"
	} else {
		checks["redis"] = "healthy"
	}

	if h.deps.DB != nil {
		if err := h.deps.DB.Health(ctx); err != nil {
			checks["database"] = "unhealthy: " + err.Error()
			degrade()
		} else {
			checks["database"] = "healthy"
		}
	}

	if h.deps.Queue != nil {
		if err := h.deps.Queue.Health(); err != nil {
			checks["nats"] = "unhealthy: " + err.Error()
			degrade()
		} else {
			checks["nats"] = "healthy"
		}
	}

	if state := h.deps.Upstream.CircuitState(); state == sdk.CircuitOpen {
		checks["upstream"] = "circuit " + state.String()
		degrade()
	} else {
		checks["upstream"] = "healthy"
	}

	UpdateHealthMetric(status)

	statusCode := fiber.StatusOK
	if status == "unhealthy" {
		statusCode = fiber.StatusServiceUnavailable
	}

	return c.Status(statusCode).JSON(&HealthResponse{
		Status:  status,
		Service: "pokenest-api",
		Version: Version,
		Uptime:  time.Since(h.startTime).String(),
		Checks:  checks,
	})
}

// WriterStats handles GET /v1/stats/writer
func (h *Handler) WriterStats(c *fiber.Ctx) error {
	if h.deps.Writer == nil {
		return c.JSON(AsyncWriterStats{})
	}
	return c.JSON(h.deps.Writer.Stats())
}
