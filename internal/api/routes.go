package api

import (
	"github.com/birbparty/pokenest/internal/telemetry"
	"github.com/gofiber/fiber/v2"
)

// Version is reported by /health and the root endpoint.
var Version = "1.0.0"

// NewApp creates the fiber application with middleware and routes.
func NewApp(config *Config, handler *Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "pokenest-api",
		ReadTimeout:           config.RequestTimeout,
		WriteTimeout:          config.RequestTimeout,
		BodyLimit:             config.BodyLimit,
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			status, resp := mapError(err)
			return c.Status(status).JSON(resp)
		},
	})

	SetupMiddleware(app)
	SetupRoutes(app, handler, config)
	return app
}

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, handler *Handler, config *Config) {
	// Health and metrics endpoints (no auth required)
	app.Get("/health", handler.Health)
	app.Get("/metrics", telemetry.PrometheusHandler())

	// API v1 group
	v1 := app.Group("/v1")

	if config.RateLimit > 0 {
		v1.Use(RateLimiter(config.RateLimit))
	}

	// Apply API key validation if configured
	if config.APIKey != "" {
		v1.Use(ValidateAPIKey(config.APIKey))
	}

	v1.Get("/pokemon", handler.ListPokemon)
	v1.Get("/pokemon/:id", handler.GetPokemon)
	v1.Get("/generation", handler.ListGenerations)
	v1.Get("/generation/:id", handler.GetGeneration)

	search := v1.Group("/search")
	search.Get("/pokemon", handler.SearchPokemon)
	search.Get("/generation", handler.SearchGenerations)

	pokedex := v1.Group("/pokedex")
	pokedex.Get("/rankings", handler.Rankings)
	pokedex.Get("/detail", handler.Detail)

	v1.Get("/resource/*", handler.GetResource)
	v1.Post("/prefetch", handler.Prefetch)
	v1.Delete("/cache/*", handler.InvalidateCache)
	v1.Get("/stats/writer", handler.WriterStats)

	// Root endpoint
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"service": "pokenest-api",
			"version": Version,
			"status":  "running",
			"endpoints": fiber.Map{
				"pokemon":    "GET /v1/pokemon, GET /v1/pokemon/:id",
				"generation": "GET /v1/generation, GET /v1/generation/:id",
				"search":     "GET /v1/search/pokemon, GET /v1/search/generation",
				"pokedex":    "GET /v1/pokedex/rankings, GET /v1/pokedex/detail",
				"resource":   "GET /v1/resource/*?expand=&depth=&max_requests=&concurrency=",
				"prefetch":   "POST /v1/prefetch",
				"cache":      "DELETE /v1/cache/*",
				"health":     "GET /health",
				"metrics":    "GET /metrics",
			},
		})
	})

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(
			NewErrorResponse("Endpoint not found", ErrCodeNotFound),
		)
	})
}
