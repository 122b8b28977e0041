package telemetry

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

// Init initializes all telemetry components
func Init(cfg *Config) error {
	if err := InitLogger(cfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := InitMetrics(cfg); err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	if err := InitTracing(cfg); err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}

	L().WithFields(map[string]interface{}{
		"service":     cfg.ServiceName,
		"version":     cfg.ServiceVersion,
		"environment": cfg.Environment,
		"tracing":     cfg.EnableTracing,
	}).Info("Telemetry initialized")

	return nil
}

// Shutdown flushes exporters and closes the log file. Errors are logged.
func Shutdown(ctx context.Context) error {
	serviceUp.Set(0)

	if err := CloseTracing(ctx); err != nil {
		L().WithError(err).Error("Failed to close tracing")
	}
	if err := closeMetrics(ctx); err != nil {
		L().WithError(err).Error("Failed to close metrics")
	}
	if err := CloseLogger(); err != nil {
		L().WithError(err).Error("Failed to close logger")
	}

	return nil
}

// PrometheusHandler serves the default Prometheus registry on fiber.
func PrometheusHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}

// FiberMiddleware traces each request and records its metrics. Spans and
// metrics are labelled with the matched route, not the raw path.
func FiberMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		ctx, span := StartSpan(c.UserContext(), c.Method()+" "+c.Path())
		defer span.End()
		c.SetUserContext(ctx)

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else if status < fiber.StatusBadRequest {
				status = fiber.StatusInternalServerError
			}
		}
		route := c.Route().Path

		RecordHTTPRequest(c.Method(), route, strconv.Itoa(status), time.Since(start))

		span.SetName(c.Method() + " " + route)
		span.SetAttributes(
			semconv.HTTPMethodKey.String(c.Method()),
			semconv.HTTPTargetKey.String(c.OriginalURL()),
			semconv.HTTPRouteKey.String(route),
			semconv.HTTPStatusCodeKey.Int(status),
		)

		switch {
		case err != nil:
			RecordError(ctx, err)
		case status >= fiber.StatusInternalServerError:
			SetErrorStatus(ctx, fmt.Sprintf("HTTP %d", status))
		default:
			SetOKStatus(ctx)
		}

		return err
	}
}

// FiberLoggingMiddleware returns a Fiber middleware for structured logging
func FiberLoggingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		entry := WithContext(c.UserContext()).WithFields(map[string]interface{}{
			"method":      c.Method(),
			"path":        c.Path(),
			"status":      c.Response().StatusCode(),
			"duration_ms": time.Since(start).Milliseconds(),
			"ip":          c.IP(),
			"request_id":  c.GetRespHeader(fiber.HeaderXRequestID),
		})

		switch {
		case err != nil:
			entry.WithError(err).Error("Request failed")
		case c.Response().StatusCode() >= fiber.StatusInternalServerError:
			entry.Warn("Request completed with error status")
		default:
			entry.Debug("Request completed")
		}

		return err
	}
}

// TimeLookup starts a span for a lookup against tier and returns a function
// that ends it and records the result (hit, miss or error).
func TimeLookup(ctx context.Context, tier string) (context.Context, func(result string)) {
	start := time.Now()
	ctx, span := StartSpan(ctx, "lookup."+tier)

	return ctx, func(result string) {
		RecordLookup(tier, result, time.Since(start))
		if result == "error" {
			SetErrorStatus(ctx, tier+" lookup failed")
		} else {
			SetOKStatus(ctx)
		}
		span.End()
	}
}
