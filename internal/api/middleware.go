package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/birbparty/pokenest/internal/database"
	"github.com/birbparty/pokenest/internal/telemetry"
	"github.com/birbparty/pokenest/sdk"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

// SetupMiddleware configures all middleware for the application
func SetupMiddleware(app *fiber.App) {
	// Request ID middleware
	app.Use(requestid.New())

	// Recover middleware
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	// Tracing, Prometheus and structured request logs
	app.Use(telemetry.FiberMiddleware())
	app.Use(telemetry.FiberLoggingMiddleware())

	// CORS middleware
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-API-Key",
	}))

	// Custom error handler
	app.Use(errorHandler())

	// Timing middleware
	app.Use(timingMiddleware())
}

// errorHandler renders handler errors as ErrorResponse envelopes.
func errorHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()
		if err == nil {
			return nil
		}

		status, resp := mapError(err)
		entry := telemetry.WithContext(c.UserContext()).WithError(err).WithFields(map[string]interface{}{
			"path":   c.Path(),
			"method": c.Method(),
			"status": status,
		})
		if status >= fiber.StatusInternalServerError {
			entry.Error("Request error")
		} else {
			entry.Debug("Request rejected")
		}

		return c.Status(status).JSON(resp)
	}
}

// mapError translates fiber, validation, SDK and store errors into an HTTP
// status and error envelope.
func mapError(err error) (int, *ErrorResponse) {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code, NewErrorResponse(fe.Message, codeForStatus(fe.Code))
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return fiber.StatusBadRequest, NewErrorResponseWithMessage("Invalid request parameters", ErrCodeInvalidRequest, describeValidation(verrs))
	}

	// Validation is checked first: SDK validation errors may wrap a not-found.
	switch {
	case errors.Is(err, sdk.ErrInvalidArgument), errors.Is(err, sdk.ErrBadRequest):
		return fiber.StatusBadRequest, NewErrorResponseWithMessage("Invalid request", ErrCodeInvalidRequest, err.Error())
	case errors.Is(err, sdk.ErrNotFound), errors.Is(err, database.ErrNotFound):
		return fiber.StatusNotFound, NewErrorResponse("Resource not found", ErrCodeNotFound)
	case errors.Is(err, sdk.ErrRateLimited):
		return fiber.StatusTooManyRequests, NewErrorResponse("Upstream rate limit exceeded", ErrCodeRateLimited)
	case errors.Is(err, sdk.ErrCircuitOpen), errors.Is(err, sdk.ErrServiceUnavailable), errors.Is(err, sdk.ErrConnection):
		return fiber.StatusServiceUnavailable, NewErrorResponseWithMessage("Upstream unavailable", ErrCodeUnavailable, err.Error())
	case errors.Is(err, sdk.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout, NewErrorResponse("Upstream request timed out", ErrCodeTimeout)
	case errors.Is(err, sdk.ErrServerError), errors.Is(err, sdk.ErrInvalidResponse):
		return fiber.StatusBadGateway, NewErrorResponseWithMessage("Upstream error", ErrCodeUpstream, err.Error())
	}

	return fiber.StatusInternalServerError, NewErrorResponse("Internal Server Error", ErrCodeInternalError)
}

func codeForStatus(status int) string {
	switch status {
	case fiber.StatusNotFound:
		return ErrCodeNotFound
	case fiber.StatusBadRequest, fiber.StatusUnprocessableEntity:
		return ErrCodeInvalidRequest
	case fiber.StatusRequestTimeout, fiber.StatusGatewayTimeout:
		return ErrCodeTimeout
	case fiber.StatusTooManyRequests:
		return ErrCodeRateLimited
	case fiber.StatusUnauthorized:
		return ErrCodeUnauthorized
	case fiber.StatusServiceUnavailable:
		return ErrCodeUnavailable
	}
	return ErrCodeInternalError
}

func describeValidation(verrs validator.ValidationErrors) string {
	fe := verrs[0]
	if fe.Param() != "" {
		return fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
}

// timingMiddleware adds request timing headers
func timingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		// Process request
		err := c.Next()

		c.Set("X-Response-Time", fmt.Sprintf("%d ms", time.Since(start).Milliseconds()))

		return err
	}
}

// ValidateAPIKey creates a middleware for API key validation
func ValidateAPIKey(apiKey string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if apiKey != "" {
			// Get API key from header
			key := c.Get("X-API-Key")
			if key == "" {
				// Try Authorization header
				auth := c.Get(fiber.HeaderAuthorization)
				if len(auth) > 7 && auth[:7] == "Bearer " {
					key = auth[7:]
				}
			}

			if key != apiKey {
				return c.Status(fiber.StatusUnauthorized).JSON(
					NewErrorResponse("Invalid or missing API key", ErrCodeUnauthorized),
				)
			}
		}
		return c.Next()
	}
}

// RateLimiter limits each client IP to requestsPerMinute.
func RateLimiter(requestsPerMinute int) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        requestsPerMinute,
		Expiration: time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(
				NewErrorResponse("Rate limit exceeded", ErrCodeRateLimited),
			)
		},
	})
}
