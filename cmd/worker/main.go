package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/birbparty/pokenest/internal/cache"
	"github.com/birbparty/pokenest/internal/cleanup"
	"github.com/birbparty/pokenest/internal/database"
	"github.com/birbparty/pokenest/internal/queue"
	"github.com/birbparty/pokenest/internal/storage"
	"github.com/birbparty/pokenest/internal/telemetry"
	"github.com/birbparty/pokenest/internal/worker"
	"github.com/birbparty/pokenest/sdk"
	"github.com/cenkalti/backoff/v4"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

const serviceName = "pokenest-worker"

func main() {
	telemetryConfig := telemetry.NewConfigFromEnv(serviceName)
	if err := telemetry.Init(telemetryConfig); err != nil {
		telemetry.L().WithError(err).Fatal("Failed to initialize telemetry")
	}
	log := telemetry.Component("main")
	log.Info("Pokenest worker starting")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	workerConfig, err := worker.NewConfigFromEnv()
	if err != nil {
		log.WithError(err).Fatal("Failed to load worker config")
	}
	dbConfig, err := database.NewConfigFromEnv()
	if err != nil {
		log.WithError(err).Fatal("Failed to load database config")
	}
	cacheConfig, err := cache.NewConfigFromEnv()
	if err != nil {
		log.WithError(err).Fatal("Failed to load cache config")
	}
	queueConfig, err := queue.NewConfigFromEnv()
	if err != nil {
		log.WithError(err).Fatal("Failed to load queue config")
	}

	// The worker usually starts alongside its dependencies, so connections
	// are retried with backoff before giving up.
	var db *database.PostgreSQLClient
	if err := connect(ctx, log, "postgres", func() (err error) {
		db, err = database.NewPostgreSQLClient(ctx, dbConfig)
		return err
	}); err != nil {
		log.WithError(err).Fatal("Failed to connect to PostgreSQL")
	}
	defer db.Close()

	var redisCache *cache.RedisCache
	if err := connect(ctx, log, "redis", func() (err error) {
		redisCache, err = cache.NewRedisCache(cacheConfig)
		return err
	}); err != nil {
		log.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redisCache.Close()
	resourceCache := cache.NewResourceCache(redisCache, cacheConfig.Namespace, cacheConfig.DefaultTTL, cacheConfig.ExpandedTTL)

	var queueClient *queue.Client
	if err := connect(ctx, log, "nats", func() (err error) {
		queueClient, err = queue.NewClient(queueConfig)
		return err
	}); err != nil {
		log.WithError(err).Fatal("Failed to connect to NATS")
	}
	defer queueClient.Close()

	upstreamConfig := sdk.DefaultConfig().
		WithBaseURL(getEnv("POKEAPI_URL", sdk.DefaultBaseURL)).
		WithObserver(telemetry.NewSDKObserver(telemetry.Component("upstream"))).
		WithLogger(telemetry.Component("sdk"))
	upstream, err := sdk.NewClient(upstreamConfig)
	if err != nil {
		log.WithError(err).Fatal("Failed to create PokeAPI client")
	}
	defer upstream.Close()

	metrics := worker.NewMetrics()
	processor := worker.NewProcessor(workerConfig, db, resourceCache, upstream, queueClient, metrics)

	sweeper := newSweeper(log, db, resourceCache, queueClient)

	go startHealthServer(log, workerConfig.HealthCheckPort, metrics, db, queueClient)

	if err := processor.PerformStartupRehydration(ctx); err != nil {
		log.WithError(err).Warn("Startup rehydration failed")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	processorDone := make(chan error, 1)
	go func() {
		processorDone <- processor.Start(ctx)
	}()

	go sweeper.Start(ctx)

	select {
	case sig := <-sigChan:
		log.WithField("signal", sig.String()).Info("Shutting down gracefully")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), workerConfig.MessageTimeout)
		defer shutdownCancel()

		select {
		case <-processorDone:
			log.Info("Worker shutdown complete")
		case <-shutdownCtx.Done():
			log.Warn("Worker shutdown timeout")
		}

	case err := <-processorDone:
		if err != nil {
			log.WithError(err).Error("Processor error")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = telemetry.Shutdown(shutdownCtx)
}

// connect retries op with exponential backoff for up to a minute.
func connect(ctx context.Context, log *logrus.Entry, name string, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxElapsedTime = time.Minute

	return backoff.RetryNotify(op, backoff.WithContext(b, ctx), func(err error, next time.Duration) {
		log.WithError(err).WithFields(logrus.Fields{
			"dependency": name,
			"retry_in":   next.String(),
		}).Warn("Dependency not ready")
	})
}

// newSweeper builds the retention sweeper. Archiving is switched off when no
// bucket credentials are configured.
func newSweeper(log *logrus.Entry, db database.Interface, rc *cache.ResourceCache, notifier cleanup.Notifier) *cleanup.Service {
	cfg := cleanup.LoadConfig()
	opts := []cleanup.Option{
		cleanup.WithNotifier(notifier),
		cleanup.WithEvictor(rc),
	}

	archiveConfig := storage.LoadConfig()
	switch {
	case !cfg.Archive:
	case !archiveConfig.Enabled():
		log.Warn("Archive credentials not configured, swept resources will not be archived")
		cfg.Archive = false
	default:
		archiver, err := storage.NewArchiveClient(archiveConfig)
		if err != nil {
			log.WithError(err).Warn("Failed to initialize archive client, archiving disabled")
			cfg.Archive = false
			break
		}
		opts = append(opts, cleanup.WithArchiver(archiver))
		log.WithField("bucket", archiveConfig.Bucket).Info("Archiving swept resources")
	}

	return cleanup.NewService(db, cfg, opts...)
}

func startHealthServer(log *logrus.Entry, port int, metrics *worker.Metrics, db database.Interface, q *queue.Client) {
	app := fiber.New(fiber.Config{
		AppName:               serviceName,
		DisableStartupMessage: true,
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		checks := fiber.Map{"processor": "ok", "postgres": "ok", "nats": "ok"}
		healthy := metrics.IsHealthy()
		if !healthy {
			checks["processor"] = "unhealthy"
		}
		if err := db.Health(c.UserContext()); err != nil {
			checks["postgres"] = err.Error()
			healthy = false
		}
		if err := q.Health(); err != nil {
			checks["nats"] = err.Error()
			healthy = false
		}

		status, code := "healthy", fiber.StatusOK
		if !healthy {
			status, code = "unhealthy", fiber.StatusServiceUnavailable
		}
		return c.Status(code).JSON(fiber.Map{
			"status":  status,
			"service": serviceName,
			"checks":  checks,
		})
	})
	app.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(metrics.GetStats())
	})
	app.Get("/metrics", telemetry.PrometheusHandler())

	addr := fmt.Sprintf(":%d", port)
	log.WithField("address", addr).Info("Health check server listening")
	if err := app.Listen(addr); err != nil {
		log.WithError(err).Error("Health server error")
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
