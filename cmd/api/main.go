package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/birbparty/pokenest/internal/api"
	"github.com/birbparty/pokenest/internal/cache"
	"github.com/birbparty/pokenest/internal/database"
	"github.com/birbparty/pokenest/internal/queue"
	"github.com/birbparty/pokenest/internal/telemetry"
	"github.com/birbparty/pokenest/sdk"
)

func main() {
	telemetryConfig := telemetry.NewConfigFromEnv("pokenest-api")
	telemetryConfig.ServiceVersion = api.Version
	if err := telemetry.Init(telemetryConfig); err != nil {
		telemetry.L().WithError(err).Fatal("Failed to initialize telemetry")
	}
	log := telemetry.Component("main")

	cfg, err := api.LoadConfig()
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}
	log.WithField("address", cfg.Address()).Info("Pokenest API starting")

	ctx := context.Background()

	cacheConfig, err := cache.NewConfigFromEnv()
	if err != nil {
		log.WithError(err).Fatal("Failed to load cache configuration")
	}
	var client cache.Cache
	redisCache, err := cache.NewRedisCache(cacheConfig)
	if err != nil {
		// Serve from process memory rather than refuse traffic.
		log.WithError(err).Warn("Redis unavailable, using in-memory cache")
		client = cache.NewMemoryCache(50000, cacheConfig.DefaultTTL, cacheConfig.DefaultTTL)
	} else {
		log.WithField("address", cacheConfig.Address()).Info("Connected to Redis")
		client = redisCache
	}
	defer client.Close()
	resourceCache := cache.NewResourceCache(client, cacheConfig.Namespace, cacheConfig.DefaultTTL, cacheConfig.ExpandedTTL)

	var db database.Interface
	if cfg.PostgresEnabled {
		dbConfig, err := database.NewConfigFromEnv()
		if err != nil {
			log.WithError(err).Fatal("Failed to load database configuration")
		}
		pg, err := database.NewPostgreSQLClient(ctx, dbConfig)
		if err != nil {
			log.WithError(err).Fatal("Failed to connect to PostgreSQL")
		}
		defer pg.Close()
		db = pg
		log.Info("Connected to PostgreSQL")
	}

	// Publisher and Queue stay nil interfaces unless NATS is connected.
	var (
		publisher   queue.Publisher
		queueHealth api.HealthChecker
	)
	if cfg.QueueEnabled {
		queueConfig, err := queue.NewConfigFromEnv()
		if err != nil {
			log.WithError(err).Fatal("Failed to load queue configuration")
		}
		queueClient, err := queue.NewClient(queueConfig)
		if err != nil {
			log.WithError(err).Warn("NATS unavailable, writes go straight to PostgreSQL")
		} else {
			defer queueClient.Close()
			publisher = queueClient
			queueHealth = queueClient
		}
	}

	upstreamConfig := sdk.DefaultConfig().
		WithBaseURL(cfg.PokeAPIURL).
		WithTimeout(cfg.UpstreamTimeout).
		WithRetries(cfg.UpstreamRetries).
		WithObserver(telemetry.NewSDKObserver(telemetry.Component("upstream"))).
		WithLogger(telemetry.Component("sdk"))
	upstreamConfig.ExpandDefaults.MaxRequests = cfg.ExpandMaxRequests
	upstream, err := sdk.NewClient(upstreamConfig)
	if err != nil {
		log.WithError(err).Fatal("Failed to create PokeAPI client")
	}
	defer upstream.Close()

	var writer *api.AsyncWriter
	if db != nil || publisher != nil {
		writer = api.NewAsyncWriter(db, publisher, cfg.WriteQueueSize, cfg.WriteWorkers, cfg.WriteRetries)
	}

	handler := api.NewHandler(cfg, api.Dependencies{
		Cache:     resourceCache,
		Upstream:  upstream,
		DB:        db,
		Publisher: publisher,
		Queue:     queueHealth,
		Writer:    writer,
	})
	app := api.NewApp(cfg, handler)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info("Shutting down gracefully")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.WithError(err).Error("Server forced to shutdown")
		}
	}()

	log.WithField("address", cfg.Address()).Info("Pokenest API listening")
	if err := app.Listen(cfg.Address()); err != nil {
		log.WithError(err).Error("Server stopped")
	}

	// Drain queued writes before the store and queue connections close.
	if writer != nil {
		writer.Shutdown()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	_ = telemetry.Shutdown(shutdownCtx)
}
