package worker

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds worker configuration
type Config struct {
	// Worker identification
	WorkerID   string
	WorkerName string

	// Processing settings
	ProcessingConcurrency     int
	RehydrationBatchSize      int
	StartupRehydrationEnabled bool
	MessageTimeout            time.Duration

	// Prefetch settings
	PrefetchConcurrency int

	// Monitoring
	MetricsInterval time.Duration
	HealthCheckPort int
}

// NewConfigFromEnv creates a new Config from environment variables
func NewConfigFromEnv() (*Config, error) {
	cfg := &Config{
		ProcessingConcurrency:     10,
		RehydrationBatchSize:      500,
		StartupRehydrationEnabled: false,
		MessageTimeout:            30 * time.Second,
		PrefetchConcurrency:       4,
		MetricsInterval:           30 * time.Second,
		HealthCheckPort:           8081,
	}

	var err error
	ints := []struct {
		env string
		dst *int
	}{
		{"WORKER_PROCESSING_CONCURRENCY", &cfg.ProcessingConcurrency},
		{"WORKER_REHYDRATION_BATCH_SIZE", &cfg.RehydrationBatchSize},
		{"WORKER_PREFETCH_CONCURRENCY", &cfg.PrefetchConcurrency},
		{"WORKER_HEALTH_PORT", &cfg.HealthCheckPort},
	}
	for _, v := range ints {
		if *v.dst, err = strconv.Atoi(getEnvOrDefault(v.env, strconv.Itoa(*v.dst))); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", v.env, err)
		}
	}

	if cfg.MessageTimeout, err = time.ParseDuration(getEnvOrDefault("WORKER_MESSAGE_TIMEOUT", cfg.MessageTimeout.String())); err != nil {
		return nil, fmt.Errorf("invalid WORKER_MESSAGE_TIMEOUT: %w", err)
	}
	if cfg.MetricsInterval, err = time.ParseDuration(getEnvOrDefault("WORKER_METRICS_INTERVAL", cfg.MetricsInterval.String())); err != nil {
		return nil, fmt.Errorf("invalid WORKER_METRICS_INTERVAL: %w", err)
	}
	if cfg.StartupRehydrationEnabled, err = strconv.ParseBool(getEnvOrDefault("WORKER_STARTUP_REHYDRATION", "false")); err != nil {
		return nil, fmt.Errorf("invalid WORKER_STARTUP_REHYDRATION: %w", err)
	}

	if cfg.ProcessingConcurrency <= 0 {
		return nil, fmt.Errorf("WORKER_PROCESSING_CONCURRENCY must be positive")
	}
	if cfg.RehydrationBatchSize <= 0 {
		return nil, fmt.Errorf("WORKER_REHYDRATION_BATCH_SIZE must be positive")
	}

	cfg.WorkerID = getEnvOrDefault("WORKER_ID", generateWorkerID())
	cfg.WorkerName = getEnvOrDefault("WORKER_NAME", "pokenest-worker-"+cfg.WorkerID)
	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func generateWorkerID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d", hostname, time.Now().Unix())
}
