package cleanup

import (
	"os"
	"strconv"
	"time"
)

// Config controls the retention sweeper
type Config struct {
	// Retention is how long a stored resource lives after its last write.
	Retention  time.Duration
	Interval   time.Duration
	BatchSize  int
	MaxBatches int
	DryRun     bool
	// Archive uploads each batch before deleting it.
	Archive bool
}

// LoadConfig loads sweeper configuration from environment variables
func LoadConfig() Config {
	return Config{
		Retention:  getEnvDuration("SWEEP_RETENTION", 720*time.Hour),
		Interval:   getEnvDuration("SWEEP_INTERVAL", time.Hour),
		BatchSize:  getEnvInt("SWEEP_BATCH_SIZE", 500),
		MaxBatches: getEnvInt("SWEEP_MAX_BATCHES", 20),
		DryRun:     getEnvBool("SWEEP_DRY_RUN", false),
		Archive:    getEnvBool("SWEEP_ARCHIVE", true),
	}
}

func (c Config) withDefaults() Config {
	if c.Retention <= 0 {
		c.Retention = 720 * time.Hour
	}
	if c.Interval <= 0 {
		c.Interval = time.Hour
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 500
	}
	if c.MaxBatches <= 0 {
		c.MaxBatches = 20
	}
	return c
}

// getEnvInt gets an integer value from environment or returns default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvBool gets a boolean value from environment or returns default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration gets a duration value from environment or returns default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}
