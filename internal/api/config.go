package api

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the API configuration
type Config struct {
	// Server configuration
	Host string
	Port int

	// Async writer configuration
	WriteQueueSize int
	WriteWorkers   int
	WriteRetries   int

	// API configuration
	APIKey          string
	RateLimit       int
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	BodyLimit       int

	// Upstream configuration
	PokeAPIURL        string
	UpstreamTimeout   time.Duration
	UpstreamRetries   int
	ExpandMaxRequests int
	ExpandMaxDepth    int

	// Optional tiers
	PostgresEnabled bool
	QueueEnabled    bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Host:              getEnvOrDefault("HOST", "0.0.0.0"),
		Port:              8080,
		WriteQueueSize:    10000,
		WriteWorkers:      5,
		WriteRetries:      3,
		APIKey:            os.Getenv("API_KEY"),
		RateLimit:         600,
		RequestTimeout:    30 * time.Second,
		ShutdownTimeout:   30 * time.Second,
		BodyLimit:         1 << 20,
		PokeAPIURL:        getEnvOrDefault("POKEAPI_URL", "https://pokeapi.co/api/v2"),
		UpstreamTimeout:   10 * time.Second,
		UpstreamRetries:   2,
		ExpandMaxRequests: 200,
		ExpandMaxDepth:    3,
		PostgresEnabled:   getEnvBool("POSTGRES_ENABLED", true),
		QueueEnabled:      getEnvBool("QUEUE_ENABLED", true),
	}

	var err error
	ints := []struct {
		env string
		dst *int
	}{
		{"PORT", &cfg.Port},
		{"WRITE_QUEUE_SIZE", &cfg.WriteQueueSize},
		{"WRITE_WORKERS", &cfg.WriteWorkers},
		{"WRITE_RETRIES", &cfg.WriteRetries},
		{"RATE_LIMIT_PER_MINUTE", &cfg.RateLimit},
		{"BODY_LIMIT", &cfg.BodyLimit},
		{"UPSTREAM_RETRIES", &cfg.UpstreamRetries},
		{"EXPAND_MAX_REQUESTS", &cfg.ExpandMaxRequests},
		{"EXPAND_MAX_DEPTH", &cfg.ExpandMaxDepth},
	}
	for _, v := range ints {
		if *v.dst, err = strconv.Atoi(getEnvOrDefault(v.env, strconv.Itoa(*v.dst))); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", v.env, err)
		}
	}

	durations := []struct {
		env string
		dst *time.Duration
	}{
		{"REQUEST_TIMEOUT", &cfg.RequestTimeout},
		{"SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout},
		{"UPSTREAM_TIMEOUT", &cfg.UpstreamTimeout},
	}
	for _, v := range durations {
		if *v.dst, err = parseSeconds(getEnvOrDefault(v.env, v.dst.String())); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", v.env, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that would otherwise fail at runtime.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT: %d", c.Port)
	}
	if c.WriteQueueSize <= 0 {
		return fmt.Errorf("WRITE_QUEUE_SIZE must be positive")
	}
	if c.WriteWorkers < 0 {
		return fmt.Errorf("WRITE_WORKERS must not be negative")
	}
	if c.ExpandMaxDepth <= 0 || c.ExpandMaxRequests <= 0 {
		return fmt.Errorf("EXPAND_MAX_DEPTH and EXPAND_MAX_REQUESTS must be positive")
	}
	if !strings.HasPrefix(c.PokeAPIURL, "http://") && !strings.HasPrefix(c.PokeAPIURL, "https://") {
		return fmt.Errorf("invalid POKEAPI_URL: %q", c.PokeAPIURL)
	}
	return nil
}

// Address returns the listen address.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// parseSeconds accepts a duration string or a bare number of seconds.
func parseSeconds(s string) (time.Duration, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(s)
}
