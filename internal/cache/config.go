package cache

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds cache configuration
type Config struct {
	// Redis connection settings
	Host     string
	Port     int
	Password string
	DB       int

	// Connection pool settings
	MaxRetries      int
	MinRetryBackoff time.Duration
	MaxRetryBackoff time.Duration
	DialTimeout     time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	PoolSize        int
	MinIdleConns    int
	MaxIdleTime     time.Duration

	// Namespace prefixes every key written by the service.
	Namespace string

	// DefaultTTL applies to raw resources, ExpandedTTL to expanded documents.
	DefaultTTL  time.Duration
	ExpandedTTL time.Duration
}

// NewConfigFromEnv reads the REDIS_* connection settings and the CACHE_*
// key settings. Durations accept Go syntax or plain seconds.
func NewConfigFromEnv() (*Config, error) {
	cfg := &Config{
		Host:            getEnvOrDefault("REDIS_HOST", "localhost"),
		Port:            6379,
		Password:        os.Getenv("REDIS_PASSWORD"),
		MaxRetries:      3,
		MinRetryBackoff: 8 * time.Millisecond,
		MaxRetryBackoff: 512 * time.Millisecond,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     3 * time.Second,
		WriteTimeout:    3 * time.Second,
		PoolSize:        50,
		MinIdleConns:    10,
		MaxIdleTime:     5 * time.Minute,
		Namespace:       getEnvOrDefault("CACHE_NAMESPACE", "pokenest"),
		// PokeAPI data changes rarely.
		DefaultTTL:  24 * time.Hour,
		ExpandedTTL: time.Hour,
	}

	var err error
	ints := []struct {
		env string
		dst *int
	}{
		{"REDIS_PORT", &cfg.Port},
		{"REDIS_DB", &cfg.DB},
		{"REDIS_POOL_SIZE", &cfg.PoolSize},
		{"REDIS_MIN_IDLE_CONNS", &cfg.MinIdleConns},
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
		{"CACHE_DEFAULT_TTL", &cfg.DefaultTTL},
		{"CACHE_EXPANDED_TTL", &cfg.ExpandedTTL},
	}
	for _, v := range durations {
		raw := os.Getenv(v.env)
		if raw == "" {
			continue
		}
		if *v.dst, err = parseDuration(raw); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", v.env, err)
		}
	}

	if cfg.PoolSize <= 0 {
		return nil, fmt.Errorf("REDIS_POOL_SIZE must be positive")
	}
	return cfg, nil
}

// Address returns the Redis server address
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration accepts Go durations ("90m") or plain seconds ("3600").
func parseDuration(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	if seconds, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}
	return 0, fmt.Errorf("invalid duration format: %s", s)
}
