package sdk

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/birbparty/pokenest/expand"
	"github.com/sirupsen/logrus"
)

// DefaultBaseURL is the public PokeAPI v2 endpoint.
const DefaultBaseURL = "https://pokeapi.co/api/v2"

// Config holds the configuration for the PokeAPI client.
// All fields are optional and have sensible defaults.
//
// Configuration can be built using the fluent builder pattern:
//
//	config := sdk.DefaultConfig().
//	    WithBaseURL("http://localhost:8000/api/v2").
//	    WithTimeout(5 * time.Second).
//	    WithRetries(3).
//	    WithCacheTTL(5 * time.Minute)
//
//	client, err := sdk.NewClient(config)
type Config struct {
	// BaseURL is the PokeAPI root, without a trailing slash.
	// Default: "https://pokeapi.co/api/v2"
	BaseURL string

	// Timeout bounds a single HTTP attempt, body included.
	// Default: 10s
	Timeout time.Duration

	// RetryConfig holds retry-related settings.
	RetryConfig RetryConfig

	// TransportConfig holds HTTP transport settings.
	TransportConfig TransportConfig

	// CacheConfig holds response cache settings.
	CacheConfig CacheConfig

	// CircuitBreakerConfig holds circuit breaker settings.
	CircuitBreakerConfig CircuitBreakerConfig

	// ExpandDefaults are the options used by Client.Expand and
	// Client.ExpandConcurrent when the caller passes none.
	ExpandDefaults expand.Options

	// Headers are custom headers to include in all requests.
	Headers map[string]string

	// UserAgent is sent with every request.
	UserAgent string

	// RetryStrategy overrides the exponential backoff built from RetryConfig.
	RetryStrategy RetryStrategy

	// Observer for monitoring operations. If nil, NoopObserver is used.
	Observer Observer

	// Logger receives debug logs about retries and breaker transitions.
	// If nil, logging is disabled.
	Logger *logrus.Entry
}

// RetryConfig holds retry settings. Only transport failures and 5xx
// responses are retried.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts.
	// Set to 0 to disable retries.
	// Default: 2
	MaxRetries int

	// InitialInterval is the delay before the first retry.
	// Default: 300ms
	InitialInterval time.Duration

	// MaxInterval caps retry delays.
	// Default: 5s
	MaxInterval time.Duration

	// Multiplier is the exponential backoff multiplier.
	// Default: 2.0
	Multiplier float64

	// Jitter randomizes each delay by up to this fraction.
	// Default: 0
	Jitter float64
}

// TransportConfig holds HTTP transport configuration for connection pooling.
type TransportConfig struct {
	// MaxIdleConns controls the maximum number of idle connections
	// across all hosts. Zero means no limit.
	// Default: 100
	MaxIdleConns int

	// MaxConnsPerHost controls the maximum connections per host.
	// Default: 16
	MaxConnsPerHost int

	// IdleConnTimeout is the maximum time an idle connection stays open.
	// Default: 90s
	IdleConnTimeout time.Duration
}

// CacheConfig configures the in-memory response cache.
type CacheConfig struct {
	// Enabled turns the cache on. Default: true
	Enabled bool

	// MaxEntries bounds the number of cached responses.
	// Default: 1024
	MaxEntries int

	// TTL is how long a response stays fresh.
	// Default: 60s
	TTL time.Duration
}

// DefaultConfig returns a Config with sensible defaults:
//   - Base URL: https://pokeapi.co/api/v2
//   - Timeout: 10 seconds
//   - Retries: 2 with exponential backoff from 300ms
//   - Cache: 1024 entries for 60 seconds
//   - Expansion: depth 1, 200 requests, 6 concurrent fetches
func DefaultConfig() *Config {
	return &Config{
		BaseURL: DefaultBaseURL,
		Timeout: 10 * time.Second,
		RetryConfig: RetryConfig{
			MaxRetries:      2,
			InitialInterval: 300 * time.Millisecond,
			MaxInterval:     5 * time.Second,
			Multiplier:      2.0,
		},
		TransportConfig: TransportConfig{
			MaxIdleConns:    100,
			MaxConnsPerHost: 16,
			IdleConnTimeout: 90 * time.Second,
		},
		CacheConfig: CacheConfig{
			Enabled:    true,
			MaxEntries: 1024,
			TTL:        60 * time.Second,
		},
		CircuitBreakerConfig: DefaultCircuitBreakerConfig(),
		ExpandDefaults:       expand.DefaultOptions(),
		Headers:              make(map[string]string),
		UserAgent:            "pokenest-go-sdk/1.0",
		Observer:             &NoopObserver{},
	}
}

// WithBaseURL sets the PokeAPI root.
//
// Example:
//
//	config := sdk.DefaultConfig().
//	    WithBaseURL("http://localhost:8000/api/v2")
func (c *Config) WithBaseURL(url string) *Config {
	c.BaseURL = url
	return c
}

// WithTimeout sets the per-attempt request timeout.
func (c *Config) WithTimeout(timeout time.Duration) *Config {
	c.Timeout = timeout
	return c
}

// WithRetries sets the maximum number of retry attempts for failed requests.
// Set to 0 to disable automatic retries.
func (c *Config) WithRetries(maxRetries int) *Config {
	c.RetryConfig.MaxRetries = maxRetries
	return c
}

// WithBackoff sets the retry backoff base delay and factor.
func (c *Config) WithBackoff(initial time.Duration, multiplier float64) *Config {
	c.RetryConfig.InitialInterval = initial
	c.RetryConfig.Multiplier = multiplier
	return c
}

// WithHeader adds a custom header to be sent with all requests.
func (c *Config) WithHeader(key, value string) *Config {
	if c.Headers == nil {
		c.Headers = make(map[string]string)
	}
	c.Headers[key] = value
	return c
}

// WithUserAgent sets the User-Agent header.
func (c *Config) WithUserAgent(ua string) *Config {
	c.UserAgent = ua
	return c
}

// WithCircuitBreaker configures circuit breaker protection.
//
// Example:
//
//	config := sdk.DefaultConfig().
//	    WithCircuitBreaker(sdk.CircuitBreakerConfig{
//	        Enabled:          true,
//	        FailureThreshold: 10,
//	        Timeout:          time.Minute,
//	    })
func (c *Config) WithCircuitBreaker(config CircuitBreakerConfig) *Config {
	c.CircuitBreakerConfig = config
	return c
}

// WithoutCircuitBreaker disables the circuit breaker.
func (c *Config) WithoutCircuitBreaker() *Config {
	c.CircuitBreakerConfig.Enabled = false
	return c
}

// WithCache configures the response cache.
func (c *Config) WithCache(config CacheConfig) *Config {
	c.CacheConfig = config
	return c
}

// WithCacheTTL sets how long cached responses stay fresh.
func (c *Config) WithCacheTTL(ttl time.Duration) *Config {
	c.CacheConfig.TTL = ttl
	return c
}

// WithoutCache disables the response cache.
func (c *Config) WithoutCache() *Config {
	c.CacheConfig.Enabled = false
	return c
}

// WithExpandDefaults sets the options used when expansion is called
// without explicit options.
func (c *Config) WithExpandDefaults(opts expand.Options) *Config {
	c.ExpandDefaults = opts
	return c
}

// WithRetryStrategy sets a custom retry strategy.
//
// Example:
//
//	config := sdk.DefaultConfig().
//	    WithRetryStrategy(&sdk.ConstantBackoffStrategy{
//	        Interval: time.Second,
//	        Budget:   sdk.DefaultRetryBudget(),
//	    })
func (c *Config) WithRetryStrategy(strategy RetryStrategy) *Config {
	c.RetryStrategy = strategy
	return c
}

// WithObserver sets a custom observer for monitoring SDK operations.
func (c *Config) WithObserver(observer Observer) *Config {
	c.Observer = observer
	return c
}

// WithLogger sets the logger used for debug output.
func (c *Config) WithLogger(logger *logrus.Entry) *Config {
	c.Logger = logger
	return c
}

// Validate checks the configuration and fills defaults for missing values.
// It is called automatically by NewClient.
func (c *Config) Validate() error {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base URL cannot be empty", ErrInvalidConfig)
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("%w: invalid base URL: %v", ErrInvalidConfig, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: base URL must have a scheme and host", ErrInvalidConfig)
	}

	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.RetryConfig.MaxRetries < 0 {
		c.RetryConfig.MaxRetries = 0
	}
	if c.RetryConfig.InitialInterval <= 0 {
		c.RetryConfig.InitialInterval = 300 * time.Millisecond
	}
	if c.RetryConfig.MaxInterval <= 0 {
		c.RetryConfig.MaxInterval = 5 * time.Second
	}
	if c.RetryConfig.Multiplier < 1 {
		c.RetryConfig.Multiplier = 2.0
	}
	if c.RetryConfig.Jitter < 0 || c.RetryConfig.Jitter > 1 {
		return fmt.Errorf("%w: jitter must be between 0 and 1", ErrInvalidConfig)
	}

	if c.CacheConfig.MaxEntries <= 0 {
		c.CacheConfig.MaxEntries = 1024
	}
	if c.CacheConfig.TTL <= 0 {
		c.CacheConfig.TTL = 60 * time.Second
	}

	if c.CircuitBreakerConfig.FailureThreshold <= 0 {
		c.CircuitBreakerConfig.FailureThreshold = 5
	}
	if c.CircuitBreakerConfig.HalfOpenRequests <= 0 {
		c.CircuitBreakerConfig.HalfOpenRequests = 1
	}
	if c.CircuitBreakerConfig.Timeout <= 0 {
		c.CircuitBreakerConfig.Timeout = 30 * time.Second
	}

	if c.ExpandDefaults.Depth < 0 || c.ExpandDefaults.MaxRequests < 0 {
		return fmt.Errorf("%w: expansion depth and budget must not be negative", ErrInvalidConfig)
	}
	if c.ExpandDefaults.Concurrency <= 0 {
		c.ExpandDefaults.Concurrency = 6
	}

	if c.UserAgent == "" {
		c.UserAgent = "pokenest-go-sdk/1.0"
	}
	if c.Observer == nil {
		c.Observer = &NoopObserver{}
	}
	return nil
}
