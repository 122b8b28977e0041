package sdk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// httpTransport performs GET requests against PokeAPI with circuit breaking
// and retries. It knows nothing about caching.
type httpTransport struct {
	client   *http.Client
	config   *Config
	baseURL  *url.URL
	breaker  CircuitBreaker
	retry    *retryExecutor
	observer Observer
	logger   *logrus.Entry
}

// newHTTPTransport creates the transport for a validated config.
func newHTTPTransport(config *Config) (*httpTransport, error) {
	baseURL, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        config.TransportConfig.MaxIdleConns,
		MaxIdleConnsPerHost: config.TransportConfig.MaxConnsPerHost,
		MaxConnsPerHost:     config.TransportConfig.MaxConnsPerHost,
		IdleConnTimeout:     config.TransportConfig.IdleConnTimeout,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	t := &httpTransport{
		client: &http.Client{
			Transport: transport,
			Timeout:   config.Timeout,
		},
		config:   config,
		baseURL:  baseURL,
		observer: config.Observer,
		logger:   config.Logger,
	}

	t.breaker = NewCircuitBreaker(baseURL.Host, config.CircuitBreakerConfig, func(from, to CircuitState) {
		t.observer.OnCircuitBreakerStateChange(baseURL.Host, from, to)
		if t.logger != nil {
			t.logger.WithFields(logrus.Fields{
				"from": from.String(),
				"to":   to.String(),
			}).Warn("PokeAPI circuit breaker changed state")
		}
	})

	strategy := config.RetryStrategy
	if strategy == nil {
		strategy = NewExponentialBackoff(config.RetryConfig)
	}
	t.retry = newRetryExecutor(strategy)

	return t, nil
}

// get fetches fullURL and returns the body of a 2xx response.
func (t *httpTransport) get(ctx context.Context, fullURL string) ([]byte, error) {
	path := t.pathOf(fullURL)
	t.observer.OnRequestStart(http.MethodGet, path)
	start := time.Now()

	var body []byte
	var retries int
	err := t.breaker.Execute(func() error {
		var err error
		exec := *t.retry
		exec.onRetry = func(attempt int, err error, delay time.Duration) {
			t.observer.OnRetryAttempt(http.MethodGet, path, attempt, delay, err)
			if t.logger != nil {
				t.logger.WithFields(logrus.Fields{
					"url":     fullURL,
					"attempt": attempt,
					"delay":   delay.String(),
				}).WithError(err).Debug("Retrying PokeAPI request")
			}
		}
		retries, err = exec.Execute(ctx, func(int) error {
			var attemptErr error
			body, attemptErr = t.attempt(ctx, fullURL)
			return attemptErr
		})
		return err
	})

	duration := time.Since(start)
	var sdkErr *Error
	if errors.As(err, &sdkErr) {
		sdkErr.WithContext(&ErrorContext{
			URL:        fullURL,
			Method:     http.MethodGet,
			Duration:   duration,
			RetryCount: retries,
		})
	}
	t.observer.OnRequestEnd(http.MethodGet, path, duration, err)

	if err != nil {
		return nil, err
	}
	return body, nil
}

// attempt performs a single HTTP request.
func (t *httpTransport) attempt(ctx context.Context, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, invalidArgument("failed to create request: %v", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", t.config.UserAgent)
	for key, value := range t.config.Headers {
		req.Header.Set(key, value)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, NewStatusError(resp.StatusCode, body)
	}
	return body, nil
}

// classifyTransportError turns a client error into a timeout or network Error.
func classifyTransportError(ctx context.Context, err error) *Error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return (&TimeoutError{Op: "request", Err: ctxErr}).ToError()
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return (&TimeoutError{Op: "request", Err: err}).ToError()
	}
	return (&NetworkError{Op: "request", Err: err}).ToError()
}

// pathOf returns the part of fullURL below the base URL, for metrics labels.
func (t *httpTransport) pathOf(fullURL string) string {
	u, err := url.Parse(fullURL)
	if err != nil {
		return fullURL
	}
	path := strings.TrimPrefix(u.Path, t.baseURL.Path)
	if path == "" {
		return "/"
	}
	return path
}

// close releases idle connections.
func (t *httpTransport) close() error {
	t.client.CloseIdleConnections()
	return nil
}

// buildPath builds a URL path with escaped path parameters. Placeholders
// {0}, {1}, ... are replaced in order.
//
// Example:
//
//	path := buildPath("/pokemon/{0}/", "mr-mime")
//	// Result: "/pokemon/mr-mime/"
func buildPath(pattern string, args ...string) string {
	path := pattern
	for i, arg := range args {
		placeholder := fmt.Sprintf("{%d}", i)
		path = strings.Replace(path, placeholder, url.PathEscape(arg), 1)
	}
	return path
}
