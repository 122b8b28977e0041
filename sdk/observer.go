package sdk

import (
	"sync"
	"time"
)

// Observer receives notifications about SDK activity. Implementations must
// be safe for concurrent use; hooks run on the goroutine doing the work.
//
// Example:
//
//	type LogObserver struct{ sdk.NoopObserver }
//
//	func (o *LogObserver) OnRequestEnd(method, path string, d time.Duration, err error) {
//	    log.Printf("%s %s took %v (err=%v)", method, path, d, err)
//	}
//
//	client, _ := sdk.NewClient(sdk.DefaultConfig().WithObserver(&LogObserver{}))
type Observer interface {
	// OnRequestStart is called before a request is sent upstream.
	OnRequestStart(method, path string)

	// OnRequestEnd is called when a request completes, including retries.
	OnRequestEnd(method, path string, duration time.Duration, err error)

	// OnRetryAttempt is called before each retry.
	OnRetryAttempt(method, path string, attempt int, delay time.Duration, err error)

	// OnCircuitBreakerStateChange is called when the breaker changes state.
	OnCircuitBreakerStateChange(name string, oldState, newState CircuitState)

	// OnCacheHit is called when a response is served from the local cache.
	OnCacheHit(key string)

	// OnCacheMiss is called when a cacheable response has to be fetched.
	OnCacheMiss(key string)

	// OnExpansion is called after each expansion call.
	OnExpansion(stats ExpansionStats)
}

// ExpansionStats summarizes one expansion call.
type ExpansionStats struct {
	// Fetched is the number of distinct URLs fetched.
	Fetched int
	// Reused is the number of references filled from earlier fetches.
	Reused int
	// Concurrent reports whether the concurrent mode was used.
	Concurrent bool
	// Duration is the wall time of the call.
	Duration time.Duration
	// Err is the error the call returned, if any.
	Err error
}

// NoopObserver is a no-op implementation of Observer.
// Embed it to implement only the hooks you need.
type NoopObserver struct{}

func (n *NoopObserver) OnRequestStart(method, path string) {}

func (n *NoopObserver) OnRequestEnd(method, path string, duration time.Duration, err error) {}

func (n *NoopObserver) OnRetryAttempt(method, path string, attempt int, delay time.Duration, err error) {
}

func (n *NoopObserver) OnCircuitBreakerStateChange(name string, oldState, newState CircuitState) {
}

func (n *NoopObserver) OnCacheHit(key string) {}

func (n *NoopObserver) OnCacheMiss(key string) {}

func (n *NoopObserver) OnExpansion(stats ExpansionStats) {}

// MetricsCollector is an Observer that keeps counters in memory.
//
// Example:
//
//	metrics := sdk.NewMetricsCollector()
//	client, _ := sdk.NewClient(sdk.DefaultConfig().WithObserver(metrics))
//	// ... use client ...
//	fmt.Println(metrics.GetMetrics()["cache_hit_rate"])
type MetricsCollector struct {
	mu                  sync.RWMutex
	requestCount        map[string]int64
	latencies           map[string][]time.Duration
	errorCount          map[string]int64
	retryCount          map[string]int64
	circuitStateChanges map[string]int64
	cacheHitCount       int64
	cacheMissCount      int64
	expansions          int64
	expansionFetches    int64
	expansionReuses     int64
}

// NewMetricsCollector creates an empty collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		requestCount:        make(map[string]int64),
		latencies:           make(map[string][]time.Duration),
		errorCount:          make(map[string]int64),
		retryCount:          make(map[string]int64),
		circuitStateChanges: make(map[string]int64),
	}
}

func (m *MetricsCollector) OnRequestStart(method, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[method+" "+path]++
}

func (m *MetricsCollector) OnRequestEnd(method, path string, duration time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := method + " " + path
	m.latencies[key] = append(m.latencies[key], duration)
	if err != nil {
		m.errorCount[key]++
	}
}

func (m *MetricsCollector) OnRetryAttempt(method, path string, attempt int, delay time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retryCount[method+" "+path]++
}

func (m *MetricsCollector) OnCircuitBreakerStateChange(name string, oldState, newState CircuitState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.circuitStateChanges[name]++
}

func (m *MetricsCollector) OnCacheHit(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cacheHitCount++
}

func (m *MetricsCollector) OnCacheMiss(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cacheMissCount++
}

func (m *MetricsCollector) OnExpansion(stats ExpansionStats) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expansions++
	m.expansionFetches += int64(stats.Fetched)
	m.expansionReuses += int64(stats.Reused)
}

// GetMetrics returns a snapshot of the collected values.
func (m *MetricsCollector) GetMetrics() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	requestsCopy := make(map[string]int64, len(m.requestCount))
	for k, v := range m.requestCount {
		requestsCopy[k] = v
	}

	latenciesCopy := make(map[string][]time.Duration, len(m.latencies))
	for k, v := range m.latencies {
		latenciesCopy[k] = append([]time.Duration(nil), v...)
	}

	errorsCopy := make(map[string]int64, len(m.errorCount))
	for k, v := range m.errorCount {
		errorsCopy[k] = v
	}

	retriesCopy := make(map[string]int64, len(m.retryCount))
	for k, v := range m.retryCount {
		retriesCopy[k] = v
	}

	circuitChangesCopy := make(map[string]int64, len(m.circuitStateChanges))
	for k, v := range m.circuitStateChanges {
		circuitChangesCopy[k] = v
	}

	cacheTotal := m.cacheHitCount + m.cacheMissCount
	cacheHitRate := float64(0)
	if cacheTotal > 0 {
		cacheHitRate = float64(m.cacheHitCount) / float64(cacheTotal)
	}

	return map[string]interface{}{
		"requests":                      requestsCopy,
		"latencies":                     latenciesCopy,
		"errors":                        errorsCopy,
		"retries":                       retriesCopy,
		"circuit_breaker_state_changes": circuitChangesCopy,
		"cache_hits":                    m.cacheHitCount,
		"cache_misses":                  m.cacheMissCount,
		"cache_hit_rate":                cacheHitRate,
		"expansions":                    m.expansions,
		"expansion_fetches":             m.expansionFetches,
		"expansion_reuses":              m.expansionReuses,
	}
}

// CompositeObserver fans notifications out to several observers. A panicking
// observer does not prevent the others from being notified.
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver combines observers in call order.
func NewCompositeObserver(observers ...Observer) Observer {
	return &CompositeObserver{observers: observers}
}

func (c *CompositeObserver) each(fn func(Observer)) {
	for _, obs := range c.observers {
		func() {
			defer func() {
				_ = recover()
			}()
			fn(obs)
		}()
	}
}

func (c *CompositeObserver) OnRequestStart(method, path string) {
	c.each(func(o Observer) { o.OnRequestStart(method, path) })
}

func (c *CompositeObserver) OnRequestEnd(method, path string, duration time.Duration, err error) {
	c.each(func(o Observer) { o.OnRequestEnd(method, path, duration, err) })
}

func (c *CompositeObserver) OnRetryAttempt(method, path string, attempt int, delay time.Duration, err error) {
	c.each(func(o Observer) { o.OnRetryAttempt(method, path, attempt, delay, err) })
}

func (c *CompositeObserver) OnCircuitBreakerStateChange(name string, oldState, newState CircuitState) {
	c.each(func(o Observer) { o.OnCircuitBreakerStateChange(name, oldState, newState) })
}

func (c *CompositeObserver) OnCacheHit(key string) {
	c.each(func(o Observer) { o.OnCacheHit(key) })
}

func (c *CompositeObserver) OnCacheMiss(key string) {
	c.each(func(o Observer) { o.OnCacheMiss(key) })
}

func (c *CompositeObserver) OnExpansion(stats ExpansionStats) {
	c.each(func(o Observer) { o.OnExpansion(stats) })
}
