package telemetry

import (
	"time"

	"github.com/birbparty/pokenest/sdk"
	"github.com/sirupsen/logrus"
)

// SDKObserver exports SDK events as Prometheus metrics and logs retries
// and circuit breaker transitions.
type SDKObserver struct {
	sdk.NoopObserver
	log *logrus.Entry
}

// NewSDKObserver returns an observer logging through log. A nil log uses
// the global logger.
func NewSDKObserver(log *logrus.Entry) *SDKObserver {
	if log == nil {
		log = Component("sdk")
	}
	return &SDKObserver{log: log}
}

var _ sdk.Observer = (*SDKObserver)(nil)

// OnRequestEnd records the outcome of an upstream request.
func (o *SDKObserver) OnRequestEnd(method, path string, duration time.Duration, err error) {
	endpoint := endpointLabel(path)
	upstreamRequestsTotal.WithLabelValues(endpoint, outcome(err)).Inc()
	upstreamRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// OnRetryAttempt counts a retry.
func (o *SDKObserver) OnRetryAttempt(method, path string, attempt int, delay time.Duration, err error) {
	upstreamRetriesTotal.WithLabelValues(endpointLabel(path)).Inc()
	o.log.WithFields(logrus.Fields{
		"method":  method,
		"path":    path,
		"attempt": attempt,
		"delay":   delay.String(),
	}).WithError(err).Debug("Retrying upstream request")
}

// OnCircuitBreakerStateChange tracks the breaker state.
func (o *SDKObserver) OnCircuitBreakerStateChange(name string, oldState, newState sdk.CircuitState) {
	circuitBreakerState.WithLabelValues(name).Set(breakerGauge(newState))
	entry := o.log.WithFields(logrus.Fields{
		"breaker": name,
		"from":    oldState.String(),
		"to":      newState.String(),
	})
	if newState == sdk.CircuitOpen {
		entry.Warn("Upstream circuit breaker opened")
		return
	}
	entry.Info("Upstream circuit breaker state changed")
}

// OnCacheHit counts an in-process cache hit.
func (o *SDKObserver) OnCacheHit(key string) {
	sdkCacheTotal.WithLabelValues("hit").Inc()
}

// OnCacheMiss counts an in-process cache miss.
func (o *SDKObserver) OnCacheMiss(key string) {
	sdkCacheTotal.WithLabelValues("miss").Inc()
}

// OnExpansion records an expansion call.
func (o *SDKObserver) OnExpansion(stats sdk.ExpansionStats) {
	mode := "sequential"
	if stats.Concurrent {
		mode = "concurrent"
	}
	status := "success"
	if stats.Err != nil {
		status = "error"
	}
	expansionsTotal.WithLabelValues(mode, status).Inc()
	expansionFetches.WithLabelValues(mode).Add(float64(stats.Fetched))
	expansionDuration.WithLabelValues(mode).Observe(stats.Duration.Seconds())
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case sdk.IsNotFound(err):
		return "not_found"
	case sdk.IsRetryable(err):
		return "unavailable"
	default:
		return "error"
	}
}

func breakerGauge(s sdk.CircuitState) float64 {
	switch s {
	case sdk.CircuitHalfOpen:
		return 1
	case sdk.CircuitOpen:
		return 2
	default:
		return 0
	}
}
