package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	asyncQueueCapacity = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pokenest",
		Name:      "async_queue_capacity",
		Help:      "Total capacity of the async write queue",
	})

	// Which tier answered a resource request
	responsesBySource = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pokenest",
		Name:      "gateway_responses_total",
		Help:      "Resource responses by the tier that served them",
	}, []string{"source", "expanded"})

	rehydrationsRequested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pokenest",
		Name:      "gateway_rehydrations_total",
		Help:      "Rehydration messages published after a PostgreSQL hit",
	}, []string{"result"})

	prefetchRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pokenest",
		Name:      "gateway_prefetch_requests_total",
		Help:      "Prefetch jobs accepted by the gateway",
	}, []string{"endpoint", "result"})

	cacheInvalidations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pokenest",
		Name:      "gateway_cache_keys_invalidated_total",
		Help:      "Cache keys removed through the invalidation endpoint",
	})

	healthStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pokenest",
		Name:      "health_status",
		Help:      "Health status (1=healthy, 0.5=degraded, 0=unhealthy)",
	})
)

func recordResponse(source string, expanded bool) {
	e := "false"
	if expanded {
		e = "true"
	}
	responsesBySource.WithLabelValues(source, e).Inc()
}

func recordRehydration(result string) {
	rehydrationsRequested.WithLabelValues(result).Inc()
}

func recordPrefetch(endpoint, result string) {
	prefetchRequests.WithLabelValues(endpoint, result).Inc()
}

// UpdateHealthMetric updates the health status metric
func UpdateHealthMetric(status string) {
	switch status {
	case "healthy":
		healthStatus.Set(1)
	case "degraded":
		healthStatus.Set(0.5)
	default:
		healthStatus.Set(0)
	}
}
