package telemetry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const namespace = "pokenest"

var (
	// Gateway
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests served by the gateway",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of gateway HTTP requests in seconds",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"method", "route"})

	// Resource lookups: redis, postgres, upstream
	lookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "lookups_total",
		Help:      "Resource lookups by storage tier and result",
	}, []string{"tier", "result"})

	lookupDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "lookup_duration_seconds",
		Help:      "Duration of resource lookups per storage tier",
		Buckets:   prometheus.DefBuckets,
	}, []string{"tier"})

	// Upstream PokeAPI, fed by the SDK observer
	upstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upstream_requests_total",
		Help:      "Requests sent to the upstream API",
	}, []string{"endpoint", "outcome"})

	upstreamRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "upstream_request_duration_seconds",
		Help:      "Duration of upstream requests including retries",
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"endpoint"})

	upstreamRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upstream_retries_total",
		Help:      "Retries of upstream requests",
	}, []string{"endpoint"})

	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "circuit_breaker_state",
		Help:      "Upstream circuit breaker state (0=closed, 1=half-open, 2=open)",
	}, []string{"name"})

	sdkCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sdk_cache_total",
		Help:      "In-process response cache lookups",
	}, []string{"result"})

	expansionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "expansions_total",
		Help:      "Reference expansions by mode and status",
	}, []string{"mode", "status"})

	expansionFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "expansion_fetches_total",
		Help:      "Distinct URLs fetched while expanding references",
	}, []string{"mode"})

	expansionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "expansion_duration_seconds",
		Help:      "Duration of reference expansions",
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	}, []string{"mode"})

	// Queue and workers
	messagesProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_processed_total",
		Help:      "Total number of queue messages processed",
	}, []string{"type", "status"})

	messageProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "message_processing_duration_seconds",
		Help:      "Duration of queue message processing in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"type"})

	batchSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "batch_size",
		Help:      "Size of processing batches",
		Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	}, []string{"type"})

	dlqMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dlq_messages_total",
		Help:      "Total number of messages sent to the dead letter queue",
	}, []string{"reason"})

	asyncQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "async_queue_depth",
		Help:      "Pending writes in the gateway's async writer",
	})

	asyncWriteErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "async_write_errors_total",
		Help:      "Async writes that failed or were dropped",
	}, []string{"reason"})

	// Retention sweeper
	sweptResourcesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "swept_resources_total",
		Help:      "Resources handled by the retention sweeper",
	}, []string{"action"})

	sweepRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sweep_runs_total",
		Help:      "Retention sweeper runs by status",
	}, []string{"status"})

	serviceUp = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "service_up",
		Help:      "Whether the service is up (1) or down (0)",
	})
)

// InitMetrics marks the service as up and, when enabled, starts the OTLP
// metrics exporter.
func InitMetrics(cfg *Config) error {
	serviceUp.Set(1)

	if !cfg.EnableMetrics {
		return nil
	}

	ctx := context.Background()
	res, err := newResource(ctx, cfg)
	if err != nil {
		return err
	}

	exporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return fmt.Errorf("failed to create metrics exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.MetricsInterval))),
	)
	otel.SetMeterProvider(provider)
	return nil
}

// closeMetrics flushes the OTLP meter provider if one was installed.
func closeMetrics(ctx context.Context) error {
	if mp, ok := otel.GetMeterProvider().(*sdkmetric.MeterProvider); ok {
		return mp.Shutdown(ctx)
	}
	return nil
}

// endpointLabel reduces an API path to its first segment to keep label
// cardinality bounded: "/pokemon/pikachu" -> "pokemon".
func endpointLabel(path string) string {
	path = strings.Trim(path, "/")
	if i := strings.IndexAny(path, "/?"); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "root"
	}
	return path
}

// RecordHTTPRequest records a gateway request
func RecordHTTPRequest(method, route, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordLookup records one lookup against a storage tier. result is hit, miss or error.
func RecordLookup(tier, result string, duration time.Duration) {
	lookupsTotal.WithLabelValues(tier, result).Inc()
	lookupDuration.WithLabelValues(tier).Observe(duration.Seconds())
}

// RecordMessageProcessed records a processed message
func RecordMessageProcessed(msgType, status string, duration time.Duration) {
	messagesProcessedTotal.WithLabelValues(msgType, status).Inc()
	messageProcessingDuration.WithLabelValues(msgType).Observe(duration.Seconds())
}

// RecordBatchSize records the size of a processing batch
func RecordBatchSize(batchType string, size int) {
	batchSize.WithLabelValues(batchType).Observe(float64(size))
}

// RecordDLQMessage records a message sent to DLQ
func RecordDLQMessage(reason string) {
	dlqMessagesTotal.WithLabelValues(reason).Inc()
}

// UpdateAsyncQueueDepth sets the number of pending async writes.
func UpdateAsyncQueueDepth(depth int) {
	asyncQueueDepth.Set(float64(depth))
}

// RecordAsyncWriteError counts a failed or dropped async write.
func RecordAsyncWriteError(reason string) {
	asyncWriteErrors.WithLabelValues(reason).Inc()
}

// RecordSwept counts resources archived or deleted by the sweeper.
func RecordSwept(action string, n int) {
	if n > 0 {
		sweptResourcesTotal.WithLabelValues(action).Add(float64(n))
	}
}

// RecordSweepRun counts one sweeper run.
func RecordSweepRun(status string) {
	sweepRunsTotal.WithLabelValues(status).Inc()
}
