package worker

import (
	"sync"
	"time"

	"github.com/birbparty/pokenest/internal/queue"
	"github.com/birbparty/pokenest/internal/telemetry"
)

// Metrics keeps the counters the worker's /health and /stats endpoints
// report. Every recording is mirrored to the Prometheus collectors.
type Metrics struct {
	mu sync.RWMutex

	succeeded map[queue.MessageType]int64
	failed    map[queue.MessageType]int64
	errors    map[string]int64

	batchesProcessed int64
	messagesInBatch  int64
	batchTime        time.Duration

	bulkRehydrated int64
	bulkErrors     int64

	startTime       time.Time
	lastProcessedAt time.Time
	isHealthy       bool
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		succeeded: make(map[queue.MessageType]int64),
		failed:    make(map[queue.MessageType]int64),
		errors:    make(map[string]int64),
		startTime: time.Now(),
		isHealthy: true,
	}
}

// RecordSuccess records a message that was handled and acked.
func (m *Metrics) RecordSuccess(t queue.MessageType, d time.Duration) {
	m.mu.Lock()
	m.succeeded[t]++
	m.lastProcessedAt = time.Now()
	m.mu.Unlock()

	telemetry.RecordMessageProcessed(string(t), "success", d)
}

// RecordFailure records a message that failed, with a short reason.
func (m *Metrics) RecordFailure(t queue.MessageType, reason string, d time.Duration) {
	m.mu.Lock()
	m.failed[t]++
	m.errors[reason]++
	m.mu.Unlock()

	telemetry.RecordMessageProcessed(string(t), "error", d)
}

// RecordBatch records one handled fetch batch.
func (m *Metrics) RecordBatch(t queue.MessageType, size int, d time.Duration) {
	m.mu.Lock()
	m.batchesProcessed++
	m.messagesInBatch += int64(size)
	m.batchTime += d
	m.mu.Unlock()

	telemetry.RecordBatchSize(string(t), size)
}

// RecordBulkRehydration records the result of a startup rehydration.
func (m *Metrics) RecordBulkRehydration(count, errors int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.bulkRehydrated += int64(count)
	m.bulkErrors += int64(errors)
}

// Stats is a snapshot of the worker counters.
type Stats struct {
	UptimeSeconds       float64          `json:"uptime_seconds"`
	MessagesSucceeded   map[string]int64 `json:"messages_succeeded"`
	MessagesFailed      map[string]int64 `json:"messages_failed"`
	ErrorCounts         map[string]int64 `json:"error_counts"`
	BatchesProcessed    int64            `json:"batches_processed"`
	AvgBatchSize        float64          `json:"avg_batch_size"`
	AvgBatchTimeMs      float64          `json:"avg_batch_time_ms"`
	BulkRehydrated      int64            `json:"bulk_rehydration_count"`
	BulkRehydrateErrors int64            `json:"bulk_rehydration_errors"`
	LastProcessedAgoMs  int64            `json:"last_processed_ago_ms"`
	Healthy             bool             `json:"is_healthy"`
}

// GetStats returns current metrics
func (m *Metrics) GetStats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Stats{
		UptimeSeconds:       time.Since(m.startTime).Seconds(),
		MessagesSucceeded:   make(map[string]int64, len(m.succeeded)),
		MessagesFailed:      make(map[string]int64, len(m.failed)),
		ErrorCounts:         make(map[string]int64, len(m.errors)),
		BatchesProcessed:    m.batchesProcessed,
		BulkRehydrated:      m.bulkRehydrated,
		BulkRehydrateErrors: m.bulkErrors,
		Healthy:             m.isHealthy,
	}
	for k, v := range m.succeeded {
		s.MessagesSucceeded[string(k)] = v
	}
	for k, v := range m.failed {
		s.MessagesFailed[string(k)] = v
	}
	for k, v := range m.errors {
		s.ErrorCounts[k] = v
	}
	if m.batchesProcessed > 0 {
		s.AvgBatchSize = float64(m.messagesInBatch) / float64(m.batchesProcessed)
		s.AvgBatchTimeMs = float64(m.batchTime.Milliseconds()) / float64(m.batchesProcessed)
	}
	if !m.lastProcessedAt.IsZero() {
		s.LastProcessedAgoMs = time.Since(m.lastProcessedAt).Milliseconds()
	}
	return s
}

// SetHealthy sets the health status
func (m *Metrics) SetHealthy(healthy bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.isHealthy = healthy
}

// IsHealthy returns the health status
func (m *Metrics) IsHealthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isHealthy
}
