package api

import (
	"context"
	"fmt"
	"time"

	"github.com/birbparty/pokenest/internal/database"
	"github.com/birbparty/pokenest/internal/queue"
	"github.com/birbparty/pokenest/internal/telemetry"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// WriteRequest represents an async write to PostgreSQL
type WriteRequest struct {
	Ctx      context.Context // Traced context for span propagation
	Resource *database.Resource
	Retries  int
}

// AsyncWriterStats provides statistics about the async writer
type AsyncWriterStats struct {
	QueueDepth    int  `json:"queue_depth"`
	QueueCapacity int  `json:"queue_capacity"`
	WorkerCount   int  `json:"worker_count"`
	Forwarding    bool `json:"forwarding"`
}

// AsyncWriter persists upstream documents in the background. When a
// publisher is set, writes are forwarded to the worker as persist messages
// and only fall back to PostgreSQL when publishing fails.
type AsyncWriter struct {
	db         database.Interface
	publisher  queue.Publisher
	queue      chan WriteRequest
	workers    int
	maxRetry   int
	retryDelay time.Duration
	log        *logrus.Entry
}

// NewAsyncWriter creates a new async writer with worker pool. Either db or
// publisher may be nil, but not both.
func NewAsyncWriter(db database.Interface, publisher queue.Publisher, queueSize, workers, maxRetry int) *AsyncWriter {
	aw := &AsyncWriter{
		db:         db,
		publisher:  publisher,
		queue:      make(chan WriteRequest, queueSize),
		workers:    workers,
		maxRetry:   maxRetry,
		retryDelay: time.Second,
		log:        telemetry.Component("async-writer"),
	}
	asyncQueueCapacity.Set(float64(queueSize))

	for i := 0; i < workers; i++ {
		go aw.worker(i)
	}

	return aw
}

// Write queues a resource. A full queue drops the write; Redis still has it.
func (aw *AsyncWriter) Write(ctx context.Context, res *database.Resource) {
	// The request context ends before the write runs.
	ctx = trace.ContextWithSpanContext(context.Background(), trace.SpanContextFromContext(ctx))

	select {
	case aw.queue <- WriteRequest{Ctx: ctx, Resource: res}:
		telemetry.UpdateAsyncQueueDepth(len(aw.queue))
	default:
		aw.log.WithFields(logrus.Fields{
			"endpoint":    res.Endpoint,
			"resource_id": res.ResourceID,
		}).Warn("Write queue full, dropping write")
		telemetry.RecordAsyncWriteError("queue_full")
	}
}

// worker processes write requests from the queue
func (aw *AsyncWriter) worker(id int) {
	for req := range aw.queue {
		err := aw.persist(req)
		if err != nil {
			fields := logrus.Fields{
				"worker":      id,
				"endpoint":    req.Resource.Endpoint,
				"resource_id": req.Resource.ResourceID,
				"retry":       req.Retries,
			}
			if req.Retries < aw.maxRetry {
				req.Retries++
				time.Sleep(time.Duration(req.Retries) * aw.retryDelay)
				select {
				case aw.queue <- req:
					aw.log.WithFields(fields).WithError(err).Debug("Requeued write")
				default:
					aw.log.WithFields(fields).WithError(err).Warn("Failed to requeue write")
					telemetry.RecordAsyncWriteError("requeue_failed")
				}
			} else {
				aw.log.WithFields(fields).WithError(err).Error("Max retries exceeded for write")
				telemetry.RecordAsyncWriteError("max_retries_exceeded")
			}
		}

		telemetry.UpdateAsyncQueueDepth(len(aw.queue))
	}
}

func (aw *AsyncWriter) persist(req WriteRequest) error {
	ctx, span := telemetry.StartSpan(req.Ctx, "async_writer.persist",
		attribute.String("resource.endpoint", req.Resource.Endpoint),
		attribute.String("resource.id", req.Resource.ResourceID),
	)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res := req.Resource
	if aw.publisher != nil {
		msg := queue.NewPersistMessage(res.Endpoint, res.ResourceID, res.Body, res.Source)
		err := aw.publisher.PublishPersist(ctx, msg)
		if err == nil {
			return nil
		}
		telemetry.RecordAsyncWriteError("publish_failed")
		if aw.db == nil {
			telemetry.RecordError(ctx, err)
			return err
		}
	}
	if aw.db == nil {
		return fmt.Errorf("no persistence target configured")
	}

	if err := aw.db.PutResource(ctx, res); err != nil {
		telemetry.RecordError(ctx, err)
		return err
	}
	return nil
}

// QueueDepth returns the current queue depth
func (aw *AsyncWriter) QueueDepth() int {
	return len(aw.queue)
}

// Stats returns current statistics
func (aw *AsyncWriter) Stats() AsyncWriterStats {
	return AsyncWriterStats{
		QueueDepth:    len(aw.queue),
		QueueCapacity: cap(aw.queue),
		WorkerCount:   aw.workers,
		Forwarding:    aw.publisher != nil,
	}
}

// Shutdown gracefully stops the async writer
func (aw *AsyncWriter) Shutdown() {
	close(aw.queue)
}
