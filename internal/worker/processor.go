package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/birbparty/pokenest/internal/cache"
	"github.com/birbparty/pokenest/internal/database"
	"github.com/birbparty/pokenest/internal/queue"
	"github.com/birbparty/pokenest/internal/telemetry"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// Processor subscribes the batch handlers to their JetStream consumers and
// runs the DLQ replayer.
type Processor struct {
	config         *Config
	db             database.Interface
	queueClient    *queue.Client
	batchProcessor *BatchProcessor
	dlqHandler     *queue.DLQHandler
	metrics        *Metrics
	log            *logrus.Entry
}

// NewProcessor creates a new message processor
func NewProcessor(config *Config, db database.Interface, rc *cache.ResourceCache, upstream Upstream, queueClient *queue.Client, metrics *Metrics) *Processor {
	dlq := queue.NewDLQHandler(queueClient)
	return &Processor{
		config:         config,
		db:             db,
		queueClient:    queueClient,
		batchProcessor: NewBatchProcessor(config, queueClient.GetConfig(), db, rc, upstream, dlq, metrics),
		dlqHandler:     dlq,
		metrics:        metrics,
		log:            telemetry.Component("worker").WithField("worker_id", config.WorkerID),
	}
}

type subscription struct {
	msgType queue.MessageType
	subject string
	handle  queue.Handler
}

func (p *Processor) subscriptions() []subscription {
	return []subscription{
		{queue.MessageTypePersist, queue.SubjectPersist, p.batchProcessor.ProcessPersistBatch},
		{queue.MessageTypeRehydrate, queue.SubjectRehydrate, p.batchProcessor.ProcessRehydrateBatch},
		{queue.MessageTypePrefetch, queue.SubjectPrefetch, p.batchProcessor.ProcessPrefetchBatch},
	}
}

// Start consumes messages until ctx is cancelled.
func (p *Processor) Start(ctx context.Context) error {
	p.log.Info("Worker starting message processing")

	qcfg := p.queueClient.GetConfig()
	var subs []*nats.Subscription
	defer func() {
		for _, s := range subs {
			s.Unsubscribe()
		}
	}()

	for _, s := range p.subscriptions() {
		consumer := qcfg.ConsumerFor(s.msgType)
		if _, err := p.queueClient.CreateConsumer(qcfg.StreamName, consumer, s.subject); err != nil {
			return fmt.Errorf("failed to create %s consumer: %w", s.msgType, err)
		}
		sub, err := p.queueClient.Subscribe(ctx, qcfg.StreamName, consumer, s.handle)
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", s.subject, err)
		}
		subs = append(subs, sub)
	}

	go func() {
		if err := p.dlqHandler.ProcessDLQ(ctx, p.saveDeadLetter); err != nil && ctx.Err() == nil {
			p.log.WithError(err).Error("DLQ processor stopped")
			p.metrics.SetHealthy(false)
		}
	}()

	metricsTicker := time.NewTicker(p.config.MetricsInterval)
	defer metricsTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.reportMetrics()
			p.log.Info("Worker stopped")
			return nil
		case <-metricsTicker.C:
			p.reportMetrics()
		}
	}
}

// saveDeadLetter parks an exhausted message in PostgreSQL for inspection.
func (p *Processor) saveDeadLetter(ctx context.Context, msg *queue.DLQMessage) error {
	msgType, _ := queue.TypeForSubject(msg.OriginalSubject)
	payload := msg.OriginalMessage
	if !json.Valid(payload) {
		payload, _ = json.Marshal(string(payload))
	}
	errMsg := msg.Error

	id, err := p.db.SaveDeadLetter(ctx, &database.DeadLetter{
		MessageID:    msg.ID,
		MessageType:  string(msgType),
		Payload:      payload,
		ErrorMessage: &errMsg,
		RetryCount:   msg.Retries,
		Status:       database.DLQStatusFailed,
	})
	if err != nil {
		return err
	}
	p.log.WithFields(logrus.Fields{"dead_letter_id": id, "subject": msg.OriginalSubject}).Info("Dead letter stored")
	return nil
}

func (p *Processor) reportMetrics() {
	s := p.metrics.GetStats()
	p.log.WithFields(logrus.Fields{
		"succeeded":      s.MessagesSucceeded,
		"failed":         s.MessagesFailed,
		"batches":        s.BatchesProcessed,
		"avg_batch_size": s.AvgBatchSize,
	}).Info("Worker metrics")
}

// PerformStartupRehydration warms the hot cache from PostgreSQL when enabled.
func (p *Processor) PerformStartupRehydration(ctx context.Context) error {
	if !p.config.StartupRehydrationEnabled {
		p.log.Debug("Startup rehydration is disabled")
		return nil
	}
	_, err := p.batchProcessor.RehydrateAll(ctx)
	return err
}
