package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/birbparty/pokenest/internal/cache"
	"github.com/birbparty/pokenest/internal/database"
	"github.com/birbparty/pokenest/internal/queue"
	"github.com/birbparty/pokenest/internal/telemetry"
	"github.com/birbparty/pokenest/sdk"
	"github.com/ohler55/ojg/gen"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// Upstream is the part of the SDK client prefetching needs.
type Upstream interface {
	GetJSON(ctx context.Context, pathOrURL string, opts ...sdk.RequestOption) (gen.Node, error)
	ExpandConcurrent(ctx context.Context, root gen.Node, opts ...sdk.ExpandOption) (gen.Node, error)
}

// DeadLetterer moves a message that will not be retried onto the DLQ.
type DeadLetterer interface {
	SendToDLQ(ctx context.Context, d queue.Delivery, cause error) error
}

// BatchProcessor handles the messages of one fetch batch. Every delivery it
// is given is acked, nacked for redelivery or terminated.
type BatchProcessor struct {
	config     *Config
	maxDeliver int
	nakDelay   time.Duration
	db         database.Interface
	cache      *cache.ResourceCache
	upstream   Upstream
	dlq        DeadLetterer
	metrics    *Metrics
	log        *logrus.Entry
}

// NewBatchProcessor creates a new batch processor. upstream may be nil when
// the worker does not serve prefetches; dlq may be nil to terminate failed
// messages without keeping them.
func NewBatchProcessor(config *Config, qcfg *queue.Config, db database.Interface, rc *cache.ResourceCache, upstream Upstream, dlq DeadLetterer, metrics *Metrics) *BatchProcessor {
	return &BatchProcessor{
		config:     config,
		maxDeliver: qcfg.ConsumerMaxDeliver,
		nakDelay:   qcfg.NakDelay,
		db:         db,
		cache:      rc,
		upstream:   upstream,
		dlq:        dlq,
		metrics:    metrics,
		log:        telemetry.Component("worker"),
	}
}

// settle acks, nacks or dead-letters d according to err.
func (bp *BatchProcessor) settle(ctx context.Context, t queue.MessageType, d queue.Delivery, err error, started time.Time) {
	if err == nil {
		if ackErr := d.Ack(); ackErr != nil {
			bp.log.WithError(ackErr).Warn("Failed to ack message")
		}
		bp.metrics.RecordSuccess(t, time.Since(started))
		return
	}

	bp.metrics.RecordFailure(t, failureReason(err), time.Since(started))
	log := bp.log.WithError(err).WithFields(logrus.Fields{
		"type":      t,
		"delivered": d.NumDelivered(),
	})

	if queue.IsRetryable(err) && d.NumDelivered() < uint64(bp.maxDeliver) {
		log.Debug("Message failed, redelivering")
		d.Nak(bp.nakDelay)
		return
	}

	if bp.dlq != nil {
		if dlqErr := bp.dlq.SendToDLQ(ctx, d, err); dlqErr != nil {
			log.WithField("dlq_error", dlqErr.Error()).Error("Failed to dead-letter message")
			d.Nak(bp.nakDelay)
			return
		}
	}
	log.Warn("Message moved to DLQ")
	d.Term()
}

func failureReason(err error) string {
	switch {
	case queue.IsPermanent(err):
		return "invalid_message"
	case sdk.IsRetryable(err):
		return "upstream_unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "processing_error"
	}
}

// ProcessPersistBatch writes the documents of a batch in one database round
// trip. Messages that cannot be decoded or whose body is rejected are
// dead-lettered at once; a failed write sends the whole batch back.
func (bp *BatchProcessor) ProcessPersistBatch(ctx context.Context, batch []queue.Delivery) {
	if len(batch) == 0 {
		return
	}
	started := time.Now()
	defer func() { bp.metrics.RecordBatch(queue.MessageTypePersist, len(batch), time.Since(started)) }()

	ctx, span := telemetry.StartSpan(ctx, "worker.persist_batch", attribute.Int("messaging.batch_size", len(batch)))
	defer span.End()

	type item struct {
		d   queue.Delivery
		key string
	}
	var (
		items     []item
		resources []*database.Resource
	)
	for _, d := range batch {
		msg, err := queue.UnmarshalPersistMessage(d.Data())
		if err == nil {
			err = msg.Validate()
		}
		if err != nil {
			bp.settle(ctx, queue.MessageTypePersist, d, queue.Permanent(err), started)
			continue
		}
		resources = append(resources, &database.Resource{
			Endpoint:   msg.Endpoint,
			ResourceID: msg.ResourceID,
			Body:       msg.Body,
			Source:     msg.Source,
		})
		items = append(items, item{d: d, key: msg.Endpoint + "/" + msg.ResourceID})
	}
	if len(items) == 0 {
		return
	}

	writeCtx, cancel := context.WithTimeout(ctx, bp.config.MessageTimeout)
	rejected, err := bp.db.PutResources(writeCtx, resources)
	cancel()
	if err != nil {
		telemetry.RecordError(ctx, err)
		err = fmt.Errorf("failed to persist batch: %w", err)
	}

	for _, it := range items {
		switch {
		case err != nil:
			bp.settle(ctx, queue.MessageTypePersist, it.d, err, started)
		case rejected[it.key] != nil:
			bp.settle(ctx, queue.MessageTypePersist, it.d, queue.Permanent(rejected[it.key]), started)
		default:
			bp.settle(ctx, queue.MessageTypePersist, it.d, nil, started)
		}
	}
}

// ProcessRehydrateBatch copies stored documents back into the hot cache,
// highest priority first. Documents no longer stored are acked.
func (bp *BatchProcessor) ProcessRehydrateBatch(ctx context.Context, batch []queue.Delivery) {
	if len(batch) == 0 {
		return
	}
	started := time.Now()
	defer func() { bp.metrics.RecordBatch(queue.MessageTypeRehydrate, len(batch), time.Since(started)) }()

	ctx, span := telemetry.StartSpan(ctx, "worker.rehydrate_batch", attribute.Int("messaging.batch_size", len(batch)))
	defer span.End()

	type pending struct {
		ref        cache.Ref
		priority   int
		deliveries []queue.Delivery
		err        error
	}
	byRef := make(map[cache.Ref]*pending)
	var order []*pending
	for _, d := range batch {
		msg, err := queue.UnmarshalRehydrateMessage(d.Data())
		if err == nil {
			err = msg.Validate()
		}
		if err != nil {
			bp.settle(ctx, queue.MessageTypeRehydrate, d, queue.Permanent(err), started)
			continue
		}
		ref := cache.Ref{Endpoint: msg.Endpoint, ID: msg.ResourceID}
		p, ok := byRef[ref]
		if !ok {
			p = &pending{ref: ref, priority: msg.Priority}
			byRef[ref] = p
			order = append(order, p)
		}
		if msg.Priority > p.priority {
			p.priority = msg.Priority
		}
		p.deliveries = append(p.deliveries, d)
	}
	sort.SliceStable(order, func(i, j int) bool { return order[i].priority > order[j].priority })

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.config.ProcessingConcurrency)
	for _, p := range order {
		g.Go(func() error {
			p.err = bp.rehydrate(gctx, p.ref)
			return nil
		})
	}
	g.Wait()

	for _, p := range order {
		for _, d := range p.deliveries {
			bp.settle(ctx, queue.MessageTypeRehydrate, d, p.err, started)
		}
	}
}

func (bp *BatchProcessor) rehydrate(ctx context.Context, ref cache.Ref) error {
	ctx, cancel := context.WithTimeout(ctx, bp.config.MessageTimeout)
	defer cancel()

	res, err := bp.db.GetResource(ctx, ref.Endpoint, ref.ID)
	if errors.Is(err, database.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load %s/%s: %w", ref.Endpoint, ref.ID, err)
	}
	if err := bp.cache.Put(ctx, ref, res.Body); err != nil {
		return fmt.Errorf("failed to rehydrate %s/%s: %w", ref.Endpoint, ref.ID, err)
	}
	return nil
}

// ProcessPrefetchBatch fetches each requested resource upstream, stores it
// in both tiers and, when asked, caches an expansion of it.
func (bp *BatchProcessor) ProcessPrefetchBatch(ctx context.Context, batch []queue.Delivery) {
	if len(batch) == 0 {
		return
	}
	started := time.Now()
	defer func() { bp.metrics.RecordBatch(queue.MessageTypePrefetch, len(batch), time.Since(started)) }()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.config.ProcessingConcurrency)
	results := make([]error, len(batch))
	for i, d := range batch {
		g.Go(func() error {
			msg, err := queue.UnmarshalPrefetchMessage(d.Data())
			if err == nil {
				err = msg.Validate()
			}
			if err != nil {
				results[i] = queue.Permanent(err)
				return nil
			}
			results[i] = bp.prefetch(d.Context(gctx), msg)
			return nil
		})
	}
	g.Wait()

	for i, d := range batch {
		bp.settle(ctx, queue.MessageTypePrefetch, d, results[i], started)
	}
}

func (bp *BatchProcessor) prefetch(ctx context.Context, msg *queue.PrefetchMessage) error {
	if bp.upstream == nil {
		return queue.Permanent(errors.New("prefetch is not enabled on this worker"))
	}
	ctx, span := telemetry.StartSpan(ctx, "worker.prefetch",
		attribute.String("pokeapi.endpoint", msg.Endpoint),
		attribute.String("pokeapi.id", msg.ResourceID),
	)
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, bp.config.MessageTimeout)
	defer cancel()

	node, err := bp.upstream.GetJSON(ctx, msg.Endpoint+"/"+msg.ResourceID)
	if err != nil {
		telemetry.RecordError(ctx, err)
		if sdk.IsNotFound(err) {
			return queue.Permanent(err)
		}
		return err
	}
	body, err := json.Marshal(node.Simplify())
	if err != nil {
		return queue.Permanent(err)
	}

	ref := cache.Ref{Endpoint: msg.Endpoint, ID: msg.ResourceID}
	if err := bp.cache.Put(ctx, ref, body); err != nil {
		bp.log.WithError(err).WithField("resource", msg.Endpoint+"/"+msg.ResourceID).Warn("Failed to cache prefetched resource")
	}
	err = bp.db.PutResource(ctx, &database.Resource{
		Endpoint:   msg.Endpoint,
		ResourceID: msg.ResourceID,
		Body:       body,
		Source:     database.SourcePrefetch,
	})
	if err != nil {
		return fmt.Errorf("failed to store prefetched resource: %w", err)
	}

	if len(msg.Expand) == 0 {
		return nil
	}
	depth := msg.Depth
	if depth == 0 {
		depth = 1
	}
	out, err := bp.upstream.ExpandConcurrent(ctx, node,
		sdk.WithPaths(msg.Expand...),
		sdk.WithDepth(depth),
		sdk.WithConcurrency(bp.config.PrefetchConcurrency),
	)
	if err != nil {
		return fmt.Errorf("failed to expand %s/%s: %w", msg.Endpoint, msg.ResourceID, err)
	}
	expanded, err := json.Marshal(out.Simplify())
	if err != nil {
		return queue.Permanent(err)
	}
	if err := bp.cache.PutExpanded(ctx, ref, msg.Expand, depth, expanded); err != nil {
		bp.log.WithError(err).Warn("Failed to cache expansion")
	}
	return nil
}

// RehydrateAll copies every stored document into the hot cache, one page
// of ids at a time.
func (bp *BatchProcessor) RehydrateAll(ctx context.Context) (int, error) {
	bp.log.Info("Starting bulk rehydration")

	var rehydrated, failed atomic.Int64
	offset := 0
	for {
		ids, err := bp.db.ListResourceIDs(ctx, "", offset, bp.config.RehydrationBatchSize)
		if err != nil {
			return int(rehydrated.Load()), fmt.Errorf("failed to list resources at offset %d: %w", offset, err)
		}
		if len(ids) == 0 {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(bp.config.ProcessingConcurrency)
		var mu sync.Mutex
		var firstErr error
		for _, id := range ids {
			endpoint, resourceID, ok := strings.Cut(id, "/")
			if !ok {
				continue
			}
			g.Go(func() error {
				if err := bp.rehydrate(gctx, cache.Ref{Endpoint: endpoint, ID: resourceID}); err != nil {
					failed.Add(1)
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
					return nil
				}
				rehydrated.Add(1)
				return nil
			})
		}
		g.Wait()
		if firstErr != nil {
			bp.log.WithError(firstErr).WithField("offset", offset).Warn("Some resources failed to rehydrate")
		}
		if err := ctx.Err(); err != nil {
			return int(rehydrated.Load()), err
		}

		bp.log.WithFields(logrus.Fields{
			"offset": offset,
			"count":  len(ids),
			"total":  rehydrated.Load(),
		}).Debug("Rehydrated page")

		if len(ids) < bp.config.RehydrationBatchSize {
			break
		}
		offset += len(ids)
	}

	bp.metrics.RecordBulkRehydration(int(rehydrated.Load()), int(failed.Load()))
	bp.log.WithFields(logrus.Fields{
		"rehydrated": rehydrated.Load(),
		"errors":     failed.Load(),
	}).Info("Bulk rehydration complete")
	return int(rehydrated.Load()), nil
}
