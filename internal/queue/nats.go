package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/birbparty/pokenest/internal/telemetry"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
)

// HeaderRetries carries how often a message went through the DLQ.
const HeaderRetries = "X-Retries"

// Publisher sends work to the workers. The gateway and the sweeper depend on
// this rather than on *Client.
type Publisher interface {
	PublishPersist(ctx context.Context, msg *PersistMessage) error
	PublishRehydrate(ctx context.Context, msg *RehydrateMessage) error
	PublishPrefetch(ctx context.Context, msg *PrefetchMessage) error
	PublishSweep(ctx context.Context, msg *SweepNotification) error
}

// Client represents a NATS JetStream client
type Client struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	config *Config
	log    *logrus.Entry
}

var _ Publisher = (*Client)(nil)

// NewClient connects to NATS and makes sure the work and DLQ streams exist.
func NewClient(config *Config) (*Client, error) {
	log := telemetry.Component("queue")

	opts := []nats.Option{
		nats.Name(config.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.WithError(err).Warn("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.WithField("url", nc.ConnectedUrl()).Info("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.WithError(err).Error("NATS error")
		}),
	}
	if config.User != "" && config.Password != "" {
		opts = append(opts, nats.UserInfo(config.User, config.Password))
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	client := &Client{nc: nc, js: js, config: config, log: log}
	if err := client.initializeStreams(); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to initialize streams: %w", err)
	}

	log.WithFields(logrus.Fields{
		"url":    nc.ConnectedUrl(),
		"stream": config.StreamName,
	}).Info("Connected to NATS JetStream")
	return client, nil
}

// WorkSubjects lists the subjects carried by the main stream.
func WorkSubjects() []string {
	return []string{SubjectPersist, SubjectRehydrate, SubjectPrefetch, SubjectSweep}
}

func (c *Client) initializeStreams() error {
	mainStream := &nats.StreamConfig{
		Name:        c.config.StreamName,
		Description: "pokenest resource work stream",
		Subjects:    WorkSubjects(),
		Retention:   nats.LimitsPolicy,
		MaxAge:      c.config.StreamMaxAge,
		MaxBytes:    c.config.StreamMaxBytes,
		MaxMsgs:     c.config.StreamMaxMsgs,
		MaxMsgSize:  c.config.StreamMaxMsgSize,
		Replicas:    c.config.StreamReplicas,
		Duplicates:  5 * time.Minute,
		Storage:     nats.FileStorage,
	}
	if err := c.ensureStream(mainStream); err != nil {
		return fmt.Errorf("failed to create/update main stream: %w", err)
	}

	dlqStream := &nats.StreamConfig{
		Name:        c.config.DLQStreamName,
		Description: "pokenest dead letters",
		Subjects:    []string{SubjectDLQ},
		Retention:   nats.LimitsPolicy,
		MaxAge:      7 * 24 * time.Hour,
		MaxBytes:    c.config.StreamMaxBytes / 10,
		MaxMsgs:     c.config.StreamMaxMsgs / 10,
		MaxMsgSize:  c.config.StreamMaxMsgSize,
		Replicas:    c.config.StreamReplicas,
		Storage:     nats.FileStorage,
	}
	if err := c.ensureStream(dlqStream); err != nil {
		return fmt.Errorf("failed to create/update DLQ stream: %w", err)
	}
	return nil
}

func (c *Client) ensureStream(cfg *nats.StreamConfig) error {
	if _, err := c.js.AddStream(cfg); err != nil {
		if _, err = c.js.UpdateStream(cfg); err != nil {
			return err
		}
	}
	return nil
}

// publish sends data and waits for the stream to acknowledge it. The
// caller's trace context travels in the message headers.
func (c *Client) publish(ctx context.Context, subject, id string, data []byte, header nats.Header) error {
	ctx, span := telemetry.StartSpan(ctx, "nats.publish",
		attribute.String("messaging.system", "nats"),
		attribute.String("messaging.destination", subject),
		attribute.String("messaging.message_id", id),
	)
	defer span.End()

	if header == nil {
		header = nats.Header{}
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(header))

	msg := &nats.Msg{Subject: subject, Data: data, Header: header}
	var opts []nats.PubOpt
	if id != "" {
		opts = append(opts, nats.MsgId(id))
	}

	pubAck, err := c.js.PublishMsgAsync(msg, opts...)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}

	select {
	case <-pubAck.Ok():
		return nil
	case err := <-pubAck.Err():
		telemetry.RecordError(ctx, err)
		return fmt.Errorf("publish to %s failed: %w", subject, err)
	case <-ctx.Done():
		return ctx.Err()
	}
}

type marshaler interface {
	Marshal() ([]byte, error)
}

func (c *Client) publishMessage(ctx context.Context, subject, id string, m marshaler) error {
	data, err := m.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal %s message: %w", subject, err)
	}
	return c.publish(ctx, subject, id, data, nil)
}

// PublishPersist publishes a persist message
func (c *Client) PublishPersist(ctx context.Context, msg *PersistMessage) error {
	return c.publishMessage(ctx, SubjectPersist, msg.ID, msg)
}

// PublishRehydrate publishes a rehydrate message
func (c *Client) PublishRehydrate(ctx context.Context, msg *RehydrateMessage) error {
	return c.publishMessage(ctx, SubjectRehydrate, msg.ID, msg)
}

// PublishPrefetch publishes a prefetch message
func (c *Client) PublishPrefetch(ctx context.Context, msg *PrefetchMessage) error {
	return c.publishMessage(ctx, SubjectPrefetch, msg.ID, msg)
}

// PublishSweep publishes a sweep notification
func (c *Client) PublishSweep(ctx context.Context, msg *SweepNotification) error {
	return c.publishMessage(ctx, SubjectSweep, msg.ID, msg)
}

// CreateConsumer creates or updates a durable pull consumer. An empty
// filterSubject consumes the whole stream.
func (c *Client) CreateConsumer(streamName, consumerName, filterSubject string) (*nats.ConsumerInfo, error) {
	consumerConfig := &nats.ConsumerConfig{
		Durable:       consumerName,
		AckPolicy:     nats.AckExplicitPolicy,
		AckWait:       c.config.ConsumerAckWait,
		MaxDeliver:    c.config.ConsumerMaxDeliver,
		MaxAckPending: c.config.ConsumerMaxAckPending,
		ReplayPolicy:  nats.ReplayInstantPolicy,
		DeliverPolicy: nats.DeliverAllPolicy,
		FilterSubject: filterSubject,
	}

	info, err := c.js.AddConsumer(streamName, consumerConfig)
	if err != nil {
		info, err = c.js.UpdateConsumer(streamName, consumerConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create/update consumer %s: %w", consumerName, err)
		}
	}
	return info, nil
}

// Handler receives one batch of deliveries per fetch. It must settle every
// delivery it is given.
type Handler func(ctx context.Context, batch []Delivery)

// Subscribe binds to an existing durable consumer and fetches batches until
// ctx is cancelled or the connection closes.
func (c *Client) Subscribe(ctx context.Context, streamName, consumerName string, handler Handler) (*nats.Subscription, error) {
	sub, err := c.js.PullSubscribe(
		"",
		consumerName,
		nats.ManualAck(),
		nats.Bind(streamName, consumerName),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}

	log := c.log.WithField("consumer", consumerName)
	go func() {
		for ctx.Err() == nil {
			msgs, err := sub.Fetch(c.config.BatchSize, nats.MaxWait(c.config.BatchTimeout))
			if err != nil {
				switch {
				case errors.Is(err, nats.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
					continue
				case errors.Is(err, nats.ErrConnectionClosed), errors.Is(err, nats.ErrBadSubscription):
					return
				}
				log.WithError(err).Warn("Error fetching messages")
				select {
				case <-ctx.Done():
				case <-time.After(c.config.BatchTimeout):
				}
				continue
			}

			batch := make([]Delivery, len(msgs))
			for i, m := range msgs {
				batch[i] = WrapMsg(m)
			}
			handler(ctx, batch)
		}
	}()

	return sub, nil
}

// Delivery is a received message that must be acked, nacked or terminated.
type Delivery interface {
	Subject() string
	Data() []byte
	Header() nats.Header
	// NumDelivered is 1 on the first delivery.
	NumDelivered() uint64
	// Context returns ctx carrying the publisher's trace context.
	Context(ctx context.Context) context.Context
	Ack() error
	Nak(delay time.Duration) error
	Term() error
}

type natsDelivery struct {
	msg *nats.Msg
}

// WrapMsg adapts a JetStream message to Delivery.
func WrapMsg(msg *nats.Msg) Delivery {
	return natsDelivery{msg: msg}
}

func (d natsDelivery) Subject() string     { return d.msg.Subject }
func (d natsDelivery) Data() []byte        { return d.msg.Data }
func (d natsDelivery) Header() nats.Header { return d.msg.Header }

func (d natsDelivery) NumDelivered() uint64 {
	meta, err := d.msg.Metadata()
	if err != nil {
		return 1
	}
	return meta.NumDelivered
}

func (d natsDelivery) Context(ctx context.Context) context.Context {
	if d.msg.Header == nil {
		return ctx
	}
	return otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(d.msg.Header))
}

func (d natsDelivery) Ack() error { return d.msg.Ack() }

func (d natsDelivery) Nak(delay time.Duration) error {
	if delay > 0 {
		return d.msg.NakWithDelay(delay)
	}
	return d.msg.Nak()
}

func (d natsDelivery) Term() error { return d.msg.Term() }

// DLQRetries reads the retry counter a DLQ replay stamped on a message.
func DLQRetries(h nats.Header) int {
	if h == nil {
		return 0
	}
	n, err := strconv.Atoi(h.Get(HeaderRetries))
	if err != nil {
		return 0
	}
	return n
}

// Health checks the NATS connection health
func (c *Client) Health() error {
	if !c.nc.IsConnected() {
		return fmt.Errorf("NATS is not connected")
	}
	if _, err := c.js.AccountInfo(); err != nil {
		return fmt.Errorf("JetStream health check failed: %w", err)
	}
	return nil
}

// Close drains and closes the NATS connection
func (c *Client) Close() error {
	if c.nc != nil && !c.nc.IsClosed() {
		if err := c.nc.Drain(); err != nil {
			c.nc.Close()
		}
	}
	return nil
}

// StreamInfo returns information about a stream
func (c *Client) StreamInfo(streamName string) (*nats.StreamInfo, error) {
	return c.js.StreamInfo(streamName)
}

// ConsumerInfo returns information about a consumer
func (c *Client) ConsumerInfo(streamName, consumerName string) (*nats.ConsumerInfo, error) {
	return c.js.ConsumerInfo(streamName, consumerName)
}

// GetConfig returns the client configuration
func (c *Client) GetConfig() *Config {
	return c.config
}
