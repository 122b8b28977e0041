package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/birbparty/pokenest/internal/telemetry"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// DeadLetterSink stores a message that will not be replayed again.
type DeadLetterSink func(ctx context.Context, msg *DLQMessage) error

// DLQHandler handles dead letter queue operations
type DLQHandler struct {
	client *Client
	config *Config
	log    *logrus.Entry
}

// NewDLQHandler creates a new DLQ handler
func NewDLQHandler(client *Client) *DLQHandler {
	return &DLQHandler{
		client: client,
		config: client.config,
		log:    telemetry.Component("dlq"),
	}
}

// NewDLQMessage wraps a failed delivery for the DLQ stream.
func NewDLQMessage(d Delivery, cause error, maxRetries int) *DLQMessage {
	return &DLQMessage{
		ID:              uuid.NewString(),
		OriginalMessage: d.Data(),
		OriginalSubject: d.Subject(),
		Error:           cause.Error(),
		FailedAt:        time.Now().UTC(),
		Retries:         DLQRetries(d.Header()),
		MaxRetries:      maxRetries,
	}
}

// SendToDLQ sends a failed message to the dead letter queue
func (h *DLQHandler) SendToDLQ(ctx context.Context, d Delivery, cause error) error {
	dlqMsg := NewDLQMessage(d, cause, h.config.DLQMaxRetries)
	if IsPermanent(cause) {
		dlqMsg.MaxRetries = 0
	}

	data, err := dlqMsg.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal DLQ message: %w", err)
	}

	headers := nats.Header{}
	headers.Set("X-Original-Subject", dlqMsg.OriginalSubject)
	headers.Set("X-Failed-At", dlqMsg.FailedAt.Format(time.RFC3339))
	headers.Set(HeaderRetries, strconv.Itoa(dlqMsg.Retries))

	if err := h.client.publish(ctx, SubjectDLQ, dlqMsg.ID, data, headers); err != nil {
		return err
	}
	telemetry.RecordDLQMessage(dlqReason(cause))
	return nil
}

// ProcessDLQ consumes the DLQ stream until ctx is done. Messages with
// retries left are replayed onto their original subject once their backoff
// has elapsed; the rest are handed to sink.
func (h *DLQHandler) ProcessDLQ(ctx context.Context, sink DeadLetterSink) error {
	consumerName := h.config.ConsumerName + "-dlq"
	if _, err := h.client.CreateConsumer(h.config.DLQStreamName, consumerName, SubjectDLQ); err != nil {
		return fmt.Errorf("failed to create DLQ consumer: %w", err)
	}

	sub, err := h.client.js.PullSubscribe(
		SubjectDLQ,
		consumerName,
		nats.ManualAck(),
		nats.Bind(h.config.DLQStreamName, consumerName),
	)
	if err != nil {
		return fmt.Errorf("failed to subscribe to DLQ: %w", err)
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msgs, err := sub.Fetch(10, nats.MaxWait(5*time.Second))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			return fmt.Errorf("failed to fetch DLQ messages: %w", err)
		}

		for _, msg := range msgs {
			wait, err := h.processDLQMessage(ctx, msg.Data, sink)
			switch {
			case err != nil:
				h.log.WithError(err).Error("Failed to process DLQ message")
				msg.NakWithDelay(h.config.DLQRetryInterval)
			case wait > 0:
				msg.NakWithDelay(wait)
			default:
				msg.Ack()
			}
		}
	}
}

// DLQAction is what happens to a DLQ message on inspection.
type DLQAction int

const (
	// DLQReplay republishes the original message.
	DLQReplay DLQAction = iota
	// DLQWait leaves the message until its backoff has elapsed.
	DLQWait
	// DLQPark hands the message to the dead letter sink.
	DLQPark
)

// Decide picks the action for msg at now. Replays back off linearly by
// interval per previous retry.
func Decide(msg *DLQMessage, now time.Time, interval time.Duration) (DLQAction, time.Duration) {
	if msg.Retries >= msg.MaxRetries {
		return DLQPark, 0
	}
	if _, ok := TypeForSubject(msg.OriginalSubject); !ok {
		return DLQPark, 0
	}
	next := msg.FailedAt.Add(interval * time.Duration(msg.Retries+1))
	if now.Before(next) {
		return DLQWait, next.Sub(now)
	}
	return DLQReplay, 0
}

func (h *DLQHandler) processDLQMessage(ctx context.Context, data []byte, sink DeadLetterSink) (time.Duration, error) {
	dlqMsg, err := UnmarshalDLQMessage(data)
	if err != nil {
		h.log.WithError(err).Error("Dropping undecodable DLQ message")
		return 0, nil
	}

	action, wait := Decide(dlqMsg, time.Now(), h.config.DLQRetryInterval)
	switch action {
	case DLQWait:
		return wait, nil
	case DLQPark:
		h.log.WithFields(logrus.Fields{
			"subject": dlqMsg.OriginalSubject,
			"retries": dlqMsg.Retries,
			"error":   dlqMsg.Error,
		}).Warn("Message exhausted its retries")
		if sink == nil {
			return 0, nil
		}
		return 0, sink(ctx, dlqMsg)
	}

	return 0, h.replay(ctx, dlqMsg)
}

func (h *DLQHandler) replay(ctx context.Context, dlqMsg *DLQMessage) error {
	headers := nats.Header{}
	headers.Set(HeaderRetries, strconv.Itoa(dlqMsg.Retries+1))
	headers.Set("X-DLQ-Retry", "true")

	if err := h.client.publish(ctx, dlqMsg.OriginalSubject, "", dlqMsg.OriginalMessage, headers); err != nil {
		return fmt.Errorf("failed to replay message: %w", err)
	}

	h.log.WithFields(logrus.Fields{
		"subject": dlqMsg.OriginalSubject,
		"attempt": dlqMsg.Retries + 1,
	}).Info("Replayed dead letter")
	return nil
}

// DLQStats represents statistics about the DLQ
type DLQStats struct {
	TotalMessages   uint64    `json:"total_messages"`
	PendingMessages uint64    `json:"pending_messages"`
	StreamBytes     uint64    `json:"stream_bytes"`
	OldestMessage   time.Time `json:"oldest_message"`
	NewestMessage   time.Time `json:"newest_message"`
}

// GetDLQStats returns statistics about the DLQ
func (h *DLQHandler) GetDLQStats() (*DLQStats, error) {
	streamInfo, err := h.client.StreamInfo(h.config.DLQStreamName)
	if err != nil {
		return nil, fmt.Errorf("failed to get DLQ stream info: %w", err)
	}

	stats := &DLQStats{
		TotalMessages: streamInfo.State.Msgs,
		StreamBytes:   streamInfo.State.Bytes,
		OldestMessage: streamInfo.State.FirstTime,
		NewestMessage: streamInfo.State.LastTime,
	}
	if consumerInfo, err := h.client.ConsumerInfo(h.config.DLQStreamName, h.config.ConsumerName+"-dlq"); err == nil {
		stats.PendingMessages = consumerInfo.NumPending
	}
	return stats, nil
}

// PurgeDLQ removes all messages from the DLQ
func (h *DLQHandler) PurgeDLQ(ctx context.Context) error {
	if err := h.client.js.PurgeStream(h.config.DLQStreamName, nats.Context(ctx)); err != nil {
		return fmt.Errorf("failed to purge DLQ: %w", err)
	}
	return nil
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying: malformed messages and
// documents that fail validation.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// IsRetryable determines if an error is retryable
func IsRetryable(err error) bool {
	return err != nil && !IsPermanent(err)
}

func dlqReason(err error) string {
	if IsPermanent(err) {
		return "permanent"
	}
	return "max_deliver"
}
