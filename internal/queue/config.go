package queue

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds queue configuration
type Config struct {
	// NATS connection settings
	URL      string
	Name     string
	User     string
	Password string

	// JetStream settings
	StreamName       string
	StreamMaxAge     time.Duration
	StreamMaxBytes   int64
	StreamMaxMsgs    int64
	StreamMaxMsgSize int32
	StreamReplicas   int

	// Consumer settings
	ConsumerName          string
	ConsumerMaxDeliver    int
	ConsumerAckWait       time.Duration
	ConsumerMaxAckPending int
	NakDelay              time.Duration

	// DLQ settings
	DLQStreamName    string
	DLQMaxRetries    int
	DLQRetryInterval time.Duration

	// Fetch settings
	BatchSize    int
	BatchTimeout time.Duration
}

// DefaultConfig returns the settings used when no environment is set.
func DefaultConfig() *Config {
	return &Config{
		URL:                   "nats://localhost:4222",
		Name:                  "pokenest",
		StreamName:            "POKENEST",
		StreamMaxAge:          24 * time.Hour,
		StreamMaxBytes:        1 << 30,
		StreamMaxMsgs:         1000000,
		StreamMaxMsgSize:      4 << 20,
		StreamReplicas:        1,
		ConsumerName:          "pokenest-worker",
		ConsumerMaxDeliver:    3,
		ConsumerAckWait:       30 * time.Second,
		ConsumerMaxAckPending: 1000,
		NakDelay:              2 * time.Second,
		DLQStreamName:         "POKENEST_DLQ",
		DLQMaxRetries:         5,
		DLQRetryInterval:      5 * time.Minute,
		BatchSize:             100,
		BatchTimeout:          time.Second,
	}
}

// NewConfigFromEnv creates a new Config from environment variables
func NewConfigFromEnv() (*Config, error) {
	cfg := DefaultConfig()

	cfg.URL = getEnvOrDefault("NATS_URL", cfg.URL)
	cfg.Name = getEnvOrDefault("NATS_NAME", cfg.Name)
	cfg.User = os.Getenv("NATS_USER")
	cfg.Password = os.Getenv("NATS_PASSWORD")
	cfg.StreamName = getEnvOrDefault("NATS_STREAM_NAME", cfg.StreamName)
	cfg.ConsumerName = getEnvOrDefault("NATS_CONSUMER_NAME", cfg.ConsumerName)
	cfg.DLQStreamName = getEnvOrDefault("DLQ_STREAM_NAME", cfg.DLQStreamName)

	var err error
	if cfg.StreamMaxBytes, err = strconv.ParseInt(getEnvOrDefault("NATS_STREAM_MAX_BYTES", strconv.FormatInt(cfg.StreamMaxBytes, 10)), 10, 64); err != nil {
		return nil, fmt.Errorf("invalid NATS_STREAM_MAX_BYTES: %w", err)
	}
	if cfg.StreamMaxMsgs, err = strconv.ParseInt(getEnvOrDefault("NATS_STREAM_MAX_MSGS", strconv.FormatInt(cfg.StreamMaxMsgs, 10)), 10, 64); err != nil {
		return nil, fmt.Errorf("invalid NATS_STREAM_MAX_MSGS: %w", err)
	}

	msgSize, err := strconv.ParseInt(getEnvOrDefault("NATS_STREAM_MAX_MSG_SIZE", strconv.Itoa(int(cfg.StreamMaxMsgSize))), 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid NATS_STREAM_MAX_MSG_SIZE: %w", err)
	}
	cfg.StreamMaxMsgSize = int32(msgSize)

	ints := []struct {
		env string
		dst *int
	}{
		{"NATS_STREAM_REPLICAS", &cfg.StreamReplicas},
		{"NATS_CONSUMER_MAX_DELIVER", &cfg.ConsumerMaxDeliver},
		{"NATS_CONSUMER_MAX_ACK_PENDING", &cfg.ConsumerMaxAckPending},
		{"DLQ_MAX_RETRIES", &cfg.DLQMaxRetries},
		{"WORKER_BATCH_SIZE", &cfg.BatchSize},
	}
	for _, v := range ints {
		if *v.dst, err = strconv.Atoi(getEnvOrDefault(v.env, strconv.Itoa(*v.dst))); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", v.env, err)
		}
	}

	durations := []struct {
		env string
		dst *time.Duration
	}{
		{"WORKER_BATCH_TIMEOUT", &cfg.BatchTimeout},
		{"NATS_CONSUMER_ACK_WAIT", &cfg.ConsumerAckWait},
		{"NATS_NAK_DELAY", &cfg.NakDelay},
		{"DLQ_RETRY_INTERVAL", &cfg.DLQRetryInterval},
	}
	for _, v := range durations {
		if *v.dst, err = time.ParseDuration(getEnvOrDefault(v.env, v.dst.String())); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", v.env, err)
		}
	}

	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("WORKER_BATCH_SIZE must be positive")
	}
	if cfg.ConsumerMaxDeliver <= 0 {
		return nil, fmt.Errorf("NATS_CONSUMER_MAX_DELIVER must be positive")
	}

	return cfg, nil
}

// ConsumerFor returns the durable consumer name for a work subject.
func (c *Config) ConsumerFor(t MessageType) string {
	return fmt.Sprintf("%s-%s", c.ConsumerName, t)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
