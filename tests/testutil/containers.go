// Package testutil starts the Postgres, Redis and NATS containers used by the
// integration suite.
package testutil

import (
	"context"
	"fmt"
	"time"

	"github.com/birbparty/pokenest/internal/cache"
	"github.com/birbparty/pokenest/internal/database"
	"github.com/birbparty/pokenest/internal/queue"
	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	pgDatabase = "pokenest_test"
	pgUser     = "pokenest"
	pgPassword = "pokenest"
)

// TestContainers holds all test containers
type TestContainers struct {
	PostgresContainer testcontainers.Container
	RedisContainer    testcontainers.Container
	NATSContainer     testcontainers.Container

	PostgresHost string
	PostgresPort int
	RedisHost    string
	RedisPort    int
	NATSURL      string
}

// StartContainers starts all required containers for testing
func StartContainers(ctx context.Context) (*TestContainers, error) {
	tc := &TestContainers{}

	pgContainer, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase(pgDatabase),
		postgres.WithUsername(pgUser),
		postgres.WithPassword(pgPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}
	tc.PostgresContainer = pgContainer
	if tc.PostgresHost, tc.PostgresPort, err = endpoint(ctx, pgContainer, "5432/tcp"); err != nil {
		return tc, fmt.Errorf("postgres: %w", err)
	}

	redisContainer, err := redis.Run(ctx, "redis:7-alpine")
	if err != nil {
		return tc, fmt.Errorf("failed to start redis container: %w", err)
	}
	tc.RedisContainer = redisContainer
	if tc.RedisHost, tc.RedisPort, err = endpoint(ctx, redisContainer, "6379/tcp"); err != nil {
		return tc, fmt.Errorf("redis: %w", err)
	}

	// Start NATS with JetStream
	natsContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "nats:2.10-alpine",
			Cmd:          []string{"-js"},
			ExposedPorts: []string{"4222/tcp"},
			WaitingFor: wait.ForLog("Server is ready").
				WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return tc, fmt.Errorf("failed to start nats container: %w", err)
	}
	tc.NATSContainer = natsContainer
	natsHost, natsPort, err := endpoint(ctx, natsContainer, "4222/tcp")
	if err != nil {
		return tc, fmt.Errorf("nats: %w", err)
	}
	tc.NATSURL = fmt.Sprintf("nats://%s:%d", natsHost, natsPort)

	return tc, nil
}

func endpoint(ctx context.Context, c testcontainers.Container, port nat.Port) (string, int, error) {
	host, err := c.Host(ctx)
	if err != nil {
		return "", 0, fmt.Errorf("failed to get host: %w", err)
	}
	mapped, err := c.MappedPort(ctx, port)
	if err != nil {
		return "", 0, fmt.Errorf("failed to get port: %w", err)
	}
	return host, mapped.Int(), nil
}

// DatabaseConfig points a database.Config at the Postgres container.
func (tc *TestContainers) DatabaseConfig() *database.Config {
	return &database.Config{
		Host:            tc.PostgresHost,
		Port:            tc.PostgresPort,
		User:            pgUser,
		Password:        pgPassword,
		Database:        pgDatabase,
		SSLMode:         "disable",
		MaxConns:        10,
		MinConns:        2,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 5 * time.Minute,
		ConnectTimeout:  10 * time.Second,
	}
}

// CacheConfig points a cache.Config at the Redis container.
func (tc *TestContainers) CacheConfig() *cache.Config {
	return &cache.Config{
		Host:            tc.RedisHost,
		Port:            tc.RedisPort,
		MaxRetries:      3,
		MinRetryBackoff: 8 * time.Millisecond,
		MaxRetryBackoff: 512 * time.Millisecond,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     3 * time.Second,
		WriteTimeout:    3 * time.Second,
		PoolSize:        10,
		MinIdleConns:    1,
		MaxIdleTime:     5 * time.Minute,
		Namespace:       "it",
		DefaultTTL:      5 * time.Minute,
		ExpandedTTL:     time.Minute,
	}
}

// QueueConfig points a queue.Config at the NATS container. Each suite gets
// its own streams so runs do not see each other's messages.
func (tc *TestContainers) QueueConfig(suffix string) *queue.Config {
	cfg := queue.DefaultConfig()
	cfg.URL = tc.NATSURL
	cfg.Name = "pokenest-test-" + suffix
	cfg.StreamName = "POKENEST_TEST_" + suffix
	cfg.DLQStreamName = "POKENEST_TEST_" + suffix + "_DLQ"
	cfg.ConsumerName = "pokenest-test-" + suffix
	cfg.NakDelay = 100 * time.Millisecond
	cfg.BatchSize = 10
	cfg.BatchTimeout = 200 * time.Millisecond
	cfg.DLQRetryInterval = time.Second
	return cfg
}

// Cleanup terminates all containers
func (tc *TestContainers) Cleanup(ctx context.Context) error {
	var errs []error

	for name, c := range map[string]testcontainers.Container{
		"postgres": tc.PostgresContainer,
		"redis":    tc.RedisContainer,
		"nats":     tc.NATSContainer,
	} {
		if c == nil {
			continue
		}
		if err := c.Terminate(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to terminate %s: %w", name, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("cleanup errors: %v", errs)
	}
	return nil
}
