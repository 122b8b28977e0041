package database

import (
	"context"
	"time"
)

// Interface defines the database operations the services depend on.
type Interface interface {
	// GetResource retrieves a stored document or ErrNotFound.
	GetResource(ctx context.Context, endpoint, id string) (*Resource, error)

	// PutResource stores a document, replacing any previous version.
	PutResource(ctx context.Context, res *Resource) error

	// PutResources stores documents in one batch. Invalid documents are
	// skipped and returned keyed by "endpoint/id".
	PutResources(ctx context.Context, resources []*Resource) (map[string]error, error)

	// DeleteResource removes a document or returns ErrNotFound.
	DeleteResource(ctx context.Context, endpoint, id string) error

	// ListResourceIDs pages through stored ids of an endpoint.
	ListResourceIDs(ctx context.Context, endpoint string, offset, limit int) ([]string, error)

	// ListStale returns documents last written before cutoff, oldest first.
	ListStale(ctx context.Context, cutoff time.Time, limit int) ([]*Resource, error)

	// DeleteStale deletes the given documents unless rewritten after cutoff.
	DeleteStale(ctx context.Context, cutoff time.Time, resources []*Resource) (int, error)

	// SaveDeadLetter records a message that exhausted its retries.
	SaveDeadLetter(ctx context.Context, dl *DeadLetter) (int64, error)

	// Health checks if the database is healthy
	Health(ctx context.Context) error

	// Close closes the database connection
	Close() error
}

// PostgreSQLClient implements Interface on PostgreSQL.
type PostgreSQLClient struct {
	db   *DB
	repo *ResourceRepository
}

// NewPostgreSQLClient connects, applies the schema and returns a client.
func NewPostgreSQLClient(ctx context.Context, cfg *Config) (*PostgreSQLClient, error) {
	db, err := NewDB(cfg)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return &PostgreSQLClient{db: db, repo: NewResourceRepository(db)}, nil
}

var _ Interface = (*PostgreSQLClient)(nil)

// GetResource retrieves a stored document.
func (c *PostgreSQLClient) GetResource(ctx context.Context, endpoint, id string) (*Resource, error) {
	return c.repo.Get(ctx, endpoint, id)
}

// PutResource stores a document.
func (c *PostgreSQLClient) PutResource(ctx context.Context, res *Resource) error {
	_, err := c.repo.Upsert(ctx, res)
	return err
}

// PutResources stores documents in one batch.
func (c *PostgreSQLClient) PutResources(ctx context.Context, resources []*Resource) (map[string]error, error) {
	return c.repo.BatchUpsert(ctx, resources)
}

// DeleteResource removes a document.
func (c *PostgreSQLClient) DeleteResource(ctx context.Context, endpoint, id string) error {
	return c.repo.Delete(ctx, endpoint, id)
}

// ListResourceIDs pages through stored ids of an endpoint.
func (c *PostgreSQLClient) ListResourceIDs(ctx context.Context, endpoint string, offset, limit int) ([]string, error) {
	return c.repo.ListIDs(ctx, endpoint, offset, limit)
}

// ListStale returns documents last written before cutoff.
func (c *PostgreSQLClient) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]*Resource, error) {
	return c.repo.ListOlderThan(ctx, cutoff, limit)
}

// DeleteStale deletes documents unless rewritten after cutoff.
func (c *PostgreSQLClient) DeleteStale(ctx context.Context, cutoff time.Time, resources []*Resource) (int, error) {
	return c.repo.DeleteOlderThan(ctx, cutoff, resources)
}

// SaveDeadLetter records a dead letter.
func (c *PostgreSQLClient) SaveDeadLetter(ctx context.Context, dl *DeadLetter) (int64, error) {
	return c.repo.SaveDeadLetter(ctx, dl)
}

// Health checks if the database is healthy
func (c *PostgreSQLClient) Health(ctx context.Context) error {
	return c.db.Health(ctx)
}

// Close closes the database connection
func (c *PostgreSQLClient) Close() error {
	c.db.Close()
	return nil
}

// Repository exposes the underlying repository for maintenance tasks.
func (c *PostgreSQLClient) Repository() *ResourceRepository {
	return c.repo
}
