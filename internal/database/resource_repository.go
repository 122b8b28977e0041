package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// ResourceRepository handles resource and dead letter persistence.
type ResourceRepository struct {
	db *DB
}

// NewResourceRepository creates a new resource repository
func NewResourceRepository(db *DB) *ResourceRepository {
	return &ResourceRepository{db: db}
}

const resourceColumns = `endpoint, resource_id, body, source, created_at, updated_at, version`

func scanResource(row pgx.Row) (*Resource, error) {
	var r Resource
	err := row.Scan(&r.Endpoint, &r.ResourceID, &r.Body, &r.Source, &r.CreatedAt, &r.UpdatedAt, &r.Version)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Get retrieves one resource.
func (r *ResourceRepository) Get(ctx context.Context, endpoint, id string) (*Resource, error) {
	query := `SELECT ` + resourceColumns + ` FROM resources WHERE endpoint = $1 AND resource_id = $2`

	res, err := scanResource(r.db.QueryRow(ctx, query, endpoint, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get resource %s/%s: %w", endpoint, id, err)
	}
	return res, nil
}

const upsertResourceSQL = `
	INSERT INTO resources (endpoint, resource_id, body, source, version)
	VALUES ($1, $2, $3, $4, 1)
	ON CONFLICT (endpoint, resource_id) DO UPDATE SET
		body = EXCLUDED.body,
		source = EXCLUDED.source,
		updated_at = CURRENT_TIMESTAMP,
		version = resources.version + 1
	RETURNING version
`

// Upsert creates or replaces a resource and returns its new version.
func (r *ResourceRepository) Upsert(ctx context.Context, res *Resource) (int, error) {
	if err := validateResource(res); err != nil {
		return 0, err
	}

	var version int
	err := r.db.QueryRow(ctx, upsertResourceSQL, res.Endpoint, res.ResourceID, res.Body, sourceOrDefault(res.Source)).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert resource %s/%s: %w", res.Endpoint, res.ResourceID, err)
	}
	return version, nil
}

// BatchUpsert writes resources in one round trip. Invalid resources are
// skipped and reported in the returned map, keyed by "endpoint/id".
func (r *ResourceRepository) BatchUpsert(ctx context.Context, resources []*Resource) (map[string]error, error) {
	rejected := make(map[string]error)
	batch := &pgx.Batch{}
	for _, res := range resources {
		if err := validateResource(res); err != nil {
			rejected[res.Endpoint+"/"+res.ResourceID] = err
			continue
		}
		batch.Queue(upsertResourceSQL, res.Endpoint, res.ResourceID, res.Body, sourceOrDefault(res.Source))
	}
	if batch.Len() == 0 {
		return rejected, nil
	}

	br := r.db.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		var version int
		if err := br.QueryRow().Scan(&version); err != nil {
			return rejected, fmt.Errorf("failed to upsert batch item %d: %w", i, err)
		}
	}
	return rejected, nil
}

// Delete removes one resource.
func (r *ResourceRepository) Delete(ctx context.Context, endpoint, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM resources WHERE endpoint = $1 AND resource_id = $2`, endpoint, id)
	if err != nil {
		return fmt.Errorf("failed to delete resource: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListIDs pages through the ids stored for an endpoint, ordered by id.
// An empty endpoint lists every endpoint; ids are then "endpoint/id".
func (r *ResourceRepository) ListIDs(ctx context.Context, endpoint string, offset, limit int) ([]string, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if endpoint == "" {
		rows, err = r.db.Query(ctx, `
			SELECT endpoint || '/' || resource_id FROM resources
			ORDER BY endpoint, resource_id OFFSET $1 LIMIT $2`, offset, limit)
	} else {
		rows, err = r.db.Query(ctx, `
			SELECT resource_id FROM resources WHERE endpoint = $1
			ORDER BY resource_id OFFSET $2 LIMIT $3`, endpoint, offset, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list resource ids: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan resource ids: %w", err)
	}
	return ids, nil
}

// ListOlderThan returns up to limit resources last written before cutoff,
// oldest first.
func (r *ResourceRepository) ListOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*Resource, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+resourceColumns+` FROM resources
		WHERE updated_at < $1
		ORDER BY updated_at, endpoint, resource_id
		LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale resources: %w", err)
	}
	defer rows.Close()

	var out []*Resource
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan resource: %w", err)
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating resources: %w", err)
	}
	return out, nil
}

// DeleteOlderThan deletes the given resources if they were not rewritten
// after cutoff. It returns how many rows went away.
func (r *ResourceRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time, resources []*Resource) (int, error) {
	if len(resources) == 0 {
		return 0, nil
	}

	endpoints := make([]string, len(resources))
	ids := make([]string, len(resources))
	for i, res := range resources {
		endpoints[i] = res.Endpoint
		ids[i] = res.ResourceID
	}

	result, err := r.db.Exec(ctx, `
		DELETE FROM resources r
		USING unnest($1::text[], $2::text[]) AS t(endpoint, resource_id)
		WHERE r.endpoint = t.endpoint AND r.resource_id = t.resource_id
		AND r.updated_at < $3`, endpoints, ids, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale resources: %w", err)
	}
	return int(result.RowsAffected()), nil
}

// Count returns the number of stored resources per endpoint.
func (r *ResourceRepository) Count(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.Query(ctx, `SELECT endpoint, count(*) FROM resources GROUP BY endpoint`)
	if err != nil {
		return nil, fmt.Errorf("failed to count resources: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var endpoint string
		var n int
		if err := rows.Scan(&endpoint, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[endpoint] = n
	}
	return counts, rows.Err()
}

// SaveDeadLetter records a message that exhausted its retries.
func (r *ResourceRepository) SaveDeadLetter(ctx context.Context, dl *DeadLetter) (int64, error) {
	status := dl.Status
	if status == "" {
		status = DLQStatusPending
	}

	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO dead_letters (message_id, message_type, payload, error_message, retry_count, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		dl.MessageID, dl.MessageType, dl.Payload, dl.ErrorMessage, dl.RetryCount, status,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to save dead letter: %w", err)
	}
	return id, nil
}

// ListDeadLetters returns dead letters with the given status, oldest first.
func (r *ResourceRepository) ListDeadLetters(ctx context.Context, status string, limit int) ([]*DeadLetter, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, message_id, message_type, payload, error_message, retry_count, status, created_at
		FROM dead_letters WHERE status = $1
		ORDER BY created_at LIMIT $2`, status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list dead letters: %w", err)
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*DeadLetter, error) {
		var dl DeadLetter
		err := row.Scan(&dl.ID, &dl.MessageID, &dl.MessageType, &dl.Payload, &dl.ErrorMessage, &dl.RetryCount, &dl.Status, &dl.CreatedAt)
		return &dl, err
	})
}

// SetDeadLetterStatus updates the status of a dead letter.
func (r *ResourceRepository) SetDeadLetterStatus(ctx context.Context, id int64, status string) error {
	result, err := r.db.Exec(ctx, `UPDATE dead_letters SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("failed to update dead letter: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func sourceOrDefault(source string) string {
	if s := strings.TrimSpace(source); s != "" {
		return s
	}
	return SourceUpstream
}
