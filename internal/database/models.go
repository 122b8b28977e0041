package database

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"
)

// Resource is one stored PokeAPI document, keyed by endpoint and id.
type Resource struct {
	Endpoint   string          `db:"endpoint" json:"endpoint"`
	ResourceID string          `db:"resource_id" json:"resource_id"`
	Body       json.RawMessage `db:"body" json:"body"`
	Source     string          `db:"source" json:"source"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updated_at"`
	Version    int             `db:"version" json:"version"`
}

// DeadLetter is a queue message that exhausted its retries.
type DeadLetter struct {
	ID           int64           `db:"id" json:"id"`
	MessageID    string          `db:"message_id" json:"message_id"`
	MessageType  string          `db:"message_type" json:"message_type"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	RetryCount   int             `db:"retry_count" json:"retry_count"`
	Status       string          `db:"status" json:"status"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

// Resource sources
const (
	SourceUpstream = "upstream"
	SourcePrefetch = "prefetch"
	SourceImport   = "import"
)

// Dead letter statuses
const (
	DLQStatusPending   = "pending"
	DLQStatusRetrying  = "retrying"
	DLQStatusFailed    = "failed"
	DLQStatusSucceeded = "succeeded"
)

// Common errors
var (
	ErrNotFound        = errors.New("resource not found")
	ErrInvalidDocument = errors.New("resource body is not a JSON document")
	ErrInvalidRef      = errors.New("resource endpoint and id are required")
)

// Age returns how long ago the resource was last written.
func (r *Resource) Age(now time.Time) time.Duration {
	return now.Sub(r.UpdatedAt)
}

// validateResource checks what the JSONB column and the primary key require.
// Only objects and arrays are accepted: PokeAPI never serves scalar documents.
func validateResource(r *Resource) error {
	if r.Endpoint == "" || r.ResourceID == "" {
		return ErrInvalidRef
	}
	if !json.Valid(r.Body) {
		return ErrInvalidDocument
	}
	trimmed := bytes.TrimSpace(r.Body)
	if trimmed[0] != '{' && trimmed[0] != '[' {
		return ErrInvalidDocument
	}
	return nil
}
