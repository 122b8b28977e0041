package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MessageType represents the type of queue message
type MessageType string

const (
	// MessageTypePersist asks a worker to write a document to PostgreSQL
	MessageTypePersist MessageType = "persist"
	// MessageTypeRehydrate asks a worker to copy a stored document back into Redis
	MessageTypeRehydrate MessageType = "rehydrate"
	// MessageTypePrefetch asks a worker to fetch (and optionally expand) a resource upstream
	MessageTypePrefetch MessageType = "prefetch"
	// MessageTypeSweep announces a finished retention sweep
	MessageTypeSweep MessageType = "sweep"
)

// Subject names for different message types
const (
	SubjectPersist   = "pokenest.persist"
	SubjectRehydrate = "pokenest.rehydrate"
	SubjectPrefetch  = "pokenest.prefetch"
	SubjectSweep     = "pokenest.sweep"
	SubjectDLQ       = "pokenest.dlq"
)

// Priority levels for rehydration
const (
	PriorityLow    = 0
	PriorityNormal = 1
	PriorityHigh   = 2
	PriorityUrgent = 3
)

// BaseMessage contains common fields for all messages
type BaseMessage struct {
	ID        string      `json:"id"`
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Retries   int         `json:"retries,omitempty"`
}

func newBase(t MessageType) BaseMessage {
	return BaseMessage{
		ID:        uuid.NewString(),
		Type:      t,
		Timestamp: time.Now().UTC(),
	}
}

// PersistMessage carries a PokeAPI document to store.
type PersistMessage struct {
	BaseMessage
	Endpoint   string          `json:"endpoint"`
	ResourceID string          `json:"resource_id"`
	Body       json.RawMessage `json:"body"`
	Source     string          `json:"source,omitempty"`
}

// RehydrateMessage names a stored document to copy back into the hot cache.
type RehydrateMessage struct {
	BaseMessage
	Endpoint   string `json:"endpoint"`
	ResourceID string `json:"resource_id"`
	Priority   int    `json:"priority"`
}

// PrefetchMessage names a resource to warm. Expand and Depth are passed to
// the expansion engine when Expand is not empty.
type PrefetchMessage struct {
	BaseMessage
	Endpoint   string   `json:"endpoint"`
	ResourceID string   `json:"resource_id"`
	Expand     []string `json:"expand,omitempty"`
	Depth      int      `json:"depth,omitempty"`
}

// SweepNotification summarises one retention sweep.
type SweepNotification struct {
	BaseMessage
	Cutoff     time.Time `json:"cutoff"`
	Scanned    int       `json:"scanned"`
	Deleted    int       `json:"deleted"`
	Archived   int       `json:"archived"`
	ArchiveKey string    `json:"archive_key,omitempty"`
	DryRun     bool      `json:"dry_run"`
}

// DLQMessage represents a dead letter queue message
type DLQMessage struct {
	ID              string          `json:"id"`
	OriginalMessage json.RawMessage `json:"original_message"`
	OriginalSubject string          `json:"original_subject"`
	Error           string          `json:"error"`
	FailedAt        time.Time       `json:"failed_at"`
	Retries         int             `json:"retries"`
	MaxRetries      int             `json:"max_retries"`
}

// NewPersistMessage creates a new persist message
func NewPersistMessage(endpoint, id string, body json.RawMessage, source string) *PersistMessage {
	return &PersistMessage{
		BaseMessage: newBase(MessageTypePersist),
		Endpoint:    endpoint,
		ResourceID:  id,
		Body:        body,
		Source:      source,
	}
}

// NewRehydrateMessage creates a new rehydrate message
func NewRehydrateMessage(endpoint, id string, priority int) *RehydrateMessage {
	return &RehydrateMessage{
		BaseMessage: newBase(MessageTypeRehydrate),
		Endpoint:    endpoint,
		ResourceID:  id,
		Priority:    priority,
	}
}

// NewPrefetchMessage creates a new prefetch message
func NewPrefetchMessage(endpoint, id string, expand []string, depth int) *PrefetchMessage {
	return &PrefetchMessage{
		BaseMessage: newBase(MessageTypePrefetch),
		Endpoint:    endpoint,
		ResourceID:  id,
		Expand:      expand,
		Depth:       depth,
	}
}

// NewSweepNotification creates a sweep notification
func NewSweepNotification(cutoff time.Time, scanned, deleted, archived int, archiveKey string, dryRun bool) *SweepNotification {
	return &SweepNotification{
		BaseMessage: newBase(MessageTypeSweep),
		Cutoff:      cutoff.UTC(),
		Scanned:     scanned,
		Deleted:     deleted,
		Archived:    archived,
		ArchiveKey:  archiveKey,
		DryRun:      dryRun,
	}
}

// Validate checks the fields a worker needs.
func (m *PersistMessage) Validate() error {
	if m.Endpoint == "" || m.ResourceID == "" {
		return fmt.Errorf("persist message %s: endpoint and resource_id are required", m.ID)
	}
	if len(m.Body) == 0 || !json.Valid(m.Body) {
		return fmt.Errorf("persist message %s: body is not valid JSON", m.ID)
	}
	return nil
}

// Validate checks the fields a worker needs.
func (m *RehydrateMessage) Validate() error {
	if m.Endpoint == "" || m.ResourceID == "" {
		return fmt.Errorf("rehydrate message %s: endpoint and resource_id are required", m.ID)
	}
	return nil
}

// Validate checks the fields a worker needs.
func (m *PrefetchMessage) Validate() error {
	if m.Endpoint == "" || m.ResourceID == "" {
		return fmt.Errorf("prefetch message %s: endpoint and resource_id are required", m.ID)
	}
	if m.Depth < 0 {
		return fmt.Errorf("prefetch message %s: negative depth", m.ID)
	}
	return nil
}

// Marshal converts the message to JSON bytes
func (m *PersistMessage) Marshal() ([]byte, error) { return json.Marshal(m) }

// Marshal converts the message to JSON bytes
func (m *RehydrateMessage) Marshal() ([]byte, error) { return json.Marshal(m) }

// Marshal converts the message to JSON bytes
func (m *PrefetchMessage) Marshal() ([]byte, error) { return json.Marshal(m) }

// Marshal converts the message to JSON bytes
func (m *SweepNotification) Marshal() ([]byte, error) { return json.Marshal(m) }

// Marshal converts the message to JSON bytes
func (m *DLQMessage) Marshal() ([]byte, error) { return json.Marshal(m) }

func unmarshal[T any](data []byte) (*T, error) {
	var msg T
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// UnmarshalPersistMessage unmarshals a persist message from JSON
func UnmarshalPersistMessage(data []byte) (*PersistMessage, error) {
	return unmarshal[PersistMessage](data)
}

// UnmarshalRehydrateMessage unmarshals a rehydrate message from JSON
func UnmarshalRehydrateMessage(data []byte) (*RehydrateMessage, error) {
	return unmarshal[RehydrateMessage](data)
}

// UnmarshalPrefetchMessage unmarshals a prefetch message from JSON
func UnmarshalPrefetchMessage(data []byte) (*PrefetchMessage, error) {
	return unmarshal[PrefetchMessage](data)
}

// UnmarshalSweepNotification unmarshals a sweep notification from JSON
func UnmarshalSweepNotification(data []byte) (*SweepNotification, error) {
	return unmarshal[SweepNotification](data)
}

// UnmarshalDLQMessage unmarshals a DLQ message from JSON
func UnmarshalDLQMessage(data []byte) (*DLQMessage, error) {
	return unmarshal[DLQMessage](data)
}

// TypeForSubject maps a work subject to its message type.
func TypeForSubject(subject string) (MessageType, bool) {
	switch subject {
	case SubjectPersist:
		return MessageTypePersist, true
	case SubjectRehydrate:
		return MessageTypeRehydrate, true
	case SubjectPrefetch:
		return MessageTypePrefetch, true
	case SubjectSweep:
		return MessageTypeSweep, true
	}
	return "", false
}

// ExtractMessageKey returns "endpoint/id" for a work message.
func ExtractMessageKey(data []byte, subject string) (string, error) {
	switch subject {
	case SubjectPersist:
		msg, err := UnmarshalPersistMessage(data)
		if err != nil {
			return "", err
		}
		return msg.Endpoint + "/" + msg.ResourceID, nil
	case SubjectRehydrate:
		msg, err := UnmarshalRehydrateMessage(data)
		if err != nil {
			return "", err
		}
		return msg.Endpoint + "/" + msg.ResourceID, nil
	case SubjectPrefetch:
		msg, err := UnmarshalPrefetchMessage(data)
		if err != nil {
			return "", err
		}
		return msg.Endpoint + "/" + msg.ResourceID, nil
	default:
		return "", fmt.Errorf("unknown subject: %s", subject)
	}
}
