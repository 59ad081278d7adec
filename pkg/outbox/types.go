package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Message is the unit stored in the outbox table.
type Message struct {
	TenantID uuid.UUID
	Topic    string
	EventID  uuid.UUID
	Payload  json.RawMessage
}

func (m Message) validate() error {
	if m.TenantID == uuid.Nil {
		return invalidConfig("tenant_id is required")
	}
	if m.EventID == uuid.Nil {
		return invalidConfig("event_id is required")
	}
	if m.Topic == "" {
		return invalidConfig("topic is required")
	}
	return nil
}

// Meta is the dispatch metadata subscribers use for idempotency.
type Meta struct {
	Table    string
	TenantID uuid.UUID
	Topic    string
	EventID  uuid.UUID
	Sequence int64
	Attempts int
}

// DispatchedMessage is the unit delivered by Relay to Dispatcher.
type DispatchedMessage struct {
	Meta    Meta
	Payload json.RawMessage
}

type Dispatcher interface {
	Dispatch(ctx context.Context, msg DispatchedMessage) error
}

// Claimed is a message leased to the relay. Attempts already counts the current try.
type Claimed struct {
	ID       uuid.UUID
	TenantID uuid.UUID
	Topic    string
	Payload  []byte
	EventID  uuid.UUID
	Sequence int64
	Attempts int
}

// Store is the relay's view of the outbox table.
type Store interface {
	Table() string
	Claim(ctx context.Context, now, lockCutoff time.Time, maxAttempts, limit int) ([]Claimed, error)
	Ack(ctx context.Context, id uuid.UUID) error
	Nack(ctx context.Context, id uuid.UUID, lastError string, nextAvailable time.Time) error
	Dead(ctx context.Context, id uuid.UUID, lastError string) error
	Depth(ctx context.Context) (pending, locked int64, err error)
}
